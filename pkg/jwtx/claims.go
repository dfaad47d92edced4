package jwtx

import (
	"crypto/rand"
	"encoding/base64"
	"slices"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Default token lifetimes.
const (
	DefaultAccessTokenTTL  = 15 * time.Minute
	DefaultRefreshTokenTTL = 7 * 24 * time.Hour
)

// Claims are the access-token claims. Field names on the wire follow the
// public API ("tipo", "controladora_id") so clients can decode them directly.
type Claims struct {
	jwt.RegisteredClaims

	// Email of the authenticated user
	Email string `json:"email,omitempty"`

	// Role is one of ROOT, DPO, COLABORADOR, PRESTADOR, TITULAR
	Role string `json:"tipo,omitempty"`

	// ControllerID is the tenant the user belongs to. Empty for ROOT users
	// that are not attached to any controller.
	ControllerID string `json:"controladora_id,omitempty"`
}

// Identity is the subset of a user needed to mint an access token.
type Identity struct {
	UserID       string
	Email        string
	Role         string
	ControllerID string
}

// NewAccessClaims builds minimally-correct claims.
func NewAccessClaims(id Identity, ttl time.Duration, issuer string, audience []string, now time.Time) Claims {
	c := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   id.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        NewJTI(),
		},
		Email:        id.Email,
		Role:         id.Role,
		ControllerID: id.ControllerID,
	}
	if len(audience) > 0 {
		c.Audience = jwt.ClaimStrings(audience)
	}
	return c
}

// NewJTI returns a URL-safe random identifier for the "jti" claim.
func NewJTI() string {
	var b [20]byte
	_, _ = rand.Read(b[:])
	return base64.RawURLEncoding.EncodeToString(b[:])
}

// ValidateIssuer checks if the issuer matches expected value.
func (c *Claims) ValidateIssuer(expected string) error {
	if expected == "" {
		return nil // nothing to enforce
	}

	if c.Issuer != expected {
		return ErrIssuer
	}

	return nil
}

// ValidateAudience checks if at least one expected audience is present.
func (c *Claims) ValidateAudience(expected []string) error {
	if len(expected) == 0 {
		return nil // nothing to enforce
	}

	for _, want := range expected {
		if slices.Contains(c.Audience, want) {
			return nil
		}
	}

	return ErrAudience
}

// ValidateExpiry ensures the token hasn't expired (exp) and isn't before nbf.
func (c *Claims) ValidateExpiry() error {
	return c.ValidateExpiryWithLeeway(0)
}

// ValidateExpiryWithLeeway adds a small grace period for clock skew.
func (c *Claims) ValidateExpiryWithLeeway(leeway time.Duration) error {
	now := time.Now().UTC()

	if c.ExpiresAt != nil && now.After(c.ExpiresAt.Add(leeway)) {
		return ErrExpired
	}

	if c.NotBefore != nil && now.Before(c.NotBefore.Add(-leeway)) {
		return ErrNotYetValid
	}

	return nil
}

// ValidateIdentity rejects tokens that verify but carry no usable subject
// or role.
func (c *Claims) ValidateIdentity() error {
	if c.Subject == "" || c.Role == "" {
		return ErrInvalidClaim
	}
	return nil
}
