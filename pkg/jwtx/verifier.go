package jwtx

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Verifier validates a JWT and gives you back the claims if it's legit.
type Verifier interface {
	Verify(token string) (Claims, error)
}

// VerifyOptions captures common expectations used by verifiers.
type VerifyOptions struct {
	// Issuer the token must have (claims.iss). Empty means "don't care".
	Issuer string

	// Audience values the token must contain (claims.aud). Empty means "don't care".
	Audience []string

	// Leeway allows small clock skew when validating exp/nbf.
	Leeway time.Duration
}

var (
	ErrMalformed  = errors.New("jwtx: malformed token")
	ErrUnknownKID = errors.New("jwtx: unknown kid")
	ErrInvalidSig = errors.New("jwtx: invalid signature")

	ErrIssuer       = errors.New("jwtx: issuer mismatch")
	ErrAudience     = errors.New("jwtx: audience mismatch")
	ErrExpired      = errors.New("jwtx: token expired")
	ErrNotYetValid  = errors.New("jwtx: token not yet valid")
	ErrInvalidClaim = errors.New("jwtx: invalid claims")
)

// keyedVerifier checks signatures for a single algorithm and key. The kid
// header is optional, but when present it must match.
type keyedVerifier struct {
	method jwt.SigningMethod
	kid    string
	key    any
	opts   VerifyOptions
}

// NewVerifierEdDSA verifies tokens signed by the Ed25519 key pub.
func NewVerifierEdDSA(kid string, pub ed25519.PublicKey, opts VerifyOptions) Verifier {
	return &keyedVerifier{method: jwt.SigningMethodEdDSA, kid: kid, key: pub, opts: opts}
}

// NewVerifierHS256 verifies tokens signed with the shared secret.
func NewVerifierHS256(kid string, secret []byte, opts VerifyOptions) Verifier {
	return &keyedVerifier{
		method: jwt.SigningMethodHS256,
		kid:    kid,
		key:    append([]byte(nil), secret...),
		opts:   opts,
	}
}

// Verify validates the JWT string and returns its parsed Claims.
func (v *keyedVerifier) Verify(tokenStr string) (Claims, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{v.method.Alg()}),
		jwt.WithoutClaimsValidation(),
	)

	token, err := parser.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (any, error) {
		if kid, _ := t.Header["kid"].(string); kid != "" && v.kid != "" && kid != v.kid {
			return nil, fmt.Errorf("%w: %q", ErrUnknownKID, kid)
		}
		return v.key, nil
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrUnknownKID):
			return Claims{}, ErrUnknownKID
		case errors.Is(err, jwt.ErrTokenMalformed):
			return Claims{}, ErrMalformed
		case errors.Is(err, jwt.ErrTokenSignatureInvalid):
			// Also covers tokens signed with a different algorithm.
			return Claims{}, ErrInvalidSig
		}
		return Claims{}, fmt.Errorf("jwtx: parse or verify: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return Claims{}, ErrInvalidClaim
	}

	// Now check all the claim requirements
	if err := claims.ValidateIssuer(v.opts.Issuer); err != nil {
		return Claims{}, err
	}
	if err := claims.ValidateAudience(v.opts.Audience); err != nil {
		return Claims{}, err
	}
	if err := claims.ValidateExpiryWithLeeway(v.opts.Leeway); err != nil {
		return Claims{}, err
	}
	if err := claims.ValidateIdentity(); err != nil {
		return Claims{}, err
	}

	return *claims, nil
}
