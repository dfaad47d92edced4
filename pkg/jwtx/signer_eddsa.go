package jwtx

import (
	"crypto/ed25519"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// EdDSASigner signs access tokens with an Ed25519 key.
type EdDSASigner struct {
	kid string
	key ed25519.PrivateKey
	pub ed25519.PublicKey
}

// newEdDSASigner accepts a PKCS8 "PRIVATE KEY" PEM block, the format
// cryptox.GenerateEd25519Key writes.
func newEdDSASigner(kid string, pemKey []byte) (*EdDSASigner, error) {
	parsed, err := jwt.ParseEdPrivateKeyFromPEM(pemKey)
	if err != nil {
		return nil, fmt.Errorf("jwtx: load Ed25519 key: %w", err)
	}
	key, ok := parsed.(ed25519.PrivateKey)
	if !ok {
		return nil, errors.New("jwtx: PEM does not hold an Ed25519 private key")
	}

	s := &EdDSASigner{kid: kid, key: key, pub: key.Public().(ed25519.PublicKey)}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *EdDSASigner) Alg() string { return jwt.SigningMethodEdDSA.Alg() }
func (s *EdDSASigner) KID() string { return s.kid }

// Sign stamps the kid header so verifiers can reject tokens from another key.
func (s *EdDSASigner) Sign(claims Claims) (string, error) {
	t := jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims)
	t.Header["kid"] = s.kid
	return t.SignedString(s.key)
}

// Validate is also the readiness probe for the signing key.
func (s *EdDSASigner) Validate() error {
	switch {
	case len(s.key) != ed25519.PrivateKeySize:
		return errors.New("jwtx: invalid Ed25519 private key size")
	case len(s.pub) != ed25519.PublicKeySize:
		return errors.New("jwtx: invalid Ed25519 public key size")
	}
	return nil
}
