package jwtx

import "fmt"

// Signer is our interface for anything that can sign JWTs.
type Signer interface {
	Alg() string
	KID() string
	Sign(Claims) (string, error)
	Validate() error
}

// Supported algorithm names.
const (
	AlgEdDSA = "EdDSA"
	AlgHS256 = "HS256"
)

// NewSignerEdDSA creates an EdDSA signer from PEM bytes.
// Ed25519 keys must be in PKCS8 format.
func NewSignerEdDSA(kid string, pemKey []byte) (Signer, error) {
	return newEdDSASigner(kid, pemKey)
}

// NewSignerHS256 creates an HMAC-SHA256 signer from a shared secret.
func NewSignerHS256(kid string, secret []byte) (Signer, error) {
	return newHS256Signer(kid, secret)
}

// NewPair builds a matching signer and verifier for alg. For EdDSA key is
// the PKCS8 PEM private key; for HS256 it is the shared secret.
func NewPair(alg, kid string, key []byte, opts VerifyOptions) (Signer, Verifier, error) {
	switch alg {
	case AlgEdDSA:
		s, err := newEdDSASigner(kid, key)
		if err != nil {
			return nil, nil, err
		}
		return s, NewVerifierEdDSA(kid, s.pub, opts), nil
	case AlgHS256:
		s, err := newHS256Signer(kid, key)
		if err != nil {
			return nil, nil, err
		}
		return s, NewVerifierHS256(kid, s.secret, opts), nil
	default:
		return nil, nil, fmt.Errorf("jwtx: unsupported algorithm %q", alg)
	}
}
