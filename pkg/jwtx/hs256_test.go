package jwtx_test

import (
	"bytes"
	"testing"
	"time"

	"github.com/adrisa007/guardiao/pkg/cryptox"
	"github.com/adrisa007/guardiao/pkg/jwtx"
	"github.com/stretchr/testify/require"
)

func TestHS256SignAndVerify(t *testing.T) {
	secret := bytes.Repeat([]byte("s"), jwtx.MinHS256SecretSize)

	signer, verifier, err := jwtx.NewPair(jwtx.AlgHS256, "", secret, jwtx.VerifyOptions{Issuer: exampleIssuer})
	require.NoError(t, err)
	require.Equal(t, "HS256", signer.Alg())

	claims := jwtx.NewAccessClaims(testIdentity(), time.Minute, exampleIssuer, nil, time.Now().UTC())
	tok, err := signer.Sign(claims)
	require.NoError(t, err)

	parsed, err := verifier.Verify(tok)
	require.NoError(t, err)
	require.Equal(t, claims.Subject, parsed.Subject)
	require.Equal(t, "COLABORADOR", parsed.Role)
}

func TestHS256RejectsShortSecret(t *testing.T) {
	_, err := jwtx.NewSignerHS256("", []byte("short"))
	require.Error(t, err)
}

func TestHS256RejectsWrongSecret(t *testing.T) {
	a := bytes.Repeat([]byte("a"), 32)
	b := bytes.Repeat([]byte("b"), 32)

	signer, err := jwtx.NewSignerHS256("", a)
	require.NoError(t, err)
	verifier := jwtx.NewVerifierHS256("", b, jwtx.VerifyOptions{})

	tok, err := signer.Sign(jwtx.NewAccessClaims(testIdentity(), time.Minute, "", nil, time.Now()))
	require.NoError(t, err)
	_, err = verifier.Verify(tok)
	require.ErrorIs(t, err, jwtx.ErrInvalidSig)
}

func TestVerifierRejectsOtherAlgorithm(t *testing.T) {
	pemKey, err := cryptox.GenerateEd25519Key()
	require.NoError(t, err)
	edSigner, err := jwtx.NewSignerEdDSA("", pemKey)
	require.NoError(t, err)

	hsVerifier := jwtx.NewVerifierHS256("", bytes.Repeat([]byte("x"), 32), jwtx.VerifyOptions{})

	tok, err := edSigner.Sign(jwtx.NewAccessClaims(testIdentity(), time.Minute, "", nil, time.Now()))
	require.NoError(t, err)
	_, err = hsVerifier.Verify(tok)
	require.ErrorIs(t, err, jwtx.ErrInvalidSig)
}

func TestNewPairUnsupportedAlgorithm(t *testing.T) {
	_, _, err := jwtx.NewPair("RS256", "", nil, jwtx.VerifyOptions{})
	require.Error(t, err)
}
