package jwtx_test

import (
	"strings"
	"testing"
	"time"

	"github.com/adrisa007/guardiao/pkg/cryptox"
	"github.com/adrisa007/guardiao/pkg/jwtx"
	"github.com/stretchr/testify/require"
)

const exampleIssuer = "https://guardiao.example.com"

func testIdentity() jwtx.Identity {
	return jwtx.Identity{
		UserID:       "user-456",
		Email:        "colab@empresa.com.br",
		Role:         "COLABORADOR",
		ControllerID: "2b0f7c1e-8f4a-4c55-b0c6-1f1b9d3a2e77",
	}
}

func TestEdDSASignAndVerify(t *testing.T) {
	pemKey, err := cryptox.GenerateEd25519Key()
	require.NoError(t, err)

	signer, verifier, err := jwtx.NewPair(jwtx.AlgEdDSA, "test-key-eddsa", pemKey,
		jwtx.VerifyOptions{Issuer: exampleIssuer})
	require.NoError(t, err)
	require.NoError(t, signer.Validate())
	require.Equal(t, "EdDSA", signer.Alg())
	require.Equal(t, "test-key-eddsa", signer.KID())

	claims := jwtx.NewAccessClaims(testIdentity(), 5*time.Minute, exampleIssuer, nil, time.Now().UTC())

	token, err := signer.Sign(claims)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	parsed, err := verifier.Verify(token)
	require.NoError(t, err)
	require.Equal(t, claims.Subject, parsed.Subject)
	require.Equal(t, claims.Email, parsed.Email)
	require.Equal(t, claims.Role, parsed.Role)
	require.Equal(t, claims.ControllerID, parsed.ControllerID)
	require.Equal(t, claims.ID, parsed.ID)
}

func TestEdDSAVerifyFailures(t *testing.T) {
	pemKey, err := cryptox.GenerateEd25519Key()
	require.NoError(t, err)
	otherKey, err := cryptox.GenerateEd25519Key()
	require.NoError(t, err)

	signer, verifier, err := jwtx.NewPair(jwtx.AlgEdDSA, "k1", pemKey, jwtx.VerifyOptions{Issuer: exampleIssuer})
	require.NoError(t, err)
	otherSigner, err := jwtx.NewSignerEdDSA("k1", otherKey)
	require.NoError(t, err)
	rotated, err := jwtx.NewSignerEdDSA("k2", pemKey)
	require.NoError(t, err)

	now := time.Now().UTC()

	t.Run("wrong issuer", func(t *testing.T) {
		tok, err := signer.Sign(jwtx.NewAccessClaims(testIdentity(), time.Minute, "https://evil.example.com", nil, now))
		require.NoError(t, err)
		_, err = verifier.Verify(tok)
		require.ErrorIs(t, err, jwtx.ErrIssuer)
	})

	t.Run("expired", func(t *testing.T) {
		tok, err := signer.Sign(jwtx.NewAccessClaims(testIdentity(), time.Minute, exampleIssuer, nil, now.Add(-time.Hour)))
		require.NoError(t, err)
		_, err = verifier.Verify(tok)
		require.ErrorIs(t, err, jwtx.ErrExpired)
	})

	t.Run("foreign key", func(t *testing.T) {
		tok, err := otherSigner.Sign(jwtx.NewAccessClaims(testIdentity(), time.Minute, exampleIssuer, nil, now))
		require.NoError(t, err)
		_, err = verifier.Verify(tok)
		require.ErrorIs(t, err, jwtx.ErrInvalidSig)
	})

	t.Run("unknown kid", func(t *testing.T) {
		tok, err := rotated.Sign(jwtx.NewAccessClaims(testIdentity(), time.Minute, exampleIssuer, nil, now))
		require.NoError(t, err)
		_, err = verifier.Verify(tok)
		require.ErrorIs(t, err, jwtx.ErrUnknownKID)
	})

	t.Run("tampered payload", func(t *testing.T) {
		tok, err := signer.Sign(jwtx.NewAccessClaims(testIdentity(), time.Minute, exampleIssuer, nil, now))
		require.NoError(t, err)
		parts := strings.Split(tok, ".")
		require.Len(t, parts, 3)
		parts[2] = strings.Repeat("A", len(parts[2]))
		_, err = verifier.Verify(strings.Join(parts, "."))
		require.ErrorIs(t, err, jwtx.ErrInvalidSig)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := verifier.Verify("not-a-jwt")
		require.ErrorIs(t, err, jwtx.ErrMalformed)
	})
}

func TestNewSignerEdDSARejectsBadPEM(t *testing.T) {
	_, err := jwtx.NewSignerEdDSA("k", []byte("nope"))
	require.Error(t, err)
}
