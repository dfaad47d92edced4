package cryptox

import (
	"encoding/pem"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGenerateEd25519Key(t *testing.T) {
	key, err := GenerateEd25519Key()
	require.NoError(t, err)

	block, _ := pem.Decode(key)
	require.NotNil(t, block)
	require.Equal(t, "PRIVATE KEY", block.Type)
}

func TestLoadOrCreateEd25519Key(t *testing.T) {
	path := filepath.Join(t.TempDir(), "signing.pem")

	first, created, err := LoadOrCreateEd25519Key(path)
	require.NoError(t, err)
	require.True(t, created)

	second, created, err := LoadOrCreateEd25519Key(path)
	require.NoError(t, err)
	require.False(t, created)
	require.Equal(t, first, second, "existing key must be reused")
}
