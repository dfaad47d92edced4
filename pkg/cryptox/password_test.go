package cryptox

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

// Tests use the minimum cost, production keeps 12.
func newTestHasher() *Hasher {
	return NewHasher(bcrypt.MinCost, 2)
}

func TestHasher_HashAndCompare(t *testing.T) {
	tests := []struct {
		name     string
		password string
	}{
		{"simple password", "Senha@2025!"},
		{"unicode password", "pässwörd@1A"},
		{"whitespace password", "   Spaces@1   "},
	}

	h := newTestHasher()
	ctx := context.Background()

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hash, err := h.Hash(ctx, tt.password)
			require.NoError(t, err)
			require.True(t, strings.HasPrefix(hash, "$2a$"))

			require.NoError(t, h.Compare(ctx, hash, tt.password))
			require.ErrorIs(t, h.Compare(ctx, hash, tt.password+"x"), ErrPasswordMismatch)
		})
	}
}

func TestHasher_LengthLimit(t *testing.T) {
	h := newTestHasher()
	ctx := context.Background()

	longest := strings.Repeat("a", MaxPasswordBytes)
	hash, err := h.Hash(ctx, longest)
	require.NoError(t, err)
	require.NoError(t, h.Compare(ctx, hash, longest))

	_, err = h.Hash(ctx, longest+"a")
	require.ErrorIs(t, err, ErrPasswordTooLong)
}

func TestHasher_UniqueSalts(t *testing.T) {
	h := newTestHasher()
	ctx := context.Background()

	a, err := h.Hash(ctx, "Senha@2025!")
	require.NoError(t, err)
	b, err := h.Hash(ctx, "Senha@2025!")
	require.NoError(t, err)

	require.NotEqual(t, a, b, "hashes should differ due to unique salts")
}

func TestHasher_EmptyHashNeverMatches(t *testing.T) {
	h := newTestHasher()
	require.ErrorIs(t, h.Compare(context.Background(), "", ""), ErrPasswordMismatch)
	require.ErrorIs(t, h.Compare(context.Background(), "", "anything"), ErrPasswordMismatch)
}

func TestHasher_DefaultCost(t *testing.T) {
	require.Equal(t, DefaultBcryptCost, NewHasher(0, 1).Cost())
	require.Equal(t, DefaultBcryptCost, NewHasher(99, 1).Cost())
	require.Equal(t, 10, NewHasher(10, 1).Cost())
}

func TestHasher_RespectsContextWhenSaturated(t *testing.T) {
	h := NewHasher(bcrypt.MinCost, 1)

	// Hold the only slot.
	require.NoError(t, h.sem.Acquire(context.Background(), 1))
	defer h.sem.Release(1)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := h.Hash(ctx, "Senha@2025!")
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestHasher_Concurrent(t *testing.T) {
	h := newTestHasher()
	ctx := context.Background()
	hash, err := h.Hash(ctx, "Senha@2025!")
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- h.Compare(ctx, hash, "Senha@2025!")
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}
}
