package cryptox

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/semaphore"
)

// DefaultBcryptCost is the work factor used for stored password hashes.
const DefaultBcryptCost = 12

// ErrPasswordMismatch is returned when a password does not match its hash.
var ErrPasswordMismatch = errors.New("cryptox: password does not match")

// ErrPasswordTooLong is returned by Hash for input bcrypt would truncate.
var ErrPasswordTooLong = errors.New("cryptox: password longer than 72 bytes")

// MaxPasswordBytes is bcrypt's input limit.
const MaxPasswordBytes = 72

// Hasher hashes and compares passwords with bcrypt. At most Concurrency
// operations run at once; callers beyond that wait on their context.
type Hasher struct {
	cost int
	sem  *semaphore.Weighted

	// dummy is compared against when the account does not exist so that a
	// lookup miss costs roughly the same as a wrong password.
	dummyOnce sync.Once
	dummy     []byte
}

// NewHasher returns a Hasher. cost < bcrypt.MinCost falls back to the
// default and concurrency <= 0 means GOMAXPROCS.
func NewHasher(cost, concurrency int) *Hasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = DefaultBcryptCost
	}
	if concurrency <= 0 {
		concurrency = runtime.GOMAXPROCS(0)
	}
	return &Hasher{cost: cost, sem: semaphore.NewWeighted(int64(concurrency))}
}

// Cost reports the configured bcrypt work factor.
func (h *Hasher) Cost() int { return h.cost }

// Hash returns the bcrypt hash of password.
func (h *Hasher) Hash(ctx context.Context, password string) (string, error) {
	if len(password) > MaxPasswordBytes {
		return "", ErrPasswordTooLong
	}
	if err := h.sem.Acquire(ctx, 1); err != nil {
		return "", err
	}
	defer h.sem.Release(1)

	out, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return "", fmt.Errorf("cryptox: hash password: %w", err)
	}
	return string(out), nil
}

// Compare checks password against hash. An empty hash is compared against a
// dummy value and always reports ErrPasswordMismatch.
func (h *Hasher) Compare(ctx context.Context, hash, password string) error {
	if err := h.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer h.sem.Release(1)

	if hash == "" {
		h.dummyOnce.Do(func() {
			h.dummy, _ = bcrypt.GenerateFromPassword([]byte("guardiao-dummy"), h.cost)
		})
		_ = bcrypt.CompareHashAndPassword(h.dummy, []byte(password))
		return ErrPasswordMismatch
	}

	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	switch {
	case err == nil:
		return nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return ErrPasswordMismatch
	default:
		return fmt.Errorf("cryptox: compare password: %w", err)
	}
}
