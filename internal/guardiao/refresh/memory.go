package refresh

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	userID    string
	expiresAt time.Time
}

// MemoryRegistry is a process-local registry. Tokens do not survive a
// restart and are not shared between replicas.
type MemoryRegistry struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
}

func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{entries: make(map[string]memoryEntry)}
}

func (r *MemoryRegistry) Save(_ context.Context, hash, userID string, expiresAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[hash] = memoryEntry{userID: userID, expiresAt: expiresAt}
	return nil
}

func (r *MemoryRegistry) Consume(_ context.Context, hash string, now time.Time) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[hash]
	if !ok {
		return "", ErrUnknownToken
	}
	delete(r.entries, hash)
	if !now.Before(e.expiresAt) {
		return "", ErrUnknownToken
	}
	return e.userID, nil
}

func (r *MemoryRegistry) Revoke(_ context.Context, hash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, hash)
	return nil
}

func (r *MemoryRegistry) RevokeUser(_ context.Context, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for hash, e := range r.entries {
		if e.userID == userID {
			delete(r.entries, hash)
		}
	}
	return nil
}

func (r *MemoryRegistry) Sweep(_ context.Context, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64
	for hash, e := range r.entries {
		if !now.Before(e.expiresAt) {
			delete(r.entries, hash)
			n++
		}
	}
	return n, nil
}
