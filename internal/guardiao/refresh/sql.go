package refresh

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/adrisa007/guardiao/internal/guardiao/domain"
	"github.com/adrisa007/guardiao/internal/guardiao/store"
	"github.com/adrisa007/guardiao/pkg/idx"
)

// SQLRegistry keeps refresh tokens in the refresh_tokens table.
type SQLRegistry struct {
	Store store.Store
}

func NewSQLRegistry(s store.Store) *SQLRegistry {
	return &SQLRegistry{Store: s}
}

func (r *SQLRegistry) Save(ctx context.Context, hash, userID string, expiresAt time.Time) error {
	err := r.Store.RefreshTokens().CreateRefreshToken(ctx, domain.RefreshToken{
		ID:        idx.NewString(),
		UserID:    userID,
		TokenHash: hash,
		ExpiresAt: expiresAt,
	})
	if err != nil {
		return fmt.Errorf("save refresh token: %w", err)
	}
	return nil
}

func (r *SQLRegistry) Consume(ctx context.Context, hash string, now time.Time) (string, error) {
	t, err := r.Store.RefreshTokens().ConsumeRefreshToken(ctx, hash, now)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", ErrUnknownToken
		}
		return "", fmt.Errorf("consume refresh token: %w", err)
	}
	return t.UserID, nil
}

func (r *SQLRegistry) Revoke(ctx context.Context, hash string) error {
	return r.Store.RefreshTokens().RevokeRefreshToken(ctx, hash)
}

func (r *SQLRegistry) RevokeUser(ctx context.Context, userID string) error {
	return r.Store.RefreshTokens().RevokeUserRefreshTokens(ctx, userID)
}

func (r *SQLRegistry) Sweep(ctx context.Context, now time.Time) (int64, error) {
	return r.Store.RefreshTokens().DeleteExpiredRefreshTokens(ctx, now)
}
