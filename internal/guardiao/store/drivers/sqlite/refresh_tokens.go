package sqlite

import (
	"context"
	"time"

	"github.com/adrisa007/guardiao/internal/guardiao/domain"
)

type refreshTokensRepo struct {
	q dbtx
}

func (r *refreshTokensRepo) CreateRefreshToken(ctx context.Context, t domain.RefreshToken) error {
	now := time.Now().UTC()
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO refresh_tokens (id, user_id, token_hash, expires_at, revoked, created_at, updated_at)
		VALUES (?, ?, ?, ?, 0, ?, ?)`,
		t.ID, t.UserID, t.TokenHash, t.ExpiresAt.UTC(), now, now)
	return mapConstraint(err)
}

func (r *refreshTokensRepo) ConsumeRefreshToken(ctx context.Context, hash string, now time.Time) (domain.RefreshToken, error) {
	var t domain.RefreshToken
	err := r.q.QueryRowContext(ctx, `
		UPDATE refresh_tokens
		SET revoked = 1, updated_at = ?
		WHERE token_hash = ? AND revoked = 0 AND expires_at > ?
		RETURNING id, user_id, token_hash`,
		now.UTC(), hash, now.UTC(),
	).Scan(&t.ID, &t.UserID, &t.TokenHash)
	if err != nil {
		return domain.RefreshToken{}, mapNotFound(err)
	}
	t.Revoked = true
	return t, nil
}

func (r *refreshTokensRepo) RevokeRefreshToken(ctx context.Context, hash string) error {
	_, err := r.q.ExecContext(ctx,
		`UPDATE refresh_tokens SET revoked = 1, updated_at = ? WHERE token_hash = ?`,
		time.Now().UTC(), hash)
	return err
}

func (r *refreshTokensRepo) RevokeUserRefreshTokens(ctx context.Context, userID string) error {
	_, err := r.q.ExecContext(ctx,
		`UPDATE refresh_tokens SET revoked = 1, updated_at = ? WHERE user_id = ? AND revoked = 0`,
		time.Now().UTC(), userID)
	return err
}

func (r *refreshTokensRepo) DeleteExpiredRefreshTokens(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.q.ExecContext(ctx,
		`DELETE FROM refresh_tokens WHERE expires_at <= ? OR revoked = 1`, now.UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
