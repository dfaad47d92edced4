package sqlite

import (
	"context"
	"time"

	"github.com/adrisa007/guardiao/internal/guardiao/domain"
	"github.com/adrisa007/guardiao/internal/guardiao/store"
)

type mfaSessionsRepo struct {
	q dbtx
}

const mfaSessionColumns = `id, user_id, attempts, ip, user_agent, created_at, expires_at`

func scanMFASession(row rowScanner) (domain.MFASession, error) {
	var s domain.MFASession
	err := row.Scan(&s.ID, &s.UserID, &s.Attempts, &s.IP, &s.UserAgent, &s.CreatedAt, &s.ExpiresAt)
	return s, err
}

func (r *mfaSessionsRepo) CreateMFASession(ctx context.Context, s domain.MFASession) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO mfa_sessions (id, user_id, attempts, ip, user_agent, created_at, expires_at)
		VALUES (?, ?, 0, ?, ?, ?, ?)`,
		s.ID, s.UserID, s.IP, s.UserAgent, s.CreatedAt.UTC(), s.ExpiresAt.UTC())
	return err
}

func (r *mfaSessionsRepo) GetMFASession(ctx context.Context, id string, now time.Time) (domain.MFASession, error) {
	s, err := scanMFASession(r.q.QueryRowContext(ctx,
		`SELECT `+mfaSessionColumns+` FROM mfa_sessions WHERE id = ? AND expires_at > ?`, id, now.UTC()))
	if err != nil {
		return domain.MFASession{}, mapNotFound(err)
	}
	return s, nil
}

func (r *mfaSessionsRepo) IncrementMFASessionAttempts(ctx context.Context, id string) (domain.MFASession, error) {
	res, err := r.q.ExecContext(ctx, `UPDATE mfa_sessions SET attempts = attempts + 1 WHERE id = ?`, id)
	if err := expectOne(res, err, store.ErrNotFound); err != nil {
		return domain.MFASession{}, err
	}
	s, err := scanMFASession(r.q.QueryRowContext(ctx,
		`SELECT `+mfaSessionColumns+` FROM mfa_sessions WHERE id = ?`, id))
	if err != nil {
		return domain.MFASession{}, mapNotFound(err)
	}
	return s, nil
}

func (r *mfaSessionsRepo) DeleteMFASession(ctx context.Context, id string) error {
	_, err := r.q.ExecContext(ctx, `DELETE FROM mfa_sessions WHERE id = ?`, id)
	return err
}

func (r *mfaSessionsRepo) DeleteExpiredMFASessions(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.q.ExecContext(ctx, `DELETE FROM mfa_sessions WHERE expires_at <= ?`, now.UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
