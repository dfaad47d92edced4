package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

type backupCodesRepo struct {
	q dbtx
}

func (r *backupCodesRepo) CreateBackupCode(ctx context.Context, userID, codeHash string) error {
	_, err := r.q.ExecContext(ctx,
		`INSERT INTO backup_codes (user_id, code_hash, created_at) VALUES (?, ?, ?)`,
		userID, codeHash, time.Now().UTC())
	return mapConstraint(err)
}

func (r *backupCodesRepo) ConsumeBackupCode(ctx context.Context, userID, codeHash string) (bool, error) {
	res, err := r.q.ExecContext(ctx,
		`DELETE FROM backup_codes WHERE user_id = ? AND code_hash = ?`, userID, codeHash)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (r *backupCodesRepo) HasBackupCode(ctx context.Context, userID, codeHash string) (bool, error) {
	var one int
	err := r.q.QueryRowContext(ctx,
		`SELECT 1 FROM backup_codes WHERE user_id = ? AND code_hash = ?`, userID, codeHash).Scan(&one)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (r *backupCodesRepo) DeleteAllBackupCodes(ctx context.Context, userID string) error {
	_, err := r.q.ExecContext(ctx, `DELETE FROM backup_codes WHERE user_id = ?`, userID)
	return err
}

func (r *backupCodesRepo) CountUserBackupCodes(ctx context.Context, userID string) (int, error) {
	var count int
	err := r.q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM backup_codes WHERE user_id = ?`, userID).Scan(&count)
	return count, err
}
