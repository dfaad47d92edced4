package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/adrisa007/guardiao/internal/guardiao/domain"
	"github.com/adrisa007/guardiao/internal/guardiao/store"
)

type usersRepo struct {
	q dbtx
}

const userColumns = `id, nome, email, cpf, departamento, password_hash, tipo, controladora_id,
	ativo, bloqueado, termo_assinado, termo_validade, mfa_secret, mfa_secret_pending,
	mfa_enabled_at, last_login_at, created_at, updated_at`

func scanUser(row rowScanner) (domain.User, error) {
	var (
		u    domain.User
		role string
		cpf, dept, controller        sql.NullString
		secret, pending              sql.NullString
		termUntil, mfaAt, lastLogin sql.NullTime
	)
	err := row.Scan(
		&u.ID, &u.Name, &u.Email, &cpf, &dept, &u.PasswordHash, &role, &controller,
		&u.Active, &u.Blocked, &u.TermSigned, &termUntil, &secret, &pending,
		&mfaAt, &lastLogin, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		return domain.User{}, err
	}
	u.Role = domain.Role(role)
	u.CPF = mapNullString(cpf)
	u.Department = mapNullString(dept)
	u.ControllerID = mapNullString(controller)
	u.TermValidUntil = mapNullTimePtr(termUntil)
	u.MFASecret = mapNullStringPtr(secret)
	u.MFASecretPending = mapNullStringPtr(pending)
	u.MFAEnabledAt = mapNullTimePtr(mfaAt)
	u.LastLoginAt = mapNullTimePtr(lastLogin)
	return u, nil
}

func (r *usersRepo) GetUserByID(ctx context.Context, id string) (domain.User, error) {
	u, err := scanUser(r.q.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id))
	if err != nil {
		return domain.User{}, mapNotFound(err)
	}
	return u, nil
}

func (r *usersRepo) GetUserByEmail(ctx context.Context, email string) (domain.User, error) {
	u, err := scanUser(r.q.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email = ?`, email))
	if err != nil {
		return domain.User{}, mapNotFound(err)
	}
	return u, nil
}

func (r *usersRepo) CreateUser(ctx context.Context, u domain.User) error {
	now := time.Now().UTC()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO users (id, nome, email, cpf, departamento, password_hash, tipo, controladora_id,
			ativo, bloqueado, termo_assinado, termo_validade, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		u.ID, u.Name, u.Email, mapStringNull(u.CPF), mapStringNull(u.Department), u.PasswordHash,
		string(u.Role), mapStringNull(u.ControllerID), u.Active, u.Blocked, u.TermSigned,
		mapOptionalTime(u.TermValidUntil), u.CreatedAt.UTC(), now,
	)
	return mapConstraint(err)
}

func (r *usersRepo) IsEmpty(ctx context.Context) (bool, error) {
	var count int
	if err := r.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&count); err != nil {
		return false, err
	}
	return count == 0, nil
}

func (r *usersRepo) UpdatePasswordHash(ctx context.Context, userID, hash string) error {
	res, err := r.q.ExecContext(ctx,
		`UPDATE users SET password_hash = ?, updated_at = ? WHERE id = ?`,
		hash, time.Now().UTC(), userID)
	return expectOne(res, err, store.ErrNotFound)
}

func (r *usersRepo) UpdateLastLogin(ctx context.Context, userID string, at time.Time) error {
	res, err := r.q.ExecContext(ctx,
		`UPDATE users SET last_login_at = ? WHERE id = ?`, at.UTC(), userID)
	return expectOne(res, err, store.ErrNotFound)
}

func (r *usersRepo) SignTerm(ctx context.Context, userID string, validUntil time.Time) error {
	res, err := r.q.ExecContext(ctx,
		`UPDATE users SET termo_assinado = 1, termo_validade = ?, updated_at = ? WHERE id = ?`,
		validUntil.UTC(), time.Now().UTC(), userID)
	return expectOne(res, err, store.ErrNotFound)
}

func (r *usersRepo) UpdateStatus(ctx context.Context, userID string, active, blocked bool) error {
	res, err := r.q.ExecContext(ctx,
		`UPDATE users SET ativo = ?, bloqueado = ?, updated_at = ? WHERE id = ?`,
		active, blocked, time.Now().UTC(), userID)
	return expectOne(res, err, store.ErrNotFound)
}

func (r *usersRepo) SetPendingMFASecret(ctx context.Context, userID, secret string) error {
	res, err := r.q.ExecContext(ctx,
		`UPDATE users SET mfa_secret_pending = ?, updated_at = ? WHERE id = ?`,
		secret, time.Now().UTC(), userID)
	return expectOne(res, err, store.ErrNotFound)
}

func (r *usersRepo) ActivateMFA(ctx context.Context, userID, pending string, at time.Time) error {
	res, err := r.q.ExecContext(ctx, `
		UPDATE users
		SET mfa_secret = mfa_secret_pending, mfa_secret_pending = NULL, mfa_enabled_at = ?, updated_at = ?
		WHERE id = ? AND mfa_secret_pending = ?`,
		at.UTC(), at.UTC(), userID, pending)
	return expectOne(res, err, store.ErrConflict)
}

func (r *usersRepo) DisableMFA(ctx context.Context, userID string) error {
	res, err := r.q.ExecContext(ctx, `
		UPDATE users
		SET mfa_secret = NULL, mfa_secret_pending = NULL, mfa_enabled_at = NULL, updated_at = ?
		WHERE id = ?`,
		time.Now().UTC(), userID)
	return expectOne(res, err, store.ErrNotFound)
}
