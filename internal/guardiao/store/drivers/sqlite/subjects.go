package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/adrisa007/guardiao/internal/guardiao/domain"
)

type subjectsRepo struct {
	q dbtx
}

func (r *subjectsRepo) CreateSubject(ctx context.Context, s domain.Subject) error {
	now := time.Now().UTC()
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO titulares (id, nome, cpf, email, telefone, controladora_id, usuario_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.ID, s.Name, s.CPF, mapStringNull(s.Email), mapStringNull(s.Phone), s.ControllerID,
		mapStringNull(s.UserID), now, now)
	return mapConstraint(err)
}

func (r *subjectsRepo) GetSubjectByID(ctx context.Context, id string) (domain.Subject, error) {
	var (
		s domain.Subject
		email, phone, userID sql.NullString
	)
	err := r.q.QueryRowContext(ctx, `
		SELECT id, nome, cpf, email, telefone, controladora_id, usuario_id, created_at, updated_at
		FROM titulares WHERE id = ?`, id,
	).Scan(&s.ID, &s.Name, &s.CPF, &email, &phone, &s.ControllerID, &userID, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return domain.Subject{}, mapNotFound(err)
	}
	s.Email = mapNullString(email)
	s.Phone = mapNullString(phone)
	s.UserID = mapNullString(userID)
	return s, nil
}
