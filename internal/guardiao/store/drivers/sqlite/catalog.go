package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/adrisa007/guardiao/internal/guardiao/domain"
)

type catalogRepo struct {
	q dbtx
}

const consentTypeColumns = `id, controladora_id, codigo, nome, descricao, ativo, exige_prova_fisica, created_at, updated_at`

func scanConsentType(row rowScanner) (domain.ConsentType, error) {
	var (
		t    domain.ConsentType
		desc sql.NullString
	)
	err := row.Scan(&t.ID, &t.ControllerID, &t.Code, &t.Name, &desc, &t.Active,
		&t.RequiresPhysicalProof, &t.CreatedAt, &t.UpdatedAt)
	t.Description = mapNullString(desc)
	return t, err
}

func (r *catalogRepo) CreateConsentType(ctx context.Context, t domain.ConsentType) error {
	now := time.Now().UTC()
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO consent_types (`+consentTypeColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.ControllerID, t.Code, t.Name, mapStringNull(t.Description), t.Active,
		t.RequiresPhysicalProof, now, now)
	return mapConstraint(err)
}

func (r *catalogRepo) GetConsentType(ctx context.Context, id string) (domain.ConsentType, error) {
	t, err := scanConsentType(r.q.QueryRowContext(ctx,
		`SELECT `+consentTypeColumns+` FROM consent_types WHERE id = ?`, id))
	if err != nil {
		return domain.ConsentType{}, mapNotFound(err)
	}
	return t, nil
}

func (r *catalogRepo) ListConsentTypes(ctx context.Context, controllerID string) ([]domain.ConsentType, error) {
	q := `SELECT ` + consentTypeColumns + ` FROM consent_types`
	var args []any
	if controllerID != "" {
		q += ` WHERE controladora_id = ?`
		args = append(args, controllerID)
	}
	q += ` ORDER BY nome`

	rows, err := r.q.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.ConsentType
	for rows.Next() {
		t, err := scanConsentType(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *catalogRepo) GetLegalBasis(ctx context.Context, id string) (domain.LegalBasis, error) {
	var b domain.LegalBasis
	err := r.q.QueryRowContext(ctx,
		`SELECT id, codigo, artigo, descricao, sensivel FROM legal_bases WHERE id = ?`, id,
	).Scan(&b.ID, &b.Code, &b.Article, &b.Description, &b.Sensitive)
	if err != nil {
		return domain.LegalBasis{}, mapNotFound(err)
	}
	return b, nil
}

func (r *catalogRepo) ListLegalBases(ctx context.Context) ([]domain.LegalBasis, error) {
	rows, err := r.q.QueryContext(ctx,
		`SELECT id, codigo, artigo, descricao, sensivel FROM legal_bases ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.LegalBasis
	for rows.Next() {
		var b domain.LegalBasis
		if err := rows.Scan(&b.ID, &b.Code, &b.Article, &b.Description, &b.Sensitive); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}
