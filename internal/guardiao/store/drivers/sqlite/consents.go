package sqlite

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/adrisa007/guardiao/internal/guardiao/domain"
	"github.com/adrisa007/guardiao/internal/guardiao/store"
)

type consentsRepo struct {
	q dbtx
}

const consentViewSelect = `
	SELECT c.id, c.titular_id, c.tipo_consentimento_id, c.base_legal_id, c.classificacao_dados,
		c.canal_coleta, c.documentos_solicitados, c.anexo_prova, c.local_armazenamento,
		c.comprovante_hash, c.data_coleta, c.data_expiracao, c.data_revogacao, c.motivo_revogacao,
		c.status, c.colaborador_id, c.created_at, c.updated_at,
		t.nome, t.cpf, t.usuario_id, t.controladora_id,
		ct.nome, lb.codigo, COALESCE(u.nome, 'Sistema')
	FROM consents c
	JOIN titulares t ON t.id = c.titular_id
	JOIN consent_types ct ON ct.id = c.tipo_consentimento_id
	JOIN legal_bases lb ON lb.id = c.base_legal_id
	LEFT JOIN users u ON u.id = c.colaborador_id`

func scanConsentView(row rowScanner) (domain.ConsentView, error) {
	var (
		v      domain.ConsentView
		status string
		classes, docs                      sql.NullString
		channel, proof, storage, reason    sql.NullString
		collector, subjectUser             sql.NullString
		expiresAt, revokedAt               sql.NullTime
	)
	err := row.Scan(
		&v.ID, &v.SubjectID, &v.TypeID, &v.LegalBasisID, &classes,
		&channel, &docs, &proof, &storage,
		&v.ProofHash, &v.CollectedAt, &expiresAt, &revokedAt, &reason,
		&status, &collector, &v.CreatedAt, &v.UpdatedAt,
		&v.SubjectName, &v.SubjectCPF, &subjectUser, &v.ControllerID,
		&v.TypeName, &v.LegalBasisCode, &v.CollectorName,
	)
	if err != nil {
		return domain.ConsentView{}, err
	}
	v.Status = domain.ConsentStatus(status)
	v.DataClassification = decodeList(classes)
	v.RequestedDocuments = decodeList(docs)
	v.Channel = mapNullString(channel)
	v.ProofAttachment = mapNullString(proof)
	v.StorageLocation = mapNullString(storage)
	v.RevocationReason = mapNullString(reason)
	v.CollectorID = mapNullString(collector)
	v.SubjectUserID = mapNullString(subjectUser)
	v.ExpiresAt = mapNullTimePtr(expiresAt)
	v.RevokedAt = mapNullTimePtr(revokedAt)
	v.CollectedAt = v.CollectedAt.UTC()
	return v, nil
}

func (r *consentsRepo) CreateConsent(ctx context.Context, c domain.Consent) error {
	now := time.Now().UTC()
	if c.Status == "" {
		c.Status = domain.ConsentActive
	}
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO consents (id, titular_id, tipo_consentimento_id, base_legal_id, classificacao_dados,
			canal_coleta, documentos_solicitados, anexo_prova, local_armazenamento, comprovante_hash,
			data_coleta, data_expiracao, status, colaborador_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.SubjectID, c.TypeID, c.LegalBasisID, encodeList(c.DataClassification),
		mapStringNull(c.Channel), encodeList(c.RequestedDocuments), mapStringNull(c.ProofAttachment),
		mapStringNull(c.StorageLocation), c.ProofHash, c.CollectedAt.UTC(), mapOptionalTime(c.ExpiresAt),
		string(c.Status), mapStringNull(c.CollectorID), now, now,
	)
	return mapConstraint(err)
}

func (r *consentsRepo) GetConsent(ctx context.Context, id string) (domain.ConsentView, error) {
	v, err := scanConsentView(r.q.QueryRowContext(ctx, consentViewSelect+` WHERE c.id = ?`, id))
	if err != nil {
		return domain.ConsentView{}, mapNotFound(err)
	}
	return v, nil
}

func consentWhere(f domain.ConsentFilter) (string, []any) {
	var (
		conds []string
		args  []any
	)
	if f.ControllerID != "" {
		conds = append(conds, "t.controladora_id = ?")
		args = append(args, f.ControllerID)
	}
	if f.SubjectID != "" {
		conds = append(conds, "c.titular_id = ?")
		args = append(args, f.SubjectID)
	}
	if f.SubjectUser != "" {
		conds = append(conds, "t.usuario_id = ?")
		args = append(args, f.SubjectUser)
	}
	if f.TypeID != "" {
		conds = append(conds, "c.tipo_consentimento_id = ?")
		args = append(args, f.TypeID)
	}
	if f.From != nil {
		conds = append(conds, "c.data_coleta >= ?")
		args = append(args, f.From.UTC())
	}
	if f.To != nil {
		conds = append(conds, "c.data_coleta <= ?")
		args = append(args, f.To.UTC())
	}
	if f.Status != "" {
		conds = append(conds, "c.status = ?")
		args = append(args, string(f.Status))
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func (r *consentsRepo) ListConsents(ctx context.Context, f domain.ConsentFilter) ([]domain.ConsentView, error) {
	where, args := consentWhere(f)
	q, args := paging(consentViewSelect+where+` ORDER BY c.data_coleta DESC, c.id DESC`, args, f.Offset, f.Limit)

	rows, err := r.q.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.ConsentView
	for rows.Next() {
		v, err := scanConsentView(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func (r *consentsRepo) CountConsents(ctx context.Context, f domain.ConsentFilter) (int, error) {
	where, args := consentWhere(f)
	var count int
	err := r.q.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM consents c
		JOIN titulares t ON t.id = c.titular_id`+where, args...).Scan(&count)
	return count, err
}

func (r *consentsRepo) UpdateConsent(ctx context.Context, id string, p domain.ConsentPatch, now time.Time) error {
	sets := []string{"updated_at = ?"}
	args := []any{now.UTC()}
	if p.DataClassification != nil {
		sets = append(sets, "classificacao_dados = ?")
		args = append(args, encodeList(p.DataClassification))
	}
	if p.Channel != nil {
		sets = append(sets, "canal_coleta = ?")
		args = append(args, mapStringNull(*p.Channel))
	}
	if p.RequestedDocuments != nil {
		sets = append(sets, "documentos_solicitados = ?")
		args = append(args, encodeList(p.RequestedDocuments))
	}
	if p.ProofAttachment != nil {
		sets = append(sets, "anexo_prova = ?")
		args = append(args, mapStringNull(*p.ProofAttachment))
	}
	if p.StorageLocation != nil {
		sets = append(sets, "local_armazenamento = ?")
		args = append(args, mapStringNull(*p.StorageLocation))
	}
	if p.ExpiresAt != nil {
		sets = append(sets, "data_expiracao = ?")
		args = append(args, p.ExpiresAt.UTC())
	}
	if p.ProofHash != nil {
		sets = append(sets, "comprovante_hash = ?")
		args = append(args, *p.ProofHash)
	}
	args = append(args, id)

	res, err := r.q.ExecContext(ctx,
		`UPDATE consents SET `+strings.Join(sets, ", ")+` WHERE id = ? AND status = 'ATIVO'`, args...)
	return expectOne(res, err, store.ErrConflict)
}

func (r *consentsRepo) RevokeConsent(ctx context.Context, id, reason string, at time.Time) error {
	res, err := r.q.ExecContext(ctx, `
		UPDATE consents
		SET status = 'REVOGADO', data_revogacao = ?, motivo_revogacao = ?, updated_at = ?
		WHERE id = ? AND status = 'ATIVO'`,
		at.UTC(), reason, at.UTC(), id)
	return expectOne(res, err, store.ErrConflict)
}

func (r *consentsRepo) DeleteConsent(ctx context.Context, id string) error {
	res, err := r.q.ExecContext(ctx, `DELETE FROM consents WHERE id = ?`, id)
	return expectOne(res, err, store.ErrNotFound)
}

func (r *consentsRepo) ExpireConsents(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.q.ExecContext(ctx, `
		UPDATE consents SET status = 'EXPIRADO', updated_at = ?
		WHERE status = 'ATIVO' AND data_expiracao IS NOT NULL AND data_expiracao <= ?`,
		now.UTC(), now.UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
