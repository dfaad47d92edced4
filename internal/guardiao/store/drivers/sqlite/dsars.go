package sqlite

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/adrisa007/guardiao/internal/guardiao/domain"
	"github.com/adrisa007/guardiao/internal/guardiao/store"
)

type dsarsRepo struct {
	q dbtx
}

const dsarSelect = `
	SELECT d.id, d.protocolo, d.tipo_direito, d.titular_id, d.titular_nome, d.titular_cpf,
		d.titular_email, d.titular_telefone, d.descricao, d.formato, d.status, d.resposta_dpo,
		d.anexo_url, d.anexo_path, d.motivo_indeferimento, d.respondido_por_id, u.nome,
		d.data_prevista_resposta, d.data_resposta, d.arquivado_em, d.created_at, d.updated_at
	FROM dsar_requests d
	LEFT JOIN users u ON u.id = d.respondido_por_id`

func scanDSAR(row rowScanner) (domain.DSAR, error) {
	var (
		d domain.DSAR
		kind, status                            string
		requester, phone, desc, format          sql.NullString
		response, attURL, attPath, denial       sql.NullString
		respondedBy, respondedByName            sql.NullString
		respondedAt, archivedAt                 sql.NullTime
	)
	err := row.Scan(
		&d.ID, &d.Protocol, &kind, &requester, &d.SubjectName, &d.SubjectCPF,
		&d.SubjectEmail, &phone, &desc, &format, &status, &response,
		&attURL, &attPath, &denial, &respondedBy, &respondedByName,
		&d.DueAt, &respondedAt, &archivedAt, &d.CreatedAt, &d.UpdatedAt,
	)
	if err != nil {
		return domain.DSAR{}, err
	}
	d.Type = domain.DSARType(kind)
	d.Status = domain.DSARStatus(status)
	d.RequesterID = mapNullString(requester)
	d.SubjectPhone = mapNullString(phone)
	d.Description = mapNullString(desc)
	d.Format = mapNullString(format)
	d.DPOResponse = mapNullString(response)
	d.AttachmentURL = mapNullString(attURL)
	d.AttachmentPath = mapNullString(attPath)
	d.DenialReason = mapNullString(denial)
	d.RespondedByID = mapNullString(respondedBy)
	d.RespondedByName = mapNullString(respondedByName)
	d.RespondedAt = mapNullTimePtr(respondedAt)
	d.ArchivedAt = mapNullTimePtr(archivedAt)
	d.DueAt = d.DueAt.UTC()
	d.CreatedAt = d.CreatedAt.UTC()
	return d, nil
}

func (r *dsarsRepo) NextProtocolSeq(ctx context.Context, year int) (int, error) {
	var seq int
	err := r.q.QueryRowContext(ctx, `
		INSERT INTO dsar_counters (ano, ultimo) VALUES (?, 1)
		ON CONFLICT (ano) DO UPDATE SET ultimo = ultimo + 1
		RETURNING ultimo`, year).Scan(&seq)
	return seq, err
}

func (r *dsarsRepo) CreateDSAR(ctx context.Context, d domain.DSAR) error {
	now := time.Now().UTC()
	if d.CreatedAt.IsZero() {
		d.CreatedAt = now
	}
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO dsar_requests (id, protocolo, tipo_direito, titular_id, titular_nome, titular_cpf,
			titular_email, titular_telefone, descricao, formato, status, data_prevista_resposta,
			created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		d.ID, d.Protocol, string(d.Type), mapStringNull(d.RequesterID), d.SubjectName, d.SubjectCPF,
		d.SubjectEmail, mapStringNull(d.SubjectPhone), mapStringNull(d.Description),
		mapStringNull(d.Format), string(d.Status), d.DueAt.UTC(), d.CreatedAt.UTC(), now,
	)
	return mapConstraint(err)
}

func (r *dsarsRepo) GetDSAR(ctx context.Context, id string) (domain.DSAR, error) {
	d, err := scanDSAR(r.q.QueryRowContext(ctx, dsarSelect+` WHERE d.id = ?`, id))
	if err != nil {
		return domain.DSAR{}, mapNotFound(err)
	}
	return d, nil
}

func dsarWhere(f domain.DSARFilter) (string, []any) {
	var (
		conds []string
		args  []any
	)
	if f.RequesterID != "" {
		conds = append(conds, "d.titular_id = ?")
		args = append(args, f.RequesterID)
	}
	if f.Status != "" {
		conds = append(conds, "d.status = ?")
		args = append(args, string(f.Status))
	}
	if f.Type != "" {
		conds = append(conds, "d.tipo_direito = ?")
		args = append(args, string(f.Type))
	}
	if f.CPF != "" {
		conds = append(conds, "instr(d.titular_cpf, ?) > 0")
		args = append(args, f.CPF)
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func (r *dsarsRepo) ListDSARs(ctx context.Context, f domain.DSARFilter) ([]domain.DSAR, error) {
	where, args := dsarWhere(f)
	q, args := paging(dsarSelect+where+` ORDER BY d.created_at DESC, d.id DESC`, args, f.Offset, f.Limit)

	rows, err := r.q.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.DSAR
	for rows.Next() {
		d, err := scanDSAR(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (r *dsarsRepo) CountDSARs(ctx context.Context, f domain.DSARFilter) (int, error) {
	where, args := dsarWhere(f)
	var count int
	err := r.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM dsar_requests d`+where, args...).Scan(&count)
	return count, err
}

func (r *dsarsRepo) AnswerDSAR(ctx context.Context, id string, a domain.DSARAnswer) error {
	at := a.RespondedAt.UTC()
	var archived sql.NullTime
	if a.Status == domain.DSARArchived {
		archived = sql.NullTime{Time: at, Valid: true}
	}
	var respondedAt sql.NullTime
	if a.Status.Terminal() {
		respondedAt = sql.NullTime{Time: at, Valid: true}
	}

	res, err := r.q.ExecContext(ctx, `
		UPDATE dsar_requests
		SET status = ?,
			resposta_dpo = COALESCE(?, resposta_dpo),
			motivo_indeferimento = COALESCE(?, motivo_indeferimento),
			anexo_url = COALESCE(?, anexo_url),
			anexo_path = COALESCE(?, anexo_path),
			respondido_por_id = ?,
			data_resposta = COALESCE(?, data_resposta),
			arquivado_em = COALESCE(?, arquivado_em),
			updated_at = ?
		WHERE id = ? AND status NOT IN ('RESPONDIDO', 'INDEFERIDO', 'CANCELADO', 'ARQUIVADO')`,
		string(a.Status), mapStringNull(a.DPOResponse), mapStringNull(a.DenialReason),
		mapStringNull(a.AttachmentURL), mapStringNull(a.AttachmentPath), mapStringNull(a.RespondedByID),
		respondedAt, archived, at, id,
	)
	return expectOne(res, err, store.ErrConflict)
}
