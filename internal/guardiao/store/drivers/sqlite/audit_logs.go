package sqlite

import (
	"context"
	"database/sql"
	"strings"

	"github.com/adrisa007/guardiao/internal/guardiao/domain"
)

type auditLogsRepo struct {
	q dbtx
}

func (r *auditLogsRepo) InsertAuditEntry(ctx context.Context, e domain.AuditEntry) error {
	data := e.DataAfter
	if data == "" {
		data = "{}"
	}
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO audit_logs (id, acao, usuario_id, tabela, registro_id, ip, user_agent,
			dados_depois, hash_registro, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, string(e.Action), mapStringNull(e.UserID), mapStringNull(e.Table), mapStringNull(e.RecordID),
		e.IP, e.UserAgent, data, e.Hash, e.CreatedAt.UTC(),
	)
	return mapConstraint(err)
}

func auditWhere(f domain.AuditFilter) (string, []any) {
	var (
		conds []string
		args  []any
	)
	if f.Action != "" {
		conds = append(conds, "acao = ?")
		args = append(args, string(f.Action))
	}
	if f.UserID != "" {
		conds = append(conds, "usuario_id = ?")
		args = append(args, f.UserID)
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func (r *auditLogsRepo) ListAuditEntries(ctx context.Context, f domain.AuditFilter) ([]domain.AuditEntry, error) {
	where, args := auditWhere(f)
	q, args := paging(`
		SELECT id, acao, usuario_id, tabela, registro_id, ip, user_agent, dados_depois, hash_registro, created_at
		FROM audit_logs`+where+` ORDER BY created_at DESC, id DESC`, args, f.Offset, f.Limit)

	rows, err := r.q.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.AuditEntry
	for rows.Next() {
		var (
			e      domain.AuditEntry
			action string
			userID, table, recordID sql.NullString
		)
		if err := rows.Scan(&e.ID, &action, &userID, &table, &recordID, &e.IP, &e.UserAgent,
			&e.DataAfter, &e.Hash, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.Action = domain.AuditAction(action)
		e.UserID = mapNullString(userID)
		e.Table = mapNullString(table)
		e.RecordID = mapNullString(recordID)
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *auditLogsRepo) CountAuditEntries(ctx context.Context, f domain.AuditFilter) (int, error) {
	where, args := auditWhere(f)
	var count int
	err := r.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM audit_logs`+where, args...).Scan(&count)
	return count, err
}
