package http

import (
	"net/http"

	"github.com/adrisa007/guardiao/internal/guardiao/service"
	"github.com/adrisa007/guardiao/pkg/httpx"
)

type AuditHandler struct {
	AuditLogService *service.AuditLogService
}

// HandleList serves GET /auditoria?acao=&usuarioId=&page=&limit=
func (h *AuditHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	in := service.ListAuditInput{
		Action: q.Get("acao"),
		UserID: q.Get("usuarioId"),
	}
	var err error
	if in.Page, in.Limit, err = pageParams(r); err != nil {
		writeError(w, r, err)
		return
	}

	items, total, pg, err := h.AuditLogService.List(r.Context(), principal(r), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]auditView, len(items))
	for i, e := range items {
		out[i] = auditView{
			ID:        e.ID,
			Action:    string(e.Action),
			UserID:    e.UserID,
			Table:     e.Table,
			RecordID:  e.RecordID,
			IP:        e.IP,
			UserAgent: e.UserAgent,
			DataAfter: e.DataAfter,
			Hash:      e.Hash,
			CreatedAt: e.CreatedAt,
		}
	}
	httpx.WritePage(w, out, httpx.NewPageMeta(total, pg.Page, pg.Limit))
}
