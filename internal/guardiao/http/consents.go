package http

import (
	"encoding/csv"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/adrisa007/guardiao/internal/guardiao/domain"
	"github.com/adrisa007/guardiao/internal/guardiao/service"
	"github.com/adrisa007/guardiao/pkg/httpx"
	"github.com/adrisa007/guardiao/pkg/slogx"
)

type ConsentHandler struct {
	ConsentService *service.ConsentService
	now            func() time.Time
}

type createConsentRequest struct {
	SubjectID          string     `json:"titularId"`
	TypeID             string     `json:"tipoConsentimentoId"`
	LegalBasisID       string     `json:"baseLegalId"`
	DataClassification []string   `json:"classificacaoDados"`
	Channel            string     `json:"canalColeta"`
	RequestedDocuments []string   `json:"documentosSolicitados"`
	ProofAttachment    string     `json:"anexoProva"`
	StorageLocation    string     `json:"localArmazenamento"`
	ExpiresAt          *time.Time `json:"dataExpiracao"`
}

func (h *ConsentHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req createConsentRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	v, err := h.ConsentService.Create(r.Context(), principal(r), service.CreateConsentInput{
		SubjectID:          req.SubjectID,
		TypeID:             req.TypeID,
		LegalBasisID:       req.LegalBasisID,
		DataClassification: req.DataClassification,
		Channel:            req.Channel,
		RequestedDocuments: req.RequestedDocuments,
		ProofAttachment:    req.ProofAttachment,
		StorageLocation:    req.StorageLocation,
		ExpiresAt:          req.ExpiresAt,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.WriteOK(w, http.StatusCreated, "Consentimento registrado com sucesso", newConsentView(v))
}

// HandleList serves GET /consentimentos?titularId=&tipoConsentimentoId=&dataInicio=&dataFim=&status=&page=&limit=
func (h *ConsentHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	in := service.ListConsentsInput{
		SubjectID: q.Get("titularId"),
		TypeID:    q.Get("tipoConsentimentoId"),
		Status:    q.Get("status"),
	}
	var err error
	if in.Page, in.Limit, err = pageParams(r); err != nil {
		writeError(w, r, err)
		return
	}
	if in.From, err = queryDate(r, "dataInicio"); err != nil {
		writeError(w, r, err)
		return
	}
	if in.To, err = queryDate(r, "dataFim"); err != nil {
		writeError(w, r, err)
		return
	}

	items, total, pg, err := h.ConsentService.List(r.Context(), principal(r), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.WritePage(w, newConsentViews(items), httpx.NewPageMeta(total, pg.Page, pg.Limit))
}

func (h *ConsentHandler) HandleMine(w http.ResponseWriter, r *http.Request) {
	page, limit, err := pageParams(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	items, total, pg, err := h.ConsentService.Mine(r.Context(), principal(r), page, limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.WritePage(w, newConsentViews(items), httpx.NewPageMeta(total, pg.Page, pg.Limit))
}

func (h *ConsentHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	v, err := h.ConsentService.Get(r.Context(), principal(r), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.WriteOK(w, http.StatusOK, "", newConsentView(v))
}

// updateConsentRequest accepts the identity fields only so that the service
// can reject them with a 403 instead of the decoder failing with a 400.
type updateConsentRequest struct {
	SubjectID    *string `json:"titularId"`
	TypeID       *string `json:"tipoConsentimentoId"`
	LegalBasisID *string `json:"baseLegalId"`

	DataClassification []string   `json:"classificacaoDados"`
	Channel            *string    `json:"canalColeta"`
	RequestedDocuments []string   `json:"documentosSolicitados"`
	ProofAttachment    *string    `json:"anexoProva"`
	StorageLocation    *string    `json:"localArmazenamento"`
	ExpiresAt          *time.Time `json:"dataExpiracao"`
}

func (h *ConsentHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	var req updateConsentRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	v, err := h.ConsentService.Update(r.Context(), principal(r), r.PathValue("id"), service.UpdateConsentInput{
		SubjectID:          req.SubjectID,
		TypeID:             req.TypeID,
		LegalBasisID:       req.LegalBasisID,
		DataClassification: req.DataClassification,
		Channel:            req.Channel,
		RequestedDocuments: req.RequestedDocuments,
		ProofAttachment:    req.ProofAttachment,
		StorageLocation:    req.StorageLocation,
		ExpiresAt:          req.ExpiresAt,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.WriteOK(w, http.StatusOK, "Consentimento atualizado", newConsentView(v))
}

type revokeRequest struct {
	Reason string `json:"motivo"`
}

// HandleRevoke serves DELETE /consentimentos/{id}. The record is kept with
// status REVOGADO; hard deletion lives under /permanente.
func (h *ConsentHandler) HandleRevoke(w http.ResponseWriter, r *http.Request) {
	var req revokeRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	v, err := h.ConsentService.Revoke(r.Context(), principal(r), r.PathValue("id"), req.Reason)
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.WriteOK(w, http.StatusOK, "Consentimento revogado com sucesso", newConsentView(v))
}

func (h *ConsentHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := h.ConsentService.Delete(r.Context(), principal(r), id); err != nil {
		writeError(w, r, err)
		return
	}
	slogx.FromContext(r.Context()).Warn("consent permanently deleted", "consent_id", id)
	httpx.WriteOK(w, http.StatusOK, "Consentimento removido permanentemente", nil)
}

var exportHeader = []string{"id", "titular_nome", "titular_cpf", "tipo_consentimento", "base_legal", "data_coleta", "status"}

// HandleExport streams every consent of the tenant as csv or json.
func (h *ConsentHandler) HandleExport(w http.ResponseWriter, r *http.Request) {
	format := strings.ToLower(r.PathValue("formato"))
	if format != "csv" && format != "json" {
		writeError(w, r, service.ErrExportFormat)
		return
	}

	items, err := h.ConsentService.Export(r.Context(), principal(r))
	if err != nil {
		writeError(w, r, err)
		return
	}

	filename := fmt.Sprintf("consentimentos_export_%s.%s", h.now().Format(time.DateOnly), format)
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)

	if format == "json" {
		httpx.WriteJSON(w, http.StatusOK, newConsentViews(items))
		return
	}

	httpx.NoCache(w)
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	cw := csv.NewWriter(w)
	_ = cw.Write(exportHeader)
	for _, v := range items {
		_ = cw.Write(exportRow(v))
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		slogx.FromContext(r.Context()).Error("csv export failed", "err", err)
	}
}

func exportRow(v domain.ConsentView) []string {
	typeName := v.TypeName
	if typeName == "" {
		typeName = v.TypeID
	}
	return []string{
		v.ID,
		v.SubjectName,
		domain.MaskCPF(v.SubjectCPF),
		typeName,
		v.LegalBasisCode,
		v.CollectedAt.Format(time.RFC3339),
		string(v.Status),
	}
}

func (h *ConsentHandler) HandleCountActive(w http.ResponseWriter, r *http.Request) {
	n, err := h.ConsentService.CountActive(r.Context(), principal(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.WriteOK(w, http.StatusOK, "", map[string]int{"total": n})
}
