package http

import (
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/adrisa007/guardiao/internal/guardiao/service"
	"github.com/adrisa007/guardiao/pkg/httpx"
	"github.com/adrisa007/guardiao/pkg/slogx"
)

type DSARHandler struct {
	DSARService *service.DSARService
	now         func() time.Time
}

type createDSARRequest struct {
	Type        string `json:"tipo"`
	Name        string `json:"nome"`
	CPF         string `json:"cpf"`
	Email       string `json:"email"`
	Phone       string `json:"telefone"`
	Description string `json:"descricao"`
	Format      string `json:"formato"`
}

type createDSARResponse struct {
	Success      bool      `json:"success"`
	Message      string    `json:"message"`
	Protocol     string    `json:"protocolo"`
	LegalTerm    string    `json:"prazoLegal"`
	ExpectedDate time.Time `json:"dataPrevistaResposta"`
	Data         dsarView  `json:"data"`
}

// HandleCreate files a request. Anyone may call it; a bearer token, when
// present, links the ticket to the caller.
func (h *DSARHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req createDSARRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	d, err := h.DSARService.Create(r.Context(), principal(r), service.CreateDSARInput(req))
	if err != nil {
		writeError(w, r, err)
		return
	}
	slogx.FromContext(r.Context()).Info("dsar filed", "protocolo", d.Protocol, "tipo", d.Type)
	httpx.WriteJSON(w, http.StatusCreated, createDSARResponse{
		Success:      true,
		Message:      "Solicitação recebida com sucesso! Você receberá atualizações por e-mail.",
		Protocol:     d.Protocol,
		LegalTerm:    "15 dias corridos",
		ExpectedDate: d.DueAt,
		Data:         newDSARView(d, h.now()),
	})
}

func (h *DSARHandler) HandleMine(w http.ResponseWriter, r *http.Request) {
	page, limit, err := pageParams(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	items, total, pg, err := h.DSARService.Mine(r.Context(), principal(r), page, limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.WritePage(w, newDSARViews(items, h.now()), httpx.NewPageMeta(total, pg.Page, pg.Limit))
}

// HandleList serves the DPO queue: GET /dsar?status=&tipo=&cpf=&page=&limit=
func (h *DSARHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	in := service.ListDSARsInput{
		Status: q.Get("status"),
		Type:   q.Get("tipo"),
		CPF:    q.Get("cpf"),
	}
	var err error
	if in.Page, in.Limit, err = pageParams(r); err != nil {
		writeError(w, r, err)
		return
	}
	items, total, pg, err := h.DSARService.List(r.Context(), principal(r), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.WritePage(w, newDSARViews(items, h.now()), httpx.NewPageMeta(total, pg.Page, pg.Limit))
}

func (h *DSARHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	d, err := h.DSARService.Get(r.Context(), principal(r), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.WriteOK(w, http.StatusOK, "", newDSARView(d, h.now()))
}

type answerDSARRequest struct {
	Status         string `json:"status"`
	DPOResponse    string `json:"respostaDpo"`
	DenialReason   string `json:"motivoIndeferimento"`
	AttachmentURL  string `json:"anexoUrl"`
	AttachmentPath string `json:"anexoPath"`
}

func (h *DSARHandler) HandleAnswer(w http.ResponseWriter, r *http.Request) {
	var req answerDSARRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	d, err := h.DSARService.Answer(r.Context(), principal(r), r.PathValue("id"), service.AnswerDSARInput(req))
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.WriteOK(w, http.StatusOK, "Resposta enviada com sucesso! Titular notificado por e-mail.", newDSARView(d, h.now()))
}

// HandleResponse downloads the response document, or redirects when it is
// hosted elsewhere.
func (h *DSARHandler) HandleResponse(w http.ResponseWriter, r *http.Request) {
	att, err := h.DSARService.Attachment(r.Context(), principal(r), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if att.RedirectURL != "" {
		http.Redirect(w, r, att.RedirectURL, http.StatusFound)
		return
	}
	defer att.Body.Close()

	httpx.NoCache(w)
	w.Header().Set("Content-Type", att.ContentType)
	w.Header().Set("Content-Length", strconv.FormatInt(att.Size, 10))
	w.Header().Set("Content-Disposition", `attachment; filename="`+att.Name+`"`)
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, att.Body); err != nil {
		slogx.FromContext(r.Context()).Warn("attachment download interrupted", "err", err)
	}
}
