package http

import (
	"net/http"

	"github.com/adrisa007/guardiao/internal/guardiao/service"
	"github.com/adrisa007/guardiao/pkg/httpx"
)

type CatalogHandler struct {
	CatalogService *service.CatalogService
}

type createSubjectRequest struct {
	Name         string `json:"nome"`
	CPF          string `json:"cpf"`
	Email        string `json:"email"`
	Phone        string `json:"telefone"`
	ControllerID string `json:"controladoraId"`
	UserID       string `json:"usuarioId"`
}

func (h *CatalogHandler) HandleCreateSubject(w http.ResponseWriter, r *http.Request) {
	var req createSubjectRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	sub, err := h.CatalogService.CreateSubject(r.Context(), principal(r), service.CreateSubjectInput(req))
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.WriteOK(w, http.StatusCreated, "Titular cadastrado com sucesso", newSubjectView(sub))
}

func (h *CatalogHandler) HandleGetSubject(w http.ResponseWriter, r *http.Request) {
	sub, err := h.CatalogService.GetSubject(r.Context(), principal(r), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.WriteOK(w, http.StatusOK, "", newSubjectView(sub))
}

type createConsentTypeRequest struct {
	ControllerID          string `json:"controladoraId"`
	Code                  string `json:"codigo"`
	Name                  string `json:"nome"`
	Description           string `json:"descricao"`
	RequiresPhysicalProof bool   `json:"exigeComprovanteFisico"`
}

func (h *CatalogHandler) HandleCreateConsentType(w http.ResponseWriter, r *http.Request) {
	var req createConsentTypeRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	ct, err := h.CatalogService.CreateConsentType(r.Context(), principal(r), service.CreateConsentTypeInput(req))
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.WriteOK(w, http.StatusCreated, "Tipo de consentimento criado", newConsentTypeView(ct))
}

// HandleListConsentTypes lists the caller's tenant; ROOT may pick one with
// ?controladoraId=.
func (h *CatalogHandler) HandleListConsentTypes(w http.ResponseWriter, r *http.Request) {
	types, err := h.CatalogService.ListConsentTypes(r.Context(), principal(r), r.URL.Query().Get("controladoraId"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]consentTypeView, len(types))
	for i, t := range types {
		out[i] = newConsentTypeView(t)
	}
	httpx.WriteOK(w, http.StatusOK, "", out)
}

func (h *CatalogHandler) HandleListLegalBases(w http.ResponseWriter, r *http.Request) {
	bases, err := h.CatalogService.ListLegalBases(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]legalBasisView, len(bases))
	for i, b := range bases {
		out[i] = legalBasisView(b)
	}
	httpx.WriteOK(w, http.StatusOK, "", out)
}
