package http

import (
	"net/http"

	"github.com/adrisa007/guardiao/internal/guardiao/service"
	"github.com/adrisa007/guardiao/pkg/httpx"
	"github.com/adrisa007/guardiao/pkg/slogx"
)

type MFAHandler struct {
	MFAService *service.MFAService
}

type mfaCodeRequest struct {
	Code string `json:"code"`
}

func decodeCode(w http.ResponseWriter, r *http.Request) (string, error) {
	var req mfaCodeRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		return "", err
	}
	if req.Code == "" {
		return "", service.ErrMFACodeRequired
	}
	return req.Code, nil
}

// HandleEnable starts enrolment and returns the secret, QR code and backup
// codes. The factor stays pending until verified.
func (h *MFAHandler) HandleEnable(w http.ResponseWriter, r *http.Request) {
	caller, _ := httpx.CallerFromContext(r.Context())
	enr, err := h.MFAService.Enable(r.Context(), caller.UserID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.WriteOK(w, http.StatusOK, "Escaneie o QR Code no seu app autenticador", enr)
}

func (h *MFAHandler) HandleVerify(w http.ResponseWriter, r *http.Request) {
	code, err := decodeCode(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	caller, _ := httpx.CallerFromContext(r.Context())
	if err := h.MFAService.Verify(r.Context(), caller.UserID, code); err != nil {
		writeError(w, r, err)
		return
	}
	slogx.FromContext(r.Context()).Info("mfa activated")
	httpx.WriteOK(w, http.StatusOK, "Autenticação de dois fatores ativada com sucesso", nil)
}

func (h *MFAHandler) HandleDisable(w http.ResponseWriter, r *http.Request) {
	code, err := decodeCode(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	caller, _ := httpx.CallerFromContext(r.Context())
	if err := h.MFAService.Disable(r.Context(), caller.UserID, code); err != nil {
		writeError(w, r, err)
		return
	}
	slogx.FromContext(r.Context()).Info("mfa disabled")
	httpx.WriteOK(w, http.StatusOK, "Autenticação de dois fatores desativada", nil)
}

func (h *MFAHandler) HandleBackupCodes(w http.ResponseWriter, r *http.Request) {
	code, err := decodeCode(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	caller, _ := httpx.CallerFromContext(r.Context())
	codes, err := h.MFAService.RegenerateBackupCodes(r.Context(), caller.UserID, code)
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.WriteOK(w, http.StatusOK, "Novos códigos de backup gerados",
		map[string]any{"backupCodes": codes})
}
