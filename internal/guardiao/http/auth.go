package http

import (
	"net/http"
	"time"

	"github.com/adrisa007/guardiao/internal/guardiao/domain"
	"github.com/adrisa007/guardiao/internal/guardiao/service"
	"github.com/adrisa007/guardiao/pkg/httpx"
	"github.com/adrisa007/guardiao/pkg/slogx"
)

const refreshCookie = "refresh_token"

type AuthHandler struct {
	AuthService  *service.AuthService
	CookieSecure bool
	RefreshTTL   time.Duration
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginUser struct {
	ID           string `json:"id"`
	Name         string `json:"nome"`
	Email        string `json:"email"`
	Role         string `json:"tipo"`
	ControllerID string `json:"controladoraId,omitempty"`
	MFAEnabled   bool   `json:"mfaEnabled"`
}

type loginResponse struct {
	Success      bool      `json:"success"`
	Message      string    `json:"message"`
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	TokenType    string    `json:"token_type"`
	ExpiresIn    int64     `json:"expires_in"`
	User         loginUser `json:"user"`
}

type mfaRequiredResponse struct {
	Success     bool   `json:"success"`
	MFARequired bool   `json:"mfaRequired"`
	Message     string `json:"message"`
	SessionID   string `json:"sessionId"`
}

// HandleLogin authenticates with e-mail and password. Accounts with MFA
// get a challenge session instead of tokens.
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	res, err := h.AuthService.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if res.MFARequired {
		httpx.WriteJSON(w, http.StatusOK, mfaRequiredResponse{
			Success:     true,
			MFARequired: true,
			Message:     "Código MFA necessário",
			SessionID:   res.MFASessionID,
		})
		return
	}
	h.writeLogin(w, res)
}

type mfaChallengeRequest struct {
	SessionID string `json:"sessionId"`
	Code      string `json:"code"`
}

// HandleMFAChallenge is the second login step for accounts with MFA.
func (h *AuthHandler) HandleMFAChallenge(w http.ResponseWriter, r *http.Request) {
	var req mfaChallengeRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.SessionID == "" {
		writeError(w, r, service.ErrMFASessionInvalid)
		return
	}

	res, err := h.AuthService.CompleteMFA(r.Context(), req.SessionID, req.Code)
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.writeLogin(w, res)
}

func (h *AuthHandler) writeLogin(w http.ResponseWriter, res *domain.LoginResult) {
	h.setRefreshCookie(w, res.Tokens.RefreshToken)
	httpx.WriteJSON(w, http.StatusOK, loginResponse{
		Success:      true,
		Message:      "Login realizado com sucesso",
		AccessToken:  res.Tokens.AccessToken,
		RefreshToken: res.Tokens.RefreshToken,
		TokenType:    res.Tokens.TokenType,
		ExpiresIn:    int64(res.Tokens.ExpiresIn / time.Second),
		User: loginUser{
			ID:           res.User.ID,
			Name:         res.User.Name,
			Email:        res.User.Email,
			Role:         string(res.User.Role),
			ControllerID: res.User.ControllerID,
			MFAEnabled:   res.User.MFAState() == domain.MFAActive,
		},
	})
}

// refreshRequest takes the token as refresh_token or refreshToken.
type refreshRequest struct {
	RefreshToken      string `json:"refresh_token"`
	RefreshTokenCamel string `json:"refreshToken"`
}

type refreshResponse struct {
	Success      bool   `json:"success"`
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
}

// HandleRefresh rotates the refresh token taken from the body or, failing
// that, the cookie.
func (h *AuthHandler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	token, err := h.refreshToken(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if token == "" {
		writeError(w, r, httpx.Unauthorized("Refresh token não fornecido"))
		return
	}

	pair, err := h.AuthService.Refresh(r.Context(), token)
	if err != nil {
		h.clearRefreshCookie(w)
		writeError(w, r, err)
		return
	}
	h.setRefreshCookie(w, pair.RefreshToken)
	httpx.WriteJSON(w, http.StatusOK, refreshResponse{
		Success:      true,
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		TokenType:    pair.TokenType,
		ExpiresIn:    int64(pair.ExpiresIn / time.Second),
	})
}

// HandleLogout revokes the presented refresh token and clears the cookie.
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	token, err := h.refreshToken(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	caller, _ := httpx.CallerFromContext(r.Context())
	if err := h.AuthService.Logout(r.Context(), caller.UserID, token); err != nil {
		writeError(w, r, err)
		return
	}
	h.clearRefreshCookie(w)
	httpx.WriteOK(w, http.StatusOK, "Logout realizado com sucesso", nil)
}

func (h *AuthHandler) refreshToken(w http.ResponseWriter, r *http.Request) (string, error) {
	var req refreshRequest
	if err := decodeOptionalJSON(w, r, &req); err != nil {
		return "", err
	}
	if req.RefreshToken != "" {
		return req.RefreshToken, nil
	}
	if req.RefreshTokenCamel != "" {
		return req.RefreshTokenCamel, nil
	}
	if c, err := r.Cookie(refreshCookie); err == nil {
		return c.Value, nil
	}
	return "", nil
}

func (h *AuthHandler) setRefreshCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     refreshCookie,
		Value:    token,
		Path:     "/",
		MaxAge:   int(h.RefreshTTL / time.Second),
		HttpOnly: true,
		Secure:   h.CookieSecure,
		SameSite: http.SameSiteStrictMode,
	})
}

func (h *AuthHandler) clearRefreshCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     refreshCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.CookieSecure,
		SameSite: http.SameSiteStrictMode,
	})
}

type registerRequest struct {
	Name                 string `json:"nome"`
	Email                string `json:"email"`
	Password             string `json:"password"`
	PasswordConfirmation string `json:"passwordConfirmation"`
	Role                 string `json:"tipo"`
	ControllerID         string `json:"controladoraId"`
	CPF                  string `json:"cpf"`
	Department           string `json:"departamento"`
}

func (h *AuthHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	u, err := h.AuthService.Register(r.Context(), principal(r), service.RegisterInput{
		Name:                 req.Name,
		Email:                req.Email,
		Password:             req.Password,
		PasswordConfirmation: req.PasswordConfirmation,
		Role:                 req.Role,
		ControllerID:         req.ControllerID,
		CPF:                  req.CPF,
		Department:           req.Department,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	slogx.FromContext(r.Context()).Info("user registered", "new_user_id", u.ID, "role", u.Role)
	httpx.WriteOK(w, http.StatusCreated, "Usuário criado com sucesso", newUserView(u))
}

// HandleSignTerm records acceptance of the confidentiality term. It takes
// credentials because users without a signed term cannot log in.
func (h *AuthHandler) HandleSignTerm(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	until, err := h.AuthService.SignTerm(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.WriteOK(w, http.StatusOK, "Termo de confidencialidade assinado",
		map[string]any{"termoValidoAte": until})
}

func (h *AuthHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	caller, _ := httpx.CallerFromContext(r.Context())
	u, err := h.AuthService.Me(r.Context(), caller.UserID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.WriteOK(w, http.StatusOK, "", newUserView(u))
}

// changePasswordRequest accepts {currentPassword, password,
// passwordConfirmation} or the shorter {currentPassword, newPassword}.
type changePasswordRequest struct {
	CurrentPassword      string `json:"currentPassword"`
	Password             string `json:"password"`
	PasswordConfirmation string `json:"passwordConfirmation"`
	NewPassword          string `json:"newPassword"`
}

func (h *AuthHandler) HandleChangePassword(w http.ResponseWriter, r *http.Request) {
	var req changePasswordRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	next, confirmation := req.Password, req.PasswordConfirmation
	if next == "" && req.NewPassword != "" {
		next = req.NewPassword
		if confirmation == "" {
			confirmation = req.NewPassword
		}
	}
	caller, _ := httpx.CallerFromContext(r.Context())
	err := h.AuthService.ChangePassword(r.Context(), caller.UserID,
		req.CurrentPassword, next, confirmation)
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.clearRefreshCookie(w)
	httpx.WriteOK(w, http.StatusOK, "Senha alterada com sucesso", nil)
}

type statusRequest struct {
	Active  *bool `json:"ativo"`
	Blocked *bool `json:"bloqueado"`
}

func (h *AuthHandler) HandleSetStatus(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.Active == nil && req.Blocked == nil {
		writeError(w, r, httpx.BadRequest("Informe ativo ou bloqueado"))
		return
	}

	u, err := h.AuthService.SetStatus(r.Context(), principal(r), r.PathValue("id"),
		domain.UserStatusUpdate{Active: req.Active, Blocked: req.Blocked})
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.WriteOK(w, http.StatusOK, "Status do usuário atualizado", newUserView(u))
}

func (h *AuthHandler) HandleRoles(w http.ResponseWriter, _ *http.Request) {
	names := make([]string, len(domain.Roles))
	for i, role := range domain.Roles {
		names[i] = string(role)
	}
	httpx.WriteOK(w, http.StatusOK, "", names)
}

type bootstrapRequest struct {
	Name     string `json:"nome"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// HandleBootstrap creates the first ROOT account. The one-time token comes
// in the X-Bootstrap-Token header.
func (h *AuthHandler) HandleBootstrap(w http.ResponseWriter, r *http.Request) {
	l := slogx.FromContext(r.Context())

	token := r.Header.Get("X-Bootstrap-Token")
	if token == "" {
		writeError(w, r, httpx.Unauthorized("Cabeçalho X-Bootstrap-Token obrigatório"))
		return
	}
	var req bootstrapRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	u, err := h.AuthService.Bootstrap(r.Context(), token, service.BootstrapInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	l.Info("bootstrap complete", "root_user_id", u.ID)
	httpx.WriteOK(w, http.StatusCreated, "Plataforma inicializada", newUserView(u))
}
