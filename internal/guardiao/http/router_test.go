package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/adrisa007/guardiao/internal/guardiao/domain"
	"github.com/adrisa007/guardiao/internal/guardiao/metrics"
	"github.com/adrisa007/guardiao/internal/guardiao/refresh"
	"github.com/adrisa007/guardiao/internal/guardiao/service"
	"github.com/adrisa007/guardiao/internal/guardiao/store/drivers/sqlite"
	"github.com/adrisa007/guardiao/pkg/cryptox"
	"github.com/adrisa007/guardiao/pkg/idx"
	"github.com/adrisa007/guardiao/pkg/jwtx"
)

const (
	testPassword   = "Segura@123"
	testSecret     = "0123456789abcdef0123456789abcdef"
	testLegalBasis = "01J0000000000000000000A701"
)

type testEnv struct {
	router *Router
	store  *sqlite.Store
	hasher *cryptox.Hasher
	tenant string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	st, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.ApplyMigrations())

	signer, verifier, err := jwtx.NewPair(jwtx.AlgHS256, "test", []byte(testSecret), jwtx.VerifyOptions{Issuer: "guardiao-test"})
	require.NoError(t, err)

	reg := prometheus.NewRegistry()
	collector := metrics.NewCollector(reg)
	hasher := cryptox.NewHasher(4, 4)
	tokens := &service.TokenService{
		Signer:   signer,
		Registry: refresh.NewMemoryRegistry(),
		Users:    st.Users(),
		Issuer:   "guardiao-test",
		Metrics:  collector,
	}

	r := NewRouter(signer, verifier, "test", st, slog.New(slog.NewTextHandler(io.Discard, nil)))
	r.Metrics = collector
	r.Gatherer = reg
	r.AuthService = &service.AuthService{
		Store:          st,
		Hasher:         hasher,
		Tokens:         tokens,
		Metrics:        collector,
		BootstrapToken: "bootstrap-secret",
	}
	r.MFAService = &service.MFAService{Store: st, Metrics: collector}
	r.ConsentService = &service.ConsentService{Store: st, Metrics: collector}
	r.CatalogService = &service.CatalogService{Store: st}
	r.DSARService = &service.DSARService{Store: st, Metrics: collector, AttachmentsDir: t.TempDir()}
	r.AuditLogService = &service.AuditLogService{Store: st}
	r.ApplyRoutes()

	return &testEnv{router: r, store: st, hasher: hasher, tenant: uuid.NewString()}
}

func (e *testEnv) user(t *testing.T, email string, role domain.Role) domain.User {
	t.Helper()

	hash, err := e.hasher.Hash(context.Background(), testPassword)
	require.NoError(t, err)
	until := time.Now().Add(service.DefaultTermValidity)
	u := domain.User{
		ID:             idx.NewString(),
		Name:           "Ana Lima",
		Email:          email,
		PasswordHash:   hash,
		Role:           role,
		ControllerID:   e.tenant,
		Active:         true,
		TermSigned:     true,
		TermValidUntil: &until,
	}
	require.NoError(t, e.store.Users().CreateUser(context.Background(), u))
	return u
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()

	var rd io.Reader = http.NoBody
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) login(t *testing.T, email string) loginResponse {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/auth/login", "", map[string]string{"email": email, "password": testPassword})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var res loginResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	return res
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

type envelope[T any] struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    T      `json:"data"`
	Meta    struct {
		Total int `json:"total"`
		Page  int `json:"page"`
		Limit int `json:"limit"`
	} `json:"meta"`
}

type errorBody struct {
	Success          bool     `json:"success"`
	StatusCode       int      `json:"statusCode"`
	Path             string   `json:"path"`
	Method           string   `json:"method"`
	Message          string   `json:"message"`
	Error            string   `json:"error"`
	ValidationErrors []string `json:"validationErrors"`
	RequiredRoles    []string `json:"requiredRoles"`
	UserRole         string   `json:"userRole"`
}

func refreshCookieOf(t *testing.T, rec *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range rec.Result().Cookies() {
		if c.Name == refreshCookie {
			return c
		}
	}
	t.Fatal("refresh cookie not set")
	return nil
}

func TestLoginRefreshLogout(t *testing.T) {
	e := newTestEnv(t)
	u := e.user(t, "ana@example.com", domain.RoleDPO)

	rec := e.do(t, http.MethodPost, "/auth/login", "", map[string]string{"email": "ANA@example.com ", "password": testPassword})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	res := decode[loginResponse](t, rec)
	require.True(t, res.Success)
	require.Equal(t, "Bearer", res.TokenType)
	require.EqualValues(t, 900, res.ExpiresIn)
	require.Equal(t, u.ID, res.User.ID)
	require.Equal(t, "DPO", res.User.Role)
	require.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	cookie := refreshCookieOf(t, rec)
	require.Equal(t, res.RefreshToken, cookie.Value)
	require.True(t, cookie.HttpOnly)
	require.Equal(t, http.SameSiteStrictMode, cookie.SameSite)
	require.Equal(t, "/", cookie.Path)
	require.Equal(t, 7*24*3600, cookie.MaxAge)

	t.Run("me", func(t *testing.T) {
		rec := e.do(t, http.MethodGet, "/auth/me", res.AccessToken, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		me := decode[envelope[userView]](t, rec)
		require.Equal(t, "ana@example.com", me.Data.Email)
		require.True(t, me.Data.TermSigned)
	})

	t.Run("refresh from cookie rotates", func(t *testing.T) {
		rec := e.do(t, http.MethodPost, "/auth/refresh", "", nil, cookie)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		rotated := decode[refreshResponse](t, rec)
		require.NotEqual(t, cookie.Value, rotated.RefreshToken)

		rec = e.do(t, http.MethodPost, "/auth/refresh", "", map[string]string{"refresh_token": cookie.Value})
		require.Equal(t, http.StatusUnauthorized, rec.Code)
		require.Equal(t, -1, refreshCookieOf(t, rec).MaxAge)

		rec = e.do(t, http.MethodPost, "/auth/refresh", "", map[string]string{"refreshToken": rotated.RefreshToken})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		cookie = refreshCookieOf(t, rec)
	})

	t.Run("logout", func(t *testing.T) {
		rec := e.do(t, http.MethodPost, "/auth/logout", res.AccessToken, nil, cookie)
		require.Equal(t, http.StatusOK, rec.Code)
		require.Equal(t, -1, refreshCookieOf(t, rec).MaxAge)

		rec = e.do(t, http.MethodPost, "/auth/refresh", "", nil, cookie)
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestLoginErrors(t *testing.T) {
	e := newTestEnv(t)
	e.user(t, "ana@example.com", domain.RoleDPO)

	rec := e.do(t, http.MethodPost, "/auth/login", "", map[string]string{"email": "ana@example.com", "password": "Errada@123"})
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	body := decode[errorBody](t, rec)
	require.False(t, body.Success)
	require.Equal(t, http.StatusUnauthorized, body.StatusCode)
	require.Equal(t, "Credenciais inválidas", body.Message)
	require.Equal(t, "/auth/login", body.Path)
	require.Equal(t, http.MethodPost, body.Method)

	rec = e.do(t, http.MethodPost, "/auth/login", "", map[string]string{"email": "ninguem@example.com", "password": testPassword})
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, "Credenciais inválidas", decode[errorBody](t, rec).Message)

	rec = e.do(t, http.MethodPost, "/auth/login", "", map[string]string{"email": "ana@example.com", "senha": testPassword})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, decode[errorBody](t, rec).ValidationErrors, "property senha should not exist")
}

func TestAuthenticationAndRoles(t *testing.T) {
	e := newTestEnv(t)
	e.user(t, "colab@example.com", domain.RoleColaborador)
	token := e.login(t, "colab@example.com").AccessToken

	rec := e.do(t, http.MethodGet, "/auditoria", "", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, "Token de acesso ausente", decode[errorBody](t, rec).Message)
	require.NotEmpty(t, rec.Header().Get("WWW-Authenticate"))

	rec = e.do(t, http.MethodGet, "/auditoria", "not-a-jwt", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = e.do(t, http.MethodGet, "/auditoria", token, nil)
	require.Equal(t, http.StatusForbidden, rec.Code)
	body := decode[errorBody](t, rec)
	require.Equal(t, "INSUFFICIENT_ROLE", body.Error)
	require.Equal(t, []string{"ROOT", "DPO"}, body.RequiredRoles)
	require.Equal(t, "COLABORADOR", body.UserRole)

	rec = e.do(t, http.MethodGet, "/auth/roles", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, []string{"ROOT", "DPO", "COLABORADOR", "PRESTADOR", "TITULAR"}, decode[envelope[[]string]](t, rec).Data)
}

func TestBlockedUserLosesAccess(t *testing.T) {
	e := newTestEnv(t)
	e.user(t, "dpo@example.com", domain.RoleDPO)
	colab := e.user(t, "colab@example.com", domain.RoleColaborador)
	dpoToken := e.login(t, "dpo@example.com").AccessToken
	colabToken := e.login(t, "colab@example.com").AccessToken

	rec := e.do(t, http.MethodPatch, "/auth/users/"+colab.ID+"/status", dpoToken, map[string]bool{"bloqueado": true})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.True(t, decode[envelope[userView]](t, rec).Data.Blocked)

	// The access token is still within its lifetime but the account is
	// reloaded on every request.
	rec = e.do(t, http.MethodGet, "/auth/me", colabToken, nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, "Conta desativada ou bloqueada", decode[errorBody](t, rec).Message)

	rec = e.do(t, http.MethodPatch, "/auth/users/"+colab.ID+"/status", dpoToken, map[string]any{})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRegisterAndSignTerm(t *testing.T) {
	e := newTestEnv(t)
	e.user(t, "dpo@example.com", domain.RoleDPO)
	token := e.login(t, "dpo@example.com").AccessToken

	rec := e.do(t, http.MethodPost, "/auth/register", token, map[string]string{
		"nome":                 "Carlos Pereira",
		"email":                "carlos@example.com",
		"password":             testPassword,
		"passwordConfirmation": testPassword,
		"tipo":                 "COLABORADOR",
		"controladoraId":       e.tenant,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[envelope[userView]](t, rec)
	require.Equal(t, "Usuário criado com sucesso", created.Message)
	require.False(t, created.Data.TermSigned)

	rec = e.do(t, http.MethodPost, "/auth/register", token, map[string]string{
		"nome":     "X",
		"email":    "invalido",
		"password": "fraca",
		"tipo":     "ADMIN",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.GreaterOrEqual(t, len(decode[errorBody](t, rec).ValidationErrors), 4)

	login := map[string]string{"email": "carlos@example.com", "password": testPassword}
	rec = e.do(t, http.MethodPost, "/auth/login", "", login)
	require.Equal(t, http.StatusForbidden, rec.Code)
	require.Equal(t, "Termo de confidencialidade não assinado", decode[errorBody](t, rec).Message)

	rec = e.do(t, http.MethodPost, "/auth/termo", "", login)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = e.do(t, http.MethodPost, "/auth/login", "", login)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestChangePassword(t *testing.T) {
	e := newTestEnv(t)
	e.user(t, "ana@example.com", domain.RoleDPO)
	token := e.login(t, "ana@example.com").AccessToken

	rec := e.do(t, http.MethodPatch, "/auth/me/password", token, map[string]string{
		"currentPassword":      "Errada@123",
		"password":             "Nova@Senha1",
		"passwordConfirmation": "Nova@Senha1",
	})
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, "Senha atual incorreta", decode[errorBody](t, rec).Message)

	rec = e.do(t, http.MethodPatch, "/auth/me/password", token, map[string]string{
		"currentPassword":      testPassword,
		"password":             "Nova@Senha1",
		"passwordConfirmation": "Nova@Senha1",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Equal(t, "Senha alterada com sucesso", decode[envelope[any]](t, rec).Message)

	rec = e.do(t, http.MethodPost, "/auth/login", "", map[string]string{"email": "ana@example.com", "password": "Nova@Senha1"})
	require.Equal(t, http.StatusOK, rec.Code)

	token = decode[loginResponse](t, rec).AccessToken
	rec = e.do(t, http.MethodPatch, "/auth/me/password", token, map[string]string{
		"currentPassword": "Nova@Senha1",
		"newPassword":     "Outra@Senha2",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = e.do(t, http.MethodPost, "/auth/login", "", map[string]string{"email": "ana@example.com", "password": "Outra@Senha2"})
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestBootstrap(t *testing.T) {
	e := newTestEnv(t)
	in := map[string]string{"nome": "Administrador", "email": "root@example.com", "password": testPassword}

	rec := e.do(t, http.MethodPost, "/bootstrap", "", in)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/bootstrap", bytes.NewReader(mustJSON(t, in)))
	req.Header.Set("X-Bootstrap-Token", "bootstrap-secret")
	rec = httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	require.Equal(t, "ROOT", decode[envelope[userView]](t, rec).Data.Role)

	res := e.login(t, "root@example.com")
	require.Equal(t, "ROOT", res.User.Role)
}

func TestHealthAndMetrics(t *testing.T) {
	e := newTestEnv(t)

	rec := e.do(t, http.MethodGet, "/livez", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "ok", decode[healthResponse](t, rec).Status)
	require.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))

	rec = e.do(t, http.MethodGet, "/readyz", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	ready := decode[healthResponse](t, rec)
	require.Equal(t, "ok", ready.Checks.Database)
	require.Equal(t, "ok", ready.Checks.Signer)

	rec = e.do(t, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `route="GET /livez"`)

	require.NoError(t, e.store.Close())
	rec = e.do(t, http.MethodGet, "/readyz", "", nil)
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	require.Equal(t, "degraded", decode[healthResponse](t, rec).Status)
}

func mustJSON(t *testing.T, v any) []byte {
	t.Helper()
	raw, err := json.Marshal(v)
	require.NoError(t, err)
	return raw
}
