package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/adrisa007/guardiao/internal/guardiao/authz"
	"github.com/adrisa007/guardiao/internal/guardiao/domain"
	"github.com/adrisa007/guardiao/internal/guardiao/metrics"
	"github.com/adrisa007/guardiao/internal/guardiao/service"
	"github.com/adrisa007/guardiao/internal/guardiao/store"
	"github.com/adrisa007/guardiao/pkg/httpx"
	"github.com/adrisa007/guardiao/pkg/jwtx"
	"github.com/adrisa007/guardiao/pkg/slogx"
)

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	signer       jwtx.Signer
	verifier     jwtx.Verifier
	buildVersion string
	startTime    time.Time
	logger       *slog.Logger
	store        store.Store

	// Optional: when nil, routes are not instrumented and /metrics is absent.
	Metrics  *metrics.Collector
	Gatherer prometheus.Gatherer

	// Cookie settings for the refresh token.
	CookieSecure bool
	RefreshTTL   time.Duration

	AuthService     *service.AuthService
	MFAService      *service.MFAService
	ConsentService  *service.ConsentService
	CatalogService  *service.CatalogService
	DSARService     *service.DSARService
	AuditLogService *service.AuditLogService

	Now func() time.Time
}

func NewRouter(
	signer jwtx.Signer,
	verifier jwtx.Verifier,
	buildVersion string,
	st store.Store,
	logger *slog.Logger,
) *Router {
	r := &Router{
		Mux:          http.NewServeMux(),
		signer:       signer,
		verifier:     verifier,
		buildVersion: buildVersion,
		startTime:    time.Now(),
		store:        st,
		logger:       logger,
		RefreshTTL:   7 * 24 * time.Hour,
	}

	// Set default middleware chain
	r.middlewares = []httpx.Middleware{
		httpx.Recovery(),
		httpx.SecurityHeaders(),
		slogx.HTTPMiddleware(r.logger),
		requestMeta,
	}

	return r
}

func (r *Router) ApplyRoutes() {
	r.registerAuth()
	r.registerMFA()
	r.registerCatalog()
	r.registerConsents()
	r.registerDSAR()
	r.registerAudit()
	r.registerSystem()
}

// ServeHTTP implements http.Handler for Router and applies the global middleware chain.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

// handle registers h under pattern. The metrics middleware runs after the
// mux so that the route pattern is known.
func (r *Router) handle(pattern string, h http.HandlerFunc, mws ...httpx.Middleware) {
	if r.Metrics != nil {
		mws = append([]httpx.Middleware{r.Metrics.Instrument}, mws...)
	}
	r.Mux.Handle(pattern, httpx.Chain(h, mws...))
}

func (r *Router) authn() httpx.Authn {
	return httpx.Authn{
		Verifier: r.verifier,
		Resolver: r.AuthService,
		OnError:  writeError,
	}
}

func (r *Router) now() time.Time {
	if r.Now != nil {
		return r.Now().UTC()
	}
	return time.Now().UTC()
}

func roles(rs ...domain.Role) httpx.Middleware {
	names := make([]string, len(rs))
	for i, r := range rs {
		names[i] = string(r)
	}
	return httpx.RequireRoles(names...)
}

func (r *Router) registerAuth() {
	h := &AuthHandler{
		AuthService:  r.AuthService,
		CookieSecure: r.CookieSecure,
		RefreshTTL:   r.RefreshTTL,
	}
	authn := r.authn().Required()

	// Credential endpoints - strict rate limit by IP + e-mail
	r.handle("POST /auth/login", h.HandleLogin,
		httpx.RateLimitByIPAndJSONField(httpx.StrictLimit, "email"),
	)
	r.handle("POST /auth/termo", h.HandleSignTerm,
		httpx.RateLimitByIPAndJSONField(httpx.StrictLimit, "email"),
	)

	// Token endpoints - strict rate limit by IP
	r.handle("POST /auth/mfa/challenge", h.HandleMFAChallenge,
		httpx.RateLimitByIP(httpx.StrictLimit),
	)
	r.handle("POST /auth/refresh", h.HandleRefresh,
		httpx.RateLimitByIP(httpx.StrictLimit),
	)

	r.handle("POST /auth/logout", h.HandleLogout,
		authn,
		httpx.RateLimitByUser(httpx.ModerateLimit),
	)
	r.handle("POST /auth/register", h.HandleRegister,
		authn,
		roles(domain.RoleRoot, domain.RoleDPO),
		httpx.RateLimitByUser(httpx.ModerateLimit),
	)
	r.handle("GET /auth/me", h.HandleMe,
		authn,
		httpx.RateLimitByUser(httpx.LenientLimit),
	)
	r.handle("PATCH /auth/me/password", h.HandleChangePassword,
		authn,
		httpx.RateLimitByUser(httpx.StrictLimit),
	)
	r.handle("PATCH /auth/users/{id}/status", h.HandleSetStatus,
		authn,
		roles(domain.RoleRoot, domain.RoleDPO),
		httpx.RateLimitByUser(httpx.ModerateLimit),
	)
	r.handle("GET /auth/roles", h.HandleRoles,
		authn,
		httpx.RateLimitByUser(httpx.LenientLimit),
	)

	// Bootstrap - strict rate limit (one-shot, token guarded)
	r.handle("POST /bootstrap", h.HandleBootstrap,
		httpx.RateLimitByIP(httpx.StrictLimit),
	)
}

func (r *Router) registerMFA() {
	h := &MFAHandler{MFAService: r.MFAService}
	authn := r.authn().Required()

	// Enable only starts enrolment; the code-checking endpoints are strict
	r.handle("POST /auth/mfa/enable", h.HandleEnable,
		authn,
		httpx.RateLimitByUser(httpx.ModerateLimit),
	)
	r.handle("POST /auth/mfa/verify", h.HandleVerify,
		authn,
		httpx.RateLimitByUser(httpx.StrictLimit),
	)
	r.handle("POST /auth/mfa/disable", h.HandleDisable,
		authn,
		httpx.RateLimitByUser(httpx.StrictLimit),
	)
	r.handle("POST /auth/mfa/backup-codes", h.HandleBackupCodes,
		authn,
		httpx.RateLimitByUser(httpx.StrictLimit),
	)
}

func (r *Router) registerCatalog() {
	h := &CatalogHandler{CatalogService: r.CatalogService}
	authn := r.authn().Required()

	r.handle("POST /titulares", h.HandleCreateSubject,
		authn,
		roles(domain.RoleRoot, domain.RoleDPO, domain.RoleColaborador),
		httpx.RateLimitByUser(httpx.ModerateLimit),
	)
	r.handle("GET /titulares/{id}", h.HandleGetSubject,
		authn,
		roles(domain.RoleRoot, domain.RoleDPO, domain.RoleColaborador),
		httpx.RateLimitByUser(httpx.LenientLimit),
	)
	r.handle("POST /tipos-consentimento", h.HandleCreateConsentType,
		authn,
		roles(domain.RoleRoot, domain.RoleDPO),
		httpx.RateLimitByUser(httpx.ModerateLimit),
	)
	r.handle("GET /tipos-consentimento", h.HandleListConsentTypes,
		authn,
		httpx.RateLimitByUser(httpx.LenientLimit),
	)
	r.handle("GET /bases-legais", h.HandleListLegalBases,
		authn,
		httpx.RateLimitByUser(httpx.LenientLimit),
	)
}

func (r *Router) registerConsents() {
	h := &ConsentHandler{ConsentService: r.ConsentService, now: r.now}
	authn := r.authn().Required()
	staff := roles(domain.RoleRoot, domain.RoleDPO, domain.RoleColaborador, domain.RolePrestador)

	r.handle("POST /consentimentos", h.HandleCreate,
		authn,
		roles(domain.RoleRoot, domain.RoleDPO, domain.RoleColaborador),
		httpx.RateLimitByUser(httpx.ModerateLimit),
	)
	r.handle("GET /consentimentos", h.HandleList,
		authn,
		staff,
		httpx.RateLimitByUser(httpx.LenientLimit),
	)
	r.handle("GET /consentimentos/meus", h.HandleMine,
		authn,
		roles(domain.RoleTitular),
		httpx.RateLimitByUser(httpx.LenientLimit),
	)

	// Export walks the whole tenant - moderate rate limit
	r.handle("GET /consentimentos/export/{formato}", h.HandleExport,
		authn,
		roles(domain.RoleRoot, domain.RoleDPO),
		httpx.RateLimitByUser(httpx.ModerateLimit),
	)
	r.handle("GET /consentimentos/dashboard/count-ativos", h.HandleCountActive,
		authn,
		roles(domain.RoleRoot, domain.RoleDPO, domain.RoleColaborador),
		httpx.RateLimitByUser(httpx.LenientLimit),
	)

	// Per-record routes: ownership is decided by the service
	r.handle("GET /consentimentos/{id}", h.HandleGet,
		authn,
		httpx.RateLimitByUser(httpx.LenientLimit),
	)
	r.handle("PATCH /consentimentos/{id}", h.HandleUpdate,
		authn,
		httpx.RateLimitByUser(httpx.ModerateLimit),
	)
	r.handle("DELETE /consentimentos/{id}", h.HandleRevoke,
		authn,
		httpx.RateLimitByUser(httpx.ModerateLimit),
	)
	r.handle("DELETE /consentimentos/{id}/permanente", h.HandleDelete,
		authn,
		roles(domain.RoleRoot),
		httpx.RateLimitByUser(httpx.ModerateLimit),
	)
}

func (r *Router) registerDSAR() {
	h := &DSARHandler{DSARService: r.DSARService, now: r.now}
	authn := r.authn()

	// Public intake - the bearer is optional and only links the requester
	r.handle("POST /dsar", h.HandleCreate,
		httpx.RateLimitByIP(httpx.ModerateLimit),
		authn.Optional(),
	)
	r.handle("GET /dsar/my", h.HandleMine,
		authn.Required(),
		httpx.RateLimitByUser(httpx.LenientLimit),
	)
	r.handle("GET /dsar", h.HandleList,
		authn.Required(),
		roles(domain.RoleRoot, domain.RoleDPO),
		httpx.RateLimitByUser(httpx.LenientLimit),
	)
	r.handle("GET /dsar/{id}", h.HandleGet,
		authn.Required(),
		httpx.RateLimitByUser(httpx.LenientLimit),
	)
	r.handle("PATCH /dsar/{id}", h.HandleAnswer,
		authn.Required(),
		roles(domain.RoleRoot, domain.RoleDPO),
		httpx.RateLimitByUser(httpx.ModerateLimit),
	)
	r.handle("GET /dsar/{id}/response", h.HandleResponse,
		authn.Required(),
		httpx.RateLimitByUser(httpx.ModerateLimit),
	)
}

func (r *Router) registerAudit() {
	h := &AuditHandler{AuditLogService: r.AuditLogService}
	r.handle("GET /auditoria", h.HandleList,
		r.authn().Required(),
		roles(domain.RoleRoot, domain.RoleDPO),
		httpx.RateLimitByUser(httpx.LenientLimit),
	)
}

func (r *Router) registerSystem() {
	// Health checks - public limit
	r.handle("GET /livez", LivezHandler(r.startTime, r.buildVersion),
		httpx.RateLimitByIP(httpx.PublicLimit),
	)
	r.handle("GET /readyz", ReadyzHandler(r.startTime, r.buildVersion, r.store, r.signer),
		httpx.RateLimitByIP(httpx.PublicLimit),
	)
	if r.Gatherer != nil {
		r.Mux.Handle("GET /metrics", metrics.Handler(r.Gatherer))
	}
}

// requestMeta exposes the client address and user agent to the services
// for audit events.
func requestMeta(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := service.WithRequestMeta(r.Context(), domain.LoginMeta{
			IP:        httpx.IPKeyExtractor(r),
			UserAgent: r.UserAgent(),
		})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// principal is the authenticated caller of r, or the anonymous principal.
func principal(r *http.Request) authz.Principal {
	c, ok := httpx.CallerFromContext(r.Context())
	if !ok {
		return authz.Principal{}
	}
	return service.Principal(c)
}
