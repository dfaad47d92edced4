package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/adrisa007/guardiao/internal/guardiao/audit"
	"github.com/adrisa007/guardiao/internal/guardiao/authz"
	"github.com/adrisa007/guardiao/internal/guardiao/domain"
	"github.com/adrisa007/guardiao/internal/guardiao/metrics"
	"github.com/adrisa007/guardiao/internal/guardiao/store"
	"github.com/adrisa007/guardiao/pkg/cryptox"
	"github.com/adrisa007/guardiao/pkg/httpx"
	"github.com/adrisa007/guardiao/pkg/idx"
	"github.com/adrisa007/guardiao/pkg/jwtx"
	"github.com/adrisa007/guardiao/pkg/slogx"
	"github.com/adrisa007/guardiao/pkg/validx"
)

// DefaultTermValidity is how long a signed confidentiality term lasts.
const DefaultTermValidity = 365 * 24 * time.Hour

type AuthService struct {
	Store          store.Store
	Hasher         *cryptox.Hasher
	Tokens         *TokenService
	Audit          *audit.Recorder
	Metrics        metrics.MetricsCollector
	TermValidity   time.Duration
	BootstrapToken string
	Now            func() time.Time
}

func (s *AuthService) now() time.Time { return clock(s.Now).now() }

func (s *AuthService) metrics() metrics.MetricsCollector {
	if s.Metrics == nil {
		return metrics.Nop{}
	}
	return s.Metrics
}

// Login checks the credentials and account gates. Users with active MFA
// get a challenge session instead of tokens.
func (s *AuthService) Login(ctx context.Context, email, password string) (*domain.LoginResult, error) {
	l := slogx.FromContext(ctx)
	email = normalizeEmail(email)

	u, err := s.Store.Users().GetUserByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("lookup user: %w", err)
		}
		// Same bcrypt cost as a wrong password.
		_ = s.Hasher.Compare(ctx, "", password)
		s.loginFailed(ctx, "", email, "usuario_inexistente")
		return nil, ErrInvalidCredentials
	}

	if !u.Active || u.Blocked {
		s.metrics().RecordLogin(metrics.LoginDenied)
		record(ctx, s.Audit, audit.Event{Action: domain.AuditLoginFailed, UserID: u.ID, Detail: map[string]any{"motivo": "conta_inativa"}})
		return nil, ErrAccountDisabled
	}

	if err := s.Hasher.Compare(ctx, u.PasswordHash, password); err != nil {
		if !errors.Is(err, cryptox.ErrPasswordMismatch) {
			return nil, err
		}
		s.loginFailed(ctx, u.ID, email, "senha_incorreta")
		return nil, ErrInvalidCredentials
	}

	now := s.now()
	if !u.TermSigned || !u.TermValid(now) {
		s.metrics().RecordLogin(metrics.LoginDenied)
		if !u.TermSigned {
			record(ctx, s.Audit, audit.Event{Action: domain.AuditLoginFailed, UserID: u.ID, Detail: map[string]any{"motivo": "termo_nao_assinado"}})
			return nil, ErrTermNotSigned
		}
		record(ctx, s.Audit, audit.Event{Action: domain.AuditLoginFailed, UserID: u.ID, Detail: map[string]any{"motivo": "termo_vencido"}})
		return nil, ErrTermExpired
	}

	if u.MFAState() == domain.MFAActive {
		id, err := cryptox.GenerateToken(cryptox.TokenSize256)
		if err != nil {
			return nil, err
		}
		meta := RequestMeta(ctx)
		err = s.Store.MFASessions().CreateMFASession(ctx, domain.MFASession{
			ID:        id,
			UserID:    u.ID,
			IP:        meta.IP,
			UserAgent: meta.UserAgent,
			CreatedAt: now,
			ExpiresAt: now.Add(domain.MFASessionTTL),
		})
		if err != nil {
			return nil, fmt.Errorf("create mfa session: %w", err)
		}
		s.metrics().RecordLogin(metrics.LoginMFARequired)
		record(ctx, s.Audit, audit.Event{Action: domain.AuditLoginMFARequired, UserID: u.ID})
		l.Info("login requires mfa", slog.String("user_id", u.ID))
		return &domain.LoginResult{User: u, MFARequired: true, MFASessionID: id}, nil
	}

	pair, err := s.issue(ctx, u, now)
	if err != nil {
		return nil, err
	}
	record(ctx, s.Audit, audit.Event{Action: domain.AuditLoginSuccess, UserID: u.ID})
	return &domain.LoginResult{User: u, Tokens: pair}, nil
}

// CompleteMFA finishes a login that returned a challenge. The session
// allows a bounded number of wrong codes before it is discarded.
func (s *AuthService) CompleteMFA(ctx context.Context, sessionID, code string) (*domain.LoginResult, error) {
	sessionID = strings.TrimSpace(sessionID)
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, ErrMFACodeRequired
	}
	if sessionID == "" {
		return nil, ErrMFASessionInvalid
	}

	now := s.now()
	sess, err := s.Store.MFASessions().GetMFASession(ctx, sessionID, now)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrMFASessionInvalid
		}
		return nil, err
	}
	if sess.Attempts >= domain.MFASessionMaxAttempts {
		_ = s.Store.MFASessions().DeleteMFASession(ctx, sess.ID)
		return nil, ErrTooManyAttempts
	}

	u, err := s.Store.Users().GetUserByID(ctx, sess.UserID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrMFASessionInvalid
		}
		return nil, err
	}
	if err := checkAccount(u, now); err != nil {
		_ = s.Store.MFASessions().DeleteMFASession(ctx, sess.ID)
		return nil, err
	}
	if u.MFAState() != domain.MFAActive {
		_ = s.Store.MFASessions().DeleteMFASession(ctx, sess.ID)
		return nil, ErrMFASessionInvalid
	}

	ok, err := verifyActiveCode(ctx, s.Store.BackupCodes(), u, code, now)
	if err != nil {
		return nil, err
	}
	if !ok {
		s.metrics().RecordMFAVerification(false)
		record(ctx, s.Audit, audit.Event{Action: domain.AuditMFAFailed, UserID: u.ID, Detail: map[string]any{"etapa": "login"}})
		sess, err = s.Store.MFASessions().IncrementMFASessionAttempts(ctx, sess.ID)
		if err == nil && sess.Attempts >= domain.MFASessionMaxAttempts {
			_ = s.Store.MFASessions().DeleteMFASession(ctx, sess.ID)
			return nil, ErrTooManyAttempts
		}
		return nil, ErrInvalidMFACode
	}

	if err := s.Store.MFASessions().DeleteMFASession(ctx, sess.ID); err != nil {
		return nil, fmt.Errorf("delete mfa session: %w", err)
	}
	s.metrics().RecordMFAVerification(true)
	record(ctx, s.Audit, audit.Event{Action: domain.AuditMFAVerified, UserID: u.ID})

	pair, err := s.issue(ctx, u, now)
	if err != nil {
		return nil, err
	}
	record(ctx, s.Audit, audit.Event{Action: domain.AuditLoginSuccess, UserID: u.ID, Detail: map[string]any{"mfa": true}})
	return &domain.LoginResult{User: u, Tokens: pair}, nil
}

func (s *AuthService) issue(ctx context.Context, u domain.User, now time.Time) (*domain.TokenPair, error) {
	if err := s.Store.Users().UpdateLastLogin(ctx, u.ID, now); err != nil {
		return nil, fmt.Errorf("update last login: %w", err)
	}
	pair, err := s.Tokens.IssuePair(ctx, u)
	if err != nil {
		return nil, err
	}
	s.metrics().RecordLogin(metrics.LoginSuccess)
	return pair, nil
}

func (s *AuthService) loginFailed(ctx context.Context, userID, email, reason string) {
	s.metrics().RecordLogin(metrics.LoginFailed)
	record(ctx, s.Audit, audit.Event{
		Action: domain.AuditLoginFailed,
		UserID: userID,
		Detail: map[string]any{"email": email, "motivo": reason},
	})
}

// Refresh rotates a refresh token.
func (s *AuthService) Refresh(ctx context.Context, token string) (*domain.TokenPair, error) {
	pair, u, err := s.Tokens.Rotate(ctx, token)
	if err != nil {
		return nil, err
	}
	record(ctx, s.Audit, audit.Event{Action: domain.AuditRefreshToken, UserID: u.ID})
	return pair, nil
}

// Logout revokes the presented refresh token, if any.
func (s *AuthService) Logout(ctx context.Context, userID, refreshToken string) error {
	if err := s.Tokens.Revoke(ctx, refreshToken); err != nil {
		return fmt.Errorf("revoke refresh token: %w", err)
	}
	record(ctx, s.Audit, audit.Event{Action: domain.AuditLogout, UserID: userID})
	return nil
}

// RegisterInput is a new account.
type RegisterInput struct {
	Name                 string
	Email                string
	Password             string
	PasswordConfirmation string
	Role                 string
	ControllerID         string
	CPF                  string
	Department           string
}

// Register creates an account. Only ROOT and DPO may register; a DPO is
// confined to its own tenant and cannot create ROOT users.
func (s *AuthService) Register(ctx context.Context, caller authz.Principal, in RegisterInput) (domain.User, error) {
	if err := authz.RequireRole(caller, domain.RoleRoot, domain.RoleDPO); err != nil {
		return domain.User{}, err
	}

	in.Email = normalizeEmail(in.Email)
	in.CPF = validx.OnlyDigits(in.CPF)
	err := validx.Check(
		validx.Req("nome", in.Name, validx.Len(3, 100)),
		validx.Req("email", in.Email, validx.Email()),
		validx.Req("password", in.Password, validx.StrongPassword()),
		validx.Req("tipo", in.Role, validx.OneOf(roleNames()...).Msg("Tipo inválido. Use: "+strings.Join(roleNames(), ", "))),
		validx.Str("controladoraId", in.ControllerID, validx.UUID()),
		validx.Str("cpf", in.CPF, validx.Digits(11)),
		validx.Str("departamento", in.Department, validx.Len(2, 100)),
	)
	if in.PasswordConfirmation != "" && in.PasswordConfirmation != in.Password {
		err = validx.Join(err, errors.New("As senhas não coincidem"))
	}
	role := domain.Role(in.Role)
	if role != domain.RoleRoot && strings.TrimSpace(in.ControllerID) == "" && caller.Role == domain.RoleRoot {
		err = validx.Join(err, errors.New("controladoraId é obrigatório"))
	}
	if err != nil {
		return domain.User{}, err
	}

	if caller.Role == domain.RoleDPO {
		if role == domain.RoleRoot {
			return domain.User{}, ErrRegisterRoot
		}
		if in.ControllerID == "" {
			in.ControllerID = caller.ControllerID
		}
		if in.ControllerID != caller.ControllerID {
			return domain.User{}, ErrOtherTenant
		}
	}

	hash, err := s.Hasher.Hash(ctx, in.Password)
	if err != nil {
		return domain.User{}, err
	}

	now := s.now()
	u := domain.User{
		ID:           idx.NewString(),
		Name:         strings.TrimSpace(in.Name),
		Email:        in.Email,
		CPF:          in.CPF,
		Department:   strings.TrimSpace(in.Department),
		PasswordHash: hash,
		Role:         role,
		ControllerID: in.ControllerID,
		Active:       true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.Store.Users().CreateUser(ctx, u); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return domain.User{}, ErrEmailTaken
		}
		return domain.User{}, fmt.Errorf("create user: %w", err)
	}

	slogx.FromContext(ctx).Info("user registered", slog.String("user_id", u.ID), slog.String("tipo", string(u.Role)))
	record(ctx, s.Audit, audit.Event{
		Action:   domain.AuditUserRegistered,
		UserID:   caller.UserID,
		RecordID: u.ID,
		Detail:   map[string]any{"email": u.Email, "tipo": u.Role},
	})
	return u, nil
}

func roleNames() []string {
	out := make([]string, len(domain.Roles))
	for i, r := range domain.Roles {
		out[i] = string(r)
	}
	return out
}

// SignTerm records acceptance of the confidentiality term. It authenticates
// with credentials because unsigned users cannot log in.
func (s *AuthService) SignTerm(ctx context.Context, email, password string) (time.Time, error) {
	email = normalizeEmail(email)
	u, err := s.Store.Users().GetUserByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			return time.Time{}, err
		}
		_ = s.Hasher.Compare(ctx, "", password)
		return time.Time{}, ErrInvalidCredentials
	}
	if !u.Active || u.Blocked {
		return time.Time{}, ErrAccountDisabled
	}
	if err := s.Hasher.Compare(ctx, u.PasswordHash, password); err != nil {
		if errors.Is(err, cryptox.ErrPasswordMismatch) {
			return time.Time{}, ErrInvalidCredentials
		}
		return time.Time{}, err
	}

	validity := s.TermValidity
	if validity <= 0 {
		validity = DefaultTermValidity
	}
	until := s.now().Add(validity)
	if err := s.Store.Users().SignTerm(ctx, u.ID, until); err != nil {
		return time.Time{}, fmt.Errorf("sign term: %w", err)
	}
	record(ctx, s.Audit, audit.Event{Action: domain.AuditTermSigned, UserID: u.ID, Detail: map[string]any{"validoAte": until}})
	return until, nil
}

// ChangePassword replaces the caller's password and signs out every other
// session by revoking all refresh tokens.
func (s *AuthService) ChangePassword(ctx context.Context, userID, current, next, confirmation string) error {
	if err := validx.Check(
		validx.Req("currentPassword", current),
		validx.Req("password", next, validx.StrongPassword()),
		validx.Req("passwordConfirmation", confirmation),
	); err != nil {
		return err
	}
	if next != confirmation {
		return ErrPasswordMismatch
	}

	u, err := s.Store.Users().GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrUserNotFound
		}
		return err
	}
	if err := s.Hasher.Compare(ctx, u.PasswordHash, current); err != nil {
		if errors.Is(err, cryptox.ErrPasswordMismatch) {
			return ErrWrongPassword
		}
		return err
	}

	hash, err := s.Hasher.Hash(ctx, next)
	if err != nil {
		return err
	}
	if err := s.Store.Users().UpdatePasswordHash(ctx, u.ID, hash); err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	if err := s.Tokens.RevokeUser(ctx, u.ID); err != nil {
		return fmt.Errorf("revoke sessions: %w", err)
	}
	record(ctx, s.Audit, audit.Event{Action: domain.AuditPasswordChanged, UserID: u.ID})
	return nil
}

// Me returns the caller's profile as currently stored.
func (s *AuthService) Me(ctx context.Context, userID string) (domain.User, error) {
	u, err := s.Store.Users().GetUserByID(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return domain.User{}, ErrUserNotFound
	}
	return u, err
}

// SetStatus activates, deactivates, blocks or unblocks an account. Taking
// an account out of service revokes its refresh tokens.
func (s *AuthService) SetStatus(ctx context.Context, caller authz.Principal, userID string, upd domain.UserStatusUpdate) (domain.User, error) {
	if err := authz.RequireRole(caller, domain.RoleRoot, domain.RoleDPO); err != nil {
		return domain.User{}, err
	}
	if upd.Active == nil && upd.Blocked == nil {
		return domain.User{}, validx.Errors{"Informe ativo ou bloqueado"}
	}

	u, err := s.Store.Users().GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.User{}, ErrUserNotFound
		}
		return domain.User{}, err
	}
	if caller.Role == domain.RoleDPO && (u.ControllerID != caller.ControllerID || u.Role == domain.RoleRoot) {
		return domain.User{}, ErrOtherTenant
	}

	if upd.Active != nil {
		u.Active = *upd.Active
	}
	if upd.Blocked != nil {
		u.Blocked = *upd.Blocked
	}
	if err := s.Store.Users().UpdateStatus(ctx, u.ID, u.Active, u.Blocked); err != nil {
		return domain.User{}, fmt.Errorf("update status: %w", err)
	}
	if !u.Active || u.Blocked {
		if err := s.Tokens.RevokeUser(ctx, u.ID); err != nil {
			return domain.User{}, fmt.Errorf("revoke sessions: %w", err)
		}
	}

	record(ctx, s.Audit, audit.Event{
		Action:   domain.AuditUserBlocked,
		UserID:   caller.UserID,
		RecordID: u.ID,
		Detail:   map[string]any{"ativo": u.Active, "bloqueado": u.Blocked},
	})
	return u, nil
}

// BootstrapInput is the first ROOT account.
type BootstrapInput struct {
	Name     string
	Email    string
	Password string
}

// Bootstrap creates the first ROOT user. It only works while the user table
// is empty and the presented token matches the configured one.
func (s *AuthService) Bootstrap(ctx context.Context, token string, in BootstrapInput) (domain.User, error) {
	if s.BootstrapToken == "" || subtle.ConstantTimeCompare([]byte(token), []byte(s.BootstrapToken)) != 1 {
		return domain.User{}, ErrBootstrapToken
	}

	in.Email = normalizeEmail(in.Email)
	if err := validx.Check(
		validx.Req("nome", in.Name, validx.Len(3, 100)),
		validx.Req("email", in.Email, validx.Email()),
		validx.Req("password", in.Password, validx.StrongPassword()),
	); err != nil {
		return domain.User{}, err
	}

	hash, err := s.Hasher.Hash(ctx, in.Password)
	if err != nil {
		return domain.User{}, err
	}

	validity := s.TermValidity
	if validity <= 0 {
		validity = DefaultTermValidity
	}
	now := s.now()
	until := now.Add(validity)
	u := domain.User{
		ID:             idx.NewString(),
		Name:           strings.TrimSpace(in.Name),
		Email:          in.Email,
		PasswordHash:   hash,
		Role:           domain.RoleRoot,
		Active:         true,
		TermSigned:     true,
		TermValidUntil: &until,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		empty, err := tx.Users().IsEmpty(ctx)
		if err != nil {
			return err
		}
		if !empty {
			return ErrBootstrapDone
		}
		return tx.Users().CreateUser(ctx, u)
	})
	if err != nil {
		return domain.User{}, err
	}

	slogx.FromContext(ctx).Warn("platform bootstrapped", slog.String("user_id", u.ID), slog.String("email", u.Email))
	record(ctx, s.Audit, audit.Event{Action: domain.AuditUserRegistered, UserID: u.ID, RecordID: u.ID, Detail: map[string]any{"bootstrap": true}})
	return u, nil
}

// ResolveCaller reloads the token's user so that deactivation and role
// changes apply to tokens already issued.
func (s *AuthService) ResolveCaller(ctx context.Context, claims jwtx.Claims) (httpx.Caller, error) {
	u, err := s.Store.Users().GetUserByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return httpx.Caller{}, httpx.Unauthorized("Usuário não encontrado")
		}
		return httpx.Caller{}, httpx.Internal(err)
	}
	if !u.Active || u.Blocked {
		return httpx.Caller{}, httpx.Unauthorized(ErrAccountDisabled.Message)
	}
	return httpx.Caller{
		UserID:       u.ID,
		Email:        u.Email,
		Name:         u.Name,
		Role:         string(u.Role),
		ControllerID: u.ControllerID,
	}, nil
}

// Principal converts an authenticated request caller for the policy layer.
func Principal(c httpx.Caller) authz.Principal {
	return authz.Principal{UserID: c.UserID, Role: domain.Role(c.Role), ControllerID: c.ControllerID}
}
