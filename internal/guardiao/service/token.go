package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/adrisa007/guardiao/internal/guardiao/domain"
	"github.com/adrisa007/guardiao/internal/guardiao/metrics"
	"github.com/adrisa007/guardiao/internal/guardiao/refresh"
	"github.com/adrisa007/guardiao/internal/guardiao/store"
	"github.com/adrisa007/guardiao/pkg/cryptox"
	"github.com/adrisa007/guardiao/pkg/jwtx"
	"github.com/adrisa007/guardiao/pkg/slogx"
)

// TokenService mints access tokens and keeps refresh tokens single use.
type TokenService struct {
	Signer     jwtx.Signer
	Registry   refresh.Registry
	Users      store.Users
	Metrics    metrics.MetricsCollector
	Issuer     string
	Audience   []string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	Now        func() time.Time
}

func (s *TokenService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func (s *TokenService) accessTTL() time.Duration {
	if s.AccessTTL > 0 {
		return s.AccessTTL
	}
	return jwtx.DefaultAccessTokenTTL
}

func (s *TokenService) refreshTTL() time.Duration {
	if s.RefreshTTL > 0 {
		return s.RefreshTTL
	}
	return jwtx.DefaultRefreshTokenTTL
}

func (s *TokenService) metrics() metrics.MetricsCollector {
	if s.Metrics == nil {
		return metrics.Nop{}
	}
	return s.Metrics
}

// IssueAccess signs an access token for u.
func (s *TokenService) IssueAccess(u domain.User) (string, error) {
	claims := jwtx.NewAccessClaims(jwtx.Identity{
		UserID:       u.ID,
		Email:        u.Email,
		Role:         string(u.Role),
		ControllerID: u.ControllerID,
	}, s.accessTTL(), s.Issuer, s.Audience, s.now())

	tok, err := s.Signer.Sign(claims)
	if err != nil {
		return "", fmt.Errorf("sign access token: %w", err)
	}
	return tok, nil
}

// IssueRefresh creates an opaque refresh token bound to userID. Only its
// fingerprint is registered.
func (s *TokenService) IssueRefresh(ctx context.Context, userID string) (string, time.Time, error) {
	raw, err := cryptox.GenerateToken(cryptox.TokenSize256)
	if err != nil {
		return "", time.Time{}, err
	}
	exp := s.now().Add(s.refreshTTL())
	if err := s.Registry.Save(ctx, cryptox.FingerprintToken(raw), userID, exp); err != nil {
		return "", time.Time{}, fmt.Errorf("save refresh token: %w", err)
	}
	return raw, exp, nil
}

// IssuePair returns a fresh access and refresh token for u.
func (s *TokenService) IssuePair(ctx context.Context, u domain.User) (*domain.TokenPair, error) {
	access, err := s.IssueAccess(u)
	if err != nil {
		return nil, err
	}
	rt, exp, err := s.IssueRefresh(ctx, u.ID)
	if err != nil {
		return nil, err
	}
	return &domain.TokenPair{
		AccessToken:      access,
		RefreshToken:     rt,
		TokenType:        "Bearer",
		ExpiresIn:        s.accessTTL(),
		RefreshExpiresAt: exp,
	}, nil
}

// Rotate consumes old and issues a new pair for the user it was bound to.
// The user is reloaded so that accounts disabled or whose term lapsed since
// the last login cannot keep refreshing.
func (s *TokenService) Rotate(ctx context.Context, old string) (*domain.TokenPair, domain.User, error) {
	l := slogx.FromContext(ctx)
	old = strings.TrimSpace(old)
	if old == "" {
		return nil, domain.User{}, ErrInvalidRefresh
	}

	userID, err := s.Registry.Consume(ctx, cryptox.FingerprintToken(old), s.now())
	if err != nil {
		if errors.Is(err, refresh.ErrUnknownToken) {
			s.metrics().RecordRefreshRotation(false)
			return nil, domain.User{}, ErrInvalidRefresh
		}
		return nil, domain.User{}, fmt.Errorf("consume refresh token: %w", err)
	}

	u, err := s.Users.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.metrics().RecordRefreshRotation(false)
			return nil, domain.User{}, ErrInvalidRefresh
		}
		return nil, domain.User{}, err
	}
	if err := checkAccount(u, s.now()); err != nil {
		l.Info("refresh refused by account gate", "user_id", u.ID, "err", err)
		s.metrics().RecordRefreshRotation(false)
		return nil, domain.User{}, err
	}

	pair, err := s.IssuePair(ctx, u)
	if err != nil {
		return nil, domain.User{}, err
	}
	s.metrics().RecordRefreshRotation(true)
	return pair, u, nil
}

// Revoke invalidates a single refresh token. Unknown tokens are ignored.
func (s *TokenService) Revoke(ctx context.Context, token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil
	}
	return s.Registry.Revoke(ctx, cryptox.FingerprintToken(token))
}

// RevokeUser invalidates every refresh token of userID.
func (s *TokenService) RevokeUser(ctx context.Context, userID string) error {
	return s.Registry.RevokeUser(ctx, userID)
}

// checkAccount applies the gates every token issuance must pass after the
// credentials are known to be good.
func checkAccount(u domain.User, now time.Time) error {
	if !u.Active || u.Blocked {
		return ErrAccountDisabled
	}
	if !u.TermSigned {
		return ErrTermNotSigned
	}
	if !u.TermValid(now) {
		return ErrTermExpired
	}
	return nil
}
