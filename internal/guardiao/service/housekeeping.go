package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/adrisa007/guardiao/internal/guardiao/refresh"
	"github.com/adrisa007/guardiao/internal/guardiao/store"
)

// HousekeepingService periodically drops expired refresh tokens and MFA
// sessions and marks consents past their expiry date as EXPIRADO.
type HousekeepingService struct {
	Store    store.Store
	Registry refresh.Registry
	Logger   *slog.Logger
	Interval time.Duration
	Now      func() time.Time

	stopCh  chan struct{}
	doneCh  chan struct{}
	stopped sync.Once
}

// NewHousekeepingService defaults interval to one hour.
func NewHousekeepingService(st store.Store, reg refresh.Registry, logger *slog.Logger, interval time.Duration) *HousekeepingService {
	if interval <= 0 {
		interval = time.Hour
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &HousekeepingService{
		Store:    st,
		Registry: reg,
		Logger:   logger,
		Interval: interval,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start runs a cleanup right away and then on every tick.
func (s *HousekeepingService) Start() {
	go s.run()
	s.Logger.Info("housekeeping service started", "interval", s.Interval)
}

// Stop blocks until an in-progress cleanup has finished.
func (s *HousekeepingService) Stop() {
	s.stopped.Do(func() {
		close(s.stopCh)
		<-s.doneCh
		s.Logger.Info("housekeeping service stopped")
	})
}

func (s *HousekeepingService) run() {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	s.RunOnce(context.Background())

	for {
		select {
		case <-ticker.C:
			s.RunOnce(context.Background())
		case <-s.stopCh:
			return
		}
	}
}

// CleanupReport counts what one pass removed or changed.
type CleanupReport struct {
	RefreshTokens   int64
	MFASessions     int64
	ExpiredConsents int64
}

// RunOnce performs one pass. Each step is independent; a failing step is
// logged and the others still run.
func (s *HousekeepingService) RunOnce(ctx context.Context) CleanupReport {
	now := clock(s.Now).now()
	var rep CleanupReport
	var err error

	if s.Registry != nil {
		if rep.RefreshTokens, err = s.Registry.Sweep(ctx, now); err != nil {
			s.Logger.Error("failed to sweep refresh tokens", "error", err)
		}
	}
	if rep.MFASessions, err = s.Store.MFASessions().DeleteExpiredMFASessions(ctx, now); err != nil {
		s.Logger.Error("failed to delete expired MFA sessions", "error", err)
	}
	if rep.ExpiredConsents, err = s.Store.Consents().ExpireConsents(ctx, now); err != nil {
		s.Logger.Error("failed to expire consents", "error", err)
	}

	s.Logger.Info("housekeeping cleanup completed",
		"refresh_tokens", rep.RefreshTokens,
		"mfa_sessions", rep.MFASessions,
		"expired_consents", rep.ExpiredConsents,
	)
	return rep
}
