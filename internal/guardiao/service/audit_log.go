package service

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/adrisa007/guardiao/internal/guardiao/authz"
	"github.com/adrisa007/guardiao/internal/guardiao/domain"
	"github.com/adrisa007/guardiao/internal/guardiao/store"
)

// AuditLogService reads the audit trail.
type AuditLogService struct {
	Store store.Store
}

type ListAuditInput struct {
	Action string
	UserID string
	Page   int
	Limit  int
}

func (s *AuditLogService) List(ctx context.Context, p authz.Principal, in ListAuditInput) ([]domain.AuditEntry, int, Page, error) {
	if err := authz.RequireRole(p, domain.RoleRoot, domain.RoleDPO); err != nil {
		return nil, 0, Page{}, err
	}
	pg := NewPage(in.Page, in.Limit, 50)
	f := domain.AuditFilter{
		Action: domain.AuditAction(strings.ToUpper(strings.TrimSpace(in.Action))),
		UserID: strings.TrimSpace(in.UserID),
		Offset: pg.Offset(),
		Limit:  pg.Limit,
	}

	var (
		items []domain.AuditEntry
		total int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		items, err = s.Store.AuditLogs().ListAuditEntries(gctx, f)
		return err
	})
	g.Go(func() error {
		var err error
		total, err = s.Store.AuditLogs().CountAuditEntries(gctx, f)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, 0, Page{}, fmt.Errorf("list audit entries: %w", err)
	}
	return items, total, pg, nil
}
