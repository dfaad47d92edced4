// Package service holds the business rules of guardiao: authentication,
// MFA, consent records, DSAR tickets and the supporting catalog. Services
// take an authz.Principal for the caller and return *Error values whose
// Kind decides the HTTP status.
package service

import (
	"context"
	"strings"
	"time"

	"github.com/adrisa007/guardiao/internal/guardiao/audit"
	"github.com/adrisa007/guardiao/internal/guardiao/domain"
)

type metaKey struct{}

// WithRequestMeta stores the client address and user agent of the current
// request so that audit events can carry them.
func WithRequestMeta(ctx context.Context, m domain.LoginMeta) context.Context {
	return context.WithValue(ctx, metaKey{}, m)
}

// RequestMeta returns what WithRequestMeta stored, or the zero value.
func RequestMeta(ctx context.Context) domain.LoginMeta {
	m, _ := ctx.Value(metaKey{}).(domain.LoginMeta)
	return m
}

// record fills the request metadata in ev and queues it.
func record(ctx context.Context, r *audit.Recorder, ev audit.Event) {
	m := RequestMeta(ctx)
	if ev.IP == "" {
		ev.IP = m.IP
	}
	if ev.UserAgent == "" {
		ev.UserAgent = m.UserAgent
	}
	r.Record(ctx, ev)
}

type clock func() time.Time

func (c clock) now() time.Time {
	if c != nil {
		return c().UTC()
	}
	return time.Now().UTC()
}

// Page is a normalised page request.
type Page struct {
	Page  int
	Limit int
}

// NewPage clamps page to >= 1 and limit to [1, 100], using def when limit
// is not positive.
func NewPage(page, limit, def int) Page {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = def
	}
	if limit > 100 {
		limit = 100
	}
	return Page{Page: page, Limit: limit}
}

func (p Page) Offset() int { return (p.Page - 1) * p.Limit }

func firstName(full string) string {
	name, _, _ := strings.Cut(strings.TrimSpace(full), " ")
	return name
}

func normalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
