// Package authz holds the role check and the ownership policy applied to
// consent records and DSAR tickets. Every decision is made against resource
// data loaded for the current request.
package authz

import (
	"errors"
	"slices"
	"strings"

	"github.com/adrisa007/guardiao/internal/guardiao/domain"
)

var ErrForbidden = errors.New("authz: forbidden")

// Principal is the authenticated caller as seen by the policy.
type Principal struct {
	UserID       string
	Role         domain.Role
	ControllerID string
}

// Anonymous reports whether no user is attached.
func (p Principal) Anonymous() bool { return p.UserID == "" }

// RoleError is returned when the caller's role is outside the allowed set.
type RoleError struct {
	Required []domain.Role
	Actual   domain.Role
}

func (e *RoleError) Error() string {
	req := make([]string, len(e.Required))
	for i, r := range e.Required {
		req[i] = string(r)
	}
	return "authz: role " + string(e.Actual) + " not in [" + strings.Join(req, ",") + "]"
}

func (e *RoleError) Is(target error) bool { return target == ErrForbidden }

// DeniedError carries the message shown to a caller refused by the
// ownership policy.
type DeniedError struct {
	Message string
}

func (e *DeniedError) Error() string { return "authz: " + e.Message }

func (e *DeniedError) Is(target error) bool { return target == ErrForbidden }

func deny(msg string) error { return &DeniedError{Message: msg} }

// RequireRole fails with *RoleError unless p has one of allowed.
func RequireRole(p Principal, allowed ...domain.Role) error {
	if slices.Contains(allowed, p.Role) {
		return nil
	}
	return &RoleError{Required: allowed, Actual: p.Role}
}

// Op is the kind of access being requested on a single resource.
type Op string

const (
	OpRead     Op = "read"
	OpUpdate   Op = "update"
	OpRevoke   Op = "revoke"
	OpDelete   Op = "delete" // permanent removal
	OpDownload Op = "download"
)

type Kind string

const (
	KindConsent Kind = "consent"
	KindDSAR    Kind = "dsar"
)

// Resource is the ownership data the policy needs about one record.
type Resource struct {
	Kind          Kind
	ControllerID  string
	SubjectUserID string // user linked to the data subject
	CollectorID   string
	RequesterID   string
}

func ConsentResource(v domain.ConsentView) Resource {
	return Resource{
		Kind:          KindConsent,
		ControllerID:  v.ControllerID,
		SubjectUserID: v.SubjectUserID,
		CollectorID:   v.CollectorID,
	}
}

func DSARResource(d domain.DSAR) Resource {
	return Resource{Kind: KindDSAR, RequesterID: d.RequesterID}
}

// Authorize decides whether p may perform op on r.
func Authorize(op Op, p Principal, r Resource) error {
	if p.Anonymous() {
		return deny("Usuário não autenticado")
	}
	switch r.Kind {
	case KindConsent:
		return authorizeConsent(op, p, r)
	case KindDSAR:
		return authorizeDSAR(op, p, r)
	}
	return deny("Recurso desconhecido")
}

func sameTenant(p Principal, r Resource) bool {
	return p.ControllerID != "" && p.ControllerID == r.ControllerID
}

func authorizeConsent(op Op, p Principal, r Resource) error {
	if p.Role == domain.RoleRoot {
		return nil
	}
	if op == OpDelete {
		return deny("Apenas ROOT pode excluir consentimentos permanentemente")
	}

	switch {
	case p.Role == domain.RoleDPO && sameTenant(p, r):
		return nil

	case p.Role == domain.RoleColaborador && r.CollectorID != "" && r.CollectorID == p.UserID:
		return nil

	case p.Role == domain.RoleTitular && r.SubjectUserID != "" && r.SubjectUserID == p.UserID:
		if op == OpRead || op == OpRevoke {
			return nil
		}
		return deny("Titular não tem permissão para alterar consentimentos")

	case p.Role == domain.RolePrestador && sameTenant(p, r):
		if op == OpRead {
			return nil
		}
		return deny("Prestador tem apenas permissão de leitura")
	}
	return deny("Você não tem permissão para acessar este consentimento")
}

func authorizeDSAR(op Op, p Principal, r Resource) error {
	if p.Role == domain.RoleRoot || p.Role == domain.RoleDPO {
		return nil
	}
	if r.RequesterID != "" && r.RequesterID == p.UserID && (op == OpRead || op == OpDownload) {
		return nil
	}
	return deny("Você não tem permissão para acessar esta solicitação DSAR. " +
		"Apenas o titular da solicitação ou o DPO/Encarregado podem visualizar.")
}
