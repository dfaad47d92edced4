package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/adrisa007/guardiao/internal/guardiao/authz"
	"github.com/adrisa007/guardiao/internal/guardiao/domain"
	"github.com/adrisa007/guardiao/internal/guardiao/store"
	"github.com/adrisa007/guardiao/pkg/idx"
	"github.com/adrisa007/guardiao/pkg/validx"
)

var (
	phonePattern = regexp.MustCompile(`^(\(\d{2}\)\s?)?9\d{4}-\d{4}$`)
	codePattern  = regexp.MustCompile(`^[A-Z0-9_]{3,50}$`)
)

// CatalogService manages data subjects, consent types and the legal bases.
type CatalogService struct {
	Store store.Store
	Now   func() time.Time
}

func (s *CatalogService) now() time.Time { return clock(s.Now).now() }

// scopeController picks the tenant a write lands in: the caller's own for
// everyone but ROOT, who must name one.
func scopeController(p authz.Principal, requested string) (string, error) {
	requested = strings.TrimSpace(requested)
	if p.Role == domain.RoleRoot {
		if err := validx.Check(validx.Req("controladoraId", requested, validx.UUID())); err != nil {
			return "", err
		}
		return requested, nil
	}
	if p.ControllerID == "" {
		return "", Forbidden("Usuário sem controladora vinculada")
	}
	if requested != "" && requested != p.ControllerID {
		return "", ErrOtherTenant
	}
	return p.ControllerID, nil
}

type CreateSubjectInput struct {
	Name         string
	CPF          string
	Email        string
	Phone        string
	ControllerID string
	UserID       string // optional TITULAR account
}

func (s *CatalogService) CreateSubject(ctx context.Context, p authz.Principal, in CreateSubjectInput) (domain.Subject, error) {
	if err := authz.RequireRole(p, domain.RoleRoot, domain.RoleDPO, domain.RoleColaborador); err != nil {
		return domain.Subject{}, err
	}
	controller, err := scopeController(p, in.ControllerID)
	if err != nil {
		return domain.Subject{}, err
	}

	in.CPF = validx.OnlyDigits(in.CPF)
	in.Email = normalizeEmail(in.Email)
	if err := validx.Check(
		validx.Req("nome", in.Name, validx.Len(3, 150)),
		validx.Req("cpf", in.CPF, validx.Digits(11).Msg("CPF deve conter 11 dígitos")),
		validx.Str("email", in.Email, validx.Email()),
		validx.Str("telefone", in.Phone, validx.Pattern(phonePattern).Msg("Telefone inválido. Formato esperado: (11) 98765-4321")),
		validx.Str("usuarioId", in.UserID, validx.ULID()),
	); err != nil {
		return domain.Subject{}, err
	}

	if in.UserID != "" {
		u, err := s.Store.Users().GetUserByID(ctx, in.UserID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return domain.Subject{}, ErrUserNotFound
			}
			return domain.Subject{}, err
		}
		if u.Role != domain.RoleTitular {
			return domain.Subject{}, BadRequest("usuarioId deve pertencer a um usuário TITULAR")
		}
	}

	now := s.now()
	sub := domain.Subject{
		ID:           idx.NewString(),
		Name:         strings.TrimSpace(in.Name),
		CPF:          in.CPF,
		Email:        in.Email,
		Phone:        strings.TrimSpace(in.Phone),
		ControllerID: controller,
		UserID:       in.UserID,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.Store.Subjects().CreateSubject(ctx, sub); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return domain.Subject{}, ErrSubjectExists
		}
		return domain.Subject{}, fmt.Errorf("create subject: %w", err)
	}
	return sub, nil
}

func (s *CatalogService) GetSubject(ctx context.Context, p authz.Principal, id string) (domain.Subject, error) {
	if err := authz.RequireRole(p, domain.RoleRoot, domain.RoleDPO, domain.RoleColaborador); err != nil {
		return domain.Subject{}, err
	}
	sub, err := s.Store.Subjects().GetSubjectByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.Subject{}, ErrSubjectNotFound
		}
		return domain.Subject{}, err
	}
	if p.Role != domain.RoleRoot && sub.ControllerID != p.ControllerID {
		// Other tenants' subjects do not exist as far as the caller knows.
		return domain.Subject{}, ErrSubjectNotFound
	}
	return sub, nil
}

type CreateConsentTypeInput struct {
	ControllerID          string
	Code                  string
	Name                  string
	Description           string
	RequiresPhysicalProof bool
}

func (s *CatalogService) CreateConsentType(ctx context.Context, p authz.Principal, in CreateConsentTypeInput) (domain.ConsentType, error) {
	if err := authz.RequireRole(p, domain.RoleRoot, domain.RoleDPO); err != nil {
		return domain.ConsentType{}, err
	}
	controller, err := scopeController(p, in.ControllerID)
	if err != nil {
		return domain.ConsentType{}, err
	}

	in.Code = strings.ToUpper(strings.TrimSpace(in.Code))
	if err := validx.Check(
		validx.Req("codigo", in.Code, validx.Pattern(codePattern).Msg("codigo deve ter de 3 a 50 caracteres A-Z, 0-9 ou _")),
		validx.Req("nome", in.Name, validx.Len(3, 100)),
		validx.Str("descricao", in.Description, validx.MaxLen(500)),
	); err != nil {
		return domain.ConsentType{}, err
	}

	now := s.now()
	ct := domain.ConsentType{
		ID:                    idx.NewString(),
		ControllerID:          controller,
		Code:                  in.Code,
		Name:                  strings.TrimSpace(in.Name),
		Description:           strings.TrimSpace(in.Description),
		Active:                true,
		RequiresPhysicalProof: in.RequiresPhysicalProof,
		CreatedAt:             now,
		UpdatedAt:             now,
	}
	if err := s.Store.Catalog().CreateConsentType(ctx, ct); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return domain.ConsentType{}, ErrConsentTypeExists
		}
		return domain.ConsentType{}, fmt.Errorf("create consent type: %w", err)
	}
	return ct, nil
}

// ListConsentTypes lists the caller's tenant. ROOT may pick a tenant or
// list all of them.
func (s *CatalogService) ListConsentTypes(ctx context.Context, p authz.Principal, controllerID string) ([]domain.ConsentType, error) {
	if p.Anonymous() {
		return nil, authz.RequireRole(p, domain.Roles...)
	}
	if p.Role != domain.RoleRoot {
		if p.ControllerID == "" {
			return []domain.ConsentType{}, nil
		}
		controllerID = p.ControllerID
	}
	return s.Store.Catalog().ListConsentTypes(ctx, controllerID)
}

func (s *CatalogService) ListLegalBases(ctx context.Context) ([]domain.LegalBasis, error) {
	return s.Store.Catalog().ListLegalBases(ctx)
}
