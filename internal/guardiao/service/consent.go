package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/adrisa007/guardiao/internal/guardiao/audit"
	"github.com/adrisa007/guardiao/internal/guardiao/authz"
	"github.com/adrisa007/guardiao/internal/guardiao/domain"
	"github.com/adrisa007/guardiao/internal/guardiao/metrics"
	"github.com/adrisa007/guardiao/internal/guardiao/store"
	"github.com/adrisa007/guardiao/pkg/cryptox"
	"github.com/adrisa007/guardiao/pkg/idx"
	"github.com/adrisa007/guardiao/pkg/slogx"
	"github.com/adrisa007/guardiao/pkg/validx"
)

const consentTable = "Consentimento"

type ConsentService struct {
	Store   store.Store
	Audit   *audit.Recorder
	Metrics metrics.MetricsCollector
	Now     func() time.Time
}

func (s *ConsentService) now() time.Time { return clock(s.Now).now() }

func (s *ConsentService) metrics() metrics.MetricsCollector {
	if s.Metrics == nil {
		return metrics.Nop{}
	}
	return s.Metrics
}

// tenantOf is the controller a non-ROOT caller is confined to. ROOT gets
// "" which means every tenant.
func tenantOf(p authz.Principal) (string, error) {
	if p.Role == domain.RoleRoot {
		return "", nil
	}
	if p.ControllerID == "" {
		return "", Forbidden("Usuário sem controladora vinculada")
	}
	return p.ControllerID, nil
}

type CreateConsentInput struct {
	SubjectID          string
	TypeID             string
	LegalBasisID       string
	DataClassification []string
	Channel            string
	RequestedDocuments []string
	ProofAttachment    string
	StorageLocation    string
	ExpiresAt          *time.Time
}

// Create records a consent collected by the caller.
func (s *ConsentService) Create(ctx context.Context, p authz.Principal, in CreateConsentInput) (domain.ConsentView, error) {
	if err := authz.RequireRole(p, domain.RoleRoot, domain.RoleDPO, domain.RoleColaborador); err != nil {
		return domain.ConsentView{}, err
	}
	tenant, err := tenantOf(p)
	if err != nil {
		return domain.ConsentView{}, err
	}

	now := s.now()
	err = validx.Check(
		validx.Req("titularId", in.SubjectID, validx.ULID()),
		validx.Req("tipoConsentimentoId", in.TypeID, validx.ULID()),
		validx.Req("baseLegalId", in.LegalBasisID, validx.ULID()),
		validx.Str("canalColeta", in.Channel, validx.MaxLen(50)),
		validx.Str("localArmazenamento", in.StorageLocation, validx.MaxLen(255)),
	)
	in.DataClassification = cleanList(in.DataClassification)
	if len(in.DataClassification) == 0 {
		err = validx.Join(err, errors.New("classificacaoDados deve conter ao menos um item"))
	}
	if in.ExpiresAt != nil && !in.ExpiresAt.After(now) {
		err = validx.Join(err, errors.New("dataExpiracao deve ser uma data futura"))
	}
	if err != nil {
		return domain.ConsentView{}, err
	}

	subject, err := s.Store.Subjects().GetSubjectByID(ctx, in.SubjectID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.ConsentView{}, ErrSubjectNotFound
		}
		return domain.ConsentView{}, err
	}
	if tenant != "" && subject.ControllerID != tenant {
		return domain.ConsentView{}, Forbidden("Titular não pertence à sua controladora")
	}

	ct, err := s.Store.Catalog().GetConsentType(ctx, in.TypeID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.ConsentView{}, ErrConsentTypeNotFound
		}
		return domain.ConsentView{}, err
	}
	if !ct.Active {
		return domain.ConsentView{}, ErrConsentTypeInactive
	}
	if ct.ControllerID != subject.ControllerID {
		return domain.ConsentView{}, Forbidden("Tipo de consentimento não pertence à controladora do titular")
	}
	if ct.RequiresPhysicalProof && strings.TrimSpace(in.ProofAttachment) == "" {
		return domain.ConsentView{}, ErrProofRequired
	}

	if _, err := s.Store.Catalog().GetLegalBasis(ctx, in.LegalBasisID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.ConsentView{}, ErrLegalBasisNotFound
		}
		return domain.ConsentView{}, err
	}

	c := domain.Consent{
		ID:                 idx.NewString(),
		SubjectID:          subject.ID,
		TypeID:             ct.ID,
		LegalBasisID:       in.LegalBasisID,
		DataClassification: in.DataClassification,
		Channel:            strings.TrimSpace(in.Channel),
		RequestedDocuments: cleanList(in.RequestedDocuments),
		ProofAttachment:    strings.TrimSpace(in.ProofAttachment),
		StorageLocation:    strings.TrimSpace(in.StorageLocation),
		ProofHash:          proofHash(subject.ID, ct.ID, now),
		CollectedAt:        now,
		ExpiresAt:          in.ExpiresAt,
		Status:             domain.ConsentActive,
		CollectorID:        p.UserID,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if err := s.Store.Consents().CreateConsent(ctx, c); err != nil {
		return domain.ConsentView{}, fmt.Errorf("create consent: %w", err)
	}

	s.metrics().RecordConsentOperation("create")
	record(ctx, s.Audit, audit.Event{
		Action:   domain.AuditConsentCreated,
		UserID:   p.UserID,
		Table:    consentTable,
		RecordID: c.ID,
		Detail:   map[string]any{"titularId": c.SubjectID, "tipoConsentimentoId": c.TypeID},
	})
	return s.load(ctx, c.ID)
}

// ListConsentsInput are the query filters of the consent listing.
type ListConsentsInput struct {
	SubjectID string
	TypeID    string
	From      *time.Time
	To        *time.Time
	Status    string
	Page      int
	Limit     int
}

// List returns one page of the caller's tenant. Status defaults to ATIVO.
func (s *ConsentService) List(ctx context.Context, p authz.Principal, in ListConsentsInput) ([]domain.ConsentView, int, Page, error) {
	if err := authz.RequireRole(p, domain.RoleRoot, domain.RoleDPO, domain.RoleColaborador, domain.RolePrestador); err != nil {
		return nil, 0, Page{}, err
	}
	tenant, err := tenantOf(p)
	if err != nil {
		return nil, 0, Page{}, err
	}

	status := domain.ConsentStatus(strings.ToUpper(strings.TrimSpace(in.Status)))
	if status == "" {
		status = domain.ConsentActive
	}
	if err := validx.Check(
		validx.Str("status", string(status), validx.OneOf(string(domain.ConsentActive), string(domain.ConsentRevoked), string(domain.ConsentExpired))),
		validx.Str("titularId", in.SubjectID, validx.ULID()),
		validx.Str("tipoConsentimentoId", in.TypeID, validx.ULID()),
	); err != nil {
		return nil, 0, Page{}, err
	}

	pg := NewPage(in.Page, in.Limit, 20)
	f := domain.ConsentFilter{
		ControllerID: tenant,
		SubjectID:    in.SubjectID,
		TypeID:       in.TypeID,
		From:         in.From,
		To:           in.To,
		Status:       status,
		Offset:       pg.Offset(),
		Limit:        pg.Limit,
	}
	items, total, err := s.listAndCount(ctx, f)
	return items, total, pg, err
}

// Mine lists the consents given by the TITULAR caller, in any status.
func (s *ConsentService) Mine(ctx context.Context, p authz.Principal, page, limit int) ([]domain.ConsentView, int, Page, error) {
	if err := authz.RequireRole(p, domain.RoleTitular); err != nil {
		return nil, 0, Page{}, err
	}
	pg := NewPage(page, limit, 20)
	items, total, err := s.listAndCount(ctx, domain.ConsentFilter{
		SubjectUser: p.UserID,
		Offset:      pg.Offset(),
		Limit:       pg.Limit,
	})
	return items, total, pg, err
}

func (s *ConsentService) listAndCount(ctx context.Context, f domain.ConsentFilter) ([]domain.ConsentView, int, error) {
	var (
		items []domain.ConsentView
		total int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		items, err = s.Store.Consents().ListConsents(gctx, f)
		return err
	})
	g.Go(func() error {
		var err error
		total, err = s.Store.Consents().CountConsents(gctx, f)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, 0, fmt.Errorf("list consents: %w", err)
	}
	return items, total, nil
}

// Get returns a single consent the caller may read.
func (s *ConsentService) Get(ctx context.Context, p authz.Principal, id string) (domain.ConsentView, error) {
	v, err := s.load(ctx, id)
	if err != nil {
		return domain.ConsentView{}, err
	}
	if err := authz.Authorize(authz.OpRead, p, authz.ConsentResource(v)); err != nil {
		return domain.ConsentView{}, err
	}
	return v, nil
}

// UpdateConsentInput carries the mutable fields; nil leaves a field as is.
// The three identity fields are only present to be rejected.
type UpdateConsentInput struct {
	SubjectID    *string
	TypeID       *string
	LegalBasisID *string

	DataClassification []string
	Channel            *string
	RequestedDocuments []string
	ProofAttachment    *string
	StorageLocation    *string
	ExpiresAt          *time.Time
}

// Update changes an active consent. Replacing the proof attachment issues a
// new proof hash.
func (s *ConsentService) Update(ctx context.Context, p authz.Principal, id string, in UpdateConsentInput) (domain.ConsentView, error) {
	v, err := s.load(ctx, id)
	if err != nil {
		return domain.ConsentView{}, err
	}
	if err := authz.Authorize(authz.OpUpdate, p, authz.ConsentResource(v)); err != nil {
		return domain.ConsentView{}, err
	}
	if in.SubjectID != nil || in.TypeID != nil || in.LegalBasisID != nil {
		return domain.ConsentView{}, ErrImmutableField
	}
	if err := editable(v); err != nil {
		return domain.ConsentView{}, err
	}

	now := s.now()
	var verr error
	if in.Channel != nil {
		verr = validx.Join(verr, validx.Check(validx.Str("canalColeta", *in.Channel, validx.MaxLen(50))))
	}
	if in.StorageLocation != nil {
		verr = validx.Join(verr, validx.Check(validx.Str("localArmazenamento", *in.StorageLocation, validx.MaxLen(255))))
	}
	if in.DataClassification != nil {
		in.DataClassification = cleanList(in.DataClassification)
		if len(in.DataClassification) == 0 {
			verr = validx.Join(verr, errors.New("classificacaoDados deve conter ao menos um item"))
		}
	}
	if in.ExpiresAt != nil && !in.ExpiresAt.After(now) {
		verr = validx.Join(verr, errors.New("dataExpiracao deve ser uma data futura"))
	}
	if verr != nil {
		return domain.ConsentView{}, verr
	}
	if in.ProofAttachment != nil && strings.TrimSpace(*in.ProofAttachment) == "" {
		ct, err := s.Store.Catalog().GetConsentType(ctx, v.TypeID)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return domain.ConsentView{}, err
		}
		if err == nil && ct.RequiresPhysicalProof {
			return domain.ConsentView{}, ErrProofRequired
		}
	}

	patch := domain.ConsentPatch{
		DataClassification: in.DataClassification,
		Channel:            trimPtr(in.Channel),
		ProofAttachment:    trimPtr(in.ProofAttachment),
		StorageLocation:    trimPtr(in.StorageLocation),
		ExpiresAt:          in.ExpiresAt,
	}
	if in.RequestedDocuments != nil {
		patch.RequestedDocuments = cleanList(in.RequestedDocuments)
	}
	if patch.ProofAttachment != nil {
		h := proofHash(v.SubjectID, v.TypeID, now)
		patch.ProofHash = &h
	}

	if err := s.Store.Consents().UpdateConsent(ctx, v.ID, patch, now); err != nil {
		switch {
		case errors.Is(err, store.ErrConflict):
			return domain.ConsentView{}, ErrConsentRevoked
		case errors.Is(err, store.ErrNotFound):
			return domain.ConsentView{}, ErrConsentNotFound
		}
		return domain.ConsentView{}, fmt.Errorf("update consent: %w", err)
	}

	s.metrics().RecordConsentOperation("update")
	record(ctx, s.Audit, audit.Event{Action: domain.AuditConsentUpdated, UserID: p.UserID, Table: consentTable, RecordID: v.ID})
	return s.load(ctx, v.ID)
}

// Revoke withdraws an active consent. Two concurrent revocations cannot
// both succeed.
func (s *ConsentService) Revoke(ctx context.Context, p authz.Principal, id, reason string) (domain.ConsentView, error) {
	reason = strings.TrimSpace(reason)
	if len([]rune(reason)) < domain.MinRevocationReason {
		return domain.ConsentView{}, BadRequest("O motivo da revogação é obrigatório e deve ter pelo menos 5 caracteres")
	}

	v, err := s.load(ctx, id)
	if err != nil {
		return domain.ConsentView{}, err
	}
	if err := authz.Authorize(authz.OpRevoke, p, authz.ConsentResource(v)); err != nil {
		return domain.ConsentView{}, err
	}
	if err := editable(v); err != nil {
		return domain.ConsentView{}, err
	}

	if err := s.Store.Consents().RevokeConsent(ctx, v.ID, reason, s.now()); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return domain.ConsentView{}, ErrConsentRevoked
		}
		return domain.ConsentView{}, fmt.Errorf("revoke consent: %w", err)
	}

	slogx.FromContext(ctx).Warn("consent revoked", slog.String("consent_id", v.ID), slog.String("by", p.UserID))
	s.metrics().RecordConsentOperation("revoke")
	record(ctx, s.Audit, audit.Event{
		Action:   domain.AuditConsentRevoked,
		UserID:   p.UserID,
		Table:    consentTable,
		RecordID: v.ID,
		Detail:   map[string]any{"motivo": reason},
	})
	return s.load(ctx, v.ID)
}

// Delete removes a consent permanently. ROOT only.
func (s *ConsentService) Delete(ctx context.Context, p authz.Principal, id string) error {
	if err := authz.RequireRole(p, domain.RoleRoot); err != nil {
		return err
	}
	v, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if err := authz.Authorize(authz.OpDelete, p, authz.ConsentResource(v)); err != nil {
		return err
	}
	if err := s.Store.Consents().DeleteConsent(ctx, v.ID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrConsentNotFound
		}
		return fmt.Errorf("delete consent: %w", err)
	}

	slogx.FromContext(ctx).Error("consent permanently deleted", slog.String("consent_id", v.ID), slog.String("by", p.UserID))
	s.metrics().RecordConsentOperation("delete")
	record(ctx, s.Audit, audit.Event{Action: domain.AuditConsentDeleted, UserID: p.UserID, Table: consentTable, RecordID: v.ID})
	return nil
}

// Export returns every consent of the caller's tenant, in any status.
func (s *ConsentService) Export(ctx context.Context, p authz.Principal) ([]domain.ConsentView, error) {
	if err := authz.RequireRole(p, domain.RoleRoot, domain.RoleDPO); err != nil {
		return nil, err
	}
	tenant, err := tenantOf(p)
	if err != nil {
		return nil, err
	}
	slogx.FromContext(ctx).Info("exporting consents", slog.String("controladora_id", tenant))
	return s.Store.Consents().ListConsents(ctx, domain.ConsentFilter{ControllerID: tenant})
}

// CountActive counts the ATIVO consents of the caller's tenant.
func (s *ConsentService) CountActive(ctx context.Context, p authz.Principal) (int, error) {
	if err := authz.RequireRole(p, domain.RoleRoot, domain.RoleDPO, domain.RoleColaborador); err != nil {
		return 0, err
	}
	tenant, err := tenantOf(p)
	if err != nil {
		return 0, err
	}
	return s.Store.Consents().CountConsents(ctx, domain.ConsentFilter{ControllerID: tenant, Status: domain.ConsentActive})
}

func (s *ConsentService) load(ctx context.Context, id string) (domain.ConsentView, error) {
	v, err := s.Store.Consents().GetConsent(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.ConsentView{}, ErrConsentNotFound
		}
		return domain.ConsentView{}, err
	}
	return v, nil
}

func editable(v domain.ConsentView) error {
	switch v.Status {
	case domain.ConsentActive:
		return nil
	case domain.ConsentRevoked:
		return ErrConsentRevoked
	}
	return BadRequest("Consentimento expirado não pode ser alterado")
}

// proofHash is the SHA-256 over the subject, the type, the collection time
// and a random nonce.
func proofHash(subjectID, typeID string, at time.Time) string {
	nonce := cryptox.MustGenerateToken(cryptox.TokenSize128)
	return cryptox.SHA256Hex(fmt.Sprintf("%s-%s-%d-%s", subjectID, typeID, at.UnixMilli(), nonce))
}

func cleanList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func trimPtr(s *string) *string {
	if s == nil {
		return nil
	}
	t := strings.TrimSpace(*s)
	return &t
}
