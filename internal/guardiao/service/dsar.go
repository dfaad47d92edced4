package service

import (
	"context"
	"errors"
	"fmt"
	"html"
	"io"
	"io/fs"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/sync/errgroup"

	"github.com/adrisa007/guardiao/internal/guardiao/audit"
	"github.com/adrisa007/guardiao/internal/guardiao/authz"
	"github.com/adrisa007/guardiao/internal/guardiao/domain"
	"github.com/adrisa007/guardiao/internal/guardiao/metrics"
	"github.com/adrisa007/guardiao/internal/guardiao/notify"
	"github.com/adrisa007/guardiao/internal/guardiao/store"
	"github.com/adrisa007/guardiao/pkg/idx"
	"github.com/adrisa007/guardiao/pkg/slogx"
	"github.com/adrisa007/guardiao/pkg/validx"
)

const dsarTable = "DsarRequest"

// Minimum descricao length for the rights that cannot be acted on without one.
var dsarMinDescription = map[domain.DSARType]int{
	domain.DSARCorrection: 10,
	domain.DSARErasure:    15,
}

var portabilityFormats = []string{"JSON", "CSV", "XML"}

// DSARService files and answers data subject requests.
type DSARService struct {
	Store          store.Store
	Audit          *audit.Recorder
	Notifier       notify.Notifier
	Metrics        metrics.MetricsCollector
	DPOEmail       string
	AttachmentsDir string
	Now            func() time.Time

	// Sanitizer strips markup from free text. Defaults to bluemonday's
	// strict policy.
	Sanitizer *bluemonday.Policy
}

func (s *DSARService) now() time.Time { return clock(s.Now).now() }

func (s *DSARService) metrics() metrics.MetricsCollector {
	if s.Metrics == nil {
		return metrics.Nop{}
	}
	return s.Metrics
}

// sanitize strips markup and returns plain text. The policy's entity
// escaping is undone so names like "João & Maria O'Neil" are stored as
// typed; HTML output must escape at render time.
func (s *DSARService) sanitize(v string) string {
	p := s.Sanitizer
	if p == nil {
		p = bluemonday.StrictPolicy()
	}
	return strings.TrimSpace(html.UnescapeString(p.Sanitize(strings.TrimSpace(v))))
}

type CreateDSARInput struct {
	Type        string
	Name        string
	CPF         string
	Email       string
	Phone       string
	Description string
	Format      string
}

// Create files a request. p may be anonymous; an authenticated caller is
// recorded as the requester.
func (s *DSARService) Create(ctx context.Context, p authz.Principal, in CreateDSARInput) (domain.DSAR, error) {
	typ := domain.DSARType(strings.ToUpper(strings.TrimSpace(in.Type)))
	if typ == domain.DSARANPDComplaint {
		return domain.DSAR{}, ErrANPDComplaint
	}

	in.CPF = validx.OnlyDigits(in.CPF)
	in.Email = normalizeEmail(in.Email)
	in.Format = strings.ToUpper(strings.TrimSpace(in.Format))
	in.Name = s.sanitize(in.Name)
	in.Description = s.sanitize(in.Description)

	names := make([]string, len(domain.DSARTypes))
	for i, t := range domain.DSARTypes {
		names[i] = string(t)
	}
	err := validx.Check(
		validx.Req("tipo", string(typ), validx.OneOf(names...).Msg("Tipo inválido. Use um dos valores: "+strings.Join(names, ", "))),
		validx.Req("nome", in.Name, validx.Len(3, 150)),
		validx.Req("cpf", in.CPF, validx.Digits(11)),
		validx.Req("email", in.Email, validx.Email()),
		validx.Str("telefone", in.Phone, validx.Pattern(phonePattern).Msg("Telefone inválido. Use formato (11) 98765-4321")),
		validx.Str("descricao", in.Description, validx.Len(10, 1000).Msg("A descrição deve ter entre 10 e 1000 caracteres")),
	)
	if n, ok := dsarMinDescription[typ]; ok && len([]rune(in.Description)) < n {
		err = validx.Join(err, fmt.Errorf("descricao deve ter no mínimo %d caracteres para %s", n, typ))
	}
	if typ == domain.DSARPortability {
		err = validx.Join(err, validx.Check(validx.Req("formato", in.Format, validx.OneOf(portabilityFormats...))))
	} else {
		in.Format = ""
	}
	if err != nil {
		return domain.DSAR{}, err
	}

	now := s.now()
	d := domain.DSAR{
		ID:           idx.NewString(),
		Type:         typ,
		RequesterID:  p.UserID,
		SubjectName:  in.Name,
		SubjectCPF:   in.CPF,
		SubjectEmail: in.Email,
		SubjectPhone: validx.OnlyDigits(in.Phone),
		Description:  in.Description,
		Format:       in.Format,
		Status:       domain.DSAROpen,
		DueAt:        now.Add(domain.DSARDeadline),
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		seq, err := tx.DSARs().NextProtocolSeq(ctx, now.Year())
		if err != nil {
			return fmt.Errorf("next protocol: %w", err)
		}
		d.Protocol = domain.FormatProtocol(now.Year(), seq)
		return tx.DSARs().CreateDSAR(ctx, d)
	})
	if err != nil {
		return domain.DSAR{}, fmt.Errorf("create dsar: %w", err)
	}

	l := slogx.FromContext(ctx)
	l.Info("dsar created", slog.String("protocolo", d.Protocol), slog.String("tipo", string(d.Type)))
	s.metrics().RecordDSARCreated(string(d.Type))
	record(ctx, s.Audit, audit.Event{
		Action:   domain.AuditDSARCreated,
		UserID:   p.UserID,
		Table:    dsarTable,
		RecordID: d.ID,
		Detail:   map[string]any{"protocolo": d.Protocol, "tipo": d.Type},
	})
	notify.Async(ctx, s.Notifier, l, notify.Message{
		To:      s.DPOEmail,
		Subject: "Nova DSAR - " + d.Protocol,
		Body: fmt.Sprintf("Nova solicitação de titular recebida.\n\nProtocolo: %s\nTipo: %s\nTitular: %s\nPrazo: %s\n",
			d.Protocol, d.Type, d.SubjectName, d.DueAt.Format(time.DateOnly)),
	})
	return d, nil
}

// Mine lists the requests filed by the caller, ten per page by default.
func (s *DSARService) Mine(ctx context.Context, p authz.Principal, page, limit int) ([]domain.DSAR, int, Page, error) {
	if p.Anonymous() {
		return nil, 0, Page{}, authz.RequireRole(p, domain.Roles...)
	}
	pg := NewPage(page, limit, 10)
	items, total, err := s.listAndCount(ctx, domain.DSARFilter{RequesterID: p.UserID, Offset: pg.Offset(), Limit: pg.Limit})
	return items, total, pg, err
}

type ListDSARsInput struct {
	Status string
	Type   string
	CPF    string
	Page   int
	Limit  int
}

// List is the DPO queue.
func (s *DSARService) List(ctx context.Context, p authz.Principal, in ListDSARsInput) ([]domain.DSAR, int, Page, error) {
	if err := authz.RequireRole(p, domain.RoleRoot, domain.RoleDPO); err != nil {
		return nil, 0, Page{}, err
	}
	f := domain.DSARFilter{
		Status: domain.DSARStatus(strings.ToUpper(strings.TrimSpace(in.Status))),
		Type:   domain.DSARType(strings.ToUpper(strings.TrimSpace(in.Type))),
		CPF:    validx.OnlyDigits(in.CPF),
	}
	pg := NewPage(in.Page, in.Limit, 20)
	f.Offset, f.Limit = pg.Offset(), pg.Limit
	items, total, err := s.listAndCount(ctx, f)
	return items, total, pg, err
}

func (s *DSARService) listAndCount(ctx context.Context, f domain.DSARFilter) ([]domain.DSAR, int, error) {
	var (
		items []domain.DSAR
		total int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		items, err = s.Store.DSARs().ListDSARs(gctx, f)
		return err
	})
	g.Go(func() error {
		var err error
		total, err = s.Store.DSARs().CountDSARs(gctx, f)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, 0, fmt.Errorf("list dsars: %w", err)
	}
	return items, total, nil
}

func (s *DSARService) Get(ctx context.Context, p authz.Principal, id string) (domain.DSAR, error) {
	d, err := s.load(ctx, id)
	if err != nil {
		return domain.DSAR{}, err
	}
	if err := authz.Authorize(authz.OpRead, p, authz.DSARResource(d)); err != nil {
		return domain.DSAR{}, err
	}
	return d, nil
}

type AnswerDSARInput struct {
	Status         string
	DPOResponse    string
	DenialReason   string
	AttachmentURL  string
	AttachmentPath string
}

// Answer updates a ticket that is still open. Closed tickets stay closed
// even under concurrent answers.
func (s *DSARService) Answer(ctx context.Context, p authz.Principal, id string, in AnswerDSARInput) (domain.DSAR, error) {
	if err := authz.RequireRole(p, domain.RoleRoot, domain.RoleDPO); err != nil {
		return domain.DSAR{}, err
	}

	status := domain.DSARStatus(strings.ToUpper(strings.TrimSpace(in.Status)))
	names := make([]string, len(domain.DSARStatuses))
	for i, st := range domain.DSARStatuses {
		names[i] = string(st)
	}
	in.DPOResponse = s.sanitize(in.DPOResponse)
	in.DenialReason = s.sanitize(in.DenialReason)
	in.AttachmentPath = strings.TrimSpace(in.AttachmentPath)
	in.AttachmentURL = strings.TrimSpace(in.AttachmentURL)
	err := validx.Check(
		validx.Req("status", string(status), validx.OneOf(names...)),
		validx.Req("respostaDpo", in.DPOResponse, validx.Len(20, 2000)),
	)
	if status == domain.DSARDenied && in.DenialReason == "" {
		err = validx.Join(err, errors.New("motivoIndeferimento é obrigatório quando o status é INDEFERIDO"))
	}
	if in.AttachmentURL != "" && !isHTTPURL(in.AttachmentURL) {
		err = validx.Join(err, errors.New("anexoUrl deve ser uma URL http ou https"))
	}
	if in.AttachmentPath != "" {
		if !filepath.IsLocal(in.AttachmentPath) {
			err = validx.Join(err, errors.New("anexoPath deve ser relativo ao diretório de anexos"))
		}
		in.AttachmentPath = filepath.ToSlash(filepath.Clean(in.AttachmentPath))
	}
	if err != nil {
		return domain.DSAR{}, err
	}

	d, err := s.load(ctx, id)
	if err != nil {
		return domain.DSAR{}, err
	}
	if d.Status.Terminal() {
		return domain.DSAR{}, ErrDSARClosed
	}

	err = s.Store.DSARs().AnswerDSAR(ctx, d.ID, domain.DSARAnswer{
		Status:         status,
		DPOResponse:    in.DPOResponse,
		DenialReason:   in.DenialReason,
		AttachmentURL:  in.AttachmentURL,
		AttachmentPath: in.AttachmentPath,
		RespondedByID:  p.UserID,
		RespondedAt:    s.now(),
	})
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			return domain.DSAR{}, ErrDSARClosed
		}
		return domain.DSAR{}, fmt.Errorf("answer dsar: %w", err)
	}

	d, err = s.load(ctx, d.ID)
	if err != nil {
		return domain.DSAR{}, err
	}

	l := slogx.FromContext(ctx)
	l.Info("dsar answered", slog.String("protocolo", d.Protocol), slog.String("status", string(d.Status)))
	record(ctx, s.Audit, audit.Event{
		Action:   domain.AuditDSARUpdated,
		UserID:   p.UserID,
		Table:    dsarTable,
		RecordID: d.ID,
		Detail:   map[string]any{"protocolo": d.Protocol, "status": d.Status},
	})
	notify.Async(ctx, s.Notifier, l, notify.Message{
		To:      d.SubjectEmail,
		Subject: "Resposta DSAR - " + d.Protocol,
		Body:    responseBody(d),
	})
	return d, nil
}

func responseBody(d domain.DSAR) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Olá %s,\n\nSua solicitação %s foi atualizada para %s.\n", firstName(d.SubjectName), d.Protocol, d.Status)
	if d.DPOResponse != "" {
		fmt.Fprintf(&b, "\nResposta do Encarregado:\n%s\n", d.DPOResponse)
	}
	if d.DenialReason != "" {
		fmt.Fprintf(&b, "\nMotivo do indeferimento:\n%s\n", d.DenialReason)
	}
	if d.AttachmentURL != "" {
		fmt.Fprintf(&b, "\nAnexo: %s\n", d.AttachmentURL)
	}
	return b.String()
}

// Attachment is the response document of a ticket: either a file under the
// attachments directory or an external URL.
type Attachment struct {
	RedirectURL string

	Body        io.ReadCloser
	Name        string
	ContentType string
	Size        int64
}

// Attachment opens the response document. Paths are resolved inside
// AttachmentsDir and cannot escape it.
func (s *DSARService) Attachment(ctx context.Context, p authz.Principal, id string) (Attachment, error) {
	d, err := s.load(ctx, id)
	if err != nil {
		return Attachment{}, err
	}
	if err := authz.Authorize(authz.OpDownload, p, authz.DSARResource(d)); err != nil {
		return Attachment{}, err
	}
	if d.AttachmentPath == "" && d.AttachmentURL == "" {
		return Attachment{}, ErrNoAttachment
	}
	if d.AttachmentPath == "" {
		return Attachment{RedirectURL: d.AttachmentURL}, nil
	}
	if s.AttachmentsDir == "" {
		return Attachment{}, NotFound("Arquivo não encontrado no servidor")
	}

	root, err := os.OpenRoot(s.AttachmentsDir)
	if err != nil {
		return Attachment{}, fmt.Errorf("open attachments dir: %w", err)
	}
	defer root.Close()

	f, err := root.Open(filepath.FromSlash(d.AttachmentPath))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Attachment{}, NotFound("Arquivo não encontrado no servidor")
		}
		slogx.FromContext(ctx).Warn("attachment open refused", slog.String("path", d.AttachmentPath), slog.Any("err", err))
		return Attachment{}, NotFound("Arquivo não encontrado no servidor")
	}
	st, err := f.Stat()
	if err != nil || st.IsDir() {
		f.Close()
		return Attachment{}, NotFound("Arquivo não encontrado no servidor")
	}
	return Attachment{
		Body:        f,
		Name:        filepath.Base(d.AttachmentPath),
		ContentType: contentTypeFor(d.AttachmentPath),
		Size:        st.Size(),
	}, nil
}

func contentTypeFor(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".pdf":
		return "application/pdf"
	case ".zip":
		return "application/zip"
	case ".json":
		return "application/json"
	}
	return "application/octet-stream"
}

func isHTTPURL(s string) bool {
	u, err := url.Parse(s)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

func (s *DSARService) load(ctx context.Context, id string) (domain.DSAR, error) {
	d, err := s.Store.DSARs().GetDSAR(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.DSAR{}, ErrDSARNotFound
		}
		return domain.DSAR{}, err
	}
	return d, nil
}
