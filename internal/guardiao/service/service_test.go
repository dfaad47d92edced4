package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/adrisa007/guardiao/internal/guardiao/authz"
	"github.com/adrisa007/guardiao/internal/guardiao/domain"
	"github.com/adrisa007/guardiao/internal/guardiao/notify"
	"github.com/adrisa007/guardiao/internal/guardiao/refresh"
	"github.com/adrisa007/guardiao/internal/guardiao/store/drivers/sqlite"
	"github.com/adrisa007/guardiao/pkg/cryptox"
	"github.com/adrisa007/guardiao/pkg/idx"
	"github.com/adrisa007/guardiao/pkg/jwtx"
)

const (
	testPassword   = "Segura@123"
	testSecret     = "0123456789abcdef0123456789abcdef"
	testLegalBasis = "01J0000000000000000000A701"
)

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type recordingNotifier struct {
	sent chan notify.Message
}

func (n *recordingNotifier) Send(_ context.Context, m notify.Message) error {
	n.sent <- m
	return nil
}

func (n *recordingNotifier) next(t *testing.T) notify.Message {
	t.Helper()
	select {
	case m := <-n.sent:
		return m
	case <-time.After(2 * time.Second):
		t.Fatal("no notification sent")
		return notify.Message{}
	}
}

type harness struct {
	store    *sqlite.Store
	clock    *testClock
	hasher   *cryptox.Hasher
	registry *refresh.MemoryRegistry
	verifier jwtx.Verifier
	notes    *recordingNotifier

	tokens   *TokenService
	auth     *AuthService
	mfa      *MFAService
	consents *ConsentService
	catalog  *CatalogService
	dsars    *DSARService
	audits   *AuditLogService
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	st, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.ApplyMigrations())

	signer, verifier, err := jwtx.NewPair(jwtx.AlgHS256, "test", []byte(testSecret), jwtx.VerifyOptions{Issuer: "guardiao-test"})
	require.NoError(t, err)

	h := &harness{
		store:    st,
		clock:    &testClock{t: time.Now().UTC().Truncate(time.Second)},
		hasher:   cryptox.NewHasher(4, 4),
		registry: refresh.NewMemoryRegistry(),
		verifier: verifier,
		notes:    &recordingNotifier{sent: make(chan notify.Message, 16)},
	}
	h.tokens = &TokenService{
		Signer:   signer,
		Registry: h.registry,
		Users:    st.Users(),
		Issuer:   "guardiao-test",
		Now:      h.clock.Now,
	}
	h.auth = &AuthService{
		Store:          st,
		Hasher:         h.hasher,
		Tokens:         h.tokens,
		BootstrapToken: "bootstrap-secret",
		Now:            h.clock.Now,
	}
	h.mfa = &MFAService{Store: st, Notifier: h.notes, Now: h.clock.Now}
	h.consents = &ConsentService{Store: st, Now: h.clock.Now}
	h.catalog = &CatalogService{Store: st, Now: h.clock.Now}
	h.dsars = &DSARService{Store: st, Notifier: h.notes, DPOEmail: "dpo@example.com", Now: h.clock.Now}
	h.audits = &AuditLogService{Store: st}
	return h
}

// user creates an active account with a signed term.
func (h *harness) user(t *testing.T, email string, role domain.Role, controller string) domain.User {
	t.Helper()

	hash, err := h.hasher.Hash(context.Background(), testPassword)
	require.NoError(t, err)
	until := h.clock.Now().Add(DefaultTermValidity)
	u := domain.User{
		ID:             idx.NewString(),
		Name:           "Ana Lima",
		Email:          email,
		PasswordHash:   hash,
		Role:           role,
		ControllerID:   controller,
		Active:         true,
		TermSigned:     true,
		TermValidUntil: &until,
	}
	require.NoError(t, h.store.Users().CreateUser(context.Background(), u))
	return u
}

func principal(u domain.User) authz.Principal {
	return authz.Principal{UserID: u.ID, Role: u.Role, ControllerID: u.ControllerID}
}

// tenant is a controller with one user per role, a subject linked to the
// TITULAR account and an active consent type.
type tenant struct {
	id          string
	dpo         domain.User
	colaborador domain.User
	prestador   domain.User
	titular     domain.User
	subject     domain.Subject
	kind        domain.ConsentType
}

func (h *harness) tenant(t *testing.T, name string) tenant {
	t.Helper()
	ctx := context.Background()

	tn := tenant{id: uuid.NewString()}
	tn.dpo = h.user(t, "dpo@"+name+".com", domain.RoleDPO, tn.id)
	tn.colaborador = h.user(t, "colab@"+name+".com", domain.RoleColaborador, tn.id)
	tn.prestador = h.user(t, "prest@"+name+".com", domain.RolePrestador, tn.id)
	tn.titular = h.user(t, "titular@"+name+".com", domain.RoleTitular, tn.id)

	var err error
	tn.subject, err = h.catalog.CreateSubject(ctx, principal(tn.dpo), CreateSubjectInput{
		Name:   "João da Silva",
		CPF:    "123.456.789-01",
		UserID: tn.titular.ID,
	})
	require.NoError(t, err)
	tn.kind, err = h.catalog.CreateConsentType(ctx, principal(tn.dpo), CreateConsentTypeInput{
		Code: "marketing",
		Name: "Marketing por e-mail",
	})
	require.NoError(t, err)
	return tn
}

func TestNewPage(t *testing.T) {
	require.Equal(t, Page{Page: 1, Limit: 20}, NewPage(0, 0, 20))
	require.Equal(t, Page{Page: 3, Limit: 100}, NewPage(3, 500, 20))
	require.Equal(t, 40, NewPage(3, 20, 20).Offset())
}

func TestRequestMeta(t *testing.T) {
	ctx := WithRequestMeta(context.Background(), domain.LoginMeta{IP: "10.0.0.1", UserAgent: "curl"})
	require.Equal(t, "10.0.0.1", RequestMeta(ctx).IP)
	require.Empty(t, RequestMeta(context.Background()).IP)
}
