package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/adrisa007/guardiao/internal/guardiao/domain"
	"github.com/adrisa007/guardiao/internal/guardiao/store/drivers/sqlite"
	"github.com/stretchr/testify/require"
)

type memorySink struct {
	mu      sync.Mutex
	entries []domain.AuditEntry
	block   chan struct{}
}

func (s *memorySink) InsertAuditEntry(_ context.Context, e domain.AuditEntry) error {
	if s.block != nil {
		<-s.block
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, e)
	return nil
}

func (s *memorySink) all() []domain.AuditEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.AuditEntry(nil), s.entries...)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
}

func TestHash(t *testing.T) {
	t.Parallel()

	ts := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	a := Hash(domain.AuditLoginSuccess, "u1", "10.0.0.1", ts)
	require.Len(t, a, 16)
	require.Equal(t, a, Hash(domain.AuditLoginSuccess, "u1", "10.0.0.1", ts))
	require.NotEqual(t, a, Hash(domain.AuditLoginFailed, "u1", "10.0.0.1", ts))
	require.NotEqual(t, a, Hash(domain.AuditLoginSuccess, "u1", "10.0.0.1", ts.Add(time.Millisecond)))
	require.Equal(t, Hash(domain.AuditLogout, "", "ip", ts), Hash(domain.AuditLogout, "anonymous", "ip", ts))
}

func TestRecorderWritesEntries(t *testing.T) {
	t.Parallel()

	sink := &memorySink{}
	r := NewRecorder(sink, discardLogger(), 8)
	r.Start()

	r.Record(context.Background(), Event{
		Action:    domain.AuditUserRegistered,
		UserID:    "root-1",
		IP:        "127.0.0.1",
		UserAgent: "test",
		Detail:    map[string]any{"novoUsuarioId": "u-2", "ip": "spoofed"},
	})
	r.Stop()

	entries := sink.all()
	require.Len(t, entries, 1)
	e := entries[0]
	require.Equal(t, domain.AuditUserRegistered, e.Action)
	require.Equal(t, "Usuario", e.Table)
	require.Equal(t, Hash(e.Action, "root-1", "127.0.0.1", e.CreatedAt), e.Hash)

	var data map[string]any
	require.NoError(t, json.Unmarshal([]byte(e.DataAfter), &data))
	require.Equal(t, "u-2", data["novoUsuarioId"])
	require.Equal(t, "127.0.0.1", data["ip"])
	require.Equal(t, "test", data["userAgent"])
}

func TestRecorderDropsWhenFull(t *testing.T) {
	t.Parallel()

	sink := &memorySink{}
	r := NewRecorder(sink, discardLogger(), 2)

	// Not started: nothing drains the queue.
	for i := 0; i < 5; i++ {
		r.Record(context.Background(), Event{Action: domain.AuditLoginFailed})
	}
	require.EqualValues(t, 3, r.Dropped())
	require.Equal(t, 2, r.QueueLen())

	r.Start()
	r.Stop()
	require.Len(t, sink.all(), 2)
}

func TestRecordNeverBlocks(t *testing.T) {
	t.Parallel()

	sink := &memorySink{block: make(chan struct{})}
	r := NewRecorder(sink, discardLogger(), 1)
	r.Start()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 50; i++ {
			r.Record(context.Background(), Event{Action: domain.AuditLoginSuccess})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Record blocked on a stalled sink")
	}

	close(sink.block)
	r.Stop()
	require.Positive(t, r.Dropped())
}

func TestRecorderSwallowsWriteFailures(t *testing.T) {
	t.Parallel()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("INSERT INTO audit_logs").
		WithArgs(sqlmock.AnyArg(), "LOGIN_FAILED", sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(),
			"10.1.1.1", "curl", sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnError(errors.New("disk full"))
	mock.ExpectExec("INSERT INTO audit_logs").
		WillReturnResult(sqlmock.NewResult(1, 1))

	var logs bytes.Buffer
	r := NewStoreRecorder(sqlite.NewStoreFromDB(db), slog.New(slog.NewJSONHandler(&logs, nil)), 4)
	r.Start()

	r.Record(context.Background(), Event{Action: domain.AuditLoginFailed, IP: "10.1.1.1", UserAgent: "curl"})
	r.Record(context.Background(), Event{Action: domain.AuditLoginSuccess, UserID: "u1", IP: "10.1.1.1"})
	r.Stop()

	require.NoError(t, mock.ExpectationsWereMet())
	require.EqualValues(t, 1, r.Failed())
	require.Contains(t, logs.String(), "disk full")
}

func TestNilRecorderIsNoop(t *testing.T) {
	var r *Recorder
	require.NotPanics(t, func() {
		r.Record(context.Background(), Event{Action: domain.AuditLogout})
	})
}
