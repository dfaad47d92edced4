// Package audit records security relevant events off the request path.
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"log/slog"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/adrisa007/guardiao/internal/guardiao/domain"
	"github.com/adrisa007/guardiao/internal/guardiao/store"
	"github.com/adrisa007/guardiao/pkg/idx"
)

// DefaultBufferSize is used when NewRecorder is given a non-positive size.
const DefaultBufferSize = 1024

const writeTimeout = 5 * time.Second

// Event is one auditable occurrence. Table defaults to "Usuario".
type Event struct {
	Action    domain.AuditAction
	UserID    string
	IP        string
	UserAgent string
	Table     string
	RecordID  string
	Detail    map[string]any
}

// Sink persists audit rows. store.AuditLogs satisfies it.
type Sink interface {
	InsertAuditEntry(ctx context.Context, e domain.AuditEntry) error
}

// Recorder queues events and writes them from a single worker goroutine.
// Record never blocks; when the queue is full the event is dropped.
type Recorder struct {
	Sink   Sink
	Logger *slog.Logger

	queue   chan domain.AuditEntry
	stopCh  chan struct{}
	doneCh  chan struct{}
	stopped sync.Once

	dropped atomic.Int64
	failed  atomic.Int64

	now func() time.Time
}

func NewRecorder(sink Sink, logger *slog.Logger, size int) *Recorder {
	if size <= 0 {
		size = DefaultBufferSize
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{
		Sink:   sink,
		Logger: logger,
		queue:  make(chan domain.AuditEntry, size),
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
		now:    time.Now,
	}
}

// NewStoreRecorder records into the audit_logs table of s.
func NewStoreRecorder(s store.Store, logger *slog.Logger, size int) *Recorder {
	return NewRecorder(s.AuditLogs(), logger, size)
}

// Start launches the worker. Call Stop to drain and shut it down.
func (r *Recorder) Start() {
	go r.run()
	r.Logger.Info("audit recorder started", "buffer", cap(r.queue))
}

// Stop flushes queued events and waits for the worker to exit.
func (r *Recorder) Stop() {
	r.stopped.Do(func() { close(r.stopCh) })
	<-r.doneCh
	r.Logger.Info("audit recorder stopped", "dropped", r.dropped.Load(), "failed", r.failed.Load())
}

// Record enqueues ev. It is safe to call from any goroutine and on a nil
// Recorder.
func (r *Recorder) Record(_ context.Context, ev Event) {
	if r == nil {
		return
	}
	entry, err := r.entry(ev)
	if err != nil {
		r.failed.Add(1)
		r.Logger.Error("audit entry encoding failed", "action", ev.Action, "error", err)
		return
	}

	select {
	case r.queue <- entry:
	default:
		r.dropped.Add(1)
		r.Logger.Warn("audit queue full, event dropped", "action", ev.Action)
	}
}

// Dropped is the number of events discarded because the queue was full.
func (r *Recorder) Dropped() int64 { return r.dropped.Load() }

// Failed is the number of events that could not be written.
func (r *Recorder) Failed() int64 { return r.failed.Load() }

// QueueLen is the number of events waiting to be written.
func (r *Recorder) QueueLen() int { return len(r.queue) }

func (r *Recorder) run() {
	defer close(r.doneCh)
	for {
		select {
		case e := <-r.queue:
			r.write(e)
		case <-r.stopCh:
			for {
				select {
				case e := <-r.queue:
					r.write(e)
				default:
					return
				}
			}
		}
	}
}

func (r *Recorder) write(e domain.AuditEntry) {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	if err := r.Sink.InsertAuditEntry(ctx, e); err != nil {
		r.failed.Add(1)
		r.Logger.Error("falha ao registrar auditoria", "action", e.Action, "user_id", e.UserID, "error", err)
	}
}

func (r *Recorder) entry(ev Event) (domain.AuditEntry, error) {
	ts := r.now().UTC()
	table := ev.Table
	if table == "" {
		table = "Usuario"
	}

	payload := map[string]any{
		"action":    ev.Action,
		"ip":        ev.IP,
		"userAgent": ev.UserAgent,
		"timestamp": ts.Format(time.RFC3339Nano),
	}
	for k, v := range ev.Detail {
		if _, reserved := payload[k]; !reserved {
			payload[k] = v
		}
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return domain.AuditEntry{}, fmt.Errorf("marshal audit detail: %w", err)
	}

	return domain.AuditEntry{
		ID:        idx.NewString(),
		Action:    ev.Action,
		UserID:    ev.UserID,
		Table:     table,
		RecordID:  ev.RecordID,
		IP:        ev.IP,
		UserAgent: ev.UserAgent,
		DataAfter: string(data),
		Hash:      Hash(ev.Action, ev.UserID, ev.IP, ts),
		CreatedAt: ts,
	}, nil
}

// Hash is the integrity tag stored with each row: FNV-1a 64 over
// action|user|ip|unix-millis, hex encoded. It detects accidental edits,
// not tampering.
func Hash(action domain.AuditAction, userID, ip string, ts time.Time) string {
	if userID == "" {
		userID = "anonymous"
	}
	h := fnv.New64a()
	_, _ = h.Write([]byte(string(action) + "|" + userID + "|" + ip + "|" + strconv.FormatInt(ts.UnixMilli(), 10)))
	return fmt.Sprintf("%016x", h.Sum64())
}
