package postgres

import (
	"context"
	"net"
	"net/netip"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/JonMunkholm/relief/internal/core"
	"github.com/JonMunkholm/relief/internal/logging"
)

// DefaultAuditQueueSize is used when NewAuditSink is given a non-positive size.
const DefaultAuditQueueSize = 256

// drainTimeout bounds the final flush after Run's context is cancelled.
const drainTimeout = 5 * time.Second

const insertAuditSQL = `INSERT INTO audit_log (
	id, actor_id, actor_role, operation, trash, family,
	imported, skipped, errors, row_count, client_ip, user_agent, created_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

// AuditSink writes audit events to the audit_log table from a background
// goroutine. Emit only enqueues; when the queue is full the event is dropped
// and a warning is logged.
type AuditSink struct {
	db     DBTX
	queue  chan core.AuditEvent
	newID  func() string
	mu     sync.Mutex
	closed bool
	done   chan struct{}
}

// NewAuditSink creates a sink with a queue of the given capacity. Call Run to
// start writing.
func NewAuditSink(db DBTX, queueSize int) *AuditSink {
	if queueSize <= 0 {
		queueSize = DefaultAuditQueueSize
	}
	return &AuditSink{
		db:    db,
		queue: make(chan core.AuditEvent, queueSize),
		newID: uuid.NewString,
		done:  make(chan struct{}),
	}
}

var _ core.AuditSink = (*AuditSink)(nil)

// Emit implements core.AuditSink.
func (a *AuditSink) Emit(ctx context.Context, ev core.AuditEvent) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		logging.FromContext(ctx).Warn("audit sink closed, event dropped", "family", ev.Family, "operation", ev.Operation)
		return
	}

	select {
	case a.queue <- ev:
	default:
		logging.FromContext(ctx).Warn("audit queue full, event dropped", "family", ev.Family, "operation", ev.Operation)
	}
}

// Run writes queued events until ctx is cancelled, then flushes what is still
// queued and returns. It must be called at most once.
func (a *AuditSink) Run(ctx context.Context) {
	defer close(a.done)
	logger := logging.FromContext(ctx)
	logger.Info("audit writer started", "queue_size", cap(a.queue))

	for {
		select {
		case ev := <-a.queue:
			a.write(ctx, ev)
		case <-ctx.Done():
			a.mu.Lock()
			a.closed = true
			a.mu.Unlock()

			drainCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), drainTimeout)
			n := a.drain(drainCtx)
			cancel()
			logger.Info("audit writer stopped", "flushed", n)
			return
		}
	}
}

// Done is closed when Run has returned.
func (a *AuditSink) Done() <-chan struct{} {
	return a.done
}

func (a *AuditSink) drain(ctx context.Context) int {
	n := 0
	for {
		select {
		case ev := <-a.queue:
			a.write(ctx, ev)
			n++
		default:
			return n
		}
	}
}

// write inserts one event. Failures are logged, never returned.
func (a *AuditSink) write(ctx context.Context, ev core.AuditEvent) {
	if _, err := a.db.Exec(ctx, insertAuditSQL, a.auditArgs(ev)...); err != nil {
		logging.FromContext(ctx).Error("audit write failed",
			"family", ev.Family,
			"operation", ev.Operation,
			"error", err,
		)
	}
}

func (a *AuditSink) auditArgs(ev core.AuditEvent) []any {
	at := ev.At
	if at.IsZero() {
		at = time.Now()
	}
	return []any{
		a.newID(),
		ev.ActorID,
		ev.ActorRole,
		string(ev.Operation),
		ev.Trash,
		ev.Family,
		ev.Imported,
		ev.Skipped,
		ev.Errors,
		ev.Rows,
		parseClientIP(ev.ClientIP),
		toPgText(ev.UserAgent),
		at,
	}
}

// parseClientIP strips a port if present. Unparsable addresses are stored as NULL.
func parseClientIP(s string) *netip.Addr {
	if s == "" {
		return nil
	}
	host := s
	if h, _, err := net.SplitHostPort(s); err == nil {
		host = h
	}
	addr, err := netip.ParseAddr(host)
	if err != nil {
		return nil
	}
	return &addr
}

// toPgText converts a string to pgtype.Text.
// Empty strings become NULL.
func toPgText(s string) pgtype.Text {
	if s == "" {
		return pgtype.Text{Valid: false}
	}
	return pgtype.Text{String: s, Valid: true}
}
