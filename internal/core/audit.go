package core

import (
	"context"
	"log/slog"
	"time"

	"github.com/JonMunkholm/relief/internal/logging"
)

// AuditEvent records one completed batch operation.
type AuditEvent struct {
	ActorID   string    `json:"actorId"`
	ActorRole string    `json:"actorRole"`
	Operation Operation `json:"operation"`
	Trash     bool      `json:"trash"`
	Family    string    `json:"family"`
	Imported  int       `json:"imported"`
	Skipped   int       `json:"skipped"`
	Errors    int       `json:"errors"`
	Rows      int       `json:"rows"`
	ClientIP  string    `json:"clientIp,omitempty"`
	UserAgent string    `json:"userAgent,omitempty"`
	At        time.Time `json:"at"`
}

// newAuditEvent starts an event for actor, picking up the request metadata
// stored in ctx.
func newAuditEvent(ctx context.Context, actor Actor, op Operation, family string, trash bool, at time.Time) AuditEvent {
	return AuditEvent{
		ActorID:   actor.ID,
		ActorRole: actor.Role,
		Operation: op,
		Trash:     trash,
		Family:    family,
		ClientIP:  ClientIPFromContext(ctx),
		UserAgent: UserAgentFromContext(ctx),
		At:        at,
	}
}

// AuditSink receives audit events. Emit must not block the caller for long
// and never reports failure; sinks log their own errors.
type AuditSink interface {
	Emit(ctx context.Context, ev AuditEvent)
}

// LogAuditSink writes audit events as structured log lines.
type LogAuditSink struct{}

// Emit implements AuditSink.
func (LogAuditSink) Emit(ctx context.Context, ev AuditEvent) {
	logging.FromContext(ctx).LogAttrs(ctx, slog.LevelInfo, "audit",
		slog.String("actor_id", ev.ActorID),
		slog.String("actor_role", ev.ActorRole),
		slog.String("operation", string(ev.Operation)),
		slog.Bool("trash", ev.Trash),
		slog.String("family", ev.Family),
		slog.Int("imported", ev.Imported),
		slog.Int("skipped", ev.Skipped),
		slog.Int("errors", ev.Errors),
		slog.Int("rows", ev.Rows),
		slog.String("client_ip", ev.ClientIP),
	)
}

// NopAuditSink discards audit events.
type NopAuditSink struct{}

// Emit implements AuditSink.
func (NopAuditSink) Emit(context.Context, AuditEvent) {}
