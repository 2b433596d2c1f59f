package core

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/JonMunkholm/relief/internal/logging"
	"github.com/JonMunkholm/relief/internal/record"
)

// DefaultMaxFileSize is the import payload limit used when none is configured.
const DefaultMaxFileSize int64 = 20 << 20

// ServiceConfig holds the limits and formatting settings of a Service.
type ServiceConfig struct {
	MaxFileSize          int64
	MaxConcurrentImports int
	MaxWaitTime          time.Duration
	ExportLocation       *time.Location
	AreaProximity        float64
}

// Service is the entry point used by the HTTP and CLI surfaces. It checks
// authorization before the engine runs, caps concurrent imports, and emits
// one audit event per completed batch.
type Service struct {
	engine      *Engine
	exporter    *Exporter
	authz       Authorizer
	audit       AuditSink
	limiter     *ImportLimiter
	maxFileSize int64
	now         func() time.Time
}

// NewService wires an engine and exporter over store. A nil authorizer
// defaults to RoleAuthorizer and a nil sink discards audit events.
func NewService(store record.Store, cfg ServiceConfig, authz Authorizer, audit AuditSink, opts ...EngineOption) *Service {
	if authz == nil {
		authz = RoleAuthorizer{}
	}
	if audit == nil {
		audit = NopAuditSink{}
	}
	if cfg.MaxFileSize <= 0 {
		cfg.MaxFileSize = DefaultMaxFileSize
	}

	engineOpts := []EngineOption{}
	if cfg.AreaProximity > 0 {
		engineOpts = append(engineOpts, WithAreaProximity(cfg.AreaProximity))
	}
	engineOpts = append(engineOpts, opts...)

	return &Service{
		engine:      NewEngine(store, engineOpts...),
		exporter:    NewExporter(store, cfg.ExportLocation),
		authz:       authz,
		audit:       audit,
		limiter:     NewImportLimiter(cfg.MaxConcurrentImports, cfg.MaxWaitTime),
		maxFileSize: cfg.MaxFileSize,
		now:         time.Now,
	}
}

// Families lists the registered families.
func (s *Service) Families() []FamilyInfo {
	return Families()
}

// Import reconciles the CSV payload in r into family on behalf of actor.
func (s *Service) Import(ctx context.Context, actor Actor, family string, r io.Reader, opts ImportOptions) (Result, error) {
	ctx = withActor(ctx, actor)
	if err := s.authorize(ctx, actor, family, OpImport); err != nil {
		return Result{}, err
	}

	if err := s.limiter.Acquire(ctx); err != nil {
		return Result{}, err
	}
	defer s.limiter.Release()

	text, err := ReadText(r, s.maxFileSize)
	if err != nil {
		return Result{}, err
	}

	res, err := s.engine.Import(ctx, family, text, opts)
	if err != nil {
		return res, err
	}

	ev := newAuditEvent(ctx, actor, OpImport, family, opts.Trash, s.now())
	ev.Imported = res.Imported
	ev.Skipped = res.Skipped
	ev.Errors = len(res.Errors)
	ev.Rows = res.Imported + res.Skipped + len(res.Errors)
	s.audit.Emit(ctx, ev)
	return res, nil
}

// Export serializes family, or its trash view, on behalf of actor.
func (s *Service) Export(ctx context.Context, actor Actor, family string, trash bool) (ExportResult, error) {
	ctx = withActor(ctx, actor)
	if err := s.authorize(ctx, actor, family, OpExport); err != nil {
		return ExportResult{}, err
	}

	res, err := s.exporter.Export(ctx, family, trash)
	if err != nil {
		return ExportResult{}, err
	}

	ev := newAuditEvent(ctx, actor, OpExport, family, trash, s.now())
	ev.Rows = res.Rows
	s.audit.Emit(ctx, ev)
	return res, nil
}

// Template returns the blank import template of family.
func (s *Service) Template(ctx context.Context, actor Actor, family string) ([]byte, error) {
	ctx = withActor(ctx, actor)
	if err := s.authorize(ctx, actor, family, OpTemplate); err != nil {
		return nil, err
	}
	return Template(family)
}

// ImportLimiterStatus reports the import limiter state.
func (s *Service) ImportLimiterStatus() ImportLimiterStatus {
	return s.limiter.Status()
}

// WaitForImports blocks until in-flight imports finish or ctx is done.
func (s *Service) WaitForImports(ctx context.Context) error {
	return s.limiter.WaitForDrain(ctx)
}

func (s *Service) authorize(ctx context.Context, actor Actor, family string, op Operation) error {
	if _, err := Lookup(family); err != nil {
		return err
	}
	if !s.authz.MayPerform(ctx, actor, family, op) {
		logging.FromContext(ctx).Warn("operation denied",
			"family", family,
			"operation", string(op),
		)
		return fmt.Errorf("%w: %s %s", ErrForbidden, op, family)
	}
	return nil
}

// withActor tags every log line of the operation with the caller.
func withActor(ctx context.Context, actor Actor) context.Context {
	return logging.ContextWith(ctx, "actor_id", actor.ID, "actor_role", actor.Role)
}
