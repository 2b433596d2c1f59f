// Package bootstrap wires configuration into a running record store, audit
// sink and core.Service. Both the HTTP server and reliefctl start through it.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"

	"github.com/JonMunkholm/relief/internal/config"
	"github.com/JonMunkholm/relief/internal/core"
	_ "github.com/JonMunkholm/relief/internal/core/families" // Register all families
	"github.com/JonMunkholm/relief/internal/record"
	"github.com/JonMunkholm/relief/internal/store/memstore"
	"github.com/JonMunkholm/relief/internal/store/postgres"
)

// Runtime holds the opened backends and the service built over them.
type Runtime struct {
	Config  *config.Config
	Store   record.Store
	Service *core.Service

	pool *pgxpool.Pool
	sink *postgres.AuditSink
}

// Open connects the configured store and audit sink and builds the service.
// Close must be called when the runtime is no longer needed.
func Open(ctx context.Context, cfg *config.Config) (*Runtime, error) {
	rt := &Runtime{Config: cfg}

	switch cfg.Store.Driver {
	case config.DriverMemory:
		rt.Store = memstore.New()
		slog.Warn("using in-memory store, data is lost on exit")
	case config.DriverPostgres:
		pool, err := connect(ctx, cfg)
		if err != nil {
			return nil, err
		}
		rt.pool = pool
		rt.Store = postgres.New(pool)
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}

	audit, err := rt.auditSink()
	if err != nil {
		rt.Close()
		return nil, err
	}

	rt.Service = core.NewService(rt.Store, ServiceConfig(cfg), nil, audit)

	slog.Info("families registered", "count", core.FamilyCount())
	return rt, nil
}

// ServiceConfig maps the service-level settings out of cfg.
func ServiceConfig(cfg *config.Config) core.ServiceConfig {
	return core.ServiceConfig{
		MaxFileSize:          cfg.Import.MaxFileSize,
		MaxConcurrentImports: cfg.Import.MaxConcurrent,
		MaxWaitTime:          cfg.Import.MaxWaitTime,
		ExportLocation:       cfg.Export.Location(),
		AreaProximity:        cfg.Reconcile.AreaProximityDegrees,
	}
}

func connect(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.Database.URL)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}

	poolConfig.MaxConns = int32(cfg.Database.MaxConns)
	poolConfig.MinConns = int32(cfg.Database.MinConns)
	poolConfig.MaxConnLifetime = cfg.Database.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.Database.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if u, err := url.Parse(cfg.Database.URL); err == nil {
		slog.Info("connected to database", "name", strings.TrimPrefix(u.Path, "/"))
	} else {
		slog.Info("connected to database")
	}

	if cfg.Store.EnsureSchema {
		if err := postgres.EnsureSchema(ctx, pool); err != nil {
			pool.Close()
			return nil, err
		}
		slog.Info("schema ensured")
	}

	return pool, nil
}

func (rt *Runtime) auditSink() (core.AuditSink, error) {
	switch rt.Config.Audit.Sink {
	case config.AuditSinkNone:
		return core.NopAuditSink{}, nil
	case config.AuditSinkLog:
		return core.LogAuditSink{}, nil
	case config.AuditSinkPostgres:
		if rt.pool == nil {
			return nil, fmt.Errorf("audit sink %q requires the postgres store", config.AuditSinkPostgres)
		}
		rt.sink = postgres.NewAuditSink(rt.pool, rt.Config.Audit.QueueSize)
		return rt.sink, nil
	default:
		return nil, fmt.Errorf("unknown audit sink %q", rt.Config.Audit.Sink)
	}
}

// Background starts the audit writer and, when retention is set, the audit
// purge scheduler. The returned stop function cancels them and waits until
// queued audit events are flushed.
func (rt *Runtime) Background(ctx context.Context, retention bool) (stop func()) {
	ctx, cancel := context.WithCancel(ctx)
	g, gctx := errgroup.WithContext(ctx)

	if rt.sink != nil {
		g.Go(func() error {
			rt.sink.Run(gctx)
			return nil
		})
		if retention {
			g.Go(func() error {
				postgres.StartRetentionScheduler(gctx, rt.pool, postgres.RetentionConfig{
					RetentionDays: rt.Config.Audit.RetentionDays,
					CheckInterval: rt.Config.Audit.CheckInterval,
				})
				return nil
			})
		}
	}

	return func() {
		cancel()
		g.Wait()
	}
}

// Close releases the database pool, if any.
func (rt *Runtime) Close() {
	if rt.pool != nil {
		rt.pool.Close()
	}
}
