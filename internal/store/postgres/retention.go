package postgres

// retention.go purges old audit_log rows on a schedule.
//
// The job runs once on start and then every CheckInterval until its context is
// cancelled. A failed purge is logged and retried on the next tick; it never
// stops the scheduler.

import (
	"context"
	"fmt"
	"time"

	"github.com/JonMunkholm/relief/internal/logging"
)

// RetentionConfig holds configuration for the audit retention scheduler.
// Zero values fall back to the defaults below.
type RetentionConfig struct {
	RetentionDays int           // Days to keep in audit_log (default: 180)
	BatchSize     int           // Rows deleted per statement (default: 5000)
	CheckInterval time.Duration // How often to run (default: 24h)
}

const (
	defaultRetentionDays = 180
	defaultPurgeBatch    = 5000
	defaultCheckInterval = 24 * time.Hour
)

func (c RetentionConfig) withDefaults() RetentionConfig {
	if c.RetentionDays <= 0 {
		c.RetentionDays = defaultRetentionDays
	}
	if c.BatchSize <= 0 {
		c.BatchSize = defaultPurgeBatch
	}
	if c.CheckInterval <= 0 {
		c.CheckInterval = defaultCheckInterval
	}
	return c
}

const purgeAuditSQL = `DELETE FROM audit_log WHERE id IN (
	SELECT id FROM audit_log
	WHERE created_at < now() - make_interval(days => $1)
	ORDER BY created_at
	LIMIT $2
)`

// StartRetentionScheduler blocks, purging audit rows older than the retention
// window until ctx is cancelled.
func StartRetentionScheduler(ctx context.Context, db DBTX, cfg RetentionConfig) {
	cfg = cfg.withDefaults()
	logger := logging.FromContext(ctx)
	logger.Info("audit retention scheduler started",
		"retention_days", cfg.RetentionDays,
		"batch_size", cfg.BatchSize,
		"check_interval", cfg.CheckInterval,
	)

	// Run immediately on startup
	runRetentionJob(ctx, db, cfg)

	ticker := time.NewTicker(cfg.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("audit retention scheduler stopped")
			return
		case <-ticker.C:
			runRetentionJob(ctx, db, cfg)
		}
	}
}

// runRetentionJob performs one purge cycle.
func runRetentionJob(ctx context.Context, db DBTX, cfg RetentionConfig) {
	logger := logging.FromContext(ctx)
	start := time.Now()

	purged, err := PurgeAuditLog(ctx, db, cfg.RetentionDays, cfg.BatchSize)
	if err != nil {
		logger.Error("audit purge failed", "error", err, "purged", purged)
		return
	}
	logger.Info("audit purge completed",
		"entries_purged", purged,
		"duration_ms", time.Since(start).Milliseconds(),
	)
}

// PurgeAuditLog deletes audit rows older than daysToKeep in batches of
// batchSize and returns how many were removed.
func PurgeAuditLog(ctx context.Context, db DBTX, daysToKeep, batchSize int) (int64, error) {
	if batchSize <= 0 {
		batchSize = defaultPurgeBatch
	}

	var total int64
	for {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		tag, err := db.Exec(ctx, purgeAuditSQL, int32(daysToKeep), int32(batchSize))
		if err != nil {
			return total, fmt.Errorf("purge audit log: %w", err)
		}
		n := tag.RowsAffected()
		total += n
		if n < int64(batchSize) {
			return total, nil
		}
	}
}
