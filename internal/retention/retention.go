// Package retention prunes aged message history from the offline cache on
// a cron schedule.
package retention

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/adhocore/gronx"

	"chatsync/pkg/config"
	"chatsync/pkg/logger"
	"chatsync/pkg/store"
	"chatsync/pkg/telemetry"
)

// Runner owns the retention schedule for one store.
type Runner struct {
	cfg  config.RetentionConfig
	st   *store.Store
	path string
	cron string
}

// New validates the retention config and returns a runner. A nil runner
// with nil error means retention is disabled.
func New(cfg config.RetentionConfig, st *store.Store, retentionPath string) (*Runner, error) {
	if !cfg.Enabled {
		logger.Info("retention_disabled")
		return nil, nil
	}
	if cfg.MaxAge.Duration() <= 0 {
		return nil, fmt.Errorf("retention enabled but max_age not set")
	}
	if min := cfg.MinPeriod.Duration(); min > 0 && cfg.MaxAge.Duration() < min {
		return nil, fmt.Errorf("retention max_age %s below configured minimum %s", cfg.MaxAge.Duration(), min)
	}
	// map empty cron to default daily @02:00
	cronExpr := cfg.Cron
	if cronExpr == "" {
		cronExpr = "0 2 * * *"
	}
	if !gronx.IsValid(cronExpr) {
		logger.Error("retention_invalid_cron", "cron", cfg.Cron)
		return nil, fmt.Errorf("invalid retention cron expression: %s", cfg.Cron)
	}
	if err := os.MkdirAll(retentionPath, 0o700); err != nil {
		logger.Error("retention_path_create_failed", "path", retentionPath, "error", err)
		return nil, err
	}
	return &Runner{cfg: cfg, st: st, path: retentionPath, cron: cronExpr}, nil
}

// Start starts the retention scheduler. Returns a cancel func.
func (r *Runner) Start(ctx context.Context) context.CancelFunc {
	logger.Info("retention_enabled", "cron", r.cron, "max_age", r.cfg.MaxAge.Duration().String(), "path", r.path)
	ctx2, cancel := context.WithCancel(ctx)
	go r.runScheduler(ctx2)
	logger.Info("retention_scheduler_started", "path", r.path)
	return cancel
}

// runScheduler uses gronx to compute the next tick for the configured cron
// expression and sleeps until that time.
func (r *Runner) runScheduler(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			logger.Info("retention_scheduler_stopping")
			return
		default:
		}

		now := time.Now().UTC()
		next, err := gronx.NextTickAfter(r.cron, now, false)
		if err != nil {
			logger.Error("retention_nexttick_failed", "cron", r.cron, "error", err)
			select {
			case <-time.After(30 * time.Second):
			case <-ctx.Done():
				return
			}
			continue
		}

		select {
		case <-time.After(time.Until(next)):
			if err := r.RunOnce(ctx); err != nil {
				logger.Error("retention_run_error", "error", err)
			}
		case <-ctx.Done():
			logger.Info("retention_scheduler_stopping")
			return
		}
	}
}

// RunOnce prunes every cached channel's history older than max_age and
// records a last-run marker under the retention path.
func (r *Runner) RunOnce(ctx context.Context) error {
	if r.cfg.Paused {
		logger.Info("retention_paused_skipping_run")
		return nil
	}
	cutoff := time.Now().UTC().Add(-r.cfg.MaxAge.Duration())
	cids, err := r.st.Channels(ctx)
	if err != nil {
		return fmt.Errorf("retention channel listing failed: %w", err)
	}
	total := 0
	for _, cid := range cids {
		if r.cfg.DryRun {
			continue
		}
		n, err := r.st.PruneChannelMessagesBefore(ctx, cid, cutoff)
		if err != nil {
			logger.Error("retention_prune_failed", "cid", cid, "error", err)
			continue
		}
		total += n
	}
	telemetry.RetentionPruned.Add(float64(total))
	logger.Info("retention_run_complete", "channels", len(cids), "pruned", total, "cutoff", cutoff.Format(time.RFC3339), "dry_run", r.cfg.DryRun)

	marker := filepath.Join(r.path, "last_run")
	if err := os.WriteFile(marker, []byte(time.Now().UTC().Format(time.RFC3339)+"\n"), 0o600); err != nil {
		logger.Warn("retention_marker_write_failed", "path", marker, "error", err)
	}
	return nil
}
