package app

import (
	"fmt"

	"chatsync/pkg/config"
)

// validateConfig performs quick, fail-fast validation of the effective
// configuration before starting long-running services. Keep checks light
// and focused so callers can surface user-friendly errors.
func validateConfig(eff config.EffectiveConfigResult) error {
	if p := eff.DBPath; p == "" {
		return fmt.Errorf("store path is empty: set --db flag, CHATSYNC_DB_PATH env, or storage.db_path in config")
	}
	if eff.Config.Session.UserID == "" {
		return fmt.Errorf("session user is empty: set --user flag, CHATSYNC_USER_ID env, or session.user_id in config")
	}
	if q := eff.Config.Sync.QueueCapacity; q < 0 {
		return fmt.Errorf("sync.queue_capacity must be non-negative, got %d", q)
	}
	if b := eff.Config.Sync.BatchSize; b < 0 {
		return fmt.Errorf("sync.batch_size must be non-negative, got %d", b)
	}
	if eff.Config.Retention.Enabled && eff.Config.Retention.MaxAge.Duration() <= 0 {
		return fmt.Errorf("retention enabled but retention.max_age not set")
	}
	return nil
}
