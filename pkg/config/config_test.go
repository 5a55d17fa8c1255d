package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

const sampleYAML = `
server:
  address: 127.0.0.1
  port: 9090
storage:
  db_path: /tmp/chatsync-test
  cache_size: 64MB
session:
  user_id: me
  events_file: /tmp/events.jsonl
sync:
  queue_capacity: 2048
  batch_size: 64
  typing:
    rps: 2.5
    burst: 5
retention:
  enabled: true
  cron: "0 3 * * *"
  max_age: 720h
  min_period: 30
logging:
  level: debug
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func TestLoadParsesAllSections(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleYAML))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Addr() != "127.0.0.1:9090" {
		t.Fatalf("unexpected addr %q", cfg.Addr())
	}
	if cfg.Storage.CacheSize.Int64() != 64*1000*1000 {
		t.Fatalf("cache size not parsed from human form, got %d", cfg.Storage.CacheSize.Int64())
	}
	if cfg.Session.UserID != "me" {
		t.Fatalf("unexpected user id %q", cfg.Session.UserID)
	}
	if cfg.Sync.QueueCapacity != 2048 || cfg.Sync.BatchSize != 64 {
		t.Fatalf("unexpected sync tunables: %+v", cfg.Sync)
	}
	if cfg.Sync.Typing.RPS != 2.5 || cfg.Sync.Typing.Burst != 5 {
		t.Fatalf("unexpected typing limits: %+v", cfg.Sync.Typing)
	}
	if cfg.Retention.MaxAge.Duration() != 720*time.Hour {
		t.Fatalf("max_age not parsed, got %v", cfg.Retention.MaxAge.Duration())
	}
	// bare numbers are seconds
	if cfg.Retention.MinPeriod.Duration() != 30*time.Second {
		t.Fatalf("numeric duration must mean seconds, got %v", cfg.Retention.MinPeriod.Duration())
	}
	if cfg.Logging.Level != "debug" {
		t.Fatalf("unexpected log level %q", cfg.Logging.Level)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestAddrDefaults(t *testing.T) {
	cfg := &Config{}
	if cfg.Addr() != "0.0.0.0:8484" {
		t.Fatalf("unexpected default addr %q", cfg.Addr())
	}
}

func TestSizeBytesPlainInteger(t *testing.T) {
	cfg, err := Load(writeConfig(t, "storage:\n  cache_size: 1048576\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Storage.CacheSize.Int64() != 1048576 {
		t.Fatalf("plain integer size not parsed, got %d", cfg.Storage.CacheSize.Int64())
	}
}

func TestResolveConfigPathEnvFallback(t *testing.T) {
	t.Setenv("CHATSYNC_CONFIG", "/etc/chatsync.yaml")
	if got := ResolveConfigPath("./config.yaml", false); got != "/etc/chatsync.yaml" {
		t.Fatalf("env path must win when the flag was not set, got %q", got)
	}
	if got := ResolveConfigPath("./explicit.yaml", true); got != "./explicit.yaml" {
		t.Fatalf("explicit flag must win over env, got %q", got)
	}
}

func TestParseConfigEnvs(t *testing.T) {
	t.Setenv("CHATSYNC_ADDR", "127.0.0.1:7070")
	t.Setenv("CHATSYNC_DB_PATH", "/tmp/db")
	t.Setenv("CHATSYNC_USER_ID", "me")
	t.Setenv("CHATSYNC_QUEUE_CAPACITY", "512")
	t.Setenv("CHATSYNC_TYPING_RPS", "1.5")
	t.Setenv("CHATSYNC_RETENTION_CRON", "0 4 * * *")
	t.Setenv("CHATSYNC_RETENTION_MAX_AGE", "168h")
	t.Setenv("CHATSYNC_LOG_LEVEL", "WARN")

	cfg, used := ParseConfigEnvs()
	if !used {
		t.Fatalf("env vars must be detected")
	}
	if cfg.Addr() != "127.0.0.1:7070" {
		t.Fatalf("unexpected addr %q", cfg.Addr())
	}
	if cfg.Storage.DBPath != "/tmp/db" || cfg.Session.UserID != "me" {
		t.Fatalf("unexpected storage/session: %+v %+v", cfg.Storage, cfg.Session)
	}
	if cfg.Sync.QueueCapacity != 512 || cfg.Sync.Typing.RPS != 1.5 {
		t.Fatalf("unexpected sync: %+v", cfg.Sync)
	}
	if !cfg.Retention.Enabled || cfg.Retention.MaxAge.Duration() != 168*time.Hour {
		t.Fatalf("unexpected retention: %+v", cfg.Retention)
	}
	if cfg.Logging.Level != "warn" {
		t.Fatalf("log level must be lowercased, got %q", cfg.Logging.Level)
	}
}

func TestLoadEffectiveConfigExplicitConfigMustExist(t *testing.T) {
	flags := Flags{Config: "./missing.yaml", Set: map[string]bool{"config": true}}
	if _, err := LoadEffectiveConfig(flags, &Config{}, false, &Config{}); err == nil {
		t.Fatalf("explicit --config pointing at a missing file must fail")
	}
}

func TestLoadEffectiveConfigFlagsOverlayFile(t *testing.T) {
	fileCfg, err := Load(writeConfig(t, sampleYAML))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	flags := Flags{
		Addr: ":9999",
		User: "override",
		Set:  map[string]bool{"addr": true, "user": true},
	}
	res, err := LoadEffectiveConfig(flags, fileCfg, true, &Config{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Source != "flags" {
		t.Fatalf("expected flags source, got %q", res.Source)
	}
	if res.Addr != ":9999" {
		t.Fatalf("flag addr must win, got %q", res.Addr)
	}
	if res.Config.Session.UserID != "override" {
		t.Fatalf("flag user must win, got %q", res.Config.Session.UserID)
	}
	// settings not covered by flags come from the file
	if res.Config.Sync.BatchSize != 64 || res.DBPath != "/tmp/chatsync-test" {
		t.Fatalf("file values must fill in the rest: %+v", res.Config.Sync)
	}
}

func TestLoadEffectiveConfigPrecedence(t *testing.T) {
	fileCfg, err := Load(writeConfig(t, sampleYAML))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	envCfg := &Config{}
	envCfg.Session.UserID = "env-user"

	res, err := LoadEffectiveConfig(Flags{Set: map[string]bool{}}, fileCfg, true, envCfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Source != "config" || res.Config.Session.UserID != "me" {
		t.Fatalf("file must win over env when present: %q %q", res.Source, res.Config.Session.UserID)
	}

	res, err = LoadEffectiveConfig(Flags{Set: map[string]bool{}}, &Config{}, false, envCfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Source != "env" || res.Config.Session.UserID != "env-user" {
		t.Fatalf("env must be the fallback: %q %q", res.Source, res.Config.Session.UserID)
	}
}
