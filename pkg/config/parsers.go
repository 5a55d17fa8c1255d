package config

import (
	"flag"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"
)

// Flags holds parsed command-line flag values and which were set.
type Flags struct {
	Addr   string
	DB     string
	User   string
	Events string
	Config string
	Set    map[string]bool
}

// EffectiveConfigResult holds the result of LoadEffectiveConfig.
type EffectiveConfigResult struct {
	Config *Config
	Addr   string
	DBPath string
	Source string // "flags", "config", or "env"
}

// ParseConfigFlags parses command-line flags and returns them as a Flags struct.
func ParseConfigFlags() Flags {
	addrPtr := flag.String("addr", ":8484", "debug HTTP listen address")
	dbPtr := flag.String("db", "./.chatsync", "offline store path")
	userPtr := flag.String("user", "", "session user id")
	eventsPtr := flag.String("events", "", "JSONL event feed to replay")
	cfgPtr := flag.String("config", "./config.yaml", "Path to config file")
	flag.Parse()
	setFlags := make(map[string]bool)
	flag.Visit(func(f *flag.Flag) { setFlags[f.Name] = true })
	return Flags{Addr: *addrPtr, DB: *dbPtr, User: *userPtr, Events: *eventsPtr, Config: *cfgPtr, Set: setFlags}
}

// ParseConfigFile resolves the config path and loads the YAML file. It
// returns the parsed config, a boolean indicating whether the file was
// present, and an error for fatal parsing problems.
func ParseConfigFile(flags Flags) (*Config, bool, error) {
	cfgPath := ResolveConfigPath(flags.Config, flags.Set["config"])
	cfg, err := Load(cfgPath)
	if err != nil {
		if os.IsNotExist(err) || strings.Contains(err.Error(), "not found") {
			return &Config{}, false, nil
		}
		return nil, false, err
	}
	return cfg, true, nil
}

// ParseConfigEnvs reads environment variables into a fresh Config and
// reports whether any were used. This function does not mutate any caller
// provided config.
func ParseConfigEnvs() (*Config, bool) {
	envCfg := &Config{}
	envUsed := false

	if v := os.Getenv("CHATSYNC_ADDR"); v != "" {
		envUsed = true
		if h, p, err := net.SplitHostPort(v); err == nil {
			envCfg.Server.Address = h
			if pi, err := strconv.Atoi(p); err == nil {
				envCfg.Server.Port = pi
			}
		} else {
			envCfg.Server.Address = v
		}
	} else {
		if host := os.Getenv("CHATSYNC_SERVER_ADDRESS"); host != "" {
			envUsed = true
			envCfg.Server.Address = host
		}
		if port := os.Getenv("CHATSYNC_SERVER_PORT"); port != "" {
			envUsed = true
			if pi, err := strconv.Atoi(port); err == nil {
				envCfg.Server.Port = pi
			}
		}
	}

	if v := os.Getenv("CHATSYNC_DB_PATH"); v != "" {
		envUsed = true
		envCfg.Storage.DBPath = v
	}
	if v := os.Getenv("CHATSYNC_USER_ID"); v != "" {
		envUsed = true
		envCfg.Session.UserID = v
	}
	if v := os.Getenv("CHATSYNC_EVENTS_FILE"); v != "" {
		envUsed = true
		envCfg.Session.EventsFile = v
	}
	if v := os.Getenv("CHATSYNC_QUEUE_CAPACITY"); v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			envUsed = true
			envCfg.Sync.QueueCapacity = n
		}
	}
	if v := os.Getenv("CHATSYNC_BATCH_SIZE"); v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			envUsed = true
			envCfg.Sync.BatchSize = n
		}
	}
	if v := os.Getenv("CHATSYNC_TYPING_RPS"); v != "" {
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			envUsed = true
			envCfg.Sync.Typing.RPS = f
		}
	}
	if v := os.Getenv("CHATSYNC_TYPING_BURST"); v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			envUsed = true
			envCfg.Sync.Typing.Burst = n
		}
	}
	if v := os.Getenv("CHATSYNC_RETENTION_CRON"); v != "" {
		envUsed = true
		envCfg.Retention.Enabled = true
		envCfg.Retention.Cron = v
	}
	if v := os.Getenv("CHATSYNC_RETENTION_MAX_AGE"); v != "" {
		if td, err := time.ParseDuration(strings.TrimSpace(v)); err == nil {
			envUsed = true
			envCfg.Retention.MaxAge = Duration(td)
		}
	}
	if v := os.Getenv("CHATSYNC_LOG_LEVEL"); v != "" {
		envUsed = true
		envCfg.Logging.Level = strings.ToLower(strings.TrimSpace(v))
	}

	return envCfg, envUsed
}

// LoadEffectiveConfig decides which single source to use (flags, config
// file, or env) and returns the effective config plus resolved addr and
// store path. It honors an explicit flags.Config (user provided --config)
// by using the config file only; otherwise it uses flags if any flags
// are set; else if a config file exists it uses that; otherwise env.
func LoadEffectiveConfig(flags Flags, fileCfg *Config, fileExists bool, envCfg *Config) (EffectiveConfigResult, error) {
	var res EffectiveConfigResult

	// If user explicitly passed --config, require the file to exist and use it.
	if flags.Set["config"] {
		if !fileExists {
			return res, fmt.Errorf("config file %s not found", flags.Config)
		}
		res.Config = fileCfg
		res.Addr = fileCfg.Addr()
		res.DBPath = fileCfg.Storage.DBPath
		res.Source = "config"
		return res, nil
	}

	// If user passed any non-config flags, use flags over the other sources.
	if flags.Set["addr"] || flags.Set["db"] || flags.Set["user"] || flags.Set["events"] {
		out := &Config{}
		if fileExists {
			*out = *fileCfg
		} else {
			*out = *envCfg
		}
		addr := flags.Addr
		if !flags.Set["addr"] {
			addr = out.Addr()
		}
		out.Server.Address, out.Server.Port = splitAddr(addr)
		if flags.Set["db"] {
			out.Storage.DBPath = flags.DB
		}
		if flags.Set["user"] {
			out.Session.UserID = flags.User
		}
		if flags.Set["events"] {
			out.Session.EventsFile = flags.Events
		}
		res.Config = out
		res.Addr = addr
		res.DBPath = out.Storage.DBPath
		res.Source = "flags"
		return res, nil
	}

	// No explicit flags: prefer file config if present, otherwise env.
	if fileExists {
		res.Config = fileCfg
		res.Addr = fileCfg.Addr()
		res.DBPath = fileCfg.Storage.DBPath
		res.Source = "config"
		return res, nil
	}
	res.Config = envCfg
	res.Addr = envCfg.Addr()
	res.DBPath = envCfg.Storage.DBPath
	res.Source = "env"
	return res, nil
}

// splitAddr breaks host:port into its parts; a bare host gets port 0.
func splitAddr(a string) (string, int) {
	if a == "" {
		return "", 0
	}
	if h, p, err := net.SplitHostPort(a); err == nil {
		if pi, err := strconv.Atoi(p); err == nil {
			return h, pi
		}
		return h, 0
	}
	return a, 0
}
