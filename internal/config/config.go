// Package config loads Brewva's controller-level configuration: coordinator
// limits, runtime pool sizing, ACL posture, and the explicit (pre-overlay)
// Telegram channel settings. It does not resolve the Telegram ingress
// precedence chain itself — internal/transport/telegram owns that, taking
// this package's Config.Telegram as the explicit half of its
// explicit > env overlay > defaults rule.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"
)

// CoordinatorConfig holds the Channel Coordinator's dispatch limits.
type CoordinatorConfig struct {
	FanoutMaxAgents     int `yaml:"fanout_max_agents"`
	MaxDiscussionRounds int `yaml:"max_discussion_rounds"`
	A2aMaxDepth         int `yaml:"a2a_max_depth"`
	A2aMaxHops          int `yaml:"a2a_max_hops"`
}

// RuntimePoolConfig holds the Agent Runtime Manager's bounding parameters.
type RuntimePoolConfig struct {
	MaxLiveRuntimes  int    `yaml:"max_live_runtimes"`
	IdleRuntimeTTLMs int64  `yaml:"idle_runtime_ttl_ms"`
	SweepCronExpr    string `yaml:"sweep_cron_expr"` // drives internal/cron's idle sweep
}

// ACLConfig holds the owner list and fail-open/fail-closed posture consumed
// by internal/acl.IsOwnerAuthorized.
type ACLConfig struct {
	Owners []string `yaml:"owners"`
	Mode   string   `yaml:"mode"` // "open" or "closed"
}

// TelegramChannelConfig is the explicit, YAML-sourced half of the Telegram
// ingress config. Every field is optional; internal/transport/telegram
// overlays unset fields from the environment and then applies defaults.
type TelegramChannelConfig struct {
	Enabled       bool   `yaml:"enabled"`
	BotToken      string `yaml:"bot_token"` // outbound Bot API token
	Host          string `yaml:"host"`
	Port          int    `yaml:"port"`
	Path          string `yaml:"path"`
	BearerToken   string `yaml:"bearer_token"`
	HMACSecret    string `yaml:"hmac_secret"`
	HMACMaxSkewMs int64  `yaml:"hmac_max_skew_ms"`
	NonceTTLMs    int64  `yaml:"nonce_ttl_ms"`
}

// OTelConfig toggles OpenTelemetry export for ingress and coordinator spans.
type OTelConfig struct {
	Enabled          bool   `yaml:"enabled"`
	ExporterEndpoint string `yaml:"exporter_endpoint"`
}

// Config is Brewva's top-level controller config.
type Config struct {
	HomeDir string `yaml:"-"`

	LogLevel string `yaml:"log_level"`
	LogQuiet bool   `yaml:"log_quiet"` // suppress the human-readable stdout handler

	Coordinator CoordinatorConfig     `yaml:"coordinator"`
	RuntimePool RuntimePoolConfig     `yaml:"runtime_pool"`
	ACL         ACLConfig             `yaml:"acl"`
	Telegram    TelegramChannelConfig `yaml:"telegram"`
	OTel        OTelConfig            `yaml:"otel"`

	NeedsGenesis bool `yaml:"-"`
}

// ConfigPath returns the path to config.yaml within the given home directory.
func ConfigPath(homeDir string) string {
	return filepath.Join(homeDir, "config.yaml")
}

func defaultConfig() Config {
	return Config{
		LogLevel: "info",
		Coordinator: CoordinatorConfig{
			FanoutMaxAgents:     8,
			MaxDiscussionRounds: 6,
			A2aMaxDepth:         4,
			A2aMaxHops:          8,
		},
		RuntimePool: RuntimePoolConfig{
			MaxLiveRuntimes:  16,
			IdleRuntimeTTLMs: int64(30 * 60 * 1000), // 30 minutes
			SweepCronExpr:    "* * * * *",
		},
		ACL: ACLConfig{
			Mode: "open",
		},
		Telegram: TelegramChannelConfig{
			Host: "0.0.0.0",
			Path: "/ingest/telegram",
		},
	}
}

// HomeDir returns the workspace root: BREWVA_HOME if set, else ~/.brewva.
func HomeDir() string {
	if override := os.Getenv("BREWVA_HOME"); override != "" {
		return override
	}
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		home = "."
	}
	return filepath.Join(home, ".brewva")
}

// Load reads config.yaml from HomeDir, applies environment overrides for the
// controller-level (non-channel) settings, and fills in defaults for
// anything left unset.
func Load() (Config, error) {
	cfg := defaultConfig()
	cfg.HomeDir = HomeDir()

	if err := os.MkdirAll(cfg.HomeDir, 0o755); err != nil {
		return cfg, fmt.Errorf("create brewva home: %w", err)
	}

	configPath := ConfigPath(cfg.HomeDir)
	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.NeedsGenesis = true
		} else {
			return cfg, fmt.Errorf("read config.yaml: %w", err)
		}
	} else if len(data) > 0 {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config.yaml: %w", err)
		}
	}

	applyEnvOverrides(&cfg)
	normalize(&cfg)
	return cfg, nil
}

func normalize(cfg *Config) {
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.Coordinator.FanoutMaxAgents <= 0 {
		cfg.Coordinator.FanoutMaxAgents = 8
	}
	if cfg.Coordinator.MaxDiscussionRounds <= 0 {
		cfg.Coordinator.MaxDiscussionRounds = 6
	}
	if cfg.Coordinator.A2aMaxDepth <= 0 {
		cfg.Coordinator.A2aMaxDepth = 4
	}
	if cfg.Coordinator.A2aMaxHops <= 0 {
		cfg.Coordinator.A2aMaxHops = 8
	}
	if cfg.RuntimePool.MaxLiveRuntimes <= 0 {
		cfg.RuntimePool.MaxLiveRuntimes = 16
	}
	if cfg.RuntimePool.IdleRuntimeTTLMs <= 0 {
		cfg.RuntimePool.IdleRuntimeTTLMs = int64(30 * 60 * 1000)
	}
	if cfg.RuntimePool.SweepCronExpr == "" {
		cfg.RuntimePool.SweepCronExpr = "* * * * *"
	}
	if cfg.ACL.Mode == "" {
		cfg.ACL.Mode = "open"
	}
	if cfg.Telegram.Host == "" {
		cfg.Telegram.Host = "0.0.0.0"
	}
	if cfg.Telegram.Path == "" {
		cfg.Telegram.Path = "/ingest/telegram"
	}
}

func applyEnvOverrides(cfg *Config) {
	if raw := os.Getenv("BREWVA_LOG_LEVEL"); raw != "" {
		cfg.LogLevel = raw
	}
	if raw := os.Getenv("BREWVA_LOG_QUIET"); raw != "" {
		if v, err := strconv.ParseBool(raw); err == nil {
			cfg.LogQuiet = v
		}
	}
	if raw := os.Getenv("BREWVA_RUNTIME_POOL_MAX_LIVE_RUNTIMES"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil {
			cfg.RuntimePool.MaxLiveRuntimes = v
		}
	}
	if raw := os.Getenv("BREWVA_RUNTIME_POOL_IDLE_TTL_MS"); raw != "" {
		if v, err := strconv.ParseInt(raw, 10, 64); err == nil {
			cfg.RuntimePool.IdleRuntimeTTLMs = v
		}
	}
	if raw := os.Getenv("BREWVA_OTEL_ENABLED"); raw != "" {
		if v, err := strconv.ParseBool(raw); err == nil {
			cfg.OTel.Enabled = v
		}
	}
	if raw := os.Getenv("BREWVA_OTEL_EXPORTER_ENDPOINT"); raw != "" {
		cfg.OTel.ExporterEndpoint = raw
	}
}
