package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/arcthur/brewva/internal/config"
)

func TestLoadAppliesDefaultsWhenConfigMissing(t *testing.T) {
	home := filepath.Join(t.TempDir(), "home")
	t.Setenv("BREWVA_HOME", home)

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if !cfg.NeedsGenesis {
		t.Fatal("expected NeedsGenesis when config.yaml is absent")
	}
	if cfg.Coordinator.FanoutMaxAgents != 8 {
		t.Fatalf("expected default fanout_max_agents=8, got %d", cfg.Coordinator.FanoutMaxAgents)
	}
	if cfg.RuntimePool.MaxLiveRuntimes != 16 {
		t.Fatalf("expected default max_live_runtimes=16, got %d", cfg.RuntimePool.MaxLiveRuntimes)
	}
	if cfg.ACL.Mode != "open" {
		t.Fatalf("expected default acl mode=open, got %q", cfg.ACL.Mode)
	}
	if cfg.Telegram.Host != "0.0.0.0" || cfg.Telegram.Path != "/ingest/telegram" {
		t.Fatalf("unexpected telegram defaults: %+v", cfg.Telegram)
	}
}

func TestLoadReadsExplicitYaml(t *testing.T) {
	home := filepath.Join(t.TempDir(), "home")
	if err := os.MkdirAll(home, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	yamlBody := "" +
		"coordinator:\n" +
		"  fanout_max_agents: 3\n" +
		"  max_discussion_rounds: 2\n" +
		"acl:\n" +
		"  owners: [\"@arthur\"]\n" +
		"  mode: closed\n" +
		"telegram:\n" +
		"  enabled: true\n" +
		"  host: 10.0.0.5\n"
	if err := os.WriteFile(config.ConfigPath(home), []byte(yamlBody), 0o644); err != nil {
		t.Fatalf("write config.yaml: %v", err)
	}
	t.Setenv("BREWVA_HOME", home)

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.NeedsGenesis {
		t.Fatal("did not expect NeedsGenesis when config.yaml is present")
	}
	if cfg.Coordinator.FanoutMaxAgents != 3 || cfg.Coordinator.MaxDiscussionRounds != 2 {
		t.Fatalf("unexpected coordinator config: %+v", cfg.Coordinator)
	}
	if cfg.ACL.Mode != "closed" || len(cfg.ACL.Owners) != 1 || cfg.ACL.Owners[0] != "@arthur" {
		t.Fatalf("unexpected acl config: %+v", cfg.ACL)
	}
	if !cfg.Telegram.Enabled || cfg.Telegram.Host != "10.0.0.5" {
		t.Fatalf("unexpected telegram config: %+v", cfg.Telegram)
	}
	// Untouched fields still fall back to defaults.
	if cfg.Coordinator.A2aMaxDepth != 4 {
		t.Fatalf("expected default a2a_max_depth=4, got %d", cfg.Coordinator.A2aMaxDepth)
	}
}

func TestLoadEnvOverridesControllerSettings(t *testing.T) {
	home := filepath.Join(t.TempDir(), "home")
	t.Setenv("BREWVA_HOME", home)
	t.Setenv("BREWVA_LOG_LEVEL", "debug")
	t.Setenv("BREWVA_RUNTIME_POOL_MAX_LIVE_RUNTIMES", "4")
	t.Setenv("BREWVA_OTEL_ENABLED", "true")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.LogLevel != "debug" {
		t.Fatalf("expected log level override, got %q", cfg.LogLevel)
	}
	if cfg.RuntimePool.MaxLiveRuntimes != 4 {
		t.Fatalf("expected max_live_runtimes override, got %d", cfg.RuntimePool.MaxLiveRuntimes)
	}
	if !cfg.OTel.Enabled {
		t.Fatal("expected otel enabled override")
	}
}

func TestLoadRejectsMalformedYaml(t *testing.T) {
	home := filepath.Join(t.TempDir(), "home")
	if err := os.MkdirAll(home, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(config.ConfigPath(home), []byte("coordinator: [not a map"), 0o644); err != nil {
		t.Fatalf("write config.yaml: %v", err)
	}
	t.Setenv("BREWVA_HOME", home)

	if _, err := config.Load(); err == nil {
		t.Fatal("expected parse error for malformed config.yaml")
	}
}
