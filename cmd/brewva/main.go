// Command brewva runs the orchestration daemon: it loads config, wires the
// registry, runtime pool, coordinator, command router and ACL together,
// starts the Telegram webhook transport and the background idle-runtime
// sweep, and blocks until told to shut down.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"go.opentelemetry.io/otel/trace"
	"gopkg.in/yaml.v3"

	"github.com/arcthur/brewva/internal/bus"
	"github.com/arcthur/brewva/internal/config"
	"github.com/arcthur/brewva/internal/configwatch"
	"github.com/arcthur/brewva/internal/coordinator"
	"github.com/arcthur/brewva/internal/cron"
	"github.com/arcthur/brewva/internal/eventstore"
	"github.com/arcthur/brewva/internal/otelsetup"
	"github.com/arcthur/brewva/internal/registry"
	"github.com/arcthur/brewva/internal/runtimepool"
	"github.com/arcthur/brewva/internal/telemetry"
	"github.com/arcthur/brewva/internal/transport/telegram"
)

const shutdownTimeout = 5 * time.Second

// app holds every long-lived collaborator the ingress handler needs.
type app struct {
	logger *slog.Logger
	cfg    config.Config

	registry       *registry.Registry
	pool           *runtimepool.Manager
	coordinator    *coordinator.Coordinator
	bus            *bus.Bus
	events         *eventstore.Store
	telegramClient *telegram.Client
	tracer         trace.Tracer
}

func main() {
	workspaceFlag := flag.String("workspace", "", "workspace root for agent state (default: current directory)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "brewva: load config: %v\n", err)
		os.Exit(1)
	}

	logger, logFile, err := telemetry.NewLogger(cfg.HomeDir, cfg.LogLevel, cfg.LogQuiet)
	if err != nil {
		fmt.Fprintf(os.Stderr, "brewva: init logger: %v\n", err)
		os.Exit(1)
	}
	defer logFile.Close()

	if cfg.NeedsGenesis {
		writeGenesisConfig(logger, cfg)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	otelProvider, err := otelsetup.Init(ctx, otelsetup.Config{
		Enabled:  cfg.OTel.Enabled,
		Endpoint: cfg.OTel.ExporterEndpoint,
	})
	if err != nil {
		fatal(logger, "E_OTEL_INIT", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := otelProvider.Shutdown(shutdownCtx); err != nil {
			logger.Error("otel shutdown failed", "error", err)
		}
	}()

	workspaceRoot := resolveWorkspaceRoot(*workspaceFlag)
	logger.Info("brewva starting", "workspace_root", workspaceRoot, "home_dir", cfg.HomeDir)

	reg, err := registry.Create(workspaceRoot)
	if err != nil {
		fatal(logger, "E_REGISTRY_INIT", err)
	}

	eventsDir := filepath.Join(workspaceRoot, ".brewva", "events")
	store, err := eventstore.New(eventsDir)
	if err != nil {
		fatal(logger, "E_EVENTSTORE_INIT", err)
	}

	schema, err := compileAgentConfigSchema()
	if err != nil {
		fatal(logger, "E_SCHEMA_COMPILE", err)
	}

	busInst := bus.NewWithLogger(logger)

	pool, err := runtimepool.New(runtimepool.Config{
		WorkspaceRoot:    workspaceRoot,
		BaseConfig:       map[string]any{},
		MaxLiveRuntimes:  cfg.RuntimePool.MaxLiveRuntimes,
		IdleRuntimeTtlMs: cfg.RuntimePool.IdleRuntimeTTLMs,
		Factory:          newPassthroughRuntimeFactory(store),
		Schema:           schema,
	})
	if err != nil {
		fatal(logger, "E_RUNTIME_POOL_INIT", err)
	}

	a := &app{
		logger:   logger,
		cfg:      cfg,
		registry: reg,
		pool:     pool,
		bus:      busInst,
		events:   store,
		tracer:   otelProvider.Tracer,
	}

	coord, err := coordinator.New(coordinator.Config{
		Limits: coordinator.Limits{
			FanoutMaxAgents:     cfg.Coordinator.FanoutMaxAgents,
			MaxDiscussionRounds: cfg.Coordinator.MaxDiscussionRounds,
			A2aMaxDepth:         cfg.Coordinator.A2aMaxDepth,
			A2aMaxHops:          cfg.Coordinator.A2aMaxHops,
		},
		Dispatch:                a.dispatch,
		IsAgentActive:           reg.IsActive,
		ListAgents:              reg.List,
		ResolveAgentBySessionID: resolveAgentBySessionID,
		ForbidSelfA2A:           true,
	})
	if err != nil {
		fatal(logger, "E_COORDINATOR_INIT", err)
	}
	a.coordinator = coord

	sweeper := cron.NewScheduler(cron.Config{
		CronExpr: cfg.RuntimePool.SweepCronExpr,
		Sweep:    pool.EvictIdleRuntimes,
		Logger:   logger,
	})
	sweeper.Start(ctx)
	defer sweeper.Stop()

	watcher := configwatch.New(workspaceRoot, reg.List, logger)
	if err := watcher.Start(ctx); err != nil {
		logger.Error("configwatch start failed", "error", err)
	} else {
		go drainConfigEvents(watcher, busInst, logger)
	}

	telegramCfg, err := telegram.Resolve(cfg.Telegram)
	if err != nil {
		fatal(logger, "E_TELEGRAM_CONFIG", err)
	}

	var transport *telegram.Transport
	var server *telegram.Server
	if telegramCfg.Enabled {
		a.telegramClient = telegram.NewClient(telegramCfg.BotToken)
		transport = telegram.New()
		server = telegram.NewServer(telegramCfg, transport, logger)

		transport.Start(a.onUpdate, func(err error) {
			logger.Error("ingress handler error", "error", err)
		})
		if err := server.Start(); err != nil {
			fatal(logger, "E_TELEGRAM_SERVER_START", err)
		}
		logger.Info("telegram transport started", "host", telegramCfg.Host, "port", telegramCfg.Port, "path", telegramCfg.Path)
	} else {
		logger.Info("telegram transport disabled")
	}

	logger.Info("brewva ready")
	<-ctx.Done()
	logger.Info("brewva shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if server != nil {
		if err := server.Stop(shutdownCtx); err != nil {
			logger.Error("telegram server shutdown error", "error", err)
		}
	}
	if transport != nil {
		transport.Stop()
	}

	logger.Info("brewva stopped")
}

// resolveAgentBySessionID recovers the agent ID from a session ID minted by
// dispatch's "agent:<id>" convention, so A2aSend can block an agent from
// targeting itself.
func resolveAgentBySessionID(sessionID string) (string, bool) {
	const prefix = "agent:"
	if !strings.HasPrefix(sessionID, prefix) {
		return "", false
	}
	return strings.TrimPrefix(sessionID, prefix), true
}

func fatal(logger *slog.Logger, code string, err error) {
	logger.Error("fatal startup error", "code", code, "error", err)
	os.Exit(1)
}

// resolveWorkspaceRoot picks the directory agent state is rooted under:
// the -workspace flag, else BREWVA_WORKSPACE, else the current directory.
func resolveWorkspaceRoot(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if v := os.Getenv("BREWVA_WORKSPACE"); v != "" {
		return v
	}
	wd, err := os.Getwd()
	if err != nil {
		return "."
	}
	return wd
}

// writeGenesisConfig persists the defaults config.Load() already filled in,
// so the next start finds a config.yaml instead of re-deriving defaults.
func writeGenesisConfig(logger *slog.Logger, cfg config.Config) {
	b, err := yaml.Marshal(cfg)
	if err != nil {
		logger.Warn("genesis: could not marshal default config", "error", err)
		return
	}
	path := config.ConfigPath(cfg.HomeDir)
	if err := os.WriteFile(path, b, 0o644); err != nil {
		logger.Warn("genesis: could not write default config", "error", err)
		return
	}
	logger.Info("genesis: wrote default config.yaml", "path", path)
}

// drainConfigEvents logs external edits to agents.json / agent config.json
// and republishes them on the bus so other components can react without
// importing configwatch directly.
func drainConfigEvents(w *configwatch.Watcher, busInst *bus.Bus, logger *slog.Logger) {
	for ev := range w.Events() {
		logger.Info("external config change", "kind", ev.Kind, "agent_id", ev.AgentID, "path", ev.Path)
		busInst.Publish("configwatch."+ev.Kind, ev)
	}
}
