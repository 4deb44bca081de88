// Package configwatch watches the registry index and per-agent config
// overlays for external edits (an operator editing agents.json or an
// agent's config.json by hand, outside of the registry/runtimepool APIs)
// and reports them so the rest of the system can react.
//
// Same fsnotify watcher lifecycle as a typical config-reload watcher
// (buffered event channel, non-blocking send, context cancellation closes
// the watcher and the channel), pointed at the registry's dynamic
// agents.json + agents/<id>/config.json set instead of a fixed list of
// config files.
package configwatch

import (
	"context"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/arcthur/brewva/internal/domain"
)

// Event reports a detected external edit.
type Event struct {
	Kind    string // "agents_index" or "agent_config"
	AgentID string // set when Kind == "agent_config"
	Path    string
	Op      fsnotify.Op
}

// ListAgents returns the currently known agents, used to decide which
// agents/<id>/config.json paths to watch.
type ListAgents func() []domain.AgentIdentity

// Watcher watches a workspace's .brewva directory for external config edits.
type Watcher struct {
	workspaceRoot string
	listAgents    ListAgents
	logger        *slog.Logger

	events chan Event

	mu      sync.Mutex
	fsw     *fsnotify.Watcher
	watched map[string]bool
}

// New creates a Watcher for workspaceRoot's .brewva directory.
func New(workspaceRoot string, listAgents ListAgents, logger *slog.Logger) *Watcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{
		workspaceRoot: workspaceRoot,
		listAgents:    listAgents,
		logger:        logger,
		events:        make(chan Event, 16),
		watched:       make(map[string]bool),
	}
}

// Events returns the channel external-edit events are reported on.
func (w *Watcher) Events() <-chan Event {
	return w.events
}

func (w *Watcher) brewvaDir() string {
	return filepath.Join(w.workspaceRoot, ".brewva")
}

func (w *Watcher) agentsIndexPath() string {
	return filepath.Join(w.brewvaDir(), "agents.json")
}

func (w *Watcher) agentConfigPath(agentID string) string {
	return filepath.Join(w.brewvaDir(), "agents", agentID, "config.json")
}

// Start begins watching in a background goroutine and returns once the
// initial watch set is established.
func (w *Watcher) Start(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	w.fsw = fsw

	if err := fsw.Add(w.brewvaDir()); err != nil {
		w.logger.Warn("configwatch: could not watch .brewva directory", "error", err)
	}
	w.watchKnownAgentConfigs()

	go w.loop(ctx)
	return nil
}

func (w *Watcher) watchKnownAgentConfigs() {
	if w.listAgents == nil {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, agent := range w.listAgents() {
		path := w.agentConfigPath(agent.AgentID)
		if w.watched[path] {
			continue
		}
		if err := w.fsw.Add(filepath.Dir(path)); err != nil {
			continue
		}
		w.watched[path] = true
	}
}

func (w *Watcher) loop(ctx context.Context) {
	defer w.fsw.Close()
	defer close(w.events)

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			w.handle(ev)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Error("configwatch: watcher error", "error", err)
		}
	}
}

func (w *Watcher) handle(ev fsnotify.Event) {
	base := filepath.Base(ev.Name)
	var out Event
	switch {
	case base == "agents.json":
		out = Event{Kind: "agents_index", Path: ev.Name, Op: ev.Op}
		// The agent set may have changed; pick up config.json watches for
		// any agent created since Start.
		w.watchKnownAgentConfigs()
	case base == "config.json":
		out = Event{Kind: "agent_config", AgentID: filepath.Base(filepath.Dir(ev.Name)), Path: ev.Name, Op: ev.Op}
	default:
		return
	}

	select {
	case w.events <- out:
	default:
	}
	w.logger.Info("configwatch: external config change detected", "kind", out.Kind, "agent_id", out.AgentID, "path", out.Path)
}
