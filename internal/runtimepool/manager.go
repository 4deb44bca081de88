// Package runtimepool manages a bounded pool of live per-agent
// domain.Runtime instances with LRU/idle-TTL eviction, per-agent config
// overlay plus forced path namespacing, and single-flight construction
// under concurrent demand.
//
// Shaped after an agent lifecycle map that tracks last-touched time and a
// single in-flight guard per agent, generalized from an in-memory session
// pool to a bounded-with-eviction shape, using a plain struct + mutex +
// lastAccess expiry rather than reaching for a third-party LRU.
package runtimepool

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/arcthur/brewva/internal/domain"
)

// RuntimeFactory constructs a domain.Runtime from its final, forced config.
type RuntimeFactory func(agentID string, config map[string]any) (domain.Runtime, error)

// Config bounds the pool's size and idle lifetime.
type Config struct {
	WorkspaceRoot    string
	BaseConfig       map[string]any
	MaxLiveRuntimes  int
	IdleRuntimeTtlMs int64
	Factory          RuntimeFactory

	// Schema, if set, validates each agent's config.json overlay before it
	// is merged into the base config (domain stack: santhosh-tekuri/jsonschema/v6).
	Schema *jsonschema.Schema
}

type slot struct {
	runtime       domain.Runtime
	createdAt     time.Time
	lastUsedAt    time.Time
	inFlightTasks int
}

type pendingCall struct {
	wg      sync.WaitGroup
	runtime domain.Runtime
	err     error
}

// Manager is the bounded runtime pool for one workspace.
type Manager struct {
	cfg Config

	mu      sync.Mutex
	slots   map[string]*slot
	pending map[string]*pendingCall
}

// New constructs a Manager. cfg.Factory must be non-nil.
func New(cfg Config) (*Manager, error) {
	if cfg.Factory == nil {
		return nil, fmt.Errorf("runtimepool: factory is required")
	}
	if cfg.MaxLiveRuntimes <= 0 {
		return nil, fmt.Errorf("runtimepool: maxLiveRuntimes must be positive")
	}
	return &Manager{
		cfg:     cfg,
		slots:   make(map[string]*slot),
		pending: make(map[string]*pendingCall),
	}, nil
}

// GetOrCreateRuntime returns the live runtime for agentID, constructing it
// via the pool's factory on first use.
func (m *Manager) GetOrCreateRuntime(agentID string) (domain.Runtime, error) {
	m.mu.Lock()
	if s, ok := m.slots[agentID]; ok {
		s.lastUsedAt = time.Now().UTC()
		rt := s.runtime
		m.mu.Unlock()
		return rt, nil
	}

	if call, ok := m.pending[agentID]; ok {
		m.mu.Unlock()
		call.wg.Wait()
		return call.runtime, call.err
	}

	call := &pendingCall{}
	call.wg.Add(1)
	m.pending[agentID] = call

	var evictedAgentID string
	var evictErr error
	if len(m.slots) >= m.cfg.MaxLiveRuntimes {
		evictedAgentID, evictErr = m.evictOneLocked()
	}
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		delete(m.pending, agentID)
		m.mu.Unlock()
		call.wg.Done()
	}()

	if evictErr != nil {
		call.err = evictErr
		return nil, evictErr
	}
	_ = evictedAgentID

	config, err := m.buildConfigLocked(agentID)
	if err != nil {
		call.err = err
		return nil, err
	}

	rt, err := m.cfg.Factory(agentID, config)
	if err != nil {
		call.err = err
		return nil, err
	}

	m.mu.Lock()
	now := time.Now().UTC()
	m.slots[agentID] = &slot{runtime: rt, createdAt: now, lastUsedAt: now}
	m.mu.Unlock()

	call.runtime = rt
	return rt, nil
}

// evictOneLocked evicts the least-recently-used idle slot. Caller must hold m.mu.
func (m *Manager) evictOneLocked() (string, error) {
	usages := m.usagesLocked()
	agentID, ok := selectLruEvictableAgent(usages)
	if !ok {
		return "", fmt.Errorf("runtime_pool_exhausted")
	}
	delete(m.slots, agentID)
	return agentID, nil
}

func (m *Manager) usagesLocked() []Usage {
	usages := make([]Usage, 0, len(m.slots))
	for id, s := range m.slots {
		usages = append(usages, Usage{
			AgentID:       id,
			LastUsedAtMs:  s.lastUsedAt.UnixMilli(),
			InFlightTasks: s.inFlightTasks,
		})
	}
	return usages
}

// EvictIdleRuntimes drops runtimes past the idle TTL, and past that the LRU
// ones until the pool is back under MaxLiveRuntimes; returns evicted agent
// IDs in ascending lastUsedAt order, tie-break agentId.
func (m *Manager) EvictIdleRuntimes(nowMs int64) []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	usages := m.usagesLocked()
	evicted := selectIdleEvictableAgentsByTtl(usages, nowMs, m.cfg.IdleRuntimeTtlMs)
	for _, id := range evicted {
		delete(m.slots, id)
	}
	return evicted
}

// BeginTask/EndTask track in-flight work so eviction never drops a busy slot.
func (m *Manager) BeginTask(agentID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.slots[agentID]; ok {
		s.inFlightTasks++
		s.lastUsedAt = time.Now().UTC()
	}
}

func (m *Manager) EndTask(agentID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.slots[agentID]; ok && s.inFlightTasks > 0 {
		s.inFlightTasks--
		s.lastUsedAt = time.Now().UTC()
	}
}

// Size reports the number of live runtimes.
func (m *Manager) Size() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.slots)
}

// buildConfigLocked loads the agent's config.json overlay (if present),
// validates it against the schema when configured, deep-merges it onto the
// base config, and forces the per-agent state paths the pool requires.
func (m *Manager) buildConfigLocked(agentID string) (map[string]any, error) {
	overlay, err := m.loadOverlay(agentID)
	if err != nil {
		return nil, err
	}

	merged := deepMergeClone(m.cfg.BaseConfig)
	deepMergeInto(merged, overlay)

	stateDir := filepath.Join(".brewva", "agents", agentID, "state")
	setNested(merged, "ledger.path", filepath.Join(stateDir, "ledger", "evidence.jsonl"))
	setNested(merged, "memory.dir", filepath.Join(stateDir, "memory"))
	setNested(merged, "infrastructure.events.dir", filepath.Join(stateDir, "events"))
	setNested(merged, "infrastructure.turnWal.dir", filepath.Join(stateDir, "turn-wal"))
	setNested(merged, "schedule.projectionPath", filepath.Join(stateDir, "schedule", "intents.jsonl"))
	setNested(merged, "schedule.enabled", false)

	return merged, nil
}

func (m *Manager) loadOverlay(agentID string) (map[string]any, error) {
	path := filepath.Join(m.cfg.WorkspaceRoot, ".brewva", "agents", agentID, "config.json")
	b, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return map[string]any{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("runtimepool: read overlay: %w", err)
	}

	var overlay map[string]any
	if err := json.Unmarshal(b, &overlay); err != nil {
		if syn, ok := err.(*json.SyntaxError); ok {
			return nil, fmt.Errorf("invalid_agent_config:%s:%s", agentID, syn.Error())
		}
		return nil, fmt.Errorf("invalid_agent_config:%s:%s", agentID, err.Error())
	}

	if m.cfg.Schema != nil {
		if err := m.cfg.Schema.Validate(overlay); err != nil {
			return nil, fmt.Errorf("invalid_agent_config:%s:%s", agentID, err.Error())
		}
	}

	return overlay, nil
}

func deepMergeClone(src map[string]any) map[string]any {
	out := make(map[string]any, len(src))
	deepMergeInto(out, src)
	return out
}

// deepMergeInto merges src onto dst in place: nested maps merge recursively,
// any other value in src overwrites dst's.
func deepMergeInto(dst, src map[string]any) {
	for k, v := range src {
		if srcMap, ok := v.(map[string]any); ok {
			if dstMap, ok := dst[k].(map[string]any); ok {
				deepMergeInto(dstMap, srcMap)
				continue
			}
			clone := make(map[string]any)
			deepMergeInto(clone, srcMap)
			dst[k] = clone
			continue
		}
		dst[k] = v
	}
}

// setNested writes value at a dotted key path, creating intermediate maps.
func setNested(m map[string]any, dottedKey string, value any) {
	parts := splitDotted(dottedKey)
	cur := m
	for i, p := range parts {
		if i == len(parts)-1 {
			cur[p] = value
			return
		}
		next, ok := cur[p].(map[string]any)
		if !ok {
			next = make(map[string]any)
			cur[p] = next
		}
		cur = next
	}
}

func splitDotted(s string) []string {
	var parts []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '.' {
			parts = append(parts, s[start:i])
			start = i + 1
		}
	}
	parts = append(parts, s[start:])
	return parts
}
