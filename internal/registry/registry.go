// Package registry implements the persistent, workspace-scoped agent
// identity store: a single JSON index file under
// <workspace>/.brewva/agents.json, soft delete, per-conversation focus
// tracking, and serialized concurrency-safe create/list.
//
// Shaped after an in-memory agent map generalized to a durable,
// atomically-written file, written the way a schema-versioned persistence
// layer writes its state — except here the store is flat JSON, not a
// SQL database.
package registry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/arcthur/brewva/internal/domain"
)

const schemaV1 = "brewva.registry.v1"

// index is the on-disk shape of agents.json.
type index struct {
	Schema string                   `json:"schema"`
	Agents []domain.AgentIdentity   `json:"agents"`
	Focus  map[string]string        `json:"focus"`
}

// Registry is a single workspace's agent identity store.
type Registry struct {
	workspaceRoot string
	indexPath     string

	// mu serializes all mutating calls: one writer at a time per registry
	// instance.
	mu  sync.Mutex
	idx index
}

// Create loads or initializes the registry index for workspaceRoot, seeding
// the reserved "default" agent on first init.
func Create(workspaceRoot string) (*Registry, error) {
	brewvaDir := filepath.Join(workspaceRoot, ".brewva")
	if err := os.MkdirAll(brewvaDir, 0o755); err != nil {
		return nil, fmt.Errorf("registry: mkdir: %w", err)
	}

	r := &Registry{
		workspaceRoot: workspaceRoot,
		indexPath:     filepath.Join(brewvaDir, "agents.json"),
	}

	b, err := os.ReadFile(r.indexPath)
	switch {
	case os.IsNotExist(err):
		r.idx = index{
			Schema: schemaV1,
			Agents: []domain.AgentIdentity{{
				AgentID:   domain.DefaultAgentID,
				CreatedAt: time.Now().UTC(),
			}},
			Focus: make(map[string]string),
		}
		if err := r.writeLocked(); err != nil {
			return nil, err
		}
	case err != nil:
		return nil, fmt.Errorf("registry: read index: %w", err)
	default:
		var loaded index
		if err := json.Unmarshal(b, &loaded); err != nil {
			return nil, fmt.Errorf("registry: parse index: %w", err)
		}
		if loaded.Focus == nil {
			loaded.Focus = make(map[string]string)
		}
		r.idx = loaded
	}

	return r, nil
}

// writeLocked atomically persists r.idx: write to a temp file, then rename.
// Caller must hold r.mu.
func (r *Registry) writeLocked() error {
	b, err := json.MarshalIndent(r.idx, "", "  ")
	if err != nil {
		return fmt.Errorf("registry: marshal index: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(r.indexPath), ".agents-*.json.tmp")
	if err != nil {
		return fmt.Errorf("registry: create temp: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("registry: write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("registry: sync temp: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("registry: close temp: %w", err)
	}
	if err := os.Rename(tmpPath, r.indexPath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("registry: rename: %w", err)
	}
	return nil
}

func foldAgentID(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func (r *Registry) findLocked(agentID string) (int, bool) {
	for i, a := range r.idx.Agents {
		if a.AgentID == agentID {
			return i, true
		}
	}
	return -1, false
}

// CreateAgentResult reports whether an agent was newly created or revived
// from a soft-deleted record.
type CreateAgentResult struct {
	AgentID string
	Created bool
	Revived bool
}

// CreateAgentRequest is the input to CreateAgent.
type CreateAgentRequest struct {
	RequestedAgentID string
	DisplayName      string
}

// CreateAgent folds the requested ID to lowercase, rejects reserved names and
// active duplicates, allows reviving a soft-deleted name, and persists the
// result atomically.
func (r *Registry) CreateAgent(req CreateAgentRequest) (CreateAgentResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	agentID := foldAgentID(req.RequestedAgentID)
	if domain.ReservedAgentIDs[agentID] {
		return CreateAgentResult{}, fmt.Errorf("reserved_agent_id:%s", agentID)
	}

	if i, ok := r.findLocked(agentID); ok {
		existing := r.idx.Agents[i]
		if existing.Active() {
			return CreateAgentResult{}, fmt.Errorf("duplicate_agent_id:%s", agentID)
		}
		// Revive: clear softDeletedAt, refresh display name if provided.
		existing.SoftDeletedAt = nil
		if req.DisplayName != "" {
			existing.DisplayName = req.DisplayName
		}
		r.idx.Agents[i] = existing
		if err := r.writeLocked(); err != nil {
			return CreateAgentResult{}, err
		}
		return CreateAgentResult{AgentID: agentID, Revived: true}, nil
	}

	r.idx.Agents = append(r.idx.Agents, domain.AgentIdentity{
		AgentID:     agentID,
		DisplayName: req.DisplayName,
		CreatedAt:   time.Now().UTC(),
	})
	if err := r.writeLocked(); err != nil {
		// Roll back the in-memory append so a failed write can't desync
		// the cache from disk.
		r.idx.Agents = r.idx.Agents[:len(r.idx.Agents)-1]
		return CreateAgentResult{}, err
	}
	return CreateAgentResult{AgentID: agentID, Created: true}, nil
}

// SoftDeleteAgent marks agentID's softDeletedAt, rejecting attempts on the
// reserved default agent.
func (r *Registry) SoftDeleteAgent(agentID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	agentID = foldAgentID(agentID)
	if agentID == domain.DefaultAgentID {
		return fmt.Errorf("cannot_delete_default")
	}
	i, ok := r.findLocked(agentID)
	if !ok || !r.idx.Agents[i].Active() {
		return nil
	}
	now := time.Now().UTC()
	r.idx.Agents[i].SoftDeletedAt = &now
	return r.writeLocked()
}

// IsActive reports whether agentID exists and is not soft-deleted.
func (r *Registry) IsActive(agentID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	agentID = foldAgentID(agentID)
	i, ok := r.findLocked(agentID)
	return ok && r.idx.Agents[i].Active()
}

// List returns active agents in stable insertion order, default first.
func (r *Registry) List() []domain.AgentIdentity {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]domain.AgentIdentity, 0, len(r.idx.Agents))
	var defaultEntry *domain.AgentIdentity
	for i := range r.idx.Agents {
		a := r.idx.Agents[i]
		if !a.Active() {
			continue
		}
		if a.AgentID == domain.DefaultAgentID {
			cp := a
			defaultEntry = &cp
			continue
		}
		out = append(out, a)
	}
	if defaultEntry != nil {
		out = append([]domain.AgentIdentity{*defaultEntry}, out...)
	}
	return out
}

// SetFocus overlays conversationKey -> agentID.
func (r *Registry) SetFocus(conversationKey, agentID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.idx.Focus[conversationKey] = foldAgentID(agentID)
	return r.writeLocked()
}

// ResolveFocus returns the focused agent for conversationKey, degrading to
// "default" when the target is absent or inactive — a stale focus entry
// never surfaces as an error.
func (r *Registry) ResolveFocus(conversationKey string) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	agentID, ok := r.idx.Focus[conversationKey]
	if !ok {
		return domain.DefaultAgentID
	}
	i, found := r.findLocked(agentID)
	if !found || !r.idx.Agents[i].Active() {
		return domain.DefaultAgentID
	}
	return agentID
}

// WorkspaceRoot returns the workspace directory this registry is scoped to.
func (r *Registry) WorkspaceRoot() string {
	return r.workspaceRoot
}

// AgentStateDir returns the per-agent state root:
// <workspace>/.brewva/agents/<id>/
func (r *Registry) AgentStateDir(agentID string) string {
	return filepath.Join(r.workspaceRoot, ".brewva", "agents", foldAgentID(agentID))
}

// sortedActiveIDs is a small test/debug helper.
func sortedActiveIDs(agents []domain.AgentIdentity) []string {
	var ids []string
	for _, a := range agents {
		if a.Active() {
			ids = append(ids, a.AgentID)
		}
	}
	sort.Strings(ids)
	return ids
}
