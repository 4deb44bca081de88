package domain

import "time"

// DefaultAgentID is the reserved agent that always exists and can never be
// created or deleted by a caller.
const DefaultAgentID = "default"

// ReservedAgentIDs may not be used as a requested agent ID at creation time.
var ReservedAgentIDs = map[string]bool{
	"default":    true,
	"system":     true,
	"controller": true,
	"brewva":     true,
}

// AgentIdentity is one entry in the agent registry's persisted index.
type AgentIdentity struct {
	AgentID       string     `json:"agentId"`
	DisplayName   string     `json:"displayName,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
	SoftDeletedAt *time.Time `json:"softDeletedAt,omitempty"`
}

// Active reports whether the identity has not been soft-deleted.
func (a AgentIdentity) Active() bool {
	return a.SoftDeletedAt == nil
}

// RuntimeSlot describes one live runtime held by the pool manager.
type RuntimeSlot struct {
	AgentID       string    `json:"agentId"`
	CreatedAt     time.Time `json:"createdAt"`
	LastUsedAt    time.Time `json:"lastUsedAt"`
	InFlightTasks int       `json:"inFlightTasks"`
}

// Evictable reports whether the slot currently has no in-flight work.
func (s RuntimeSlot) Evictable() bool {
	return s.InFlightTasks == 0
}
