package domain

import "time"

// EventRow is one append-only row in a session's event log. Payload is an
// open-ended JSON value: the core neither inspects nor validates it beyond
// the tagged Type field.
type EventRow struct {
	ID        string    `json:"id"`
	SessionID string    `json:"sessionId"`
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Turn      *Turn     `json:"turn,omitempty"`
	Payload   any       `json:"payload,omitempty"`
}

// Event type tags recognized by convention (§6). The core does not enforce
// this list; it is documentation for producers.
const (
	EventAgentStart              = "agent_start"
	EventTurnStart                = "turn_start"
	EventTurnEnd                  = "turn_end"
	EventMessageEnd                = "message_end"
	EventToolExecutionStart       = "tool_execution_start"
	EventToolExecutionUpdate     = "tool_execution_update"
	EventToolExecutionEnd         = "tool_execution_end"
	EventAgentEnd                 = "agent_end"
	EventContextInjected          = "context_injected"
	EventContextInjectionDropped = "context_injection_dropped"
	EventAnchor                   = "anchor"
	EventCheckpoint                = "checkpoint"
	EventMessageUpdate             = "message_update"
)

// DispatchRequest is the shape passed to the Coordinator's injected dispatch
// collaborator.
type DispatchRequest struct {
	AgentID         string `json:"agentId"`
	Task            string `json:"task,omitempty"`
	Message         string `json:"message,omitempty"`
	ParentSessionID string `json:"parentSessionId,omitempty"`
	Depth           int    `json:"depth,omitempty"`
	Hops            int    `json:"hops,omitempty"`
}

// DispatchResult is what a dispatch collaborator call returns.
type DispatchResult struct {
	OK           bool   `json:"ok"`
	AgentID      string `json:"agentId"`
	ResponseText string `json:"responseText,omitempty"`
	Error        string `json:"error,omitempty"`
}

// Runtime is the shape of the external BrewvaRuntime collaborator. The core
// never inspects its internals beyond this interface.
type Runtime interface {
	Config() map[string]any
	RecordEvent(evt EventRow) error
	BuildInjection(sessionID, prompt string) (string, error)
	CostSummary(sessionID string) (map[string]any, error)
}
