package main

import (
	"context"
	"fmt"

	"github.com/arcthur/brewva/internal/domain"
)

// dispatch is the coordinator.Dispatcher collaborator: it gets-or-creates the
// target agent's runtime, asks it to build the injected prompt for this
// turn, and records the exchange to the event store. Actual LLM inference
// happens inside whatever domain.Runtime the pool's factory constructs —
// here that's passthroughRuntime, which just echoes the injection back.
func (a *app) dispatch(ctx context.Context, req domain.DispatchRequest) domain.DispatchResult {
	// BeginTask must run after the slot exists, not before: against a brand
	// new agent it would otherwise no-op (manager.go has no slot to mark
	// yet), leaving the freshly created slot briefly eviction-eligible to a
	// concurrent GetOrCreateRuntime for a different agent.
	rt, err := a.pool.GetOrCreateRuntime(req.AgentID)
	if err != nil {
		return domain.DispatchResult{OK: false, AgentID: req.AgentID, Error: err.Error()}
	}
	a.pool.BeginTask(req.AgentID)
	defer a.pool.EndTask(req.AgentID)

	prompt := req.Task
	if prompt == "" {
		prompt = req.Message
	}
	sessionID := req.ParentSessionID
	if sessionID == "" {
		sessionID = fmt.Sprintf("agent:%s", req.AgentID)
	}

	injected, err := rt.BuildInjection(sessionID, prompt)
	if err != nil {
		return domain.DispatchResult{OK: false, AgentID: req.AgentID, Error: err.Error()}
	}

	evt := domain.EventRow{
		SessionID: sessionID,
		Type:      domain.EventTurnEnd,
		Payload: map[string]any{
			"agentId": req.AgentID,
			"prompt":  prompt,
		},
	}
	if err := rt.RecordEvent(evt); err != nil {
		a.logger.Error("runtime event record failed", "agent_id", req.AgentID, "error", err)
	}

	return domain.DispatchResult{OK: true, AgentID: req.AgentID, ResponseText: injected}
}
