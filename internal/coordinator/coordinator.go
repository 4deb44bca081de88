// Package coordinator fans tasks out across agents, runs round-robin
// discussions with early-stop, and relays agent-to-agent messages under
// depth/hop limits. Shaped after a registry driving parallel dispatch calls
// through a single collaborator, generalized from one call per request to N
// dispatches with aggregation and limits.
package coordinator

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/arcthur/brewva/internal/domain"
)

// Dispatcher is the injected collaborator that performs one agent call.
type Dispatcher func(ctx context.Context, req domain.DispatchRequest) domain.DispatchResult

// Limits bounds every coordinator operation.
type Limits struct {
	FanoutMaxAgents     int
	MaxDiscussionRounds int
	A2aMaxDepth         int
	A2aMaxHops          int
}

// Config wires the Coordinator's injected collaborators.
type Config struct {
	Limits Limits

	Dispatch       Dispatcher
	IsAgentActive  func(agentID string) bool
	ListAgents     func() []domain.AgentIdentity

	// ResolveAgentBySessionID and ForbidSelfA2A are optional; when either is
	// unset, a2aSend never blocks on the self-target rule.
	ResolveAgentBySessionID func(sessionID string) (string, bool)
	ForbidSelfA2A           bool
}

// Coordinator dispatches turns across one or more agents.
type Coordinator struct {
	cfg Config
}

// New constructs a Coordinator. Dispatch, IsAgentActive, ListAgents are required.
func New(cfg Config) (*Coordinator, error) {
	if cfg.Dispatch == nil || cfg.IsAgentActive == nil || cfg.ListAgents == nil {
		return nil, fmt.Errorf("coordinator: dispatch, isAgentActive and listAgents are required")
	}
	return &Coordinator{cfg: cfg}, nil
}

// FanOutResult is the outcome of FanOut and A2aBroadcast.
type FanOutResult struct {
	OK      bool                    `json:"ok"`
	Error   string                  `json:"error,omitempty"`
	Results []domain.DispatchResult `json:"results"`
}

// FanOut dispatches task to every active agent in agentIDs in parallel.
func (c *Coordinator) FanOut(ctx context.Context, agentIDs []string, task string) FanOutResult {
	if len(agentIDs) > c.cfg.Limits.FanoutMaxAgents {
		return FanOutResult{OK: false, Error: fmt.Sprintf("fanout_limit_exceeded:%d", c.cfg.Limits.FanoutMaxAgents), Results: []domain.DispatchResult{}}
	}

	active := c.filterActive(agentIDs)
	if len(active) == 0 {
		return FanOutResult{OK: false, Error: "no_active_targets", Results: []domain.DispatchResult{}}
	}

	results := c.dispatchParallel(ctx, active, func(agentID string) domain.DispatchRequest {
		return domain.DispatchRequest{AgentID: agentID, Task: task}
	})

	ok := true
	for _, r := range results {
		if !r.OK {
			ok = false
			break
		}
	}
	return FanOutResult{OK: ok, Results: results}
}

func (c *Coordinator) filterActive(agentIDs []string) []string {
	var active []string
	for _, id := range agentIDs {
		if c.cfg.IsAgentActive(id) {
			active = append(active, id)
		}
	}
	return active
}

// dispatchParallel dispatches one request per id, preserving input order in
// the returned slice regardless of completion order.
func (c *Coordinator) dispatchParallel(ctx context.Context, ids []string, build func(agentID string) domain.DispatchRequest) []domain.DispatchResult {
	results := make([]domain.DispatchResult, len(ids))
	var wg sync.WaitGroup
	for i, id := range ids {
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()
			results[i] = c.dispatchOne(ctx, build(id))
		}(i, id)
	}
	wg.Wait()
	return results
}

func (c *Coordinator) dispatchOne(ctx context.Context, req domain.DispatchRequest) domain.DispatchResult {
	res := c.cfg.Dispatch(ctx, req)
	if !res.OK && ctx.Err() != nil {
		res.Error = "cancelled"
	}
	return res
}

// RoundEntry is one agent's contribution within a discuss round.
type RoundEntry struct {
	AgentID      string `json:"agentId"`
	ResponseText string `json:"responseText"`
}

// DiscussResult is the outcome of Discuss.
type DiscussResult struct {
	OK           bool           `json:"ok"`
	Error        string         `json:"error,omitempty"`
	Rounds       [][]RoundEntry `json:"rounds"`
	StoppedEarly bool           `json:"stoppedEarly"`
}

const doneToken = "[DONE]"

// Discuss round-robins topic across agentIDs for up to
// min(maxRounds ?? limit, limit) rounds, stopping early if any agent's
// response is the literal token [DONE].
func (c *Coordinator) Discuss(ctx context.Context, agentIDs []string, topic string, maxRounds *int) DiscussResult {
	limit := c.cfg.Limits.MaxDiscussionRounds
	rounds := limit
	if maxRounds != nil && *maxRounds < limit {
		rounds = *maxRounds
	}
	if rounds < 0 {
		rounds = 0
	}

	active := c.filterActive(agentIDs)
	if len(active) == 0 {
		return DiscussResult{OK: false, Error: "no_active_targets", Rounds: [][]RoundEntry{}}
	}

	var transcript [][]RoundEntry
	stoppedEarly := false

	for round := 0; round < rounds; round++ {
		var entries []RoundEntry
		prompt := composeDiscussPrompt(topic, transcript)
		for _, agentID := range active {
			res := c.dispatchOne(ctx, domain.DispatchRequest{AgentID: agentID, Message: prompt})
			text := res.ResponseText
			if !res.OK {
				text = ""
			}
			entries = append(entries, RoundEntry{AgentID: agentID, ResponseText: text})
			if strings.TrimSpace(text) == doneToken {
				stoppedEarly = true
				break
			}
		}
		transcript = append(transcript, entries)
		if stoppedEarly {
			break
		}
	}

	return DiscussResult{OK: true, Rounds: transcript, StoppedEarly: stoppedEarly}
}

func composeDiscussPrompt(topic string, transcript [][]RoundEntry) string {
	var b strings.Builder
	b.WriteString(topic)
	for i, round := range transcript {
		fmt.Fprintf(&b, "\n\n--- round %d ---\n", i+1)
		for _, entry := range round {
			fmt.Fprintf(&b, "%s: %s\n", entry.AgentID, entry.ResponseText)
		}
	}
	return b.String()
}

// A2aSendRequest is the input to A2aSend.
type A2aSendRequest struct {
	FromSessionID string
	ToAgentID     string
	Message       string
	Depth         int
	Hops          int
}

// A2aSend dispatches one agent-to-agent message, enforcing the self-target,
// depth, and hop rules.
func (c *Coordinator) A2aSend(ctx context.Context, req A2aSendRequest) domain.DispatchResult {
	if c.cfg.ForbidSelfA2A && c.cfg.ResolveAgentBySessionID != nil {
		if from, ok := c.cfg.ResolveAgentBySessionID(req.FromSessionID); ok && from == req.ToAgentID {
			return domain.DispatchResult{OK: false, AgentID: req.ToAgentID, Error: "a2a_self_target_blocked"}
		}
	}
	if req.Depth >= c.cfg.Limits.A2aMaxDepth {
		return domain.DispatchResult{OK: false, AgentID: req.ToAgentID, Error: "a2a_depth_limit_exceeded"}
	}
	if req.Hops >= c.cfg.Limits.A2aMaxHops {
		return domain.DispatchResult{OK: false, AgentID: req.ToAgentID, Error: "a2a_hop_limit_exceeded"}
	}
	if !c.cfg.IsAgentActive(req.ToAgentID) {
		return domain.DispatchResult{OK: false, AgentID: req.ToAgentID, Error: fmt.Sprintf("a2a_target_inactive:%s", req.ToAgentID)}
	}

	return c.dispatchOne(ctx, domain.DispatchRequest{
		AgentID:         req.ToAgentID,
		Message:         req.Message,
		ParentSessionID: req.FromSessionID,
		Depth:           req.Depth + 1,
		Hops:            req.Hops + 1,
	})
}

// A2aBroadcast is FanOut using A2aSend per target: the fan-out limit is
// checked first and returns empty results when tripped, then each leg's
// depth/hop caps apply independently.
func (c *Coordinator) A2aBroadcast(ctx context.Context, fromSessionID string, agentIDs []string, message string, depth, hops int) FanOutResult {
	if len(agentIDs) > c.cfg.Limits.FanoutMaxAgents {
		return FanOutResult{OK: false, Error: fmt.Sprintf("fanout_limit_exceeded:%d", c.cfg.Limits.FanoutMaxAgents), Results: []domain.DispatchResult{}}
	}

	results := make([]domain.DispatchResult, len(agentIDs))
	var wg sync.WaitGroup
	for i, id := range agentIDs {
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()
			results[i] = c.A2aSend(ctx, A2aSendRequest{
				FromSessionID: fromSessionID,
				ToAgentID:     id,
				Message:       message,
				Depth:         depth,
				Hops:          hops,
			})
		}(i, id)
	}
	wg.Wait()

	ok := true
	for _, r := range results {
		if !r.OK {
			ok = false
			break
		}
	}
	return FanOutResult{OK: ok, Results: results}
}
