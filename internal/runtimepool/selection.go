package runtimepool

import "sort"

// Usage is one agent's most recent touch, the shape selectLruEvictableAgent
// and selectIdleEvictableAgentsByTtl reason about. Kept free of the pool's
// internal locking so both helpers stay pure and independently testable.
type Usage struct {
	AgentID       string
	LastUsedAtMs  int64
	InFlightTasks int
}

type group struct {
	agentID      string
	maxLastUsed  int64
	hasInFlight  bool
}

func groupByAgent(usages []Usage) []group {
	byAgent := make(map[string]*group)
	var order []string
	for _, u := range usages {
		g, ok := byAgent[u.AgentID]
		if !ok {
			g = &group{agentID: u.AgentID}
			byAgent[u.AgentID] = g
			order = append(order, u.AgentID)
		}
		if u.LastUsedAtMs > g.maxLastUsed {
			g.maxLastUsed = u.LastUsedAtMs
		}
		if u.InFlightTasks > 0 {
			g.hasInFlight = true
		}
	}
	groups := make([]group, 0, len(order))
	for _, id := range order {
		groups = append(groups, *byAgent[id])
	}
	return groups
}

// selectLruEvictableAgent groups usages by agentId, drops any group with an
// in-flight task, and returns the idle group with the smallest maxLastUsed
// (i.e. the least recently used), tie-broken by ascending agentId.
func selectLruEvictableAgent(usages []Usage) (string, bool) {
	groups := groupByAgent(usages)
	var candidates []group
	for _, g := range groups {
		if !g.hasInFlight {
			candidates = append(candidates, g)
		}
	}
	if len(candidates) == 0 {
		return "", false
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].maxLastUsed != candidates[j].maxLastUsed {
			return candidates[i].maxLastUsed < candidates[j].maxLastUsed
		}
		return candidates[i].agentID < candidates[j].agentID
	})
	return candidates[0].agentID, true
}

// selectIdleEvictableAgentsByTtl groups usages by agentId, drops any group
// with an in-flight task, and returns every idle group whose maxLastUsed is
// at or before nowMs-ttlMs, ordered by lastUsed then agentId.
func selectIdleEvictableAgentsByTtl(usages []Usage, nowMs, ttlMs int64) []string {
	groups := groupByAgent(usages)
	cutoff := nowMs - ttlMs
	var candidates []group
	for _, g := range groups {
		if !g.hasInFlight && g.maxLastUsed <= cutoff {
			candidates = append(candidates, g)
		}
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].maxLastUsed != candidates[j].maxLastUsed {
			return candidates[i].maxLastUsed < candidates[j].maxLastUsed
		}
		return candidates[i].agentID < candidates[j].agentID
	})
	out := make([]string, len(candidates))
	for i, g := range candidates {
		out[i] = g.agentID
	}
	return out
}
