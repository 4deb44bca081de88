package runtimepool

import "testing"

func TestSelectLruEvictableAgentPicksOldestIdle(t *testing.T) {
	usages := []Usage{
		{AgentID: "jack", LastUsedAtMs: 300},
		{AgentID: "mike", LastUsedAtMs: 100},
		{AgentID: "rose", LastUsedAtMs: 200, InFlightTasks: 1},
	}
	got, ok := selectLruEvictableAgent(usages)
	if !ok || got != "mike" {
		t.Fatalf("got (%q, %v), want (\"mike\", true)", got, ok)
	}
}

func TestSelectLruEvictableAgentSkipsInFlight(t *testing.T) {
	usages := []Usage{
		{AgentID: "jack", LastUsedAtMs: 100, InFlightTasks: 1},
	}
	_, ok := selectLruEvictableAgent(usages)
	if ok {
		t.Fatal("expected no evictable agent when the only slot is busy")
	}
}

func TestSelectLruEvictableAgentTieBreaksByID(t *testing.T) {
	usages := []Usage{
		{AgentID: "rose", LastUsedAtMs: 100},
		{AgentID: "jack", LastUsedAtMs: 100},
	}
	got, ok := selectLruEvictableAgent(usages)
	if !ok || got != "jack" {
		t.Fatalf("got (%q, %v), want (\"jack\", true)", got, ok)
	}
}

func TestSelectIdleEvictableAgentsByTtl(t *testing.T) {
	usages := []Usage{
		{AgentID: "jack", LastUsedAtMs: 0},
		{AgentID: "mike", LastUsedAtMs: 50},
		{AgentID: "rose", LastUsedAtMs: 100, InFlightTasks: 2},
	}
	got := selectIdleEvictableAgentsByTtl(usages, 100, 10)
	want := []string{"jack", "mike"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestSelectIdleEvictableAgentsByTtlNoneDue(t *testing.T) {
	usages := []Usage{{AgentID: "jack", LastUsedAtMs: 95}}
	got := selectIdleEvictableAgentsByTtl(usages, 100, 10)
	if len(got) != 0 {
		t.Fatalf("expected no evictions yet, got %v", got)
	}
}
