package registry

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/arcthur/brewva/internal/domain"
)

func TestCreateSeedsDefaultAgent(t *testing.T) {
	dir := t.TempDir()
	r, err := Create(dir)
	if err != nil {
		t.Fatal(err)
	}
	ids := sortedActiveIDs(r.List())
	if len(ids) != 1 || ids[0] != domain.DefaultAgentID {
		t.Fatalf("expected only [default], got %v", ids)
	}

	if _, err := os.Stat(filepath.Join(dir, ".brewva", "agents.json")); err != nil {
		t.Fatalf("expected agents.json to exist: %v", err)
	}
}

func TestCreateAgentRejectsReservedAndDuplicate(t *testing.T) {
	dir := t.TempDir()
	r, err := Create(dir)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := r.CreateAgent(CreateAgentRequest{RequestedAgentID: "System"}); err == nil {
		t.Fatal("expected reserved-name rejection")
	}

	res, err := r.CreateAgent(CreateAgentRequest{RequestedAgentID: "Jack"})
	if err != nil {
		t.Fatal(err)
	}
	if res.AgentID != "jack" || !res.Created {
		t.Fatalf("unexpected result: %+v", res)
	}

	if _, err := r.CreateAgent(CreateAgentRequest{RequestedAgentID: "jack"}); err == nil {
		t.Fatal("expected duplicate rejection")
	}
}

func TestSoftDeleteThenReviveByCreate(t *testing.T) {
	dir := t.TempDir()
	r, err := Create(dir)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := r.CreateAgent(CreateAgentRequest{RequestedAgentID: "mike"}); err != nil {
		t.Fatal(err)
	}
	if err := r.SoftDeleteAgent("mike"); err != nil {
		t.Fatal(err)
	}
	if r.IsActive("mike") {
		t.Fatal("expected mike to be inactive after soft delete")
	}

	res, err := r.CreateAgent(CreateAgentRequest{RequestedAgentID: "mike", DisplayName: "Mike II"})
	if err != nil {
		t.Fatal(err)
	}
	if !res.Revived {
		t.Fatalf("expected revive, got %+v", res)
	}
	if !r.IsActive("mike") {
		t.Fatal("expected mike active again after revive")
	}
}

func TestSoftDeleteDefaultRejected(t *testing.T) {
	dir := t.TempDir()
	r, err := Create(dir)
	if err != nil {
		t.Fatal(err)
	}
	if err := r.SoftDeleteAgent("default"); err == nil {
		t.Fatal("expected default agent deletion to be rejected")
	}
}

func TestFocusResolutionDegradesToDefault(t *testing.T) {
	dir := t.TempDir()
	r, err := Create(dir)
	if err != nil {
		t.Fatal(err)
	}
	if r.ResolveFocus("chat-1") != domain.DefaultAgentID {
		t.Fatal("expected unset focus to resolve to default")
	}

	if _, err := r.CreateAgent(CreateAgentRequest{RequestedAgentID: "rose"}); err != nil {
		t.Fatal(err)
	}
	if err := r.SetFocus("chat-1", "Rose"); err != nil {
		t.Fatal(err)
	}
	if got := r.ResolveFocus("chat-1"); got != "rose" {
		t.Fatalf("expected rose, got %q", got)
	}

	if err := r.SoftDeleteAgent("rose"); err != nil {
		t.Fatal(err)
	}
	if got := r.ResolveFocus("chat-1"); got != domain.DefaultAgentID {
		t.Fatalf("expected stale focus to degrade to default, got %q", got)
	}
}

// TestConcurrentCreateAgentIsSerialized covers the key concurrency
// scenario: three parallel CreateAgent calls for distinct names must all
// succeed and leave a fully populated, uncorrupted index alongside the
// seeded default agent.
func TestConcurrentCreateAgentIsSerialized(t *testing.T) {
	dir := t.TempDir()
	r, err := Create(dir)
	if err != nil {
		t.Fatal(err)
	}

	names := []string{"jack", "mike", "rose"}
	var wg sync.WaitGroup
	errs := make([]error, len(names))
	for i, name := range names {
		wg.Add(1)
		go func(i int, name string) {
			defer wg.Done()
			_, err := r.CreateAgent(CreateAgentRequest{RequestedAgentID: name})
			errs[i] = err
		}(i, name)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("CreateAgent(%q) failed: %v", names[i], err)
		}
	}

	ids := sortedActiveIDs(r.List())
	want := []string{"default", "jack", "mike", "rose"}
	if len(ids) != len(want) {
		t.Fatalf("expected %v, got %v", want, ids)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, ids)
		}
	}

	// The on-disk file must parse back to the same set, proving no
	// interleaved write corrupted agents.json.
	b, err := os.ReadFile(filepath.Join(dir, ".brewva", "agents.json"))
	if err != nil {
		t.Fatal(err)
	}
	var loaded index
	if err := json.Unmarshal(b, &loaded); err != nil {
		t.Fatalf("agents.json is corrupted: %v", err)
	}
	if len(loaded.Agents) != 4 {
		t.Fatalf("expected 4 persisted agents, got %d", len(loaded.Agents))
	}
}

func TestAgentStateDirIsWorkspaceScoped(t *testing.T) {
	dir := t.TempDir()
	r, err := Create(dir)
	if err != nil {
		t.Fatal(err)
	}
	got := r.AgentStateDir("Jack")
	want := filepath.Join(dir, ".brewva", "agents", "jack")
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}
