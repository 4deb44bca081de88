package command

import (
	"reflect"
	"testing"

	"github.com/arcthur/brewva/internal/domain"
)

func intPtr(n int) *int { return &n }

func TestParseTable(t *testing.T) {
	cases := []struct {
		name  string
		input string
		want  domain.Intent
	}{
		{
			name:  "new-agent name-kv with model",
			input: "/new-agent name=Jack model=openai/gpt-5.3-codex",
			want:  domain.Intent{Kind: domain.IntentNewAgent, AgentID: "jack", Model: "openai/gpt-5.3-codex"},
		},
		{
			name:  "new-agent bare name",
			input: "/new-agent Mike",
			want:  domain.Intent{Kind: domain.IntentNewAgent, AgentID: "mike"},
		},
		{
			name:  "new-agent name is",
			input: "/new-agent name is Rose,",
			want:  domain.Intent{Kind: domain.IntentNewAgent, AgentID: "rose"},
		},
		{
			name:  "mention routes task",
			input: "@jack, fix this bug",
			want:  domain.Intent{Kind: domain.IntentRouteAgent, AgentID: "jack", Task: "fix this bug", ViaMention: true},
		},
		{
			name:  "mention without comma",
			input: "@jack fix this bug",
			want:  domain.Intent{Kind: domain.IntentRouteAgent, AgentID: "jack", Task: "fix this bug", ViaMention: true},
		},
		{
			name:  "focus missing target",
			input: "/focus",
			want:  domain.NewError("Usage: /focus @agent"),
		},
		{
			name:  "focus with target",
			input: "/focus @jack",
			want:  domain.Intent{Kind: domain.IntentFocus, AgentID: "jack"},
		},
		{
			name:  "run missing task",
			input: "/run @jack,@mike",
			want:  domain.NewError("Usage: /run @a,@b <task>"),
		},
		{
			name:  "run with task comma joined",
			input: "/run @jack,@mike fix the build",
			want:  domain.Intent{Kind: domain.IntentRun, AgentIDs: []string{"jack", "mike"}, Task: "fix the build"},
		},
		{
			name:  "discuss with maxRounds anywhere",
			input: "/discuss @jack,@mike maxRounds=3 should we ship",
			want: domain.Intent{
				Kind:      domain.IntentDiscuss,
				AgentIDs:  []string{"jack", "mike"},
				Topic:     "should we ship",
				MaxRounds: intPtr(3),
			},
		},
		{
			name:  "discuss maxRounds trailing",
			input: "/discuss @jack,@mike should we ship maxRounds=2",
			want: domain.Intent{
				Kind:      domain.IntentDiscuss,
				AgentIDs:  []string{"jack", "mike"},
				Topic:     "should we ship",
				MaxRounds: intPtr(2),
			},
		},
		{
			name:  "unknown command",
			input: "/frobnicate something",
			want:  domain.NewError("unknown_command:frobnicate"),
		},
		{
			name:  "list",
			input: "/list",
			want:  domain.Intent{Kind: domain.IntentList},
		},
		{
			name:  "delete-agent",
			input: "/delete-agent @jack",
			want:  domain.Intent{Kind: domain.IntentDeleteAgent, AgentID: "jack"},
		},
		{
			name:  "whitespace trimmed",
			input: "   /list   ",
			want:  domain.Intent{Kind: domain.IntentList},
		},
		{
			name:  "not a command",
			input: "hello there",
			want:  domain.NewError("not_a_command"),
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Parse(tc.input)
			if !reflect.DeepEqual(got, tc.want) {
				t.Errorf("Parse(%q) = %#v, want %#v", tc.input, got, tc.want)
			}
		})
	}
}

func TestParseIsPure(t *testing.T) {
	input := "/run @jack,@mike do the thing"
	first := Parse(input)
	second := Parse(input)
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("Parse is not pure: %#v != %#v", first, second)
	}
}
