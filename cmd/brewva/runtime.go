package main

import (
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/arcthur/brewva/internal/domain"
	"github.com/arcthur/brewva/internal/eventstore"
)

// agentConfigSchemaJSON bounds what an agent's config.json overlay may set:
// a free-form "model" string plus whatever the external runtime needs under
// "runtime". Unknown top-level keys are rejected so a typo in config.json
// surfaces as invalid_agent_config instead of silently doing nothing.
const agentConfigSchemaJSON = `{
	"type": "object",
	"properties": {
		"model": {"type": "string"},
		"runtime": {"type": "object"}
	},
	"additionalProperties": false
}`

// compileAgentConfigSchema compiles the fixed agent-config overlay schema
// once at startup; a bad schema here is a programmer error, not an operator
// one, so callers are expected to fatal on the returned error.
func compileAgentConfigSchema() (*jsonschema.Schema, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("agent_config.json", strings.NewReader(agentConfigSchemaJSON)); err != nil {
		return nil, err
	}
	return compiler.Compile("agent_config.json")
}

// passthroughRuntime is the built-in domain.Runtime: it records every event
// it is handed to the shared event store and echoes whatever prompt it is
// asked to inject. It stands in for the external BrewvaRuntime collaborator
// that a real deployment wires in its place — prompt construction, tool
// calling and LLM inference are not this repository's concern.
type passthroughRuntime struct {
	agentID string
	config  map[string]any
	events  *eventstore.Store
}

func newPassthroughRuntimeFactory(events *eventstore.Store) func(agentID string, config map[string]any) (domain.Runtime, error) {
	return func(agentID string, config map[string]any) (domain.Runtime, error) {
		return &passthroughRuntime{agentID: agentID, config: config, events: events}, nil
	}
}

func (r *passthroughRuntime) Config() map[string]any {
	return r.config
}

func (r *passthroughRuntime) RecordEvent(evt domain.EventRow) error {
	_, err := r.events.Append(evt.SessionID, evt)
	return err
}

func (r *passthroughRuntime) BuildInjection(sessionID, prompt string) (string, error) {
	return prompt, nil
}

func (r *passthroughRuntime) CostSummary(sessionID string) (map[string]any, error) {
	return map[string]any{}, nil
}
