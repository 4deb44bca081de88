package bus

// HITL-style approval is not part of this bus's surface; Brewva's ACL check
// happens synchronously in the ingress path (internal/acl), so no approval
// topics are defined here.

// AgentAlert carries an operator-facing notice raised by coordinator or
// runtime pool code (e.g. a pool repeatedly exhausted, a runtime construction
// failure loop).
type AgentAlert struct {
	AgentID  string
	Severity string // "info", "warning", or "error"
	Message  string
}

// TopicAgentAlert is the topic AgentAlert is published on.
const TopicAgentAlert = "agent.alert"
