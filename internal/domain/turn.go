// Package domain holds the shared wire types that cross package boundaries:
// turn envelopes, router intents, agent identity, and event rows. None of the
// packages that consume these types own them, so they live here instead of
// being duplicated or creating import cycles.
package domain

import "time"

// TurnSchema is the schema tag carried by every turn envelope.
const TurnSchema = "brewva.turn.v1"

// TurnKind distinguishes a user-originated turn from an agent-originated one.
type TurnKind string

const (
	TurnKindUser  TurnKind = "user"
	TurnKindAgent TurnKind = "agent"
)

// Part is one piece of a turn's content. Only "text" parts are interpreted by
// the core; other part types pass through untouched.
type Part struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// TurnMeta carries identity and free-form metadata for ACL and bookkeeping.
type TurnMeta struct {
	SenderID       string         `json:"senderId,omitempty"`
	SenderUsername string         `json:"senderUsername,omitempty"`
	Extra          map[string]any `json:"extra,omitempty"`
}

// Turn is the normalized record of one inbound or outbound message.
type Turn struct {
	Schema         string    `json:"schema"`
	Kind           TurnKind  `json:"kind"`
	SessionID      string    `json:"sessionId"`
	TurnID         string    `json:"turnId"`
	Channel        string    `json:"channel"`
	ConversationID string    `json:"conversationId"`
	Timestamp      time.Time `json:"timestamp"`
	Parts          []Part    `json:"parts"`
	Meta           TurnMeta  `json:"meta"`
}

// Text concatenates all "text" parts of the turn.
func (t Turn) Text() string {
	var out string
	for _, p := range t.Parts {
		if p.Type == "text" {
			out += p.Text
		}
	}
	return out
}

// NewUserTurn builds a single-text-part user turn with the v1 schema tag.
func NewUserTurn(sessionID, turnID, channel, conversationID, text string, meta TurnMeta) Turn {
	return Turn{
		Schema:         TurnSchema,
		Kind:           TurnKindUser,
		SessionID:      sessionID,
		TurnID:         turnID,
		Channel:        channel,
		ConversationID: conversationID,
		Timestamp:      time.Now().UTC(),
		Parts:          []Part{{Type: "text", Text: text}},
		Meta:           meta,
	}
}
