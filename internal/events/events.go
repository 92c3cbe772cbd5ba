// Package events is the change feed: every store mutation that clients care
// about becomes an envelope on a Kafka topic, keyed by conversation so
// ordering holds per conversation.
package events

import "encoding/json"

const (
	TypeMessageCreated      = "message.created"
	TypeMessageRead         = "message.read"
	TypeGroupMessageCreated = "group_message.created"
	TypeGroupUpdated        = "group.updated"
	TypeGroupMemberChanged  = "group_member.changed"
	TypePresenceChanged     = "presence.changed"
	TypeProfileUpdated      = "profile.updated"
)

// Envelope carries one change. Recipients is resolved at publish time so the
// fan-out layer needs no store access.
type Envelope struct {
	Type           string          `json:"type"`
	ConversationID string          `json:"conversation_id,omitempty"`
	Recipients     []string        `json:"recipients"`
	Payload        json.RawMessage `json:"payload"`
}

func NewEnvelope(typ, convID string, recipients []string, payload interface{}) (*Envelope, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &Envelope{Type: typ, ConversationID: convID, Recipients: recipients, Payload: b}, nil
}
