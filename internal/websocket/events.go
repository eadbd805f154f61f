package websocket

import (
	"encoding/json"
	"time"
)

// Client-initiated actions. A client attaches to one conversation at a
// time for live traffic and may open any number of thread dialogs.
const (
	ActionSubscribe   = "subscribe"
	ActionUnsubscribe = "unsubscribe"
	ActionOpenThread  = "open_thread"
	ActionCloseThread = "close_thread"
)

// WSMessage is the frame relayed to clients: the bus event, the topic it
// arrived on, and the payload untouched.
type WSMessage struct {
	Type      string          `json:"type"`
	Topic     string          `json:"topic"`
	Payload   json.RawMessage `json:"payload"`
	Timestamp time.Time       `json:"timestamp"`
}

// IncomingMessage represents messages received from clients
type IncomingMessage struct {
	Type    string          `json:"type"`
	Payload IncomingPayload `json:"payload"`
}

// IncomingPayload carries the target of a client action
type IncomingPayload struct {
	ConversationID string `json:"conversationId,omitempty"`
	MessageID      string `json:"messageId,omitempty"`
}
