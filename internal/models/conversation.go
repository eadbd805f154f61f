package models

import "time"

// Conversation represents a private (2-party) or group (N-party) chat
type Conversation struct {
	ID        string    `json:"id" db:"id"`
	Name      *string   `json:"name" db:"name"` // Null for private conversations
	IsGroup   bool      `json:"isGroup" db:"is_group"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}

// Participant links a user to a conversation and carries per-user unread state
type Participant struct {
	UserID            string    `json:"userId" db:"user_id"`
	ConversationID    string    `json:"conversationId" db:"conversation_id"`
	HasUnreadMessages bool      `json:"hasUnreadMessages" db:"has_unread_messages"`
	JoinedAt          time.Time `json:"joinedAt" db:"joined_at"`
}

// ParticipantUser is a participant with their user details attached
type ParticipantUser struct {
	User              Sender    `json:"user"`
	HasUnreadMessages bool      `json:"hasUnreadMessages"`
	JoinedAt          time.Time `json:"joinedAt"`
}

// LatestMessage is the most recent top-level message preview in a
// conversation listing
type LatestMessage struct {
	Body       *string   `json:"body"`
	SenderName string    `json:"senderName"`
	CreatedAt  time.Time `json:"createdAt"`
}

// ConversationSummary is a conversation as shown in a user's directory.
// Name is resolved at read time: for private conversations it is the
// other participant's name, never a stored value.
type ConversationSummary struct {
	ID            string         `json:"id"`
	Name          *string        `json:"name"`
	IsGroup       bool           `json:"isGroup"`
	CreatedAt     time.Time      `json:"createdAt"`
	UpdatedAt     time.Time      `json:"updatedAt"`
	Participants  []Sender       `json:"participants"`
	HasUnread     bool           `json:"hasUnreadMessages"`
	LatestMessage *LatestMessage `json:"latestMessage,omitempty"`
}
