package models

import "time"

// Message represents a chat message. A message with a non-nil ParentID is a
// thread reply and never appears in the main conversation view.
type Message struct {
	ID             string    `json:"id" db:"id"`
	Body           *string   `json:"body" db:"body"`
	Image          *string   `json:"image,omitempty" db:"image"`
	SenderID       string    `json:"senderId" db:"sender_id"`
	ConversationID string    `json:"conversationId" db:"conversation_id"`
	ParentID       *string   `json:"parentId" db:"parent_id"`
	IsThreadReply  bool      `json:"isThreadReply" db:"is_thread_reply"`
	CreatedAt      time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt      time.Time `json:"updatedAt" db:"updated_at"`
}

// MessageWithSender is the fully-hydrated message sent to clients and
// broadcast on the message topics. ReplyCount is derived, never stored.
type MessageWithSender struct {
	Message
	Sender     Sender             `json:"sender"`
	ReplyCount int                `json:"replyCount"`
	Reactions  []ReactionWithUser `json:"reactions"`
}
