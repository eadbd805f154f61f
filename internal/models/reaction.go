package models

import "time"

// Reaction is a per-user-per-emoji annotation on a message.
// Unique per (messageId, userId, emoji).
type Reaction struct {
	ID        string    `json:"id" db:"id"`
	Emoji     string    `json:"emoji" db:"emoji"`
	UserID    string    `json:"userId" db:"user_id"`
	MessageID string    `json:"messageId" db:"message_id"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
}

// ReactionWithUser includes the reacting user's display fields
type ReactionWithUser struct {
	Reaction
	User Sender `json:"user"`
}

// ReactionGroup is the per-emoji view clients render: one badge per emoji
// with the reacting users and whether the viewer is among them.
type ReactionGroup struct {
	Emoji       string   `json:"emoji"`
	Count       int      `json:"count"`
	Users       []Sender `json:"users"`
	ReactedByMe bool     `json:"reactedByMe"`
}
