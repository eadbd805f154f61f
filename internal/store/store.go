// Package store is the persistence gateway: typed operations over the
// relational schema consumed by the chat services. Two implementations
// exist, Postgres (pgx) and Memory.
package store

import (
	"context"
	"errors"

	"github.com/mrfansi/slacky/internal/models"
)

var (
	// ErrNotFound is returned when a referenced row does not exist
	ErrNotFound = errors.New("store: not found")

	// ErrDuplicate is returned when a uniqueness constraint is violated
	ErrDuplicate = errors.New("store: duplicate")
)

// Store is the contract the chat services need from a durable store.
//
// CreateMessage is the one compound write: for a top-level message it also
// flags every other participant unread and touches the conversation's
// updatedAt, as a single atomic unit — readers never observe a message
// without its side effects.
type Store interface {
	// Users
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	ListUsers(ctx context.Context, excludeUserID string) ([]models.User, error)

	// Conversations
	CreateConversation(ctx context.Context, conv *models.Conversation, memberIDs []string) error
	GetConversation(ctx context.Context, id string) (*models.Conversation, error)
	// GetOrCreateDirectConversation resolves the single private
	// conversation for an unordered user pair, creating it if absent.
	// The canonical pair key makes concurrent calls from both sides
	// converge on one row. The bool reports whether a row was created.
	GetOrCreateDirectConversation(ctx context.Context, userA, userB string) (*models.Conversation, bool, error)
	ListUserConversations(ctx context.Context, userID string) ([]models.Conversation, error)

	// Participants
	ListParticipants(ctx context.Context, conversationID string) ([]models.ParticipantUser, error)
	GetParticipant(ctx context.Context, userID, conversationID string) (*models.Participant, error)
	AddParticipant(ctx context.Context, userID, conversationID string) error
	RemoveParticipant(ctx context.Context, userID, conversationID string) error
	ClearUnread(ctx context.Context, userID, conversationID string) error

	// Messages
	CreateMessage(ctx context.Context, msg *models.Message) error
	GetMessage(ctx context.Context, id string) (*models.MessageWithSender, error)
	// ListMessages returns top-level messages only, oldest first.
	ListMessages(ctx context.Context, conversationID string) ([]models.MessageWithSender, error)
	ListThreadReplies(ctx context.Context, parentID string) ([]models.MessageWithSender, error)
	CountReplies(ctx context.Context, parentID string) (int, error)
	LatestMessage(ctx context.Context, conversationID string) (*models.LatestMessage, error)
	// MarkSeen appends to the seen-by relation, idempotent per
	// (userId, messageId).
	MarkSeen(ctx context.Context, userID string, messageIDs []string) error

	// Reactions
	CreateReaction(ctx context.Context, reaction *models.Reaction) error
	DeleteReaction(ctx context.Context, messageID, userID, emoji string) error
	ListReactions(ctx context.Context, messageID string) ([]models.ReactionWithUser, error)
}

// DirectKey is the canonical pair key for a private conversation: the two
// user ids sorted and joined, so both initiation orders map to one key.
func DirectKey(userA, userB string) string {
	if userB < userA {
		userA, userB = userB, userA
	}
	return userA + ":" + userB
}
