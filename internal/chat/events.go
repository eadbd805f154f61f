package chat

import "github.com/mrfansi/slacky/internal/models"

// Topics. Conversation-scoped message traffic shares one topic and is
// filtered by conversationId on the consumer side; each open thread gets
// its own topic so full reply bodies only reach clients with that thread
// open; thread_updates carries counts only, for the badge on every client.
const (
	TopicMessages      = "chat_messages"
	TopicThreadUpdates = "thread_updates"
	TopicReactions     = "message_reactions"
	TopicGroupUpdates  = "group_updates"
	TopicPresence      = "online-users"
)

// ThreadTopic is the per-parent-message topic replies are published on
func ThreadTopic(parentID string) string {
	return "thread_" + parentID
}

// Event names
const (
	EventNewMessage     = "new_message"
	EventThreadMessage  = "thread_message"
	EventThreadUpdate   = "thread_update"
	EventNewReaction    = "new_reaction"
	EventRemoveReaction = "remove_reaction"
	EventNewGroup       = "new_group"
	EventMemberUpdate   = "member_update"
)

// Member-update actions
const (
	MemberAdded   = "added"
	MemberRemoved = "removed"
)

// NewMessagePayload is broadcast on TopicMessages for every top-level send
type NewMessagePayload struct {
	ConversationID string                   `json:"conversationId"`
	Message        models.MessageWithSender `json:"message"`
}

// ThreadMessagePayload is broadcast on the per-thread topic
type ThreadMessagePayload struct {
	ParentID string                   `json:"parentId"`
	Message  models.MessageWithSender `json:"message"`
}

// ThreadUpdatePayload carries the recomputed reply count, never a delta
type ThreadUpdatePayload struct {
	MessageID  string `json:"messageId"`
	ReplyCount int    `json:"replyCount"`
}

// NewReactionPayload is broadcast on TopicReactions
type NewReactionPayload struct {
	MessageID string                  `json:"messageId"`
	Reaction  models.ReactionWithUser `json:"reaction"`
}

// RemoveReactionPayload identifies the removed reaction by its unique triple
type RemoveReactionPayload struct {
	MessageID string `json:"messageId"`
	UserID    string `json:"userId"`
	Emoji     string `json:"emoji"`
}

// NewGroupPayload is broadcast on TopicGroupUpdates so other members'
// directories refresh without polling
type NewGroupPayload struct {
	Conversation models.ConversationSummary `json:"conversation"`
}

// MemberUpdatePayload is broadcast on TopicGroupUpdates
type MemberUpdatePayload struct {
	ConversationID string `json:"conversationId"`
	Action         string `json:"action"`
	UserID         string `json:"userId"`
}
