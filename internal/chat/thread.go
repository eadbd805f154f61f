package chat

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/mrfansi/slacky/internal/bus"
	"github.com/mrfansi/slacky/internal/models"
	"github.com/mrfansi/slacky/internal/store"
)

// Threads is the reply pipeline, scoped by parent message. Replies do not
// touch unread flags or the conversation's updatedAt; their live surface
// is the per-thread topic plus a count-only update for badge rendering.
type Threads struct {
	store store.Store
	bus   bus.Bus
	log   zerolog.Logger
}

// NewThreads creates a thread subsystem
func NewThreads(st store.Store, b bus.Bus, logger zerolog.Logger) *Threads {
	return &Threads{store: st, bus: b, log: logger}
}

// PostReply persists a reply under the parent message, recomputes the
// parent's reply count by counting rows, and publishes two independent
// events: the full reply on the per-thread topic (only clients with the
// thread open receive the body) and the new count on the thread-updates
// topic (every subscriber's badge updates).
func (t *Threads) PostReply(ctx context.Context, senderID, parentID, body string) (*models.MessageWithSender, int, error) {
	if body == "" {
		return nil, 0, fmt.Errorf("%w: message cannot be empty", ErrValidation)
	}

	parent, err := t.store.GetMessage(ctx, parentID)
	if err != nil {
		return nil, 0, storeErr(err, "parent message")
	}
	if err := requireParticipant(ctx, t.store, senderID, parent.ConversationID); err != nil {
		return nil, 0, err
	}

	sender, err := t.store.GetUserByID(ctx, senderID)
	if err != nil {
		return nil, 0, storeErr(err, "sender")
	}

	msg := models.Message{
		Body:           &body,
		SenderID:       senderID,
		ConversationID: parent.ConversationID,
		ParentID:       &parent.ID,
		IsThreadReply:  true,
	}
	if err := t.store.CreateMessage(ctx, &msg); err != nil {
		return nil, 0, storeErr(err, "parent message")
	}

	replyCount, err := t.store.CountReplies(ctx, parent.ID)
	if err != nil {
		return nil, 0, err
	}

	hydrated := models.MessageWithSender{
		Message:   msg,
		Sender:    sender.ToSender(),
		Reactions: []models.ReactionWithUser{},
	}

	t.log.Debug().Str("message_id", msg.ID).Str("parent_id", parent.ID).
		Str("user_id", senderID).Int("reply_count", replyCount).Msg("thread reply posted")
	publish(ctx, t.bus, t.log, ThreadTopic(parent.ID), EventThreadMessage, ThreadMessagePayload{
		ParentID: parent.ID,
		Message:  hydrated,
	})
	publish(ctx, t.bus, t.log, TopicThreadUpdates, EventThreadUpdate, ThreadUpdatePayload{
		MessageID:  parent.ID,
		ReplyCount: replyCount,
	})

	return &hydrated, replyCount, nil
}

// GetThread returns the parent message and its ordered replies, each with
// its reaction list attached.
func (t *Threads) GetThread(ctx context.Context, userID, parentID string) (*models.MessageWithSender, []models.MessageWithSender, error) {
	parent, err := t.store.GetMessage(ctx, parentID)
	if err != nil {
		return nil, nil, storeErr(err, "parent message")
	}
	if err := requireParticipant(ctx, t.store, userID, parent.ConversationID); err != nil {
		return nil, nil, err
	}

	parent.ReplyCount, err = t.store.CountReplies(ctx, parent.ID)
	if err != nil {
		return nil, nil, err
	}
	parent.Reactions, err = t.store.ListReactions(ctx, parent.ID)
	if err != nil {
		return nil, nil, err
	}

	replies, err := t.store.ListThreadReplies(ctx, parentID)
	if err != nil {
		return nil, nil, err
	}
	for i := range replies {
		replies[i].Reactions, err = t.store.ListReactions(ctx, replies[i].ID)
		if err != nil {
			return nil, nil, err
		}
	}

	return parent, replies, nil
}
