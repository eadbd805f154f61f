package chat

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/mrfansi/slacky/internal/bus"
	"github.com/mrfansi/slacky/internal/models"
	"github.com/mrfansi/slacky/internal/store"
)

// Pipeline handles top-level messages: validate, authorize, persist,
// fan out. The persist step is one atomic unit covering the message row,
// the other participants' unread flags, and the conversation's updatedAt.
type Pipeline struct {
	store store.Store
	bus   bus.Bus
	log   zerolog.Logger
}

// NewPipeline creates a message pipeline
func NewPipeline(st store.Store, b bus.Bus, logger zerolog.Logger) *Pipeline {
	return &Pipeline{store: st, bus: b, log: logger}
}

// Send persists a new top-level message and fans it out on the message
// topic. The returned message is the same hydrated value that was
// broadcast.
func (p *Pipeline) Send(ctx context.Context, senderID, conversationID, body string, image *string) (*models.MessageWithSender, error) {
	if body == "" {
		return nil, fmt.Errorf("%w: message cannot be empty", ErrValidation)
	}
	if conversationID == "" {
		return nil, fmt.Errorf("%w: conversation ID is required", ErrValidation)
	}

	if err := requireParticipant(ctx, p.store, senderID, conversationID); err != nil {
		return nil, err
	}

	sender, err := p.store.GetUserByID(ctx, senderID)
	if err != nil {
		return nil, storeErr(err, "sender")
	}

	msg := models.Message{
		Body:           &body,
		Image:          image,
		SenderID:       senderID,
		ConversationID: conversationID,
		ParentID:       nil,
		IsThreadReply:  false,
	}
	if err := p.store.CreateMessage(ctx, &msg); err != nil {
		return nil, storeErr(err, "conversation")
	}

	hydrated := models.MessageWithSender{
		Message:   msg,
		Sender:    sender.ToSender(),
		Reactions: []models.ReactionWithUser{},
	}

	p.log.Debug().Str("message_id", msg.ID).Str("conversation_id", conversationID).
		Str("user_id", senderID).Msg("message sent")
	publish(ctx, p.bus, p.log, TopicMessages, EventNewMessage, NewMessagePayload{
		ConversationID: conversationID,
		Message:        hydrated,
	})

	return &hydrated, nil
}

// GetMessages returns the conversation's top-level messages oldest first,
// each with its reply count and reaction list. Not idempotent with respect
// to unread counters: every returned message is marked seen by the caller
// and the caller's unread flag is cleared.
func (p *Pipeline) GetMessages(ctx context.Context, userID, conversationID string) ([]models.MessageWithSender, error) {
	if conversationID == "" {
		return nil, fmt.Errorf("%w: conversation ID is required", ErrValidation)
	}
	if err := requireParticipant(ctx, p.store, userID, conversationID); err != nil {
		return nil, err
	}

	messages, err := p.store.ListMessages(ctx, conversationID)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(messages))
	for i := range messages {
		msg := &messages[i]
		ids = append(ids, msg.ID)

		msg.ReplyCount, err = p.store.CountReplies(ctx, msg.ID)
		if err != nil {
			return nil, err
		}
		msg.Reactions, err = p.store.ListReactions(ctx, msg.ID)
		if err != nil {
			return nil, err
		}
	}

	if err := p.store.MarkSeen(ctx, userID, ids); err != nil {
		return nil, err
	}
	if err := p.store.ClearUnread(ctx, userID, conversationID); err != nil {
		return nil, err
	}

	return messages, nil
}
