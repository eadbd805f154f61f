package chat

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/mrfansi/slacky/internal/bus"
	"github.com/mrfansi/slacky/internal/models"
	"github.com/mrfansi/slacky/internal/store"
)

// Reactions manages per-user-per-emoji annotations on messages. A user may
// react once per emoji per message; toggling is add/remove driven by the
// viewer's own flag in the grouped view.
type Reactions struct {
	store store.Store
	bus   bus.Bus
	log   zerolog.Logger
}

// NewReactions creates a reaction subsystem
func NewReactions(st store.Store, b bus.Bus, logger zerolog.Logger) *Reactions {
	return &Reactions{store: st, bus: b, log: logger}
}

// Add creates a reaction and broadcasts new_reaction. Duplicate
// (message, user, emoji) triples are rejected with ErrConflict.
func (r *Reactions) Add(ctx context.Context, userID, messageID, emoji string) (*models.ReactionWithUser, error) {
	if emoji == "" {
		return nil, fmt.Errorf("%w: emoji is required", ErrValidation)
	}

	msg, err := r.store.GetMessage(ctx, messageID)
	if err != nil {
		return nil, storeErr(err, "message")
	}
	if err := requireParticipant(ctx, r.store, userID, msg.ConversationID); err != nil {
		return nil, err
	}

	user, err := r.store.GetUserByID(ctx, userID)
	if err != nil {
		return nil, storeErr(err, "user")
	}

	reaction := models.Reaction{
		Emoji:     emoji,
		UserID:    userID,
		MessageID: messageID,
	}
	if err := r.store.CreateReaction(ctx, &reaction); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, fmt.Errorf("%w: already reacted with this emoji", ErrConflict)
		}
		return nil, storeErr(err, "message")
	}

	hydrated := models.ReactionWithUser{Reaction: reaction, User: user.ToSender()}

	r.log.Debug().Str("message_id", messageID).Str("user_id", userID).
		Str("emoji", emoji).Msg("reaction added")
	publish(ctx, r.bus, r.log, TopicReactions, EventNewReaction, NewReactionPayload{
		MessageID: messageID,
		Reaction:  hydrated,
	})

	return &hydrated, nil
}

// Remove deletes a reaction and broadcasts remove_reaction. Removing a
// reaction that does not exist is ErrNotFound.
func (r *Reactions) Remove(ctx context.Context, userID, messageID, emoji string) error {
	if emoji == "" {
		return fmt.Errorf("%w: emoji is required", ErrValidation)
	}

	msg, err := r.store.GetMessage(ctx, messageID)
	if err != nil {
		return storeErr(err, "message")
	}
	if err := requireParticipant(ctx, r.store, userID, msg.ConversationID); err != nil {
		return err
	}

	if err := r.store.DeleteReaction(ctx, messageID, userID, emoji); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("%w: reaction", ErrNotFound)
		}
		return err
	}

	r.log.Debug().Str("message_id", messageID).Str("user_id", userID).
		Str("emoji", emoji).Msg("reaction removed")
	publish(ctx, r.bus, r.log, TopicReactions, EventRemoveReaction, RemoveReactionPayload{
		MessageID: messageID,
		UserID:    userID,
		Emoji:     emoji,
	})
	return nil
}

// List returns a message's reactions in creation order
func (r *Reactions) List(ctx context.Context, userID, messageID string) ([]models.ReactionWithUser, error) {
	msg, err := r.store.GetMessage(ctx, messageID)
	if err != nil {
		return nil, storeErr(err, "message")
	}
	if err := requireParticipant(ctx, r.store, userID, msg.ConversationID); err != nil {
		return nil, err
	}
	return r.store.ListReactions(ctx, messageID)
}

// GroupReactions collapses a reaction list into per-emoji display groups:
// count, reacting users, and whether the viewer is among them. Group order
// follows first appearance of each emoji.
func GroupReactions(reactions []models.ReactionWithUser, viewerID string) []models.ReactionGroup {
	groups := []models.ReactionGroup{}
	index := map[string]int{}

	for _, reaction := range reactions {
		i, ok := index[reaction.Emoji]
		if !ok {
			i = len(groups)
			index[reaction.Emoji] = i
			groups = append(groups, models.ReactionGroup{Emoji: reaction.Emoji, Users: []models.Sender{}})
		}
		groups[i].Count++
		groups[i].Users = append(groups[i].Users, reaction.User)
		if reaction.UserID == viewerID {
			groups[i].ReactedByMe = true
		}
	}
	return groups
}
