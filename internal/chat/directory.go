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

// Directory resolves and lists conversations: the one private conversation
// per user pair, group creation, membership changes, and the per-user
// conversation listing.
type Directory struct {
	store store.Store
	bus   bus.Bus
	log   zerolog.Logger
}

// NewDirectory creates a conversation directory
func NewDirectory(st store.Store, b bus.Bus, logger zerolog.Logger) *Directory {
	return &Directory{store: st, bus: b, log: logger}
}

// requireParticipant authorizes a user against conversation membership
func requireParticipant(ctx context.Context, st store.Store, userID, conversationID string) error {
	_, err := st.GetParticipant(ctx, userID, conversationID)
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("%w: not a participant in this conversation", ErrForbidden)
	}
	return err
}

// publish fans an event out after a successful persist. Failures are
// logged and swallowed: the data is durable, only the live notification
// is missed, and clients recover on their next snapshot fetch.
func publish(ctx context.Context, b bus.Bus, logger zerolog.Logger, topic, event string, payload any) {
	if err := b.Publish(ctx, topic, event, payload); err != nil {
		logger.Warn().Err(err).Str("topic", topic).Str("event", event).Msg("publish failed")
	}
}

// GetOrCreatePrivate returns the single private conversation between the
// two users, creating it on first contact. Idempotent.
func (d *Directory) GetOrCreatePrivate(ctx context.Context, currentUserID, targetUserID string) (*models.Conversation, error) {
	if targetUserID == "" {
		return nil, fmt.Errorf("%w: target user is required", ErrValidation)
	}
	if currentUserID == targetUserID {
		return nil, fmt.Errorf("%w: cannot create a conversation with yourself", ErrValidation)
	}
	if _, err := d.store.GetUserByID(ctx, targetUserID); err != nil {
		return nil, storeErr(err, "target user")
	}

	conv, created, err := d.store.GetOrCreateDirectConversation(ctx, currentUserID, targetUserID)
	if err != nil {
		return nil, storeErr(err, "conversation")
	}
	if created {
		d.log.Info().Str("conversation_id", conv.ID).
			Str("user_id", currentUserID).Str("target_id", targetUserID).
			Msg("private conversation created")
	}
	return conv, nil
}

// CreateGroup creates a group conversation. The creator is always a
// member; the supplied member list is de-duplicated with the creator
// excluded first. Broadcasts new_group so other members' directories
// refresh without polling.
func (d *Directory) CreateGroup(ctx context.Context, creatorID, name string, memberIDs []string) (*models.ConversationSummary, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: group name is required", ErrValidation)
	}
	if len(memberIDs) == 0 {
		return nil, fmt.Errorf("%w: at least one member is required", ErrValidation)
	}

	members := []string{creatorID}
	seen := map[string]bool{creatorID: true}
	for _, id := range memberIDs {
		if !seen[id] {
			seen[id] = true
			members = append(members, id)
		}
	}

	conv := models.Conversation{Name: &name, IsGroup: true}
	if err := d.store.CreateConversation(ctx, &conv, members); err != nil {
		return nil, storeErr(err, "group member")
	}

	participants, err := d.store.ListParticipants(ctx, conv.ID)
	if err != nil {
		return nil, err
	}
	summary := models.ConversationSummary{
		ID:        conv.ID,
		Name:      conv.Name,
		IsGroup:   true,
		CreatedAt: conv.CreatedAt,
		UpdatedAt: conv.UpdatedAt,
	}
	for _, p := range participants {
		summary.Participants = append(summary.Participants, p.User)
	}

	d.log.Info().Str("conversation_id", conv.ID).Str("user_id", creatorID).
		Int("members", len(members)).Msg("group created")
	publish(ctx, d.bus, d.log, TopicGroupUpdates, EventNewGroup, NewGroupPayload{Conversation: summary})

	return &summary, nil
}

// ListConversations returns the user's conversations ordered by updatedAt
// descending, each with the other participants, the latest top-level
// message, and the caller's unread flag. Private conversation names are
// resolved to the other participant's current name, never stored.
func (d *Directory) ListConversations(ctx context.Context, userID string) ([]models.ConversationSummary, error) {
	conversations, err := d.store.ListUserConversations(ctx, userID)
	if err != nil {
		return nil, err
	}

	summaries := []models.ConversationSummary{}
	for _, conv := range conversations {
		participants, err := d.store.ListParticipants(ctx, conv.ID)
		if err != nil {
			return nil, err
		}

		summary := models.ConversationSummary{
			ID:           conv.ID,
			Name:         conv.Name,
			IsGroup:      conv.IsGroup,
			CreatedAt:    conv.CreatedAt,
			UpdatedAt:    conv.UpdatedAt,
			Participants: []models.Sender{},
		}
		for _, p := range participants {
			if p.User.ID == userID {
				summary.HasUnread = p.HasUnreadMessages
				continue
			}
			summary.Participants = append(summary.Participants, p.User)
		}

		if !conv.IsGroup && len(summary.Participants) > 0 {
			other := summary.Participants[0].Name
			summary.Name = &other
		}

		latest, err := d.store.LatestMessage(ctx, conv.ID)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return nil, err
		}
		summary.LatestMessage = latest

		summaries = append(summaries, summary)
	}
	return summaries, nil
}

// GetUsers lists everyone except the caller, for starting conversations
func (d *Directory) GetUsers(ctx context.Context, currentUserID string) ([]models.UserResponse, error) {
	users, err := d.store.ListUsers(ctx, currentUserID)
	if err != nil {
		return nil, err
	}
	out := []models.UserResponse{}
	for i := range users {
		out = append(out, users[i].ToResponse())
	}
	return out, nil
}

// AddMember adds a user to a group conversation. Only legal on groups,
// only for actors who are already members.
func (d *Directory) AddMember(ctx context.Context, actorID, conversationID, userID string) error {
	if err := d.requireGroupMember(ctx, actorID, conversationID); err != nil {
		return err
	}
	if err := d.store.AddParticipant(ctx, userID, conversationID); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return fmt.Errorf("%w: user is already a member", ErrConflict)
		}
		return storeErr(err, "user")
	}

	d.log.Info().Str("conversation_id", conversationID).Str("user_id", userID).Msg("member added")
	publish(ctx, d.bus, d.log, TopicGroupUpdates, EventMemberUpdate, MemberUpdatePayload{
		ConversationID: conversationID,
		Action:         MemberAdded,
		UserID:         userID,
	})
	return nil
}

// RemoveMember removes a user from a group conversation
func (d *Directory) RemoveMember(ctx context.Context, actorID, conversationID, userID string) error {
	if err := d.requireGroupMember(ctx, actorID, conversationID); err != nil {
		return err
	}
	if err := d.store.RemoveParticipant(ctx, userID, conversationID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("%w: user is not a member", ErrNotFound)
		}
		return err
	}

	d.log.Info().Str("conversation_id", conversationID).Str("user_id", userID).Msg("member removed")
	publish(ctx, d.bus, d.log, TopicGroupUpdates, EventMemberUpdate, MemberUpdatePayload{
		ConversationID: conversationID,
		Action:         MemberRemoved,
		UserID:         userID,
	})
	return nil
}

func (d *Directory) requireGroupMember(ctx context.Context, actorID, conversationID string) error {
	conv, err := d.store.GetConversation(ctx, conversationID)
	if err != nil {
		return storeErr(err, "conversation")
	}
	if !conv.IsGroup {
		return fmt.Errorf("%w: not a group conversation", ErrForbidden)
	}
	return requireParticipant(ctx, d.store, actorID, conversationID)
}
