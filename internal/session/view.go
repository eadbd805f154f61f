// Package session holds the client side of the protocol: the
// per-conversation view that reconciles broadcast events against an
// authoritative snapshot, and the small cross-component UI state holder.
package session

import (
	"sync"

	"github.com/mrfansi/slacky/internal/chat"
	"github.com/mrfansi/slacky/internal/models"
)

// ConversationView is a client's locally held view of one conversation:
// an authoritative snapshot merged with an unbounded stream of broadcast
// events. Merge rules:
//
//   - new messages are appended only if not already present (id-based
//     de-duplication against the snapshot) and never if they are thread
//     replies — those must not leak into the main view;
//   - reactions are added/removed by matching (userId, emoji);
//   - reply counts are replaced wholesale, never incremented, so
//     out-of-order events cannot cause drift.
//
// Missed events are not reconstructed; the owner re-loads the snapshot
// after a disconnect.
type ConversationView struct {
	mu             sync.RWMutex
	conversationID string
	viewerID       string
	messages       []models.MessageWithSender
	index          map[string]int
}

// NewConversationView creates an empty view for one conversation
func NewConversationView(conversationID, viewerID string) *ConversationView {
	return &ConversationView{
		conversationID: conversationID,
		viewerID:       viewerID,
		index:          make(map[string]int),
	}
}

// ConversationID returns the conversation this view reconciles
func (v *ConversationView) ConversationID() string {
	return v.conversationID
}

// Load replaces the view with an authoritative snapshot, the recovery
// path after (re)entry or reconnect.
func (v *ConversationView) Load(snapshot []models.MessageWithSender) {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.messages = make([]models.MessageWithSender, 0, len(snapshot))
	v.index = make(map[string]int, len(snapshot))
	for _, msg := range snapshot {
		if msg.IsThreadReply {
			continue
		}
		if _, ok := v.index[msg.ID]; ok {
			continue
		}
		v.index[msg.ID] = len(v.messages)
		v.messages = append(v.messages, msg)
	}
}

// ApplyMessage merges a broadcast message event. Reports whether the view
// changed.
func (v *ConversationView) ApplyMessage(msg models.MessageWithSender) bool {
	if msg.ConversationID != v.conversationID || msg.IsThreadReply {
		return false
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	if _, ok := v.index[msg.ID]; ok {
		return false
	}
	v.index[msg.ID] = len(v.messages)
	v.messages = append(v.messages, msg)
	return true
}

// ApplyReaction appends a broadcast reaction to its target message.
// Idempotent per (userId, emoji); events for unknown messages are dropped.
func (v *ConversationView) ApplyReaction(messageID string, reaction models.ReactionWithUser) {
	v.mu.Lock()
	defer v.mu.Unlock()

	i, ok := v.index[messageID]
	if !ok {
		return
	}
	for _, existing := range v.messages[i].Reactions {
		if existing.UserID == reaction.UserID && existing.Emoji == reaction.Emoji {
			return
		}
	}
	v.messages[i].Reactions = append(v.messages[i].Reactions, reaction)
}

// RemoveReaction drops the reaction matching (userId, emoji)
func (v *ConversationView) RemoveReaction(messageID, userID, emoji string) {
	v.mu.Lock()
	defer v.mu.Unlock()

	i, ok := v.index[messageID]
	if !ok {
		return
	}
	reactions := v.messages[i].Reactions
	for j, existing := range reactions {
		if existing.UserID == userID && existing.Emoji == emoji {
			v.messages[i].Reactions = append(reactions[:j], reactions[j+1:]...)
			return
		}
	}
}

// SetReplyCount replaces a message's reply count wholesale
func (v *ConversationView) SetReplyCount(messageID string, count int) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if i, ok := v.index[messageID]; ok {
		v.messages[i].ReplyCount = count
	}
}

// Messages returns a copy of the current ordered view. Reaction slices are
// copied too; the live view edits them in place, so a shared backing array
// would mutate under the snapshot holder.
func (v *ConversationView) Messages() []models.MessageWithSender {
	v.mu.RLock()
	defer v.mu.RUnlock()

	out := make([]models.MessageWithSender, len(v.messages))
	copy(out, v.messages)
	for i := range out {
		out[i].Reactions = append([]models.ReactionWithUser(nil), out[i].Reactions...)
	}
	return out
}

// ReactionGroups returns the per-emoji display groups for one message,
// from the viewer's perspective.
func (v *ConversationView) ReactionGroups(messageID string) []models.ReactionGroup {
	v.mu.RLock()
	defer v.mu.RUnlock()

	i, ok := v.index[messageID]
	if !ok {
		return nil
	}
	return chat.GroupReactions(v.messages[i].Reactions, v.viewerID)
}
