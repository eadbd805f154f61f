package chat

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrfansi/slacky/internal/models"
)

func TestAddReaction_BroadcastsHydratedReaction(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	alice := f.user(t, "alice")
	bob := f.user(t, "bob")
	conv := f.directConv(t, alice, bob)

	msg, err := f.pipeline.Send(ctx, alice.ID, conv.ID, "react to this", nil)
	require.NoError(t, err)

	captured := f.capture(t, TopicReactions, EventNewReaction)

	reaction, err := f.reactions.Add(ctx, bob.ID, msg.ID, "👍")
	require.NoError(t, err)
	assert.Equal(t, "👍", reaction.Emoji)
	assert.Equal(t, bob.ID, reaction.UserID)
	assert.Equal(t, "bob", reaction.User.Name)

	require.Len(t, *captured, 1)
	payload := decode[NewReactionPayload](t, (*captured)[0])
	assert.Equal(t, msg.ID, payload.MessageID)
	assert.Equal(t, reaction.ID, payload.Reaction.ID)
	assert.Equal(t, "bob", payload.Reaction.User.Name)
}

func TestAddReaction_DuplicateIsConflict(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	alice := f.user(t, "alice")
	bob := f.user(t, "bob")
	conv := f.directConv(t, alice, bob)

	msg, err := f.pipeline.Send(ctx, alice.ID, conv.ID, "hello", nil)
	require.NoError(t, err)

	_, err = f.reactions.Add(ctx, bob.ID, msg.ID, "👍")
	require.NoError(t, err)

	_, err = f.reactions.Add(ctx, bob.ID, msg.ID, "👍")
	assert.ErrorIs(t, err, ErrConflict)

	// Different emoji from the same user is fine
	_, err = f.reactions.Add(ctx, bob.ID, msg.ID, "🎉")
	assert.NoError(t, err)
}

func TestRemoveReaction_ThenReAdd(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	alice := f.user(t, "alice")
	bob := f.user(t, "bob")
	conv := f.directConv(t, alice, bob)

	msg, err := f.pipeline.Send(ctx, alice.ID, conv.ID, "hello", nil)
	require.NoError(t, err)

	captured := f.capture(t, TopicReactions, EventRemoveReaction)

	err = f.reactions.Remove(ctx, bob.ID, msg.ID, "👍")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Empty(t, *captured)

	_, err = f.reactions.Add(ctx, bob.ID, msg.ID, "👍")
	require.NoError(t, err)
	require.NoError(t, f.reactions.Remove(ctx, bob.ID, msg.ID, "👍"))

	require.Len(t, *captured, 1)
	payload := decode[RemoveReactionPayload](t, (*captured)[0])
	assert.Equal(t, msg.ID, payload.MessageID)
	assert.Equal(t, bob.ID, payload.UserID)
	assert.Equal(t, "👍", payload.Emoji)

	// The toggle cycle completes: re-adding succeeds
	_, err = f.reactions.Add(ctx, bob.ID, msg.ID, "👍")
	assert.NoError(t, err)
}

func TestReactions_Rejections(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	alice := f.user(t, "alice")
	bob := f.user(t, "bob")
	outsider := f.user(t, "mallory")
	conv := f.directConv(t, alice, bob)

	msg, err := f.pipeline.Send(ctx, alice.ID, conv.ID, "hello", nil)
	require.NoError(t, err)

	_, err = f.reactions.Add(ctx, bob.ID, msg.ID, "")
	assert.ErrorIs(t, err, ErrValidation)

	_, err = f.reactions.Add(ctx, bob.ID, "no-such-message", "👍")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = f.reactions.Add(ctx, outsider.ID, msg.ID, "👍")
	assert.ErrorIs(t, err, ErrForbidden)

	err = f.reactions.Remove(ctx, outsider.ID, msg.ID, "👍")
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestGroupReactions(t *testing.T) {
	sender := func(id, name string) models.Sender { return models.Sender{ID: id, Name: name} }
	reaction := func(emoji, userID, name string) models.ReactionWithUser {
		return models.ReactionWithUser{
			Reaction: models.Reaction{Emoji: emoji, UserID: userID},
			User:     sender(userID, name),
		}
	}

	groups := GroupReactions([]models.ReactionWithUser{
		reaction("👍", "u1", "alice"),
		reaction("🎉", "u2", "bob"),
		reaction("👍", "u2", "bob"),
		reaction("👍", "u3", "carol"),
	}, "u2")

	require.Len(t, groups, 2)

	// Groups follow first appearance of each emoji
	assert.Equal(t, "👍", groups[0].Emoji)
	assert.Equal(t, 3, groups[0].Count)
	assert.True(t, groups[0].ReactedByMe)
	assert.Equal(t, []models.Sender{
		sender("u1", "alice"), sender("u2", "bob"), sender("u3", "carol"),
	}, groups[0].Users)

	assert.Equal(t, "🎉", groups[1].Emoji)
	assert.Equal(t, 1, groups[1].Count)
	assert.True(t, groups[1].ReactedByMe)

	viewerless := GroupReactions([]models.ReactionWithUser{reaction("👍", "u1", "alice")}, "u9")
	require.Len(t, viewerless, 1)
	assert.False(t, viewerless[0].ReactedByMe)
}

func TestGroupReactions_Empty(t *testing.T) {
	groups := GroupReactions(nil, "u1")
	assert.NotNil(t, groups)
	assert.Empty(t, groups)
}
