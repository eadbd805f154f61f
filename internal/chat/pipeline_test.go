package chat

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSend_PersistsAndBroadcastsSameValue(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	alice := f.user(t, "alice")
	bob := f.user(t, "bob")
	conv := f.directConv(t, alice, bob)

	captured := f.capture(t, TopicMessages, EventNewMessage)

	sent, err := f.pipeline.Send(ctx, alice.ID, conv.ID, "hello", nil)
	require.NoError(t, err)
	assert.NotEmpty(t, sent.ID)
	assert.Equal(t, "hello", *sent.Body)
	assert.Equal(t, alice.ID, sent.Sender.ID)
	assert.Equal(t, "alice", sent.Sender.Name)
	assert.False(t, sent.IsThreadReply)
	assert.NotNil(t, sent.Reactions)

	require.Len(t, *captured, 1)
	payload := decode[NewMessagePayload](t, (*captured)[0])
	assert.Equal(t, conv.ID, payload.ConversationID)
	// The broadcast carries the same hydrated message the sender got back
	assert.Equal(t, sent.ID, payload.Message.ID)
	assert.Equal(t, *sent.Body, *payload.Message.Body)
	assert.Equal(t, sent.Sender, payload.Message.Sender)
}

func TestSend_Rejections(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	alice := f.user(t, "alice")
	bob := f.user(t, "bob")
	outsider := f.user(t, "mallory")
	conv := f.directConv(t, alice, bob)

	captured := f.capture(t, TopicMessages, EventNewMessage)

	_, err := f.pipeline.Send(ctx, alice.ID, conv.ID, "", nil)
	assert.ErrorIs(t, err, ErrValidation)

	_, err = f.pipeline.Send(ctx, alice.ID, "", "hello", nil)
	assert.ErrorIs(t, err, ErrValidation)

	_, err = f.pipeline.Send(ctx, outsider.ID, conv.ID, "let me in", nil)
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = f.pipeline.Send(ctx, alice.ID, "no-such-conversation", "hello", nil)
	assert.ErrorIs(t, err, ErrForbidden)

	// Nothing leaves the pipeline on a rejected send
	assert.Empty(t, *captured)
}

func TestSend_FlagsRecipientsUnread(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	alice := f.user(t, "alice")
	bob := f.user(t, "bob")
	conv := f.directConv(t, alice, bob)

	_, err := f.pipeline.Send(ctx, alice.ID, conv.ID, "hello", nil)
	require.NoError(t, err)

	sender, err := f.store.GetParticipant(ctx, alice.ID, conv.ID)
	require.NoError(t, err)
	assert.False(t, sender.HasUnreadMessages)

	recipient, err := f.store.GetParticipant(ctx, bob.ID, conv.ID)
	require.NoError(t, err)
	assert.True(t, recipient.HasUnreadMessages)
}

func TestGetMessages_SnapshotWithSideEffects(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	alice := f.user(t, "alice")
	bob := f.user(t, "bob")
	conv := f.directConv(t, alice, bob)

	for i := 0; i < 3; i++ {
		_, err := f.pipeline.Send(ctx, alice.ID, conv.ID, fmt.Sprintf("message %d", i), nil)
		require.NoError(t, err)
	}

	messages, err := f.pipeline.GetMessages(ctx, bob.ID, conv.ID)
	require.NoError(t, err)
	require.Len(t, messages, 3)
	for i, msg := range messages {
		assert.Equal(t, fmt.Sprintf("message %d", i), *msg.Body)
	}

	// Reading clears the reader's unread flag and marks every message seen
	p, err := f.store.GetParticipant(ctx, bob.ID, conv.ID)
	require.NoError(t, err)
	assert.False(t, p.HasUnreadMessages)
	for _, msg := range messages {
		assert.Contains(t, f.store.SeenBy(msg.ID), bob.ID)
	}
}

func TestGetMessages_ExcludesThreadReplies(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	alice := f.user(t, "alice")
	bob := f.user(t, "bob")
	conv := f.directConv(t, alice, bob)

	parent, err := f.pipeline.Send(ctx, alice.ID, conv.ID, "parent", nil)
	require.NoError(t, err)
	_, _, err = f.threads.PostReply(ctx, bob.ID, parent.ID, "reply one")
	require.NoError(t, err)
	_, _, err = f.threads.PostReply(ctx, alice.ID, parent.ID, "reply two")
	require.NoError(t, err)

	messages, err := f.pipeline.GetMessages(ctx, alice.ID, conv.ID)
	require.NoError(t, err)
	require.Len(t, messages, 1, "thread replies must never surface in the conversation feed")
	assert.Equal(t, parent.ID, messages[0].ID)
	assert.Equal(t, 2, messages[0].ReplyCount)
}

func TestGetMessages_IncludesReactions(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	alice := f.user(t, "alice")
	bob := f.user(t, "bob")
	conv := f.directConv(t, alice, bob)

	msg, err := f.pipeline.Send(ctx, alice.ID, conv.ID, "react to this", nil)
	require.NoError(t, err)
	_, err = f.reactions.Add(ctx, bob.ID, msg.ID, "👍")
	require.NoError(t, err)

	messages, err := f.pipeline.GetMessages(ctx, alice.ID, conv.ID)
	require.NoError(t, err)
	require.Len(t, messages, 1)
	require.Len(t, messages[0].Reactions, 1)
	assert.Equal(t, "👍", messages[0].Reactions[0].Emoji)
	assert.Equal(t, bob.ID, messages[0].Reactions[0].UserID)
}

func TestGetMessages_OutsiderForbidden(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	alice := f.user(t, "alice")
	bob := f.user(t, "bob")
	outsider := f.user(t, "mallory")
	conv := f.directConv(t, alice, bob)

	_, err := f.pipeline.GetMessages(ctx, outsider.ID, conv.ID)
	assert.ErrorIs(t, err, ErrForbidden)
}
