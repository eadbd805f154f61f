package websocket

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrfansi/slacky/internal/bus"
	"github.com/mrfansi/slacky/internal/chat"
	"github.com/mrfansi/slacky/internal/presence"
)

// The pumps own the socket; everything else — registration, presence,
// bus relay — runs above it and is exercised here without a connection.

func newTestHub(t *testing.T) (*Hub, *bus.Memory) {
	t.Helper()
	b := bus.NewMemory()
	tracker, err := presence.NewTracker(b, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(tracker.Close)
	return NewHub(b, tracker, zerolog.Nop()), b
}

func drain(c *Client) []WSMessage {
	frames := []WSMessage{}
	for {
		select {
		case raw, ok := <-c.Send:
			if !ok {
				return frames
			}
			var frame WSMessage
			if err := json.Unmarshal(raw, &frame); err == nil {
				frames = append(frames, frame)
			}
		default:
			return frames
		}
	}
}

func TestHub_RegisterDrivesPresence(t *testing.T) {
	hub, _ := newTestHub(t)
	client := NewClient("u1", nil, hub)

	hub.registerClient(client)
	assert.Equal(t, 1, hub.OnlineCount())
	assert.True(t, hub.presence.IsOnline("u1"))

	hub.unregisterClient(client)
	assert.Equal(t, 0, hub.OnlineCount())
	assert.False(t, hub.presence.IsOnline("u1"))
}

func TestHub_NewConnectionReplacesOld(t *testing.T) {
	hub, _ := newTestHub(t)
	first := NewClient("u1", nil, hub)
	second := NewClient("u1", nil, hub)

	hub.registerClient(first)
	hub.registerClient(second)
	assert.Equal(t, 1, hub.OnlineCount())

	// The replaced connection's channel is closed once drained
	drain(first)
	_, open := <-first.Send
	assert.False(t, open)

	// The stale connection unregistering must not take presence down
	hub.unregisterClient(first)
	assert.Equal(t, 1, hub.OnlineCount())
	assert.True(t, hub.presence.IsOnline("u1"))

	hub.unregisterClient(second)
	assert.False(t, hub.presence.IsOnline("u1"))
}

func TestClient_ReceivesGlobalTopics(t *testing.T) {
	hub, b := newTestHub(t)
	ctx := context.Background()

	client := NewClient("u1", nil, hub)
	hub.registerClient(client)
	drain(client) // discard the registration's own presence frames

	require.NoError(t, b.Publish(ctx, chat.TopicGroupUpdates, chat.EventNewGroup, chat.NewGroupPayload{}))
	require.NoError(t, b.Publish(ctx, chat.TopicPresence, presence.EventJoin, presence.JoinPayload{UserID: "u2"}))

	frames := drain(client)
	require.Len(t, frames, 2)
	assert.Equal(t, chat.EventNewGroup, frames[0].Type)
	assert.Equal(t, chat.TopicGroupUpdates, frames[0].Topic)
	assert.Equal(t, presence.EventJoin, frames[1].Type)
}

func TestClient_AttachConversationFilters(t *testing.T) {
	hub, b := newTestHub(t)
	ctx := context.Background()

	client := NewClient("u1", nil, hub)
	hub.registerClient(client)

	client.handleIncomingMessage(IncomingMessage{
		Type:    ActionSubscribe,
		Payload: IncomingPayload{ConversationID: "c1"},
	})
	drain(client)

	publishMessage := func(conversationID string) {
		require.NoError(t, b.Publish(ctx, chat.TopicMessages, chat.EventNewMessage, chat.NewMessagePayload{
			ConversationID: conversationID,
		}))
	}

	publishMessage("c1")
	publishMessage("c2") // other conversation: filtered out

	frames := drain(client)
	require.Len(t, frames, 1)
	assert.Equal(t, chat.EventNewMessage, frames[0].Type)

	var payload chat.NewMessagePayload
	require.NoError(t, json.Unmarshal(frames[0].Payload, &payload))
	assert.Equal(t, "c1", payload.ConversationID)

	// Switching conversations drops the old filter
	client.handleIncomingMessage(IncomingMessage{
		Type:    ActionSubscribe,
		Payload: IncomingPayload{ConversationID: "c2"},
	})
	publishMessage("c1")
	publishMessage("c2")
	frames = drain(client)
	require.Len(t, frames, 1)

	client.handleIncomingMessage(IncomingMessage{Type: ActionUnsubscribe})
	publishMessage("c2")
	assert.Empty(t, drain(client))
}

func TestClient_ThreadTopics(t *testing.T) {
	hub, b := newTestHub(t)
	ctx := context.Background()

	client := NewClient("u1", nil, hub)
	hub.registerClient(client)
	drain(client)

	client.handleIncomingMessage(IncomingMessage{
		Type:    ActionOpenThread,
		Payload: IncomingPayload{MessageID: "m1"},
	})

	publishReply := func(parentID string) {
		require.NoError(t, b.Publish(ctx, chat.ThreadTopic(parentID), chat.EventThreadMessage, chat.ThreadMessagePayload{
			ParentID: parentID,
		}))
	}

	publishReply("m1")
	publishReply("m2") // thread not open: not relayed
	frames := drain(client)
	require.Len(t, frames, 1)
	assert.Equal(t, chat.EventThreadMessage, frames[0].Type)
	assert.Equal(t, chat.ThreadTopic("m1"), frames[0].Topic)

	client.handleIncomingMessage(IncomingMessage{
		Type:    ActionCloseThread,
		Payload: IncomingPayload{MessageID: "m1"},
	})
	publishReply("m1")
	assert.Empty(t, drain(client))
}

func TestClient_ForwardInFlightDuringTeardown(t *testing.T) {
	hub, _ := newTestHub(t)

	client := NewClient("u1", nil, hub)
	hub.registerClient(client)

	// A bus dispatch copies the handler out before invoking it, so it can
	// still run after the subscription is gone and the channel is closed.
	relay := client.forward(chat.TopicGroupUpdates, chat.EventNewGroup)
	client.teardown()

	assert.NotPanics(t, func() { relay([]byte(`{}`)) })
	assert.Empty(t, drain(client))
}

func TestClient_TeardownStopsRelay(t *testing.T) {
	hub, b := newTestHub(t)
	ctx := context.Background()

	client := NewClient("u1", nil, hub)
	hub.registerClient(client)
	client.teardown()
	client.teardown() // idempotent

	require.NoError(t, b.Publish(ctx, chat.TopicGroupUpdates, chat.EventNewGroup, chat.NewGroupPayload{}))
	assert.Empty(t, drain(client))
}
