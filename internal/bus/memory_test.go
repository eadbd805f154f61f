package bus

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemory_PublishReachesMatchingSubscribers(t *testing.T) {
	b := NewMemory()
	ctx := context.Background()

	var got []string
	_, err := b.Subscribe("chat_messages", "new_message", func(payload []byte) {
		var body map[string]string
		require.NoError(t, json.Unmarshal(payload, &body))
		got = append(got, body["id"])
	})
	require.NoError(t, err)

	// Same topic, different event: must not fire
	otherEvent := 0
	_, err = b.Subscribe("chat_messages", "deleted_message", func([]byte) { otherEvent++ })
	require.NoError(t, err)

	// Different topic entirely: must not fire
	otherTopic := 0
	_, err = b.Subscribe("message_reactions", "new_message", func([]byte) { otherTopic++ })
	require.NoError(t, err)

	require.NoError(t, b.Publish(ctx, "chat_messages", "new_message", map[string]string{"id": "m1"}))
	require.NoError(t, b.Publish(ctx, "chat_messages", "new_message", map[string]string{"id": "m2"}))

	assert.Equal(t, []string{"m1", "m2"}, got)
	assert.Zero(t, otherEvent)
	assert.Zero(t, otherTopic)
}

func TestMemory_UnsubscribeStopsDelivery(t *testing.T) {
	b := NewMemory()
	ctx := context.Background()

	calls := 0
	unsub, err := b.Subscribe("group_updates", "new_group", func([]byte) { calls++ })
	require.NoError(t, err)

	require.NoError(t, b.Publish(ctx, "group_updates", "new_group", nil))
	unsub()
	require.NoError(t, b.Publish(ctx, "group_updates", "new_group", nil))

	assert.Equal(t, 1, calls)
}

func TestMemory_PublishWithoutSubscribersIsHarmless(t *testing.T) {
	b := NewMemory()
	assert.NoError(t, b.Publish(context.Background(), "thread_abc", "thread_message", "payload"))
}

func TestMemory_HandlerMaySubscribe(t *testing.T) {
	b := NewMemory()
	ctx := context.Background()

	nested := 0
	_, err := b.Subscribe("online-users", "join", func([]byte) {
		_, err := b.Subscribe("online-users", "sync", func([]byte) { nested++ })
		require.NoError(t, err)
	})
	require.NoError(t, err)

	require.NoError(t, b.Publish(ctx, "online-users", "join", nil))
	require.NoError(t, b.Publish(ctx, "online-users", "sync", nil))
	assert.Equal(t, 1, nested)
}

func TestMemory_RejectsUnmarshalablePayload(t *testing.T) {
	b := NewMemory()
	err := b.Publish(context.Background(), "chat_messages", "new_message", make(chan int))
	assert.Error(t, err)
}
