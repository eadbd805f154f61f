package chat

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/mrfansi/slacky/internal/bus"
	"github.com/mrfansi/slacky/internal/models"
	"github.com/mrfansi/slacky/internal/store"
)

// fixture wires the chat services over in-memory store and bus
type fixture struct {
	store     *store.Memory
	bus       *bus.Memory
	directory *Directory
	pipeline  *Pipeline
	threads   *Threads
	reactions *Reactions
}

func newFixture() *fixture {
	st := store.NewMemory()
	b := bus.NewMemory()
	log := zerolog.Nop()
	return &fixture{
		store:     st,
		bus:       b,
		directory: NewDirectory(st, b, log),
		pipeline:  NewPipeline(st, b, log),
		threads:   NewThreads(st, b, log),
		reactions: NewReactions(st, b, log),
	}
}

func (f *fixture) user(t *testing.T, name string) *models.User {
	t.Helper()
	user := &models.User{Name: name, Email: name + "@example.com", Password: "hashed"}
	require.NoError(t, f.store.CreateUser(context.Background(), user))
	return user
}

func (f *fixture) directConv(t *testing.T, a, b *models.User) *models.Conversation {
	t.Helper()
	conv, err := f.directory.GetOrCreatePrivate(context.Background(), a.ID, b.ID)
	require.NoError(t, err)
	return conv
}

// capture collects every payload published for one topic/event pair.
// The in-memory bus dispatches synchronously, so captured slices are
// complete as soon as the operation under test returns.
func (f *fixture) capture(t *testing.T, topic, event string) *[]json.RawMessage {
	t.Helper()
	captured := &[]json.RawMessage{}
	unsub, err := f.bus.Subscribe(topic, event, func(payload []byte) {
		*captured = append(*captured, json.RawMessage(payload))
	})
	require.NoError(t, err)
	t.Cleanup(unsub)
	return captured
}

func decode[T any](t *testing.T, raw json.RawMessage) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(raw, &out))
	return out
}
