// Package presence tracks which users are currently online. State is
// entirely ephemeral and bus-local: it is derived from transient session
// membership and never touches durable storage. A process crash without a
// clean leave keeps the user "online" until the transport's own liveness
// check tears the session down.
package presence

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/mrfansi/slacky/internal/bus"
	"github.com/mrfansi/slacky/internal/chat"
)

// Presence events on the online-users topic
const (
	EventJoin  = "join"
	EventLeave = "leave"
	EventSync  = "sync"
)

// JoinPayload announces a user's session on the presence topic
type JoinPayload struct {
	UserID   string    `json:"userId"`
	OnlineAt time.Time `json:"onlineAt"`
}

// SyncPayload carries the announcer's online snapshot. It is one
// process's view, not transport-wide truth, so consumers union it into
// their set; removals only ever travel as leave events.
type SyncPayload struct {
	UserIDs []string `json:"userIds"`
}

// Tracker maintains the online set. It folds join/leave/sync events from
// the bus (so multiple server processes sharing a NATS bus converge) and
// publishes announcements for sessions attached to this process.
type Tracker struct {
	bus bus.Bus
	log zerolog.Logger

	mu      sync.RWMutex
	online  map[string]bool
	nextSub int
	subs    map[int]func([]string)

	unsubs []func()
}

// NewTracker creates a tracker subscribed to the presence topic
func NewTracker(b bus.Bus, logger zerolog.Logger) (*Tracker, error) {
	t := &Tracker{
		bus:    b,
		log:    logger,
		online: make(map[string]bool),
		subs:   make(map[int]func([]string)),
	}

	for event, handler := range map[string]bus.Handler{
		EventJoin:  t.handleJoin,
		EventLeave: t.handleLeave,
		EventSync:  t.handleSync,
	} {
		unsub, err := b.Subscribe(chat.TopicPresence, event, handler)
		if err != nil {
			t.Close()
			return nil, err
		}
		t.unsubs = append(t.unsubs, unsub)
	}
	return t, nil
}

// Track announces a user's session: join for incremental consumers, then
// this process's snapshot so peers that missed earlier joins catch up.
func (t *Tracker) Track(ctx context.Context, userID string) {
	t.mu.Lock()
	t.online[userID] = true
	t.mu.Unlock()

	t.publish(ctx, EventJoin, JoinPayload{UserID: userID, OnlineAt: time.Now()})
	t.publish(ctx, EventSync, SyncPayload{UserIDs: t.OnlineUsers()})
}

// Leave withdraws a user's session
func (t *Tracker) Leave(ctx context.Context, userID string) {
	t.mu.Lock()
	delete(t.online, userID)
	t.mu.Unlock()

	t.publish(ctx, EventLeave, JoinPayload{UserID: userID})
	t.publish(ctx, EventSync, SyncPayload{UserIDs: t.OnlineUsers()})
}

// OnlineUsers returns the currently-online user ids, sorted
func (t *Tracker) OnlineUsers() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	users := make([]string, 0, len(t.online))
	for id := range t.online {
		users = append(users, id)
	}
	sort.Strings(users)
	return users
}

// IsOnline reports whether a user has a live session
func (t *Tracker) IsOnline(userID string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.online[userID]
}

// OnChange registers a callback invoked with the online set after every
// change. Returns the removal function.
func (t *Tracker) OnChange(fn func(online []string)) func() {
	t.mu.Lock()
	id := t.nextSub
	t.nextSub++
	t.subs[id] = fn
	t.mu.Unlock()

	return func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		delete(t.subs, id)
	}
}

// Close drops the tracker's bus subscriptions
func (t *Tracker) Close() {
	for _, unsub := range t.unsubs {
		unsub()
	}
	t.unsubs = nil
}

// Presence has no error channel: a failed publish degrades to "appears
// offline" and self-corrects on the next announce.
func (t *Tracker) publish(ctx context.Context, event string, payload any) {
	if err := t.bus.Publish(ctx, chat.TopicPresence, event, payload); err != nil {
		t.log.Warn().Err(err).Str("event", event).Msg("presence publish failed")
	}
}

func (t *Tracker) handleJoin(payload []byte) {
	var join JoinPayload
	if err := json.Unmarshal(payload, &join); err != nil {
		return
	}
	t.mu.Lock()
	changed := !t.online[join.UserID]
	t.online[join.UserID] = true
	t.mu.Unlock()

	if changed {
		t.notify()
	}
}

func (t *Tracker) handleLeave(payload []byte) {
	var leave JoinPayload
	if err := json.Unmarshal(payload, &leave); err != nil {
		return
	}
	t.mu.Lock()
	changed := t.online[leave.UserID]
	delete(t.online, leave.UserID)
	t.mu.Unlock()

	if changed {
		t.notify()
	}
}

// handleSync unions the announcer's snapshot into the local set. A peer
// that started later knows fewer sessions, not different ones; replacing
// would wipe every join the announcer never saw.
func (t *Tracker) handleSync(payload []byte) {
	var sync SyncPayload
	if err := json.Unmarshal(payload, &sync); err != nil {
		return
	}

	t.mu.Lock()
	changed := false
	for _, id := range sync.UserIDs {
		if !t.online[id] {
			t.online[id] = true
			changed = true
		}
	}
	t.mu.Unlock()

	if changed {
		t.notify()
	}
}

func (t *Tracker) notify() {
	online := t.OnlineUsers()

	t.mu.RLock()
	callbacks := make([]func([]string), 0, len(t.subs))
	for _, fn := range t.subs {
		callbacks = append(callbacks, fn)
	}
	t.mu.RUnlock()

	for _, fn := range callbacks {
		fn(online)
	}
}
