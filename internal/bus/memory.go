package bus

import (
	"context"
	"encoding/json"
	"sync"
)

var (
	_ Bus = (*NATS)(nil)
	_ Bus = (*Memory)(nil)
)

// Memory is an in-process Bus for single-node runs and tests. Dispatch is
// synchronous in the publisher's goroutine; the subscriber list is copied
// out under the lock so handlers may themselves subscribe or publish.
type Memory struct {
	mu     sync.RWMutex
	nextID int
	subs   map[string]map[int]*memorySub
}

type memorySub struct {
	event   string
	handler Handler
}

// NewMemory creates an in-process bus
func NewMemory() *Memory {
	return &Memory{subs: make(map[string]map[int]*memorySub)}
}

func (b *Memory) Publish(ctx context.Context, topic, event string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	b.mu.RLock()
	handlers := make([]Handler, 0, len(b.subs[topic]))
	for _, sub := range b.subs[topic] {
		if sub.event == event {
			handlers = append(handlers, sub.handler)
		}
	}
	b.mu.RUnlock()

	for _, handler := range handlers {
		handler(data)
	}
	return nil
}

func (b *Memory) Subscribe(topic, event string, handler Handler) (func(), error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.subs[topic] == nil {
		b.subs[topic] = make(map[int]*memorySub)
	}
	id := b.nextID
	b.nextID++
	b.subs[topic][id] = &memorySub{event: event, handler: handler}

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.subs[topic], id)
	}, nil
}
