// Package bus is the broadcast primitive the chat services fan out on:
// named topics, at-least-once delivery to currently-subscribed listeners,
// no persistence or replay. A listener that is not subscribed at publish
// time never sees the event; clients recover missed events by re-fetching
// the authoritative snapshot.
package bus

import "context"

// Handler receives the JSON-encoded payload of a matching event.
// Handlers must not block; slow consumers are the subscriber's problem.
type Handler func(payload []byte)

// Bus is a topic-based publish/subscribe primitive.
type Bus interface {
	// Publish sends an event to current subscribers of the topic.
	// Fire-and-forget: a publish error after a successful persist is
	// non-fatal to callers.
	Publish(ctx context.Context, topic, event string, payload any) error

	// Subscribe registers a handler for one event on one topic and
	// returns the unsubscribe function.
	Subscribe(topic, event string, handler Handler) (func(), error)
}
