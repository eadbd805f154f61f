package bus

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
)

// envelope is the wire format: one NATS subject per topic, the event name
// inside the message so subscribers can filter.
type envelope struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
}

// NATS implements Bus on a NATS connection. Core NATS only: no JetStream,
// no replay, matching the at-least-once, currently-subscribed-only contract.
type NATS struct {
	conn *nats.Conn
	log  zerolog.Logger
}

// ConnectNATS dials the given NATS URL
func ConnectNATS(url string, logger zerolog.Logger) (*NATS, error) {
	conn, err := nats.Connect(url,
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn().Err(err).Msg("nats disconnected")
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			logger.Info().Msg("nats reconnected")
		}),
	)
	if err != nil {
		return nil, err
	}
	return &NATS{conn: conn, log: logger}, nil
}

// subject maps a topic name onto the chat subject space. Topic names may
// contain characters NATS treats as token separators.
func subject(topic string) string {
	r := strings.NewReplacer(".", "_", " ", "_", "*", "_", ">", "_")
	return "chat." + r.Replace(topic)
}

func (b *NATS) Publish(ctx context.Context, topic, event string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	msg, err := json.Marshal(envelope{Event: event, Payload: data})
	if err != nil {
		return err
	}
	return b.conn.Publish(subject(topic), msg)
}

func (b *NATS) Subscribe(topic, event string, handler Handler) (func(), error) {
	sub, err := b.conn.Subscribe(subject(topic), func(msg *nats.Msg) {
		var env envelope
		if err := json.Unmarshal(msg.Data, &env); err != nil {
			b.log.Warn().Err(err).Str("topic", topic).Msg("malformed bus message")
			return
		}
		if env.Event != event {
			return
		}
		handler(env.Payload)
	})
	if err != nil {
		return nil, err
	}
	return func() {
		if err := sub.Unsubscribe(); err != nil {
			b.log.Warn().Err(err).Str("topic", topic).Msg("unsubscribe failed")
		}
	}, nil
}

// Close drains the connection
func (b *NATS) Close() {
	if err := b.conn.Drain(); err != nil {
		b.log.Warn().Err(err).Msg("nats drain failed")
	}
}
