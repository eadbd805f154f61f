package websocket

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gofiber/contrib/websocket"

	"github.com/mrfansi/slacky/internal/chat"
	"github.com/mrfansi/slacky/internal/presence"
)

// Client represents one WebSocket connection. It owns a set of bus
// subscriptions: global topics for the lifetime of the connection, one
// conversation's topics while attached, and a topic per open thread.
type Client struct {
	UserID string
	Conn   *websocket.Conn
	Hub    *Hub
	Send   chan []byte

	mu         sync.Mutex
	globalSubs []func()
	convSubs   []func()
	threadSubs map[string]func()
	tornDown   bool
}

// NewClient creates a new WebSocket client
func NewClient(userID string, conn *websocket.Conn, hub *Hub) *Client {
	return &Client{
		UserID:     userID,
		Conn:       conn,
		Hub:        hub,
		Send:       make(chan []byte, 256),
		threadSubs: make(map[string]func()),
	}
}

// ReadPump handles incoming messages from the client
func (c *Client) ReadPump() {
	defer func() {
		c.Hub.Unregister <- c
		c.Conn.Close()
	}()

	c.Conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.Hub.log.Warn().Err(err).Str("user_id", c.UserID).Msg("websocket error")
			}
			break
		}

		var incoming IncomingMessage
		if err := json.Unmarshal(message, &incoming); err != nil {
			c.Hub.log.Warn().Err(err).Str("user_id", c.UserID).Msg("malformed client message")
			continue
		}
		c.handleIncomingMessage(incoming)
	}
}

// WritePump handles outgoing messages to the client
func (c *Client) WritePump() {
	ticker := time.NewTicker(54 * time.Second)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) handleIncomingMessage(msg IncomingMessage) {
	switch msg.Type {
	case ActionSubscribe:
		c.attachConversation(msg.Payload.ConversationID)
	case ActionUnsubscribe:
		c.detachConversation()
	case ActionOpenThread:
		c.openThread(msg.Payload.MessageID)
	case ActionCloseThread:
		c.closeThread(msg.Payload.MessageID)
	default:
		c.Hub.log.Warn().Str("type", msg.Type).Str("user_id", c.UserID).Msg("unknown message type")
	}
}

// subscribeGlobal attaches the topics that live for the whole session:
// group directory updates and presence.
func (c *Client) subscribeGlobal() error {
	subs := []struct {
		topic string
		event string
	}{
		{chat.TopicGroupUpdates, chat.EventNewGroup},
		{chat.TopicGroupUpdates, chat.EventMemberUpdate},
		{chat.TopicPresence, presence.EventJoin},
		{chat.TopicPresence, presence.EventLeave},
		{chat.TopicPresence, presence.EventSync},
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.tornDown {
		return nil
	}
	for _, sub := range subs {
		unsub, err := c.Hub.bus.Subscribe(sub.topic, sub.event, c.forward(sub.topic, sub.event))
		if err != nil {
			return err
		}
		c.globalSubs = append(c.globalSubs, unsub)
	}
	return nil
}

// attachConversation switches the live conversation: the main message
// topic (filtered to the conversation), thread count updates, and
// reactions.
func (c *Client) attachConversation(conversationID string) {
	if conversationID == "" {
		return
	}

	c.detachConversation()

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.tornDown {
		return
	}

	unsub, err := c.Hub.bus.Subscribe(chat.TopicMessages, chat.EventNewMessage, func(payload []byte) {
		var event chat.NewMessagePayload
		if err := json.Unmarshal(payload, &event); err != nil {
			return
		}
		if event.ConversationID != conversationID {
			return
		}
		c.forward(chat.TopicMessages, chat.EventNewMessage)(payload)
	})
	if err == nil {
		c.convSubs = append(c.convSubs, unsub)
	}

	for _, sub := range []struct {
		topic string
		event string
	}{
		{chat.TopicThreadUpdates, chat.EventThreadUpdate},
		{chat.TopicReactions, chat.EventNewReaction},
		{chat.TopicReactions, chat.EventRemoveReaction},
	} {
		unsub, err := c.Hub.bus.Subscribe(sub.topic, sub.event, c.forward(sub.topic, sub.event))
		if err != nil {
			continue
		}
		c.convSubs = append(c.convSubs, unsub)
	}
}

func (c *Client) detachConversation() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, unsub := range c.convSubs {
		unsub()
	}
	c.convSubs = nil
	for _, unsub := range c.threadSubs {
		unsub()
	}
	c.threadSubs = make(map[string]func())
}

func (c *Client) openThread(parentID string) {
	if parentID == "" {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.tornDown {
		return
	}
	if _, ok := c.threadSubs[parentID]; ok {
		return
	}
	topic := chat.ThreadTopic(parentID)
	unsub, err := c.Hub.bus.Subscribe(topic, chat.EventThreadMessage, c.forward(topic, chat.EventThreadMessage))
	if err != nil {
		return
	}
	c.threadSubs[parentID] = unsub
}

func (c *Client) closeThread(parentID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if unsub, ok := c.threadSubs[parentID]; ok {
		unsub()
		delete(c.threadSubs, parentID)
	}
}

// forward relays a bus event to the socket as a frame. Slow consumers are
// dropped rather than blocking the bus. The send happens under c.mu: a
// handler can still be in flight on a bus goroutine when the connection is
// torn down, and unsubscribing does not wait it out, so the tornDown check
// and the send must be atomic against teardown closing the channel.
func (c *Client) forward(topic, event string) func(payload []byte) {
	return func(payload []byte) {
		frame, err := json.Marshal(WSMessage{
			Type:      event,
			Topic:     topic,
			Payload:   payload,
			Timestamp: time.Now(),
		})
		if err != nil {
			return
		}

		c.mu.Lock()
		defer c.mu.Unlock()
		if c.tornDown {
			return
		}
		select {
		case c.Send <- frame:
		default:
			c.Hub.log.Warn().Str("user_id", c.UserID).Str("topic", topic).Msg("client send buffer full")
		}
	}
}

// teardown drops every bus subscription and closes the send channel.
// Safe to call once per connection.
func (c *Client) teardown() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.tornDown {
		return
	}
	c.tornDown = true

	for _, unsub := range c.globalSubs {
		unsub()
	}
	c.globalSubs = nil
	for _, unsub := range c.convSubs {
		unsub()
	}
	c.convSubs = nil
	for _, unsub := range c.threadSubs {
		unsub()
	}
	c.threadSubs = make(map[string]func())

	close(c.Send)
}
