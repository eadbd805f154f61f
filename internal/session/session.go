package session

import (
	"encoding/json"
	"sync"

	"github.com/mrfansi/slacky/internal/bus"
	"github.com/mrfansi/slacky/internal/chat"
	"github.com/mrfansi/slacky/internal/models"
)

// Session wires a ConversationView to the conversation-scoped topics:
// main message topic, thread-updates topic, message-reactions topic, and
// a per-thread topic for each open thread dialog. Detach drops all of
// them; global topics (group updates, presence) are owned by the
// connection layer for the lifetime of the session, not here.
type Session struct {
	bus  bus.Bus
	view *ConversationView

	mu      sync.Mutex
	unsubs  []func()
	threads map[string]func()
}

// Attach subscribes a view to its conversation's topics
func Attach(b bus.Bus, view *ConversationView) (*Session, error) {
	s := &Session{
		bus:     b,
		view:    view,
		threads: make(map[string]func()),
	}

	subs := []struct {
		topic   string
		event   string
		handler bus.Handler
	}{
		{chat.TopicMessages, chat.EventNewMessage, s.onNewMessage},
		{chat.TopicThreadUpdates, chat.EventThreadUpdate, s.onThreadUpdate},
		{chat.TopicReactions, chat.EventNewReaction, s.onNewReaction},
		{chat.TopicReactions, chat.EventRemoveReaction, s.onRemoveReaction},
	}
	for _, sub := range subs {
		unsub, err := b.Subscribe(sub.topic, sub.event, sub.handler)
		if err != nil {
			s.Detach()
			return nil, err
		}
		s.unsubs = append(s.unsubs, unsub)
	}
	return s, nil
}

// View returns the reconciled view
func (s *Session) View() *ConversationView {
	return s.view
}

// OpenThread subscribes to one thread's topic, delivering full reply
// bodies to the callback while the thread dialog is open.
func (s *Session) OpenThread(parentID string, onReply func(models.MessageWithSender)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.threads[parentID]; ok {
		return nil
	}
	unsub, err := s.bus.Subscribe(chat.ThreadTopic(parentID), chat.EventThreadMessage, func(payload []byte) {
		var event chat.ThreadMessagePayload
		if err := json.Unmarshal(payload, &event); err != nil {
			return
		}
		onReply(event.Message)
	})
	if err != nil {
		return err
	}
	s.threads[parentID] = unsub
	return nil
}

// CloseThread drops one thread subscription
func (s *Session) CloseThread(parentID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if unsub, ok := s.threads[parentID]; ok {
		unsub()
		delete(s.threads, parentID)
	}
}

// Detach unsubscribes from every conversation-scoped topic
func (s *Session) Detach() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, unsub := range s.unsubs {
		unsub()
	}
	s.unsubs = nil
	for _, unsub := range s.threads {
		unsub()
	}
	s.threads = make(map[string]func())
}

func (s *Session) onNewMessage(payload []byte) {
	var event chat.NewMessagePayload
	if err := json.Unmarshal(payload, &event); err != nil {
		return
	}
	if event.ConversationID != s.view.ConversationID() {
		return
	}
	s.view.ApplyMessage(event.Message)
}

func (s *Session) onThreadUpdate(payload []byte) {
	var event chat.ThreadUpdatePayload
	if err := json.Unmarshal(payload, &event); err != nil {
		return
	}
	s.view.SetReplyCount(event.MessageID, event.ReplyCount)
}

func (s *Session) onNewReaction(payload []byte) {
	var event chat.NewReactionPayload
	if err := json.Unmarshal(payload, &event); err != nil {
		return
	}
	s.view.ApplyReaction(event.MessageID, event.Reaction)
}

func (s *Session) onRemoveReaction(payload []byte) {
	var event chat.RemoveReactionPayload
	if err := json.Unmarshal(payload, &event); err != nil {
		return
	}
	s.view.RemoveReaction(event.MessageID, event.UserID, event.Emoji)
}
