package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mrfansi/slacky/internal/models"
)

var (
	_ Store = (*Postgres)(nil)
	_ Store = (*Memory)(nil)
)

// Memory is a mutex-guarded in-process Store. It backs the test suite and
// NATS-less local runs; semantics match the Postgres implementation,
// including the atomicity of CreateMessage and the direct-key uniqueness.
type Memory struct {
	mu            sync.RWMutex
	users         map[string]*models.User
	usersByEmail  map[string]string
	conversations map[string]*models.Conversation
	directKeys    map[string]string                        // direct key -> conversation id
	participants  map[string]map[string]*models.Participant // conversation id -> user id
	messages      map[string]*models.Message
	messageSeq    map[string]int64 // insertion order, tie-breaker for equal timestamps
	reactions     map[string]*models.Reaction
	reactionKeys  map[string]string // message|user|emoji -> reaction id
	seen          map[string]map[string]bool // message id -> user id
	seq           int64
}

// NewMemory creates an empty in-memory store
func NewMemory() *Memory {
	return &Memory{
		users:         make(map[string]*models.User),
		usersByEmail:  make(map[string]string),
		conversations: make(map[string]*models.Conversation),
		directKeys:    make(map[string]string),
		participants:  make(map[string]map[string]*models.Participant),
		messages:      make(map[string]*models.Message),
		messageSeq:    make(map[string]int64),
		reactions:     make(map[string]*models.Reaction),
		reactionKeys:  make(map[string]string),
		seen:          make(map[string]map[string]bool),
	}
}

func reactionKey(messageID, userID, emoji string) string {
	return messageID + "|" + userID + "|" + emoji
}

func (s *Memory) CreateUser(ctx context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.usersByEmail[user.Email]; ok {
		return ErrDuplicate
	}
	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now

	copied := *user
	s.users[user.ID] = &copied
	s.usersByEmail[user.Email] = user.ID
	return nil
}

func (s *Memory) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.usersByEmail[email]
	if !ok {
		return nil, ErrNotFound
	}
	user := *s.users[id]
	return &user, nil
}

func (s *Memory) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *user
	return &copied, nil
}

func (s *Memory) ListUsers(ctx context.Context, excludeUserID string) ([]models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := []models.User{}
	for _, user := range s.users {
		if user.ID == excludeUserID {
			continue
		}
		users = append(users, *user)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].Name < users[j].Name })
	return users, nil
}

func (s *Memory) CreateConversation(ctx context.Context, conv *models.Conversation, memberIDs []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, memberID := range memberIDs {
		if _, ok := s.users[memberID]; !ok {
			return ErrNotFound
		}
	}

	if conv.ID == "" {
		conv.ID = uuid.New().String()
	}
	now := time.Now()
	conv.CreatedAt = now
	conv.UpdatedAt = now

	copied := *conv
	s.conversations[conv.ID] = &copied
	s.participants[conv.ID] = make(map[string]*models.Participant)
	for _, memberID := range memberIDs {
		s.participants[conv.ID][memberID] = &models.Participant{
			UserID:         memberID,
			ConversationID: conv.ID,
			JoinedAt:       now,
		}
	}
	return nil
}

func (s *Memory) GetConversation(ctx context.Context, id string) (*models.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	conv, ok := s.conversations[id]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *conv
	return &copied, nil
}

func (s *Memory) GetOrCreateDirectConversation(ctx context.Context, userA, userB string) (*models.Conversation, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := DirectKey(userA, userB)
	if id, ok := s.directKeys[key]; ok {
		conv := *s.conversations[id]
		return &conv, false, nil
	}

	for _, id := range []string{userA, userB} {
		if _, ok := s.users[id]; !ok {
			return nil, false, ErrNotFound
		}
	}

	now := time.Now()
	conv := models.Conversation{
		ID:        uuid.New().String(),
		IsGroup:   false,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.conversations[conv.ID] = &conv
	s.directKeys[key] = conv.ID
	s.participants[conv.ID] = map[string]*models.Participant{
		userA: {UserID: userA, ConversationID: conv.ID, JoinedAt: now},
		userB: {UserID: userB, ConversationID: conv.ID, JoinedAt: now},
	}
	copied := conv
	return &copied, true, nil
}

func (s *Memory) ListUserConversations(ctx context.Context, userID string) ([]models.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	conversations := []models.Conversation{}
	for id, members := range s.participants {
		if _, ok := members[userID]; ok {
			conversations = append(conversations, *s.conversations[id])
		}
	}
	sort.Slice(conversations, func(i, j int) bool {
		return conversations[i].UpdatedAt.After(conversations[j].UpdatedAt)
	})
	return conversations, nil
}

func (s *Memory) ListParticipants(ctx context.Context, conversationID string) ([]models.ParticipantUser, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	members, ok := s.participants[conversationID]
	if !ok {
		return nil, ErrNotFound
	}
	participants := []models.ParticipantUser{}
	for _, p := range members {
		user := s.users[p.UserID]
		participants = append(participants, models.ParticipantUser{
			User:              user.ToSender(),
			HasUnreadMessages: p.HasUnreadMessages,
			JoinedAt:          p.JoinedAt,
		})
	}
	sort.Slice(participants, func(i, j int) bool {
		if participants[i].JoinedAt.Equal(participants[j].JoinedAt) {
			return participants[i].User.ID < participants[j].User.ID
		}
		return participants[i].JoinedAt.Before(participants[j].JoinedAt)
	})
	return participants, nil
}

func (s *Memory) GetParticipant(ctx context.Context, userID, conversationID string) (*models.Participant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	members, ok := s.participants[conversationID]
	if !ok {
		return nil, ErrNotFound
	}
	p, ok := members[userID]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *p
	return &copied, nil
}

func (s *Memory) AddParticipant(ctx context.Context, userID, conversationID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	members, ok := s.participants[conversationID]
	if !ok {
		return ErrNotFound
	}
	if _, ok := s.users[userID]; !ok {
		return ErrNotFound
	}
	if _, ok := members[userID]; ok {
		return ErrDuplicate
	}
	members[userID] = &models.Participant{
		UserID:         userID,
		ConversationID: conversationID,
		JoinedAt:       time.Now(),
	}
	return nil
}

func (s *Memory) RemoveParticipant(ctx context.Context, userID, conversationID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	members, ok := s.participants[conversationID]
	if !ok {
		return ErrNotFound
	}
	if _, ok := members[userID]; !ok {
		return ErrNotFound
	}
	delete(members, userID)
	return nil
}

func (s *Memory) ClearUnread(ctx context.Context, userID, conversationID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if members, ok := s.participants[conversationID]; ok {
		if p, ok := members[userID]; ok {
			p.HasUnreadMessages = false
		}
	}
	return nil
}

func (s *Memory) CreateMessage(ctx context.Context, msg *models.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.conversations[msg.ConversationID]
	if !ok {
		return ErrNotFound
	}
	if msg.ParentID != nil {
		if _, ok := s.messages[*msg.ParentID]; !ok {
			return ErrNotFound
		}
	}

	if msg.ID == "" {
		msg.ID = uuid.New().String()
	}
	now := time.Now()
	msg.CreatedAt = now
	msg.UpdatedAt = now

	copied := *msg
	s.messages[msg.ID] = &copied
	s.seq++
	s.messageSeq[msg.ID] = s.seq

	if !msg.IsThreadReply {
		for _, p := range s.participants[msg.ConversationID] {
			if p.UserID != msg.SenderID {
				p.HasUnreadMessages = true
			}
		}
		conv.UpdatedAt = now
	}
	return nil
}

func (s *Memory) hydrate(msg *models.Message) models.MessageWithSender {
	out := models.MessageWithSender{
		Message:   *msg,
		Reactions: []models.ReactionWithUser{},
	}
	if user, ok := s.users[msg.SenderID]; ok {
		out.Sender = user.ToSender()
	}
	return out
}

func (s *Memory) GetMessage(ctx context.Context, id string) (*models.MessageWithSender, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	msg, ok := s.messages[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := s.hydrate(msg)
	return &out, nil
}

func (s *Memory) ListMessages(ctx context.Context, conversationID string) ([]models.MessageWithSender, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.collect(func(m *models.Message) bool {
		return m.ConversationID == conversationID && !m.IsThreadReply
	}), nil
}

func (s *Memory) ListThreadReplies(ctx context.Context, parentID string) ([]models.MessageWithSender, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.collect(func(m *models.Message) bool {
		return m.IsThreadReply && m.ParentID != nil && *m.ParentID == parentID
	}), nil
}

func (s *Memory) collect(match func(*models.Message) bool) []models.MessageWithSender {
	out := []models.MessageWithSender{}
	for _, msg := range s.messages {
		if match(msg) {
			out = append(out, s.hydrate(msg))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return s.messageSeq[out[i].ID] < s.messageSeq[out[j].ID]
	})
	return out
}

func (s *Memory) CountReplies(ctx context.Context, parentID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, msg := range s.messages {
		if msg.IsThreadReply && msg.ParentID != nil && *msg.ParentID == parentID {
			count++
		}
	}
	return count, nil
}

func (s *Memory) LatestMessage(ctx context.Context, conversationID string) (*models.LatestMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest *models.Message
	for _, msg := range s.messages {
		if msg.ConversationID != conversationID || msg.IsThreadReply {
			continue
		}
		if latest == nil || s.messageSeq[msg.ID] > s.messageSeq[latest.ID] {
			latest = msg
		}
	}
	if latest == nil {
		return nil, ErrNotFound
	}
	out := &models.LatestMessage{
		Body:      latest.Body,
		CreatedAt: latest.CreatedAt,
	}
	if user, ok := s.users[latest.SenderID]; ok {
		out.SenderName = user.Name
	}
	return out, nil
}

func (s *Memory) MarkSeen(ctx context.Context, userID string, messageIDs []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range messageIDs {
		if _, ok := s.messages[id]; !ok {
			continue
		}
		if s.seen[id] == nil {
			s.seen[id] = make(map[string]bool)
		}
		s.seen[id][userID] = true
	}
	return nil
}

// SeenBy reports the users who have seen a message. Test helper; the
// Postgres gateway surfaces this only through the seen-relation writes.
func (s *Memory) SeenBy(messageID string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := []string{}
	for userID := range s.seen[messageID] {
		users = append(users, userID)
	}
	sort.Strings(users)
	return users
}

func (s *Memory) CreateReaction(ctx context.Context, reaction *models.Reaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.messages[reaction.MessageID]; !ok {
		return ErrNotFound
	}
	key := reactionKey(reaction.MessageID, reaction.UserID, reaction.Emoji)
	if _, ok := s.reactionKeys[key]; ok {
		return ErrDuplicate
	}

	if reaction.ID == "" {
		reaction.ID = uuid.New().String()
	}
	reaction.CreatedAt = time.Now()

	copied := *reaction
	s.reactions[reaction.ID] = &copied
	s.reactionKeys[key] = reaction.ID
	return nil
}

func (s *Memory) DeleteReaction(ctx context.Context, messageID, userID, emoji string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := reactionKey(messageID, userID, emoji)
	id, ok := s.reactionKeys[key]
	if !ok {
		return ErrNotFound
	}
	delete(s.reactions, id)
	delete(s.reactionKeys, key)
	return nil
}

func (s *Memory) ListReactions(ctx context.Context, messageID string) ([]models.ReactionWithUser, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	reactions := []models.ReactionWithUser{}
	for _, r := range s.reactions {
		if r.MessageID != messageID {
			continue
		}
		out := models.ReactionWithUser{Reaction: *r}
		if user, ok := s.users[r.UserID]; ok {
			out.User = user.ToSender()
		}
		reactions = append(reactions, out)
	}
	sort.Slice(reactions, func(i, j int) bool {
		if reactions[i].CreatedAt.Equal(reactions[j].CreatedAt) {
			return reactions[i].ID < reactions[j].ID
		}
		return reactions[i].CreatedAt.Before(reactions[j].CreatedAt)
	})
	return reactions, nil
}
