package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mrfansi/slacky/internal/models"
)

// Postgres implements Store on a pgx connection pool. See schema.sql for
// the backing DDL.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres creates a Postgres-backed store
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23503"
}

// CreateUser inserts a new user. Returns ErrDuplicate if the email is taken.
func (s *Postgres) CreateUser(ctx context.Context, user *models.User) error {
	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now

	_, err := s.pool.Exec(ctx, `
		INSERT INTO users (id, name, email, password_hash, image, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, user.ID, user.Name, user.Email, user.Password, user.Image, user.CreatedAt, user.UpdatedAt)

	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	return err
}

func (s *Postgres) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.getUser(ctx, "email", email)
}

func (s *Postgres) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	return s.getUser(ctx, "id", id)
}

func (s *Postgres) getUser(ctx context.Context, column, value string) (*models.User, error) {
	var user models.User
	err := s.pool.QueryRow(ctx, fmt.Sprintf(`
		SELECT id, name, email, password_hash, image, created_at, updated_at
		FROM users WHERE %s = $1
	`, column), value).Scan(&user.ID, &user.Name, &user.Email, &user.Password,
		&user.Image, &user.CreatedAt, &user.UpdatedAt)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *Postgres) ListUsers(ctx context.Context, excludeUserID string) ([]models.User, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, name, email, password_hash, image, created_at, updated_at
		FROM users
		WHERE id <> $1
		ORDER BY name ASC
	`, excludeUserID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := []models.User{}
	for rows.Next() {
		var user models.User
		if err := rows.Scan(&user.ID, &user.Name, &user.Email, &user.Password,
			&user.Image, &user.CreatedAt, &user.UpdatedAt); err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

// CreateConversation inserts a conversation and its participants in one
// transaction. memberIDs must already be de-duplicated by the caller.
func (s *Postgres) CreateConversation(ctx context.Context, conv *models.Conversation, memberIDs []string) error {
	if conv.ID == "" {
		conv.ID = uuid.New().String()
	}
	now := time.Now()
	conv.CreatedAt = now
	conv.UpdatedAt = now

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO conversations (id, name, is_group, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
	`, conv.ID, conv.Name, conv.IsGroup, conv.CreatedAt, conv.UpdatedAt)
	if err != nil {
		return err
	}

	for _, memberID := range memberIDs {
		_, err = tx.Exec(ctx, `
			INSERT INTO participants (user_id, conversation_id, has_unread_messages, joined_at)
			VALUES ($1, $2, false, $3)
		`, memberID, conv.ID, now)
		if isForeignKeyViolation(err) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

func (s *Postgres) GetConversation(ctx context.Context, id string) (*models.Conversation, error) {
	var conv models.Conversation
	err := s.pool.QueryRow(ctx, `
		SELECT id, name, is_group, created_at, updated_at
		FROM conversations WHERE id = $1
	`, id).Scan(&conv.ID, &conv.Name, &conv.IsGroup, &conv.CreatedAt, &conv.UpdatedAt)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &conv, nil
}

func (s *Postgres) GetOrCreateDirectConversation(ctx context.Context, userA, userB string) (*models.Conversation, bool, error) {
	key := DirectKey(userA, userB)

	if conv, err := s.findDirectConversation(ctx, key); err == nil {
		return conv, false, nil
	} else if !errors.Is(err, ErrNotFound) {
		return nil, false, err
	}

	conv := models.Conversation{
		ID:        uuid.New().String(),
		IsGroup:   false,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, false, err
	}
	defer tx.Rollback(ctx)

	// The unique index on direct_key is what closes the race window
	// between concurrent initiation from both sides: exactly one insert
	// wins, the loser re-reads the winner's row.
	tag, err := tx.Exec(ctx, `
		INSERT INTO conversations (id, name, is_group, direct_key, created_at, updated_at)
		VALUES ($1, NULL, false, $2, $3, $4)
		ON CONFLICT (direct_key) DO NOTHING
	`, conv.ID, key, conv.CreatedAt, conv.UpdatedAt)
	if err != nil {
		return nil, false, err
	}

	if tag.RowsAffected() == 0 {
		tx.Rollback(ctx)
		existing, err := s.findDirectConversation(ctx, key)
		return existing, false, err
	}

	for _, memberID := range []string{userA, userB} {
		_, err = tx.Exec(ctx, `
			INSERT INTO participants (user_id, conversation_id, has_unread_messages, joined_at)
			VALUES ($1, $2, false, $3)
		`, memberID, conv.ID, conv.CreatedAt)
		if isForeignKeyViolation(err) {
			return nil, false, ErrNotFound
		}
		if err != nil {
			return nil, false, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, false, err
	}
	return &conv, true, nil
}

func (s *Postgres) findDirectConversation(ctx context.Context, key string) (*models.Conversation, error) {
	var conv models.Conversation
	err := s.pool.QueryRow(ctx, `
		SELECT id, name, is_group, created_at, updated_at
		FROM conversations WHERE direct_key = $1
	`, key).Scan(&conv.ID, &conv.Name, &conv.IsGroup, &conv.CreatedAt, &conv.UpdatedAt)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &conv, nil
}

func (s *Postgres) ListUserConversations(ctx context.Context, userID string) ([]models.Conversation, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT c.id, c.name, c.is_group, c.created_at, c.updated_at
		FROM conversations c
		INNER JOIN participants p ON p.conversation_id = c.id
		WHERE p.user_id = $1
		ORDER BY c.updated_at DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	conversations := []models.Conversation{}
	for rows.Next() {
		var conv models.Conversation
		if err := rows.Scan(&conv.ID, &conv.Name, &conv.IsGroup, &conv.CreatedAt, &conv.UpdatedAt); err != nil {
			return nil, err
		}
		conversations = append(conversations, conv)
	}
	return conversations, rows.Err()
}

func (s *Postgres) ListParticipants(ctx context.Context, conversationID string) ([]models.ParticipantUser, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT u.id, u.name, u.image, p.has_unread_messages, p.joined_at
		FROM participants p
		INNER JOIN users u ON u.id = p.user_id
		WHERE p.conversation_id = $1
		ORDER BY p.joined_at ASC
	`, conversationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	participants := []models.ParticipantUser{}
	for rows.Next() {
		var p models.ParticipantUser
		if err := rows.Scan(&p.User.ID, &p.User.Name, &p.User.Image, &p.HasUnreadMessages, &p.JoinedAt); err != nil {
			return nil, err
		}
		participants = append(participants, p)
	}
	return participants, rows.Err()
}

func (s *Postgres) GetParticipant(ctx context.Context, userID, conversationID string) (*models.Participant, error) {
	var p models.Participant
	err := s.pool.QueryRow(ctx, `
		SELECT user_id, conversation_id, has_unread_messages, joined_at
		FROM participants
		WHERE user_id = $1 AND conversation_id = $2
	`, userID, conversationID).Scan(&p.UserID, &p.ConversationID, &p.HasUnreadMessages, &p.JoinedAt)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *Postgres) AddParticipant(ctx context.Context, userID, conversationID string) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO participants (user_id, conversation_id, has_unread_messages, joined_at)
		VALUES ($1, $2, false, $3)
	`, userID, conversationID, time.Now())

	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	if isForeignKeyViolation(err) {
		return ErrNotFound
	}
	return err
}

func (s *Postgres) RemoveParticipant(ctx context.Context, userID, conversationID string) error {
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM participants WHERE user_id = $1 AND conversation_id = $2
	`, userID, conversationID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Postgres) ClearUnread(ctx context.Context, userID, conversationID string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE participants SET has_unread_messages = false
		WHERE user_id = $1 AND conversation_id = $2
	`, userID, conversationID)
	return err
}

// CreateMessage inserts a message. For a top-level message the unread flags
// of the other participants and the conversation's updated_at are written in
// the same transaction.
func (s *Postgres) CreateMessage(ctx context.Context, msg *models.Message) error {
	if msg.ID == "" {
		msg.ID = uuid.New().String()
	}
	now := time.Now()
	msg.CreatedAt = now
	msg.UpdatedAt = now

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO messages (id, body, image, sender_id, conversation_id, parent_id, is_thread_reply, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, msg.ID, msg.Body, msg.Image, msg.SenderID, msg.ConversationID,
		msg.ParentID, msg.IsThreadReply, msg.CreatedAt, msg.UpdatedAt)
	if isForeignKeyViolation(err) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}

	if !msg.IsThreadReply {
		_, err = tx.Exec(ctx, `
			UPDATE participants SET has_unread_messages = true
			WHERE conversation_id = $1 AND user_id <> $2
		`, msg.ConversationID, msg.SenderID)
		if err != nil {
			return err
		}

		_, err = tx.Exec(ctx, `
			UPDATE conversations SET updated_at = $1 WHERE id = $2
		`, now, msg.ConversationID)
		if err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

func (s *Postgres) GetMessage(ctx context.Context, id string) (*models.MessageWithSender, error) {
	var msg models.MessageWithSender
	err := s.pool.QueryRow(ctx, `
		SELECT m.id, m.body, m.image, m.sender_id, m.conversation_id, m.parent_id,
			m.is_thread_reply, m.created_at, m.updated_at,
			u.id, u.name, u.image
		FROM messages m
		INNER JOIN users u ON u.id = m.sender_id
		WHERE m.id = $1
	`, id).Scan(&msg.ID, &msg.Body, &msg.Image, &msg.SenderID, &msg.ConversationID,
		&msg.ParentID, &msg.IsThreadReply, &msg.CreatedAt, &msg.UpdatedAt,
		&msg.Sender.ID, &msg.Sender.Name, &msg.Sender.Image)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	msg.Reactions = []models.ReactionWithUser{}
	return &msg, nil
}

func (s *Postgres) ListMessages(ctx context.Context, conversationID string) ([]models.MessageWithSender, error) {
	return s.listMessages(ctx, `
		WHERE m.conversation_id = $1 AND m.is_thread_reply = false
	`, conversationID)
}

func (s *Postgres) ListThreadReplies(ctx context.Context, parentID string) ([]models.MessageWithSender, error) {
	return s.listMessages(ctx, `
		WHERE m.parent_id = $1 AND m.is_thread_reply = true
	`, parentID)
}

func (s *Postgres) listMessages(ctx context.Context, where string, arg string) ([]models.MessageWithSender, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT m.id, m.body, m.image, m.sender_id, m.conversation_id, m.parent_id,
			m.is_thread_reply, m.created_at, m.updated_at,
			u.id, u.name, u.image
		FROM messages m
		INNER JOIN users u ON u.id = m.sender_id
	`+where+`
		ORDER BY m.created_at ASC
	`, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	messages := []models.MessageWithSender{}
	for rows.Next() {
		var msg models.MessageWithSender
		if err := rows.Scan(&msg.ID, &msg.Body, &msg.Image, &msg.SenderID, &msg.ConversationID,
			&msg.ParentID, &msg.IsThreadReply, &msg.CreatedAt, &msg.UpdatedAt,
			&msg.Sender.ID, &msg.Sender.Name, &msg.Sender.Image); err != nil {
			return nil, err
		}
		msg.Reactions = []models.ReactionWithUser{}
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

func (s *Postgres) CountReplies(ctx context.Context, parentID string) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM messages WHERE parent_id = $1 AND is_thread_reply = true
	`, parentID).Scan(&count)
	return count, err
}

func (s *Postgres) LatestMessage(ctx context.Context, conversationID string) (*models.LatestMessage, error) {
	var latest models.LatestMessage
	err := s.pool.QueryRow(ctx, `
		SELECT m.body, u.name, m.created_at
		FROM messages m
		INNER JOIN users u ON u.id = m.sender_id
		WHERE m.conversation_id = $1 AND m.is_thread_reply = false
		ORDER BY m.created_at DESC
		LIMIT 1
	`, conversationID).Scan(&latest.Body, &latest.SenderName, &latest.CreatedAt)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &latest, nil
}

func (s *Postgres) MarkSeen(ctx context.Context, userID string, messageIDs []string) error {
	if len(messageIDs) == 0 {
		return nil
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO message_seen (message_id, user_id)
		SELECT unnest($1::text[]), $2
		ON CONFLICT DO NOTHING
	`, messageIDs, userID)
	return err
}

func (s *Postgres) CreateReaction(ctx context.Context, reaction *models.Reaction) error {
	if reaction.ID == "" {
		reaction.ID = uuid.New().String()
	}
	reaction.CreatedAt = time.Now()

	_, err := s.pool.Exec(ctx, `
		INSERT INTO reactions (id, emoji, user_id, message_id, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, reaction.ID, reaction.Emoji, reaction.UserID, reaction.MessageID, reaction.CreatedAt)

	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	if isForeignKeyViolation(err) {
		return ErrNotFound
	}
	return err
}

func (s *Postgres) DeleteReaction(ctx context.Context, messageID, userID, emoji string) error {
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM reactions WHERE message_id = $1 AND user_id = $2 AND emoji = $3
	`, messageID, userID, emoji)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Postgres) ListReactions(ctx context.Context, messageID string) ([]models.ReactionWithUser, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT r.id, r.emoji, r.user_id, r.message_id, r.created_at,
			u.id, u.name, u.image
		FROM reactions r
		INNER JOIN users u ON u.id = r.user_id
		WHERE r.message_id = $1
		ORDER BY r.created_at ASC
	`, messageID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	reactions := []models.ReactionWithUser{}
	for rows.Next() {
		var r models.ReactionWithUser
		if err := rows.Scan(&r.ID, &r.Emoji, &r.UserID, &r.MessageID, &r.CreatedAt,
			&r.User.ID, &r.User.Name, &r.User.Image); err != nil {
			return nil, err
		}
		reactions = append(reactions, r)
	}
	return reactions, rows.Err()
}
