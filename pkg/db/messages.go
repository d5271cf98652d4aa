package db

import (
	"context"

	"github.com/gocql/gocql"

	"github.com/dexC166/dex-real-time-messenger-sub000/pkg/model"
)

// MessagesStore performs message table operations. SeenBy is persisted as a
// set of user ids; Hydrate fills in the full user records for responses and
// pushed payloads.
type MessagesStore struct {
	session *Session
	users   *UsersStore
}

func NewMessagesStore(session *Session, users *UsersStore) *MessagesStore {
	return &MessagesStore{session: session, users: users}
}

// Append inserts a message. The sender is recorded as already having seen
// their own message.
func (s *MessagesStore) Append(ctx context.Context, m *model.Message) error {
	seenIDs := make([]string, 0, len(m.SeenBy))
	for i := range m.SeenBy {
		seenIDs = append(seenIDs, m.SeenBy[i].ID)
	}

	return s.session.Query(
		`INSERT INTO messages (conversation_id, id, sender_id, sender_email, sender_name, body, image, seen_by, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ConversationID, m.ID, m.SenderID, m.SenderEmail, m.SenderName, m.Body, m.Image, seenIDs, m.CreatedAt,
	).WithContext(ctx).Exec()
}

// List returns the conversation's messages in stored order (oldest first).
func (s *MessagesStore) List(ctx context.Context, conversationID string) ([]model.Message, error) {
	iter := s.session.Query(
		`SELECT conversation_id, id, sender_id, sender_email, sender_name, body, image, seen_by, created_at
		 FROM messages WHERE conversation_id = ?`, conversationID,
	).WithContext(ctx).Iter()

	var messages []model.Message
	var m model.Message
	var seenIDs []string
	for iter.Scan(&m.ConversationID, &m.ID, &m.SenderID, &m.SenderEmail, &m.SenderName, &m.Body, &m.Image, &seenIDs, &m.CreatedAt) {
		msg := m
		msg.SeenBy = s.hydrateSeen(ctx, seenIDs)
		messages = append(messages, msg)
		seenIDs = nil
	}
	if err := iter.Close(); err != nil {
		return nil, err
	}
	return messages, nil
}

// Last returns the most recent message of the conversation, or ErrNotFound
// for an empty conversation.
func (s *MessagesStore) Last(ctx context.Context, conversationID string) (*model.Message, error) {
	var m model.Message
	var seenIDs []string
	err := s.session.Query(
		`SELECT conversation_id, id, sender_id, sender_email, sender_name, body, image, seen_by, created_at
		 FROM messages WHERE conversation_id = ? ORDER BY id DESC LIMIT 1`, conversationID,
	).WithContext(ctx).Scan(&m.ConversationID, &m.ID, &m.SenderID, &m.SenderEmail, &m.SenderName, &m.Body, &m.Image, &seenIDs, &m.CreatedAt)
	if err == gocql.ErrNotFound {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	m.SeenBy = s.hydrateSeen(ctx, seenIDs)
	return &m, nil
}

// AddSeen adds the user to the message's read-receipt set. Set addition is
// idempotent at the storage level.
func (s *MessagesStore) AddSeen(ctx context.Context, conversationID string, messageID int64, userID string) error {
	return s.session.Query(
		`UPDATE messages SET seen_by = seen_by + ? WHERE conversation_id = ? AND id = ?`,
		[]string{userID}, conversationID, messageID,
	).WithContext(ctx).Exec()
}

func (s *MessagesStore) hydrateSeen(ctx context.Context, ids []string) []model.User {
	if len(ids) == 0 {
		return nil
	}
	users, err := s.users.GetByIDs(ctx, ids)
	if err != nil {
		// Read receipts are a display nicety; a hydration failure must not
		// fail the message read.
		return nil
	}
	return users
}
