package db

import (
	"context"
	"sort"
	"time"

	"github.com/gocql/gocql"
	"github.com/google/uuid"

	"github.com/dexC166/dex-real-time-messenger-sub000/pkg/model"
)

// ConversationsStore performs conversation table operations. It hydrates
// participant users through the UsersStore so callers get complete records.
type ConversationsStore struct {
	session *Session
	users   *UsersStore
}

func NewConversationsStore(session *Session, users *UsersStore) *ConversationsStore {
	return &ConversationsStore{session: session, users: users}
}

// Create inserts the conversation row plus one user_conversations row per
// participant so ListForUser can read a single partition.
func (s *ConversationsStore) Create(ctx context.Context, name string, isGroup bool, userIDs []string) (*model.Conversation, error) {
	now := time.Now()
	conv := &model.Conversation{
		ID:            uuid.NewString(),
		Name:          name,
		IsGroup:       isGroup,
		LastMessageAt: now,
		CreatedAt:     now,
	}

	err := s.session.Query(
		`INSERT INTO conversations (id, name, is_group, user_ids, last_message_at, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		conv.ID, conv.Name, conv.IsGroup, userIDs, conv.LastMessageAt, conv.CreatedAt,
	).WithContext(ctx).Exec()
	if err != nil {
		return nil, err
	}

	for _, userID := range userIDs {
		err := s.session.Query(
			`INSERT INTO user_conversations (user_id, conversation_id) VALUES (?, ?)`,
			userID, conv.ID,
		).WithContext(ctx).Exec()
		if err != nil {
			return nil, err
		}
	}

	users, err := s.users.GetByIDs(ctx, userIDs)
	if err != nil {
		return nil, err
	}
	conv.Users = users
	return conv, nil
}

// Get loads one conversation with its participants hydrated.
func (s *ConversationsStore) Get(ctx context.Context, id string) (*model.Conversation, error) {
	var conv model.Conversation
	var userIDs []string
	err := s.session.Query(
		`SELECT id, name, is_group, user_ids, last_message_at, created_at FROM conversations WHERE id = ?`, id,
	).WithContext(ctx).Scan(&conv.ID, &conv.Name, &conv.IsGroup, &userIDs, &conv.LastMessageAt, &conv.CreatedAt)
	if err == gocql.ErrNotFound {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	users, err := s.users.GetByIDs(ctx, userIDs)
	if err != nil {
		return nil, err
	}
	conv.Users = users
	return &conv, nil
}

// IsMember reports whether the user participates in the conversation.
func (s *ConversationsStore) IsMember(ctx context.Context, conversationID, userID string) (bool, error) {
	var id string
	err := s.session.Query(
		`SELECT conversation_id FROM user_conversations WHERE user_id = ? AND conversation_id = ?`,
		userID, conversationID,
	).WithContext(ctx).Scan(&id)
	if err == gocql.ErrNotFound {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// ListForUser returns the user's conversations newest-activity first, each
// annotated with the user's unread counter.
func (s *ConversationsStore) ListForUser(ctx context.Context, userID string) ([]model.Conversation, error) {
	iter := s.session.Query(
		`SELECT conversation_id FROM user_conversations WHERE user_id = ?`, userID,
	).WithContext(ctx).Iter()

	var ids []string
	var id string
	for iter.Scan(&id) {
		ids = append(ids, id)
	}
	if err := iter.Close(); err != nil {
		return nil, err
	}

	conversations := make([]model.Conversation, 0, len(ids))
	for _, cid := range ids {
		conv, err := s.Get(ctx, cid)
		if err == ErrNotFound {
			continue
		}
		if err != nil {
			return nil, err
		}
		if count, err := s.UnreadCount(ctx, userID, cid); err == nil {
			conv.UnreadCount = count
		}
		conversations = append(conversations, *conv)
	}

	sort.Slice(conversations, func(i, j int) bool {
		return conversations[i].LastMessageAt.After(conversations[j].LastMessageAt)
	})
	return conversations, nil
}

// FindDirect returns an existing 1:1 conversation between the two users, or
// ErrNotFound. Direct conversations are deduplicated at creation time.
func (s *ConversationsStore) FindDirect(ctx context.Context, userAID, userBID string) (*model.Conversation, error) {
	iter := s.session.Query(
		`SELECT conversation_id FROM user_conversations WHERE user_id = ?`, userAID,
	).WithContext(ctx).Iter()

	var ids []string
	var id string
	for iter.Scan(&id) {
		ids = append(ids, id)
	}
	if err := iter.Close(); err != nil {
		return nil, err
	}

	for _, cid := range ids {
		conv, err := s.Get(ctx, cid)
		if err == ErrNotFound {
			continue
		}
		if err != nil {
			return nil, err
		}
		if conv.IsGroup || len(conv.Users) != 2 {
			continue
		}
		for i := range conv.Users {
			if conv.Users[i].ID == userBID {
				return conv, nil
			}
		}
	}
	return nil, ErrNotFound
}

// Delete removes the conversation, its per-user index rows, its counters and
// its whole message partition. Hard delete, no tombstone record kept.
func (s *ConversationsStore) Delete(ctx context.Context, id string, userIDs []string) error {
	for _, userID := range userIDs {
		if err := s.session.Query(
			`DELETE FROM user_conversations WHERE user_id = ? AND conversation_id = ?`, userID, id,
		).WithContext(ctx).Exec(); err != nil {
			return err
		}
		if err := s.session.Query(
			`DELETE FROM conversation_counters WHERE user_id = ? AND conversation_id = ?`, userID, id,
		).WithContext(ctx).Exec(); err != nil {
			return err
		}
	}
	if err := s.session.Query(
		`DELETE FROM messages WHERE conversation_id = ?`, id,
	).WithContext(ctx).Exec(); err != nil {
		return err
	}
	return s.session.Query(`DELETE FROM conversations WHERE id = ?`, id).WithContext(ctx).Exec()
}

// TouchLastMessage bumps the activity timestamp used for list ordering.
func (s *ConversationsStore) TouchLastMessage(ctx context.Context, id string, at time.Time) error {
	return s.session.Query(
		`UPDATE conversations SET last_message_at = ? WHERE id = ?`, at, id,
	).WithContext(ctx).Exec()
}

// IncrementUnread bumps a user's unread counter for a conversation.
func (s *ConversationsStore) IncrementUnread(ctx context.Context, userID, conversationID string) error {
	return s.session.Query(
		`UPDATE conversation_counters SET unread_count = unread_count + 1 WHERE user_id = ? AND conversation_id = ?`,
		userID, conversationID,
	).WithContext(ctx).Exec()
}

// ResetUnread clears a user's unread counter. Counter columns cannot be set,
// so deletion of the row is the reset.
func (s *ConversationsStore) ResetUnread(ctx context.Context, userID, conversationID string) error {
	return s.session.Query(
		`DELETE FROM conversation_counters WHERE user_id = ? AND conversation_id = ?`,
		userID, conversationID,
	).WithContext(ctx).Exec()
}

// UnreadCount reads a user's unread counter; a missing row is zero.
func (s *ConversationsStore) UnreadCount(ctx context.Context, userID, conversationID string) (int64, error) {
	var count int64
	err := s.session.Query(
		`SELECT unread_count FROM conversation_counters WHERE user_id = ? AND conversation_id = ?`,
		userID, conversationID,
	).WithContext(ctx).Scan(&count)
	if err == gocql.ErrNotFound {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return count, nil
}
