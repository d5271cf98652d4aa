package main

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"

	"github.com/dexC166/dex-real-time-messenger-sub000/pkg/auth"
	"github.com/dexC166/dex-real-time-messenger-sub000/pkg/db"
	"github.com/dexC166/dex-real-time-messenger-sub000/pkg/model"
)

// fakeTrigger records every published event.
type fakeTrigger struct {
	mu     sync.Mutex
	events []publishedEvent
}

type publishedEvent struct {
	channel string
	event   string
	payload interface{}
}

func (f *fakeTrigger) Trigger(ctx context.Context, channel, event string, payload interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, publishedEvent{channel: channel, event: event, payload: payload})
	return nil
}

func (f *fakeTrigger) byEvent(event string) []publishedEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []publishedEvent
	for _, e := range f.events {
		if e.event == event {
			out = append(out, e)
		}
	}
	return out
}

// fakeConversations backs the handler with a single in-memory conversation.
type fakeConversations struct {
	conv   *model.Conversation
	resets []string
}

func (f *fakeConversations) Get(ctx context.Context, id string) (*model.Conversation, error) {
	if f.conv == nil || f.conv.ID != id {
		return nil, db.ErrNotFound
	}
	c := *f.conv
	return &c, nil
}

func (f *fakeConversations) IsMember(ctx context.Context, conversationID, userID string) (bool, error) {
	if f.conv == nil || f.conv.ID != conversationID {
		return false, nil
	}
	for i := range f.conv.Users {
		if f.conv.Users[i].ID == userID {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeConversations) ListForUser(ctx context.Context, userID string) ([]model.Conversation, error) {
	if f.conv == nil {
		return nil, nil
	}
	return []model.Conversation{*f.conv}, nil
}

func (f *fakeConversations) FindDirect(ctx context.Context, userAID, userBID string) (*model.Conversation, error) {
	return nil, db.ErrNotFound
}

func (f *fakeConversations) Create(ctx context.Context, name string, isGroup bool, userIDs []string) (*model.Conversation, error) {
	users := make([]model.User, 0, len(userIDs))
	for _, id := range userIDs {
		users = append(users, model.User{ID: id, Email: id + "@example.com"})
	}
	f.conv = &model.Conversation{ID: "created", Name: name, IsGroup: isGroup, Users: users}
	return f.conv, nil
}

func (f *fakeConversations) Delete(ctx context.Context, id string, userIDs []string) error {
	f.conv = nil
	return nil
}

func (f *fakeConversations) ResetUnread(ctx context.Context, userID, conversationID string) error {
	f.resets = append(f.resets, userID+"/"+conversationID)
	return nil
}

// fakeMessages emulates set semantics for the seen set of the last message.
type fakeMessages struct {
	last     *model.Message
	appended []model.Message
}

func (f *fakeMessages) List(ctx context.Context, conversationID string) ([]model.Message, error) {
	if f.last == nil {
		return nil, nil
	}
	return []model.Message{*f.last}, nil
}

func (f *fakeMessages) Last(ctx context.Context, conversationID string) (*model.Message, error) {
	if f.last == nil {
		return nil, db.ErrNotFound
	}
	m := *f.last
	m.SeenBy = append([]model.User(nil), f.last.SeenBy...)
	return &m, nil
}

func (f *fakeMessages) AddSeen(ctx context.Context, conversationID string, messageID int64, userID string) error {
	if f.last == nil || f.last.ID != messageID {
		return nil
	}
	for i := range f.last.SeenBy {
		if f.last.SeenBy[i].ID == userID {
			return nil
		}
	}
	f.last.SeenBy = append(f.last.SeenBy, model.User{ID: userID})
	return nil
}

func (f *fakeMessages) Append(ctx context.Context, m *model.Message) error {
	f.appended = append(f.appended, *m)
	f.last = m
	return nil
}

func authedRequest(method, path, body string, claims *auth.Claims) *http.Request {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	r := httptest.NewRequest(method, path, reader)
	return r.WithContext(context.WithValue(r.Context(), auth.UserKey, claims))
}
