package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dexC166/dex-real-time-messenger-sub000/pkg/auth"
	"github.com/dexC166/dex-real-time-messenger-sub000/pkg/events"
	"github.com/dexC166/dex-real-time-messenger-sub000/pkg/model"
	"github.com/dexC166/dex-real-time-messenger-sub000/pkg/snowflake"
)

func messagesFixture(t *testing.T) (*fakeMessages, *fakeTrigger, *MessagesHandler) {
	t.Helper()

	convs := &fakeConversations{
		conv: &model.Conversation{
			ID: "c1",
			Users: []model.User{
				{ID: "alice", Email: "alice@example.com", Name: "Alice"},
				{ID: "bob", Email: "bob@example.com", Name: "Bob"},
			},
		},
	}
	msgs := &fakeMessages{}
	trigger := &fakeTrigger{}

	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("NewNode: %v", err)
	}
	return msgs, trigger, NewMessagesHandler(convs, msgs, trigger, node)
}

func postMessage(t *testing.T, h *MessagesHandler, body string, claims *auth.Claims) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	h.ServeHTTP(w, authedRequest(http.MethodPost, "/messages", body, claims))
	return w
}

func TestCreateMessage(t *testing.T) {
	msgs, trigger, h := messagesFixture(t)

	alice := &auth.Claims{UserID: "alice", Email: "alice@example.com", Name: "Alice"}
	w := postMessage(t, h, `{"conversationId":"c1","body":"hello"}`, alice)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d: %s", w.Code, http.StatusOK, w.Body.String())
	}

	if len(msgs.appended) != 1 {
		t.Fatalf("appended %d messages, want 1", len(msgs.appended))
	}
	saved := msgs.appended[0]
	if saved.Body != "hello" || saved.SenderID != "alice" || saved.ID == 0 {
		t.Fatalf("saved message = %+v", saved)
	}
	if len(saved.SeenBy) != 1 || saved.SeenBy[0].ID != "alice" {
		t.Fatalf("seen set = %+v, want just the sender", saved.SeenBy)
	}

	var resp model.Message
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.ID != saved.ID {
		t.Fatalf("response id = %d, want %d", resp.ID, saved.ID)
	}

	fresh := trigger.byEvent(events.MessageNew)
	if len(fresh) != 1 || fresh[0].channel != events.ConversationChannel("c1") {
		t.Fatalf("messages:new events = %+v, want one on the conversation channel", fresh)
	}

	deltas := trigger.byEvent(events.ConversationUpdate)
	if len(deltas) != 2 {
		t.Fatalf("conversation:update count = %d, want one per participant", len(deltas))
	}
	channels := map[string]bool{}
	for _, d := range deltas {
		channels[d.channel] = true
	}
	if !channels[events.UserChannel("alice@example.com")] || !channels[events.UserChannel("bob@example.com")] {
		t.Fatalf("conversation:update channels = %v", channels)
	}
}

func TestCreateMessageImageOnly(t *testing.T) {
	msgs, _, h := messagesFixture(t)

	alice := &auth.Claims{UserID: "alice", Email: "alice@example.com"}
	w := postMessage(t, h, `{"conversationId":"c1","image":"https://cdn.example.com/a.png"}`, alice)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if len(msgs.appended) != 1 || msgs.appended[0].Image == "" {
		t.Fatalf("appended = %+v, want one image message", msgs.appended)
	}
}

func TestCreateMessageValidation(t *testing.T) {
	alice := &auth.Claims{UserID: "alice", Email: "alice@example.com"}

	tests := []struct {
		name string
		body string
	}{
		{"missing conversation id", `{"body":"hello"}`},
		{"empty body and image", `{"conversationId":"c1"}`},
		{"malformed json", `{`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msgs, trigger, h := messagesFixture(t)
			w := postMessage(t, h, tt.body, alice)
			if w.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want %d", w.Code, http.StatusBadRequest)
			}
			if len(msgs.appended) != 0 || len(trigger.events) != 0 {
				t.Fatalf("rejected request still persisted or published")
			}
		})
	}
}

func TestCreateMessageNonMember(t *testing.T) {
	msgs, trigger, h := messagesFixture(t)

	eve := &auth.Claims{UserID: "eve", Email: "eve@example.com"}
	w := postMessage(t, h, `{"conversationId":"c1","body":"hi"}`, eve)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
	if len(msgs.appended) != 0 || len(trigger.events) != 0 {
		t.Fatalf("non-member message was persisted or published")
	}
}

func TestCreateMessageUnknownConversation(t *testing.T) {
	_, _, h := messagesFixture(t)

	alice := &auth.Claims{UserID: "alice", Email: "alice@example.com"}
	w := postMessage(t, h, `{"conversationId":"nope","body":"hi"}`, alice)
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusNotFound)
	}
}
