package main

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strings"

	"github.com/dexC166/dex-real-time-messenger-sub000/pkg/db"
	"github.com/dexC166/dex-real-time-messenger-sub000/pkg/events"
	"github.com/dexC166/dex-real-time-messenger-sub000/pkg/model"
)

// Trigger publishes one event on one channel. *events.Publisher satisfies
// it; tests substitute a recorder.
type Trigger interface {
	Trigger(ctx context.Context, channel, event string, payload interface{}) error
}

// conversationStore is the slice of db.ConversationsStore the handlers use.
type conversationStore interface {
	Get(ctx context.Context, id string) (*model.Conversation, error)
	IsMember(ctx context.Context, conversationID, userID string) (bool, error)
	ListForUser(ctx context.Context, userID string) ([]model.Conversation, error)
	FindDirect(ctx context.Context, userAID, userBID string) (*model.Conversation, error)
	Create(ctx context.Context, name string, isGroup bool, userIDs []string) (*model.Conversation, error)
	Delete(ctx context.Context, id string, userIDs []string) error
	ResetUnread(ctx context.Context, userID, conversationID string) error
}

// messageStore is the slice of db.MessagesStore the handlers use.
type messageStore interface {
	List(ctx context.Context, conversationID string) ([]model.Message, error)
	Last(ctx context.Context, conversationID string) (*model.Message, error)
	AddSeen(ctx context.Context, conversationID string, messageID int64, userID string) error
}

type CreateConversationRequest struct {
	UserID  string   `json:"userId"`
	IsGroup bool     `json:"isGroup"`
	Name    string   `json:"name"`
	Members []string `json:"members"`
}

// ConversationsHandler serves /conversations and its subpaths:
//
//	GET    /conversations
//	POST   /conversations
//	DELETE /conversations/{id}
//	GET    /conversations/{id}/messages
//	POST   /conversations/{id}/seen
type ConversationsHandler struct {
	conversations conversationStore
	messages      messageStore
	publisher     Trigger
}

func NewConversationsHandler(conversations conversationStore, messages messageStore, publisher Trigger) *ConversationsHandler {
	return &ConversationsHandler{
		conversations: conversations,
		messages:      messages,
		publisher:     publisher,
	}
}

func (h *ConversationsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rest := strings.Trim(strings.TrimPrefix(r.URL.Path, "/conversations"), "/")

	switch {
	case rest == "" && r.Method == http.MethodGet:
		h.list(w, r)
	case rest == "" && r.Method == http.MethodPost:
		h.create(w, r)
	default:
		parts := strings.Split(rest, "/")
		switch {
		case len(parts) == 1 && r.Method == http.MethodDelete:
			h.delete(w, r, parts[0])
		case len(parts) == 2 && parts[1] == "messages" && r.Method == http.MethodGet:
			h.listMessages(w, r, parts[0])
		case len(parts) == 2 && parts[1] == "seen" && r.Method == http.MethodPost:
			h.markSeen(w, r, parts[0])
		default:
			http.Error(w, "Not found", http.StatusNotFound)
		}
	}
}

func (h *ConversationsHandler) list(w http.ResponseWriter, r *http.Request) {
	claims, ok := principal(r)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	conversations, err := h.conversations.ListForUser(r.Context(), claims.UserID)
	if err != nil {
		http.Error(w, "Failed to list conversations", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, conversations)
}

// create makes a 1:1 or group conversation. Direct conversations between a
// pair are deduplicated: an existing one is returned instead of a second
// thread.
func (h *ConversationsHandler) create(w http.ResponseWriter, r *http.Request) {
	claims, ok := principal(r)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req CreateConversationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if req.IsGroup {
		if req.Name == "" || len(req.Members) < 2 {
			http.Error(w, "group conversations need a name and at least 2 members", http.StatusBadRequest)
			return
		}
		userIDs := append([]string{claims.UserID}, req.Members...)

		conv, err := h.conversations.Create(r.Context(), req.Name, true, userIDs)
		if err != nil {
			http.Error(w, "Failed to create conversation", http.StatusInternalServerError)
			return
		}

		h.announce(r.Context(), conv, events.ConversationNew)
		writeJSON(w, http.StatusOK, conv)
		return
	}

	if req.UserID == "" {
		http.Error(w, "userId is required", http.StatusBadRequest)
		return
	}

	if existing, err := h.conversations.FindDirect(r.Context(), claims.UserID, req.UserID); err == nil {
		writeJSON(w, http.StatusOK, existing)
		return
	} else if err != db.ErrNotFound {
		http.Error(w, "Failed to look up conversation", http.StatusInternalServerError)
		return
	}

	conv, err := h.conversations.Create(r.Context(), "", false, []string{claims.UserID, req.UserID})
	if err != nil {
		http.Error(w, "Failed to create conversation", http.StatusInternalServerError)
		return
	}

	h.announce(r.Context(), conv, events.ConversationNew)
	writeJSON(w, http.StatusOK, conv)
}

func (h *ConversationsHandler) delete(w http.ResponseWriter, r *http.Request, id string) {
	claims, ok := principal(r)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	conv, err := h.conversations.Get(r.Context(), id)
	if err == db.ErrNotFound {
		http.Error(w, "conversation not found", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, "Failed to load conversation", http.StatusInternalServerError)
		return
	}

	member := false
	userIDs := make([]string, 0, len(conv.Users))
	for i := range conv.Users {
		userIDs = append(userIDs, conv.Users[i].ID)
		if conv.Users[i].ID == claims.UserID {
			member = true
		}
	}
	if !member {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	if err := h.conversations.Delete(r.Context(), id, userIDs); err != nil {
		http.Error(w, "Failed to delete conversation", http.StatusInternalServerError)
		return
	}

	h.announce(r.Context(), conv, events.ConversationRemove)
	w.WriteHeader(http.StatusOK)
}

// listMessages is the initial page load for a conversation sync: stored
// order, full read-receipt sets.
func (h *ConversationsHandler) listMessages(w http.ResponseWriter, r *http.Request, id string) {
	claims, ok := principal(r)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	member, err := h.conversations.IsMember(r.Context(), id, claims.UserID)
	if err != nil {
		http.Error(w, "Failed to check membership", http.StatusInternalServerError)
		return
	}
	if !member {
		http.Error(w, "conversation not found", http.StatusNotFound)
		return
	}

	messages, err := h.messages.List(r.Context(), id)
	if err != nil {
		http.Error(w, "Failed to load messages", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, messages)
}

// announce pushes a conversation lifecycle event to every participant's
// personal channel.
func (h *ConversationsHandler) announce(ctx context.Context, conv *model.Conversation, event string) {
	for i := range conv.Users {
		channel := events.UserChannel(conv.Users[i].Email)
		if err := h.publisher.Trigger(ctx, channel, event, conv); err != nil {
			log.Printf("Failed to publish %s to %s: %v", event, channel, err)
		}
	}
}
