package main

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/dexC166/dex-real-time-messenger-sub000/pkg/db"
	"github.com/dexC166/dex-real-time-messenger-sub000/pkg/events"
	"github.com/dexC166/dex-real-time-messenger-sub000/pkg/model"
	"github.com/dexC166/dex-real-time-messenger-sub000/pkg/snowflake"
)

type CreateMessageRequest struct {
	Body           string `json:"body"`
	Image          string `json:"image"`
	ConversationID string `json:"conversationId"`
}

// messageAppender is the write slice of db.MessagesStore.
type messageAppender interface {
	Append(ctx context.Context, m *model.Message) error
}

// MessagesHandler serves POST /messages: validate, persist, push
// messages:new on the conversation channel and conversation:update on every
// participant's user channel. Unread counters and list ordering are derived
// by the messaging projector from the same event.
type MessagesHandler struct {
	conversations conversationStore
	messages      messageAppender
	publisher     Trigger
	node          *snowflake.Node
}

func NewMessagesHandler(conversations conversationStore, messages messageAppender, publisher Trigger, node *snowflake.Node) *MessagesHandler {
	return &MessagesHandler{
		conversations: conversations,
		messages:      messages,
		publisher:     publisher,
		node:          node,
	}
}

func (h *MessagesHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	claims, ok := principal(r)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req CreateMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.ConversationID == "" {
		http.Error(w, "conversationId is required", http.StatusBadRequest)
		return
	}
	if req.Body == "" && req.Image == "" {
		http.Error(w, "message needs a body or an image", http.StatusBadRequest)
		return
	}

	conv, err := h.conversations.Get(r.Context(), req.ConversationID)
	if err == db.ErrNotFound {
		http.Error(w, "conversation not found", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, "Failed to load conversation", http.StatusInternalServerError)
		return
	}

	member := false
	for i := range conv.Users {
		if conv.Users[i].ID == claims.UserID {
			member = true
			break
		}
	}
	if !member {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	msg := &model.Message{
		ID:             h.node.Generate(),
		ConversationID: req.ConversationID,
		SenderID:       claims.UserID,
		SenderEmail:    claims.Email,
		SenderName:     claims.Name,
		Body:           req.Body,
		Image:          req.Image,
		CreatedAt:      time.Now(),
		// The sender has trivially seen their own message.
		SeenBy: []model.User{{ID: claims.UserID, Email: claims.Email, Name: claims.Name}},
	}

	if err := h.messages.Append(r.Context(), msg); err != nil {
		http.Error(w, "Failed to save message", http.StatusInternalServerError)
		return
	}

	channel := events.ConversationChannel(req.ConversationID)
	if err := h.publisher.Trigger(r.Context(), channel, events.MessageNew, *msg); err != nil {
		log.Printf("Failed to publish messages:new: %v", err)
	}

	delta := events.ConversationDelta{ID: req.ConversationID, Messages: []model.Message{*msg}}
	for i := range conv.Users {
		userChannel := events.UserChannel(conv.Users[i].Email)
		if err := h.publisher.Trigger(r.Context(), userChannel, events.ConversationUpdate, delta); err != nil {
			log.Printf("Failed to publish conversation:update to %s: %v", userChannel, err)
		}
	}

	writeJSON(w, http.StatusOK, msg)
}
