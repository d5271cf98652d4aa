package main

import (
	"log"
	"net/http"

	"github.com/dexC166/dex-real-time-messenger-sub000/pkg/db"
	"github.com/dexC166/dex-real-time-messenger-sub000/pkg/events"
	"github.com/dexC166/dex-real-time-messenger-sub000/pkg/model"
)

// markSeen acknowledges the conversation as read by the principal:
//
//  1. An empty conversation acknowledges successfully with no effect.
//  2. The principal is added to the LAST message's seen set (idempotent).
//  3. The principal's own user channel is always notified, so their other
//     open tabs update.
//  4. The conversation-wide message:update fires only when the principal
//     was not already in the seen set; redundant acknowledgements must not
//     fan out to every viewer again.
func (h *ConversationsHandler) markSeen(w http.ResponseWriter, r *http.Request, id string) {
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

	last, err := h.messages.Last(r.Context(), id)
	if err == db.ErrNotFound {
		// Nothing to acknowledge yet.
		writeJSON(w, http.StatusOK, conv)
		return
	}
	if err != nil {
		http.Error(w, "Failed to load last message", http.StatusInternalServerError)
		return
	}

	alreadySeen := last.SeenByUser(claims.UserID)

	if err := h.messages.AddSeen(r.Context(), id, last.ID, claims.UserID); err != nil {
		http.Error(w, "Failed to record read receipt", http.StatusInternalServerError)
		return
	}
	if err := h.conversations.ResetUnread(r.Context(), claims.UserID, id); err != nil {
		log.Printf("Failed to reset unread count for %s: %v", claims.UserID, err)
	}

	if !alreadySeen {
		last.SeenBy = append(last.SeenBy, model.User{
			ID:    claims.UserID,
			Email: claims.Email,
			Name:  claims.Name,
		})
	}

	// Self-notification always fires, even on a redundant acknowledgement.
	selfChannel := events.UserChannel(claims.Email)
	delta := events.ConversationDelta{ID: id, Messages: []model.Message{*last}}
	if err := h.publisher.Trigger(r.Context(), selfChannel, events.ConversationUpdate, delta); err != nil {
		log.Printf("Failed to publish seen self-notification: %v", err)
	}

	if !alreadySeen {
		channel := events.ConversationChannel(id)
		if err := h.publisher.Trigger(r.Context(), channel, events.MessageUpdate, *last); err != nil {
			log.Printf("Failed to publish message:update: %v", err)
		}
	}

	writeJSON(w, http.StatusOK, last)
}
