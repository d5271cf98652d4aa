package events

import "github.com/dexC166/dex-real-time-messenger-sub000/pkg/model"

// ConversationDelta is the conversation:update payload pushed to user
// channels: the conversation id plus the message(s) whose state changed.
type ConversationDelta struct {
	ID       string          `json:"id"`
	Messages []model.Message `json:"messages,omitempty"`
}
