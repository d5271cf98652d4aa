package model

import "time"

// Message belongs to one conversation. At least one of Body/Image must be
// set; both set is allowed. SeenBy is the read-receipt set: every user who
// has acknowledged reading the conversation up to this message.
type Message struct {
	ID             int64     `json:"id"`
	ConversationID string    `json:"conversation_id"`
	SenderID       string    `json:"sender_id"`
	SenderEmail    string    `json:"sender_email"`
	SenderName     string    `json:"sender_name,omitempty"`
	Body           string    `json:"body,omitempty"`
	Image          string    `json:"image,omitempty"`
	SeenBy         []User    `json:"seen_by,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// SeenByUser reports whether the user id is already in the read-receipt set.
func (m *Message) SeenByUser(userID string) bool {
	for i := range m.SeenBy {
		if m.SeenBy[i].ID == userID {
			return true
		}
	}
	return false
}
