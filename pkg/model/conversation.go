package model

import "time"

// Conversation is a chat thread. 1:1 conversations have exactly two users
// and no name; the "other user" is derived by the caller, never stored.
type Conversation struct {
	ID            string    `json:"id"`
	Name          string    `json:"name,omitempty"`
	IsGroup       bool      `json:"is_group"`
	LastMessageAt time.Time `json:"last_message_at"`
	CreatedAt     time.Time `json:"created_at"`
	Users         []User    `json:"users,omitempty"`
	UnreadCount   int64     `json:"unread_count,omitempty"`
}

// OtherUser returns the participant that is not the given user. Only
// meaningful for 1:1 conversations.
func (c *Conversation) OtherUser(selfID string) *User {
	for i := range c.Users {
		if c.Users[i].ID != selfID {
			return &c.Users[i]
		}
	}
	return nil
}
