package events

import "strings"

const (
	conversationPrefix = "conversation:"
	userPrefix         = "user:"
)

// ConversationChannel names the channel carrying a conversation's
// messages:new and message:update events.
func ConversationChannel(conversationID string) string {
	return conversationPrefix + conversationID
}

// UserChannel names a principal's personal channel, keyed by email so all
// of the user's open connections receive conversation-level notifications.
func UserChannel(email string) string {
	return userPrefix + email
}

// ConversationID extracts the conversation id from a conversation channel
// name; ok is false for any other channel kind.
func ConversationID(channel string) (string, bool) {
	if !strings.HasPrefix(channel, conversationPrefix) {
		return "", false
	}
	return channel[len(conversationPrefix):], true
}

// UserEmail extracts the owner email from a user channel name.
func UserEmail(channel string) (string, bool) {
	if !strings.HasPrefix(channel, userPrefix) {
		return "", false
	}
	return channel[len(userPrefix):], true
}

// IsPresence reports whether the channel is the presence channel.
func IsPresence(channel string) bool {
	return channel == PresenceChannel
}
