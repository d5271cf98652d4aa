package events

import "encoding/json"

// Event names pushed over the transport. Conversation channels carry the
// messages:* events; user channels carry the conversation:* events; the
// presence channel carries the presence_* membership events.
const (
	MessageNew         = "messages:new"
	MessageUpdate      = "message:update"
	ConversationNew    = "conversation:new"
	ConversationUpdate = "conversation:update"
	ConversationRemove = "conversation:remove"

	SubscriptionSucceeded = "subscription_succeeded"
	MemberAdded           = "member_added"
	MemberRemoved         = "member_removed"
)

// PresenceChannel is the single well-known channel whose membership
// represents "currently connected to the app", independent of any
// conversation.
const PresenceChannel = "presence-messenger"

// PresenceConnectionsKey is the Redis hash tracking open presence
// subscriptions per member. Gateways refcount it; the api reads its keys to
// answer presence queries.
const PresenceConnectionsKey = "presence:connections"

// Envelope is the wire frame for every pushed event.
type Envelope struct {
	Channel string          `json:"channel"`
	Event   string          `json:"event"`
	Data    json.RawMessage `json:"data"`
}

// Member is the payload of presence membership events.
type Member struct {
	ID string `json:"id"`
}

// MemberList is the payload of subscription_succeeded.
type MemberList struct {
	Members []Member `json:"members"`
}
