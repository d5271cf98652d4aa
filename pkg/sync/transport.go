// Package sync keeps client-side state consistent with server push events:
// the active-user set driven by the presence channel, and the open
// conversation's message list driven by its conversation channel.
package sync

import (
	"context"

	"github.com/dexC166/dex-real-time-messenger-sub000/pkg/model"
	"github.com/dexC166/dex-real-time-messenger-sub000/pkg/realtime"
)

// Transport is the sync components' view of the realtime connection.
// *realtime.Conn satisfies it.
type Transport interface {
	Channel(name string) realtime.Channel
}

// API is the subset of the data-access routes the conversation sync calls.
type API interface {
	// Messages loads the initial message page in stored order.
	Messages(ctx context.Context, conversationID string) ([]model.Message, error)
	// MarkSeen acknowledges the read receipt for the conversation.
	MarkSeen(ctx context.Context, conversationID string) error
}
