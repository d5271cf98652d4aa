package sync

import (
	"context"
	"encoding/json"
	"log"
	"strings"
	gosync "sync"

	"github.com/dexC166/dex-real-time-messenger-sub000/pkg/events"
	"github.com/dexC166/dex-real-time-messenger-sub000/pkg/model"
	"github.com/dexC166/dex-real-time-messenger-sub000/pkg/realtime"
)

// ConversationSync keeps the open conversation's message list consistent
// with push events. The list is a read-only working copy: insertion order
// is arrival order and the document store stays the source of truth on the
// next full load.
type ConversationSync struct {
	conversationID string
	transport      Transport
	api            API

	mu       gosync.Mutex
	messages []model.Message

	channel    realtime.Channel
	bindNew    *realtime.Binding
	bindUpdate *realtime.Binding

	// UI side-effect hooks. Nil hooks are skipped.
	OnScrollToBottom func()
	OnScrollTo       func(messageID int64)
}

func NewConversationSync(conversationID string, transport Transport, api API) *ConversationSync {
	return &ConversationSync{
		conversationID: conversationID,
		transport:      transport,
		api:            api,
	}
}

// Initialize loads the initial message page, fires a detached read-receipt
// acknowledgement, then binds and subscribes the conversation channel.
// A load failure is returned to the caller for a manual retry; nothing is
// subscribed in that case.
func (s *ConversationSync) Initialize(ctx context.Context) error {
	messages, err := s.api.Messages(ctx, s.conversationID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.messages = messages
	s.mu.Unlock()

	s.ackSeen()

	ch := s.transport.Channel(events.ConversationChannel(s.conversationID))
	s.mu.Lock()
	s.channel = ch
	s.bindNew = ch.Bind(events.MessageNew, s.onMessageNew)
	s.bindUpdate = ch.Bind(events.MessageUpdate, s.onMessageUpdate)
	s.mu.Unlock()

	if err := ch.Subscribe(); err != nil {
		// The channel object outlives this sync; an abandoned handler pair
		// would fire again on a retried open.
		_ = s.Close()
		return err
	}
	return nil
}

// Close unbinds both handlers with their exact bind tokens and unsubscribes
// the channel. It must complete before a sync for another conversation
// subscribes, so no stale handler fires for the old conversation.
func (s *ConversationSync) Close() error {
	s.mu.Lock()
	ch := s.channel
	s.channel = nil
	if ch != nil {
		ch.Unbind(s.bindNew)
		ch.Unbind(s.bindUpdate)
	}
	s.bindNew, s.bindUpdate = nil, nil
	s.mu.Unlock()

	if ch == nil {
		return nil
	}
	return ch.Unsubscribe()
}

// ConversationID returns the id this sync was created for.
func (s *ConversationSync) ConversationID() string {
	return s.conversationID
}

// Messages returns a copy of the current list.
func (s *ConversationSync) Messages() []model.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// onMessageNew inserts at most once: a redelivered id is discarded, a fresh
// one is appended. Every arrival re-acknowledges the conversation as seen
// by this viewer, the sender's own pushes included. That continuous
// re-marking is deliberate product behavior, not an accident to correct.
func (s *ConversationSync) onMessageNew(data json.RawMessage) {
	var m model.Message
	if err := json.Unmarshal(data, &m); err != nil {
		log.Printf("sync: bad messages:new payload: %v", err)
		return
	}

	s.mu.Lock()
	for i := range s.messages {
		if s.messages[i].ID == m.ID {
			s.mu.Unlock()
			return
		}
	}
	s.messages = append(s.messages, m)
	s.mu.Unlock()

	if s.OnScrollToBottom != nil {
		s.OnScrollToBottom()
	}
	s.ackSeen()
}

// onMessageUpdate replaces the first element with a matching id; an unknown
// id is dropped, never inserted. This is how server-computed read-receipt
// state reaches every viewer.
func (s *ConversationSync) onMessageUpdate(data json.RawMessage) {
	var m model.Message
	if err := json.Unmarshal(data, &m); err != nil {
		log.Printf("sync: bad message:update payload: %v", err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.messages {
		if s.messages[i].ID == m.ID {
			s.messages[i] = m
			return
		}
	}
}

// Search resolves a query to the first message whose body contains any of
// the whitespace-separated keywords, case-insensitively, and commands a
// scroll to it. The target is not retained. No match is a silent no-op.
func (s *ConversationSync) Search(query string) (int64, bool) {
	keywords := strings.Fields(strings.ToLower(query))
	if len(keywords) == 0 {
		return 0, false
	}

	s.mu.Lock()
	var target int64
	found := false
	for i := range s.messages {
		body := strings.ToLower(s.messages[i].Body)
		for _, kw := range keywords {
			if strings.Contains(body, kw) {
				target = s.messages[i].ID
				found = true
				break
			}
		}
		if found {
			break
		}
	}
	s.mu.Unlock()

	if !found {
		return 0, false
	}
	if s.OnScrollTo != nil {
		s.OnScrollTo(target)
	}
	return target, true
}

// ackSeen posts the read receipt as a detached task. Failures are
// intentionally swallowed: the product tolerates a missed receipt, and the
// local list is never rolled back.
func (s *ConversationSync) ackSeen() {
	go func() {
		if err := s.api.MarkSeen(context.Background(), s.conversationID); err != nil {
			log.Printf("sync: seen ack for %s failed: %v", s.conversationID, err)
		}
	}()
}
