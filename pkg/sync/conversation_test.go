package sync

import (
	"context"
	"errors"
	"testing"

	"github.com/dexC166/dex-real-time-messenger-sub000/pkg/events"
	"github.com/dexC166/dex-real-time-messenger-sub000/pkg/model"
)

func msg(id int64, body string) model.Message {
	return model.Message{ID: id, Body: body}
}

func openSync(t *testing.T, conversationID string, initial []model.Message) (*ConversationSync, *fakeTransport, *fakeAPI) {
	t.Helper()
	transport := newFakeTransport()
	api := newFakeAPI(initial)

	s := NewConversationSync(conversationID, transport, api)
	if err := s.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	// Initialize always acknowledges the conversation as seen.
	if got := api.waitSeen(t); got != conversationID {
		t.Fatalf("seen ack for %s, want %s", got, conversationID)
	}
	return s, transport, api
}

func TestConversationSync_InitializeLoadsAndSubscribes(t *testing.T) {
	s, transport, _ := openSync(t, "c1", []model.Message{msg(1, "hi"), msg(2, "yo")})

	if got := len(s.Messages()); got != 2 {
		t.Fatalf("expected 2 messages, got %d", got)
	}

	ch := transport.channel(events.ConversationChannel("c1"))
	if ch.subscribes != 1 {
		t.Fatalf("expected 1 subscribe, got %d", ch.subscribes)
	}
	if ch.boundCount() != 2 {
		t.Fatalf("expected both event handlers bound, got %d", ch.boundCount())
	}
}

func TestConversationSync_InitializeLoadFailure(t *testing.T) {
	transport := newFakeTransport()
	api := newFakeAPI(nil)
	api.loadErr = errors.New("boom")

	s := NewConversationSync("c1", transport, api)
	if err := s.Initialize(context.Background()); err == nil {
		t.Fatal("expected load error")
	}

	// Nothing subscribed, nothing acknowledged: the caller owns the retry.
	if ch := transport.channel(events.ConversationChannel("c1")); ch.subscribes != 0 {
		t.Fatalf("expected no subscribe after failed load, got %d", ch.subscribes)
	}
	api.assertNoSeen(t)
}

func TestConversationSync_SubscribeFailureUnbinds(t *testing.T) {
	transport := newFakeTransport()
	api := newFakeAPI([]model.Message{msg(1, "hi")})

	ch := transport.channel(events.ConversationChannel("c1"))
	ch.subscribeErr = errors.New("refused")

	s := NewConversationSync("c1", transport, api)
	if err := s.Initialize(context.Background()); err == nil {
		t.Fatal("expected subscribe error")
	}
	api.waitSeen(t)

	// The channel object outlives the failed sync; abandoned handlers would
	// fire again once a retried open subscribes it.
	if got := ch.boundCount(); got != 0 {
		t.Fatalf("expected no handlers left bound, got %d", got)
	}
	if ch.unsubscribes != 1 {
		t.Fatalf("expected cleanup unsubscribe, got %d", ch.unsubscribes)
	}

	ch.emit(t, events.MessageNew, msg(2, "stray"))
	if got := len(s.Messages()); got != 1 {
		t.Fatalf("abandoned sync mutated its list: %d messages", got)
	}
	api.assertNoSeen(t)
}

func TestConversationSync_DedupByID(t *testing.T) {
	s, transport, api := openSync(t, "c1", []model.Message{msg(1, "first")})
	ch := transport.channel(events.ConversationChannel("c1"))

	ch.emit(t, events.MessageNew, msg(2, "second"))
	api.waitSeen(t)
	ch.emit(t, events.MessageNew, msg(2, "second redelivered"))
	ch.emit(t, events.MessageNew, msg(3, "third"))
	api.waitSeen(t)

	got := s.Messages()
	if len(got) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(got))
	}
	// First arrival wins both position and content.
	if got[1].ID != 2 || got[1].Body != "second" {
		t.Fatalf("expected first delivery of id 2 kept, got %+v", got[1])
	}
	if got[2].ID != 3 {
		t.Fatalf("expected id 3 last, got %+v", got[2])
	}
}

func TestConversationSync_DuplicateDeliverySkipsSideEffects(t *testing.T) {
	s, transport, api := openSync(t, "c1", []model.Message{msg(1, "first")})
	ch := transport.channel(events.ConversationChannel("c1"))

	scrolls := 0
	s.OnScrollToBottom = func() { scrolls++ }

	ch.emit(t, events.MessageNew, msg(2, "fresh"))
	api.waitSeen(t)
	ch.emit(t, events.MessageNew, msg(2, "dup"))

	if scrolls != 1 {
		t.Fatalf("expected 1 scroll command, got %d", scrolls)
	}
	api.assertNoSeen(t)
}

func TestConversationSync_ReplaceByID(t *testing.T) {
	s, transport, _ := openSync(t, "c1", []model.Message{msg(1, "a"), msg(2, "b"), msg(3, "c")})
	ch := transport.channel(events.ConversationChannel("c1"))

	updated := msg(2, "b")
	updated.SeenBy = []model.User{{ID: "u1", Email: "u1@example.com"}}
	ch.emit(t, events.MessageUpdate, updated)

	got := s.Messages()
	if len(got) != 3 {
		t.Fatalf("length changed on update: %d", len(got))
	}
	if got[0].ID != 1 || got[1].ID != 2 || got[2].ID != 3 {
		t.Fatalf("order changed on update: %+v", got)
	}
	if len(got[1].SeenBy) != 1 || got[1].SeenBy[0].ID != "u1" {
		t.Fatalf("expected updated seen set, got %+v", got[1].SeenBy)
	}
}

func TestConversationSync_UpdateForUnknownIDIsDropped(t *testing.T) {
	s, transport, _ := openSync(t, "c1", []model.Message{msg(1, "a")})
	ch := transport.channel(events.ConversationChannel("c1"))

	ch.emit(t, events.MessageUpdate, msg(99, "ghost"))

	got := s.Messages()
	if len(got) != 1 || got[0].ID != 1 {
		t.Fatalf("expected list unchanged, got %+v", got)
	}
}

func TestConversationSync_SearchTargeting(t *testing.T) {
	bodies := []model.Message{msg(10, "hello world"), msg(20, "goodbye"), msg(30, "say hello")}

	tests := []struct {
		name   string
		query  string
		wantID int64
		found  bool
	}{
		{"single keyword first match", "hello", 10, true},
		{"case insensitive", "HELLO", 10, true},
		{"no match", "zzz", 0, false},
		{"two keywords any match", "goodbye cruel", 20, true},
		{"empty query", "   ", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, _, _ := openSync(t, "c1", bodies)

			var scrolledTo int64
			s.OnScrollTo = func(id int64) { scrolledTo = id }

			id, found := s.Search(tt.query)
			if found != tt.found {
				t.Fatalf("found = %v, want %v", found, tt.found)
			}
			if id != tt.wantID {
				t.Fatalf("target = %d, want %d", id, tt.wantID)
			}
			if tt.found && scrolledTo != tt.wantID {
				t.Fatalf("scroll commanded to %d, want %d", scrolledTo, tt.wantID)
			}
			if !tt.found && scrolledTo != 0 {
				t.Fatalf("scroll commanded on a miss: %d", scrolledTo)
			}
		})
	}
}

func TestConversationSync_CloseUnbindsBeforeSwitch(t *testing.T) {
	sA, transport, apiA := openSync(t, "convA", []model.Message{msg(1, "a")})
	chA := transport.channel(events.ConversationChannel("convA"))

	if err := sA.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if chA.boundCount() != 0 {
		t.Fatalf("expected all handlers unbound after close, got %d", chA.boundCount())
	}
	if chA.unsubscribes != 1 {
		t.Fatalf("expected 1 unsubscribe, got %d", chA.unsubscribes)
	}

	// Open conversation B on the same transport, then deliver on A's
	// channel: nothing attributable to A may fire.
	sB := NewConversationSync("convB", transport, apiA)
	if err := sB.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize B: %v", err)
	}
	apiA.waitSeen(t)

	chA.emit(t, events.MessageNew, msg(50, "stale"))

	if got := len(sA.Messages()); got != 1 {
		t.Fatalf("stale handler mutated closed sync: %d messages", got)
	}
	apiA.assertNoSeen(t)
}

func TestConversationSync_SeenFailuresAreSwallowed(t *testing.T) {
	s, transport, api := openSync(t, "c1", nil)
	api.mu.Lock()
	api.seenErr = errors.New("network down")
	api.mu.Unlock()

	ch := transport.channel(events.ConversationChannel("c1"))
	ch.emit(t, events.MessageNew, msg(1, "hi"))
	api.waitSeen(t)

	// Local state keeps the message despite the failed acknowledgement.
	if got := len(s.Messages()); got != 1 {
		t.Fatalf("expected message kept after ack failure, got %d", got)
	}
}
