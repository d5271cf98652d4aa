package sync

import (
	"context"
	"encoding/json"
	gosync "sync"
	"testing"
	"time"

	"github.com/dexC166/dex-real-time-messenger-sub000/pkg/model"
	"github.com/dexC166/dex-real-time-messenger-sub000/pkg/realtime"
)

type boundHandler struct {
	event string
	fn    realtime.Handler
}

// fakeChannel stands in for a gateway channel. Events are emitted directly
// into the bound handlers, mirroring the serialized dispatch of the real
// read loop.
type fakeChannel struct {
	mu   gosync.Mutex
	name string

	bound        map[*realtime.Binding]boundHandler
	subscribes   int
	unsubscribes int
	subscribeErr error
}

func newFakeChannel(name string) *fakeChannel {
	return &fakeChannel{name: name, bound: make(map[*realtime.Binding]boundHandler)}
}

func (c *fakeChannel) Name() string { return c.name }

func (c *fakeChannel) Bind(event string, fn realtime.Handler) *realtime.Binding {
	c.mu.Lock()
	defer c.mu.Unlock()
	b := new(realtime.Binding)
	c.bound[b] = boundHandler{event: event, fn: fn}
	return b
}

func (c *fakeChannel) Unbind(b *realtime.Binding) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.bound, b)
}

func (c *fakeChannel) Subscribe() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.subscribes++
	return c.subscribeErr
}

func (c *fakeChannel) Unsubscribe() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.unsubscribes++
	return nil
}

func (c *fakeChannel) boundCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.bound)
}

func (c *fakeChannel) emit(t *testing.T, event string, payload interface{}) {
	t.Helper()
	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}

	c.mu.Lock()
	handlers := make([]realtime.Handler, 0, len(c.bound))
	for _, h := range c.bound {
		if h.event == event {
			handlers = append(handlers, h.fn)
		}
	}
	c.mu.Unlock()

	for _, fn := range handlers {
		fn(data)
	}
}

// fakeTransport hands out fakeChannels by name.
type fakeTransport struct {
	mu       gosync.Mutex
	channels map[string]*fakeChannel
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{channels: make(map[string]*fakeChannel)}
}

func (t *fakeTransport) Channel(name string) realtime.Channel {
	t.mu.Lock()
	defer t.mu.Unlock()
	ch, ok := t.channels[name]
	if !ok {
		ch = newFakeChannel(name)
		t.channels[name] = ch
	}
	return ch
}

func (t *fakeTransport) channel(name string) *fakeChannel {
	t.mu.Lock()
	defer t.mu.Unlock()
	ch, ok := t.channels[name]
	if !ok {
		ch = newFakeChannel(name)
		t.channels[name] = ch
	}
	return ch
}

// fakeAPI records seen acknowledgements on a channel so tests can wait for
// the detached goroutine.
type fakeAPI struct {
	mu       gosync.Mutex
	initial  []model.Message
	loadErr  error
	seenErr  error
	seenAcks chan string
}

func newFakeAPI(initial []model.Message) *fakeAPI {
	return &fakeAPI{initial: initial, seenAcks: make(chan string, 16)}
}

func (a *fakeAPI) Messages(ctx context.Context, conversationID string) ([]model.Message, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.loadErr != nil {
		return nil, a.loadErr
	}
	out := make([]model.Message, len(a.initial))
	copy(out, a.initial)
	return out, nil
}

func (a *fakeAPI) MarkSeen(ctx context.Context, conversationID string) error {
	a.mu.Lock()
	err := a.seenErr
	a.mu.Unlock()
	a.seenAcks <- conversationID
	return err
}

func (a *fakeAPI) waitSeen(t *testing.T) string {
	t.Helper()
	select {
	case id := <-a.seenAcks:
		return id
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for seen acknowledgement")
		return ""
	}
}

func (a *fakeAPI) assertNoSeen(t *testing.T) {
	t.Helper()
	select {
	case id := <-a.seenAcks:
		t.Fatalf("unexpected seen acknowledgement for %s", id)
	case <-time.After(50 * time.Millisecond):
	}
}
