package realtime

import (
	"encoding/json"
	"sync"
)

// Handler receives the raw payload of one event on one channel. Handlers
// for a connection are dispatched one at a time on the read loop, so they
// may mutate shared client state without extra locking.
type Handler func(data json.RawMessage)

// Binding is the token returned by Bind. Unbinding requires the exact
// token, so a stale closure can always be detached precisely.
type Binding struct {
	event string
	fn    Handler
}

// Channel is a named stream of events. Bind before Subscribe so no event
// delivered at establishment time is missed.
type Channel interface {
	Name() string
	Bind(event string, fn Handler) *Binding
	Unbind(b *Binding)
	Subscribe() error
	Unsubscribe() error
}

type channel struct {
	name string
	conn *Conn

	mu       sync.Mutex
	bindings map[string][]*Binding
}

func newChannel(name string, conn *Conn) *channel {
	return &channel{
		name:     name,
		conn:     conn,
		bindings: make(map[string][]*Binding),
	}
}

func (c *channel) Name() string { return c.name }

func (c *channel) Bind(event string, fn Handler) *Binding {
	b := &Binding{event: event, fn: fn}
	c.mu.Lock()
	c.bindings[event] = append(c.bindings[event], b)
	c.mu.Unlock()
	return b
}

func (c *channel) Unbind(b *Binding) {
	if b == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	list := c.bindings[b.event]
	for i, candidate := range list {
		if candidate == b {
			c.bindings[b.event] = append(list[:i], list[i+1:]...)
			return
		}
	}
}

func (c *channel) Subscribe() error {
	return c.conn.sendControl(actionSubscribe, c.name)
}

func (c *channel) Unsubscribe() error {
	err := c.conn.sendControl(actionUnsubscribe, c.name)
	c.conn.release(c)
	return err
}

// empty reports whether no bindings remain.
func (c *channel) empty() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, list := range c.bindings {
		if len(list) > 0 {
			return false
		}
	}
	return true
}

// dispatch runs every binding for the event. Called only from the
// connection read loop.
func (c *channel) dispatch(event string, data json.RawMessage) {
	c.mu.Lock()
	list := c.bindings[event]
	handlers := make([]Handler, len(list))
	for i, b := range list {
		handlers[i] = b.fn
	}
	c.mu.Unlock()

	for _, fn := range handlers {
		fn(data)
	}
}
