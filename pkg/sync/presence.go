package sync

import (
	"encoding/json"
	"sync"

	"github.com/dexC166/dex-real-time-messenger-sub000/pkg/events"
	"github.com/dexC166/dex-real-time-messenger-sub000/pkg/presence"
	"github.com/dexC166/dex-real-time-messenger-sub000/pkg/realtime"
)

// State is the presence subscription lifecycle.
type State int

const (
	Unsubscribed State = iota
	Subscribing
	Subscribed
)

// PresenceSync subscribes to the well-known presence channel and translates
// membership events into store mutations. The channel handle is cached so a
// second Start while one is live is a no-op rather than a duplicate bind.
type PresenceSync struct {
	store     *presence.Store
	transport Transport

	mu      sync.Mutex
	state   State
	channel realtime.Channel

	bindSucceeded *realtime.Binding
	bindAdded     *realtime.Binding
	bindRemoved   *realtime.Binding
}

func NewPresenceSync(store *presence.Store, transport Transport) *PresenceSync {
	return &PresenceSync{store: store, transport: transport}
}

// State returns the current lifecycle state.
func (p *PresenceSync) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Start binds membership handlers and subscribes the presence channel.
// Idempotent while a channel handle is cached. A subscribe failure leaves
// the store untouched (an empty set is the degraded mode; presence is a
// non-critical enhancement).
func (p *PresenceSync) Start() error {
	p.mu.Lock()
	if p.channel != nil {
		p.mu.Unlock()
		return nil
	}

	ch := p.transport.Channel(events.PresenceChannel)
	p.channel = ch
	p.state = Subscribing

	p.bindSucceeded = ch.Bind(events.SubscriptionSucceeded, p.onSucceeded)
	p.bindAdded = ch.Bind(events.MemberAdded, p.onMemberAdded)
	p.bindRemoved = ch.Bind(events.MemberRemoved, p.onMemberRemoved)
	p.mu.Unlock()

	if err := ch.Subscribe(); err != nil {
		p.Close()
		return err
	}
	return nil
}

// Close unsubscribes and clears the cached handle. The unsubscribe is
// unconditional cleanup: it runs even if establishment never completed, so
// no transport-side subscription leaks.
func (p *PresenceSync) Close() {
	p.mu.Lock()
	ch := p.channel
	p.channel = nil
	p.state = Unsubscribed

	if ch != nil {
		ch.Unbind(p.bindSucceeded)
		ch.Unbind(p.bindAdded)
		ch.Unbind(p.bindRemoved)
	}
	p.bindSucceeded, p.bindAdded, p.bindRemoved = nil, nil, nil
	p.mu.Unlock()

	if ch != nil {
		_ = ch.Unsubscribe()
	}
}

func (p *PresenceSync) onSucceeded(data json.RawMessage) {
	var list events.MemberList
	if err := json.Unmarshal(data, &list); err != nil {
		return
	}

	keys := make([]string, 0, len(list.Members))
	for _, m := range list.Members {
		keys = append(keys, m.ID)
	}

	p.mu.Lock()
	p.state = Subscribed
	p.mu.Unlock()

	// Establishment fully replaces the set; it never merges.
	p.store.Replace(keys)
}

func (p *PresenceSync) onMemberAdded(data json.RawMessage) {
	var m events.Member
	if err := json.Unmarshal(data, &m); err != nil {
		return
	}
	p.store.Add(m.ID)
}

func (p *PresenceSync) onMemberRemoved(data json.RawMessage) {
	var m events.Member
	if err := json.Unmarshal(data, &m); err != nil {
		return
	}
	p.store.Remove(m.ID)
}
