// Package presence holds the process-local set of currently-active
// principal keys. The set is rebuilt on every presence (re)subscription and
// mutated incrementally by membership events; it is never persisted.
package presence

import (
	"sort"
	"sync"
)

// Key identifies a principal on the presence channel. The product keys
// presence by account email; keeping the conversion in one place makes a
// later switch to a stable id a one-line change.
func Key(email string) string { return email }

// Store is the active-user set. Only the presence sync component writes to
// it; any UI element may read Members. All mutators are serialized.
type Store struct {
	mu        sync.RWMutex
	members   []string
	listeners []func()
}

func NewStore() *Store {
	return &Store{}
}

// Members returns a sorted copy of the active set.
func (s *Store) Members() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]string, len(s.members))
	copy(out, s.members)
	sort.Strings(out)
	return out
}

// Contains reports whether the key is currently active.
func (s *Store) Contains(key string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, m := range s.members {
		if m == key {
			return true
		}
	}
	return false
}

// Add inserts a key. Duplicate adds are absorbed since the transport may
// redeliver join events.
func (s *Store) Add(key string) {
	s.mu.Lock()
	for _, m := range s.members {
		if m == key {
			s.mu.Unlock()
			return
		}
	}
	s.members = append(s.members, key)
	s.mu.Unlock()
	s.notify()
}

// Remove deletes the first exact match; a missing key is a no-op.
func (s *Store) Remove(key string) {
	s.mu.Lock()
	for i, m := range s.members {
		if m == key {
			s.members = append(s.members[:i], s.members[i+1:]...)
			s.mu.Unlock()
			s.notify()
			return
		}
	}
	s.mu.Unlock()
}

// Replace swaps in a full member list atomically. Used only at subscription
// establishment; it must fully replace, never merge.
func (s *Store) Replace(keys []string) {
	next := make([]string, 0, len(keys))
	seen := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		next = append(next, k)
	}

	s.mu.Lock()
	s.members = next
	s.mu.Unlock()
	s.notify()
}

// OnChange registers a callback invoked after every mutation. Callbacks run
// outside the lock and must not block.
func (s *Store) OnChange(fn func()) {
	s.mu.Lock()
	s.listeners = append(s.listeners, fn)
	s.mu.Unlock()
}

func (s *Store) notify() {
	s.mu.RLock()
	listeners := make([]func(), len(s.listeners))
	copy(listeners, s.listeners)
	s.mu.RUnlock()

	for _, fn := range listeners {
		fn()
	}
}
