package events

import (
	"sync"

	"github.com/gurnameh-99/fact-den/internal/domain"
)

// VerdictUpdated is published whenever a fresh verdict replaces the
// known value for a post, so every view holding that post converges.
type VerdictUpdated struct {
	PostID  int64
	Verdict domain.Verdict
}

// AuthChanged is published on login and logout. Principal is
// domain.Anonymous after a logout.
type AuthChanged struct {
	Principal domain.Principal
}

// Bus is a small in-process publish/subscribe hub with typed payloads.
// Handlers run synchronously on the publisher's goroutine; subscribers
// that need to block must hand off themselves.
type Bus struct {
	mu       sync.RWMutex
	nextID   int
	verdicts map[int]func(VerdictUpdated)
	auth     map[int]func(AuthChanged)
}

// NewBus builds an empty bus.
func NewBus() *Bus {
	return &Bus{
		verdicts: map[int]func(VerdictUpdated){},
		auth:     map[int]func(AuthChanged){},
	}
}

// SubscribeVerdicts registers a handler and returns an unsubscribe func.
func (b *Bus) SubscribeVerdicts(fn func(VerdictUpdated)) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.nextID
	b.nextID++
	b.verdicts[id] = fn
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.verdicts, id)
	}
}

// SubscribeAuth registers a handler and returns an unsubscribe func.
func (b *Bus) SubscribeAuth(fn func(AuthChanged)) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.nextID
	b.nextID++
	b.auth[id] = fn
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.auth, id)
	}
}

// PublishVerdict fans a verdict update out to current subscribers.
func (b *Bus) PublishVerdict(ev VerdictUpdated) {
	for _, fn := range b.verdictHandlers() {
		fn(ev)
	}
}

// PublishAuth fans an auth-state change out to current subscribers.
func (b *Bus) PublishAuth(ev AuthChanged) {
	for _, fn := range b.authHandlers() {
		fn(ev)
	}
}

func (b *Bus) verdictHandlers() []func(VerdictUpdated) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]func(VerdictUpdated), 0, len(b.verdicts))
	for _, fn := range b.verdicts {
		out = append(out, fn)
	}
	return out
}

func (b *Bus) authHandlers() []func(AuthChanged) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]func(AuthChanged), 0, len(b.auth))
	for _, fn := range b.auth {
		out = append(out, fn)
	}
	return out
}
