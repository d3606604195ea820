package types

import "sync"

// AuditEvent is a superset of the revocation webhook payload of spec.md §6,
// generalized so any sub-check can report an outcome through one bus
// instead of each component growing its own ad hoc subscriber list. The
// revocation-specific on_revocation contract of spec.md §4.5 is still
// satisfied exactly (internal/revocation.Service.OnRevocation wraps this
// same registry type).
type AuditEvent struct {
	Type         string // e.g. "agent.revoked", "delegation.terminated", "token.invalidated", "dpop.replay", "tee.denied"
	RevocationID string
	DID          string
	Reason       string
	Timestamp    int64
	Metadata     map[string]any
}

// Subscriber is invoked sequentially per event with error isolation: a
// panicking subscriber does not prevent others from running (spec.md §5
// "Event subscriber callbacks").
type Subscriber func(AuditEvent)

// Unsubscribe removes a previously registered subscriber.
type Unsubscribe func()

// EventBus is a thread-safe, process-wide subscriber registry.
type EventBus struct {
	mu   sync.Mutex
	subs map[int]Subscriber
	next int
}

// NewEventBus creates an empty EventBus.
func NewEventBus() *EventBus {
	return &EventBus{subs: make(map[int]Subscriber)}
}

// Subscribe registers a callback and returns a token to unregister it.
func (b *EventBus) Subscribe(fn Subscriber) Unsubscribe {
	b.mu.Lock()
	id := b.next
	b.next++
	b.subs[id] = fn
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		delete(b.subs, id)
		b.mu.Unlock()
	}
}

// Publish invokes every current subscriber sequentially, isolating panics
// so one faulty subscriber cannot block delivery to the others.
func (b *EventBus) Publish(evt AuditEvent) {
	b.mu.Lock()
	subs := make([]Subscriber, 0, len(b.subs))
	for _, fn := range b.subs {
		subs = append(subs, fn)
	}
	b.mu.Unlock()

	for _, fn := range subs {
		invokeSafely(fn, evt)
	}
}

func invokeSafely(fn Subscriber, evt AuditEvent) {
	defer func() { _ = recover() }()
	fn(evt)
}
