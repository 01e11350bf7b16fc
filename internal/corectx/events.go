package corectx

import (
	"sync"
	"sync/atomic"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

// EventType names an event published on the Core's bus.
type EventType string

const (
	// SessionTransitioned fires on every successful FSM transition applied
	// by the session lifecycle manager.
	SessionTransitioned EventType = "session.transitioned"
	// ApprovalCreated/ApprovalResolved mirror permission.required and
	// permission.resolved style events, generalized to the
	// approval/question data model.
	ApprovalCreated  EventType = "approval.created"
	ApprovalResolved EventType = "approval.resolved"
	QuestionCreated  EventType = "question.created"
	QuestionResolved EventType = "question.resolved"
	// BridgePendingTimeout names the event for a host<->child round trip
	// whose deadline elapses before a response arrives. No code path
	// publishes it; a timed-out call is reported only to its caller.
	BridgePendingTimeout EventType = "bridge.pending.timeout"
)

// Event is a typed notification published on a Bus.
type Event struct {
	Type EventType
	Data any
}

// Subscriber receives published events.
type Subscriber func(Event)

// Bus is a small in-process pub/sub: Publish and PublishSync call the
// registered subscribers directly. It also owns a watermill gochannel
// instance, which it creates and closes but never routes events through.
// It deliberately has no package-level global instance: one Bus
// lives on the Core context constructed at daemon/child start-up, and every
// caller that needs to publish or subscribe receives that Core explicitly.
type Bus struct {
	mu          sync.RWMutex
	pubsub      *gochannel.GoChannel
	subscribers map[EventType][]subscriberEntry
	global      []subscriberEntry
	nextID      uint64
	closed      bool
}

type subscriberEntry struct {
	id uint64
	fn Subscriber
}

// NewBus creates an empty Bus together with its watermill gochannel
// instance.
func NewBus() *Bus {
	return &Bus{
		pubsub: gochannel.NewGoChannel(
			gochannel.Config{OutputChannelBuffer: 100},
			watermill.NopLogger{},
		),
		subscribers: make(map[EventType][]subscriberEntry),
	}
}

// Subscribe registers fn for events of the given type and returns an
// unsubscribe function.
func (b *Bus) Subscribe(t EventType, fn Subscriber) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return func() {}
	}
	id := atomic.AddUint64(&b.nextID, 1)
	b.subscribers[t] = append(b.subscribers[t], subscriberEntry{id: id, fn: fn})
	return func() { b.unsubscribe(t, id) }
}

// SubscribeAll registers fn for every event type.
func (b *Bus) SubscribeAll(fn Subscriber) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return func() {}
	}
	id := atomic.AddUint64(&b.nextID, 1)
	b.global = append(b.global, subscriberEntry{id: id, fn: fn})
	return func() { b.unsubscribeGlobal(id) }
}

func (b *Bus) unsubscribe(t EventType, id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	subs := b.subscribers[t]
	for i, e := range subs {
		if e.id == id {
			b.subscribers[t] = append(subs[:i], subs[i+1:]...)
			return
		}
	}
}

func (b *Bus) unsubscribeGlobal(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, e := range b.global {
		if e.id == id {
			b.global = append(b.global[:i], b.global[i+1:]...)
			return
		}
	}
}

// Publish delivers ev to every matching subscriber, each in its own
// goroutine.
func (b *Bus) Publish(ev Event) {
	for _, sub := range b.subscribersFor(ev.Type) {
		go sub(ev)
	}
}

// PublishSync delivers ev synchronously, for callers where ordering with
// respect to the publisher matters — e.g. appending the synthetic tool
// message the instant a question is answered, before the caller returns.
func (b *Bus) PublishSync(ev Event) {
	for _, sub := range b.subscribersFor(ev.Type) {
		sub(ev)
	}
}

func (b *Bus) subscribersFor(t EventType) []Subscriber {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return nil
	}
	subs := make([]Subscriber, 0, len(b.subscribers[t])+len(b.global))
	for _, e := range b.subscribers[t] {
		subs = append(subs, e.fn)
	}
	for _, e := range b.global {
		subs = append(subs, e.fn)
	}
	return subs
}

// Close permanently disables the bus.
func (b *Bus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	b.subscribers = make(map[EventType][]subscriberEntry)
	b.global = nil
	b.mu.Unlock()
	return b.pubsub.Close()
}
