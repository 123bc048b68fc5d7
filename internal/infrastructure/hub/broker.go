package hub

import (
	"sync"

	"go-chat-stream/internal/infrastructure/logger"
)

// DeliverFunc delivers one event to one subscriber. A non-nil error marks
// the subscriber as dead; the broker removes it and keeps going.
type DeliverFunc func(event *Event) error

// Subscription is the handle returned by Subscribe, usable for Unsubscribe.
type Subscription struct {
	id uint64
}

// Broker is the in-process event bus: a mutex-guarded set of delivery
// callbacks. Publish fans out against a snapshot of the set, so the lock
// is never held across a delivery call.
type Broker struct {
	mu     sync.RWMutex
	nextID uint64
	subs   map[uint64]DeliverFunc

	logger logger.Logger
}

// NewBroker creates an empty broker.
func NewBroker(log logger.Logger) *Broker {
	return &Broker{
		subs:   make(map[uint64]DeliverFunc),
		logger: log.WithField("component", "broker"),
	}
}

// Subscribe registers a delivery callback. Every Publish call entered after
// Subscribe returns will attempt delivery to it.
func (b *Broker) Subscribe(fn DeliverFunc) Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	id := b.nextID
	b.subs[id] = fn

	return Subscription{id: id}
}

// Unsubscribe removes a subscription. Removing an already-removed handle is
// a no-op.
func (b *Broker) Unsubscribe(sub Subscription) {
	b.mu.Lock()
	delete(b.subs, sub.id)
	b.mu.Unlock()
}

// SubscriberCount returns the number of registered subscribers.
func (b *Broker) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Publish delivers event to every currently-registered subscriber. No
// relative order across subscribers is guaranteed; per-subscriber order
// follows the order of Publish calls. A failing subscriber is unsubscribed
// and reported in the returned slice; the remaining subscribers still
// receive the event. Publish itself never fails from the caller's point
// of view.
func (b *Broker) Publish(event *Event) []Subscription {
	type entry struct {
		id uint64
		fn DeliverFunc
	}

	b.mu.RLock()
	snapshot := make([]entry, 0, len(b.subs))
	for id, fn := range b.subs {
		snapshot = append(snapshot, entry{id: id, fn: fn})
	}
	b.mu.RUnlock()

	var failed []Subscription
	for _, sub := range snapshot {
		if err := sub.fn(event); err != nil {
			b.logger.Warnf("delivery to subscriber %d failed, removing: %v", sub.id, err)
			failed = append(failed, Subscription{id: sub.id})
		}
	}

	if len(failed) > 0 {
		b.mu.Lock()
		for _, sub := range failed {
			delete(b.subs, sub.id)
		}
		b.mu.Unlock()
	}

	return failed
}
