package reactor

import "sync"

// Bus is the fixed-capacity publish/subscribe fan-out described in §4.7:
// a table of topics, each a small subscriber list, indexed by signal id.
// Modeled on eventloop's subscription map (eventloop/loop.go) but keyed by
// SignalID rather than an opaque listener handle, and backed
// by plain slices since topic and subscriber counts are small compile-time
// bounds rather than an unbounded registry.
type Bus struct {
	kernel *Kernel

	mu          sync.RWMutex
	topics      map[SignalID]*topic
	maxTopics   int
	maxSubs     int
	dropCount   int
	publishCount int
}

type topic struct {
	subscribers []EntityID
}

func newBus(k *Kernel, maxTopics, maxSubsPerTopic int) *Bus {
	return &Bus{
		kernel:    k,
		topics:    make(map[SignalID]*topic, maxTopics),
		maxTopics: maxTopics,
		maxSubs:   maxSubsPerTopic,
	}
}

// Subscribe appends entity to the subscriber list of the topic named by
// sig, creating the topic if it does not yet exist. Fails with
// ErrNoMemory if the topic table or the topic's subscriber list is full.
// A duplicate subscription is a no-op success.
func (b *Bus) Subscribe(entity EntityID, sig SignalID) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	t, ok := b.topics[sig]
	if !ok {
		if len(b.topics) >= b.maxTopics {
			return WrapError("bus subscribe", ErrNoMemory)
		}
		t = &topic{}
		b.topics[sig] = t
	}
	for _, id := range t.subscribers {
		if id == entity {
			return nil
		}
	}
	if len(t.subscribers) >= b.maxSubs {
		return WrapError("bus subscribe", ErrNoMemory)
	}
	t.subscribers = append(t.subscribers, entity)
	return nil
}

// Unsubscribe removes entity from the topic named by sig, if present.
func (b *Bus) Unsubscribe(entity EntityID, sig SignalID) {
	b.mu.Lock()
	defer b.mu.Unlock()
	t, ok := b.topics[sig]
	if !ok {
		return
	}
	for i, id := range t.subscribers {
		if id == entity {
			t.subscribers = append(t.subscribers[:i], t.subscribers[i+1:]...)
			return
		}
	}
}

// unsubscribeAll removes entity from every topic. Called implicitly by
// Kernel.Stop.
func (b *Bus) unsubscribeAll(entity EntityID) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, t := range b.topics {
		for i, id := range t.subscribers {
			if id == entity {
				t.subscribers = append(t.subscribers[:i], t.subscribers[i+1:]...)
				break
			}
		}
	}
}

// Publish looks up the topic of sig.ID and emits sig, as-is, to each
// subscriber via Kernel.Emit. Overflowing an individual subscriber's
// inbox is counted as a drop but does not abort the remaining fan-out.
// Returns the count of subscribers the signal was successfully enqueued
// to.
func (b *Bus) Publish(sig Signal) int {
	subs := b.snapshotSubscribers(sig.ID)
	n := 0
	for _, id := range subs {
		if err := b.kernel.Emit(id, sig.clone()); err == nil {
			n++
		} else {
			b.mu.Lock()
			b.dropCount++
			b.mu.Unlock()
		}
	}
	b.mu.Lock()
	b.publishCount++
	b.mu.Unlock()
	return n
}

// PublishFromISR is Publish's ISR-safe variant: it uses EmitFromISR for
// each subscriber and reports whether any subscriber was woken from an
// empty inbox.
func (b *Bus) PublishFromISR(sig Signal) (delivered int, woken bool) {
	subs := b.snapshotSubscribers(sig.ID)
	for _, id := range subs {
		w, err := b.kernel.EmitFromISR(id, sig.clone())
		if err == nil {
			delivered++
			woken = woken || w
		} else {
			b.mu.Lock()
			b.dropCount++
			b.mu.Unlock()
		}
	}
	b.mu.Lock()
	b.publishCount++
	b.mu.Unlock()
	return delivered, woken
}

func (b *Bus) snapshotSubscribers(sig SignalID) []EntityID {
	b.mu.RLock()
	defer b.mu.RUnlock()
	t, ok := b.topics[sig]
	if !ok {
		return nil
	}
	out := make([]EntityID, len(t.subscribers))
	copy(out, t.subscribers)
	return out
}

// SubscriberCount returns the number of entities subscribed to sig.
func (b *Bus) SubscriberCount(sig SignalID) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	t, ok := b.topics[sig]
	if !ok {
		return 0
	}
	return len(t.subscribers)
}

// TopicCount returns the number of distinct topics with at least one
// subscription ever made.
func (b *Bus) TopicCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.topics)
}

// BusStats is a read-only snapshot of bus activity counters.
type BusStats struct {
	Topics       int
	PublishCount int
	DropCount    int
}

// Stats returns a snapshot of the bus's activity counters.
func (b *Bus) Stats() BusStats {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return BusStats{Topics: len(b.topics), PublishCount: b.publishCount, DropCount: b.dropCount}
}
