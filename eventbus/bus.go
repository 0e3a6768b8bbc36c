// Package eventbus implements the event multiplexer spec §5 describes: an
// external collaborator (never called by core/step) that fans block-level
// events out to subscribers. One Bus owns a set of producers and
// subscriptions; Subscriber Add/Remove commands are dispatched to producers
// round-robin, and a producer's events are fanned out to every subscription
// whose opaque filter matches.
package eventbus

import (
	"sync"

	"github.com/google/uuid"
)

// Event is one multiplexed payload, opaque to the Bus aside from the
// producer it came from.
type Event struct {
	ProducerID string
	Payload    any
}

// Filter decides whether payload matches a subscription. Filters are opaque
// to the Bus (spec §5); callers supply whatever predicate their protocol
// needs.
type Filter func(payload any) bool

// Producer is a named event source the Bus dispatches subscriber commands
// to. Implementations wrap whatever actually emits events (the orchestrator,
// a mempool watcher); the Bus only needs enough surface to add/remove
// client-scoped filters and learn of disconnects.
type Producer interface {
	ID() string
	AddSubscription(clientSubscriptionID string, filter Filter) error
	RemoveSubscription(clientSubscriptionID string) error
}

// subscription is keyed by (subscriberID, clientSubscriptionID) per spec §5.
type subscription struct {
	subscriberID         string
	clientSubscriptionID string
	filter               Filter
	assignedProducer     string
	events               chan Event
}

// Bus owns the producer vector and the subscription table. Producers are
// stored in a tombstoned vector (nil slot on disconnect) rather than
// removed, so round-robin indices stay stable across disconnects (spec
// §8's "Event multiplexer fan-out" testable property).
type Bus struct {
	mu          sync.Mutex
	producers   []Producer // tombstoned: a disconnected producer's slot is set to nil, never removed
	nextRR      int
	subs        map[string]*subscription // key: subscriberID+"\x00"+clientSubscriptionID
	bySubscriber map[string][]string      // subscriberID -> list of sub keys, for bulk disconnect
}

// New constructs an empty Bus.
func New() *Bus {
	return &Bus{
		subs:         make(map[string]*subscription),
		bySubscriber: make(map[string][]string),
	}
}

func subKey(subscriberID, clientSubscriptionID string) string {
	return subscriberID + "\x00" + clientSubscriptionID
}

// AddProducer appends p to the producer vector and returns its slot index.
func (b *Bus) AddProducer(p Producer) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.producers = append(b.producers, p)
	return len(b.producers) - 1
}

// RemoveProducer tombstones the producer at slot, closing every subscription
// currently assigned to it (spec §5: "Producer disconnect closes all
// subscribers assigned to it").
func (b *Bus) RemoveProducer(slot int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if slot < 0 || slot >= len(b.producers) || b.producers[slot] == nil {
		return
	}
	dead := b.producers[slot].ID()
	b.producers[slot] = nil

	for key, sub := range b.subs {
		if sub.assignedProducer == dead {
			close(sub.events)
			delete(b.subs, key)
			list := b.bySubscriber[sub.subscriberID]
			for i, k := range list {
				if k == key {
					b.bySubscriber[sub.subscriberID] = append(list[:i], list[i+1:]...)
					break
				}
			}
		}
	}
}

// nextProducer returns the next live producer in round-robin order, or nil
// if none are live. Must be called with b.mu held.
func (b *Bus) nextProducer() Producer {
	n := len(b.producers)
	if n == 0 {
		return nil
	}
	for i := 0; i < n; i++ {
		idx := (b.nextRR + i) % n
		if b.producers[idx] != nil {
			b.nextRR = (idx + 1) % n
			return b.producers[idx]
		}
	}
	return nil
}

// Add registers a new subscription for subscriberID, dispatching the
// underlying Add command to the next round-robin producer. clientSubscriptionID
// is caller-provided and becomes the subscription's identity (spec §5); when
// empty, a fresh one is minted with uuid.NewString() for callers that don't
// care to name their own.
func (b *Bus) Add(subscriberID, clientSubscriptionID string, filter Filter) (string, <-chan Event, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if clientSubscriptionID == "" {
		clientSubscriptionID = uuid.NewString()
	}

	producer := b.nextProducer()
	if producer == nil {
		return "", nil, errNoProducers
	}
	if err := producer.AddSubscription(clientSubscriptionID, filter); err != nil {
		return "", nil, err
	}

	sub := &subscription{
		subscriberID:         subscriberID,
		clientSubscriptionID: clientSubscriptionID,
		filter:               filter,
		assignedProducer:     producer.ID(),
		events:                make(chan Event, 64),
	}
	key := subKey(subscriberID, clientSubscriptionID)
	b.subs[key] = sub
	b.bySubscriber[subscriberID] = append(b.bySubscriber[subscriberID], key)

	return clientSubscriptionID, sub.events, nil
}

// Remove issues a Remove command to the subscription's assigned producer and
// releases its bus state.
func (b *Bus) Remove(subscriberID, clientSubscriptionID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	key := subKey(subscriberID, clientSubscriptionID)
	sub, ok := b.subs[key]
	if !ok {
		return errUnknownSubscription
	}
	delete(b.subs, key)
	list := b.bySubscriber[subscriberID]
	for i, k := range list {
		if k == key {
			b.bySubscriber[subscriberID] = append(list[:i], list[i+1:]...)
			break
		}
	}
	close(sub.events)

	for _, p := range b.producers {
		if p != nil && p.ID() == sub.assignedProducer {
			return p.RemoveSubscription(clientSubscriptionID)
		}
	}
	return nil
}

// DisconnectSubscriber tears down every subscription belonging to
// subscriberID (spec §5: "subscriber disconnect issues Remove commands to
// the assigned producer and releases bus subscriptions").
func (b *Bus) DisconnectSubscriber(subscriberID string) {
	b.mu.Lock()
	keys := append([]string(nil), b.bySubscriber[subscriberID]...)
	b.mu.Unlock()

	for _, key := range keys {
		b.mu.Lock()
		sub, ok := b.subs[key]
		b.mu.Unlock()
		if ok {
			_ = b.Remove(sub.subscriberID, sub.clientSubscriptionID)
		}
	}
}

// Publish fans ev out to every subscription whose filter matches, in
// producer-emitted order per subscriber (spec §5: "within one subscriber,
// the producer-emitted order is preserved"). Delivery across subscribers is
// unordered and non-blocking: a full subscriber channel drops the event
// rather than stalling the producer.
func (b *Bus) Publish(ev Event) {
	b.mu.Lock()
	targets := make([]*subscription, 0, len(b.subs))
	for _, sub := range b.subs {
		if sub.assignedProducer == ev.ProducerID && (sub.filter == nil || sub.filter(ev.Payload)) {
			targets = append(targets, sub)
		}
	}
	b.mu.Unlock()

	for _, sub := range targets {
		select {
		case sub.events <- ev:
		default:
		}
	}
}
