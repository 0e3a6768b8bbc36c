package eventbus

import (
	"sync"
	"testing"
)

type fakeProducer struct {
	id string

	mu      sync.Mutex
	added   []string
	removed []string
}

func (p *fakeProducer) ID() string { return p.id }

func (p *fakeProducer) AddSubscription(clientSubscriptionID string, filter Filter) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.added = append(p.added, clientSubscriptionID)
	return nil
}

func (p *fakeProducer) RemoveSubscription(clientSubscriptionID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.removed = append(p.removed, clientSubscriptionID)
	return nil
}

func TestRoundRobinDispatch(t *testing.T) {
	bus := New()
	p1 := &fakeProducer{id: "p1"}
	p2 := &fakeProducer{id: "p2"}
	bus.AddProducer(p1)
	bus.AddProducer(p2)

	for i := 0; i < 4; i++ {
		if _, _, err := bus.Add("sub", "", nil); err != nil {
			t.Fatalf("add %d: %v", i, err)
		}
	}
	if len(p1.added) != 2 || len(p2.added) != 2 {
		t.Fatalf("round robin skew: p1=%d p2=%d", len(p1.added), len(p2.added))
	}
}

func TestTombstonePreservesIndices(t *testing.T) {
	bus := New()
	p1 := &fakeProducer{id: "p1"}
	p2 := &fakeProducer{id: "p2"}
	p3 := &fakeProducer{id: "p3"}
	slot1 := bus.AddProducer(p1)
	bus.AddProducer(p2)
	bus.AddProducer(p3)

	bus.RemoveProducer(slot1)

	// Dispatch must skip the tombstoned slot but keep cycling the rest.
	for i := 0; i < 4; i++ {
		if _, _, err := bus.Add("sub", "", nil); err != nil {
			t.Fatalf("add %d: %v", i, err)
		}
	}
	if len(p1.added) != 0 {
		t.Fatalf("tombstoned producer got %d subscriptions", len(p1.added))
	}
	if len(p2.added) != 2 || len(p3.added) != 2 {
		t.Fatalf("live producers skewed: p2=%d p3=%d", len(p2.added), len(p3.added))
	}
}

func TestProducerDisconnectClosesAssignedSubscribers(t *testing.T) {
	bus := New()
	p1 := &fakeProducer{id: "p1"}
	slot := bus.AddProducer(p1)

	_, events, err := bus.Add("sub", "client-1", nil)
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	bus.RemoveProducer(slot)

	if _, open := <-events; open {
		t.Fatalf("subscription channel must be closed on producer disconnect")
	}
}

func TestSubscriberDisconnectIssuesRemoves(t *testing.T) {
	bus := New()
	p1 := &fakeProducer{id: "p1"}
	bus.AddProducer(p1)

	for _, id := range []string{"a", "b"} {
		if _, _, err := bus.Add("sub", id, nil); err != nil {
			t.Fatalf("add %s: %v", id, err)
		}
	}
	bus.DisconnectSubscriber("sub")
	if len(p1.removed) != 2 {
		t.Fatalf("producer saw %d removes, want 2", len(p1.removed))
	}
}

func TestPublishFiltersAndPreservesOrder(t *testing.T) {
	bus := New()
	p1 := &fakeProducer{id: "p1"}
	bus.AddProducer(p1)

	onlyEven := func(payload any) bool { return payload.(int)%2 == 0 }
	_, events, err := bus.Add("sub", "evens", onlyEven)
	if err != nil {
		t.Fatalf("add: %v", err)
	}

	for i := 0; i < 6; i++ {
		bus.Publish(Event{ProducerID: "p1", Payload: i})
	}

	want := []int{0, 2, 4}
	for _, expected := range want {
		got := <-events
		if got.Payload.(int) != expected {
			t.Fatalf("got %v, want %d (order must match producer emission)", got.Payload, expected)
		}
	}
	select {
	case ev := <-events:
		t.Fatalf("unexpected extra event: %v", ev.Payload)
	default:
	}
}

func TestPublishIgnoresOtherProducers(t *testing.T) {
	bus := New()
	p1 := &fakeProducer{id: "p1"}
	bus.AddProducer(p1)
	_, events, err := bus.Add("sub", "c1", nil)
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	bus.Publish(Event{ProducerID: "someone-else", Payload: 1})
	select {
	case ev := <-events:
		t.Fatalf("event from unassigned producer delivered: %v", ev.Payload)
	default:
	}
}
