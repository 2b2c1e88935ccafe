package event

import (
	"sync"
	"testing"
)

func TestBusDeliversToSubscriber(t *testing.T) {
	bus := NewBus()

	var got Event
	bus.Subscribe("run.started", func(ev Event) {
		got = ev
	})

	stages := []string{"import-table", "filter-features"}
	bus.Publish(NewRunStartedEvent("a3f9c2", "/runs/a3f9c2", stages, "import-table"))

	if got == nil {
		t.Fatal("handler did not receive the event")
	}
	started, ok := got.(RunStartedEvent)
	if !ok {
		t.Fatalf("received %T, want RunStartedEvent", got)
	}
	if started.RunID != "a3f9c2" {
		t.Errorf("RunID = %q, want a3f9c2", started.RunID)
	}
	if started.FirstStage != "import-table" {
		t.Errorf("FirstStage = %q, want import-table", started.FirstStage)
	}
}

func TestBusSkipsOtherEventTypes(t *testing.T) {
	bus := NewBus()

	bus.Subscribe("stage.completed", func(ev Event) {
		t.Errorf("handler for stage.completed received %s", ev.EventType())
	})
	bus.Publish(newBaseEvent("stage.started"))
}

func TestBusDeliveryOrder(t *testing.T) {
	bus := NewBus()

	var order []string
	bus.SubscribeAll(func(ev Event) {
		order = append(order, "all")
	})
	bus.Subscribe("stage.started", func(ev Event) {
		order = append(order, "first")
	})
	bus.Subscribe("stage.started", func(ev Event) {
		order = append(order, "second")
	})

	bus.Publish(newBaseEvent("stage.started"))

	// Typed handlers run before wildcard handlers, each in the order
	// they subscribed.
	want := []string{"first", "second", "all"}
	if len(order) != len(want) {
		t.Fatalf("order = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("order = %v, want %v", order, want)
		}
	}
}

func TestBusSubscribeAll(t *testing.T) {
	bus := NewBus()

	var seen []string
	bus.SubscribeAll(func(ev Event) {
		seen = append(seen, ev.EventType())
	})

	for _, typ := range []string{"run.started", "stage.started", "run.completed"} {
		bus.Publish(newBaseEvent(typ))
	}

	if len(seen) != 3 {
		t.Fatalf("wildcard handler saw %d events, want 3", len(seen))
	}
	if seen[0] != "run.started" || seen[2] != "run.completed" {
		t.Errorf("seen = %v", seen)
	}
}

func TestBusUnsubscribe(t *testing.T) {
	bus := NewBus()

	fired := 0
	id := bus.Subscribe("stage.started", func(ev Event) {
		fired++
	})
	bus.Subscribe("stage.started", func(ev Event) {
		// Keeps the event type populated so removal is from a shared list.
	})

	if !bus.Unsubscribe(id) {
		t.Error("Unsubscribe should report the registered handler")
	}
	if bus.Unsubscribe(id) {
		t.Error("second Unsubscribe of the same id should report false")
	}

	bus.Publish(newBaseEvent("stage.started"))
	if fired != 0 {
		t.Errorf("removed handler fired %d times", fired)
	}
}

func TestBusSubscribers(t *testing.T) {
	bus := NewBus()

	if n := bus.Subscribers("stage.started"); n != 0 {
		t.Errorf("empty bus Subscribers = %d, want 0", n)
	}

	bus.Subscribe("stage.started", func(ev Event) {})
	bus.Subscribe("stage.completed", func(ev Event) {})
	bus.SubscribeAll(func(ev Event) {})

	if n := bus.Subscribers("stage.started"); n != 2 {
		t.Errorf("Subscribers(stage.started) = %d, want typed + wildcard = 2", n)
	}
	if n := bus.Subscribers("artifact.written"); n != 1 {
		t.Errorf("Subscribers(artifact.written) = %d, want wildcard only = 1", n)
	}
}

func TestBusHandlerPanicDoesNotStopDelivery(t *testing.T) {
	bus := NewBus()

	fired := 0
	bus.Subscribe("stage.started", func(ev Event) {
		fired++
		panic("bad handler")
	})
	bus.Subscribe("stage.started", func(ev Event) {
		fired++
	})

	bus.Publish(newBaseEvent("stage.started"))

	if fired != 2 {
		t.Errorf("fired = %d, want both handlers despite the panic", fired)
	}
}

func TestBusConcurrentPublish(t *testing.T) {
	bus := NewBus()

	var mu sync.Mutex
	fired := 0
	bus.Subscribe("stage.started", func(ev Event) {
		mu.Lock()
		fired++
		mu.Unlock()
	})

	var wg sync.WaitGroup
	for range 100 {
		wg.Go(func() {
			bus.Publish(newBaseEvent("stage.started"))
		})
	}
	wg.Wait()

	if fired != 100 {
		t.Errorf("fired = %d, want 100", fired)
	}
}

func TestBusConcurrentSubscribeUnsubscribe(t *testing.T) {
	bus := NewBus()

	var wg sync.WaitGroup
	for range 50 {
		wg.Go(func() {
			id := bus.Subscribe("stage.started", func(ev Event) {})
			if !bus.Unsubscribe(id) {
				t.Error("subscription vanished before Unsubscribe")
			}
		})
	}
	wg.Wait()

	if n := bus.Subscribers("stage.started"); n != 0 {
		t.Errorf("Subscribers = %d after paired add/remove, want 0", n)
	}
}

func TestBusSubscriptionIDsAreUnique(t *testing.T) {
	bus := NewBus()

	seen := make(map[Subscription]bool)
	for range 100 {
		id := bus.Subscribe("stage.started", func(ev Event) {})
		if seen[id] {
			t.Fatalf("duplicate subscription id %d", id)
		}
		seen[id] = true
	}
}
