package notify

import (
	"sync"
	"testing"
	"time"

	"github.com/kozaktomas/pinalbum/internal/album"
)

// collector records events delivered to a handler.
type collector struct {
	mu     sync.Mutex
	events []Event
	got    chan struct{}
}

func newCollector() *collector {
	return &collector{got: make(chan struct{}, 1000)}
}

func (c *collector) handle(e Event) {
	c.mu.Lock()
	c.events = append(c.events, e)
	c.mu.Unlock()
	c.got <- struct{}{}
}

func (c *collector) wait(t *testing.T, n int) []Event {
	t.Helper()
	for i := 0; i < n; i++ {
		select {
		case <-c.got:
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for event %d of %d", i+1, n)
		}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Event(nil), c.events...)
}

func TestHub_DeliversInPublishOrder(t *testing.T) {
	h := NewHub()
	defer h.Close()

	c := newCollector()
	h.Subscribe("a1", c.handle)

	for i := 0; i < 200; i++ {
		h.Publish(ItemsReplaced("a1", i+1, int64(i)))
	}

	events := c.wait(t, 200)
	for i, e := range events {
		if e.Generation != int64(i) {
			t.Fatalf("expected event %d to have generation %d, got %d", i, i, e.Generation)
		}
	}
}

func TestHub_SlowHandlerDoesNotBlockPublish(t *testing.T) {
	h := NewHub()
	defer h.Close()

	release := make(chan struct{})
	c := newCollector()
	h.Subscribe("a1", func(e Event) {
		<-release
		c.handle(e)
	})

	done := make(chan struct{})
	go func() {
		for i := 0; i < 500; i++ {
			h.Publish(SyncStateChanged("a1", album.StateFetchingPayloads, ""))
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Publish blocked on a slow subscriber")
	}

	close(release)
	if events := c.wait(t, 500); len(events) != 500 {
		t.Errorf("expected 500 events, got %d", len(events))
	}
}

func TestHub_MultipleSubscribersAndAlbumIsolation(t *testing.T) {
	h := NewHub()
	defer h.Close()

	first, second, other := newCollector(), newCollector(), newCollector()
	h.Subscribe("a1", first.handle)
	h.Subscribe("a1", second.handle)
	h.Subscribe("a2", other.handle)

	if h.Subscribers("a1") != 2 {
		t.Errorf("expected 2 subscribers, got %d", h.Subscribers("a1"))
	}

	h.Publish(ItemsDeleted("a1", 2, 3))

	for _, c := range []*collector{first, second} {
		events := c.wait(t, 1)
		if events[0].Type != EventItemsDeleted || events[0].Count != 2 || events[0].Remaining != 3 {
			t.Errorf("unexpected event: %+v", events[0])
		}
	}

	select {
	case <-other.got:
		t.Error("expected no event for another album")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSubscription_Unsubscribe(t *testing.T) {
	h := NewHub()
	defer h.Close()

	c := newCollector()
	sub := h.Subscribe("a1", c.handle)
	h.Publish(LocationDeleted("a1"))
	c.wait(t, 1)

	sub.Unsubscribe()
	sub.Unsubscribe()

	select {
	case <-sub.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("delivery goroutine did not exit")
	}
	if h.Subscribers("a1") != 0 {
		t.Errorf("expected no subscribers, got %d", h.Subscribers("a1"))
	}

	h.Publish(LocationDeleted("a1"))
	select {
	case <-c.got:
		t.Error("expected no delivery after unsubscribe")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSubscription_UnsubscribeFromHandler(t *testing.T) {
	h := NewHub()
	defer h.Close()

	var sub *Subscription
	ready := make(chan struct{})
	sub = h.Subscribe("a1", func(e Event) {
		<-ready
		sub.Unsubscribe()
	})
	close(ready)

	h.Publish(LocationDeleted("a1"))
	select {
	case <-sub.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("unsubscribing from the handler deadlocked")
	}
}

func TestHub_Listen(t *testing.T) {
	h := NewHub()
	defer h.Close()

	ch, cancel := h.Listen("a1")
	item := album.Item{ID: "i1", AlbumID: "a1", SourceURI: "https://x/a.jpg", Generation: 3}
	h.Publish(ItemPayloadSet(item))

	select {
	case e := <-ch:
		if e.Type != EventItemPayloadSet || e.ItemID != "i1" || e.Generation != 3 {
			t.Errorf("unexpected event: %+v", e)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
	}

	cancel()
	cancel()

	select {
	case _, ok := <-ch:
		if ok {
			// drain one buffered event at most, then expect close
			if _, ok := <-ch; ok {
				t.Error("expected channel to be closed")
			}
		}
	case <-time.After(2 * time.Second):
		t.Fatal("channel not closed after cancel")
	}
}
