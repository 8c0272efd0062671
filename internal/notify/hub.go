package notify

import (
	"sync"

	"github.com/kozaktomas/pinalbum/internal/constants"
)

// Hub fans album events out to subscribers. Each subscriber has its own unbounded
// queue drained by a single goroutine, so a slow handler never blocks Publish and
// never sees events out of order.
type Hub struct {
	mu   sync.RWMutex
	subs map[string]map[*Subscription]struct{}
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[string]map[*Subscription]struct{})}
}

// Subscribe registers handler for events of albumID. The handler runs on the
// subscription's own goroutine.
func (h *Hub) Subscribe(albumID string, handler func(Event)) *Subscription {
	s := &Subscription{
		hub:     h,
		albumID: albumID,
		handler: handler,
		wake:    make(chan struct{}, 1),
		done:    make(chan struct{}),
	}

	h.mu.Lock()
	if h.subs[albumID] == nil {
		h.subs[albumID] = make(map[*Subscription]struct{})
	}
	h.subs[albumID][s] = struct{}{}
	h.mu.Unlock()

	go s.run()
	return s
}

// Publish queues e for every subscriber of e.AlbumID.
func (h *Hub) Publish(e Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for s := range h.subs[e.AlbumID] {
		s.enqueue(e)
	}
}

// Subscribers returns the number of active subscriptions for an album.
func (h *Hub) Subscribers(albumID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[albumID])
}

// Close unsubscribes everyone.
func (h *Hub) Close() {
	h.mu.Lock()
	all := h.subs
	h.subs = make(map[string]map[*Subscription]struct{})
	h.mu.Unlock()

	for _, set := range all {
		for s := range set {
			s.stop()
		}
	}
}

func (h *Hub) remove(s *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if set, ok := h.subs[s.albumID]; ok {
		delete(set, s)
		if len(set) == 0 {
			delete(h.subs, s.albumID)
		}
	}
}

// Subscription is one registered handler.
type Subscription struct {
	hub     *Hub
	albumID string
	handler func(Event)

	mu     sync.Mutex
	queue  []Event
	closed bool

	wake chan struct{}
	done chan struct{}
}

// Unsubscribe stops delivery. Events still queued are dropped; a handler call in
// progress finishes. Safe to call from inside the handler and more than once.
func (s *Subscription) Unsubscribe() {
	s.hub.remove(s)
	s.stop()
}

// Done is closed once the delivery goroutine has exited.
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

func (s *Subscription) stop() {
	s.mu.Lock()
	s.closed = true
	s.queue = nil
	s.mu.Unlock()
	s.signal()
}

func (s *Subscription) signal() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *Subscription) enqueue(e Event) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.queue = append(s.queue, e)
	s.mu.Unlock()
	s.signal()
}

func (s *Subscription) run() {
	defer close(s.done)
	for {
		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			return
		}
		if len(s.queue) == 0 {
			s.mu.Unlock()
			<-s.wake
			continue
		}
		e := s.queue[0]
		s.queue = s.queue[1:]
		s.mu.Unlock()

		s.handler(e)
	}
}

// Listen adapts a subscription to a channel for select loops such as SSE streams.
// The channel is closed after cancel is called; cancel must be called to release
// the subscription.
func (h *Hub) Listen(albumID string) (<-chan Event, func()) {
	ch := make(chan Event, constants.EventChannelBuffer)
	quit := make(chan struct{})
	var once sync.Once

	sub := h.Subscribe(albumID, func(e Event) {
		select {
		case ch <- e:
		case <-quit:
		}
	})

	go func() {
		<-sub.Done()
		close(ch)
	}()

	cancel := func() {
		once.Do(func() {
			close(quit)
			sub.Unsubscribe()
		})
	}
	return ch, cancel
}
