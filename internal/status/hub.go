package status

import (
	"sync"
	"time"
)

const (
	defaultBacklogLimit = 256
	defaultBacklogTTL   = 5 * time.Minute
)

// Hub fans published events out to subscribers. Each subscriber owns an
// unbounded FIFO, so Publish never blocks and never drops an event for a
// connected subscriber. Events for a request ID with no subscriber filtered on
// it are held in a bounded backlog and replayed to the first such subscriber.
type Hub struct {
	mu      sync.Mutex
	subs    map[uint64]*Subscription
	next    uint64
	now     func() time.Time
	backlog map[string]*pending

	BacklogLimit int
	BacklogTTL   time.Duration
}

type pending struct {
	events  []Event
	touched time.Time
}

// NewHub returns an empty hub.
func NewHub() *Hub {
	return &Hub{
		subs:         map[uint64]*Subscription{},
		now:          time.Now,
		backlog:      map[string]*pending{},
		BacklogLimit: defaultBacklogLimit,
		BacklogTTL:   defaultBacklogTTL,
	}
}

// Publish timestamps ev if needed and enqueues it for every matching
// subscriber, or parks it in the request's backlog when nobody filtered on
// that request ID is listening yet.
func (h *Hub) Publish(ev Event) {
	now := h.now()
	if ev.Timestamp.IsZero() {
		ev.Timestamp = now.UTC()
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	claimed := false
	for _, s := range h.subs {
		if s.filter != "" && s.filter != ev.RequestID {
			continue
		}
		if s.filter != "" {
			claimed = true
		}
		s.push(ev)
	}
	if !claimed && ev.RequestID != "" {
		h.park(ev, now)
	}
}

func (h *Hub) park(ev Event, now time.Time) {
	h.expireLocked(now)
	p, ok := h.backlog[ev.RequestID]
	if !ok {
		p = &pending{}
		h.backlog[ev.RequestID] = p
	}
	limit := h.BacklogLimit
	if limit <= 0 {
		limit = defaultBacklogLimit
	}
	if len(p.events) >= limit {
		p.events = p.events[1:]
	}
	p.events = append(p.events, ev)
	p.touched = now
}

func (h *Hub) expireLocked(now time.Time) {
	ttl := h.BacklogTTL
	if ttl <= 0 {
		ttl = defaultBacklogTTL
	}
	for id, p := range h.backlog {
		if now.Sub(p.touched) > ttl {
			delete(h.backlog, id)
		}
	}
}

// Subscribe registers a listener. An empty requestID receives every event
// published from now on; a request ID also receives that request's backlog.
func (h *Hub) Subscribe(requestID string) *Subscription {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.next++
	s := &Subscription{
		hub:    h,
		id:     h.next,
		filter: requestID,
		ready:  make(chan struct{}, 1),
	}
	h.subs[s.id] = s
	if requestID != "" {
		h.expireLocked(h.now())
		if p, ok := h.backlog[requestID]; ok {
			delete(h.backlog, requestID)
			for _, ev := range p.events {
				s.push(ev)
			}
		}
	}
	return s
}

// BacklogSize reports how many events are parked for requestID.
func (h *Hub) BacklogSize(requestID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	if p, ok := h.backlog[requestID]; ok {
		return len(p.events)
	}
	return 0
}

// SubscriberCount reports the number of active subscriptions.
func (h *Hub) SubscriberCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Sink returns a Sink that stamps events with requestID.
func (h *Hub) Sink(requestID string) Sink {
	return Func(func(step string, state State, details string) {
		h.Publish(Event{RequestID: requestID, Step: step, Status: state, Details: details})
	})
}

func (h *Hub) remove(id uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.subs, id)
}

// Subscription is one listener's queue.
type Subscription struct {
	hub    *Hub
	id     uint64
	filter string

	mu    sync.Mutex
	queue []Event
	ready chan struct{}
	once  sync.Once
}

// Ready is signalled when events may be waiting. Call Drain after receiving.
func (s *Subscription) Ready() <-chan struct{} {
	return s.ready
}

// Drain removes and returns all queued events in publish order.
func (s *Subscription) Drain() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.queue
	s.queue = nil
	return out
}

// Close unregisters the subscription. Queued events are discarded.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.hub.remove(s.id)
		s.mu.Lock()
		s.queue = nil
		s.mu.Unlock()
	})
}

func (s *Subscription) push(ev Event) {
	s.mu.Lock()
	s.queue = append(s.queue, ev)
	s.mu.Unlock()
	select {
	case s.ready <- struct{}{}:
	default:
	}
}
