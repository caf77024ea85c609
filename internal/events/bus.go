package events

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Event is one published notification.
type Event struct {
	Timestamp time.Time `json:"timestamp"`
	Data      EventData `json:"data"`
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	UserID    string    `json:"user_id,omitempty"`
	Module    string    `json:"module"`
}

// Filter selects which events a subscription receives. Empty fields match all.
type Filter struct {
	UserID string
	Types  []EventType
}

func (f Filter) matches(e Event) bool {
	if f.UserID != "" && f.UserID != e.UserID {
		return false
	}
	if len(f.Types) == 0 {
		return true
	}
	for _, t := range f.Types {
		if t == e.Type {
			return true
		}
	}
	return false
}

// Subscription is a live registration on the bus. C is closed after Cancel.
type Subscription struct {
	C      <-chan Event
	ch     chan Event
	filter Filter
	bus    *Bus
	once   sync.Once
}

// Cancel unregisters the subscription and closes C. Safe to call repeatedly.
func (s *Subscription) Cancel() {
	s.once.Do(func() {
		s.bus.remove(s)
	})
}

// Bus fans events out to subscribers. Publishing never blocks: a subscriber
// whose buffer is full misses the event.
type Bus struct {
	mu     sync.RWMutex
	subs   map[*Subscription]struct{}
	closed bool
	log    zerolog.Logger
}

// NewBus creates an empty bus.
func NewBus(log zerolog.Logger) *Bus {
	return &Bus{
		subs: make(map[*Subscription]struct{}),
		log:  log.With().Str("component", "event_bus").Logger(),
	}
}

// Subscribe registers a subscriber with the given buffer size (minimum 1).
func (b *Bus) Subscribe(f Filter, buffer int) *Subscription {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan Event, buffer)
	s := &Subscription{C: ch, ch: ch, filter: f, bus: b}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(ch)
		return s
	}
	b.subs[s] = struct{}{}

	b.log.Debug().
		Str("user_id", f.UserID).
		Int("total_subscribers", len(b.subs)).
		Msg("New subscriber added")
	return s
}

func (b *Bus) remove(s *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.subs[s]; !ok {
		return
	}
	delete(b.subs, s)
	close(s.ch)

	b.log.Debug().
		Str("user_id", s.filter.UserID).
		Int("total_subscribers", len(b.subs)).
		Msg("Subscriber removed")
}

// Publish delivers e to every matching subscriber. Missing ID and Timestamp
// are filled in.
func (b *Bus) Publish(e Event) Event {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	for s := range b.subs {
		if !s.filter.matches(e) {
			continue
		}
		select {
		case s.ch <- e:
		default:
			b.log.Debug().
				Str("user_id", s.filter.UserID).
				Str("event_type", string(e.Type)).
				Msg("Subscriber buffer full, event dropped")
		}
	}
	return e
}

// SubscriberCount returns the number of live subscriptions.
func (b *Bus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Close cancels every subscription. Later subscriptions are closed immediately.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for s := range b.subs {
		close(s.ch)
		delete(b.subs, s)
	}
	b.closed = true
}
