package logic

import (
	"sync"
	"time"

	"github.com/pccr10001/callscreen/internal/callerid"
	"github.com/pccr10001/callscreen/internal/model"
	"github.com/pccr10001/callscreen/internal/screen"
)

type EventType string

const (
	EventCallerID     EventType = "callerid"
	EventInterception EventType = "interception"
)

// Event is what subscribers of the bus receive.
type Event struct {
	Type         EventType            `json:"type"`
	Time         time.Time            `json:"time"`
	Event        *callerid.Event      `json:"event,omitempty"`
	Call         *model.Call          `json:"call,omitempty"`
	Interception *screen.Interception `json:"interception,omitempty"`
}

const subscriberBuffer = 32

// EventBus fans events out to subscribers. A subscriber that falls behind
// loses events rather than stalling the poll loop.
type EventBus struct {
	mu     sync.RWMutex
	subs   map[chan Event]struct{}
	closed bool
}

func NewEventBus() *EventBus {
	return &EventBus{subs: make(map[chan Event]struct{})}
}

// Subscribe returns a channel of events and a function that releases it.
func (b *EventBus) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, subscriberBuffer)

	b.mu.Lock()
	if b.closed {
		close(ch)
		b.mu.Unlock()
		return ch, func() {}
	}
	b.subs[ch] = struct{}{}
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if _, ok := b.subs[ch]; ok {
				delete(b.subs, ch)
				close(ch)
			}
		})
	}
}

func (b *EventBus) Publish(ev Event) {
	if ev.Time.IsZero() {
		ev.Time = time.Now()
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

func (b *EventBus) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Close ends every subscription.
func (b *EventBus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for ch := range b.subs {
		close(ch)
		delete(b.subs, ch)
	}
}
