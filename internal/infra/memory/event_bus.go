package memory

import (
	"context"
	"sync"

	"lms-progress-service/internal/domain"
)

// subscriberBuffer is how many events a slow subscriber may lag behind before
// the oldest pending event is dropped.
const subscriberBuffer = 16

// EventBus fans progress events out to in-process subscribers, keyed by user.
type EventBus struct {
	mu          sync.Mutex
	subscribers map[string]map[chan domain.Event]struct{}
}

func NewEventBus() *EventBus {
	return &EventBus{subscribers: make(map[string]map[chan domain.Event]struct{})}
}

func (b *EventBus) Publish(_ context.Context, ev domain.Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subscribers[ev.UserID] {
		select {
		case ch <- ev:
		default:
			// drop the oldest so a slow reader never blocks publishers
			select {
			case <-ch:
			default:
			}
			ch <- ev
		}
	}
	return nil
}

func (b *EventBus) Subscribe(_ context.Context, userID string) (<-chan domain.Event, func(), error) {
	ch := make(chan domain.Event, subscriberBuffer)

	b.mu.Lock()
	subs, ok := b.subscribers[userID]
	if !ok {
		subs = make(map[chan domain.Event]struct{})
		b.subscribers[userID] = subs
	}
	subs[ch] = struct{}{}
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		subs := b.subscribers[userID]
		if _, ok := subs[ch]; !ok {
			return
		}
		delete(subs, ch)
		close(ch)
		if len(subs) == 0 {
			delete(b.subscribers, userID)
		}
	}
	return ch, cancel, nil
}
