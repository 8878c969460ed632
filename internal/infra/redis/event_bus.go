package redis

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/redis/go-redis/v9"

	"lms-progress-service/internal/domain"
)

const subscriberBuffer = 16

// EventBus publishes progress events on a per-user Redis channel so every
// instance can push them to its connected clients.
type EventBus struct {
	client *redis.Client
	log    *slog.Logger
}

func NewEventBus(client *redis.Client, log *slog.Logger) *EventBus {
	if log == nil {
		log = slog.Default()
	}
	return &EventBus{client: client, log: log}
}

func (b *EventBus) Publish(ctx context.Context, ev domain.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return b.client.Publish(ctx, channel(ev.UserID), data).Err()
}

func (b *EventBus) Subscribe(ctx context.Context, userID string) (<-chan domain.Event, func(), error) {
	pubsub := b.client.Subscribe(ctx, channel(userID))
	// wait for the subscription to be confirmed so no publish is missed
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, nil, err
	}

	out := make(chan domain.Event, subscriberBuffer)
	done := make(chan struct{})
	go func() {
		defer close(out)
		msgs := pubsub.Channel()
		for {
			select {
			case <-done:
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var ev domain.Event
				if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
					b.log.Warn("drop malformed event", "channel", msg.Channel, "error", err)
					continue
				}
				select {
				case out <- ev:
				default:
					select {
					case <-out:
					default:
					}
					out <- ev
				}
			}
		}
	}()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			close(done)
			_ = pubsub.Close()
		})
	}
	return out, cancel, nil
}

func channel(userID string) string {
	return "lms:events:" + userID
}
