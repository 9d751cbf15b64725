package changefeed

import (
	"context"
	"identityradio/backend/internal/models"

	"github.com/redis/go-redis/v9"
)

// RedisFeed uses one Redis Pub/Sub channel per table, so every server
// instance sees changes made through any other instance.
type RedisFeed struct {
	Redis *redis.Client
}

func NewRedisFeed(rdb *redis.Client) *RedisFeed {
	return &RedisFeed{Redis: rdb}
}

func (f *RedisFeed) Publish(ctx context.Context, ev models.ChangeEvent) error {
	payload, err := encode(ev)
	if err != nil {
		return err
	}
	return f.Redis.Publish(ctx, channelName(ev.Table), payload).Err()
}

func (f *RedisFeed) Subscribe(ctx context.Context, table string) (Subscription, error) {
	pubsub := f.Redis.Subscribe(ctx, channelName(table))

	// Чекаємо підтвердження підписки, інакше перші події можуть загубитися
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, err
	}

	sub := newSubscription(pubsub.Close)
	raw := make(chan string)
	go func() {
		defer close(raw)
		for msg := range pubsub.Channel() {
			select {
			case raw <- msg.Payload:
			case <-sub.done:
				return
			}
		}
	}()
	go sub.pump(table, raw)

	return sub, nil
}
