// Package changefeed delivers row-level change notifications for the radio
// tables. Publishers announce that a row changed; subscribers refetch it.
package changefeed

import (
	"context"
	"encoding/json"
	"fmt"
	"identityradio/backend/internal/models"
	"log"
	"sync"
)

const subscriptionBuffer = 64

// Subscription is a live change stream for one table.
type Subscription interface {
	// Events is closed once the subscription is closed or its transport dies.
	Events() <-chan models.ChangeEvent
	Close() error
}

// Feed publishes and subscribes to change events.
type Feed interface {
	Publish(ctx context.Context, ev models.ChangeEvent) error
	Subscribe(ctx context.Context, table string) (Subscription, error)
}

// Subscriber is the read side of a Feed. Clients that can only listen
// (e.g. the websocket gateway) implement just this.
type Subscriber interface {
	Subscribe(ctx context.Context, table string) (Subscription, error)
}

// New builds the feed selected by kind.
func New(kind string, deps Deps) (Feed, error) {
	switch kind {
	case "memory":
		return NewMemoryFeed(), nil
	case "redis":
		if deps.Redis == nil {
			return nil, fmt.Errorf("changefeed: redis feed requires a redis client")
		}
		return NewRedisFeed(deps.Redis), nil
	case "postgres":
		if deps.DB == nil || deps.DSN == "" {
			return nil, fmt.Errorf("changefeed: postgres feed requires a database and DSN")
		}
		return NewPostgresFeed(deps.DB, deps.DSN), nil
	default:
		return nil, fmt.Errorf("changefeed: unknown feed %q", kind)
	}
}

func channelName(table string) string {
	return "changes_" + table
}

func encode(ev models.ChangeEvent) (string, error) {
	b, err := json.Marshal(ev)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func decode(payload string) (models.ChangeEvent, error) {
	var ev models.ChangeEvent
	err := json.Unmarshal([]byte(payload), &ev)
	return ev, err
}

// subscription is the common pump shared by the transports: it owns the
// events channel and makes Close idempotent.
type subscription struct {
	events  chan models.ChangeEvent
	done    chan struct{}
	once    sync.Once
	closeFn func() error
	err     error
}

func newSubscription(closeFn func() error) *subscription {
	return &subscription{
		events:  make(chan models.ChangeEvent, subscriptionBuffer),
		done:    make(chan struct{}),
		closeFn: closeFn,
	}
}

func (s *subscription) Events() <-chan models.ChangeEvent { return s.events }

func (s *subscription) Close() error {
	s.once.Do(func() {
		close(s.done)
		if s.closeFn != nil {
			s.err = s.closeFn()
		}
	})
	return s.err
}

// deliver передає подію підписнику, якщо підписку ще не закрито.
func (s *subscription) deliver(ev models.ChangeEvent) bool {
	select {
	case s.events <- ev:
		return true
	case <-s.done:
		return false
	}
}

// pump decodes raw payloads until src is closed or the subscription is closed.
func (s *subscription) pump(table string, src <-chan string) {
	defer close(s.events)
	for {
		select {
		case <-s.done:
			return
		case payload, ok := <-src:
			if !ok {
				return
			}
			ev, err := decode(payload)
			if err != nil {
				log.Printf("ERROR: changefeed %s: bad payload: %v", table, err)
				continue
			}
			if !s.deliver(ev) {
				return
			}
		}
	}
}
