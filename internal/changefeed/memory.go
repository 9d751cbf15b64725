package changefeed

import (
	"context"
	"identityradio/backend/internal/models"
	"log"
	"sync"
)

// MemoryFeed fans events out inside a single process.
type MemoryFeed struct {
	mu   sync.RWMutex
	subs map[string]map[*subscription]struct{}
}

func NewMemoryFeed() *MemoryFeed {
	return &MemoryFeed{subs: make(map[string]map[*subscription]struct{})}
}

func (f *MemoryFeed) Publish(ctx context.Context, ev models.ChangeEvent) error {
	f.mu.RLock()
	defer f.mu.RUnlock()

	for sub := range f.subs[ev.Table] {
		select {
		case sub.events <- ev:
		case <-sub.done:
		default:
			// Повільний підписник: подію відкидаємо, а не блокуємо видавця
			log.Printf("WARN: changefeed memory: subscriber on %s is full, dropping %s %s", ev.Table, ev.Type, ev.ID)
		}
	}
	return nil
}

func (f *MemoryFeed) Subscribe(ctx context.Context, table string) (Subscription, error) {
	var sub *subscription
	sub = newSubscription(func() error {
		f.mu.Lock()
		delete(f.subs[table], sub)
		f.mu.Unlock()
		close(sub.events)
		return nil
	})

	f.mu.Lock()
	if f.subs[table] == nil {
		f.subs[table] = make(map[*subscription]struct{})
	}
	f.subs[table][sub] = struct{}{}
	f.mu.Unlock()

	return sub, nil
}
