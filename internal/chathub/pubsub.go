package chathub

import (
	"context"
	"identityradio/backend/internal/changefeed"
	"log"
)

// subscribeTable opens the feed subscription for one table and forwards its
// events into the hub loop.
func (m *ManagerService) subscribeTable(ctx context.Context, table string) (changefeed.Subscription, error) {
	sub, err := m.Feed.Subscribe(ctx, table)
	if err != nil {
		return nil, err
	}

	go func() {
		for ev := range sub.Events() {
			select {
			case m.eventsCh <- ev:
			case <-ctx.Done():
				return
			}
		}
		log.Printf("INFO: Subscription to %s ended", table)
	}()
	return sub, nil
}
