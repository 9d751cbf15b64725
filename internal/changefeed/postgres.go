package changefeed

import (
	"context"
	"identityradio/backend/internal/models"
	"log"
	"time"

	"github.com/lib/pq"
	"gorm.io/gorm"
)

const (
	listenerMinReconnect = 10 * time.Second
	listenerMaxReconnect = time.Minute
)

// PostgresFeed publishes with pg_notify and listens through a dedicated
// lib/pq connection per subscription.
type PostgresFeed struct {
	DB  *gorm.DB
	DSN string
}

func NewPostgresFeed(db *gorm.DB, dsn string) *PostgresFeed {
	return &PostgresFeed{DB: db, DSN: dsn}
}

func (f *PostgresFeed) Publish(ctx context.Context, ev models.ChangeEvent) error {
	payload, err := encode(ev)
	if err != nil {
		return err
	}
	return f.DB.WithContext(ctx).Exec("SELECT pg_notify(?, ?)", channelName(ev.Table), payload).Error
}

func (f *PostgresFeed) Subscribe(ctx context.Context, table string) (Subscription, error) {
	listener := pq.NewListener(f.DSN, listenerMinReconnect, listenerMaxReconnect,
		func(event pq.ListenerEventType, err error) {
			if err != nil {
				log.Printf("WARN: changefeed postgres %s: listener event %d: %v", table, event, err)
			}
		})

	if err := listener.Listen(channelName(table)); err != nil {
		listener.Close()
		return nil, err
	}

	sub := newSubscription(listener.Close)
	raw := make(chan string)
	go func() {
		defer close(raw)
		for {
			select {
			case <-sub.done:
				return
			case n, ok := <-listener.Notify:
				if !ok {
					return
				}
				// nil приходить після перепідключення: пропущені події не відновити
				if n == nil {
					log.Printf("WARN: changefeed postgres %s: connection re-established, events may have been missed", table)
					continue
				}
				select {
				case raw <- n.Extra:
				case <-sub.done:
					return
				}
			}
		}
	}()
	go sub.pump(table, raw)

	return sub, nil
}
