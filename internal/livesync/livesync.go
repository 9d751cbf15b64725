// Package livesync keeps an in-memory mirror of one table up to date: one
// full fetch, then incremental updates driven by the change feed.
package livesync

import (
	"context"
	"fmt"
	"identityradio/backend/internal/changefeed"
	"identityradio/backend/internal/config"
	"identityradio/backend/internal/models"
	"log"
	"slices"
	"sync"
	"time"
)

// Source loads rows of one table. FetchOne reports found=false when the row
// no longer exists or is no longer visible.
type Source[T any] interface {
	FetchAll(ctx context.Context) ([]T, error)
	FetchOne(ctx context.Context, id string) (item T, found bool, err error)
}

// Options describe the table and its ordering.
type Options[T any] struct {
	Table string
	Key   func(T) string
	Less  func(a, b T) bool
	// Refetch reloads the whole set on every event instead of one row.
	Refetch bool
	// ReconnectDelay is the pause before resubscribing after the feed
	// closes. Zero means config.ReconnectDelay.
	ReconnectDelay time.Duration
}

// Synchronizer mirrors one table. Its list is owned exclusively by it;
// readers get copies.
type Synchronizer[T any] struct {
	source Source[T]
	feed   changefeed.Subscriber
	opts   Options[T]

	mu        sync.RWMutex
	items     []T
	listeners []func([]T)

	subMu     sync.Mutex
	sub       changefeed.Subscription
	cancel    context.CancelFunc
	done      chan struct{}
	closeOnce sync.Once
}

func New[T any](source Source[T], feed changefeed.Subscriber, opts Options[T]) *Synchronizer[T] {
	if opts.ReconnectDelay <= 0 {
		opts.ReconnectDelay = config.ReconnectDelay
	}
	return &Synchronizer[T]{source: source, feed: feed, opts: opts}
}

// OnChange registers fn to receive a copy of the list after every change.
func (s *Synchronizer[T]) OnChange(fn func([]T)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// Start subscribes and performs the initial fetch. A failed fetch leaves the
// list empty; a failed subscription is returned.
func (s *Synchronizer[T]) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)

	sub, err := s.feed.Subscribe(ctx, s.opts.Table)
	if err != nil {
		cancel()
		return fmt.Errorf("subscribe to %s: %w", s.opts.Table, err)
	}
	s.subMu.Lock()
	s.sub = sub
	s.subMu.Unlock()
	s.cancel = cancel
	s.done = make(chan struct{})

	items, err := s.source.FetchAll(ctx)
	if err != nil {
		log.Printf("ERROR: Initial fetch of %s failed: %v", s.opts.Table, err)
		items = nil
	}
	s.replace(items)

	go s.loop(ctx, sub)
	return nil
}

// loop applies events until ctx is cancelled. When the feed closes under it,
// it resubscribes after ReconnectDelay and reloads the whole list to cover
// the events missed in between.
func (s *Synchronizer[T]) loop(ctx context.Context, sub changefeed.Subscription) {
	defer close(s.done)
	for {
		for ev := range sub.Events() {
			s.apply(ctx, ev)
		}
		if ctx.Err() != nil {
			return
		}
		log.Printf("WARN: Change feed for %s closed, resubscribing in %s", s.opts.Table, s.opts.ReconnectDelay)
		_ = sub.Close()

		sub = s.resubscribe(ctx)
		if sub == nil {
			return
		}
		items, err := s.source.FetchAll(ctx)
		if err != nil {
			log.Printf("ERROR: Refetch of %s after reconnect failed: %v", s.opts.Table, err)
			continue
		}
		s.replace(items)
	}
}

// resubscribe retries until it gets a subscription or ctx is done (nil).
func (s *Synchronizer[T]) resubscribe(ctx context.Context) changefeed.Subscription {
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(s.opts.ReconnectDelay):
		}

		sub, err := s.feed.Subscribe(ctx, s.opts.Table)
		if err != nil {
			log.Printf("ERROR: Resubscribe to %s failed: %v", s.opts.Table, err)
			continue
		}

		s.subMu.Lock()
		if ctx.Err() != nil {
			s.subMu.Unlock()
			_ = sub.Close()
			return nil
		}
		s.sub = sub
		s.subMu.Unlock()
		return sub
	}
}

func (s *Synchronizer[T]) apply(ctx context.Context, ev models.ChangeEvent) {
	if s.opts.Refetch {
		items, err := s.source.FetchAll(ctx)
		if err != nil {
			log.Printf("ERROR: Refetch of %s after %s failed: %v", s.opts.Table, ev.Type, err)
			return
		}
		s.replace(items)
		return
	}

	switch ev.Type {
	case models.ChangeInsert, models.ChangeUpdate:
		item, found, err := s.source.FetchOne(ctx, ev.ID)
		if err != nil {
			log.Printf("ERROR: Fetch of %s %s after %s failed: %v", s.opts.Table, ev.ID, ev.Type, err)
			return
		}
		if !found {
			s.remove(ev.ID)
			return
		}
		s.upsert(item)
	case models.ChangeDelete:
		s.remove(ev.ID)
	default:
		log.Printf("WARN: Unknown change type %q on %s", ev.Type, s.opts.Table)
	}
}

func (s *Synchronizer[T]) replace(items []T) {
	sorted := slices.Clone(items)
	if s.opts.Less != nil {
		slices.SortStableFunc(sorted, s.compare)
	}

	s.mu.Lock()
	s.items = sorted
	s.mu.Unlock()
	s.notify()
}

func (s *Synchronizer[T]) compare(a, b T) int {
	switch {
	case s.opts.Less(a, b):
		return -1
	case s.opts.Less(b, a):
		return 1
	default:
		return 0
	}
}

// upsert places item by sort order, replacing an existing row with the same key.
func (s *Synchronizer[T]) upsert(item T) {
	key := s.opts.Key(item)

	s.mu.Lock()
	s.items = slices.DeleteFunc(s.items, func(x T) bool { return s.opts.Key(x) == key })
	pos := len(s.items)
	if s.opts.Less != nil {
		pos = slices.IndexFunc(s.items, func(x T) bool { return s.opts.Less(item, x) })
		if pos < 0 {
			pos = len(s.items)
		}
	}
	s.items = slices.Insert(s.items, pos, item)
	s.mu.Unlock()
	s.notify()
}

func (s *Synchronizer[T]) remove(id string) {
	s.mu.Lock()
	before := len(s.items)
	s.items = slices.DeleteFunc(s.items, func(x T) bool { return s.opts.Key(x) == id })
	changed := len(s.items) != before
	s.mu.Unlock()
	if changed {
		s.notify()
	}
}

func (s *Synchronizer[T]) notify() {
	s.mu.RLock()
	listeners := slices.Clone(s.listeners)
	s.mu.RUnlock()

	for _, fn := range listeners {
		fn(s.Items())
	}
}

// Items returns a copy of the current list.
func (s *Synchronizer[T]) Items() []T {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.items)
}

// Close releases the subscription and waits for the update loop to exit.
func (s *Synchronizer[T]) Close() error {
	var err error
	s.closeOnce.Do(func() {
		if s.cancel == nil {
			return
		}
		s.cancel()
		s.subMu.Lock()
		sub := s.sub
		s.subMu.Unlock()
		err = sub.Close()
		<-s.done
	})
	return err
}
