package metadata

import (
	"context"
	"identityradio/backend/internal/config"
	"log"
	"time"
)

// Refresher polls a Source on a fixed interval. There is no backoff: a
// failed fetch is logged and the previous track stays current.
type Refresher struct {
	tracker
	Source   Source
	Interval time.Duration
}

func NewRefresher(src Source, covers CoverLookup, notify Notifier) *Refresher {
	return &Refresher{
		tracker:  tracker{Covers: covers, Notify: notify, Debounce: config.CoverDebounce},
		Source:   src,
		Interval: config.RefreshInterval,
	}
}

// Run fetches immediately and then on every tick until ctx is cancelled.
func (r *Refresher) Run(ctx context.Context) {
	interval := r.Interval
	if interval <= 0 {
		interval = config.RefreshInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	defer r.stopCover()

	r.Refresh(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Refresh(ctx)
		}
	}
}

// Refresh performs a single fetch. It reports whether the track changed.
func (r *Refresher) Refresh(ctx context.Context) bool {
	track, err := r.Source.Fetch(ctx)
	if err != nil {
		if ctx.Err() == nil {
			log.Printf("ERROR: Failed to refresh metadata: %v", err)
		}
		return false
	}
	return r.accept(ctx, track)
}
