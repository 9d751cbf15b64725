package metadata

import (
	"context"
	"identityradio/backend/internal/config"
	"identityradio/backend/internal/models"
	"log"
	"sync"
	"time"
)

// Placeholder is shown until the first track arrives.
var Placeholder = models.Track{Title: config.PlaceholderTitle, Artist: config.PlaceholderArtist}

func normalize(t models.Track) models.Track {
	if t.Title == "" {
		t.Title = config.UnknownTitle
	}
	if t.Artist == "" {
		t.Artist = config.UnknownArtist
	}
	return t
}

// tracker holds the last accepted track and the pending cover lookup.
// It is shared by both refresh strategies.
type tracker struct {
	Covers   CoverLookup
	Notify   Notifier
	OnCover  func(models.Track)
	Debounce time.Duration

	mu         sync.RWMutex
	current    models.Track
	started    bool
	coverTimer *time.Timer
}

// Current returns the track on air, or Placeholder before the first fetch.
func (s *tracker) Current() models.Track {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return Placeholder
	}
	return s.current
}

// accept stores t if it differs from the current track and fires the
// notifier. It reports whether the track changed.
func (s *tracker) accept(ctx context.Context, t models.Track) bool {
	t = normalize(t)

	s.mu.Lock()
	last := s.current
	if !s.started {
		last = Placeholder
	}
	if t.SameAs(last) {
		s.mu.Unlock()
		return false
	}
	s.current = t
	s.started = true
	if s.coverTimer != nil {
		s.coverTimer.Stop()
		s.coverTimer = nil
	}
	if t.CoverURL == "" && s.Covers != nil {
		s.scheduleCoverLocked(ctx, t)
	}
	s.mu.Unlock()

	log.Printf("INFO: Now playing: %s", t.StreamTitle())
	if s.Notify != nil {
		s.Notify.NowPlaying(t)
	}
	return true
}

func (s *tracker) scheduleCoverLocked(ctx context.Context, t models.Track) {
	delay := s.Debounce
	if delay <= 0 {
		delay = config.CoverDebounce
	}
	s.coverTimer = time.AfterFunc(delay, func() {
		cover, err := s.Covers.Lookup(ctx, t.Artist, t.Title)
		if err != nil {
			if ctx.Err() == nil {
				log.Printf("WARN: Cover lookup failed for %q: %v", t.StreamTitle(), err)
			}
			return
		}
		if cover == "" {
			return
		}

		s.mu.Lock()
		// Трек змінився, поки шукали обкладинку
		if !s.current.SameAs(t) {
			s.mu.Unlock()
			return
		}
		s.current.CoverURL = cover
		updated := s.current
		s.mu.Unlock()

		if s.OnCover != nil {
			s.OnCover(updated)
		}
	})
}

func (s *tracker) stopCover() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.coverTimer != nil {
		s.coverTimer.Stop()
		s.coverTimer = nil
	}
}
