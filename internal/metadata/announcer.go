package metadata

import (
	"identityradio/backend/internal/models"
	"sync"
)

// Announcer fans accepted tracks out to registered notifiers and to
// streaming subscribers. It remembers the last track for late joiners.
type Announcer struct {
	mu        sync.RWMutex
	notifiers []Notifier
	subs      map[chan models.Track]struct{}
	last      *models.Track
}

func NewAnnouncer(notifiers ...Notifier) *Announcer {
	return &Announcer{
		notifiers: notifiers,
		subs:      make(map[chan models.Track]struct{}),
	}
}

func (a *Announcer) Add(n Notifier) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.notifiers = append(a.notifiers, n)
}

// NowPlaying implements Notifier.
func (a *Announcer) NowPlaying(t models.Track) {
	a.mu.Lock()
	a.last = &t
	notifiers := append([]Notifier(nil), a.notifiers...)
	for ch := range a.subs {
		// Повільному слухачу потрібен лише останній трек
		select {
		case <-ch:
		default:
		}
		ch <- t
	}
	a.mu.Unlock()

	for _, n := range notifiers {
		n.NowPlaying(t)
	}
}

// Last returns the most recent track, if any.
func (a *Announcer) Last() (models.Track, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.last == nil {
		return models.Track{}, false
	}
	return *a.last, true
}

// Subscribe returns a channel that always holds at most the latest track.
// The returned cancel func must be called to release it.
func (a *Announcer) Subscribe() (<-chan models.Track, func()) {
	ch := make(chan models.Track, 1)

	a.mu.Lock()
	a.subs[ch] = struct{}{}
	a.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			a.mu.Lock()
			delete(a.subs, ch)
			a.mu.Unlock()
		})
	}
}
