// Package metadata keeps track of what the station is playing. A Refresher
// polls a Source on a fixed interval; a StreamWatcher follows a server-push
// event stream. Both deduplicate on title and artist before notifying.
package metadata

import (
	"context"
	"identityradio/backend/internal/models"
	"log"
	"strings"
)

// Source returns the track currently on air.
type Source interface {
	Fetch(ctx context.Context) (models.Track, error)
}

// CoverLookup finds album art for a track. An empty URL means no result.
type CoverLookup interface {
	Lookup(ctx context.Context, artist, title string) (string, error)
}

// Notifier is told about every accepted track change.
type Notifier interface {
	NowPlaying(track models.Track)
}

// NotifierFunc adapts a plain function to Notifier.
type NotifierFunc func(models.Track)

func (f NotifierFunc) NowPlaying(t models.Track) { f(t) }

// FetchNowPlaying asks src for the current track and completes its cover
// through covers when the source did not provide one. Cover failures are
// logged and leave the cover empty.
func FetchNowPlaying(ctx context.Context, src Source, covers CoverLookup) (models.Track, error) {
	track, err := src.Fetch(ctx)
	if err != nil {
		return models.Track{}, err
	}
	if covers == nil || track.CoverURL != "" || (track.Title == "" && track.Artist == "") {
		return track, nil
	}

	cover, err := covers.Lookup(ctx, track.Artist, track.Title)
	if err != nil {
		log.Printf("WARN: Cover lookup failed for %q: %v", track.StreamTitle(), err)
		return track, nil
	}
	track.CoverURL = cover
	return track, nil
}

// ParseStreamTitle splits a combined "Artist - Title" string on the first
// " - ". Without the delimiter the whole string is the title.
func ParseStreamTitle(s string) models.Track {
	artist, title, found := strings.Cut(s, " - ")
	if !found {
		return normalize(models.Track{Title: strings.TrimSpace(s)})
	}
	return normalize(models.Track{
		Title:  strings.TrimSpace(title),
		Artist: strings.TrimSpace(artist),
	})
}
