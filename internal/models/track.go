package models

// Track is the currently playing song. It is never persisted.
type Track struct {
	Title    string `json:"title"`
	Artist   string `json:"artist"`
	CoverURL string `json:"coverUrl,omitempty"`
}

// SameAs compares tracks by title and artist only; the cover is ignored.
func (t Track) SameAs(other Track) bool {
	return t.Title == other.Title && t.Artist == other.Artist
}

// StreamTitle renders the combined "Artist - Title" form used by stream events.
func (t Track) StreamTitle() string {
	return t.Artist + " - " + t.Title
}
