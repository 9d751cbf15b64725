package metadata_test

import (
	"context"
	"errors"
	"fmt"
	"identityradio/backend/internal/config"
	"identityradio/backend/internal/metadata"
	"identityradio/backend/internal/models"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSource returns queued results in order and repeats the last one.
type fakeSource struct {
	mu      sync.Mutex
	results []result
}

type result struct {
	track models.Track
	err   error
}

func (f *fakeSource) push(title, artist string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.results = append(f.results, result{track: models.Track{Title: title, Artist: artist}})
}

func (f *fakeSource) fail(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.results = append(f.results, result{err: err})
}

func (f *fakeSource) Fetch(ctx context.Context) (models.Track, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.results) == 0 {
		return models.Track{}, errors.New("empty")
	}
	r := f.results[0]
	if len(f.results) > 1 {
		f.results = f.results[1:]
	}
	return r.track, r.err
}

type recorder struct {
	mu     sync.Mutex
	tracks []models.Track
}

func (r *recorder) NowPlaying(t models.Track) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tracks = append(r.tracks, t)
}

func (r *recorder) titles() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.tracks))
	for i, t := range r.tracks {
		out[i] = t.StreamTitle()
	}
	return out
}

type fakeCovers struct {
	calls   atomic.Int32
	release chan struct{}
	url     string
}

func (f *fakeCovers) Lookup(ctx context.Context, artist, title string) (string, error) {
	f.calls.Add(1)
	if f.release != nil {
		<-f.release
	}
	return f.url + "/" + artist + "/" + title, nil
}

func TestRefresher_DedupesOnTitleAndArtist(t *testing.T) {
	ctx := context.Background()
	src := &fakeSource{}
	rec := &recorder{}
	r := metadata.NewRefresher(src, nil, rec)

	assert.Equal(t, metadata.Placeholder, r.Current())

	src.push("X", "A")
	src.push("X", "A")
	src.push("X", "B")

	assert.True(t, r.Refresh(ctx))
	assert.False(t, r.Refresh(ctx))
	assert.True(t, r.Refresh(ctx))

	assert.Equal(t, []string{"A - X", "B - X"}, rec.titles())
	assert.Equal(t, "B", r.Current().Artist)
}

func TestRefresher_FallbacksAndFailures(t *testing.T) {
	ctx := context.Background()
	src := &fakeSource{}
	rec := &recorder{}
	r := metadata.NewRefresher(src, nil, rec)

	src.push("", "")
	src.fail(errors.New("upstream down"))

	assert.True(t, r.Refresh(ctx))
	assert.Equal(t, config.UnknownTitle, r.Current().Title)
	assert.Equal(t, config.UnknownArtist, r.Current().Artist)

	assert.False(t, r.Refresh(ctx))
	assert.Equal(t, config.UnknownTitle, r.Current().Title)
	assert.Len(t, rec.titles(), 1)
}

func TestRefresher_RunFetchesImmediatelyAndStops(t *testing.T) {
	src := &fakeSource{}
	src.push("X", "A")
	rec := &recorder{}
	r := metadata.NewRefresher(src, nil, rec)
	r.Interval = time.Hour

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		r.Run(ctx)
		close(done)
	}()

	assert.Eventually(t, func() bool { return len(rec.titles()) == 1 }, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestRefresher_CoverLookupIsDebounced(t *testing.T) {
	ctx := context.Background()
	src := &fakeSource{}
	covers := &fakeCovers{url: "https://cdn"}
	r := metadata.NewRefresher(src, covers, nil)
	r.Debounce = 30 * time.Millisecond

	src.push("X", "A")
	src.push("Y", "B")
	r.Refresh(ctx)
	r.Refresh(ctx)

	assert.Eventually(t, func() bool { return r.Current().CoverURL != "" }, time.Second, 5*time.Millisecond)
	assert.Equal(t, "https://cdn/B/Y", r.Current().CoverURL)
	assert.Equal(t, int32(1), covers.calls.Load())
}

func TestRefresher_StaleCoverDiscarded(t *testing.T) {
	ctx := context.Background()
	src := &fakeSource{}
	covers := &fakeCovers{url: "https://cdn", release: make(chan struct{})}
	r := metadata.NewRefresher(src, covers, nil)
	r.Debounce = time.Millisecond

	src.push("X", "A")
	r.Refresh(ctx)
	assert.Eventually(t, func() bool { return covers.calls.Load() == 1 }, time.Second, time.Millisecond)

	// Track changes while the first lookup is in flight
	src.push("Y", "B")
	r.Refresh(ctx)
	covers.release <- struct{}{}
	covers.release <- struct{}{}

	assert.Eventually(t, func() bool { return r.Current().CoverURL == "https://cdn/B/Y" }, time.Second, 5*time.Millisecond)
}

func TestRefresher_SourceCoverSkipsLookup(t *testing.T) {
	src := &fakeSource{results: []result{{track: models.Track{Title: "X", Artist: "A", CoverURL: "c.jpg"}}}}
	covers := &fakeCovers{}
	r := metadata.NewRefresher(src, covers, nil)
	r.Debounce = time.Millisecond

	r.Refresh(context.Background())
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(0), covers.calls.Load())
	assert.Equal(t, "c.jpg", r.Current().CoverURL)
}

func TestParseStreamTitle(t *testing.T) {
	tests := []struct {
		in     string
		title  string
		artist string
	}{
		{"Artist - Title", "Title", "Artist"},
		{"AC - DC - Thunder", "DC - Thunder", "AC"},
		{"Just a title", "Just a title", config.UnknownArtist},
		{" - Title", "Title", config.UnknownArtist},
		{"", config.UnknownTitle, config.UnknownArtist},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got := metadata.ParseStreamTitle(tt.in)
			assert.Equal(t, tt.title, got.Title)
			assert.Equal(t, tt.artist, got.Artist)
		})
	}
}

func TestStreamWatcher_ReconnectsAndDedupes(t *testing.T) {
	var conns atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)

		if conns.Add(1) == 1 {
			fmt.Fprint(w, "data: {\"streamTitle\":\"A - X\"}\n\n")
			fmt.Fprint(w, ": keep-alive\n\n")
			fmt.Fprint(w, "data: {\"streamTitle\":\"A - X\"}\n\n")
			fmt.Fprint(w, "data: B - Y\n\n")
			flusher.Flush()
			return
		}

		fmt.Fprint(w, "data: {\"streamTitle\":\"C - Z\"}\n\n")
		flusher.Flush()
		<-r.Context().Done()
	}))
	defer srv.Close()

	rec := &recorder{}
	w := metadata.NewStreamWatcher(srv.URL, nil, rec)
	w.ReconnectDelay = 10 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()

	assert.Eventually(t, func() bool { return len(rec.titles()) == 3 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"A - X", "B - Y", "C - Z"}, rec.titles())
	assert.GreaterOrEqual(t, conns.Load(), int32(2))

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("watcher did not stop")
	}
}

func TestUpstream(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/now_playing", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"now_playing":{"song":{"title":"Title","artist":"Artist"}}}`)
	})
	mux.HandleFunc("/search", func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("q") {
		case "Artist Title":
			fmt.Fprint(w, `{"data":[{"album":{"cover":"small","cover_medium":"medium","cover_big":""}}]}`)
		default:
			fmt.Fprint(w, `{"data":[]}`)
		}
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	u := metadata.NewUpstream(srv.URL+"/now_playing", srv.URL+"/search")
	ctx := context.Background()

	track, err := metadata.FetchNowPlaying(ctx, u, u)
	require.NoError(t, err)
	assert.Equal(t, models.Track{Title: "Title", Artist: "Artist", CoverURL: "medium"}, track)

	cover, err := u.Lookup(ctx, "Nobody", "Nothing")
	require.NoError(t, err)
	assert.Empty(t, cover)
}

func TestUpstream_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	u := metadata.NewUpstream(srv.URL, srv.URL)
	_, err := u.Fetch(context.Background())
	assert.Error(t, err)
}

func TestHTTPSource(t *testing.T) {
	var fallback atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/functions/v1/get-metadata", r.URL.Path)
		if fallback.Load() {
			fmt.Fprint(w, `{"title":"Loading...","artist":"Connecting to stream...","coverUrl":null,"error":"boom"}`)
			return
		}
		fmt.Fprint(w, `{"title":"T","artist":"A","coverUrl":"c.jpg"}`)
	}))
	defer srv.Close()

	src := metadata.NewHTTPSource(srv.URL)
	track, err := src.Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.Track{Title: "T", Artist: "A", CoverURL: "c.jpg"}, track)

	fallback.Store(true)
	_, err = src.Fetch(context.Background())
	assert.EqualError(t, err, "boom")
}

func TestAnnouncer(t *testing.T) {
	rec := &recorder{}
	a := metadata.NewAnnouncer(rec)

	_, ok := a.Last()
	assert.False(t, ok)

	ch, cancel := a.Subscribe()
	defer cancel()

	a.NowPlaying(models.Track{Title: "X", Artist: "A"})
	a.NowPlaying(models.Track{Title: "Y", Artist: "B"})

	// Only the latest track is buffered
	got := <-ch
	assert.Equal(t, "Y", got.Title)
	assert.Equal(t, []string{"A - X", "B - Y"}, rec.titles())

	last, ok := a.Last()
	assert.True(t, ok)
	assert.Equal(t, "Y", last.Title)

	cancel()
	a.NowPlaying(models.Track{Title: "Z", Artist: "C"})
	select {
	case <-ch:
		t.Fatal("cancelled subscriber received a track")
	default:
	}
}
