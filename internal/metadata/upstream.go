package metadata

import (
	"context"
	"encoding/json"
	"fmt"
	"identityradio/backend/internal/models"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Upstream talks to the station's now-playing API and to the Deezer search
// API for cover art.
type Upstream struct {
	Client         *http.Client
	NowPlayingURL  string
	CoverSearchURL string
}

func NewUpstream(nowPlayingURL, coverSearchURL string) *Upstream {
	return &Upstream{
		Client:         &http.Client{Timeout: 10 * time.Second},
		NowPlayingURL:  nowPlayingURL,
		CoverSearchURL: coverSearchURL,
	}
}

type nowPlayingResponse struct {
	NowPlaying struct {
		Song struct {
			Title  string `json:"title"`
			Artist string `json:"artist"`
		} `json:"song"`
	} `json:"now_playing"`
}

type coverSearchResponse struct {
	Data []struct {
		Album struct {
			Cover       string `json:"cover"`
			CoverMedium string `json:"cover_medium"`
			CoverBig    string `json:"cover_big"`
		} `json:"album"`
	} `json:"data"`
}

// Fetch returns the raw title and artist. Empty fields are left empty.
func (u *Upstream) Fetch(ctx context.Context) (models.Track, error) {
	var body nowPlayingResponse
	if err := u.getJSON(ctx, u.NowPlayingURL, &body); err != nil {
		return models.Track{}, fmt.Errorf("failed to fetch metadata: %w", err)
	}
	return models.Track{
		Title:  body.NowPlaying.Song.Title,
		Artist: body.NowPlaying.Song.Artist,
	}, nil
}

// Lookup returns the best cover of the first search hit.
func (u *Upstream) Lookup(ctx context.Context, artist, title string) (string, error) {
	query := strings.TrimSpace(artist + " " + title)
	if query == "" {
		return "", nil
	}

	var body coverSearchResponse
	if err := u.getJSON(ctx, u.CoverSearchURL+"?q="+url.QueryEscape(query), &body); err != nil {
		return "", fmt.Errorf("cover search: %w", err)
	}
	if len(body.Data) == 0 {
		return "", nil
	}

	album := body.Data[0].Album
	switch {
	case album.CoverBig != "":
		return album.CoverBig, nil
	case album.CoverMedium != "":
		return album.CoverMedium, nil
	default:
		return album.Cover, nil
	}
}

func (u *Upstream) getJSON(ctx context.Context, target string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Cache-Control", "no-cache")

	client := u.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s: %d %s", target, resp.StatusCode, http.StatusText(resp.StatusCode))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
