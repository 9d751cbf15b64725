package metadata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"identityradio/backend/internal/models"
	"net/http"
	"time"
)

// metadataResponse mirrors the get-metadata endpoint. coverUrl is null when
// no art was found; error is set when the server served its fallback.
type metadataResponse struct {
	Title    string  `json:"title"`
	Artist   string  `json:"artist"`
	CoverURL *string `json:"coverUrl"`
	Error    string  `json:"error,omitempty"`
}

// HTTPSource reads the track from our own get-metadata endpoint.
type HTTPSource struct {
	Client *http.Client
	URL    string
}

func NewHTTPSource(apiURL string) *HTTPSource {
	return &HTTPSource{
		Client: &http.Client{Timeout: 10 * time.Second},
		URL:    apiURL + "/functions/v1/get-metadata",
	}
}

// Fetch treats the server's fallback body as a failure so the previous
// track is kept.
func (s *HTTPSource) Fetch(ctx context.Context) (models.Track, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.URL, nil)
	if err != nil {
		return models.Track{}, err
	}

	client := s.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return models.Track{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return models.Track{}, fmt.Errorf("get-metadata: status %d", resp.StatusCode)
	}

	var body metadataResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return models.Track{}, fmt.Errorf("decode metadata: %w", err)
	}
	if body.Error != "" {
		return models.Track{}, errors.New(body.Error)
	}

	track := models.Track{Title: body.Title, Artist: body.Artist}
	if body.CoverURL != nil {
		track.CoverURL = *body.CoverURL
	}
	return track, nil
}
