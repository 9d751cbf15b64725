package metadata

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"identityradio/backend/internal/config"
	"log"
	"net/http"
	"strings"
	"time"
)

var errStreamClosed = errors.New("event stream closed")

type titleEvent struct {
	StreamTitle string `json:"streamTitle"`
}

// StreamWatcher follows a Server-Sent Events feed of title changes and
// reconnects after a fixed delay whenever the connection drops.
type StreamWatcher struct {
	tracker
	URL            string
	Client         *http.Client
	ReconnectDelay time.Duration
}

func NewStreamWatcher(url string, covers CoverLookup, notify Notifier) *StreamWatcher {
	return &StreamWatcher{
		tracker:        tracker{Covers: covers, Notify: notify, Debounce: config.CoverDebounce},
		URL:            url,
		Client:         &http.Client{},
		ReconnectDelay: config.ReconnectDelay,
	}
}

// Run keeps the stream open until ctx is cancelled. Retries are unbounded.
func (w *StreamWatcher) Run(ctx context.Context) {
	defer w.stopCover()
	delay := w.ReconnectDelay
	if delay <= 0 {
		delay = config.ReconnectDelay
	}

	for {
		err := w.consume(ctx)
		if ctx.Err() != nil {
			return
		}
		log.Printf("WARN: Metadata stream disconnected: %v. Reconnecting in %s", err, delay)

		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
	}
}

func (w *StreamWatcher) consume(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, w.URL, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	client := w.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 4096), 1<<20)

	var data []string
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "":
			if len(data) > 0 {
				w.handleEvent(ctx, strings.Join(data, "\n"))
				data = data[:0]
			}
		case strings.HasPrefix(line, "data:"):
			data = append(data, strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
		}
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	return errStreamClosed
}

// handleEvent accepts either {"streamTitle": "..."} or a bare title line.
func (w *StreamWatcher) handleEvent(ctx context.Context, data string) {
	raw := data
	var ev titleEvent
	if err := json.Unmarshal([]byte(data), &ev); err == nil {
		if ev.StreamTitle == "" {
			return
		}
		raw = ev.StreamTitle
	}
	w.accept(ctx, ParseStreamTitle(raw))
}
