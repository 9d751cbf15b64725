// Package player owns the single audio stream handle of the listener.
package player

import (
	"context"
	"errors"
	"fmt"
	"identityradio/backend/internal/config"
	"log"
	"sync"
)

// ErrStreamFailed is surfaced once when the output dies. The stream is not
// reconnected: the listener has to reload.
var ErrStreamFailed = errors.New("stream playback failed, reload to reconnect")

// Output is a playable stream handle.
type Output interface {
	Load(ctx context.Context, url string) error
	SetPaused(paused bool) error
	Paused() (bool, error)
	SetVolume(volume int) error
	SetMuted(muted bool) error
	Errors() <-chan error
	Close() error
}

// Transport exposes play, pause, mute and volume over one Output bound to a
// fixed URL.
type Transport struct {
	out Output
	url string

	mu     sync.Mutex
	volume int
	muted  bool

	fatal     chan error
	fatalOnce sync.Once
	stop      chan struct{}
	stopOnce  sync.Once
}

func NewTransport(out Output, url string) *Transport {
	return &Transport{
		out:    out,
		url:    url,
		volume: config.DefaultVolume,
		fatal:  make(chan error, 1),
		stop:   make(chan struct{}),
	}
}

// Start loads the stream and begins watching the output for errors.
func (t *Transport) Start(ctx context.Context) error {
	if err := t.out.Load(ctx, t.url); err != nil {
		return fmt.Errorf("load stream: %w", err)
	}
	if err := t.out.SetVolume(t.Volume()); err != nil {
		return fmt.Errorf("set initial volume: %w", err)
	}
	go t.watch()
	return nil
}

func (t *Transport) watch() {
	errs := t.out.Errors()
	for {
		select {
		case <-t.stop:
			return
		case err, ok := <-errs:
			if !ok {
				return
			}
			log.Printf("ERROR: Audio output failed: %v", err)
			t.fatalOnce.Do(func() {
				t.fatal <- fmt.Errorf("%w: %v", ErrStreamFailed, err)
			})
		}
	}
}

// Fatal delivers at most one error, when playback can no longer continue.
func (t *Transport) Fatal() <-chan error {
	return t.fatal
}

func (t *Transport) URL() string { return t.url }

// Toggle flips playback based on the output's own paused state.
func (t *Transport) Toggle() error {
	paused, err := t.out.Paused()
	if err != nil {
		return fmt.Errorf("read playback state: %w", err)
	}
	return t.out.SetPaused(!paused)
}

// Playing reports the output's current state.
func (t *Transport) Playing() bool {
	paused, err := t.out.Paused()
	return err == nil && !paused
}

// SetVolume clamps v to 0..100 and applies it immediately. The stored value
// changes only when the output accepted it.
func (t *Transport) SetVolume(v int) error {
	v = max(0, min(100, v))

	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.out.SetVolume(v); err != nil {
		return err
	}
	t.volume = v
	return nil
}

// StepVolume moves the volume by delta, clamped.
func (t *Transport) StepVolume(delta int) error {
	return t.SetVolume(t.Volume() + delta)
}

func (t *Transport) Volume() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.volume
}

// ToggleMute leaves the volume value untouched.
func (t *Transport) ToggleMute() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.out.SetMuted(!t.muted); err != nil {
		return err
	}
	t.muted = !t.muted
	return nil
}

func (t *Transport) Muted() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.muted
}

// Close stops watching and releases the output.
func (t *Transport) Close() error {
	t.stopOnce.Do(func() { close(t.stop) })
	return t.out.Close()
}
