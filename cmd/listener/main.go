// Command listener is the terminal client: it plays the stream, shows the
// current track and follows chat, song requests and polls live.
package main

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"identityradio/backend/internal/config"
	"identityradio/backend/internal/gateway"
	"identityradio/backend/internal/livesync"
	"identityradio/backend/internal/metadata"
	"identityradio/backend/internal/models"
	"identityradio/backend/internal/player"

	"golang.org/x/term"
)

const help = `keys: space/p play-pause  m mute  up/down volume  0-9 volume level
      c chat  s request "Artist - Title"  v vote
      x report last message  r reload stream  q quit`

type mode int

const (
	modeKeys mode = iota
	modeChat
	modeRequest
	modeVote
	modeReport
)

type app struct {
	cfg    config.Config
	api    *gateway.Client
	out    *console
	cancel context.CancelFunc

	mu        sync.Mutex
	transport *player.Transport
	playerIn  chan rune
	unbind    func()

	self   string
	mode   mode
	editor *lineEditor
	poll   *models.PollQuestion
	target *models.ChatMessage
}

func main() {
	cfg := config.Load()
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	stdin := bufio.NewReader(os.Stdin)
	a := &app{cfg: cfg, api: gateway.NewClient(cfg.APIURL), out: &console{out: os.Stdout}}

	user, err := a.ensureSession(ctx, stdin)
	if err != nil {
		log.Fatalf("Failed to open chat session: %v", err)
	}
	a.self = user.ID

	// Логи не повинні ламати raw-режим терміналу
	log.SetOutput(logWriter{a.out})

	if term.IsTerminal(int(os.Stdin.Fd())) {
		state, err := term.MakeRaw(int(os.Stdin.Fd()))
		if err != nil {
			log.Fatalf("Failed to switch terminal to raw mode: %v", err)
		}
		defer term.Restore(int(os.Stdin.Fd()), state)
	}

	ctx, a.cancel = context.WithCancel(ctx)
	a.out.Printf("Hi %s. %s", user.Username, help)

	if err := a.startPlayer(ctx); err != nil {
		a.out.Printf("Playback unavailable: %v (press r to retry)", err)
	}
	defer a.stopPlayer()

	go a.runMetadata(ctx)

	views, err := a.startViews(ctx)
	if err != nil {
		a.out.Printf("Live updates unavailable: %v", err)
	}
	defer func() {
		for _, v := range views {
			_ = v.Close()
		}
	}()

	keys := make(chan rune, 16)
	go player.ReadKeys(stdin, keys)

	for {
		select {
		case <-ctx.Done():
			return
		case key, ok := <-keys:
			if !ok {
				return
			}
			a.route(ctx, key)
		}
	}
}

// ensureSession registers a username on first run. It reads from the still
// cooked terminal.
func (a *app) ensureSession(ctx context.Context, in *bufio.Reader) (*models.ChatUser, error) {
	user, err := a.api.Session(ctx)
	if err != nil || user != nil {
		return user, err
	}

	for {
		fmt.Print("Choose a chat name: ")
		name, err := in.ReadString('\n')
		if err != nil {
			return nil, err
		}
		user, err := a.api.Register(ctx, strings.TrimSpace(name))
		if err == nil {
			return user, nil
		}
		if !gateway.IsStatus(err, http.StatusBadRequest) {
			return nil, err
		}
		fmt.Println(err)
	}
}

func (a *app) startPlayer(ctx context.Context) error {
	t := player.NewTransport(player.NewMPVOutput(), a.cfg.StreamURL)
	if err := t.Start(ctx); err != nil {
		_ = t.Close()
		return err
	}

	in := make(chan rune)
	unbind := player.NewKeyMap(t).Bind(in, nil)

	a.mu.Lock()
	a.transport, a.playerIn, a.unbind = t, in, unbind
	a.mu.Unlock()

	go func() {
		select {
		case <-ctx.Done():
		case err := <-t.Fatal():
			a.out.Printf("%v. Press r to reload.", err)
		}
	}()
	return nil
}

func (a *app) stopPlayer() {
	a.mu.Lock()
	t, unbind := a.transport, a.unbind
	a.transport, a.playerIn, a.unbind = nil, nil, nil
	a.mu.Unlock()

	if unbind != nil {
		unbind()
	}
	if t != nil {
		if err := t.Close(); err != nil {
			log.Printf("WARN: closing player: %v", err)
		}
	}
}

func (a *app) runMetadata(ctx context.Context) {
	notify := metadata.NotifierFunc(func(t models.Track) {
		a.out.Printf("♪ %s", t.StreamTitle())
	})
	onCover := func(t models.Track) {
		if t.CoverURL != "" {
			a.out.Printf("  cover: %s", t.CoverURL)
		}
	}

	if a.cfg.MetadataMode == "push" {
		covers := metadata.NewUpstream(a.cfg.StationNowPlayingURL, a.cfg.CoverSearchURL)
		w := metadata.NewStreamWatcher(a.cfg.StreamEventsURL, covers, notify)
		w.OnCover = onCover
		w.Run(ctx)
		return
	}

	r := metadata.NewRefresher(metadata.NewHTTPSource(a.cfg.APIURL), nil, notify)
	r.OnCover = onCover
	r.Run(ctx)
}

type closer interface{ Close() error }

func (a *app) startViews(ctx context.Context) ([]closer, error) {
	feed := gateway.NewWSFeed(a.cfg.APIURL)
	var started []closer

	chat := livesync.New[models.ChatMessage](gateway.MessageSource{Client: a.api}, feed, livesync.Options[models.ChatMessage]{
		Table: models.TableChatMessages,
		Key:   func(m models.ChatMessage) string { return m.ID },
		Less:  func(x, y models.ChatMessage) bool { return x.CreatedAt.Before(y.CreatedAt) },
	})
	seen := make(map[string]bool)
	chat.OnChange(func(msgs []models.ChatMessage) {
		a.mu.Lock()
		a.target = lastFromOthers(msgs, a.self)
		a.mu.Unlock()
		for _, m := range msgs {
			if seen[m.ID] {
				continue
			}
			seen[m.ID] = true
			name := "anon"
			if m.User != nil {
				name = m.User.Username
			}
			a.out.Printf("[%s] %s: %s", m.CreatedAt.Local().Format("15:04"), name, m.Message)
		}
	})

	songs := livesync.New[models.SongRequest](gateway.SongRequestSource{Client: a.api}, feed, livesync.Options[models.SongRequest]{
		Table: models.TableSongRequests,
		Key:   func(r models.SongRequest) string { return r.ID },
		Less:  func(x, y models.SongRequest) bool { return x.RequestedAt.After(y.RequestedAt) },
	})
	songs.OnChange(func(reqs []models.SongRequest) {
		pending := 0
		for _, r := range reqs {
			if r.Status == models.SongPending {
				pending++
			}
		}
		if len(reqs) > 0 {
			a.out.Printf("requests: %d pending, latest %s - %s", pending, reqs[0].Artist, reqs[0].Title)
		}
	})

	polls := livesync.New[models.PollQuestion](gateway.ActivePollSource{Client: a.api}, feed, livesync.Options[models.PollQuestion]{
		Table:   models.TablePollQuestions,
		Key:     func(p models.PollQuestion) string { return p.ID },
		Less:    func(x, y models.PollQuestion) bool { return x.CreatedAt.After(y.CreatedAt) },
		Refetch: true,
	})
	polls.OnChange(func(ps []models.PollQuestion) {
		a.mu.Lock()
		a.poll = nil
		if len(ps) > 0 {
			a.poll = &ps[0]
		}
		a.mu.Unlock()
		if len(ps) > 0 {
			a.out.Printf("%s", formatPoll(ps[0]))
		}
	})

	for _, s := range []interface {
		closer
		Start(context.Context) error
	}{chat, songs, polls} {
		if err := s.Start(ctx); err != nil {
			return started, err
		}
		started = append(started, s)
	}
	return started, nil
}

func formatPoll(p models.PollQuestion) string {
	var b strings.Builder
	fmt.Fprintf(&b, "poll: %s (%d votes)", p.Question, p.TotalVotes())
	pct := p.Percentages()
	for i, o := range p.Options.Data() {
		fmt.Fprintf(&b, "\n  %d) %s %d%%", o.ID, o.Text, pct[i])
	}
	return b.String()
}

// route handles one key press according to the current input mode.
func (a *app) route(ctx context.Context, key rune) {
	a.mu.Lock()
	m, ed := a.mode, a.editor
	a.mu.Unlock()

	switch m {
	case modeChat, modeRequest:
		done, cancelled := ed.feed(key)
		if !done {
			return
		}
		a.setMode(modeKeys, nil)
		if cancelled || ed.text() == "" {
			return
		}
		go a.submit(ctx, m, ed.text())
	case modeVote:
		a.setMode(modeKeys, nil)
		if key >= '1' && key <= '9' {
			go a.vote(ctx, int(key-'0'))
		}
	case modeReport:
		a.setMode(modeKeys, nil)
		if reason, ok := reportReason(key); ok {
			go a.report(ctx, reason)
		}
	default:
		a.handleKey(ctx, key)
	}
}

func (a *app) handleKey(ctx context.Context, key rune) {
	switch key {
	case 'q', 0x03:
		a.cancel()
	case 'h', '?':
		a.out.Printf("%s", help)
	case 'c':
		a.setMode(modeChat, &lineEditor{})
		a.out.Printf("say (Enter to send, Esc to cancel):")
	case 's':
		a.setMode(modeRequest, &lineEditor{})
		a.out.Printf("request as Artist - Title:")
	case 'v':
		a.mu.Lock()
		p := a.poll
		a.mu.Unlock()
		if p == nil {
			a.out.Printf("no active poll")
			return
		}
		a.setMode(modeVote, nil)
		a.out.Printf("%s\npress the option number", formatPoll(*p))
	case 'x':
		a.mu.Lock()
		m := a.target
		a.mu.Unlock()
		if m == nil {
			a.out.Printf("nothing to report")
			return
		}
		a.setMode(modeReport, nil)
		a.out.Printf("report %q: 1 spam  2 offensive  3 illegal", m.Message)
	case 'r':
		a.stopPlayer()
		if err := a.startPlayer(ctx); err != nil {
			a.out.Printf("Reload failed: %v", err)
			return
		}
		a.out.Printf("stream reloaded")
	default:
		a.mu.Lock()
		in := a.playerIn
		a.mu.Unlock()
		if in != nil {
			in <- key
		}
	}
}

func (a *app) setMode(m mode, ed *lineEditor) {
	a.mu.Lock()
	a.mode, a.editor = m, ed
	a.mu.Unlock()
}

func (a *app) submit(ctx context.Context, m mode, text string) {
	switch m {
	case modeChat:
		if err := a.api.SendMessage(ctx, text); err != nil {
			a.out.Printf("message not sent: %v", err)
		}
	case modeRequest:
		t := metadata.ParseStreamTitle(text)
		if err := a.api.RequestSong(ctx, t.Title, t.Artist); err != nil {
			a.out.Printf("request not sent: %v", err)
			return
		}
		a.out.Printf("requested %s - %s", t.Artist, t.Title)
	}
}

func (a *app) vote(ctx context.Context, option int) {
	a.mu.Lock()
	p := a.poll
	a.mu.Unlock()
	if p == nil {
		return
	}
	if err := a.api.Vote(ctx, p.ID, option); err != nil {
		a.out.Printf("vote not counted: %v", err)
	}
}

func (a *app) report(ctx context.Context, reason string) {
	a.mu.Lock()
	m := a.target
	a.mu.Unlock()
	if m == nil {
		return
	}
	hidden, err := a.api.ReportMessage(ctx, m.ID, reason)
	if err != nil {
		a.out.Printf("report not sent: %v", err)
		return
	}
	if hidden {
		a.out.Printf("message hidden")
		return
	}
	a.out.Printf("reported as %s", reason)
}

type logWriter struct{ c *console }

func (w logWriter) Write(p []byte) (int, error) {
	w.c.Printf("%s", strings.TrimRight(string(p), "\n"))
	return len(p), nil
}
