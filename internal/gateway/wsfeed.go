package gateway

import (
	"context"
	"fmt"
	"identityradio/backend/internal/changefeed"
	"identityradio/backend/internal/models"
	"log"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// WSFeed subscribes to the backend's realtime websocket.
type WSFeed struct {
	BaseURL string
	Dialer  *websocket.Dialer
	// AckTimeout bounds the wait for the server's subscription ack.
	AckTimeout time.Duration
}

const defaultAckTimeout = 10 * time.Second

var _ changefeed.Subscriber = (*WSFeed)(nil)

func NewWSFeed(apiURL string) *WSFeed {
	return &WSFeed{BaseURL: strings.TrimRight(apiURL, "/"), Dialer: websocket.DefaultDialer}
}

func (f *WSFeed) endpoint(table string) (string, error) {
	u, err := url.Parse(f.BaseURL + "/realtime/v1/ws")
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	case "http":
		u.Scheme = "ws"
	}
	u.RawQuery = url.Values{"table": {table}}.Encode()
	return u.String(), nil
}

// Subscribe opens one websocket for table and returns once the server has
// confirmed that it forwards changes. The events channel closes when the
// connection drops or Close is called.
func (f *WSFeed) Subscribe(ctx context.Context, table string) (changefeed.Subscription, error) {
	endpoint, err := f.endpoint(table)
	if err != nil {
		return nil, err
	}
	dialer := f.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	conn, _, err := dialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("dial realtime %s: %w", table, err)
	}
	if err := awaitSubscribed(ctx, conn, f.AckTimeout); err != nil {
		conn.Close()
		return nil, fmt.Errorf("subscribe realtime %s: %w", table, err)
	}

	sub := &wsSubscription{conn: conn, events: make(chan models.ChangeEvent, 64), done: make(chan struct{})}
	go sub.readLoop(table)
	return sub, nil
}

// awaitSubscribed reads the server's subscription ack.
func awaitSubscribed(ctx context.Context, conn *websocket.Conn, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = defaultAckTimeout
	}
	deadline := time.Now().Add(timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	conn.SetReadDeadline(deadline)
	defer conn.SetReadDeadline(time.Time{})

	var ack models.ChangeEvent
	if err := conn.ReadJSON(&ack); err != nil {
		return err
	}
	if ack.Type != models.ChangeSubscribed {
		return fmt.Errorf("expected subscription ack, got %q", ack.Type)
	}
	return nil
}

type wsSubscription struct {
	conn   *websocket.Conn
	events chan models.ChangeEvent
	done   chan struct{}
	once   sync.Once
}

func (s *wsSubscription) Events() <-chan models.ChangeEvent { return s.events }

func (s *wsSubscription) Close() error {
	var err error
	s.once.Do(func() {
		close(s.done)
		err = s.conn.Close()
	})
	return err
}

func (s *wsSubscription) readLoop(table string) {
	defer close(s.events)
	for {
		var ev models.ChangeEvent
		if err := s.conn.ReadJSON(&ev); err != nil {
			select {
			case <-s.done:
			default:
				log.Printf("WARN: Realtime connection for %s closed: %v", table, err)
			}
			return
		}
		if ev.Type == models.ChangeSubscribed {
			continue
		}
		select {
		case s.events <- ev:
		case <-s.done:
			return
		}
	}
}
