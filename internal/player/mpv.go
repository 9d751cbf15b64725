package player

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"time"
)

// MPVOutput drives an mpv process through its JSON IPC socket.
type MPVOutput struct {
	Binary string

	cmd    *exec.Cmd
	conn   net.Conn
	socket string

	mu      sync.Mutex
	nextID  int
	pending map[int]chan mpvReply

	errs      chan error
	closeOnce sync.Once
}

type mpvRequest struct {
	Command   []any `json:"command"`
	RequestID int   `json:"request_id"`
}

type mpvReply struct {
	RequestID int             `json:"request_id"`
	Error     string          `json:"error"`
	Data      json.RawMessage `json:"data"`
	Event     string          `json:"event"`
	Reason    string          `json:"reason"`
	FileError string          `json:"file_error"`
}

func NewMPVOutput() *MPVOutput {
	return &MPVOutput{
		Binary:  "mpv",
		pending: make(map[int]chan mpvReply),
		errs:    make(chan error, 4),
	}
}

func (m *MPVOutput) Errors() <-chan error { return m.errs }

// Load starts mpv and opens url.
func (m *MPVOutput) Load(ctx context.Context, url string) error {
	m.socket = filepath.Join(os.TempDir(), fmt.Sprintf("identityradio-mpv-%d.sock", os.Getpid()))
	_ = os.Remove(m.socket)

	m.cmd = exec.Command(m.Binary, "--no-video", "--idle=yes", "--no-terminal",
		"--input-ipc-server="+m.socket)
	if err := m.cmd.Start(); err != nil {
		return fmt.Errorf("start mpv: %w", err)
	}

	conn, err := m.dial(ctx)
	if err != nil {
		_ = m.cmd.Process.Kill()
		return err
	}
	m.conn = conn
	go m.readLoop()
	go func() {
		if err := m.cmd.Wait(); err != nil {
			m.report(fmt.Errorf("mpv exited: %w", err))
		}
	}()

	_, err = m.call("loadfile", url)
	return err
}

func (m *MPVOutput) dial(ctx context.Context) (net.Conn, error) {
	var d net.Dialer
	for {
		conn, err := d.DialContext(ctx, "unix", m.socket)
		if err == nil {
			return conn, nil
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("connect to mpv: %w", ctx.Err())
		case <-time.After(100 * time.Millisecond):
		}
	}
}

func (m *MPVOutput) readLoop() {
	scanner := bufio.NewScanner(m.conn)
	for scanner.Scan() {
		var reply mpvReply
		if err := json.Unmarshal(scanner.Bytes(), &reply); err != nil {
			log.Printf("WARN: Unreadable mpv message: %v", err)
			continue
		}
		if reply.Event != "" {
			if reply.Event == "end-file" && reply.Reason == "error" {
				m.report(fmt.Errorf("playback error: %s", reply.FileError))
			}
			continue
		}

		m.mu.Lock()
		ch, ok := m.pending[reply.RequestID]
		delete(m.pending, reply.RequestID)
		m.mu.Unlock()
		if ok {
			ch <- reply
		}
	}
}

func (m *MPVOutput) report(err error) {
	select {
	case m.errs <- err:
	default:
	}
}

func (m *MPVOutput) call(args ...any) (json.RawMessage, error) {
	if m.conn == nil {
		return nil, errors.New("mpv is not running")
	}

	m.mu.Lock()
	m.nextID++
	id := m.nextID
	ch := make(chan mpvReply, 1)
	m.pending[id] = ch
	m.mu.Unlock()

	payload, err := json.Marshal(mpvRequest{Command: args, RequestID: id})
	if err != nil {
		return nil, err
	}
	if _, err := m.conn.Write(append(payload, '\n')); err != nil {
		return nil, fmt.Errorf("write to mpv: %w", err)
	}

	select {
	case reply := <-ch:
		if reply.Error != "" && reply.Error != "success" {
			return nil, fmt.Errorf("mpv %v: %s", args[0], reply.Error)
		}
		return reply.Data, nil
	case <-time.After(5 * time.Second):
		m.mu.Lock()
		delete(m.pending, id)
		m.mu.Unlock()
		return nil, fmt.Errorf("mpv %v: timed out", args[0])
	}
}

func (m *MPVOutput) SetPaused(paused bool) error {
	_, err := m.call("set_property", "pause", paused)
	return err
}

func (m *MPVOutput) Paused() (bool, error) {
	data, err := m.call("get_property", "pause")
	if err != nil {
		return false, err
	}
	var paused bool
	err = json.Unmarshal(data, &paused)
	return paused, err
}

func (m *MPVOutput) SetVolume(volume int) error {
	_, err := m.call("set_property", "volume", volume)
	return err
}

func (m *MPVOutput) SetMuted(muted bool) error {
	_, err := m.call("set_property", "mute", muted)
	return err
}

func (m *MPVOutput) Close() error {
	var err error
	m.closeOnce.Do(func() {
		if m.conn != nil {
			_, _ = m.conn.Write([]byte(`{"command":["quit"]}` + "\n"))
			err = m.conn.Close()
		}
		if m.cmd != nil && m.cmd.Process != nil {
			_ = m.cmd.Process.Kill()
		}
		_ = os.Remove(m.socket)
	})
	return err
}
