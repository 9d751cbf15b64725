// Package gateway is the listener's view of the radio backend: REST calls
// for rows and actions, and a websocket change feed.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"identityradio/backend/internal/models"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// APIError is a non-2xx answer from the backend.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d: %s", e.Status, e.Message)
}

// IsStatus reports whether err is an APIError with the given status.
func IsStatus(err error, status int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == status
}

// Client calls the backend's REST routes.
type Client struct {
	BaseURL string
	HTTP    *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP:    &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	client := c.HTTP
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		var envelope struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&envelope)
		if envelope.Error == "" {
			envelope.Error = http.StatusText(resp.StatusCode)
		}
		return &APIError{Status: resp.StatusCode, Message: envelope.Error}
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// IP returns the caller's address and country as the backend sees them.
func (c *Client) IP(ctx context.Context) (ip, country string, err error) {
	var out struct {
		UserIP  string `json:"user_ip"`
		Country string `json:"country"`
	}
	err = c.do(ctx, http.MethodGet, "/functions/v1/get-ip", nil, &out)
	return out.UserIP, out.Country, err
}

// Session returns the chat user bound to this caller, or nil.
func (c *Client) Session(ctx context.Context) (*models.ChatUser, error) {
	var out struct {
		User *models.ChatUser `json:"user"`
	}
	err := c.do(ctx, http.MethodGet, "/rest/v1/chat/session", nil, &out)
	return out.User, err
}

func (c *Client) Register(ctx context.Context, username string) (*models.ChatUser, error) {
	var out struct {
		User *models.ChatUser `json:"user"`
	}
	err := c.do(ctx, http.MethodPost, "/rest/v1/chat/session", map[string]string{"username": username}, &out)
	return out.User, err
}

// SendMessage posts a chat message. The message shows up through the change
// feed like everyone else's.
func (c *Client) SendMessage(ctx context.Context, text string) error {
	return c.do(ctx, http.MethodPost, "/rest/v1/chat_messages", map[string]string{"message": text}, nil)
}

// ReportMessage reports a message and tells whether it is now hidden.
func (c *Client) ReportMessage(ctx context.Context, id, reason string) (bool, error) {
	var out struct {
		Hidden bool `json:"hidden"`
	}
	err := c.do(ctx, http.MethodPost, "/rest/v1/chat_messages/"+url.PathEscape(id)+"/report",
		map[string]string{"reason": reason}, &out)
	return out.Hidden, err
}

func (c *Client) ListMessages(ctx context.Context) ([]models.ChatMessage, error) {
	var out []models.ChatMessage
	err := c.do(ctx, http.MethodGet, "/rest/v1/chat_messages", nil, &out)
	return out, err
}

func (c *Client) GetMessage(ctx context.Context, id string) (*models.ChatMessage, error) {
	var out models.ChatMessage
	if err := c.do(ctx, http.MethodGet, "/rest/v1/chat_messages/"+url.PathEscape(id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) RequestSong(ctx context.Context, title, artist string) error {
	return c.do(ctx, http.MethodPost, "/rest/v1/song_requests",
		map[string]string{"title": title, "artist": artist}, nil)
}

func (c *Client) ListSongRequests(ctx context.Context) ([]models.SongRequest, error) {
	var out []models.SongRequest
	err := c.do(ctx, http.MethodGet, "/rest/v1/song_requests", nil, &out)
	return out, err
}

func (c *Client) GetSongRequest(ctx context.Context, id string) (*models.SongRequest, error) {
	var out models.SongRequest
	if err := c.do(ctx, http.MethodGet, "/rest/v1/song_requests/"+url.PathEscape(id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ActivePoll returns zero or one polls.
func (c *Client) ActivePoll(ctx context.Context) ([]models.PollQuestion, error) {
	var out []models.PollQuestion
	err := c.do(ctx, http.MethodGet, "/rest/v1/poll_questions/active", nil, &out)
	return out, err
}

func (c *Client) Vote(ctx context.Context, pollID string, optionID int) error {
	return c.do(ctx, http.MethodPost, "/rest/v1/poll_questions/"+url.PathEscape(pollID)+"/vote",
		map[string]int{"option_id": optionID}, nil)
}
