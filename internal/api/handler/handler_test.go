package handler_test

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"identityradio/backend/internal/api/handler"
	"identityradio/backend/internal/chathub"
	"identityradio/backend/internal/config"
	"identityradio/backend/internal/metadata"
	"identityradio/backend/internal/models"
	"identityradio/backend/internal/radio"
	"identityradio/backend/internal/session"
	"identityradio/backend/internal/storage"
	"identityradio/backend/internal/storage/storagetest"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubSource struct {
	track models.Track
	err   error
}

func (s stubSource) Fetch(ctx context.Context) (models.Track, error) { return s.track, s.err }

type stubCovers struct{ url string }

func (s stubCovers) Lookup(ctx context.Context, artist, title string) (string, error) {
	return s.url, nil
}

type fixture struct {
	store     *storage.Service
	handler   *handler.Handler
	router    *gin.Engine
	announcer *metadata.Announcer
	token     string
}

func newFixture(t *testing.T, src metadata.Source, covers metadata.CoverLookup) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store, feed := storagetest.New(t)
	admins := session.NewAdminResolver(store, "test-secret")
	hub := chathub.NewManagerService(feed)
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)
	t.Cleanup(cancel)

	announcer := metadata.NewAnnouncer()
	h := handler.NewHandler(handler.Handler{
		Hub:       hub,
		Sessions:  session.NewResolver(store),
		Admins:    admins,
		Chat:      radio.NewChatService(store),
		Songs:     radio.NewSongService(store, admins),
		Polls:     radio.NewPollService(store, admins),
		Metadata:  src,
		Covers:    covers,
		Announcer: announcer,
	})

	// Admin account
	hash, err := session.HashPassword("secret-pass")
	require.NoError(t, err)
	account := &models.AuthUser{Email: "admin@example.com", PasswordHash: hash}
	require.NoError(t, store.CreateAuthUser(context.Background(), account))
	require.NoError(t, store.GrantAdmin(context.Background(), account.ID))
	token, err := admins.Login(context.Background(), "admin@example.com", "secret-pass")
	require.NoError(t, err)

	return &fixture{store: store, handler: h, router: h.Router(), announcer: announcer, token: token}
}

type call struct {
	method string
	path   string
	body   string
	ip     string
	token  string
}

func (f *fixture) do(t *testing.T, c call) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(c.method, c.path, strings.NewReader(c.body))
	req.Header.Set("Content-Type", "application/json")
	if c.ip != "" {
		req.Header.Set("cf-connecting-ip", c.ip)
		req.Header.Set("cf-ipcountry", "UA")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func TestGetIP(t *testing.T) {
	f := newFixture(t, stubSource{}, nil)

	w := f.do(t, call{method: http.MethodGet, path: "/functions/v1/get-ip", ip: "9.9.9.9"})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	body := decode[map[string]string](t, w)
	assert.Equal(t, "9.9.9.9", body["user_ip"])
	assert.Equal(t, "UA", body["country"])

	w = f.do(t, call{method: http.MethodGet, path: "/functions/v1/get-ip"})
	body = decode[map[string]string](t, w)
	assert.Equal(t, "unknown", body["user_ip"])
	assert.Equal(t, "Unknown", body["country"])

	w = f.do(t, call{method: http.MethodOptions, path: "/functions/v1/get-ip"})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", w.Body.String())
	assert.Equal(t, "authorization, x-client-info, apikey, content-type", w.Header().Get("Access-Control-Allow-Headers"))
}

func TestGetMetadata(t *testing.T) {
	f := newFixture(t, stubSource{track: models.Track{Title: "T", Artist: "A"}}, stubCovers{url: "https://cdn/c.jpg"})

	w := f.do(t, call{method: http.MethodGet, path: "/functions/v1/get-metadata"})
	assert.Equal(t, http.StatusOK, w.Code)
	body := decode[map[string]any](t, w)
	assert.Equal(t, "T", body["title"])
	assert.Equal(t, "A", body["artist"])
	assert.Equal(t, "https://cdn/c.jpg", body["coverUrl"])

	w = f.do(t, call{method: http.MethodOptions, path: "/functions/v1/get-metadata"})
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestGetMetadata_NoCoverIsNull(t *testing.T) {
	f := newFixture(t, stubSource{track: models.Track{Title: "T", Artist: "A"}}, stubCovers{})

	w := f.do(t, call{method: http.MethodGet, path: "/functions/v1/get-metadata"})
	body := decode[map[string]any](t, w)
	assert.Contains(t, body, "coverUrl")
	assert.Nil(t, body["coverUrl"])
}

func TestGetMetadata_UpstreamFailureIsMasked(t *testing.T) {
	f := newFixture(t, stubSource{err: errors.New("zeno down")}, nil)

	w := f.do(t, call{method: http.MethodGet, path: "/functions/v1/get-metadata"})
	assert.Equal(t, http.StatusOK, w.Code)
	body := decode[map[string]any](t, w)
	assert.Equal(t, config.PlaceholderTitle, body["title"])
	assert.Equal(t, config.PlaceholderArtist, body["artist"])
	assert.Nil(t, body["coverUrl"])
	assert.Equal(t, "zeno down", body["error"])
}

func TestChatFlow(t *testing.T) {
	f := newFixture(t, stubSource{}, nil)

	w := f.do(t, call{method: http.MethodGet, path: "/rest/v1/chat/session", ip: "1.1.1.1"})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"user":null}`, w.Body.String())

	w = f.do(t, call{method: http.MethodPost, path: "/rest/v1/chat_messages", ip: "1.1.1.1", body: `{"message":"hi"}`})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = f.do(t, call{method: http.MethodPost, path: "/rest/v1/chat/session", ip: "1.1.1.1", body: `{"username":" alice "}`})
	require.Equal(t, http.StatusCreated, w.Code)

	w = f.do(t, call{method: http.MethodPost, path: "/rest/v1/chat/session", body: `{"username":"ghost"}`})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = f.do(t, call{method: http.MethodGet, path: "/rest/v1/chat/session", ip: "1.1.1.1"})
	sess := decode[struct{ User models.ChatUser }](t, w)
	assert.Equal(t, "alice", sess.User.Username)
	assert.Equal(t, models.StatusOnline, sess.User.Status)

	w = f.do(t, call{method: http.MethodPost, path: "/rest/v1/chat_messages", ip: "1.1.1.1", body: `{"message":"  "}`})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = f.do(t, call{method: http.MethodPost, path: "/rest/v1/chat_messages", ip: "1.1.1.1", body: `{"message":"hello radio"}`})
	require.Equal(t, http.StatusCreated, w.Code)
	sent := decode[models.ChatMessage](t, w)

	w = f.do(t, call{method: http.MethodGet, path: "/rest/v1/chat_messages/" + sent.ID})
	got := decode[models.ChatMessage](t, w)
	assert.Equal(t, "hello radio", got.Message)
	assert.Equal(t, "alice", got.AuthorName())

	w = f.do(t, call{method: http.MethodGet, path: "/rest/v1/chat_messages"})
	list := decode[[]models.ChatMessage](t, w)
	assert.Len(t, list, 1)

	w = f.do(t, call{method: http.MethodPost, path: "/rest/v1/chat_messages/" + sent.ID + "/report", ip: "1.1.1.1", body: `{"reason":"spam"}`})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = f.do(t, call{method: http.MethodGet, path: "/rest/v1/chat_messages/missing"})
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), `"error"`)
}

func TestSongRequestFlow(t *testing.T) {
	f := newFixture(t, stubSource{}, nil)

	w := f.do(t, call{method: http.MethodPost, path: "/rest/v1/song_requests", body: `{"title":"Song","artist":""}`})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = f.do(t, call{method: http.MethodPost, path: "/rest/v1/song_requests", body: `{"title":"Song","artist":"Band"}`})
	require.Equal(t, http.StatusCreated, w.Code)
	req := decode[models.SongRequest](t, w)
	assert.Equal(t, models.SongPending, req.Status)

	w = f.do(t, call{method: http.MethodPost, path: "/rest/v1/song_requests/" + req.ID + "/played"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = f.do(t, call{method: http.MethodPost, path: "/rest/v1/song_requests/" + req.ID + "/played", token: f.token})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.SongPlayed, decode[models.SongRequest](t, w).Status)

	w = f.do(t, call{method: http.MethodPost, path: "/rest/v1/song_requests/" + req.ID + "/played", token: f.token})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = f.do(t, call{method: http.MethodDelete, path: "/rest/v1/song_requests/" + req.ID, token: "forged"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = f.do(t, call{method: http.MethodDelete, path: "/rest/v1/song_requests/" + req.ID, token: f.token})
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = f.do(t, call{method: http.MethodGet, path: "/rest/v1/song_requests/" + req.ID})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestPollFlow(t *testing.T) {
	f := newFixture(t, stubSource{}, nil)

	w := f.do(t, call{method: http.MethodGet, path: "/rest/v1/poll_questions/active"})
	assert.JSONEq(t, `[]`, w.Body.String())

	w = f.do(t, call{method: http.MethodPost, path: "/rest/v1/poll_questions", body: `{"question":"Q?","options":["A","B"]}`})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = f.do(t, call{method: http.MethodPost, path: "/rest/v1/poll_questions", token: f.token, body: `{"question":"Q?","options":["A","B"]}`})
	require.Equal(t, http.StatusCreated, w.Code)
	poll := decode[models.PollQuestion](t, w)

	w = f.do(t, call{method: http.MethodPost, path: "/rest/v1/poll_questions/" + poll.ID + "/vote", ip: "1.1.1.1", body: `{"option_id":1}`})
	require.Equal(t, http.StatusOK, w.Code)
	view := decode[struct {
		TotalVotes  int   `json:"total_votes"`
		Percentages []int `json:"percentages"`
	}](t, w)
	assert.Equal(t, 1, view.TotalVotes)
	assert.Equal(t, []int{100, 0}, view.Percentages)

	w = f.do(t, call{method: http.MethodPost, path: "/rest/v1/poll_questions/" + poll.ID + "/vote", ip: "1.1.1.1", body: `{"option_id":2}`})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = f.do(t, call{method: http.MethodPost, path: "/rest/v1/poll_questions/" + poll.ID + "/vote", body: `{"option_id":2}`})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = f.do(t, call{method: http.MethodGet, path: "/rest/v1/poll_questions/active"})
	active := decode[[]models.PollQuestion](t, w)
	require.Len(t, active, 1)
	assert.Equal(t, poll.ID, active[0].ID)
}

func TestLoginAndAdminStatus(t *testing.T) {
	f := newFixture(t, stubSource{}, nil)

	w := f.do(t, call{method: http.MethodPost, path: "/auth/login", body: `{"email":"admin@example.com","password":"nope"}`})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	hash, err := session.HashPassword("listener-pass")
	require.NoError(t, err)
	require.NoError(t, f.store.CreateAuthUser(context.Background(), &models.AuthUser{Email: "listener@example.com", PasswordHash: hash}))
	w = f.do(t, call{method: http.MethodPost, path: "/auth/login", body: `{"email":"listener@example.com","password":"listener-pass"}`})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = f.do(t, call{method: http.MethodPost, path: "/auth/login", body: `{"email":"admin@example.com","password":"secret-pass"}`})
	require.Equal(t, http.StatusOK, w.Code)
	token := decode[map[string]string](t, w)["token"]
	assert.NotEmpty(t, token)

	w = f.do(t, call{method: http.MethodGet, path: "/auth/admin", token: token})
	assert.Equal(t, true, decode[map[string]any](t, w)["is_admin"])

	w = f.do(t, call{method: http.MethodGet, path: "/auth/admin"})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, false, decode[map[string]any](t, w)["is_admin"])
}

func TestRealtimeWebSocket(t *testing.T) {
	f := newFixture(t, stubSource{}, nil)
	srv := httptest.NewServer(f.router)
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/realtime/v1/ws?table=song_requests"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	_, resp, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/realtime/v1/ws?table=admin_users", nil)
	assert.Error(t, err)
	if resp != nil {
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	}

	// The first frame confirms the subscription
	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	var ack models.ChangeEvent
	require.NoError(t, conn.ReadJSON(&ack))
	assert.Equal(t, models.ChangeSubscribed, ack.Type)
	assert.Equal(t, models.TableSongRequests, ack.Table)

	w := f.do(t, call{method: http.MethodPost, path: "/rest/v1/song_requests", body: `{"title":"Song","artist":"Band"}`})
	require.Equal(t, http.StatusCreated, w.Code)

	var ev models.ChangeEvent
	require.NoError(t, conn.ReadJSON(&ev))
	assert.Equal(t, models.TableSongRequests, ev.Table)
	assert.Equal(t, models.ChangeInsert, ev.Type)
	assert.NotEmpty(t, ev.ID)
}

func TestNowPlayingStream(t *testing.T) {
	f := newFixture(t, stubSource{}, nil)
	srv := httptest.NewServer(f.router)
	defer srv.Close()

	f.announcer.NowPlaying(models.Track{Title: "Title", Artist: "Artist"})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/functions/v1/now-playing/stream", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Contains(t, resp.Header.Get("Content-Type"), "text/event-stream")

	scanner := bufio.NewScanner(resp.Body)
	var data string
	for scanner.Scan() {
		if line := scanner.Text(); strings.HasPrefix(line, "data:") {
			data = strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			break
		}
	}
	assert.JSONEq(t, `{"streamTitle":"Artist - Title"}`, data)
}

func TestTrustRemoteAddr(t *testing.T) {
	f := newFixture(t, stubSource{}, nil)
	f.handler.TrustRemoteAddr = true
	router := f.handler.Router()

	req := httptest.NewRequest(http.MethodGet, "/functions/v1/get-ip", nil)
	req.RemoteAddr = "10.0.0.7:51234"
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, "10.0.0.7", decode[map[string]string](t, w)["user_ip"])

	// Edge headers still win
	req = httptest.NewRequest(http.MethodGet, "/functions/v1/get-ip", nil)
	req.RemoteAddr = "10.0.0.7:51234"
	req.Header.Set("cf-connecting-ip", "8.8.8.8")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, "8.8.8.8", decode[map[string]string](t, w)["user_ip"])
}
