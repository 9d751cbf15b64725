package handler

import (
	"errors"
	"fmt"
	"identityradio/backend/internal/chathub"
	"identityradio/backend/internal/metadata"
	"identityradio/backend/internal/radio"
	"identityradio/backend/internal/session"
	"log"
	"net"
	"net/http"

	"github.com/gin-gonic/gin"
)

// Handler містить посилання на сервіси, які обслуговують HTTP-маршрути
type Handler struct {
	Hub       *chathub.ManagerService
	Sessions  *session.Resolver
	Admins    *session.AdminResolver
	Chat      *radio.ChatService
	Songs     *radio.SongService
	Polls     *radio.PollService
	Metadata  metadata.Source
	Covers    metadata.CoverLookup
	Announcer *metadata.Announcer

	// TrustRemoteAddr uses the socket address when no edge headers are
	// present. Only for deployments without a proxy in front.
	TrustRemoteAddr bool
}

func NewHandler(h Handler) *Handler {
	return &h
}

// Router builds the gin engine with every route registered.
func (h *Handler) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Logger(), gin.CustomRecovery(recoverJSON), CORS())
	if h.TrustRemoteAddr {
		r.Use(forwardRemoteAddr)
	}

	fn := r.Group("/functions/v1")
	fn.GET("/get-ip", h.GetIP)
	fn.OPTIONS("/get-ip", h.GetIP)
	fn.GET("/get-metadata", h.GetMetadata)
	fn.OPTIONS("/get-metadata", h.GetMetadata)
	fn.GET("/now-playing/stream", h.NowPlayingStream)

	auth := r.Group("/auth")
	auth.POST("/login", h.Login)
	auth.GET("/admin", h.AdminStatus)

	rest := r.Group("/rest/v1")
	rest.GET("/chat/session", h.GetChatSession)
	rest.POST("/chat/session", h.RegisterChatUser)

	rest.GET("/chat_messages", h.ListMessages)
	rest.GET("/chat_messages/:id", h.GetMessage)
	rest.POST("/chat_messages", h.SendMessage)
	rest.POST("/chat_messages/:id/report", h.ReportMessage)

	rest.GET("/song_requests", h.ListSongRequests)
	rest.GET("/song_requests/:id", h.GetSongRequest)
	rest.POST("/song_requests", h.RequestSong)
	rest.POST("/song_requests/:id/played", h.MarkSongPlayed)
	rest.DELETE("/song_requests/:id", h.DeleteSongRequest)

	rest.GET("/poll_questions/active", h.GetActivePoll)
	rest.GET("/poll_questions/:id", h.GetPoll)
	rest.POST("/poll_questions", h.CreatePoll)
	rest.POST("/poll_questions/:id/vote", h.VotePoll)

	r.GET("/realtime/v1/ws", h.ServeWebSocket)

	return r
}

const allowHeaders = "authorization, x-client-info, apikey, content-type"

// CORS allows every origin. Preflight requests are answered here: get-ip
// replies 200 "ok", everything else 204.
func CORS() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Headers", allowHeaders)
		c.Header("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")

		if c.Request.Method != http.MethodOptions {
			c.Next()
			return
		}
		if c.Request.URL.Path == "/functions/v1/get-ip" {
			c.String(http.StatusOK, "ok")
			c.Abort()
			return
		}
		c.AbortWithStatus(http.StatusNoContent)
	}
}

func forwardRemoteAddr(c *gin.Context) {
	hdr := c.Request.Header
	if hdr.Get("Cf-Connecting-Ip") == "" && hdr.Get("X-Forwarded-For") == "" {
		if host, _, err := net.SplitHostPort(c.Request.RemoteAddr); err == nil {
			hdr.Set("X-Forwarded-For", host)
		}
	}
	c.Next()
}

func recoverJSON(c *gin.Context, recovered any) {
	log.Printf("ERROR: panic serving %s: %v", c.Request.URL.Path, recovered)
	c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprint(recovered)})
}

// respondError maps service errors onto HTTP statuses.
func respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, radio.ErrValidation), errors.Is(err, session.ErrInvalidUsername), errors.Is(err, session.ErrUnknownIP):
		status = http.StatusBadRequest
	case errors.Is(err, radio.ErrForbidden), errors.Is(err, session.ErrNotAdmin):
		status = http.StatusForbidden
	case errors.Is(err, radio.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, radio.ErrAlreadyVoted), errors.Is(err, radio.ErrInvalidTransition):
		status = http.StatusConflict
	case errors.Is(err, session.ErrInvalidCredentials):
		status = http.StatusUnauthorized
	}

	if status == http.StatusInternalServerError {
		log.Printf("ERROR: %s %s: %v", c.Request.Method, c.Request.URL.Path, err)
		c.JSON(status, gin.H{"error": "internal server error"})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func bearer(c *gin.Context) string {
	return session.BearerToken(c.GetHeader("Authorization"))
}
