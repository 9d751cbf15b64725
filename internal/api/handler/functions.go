package handler

import (
	"fmt"
	"identityradio/backend/internal/config"
	"identityradio/backend/internal/metadata"
	"identityradio/backend/internal/session"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

const keepAliveInterval = 15 * time.Second

// GetIP reports the caller's IP and country as seen by the edge.
func (h *Handler) GetIP(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"user_ip": session.ClientIP(c.Request.Header),
		"country": session.ClientCountry(c.Request.Header),
	})
}

// GetMetadata returns the track on air with its cover. Upstream failures are
// masked with a placeholder body and status 200.
func (h *Handler) GetMetadata(c *gin.Context) {
	track, err := metadata.FetchNowPlaying(c.Request.Context(), h.Metadata, h.Covers)
	if err != nil {
		log.Printf("ERROR: Failed to fetch metadata: %v", err)
		c.JSON(http.StatusOK, gin.H{
			"title":    config.PlaceholderTitle,
			"artist":   config.PlaceholderArtist,
			"coverUrl": nil,
			"error":    err.Error(),
		})
		return
	}

	var cover any
	if track.CoverURL != "" {
		cover = track.CoverURL
	}
	c.JSON(http.StatusOK, gin.H{
		"title":    track.Title,
		"artist":   track.Artist,
		"coverUrl": cover,
	})
}

// NowPlayingStream pushes {"streamTitle": "Artist - Title"} events as the
// announcer accepts new tracks.
func (h *Handler) NowPlayingStream(c *gin.Context) {
	if h.Announcer == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "now playing stream is not available"})
		return
	}

	tracks, cancel := h.Announcer.Subscribe()
	defer cancel()

	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")

	if last, ok := h.Announcer.Last(); ok {
		c.SSEvent("message", gin.H{"streamTitle": last.StreamTitle()})
		c.Writer.Flush()
	}

	keepAlive := time.NewTicker(keepAliveInterval)
	defer keepAlive.Stop()

	c.Stream(func(w io.Writer) bool {
		select {
		case <-c.Request.Context().Done():
			return false
		case t := <-tracks:
			c.SSEvent("message", gin.H{"streamTitle": t.StreamTitle()})
			return true
		case <-keepAlive.C:
			fmt.Fprint(w, ": keep-alive\n\n")
			return true
		}
	})
}
