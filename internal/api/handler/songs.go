package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (h *Handler) ListSongRequests(c *gin.Context) {
	requests, err := h.Songs.List(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, requests)
}

func (h *Handler) GetSongRequest(c *gin.Context) {
	req, err := h.Songs.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, req)
}

type songRequest struct {
	Title  string `json:"title"`
	Artist string `json:"artist"`
}

func (h *Handler) RequestSong(c *gin.Context) {
	var req songRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	created, err := h.Songs.Request(c.Request.Context(), req.Title, req.Artist)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

func (h *Handler) MarkSongPlayed(c *gin.Context) {
	req, err := h.Songs.MarkPlayed(c.Request.Context(), bearer(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, req)
}

func (h *Handler) DeleteSongRequest(c *gin.Context) {
	if err := h.Songs.Delete(c.Request.Context(), bearer(c), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
