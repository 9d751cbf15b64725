package handler

import (
	"identityradio/backend/internal/models"
	"identityradio/backend/internal/session"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

// currentUser resolves the chat identity bound to the caller's IP. A nil
// user means the caller has not registered a username yet.
func (h *Handler) currentUser(c *gin.Context) (*models.ChatUser, error) {
	return h.Sessions.Resolve(c.Request.Context(),
		session.ClientIP(c.Request.Header), session.ClientCountry(c.Request.Header))
}

func (h *Handler) GetChatSession(c *gin.Context) {
	user, err := h.currentUser(c)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user})
}

type registerRequest struct {
	Username string `json:"username"`
}

func (h *Handler) RegisterChatUser(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	user, err := h.Sessions.Register(c.Request.Context(),
		session.ClientIP(c.Request.Header), session.ClientCountry(c.Request.Header), req.Username)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"user": user})
}

func (h *Handler) ListMessages(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	messages, err := h.Chat.History(c.Request.Context(), limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, messages)
}

func (h *Handler) GetMessage(c *gin.Context) {
	msg, err := h.Chat.Message(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, msg)
}

type sendRequest struct {
	Message string `json:"message"`
}

func (h *Handler) SendMessage(c *gin.Context) {
	var req sendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	user, err := h.currentUser(c)
	if err != nil {
		respondError(c, err)
		return
	}
	msg, err := h.Chat.Send(c.Request.Context(), user, req.Message)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, msg)
}

type reportRequest struct {
	Reason string `json:"reason"`
}

func (h *Handler) ReportMessage(c *gin.Context) {
	var req reportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	user, err := h.currentUser(c)
	if err != nil {
		respondError(c, err)
		return
	}
	hidden, err := h.Chat.Report(c.Request.Context(), user, c.Param("id"), req.Reason)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"hidden": hidden})
}
