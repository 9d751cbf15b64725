package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login issues an admin session token. Non-admin accounts are refused.
func (h *Handler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Email == "" || req.Password == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "email and password are required"})
		return
	}

	token, err := h.Admins.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token})
}

// AdminStatus reports whether the bearer token belongs to an administrator.
// It never fails: anything wrong with the token means false.
func (h *Handler) AdminStatus(c *gin.Context) {
	userID, ok := h.Admins.IsAdmin(c.Request.Context(), bearer(c))
	c.JSON(http.StatusOK, gin.H{"is_admin": ok, "user_id": userID})
}
