package handlers

import (
	"net/http"

	"affimporter/internal/api/middleware"
	"affimporter/internal/auth"
	"affimporter/internal/logger"

	"github.com/gin-gonic/gin"
)

// NonceHandler hands the signed in admin UI the token it sends back in
// X-WP-Nonce.
type NonceHandler struct {
	nonces *auth.NonceManager
	logger *logger.Logger
}

func NewNonceHandler(nonces *auth.NonceManager, logger *logger.Logger) *NonceHandler {
	return &NonceHandler{nonces: nonces, logger: logger}
}

func (h *NonceHandler) Create(c *gin.Context) {
	user := middleware.CurrentUser(c)

	nonce, err := h.nonces.Create(user.ID, auth.ActionREST)
	if err != nil {
		h.logger.Error("Failed to create nonce: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create nonce"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"nonce": nonce})
}
