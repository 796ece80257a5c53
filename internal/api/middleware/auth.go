package middleware

import (
	"errors"
	"net/http"
	"strconv"

	"affimporter/internal/auth"
	"affimporter/internal/logger"
	"affimporter/internal/metrics"
	"affimporter/internal/models"
	"affimporter/internal/store"

	"github.com/gin-gonic/gin"
)

const (
	// HeaderUserID carries the identity established by the fronting session
	// layer.
	HeaderUserID = "X-User-ID"
	HeaderNonce  = "X-WP-Nonce"

	userKey = "current_user"

	// MessageInvalidNonce is the whole response body of a nonce rejection.
	MessageInvalidNonce = "Invalid nonce"
)

// restError mirrors the error envelope of the admin REST surface.
func restError(code, message string, status int) gin.H {
	return gin.H{
		"code":    code,
		"message": message,
		"data":    gin.H{"status": status},
	}
}

// Identify loads the caller named by X-User-ID. Unknown or missing ids leave
// the request anonymous.
func Identify(users store.UserStore, log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := c.GetHeader(HeaderUserID)
		if raw == "" {
			c.Next()
			return
		}

		id, err := strconv.ParseUint(raw, 10, 64)
		if err != nil || id == 0 {
			c.Next()
			return
		}

		user, err := users.FindUser(c.Request.Context(), uint(id))
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			log.Error("Failed to load user %d: %v", id, err)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to load user"})
			return
		}
		if user != nil {
			c.Set(userKey, user)
		}
		c.Next()
	}
}

// CurrentUser returns the identified caller, or nil.
func CurrentUser(c *gin.Context) *models.User {
	v, ok := c.Get(userKey)
	if !ok {
		return nil
	}
	user, _ := v.(*models.User)
	return user
}

// RequireUser rejects anonymous requests.
func RequireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		if CurrentUser(c) == nil {
			metrics.AuthFailuresTotal.WithLabelValues("not_logged_in").Inc()
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				restError("rest_not_logged_in", "You are not currently logged in.", http.StatusUnauthorized))
			return
		}
		c.Next()
	}
}

// RequireCapability rejects callers whose role lacks capability.
func RequireCapability(capability models.Capability) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := CurrentUser(c)
		if user == nil {
			metrics.AuthFailuresTotal.WithLabelValues("not_logged_in").Inc()
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				restError("rest_not_logged_in", "You are not currently logged in.", http.StatusUnauthorized))
			return
		}
		if !user.Can(capability) {
			metrics.AuthFailuresTotal.WithLabelValues("forbidden").Inc()
			c.AbortWithStatusJSON(http.StatusForbidden,
				restError("rest_forbidden", "Sorry, you are not allowed to do that.", http.StatusForbidden))
			return
		}
		c.Next()
	}
}

// RequireNonce checks the X-WP-Nonce header against the current user.
func RequireNonce(nonces *auth.NonceManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		var userID uint
		if user := CurrentUser(c); user != nil {
			userID = user.ID
		}

		if err := nonces.Verify(c.GetHeader(HeaderNonce), userID, auth.ActionREST); err != nil {
			metrics.AuthFailuresTotal.WithLabelValues("invalid_nonce").Inc()
			c.AbortWithStatusJSON(http.StatusForbidden, MessageInvalidNonce)
			return
		}
		c.Next()
	}
}
