package handlers

import (
	"errors"
	"net/http"

	"affimporter/internal/logger"
	"affimporter/internal/services/settings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

type SettingsHandler struct {
	settings *settings.Service
	logger   *logger.Logger
}

func NewSettingsHandler(settings *settings.Service, logger *logger.Logger) *SettingsHandler {
	return &SettingsHandler{
		settings: settings,
		logger:   logger,
	}
}

// bindSettings decodes the body, leaving field validation to the settings
// service so that rejections carry its messages.
func bindSettings(c *gin.Context, obj interface{}) bool {
	err := c.ShouldBindJSON(obj)
	var verrs validator.ValidationErrors
	if err != nil && !errors.As(err, &verrs) {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid request body"})
		return false
	}
	return true
}

func (h *SettingsHandler) respondError(c *gin.Context, err error, action string) {
	if errors.Is(err, settings.ErrInvalidSettings) {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}
	h.logger.Error("Failed to %s: %v", action, err)
	c.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to " + action})
}

func (h *SettingsHandler) GetAmazon(c *gin.Context) {
	s, err := h.settings.Amazon(c.Request.Context())
	if err != nil {
		h.respondError(c, err, "fetch Amazon API settings")
		return
	}
	c.JSON(http.StatusOK, s)
}

func (h *SettingsHandler) SaveAmazon(c *gin.Context) {
	var req settings.AmazonSettings
	if !bindSettings(c, &req) {
		return
	}

	if err := h.settings.SaveAmazon(c.Request.Context(), req); err != nil {
		h.respondError(c, err, "save Amazon API settings")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Settings saved"})
}

func (h *SettingsHandler) VerifyAmazon(c *gin.Context) {
	var req settings.AmazonSettings
	if !bindSettings(c, &req) {
		return
	}

	if err := h.settings.VerifyAmazon(req); err != nil {
		h.respondError(c, err, "verify Amazon API settings")
		return
	}
	c.JSON(http.StatusOK, gin.H{"valid": true})
}

func (h *SettingsHandler) GetGeneral(c *gin.Context) {
	s, err := h.settings.General(c.Request.Context())
	if err != nil {
		h.respondError(c, err, "fetch settings")
		return
	}
	c.JSON(http.StatusOK, s)
}

func (h *SettingsHandler) SaveGeneral(c *gin.Context) {
	var req settings.GeneralSettings
	if !bindSettings(c, &req) {
		return
	}

	if err := h.settings.SaveGeneral(c.Request.Context(), req); err != nil {
		h.respondError(c, err, "save settings")
		return
	}
	c.JSON(http.StatusOK, req)
}
