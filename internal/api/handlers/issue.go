package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"affimporter/internal/logger"
	"affimporter/internal/models"
	"affimporter/internal/store"

	"github.com/gin-gonic/gin"
)

const maxIssuePage = 1_000_000

// IssueHandler exposes candidates that were skipped or failed during import.
type IssueHandler struct {
	issues store.IssueStore
	logger *logger.Logger
}

func NewIssueHandler(issues store.IssueStore, logger *logger.Logger) *IssueHandler {
	return &IssueHandler{
		issues: issues,
		logger: logger,
	}
}

func (h *IssueHandler) List(c *gin.Context) {
	// Pagination
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if page < 1 {
		page = 1
	}
	if page > maxIssuePage {
		page = maxIssuePage
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}

	filter := store.IssueFilter{
		BatchID: c.Query("batch_id"),
		Limit:   limit,
		Offset:  (page - 1) * limit,
	}

	switch c.Query("resolved") {
	case "true":
		resolved := true
		filter.Resolved = &resolved
	case "false":
		resolved := false
		filter.Resolved = &resolved
	}

	issues, total, err := h.issues.ListIssues(c.Request.Context(), filter)
	if err != nil {
		h.logger.Error("Failed to list import issues: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch issues"})
		return
	}
	if issues == nil {
		issues = []models.ImportIssue{}
	}

	c.JSON(http.StatusOK, gin.H{
		"data": issues,
		"pagination": gin.H{
			"page":  page,
			"limit": limit,
			"total": total,
		},
	})
}

func (h *IssueHandler) Resolve(c *gin.Context) {
	issue, err := h.issues.ResolveIssue(c.Request.Context(), c.Param("id"), time.Now())
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Issue not found"})
		return
	}
	if err != nil {
		h.logger.Error("Failed to resolve import issue: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to resolve issue"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": issue})
}
