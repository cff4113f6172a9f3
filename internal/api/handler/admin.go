package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/clipforge/medialib/internal/service"
)

// AdminHandler serves library maintenance endpoints: stats, ingestion by
// URL, and garbage collection.
type AdminHandler struct {
	library *service.Library
}

// NewAdminHandler creates a new admin handler.
func NewAdminHandler(library *service.Library) *AdminHandler {
	return &AdminHandler{
		library: library,
	}
}

// Stats handles GET /api/v1/stats.
func (h *AdminHandler) Stats(c *gin.Context) {
	stats, err := h.library.Stats(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to compute stats: " + err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, stats)
}

// IngestRequest is the JSON body for POST /api/v1/ingest.
type IngestRequest struct {
	URL      string   `json:"url" binding:"required"`
	Tags     []string `json:"tags" binding:"required"`
	Provider string   `json:"provider"`
}

// Ingest handles POST /api/v1/ingest: download a URL and store it.
// Parameters:
//   - c: Gin request context.
//
// Returns: none (writes JSON response).
func (h *AdminHandler) Ingest(c *gin.Context) {
	var req IngestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request: " + err.Error(),
		})
		return
	}

	image, video, err := h.library.IngestRemote(c.Request.Context(), req.URL, req.Tags, service.IngestOptions{
		Provider:  req.Provider,
		SourceURL: req.URL,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrNoTags), errors.Is(err, service.ErrUnsupportedExt):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		case errors.Is(err, service.ErrQuotaExceeded):
			// Retryable: a background GC pass has been scheduled.
			c.JSON(http.StatusInsufficientStorage, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Ingestion failed: " + err.Error(),
			})
		}
		return
	}

	if image != nil {
		c.JSON(http.StatusOK, gin.H{"kind": "image", "asset": image})
		return
	}
	c.JSON(http.StatusOK, gin.H{"kind": "video", "asset": video})
}

// GCRequest is the JSON body for POST /api/v1/gc.
type GCRequest struct {
	TargetBytes  int64    `json:"target_bytes"`
	DryRun       bool     `json:"dry_run"`
	ProtectedIDs []string `json:"protected_ids"`
}

// GarbageCollect handles POST /api/v1/gc.
// Parameters:
//   - c: Gin request context.
//
// Returns: none (writes JSON response).
func (h *AdminHandler) GarbageCollect(c *gin.Context) {
	var req GCRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request: " + err.Error(),
		})
		return
	}

	result, err := h.library.GarbageCollect(c.Request.Context(), service.GCOptions{
		TargetBytes:  req.TargetBytes,
		DryRun:       req.DryRun,
		ProtectedIDs: req.ProtectedIDs,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Garbage collection failed: " + err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, result)
}

// GCRuns handles GET /api/v1/gc/runs.
func (h *AdminHandler) GCRuns(c *gin.Context) {
	limit := 20
	runs, err := h.library.GCRuns(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to load runs: " + err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"runs":  runs,
		"count": len(runs),
	})
}
