package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/clipforge/medialib/internal/service"
)

// SearchRequest is the JSON body accepted by the search endpoints.
type SearchRequest struct {
	Tags          []string `json:"tags" binding:"required"`
	Limit         int      `json:"limit"`
	MinWidth      int      `json:"min_width"`
	MinHeight     int      `json:"min_height"`
	MinDurationMs int64    `json:"min_duration_ms"`
	AspectRatio   float64  `json:"aspect_ratio"`
	RecencyBoost  float64  `json:"recency_boost"`
}

func (r *SearchRequest) options() service.SearchOptions {
	return service.SearchOptions{
		Limit:         r.Limit,
		MinWidth:      r.MinWidth,
		MinHeight:     r.MinHeight,
		MinDurationMs: r.MinDurationMs,
		AspectRatio:   r.AspectRatio,
		RecencyBoost:  r.RecencyBoost,
	}
}

// SearchHandler handles search-related endpoints.
type SearchHandler struct {
	library *service.Library
}

// NewSearchHandler creates a new search handler.
// Parameters:
//   - library: library facade instance.
//
// Returns:
//   - *SearchHandler: initialized handler.
func NewSearchHandler(library *service.Library) *SearchHandler {
	return &SearchHandler{
		library: library,
	}
}

// SearchImages handles POST /api/v1/search/images.
// Parameters:
//   - c: Gin request context.
//
// Returns: none (writes JSON response).
func (h *SearchHandler) SearchImages(c *gin.Context) {
	var req SearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request: " + err.Error(),
		})
		return
	}

	results, err := h.library.SearchImages(c.Request.Context(), req.Tags, req.options())
	if err != nil {
		if errors.Is(err, service.ErrEmptyQuery) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Search failed: " + err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"results": results,
		"count":   len(results),
	})
}

// SearchVideos handles POST /api/v1/search/videos.
// Parameters:
//   - c: Gin request context.
//
// Returns: none (writes JSON response).
func (h *SearchHandler) SearchVideos(c *gin.Context) {
	var req SearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request: " + err.Error(),
		})
		return
	}

	results, err := h.library.SearchVideos(c.Request.Context(), req.Tags, req.options())
	if err != nil {
		if errors.Is(err, service.ErrEmptyQuery) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Search failed: " + err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"results": results,
		"count":   len(results),
	})
}
