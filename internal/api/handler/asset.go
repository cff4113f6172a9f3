package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/clipforge/medialib/internal/domain"
	"github.com/clipforge/medialib/internal/service"
)

// AssetHandler serves individual asset metadata and usage tracking.
type AssetHandler struct {
	library *service.Library
}

// NewAssetHandler creates a new asset handler.
func NewAssetHandler(library *service.Library) *AssetHandler {
	return &AssetHandler{
		library: library,
	}
}

// GetAsset handles GET /api/v1/assets/:kind/:id.
// Parameters:
//   - c: Gin request context.
//
// Returns: none (writes JSON response).
func (h *AssetHandler) GetAsset(c *gin.Context) {
	kind := domain.AssetKind(c.Param("kind"))
	if !kind.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Unknown asset kind: " + c.Param("kind"),
		})
		return
	}
	id := c.Param("id")

	var (
		asset interface{}
		err   error
	)
	switch kind {
	case domain.AssetKindImage:
		asset, err = h.library.GetImage(c.Request.Context(), id)
	case domain.AssetKindVideo:
		asset, err = h.library.GetVideo(c.Request.Context(), id)
	}
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Asset not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to load asset: " + err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, asset)
}

// MarkUsedRequest is the JSON body for POST /api/v1/assets/mark-used.
type MarkUsedRequest struct {
	Kind domain.AssetKind `json:"kind" binding:"required"`
	IDs  []string         `json:"ids" binding:"required"`
}

// MarkUsed handles POST /api/v1/assets/mark-used. Touching assets shields
// them from LRU eviction.
// Parameters:
//   - c: Gin request context.
//
// Returns: none (writes JSON response).
func (h *AssetHandler) MarkUsed(c *gin.Context) {
	var req MarkUsedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request: " + err.Error(),
		})
		return
	}
	if !req.Kind.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Unknown asset kind: " + string(req.Kind),
		})
		return
	}

	if err := h.library.MarkUsed(c.Request.Context(), req.Kind, req.IDs); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to mark assets used: " + err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"marked": len(req.IDs),
	})
}
