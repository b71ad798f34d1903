package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"assetdeck/api/internal/repository"
	"assetdeck/api/internal/security"

	"errors"
)

type cleanupRequest struct {
	Token string `json:"token" binding:"required"`
}

// CleanupProduct is the target of the client's abandonment beacon. The
// credential arrives in the body because sendBeacon cannot set headers.
// Idempotent by contract: cleaning already-deleted state is success, so the
// browser can fire the beacon without caring whether it raced the sweep.
func (h HandlerSet) CleanupProduct(c *gin.Context) {
	productID := c.Param("id")

	var req cleanupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "token required"})
		return
	}

	product, err := h.products.GetByID(c.Request.Context(), productID)
	if err != nil {
		if errors.Is(err, repository.ErrProductNotFound) {
			c.Status(http.StatusNoContent)
			return
		}
		h.log.Error().Err(err).Str("product_id", productID).Msg("cleanup lookup failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	if !security.VerifyCleanupCredential(h.cfg.Security.CleanupSecret, product.ID, product.OwnerID, req.Token) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	// Finalized live products are not beacon-cleanable; a stale beacon
	// must not destroy a published listing.
	if !product.Temporary && product.DeletedAt == nil {
		c.JSON(http.StatusConflict, gin.H{"error": "product already finalized"})
		return
	}

	if err := h.cleanupService.CleanupProduct(c.Request.Context(), productID); err != nil {
		// Best-effort path: the sweep is the authoritative fallback.
		h.log.Warn().Err(err).Str("product_id", productID).Msg("beacon cleanup failed, sweep will retry")
	}

	c.Status(http.StatusNoContent)
}
