package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

// AdminListAbandoned surfaces the provisional products the sweep would
// reclaim, for operator visibility before pulling the trigger.
func (h HandlerSet) AdminListAbandoned(c *gin.Context) {
	limit := 50
	if perPage := c.Query("perPage"); perPage != "" {
		if v, err := strconv.Atoi(perPage); err == nil && v > 0 && v <= 200 {
			limit = v
		}
	}

	cutoff := time.Now().Add(-h.cfg.Cleanup.AbandonedAge)
	products, err := h.products.ListAbandoned(c.Request.Context(), cutoff, limit)
	if err != nil {
		h.log.Error().Err(err).Msg("list abandoned failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	items := make([]map[string]interface{}, 0, len(products))
	for _, product := range products {
		items = append(items, map[string]interface{}{
			"id":        product.ID,
			"ownerId":   product.OwnerID,
			"temporary": product.Temporary,
			"deletedAt": product.DeletedAt,
			"createdAt": product.CreatedAt,
		})
	}

	c.JSON(http.StatusOK, gin.H{"items": items})
}

func (h HandlerSet) AdminSweep(c *gin.Context) {
	cleaned, err := h.cleanupService.Sweep(c.Request.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("manual sweep failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"cleaned": cleaned})
}
