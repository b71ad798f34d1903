package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"assetdeck/api/internal/middleware"
	"assetdeck/api/internal/models"
	"assetdeck/api/internal/service"
)

type productResponse struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	PriceCents  int64     `json:"priceCents"`
	Temporary   bool      `json:"temporary"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

type attachmentResponse struct {
	ID           string `json:"id"`
	Category     string `json:"category"`
	FileName     string `json:"fileName"`
	OriginalName string `json:"originalName"`
	SizeBytes    int64  `json:"sizeBytes"`
	MimeType     string `json:"mimeType"`
	Sort         int    `json:"sort"`
	URL          string `json:"url"`
}

// CreateProduct creates a provisional product that anchors the upload flow.
// The returned cleanupToken is the credential for the abandonment beacon.
func (h HandlerSet) CreateProduct(c *gin.Context) {
	identity, _ := middleware.CurrentIdentity(c)

	product, credential, err := h.uploadService.CreateProvisional(c.Request.Context(), identity)
	if err != nil {
		h.log.Error().Err(err).Str("user_id", identity.ID).Msg("create provisional product failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"id":           product.ID,
		"cleanupToken": credential,
	})
}

type finalizeRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
	PriceCents  int64  `json:"priceCents" binding:"min=0"`
}

func (h HandlerSet) FinalizeProduct(c *gin.Context) {
	identity, _ := middleware.CurrentIdentity(c)

	var req finalizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}

	product, err := h.uploadService.Finalize(c.Request.Context(), service.FinalizeInput{
		Owner:       identity,
		ProductID:   c.Param("id"),
		Name:        req.Name,
		Description: req.Description,
		PriceCents:  req.PriceCents,
	})
	if err != nil {
		h.respondProductError(c, identity.ID, err, "finalize product failed")
		return
	}

	c.JSON(http.StatusOK, gin.H{"product": toProductResponse(product)})
}

func (h HandlerSet) GetProduct(c *gin.Context) {
	identity, _ := middleware.CurrentIdentity(c)
	productID := c.Param("id")

	product, err := h.products.GetByID(c.Request.Context(), productID)
	if err != nil {
		h.respondProductError(c, identity.ID, err, "get product failed")
		return
	}
	if product.OwnerID != identity.ID && identity.Role != string(models.UserRoleAdmin) {
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
		return
	}

	attachments, err := h.attachments.ListByProduct(c.Request.Context(), productID)
	if err != nil {
		h.log.Error().Err(err).Str("product_id", productID).Msg("list attachments failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	items := make([]attachmentResponse, 0, len(attachments))
	for _, attachment := range attachments {
		items = append(items, toAttachmentResponse(attachment))
	}

	c.JSON(http.StatusOK, gin.H{
		"product":     toProductResponse(product),
		"attachments": items,
	})
}

func (h HandlerSet) ListProducts(c *gin.Context) {
	identity, _ := middleware.CurrentIdentity(c)

	limit := 50
	offset := 0
	if perPage := c.Query("perPage"); perPage != "" {
		if v, err := strconv.Atoi(perPage); err == nil && v > 0 && v <= 200 {
			limit = v
		}
	}
	if page := c.Query("page"); page != "" {
		if v, err := strconv.Atoi(page); err == nil && v > 1 {
			offset = (v - 1) * limit
		}
	}

	products, err := h.products.ListByOwner(c.Request.Context(), identity.ID, limit, offset)
	if err != nil {
		h.log.Error().Err(err).Str("user_id", identity.ID).Msg("list products failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	items := make([]productResponse, 0, len(products))
	for _, product := range products {
		items = append(items, toProductResponse(product))
	}

	c.JSON(http.StatusOK, gin.H{"items": items})
}

// DeleteProduct soft-deletes the row, then attempts cleanup right away.
// If that fails the sweep reclaims the leftovers later.
func (h HandlerSet) DeleteProduct(c *gin.Context) {
	identity, _ := middleware.CurrentIdentity(c)
	productID := c.Param("id")

	product, err := h.products.GetByID(c.Request.Context(), productID)
	if err != nil {
		h.respondProductError(c, identity.ID, err, "delete product failed")
		return
	}
	if product.OwnerID != identity.ID && identity.Role != string(models.UserRoleAdmin) {
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
		return
	}

	if err := h.products.SoftDelete(c.Request.Context(), productID); err != nil {
		h.log.Error().Err(err).Str("product_id", productID).Msg("soft delete failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	if err := h.cleanupService.CleanupProduct(c.Request.Context(), productID); err != nil {
		h.log.Warn().Err(err).Str("product_id", productID).Msg("immediate cleanup failed, sweep will retry")
	}

	c.Status(http.StatusNoContent)
}

func (h HandlerSet) respondProductError(c *gin.Context, userID string, err error, logMsg string) {
	switch {
	case service.IsNotFound(err):
		c.JSON(http.StatusNotFound, gin.H{"error": "product not found"})
	case errors.Is(err, service.ErrNotOwner):
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
	case errors.Is(err, service.ErrProductDeleted):
		c.JSON(http.StatusNotFound, gin.H{"error": "product not found"})
	default:
		h.log.Error().Err(err).Str("user_id", userID).Msg(logMsg)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func toProductResponse(product models.Product) productResponse {
	return productResponse{
		ID:          product.ID,
		Name:        product.Name,
		Description: product.Description,
		PriceCents:  product.PriceCents,
		Temporary:   product.Temporary,
		CreatedAt:   product.CreatedAt,
		UpdatedAt:   product.UpdatedAt,
	}
}

func toAttachmentResponse(attachment models.Attachment) attachmentResponse {
	return attachmentResponse{
		ID:           attachment.ID,
		Category:     string(attachment.Category),
		FileName:     attachment.FileName,
		OriginalName: attachment.OriginalName,
		SizeBytes:    attachment.SizeBytes,
		MimeType:     attachment.MimeType,
		Sort:         attachment.SortOrder,
		URL:          attachment.StorageURL,
	}
}
