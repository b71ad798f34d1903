package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"assetdeck/api/internal/middleware"
	"assetdeck/api/internal/models"
	"assetdeck/api/internal/service"
)

func (h HandlerSet) UploadMedia(c *gin.Context) {
	h.uploadAttachment(c, models.CategoryMedia)
}

func (h HandlerSet) UploadFile(c *gin.Context) {
	h.uploadAttachment(c, models.CategoryFiles)
}

func (h HandlerSet) uploadAttachment(c *gin.Context, category models.AttachmentCategory) {
	identity, _ := middleware.CurrentIdentity(c)
	productID := c.Param("id")

	file, header, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file required"})
		return
	}
	defer file.Close()

	// Optional client-side sort snapshot; see UploadAttachmentInput.Sort.
	var sort *int
	if raw := c.PostForm("sort"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v >= 0 {
			sort = &v
		}
	}

	attachment, err := h.uploadService.UploadAttachment(c.Request.Context(), service.UploadAttachmentInput{
		Owner:     identity,
		ProductID: productID,
		Category:  category,
		File:      file,
		Header:    header,
		Sort:      sort,
	})
	if err != nil {
		switch {
		case service.IsNotFound(err), errors.Is(err, service.ErrProductDeleted):
			c.JSON(http.StatusNotFound, gin.H{"error": "product not found"})
		case errors.Is(err, service.ErrNotOwner):
			c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
		case errors.Is(err, service.ErrFileTooLarge):
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "file too large"})
		case errors.Is(err, service.ErrInvalidUpload):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		default:
			h.log.Error().Err(err).
				Str("user_id", identity.ID).
				Str("product_id", productID).
				Msg("upload failed")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"attachment": toAttachmentResponse(attachment)})
}
