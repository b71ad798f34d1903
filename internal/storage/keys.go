package storage

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"path"
	"strings"
	"time"

	"assetdeck/api/internal/models"
)

// ObjectKey namespaces every attachment object by product and category:
// products/{productID}/{category}/{generatedName}.
func ObjectKey(productID string, category models.AttachmentCategory, generatedName string) string {
	return path.Join("products", productID, string(category), generatedName)
}

func ProductPrefix(productID string, category models.AttachmentCategory) string {
	return path.Join("products", productID, string(category)) + "/"
}

// GenerateObjectName derives a collision-resistant object name from a
// timestamp, a random suffix and the original extension. The raw upload
// filename never reaches the key space.
func GenerateObjectName(originalName string) string {
	suffix := make([]byte, 6)
	_, _ = rand.Read(suffix)

	ext := strings.ToLower(path.Ext(originalName))
	if len(ext) > 10 {
		ext = ""
	}
	return fmt.Sprintf("%d-%s%s", time.Now().UnixMilli(), hex.EncodeToString(suffix), ext)
}
