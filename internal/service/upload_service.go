package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"assetdeck/api/internal/config"
	"assetdeck/api/internal/ids"
	"assetdeck/api/internal/media/sniffer"
	"assetdeck/api/internal/media/svg"
	"assetdeck/api/internal/models"
	"assetdeck/api/internal/repository"
	"assetdeck/api/internal/security"
	"assetdeck/api/internal/storage"
)

var (
	ErrNotOwner       = errors.New("not the product owner")
	ErrProductDeleted = errors.New("product deleted")
	ErrFileTooLarge   = errors.New("file too large")
	// ErrInvalidUpload marks client-side payload problems, surfaced as 400
	// rather than 500.
	ErrInvalidUpload = errors.New("invalid upload")
)

type UploadService struct {
	products    ProductStore
	attachments AttachmentStore
	store       BlobStore
	cfg         *config.AppConfig
	log         zerolog.Logger
}

func NewUploadService(products ProductStore, attachments AttachmentStore, store BlobStore, cfg *config.AppConfig, log zerolog.Logger) *UploadService {
	return &UploadService{
		products:    products,
		attachments: attachments,
		store:       store,
		cfg:         cfg,
		log:         log,
	}
}

// CreateProvisional anchors an upload flow before the product has a real
// identity. It returns the product plus the credential the client's
// abandonment beacon will present to the cleanup endpoint.
func (s *UploadService) CreateProvisional(ctx context.Context, owner security.Identity) (models.Product, string, error) {
	product := models.Product{
		ID:        ids.New(),
		OwnerID:   owner.ID,
		Name:      models.TemporaryProductName,
		Temporary: true,
	}
	now := time.Now().UTC()
	product.CreatedAt = now
	product.UpdatedAt = now

	if err := s.products.Create(ctx, product); err != nil {
		return models.Product{}, "", fmt.Errorf("create provisional product: %w", err)
	}

	credential := security.CleanupCredential(s.cfg.Security.CleanupSecret, product.ID, owner.ID)
	return product, credential, nil
}

type UploadAttachmentInput struct {
	Owner     security.Identity
	ProductID string
	Category  models.AttachmentCategory
	File      multipart.File
	Header    *multipart.FileHeader
	// Sort is the client's pre-upload snapshot of its completed media
	// count. Concurrent uploads can carry colliding values; persisted
	// as-is. Absent means count at insert time.
	Sort *int
}

func (s *UploadService) UploadAttachment(ctx context.Context, input UploadAttachmentInput) (models.Attachment, error) {
	if input.File == nil || input.Header == nil {
		return models.Attachment{}, errors.New("invalid file payload")
	}

	product, err := s.ownedProduct(ctx, input.Owner, input.ProductID)
	if err != nil {
		return models.Attachment{}, err
	}

	data, err := io.ReadAll(input.File)
	if err != nil {
		return models.Attachment{}, fmt.Errorf("read file: %w", err)
	}
	if len(data) == 0 {
		return models.Attachment{}, fmt.Errorf("empty file: %w", ErrInvalidUpload)
	}

	maxBytes := s.cfg.Uploads.MaxFileBytes
	if input.Category == models.CategoryMedia {
		maxBytes = s.cfg.Uploads.MaxMediaBytes
	}
	if maxBytes > 0 && int64(len(data)) > maxBytes {
		return models.Attachment{}, ErrFileTooLarge
	}

	mimeType := sniffer.MimeTypeFromHTTP(http.Header(input.Header.Header))

	if input.Category == models.CategoryMedia {
		head := data
		if len(head) > 512 {
			head = head[:512]
		}
		result, err := sniffer.DetectHead(head)
		if err != nil {
			return models.Attachment{}, fmt.Errorf("detect type: %v: %w", err, ErrInvalidUpload)
		}
		if mimeType != "" && mimeType != result.MIME {
			return models.Attachment{}, fmt.Errorf("content type mismatch: declared %s, actual %s: %w", mimeType, result.MIME, ErrInvalidUpload)
		}
		mimeType = result.MIME

		if result.Type == sniffer.TypeSVG {
			clean, err := svg.Sanitize(data)
			if err != nil {
				return models.Attachment{}, fmt.Errorf("sanitize svg: %v: %w", err, ErrInvalidUpload)
			}
			data = clean
		}
	}
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}

	generatedName := storage.GenerateObjectName(input.Header.Filename)
	key := storage.ObjectKey(product.ID, input.Category, generatedName)

	metadata := map[string]string{
		"uploader-id":   input.Owner.ID,
		"original-name": input.Header.Filename,
		"uploaded-at":   time.Now().UTC().Format(time.RFC3339),
	}

	if err := s.store.Put(ctx, key, bytes.NewReader(data), int64(len(data)), mimeType, metadata); err != nil {
		return models.Attachment{}, err
	}

	sort := 0
	if input.Sort != nil {
		sort = *input.Sort
	} else {
		count, err := s.attachments.CountByCategory(ctx, product.ID, input.Category)
		if err != nil {
			return models.Attachment{}, err
		}
		sort = count
	}

	attachment := models.Attachment{
		ID:           ids.New(),
		ProductID:    product.ID,
		Category:     input.Category,
		FileName:     generatedName,
		OriginalName: input.Header.Filename,
		SizeBytes:    int64(len(data)),
		MimeType:     mimeType,
		SortOrder:    sort,
		StorageURL:   s.store.PublicURL(key),
	}
	attachment.CreatedAt = time.Now().UTC()

	if err := s.attachments.Create(ctx, attachment); err != nil {
		return models.Attachment{}, fmt.Errorf("save attachment: %w", err)
	}

	return attachment, nil
}

type FinalizeInput struct {
	Owner       security.Identity
	ProductID   string
	Name        string
	Description string
	PriceCents  int64
}

func (s *UploadService) Finalize(ctx context.Context, input FinalizeInput) (models.Product, error) {
	if input.Name == "" {
		return models.Product{}, errors.New("name required")
	}
	if input.PriceCents < 0 {
		return models.Product{}, errors.New("price must not be negative")
	}

	if _, err := s.ownedProduct(ctx, input.Owner, input.ProductID); err != nil {
		return models.Product{}, err
	}

	if err := s.products.Finalize(ctx, input.ProductID, input.Name, input.Description, input.PriceCents); err != nil {
		return models.Product{}, err
	}
	return s.products.GetByID(ctx, input.ProductID)
}

func (s *UploadService) ownedProduct(ctx context.Context, owner security.Identity, productID string) (models.Product, error) {
	product, err := s.products.GetByID(ctx, productID)
	if err != nil {
		return models.Product{}, err
	}
	if product.DeletedAt != nil {
		return models.Product{}, ErrProductDeleted
	}
	if product.OwnerID != owner.ID && owner.Role != string(models.UserRoleAdmin) {
		return models.Product{}, ErrNotOwner
	}
	return product, nil
}

// IsNotFound reports whether err is the product store's not-found sentinel.
func IsNotFound(err error) bool {
	return errors.Is(err, repository.ErrProductNotFound)
}
