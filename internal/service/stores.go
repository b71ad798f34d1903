package service

import (
	"context"
	"io"
	"time"

	"assetdeck/api/internal/models"
)

// Store interfaces are satisfied by the pgx repositories and by the
// object-storage gateway. Tests substitute in-memory fakes.

type UserStore interface {
	Create(ctx context.Context, user models.User) error
	FindByEmail(ctx context.Context, email string) (models.User, error)
	GetByID(ctx context.Context, id string) (models.User, error)
	UpdatePasswordHash(ctx context.Context, id string, hash []byte) error
}

type RefreshTokenStore interface {
	Create(ctx context.Context, token string, userID string, expiresAt time.Time) error
	FindByToken(ctx context.Context, token string) (models.RefreshToken, error)
	FindValid(ctx context.Context, token string, userID string) (models.RefreshToken, error)
	DeleteByToken(ctx context.Context, token string) error
	DeleteByUser(ctx context.Context, userID string) error
	DeleteExpired(ctx context.Context) (int64, error)
}

type ProductStore interface {
	Create(ctx context.Context, product models.Product) error
	GetByID(ctx context.Context, id string) (models.Product, error)
	Finalize(ctx context.Context, id string, name string, description string, priceCents int64) error
	SoftDelete(ctx context.Context, id string) error
	Delete(ctx context.Context, id string) error
	ListByOwner(ctx context.Context, ownerID string, limit, offset int) ([]models.Product, error)
	ListAbandoned(ctx context.Context, olderThan time.Time, limit int) ([]models.Product, error)
}

type AttachmentStore interface {
	Create(ctx context.Context, attachment models.Attachment) error
	ListByProduct(ctx context.Context, productID string) ([]models.Attachment, error)
	CountByCategory(ctx context.Context, productID string, category models.AttachmentCategory) (int, error)
	DeleteByProduct(ctx context.Context, productID string) error
}

type BlobStore interface {
	Put(ctx context.Context, key string, reader io.Reader, size int64, contentType string, metadata map[string]string) error
	RemovePrefix(ctx context.Context, prefix string) error
	PublicURL(key string) string
}
