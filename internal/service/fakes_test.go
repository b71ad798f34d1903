package service

import (
	"bytes"
	"context"
	"io"
	"strings"
	"sync"
	"time"

	"assetdeck/api/internal/config"
	"assetdeck/api/internal/models"
	"assetdeck/api/internal/repository"
)

// In-memory stores backing the service tests.

type fakeUsers struct {
	mu   sync.Mutex
	rows map[string]models.User
}

func newFakeUsers() *fakeUsers {
	return &fakeUsers{rows: make(map[string]models.User)}
}

func (f *fakeUsers) Create(_ context.Context, user models.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows[user.ID] = user
	return nil
}

func (f *fakeUsers) FindByEmail(_ context.Context, email string) (models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, user := range f.rows {
		if user.Email == email {
			return user, nil
		}
	}
	return models.User{}, repository.ErrUserNotFound
}

func (f *fakeUsers) GetByID(_ context.Context, id string) (models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	user, ok := f.rows[id]
	if !ok {
		return models.User{}, repository.ErrUserNotFound
	}
	return user, nil
}

func (f *fakeUsers) UpdatePasswordHash(_ context.Context, id string, hash []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	user, ok := f.rows[id]
	if !ok {
		return repository.ErrUserNotFound
	}
	user.PasswordHash = hash
	f.rows[id] = user
	return nil
}

type fakeTokens struct {
	mu   sync.Mutex
	rows map[string]models.RefreshToken
}

func newFakeTokens() *fakeTokens {
	return &fakeTokens{rows: make(map[string]models.RefreshToken)}
}

func (f *fakeTokens) Create(_ context.Context, token string, userID string, expiresAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows[token] = models.RefreshToken{
		Token:     token,
		UserID:    userID,
		ExpiresAt: expiresAt,
		CreatedAt: time.Now(),
	}
	return nil
}

func (f *fakeTokens) FindByToken(_ context.Context, token string) (models.RefreshToken, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	row, ok := f.rows[token]
	if !ok {
		return models.RefreshToken{}, repository.ErrTokenNotFound
	}
	return row, nil
}

func (f *fakeTokens) FindValid(_ context.Context, token string, userID string) (models.RefreshToken, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	row, ok := f.rows[token]
	if !ok || row.UserID != userID || !row.ExpiresAt.After(time.Now()) {
		return models.RefreshToken{}, repository.ErrTokenNotFound
	}
	return row, nil
}

func (f *fakeTokens) DeleteByToken(_ context.Context, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.rows, token)
	return nil
}

func (f *fakeTokens) DeleteByUser(_ context.Context, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for token, row := range f.rows {
		if row.UserID == userID {
			delete(f.rows, token)
		}
	}
	return nil
}

func (f *fakeTokens) DeleteExpired(_ context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var removed int64
	for token, row := range f.rows {
		if !row.ExpiresAt.After(time.Now()) {
			delete(f.rows, token)
			removed++
		}
	}
	return removed, nil
}

func (f *fakeTokens) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.rows)
}

type fakeProducts struct {
	mu   sync.Mutex
	rows map[string]models.Product
}

func newFakeProducts() *fakeProducts {
	return &fakeProducts{rows: make(map[string]models.Product)}
}

func (f *fakeProducts) Create(_ context.Context, product models.Product) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows[product.ID] = product
	return nil
}

func (f *fakeProducts) GetByID(_ context.Context, id string) (models.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	product, ok := f.rows[id]
	if !ok {
		return models.Product{}, repository.ErrProductNotFound
	}
	return product, nil
}

func (f *fakeProducts) Finalize(_ context.Context, id string, name string, description string, priceCents int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	product, ok := f.rows[id]
	if !ok || product.DeletedAt != nil {
		return repository.ErrProductNotFound
	}
	product.Name = name
	product.Description = description
	product.PriceCents = priceCents
	product.Temporary = false
	product.UpdatedAt = time.Now()
	f.rows[id] = product
	return nil
}

func (f *fakeProducts) SoftDelete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	product, ok := f.rows[id]
	if !ok {
		return nil
	}
	now := time.Now()
	product.DeletedAt = &now
	f.rows[id] = product
	return nil
}

func (f *fakeProducts) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.rows, id)
	return nil
}

func (f *fakeProducts) ListByOwner(_ context.Context, ownerID string, limit, offset int) ([]models.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Product
	for _, product := range f.rows {
		if product.OwnerID == ownerID && product.DeletedAt == nil {
			out = append(out, product)
		}
	}
	return out, nil
}

func (f *fakeProducts) ListAbandoned(_ context.Context, olderThan time.Time, limit int) ([]models.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Product
	for _, product := range f.rows {
		if (product.Temporary && product.CreatedAt.Before(olderThan)) || product.DeletedAt != nil {
			out = append(out, product)
		}
	}
	return out, nil
}

type fakeAttachments struct {
	mu   sync.Mutex
	rows []models.Attachment
}

func newFakeAttachments() *fakeAttachments {
	return &fakeAttachments{}
}

func (f *fakeAttachments) Create(_ context.Context, attachment models.Attachment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows = append(f.rows, attachment)
	return nil
}

func (f *fakeAttachments) ListByProduct(_ context.Context, productID string) ([]models.Attachment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Attachment
	for _, attachment := range f.rows {
		if attachment.ProductID == productID {
			out = append(out, attachment)
		}
	}
	return out, nil
}

func (f *fakeAttachments) CountByCategory(_ context.Context, productID string, category models.AttachmentCategory) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	count := 0
	for _, attachment := range f.rows {
		if attachment.ProductID == productID && attachment.Category == category {
			count++
		}
	}
	return count, nil
}

func (f *fakeAttachments) DeleteByProduct(_ context.Context, productID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	kept := f.rows[:0]
	for _, attachment := range f.rows {
		if attachment.ProductID != productID {
			kept = append(kept, attachment)
		}
	}
	f.rows = kept
	return nil
}

type fakeBlobs struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newFakeBlobs() *fakeBlobs {
	return &fakeBlobs{objects: make(map[string][]byte)}
}

func (f *fakeBlobs) Put(_ context.Context, key string, reader io.Reader, size int64, contentType string, metadata map[string]string) error {
	data, err := io.ReadAll(reader)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[key] = data
	return nil
}

func (f *fakeBlobs) RemovePrefix(_ context.Context, prefix string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for key := range f.objects {
		if strings.HasPrefix(key, prefix) {
			delete(f.objects, key)
		}
	}
	return nil
}

func (f *fakeBlobs) PublicURL(key string) string {
	return "https://storage.test/assetdeck-uploads/" + key
}

func (f *fakeBlobs) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.objects)
}

func (f *fakeBlobs) keys() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for key := range f.objects {
		out = append(out, key)
	}
	return out
}

func testConfig() *config.AppConfig {
	return &config.AppConfig{
		Environment: "test",
		Security: config.SecurityConfig{
			JWTSecret:     "test-jwt-secret",
			AccessTTL:     15 * time.Minute,
			RefreshTTL:    168 * time.Hour,
			CleanupSecret: "test-cleanup-secret",
		},
		Uploads: config.UploadsConfig{
			MaxMediaBytes: 25 << 20,
			MaxFileBytes:  512 << 20,
		},
		Cleanup: config.CleanupConfig{
			AbandonedAge: 24 * time.Hour,
			LockTTL:      10 * time.Minute,
		},
	}
}

// pngBytes is a minimal valid-looking PNG head plus filler so the sniffer
// recognizes the upload as an image.
func pngBytes() []byte {
	head := []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}
	return append(head, bytes.Repeat([]byte{0x00}, 64)...)
}
