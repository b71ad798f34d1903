package service

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"assetdeck/api/internal/config"
	"assetdeck/api/internal/models"
	"assetdeck/api/internal/repository"
	"assetdeck/api/internal/storage"
)

const sweepLockKey = "cleanup:sweep:lock"

// CleanupService removes a provisional product's storage objects and
// database rows. The beacon endpoint and the scheduled sweep both funnel
// through CleanupProduct; the main upload flow never depends on either
// succeeding.
type CleanupService struct {
	products    ProductStore
	attachments AttachmentStore
	tokens      RefreshTokenStore
	store       BlobStore
	locker      *redis.Client
	cfg         *config.AppConfig
	log         zerolog.Logger
}

func NewCleanupService(
	products ProductStore,
	attachments AttachmentStore,
	tokens RefreshTokenStore,
	store BlobStore,
	locker *redis.Client,
	cfg *config.AppConfig,
	log zerolog.Logger,
) *CleanupService {
	return &CleanupService{
		products:    products,
		attachments: attachments,
		tokens:      tokens,
		store:       store,
		locker:      locker,
		cfg:         cfg,
		log:         log,
	}
}

// CleanupProduct deletes storage objects under both category prefixes, then
// the attachment rows, then the product row. Idempotent: an already-deleted
// product is success, and a repeat call sees nothing to remove.
func (s *CleanupService) CleanupProduct(ctx context.Context, productID string) error {
	if _, err := s.products.GetByID(ctx, productID); err != nil {
		if errors.Is(err, repository.ErrProductNotFound) {
			return nil
		}
		return err
	}

	for _, category := range []models.AttachmentCategory{models.CategoryMedia, models.CategoryFiles} {
		prefix := storage.ProductPrefix(productID, category)
		if err := s.store.RemovePrefix(ctx, prefix); err != nil {
			return err
		}
	}

	if err := s.attachments.DeleteByProduct(ctx, productID); err != nil {
		return err
	}
	if err := s.products.Delete(ctx, productID); err != nil {
		return err
	}

	s.log.Info().Str("product_id", productID).Msg("provisional product cleaned up")
	return nil
}

// Sweep reclaims abandoned provisional products whose cleanup beacon never
// arrived, plus expired refresh-token rows. A redis lock keeps concurrent
// instances from sweeping the same state; losing the lock race is not an
// error.
func (s *CleanupService) Sweep(ctx context.Context) (int, error) {
	if s.locker != nil {
		acquired, err := s.locker.SetNX(ctx, sweepLockKey, "1", s.cfg.Cleanup.LockTTL).Result()
		if err != nil {
			return 0, err
		}
		if !acquired {
			s.log.Debug().Msg("sweep lock held elsewhere, skipping")
			return 0, nil
		}
		defer s.locker.Del(context.WithoutCancel(ctx), sweepLockKey)
	}

	cutoff := time.Now().Add(-s.cfg.Cleanup.AbandonedAge)
	abandoned, err := s.products.ListAbandoned(ctx, cutoff, 100)
	if err != nil {
		return 0, err
	}

	cleaned := 0
	for _, product := range abandoned {
		if err := s.CleanupProduct(ctx, product.ID); err != nil {
			s.log.Error().Err(err).Str("product_id", product.ID).Msg("sweep cleanup failed")
			continue
		}
		cleaned++
	}

	if removed, err := s.tokens.DeleteExpired(ctx); err != nil {
		s.log.Error().Err(err).Msg("delete expired refresh tokens failed")
	} else if removed > 0 {
		s.log.Info().Int64("removed", removed).Msg("expired refresh tokens purged")
	}

	return cleaned, nil
}
