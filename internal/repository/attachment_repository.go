package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5/pgxpool"

	"assetdeck/api/internal/models"
)

var ErrAttachmentNotFound = errors.New("attachment not found")

type AttachmentRepository struct {
	pool *pgxpool.Pool
}

func NewAttachmentRepository(pool *pgxpool.Pool) *AttachmentRepository {
	return &AttachmentRepository{pool: pool}
}

func (r *AttachmentRepository) Create(ctx context.Context, attachment models.Attachment) error {
	const query = `
		INSERT INTO attachments (
			id, product_id, category, file_name, original_name, size_bytes,
			mime_type, sort_order, storage_url, created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, NOW()
		)
	`
	_, err := r.pool.Exec(ctx, query,
		attachment.ID,
		attachment.ProductID,
		attachment.Category,
		attachment.FileName,
		attachment.OriginalName,
		attachment.SizeBytes,
		attachment.MimeType,
		attachment.SortOrder,
		attachment.StorageURL,
	)
	return err
}

func (r *AttachmentRepository) ListByProduct(ctx context.Context, productID string) ([]models.Attachment, error) {
	const query = `
		SELECT id, product_id, category, file_name, original_name, size_bytes,
		       mime_type, sort_order, storage_url, created_at
		FROM attachments
		WHERE product_id = $1
		ORDER BY category, sort_order, created_at
	`
	rows, err := r.pool.Query(ctx, query, productID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var attachments []models.Attachment
	for rows.Next() {
		var attachment models.Attachment
		if err := rows.Scan(
			&attachment.ID,
			&attachment.ProductID,
			&attachment.Category,
			&attachment.FileName,
			&attachment.OriginalName,
			&attachment.SizeBytes,
			&attachment.MimeType,
			&attachment.SortOrder,
			&attachment.StorageURL,
			&attachment.CreatedAt,
		); err != nil {
			return nil, err
		}
		attachments = append(attachments, attachment)
	}
	return attachments, rows.Err()
}

func (r *AttachmentRepository) CountByCategory(ctx context.Context, productID string, category models.AttachmentCategory) (int, error) {
	const query = `
		SELECT COUNT(*) FROM attachments WHERE product_id = $1 AND category = $2
	`
	var count int
	if err := r.pool.QueryRow(ctx, query, productID, category).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

func (r *AttachmentRepository) DeleteByProduct(ctx context.Context, productID string) error {
	const query = `DELETE FROM attachments WHERE product_id = $1`
	_, err := r.pool.Exec(ctx, query, productID)
	return err
}
