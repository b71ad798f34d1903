package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"assetdeck/api/internal/models"
)

var ErrProductNotFound = errors.New("product not found")

type ProductRepository struct {
	pool *pgxpool.Pool
}

func NewProductRepository(pool *pgxpool.Pool) *ProductRepository {
	return &ProductRepository{pool: pool}
}

func (r *ProductRepository) Create(ctx context.Context, product models.Product) error {
	const query = `
		INSERT INTO products (
			id, owner_id, name, description, price_cents, temporary, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, NOW(), NOW()
		)
	`
	_, err := r.pool.Exec(ctx, query,
		product.ID,
		product.OwnerID,
		product.Name,
		product.Description,
		product.PriceCents,
		product.Temporary,
	)
	return err
}

func (r *ProductRepository) GetByID(ctx context.Context, id string) (models.Product, error) {
	const query = `
		SELECT id, owner_id, name, description, price_cents, temporary, deleted_at, created_at, updated_at
		FROM products WHERE id = $1
	`
	return r.scanProduct(r.pool.QueryRow(ctx, query, id))
}

// Finalize gives a provisional product its real identity and clears the
// temporary flag.
func (r *ProductRepository) Finalize(ctx context.Context, id string, name string, description string, priceCents int64) error {
	const query = `
		UPDATE products
		SET name = $2, description = $3, price_cents = $4, temporary = FALSE, updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL
	`
	cmd, err := r.pool.Exec(ctx, query, id, name, description, priceCents)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrProductNotFound
	}
	return nil
}

func (r *ProductRepository) SoftDelete(ctx context.Context, id string) error {
	const query = `
		UPDATE products SET deleted_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL
	`
	_, err := r.pool.Exec(ctx, query, id)
	return err
}

func (r *ProductRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM products WHERE id = $1`
	_, err := r.pool.Exec(ctx, query, id)
	return err
}

func (r *ProductRepository) ListByOwner(ctx context.Context, ownerID string, limit, offset int) ([]models.Product, error) {
	const query = `
		SELECT id, owner_id, name, description, price_cents, temporary, deleted_at, created_at, updated_at
		FROM products
		WHERE owner_id = $1 AND deleted_at IS NULL
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`
	rows, err := r.pool.Query(ctx, query, ownerID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return r.collectProducts(rows)
}

// ListAbandoned returns provisional or soft-deleted products older than the
// cutoff. These are the sweep's reclamation targets.
func (r *ProductRepository) ListAbandoned(ctx context.Context, olderThan time.Time, limit int) ([]models.Product, error) {
	const query = `
		SELECT id, owner_id, name, description, price_cents, temporary, deleted_at, created_at, updated_at
		FROM products
		WHERE (temporary = TRUE AND created_at < $1) OR deleted_at IS NOT NULL
		ORDER BY created_at ASC
		LIMIT $2
	`
	rows, err := r.pool.Query(ctx, query, olderThan, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return r.collectProducts(rows)
}

func (r *ProductRepository) collectProducts(rows pgx.Rows) ([]models.Product, error) {
	var products []models.Product
	for rows.Next() {
		var product models.Product
		if err := rows.Scan(
			&product.ID,
			&product.OwnerID,
			&product.Name,
			&product.Description,
			&product.PriceCents,
			&product.Temporary,
			&product.DeletedAt,
			&product.CreatedAt,
			&product.UpdatedAt,
		); err != nil {
			return nil, err
		}
		products = append(products, product)
	}
	return products, rows.Err()
}

func (r *ProductRepository) scanProduct(row pgx.Row) (models.Product, error) {
	var product models.Product
	if err := row.Scan(
		&product.ID,
		&product.OwnerID,
		&product.Name,
		&product.Description,
		&product.PriceCents,
		&product.Temporary,
		&product.DeletedAt,
		&product.CreatedAt,
		&product.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Product{}, ErrProductNotFound
		}
		return models.Product{}, err
	}
	return product, nil
}
