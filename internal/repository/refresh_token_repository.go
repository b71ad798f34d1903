package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"assetdeck/api/internal/models"
)

var ErrTokenNotFound = errors.New("refresh token not found")

// RefreshTokenRepository persists issued refresh tokens keyed by their
// literal value (unique index). Deleting a row revokes the token even while
// its signature is still valid.
type RefreshTokenRepository struct {
	pool *pgxpool.Pool
}

func NewRefreshTokenRepository(pool *pgxpool.Pool) *RefreshTokenRepository {
	return &RefreshTokenRepository{pool: pool}
}

func (r *RefreshTokenRepository) Create(ctx context.Context, token string, userID string, expiresAt time.Time) error {
	const query = `
		INSERT INTO refresh_tokens (token, user_id, expires_at, created_at)
		VALUES ($1, $2, $3, NOW())
	`
	_, err := r.pool.Exec(ctx, query, token, userID, expiresAt)
	return err
}

func (r *RefreshTokenRepository) FindByToken(ctx context.Context, token string) (models.RefreshToken, error) {
	const query = `
		SELECT token, user_id, expires_at, created_at
		FROM refresh_tokens WHERE token = $1
	`
	return r.scanToken(r.pool.QueryRow(ctx, query, token))
}

// FindValid matches token value, ownership and non-expiry in one query. Used
// during rotation so a stolen value cannot be redeemed for another user.
func (r *RefreshTokenRepository) FindValid(ctx context.Context, token string, userID string) (models.RefreshToken, error) {
	const query = `
		SELECT token, user_id, expires_at, created_at
		FROM refresh_tokens
		WHERE token = $1 AND user_id = $2 AND expires_at > NOW()
	`
	return r.scanToken(r.pool.QueryRow(ctx, query, token, userID))
}

func (r *RefreshTokenRepository) DeleteByToken(ctx context.Context, token string) error {
	const query = `DELETE FROM refresh_tokens WHERE token = $1`
	_, err := r.pool.Exec(ctx, query, token)
	return err
}

func (r *RefreshTokenRepository) DeleteByUser(ctx context.Context, userID string) error {
	const query = `DELETE FROM refresh_tokens WHERE user_id = $1`
	_, err := r.pool.Exec(ctx, query, userID)
	return err
}

func (r *RefreshTokenRepository) DeleteExpired(ctx context.Context) (int64, error) {
	const query = `DELETE FROM refresh_tokens WHERE expires_at <= NOW()`
	cmd, err := r.pool.Exec(ctx, query)
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}

func (r *RefreshTokenRepository) scanToken(row pgx.Row) (models.RefreshToken, error) {
	var token models.RefreshToken
	if err := row.Scan(
		&token.Token,
		&token.UserID,
		&token.ExpiresAt,
		&token.CreatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.RefreshToken{}, ErrTokenNotFound
		}
		return models.RefreshToken{}, err
	}
	return token, nil
}
