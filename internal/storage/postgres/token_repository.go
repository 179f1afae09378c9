package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/jmmolins87/NeuronIA-sub001/internal/domain"
)

func (r *BookingRepository) CreateToken(ctx context.Context, t domain.BookingToken) error {
	const stmt = `
INSERT INTO booking_tokens (token_hash, booking_id, kind, expires_at, created_at)
VALUES ($1, $2, $3, $4, $5)`

	_, err := r.exec(ctx, stmt, t.Hash, t.BookingID, t.Kind, t.ExpiresAt, t.CreatedAt)
	if err != nil {
		return fmt.Errorf("create token: %w", err)
	}
	return nil
}

func (r *BookingRepository) GetTokenByHash(ctx context.Context, hash string) (domain.BookingToken, error) {
	const query = `
SELECT token_hash, booking_id, kind, expires_at, used_at, created_at
FROM booking_tokens WHERE token_hash = $1`

	var t domain.BookingToken
	var kind string
	err := r.queryRow(ctx, query, hash).Scan(
		&t.Hash, &t.BookingID, &kind, &t.ExpiresAt, &t.UsedAt, &t.CreatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.BookingToken{}, domain.ErrTokenInvalid
		}
		return domain.BookingToken{}, fmt.Errorf("get token: %w", err)
	}
	t.Kind = domain.TokenKind(kind)
	return t, nil
}

// MarkTokenUsed consumes the token. The used_at guard makes a second
// consumption attempt visible as ErrTokenInvalid instead of silently
// restamping.
func (r *BookingRepository) MarkTokenUsed(ctx context.Context, hash string, usedAt time.Time) error {
	const stmt = `
UPDATE booking_tokens SET used_at = $2 WHERE token_hash = $1 AND used_at IS NULL`

	tag, err := r.exec(ctx, stmt, hash, usedAt)
	if err != nil {
		return fmt.Errorf("mark token used: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrTokenInvalid
	}
	return nil
}
