// internal/repository/postgres/redemption_repo.go
package postgres

import (
	"context"
	"fmt"

	"coupon-service/internal/domain/coupon"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type RedemptionRepository struct {
	db *pgxpool.Pool
}

func NewRedemptionRepository(db *pgxpool.Pool) *RedemptionRepository {
	return &RedemptionRepository{db: db}
}

// CreateWithTx appends a redemption audit row within the ledger transaction.
func (r *RedemptionRepository) CreateWithTx(ctx context.Context, tx pgx.Tx, red *coupon.Redemption) error {
	query := `
		INSERT INTO coupon_redemptions (reference, coupon_id, user_id, order_amount, discount_amount)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`

	err := tx.QueryRow(
		ctx, query,
		red.Reference, red.CouponID, red.UserID, red.OrderAmount, red.DiscountAmount,
	).Scan(&red.ID, &red.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to record redemption: %w", err)
	}

	return nil
}

// ListByUser retrieves a user's redemption history, newest first.
func (r *RedemptionRepository) ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]coupon.Redemption, error) {
	if limit < 1 || limit > 100 {
		limit = 50
	}

	query := `
		SELECT id, reference, coupon_id, user_id, order_amount, discount_amount, created_at
		FROM coupon_redemptions
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`

	rows, err := r.db.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list redemptions: %w", err)
	}
	defer rows.Close()

	redemptions := []coupon.Redemption{}
	for rows.Next() {
		var red coupon.Redemption
		if err := rows.Scan(
			&red.ID, &red.Reference, &red.CouponID, &red.UserID,
			&red.OrderAmount, &red.DiscountAmount, &red.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan redemption: %w", err)
		}
		redemptions = append(redemptions, red)
	}

	return redemptions, rows.Err()
}
