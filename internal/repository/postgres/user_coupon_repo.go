// internal/repository/postgres/user_coupon_repo.go
package postgres

import (
	"context"
	"errors"
	"fmt"

	"coupon-service/internal/domain/coupon"
	xerrors "coupon-service/internal/pkg/errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type UserCouponRepository struct {
	db *pgxpool.Pool
}

func NewUserCouponRepository(db *pgxpool.Pool) *UserCouponRepository {
	return &UserCouponRepository{db: db}
}

// CreateClaim inserts a reservation row with used_count = 0. The unique
// (user_id, coupon_id) constraint turns a duplicate claim into ErrConflict.
func (r *UserCouponRepository) CreateClaim(ctx context.Context, uc *coupon.UserCoupon) error {
	query := `
		INSERT INTO user_coupons (id, user_id, coupon_id, used_count)
		VALUES ($1, $2, $3, 0)
		RETURNING created_at, updated_at
	`

	err := r.db.QueryRow(ctx, query, uc.ID, uc.UserID, uc.CouponID).
		Scan(&uc.CreatedAt, &uc.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return xerrors.ErrConflict
		}
		return fmt.Errorf("failed to create claim: %w", err)
	}

	return nil
}

// FindByUserAndCoupon retrieves the single row for a (user, coupon) pair.
func (r *UserCouponRepository) FindByUserAndCoupon(ctx context.Context, userID, couponID uuid.UUID) (*coupon.UserCoupon, error) {
	query := `
		SELECT id, user_id, coupon_id, used_count, first_used_at, last_used_at, created_at, updated_at
		FROM user_coupons
		WHERE user_id = $1 AND coupon_id = $2
	`

	var uc coupon.UserCoupon
	err := r.db.QueryRow(ctx, query, userID, couponID).Scan(
		&uc.ID, &uc.UserID, &uc.CouponID, &uc.UsedCount,
		&uc.FirstUsedAt, &uc.LastUsedAt, &uc.CreatedAt, &uc.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, xerrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user coupon: %w", err)
	}

	return &uc, nil
}

// ListClaimedByUser returns the user's claimed coupons that are still usable:
// active, inside the validity window, and below the per-user limit.
func (r *UserCouponRepository) ListClaimedByUser(ctx context.Context, userID uuid.UUID) ([]coupon.ClaimedCoupon, error) {
	query := `
		SELECT uc.id, c.id, c.code, c.name, c.type, c.value,
		       uc.used_count, uc.created_at, c.end_date
		FROM user_coupons uc
		JOIN coupons c ON c.id = uc.coupon_id
		WHERE uc.user_id = $1
		  AND c.status = 'active'
		  AND now() BETWEEN c.start_date AND c.end_date
		  AND (c.usage_limit_per_user IS NULL OR uc.used_count < c.usage_limit_per_user)
		  AND (c.usage_limit IS NULL OR c.used_count < c.usage_limit)
		ORDER BY uc.created_at DESC
	`

	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list claimed coupons: %w", err)
	}
	defer rows.Close()

	claimed := []coupon.ClaimedCoupon{}
	for rows.Next() {
		var cc coupon.ClaimedCoupon
		if err := rows.Scan(
			&cc.ID, &cc.CouponID, &cc.Code, &cc.Name, &cc.Type, &cc.Value,
			&cc.UsedCount, &cc.ClaimedAt, &cc.ValidUntil,
		); err != nil {
			return nil, fmt.Errorf("failed to scan claimed coupon: %w", err)
		}
		claimed = append(claimed, cc)
	}

	return claimed, rows.Err()
}

// DeleteUnused removes the given rows, but only those owned by the user with
// used_count = 0. Rows with real redemption history survive; the caller
// reports them as skipped rather than silently dropping them.
func (r *UserCouponRepository) DeleteUnused(ctx context.Context, ids []uuid.UUID, userID uuid.UUID) (int64, error) {
	query := `
		DELETE FROM user_coupons
		WHERE id = ANY($1) AND user_id = $2 AND used_count = 0
	`

	result, err := r.db.Exec(ctx, query, ids, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete claims: %w", err)
	}

	return result.RowsAffected(), nil
}
