// internal/repository/postgres/coupon_repo.go
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"coupon-service/internal/domain/coupon"
	xerrors "coupon-service/internal/pkg/errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const couponColumns = `
	id, code, name, description, type, value,
	min_order_amount, max_discount_amount,
	usage_limit, usage_limit_per_user, used_count,
	start_date, end_date, status, first_time_user_only,
	created_at, updated_at
`

type CouponRepository struct {
	db *pgxpool.Pool
}

func NewCouponRepository(db *pgxpool.Pool) *CouponRepository {
	return &CouponRepository{db: db}
}

// Create inserts a new coupon. Codes are unique; a duplicate returns
// xerrors.ErrConflict.
func (r *CouponRepository) Create(ctx context.Context, c *coupon.Coupon) error {
	query := `
		INSERT INTO coupons (
			id, code, name, description, type, value,
			min_order_amount, max_discount_amount,
			usage_limit, usage_limit_per_user, used_count,
			start_date, end_date, status, first_time_user_only
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, 0, $11, $12, $13, $14)
		RETURNING created_at, updated_at
	`

	err := r.db.QueryRow(
		ctx, query,
		c.ID, c.Code, c.Name, c.Description, c.Type, c.Value,
		c.MinOrderAmount, c.MaxDiscountAmount,
		c.UsageLimit, c.UsageLimitPerUser,
		c.StartDate, c.EndDate, c.Status, c.FirstTimeUserOnly,
	).Scan(&c.CreatedAt, &c.UpdatedAt)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return xerrors.ErrConflict
		}
		return fmt.Errorf("failed to create coupon: %w", err)
	}

	return nil
}

// FindByID retrieves a coupon by ID.
func (r *CouponRepository) FindByID(ctx context.Context, id uuid.UUID) (*coupon.Coupon, error) {
	query := fmt.Sprintf(`SELECT %s FROM coupons WHERE id = $1`, couponColumns)
	return r.scanOne(r.db.QueryRow(ctx, query, id))
}

// FindByCode retrieves a coupon by its code. The match is case-sensitive.
func (r *CouponRepository) FindByCode(ctx context.Context, code string) (*coupon.Coupon, error) {
	query := fmt.Sprintf(`SELECT %s FROM coupons WHERE code = $1`, couponColumns)
	return r.scanOne(r.db.QueryRow(ctx, query, code))
}

// ExistsByCode checks if a coupon code is already taken.
func (r *CouponRepository) ExistsByCode(ctx context.Context, code string) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM coupons WHERE code = $1)`
	var exists bool
	err := r.db.QueryRow(ctx, query, code).Scan(&exists)
	return exists, err
}

// Update rewrites administrative fields. The code and used_count columns are
// deliberately absent: codes are immutable and the running counter belongs to
// the redemption ledger alone.
func (r *CouponRepository) Update(ctx context.Context, c *coupon.Coupon) error {
	query := `
		UPDATE coupons
		SET name = $2, description = $3, value = $4,
		    min_order_amount = $5, max_discount_amount = $6,
		    usage_limit = $7, usage_limit_per_user = $8,
		    start_date = $9, end_date = $10,
		    first_time_user_only = $11, updated_at = $12
		WHERE id = $1
	`

	result, err := r.db.Exec(
		ctx, query,
		c.ID, c.Name, c.Description, c.Value,
		c.MinOrderAmount, c.MaxDiscountAmount,
		c.UsageLimit, c.UsageLimitPerUser,
		c.StartDate, c.EndDate,
		c.FirstTimeUserOnly, time.Now(),
	)
	if err != nil {
		return fmt.Errorf("failed to update coupon: %w", err)
	}
	if result.RowsAffected() == 0 {
		return xerrors.ErrNotFound
	}

	return nil
}

// UpdateStatus changes the administrative status only.
func (r *CouponRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status coupon.Status) error {
	query := `UPDATE coupons SET status = $2, updated_at = $3 WHERE id = $1`

	result, err := r.db.Exec(ctx, query, id, status, time.Now())
	if err != nil {
		return fmt.Errorf("failed to update coupon status: %w", err)
	}
	if result.RowsAffected() == 0 {
		return xerrors.ErrNotFound
	}

	return nil
}

// Delete removes a coupon that has never been redeemed. The used_count guard
// is repeated here so a redemption racing the delete cannot orphan history.
func (r *CouponRepository) Delete(ctx context.Context, id uuid.UUID) error {
	query := `DELETE FROM coupons WHERE id = $1 AND used_count = 0`

	result, err := r.db.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete coupon: %w", err)
	}
	if result.RowsAffected() == 0 {
		return xerrors.ErrConflict
	}

	return nil
}

// List retrieves coupons with filters and pagination.
func (r *CouponRepository) List(ctx context.Context, filters *coupon.ListFilters) ([]coupon.Coupon, int64, error) {
	conditions := []string{"1=1"}
	args := []interface{}{}
	argPos := 1

	if filters.Status != nil {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argPos))
		args = append(args, *filters.Status)
		argPos++
	}

	if filters.Code != "" {
		conditions = append(conditions, fmt.Sprintf("code ILIKE $%d", argPos))
		args = append(args, "%"+filters.Code+"%")
		argPos++
	}

	whereClause := strings.Join(conditions, " AND ")

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM coupons WHERE %s", whereClause)
	var total int64
	if err := r.db.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count coupons: %w", err)
	}

	if filters.Page < 1 {
		filters.Page = 1
	}
	if filters.PageSize < 1 {
		filters.PageSize = 20
	}
	offset := (filters.Page - 1) * filters.PageSize

	query := fmt.Sprintf(`
		SELECT %s FROM coupons
		WHERE %s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d
	`, couponColumns, whereClause, argPos, argPos+1)
	args = append(args, filters.PageSize, offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list coupons: %w", err)
	}
	defer rows.Close()

	coupons := []coupon.Coupon{}
	for rows.Next() {
		c, err := scanCoupon(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan coupon: %w", err)
		}
		coupons = append(coupons, *c)
	}

	return coupons, total, rows.Err()
}

func (r *CouponRepository) scanOne(row pgx.Row) (*coupon.Coupon, error) {
	c, err := scanCoupon(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, xerrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find coupon: %w", err)
	}
	return c, nil
}

func scanCoupon(row pgx.Row) (*coupon.Coupon, error) {
	var c coupon.Coupon
	err := row.Scan(
		&c.ID, &c.Code, &c.Name, &c.Description, &c.Type, &c.Value,
		&c.MinOrderAmount, &c.MaxDiscountAmount,
		&c.UsageLimit, &c.UsageLimitPerUser, &c.UsedCount,
		&c.StartDate, &c.EndDate, &c.Status, &c.FirstTimeUserOnly,
		&c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}
