// internal/repository/postgres/ledger_store.go
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

// LedgerStore is the durable side of the redemption ledger. Both counter
// increments are expressed as conditional UPDATEs ("bump only while below the
// limit") so the check and the write are one statement against the locked row
// version; the read-then-write pattern this replaces is exactly the lost-update
// race the ledger exists to prevent.
type LedgerStore struct {
	pool        *pgxpool.Pool
	redemptions *RedemptionRepository
}

func NewLedgerStore(pool *pgxpool.Pool, redemptions *RedemptionRepository) *LedgerStore {
	return &LedgerStore{pool: pool, redemptions: redemptions}
}

func (s *LedgerStore) Begin(ctx context.Context) (coupon.LedgerTx, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, classifyPgError(fmt.Errorf("begin ledger tx: %w", err))
	}
	return &ledgerTx{tx: tx, redemptions: s.redemptions}, nil
}

type ledgerTx struct {
	tx          pgx.Tx
	redemptions *RedemptionRepository
}

func (t *ledgerTx) IncrementCouponUsage(ctx context.Context, couponID uuid.UUID, limit *int32) (int32, error) {
	query := `
		UPDATE coupons
		SET used_count = used_count + 1, updated_at = now()
		WHERE id = $1 AND ($2::int IS NULL OR used_count < $2)
		RETURNING used_count
	`

	var newCount int32
	err := t.tx.QueryRow(ctx, query, couponID, limit).Scan(&newCount)
	if errors.Is(err, pgx.ErrNoRows) {
		// The limit was consumed by a concurrent winner (or the coupon
		// vanished); either way this attempt must not count.
		return 0, coupon.ErrUsageLimitReached
	}
	if err != nil {
		return 0, classifyPgError(fmt.Errorf("increment coupon usage: %w", err))
	}

	return newCount, nil
}

func (t *ledgerTx) IncrementUserUsage(ctx context.Context, couponID, userID uuid.UUID, limit *int32) (int32, error) {
	// A limit that permits no use at all never reaches storage: the fresh
	// insert below starts at used_count = 1.
	if limit != nil && *limit < 1 {
		return 0, coupon.ErrUserUsageLimitReached
	}

	// A claim row (used_count = 0) and a history row are both handled by the
	// conflict branch; the WHERE guard only applies to the UPDATE, so the
	// first-ever redemption takes the insert path.
	query := `
		INSERT INTO user_coupons (id, user_id, coupon_id, used_count, first_used_at, last_used_at)
		VALUES ($1, $2, $3, 1, now(), now())
		ON CONFLICT (user_id, coupon_id) DO UPDATE
		SET used_count = user_coupons.used_count + 1,
		    first_used_at = COALESCE(user_coupons.first_used_at, now()),
		    last_used_at = now(),
		    updated_at = now()
		WHERE $4::int IS NULL OR user_coupons.used_count < $4
		RETURNING used_count
	`

	var newCount int32
	err := t.tx.QueryRow(ctx, query, uuid.New(), userID, couponID, limit).Scan(&newCount)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, coupon.ErrUserUsageLimitReached
	}
	if err != nil {
		return 0, classifyPgError(fmt.Errorf("increment user usage: %w", err))
	}

	return newCount, nil
}

func (t *ledgerTx) RecordRedemption(ctx context.Context, r *coupon.Redemption) error {
	if err := t.redemptions.CreateWithTx(ctx, t.tx, r); err != nil {
		return classifyPgError(err)
	}
	return nil
}

func (t *ledgerTx) Commit(ctx context.Context) error {
	if err := t.tx.Commit(ctx); err != nil {
		return classifyPgError(fmt.Errorf("commit ledger tx: %w", err))
	}
	return nil
}

func (t *ledgerTx) Rollback(ctx context.Context) error {
	return t.tx.Rollback(ctx)
}

// classifyPgError tags serialization failures and deadlocks as
// ErrStorageConflict so the ledger retry loop can tell them apart from
// terminal faults.
func classifyPgError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "40001", "40P01":
			return fmt.Errorf("%w: %v", xerrors.ErrStorageConflict, err)
		}
	}
	return err
}
