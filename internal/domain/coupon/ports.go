// internal/domain/coupon/ports.go
package coupon

import (
	"context"

	"github.com/google/uuid"
)

// LedgerTx is one atomic redemption attempt against durable storage. Every
// method runs inside the same transaction; if any conditional increment
// fails the caller rolls back and no partial mutation survives.
type LedgerTx interface {
	// IncrementCouponUsage bumps the coupon's global used_count only while
	// it is below limit (nil = unlimited) and returns the new count.
	// Returns ErrUsageLimitReached when the limit is already consumed.
	IncrementCouponUsage(ctx context.Context, couponID uuid.UUID, limit *int32) (int32, error)

	// IncrementUserUsage finds or creates the (user, coupon) row and bumps
	// its used_count only while below limit, setting first_used_at on the
	// first redemption and always refreshing last_used_at. Returns the new
	// per-user count or ErrUserUsageLimitReached.
	IncrementUserUsage(ctx context.Context, couponID, userID uuid.UUID, limit *int32) (int32, error)

	// RecordRedemption appends the audit row for this redemption.
	RecordRedemption(ctx context.Context, r *Redemption) error

	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// LedgerStore opens atomic redemption transactions.
type LedgerStore interface {
	Begin(ctx context.Context) (LedgerTx, error)
}
