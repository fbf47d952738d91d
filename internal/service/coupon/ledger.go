// internal/service/coupon/ledger.go
package coupon

import (
	"context"
	"errors"
	"fmt"
	"time"

	"coupon-service/internal/domain/coupon"
	xerrors "coupon-service/internal/pkg/errors"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	defaultMaxAttempts  = 4
	defaultRetryBackoff = 25 * time.Millisecond
)

// Ledger is the only writer of coupon usage counters. Each redemption is a
// single storage transaction that conditionally bumps the global and per-user
// counters and appends the audit row; if either limit was consumed by a
// concurrent winner the whole transaction rolls back.
//
// Storage conflicts (serialization failures, deadlocks) are retried with
// fresh state up to maxAttempts; limit failures are terminal and never
// retried.
type Ledger struct {
	store       coupon.LedgerStore
	logger      *zap.Logger
	maxAttempts int
	backoff     time.Duration
}

func NewLedger(store coupon.LedgerStore, logger *zap.Logger, maxAttempts int, backoff time.Duration) *Ledger {
	if maxAttempts < 1 {
		maxAttempts = defaultMaxAttempts
	}
	if backoff <= 0 {
		backoff = defaultRetryBackoff
	}
	return &Ledger{
		store:       store,
		logger:      logger,
		maxAttempts: maxAttempts,
		backoff:     backoff,
	}
}

// Redeem consumes one unit of the coupon's usage limits for userID. On
// success the receipt carries the new counts and a unique reference. Failure
// is one of coupon.ErrUsageLimitReached, coupon.ErrUserUsageLimitReached, or
// xerrors.ErrStorageConflict once the retry budget is exhausted.
func (l *Ledger) Redeem(ctx context.Context, c *coupon.Coupon, userID uuid.UUID, orderAmount, discountAmount decimal.Decimal) (*coupon.Receipt, error) {
	var lastErr error

	for attempt := 1; attempt <= l.maxAttempts; attempt++ {
		receipt, err := l.redeemOnce(ctx, c, userID, orderAmount, discountAmount)
		if err == nil {
			return receipt, nil
		}

		if !errors.Is(err, xerrors.ErrStorageConflict) {
			return nil, err
		}

		lastErr = err
		l.logger.Warn("redemption conflict, retrying",
			zap.String("coupon_code", c.Code),
			zap.Int("attempt", attempt),
		)

		if attempt < l.maxAttempts {
			select {
			case <-time.After(l.backoff * time.Duration(attempt)):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
	}

	return nil, fmt.Errorf("redemption retries exhausted: %w", lastErr)
}

func (l *Ledger) redeemOnce(ctx context.Context, c *coupon.Coupon, userID uuid.UUID, orderAmount, discountAmount decimal.Decimal) (*coupon.Receipt, error) {
	tx, err := l.store.Begin(ctx)
	if err != nil {
		return nil, err
	}

	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback(ctx)
		}
	}()

	globalCount, err := tx.IncrementCouponUsage(ctx, c.ID, c.UsageLimit)
	if err != nil {
		return nil, err
	}

	userCount, err := tx.IncrementUserUsage(ctx, c.ID, userID, c.UsageLimitPerUser)
	if err != nil {
		return nil, err
	}

	reference := ulid.Make().String()
	if err := tx.RecordRedemption(ctx, &coupon.Redemption{
		Reference:      reference,
		CouponID:       c.ID,
		UserID:         userID,
		OrderAmount:    orderAmount,
		DiscountAmount: discountAmount,
	}); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	committed = true

	return &coupon.Receipt{
		Reference:      reference,
		NewGlobalCount: globalCount,
		NewUserCount:   userCount,
	}, nil
}
