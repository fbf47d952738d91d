// internal/service/coupon/validator.go
package coupon

import (
	"time"

	"coupon-service/internal/domain/coupon"

	"github.com/shopspring/decimal"
)

// ValidateOptions carries the order context a coupon is checked against.
type ValidateOptions struct {
	// OrderAmount is the order subtotal; nil skips the minimum-order rule
	// (claims have no order yet).
	OrderAmount *decimal.Decimal

	// Record is the caller's existing user_coupons row, nil if none.
	Record *coupon.UserCoupon

	IsFirstTimeUser bool

	// SkipPerUserRule drops the per-user usage check. Claiming consumes no
	// usage, so claims validate with this set.
	SkipPerUserRule bool
}

// Validate runs the eligibility rules in order, short-circuiting on the first
// failure. It is pure and safe to call any number of times, but it only
// certifies validity at read time: the redemption ledger re-checks both
// limits atomically at write time, and a passing outcome here can still lose
// the race there.
func Validate(c *coupon.Coupon, now time.Time, opts ValidateOptions) coupon.Outcome {
	if c.Status != coupon.StatusActive {
		return coupon.Rejected(coupon.KindInactive, "this coupon is not currently active")
	}

	// Both window ends are inclusive.
	if now.Before(c.StartDate) {
		return coupon.Rejected(coupon.KindNotYetActive, "this coupon is not valid yet")
	}
	if now.After(c.EndDate) {
		return coupon.Rejected(coupon.KindExpired, "this coupon has expired")
	}

	if opts.OrderAmount != nil && opts.OrderAmount.LessThan(c.MinOrderAmount) {
		return coupon.Rejected(coupon.KindBelowMinOrder,
			"order amount is below the minimum required for this coupon")
	}

	if c.UsageLimit != nil && c.UsedCount >= *c.UsageLimit {
		return coupon.Rejected(coupon.KindUsageLimitReached,
			"this coupon has reached its usage limit")
	}

	if !opts.SkipPerUserRule && c.UsageLimitPerUser != nil {
		var used int32
		if opts.Record != nil {
			used = opts.Record.UsedCount
		}
		if used >= *c.UsageLimitPerUser {
			return coupon.Rejected(coupon.KindUserLimitReached,
				"you have already used this coupon the maximum number of times")
		}
	}

	if c.FirstTimeUserOnly && !opts.IsFirstTimeUser {
		return coupon.Rejected(coupon.KindFirstTimeOnly,
			"this coupon is only available on your first order")
	}

	return coupon.OK()
}
