// internal/domain/coupon/entity.go
package coupon

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Type string

const (
	TypePercentage   Type = "percentage"
	TypeFixedAmount  Type = "fixed_amount"
	TypeFreeShipping Type = "free_shipping"
)

// ParseType decodes a coupon type once at the system boundary.
// Internal code only ever compares the typed constants.
func ParseType(s string) (Type, error) {
	switch Type(s) {
	case TypePercentage, TypeFixedAmount, TypeFreeShipping:
		return Type(s), nil
	}
	return "", errors.New("unknown coupon type: " + s)
}

type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
	StatusExpired  Status = "expired"
)

// Sentinel failures surfaced by the redemption ledger. Both are terminal
// business failures, never retried.
var (
	ErrUsageLimitReached     = errors.New("coupon usage limit reached")
	ErrUserUsageLimitReached = errors.New("per-user coupon usage limit reached")
)

type Coupon struct {
	ID          uuid.UUID       `json:"id" db:"id"`
	Code        string          `json:"code" db:"code"`
	Name        string          `json:"name" db:"name"`
	Description string          `json:"description,omitempty" db:"description"`
	Type        Type            `json:"type" db:"type"`
	Value       decimal.Decimal `json:"value" db:"value"`

	// Monetary constraints
	MinOrderAmount    decimal.Decimal  `json:"min_order_amount" db:"min_order_amount"`
	MaxDiscountAmount *decimal.Decimal `json:"max_discount_amount,omitempty" db:"max_discount_amount"`

	// Usage limits; nil means unlimited. used_count is mutated only by the
	// redemption ledger, never by administrative edits.
	UsageLimit        *int32 `json:"usage_limit,omitempty" db:"usage_limit"`
	UsageLimitPerUser *int32 `json:"usage_limit_per_user,omitempty" db:"usage_limit_per_user"`
	UsedCount         int32  `json:"used_count" db:"used_count"`

	// Validity window, both ends inclusive. end_date > start_date.
	StartDate time.Time `json:"start_date" db:"start_date"`
	EndDate   time.Time `json:"end_date" db:"end_date"`

	Status            Status `json:"status" db:"status"`
	FirstTimeUserOnly bool   `json:"first_time_user_only" db:"first_time_user_only"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// RemainingUses returns the number of redemptions left, or -1 for unlimited.
func (c *Coupon) RemainingUses() int32 {
	if c.UsageLimit == nil {
		return -1
	}
	remaining := *c.UsageLimit - c.UsedCount
	if remaining < 0 {
		remaining = 0
	}
	return remaining
}

// UserCoupon is one user's relationship with one coupon: a claim while
// used_count is zero, accumulated redemption history afterwards. At most one
// row exists per (user_id, coupon_id) pair.
type UserCoupon struct {
	ID          uuid.UUID  `json:"id" db:"id"`
	UserID      uuid.UUID  `json:"user_id" db:"user_id"`
	CouponID    uuid.UUID  `json:"coupon_id" db:"coupon_id"`
	UsedCount   int32      `json:"used_count" db:"used_count"`
	FirstUsedAt *time.Time `json:"first_used_at,omitempty" db:"first_used_at"`
	LastUsedAt  *time.Time `json:"last_used_at,omitempty" db:"last_used_at"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at" db:"updated_at"`
}

// Redemption is an audit row written inside the same transaction as the
// counter increments.
type Redemption struct {
	ID             int64           `json:"id" db:"id"`
	Reference      string          `json:"reference" db:"reference"`
	CouponID       uuid.UUID       `json:"coupon_id" db:"coupon_id"`
	UserID         uuid.UUID       `json:"user_id" db:"user_id"`
	OrderAmount    decimal.Decimal `json:"order_amount" db:"order_amount"`
	DiscountAmount decimal.Decimal `json:"discount_amount" db:"discount_amount"`
	CreatedAt      time.Time       `json:"created_at" db:"created_at"`
}

// Receipt reports a successful ledger redemption.
type Receipt struct {
	Reference      string `json:"reference"`
	NewGlobalCount int32  `json:"new_global_count"`
	NewUserCount   int32  `json:"new_user_count"`
}
