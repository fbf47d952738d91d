// internal/domain/coupon/dto.go
package coupon

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ========== Admin requests ==========

type CreateCouponRequest struct {
	Code        string `json:"code" binding:"required"`
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
	Type        string `json:"type" binding:"required"`

	Value             decimal.Decimal  `json:"value"`
	MinOrderAmount    decimal.Decimal  `json:"min_order_amount"`
	MaxDiscountAmount *decimal.Decimal `json:"max_discount_amount"`

	UsageLimit        *int32 `json:"usage_limit"`
	UsageLimitPerUser *int32 `json:"usage_limit_per_user"`

	StartDate time.Time `json:"start_date" binding:"required"`
	EndDate   time.Time `json:"end_date" binding:"required"`

	FirstTimeUserOnly bool `json:"first_time_user_only"`
}

// UpdateCouponRequest may change limits, dates, status and descriptive fields.
// It can never touch used_count.
type UpdateCouponRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`

	Value             *decimal.Decimal `json:"value"`
	MinOrderAmount    *decimal.Decimal `json:"min_order_amount"`
	MaxDiscountAmount *decimal.Decimal `json:"max_discount_amount"`

	UsageLimit        *int32 `json:"usage_limit"`
	UsageLimitPerUser *int32 `json:"usage_limit_per_user"`

	StartDate *time.Time `json:"start_date"`
	EndDate   *time.Time `json:"end_date"`

	FirstTimeUserOnly *bool `json:"first_time_user_only"`
}

type ListFilters struct {
	Status   *Status
	Code     string
	Page     int
	PageSize int
}

type ListResponse struct {
	Coupons    []Coupon `json:"coupons"`
	Total      int64    `json:"total"`
	Page       int      `json:"page"`
	PageSize   int      `json:"page_size"`
	TotalPages int      `json:"total_pages"`
}

// ========== Apply / validate ==========

type ApplyCouponRequest struct {
	Code        string          `json:"code" binding:"required"`
	OrderAmount decimal.Decimal `json:"order_amount" binding:"required"`
}

type ApplyCouponResult struct {
	Valid          bool            `json:"valid"`
	Kind           Kind            `json:"kind"`
	Message        string          `json:"message"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
	FinalAmount    decimal.Decimal `json:"final_amount"`
	// FreeShipping tells the order workflow to waive the shipping fee
	// separately; it is never folded into DiscountAmount.
	FreeShipping bool   `json:"free_shipping"`
	Reference    string `json:"reference,omitempty"`
}

type ValidateCouponResult struct {
	Valid   bool   `json:"valid"`
	Kind    Kind   `json:"kind"`
	Message string `json:"message"`
}

// ========== Claims ==========

type ClaimedCoupon struct {
	ID         uuid.UUID       `json:"id"`
	CouponID   uuid.UUID       `json:"coupon_id"`
	Code       string          `json:"code"`
	Name       string          `json:"name"`
	Type       Type            `json:"type"`
	Value      decimal.Decimal `json:"value"`
	UsedCount  int32           `json:"used_count"`
	ClaimedAt  time.Time       `json:"claimed_at"`
	ValidUntil time.Time       `json:"valid_until"`
}

type UnclaimRequest struct {
	UserCouponIDs []uuid.UUID `json:"user_coupon_ids" binding:"required"`
}

type UnclaimResult struct {
	RemovedCount int `json:"removed_count"`
	// SkippedCount are rows that were not removed because they carry real
	// redemption history (used_count > 0) or belong to another user.
	SkippedCount int `json:"skipped_count"`
}
