// internal/service/coupon/calculator.go
package coupon

import (
	"coupon-service/internal/domain/coupon"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Calculate computes the discount a coupon takes off the order subtotal.
// The result is always in [0, orderAmount].
//
// Free-shipping coupons discount the subtotal by zero; the shipping waiver is
// a separate signal (FreeShipping on the apply result) so the two outputs are
// never conflated.
func Calculate(c *coupon.Coupon, orderAmount decimal.Decimal) decimal.Decimal {
	var discount decimal.Decimal

	switch c.Type {
	case coupon.TypePercentage:
		discount = orderAmount.Mul(c.Value).Div(hundred)
		if c.MaxDiscountAmount != nil && discount.GreaterThan(*c.MaxDiscountAmount) {
			discount = *c.MaxDiscountAmount
		}

	case coupon.TypeFixedAmount:
		discount = c.Value
		// A coupon must never produce a negative final total.
		if discount.GreaterThan(orderAmount) {
			discount = orderAmount
		}

	case coupon.TypeFreeShipping:
		discount = decimal.Zero
	}

	if discount.IsNegative() {
		discount = decimal.Zero
	}

	return discount
}
