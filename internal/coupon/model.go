package coupon

import (
	"time"

	"github.com/shopspring/decimal"
)

type Type string

const (
	TypePercentage Type = "percentage"
	TypeFixed      Type = "fixed"
)

type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
	StatusExpired  Status = "expired"
)

// Coupon rows are owned by the admin surface; this engine only advances
// usage_count and writes usage rows.
type Coupon struct {
	ID             string          `json:"id"`
	Code           string          `json:"code"`
	Type           Type            `json:"type"`
	Value          decimal.Decimal `json:"value"`
	MinOrderAmount decimal.Decimal `json:"min_order_amount"`
	// UsageLimit nil means unlimited.
	UsageLimit *int      `json:"usage_limit,omitempty"`
	UsageCount int       `json:"usage_count"`
	ValidFrom  time.Time `json:"valid_from"`
	ValidTo    time.Time `json:"valid_to"`
	Status     Status    `json:"status"`
}

// Usage is written once per successful application. Its existence is the
// idempotency guard against applying a second coupon to the same order.
type Usage struct {
	ID             string          `json:"id"`
	CouponID       string          `json:"coupon_id"`
	UserID         string          `json:"user_id"`
	OrderID        string          `json:"order_id"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
	CreatedAt      time.Time       `json:"created_at"`
}

// Discount computes the amount this coupon takes off the given subtotal.
// A fixed discount is clamped to the subtotal so the total can never go
// negative.
func (c *Coupon) Discount(subtotal decimal.Decimal) decimal.Decimal {
	switch c.Type {
	case TypePercentage:
		return subtotal.Mul(c.Value).Div(decimal.NewFromInt(100)).Round(2)
	default:
		if c.Value.GreaterThan(subtotal) {
			return subtotal
		}
		return c.Value
	}
}
