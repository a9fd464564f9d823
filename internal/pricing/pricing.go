// Package pricing derives unit price, unit discount, and line subtotal for a
// checkout line. Quotes are pure functions of the snapshots they are given.
package pricing

import (
	"errors"

	"github.com/shopspring/decimal"
)

// ErrInvalidPricing marks a negative computed subtotal. That means the
// catalog carries a discount larger than the price, which is corrupted data,
// so it is surfaced as a fault rather than clamped.
var ErrInvalidPricing = errors.New("pricing: negative line subtotal")

// Source is the price origin for a line: the bare product, or one of its
// variants when the buyer picked one.
type Source interface {
	unitPrice() decimal.Decimal
	unitDiscount() decimal.Decimal
}

type ProductSource struct {
	BasePrice decimal.Decimal
}

func (s ProductSource) unitPrice() decimal.Decimal    { return s.BasePrice }
func (s ProductSource) unitDiscount() decimal.Decimal { return decimal.Zero }

type VariantSource struct {
	Price         decimal.Decimal
	DiscountPrice *decimal.Decimal
}

func (s VariantSource) unitPrice() decimal.Decimal { return s.Price }

func (s VariantSource) unitDiscount() decimal.Decimal {
	if s.DiscountPrice == nil {
		return decimal.Zero
	}
	return *s.DiscountPrice
}

// Quote is the priced form of one line.
type Quote struct {
	UnitPrice    decimal.Decimal
	UnitDiscount decimal.Decimal
	LineSubtotal decimal.Decimal
}

// Calculate prices quantity units from src.
// LineSubtotal = (UnitPrice - UnitDiscount) * quantity and is never negative.
func Calculate(src Source, quantity int) (Quote, error) {
	q := Quote{
		UnitPrice:    src.unitPrice(),
		UnitDiscount: src.unitDiscount(),
	}
	q.LineSubtotal = q.UnitPrice.Sub(q.UnitDiscount).Mul(decimal.NewFromInt(int64(quantity)))
	if q.LineSubtotal.IsNegative() {
		return Quote{}, ErrInvalidPricing
	}
	return q, nil
}
