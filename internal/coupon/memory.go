package coupon

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Orders is the slice of order state the in-memory ledger needs. The order
// store implements it; the PG ledger works on the orders table directly
// inside its own transaction instead.
type Orders interface {
	OrderSubtotal(ctx context.Context, orderID string) (decimal.Decimal, error)
	ApplyDiscount(ctx context.Context, orderID, couponCode string, discount decimal.Decimal) error
}

// MemoryLedger serializes applications behind one mutex, mirroring the
// exclusive row lock of the PG form.
type MemoryLedger struct {
	mu      sync.Mutex
	coupons map[string]*Coupon
	usages  map[string]Usage // keyed by order id
	orders  Orders

	// Now is swappable so tests can pin the validity window.
	Now func() time.Time
}

func NewMemoryLedger(orders Orders) *MemoryLedger {
	return &MemoryLedger{
		coupons: make(map[string]*Coupon),
		usages:  make(map[string]Usage),
		orders:  orders,
		Now:     time.Now,
	}
}

func (l *MemoryLedger) Put(c *Coupon) {
	l.mu.Lock()
	defer l.mu.Unlock()
	cp := *c
	l.coupons[c.Code] = &cp
}

func (l *MemoryLedger) Get(code string) (*Coupon, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	c, ok := l.coupons[code]
	if !ok {
		return nil, false
	}
	cp := *c
	return &cp, true
}

func (l *MemoryLedger) Usages() []Usage {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Usage, 0, len(l.usages))
	for _, u := range l.usages {
		out = append(out, u)
	}
	return out
}

func (l *MemoryLedger) Apply(ctx context.Context, code, orderID, userID string) (decimal.Decimal, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.Now()
	c, ok := l.coupons[code]
	if !ok || c.Status != StatusActive || now.Before(c.ValidFrom) || now.After(c.ValidTo) {
		return decimal.Zero, ErrInvalidOrExpired
	}
	if _, used := l.usages[orderID]; used {
		return decimal.Zero, ErrAlreadyApplied
	}

	subtotal, err := l.orders.OrderSubtotal(ctx, orderID)
	if err != nil {
		return decimal.Zero, ErrOrderNotFound
	}
	if subtotal.LessThan(c.MinOrderAmount) {
		return decimal.Zero, &MinOrderError{Min: c.MinOrderAmount}
	}
	if c.UsageLimit != nil && c.UsageCount >= *c.UsageLimit {
		return decimal.Zero, ErrUsageLimitExceeded
	}

	discount := c.Discount(subtotal)
	if err := l.orders.ApplyDiscount(ctx, orderID, code, discount); err != nil {
		return decimal.Zero, err
	}
	l.usages[orderID] = Usage{
		ID:             uuid.NewString(),
		CouponID:       c.ID,
		UserID:         userID,
		OrderID:        orderID,
		DiscountAmount: discount,
		CreatedAt:      now.UTC(),
	}
	c.UsageCount++
	return discount, nil
}
