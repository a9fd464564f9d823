package order

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dokanify/checkout-core/internal/catalog"
	"github.com/dokanify/checkout-core/internal/inventory"
)

// MemoryRepo is the in-memory Repository. Stock lives in the catalog memory
// store so reads and reservations see one counter; Create mirrors the SQL
// transaction by reserving all-or-nothing and never keeping a partial order.
// It also implements coupon.Orders for the in-memory ledger.
type MemoryRepo struct {
	mu      sync.Mutex
	orders  map[string]*Order
	numbers map[string]struct{}
	items   map[string][]Item
	stock   *catalog.Memory
}

func NewMemoryRepo(stock *catalog.Memory) *MemoryRepo {
	return &MemoryRepo{
		orders:  make(map[string]*Order),
		numbers: make(map[string]struct{}),
		items:   make(map[string][]Item),
		stock:   stock,
	}
}

func (r *MemoryRepo) Create(ctx context.Context, o *Order, items []Item, reservations []inventory.Reservation) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, taken := r.numbers[o.OrderNumber]; taken {
		return ErrDuplicateOrderNumber
	}
	if err := r.stock.ReserveStock(reservations); err != nil {
		return err
	}
	cp := *o
	cp.CreatedAt = time.Now().UTC()
	cp.UpdatedAt = cp.CreatedAt
	r.orders[o.ID] = &cp
	r.numbers[o.OrderNumber] = struct{}{}
	r.items[o.ID] = append([]Item(nil), items...)
	return nil
}

func (r *MemoryRepo) GetByID(ctx context.Context, id string) (*Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (r *MemoryRepo) GetItems(ctx context.Context, orderID string) ([]Item, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.orders[orderID]; !ok {
		return nil, ErrNotFound
	}
	return append([]Item(nil), r.items[orderID]...), nil
}

func (r *MemoryRepo) ListByUser(ctx context.Context, userID string, limit, offset int) ([]Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	var out []Order
	for _, o := range r.orders {
		if o.UserID == userID {
			out = append(out, *o)
		}
	}
	// Newest first, matching the SQL form; id breaks creation-time ties so
	// pagination stays stable across calls.
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *MemoryRepo) UpdateStatus(ctx context.Context, id string, status Status) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return ErrNotFound
	}
	o.Status = status
	o.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *MemoryRepo) Cancel(ctx context.Context, id string, restock []inventory.Reservation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return ErrNotFound
	}
	o.Status = StatusCancelled
	o.UpdatedAt = time.Now().UTC()
	r.stock.ReleaseStock(restock)
	return nil
}

func (r *MemoryRepo) SetShipping(ctx context.Context, id string, addr Address, fee decimal.Decimal) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return ErrNotFound
	}
	a := addr
	o.ShippingAddress = &a
	o.ShippingFee = fee
	o.TotalAmount = o.Subtotal.Add(o.Tax).Add(fee).Sub(o.Discount)
	o.UpdatedAt = time.Now().UTC()
	return nil
}

// OrderSubtotal implements coupon.Orders.
func (r *MemoryRepo) OrderSubtotal(ctx context.Context, orderID string) (decimal.Decimal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[orderID]
	if !ok {
		return decimal.Zero, ErrNotFound
	}
	return o.Subtotal, nil
}

// ApplyDiscount implements coupon.Orders.
func (r *MemoryRepo) ApplyDiscount(ctx context.Context, orderID, couponCode string, discount decimal.Decimal) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[orderID]
	if !ok {
		return ErrNotFound
	}
	o.Discount = o.Discount.Add(discount)
	o.CouponCode = couponCode
	o.TotalAmount = o.Subtotal.Add(o.Tax).Add(o.ShippingFee).Sub(o.Discount)
	o.UpdatedAt = time.Now().UTC()
	return nil
}
