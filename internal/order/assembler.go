package order

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/dokanify/checkout-core/internal/catalog"
	"github.com/dokanify/checkout-core/internal/coupon"
	"github.com/dokanify/checkout-core/internal/events"
	"github.com/dokanify/checkout-core/internal/inventory"
	"github.com/dokanify/checkout-core/internal/metrics"
	"github.com/dokanify/checkout-core/internal/pricing"
	"github.com/dokanify/checkout-core/internal/shipping"
)

var (
	ErrEmptyOrder        = errors.New("order must contain at least one line")
	ErrUserRequired      = errors.New("user id is required")
	ErrQuantity          = errors.New("quantity must be positive")
	ErrVariantRequired   = errors.New("product requires a variant selection")
	ErrAddressRequired   = errors.New("shipping address must name a city or address line")
	ErrInvalidStatus     = errors.New("unknown order status")
	ErrInvalidTransition = errors.New("invalid status transition")
)

// orderNumberRetries bounds regeneration when a random order number collides
// with the uniqueness constraint.
const orderNumberRetries = 3

// Assembler orchestrates pricing, stock reservation, coupon application, and
// shipping resolution into all-or-nothing order operations.
type Assembler struct {
	repo     Repository
	catalog  catalog.Provider
	shipping *shipping.Resolver
	coupons  coupon.Ledger
	events   events.Publisher
	metrics  *metrics.Checkout
	log      *zap.Logger
}

func NewAssembler(repo Repository, cat catalog.Provider, ship *shipping.Resolver,
	coupons coupon.Ledger, pub events.Publisher, m *metrics.Checkout, log *zap.Logger) *Assembler {
	return &Assembler{
		repo:     repo,
		catalog:  cat,
		shipping: ship,
		coupons:  coupons,
		events:   pub,
		metrics:  m,
		log:      log,
	}
}

// PlaceOrder turns explicit checkout lines into a persisted order. Every
// line is validated and priced up front; the repository then commits the
// order, its item snapshots, and the conditional stock decrements as one
// transaction. A stock conflict aborts the whole order.
func (a *Assembler) PlaceOrder(ctx context.Context, userID string, lines []Line) (*Order, error) {
	if userID == "" {
		return nil, ErrUserRequired
	}
	if len(lines) == 0 {
		return nil, ErrEmptyOrder
	}

	o := &Order{
		ID:            uuid.NewString(),
		UserID:        userID,
		Status:        StatusPending,
		PaymentStatus: PaymentUnpaid,
		Subtotal:      decimal.Zero,
		ShippingFee:   decimal.Zero,
		Tax:           decimal.Zero,
		Discount:      decimal.Zero,
	}

	items := make([]Item, 0, len(lines))
	reservations := make([]inventory.Reservation, 0, len(lines))
	for _, ln := range lines {
		if ln.Quantity <= 0 {
			return nil, ErrQuantity
		}
		resolved, err := catalog.ResolveLine(ctx, a.catalog, ln.ProductID, ln.VariantID)
		if err != nil {
			return nil, err
		}
		// A variant-bearing product cannot be ordered bare.
		if resolved.Variant == nil && resolved.Product.HasVariants {
			return nil, ErrVariantRequired
		}
		quote, err := pricing.Calculate(resolved.Source, ln.Quantity)
		if err != nil {
			a.log.Error("pricing fault during order placement",
				zap.String("product_id", ln.ProductID),
				zap.String("variant_id", ln.VariantID),
				zap.Error(err))
			return nil, err
		}
		// Informative pre-check; the conditional decrement at commit is the
		// actual enforcement.
		if ln.Quantity > resolved.Stock {
			return nil, &inventory.InsufficientStockError{
				SKU:       resolved.SKU,
				Available: resolved.Stock,
				Requested: ln.Quantity,
			}
		}

		qty := decimal.NewFromInt(int64(ln.Quantity))
		o.Subtotal = o.Subtotal.Add(quote.UnitPrice.Mul(qty))
		o.Discount = o.Discount.Add(quote.UnitDiscount.Mul(qty))

		it := Item{
			ID:          uuid.NewString(),
			OrderID:     o.ID,
			ProductID:   resolved.Product.ID,
			ProductName: resolved.Product.Name,
			Quantity:    ln.Quantity,
			Price:       quote.UnitPrice,
			Discount:    quote.UnitDiscount,
			Subtotal:    quote.LineSubtotal,
		}
		if resolved.Variant != nil {
			it.VariantID = resolved.Variant.ID
			it.VariantName = resolved.Variant.Name
		}
		items = append(items, it)
		reservations = append(reservations, inventory.Reservation{SKU: resolved.SKU, Quantity: ln.Quantity})
	}
	o.TotalAmount = o.Subtotal.Add(o.Tax).Add(o.ShippingFee).Sub(o.Discount)

	var err error
	for attempt := 0; attempt < orderNumberRetries; attempt++ {
		o.OrderNumber = generateOrderNumber()
		err = a.repo.Create(ctx, o, items, reservations)
		if !errors.Is(err, ErrDuplicateOrderNumber) {
			break
		}
		a.log.Warn("order number collision, regenerating", zap.String("order_number", o.OrderNumber))
	}
	if err != nil {
		var conflict *inventory.StockConflictError
		if errors.As(err, &conflict) {
			a.metrics.StockConflicts.Inc()
		}
		return nil, err
	}

	a.metrics.OrdersPlaced.Inc()
	ev := events.OrderPlaced{
		OrderID:     o.ID,
		OrderNumber: o.OrderNumber,
		UserID:      o.UserID,
		TotalAmount: o.TotalAmount.StringFixed(2),
		PlacedAt:    time.Now().UTC(),
	}
	for _, it := range items {
		ev.Items = append(ev.Items, events.PlacedItem{
			ProductID: it.ProductID, VariantID: it.VariantID, Quantity: it.Quantity,
		})
	}
	if err := a.events.PublishOrderPlaced(ctx, ev); err != nil && !errors.Is(err, events.ErrDisabled) {
		// The order is committed; a lost notification must not undo it.
		a.log.Warn("order event publish failed", zap.String("order_id", o.ID), zap.Error(err))
	}
	return o, nil
}

// AttachCoupon applies a coupon to an already-placed order in its own
// transaction and returns the granted discount.
func (a *Assembler) AttachCoupon(ctx context.Context, orderID, code, userID string) (decimal.Decimal, error) {
	discount, err := a.coupons.Apply(ctx, code, orderID, userID)
	if err != nil {
		if reason := couponRejectionReason(err); reason != "" {
			a.metrics.CouponRejections.WithLabelValues(reason).Inc()
		}
		return decimal.Zero, err
	}
	return discount, nil
}

// AttachShippingAddress snapshots the address onto the order, resolves the
// fee bracket from the city, and recomputes the total in one update.
func (a *Assembler) AttachShippingAddress(ctx context.Context, orderID string, addr Address) (*Order, error) {
	if addr.City == "" && addr.AddressLine == "" {
		return nil, ErrAddressRequired
	}
	fee := a.shipping.Resolve(ctx, addr.City)
	if err := a.repo.SetShipping(ctx, orderID, addr, fee); err != nil {
		return nil, err
	}
	return a.repo.GetByID(ctx, orderID)
}

// UpdateStatus moves an order along the fulfillment path. Cancelling a
// pending order returns its reserved stock in the same transaction.
func (a *Assembler) UpdateStatus(ctx context.Context, orderID string, next Status) error {
	if !ValidStatus(next) {
		return ErrInvalidStatus
	}
	o, err := a.repo.GetByID(ctx, orderID)
	if err != nil {
		return err
	}
	if !CanTransition(o.Status, next) {
		return ErrInvalidTransition
	}
	if next == StatusCancelled && o.Status == StatusPending {
		items, err := a.repo.GetItems(ctx, orderID)
		if err != nil {
			return err
		}
		restock := make([]inventory.Reservation, 0, len(items))
		for _, it := range items {
			restock = append(restock, inventory.Reservation{
				SKU:      inventory.SKU{ProductID: it.ProductID, VariantID: it.VariantID},
				Quantity: it.Quantity,
			})
		}
		return a.repo.Cancel(ctx, orderID, restock)
	}
	return a.repo.UpdateStatus(ctx, orderID, next)
}

func generateOrderNumber() string {
	raw := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))
	return "ORD-" + raw[:10]
}

func couponRejectionReason(err error) string {
	var minErr *coupon.MinOrderError
	switch {
	case errors.Is(err, coupon.ErrInvalidOrExpired):
		return "invalid_or_expired"
	case errors.Is(err, coupon.ErrUsageLimitExceeded):
		return "usage_limit"
	case errors.Is(err, coupon.ErrAlreadyApplied):
		return "already_applied"
	case errors.As(err, &minErr):
		return "min_order"
	}
	return ""
}
