package order

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/dokanify/checkout-core/internal/catalog"
	"github.com/dokanify/checkout-core/internal/coupon"
	"github.com/dokanify/checkout-core/internal/events"
	"github.com/dokanify/checkout-core/internal/inventory"
	"github.com/dokanify/checkout-core/internal/metrics"
	"github.com/dokanify/checkout-core/internal/shipping"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

type testEnv struct {
	cat    *catalog.Memory
	repo   *MemoryRepo
	ledger *coupon.MemoryLedger
	fees   *shipping.MemoryConfigStore
	pub    *events.MemoryPublisher
	asm    *Assembler
}

func newTestEnv() *testEnv {
	cat := catalog.NewMemory()
	cat.PutProduct(&catalog.Product{
		ID: "p1", Name: "Keyboard", Status: catalog.ProductPublished,
		BasePrice: dec("100.00"), Stock: 5,
	})
	cat.PutProduct(&catalog.Product{
		ID: "p2", Name: "Mouse", Status: catalog.ProductPublished,
		BasePrice: dec("40.00"), Stock: 10, HasVariants: true,
	})
	d := dec("5.00")
	cat.PutVariant(&catalog.Variant{
		ID: "v1", ProductID: "p2", Name: "Black",
		Price: dec("45.00"), DiscountPrice: &d, Stock: 3,
	})
	cat.PutProduct(&catalog.Product{
		ID: "p3", Name: "Draft", Status: catalog.ProductDraft,
		BasePrice: dec("10.00"), Stock: 99,
	})

	repo := NewMemoryRepo(cat)
	ledger := coupon.NewMemoryLedger(repo)
	fees := shipping.NewMemoryConfigStore()
	fees.Put(shipping.KeywordInsideDhaka, dec("60.00"))
	fees.Put(shipping.KeywordOutsideDhaka, dec("120.00"))
	pub := events.NewMemoryPublisher()

	asm := NewAssembler(repo, cat, shipping.NewResolver(fees), ledger, pub,
		metrics.New(prometheus.NewRegistry()), zap.NewNop())
	return &testEnv{cat: cat, repo: repo, ledger: ledger, fees: fees, pub: pub, asm: asm}
}

func (e *testEnv) putSave10(limit *int) {
	e.ledger.Put(&coupon.Coupon{
		ID:             "c1",
		Code:           "SAVE10",
		Type:           coupon.TypePercentage,
		Value:          dec("10"),
		MinOrderAmount: dec("50.00"),
		UsageLimit:     limit,
		ValidFrom:      time.Now().Add(-time.Hour),
		ValidTo:        time.Now().Add(time.Hour),
		Status:         coupon.StatusActive,
	})
}

func assertTotalsHold(t *testing.T, o *Order) {
	t.Helper()
	want := o.Subtotal.Add(o.Tax).Add(o.ShippingFee).Sub(o.Discount)
	assert.Truef(t, o.TotalAmount.Equal(want),
		"total %s != subtotal %s + tax %s + shipping %s - discount %s",
		o.TotalAmount, o.Subtotal, o.Tax, o.ShippingFee, o.Discount)
}

func TestPlaceOrder_SnapshotsAndDecrementsStock(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	o, err := env.asm.PlaceOrder(ctx, "u1", []Line{
		{ProductID: "p1", Quantity: 2},
		{ProductID: "p2", VariantID: "v1", Quantity: 1},
	})
	require.NoError(t, err)

	assert.Equal(t, StatusPending, o.Status)
	assert.Equal(t, PaymentUnpaid, o.PaymentStatus)
	assert.True(t, o.Subtotal.Equal(dec("245.00"))) // 2*100 + 45 gross
	assert.True(t, o.Discount.Equal(dec("5.00")))   // variant markdown
	assert.True(t, o.TotalAmount.Equal(dec("240.00")))
	assertTotalsHold(t, o)
	assert.Regexp(t, `^ORD-[0-9A-F]{10}$`, o.OrderNumber)

	items, err := env.repo.GetItems(ctx, o.ID)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "Keyboard", items[0].ProductName)
	assert.Equal(t, "Black", items[1].VariantName)
	assert.True(t, items[1].Price.Equal(dec("45.00")))
	assert.True(t, items[1].Subtotal.Equal(dec("40.00")))

	p, _ := env.cat.GetProduct(ctx, "p1")
	v, _ := env.cat.GetVariant(ctx, "v1")
	assert.Equal(t, 3, p.Stock)
	assert.Equal(t, 2, v.Stock)

	evs := env.pub.Events()
	require.Len(t, evs, 1)
	assert.Equal(t, o.ID, evs[0].OrderID)
	assert.Len(t, evs[0].Items, 2)
}

func TestPlaceOrder_Validation(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	_, err := env.asm.PlaceOrder(ctx, "", []Line{{ProductID: "p1", Quantity: 1}})
	assert.ErrorIs(t, err, ErrUserRequired)

	_, err = env.asm.PlaceOrder(ctx, "u1", nil)
	assert.ErrorIs(t, err, ErrEmptyOrder)

	_, err = env.asm.PlaceOrder(ctx, "u1", []Line{{ProductID: "p1", Quantity: 0}})
	assert.ErrorIs(t, err, ErrQuantity)

	// A variant-bearing product cannot be ordered bare.
	_, err = env.asm.PlaceOrder(ctx, "u1", []Line{{ProductID: "p2", Quantity: 1}})
	assert.ErrorIs(t, err, ErrVariantRequired)

	_, err = env.asm.PlaceOrder(ctx, "u1", []Line{{ProductID: "p1", VariantID: "v1", Quantity: 1}})
	assert.ErrorIs(t, err, catalog.ErrVariantMismatch)

	_, err = env.asm.PlaceOrder(ctx, "u1", []Line{{ProductID: "p3", Quantity: 1}})
	assert.ErrorIs(t, err, catalog.ErrProductUnavailable)

	_, err = env.asm.PlaceOrder(ctx, "u1", []Line{{ProductID: "nope", Quantity: 1}})
	assert.ErrorIs(t, err, catalog.ErrProductNotFound)
}

func TestPlaceOrder_InsufficientStockLeavesNothingBehind(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	_, err := env.asm.PlaceOrder(ctx, "u1", []Line{{ProductID: "p1", Quantity: 6}})
	var insufficient *inventory.InsufficientStockError
	require.ErrorAs(t, err, &insufficient)
	assert.Equal(t, 5, insufficient.Available)

	// A multi-line order failing on its second line must not decrement the first.
	_, err = env.asm.PlaceOrder(ctx, "u1", []Line{
		{ProductID: "p1", Quantity: 2},
		{ProductID: "p2", VariantID: "v1", Quantity: 4},
	})
	require.Error(t, err)

	p, _ := env.cat.GetProduct(ctx, "p1")
	v, _ := env.cat.GetVariant(ctx, "v1")
	assert.Equal(t, 5, p.Stock)
	assert.Equal(t, 3, v.Stock)
	orders, err := env.repo.ListByUser(ctx, "u1", 20, 0)
	require.NoError(t, err)
	assert.Empty(t, orders)
}

// Two buyers racing for the last units: exactly one order commits and the
// counter never goes negative.
func TestPlaceOrder_ConcurrentSameSKU(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make(chan error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := env.asm.PlaceOrder(ctx, "u1", []Line{{ProductID: "p1", Quantity: 3}})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	var ok, rejected int
	for err := range errs {
		if err == nil {
			ok++
			continue
		}
		var conflict *inventory.StockConflictError
		var insufficient *inventory.InsufficientStockError
		if assert.True(t, errors.As(err, &conflict) || errors.As(err, &insufficient), "unexpected error: %v", err) {
			rejected++
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, rejected)

	p, _ := env.cat.GetProduct(ctx, "p1")
	assert.Equal(t, 2, p.Stock)
}

func TestPlaceOrder_ConcurrentManyBuyers(t *testing.T) {
	env := newTestEnv()
	env.cat.PutProduct(&catalog.Product{
		ID: "hot", Name: "Drop", Status: catalog.ProductPublished,
		BasePrice: dec("10.00"), Stock: 7,
	})
	ctx := context.Background()

	const buyers = 20
	var wg sync.WaitGroup
	var mu sync.Mutex
	placed := 0
	for i := 0; i < buyers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := env.asm.PlaceOrder(ctx, "u1", []Line{{ProductID: "hot", Quantity: 1}}); err == nil {
				mu.Lock()
				placed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	p, _ := env.cat.GetProduct(ctx, "hot")
	assert.Equal(t, 7, placed)
	assert.Equal(t, 0, p.Stock)
}

// Lines repeating a SKU must be judged by their combined quantity; passing
// each line against the original counter would drive stock negative.
func TestPlaceOrder_DuplicateSKULinesCannotOversell(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	_, err := env.asm.PlaceOrder(ctx, "u1", []Line{
		{ProductID: "p1", Quantity: 3},
		{ProductID: "p1", Quantity: 3},
	})
	var conflict *inventory.StockConflictError
	require.ErrorAs(t, err, &conflict)

	p, _ := env.cat.GetProduct(ctx, "p1")
	assert.Equal(t, 5, p.Stock)
	orders, err := env.repo.ListByUser(ctx, "u1", 20, 0)
	require.NoError(t, err)
	assert.Empty(t, orders)

	// A combined quantity that fits still commits.
	_, err = env.asm.PlaceOrder(ctx, "u1", []Line{
		{ProductID: "p1", Quantity: 2},
		{ProductID: "p1", Quantity: 3},
	})
	require.NoError(t, err)
	p, _ = env.cat.GetProduct(ctx, "p1")
	assert.Equal(t, 0, p.Stock)
}

func TestAttachCoupon_RecomputesTotalNotSubtotal(t *testing.T) {
	env := newTestEnv()
	env.putSave10(nil)
	ctx := context.Background()

	o, err := env.asm.PlaceOrder(ctx, "u1", []Line{{ProductID: "p1", Quantity: 2}})
	require.NoError(t, err)
	require.True(t, o.Subtotal.Equal(dec("200.00")))

	discount, err := env.asm.AttachCoupon(ctx, o.ID, "SAVE10", "u1")
	require.NoError(t, err)
	assert.True(t, discount.Equal(dec("20.00")))

	after, err := env.repo.GetByID(ctx, o.ID)
	require.NoError(t, err)
	assert.True(t, after.Subtotal.Equal(dec("200.00"))) // gross stays put
	assert.True(t, after.Discount.Equal(dec("20.00")))
	assert.True(t, after.TotalAmount.Equal(dec("180.00")))
	assert.Equal(t, "SAVE10", after.CouponCode)
	assertTotalsHold(t, after)

	c, _ := env.ledger.Get("SAVE10")
	assert.Equal(t, 1, c.UsageCount)
}

func TestAttachCoupon_Rejections(t *testing.T) {
	env := newTestEnv()
	env.putSave10(nil)
	ctx := context.Background()

	small, err := env.asm.PlaceOrder(ctx, "u1", []Line{{ProductID: "p2", VariantID: "v1", Quantity: 1}})
	require.NoError(t, err)
	require.True(t, small.Subtotal.Equal(dec("45.00")))

	_, err = env.asm.AttachCoupon(ctx, small.ID, "SAVE10", "u1")
	var minErr *coupon.MinOrderError
	require.ErrorAs(t, err, &minErr)

	// Rejection leaves the order untouched.
	after, err := env.repo.GetByID(ctx, small.ID)
	require.NoError(t, err)
	assert.Empty(t, after.CouponCode)
	assert.True(t, after.TotalAmount.Equal(small.TotalAmount))

	_, err = env.asm.AttachCoupon(ctx, small.ID, "NOPE", "u1")
	assert.ErrorIs(t, err, coupon.ErrInvalidOrExpired)

	_, err = env.asm.AttachCoupon(ctx, "missing-order", "SAVE10", "u1")
	assert.ErrorIs(t, err, coupon.ErrOrderNotFound)
}

func TestAttachShippingAddress_ResolvesFeeByCity(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	o, err := env.asm.PlaceOrder(ctx, "u1", []Line{{ProductID: "p1", Quantity: 2}})
	require.NoError(t, err)

	updated, err := env.asm.AttachShippingAddress(ctx, o.ID, Address{
		Name: "R. Ahmed", Phone: "01700000000", AddressLine: "House 7", City: "  DHAKA ",
	})
	require.NoError(t, err)
	assert.True(t, updated.ShippingFee.Equal(dec("60.00")))
	assert.True(t, updated.TotalAmount.Equal(dec("260.00")))
	require.NotNil(t, updated.ShippingAddress)
	assert.Equal(t, "House 7", updated.ShippingAddress.AddressLine)
	assertTotalsHold(t, updated)

	// Re-attaching with a different city replaces the fee, never stacks it.
	updated, err = env.asm.AttachShippingAddress(ctx, o.ID, Address{AddressLine: "Road 2", City: "Chittagong"})
	require.NoError(t, err)
	assert.True(t, updated.ShippingFee.Equal(dec("120.00")))
	assert.True(t, updated.TotalAmount.Equal(dec("320.00")))
	assertTotalsHold(t, updated)

	_, err = env.asm.AttachShippingAddress(ctx, o.ID, Address{Name: "nobody"})
	assert.ErrorIs(t, err, ErrAddressRequired)
}

func TestAttachShippingAddress_UnconfiguredFeeFailsOpen(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	env.fees = shipping.NewMemoryConfigStore() // no rows
	env.asm = NewAssembler(env.repo, env.cat, shipping.NewResolver(env.fees), env.ledger,
		env.pub, metrics.New(prometheus.NewRegistry()), zap.NewNop())

	o, err := env.asm.PlaceOrder(ctx, "u1", []Line{{ProductID: "p1", Quantity: 1}})
	require.NoError(t, err)
	updated, err := env.asm.AttachShippingAddress(ctx, o.ID, Address{City: "Sylhet"})
	require.NoError(t, err)
	assert.True(t, updated.ShippingFee.IsZero())
	assertTotalsHold(t, updated)
}

func TestUpdateStatus_CancelPendingRestocks(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	o, err := env.asm.PlaceOrder(ctx, "u1", []Line{
		{ProductID: "p1", Quantity: 2},
		{ProductID: "p2", VariantID: "v1", Quantity: 1},
	})
	require.NoError(t, err)

	require.NoError(t, env.asm.UpdateStatus(ctx, o.ID, StatusCancelled))

	after, err := env.repo.GetByID(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, after.Status)

	p, _ := env.cat.GetProduct(ctx, "p1")
	v, _ := env.cat.GetVariant(ctx, "v1")
	assert.Equal(t, 5, p.Stock)
	assert.Equal(t, 3, v.Stock)
}

func TestUpdateStatus_Transitions(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	o, err := env.asm.PlaceOrder(ctx, "u1", []Line{{ProductID: "p1", Quantity: 1}})
	require.NoError(t, err)

	assert.ErrorIs(t, env.asm.UpdateStatus(ctx, o.ID, Status("teleported")), ErrInvalidStatus)
	assert.ErrorIs(t, env.asm.UpdateStatus(ctx, o.ID, StatusShipped), ErrInvalidTransition)

	require.NoError(t, env.asm.UpdateStatus(ctx, o.ID, StatusConfirmed))
	// Skipping a fulfillment step is rejected.
	assert.ErrorIs(t, env.asm.UpdateStatus(ctx, o.ID, StatusProcessing), ErrInvalidTransition)
	require.NoError(t, env.asm.UpdateStatus(ctx, o.ID, StatusPacked))
	require.NoError(t, env.asm.UpdateStatus(ctx, o.ID, StatusProcessing))
	require.NoError(t, env.asm.UpdateStatus(ctx, o.ID, StatusShipped))
	require.NoError(t, env.asm.UpdateStatus(ctx, o.ID, StatusDelivered))

	// Delivered is terminal.
	assert.ErrorIs(t, env.asm.UpdateStatus(ctx, o.ID, StatusCancelled), ErrInvalidTransition)

	assert.ErrorIs(t, env.asm.UpdateStatus(ctx, "missing", StatusConfirmed), ErrNotFound)
}

func TestListByUser_NewestFirstAndStablePages(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := env.asm.PlaceOrder(ctx, "u1", []Line{{ProductID: "p1", Quantity: 1}})
		require.NoError(t, err)
	}

	all, err := env.repo.ListByUser(ctx, "u1", 20, 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	for i := 1; i < len(all); i++ {
		assert.False(t, all[i].CreatedAt.After(all[i-1].CreatedAt))
	}

	again, err := env.repo.ListByUser(ctx, "u1", 20, 0)
	require.NoError(t, err)
	var paged []Order
	for off := 0; off < 3; off++ {
		page, err := env.repo.ListByUser(ctx, "u1", 1, off)
		require.NoError(t, err)
		require.Len(t, page, 1)
		paged = append(paged, page...)
	}
	for i := range all {
		assert.Equal(t, all[i].ID, again[i].ID)
		assert.Equal(t, all[i].ID, paged[i].ID)
	}
}

func TestTotalsHoldThroughLifecycle(t *testing.T) {
	env := newTestEnv()
	env.putSave10(nil)
	ctx := context.Background()

	o, err := env.asm.PlaceOrder(ctx, "u1", []Line{
		{ProductID: "p1", Quantity: 1},
		{ProductID: "p2", VariantID: "v1", Quantity: 2},
	})
	require.NoError(t, err)
	assertTotalsHold(t, o)

	_, err = env.asm.AttachCoupon(ctx, o.ID, "SAVE10", "u1")
	require.NoError(t, err)
	o, err = env.repo.GetByID(ctx, o.ID)
	require.NoError(t, err)
	assertTotalsHold(t, o)

	o, err = env.asm.AttachShippingAddress(ctx, o.ID, Address{City: "Dhaka", AddressLine: "Banani 11"})
	require.NoError(t, err)
	assertTotalsHold(t, o)
}
