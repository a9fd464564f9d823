package cart

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/dokanify/checkout-core/internal/catalog"
	"github.com/dokanify/checkout-core/internal/inventory"
	"github.com/dokanify/checkout-core/internal/pricing"
)

var (
	ErrInvalidIdentity = errors.New("exactly one of user id or session token must be set")
	ErrQuantity        = errors.New("quantity must be positive")
)

// Service is the cart store and consolidator. Cart rows are only touched by
// their owner, so mutations run without explicit locking; concurrent edits by
// one identity are an accepted last-write-wins race.
type Service struct {
	repo    Repository
	catalog catalog.Provider
	log     *zap.Logger
}

func NewService(repo Repository, cat catalog.Provider, log *zap.Logger) *Service {
	return &Service{repo: repo, catalog: cat, log: log}
}

// GetOrCreate returns the identity's cart, creating it lazily.
func (s *Service) GetOrCreate(ctx context.Context, id Identity) (*Cart, error) {
	if !id.Valid() {
		return nil, ErrInvalidIdentity
	}
	var (
		c   *Cart
		err error
	)
	if id.IsGuest() {
		c, err = s.repo.GetBySession(ctx, id.SessionToken)
	} else {
		c, err = s.repo.GetByUser(ctx, id.UserID)
	}
	if err == nil {
		return c, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	c = &Cart{
		ID:           uuid.NewString(),
		UserID:       id.UserID,
		SessionToken: id.SessionToken,
		TotalAmount:  decimal.Zero,
	}
	if err := s.repo.Create(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// View returns the cart and its current line set.
func (s *Service) View(ctx context.Context, id Identity) (*Cart, []Item, error) {
	c, err := s.GetOrCreate(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	items, err := s.repo.Items(ctx, c.ID)
	if err != nil {
		return nil, nil, err
	}
	return c, items, nil
}

// AddItem appends quantity units to the (product, variant) line, creating the
// line if absent. The combined line quantity may never exceed live stock.
func (s *Service) AddItem(ctx context.Context, id Identity, productID, variantID string, quantity int) (*Item, error) {
	if quantity <= 0 {
		return nil, ErrQuantity
	}
	c, err := s.GetOrCreate(ctx, id)
	if err != nil {
		return nil, err
	}
	resolved, err := catalog.ResolveLine(ctx, s.catalog, productID, variantID)
	if err != nil {
		return nil, err
	}

	line, err := s.repo.FindLine(ctx, c.ID, productID, variantID)
	if err != nil && !errors.Is(err, ErrItemNotFound) {
		return nil, err
	}
	newQty := quantity
	if line != nil {
		newQty += line.Quantity
	}
	if newQty > resolved.Stock {
		return nil, &inventory.InsufficientStockError{
			SKU:       resolved.SKU,
			Available: resolved.Stock,
			Requested: newQty,
		}
	}

	quote, err := pricing.Calculate(resolved.Source, newQty)
	if err != nil {
		s.log.Error("pricing fault on cart add",
			zap.String("product_id", productID), zap.String("variant_id", variantID), zap.Error(err))
		return nil, err
	}

	if line == nil {
		line = &Item{
			ID:        uuid.NewString(),
			CartID:    c.ID,
			ProductID: productID,
			VariantID: variantID,
		}
	}
	line.Quantity = newQty
	line.Price = quote.UnitPrice.Sub(quote.UnitDiscount)
	line.Subtotal = quote.LineSubtotal
	if err := s.repo.SaveItem(ctx, line); err != nil {
		return nil, err
	}
	if err := s.recomputeTotal(ctx, c.ID); err != nil {
		return nil, err
	}
	return line, nil
}

// UpdateItem replaces the line quantity, re-checking the stock ceiling.
func (s *Service) UpdateItem(ctx context.Context, id Identity, itemID string, quantity int) (*Item, error) {
	if quantity <= 0 {
		return nil, ErrQuantity
	}
	c, err := s.GetOrCreate(ctx, id)
	if err != nil {
		return nil, err
	}
	line, err := s.repo.GetItem(ctx, c.ID, itemID)
	if err != nil {
		return nil, err
	}
	resolved, err := catalog.ResolveLine(ctx, s.catalog, line.ProductID, line.VariantID)
	if err != nil {
		return nil, err
	}
	if quantity > resolved.Stock {
		return nil, &inventory.InsufficientStockError{
			SKU:       resolved.SKU,
			Available: resolved.Stock,
			Requested: quantity,
		}
	}
	quote, err := pricing.Calculate(resolved.Source, quantity)
	if err != nil {
		return nil, err
	}
	line.Quantity = quantity
	line.Price = quote.UnitPrice.Sub(quote.UnitDiscount)
	line.Subtotal = quote.LineSubtotal
	if err := s.repo.SaveItem(ctx, line); err != nil {
		return nil, err
	}
	if err := s.recomputeTotal(ctx, c.ID); err != nil {
		return nil, err
	}
	return line, nil
}

func (s *Service) RemoveItem(ctx context.Context, id Identity, itemID string) error {
	c, err := s.GetOrCreate(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.DeleteItem(ctx, c.ID, itemID); err != nil {
		return err
	}
	return s.recomputeTotal(ctx, c.ID)
}

// Clear drops every line. A guest cart is deleted outright so the session
// binding is released and a fresh guest cart can be created afterwards.
func (s *Service) Clear(ctx context.Context, id Identity) error {
	c, err := s.GetOrCreate(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.DeleteItems(ctx, c.ID); err != nil {
		return err
	}
	if id.IsGuest() {
		return s.repo.DeleteCart(ctx, c.ID)
	}
	return s.repo.SetTotal(ctx, c.ID, decimal.Zero)
}

// MergeGuestIntoUser consolidates the session cart into the user's cart at
// login. Overlapping lines are summed; every merged quantity is clamped to
// live stock rather than silently dropped, and clamps are reported back.
// Merging an absent guest cart is a no-op, which makes the call idempotent.
func (s *Service) MergeGuestIntoUser(ctx context.Context, sessionToken, userID string) (*MergeResult, error) {
	if sessionToken == "" || userID == "" {
		return nil, ErrInvalidIdentity
	}
	res := &MergeResult{}
	guest, err := s.repo.GetBySession(ctx, sessionToken)
	if errors.Is(err, ErrNotFound) {
		return res, nil
	}
	if err != nil {
		return nil, err
	}
	guestItems, err := s.repo.Items(ctx, guest.ID)
	if err != nil {
		return nil, err
	}
	target, err := s.GetOrCreate(ctx, ForUser(userID))
	if err != nil {
		return nil, err
	}

	for _, gi := range guestItems {
		resolved, err := catalog.ResolveLine(ctx, s.catalog, gi.ProductID, gi.VariantID)
		if err != nil {
			// Line no longer sellable: drop it, but tell the caller.
			res.Clamped = append(res.Clamped, ClampedLine{
				ProductID: gi.ProductID, VariantID: gi.VariantID,
				Requested: gi.Quantity, Kept: 0,
			})
			continue
		}
		existing, err := s.repo.FindLine(ctx, target.ID, gi.ProductID, gi.VariantID)
		if err != nil && !errors.Is(err, ErrItemNotFound) {
			return nil, err
		}

		want := gi.Quantity
		if existing != nil {
			want += existing.Quantity
		}
		kept := want
		if kept > resolved.Stock {
			kept = resolved.Stock
			res.Clamped = append(res.Clamped, ClampedLine{
				ProductID: gi.ProductID, VariantID: gi.VariantID,
				Requested: want, Kept: kept,
			})
		}
		if kept <= 0 {
			continue
		}

		if existing != nil {
			existing.Quantity = kept
			existing.Subtotal = existing.Price.Mul(decimal.NewFromInt(int64(kept)))
			if err := s.repo.SaveItem(ctx, existing); err != nil {
				return nil, err
			}
		} else if kept == gi.Quantity {
			if err := s.repo.MoveItem(ctx, gi.ID, target.ID); err != nil {
				return nil, err
			}
		} else {
			// Clamped copy gets a fresh id; the guest original is swept below.
			moved := gi
			moved.ID = uuid.NewString()
			moved.CartID = target.ID
			moved.Quantity = kept
			moved.Subtotal = moved.Price.Mul(decimal.NewFromInt(int64(kept)))
			if err := s.repo.SaveItem(ctx, &moved); err != nil {
				return nil, err
			}
		}
		res.MergedLines++
	}

	if err := s.repo.DeleteItems(ctx, guest.ID); err != nil {
		return nil, err
	}
	if err := s.repo.DeleteCart(ctx, guest.ID); err != nil {
		return nil, err
	}
	if err := s.recomputeTotal(ctx, target.ID); err != nil {
		return nil, err
	}
	return res, nil
}

func (s *Service) recomputeTotal(ctx context.Context, cartID string) error {
	items, err := s.repo.Items(ctx, cartID)
	if err != nil {
		return err
	}
	total := decimal.Zero
	for _, it := range items {
		total = total.Add(it.Subtotal)
	}
	return s.repo.SetTotal(ctx, cartID, total)
}
