// Package inventory performs the conditional stock decrements that back
// order placement. A decrement only takes effect while the counter still
// covers the requested quantity, so concurrent commits against the same SKU
// can never jointly drive stock negative.
package inventory

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// SKU identifies the stock counter for a line: the product itself, or one of
// its variants when VariantID is set.
type SKU struct {
	ProductID string
	VariantID string
}

func (s SKU) String() string {
	if s.VariantID != "" {
		return "variant:" + s.VariantID
	}
	return "product:" + s.ProductID
}

// Reservation is one decrement to apply at commit time.
type Reservation struct {
	SKU      SKU
	Quantity int
}

// InsufficientStockError is the informative pre-check rejection: the request
// exceeds the current ceiling and the caller should adjust, no retry needed.
type InsufficientStockError struct {
	SKU       SKU
	Available int
	Requested int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock on %s: only %d available", e.SKU, e.Available)
}

// StockConflictError reports a commit-time decrement that found less stock
// than requested. The caller is expected to re-quote and retry; nothing from
// the surrounding transaction is kept.
type StockConflictError struct {
	SKU       SKU
	Requested int
}

func (e *StockConflictError) Error() string {
	return fmt.Sprintf("stock conflict on %s: %d units no longer available", e.SKU, e.Requested)
}

// ReserveTx applies every reservation inside the caller's transaction.
// Each decrement is a single conditional update; a zero-row match means
// another order won the stock and the whole transaction must abort.
func ReserveTx(ctx context.Context, tx pgx.Tx, reservations []Reservation) error {
	for _, res := range reservations {
		var (
			query string
			id    string
		)
		if res.SKU.VariantID != "" {
			query = `UPDATE product_variants SET stock = stock - $2 WHERE id = $1 AND stock >= $2`
			id = res.SKU.VariantID
		} else {
			query = `UPDATE products SET stock = stock - $2, updated_at = NOW() WHERE id = $1 AND stock >= $2`
			id = res.SKU.ProductID
		}
		tag, err := tx.Exec(ctx, query, id, res.Quantity)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return &StockConflictError{SKU: res.SKU, Requested: res.Quantity}
		}
	}
	return nil
}

// ReleaseTx returns previously reserved stock, used when a pending order is
// cancelled. Unconditional: releasing can only grow the counter.
func ReleaseTx(ctx context.Context, tx pgx.Tx, reservations []Reservation) error {
	for _, res := range reservations {
		var (
			query string
			id    string
		)
		if res.SKU.VariantID != "" {
			query = `UPDATE product_variants SET stock = stock + $2 WHERE id = $1`
			id = res.SKU.VariantID
		} else {
			query = `UPDATE products SET stock = stock + $2, updated_at = NOW() WHERE id = $1`
			id = res.SKU.ProductID
		}
		if _, err := tx.Exec(ctx, query, id, res.Quantity); err != nil {
			return err
		}
	}
	return nil
}
