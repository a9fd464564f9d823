package coupon

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

var (
	ErrInvalidOrExpired   = errors.New("coupon is invalid or expired")
	ErrUsageLimitExceeded = errors.New("coupon usage limit exceeded")
	ErrAlreadyApplied     = errors.New("order already has a coupon applied")
	ErrOrderNotFound      = errors.New("order not found")
)

// MinOrderError reports the threshold the order fell short of.
type MinOrderError struct {
	Min decimal.Decimal
}

func (e *MinOrderError) Error() string {
	return fmt.Sprintf("order subtotal below coupon minimum of %s", e.Min.StringFixed(2))
}

// Ledger validates a coupon against its window, minimum, and usage cap, and
// atomically records its use against an order.
type Ledger interface {
	Apply(ctx context.Context, code, orderID, userID string) (decimal.Decimal, error)
}

// PGLedger runs the whole application as one transaction: an exclusive lock
// on the coupon row keeps the discount math stable while the counter
// advances, and the unique usage row per order guards double application.
type PGLedger struct{ db *pgxpool.Pool }

func NewPGLedger(db *pgxpool.Pool) *PGLedger { return &PGLedger{db: db} }

func (l *PGLedger) Apply(ctx context.Context, code, orderID, userID string) (decimal.Decimal, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	tx, err := l.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return decimal.Zero, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var (
		c        Coupon
		valueStr string
		minStr   string
	)
	err = tx.QueryRow(ctx, `
		SELECT id, type, value::text, min_order_amount::text, usage_limit, usage_count
		FROM coupons
		WHERE code=$1 AND status='active' AND valid_from <= NOW() AND valid_to >= NOW()
		FOR UPDATE
	`, code).Scan(&c.ID, &c.Type, &valueStr, &minStr, &c.UsageLimit, &c.UsageCount)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return decimal.Zero, ErrInvalidOrExpired
		}
		return decimal.Zero, err
	}
	if c.Value, err = decimal.NewFromString(valueStr); err != nil {
		return decimal.Zero, err
	}
	if c.MinOrderAmount, err = decimal.NewFromString(minStr); err != nil {
		return decimal.Zero, err
	}

	var subtotalStr string
	err = tx.QueryRow(ctx, `SELECT subtotal::text FROM orders WHERE id=$1 FOR UPDATE`, orderID).Scan(&subtotalStr)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return decimal.Zero, ErrOrderNotFound
		}
		return decimal.Zero, err
	}
	subtotal, err := decimal.NewFromString(subtotalStr)
	if err != nil {
		return decimal.Zero, err
	}

	// One coupon per order: any usage row on the order blocks a second
	// application, whatever its code. The unique constraint hit below only
	// covers re-applying the same coupon.
	var used bool
	err = tx.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM coupon_usages WHERE order_id=$1)
	`, orderID).Scan(&used)
	if err != nil {
		return decimal.Zero, err
	}
	if used {
		return decimal.Zero, ErrAlreadyApplied
	}

	if subtotal.LessThan(c.MinOrderAmount) {
		return decimal.Zero, &MinOrderError{Min: c.MinOrderAmount}
	}
	if c.UsageLimit != nil && c.UsageCount >= *c.UsageLimit {
		return decimal.Zero, ErrUsageLimitExceeded
	}

	discount := c.Discount(subtotal)

	_, err = tx.Exec(ctx, `
		INSERT INTO coupon_usages (id, coupon_id, user_id, order_id, discount_amount, created_at)
		VALUES ($1,$2,$3,$4,$5,NOW())
	`, uuid.NewString(), c.ID, userID, orderID, discount)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return decimal.Zero, ErrAlreadyApplied
		}
		return decimal.Zero, err
	}

	// The increment only lands while the cap still has room.
	tag, err := tx.Exec(ctx, `
		UPDATE coupons SET usage_count = usage_count + 1, updated_at = NOW()
		WHERE id=$1 AND (usage_limit IS NULL OR usage_count < usage_limit)
	`, c.ID)
	if err != nil {
		return decimal.Zero, err
	}
	if tag.RowsAffected() == 0 {
		return decimal.Zero, ErrUsageLimitExceeded
	}

	_, err = tx.Exec(ctx, `
		UPDATE orders
		SET discount = discount + $2,
		    coupon_code = $3,
		    total_amount = subtotal + tax + shipping_fee - (discount + $2),
		    updated_at = NOW()
		WHERE id=$1
	`, orderID, discount, code)
	if err != nil {
		return decimal.Zero, err
	}

	if err := tx.Commit(ctx); err != nil {
		return decimal.Zero, err
	}
	return discount, nil
}
