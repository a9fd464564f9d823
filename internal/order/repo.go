package order

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/dokanify/checkout-core/internal/inventory"
)

var (
	ErrNotFound             = errors.New("order not found")
	ErrDuplicateOrderNumber = errors.New("order number already taken")
)

type Repository interface {
	// Create persists the order, its items, and the stock decrements as one
	// all-or-nothing transaction.
	Create(ctx context.Context, o *Order, items []Item, reservations []inventory.Reservation) error
	GetByID(ctx context.Context, id string) (*Order, error)
	GetItems(ctx context.Context, orderID string) ([]Item, error)
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]Order, error)
	UpdateStatus(ctx context.Context, id string, status Status) error
	// Cancel moves the order to cancelled and returns the reserved stock in
	// the same transaction.
	Cancel(ctx context.Context, id string, restock []inventory.Reservation) error
	// SetShipping snapshots the address and re-derives total_amount in one
	// update.
	SetShipping(ctx context.Context, id string, addr Address, fee decimal.Decimal) error
}

type PGRepo struct{ db *pgxpool.Pool }

func NewPGRepo(db *pgxpool.Pool) *PGRepo { return &PGRepo{db: db} }

const orderColumns = `
	id, order_number, user_id, parent_id, status, payment_status,
	subtotal::text, shipping_fee::text, tax::text, discount::text, total_amount::text,
	coupon_code, ship_name, ship_phone, ship_address, ship_city, ship_postcode,
	created_at, updated_at`

func (r *PGRepo) Create(ctx context.Context, o *Order, items []Item, reservations []inventory.Reservation) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx, `
		INSERT INTO orders (id, order_number, user_id, parent_id, status, payment_status,
		                    subtotal, shipping_fee, tax, discount, total_amount, coupon_code,
		                    created_at, updated_at)
		VALUES ($1,$2,$3,NULLIF($4,''),$5,$6,$7,$8,$9,$10,$11,NULLIF($12,''),NOW(),NOW())
	`, o.ID, o.OrderNumber, o.UserID, o.ParentID, o.Status, o.PaymentStatus,
		o.Subtotal, o.ShippingFee, o.Tax, o.Discount, o.TotalAmount, o.CouponCode)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrDuplicateOrderNumber
		}
		return err
	}

	for _, it := range items {
		_, err := tx.Exec(ctx, `
			INSERT INTO order_items (id, order_id, product_id, variant_id, product_name, variant_name,
			                         quantity, price, discount, subtotal)
			VALUES ($1,$2,$3,NULLIF($4,''),$5,NULLIF($6,''),$7,$8,$9,$10)
		`, it.ID, o.ID, it.ProductID, it.VariantID, it.ProductName, it.VariantName,
			it.Quantity, it.Price, it.Discount, it.Subtotal)
		if err != nil {
			return err
		}
	}

	if err := inventory.ReserveTx(ctx, tx, reservations); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (r *PGRepo) GetByID(ctx context.Context, id string) (*Order, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	row := r.db.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id=$1`, id)
	o, err := scanOrder(row.Scan)
	if err != nil {
		return nil, ErrNotFound
	}
	return o, nil
}

func (r *PGRepo) GetItems(ctx context.Context, orderID string) ([]Item, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	rows, err := r.db.Query(ctx, `
		SELECT id, order_id, product_id, variant_id, product_name, variant_name,
		       quantity, price::text, discount::text, subtotal::text
		FROM order_items WHERE order_id=$1
	`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []Item
	for rows.Next() {
		var (
			it          Item
			variantID   *string
			variantName *string
			price       string
			discount    string
			subtotal    string
		)
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ProductID, &variantID, &it.ProductName, &variantName,
			&it.Quantity, &price, &discount, &subtotal); err != nil {
			return nil, err
		}
		if variantID != nil {
			it.VariantID = *variantID
		}
		if variantName != nil {
			it.VariantName = *variantName
		}
		if it.Price, err = decimal.NewFromString(price); err != nil {
			return nil, err
		}
		if it.Discount, err = decimal.NewFromString(discount); err != nil {
			return nil, err
		}
		if it.Subtotal, err = decimal.NewFromString(subtotal); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

func (r *PGRepo) ListByUser(ctx context.Context, userID string, limit, offset int) ([]Order, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	rows, err := r.db.Query(ctx, `
		SELECT `+orderColumns+` FROM orders WHERE user_id=$1
		ORDER BY created_at DESC LIMIT $2 OFFSET $3
	`, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Order
	for rows.Next() {
		o, err := scanOrder(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, *o)
	}
	return out, rows.Err()
}

func (r *PGRepo) UpdateStatus(ctx context.Context, id string, status Status) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	tag, err := r.db.Exec(ctx, `
		UPDATE orders SET status=$2, updated_at=NOW() WHERE id=$1
	`, id, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PGRepo) Cancel(ctx context.Context, id string, restock []inventory.Reservation) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx, `
		UPDATE orders SET status=$2, updated_at=NOW() WHERE id=$1
	`, id, StatusCancelled)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	if err := inventory.ReleaseTx(ctx, tx, restock); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (r *PGRepo) SetShipping(ctx context.Context, id string, addr Address, fee decimal.Decimal) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	tag, err := r.db.Exec(ctx, `
		UPDATE orders
		SET ship_name=$2, ship_phone=$3, ship_address=$4, ship_city=$5, ship_postcode=$6,
		    shipping_fee=$7,
		    total_amount = subtotal + tax + $7 - discount,
		    updated_at=NOW()
		WHERE id=$1
	`, id, addr.Name, addr.Phone, addr.AddressLine, addr.City, addr.PostalCode, fee)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanOrder(scan func(dest ...any) error) (*Order, error) {
	var (
		o        Order
		parent   *string
		coupon   *string
		shipName *string
		shipPh   *string
		shipAddr *string
		shipCity *string
		shipPost *string
		amounts  [5]string
	)
	if err := scan(&o.ID, &o.OrderNumber, &o.UserID, &parent, &o.Status, &o.PaymentStatus,
		&amounts[0], &amounts[1], &amounts[2], &amounts[3], &amounts[4],
		&coupon, &shipName, &shipPh, &shipAddr, &shipCity, &shipPost,
		&o.CreatedAt, &o.UpdatedAt); err != nil {
		return nil, err
	}
	if parent != nil {
		o.ParentID = *parent
	}
	if coupon != nil {
		o.CouponCode = *coupon
	}
	if shipCity != nil {
		o.ShippingAddress = &Address{City: *shipCity}
		if shipName != nil {
			o.ShippingAddress.Name = *shipName
		}
		if shipPh != nil {
			o.ShippingAddress.Phone = *shipPh
		}
		if shipAddr != nil {
			o.ShippingAddress.AddressLine = *shipAddr
		}
		if shipPost != nil {
			o.ShippingAddress.PostalCode = *shipPost
		}
	}
	fields := []*decimal.Decimal{&o.Subtotal, &o.ShippingFee, &o.Tax, &o.Discount, &o.TotalAmount}
	for i, raw := range amounts {
		d, err := decimal.NewFromString(raw)
		if err != nil {
			return nil, err
		}
		*fields[i] = d
	}
	return &o, nil
}
