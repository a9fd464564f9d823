package cart

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

var (
	ErrNotFound     = errors.New("cart not found")
	ErrItemNotFound = errors.New("cart item not found")
)

type Repository interface {
	GetByUser(ctx context.Context, userID string) (*Cart, error)
	GetBySession(ctx context.Context, token string) (*Cart, error)
	Create(ctx context.Context, c *Cart) error
	Items(ctx context.Context, cartID string) ([]Item, error)
	GetItem(ctx context.Context, cartID, itemID string) (*Item, error)
	FindLine(ctx context.Context, cartID, productID, variantID string) (*Item, error)
	SaveItem(ctx context.Context, it *Item) error
	DeleteItem(ctx context.Context, cartID, itemID string) error
	DeleteItems(ctx context.Context, cartID string) error
	DeleteCart(ctx context.Context, cartID string) error
	SetTotal(ctx context.Context, cartID string, total decimal.Decimal) error
	MoveItem(ctx context.Context, itemID, toCartID string) error
}

type PGRepo struct{ db *pgxpool.Pool }

func NewPGRepo(db *pgxpool.Pool) *PGRepo { return &PGRepo{db: db} }

func (r *PGRepo) getBy(ctx context.Context, column, value string) (*Cart, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var (
		c       Cart
		user    *string
		session *string
		total   string
	)
	err := r.db.QueryRow(ctx, `
		SELECT id, user_id, session_token, total_amount::text, created_at, updated_at
		FROM carts WHERE `+column+`=$1
	`, value).Scan(&c.ID, &user, &session, &total, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, ErrNotFound
	}
	if user != nil {
		c.UserID = *user
	}
	if session != nil {
		c.SessionToken = *session
	}
	if c.TotalAmount, err = decimal.NewFromString(total); err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *PGRepo) GetByUser(ctx context.Context, userID string) (*Cart, error) {
	return r.getBy(ctx, "user_id", userID)
}

func (r *PGRepo) GetBySession(ctx context.Context, token string) (*Cart, error) {
	return r.getBy(ctx, "session_token", token)
}

func (r *PGRepo) Create(ctx context.Context, c *Cart) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	_, err := r.db.Exec(ctx, `
		INSERT INTO carts (id, user_id, session_token, total_amount, created_at, updated_at)
		VALUES ($1, NULLIF($2,''), NULLIF($3,''), $4, NOW(), NOW())
	`, c.ID, c.UserID, c.SessionToken, c.TotalAmount)
	return err
}

func (r *PGRepo) Items(ctx context.Context, cartID string) ([]Item, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	rows, err := r.db.Query(ctx, `
		SELECT id, cart_id, product_id, variant_id, quantity, price::text, subtotal::text
		FROM cart_items WHERE cart_id=$1
		ORDER BY created_at
	`, cartID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Item
	for rows.Next() {
		it, err := scanItem(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, *it)
	}
	return out, rows.Err()
}

func (r *PGRepo) GetItem(ctx context.Context, cartID, itemID string) (*Item, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	row := r.db.QueryRow(ctx, `
		SELECT id, cart_id, product_id, variant_id, quantity, price::text, subtotal::text
		FROM cart_items WHERE cart_id=$1 AND id=$2
	`, cartID, itemID)
	it, err := scanItem(row.Scan)
	if err != nil {
		return nil, ErrItemNotFound
	}
	return it, nil
}

func (r *PGRepo) FindLine(ctx context.Context, cartID, productID, variantID string) (*Item, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	row := r.db.QueryRow(ctx, `
		SELECT id, cart_id, product_id, variant_id, quantity, price::text, subtotal::text
		FROM cart_items
		WHERE cart_id=$1 AND product_id=$2 AND COALESCE(variant_id,'') = $3
	`, cartID, productID, variantID)
	it, err := scanItem(row.Scan)
	if err != nil {
		return nil, ErrItemNotFound
	}
	return it, nil
}

func (r *PGRepo) SaveItem(ctx context.Context, it *Item) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	_, err := r.db.Exec(ctx, `
		INSERT INTO cart_items (id, cart_id, product_id, variant_id, quantity, price, subtotal, created_at, updated_at)
		VALUES ($1, $2, $3, NULLIF($4,''), $5, $6, $7, NOW(), NOW())
		ON CONFLICT (id) DO UPDATE
		SET quantity = EXCLUDED.quantity,
		    price = EXCLUDED.price,
		    subtotal = EXCLUDED.subtotal,
		    updated_at = NOW()
	`, it.ID, it.CartID, it.ProductID, it.VariantID, it.Quantity, it.Price, it.Subtotal)
	return err
}

func (r *PGRepo) DeleteItem(ctx context.Context, cartID, itemID string) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	tag, err := r.db.Exec(ctx, `DELETE FROM cart_items WHERE cart_id=$1 AND id=$2`, cartID, itemID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrItemNotFound
	}
	return nil
}

func (r *PGRepo) DeleteItems(ctx context.Context, cartID string) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	_, err := r.db.Exec(ctx, `DELETE FROM cart_items WHERE cart_id=$1`, cartID)
	return err
}

func (r *PGRepo) DeleteCart(ctx context.Context, cartID string) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	_, err := r.db.Exec(ctx, `DELETE FROM carts WHERE id=$1`, cartID)
	return err
}

func (r *PGRepo) SetTotal(ctx context.Context, cartID string, total decimal.Decimal) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	_, err := r.db.Exec(ctx, `
		UPDATE carts SET total_amount=$2, updated_at=NOW() WHERE id=$1
	`, cartID, total)
	return err
}

func (r *PGRepo) MoveItem(ctx context.Context, itemID, toCartID string) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	_, err := r.db.Exec(ctx, `
		UPDATE cart_items SET cart_id=$2, updated_at=NOW() WHERE id=$1
	`, itemID, toCartID)
	return err
}

func scanItem(scan func(dest ...any) error) (*Item, error) {
	var (
		it       Item
		variant  *string
		price    string
		subtotal string
	)
	if err := scan(&it.ID, &it.CartID, &it.ProductID, &variant, &it.Quantity, &price, &subtotal); err != nil {
		return nil, err
	}
	if variant != nil {
		it.VariantID = *variant
	}
	var err error
	if it.Price, err = decimal.NewFromString(price); err != nil {
		return nil, err
	}
	if it.Subtotal, err = decimal.NewFromString(subtotal); err != nil {
		return nil, err
	}
	return &it, nil
}
