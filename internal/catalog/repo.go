package catalog

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

var (
	ErrProductNotFound = errors.New("product not found")
	ErrVariantNotFound = errors.New("variant not found")
)

// Provider supplies product/variant snapshots to the checkout core.
type Provider interface {
	GetProduct(ctx context.Context, id string) (*Product, error)
	GetVariant(ctx context.Context, id string) (*Variant, error)
}

type PGRepo struct{ db *pgxpool.Pool }

func NewPGRepo(db *pgxpool.Pool) *PGRepo { return &PGRepo{db: db} }

func (r *PGRepo) GetProduct(ctx context.Context, id string) (*Product, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var (
		p     Product
		price string
	)
	err := r.db.QueryRow(ctx, `
		SELECT id, name, status, base_price::text, stock, has_variants, created_at, updated_at
		FROM products WHERE id=$1
	`, id).Scan(&p.ID, &p.Name, &p.Status, &price, &p.Stock, &p.HasVariants, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, ErrProductNotFound
	}
	if p.BasePrice, err = decimal.NewFromString(price); err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *PGRepo) GetVariant(ctx context.Context, id string) (*Variant, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var (
		v        Variant
		price    string
		discount *string
	)
	err := r.db.QueryRow(ctx, `
		SELECT id, product_id, name, price::text, discount_price::text, stock
		FROM product_variants WHERE id=$1
	`, id).Scan(&v.ID, &v.ProductID, &v.Name, &price, &discount, &v.Stock)
	if err != nil {
		return nil, ErrVariantNotFound
	}
	if v.Price, err = decimal.NewFromString(price); err != nil {
		return nil, err
	}
	if discount != nil {
		d, err := decimal.NewFromString(*discount)
		if err != nil {
			return nil, err
		}
		v.DiscountPrice = &d
	}
	return &v, nil
}
