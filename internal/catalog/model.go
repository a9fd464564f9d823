package catalog

import (
	"time"

	"github.com/shopspring/decimal"
)

type ProductStatus string

const (
	ProductPublished ProductStatus = "published"
	ProductDraft     ProductStatus = "draft"
	ProductArchived  ProductStatus = "archived"
)

// Product is the read-side snapshot the checkout core consumes. Catalog rows
// are owned by the admin surface and treated as immutable while a checkout
// transaction is in flight; only the stock counter is mutated here.
type Product struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Status      ProductStatus   `json:"status"`
	BasePrice   decimal.Decimal `json:"base_price"`
	Stock       int             `json:"stock"`
	HasVariants bool            `json:"has_variants"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

type Variant struct {
	ID        string          `json:"id"`
	ProductID string          `json:"product_id"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	// DiscountPrice is the per-unit markdown, nil when the variant is not on sale.
	DiscountPrice *decimal.Decimal `json:"discount_price,omitempty"`
	Stock         int              `json:"stock"`
}

func (p *Product) Sellable() bool { return p.Status == ProductPublished }
