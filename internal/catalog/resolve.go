package catalog

import (
	"context"
	"errors"

	"github.com/dokanify/checkout-core/internal/inventory"
	"github.com/dokanify/checkout-core/internal/pricing"
)

var (
	ErrProductUnavailable = errors.New("product is not available for sale")
	ErrVariantMismatch    = errors.New("variant does not belong to product")
)

// ResolvedLine carries everything the cart and order paths need to know
// about one (product, variant) pair: the pricing source, the stock ceiling,
// and the SKU whose counter gets decremented at commit.
type ResolvedLine struct {
	Product *Product
	Variant *Variant
	Source  pricing.Source
	Stock   int
	SKU     inventory.SKU
}

// ResolveLine validates the pair against the live catalog. Variant ownership
// is checked here; whether a variant is required at all is an order-time rule
// the caller enforces.
func ResolveLine(ctx context.Context, p Provider, productID, variantID string) (*ResolvedLine, error) {
	prod, err := p.GetProduct(ctx, productID)
	if err != nil {
		return nil, err
	}
	if !prod.Sellable() {
		return nil, ErrProductUnavailable
	}
	if variantID == "" {
		return &ResolvedLine{
			Product: prod,
			Source:  pricing.ProductSource{BasePrice: prod.BasePrice},
			Stock:   prod.Stock,
			SKU:     inventory.SKU{ProductID: prod.ID},
		}, nil
	}
	v, err := p.GetVariant(ctx, variantID)
	if err != nil {
		return nil, err
	}
	if v.ProductID != prod.ID {
		return nil, ErrVariantMismatch
	}
	return &ResolvedLine{
		Product: prod,
		Variant: v,
		Source:  pricing.VariantSource{Price: v.Price, DiscountPrice: v.DiscountPrice},
		Stock:   v.Stock,
		SKU:     inventory.SKU{ProductID: prod.ID, VariantID: v.ID},
	}, nil
}
