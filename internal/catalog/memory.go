package catalog

import (
	"context"
	"sync"

	"github.com/dokanify/checkout-core/internal/inventory"
)

// Memory is an in-memory Provider. It doubles as the stock authority for the
// in-memory wiring: reservations run as an all-or-nothing compare-and-decrement
// under one lock, matching the transactional semantics of the SQL form.
type Memory struct {
	mu       sync.Mutex
	products map[string]*Product
	variants map[string]*Variant
}

func NewMemory() *Memory {
	return &Memory{
		products: make(map[string]*Product),
		variants: make(map[string]*Variant),
	}
}

func (m *Memory) PutProduct(p *Product) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *p
	m.products[p.ID] = &cp
}

func (m *Memory) PutVariant(v *Variant) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *v
	m.variants[v.ID] = &cp
}

func (m *Memory) GetProduct(ctx context.Context, id string) (*Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.products[id]
	if !ok {
		return nil, ErrProductNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *Memory) GetVariant(ctx context.Context, id string) (*Variant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.variants[id]
	if !ok {
		return nil, ErrVariantNotFound
	}
	cp := *v
	return &cp, nil
}

// ReserveStock applies every reservation or none of them. Validation runs
// against a running per-SKU total so repeated SKUs within one order are
// judged by their combined quantity.
func (m *Memory) ReserveStock(reservations []inventory.Reservation) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	wanted := make(map[inventory.SKU]int, len(reservations))
	for _, res := range reservations {
		wanted[res.SKU] += res.Quantity
		if m.stockLocked(res.SKU) < wanted[res.SKU] {
			return &inventory.StockConflictError{SKU: res.SKU, Requested: res.Quantity}
		}
	}
	for _, res := range reservations {
		m.addStockLocked(res.SKU, -res.Quantity)
	}
	return nil
}

func (m *Memory) ReleaseStock(reservations []inventory.Reservation) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, res := range reservations {
		m.addStockLocked(res.SKU, res.Quantity)
	}
}

func (m *Memory) stockLocked(sku inventory.SKU) int {
	if sku.VariantID != "" {
		if v, ok := m.variants[sku.VariantID]; ok {
			return v.Stock
		}
		return 0
	}
	if p, ok := m.products[sku.ProductID]; ok {
		return p.Stock
	}
	return 0
}

func (m *Memory) addStockLocked(sku inventory.SKU, delta int) {
	if sku.VariantID != "" {
		if v, ok := m.variants[sku.VariantID]; ok {
			v.Stock += delta
		}
		return
	}
	if p, ok := m.products[sku.ProductID]; ok {
		p.Stock += delta
	}
}
