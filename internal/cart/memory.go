package cart

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// MemoryRepo keeps carts in process memory behind one mutex. Used by tests
// and the in-memory wiring.
type MemoryRepo struct {
	mu    sync.Mutex
	carts map[string]*Cart
	items map[string]*Item
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		carts: make(map[string]*Cart),
		items: make(map[string]*Item),
	}
}

func (r *MemoryRepo) GetByUser(ctx context.Context, userID string) (*Cart, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.carts {
		if c.UserID == userID && userID != "" {
			cp := *c
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (r *MemoryRepo) GetBySession(ctx context.Context, token string) (*Cart, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.carts {
		if c.SessionToken == token && token != "" {
			cp := *c
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (r *MemoryRepo) Create(ctx context.Context, c *Cart) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *c
	cp.CreatedAt = time.Now().UTC()
	cp.UpdatedAt = cp.CreatedAt
	r.carts[c.ID] = &cp
	return nil
}

func (r *MemoryRepo) Items(ctx context.Context, cartID string) ([]Item, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Item
	for _, it := range r.items {
		if it.CartID == cartID {
			out = append(out, *it)
		}
	}
	return out, nil
}

func (r *MemoryRepo) GetItem(ctx context.Context, cartID, itemID string) (*Item, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	it, ok := r.items[itemID]
	if !ok || it.CartID != cartID {
		return nil, ErrItemNotFound
	}
	cp := *it
	return &cp, nil
}

func (r *MemoryRepo) FindLine(ctx context.Context, cartID, productID, variantID string) (*Item, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, it := range r.items {
		if it.CartID == cartID && it.ProductID == productID && it.VariantID == variantID {
			cp := *it
			return &cp, nil
		}
	}
	return nil, ErrItemNotFound
}

func (r *MemoryRepo) SaveItem(ctx context.Context, it *Item) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *it
	r.items[it.ID] = &cp
	return nil
}

func (r *MemoryRepo) DeleteItem(ctx context.Context, cartID, itemID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	it, ok := r.items[itemID]
	if !ok || it.CartID != cartID {
		return ErrItemNotFound
	}
	delete(r.items, itemID)
	return nil
}

func (r *MemoryRepo) DeleteItems(ctx context.Context, cartID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, it := range r.items {
		if it.CartID == cartID {
			delete(r.items, id)
		}
	}
	return nil
}

func (r *MemoryRepo) DeleteCart(ctx context.Context, cartID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.carts, cartID)
	return nil
}

func (r *MemoryRepo) SetTotal(ctx context.Context, cartID string, total decimal.Decimal) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.carts[cartID]; ok {
		c.TotalAmount = total
		c.UpdatedAt = time.Now().UTC()
	}
	return nil
}

func (r *MemoryRepo) MoveItem(ctx context.Context, itemID, toCartID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if it, ok := r.items[itemID]; ok {
		it.CartID = toCartID
	}
	return nil
}
