// Package shipping maps a destination city to a flat fee via the shipping
// configuration store.
package shipping

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

const (
	KeywordInsideDhaka  = "Inside Dhaka"
	KeywordOutsideDhaka = "Outside Dhaka"
)

var ErrConfigNotFound = errors.New("shipping config not found")

// ConfigStore looks up the flat fee for a location keyword.
type ConfigStore interface {
	Lookup(ctx context.Context, keyword string) (decimal.Decimal, error)
}

type Resolver struct{ store ConfigStore }

func NewResolver(store ConfigStore) *Resolver { return &Resolver{store: store} }

// Resolve returns the fee for a destination city. A missing configuration
// row resolves to zero: shipping is a convenience surcharge, so it fails
// open rather than blocking checkout.
func (r *Resolver) Resolve(ctx context.Context, city string) decimal.Decimal {
	keyword := KeywordOutsideDhaka
	if strings.EqualFold(strings.TrimSpace(city), "dhaka") {
		keyword = KeywordInsideDhaka
	}
	fee, err := r.store.Lookup(ctx, keyword)
	if err != nil {
		return decimal.Zero
	}
	return fee
}

type PGConfigStore struct{ db *pgxpool.Pool }

func NewPGConfigStore(db *pgxpool.Pool) *PGConfigStore { return &PGConfigStore{db: db} }

func (s *PGConfigStore) Lookup(ctx context.Context, keyword string) (decimal.Decimal, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var fee string
	err := s.db.QueryRow(ctx, `
		SELECT fee::text FROM shipping_configs WHERE keyword=$1
	`, keyword).Scan(&fee)
	if err != nil {
		return decimal.Zero, ErrConfigNotFound
	}
	return decimal.NewFromString(fee)
}

type MemoryConfigStore struct {
	mu   sync.RWMutex
	fees map[string]decimal.Decimal
}

func NewMemoryConfigStore() *MemoryConfigStore {
	return &MemoryConfigStore{fees: make(map[string]decimal.Decimal)}
}

func (s *MemoryConfigStore) Put(keyword string, fee decimal.Decimal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fees[keyword] = fee
}

func (s *MemoryConfigStore) Lookup(ctx context.Context, keyword string) (decimal.Decimal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	fee, ok := s.fees[keyword]
	if !ok {
		return decimal.Zero, ErrConfigNotFound
	}
	return fee, nil
}
