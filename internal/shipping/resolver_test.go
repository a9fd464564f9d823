package shipping

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func newResolver() *Resolver {
	store := NewMemoryConfigStore()
	store.Put(KeywordInsideDhaka, decimal.RequireFromString("60.00"))
	store.Put(KeywordOutsideDhaka, decimal.RequireFromString("120.00"))
	return NewResolver(store)
}

func TestResolve_DhakaMatchesInsideRate(t *testing.T) {
	r := newResolver()
	for _, city := range []string{"dhaka", "Dhaka", "DHAKA", "  dhaka  "} {
		fee := r.Resolve(context.Background(), city)
		assert.True(t, fee.Equal(decimal.RequireFromString("60.00")), "city %q", city)
	}
}

func TestResolve_OtherCityUsesOutsideRate(t *testing.T) {
	r := newResolver()
	fee := r.Resolve(context.Background(), "Chattogram")
	assert.True(t, fee.Equal(decimal.RequireFromString("120.00")))
}

func TestResolve_MissingConfigFailsOpen(t *testing.T) {
	r := NewResolver(NewMemoryConfigStore())
	fee := r.Resolve(context.Background(), "dhaka")
	assert.True(t, fee.IsZero())
}
