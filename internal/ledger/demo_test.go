package ledger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDemoCatalog(t *testing.T) {
	products := DemoCatalog()
	require.NotEmpty(t, products)

	seen := make(map[string]bool, len(products))
	for _, p := range products {
		assert.False(t, seen[p.ID], "duplicate id %s", p.ID)
		seen[p.ID] = true
		assert.NotZero(t, p.PriceIDR, p.ID)
		assert.NotEmpty(t, p.TopNotes, p.ID)
		assert.NotEmpty(t, p.Occasions, p.ID)
	}
}

func TestNewDemoMemory(t *testing.T) {
	m := NewDemoMemory()
	products, err := m.Products(context.Background())
	require.NoError(t, err)
	assert.Len(t, products, len(DemoCatalog()))
	assert.Equal(t, "prod_citrus_pagi", products[0].ID)
}
