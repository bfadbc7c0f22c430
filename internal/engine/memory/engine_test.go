package memory

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/storefront/internal/domain"
)

func newTestProduct(pid, name, description, category string) domain.Product {
	return domain.Product{
		PID:         pid,
		SID:         "S0001",
		Name:        name,
		Description: description,
		Category:    category,
		Price:       99.99,
		Stock:       10,
		Rating:      4,
	}
}

func TestEngine_SearchByText_Match(t *testing.T) {
	ctx := context.Background()
	eng := New()

	p := newTestProduct("P0001", "Wireless Bluetooth Headphones", "High quality noise canceling headphones", "audio")
	require.NoError(t, eng.Upsert(ctx, &p))

	hits, err := eng.Search(ctx, domain.SearchQuery{Text: "bluetooth"})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, p, hits[0])
}

func TestEngine_SearchByText_NoMatch(t *testing.T) {
	ctx := context.Background()
	eng := New()

	p := newTestProduct("P0001", "Wireless Bluetooth Headphones", "High quality headphones", "audio")
	require.NoError(t, eng.Upsert(ctx, &p))

	hits, err := eng.Search(ctx, domain.SearchQuery{Text: "keyboard"})
	require.NoError(t, err)
	assert.NotNil(t, hits)
	assert.Empty(t, hits)
}

func TestEngine_SearchByText_MatchesDescription(t *testing.T) {
	ctx := context.Background()
	eng := New()

	p := newTestProduct("P0001", "Premium Audio Device", "Noise canceling bluetooth headphones with deep bass", "audio")
	require.NoError(t, eng.Upsert(ctx, &p))

	hits, err := eng.Search(ctx, domain.SearchQuery{Text: "BLUETOOTH"})
	require.NoError(t, err)
	assert.Len(t, hits, 1)
}

func TestEngine_CategoryFilterIsExact(t *testing.T) {
	ctx := context.Background()
	eng := New()

	mug := newTestProduct("P0001", "Blue Mug", "mug", "kitchen")
	shirt := newTestProduct("P0002", "Blue Shirt", "shirt", "kitchenware")
	require.NoError(t, eng.BulkIndex(ctx, []domain.Product{mug, shirt}))

	hits, err := eng.Search(ctx, domain.SearchQuery{Text: "blue", Category: "kitchen"})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "P0001", hits[0].PID)

	hits, err = eng.Search(ctx, domain.SearchQuery{Text: "blue"})
	require.NoError(t, err)
	assert.Len(t, hits, 2)
}

func TestEngine_EmptyTextMatchesAll(t *testing.T) {
	ctx := context.Background()
	eng := New()

	products := make([]domain.Product, 0, 30)
	for i := 1; i <= 30; i++ {
		products = append(products, newTestProduct(fmt.Sprintf("P%04d", i), "item", "", "misc"))
	}
	require.NoError(t, eng.BulkIndex(ctx, products))

	hits, err := eng.Search(ctx, domain.SearchQuery{})
	require.NoError(t, err)
	assert.Len(t, hits, domain.DefaultSearchLimit)
	assert.Equal(t, "P0001", hits[0].PID)

	hits, err = eng.Search(ctx, domain.SearchQuery{Limit: 100})
	require.NoError(t, err)
	assert.Len(t, hits, 30)
}

func TestEngine_UpsertReplacesAndDeleteRemoves(t *testing.T) {
	ctx := context.Background()
	eng := New()

	p := newTestProduct("P0001", "Lamp", "desk lamp", "home")
	require.NoError(t, eng.Upsert(ctx, &p))

	p.Price = 0
	require.NoError(t, eng.Upsert(ctx, &p))
	got, ok := eng.Get("P0001")
	require.True(t, ok)
	assert.Equal(t, 0.0, got.Price)
	assert.Equal(t, 1, eng.Len())

	require.NoError(t, eng.Delete(ctx, "P0001"))
	require.NoError(t, eng.Delete(ctx, "P0001"))
	_, ok = eng.Get("P0001")
	assert.False(t, ok)
}
