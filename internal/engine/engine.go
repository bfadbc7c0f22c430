package engine

import (
	"context"

	"github.com/utafrali/storefront/internal/domain"
)

// IndexName is the search index that mirrors the products collection.
const IndexName = "products"

// PrimaryKey is the document field the index is keyed on.
const PrimaryKey = "pid"

// Index settings applied by ConfigureIndex.
var (
	SearchableAttributes = []string{"name", "description"}
	FilterableAttributes = []string{"category"}
	RankingRules         = []string{"typo", "words", "proximity", "attribute"}
)

// SearchEngine is the search index client. Writes return once the index has
// applied them; a missing document on Delete is not an error.
type SearchEngine interface {
	// Upsert adds or replaces the document keyed by p.PID.
	Upsert(ctx context.Context, p *domain.Product) error

	// Delete removes the document with the given pid.
	Delete(ctx context.Context, pid string) error

	// Search executes a full-text query with an optional exact category filter.
	Search(ctx context.Context, query domain.SearchQuery) ([]domain.Product, error)

	// BulkIndex adds or replaces many documents in one request.
	BulkIndex(ctx context.Context, products []domain.Product) error

	// ConfigureIndex creates the index if needed and applies its settings.
	ConfigureIndex(ctx context.Context) error

	// Ping checks that the engine is reachable.
	Ping(ctx context.Context) error
}
