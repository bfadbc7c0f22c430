package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/utafrali/storefront/internal/domain"
)

// Engine is an in-memory implementation of the SearchEngine interface.
// It provides simple substring matching on name and description fields.
// Thread-safe via sync.RWMutex.
type Engine struct {
	mu       sync.RWMutex
	products map[string]domain.Product
}

// New creates a new in-memory search engine.
func New() *Engine {
	return &Engine{
		products: make(map[string]domain.Product),
	}
}

// Upsert adds or replaces a single product in the in-memory index.
func (e *Engine) Upsert(_ context.Context, p *domain.Product) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.products[p.PID] = *p
	return nil
}

// Delete removes a product from the in-memory index by its pid.
func (e *Engine) Delete(_ context.Context, pid string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	delete(e.products, pid)
	return nil
}

// Search matches every query word against name and description, case
// insensitively. Hits are ordered by pid.
func (e *Engine) Search(_ context.Context, query domain.SearchQuery) ([]domain.Product, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	terms := strings.Fields(strings.ToLower(query.Text))
	matched := make([]domain.Product, 0)
	for _, p := range e.products {
		if !matches(p, query.Category, terms) {
			continue
		}
		matched = append(matched, p)
	}

	sort.Slice(matched, func(i, j int) bool { return matched[i].PID < matched[j].PID })

	if limit := query.EffectiveLimit(); len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, nil
}

// BulkIndex adds or replaces multiple products in the in-memory index.
func (e *Engine) BulkIndex(_ context.Context, products []domain.Product) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	for i := range products {
		e.products[products[i].PID] = products[i]
	}
	return nil
}

// ConfigureIndex is a no-op; the in-memory index has fixed settings.
func (e *Engine) ConfigureIndex(context.Context) error { return nil }

// Ping always succeeds.
func (e *Engine) Ping(context.Context) error { return nil }

// Get returns the indexed copy of a product.
func (e *Engine) Get(pid string) (domain.Product, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	p, ok := e.products[pid]
	return p, ok
}

// Len returns the number of indexed documents.
func (e *Engine) Len() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.products)
}

func matches(p domain.Product, category string, terms []string) bool {
	if category != "" && p.Category != category {
		return false
	}

	name := strings.ToLower(p.Name)
	desc := strings.ToLower(p.Description)
	for _, term := range terms {
		if !strings.Contains(name, term) && !strings.Contains(desc, term) {
			return false
		}
	}
	return true
}
