package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/utafrali/storefront/internal/domain"
	apperrors "github.com/utafrali/storefront/pkg/errors"
)

// ProductRepository is an in-memory primary store for development and tests.
// Thread-safe via sync.RWMutex.
type ProductRepository struct {
	mu       sync.RWMutex
	products map[string]domain.Product
}

// NewProductRepository creates an empty in-memory product store.
func NewProductRepository() *ProductRepository {
	return &ProductRepository{products: make(map[string]domain.Product)}
}

// GetByID returns a copy of the stored product.
func (r *ProductRepository) GetByID(_ context.Context, pid string) (*domain.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.products[pid]
	if !ok {
		return nil, apperrors.NotFound("product", pid)
	}
	return &p, nil
}

// ListBySeller returns the seller's products ordered by pid.
func (r *ProductRepository) ListBySeller(_ context.Context, sid string) ([]domain.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.Product, 0)
	for _, p := range r.products {
		if p.SID == sid {
			out = append(out, p)
		}
	}
	sortByPID(out)
	return out, nil
}

// ListPage returns one window of the catalog ordered by pid.
func (r *ProductRepository) ListPage(_ context.Context, skip, limit int) ([]domain.Product, error) {
	all := r.sorted()
	if skip >= len(all) {
		return []domain.Product{}, nil
	}
	end := skip + limit
	if end > len(all) {
		end = len(all)
	}
	return all[skip:end], nil
}

// ScanAfter returns up to limit products whose pid sorts after afterPID.
func (r *ProductRepository) ScanAfter(_ context.Context, afterPID string, limit int) ([]domain.Product, error) {
	all := r.sorted()
	start := sort.Search(len(all), func(i int) bool { return all[i].PID > afterPID })
	end := start + limit
	if end > len(all) {
		end = len(all)
	}
	return all[start:end], nil
}

// Create inserts p unless its pid is taken.
func (r *ProductRepository) Create(_ context.Context, p *domain.Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.products[p.PID]; ok {
		return apperrors.AlreadyExists("product", "pid", p.PID)
	}
	r.products[p.PID] = *p
	return nil
}

// Update applies the patch and returns the stored product.
func (r *ProductRepository) Update(_ context.Context, pid string, patch domain.Patch) (*domain.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.products[pid]
	if !ok {
		return nil, apperrors.NotFound("product", pid)
	}
	patch.Apply(&p)
	r.products[pid] = p
	return &p, nil
}

// IncrementClicks adds one to the click counter under the write lock.
func (r *ProductRepository) IncrementClicks(_ context.Context, pid string) (*domain.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.products[pid]
	if !ok {
		return nil, apperrors.NotFound("product", pid)
	}
	p.Clicks++
	r.products[pid] = p
	return &p, nil
}

// Delete removes the product and returns it.
func (r *ProductRepository) Delete(_ context.Context, pid string) (*domain.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.products[pid]
	if !ok {
		return nil, apperrors.NotFound("product", pid)
	}
	delete(r.products, pid)
	return &p, nil
}

// Ping always succeeds.
func (r *ProductRepository) Ping(context.Context) error { return nil }

func (r *ProductRepository) sorted() []domain.Product {
	r.mu.RLock()
	out := make([]domain.Product, 0, len(r.products))
	for _, p := range r.products {
		out = append(out, p)
	}
	r.mu.RUnlock()

	sortByPID(out)
	return out
}

func sortByPID(products []domain.Product) {
	sort.Slice(products, func(i, j int) bool { return products[i].PID < products[j].PID })
}
