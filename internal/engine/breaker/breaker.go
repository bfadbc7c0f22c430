package breaker

import (
	"context"
	"errors"
	"log/slog"

	"github.com/sony/gobreaker/v2"

	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/internal/engine"
	cb "github.com/utafrali/storefront/pkg/breaker"
	apperrors "github.com/utafrali/storefront/pkg/errors"
)

// ErrOpen is returned while the breaker rejects index calls.
var ErrOpen = cb.ErrOpen

// Engine wraps a SearchEngine with a circuit breaker. While the breaker is
// open, writes fail fast and land in the outbox instead of waiting on a dead
// index.
type Engine struct {
	next engine.SearchEngine
	cb   *gobreaker.CircuitBreaker[[]domain.Product]
}

var _ engine.SearchEngine = (*Engine)(nil)

// New wraps next. Not-found and invalid-input answers are caller errors and
// do not trip the breaker.
func New(next engine.SearchEngine, cfg cb.Config, logger *slog.Logger) *Engine {
	if cfg.IsSuccessful == nil {
		cfg.IsSuccessful = func(err error) bool {
			return err == nil || errors.Is(err, apperrors.ErrNotFound) || errors.Is(err, apperrors.ErrInvalidInput)
		}
	}
	return &Engine{
		next: next,
		cb:   cb.New[[]domain.Product](cfg, logger),
	}
}

// Upsert delegates through the breaker.
func (e *Engine) Upsert(ctx context.Context, p *domain.Product) error {
	return e.exec(func() error { return e.next.Upsert(ctx, p) })
}

// Delete delegates through the breaker.
func (e *Engine) Delete(ctx context.Context, pid string) error {
	return e.exec(func() error { return e.next.Delete(ctx, pid) })
}

// BulkIndex delegates through the breaker.
func (e *Engine) BulkIndex(ctx context.Context, products []domain.Product) error {
	return e.exec(func() error { return e.next.BulkIndex(ctx, products) })
}

// Search delegates through the breaker.
func (e *Engine) Search(ctx context.Context, query domain.SearchQuery) ([]domain.Product, error) {
	res, err := e.cb.Execute(func() ([]domain.Product, error) {
		return e.next.Search(ctx, query)
	})
	if err != nil {
		return nil, wrapOpen(err)
	}
	return res, nil
}

// ConfigureIndex bypasses the breaker; it runs once at startup.
func (e *Engine) ConfigureIndex(ctx context.Context) error {
	return e.next.ConfigureIndex(ctx)
}

// Ping bypasses the breaker so readiness reflects the real engine.
func (e *Engine) Ping(ctx context.Context) error {
	return e.next.Ping(ctx)
}

// State reports the breaker state.
func (e *Engine) State() gobreaker.State {
	return e.cb.State()
}

func (e *Engine) exec(fn func() error) error {
	_, err := e.cb.Execute(func() ([]domain.Product, error) {
		return nil, fn()
	})
	return wrapOpen(err)
}

func wrapOpen(err error) error {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return apperrors.Upstream("search index", err)
	}
	return err
}
