package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/utafrali/storefront/internal/domain"
	enginemem "github.com/utafrali/storefront/internal/engine/memory"
	repomem "github.com/utafrali/storefront/internal/repository/memory"
)

var errIndexDown = errors.New("search index unavailable")

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// flakyEngine is the in-memory engine with a switch that makes every call
// fail.
type flakyEngine struct {
	*enginemem.Engine
	down    atomic.Bool
	upserts atomic.Int32
	deletes atomic.Int32
}

func newFlakyEngine() *flakyEngine {
	return &flakyEngine{Engine: enginemem.New()}
}

func (f *flakyEngine) Upsert(ctx context.Context, p *domain.Product) error {
	f.upserts.Add(1)
	if f.down.Load() {
		return errIndexDown
	}
	return f.Engine.Upsert(ctx, p)
}

func (f *flakyEngine) Delete(ctx context.Context, pid string) error {
	f.deletes.Add(1)
	if f.down.Load() {
		return errIndexDown
	}
	return f.Engine.Delete(ctx, pid)
}

func (f *flakyEngine) Search(ctx context.Context, q domain.SearchQuery) ([]domain.Product, error) {
	if f.down.Load() {
		return nil, errIndexDown
	}
	return f.Engine.Search(ctx, q)
}

func (f *flakyEngine) BulkIndex(ctx context.Context, products []domain.Product) error {
	if f.down.Load() {
		return errIndexDown
	}
	return f.Engine.BulkIndex(ctx, products)
}

// failingOutbox rejects every enqueue.
type failingOutbox struct {
	*repomem.OutboxRepository
}

func (failingOutbox) Enqueue(context.Context, string, domain.IndexOp, string) error {
	return errors.New("outbox table missing")
}

// recordingPublisher captures published events.
type recordingPublisher struct {
	mu     sync.Mutex
	events []string
	err    error
}

func (r *recordingPublisher) record(action string, p *domain.Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, action+":"+p.PID)
	return r.err
}

func (r *recordingPublisher) ProductListed(_ context.Context, p *domain.Product) error {
	return r.record("listed", p)
}

func (r *recordingPublisher) ProductUpdated(_ context.Context, p *domain.Product) error {
	return r.record("updated", p)
}

func (r *recordingPublisher) ProductClicked(_ context.Context, p *domain.Product) error {
	return r.record("clicked", p)
}

func (r *recordingPublisher) ProductDelisted(_ context.Context, p *domain.Product) error {
	return r.record("delisted", p)
}

func (r *recordingPublisher) recorded() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}

func sampleProduct(pid string) domain.Product {
	return domain.Product{
		PID:         pid,
		SID:         "S0001",
		Name:        "Blue Mug",
		Description: "Ceramic mug",
		Image:       "https://img/mug.png",
		Category:    "kitchen",
		Price:       9.99,
		Stock:       10,
	}
}

func ptr[T any](v T) *T { return &v }
