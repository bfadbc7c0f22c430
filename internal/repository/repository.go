package repository

import (
	"context"
	"time"

	"github.com/utafrali/storefront/internal/domain"
)

// ProductRepository is the primary store. Every implementation reports a
// missing pid with apperrors.ErrNotFound and a duplicate pid with
// apperrors.ErrAlreadyExists.
type ProductRepository interface {
	// GetByID returns the product with the given pid.
	GetByID(ctx context.Context, pid string) (*domain.Product, error)

	// ListBySeller returns every product of the seller, ordered by pid.
	ListBySeller(ctx context.Context, sid string) ([]domain.Product, error)

	// ListPage returns up to limit products after skipping skip, ordered by pid.
	ListPage(ctx context.Context, skip, limit int) ([]domain.Product, error)

	// ScanAfter returns up to limit products whose pid sorts after afterPID.
	// An empty afterPID starts at the beginning.
	ScanAfter(ctx context.Context, afterPID string, limit int) ([]domain.Product, error)

	// Create inserts a new product.
	Create(ctx context.Context, p *domain.Product) error

	// Update writes the non-nil patch fields and returns the stored record.
	Update(ctx context.Context, pid string, patch domain.Patch) (*domain.Product, error)

	// IncrementClicks adds one to clicks atomically and returns the stored record.
	IncrementClicks(ctx context.Context, pid string) (*domain.Product, error)

	// Delete removes the product atomically and returns what was removed.
	Delete(ctx context.Context, pid string) (*domain.Product, error)

	// Ping checks connectivity.
	Ping(ctx context.Context) error
}

// OutboxRepository stores index writes that still have to be replayed.
type OutboxRepository interface {
	// Enqueue records a pending index write for pid, due immediately.
	Enqueue(ctx context.Context, pid string, op domain.IndexOp, cause string) error

	// Due returns up to limit tasks whose next attempt is due and whose
	// attempt count is below maxAttempts, oldest first.
	Due(ctx context.Context, now time.Time, limit, maxAttempts int) ([]domain.IndexTask, error)

	// MarkDone removes a completed task.
	MarkDone(ctx context.Context, id string) error

	// MarkFailed bumps the attempt count and reschedules the task.
	MarkFailed(ctx context.Context, id, cause string, next time.Time) error

	// Stats counts pending and dead-lettered tasks.
	Stats(ctx context.Context, maxAttempts int) (domain.OutboxStats, error)
}
