package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/utafrali/storefront/internal/domain"
	apperrors "github.com/utafrali/storefront/pkg/errors"
)

// OutboxRepository keeps pending index tasks in memory. Tasks do not survive
// a restart; use it with the memory product store only.
type OutboxRepository struct {
	mu    sync.Mutex
	tasks map[string]domain.IndexTask
	now   func() time.Time
}

// NewOutboxRepository creates an empty in-memory outbox.
func NewOutboxRepository() *OutboxRepository {
	return &OutboxRepository{
		tasks: make(map[string]domain.IndexTask),
		now:   time.Now,
	}
}

// Enqueue records a task that is due immediately.
func (r *OutboxRepository) Enqueue(_ context.Context, pid string, op domain.IndexOp, cause string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	id := uuid.NewString()
	r.tasks[id] = domain.IndexTask{
		ID:            id,
		PID:           pid,
		Op:            op,
		LastError:     cause,
		CreatedAt:     now,
		NextAttemptAt: now,
	}
	return nil
}

// Due returns due tasks oldest first.
func (r *OutboxRepository) Due(_ context.Context, now time.Time, limit, maxAttempts int) ([]domain.IndexTask, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	due := make([]domain.IndexTask, 0)
	for _, t := range r.tasks {
		if t.Attempts < maxAttempts && !t.NextAttemptAt.After(now) {
			due = append(due, t)
		}
	}
	sort.Slice(due, func(i, j int) bool { return due[i].CreatedAt.Before(due[j].CreatedAt) })
	if len(due) > limit {
		due = due[:limit]
	}
	return due, nil
}

// MarkDone forgets the task.
func (r *OutboxRepository) MarkDone(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.tasks, id)
	return nil
}

// MarkFailed bumps the attempt count and reschedules the task.
func (r *OutboxRepository) MarkFailed(_ context.Context, id, cause string, next time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.tasks[id]
	if !ok {
		return apperrors.NotFound("index task", id)
	}
	t.Attempts++
	t.LastError = cause
	t.NextAttemptAt = next
	r.tasks[id] = t
	return nil
}

// Stats counts pending and dead-lettered tasks.
func (r *OutboxRepository) Stats(_ context.Context, maxAttempts int) (domain.OutboxStats, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var s domain.OutboxStats
	for _, t := range r.tasks {
		if t.Attempts >= maxAttempts {
			s.DeadLetter++
		} else {
			s.Pending++
		}
	}
	return s, nil
}
