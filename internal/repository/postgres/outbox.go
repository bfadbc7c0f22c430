package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/pkg/database"
)

const outboxColumns = "id::text, pid, op, attempts, last_error, created_at, next_attempt_at"

// OutboxRepository implements repository.OutboxRepository on the
// index_outbox table.
type OutboxRepository struct {
	db database.DBTX
}

// NewOutboxRepository creates a PostgreSQL-backed outbox.
func NewOutboxRepository(db database.DBTX) *OutboxRepository {
	return &OutboxRepository{db: db}
}

// Enqueue inserts a task that is due immediately.
func (r *OutboxRepository) Enqueue(ctx context.Context, pid string, op domain.IndexOp, cause string) (err error) {
	query := `
		INSERT INTO index_outbox (id, pid, op, last_error, created_at, next_attempt_at)
		VALUES ($1, $2, $3, $4, NOW(), NOW())`
	ctx, end := database.TraceQuery(ctx, database.SystemPostgres, "outbox.enqueue", query)
	defer func() { end(err) }()

	if _, err = r.db.Exec(ctx, query, uuid.NewString(), pid, string(op), cause); err != nil {
		return fmt.Errorf("enqueue index task for %s: %w", pid, err)
	}
	return nil
}

// Due returns tasks ready for another attempt.
func (r *OutboxRepository) Due(ctx context.Context, now time.Time, limit, maxAttempts int) (_ []domain.IndexTask, err error) {
	query := `
		SELECT ` + outboxColumns + `
		FROM index_outbox
		WHERE next_attempt_at <= $1 AND attempts < $2
		ORDER BY created_at
		LIMIT $3`
	ctx, end := database.TraceQuery(ctx, database.SystemPostgres, "outbox.due", query)
	defer func() { end(err) }()

	rows, err := r.db.Query(ctx, query, now, maxAttempts, limit)
	if err != nil {
		return nil, fmt.Errorf("query due index tasks: %w", err)
	}
	defer rows.Close()

	var tasks []domain.IndexTask
	for rows.Next() {
		var (
			t  domain.IndexTask
			op string
		)
		if err := rows.Scan(&t.ID, &t.PID, &op, &t.Attempts, &t.LastError, &t.CreatedAt, &t.NextAttemptAt); err != nil {
			return nil, fmt.Errorf("scan index task: %w", err)
		}
		t.Op = domain.IndexOp(op)
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate index tasks: %w", err)
	}
	return tasks, nil
}

// MarkDone deletes a completed task.
func (r *OutboxRepository) MarkDone(ctx context.Context, id string) (err error) {
	query := `DELETE FROM index_outbox WHERE id = $1`
	ctx, end := database.TraceQuery(ctx, database.SystemPostgres, "outbox.done", query)
	defer func() { end(err) }()

	if _, err = r.db.Exec(ctx, query, id); err != nil {
		return fmt.Errorf("complete index task %s: %w", id, err)
	}
	return nil
}

// MarkFailed records the failure and reschedules the task.
func (r *OutboxRepository) MarkFailed(ctx context.Context, id, cause string, next time.Time) (err error) {
	query := `
		UPDATE index_outbox
		SET attempts = attempts + 1, last_error = $2, next_attempt_at = $3
		WHERE id = $1`
	ctx, end := database.TraceQuery(ctx, database.SystemPostgres, "outbox.failed", query)
	defer func() { end(err) }()

	if _, err = r.db.Exec(ctx, query, id, cause, next); err != nil {
		return fmt.Errorf("reschedule index task %s: %w", id, err)
	}
	return nil
}

// Stats counts live and dead-lettered tasks in one pass.
func (r *OutboxRepository) Stats(ctx context.Context, maxAttempts int) (_ domain.OutboxStats, err error) {
	query := `
		SELECT
			COUNT(*) FILTER (WHERE attempts < $1),
			COUNT(*) FILTER (WHERE attempts >= $1)
		FROM index_outbox`
	ctx, end := database.TraceQuery(ctx, database.SystemPostgres, "outbox.stats", query)
	defer func() { end(err) }()

	var s domain.OutboxStats
	if err = r.db.QueryRow(ctx, query, maxAttempts).Scan(&s.Pending, &s.DeadLetter); err != nil {
		return domain.OutboxStats{}, fmt.Errorf("count index tasks: %w", err)
	}
	return s, nil
}
