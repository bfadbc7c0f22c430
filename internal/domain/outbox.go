package domain

import "time"

// IndexOp is the kind of index mutation an outbox task replays.
type IndexOp string

const (
	IndexOpUpsert IndexOp = "upsert"
	IndexOpDelete IndexOp = "delete"
)

// IndexTask records an index write that failed after the primary write
// succeeded. The relay replays it against the current primary state.
type IndexTask struct {
	ID            string    `json:"id"`
	PID           string    `json:"pid"`
	Op            IndexOp   `json:"op"`
	Attempts      int       `json:"attempts"`
	LastError     string    `json:"last_error,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	NextAttemptAt time.Time `json:"next_attempt_at"`
}

// OutboxStats summarizes the outbox for the admin endpoint.
type OutboxStats struct {
	Pending    int `json:"pending"`
	DeadLetter int `json:"dead_letter"`
}
