package mongodb

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/pkg/database"
)

type taskDocument struct {
	ID            string    `bson:"_id"`
	PID           string    `bson:"pid"`
	Op            string    `bson:"op"`
	Attempts      int       `bson:"attempts"`
	LastError     string    `bson:"last_error"`
	CreatedAt     time.Time `bson:"created_at"`
	NextAttemptAt time.Time `bson:"next_attempt_at"`
}

func (d taskDocument) toDomain() domain.IndexTask {
	return domain.IndexTask{
		ID:            d.ID,
		PID:           d.PID,
		Op:            domain.IndexOp(d.Op),
		Attempts:      d.Attempts,
		LastError:     d.LastError,
		CreatedAt:     d.CreatedAt,
		NextAttemptAt: d.NextAttemptAt,
	}
}

// OutboxRepository implements repository.OutboxRepository on the
// index_outbox collection.
type OutboxRepository struct {
	coll *mongo.Collection
	now  func() time.Time
}

// NewOutboxRepository creates a MongoDB-backed outbox.
func NewOutboxRepository(db *mongo.Database) *OutboxRepository {
	return &OutboxRepository{coll: db.Collection(OutboxCollection), now: time.Now}
}

// EnsureIndexes creates the index used by Due.
func (r *OutboxRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "next_attempt_at", Value: 1}, {Key: "attempts", Value: 1}},
		Options: options.Index().SetName("due"),
	})
	if err != nil {
		return fmt.Errorf("create outbox index: %w", err)
	}
	return nil
}

// Enqueue inserts a task that is due immediately.
func (r *OutboxRepository) Enqueue(ctx context.Context, pid string, op domain.IndexOp, cause string) (err error) {
	ctx, end := database.TraceQuery(ctx, database.SystemMongo, "outbox.enqueue", "insertOne")
	defer func() { end(err) }()

	now := r.now().UTC()
	doc := taskDocument{
		ID:            uuid.NewString(),
		PID:           pid,
		Op:            string(op),
		LastError:     cause,
		CreatedAt:     now,
		NextAttemptAt: now,
	}
	if _, err = r.coll.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("enqueue index task for %s: %w", pid, err)
	}
	return nil
}

// Due returns tasks ready for another attempt, oldest first.
func (r *OutboxRepository) Due(ctx context.Context, now time.Time, limit, maxAttempts int) (_ []domain.IndexTask, err error) {
	ctx, end := database.TraceQuery(ctx, database.SystemMongo, "outbox.due", "find due")
	defer func() { end(err) }()

	filter := bson.M{
		"next_attempt_at": bson.M{"$lte": now},
		"attempts":        bson.M{"$lt": maxAttempts},
	}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}}).SetLimit(int64(limit))

	cur, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("find due index tasks: %w", err)
	}
	defer func() { _ = cur.Close(ctx) }()

	var docs []taskDocument
	if err = cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode index tasks: %w", err)
	}
	tasks := make([]domain.IndexTask, 0, len(docs))
	for _, d := range docs {
		tasks = append(tasks, d.toDomain())
	}
	return tasks, nil
}

// MarkDone deletes a completed task.
func (r *OutboxRepository) MarkDone(ctx context.Context, id string) (err error) {
	ctx, end := database.TraceQuery(ctx, database.SystemMongo, "outbox.done", "deleteOne")
	defer func() { end(err) }()

	if _, err = r.coll.DeleteOne(ctx, bson.M{"_id": id}); err != nil {
		return fmt.Errorf("complete index task %s: %w", id, err)
	}
	return nil
}

// MarkFailed records the failure and reschedules the task.
func (r *OutboxRepository) MarkFailed(ctx context.Context, id, cause string, next time.Time) (err error) {
	ctx, end := database.TraceQuery(ctx, database.SystemMongo, "outbox.failed", "updateOne")
	defer func() { end(err) }()

	update := bson.D{
		{Key: "$inc", Value: bson.D{{Key: "attempts", Value: 1}}},
		{Key: "$set", Value: bson.D{{Key: "last_error", Value: cause}, {Key: "next_attempt_at", Value: next}}},
	}
	if _, err = r.coll.UpdateOne(ctx, bson.M{"_id": id}, update); err != nil {
		return fmt.Errorf("reschedule index task %s: %w", id, err)
	}
	return nil
}

// Stats counts live and dead-lettered tasks.
func (r *OutboxRepository) Stats(ctx context.Context, maxAttempts int) (_ domain.OutboxStats, err error) {
	ctx, end := database.TraceQuery(ctx, database.SystemMongo, "outbox.stats", "countDocuments")
	defer func() { end(err) }()

	pending, err := r.coll.CountDocuments(ctx, bson.M{"attempts": bson.M{"$lt": maxAttempts}})
	if err != nil {
		return domain.OutboxStats{}, fmt.Errorf("count pending index tasks: %w", err)
	}
	dead, err := r.coll.CountDocuments(ctx, bson.M{"attempts": bson.M{"$gte": maxAttempts}})
	if err != nil {
		return domain.OutboxStats{}, fmt.Errorf("count dead index tasks: %w", err)
	}
	return domain.OutboxStats{Pending: int(pending), DeadLetter: int(dead)}, nil
}
