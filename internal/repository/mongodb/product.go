package mongodb

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/pkg/database"
	apperrors "github.com/utafrali/storefront/pkg/errors"
)

// Collection names inside the catalog database.
const (
	ProductsCollection = "products"
	OutboxCollection   = "index_outbox"
)

// ProductRepository implements repository.ProductRepository on a MongoDB
// collection keyed by the pid field.
type ProductRepository struct {
	coll *mongo.Collection
}

// NewProductRepository creates a MongoDB-backed product repository.
func NewProductRepository(db *mongo.Database) *ProductRepository {
	return &ProductRepository{coll: db.Collection(ProductsCollection)}
}

// EnsureIndexes creates the unique pid index and the seller index. A second
// insert of the same pid then fails on the server even when two requests
// race past the existence check.
func (r *ProductRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "pid", Value: 1}}, Options: options.Index().SetUnique(true).SetName("pid_unique")},
		{Keys: bson.D{{Key: "sid", Value: 1}}, Options: options.Index().SetName("sid")},
	})
	if err != nil {
		return fmt.Errorf("create product indexes: %w", err)
	}
	return nil
}

// GetByID returns the product with the given pid.
func (r *ProductRepository) GetByID(ctx context.Context, pid string) (_ *domain.Product, err error) {
	ctx, end := database.TraceQuery(ctx, database.SystemMongo, "products.get", "find pid")
	defer func() { end(err) }()

	var p domain.Product
	if err = r.coll.FindOne(ctx, bson.M{"pid": pid}).Decode(&p); err != nil {
		return nil, mapReadError(err, pid)
	}
	return &p, nil
}

// ListBySeller returns every product listed by sid.
func (r *ProductRepository) ListBySeller(ctx context.Context, sid string) (_ []domain.Product, err error) {
	ctx, end := database.TraceQuery(ctx, database.SystemMongo, "products.list_by_seller", "find sid")
	defer func() { end(err) }()

	return r.find(ctx, bson.M{"sid": sid}, byPID())
}

// ListPage returns one window of the catalog ordered by pid.
func (r *ProductRepository) ListPage(ctx context.Context, skip, limit int) (_ []domain.Product, err error) {
	ctx, end := database.TraceQuery(ctx, database.SystemMongo, "products.list_page", "find skip limit")
	defer func() { end(err) }()

	return r.find(ctx, bson.M{}, byPID().SetSkip(int64(skip)).SetLimit(int64(limit)))
}

// ScanAfter walks the collection in pid order.
func (r *ProductRepository) ScanAfter(ctx context.Context, afterPID string, limit int) (_ []domain.Product, err error) {
	ctx, end := database.TraceQuery(ctx, database.SystemMongo, "products.scan", "find pid $gt")
	defer func() { end(err) }()

	return r.find(ctx, bson.M{"pid": bson.M{"$gt": afterPID}}, byPID().SetLimit(int64(limit)))
}

// Create inserts p.
func (r *ProductRepository) Create(ctx context.Context, p *domain.Product) (err error) {
	ctx, end := database.TraceQuery(ctx, database.SystemMongo, "products.insert", "insertOne")
	defer func() { end(err) }()

	if _, err = r.coll.InsertOne(ctx, p); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return apperrors.AlreadyExists("product", "pid", p.PID)
		}
		return fmt.Errorf("insert product %s: %w", p.PID, err)
	}
	return nil
}

// Update sets the patched fields and returns the document after the update.
func (r *ProductRepository) Update(ctx context.Context, pid string, patch domain.Patch) (_ *domain.Product, err error) {
	if patch.IsEmpty() {
		return r.GetByID(ctx, pid)
	}

	set := bson.D{}
	if patch.Image != nil {
		set = append(set, bson.E{Key: "image", Value: *patch.Image})
	}
	if patch.Price != nil {
		set = append(set, bson.E{Key: "price", Value: *patch.Price})
	}
	if patch.Stock != nil {
		set = append(set, bson.E{Key: "stock", Value: *patch.Stock})
	}
	if patch.Sales != nil {
		set = append(set, bson.E{Key: "sales", Value: *patch.Sales})
	}
	if patch.Rating != nil {
		set = append(set, bson.E{Key: "rating", Value: *patch.Rating})
	}

	ctx, end := database.TraceQuery(ctx, database.SystemMongo, "products.update", "findOneAndUpdate $set")
	defer func() { end(err) }()

	return r.findAndModify(ctx, pid, bson.D{{Key: "$set", Value: set}})
}

// IncrementClicks applies $inc on the server and returns the new document.
func (r *ProductRepository) IncrementClicks(ctx context.Context, pid string) (_ *domain.Product, err error) {
	ctx, end := database.TraceQuery(ctx, database.SystemMongo, "products.increment_clicks", "findOneAndUpdate $inc")
	defer func() { end(err) }()

	return r.findAndModify(ctx, pid, bson.D{{Key: "$inc", Value: bson.D{{Key: "clicks", Value: 1}}}})
}

// Delete removes the product and returns the removed document.
func (r *ProductRepository) Delete(ctx context.Context, pid string) (_ *domain.Product, err error) {
	ctx, end := database.TraceQuery(ctx, database.SystemMongo, "products.delete", "findOneAndDelete")
	defer func() { end(err) }()

	var p domain.Product
	if err = r.coll.FindOneAndDelete(ctx, bson.M{"pid": pid}).Decode(&p); err != nil {
		return nil, mapReadError(err, pid)
	}
	return &p, nil
}

// Ping checks that the primary is reachable.
func (r *ProductRepository) Ping(ctx context.Context) error {
	return r.coll.Database().Client().Ping(ctx, readpref.Primary())
}

func (r *ProductRepository) findAndModify(ctx context.Context, pid string, update bson.D) (*domain.Product, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var p domain.Product
	if err := r.coll.FindOneAndUpdate(ctx, bson.M{"pid": pid}, update, opts).Decode(&p); err != nil {
		return nil, mapReadError(err, pid)
	}
	return &p, nil
}

func (r *ProductRepository) find(ctx context.Context, filter any, opts *options.FindOptions) ([]domain.Product, error) {
	cur, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("find products: %w", err)
	}
	defer func() { _ = cur.Close(ctx) }()

	products := make([]domain.Product, 0)
	if err := cur.All(ctx, &products); err != nil {
		return nil, fmt.Errorf("decode products: %w", err)
	}
	return products, nil
}

func byPID() *options.FindOptions {
	return options.Find().SetSort(bson.D{{Key: "pid", Value: 1}}).SetProjection(bson.M{"_id": 0})
}

func mapReadError(err error, pid string) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return apperrors.NotFound("product", pid)
	}
	return fmt.Errorf("product %s: %w", pid, err)
}
