package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/pkg/database"
	apperrors "github.com/utafrali/storefront/pkg/errors"
)

const productColumns = "pid, sid, name, description, image, category, price, stock, sales, rating, clicks"

// ProductRepository implements repository.ProductRepository on PostgreSQL.
type ProductRepository struct {
	db database.DBTX
}

// NewProductRepository creates a PostgreSQL-backed product repository.
func NewProductRepository(db database.DBTX) *ProductRepository {
	return &ProductRepository{db: db}
}

// GetByID returns the product with the given pid.
func (r *ProductRepository) GetByID(ctx context.Context, pid string) (_ *domain.Product, err error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE pid = $1`
	ctx, end := database.TraceQuery(ctx, database.SystemPostgres, "products.get", query)
	defer func() { end(err) }()

	return r.scanOne(ctx, query, pid)
}

// ListBySeller returns every product listed by sid.
func (r *ProductRepository) ListBySeller(ctx context.Context, sid string) (_ []domain.Product, err error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE sid = $1 ORDER BY pid`
	ctx, end := database.TraceQuery(ctx, database.SystemPostgres, "products.list_by_seller", query)
	defer func() { end(err) }()

	return r.scanAll(ctx, query, sid)
}

// ListPage returns one window of the catalog ordered by pid.
func (r *ProductRepository) ListPage(ctx context.Context, skip, limit int) (_ []domain.Product, err error) {
	query := `SELECT ` + productColumns + ` FROM products ORDER BY pid LIMIT $1 OFFSET $2`
	ctx, end := database.TraceQuery(ctx, database.SystemPostgres, "products.list_page", query)
	defer func() { end(err) }()

	return r.scanAll(ctx, query, limit, skip)
}

// ScanAfter walks the table in pid order using keyset pagination.
func (r *ProductRepository) ScanAfter(ctx context.Context, afterPID string, limit int) (_ []domain.Product, err error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE pid > $1 ORDER BY pid LIMIT $2`
	ctx, end := database.TraceQuery(ctx, database.SystemPostgres, "products.scan", query)
	defer func() { end(err) }()

	return r.scanAll(ctx, query, afterPID, limit)
}

// Create inserts p. A concurrent insert of the same pid loses on the primary
// key and is reported as already existing.
func (r *ProductRepository) Create(ctx context.Context, p *domain.Product) (err error) {
	query := `
		INSERT INTO products (` + productColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`
	ctx, end := database.TraceQuery(ctx, database.SystemPostgres, "products.insert", query)
	defer func() { end(err) }()

	_, err = r.db.Exec(ctx, query,
		p.PID, p.SID, p.Name, p.Description, p.Image, p.Category,
		p.Price, p.Stock, p.Sales, p.Rating, p.Clicks,
	)
	if err != nil {
		return mapWriteError(err, p.PID, "insert product")
	}
	return nil
}

// Update writes the patched columns and returns the stored row. An empty
// patch only reads.
func (r *ProductRepository) Update(ctx context.Context, pid string, patch domain.Patch) (_ *domain.Product, err error) {
	if patch.IsEmpty() {
		return r.GetByID(ctx, pid)
	}

	var (
		sets = make([]string, 0, 6)
		args = []any{pid}
	)
	add := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	if patch.Image != nil {
		add("image", *patch.Image)
	}
	if patch.Price != nil {
		add("price", *patch.Price)
	}
	if patch.Stock != nil {
		add("stock", *patch.Stock)
	}
	if patch.Sales != nil {
		add("sales", *patch.Sales)
	}
	if patch.Rating != nil {
		add("rating", *patch.Rating)
	}
	sets = append(sets, "updated_at = NOW()")

	query := fmt.Sprintf(`UPDATE products SET %s WHERE pid = $1 RETURNING %s`, strings.Join(sets, ", "), productColumns)
	ctx, end := database.TraceQuery(ctx, database.SystemPostgres, "products.update", query)
	defer func() { end(err) }()

	p, err := scanProduct(r.db.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("product", pid)
		}
		return nil, mapWriteError(err, pid, "update product")
	}
	return p, nil
}

// IncrementClicks adds one to the click counter in a single statement.
func (r *ProductRepository) IncrementClicks(ctx context.Context, pid string) (_ *domain.Product, err error) {
	query := `UPDATE products SET clicks = clicks + 1, updated_at = NOW() WHERE pid = $1 RETURNING ` + productColumns
	ctx, end := database.TraceQuery(ctx, database.SystemPostgres, "products.increment_clicks", query)
	defer func() { end(err) }()

	return r.scanOne(ctx, query, pid)
}

// Delete removes the product and returns the deleted row.
func (r *ProductRepository) Delete(ctx context.Context, pid string) (_ *domain.Product, err error) {
	query := `DELETE FROM products WHERE pid = $1 RETURNING ` + productColumns
	ctx, end := database.TraceQuery(ctx, database.SystemPostgres, "products.delete", query)
	defer func() { end(err) }()

	return r.scanOne(ctx, query, pid)
}

// Ping checks that the pool can reach the server.
func (r *ProductRepository) Ping(ctx context.Context) error {
	if p, ok := r.db.(database.Pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}

func (r *ProductRepository) scanOne(ctx context.Context, query, pid string) (*domain.Product, error) {
	p, err := scanProduct(r.db.QueryRow(ctx, query, pid))
	if err != nil {
		return nil, mapReadError(err, pid)
	}
	return p, nil
}

func (r *ProductRepository) scanAll(ctx context.Context, query string, args ...any) ([]domain.Product, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query products: %w", err)
	}
	defer rows.Close()

	products := make([]domain.Product, 0)
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scan product row: %w", err)
		}
		products = append(products, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate product rows: %w", err)
	}
	return products, nil
}

func scanProduct(row pgx.Row) (*domain.Product, error) {
	var p domain.Product
	if err := row.Scan(
		&p.PID, &p.SID, &p.Name, &p.Description, &p.Image, &p.Category,
		&p.Price, &p.Stock, &p.Sales, &p.Rating, &p.Clicks,
	); err != nil {
		return nil, err
	}
	return &p, nil
}

func mapReadError(err error, pid string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return apperrors.NotFound("product", pid)
	}
	return fmt.Errorf("get product %s: %w", pid, err)
}

func mapWriteError(err error, pid, op string) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return apperrors.AlreadyExists("product", "pid", pid)
		case "23514":
			return apperrors.InvalidInput(fmt.Sprintf("product %s violates %s", pid, pgErr.ConstraintName))
		}
	}
	if isUniqueViolation(err) {
		return apperrors.AlreadyExists("product", "pid", pid)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "23505")
}
