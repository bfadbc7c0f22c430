package postgres

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/pkg/database"
	apperrors "github.com/utafrali/storefront/pkg/errors"
)

// ---------------------------------------------------------------------------
// helpers
// ---------------------------------------------------------------------------

func newMock(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := database.NewMockPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return mock
}

var productCols = []string{"pid", "sid", "name", "description", "image", "category", "price", "stock", "sales", "rating", "clicks"}

func sampleProduct() domain.Product {
	return domain.Product{
		PID: "P0001", SID: "S0001", Name: "Blue Mug", Description: "Ceramic mug",
		Image: "https://img/mug.png", Category: "kitchen",
		Price: 12.5, Stock: 40, Sales: 3, Rating: 4.5, Clicks: 17,
	}
}

func productRow(p domain.Product) []any {
	return []any{p.PID, p.SID, p.Name, p.Description, p.Image, p.Category, p.Price, p.Stock, p.Sales, p.Rating, p.Clicks}
}

func f64(v float64) *float64 { return &v }
func i64(v int64) *int64     { return &v }

// ---------------------------------------------------------------------------
// GetByID
// ---------------------------------------------------------------------------

func TestProductRepository_GetByID(t *testing.T) {
	mock := newMock(t)
	repo := NewProductRepository(mock)
	want := sampleProduct()

	mock.ExpectQuery("SELECT .+ FROM products WHERE pid = \\$1").
		WithArgs("P0001").
		WillReturnRows(pgxmock.NewRows(productCols).AddRow(productRow(want)...))

	got, err := repo.GetByID(context.Background(), "P0001")
	require.NoError(t, err)
	assert.Equal(t, want, *got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProductRepository_GetByID_NotFound(t *testing.T) {
	mock := newMock(t)
	repo := NewProductRepository(mock)

	mock.ExpectQuery("SELECT .+ FROM products WHERE pid").
		WithArgs("P9999").
		WillReturnError(pgx.ErrNoRows)

	_, err := repo.GetByID(context.Background(), "P9999")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

// ---------------------------------------------------------------------------
// Lists
// ---------------------------------------------------------------------------

func TestProductRepository_ListPage(t *testing.T) {
	mock := newMock(t)
	repo := NewProductRepository(mock)

	p1, p2 := sampleProduct(), sampleProduct()
	p2.PID = "P0002"
	mock.ExpectQuery("SELECT .+ FROM products ORDER BY pid LIMIT \\$1 OFFSET \\$2").
		WithArgs(18, 36).
		WillReturnRows(pgxmock.NewRows(productCols).AddRow(productRow(p1)...).AddRow(productRow(p2)...))

	got, err := repo.ListPage(context.Background(), 36, 18)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "P0002", got[1].PID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProductRepository_ListBySeller_Empty(t *testing.T) {
	mock := newMock(t)
	repo := NewProductRepository(mock)

	mock.ExpectQuery("SELECT .+ FROM products WHERE sid = \\$1 ORDER BY pid").
		WithArgs("S0404").
		WillReturnRows(pgxmock.NewRows(productCols))

	got, err := repo.ListBySeller(context.Background(), "S0404")
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestProductRepository_ScanAfter(t *testing.T) {
	mock := newMock(t)
	repo := NewProductRepository(mock)

	mock.ExpectQuery("WHERE pid > \\$1 ORDER BY pid LIMIT \\$2").
		WithArgs("P0100", 500).
		WillReturnRows(pgxmock.NewRows(productCols).AddRow(productRow(sampleProduct())...))

	got, err := repo.ScanAfter(context.Background(), "P0100", 500)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestProductRepository_ListPage_QueryError(t *testing.T) {
	mock := newMock(t)
	repo := NewProductRepository(mock)

	mock.ExpectQuery("SELECT .+ FROM products ORDER BY pid").
		WithArgs(18, 0).
		WillReturnError(errors.New("connection reset"))

	_, err := repo.ListPage(context.Background(), 0, 18)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "query products")
}

// ---------------------------------------------------------------------------
// Create
// ---------------------------------------------------------------------------

func TestProductRepository_Create(t *testing.T) {
	mock := newMock(t)
	repo := NewProductRepository(mock)
	p := sampleProduct()

	mock.ExpectExec("INSERT INTO products").
		WithArgs(productRow(p)...).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, repo.Create(context.Background(), &p))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProductRepository_Create_DuplicatePID(t *testing.T) {
	mock := newMock(t)
	repo := NewProductRepository(mock)
	p := sampleProduct()

	mock.ExpectExec("INSERT INTO products").
		WithArgs(productRow(p)...).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "products_pkey"})

	err := repo.Create(context.Background(), &p)
	assert.ErrorIs(t, err, apperrors.ErrAlreadyExists)
}

func TestProductRepository_Create_CheckViolation(t *testing.T) {
	mock := newMock(t)
	repo := NewProductRepository(mock)
	p := sampleProduct()
	p.Price = -1

	mock.ExpectExec("INSERT INTO products").
		WithArgs(productRow(p)...).
		WillReturnError(&pgconn.PgError{Code: "23514", ConstraintName: "products_price_check"})

	err := repo.Create(context.Background(), &p)
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

// ---------------------------------------------------------------------------
// Update
// ---------------------------------------------------------------------------

func TestProductRepository_Update_OnlyPatchedColumns(t *testing.T) {
	mock := newMock(t)
	repo := NewProductRepository(mock)

	updated := sampleProduct()
	updated.Price = 0
	updated.Stock = 7

	mock.ExpectQuery("UPDATE products SET price = \\$2, stock = \\$3, updated_at = NOW\\(\\) WHERE pid = \\$1 RETURNING").
		WithArgs("P0001", 0.0, int64(7)).
		WillReturnRows(pgxmock.NewRows(productCols).AddRow(productRow(updated)...))

	got, err := repo.Update(context.Background(), "P0001", domain.Patch{Price: f64(0), Stock: i64(7)})
	require.NoError(t, err)
	assert.Equal(t, 0.0, got.Price)
	assert.Equal(t, int64(7), got.Stock)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProductRepository_Update_NotFound(t *testing.T) {
	mock := newMock(t)
	repo := NewProductRepository(mock)

	mock.ExpectQuery("UPDATE products SET rating").
		WithArgs("P0404", 3.0).
		WillReturnError(pgx.ErrNoRows)

	_, err := repo.Update(context.Background(), "P0404", domain.Patch{Rating: f64(3)})
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestProductRepository_Update_EmptyPatchReads(t *testing.T) {
	mock := newMock(t)
	repo := NewProductRepository(mock)

	mock.ExpectQuery("SELECT .+ FROM products WHERE pid").
		WithArgs("P0001").
		WillReturnRows(pgxmock.NewRows(productCols).AddRow(productRow(sampleProduct())...))

	got, err := repo.Update(context.Background(), "P0001", domain.Patch{})
	require.NoError(t, err)
	assert.Equal(t, "P0001", got.PID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// ---------------------------------------------------------------------------
// IncrementClicks / Delete
// ---------------------------------------------------------------------------

func TestProductRepository_IncrementClicks(t *testing.T) {
	mock := newMock(t)
	repo := NewProductRepository(mock)

	after := sampleProduct()
	after.Clicks = 18
	mock.ExpectQuery("UPDATE products SET clicks = clicks \\+ 1").
		WithArgs("P0001").
		WillReturnRows(pgxmock.NewRows(productCols).AddRow(productRow(after)...))

	got, err := repo.IncrementClicks(context.Background(), "P0001")
	require.NoError(t, err)
	assert.Equal(t, int64(18), got.Clicks)
}

func TestProductRepository_IncrementClicks_NotFound(t *testing.T) {
	mock := newMock(t)
	repo := NewProductRepository(mock)

	mock.ExpectQuery("UPDATE products SET clicks").
		WithArgs("P0404").
		WillReturnError(pgx.ErrNoRows)

	_, err := repo.IncrementClicks(context.Background(), "P0404")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestProductRepository_Delete(t *testing.T) {
	mock := newMock(t)
	repo := NewProductRepository(mock)

	mock.ExpectQuery("DELETE FROM products WHERE pid = \\$1 RETURNING").
		WithArgs("P0001").
		WillReturnRows(pgxmock.NewRows(productCols).AddRow(productRow(sampleProduct())...))

	got, err := repo.Delete(context.Background(), "P0001")
	require.NoError(t, err)
	assert.Equal(t, "S0001", got.SID)
}

func TestProductRepository_Delete_NotFound(t *testing.T) {
	mock := newMock(t)
	repo := NewProductRepository(mock)

	mock.ExpectQuery("DELETE FROM products").
		WithArgs("P0404").
		WillReturnError(pgx.ErrNoRows)

	_, err := repo.Delete(context.Background(), "P0404")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestProductRepository_Ping(t *testing.T) {
	mock := newMock(t)
	mock.ExpectPing()
	assert.NoError(t, NewProductRepository(mock).Ping(context.Background()))
}
