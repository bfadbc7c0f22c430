package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/internal/engine"
	"github.com/utafrali/storefront/internal/lock"
	"github.com/utafrali/storefront/internal/repository"
	apperrors "github.com/utafrali/storefront/pkg/errors"
	"github.com/utafrali/storefront/pkg/logger"
	"github.com/utafrali/storefront/pkg/pagination"
)

const (
	depPrimary = "primary store"
	depIndex   = "search index"
	depLock    = "lock"
)

const (
	actionListed   = "listed"
	actionUpdated  = "updated"
	actionClicked  = "clicked"
	actionDelisted = "delisted"
)

// EventPublisher announces completed mutations. Publishing is best effort; a
// failure is logged and never fails the mutation.
type EventPublisher interface {
	ProductListed(ctx context.Context, p *domain.Product) error
	ProductUpdated(ctx context.Context, p *domain.Product) error
	ProductClicked(ctx context.Context, p *domain.Product) error
	ProductDelisted(ctx context.Context, p *domain.Product) error
}

// Result is the outcome of a mutation whose primary write succeeded.
// IndexPending is set when the mirrored index write failed and was queued in
// the outbox: the change is saved but not yet searchable.
type Result struct {
	Product      *domain.Product
	IndexPending bool
}

// Option configures a CatalogService.
type Option func(*CatalogService)

// WithLocker serializes mutations per product id.
func WithLocker(l lock.Locker) Option {
	return func(s *CatalogService) { s.locker = l }
}

// WithOutbox queues failed index writes for the relay.
func WithOutbox(o repository.OutboxRepository) Option {
	return func(s *CatalogService) { s.outbox = o }
}

// WithEvents publishes product events after each mutation.
func WithEvents(p EventPublisher) Option {
	return func(s *CatalogService) { s.events = p }
}

// WithStrictSync makes a failed index write fail the call instead of being
// queued.
func WithStrictSync(strict bool) Option {
	return func(s *CatalogService) { s.strict = strict }
}

// CatalogService keeps the primary store and the search index in step. Every
// mutation writes the primary store first, then mirrors the resulting record
// into the index.
type CatalogService struct {
	repo   repository.ProductRepository
	index  engine.SearchEngine
	locker lock.Locker
	outbox repository.OutboxRepository
	events EventPublisher
	strict bool
	logger *slog.Logger

	reindexing reindexGuard
}

// NewCatalogService creates the synchronization core. Without options it
// locks nothing, has no outbox and publishes no events.
func NewCatalogService(repo repository.ProductRepository, index engine.SearchEngine, logger *slog.Logger, opts ...Option) *CatalogService {
	s := &CatalogService{
		repo:   repo,
		index:  index,
		locker: lock.None{},
		logger: logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// List creates a new product. An existing pid is reported as
// apperrors.ErrAlreadyExists and nothing is written. Sales and clicks start
// at zero.
func (s *CatalogService) List(ctx context.Context, p domain.Product) (*Result, error) {
	unlock, err := s.lock(ctx, p.PID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	if _, err := s.repo.GetByID(ctx, p.PID); err == nil {
		return nil, apperrors.AlreadyExists("product", "pid", p.PID)
	} else if !errors.Is(err, apperrors.ErrNotFound) {
		return nil, primaryError(err)
	}

	p.Sales = 0
	p.Clicks = 0
	if err := s.repo.Create(ctx, &p); err != nil {
		return nil, primaryError(err)
	}

	pending, err := s.mirror(ctx, domain.IndexOpUpsert, p.PID, &p)
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "product listed",
		slog.String("pid", p.PID),
		slog.String("sid", p.SID),
		slog.Bool("index_pending", pending),
	)
	s.publish(ctx, actionListed, &p)
	return &Result{Product: &p, IndexPending: pending}, nil
}

// Delist removes a product from the primary store and then from the index.
// A missing pid is reported as apperrors.ErrNotFound and the index is not
// touched.
func (s *CatalogService) Delist(ctx context.Context, pid string) (*Result, error) {
	unlock, err := s.lock(ctx, pid)
	if err != nil {
		return nil, err
	}
	defer unlock()

	deleted, err := s.repo.Delete(ctx, pid)
	if err != nil {
		return nil, primaryError(err)
	}

	pending, err := s.mirror(ctx, domain.IndexOpDelete, pid, nil)
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "product delisted",
		slog.String("pid", pid),
		slog.Bool("index_pending", pending),
	)
	s.publish(ctx, actionDelisted, deleted)
	return &Result{Product: deleted, IndexPending: pending}, nil
}

// UpdatePartial overwrites the fields present in patch and mirrors the whole
// resulting record into the index. An empty patch writes nothing.
func (s *CatalogService) UpdatePartial(ctx context.Context, pid string, patch domain.Patch) (*Result, error) {
	unlock, err := s.lock(ctx, pid)
	if err != nil {
		return nil, err
	}
	defer unlock()

	current, err := s.repo.GetByID(ctx, pid)
	if err != nil {
		return nil, primaryError(err)
	}
	if patch.IsEmpty() {
		return &Result{Product: current}, nil
	}

	stored, err := s.repo.Update(ctx, pid, patch)
	if err != nil {
		return nil, primaryError(err)
	}

	pending, err := s.mirror(ctx, domain.IndexOpUpsert, pid, stored)
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "product updated",
		slog.String("pid", pid),
		slog.Bool("index_pending", pending),
	)
	s.publish(ctx, actionUpdated, stored)
	return &Result{Product: stored, IndexPending: pending}, nil
}

// IncrementClicks adds one click in a single primary-store operation and
// mirrors the updated record.
func (s *CatalogService) IncrementClicks(ctx context.Context, pid string) (*Result, error) {
	unlock, err := s.lock(ctx, pid)
	if err != nil {
		return nil, err
	}
	defer unlock()

	updated, err := s.repo.IncrementClicks(ctx, pid)
	if err != nil {
		return nil, primaryError(err)
	}

	pending, err := s.mirror(ctx, domain.IndexOpUpsert, pid, updated)
	if err != nil {
		return nil, err
	}

	s.logger.DebugContext(ctx, "product click recorded",
		slog.String("pid", pid),
		slog.Int64("clicks", updated.Clicks),
	)
	s.publish(ctx, actionClicked, updated)
	return &Result{Product: updated, IndexPending: pending}, nil
}

// GetProduct returns the primary record.
func (s *CatalogService) GetProduct(ctx context.Context, pid string) (*domain.Product, error) {
	p, err := s.repo.GetByID(ctx, pid)
	if err != nil {
		return nil, primaryError(err)
	}
	return p, nil
}

// Search queries the index. The primary store is not consulted.
func (s *CatalogService) Search(ctx context.Context, query domain.SearchQuery) ([]domain.Product, error) {
	hits, err := s.index.Search(ctx, query)
	if err != nil {
		if errors.Is(err, apperrors.ErrInvalidInput) {
			return nil, err
		}
		return nil, apperrors.Upstream(depIndex, err)
	}

	s.logger.DebugContext(ctx, "search executed",
		slog.String("query", query.Text),
		slog.String("category", query.Category),
		slog.Int("hits", len(hits)),
	)
	return hits, nil
}

// SeekPage returns one page of domain.PageSize products in ascending pid
// order. Pages start at 1.
func (s *CatalogService) SeekPage(ctx context.Context, page int) ([]domain.Product, error) {
	params, err := pagination.New(page, domain.PageSize)
	if err != nil {
		return nil, err
	}

	products, err := s.repo.ListPage(ctx, params.Skip, params.Size)
	if err != nil {
		return nil, primaryError(err)
	}
	return products, nil
}

// SeekBySeller returns every product of the seller. An unknown seller and a
// seller without listings both yield an empty slice.
func (s *CatalogService) SeekBySeller(ctx context.Context, sid string) ([]domain.Product, error) {
	products, err := s.repo.ListBySeller(ctx, sid)
	if err != nil {
		return nil, primaryError(err)
	}
	return products, nil
}

// Resync makes the index match the primary record for pid: present records
// are upserted, missing ones deleted. Failures are returned, not queued.
func (s *CatalogService) Resync(ctx context.Context, pid string) error {
	unlock, err := s.lock(ctx, pid)
	if err != nil {
		return err
	}
	defer unlock()

	p, err := s.repo.GetByID(ctx, pid)
	switch {
	case errors.Is(err, apperrors.ErrNotFound):
		return s.indexWrite(ctx, domain.IndexOpDelete, pid, nil)
	case err != nil:
		return primaryError(err)
	default:
		return s.indexWrite(ctx, domain.IndexOpUpsert, pid, p)
	}
}

// mirror applies the index side of a mutation. On failure the write is
// queued in the outbox and reported as pending; in strict mode, or without
// an outbox, it fails the call.
func (s *CatalogService) mirror(ctx context.Context, op domain.IndexOp, pid string, p *domain.Product) (bool, error) {
	err := s.indexWrite(ctx, op, pid, p)
	if err == nil {
		indexWrites.WithLabelValues(string(op), indexResultOK).Inc()
		return false, nil
	}

	if s.strict || s.outbox == nil {
		indexWrites.WithLabelValues(string(op), indexResultFailed).Inc()
		s.logger.ErrorContext(ctx, "index write failed after primary write",
			slog.String("pid", pid),
			slog.String("op", string(op)),
			slog.String("error", err.Error()),
		)
		return false, apperrors.Upstream(depIndex, err)
	}

	if qerr := s.outbox.Enqueue(ctx, pid, op, err.Error()); qerr != nil {
		indexWrites.WithLabelValues(string(op), indexResultFailed).Inc()
		s.logger.ErrorContext(ctx, "index write failed and could not be queued",
			slog.String("pid", pid),
			slog.String("op", string(op)),
			slog.String("error", err.Error()),
			slog.String("outbox_error", qerr.Error()),
		)
		return false, apperrors.Upstream(depIndex, errors.Join(err, qerr))
	}

	indexWrites.WithLabelValues(string(op), indexResultQueued).Inc()
	s.logger.WarnContext(ctx, "index write failed, queued for retry",
		slog.String("pid", pid),
		slog.String("op", string(op)),
		slog.String("error", err.Error()),
	)
	return true, nil
}

func (s *CatalogService) indexWrite(ctx context.Context, op domain.IndexOp, pid string, p *domain.Product) error {
	start := time.Now()
	defer func() {
		indexWriteDuration.WithLabelValues(string(op)).Observe(time.Since(start).Seconds())
	}()
	s.reindexing.mark(pid)

	if op == domain.IndexOpDelete {
		return s.index.Delete(ctx, pid)
	}
	return s.index.Upsert(ctx, p)
}

func (s *CatalogService) lock(ctx context.Context, pid string) (func(), error) {
	start := time.Now()
	unlock, err := s.locker.Lock(ctx, pid)
	lockWait.Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, apperrors.Upstream(depLock, err)
	}
	return unlock, nil
}

func (s *CatalogService) publish(ctx context.Context, action string, p *domain.Product) {
	if s.events == nil {
		return
	}

	var err error
	switch action {
	case actionListed:
		err = s.events.ProductListed(ctx, p)
	case actionUpdated:
		err = s.events.ProductUpdated(ctx, p)
	case actionClicked:
		err = s.events.ProductClicked(ctx, p)
	case actionDelisted:
		err = s.events.ProductDelisted(ctx, p)
	}
	if err != nil {
		logger.WithContext(ctx, s.logger).WarnContext(ctx, "failed to publish product event",
			slog.String("action", action),
			slog.String("pid", p.PID),
			slog.String("error", err.Error()),
		)
	}
}

// primaryError passes expected outcomes through and wraps everything else
// as an upstream fault of the primary store.
func primaryError(err error) error {
	switch {
	case errors.Is(err, apperrors.ErrNotFound),
		errors.Is(err, apperrors.ErrAlreadyExists),
		errors.Is(err, apperrors.ErrInvalidInput):
		return err
	default:
		return apperrors.Upstream(depPrimary, err)
	}
}
