package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/utafrali/storefront/internal/domain"
	apperrors "github.com/utafrali/storefront/pkg/errors"
)

// ReindexOptions tunes a full reindex.
type ReindexOptions struct {
	// BatchSize is the number of products per bulk request.
	BatchSize int
	// Concurrency bounds the bulk requests in flight.
	Concurrency int
}

// DefaultReindexOptions returns 500-document batches, four at a time.
func DefaultReindexOptions() ReindexOptions {
	return ReindexOptions{BatchSize: 500, Concurrency: 4}
}

// ReindexResult summarizes a completed reindex.
type ReindexResult struct {
	Documents int `json:"documents"`
	Batches   int `json:"batches"`
	// Repaired counts products re-synced because they were mutated while
	// their batch was in flight.
	Repaired int           `json:"repaired"`
	Duration time.Duration `json:"duration"`
}

type reindexGuard struct {
	running atomic.Bool

	mu    sync.Mutex
	dirty map[string]struct{}
}

// track starts recording pids written to the index by mutations.
func (g *reindexGuard) track() {
	g.mu.Lock()
	g.dirty = make(map[string]struct{})
	g.mu.Unlock()
}

// mark records pid if a reindex is tracking.
func (g *reindexGuard) mark(pid string) {
	g.mu.Lock()
	if g.dirty != nil {
		g.dirty[pid] = struct{}{}
	}
	g.mu.Unlock()
}

// stop ends tracking and returns the recorded pids in order.
func (g *reindexGuard) stop() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	pids := make([]string, 0, len(g.dirty))
	for pid := range g.dirty {
		pids = append(pids, pid)
	}
	g.dirty = nil
	sort.Strings(pids)
	return pids
}

// Reindexing reports whether a reindex is in progress.
func (s *CatalogService) Reindexing() bool {
	return s.reindexing.running.Load()
}

// Reindex applies the index settings and then copies every primary record
// into the index. The primary store is walked in pid order while up to
// Concurrency bulk writes run in parallel. A batch may carry a record that a
// mutation changed or deleted after the scan, so every pid written by a
// mutation during the run is re-synced once all batches are done. Only one
// reindex runs at a time; a second call gets apperrors.ErrConflict.
func (s *CatalogService) Reindex(ctx context.Context, opts ReindexOptions) (*ReindexResult, error) {
	if !s.reindexing.running.CompareAndSwap(false, true) {
		return nil, apperrors.Conflict("a reindex is already running")
	}
	defer s.reindexing.running.Store(false)
	s.reindexing.track()
	defer s.reindexing.stop()

	if opts.BatchSize < 1 {
		opts.BatchSize = DefaultReindexOptions().BatchSize
	}
	if opts.Concurrency < 1 {
		opts.Concurrency = DefaultReindexOptions().Concurrency
	}

	start := time.Now()
	if err := s.index.ConfigureIndex(ctx); err != nil {
		return nil, apperrors.Upstream(depIndex, fmt.Errorf("configure index: %w", err))
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Concurrency)

	var (
		documents atomic.Int64
		batches   int
		after     string
	)
	for gctx.Err() == nil {
		batch, err := s.repo.ScanAfter(gctx, after, opts.BatchSize)
		if err != nil {
			if werr := g.Wait(); werr != nil {
				return nil, apperrors.Upstream(depIndex, werr)
			}
			return nil, primaryError(fmt.Errorf("scan products after %q: %w", after, err))
		}
		if len(batch) == 0 {
			break
		}
		after = batch[len(batch)-1].PID
		batches++

		g.Go(func() error {
			if err := s.index.BulkIndex(gctx, batch); err != nil {
				return fmt.Errorf("bulk index batch ending at %s: %w", batch[len(batch)-1].PID, err)
			}
			documents.Add(int64(len(batch)))
			reindexDocuments.Add(float64(len(batch)))
			return nil
		})

		if len(batch) < opts.BatchSize {
			break
		}
	}
	if err := g.Wait(); err != nil {
		return nil, apperrors.Upstream(depIndex, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	repaired, err := s.repairDirty(ctx, s.reindexing.stop())
	if err != nil {
		return nil, err
	}

	res := &ReindexResult{
		Documents: int(documents.Load()),
		Batches:   batches,
		Repaired:  repaired,
		Duration:  time.Since(start),
	}
	s.logger.InfoContext(ctx, "reindex completed",
		slog.Int("documents", res.Documents),
		slog.Int("batches", res.Batches),
		slog.Int("repaired", res.Repaired),
		slog.Duration("duration", res.Duration),
	)
	return res, nil
}

// repairDirty re-syncs pids that mutations wrote while the bulk writes ran.
// A failed re-sync is queued in the outbox when there is one.
func (s *CatalogService) repairDirty(ctx context.Context, pids []string) (int, error) {
	for _, pid := range pids {
		err := s.Resync(ctx, pid)
		if err == nil {
			continue
		}
		if s.outbox == nil {
			return 0, fmt.Errorf("re-sync %s after reindex: %w", pid, err)
		}
		if qerr := s.outbox.Enqueue(ctx, pid, domain.IndexOpUpsert, err.Error()); qerr != nil {
			return 0, apperrors.Upstream(depIndex, errors.Join(err, qerr))
		}
		s.logger.WarnContext(ctx, "re-sync after reindex failed, queued for retry",
			slog.String("pid", pid),
			slog.String("error", err.Error()),
		)
	}
	return len(pids), nil
}
