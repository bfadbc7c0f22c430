package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/internal/repository"
)

// Syncer converges the index entry of one product with the primary store.
type Syncer interface {
	Resync(ctx context.Context, pid string) error
}

// RelayConfig tunes the outbox relay.
type RelayConfig struct {
	PollInterval time.Duration
	BatchSize    int
	// MaxAttempts is the number of failed replays after which a task is
	// dead-lettered: kept in the outbox but no longer retried.
	MaxAttempts int
	// Rate caps replays per second; zero means unlimited.
	Rate float64
	// BaseBackoff doubles after each failed attempt up to MaxBackoff.
	BaseBackoff time.Duration
	MaxBackoff  time.Duration
}

// DefaultRelayConfig returns the relay defaults.
func DefaultRelayConfig() RelayConfig {
	return RelayConfig{
		PollInterval: 5 * time.Second,
		BatchSize:    100,
		MaxAttempts:  10,
		Rate:         50,
		BaseBackoff:  time.Second,
		MaxBackoff:   5 * time.Minute,
	}
}

// Relay drains the outbox. Each task replays the current primary state of
// its product rather than the write that failed, so replays are idempotent
// and a stale task can never overwrite a newer index entry.
type Relay struct {
	outbox  repository.OutboxRepository
	syncer  Syncer
	cfg     RelayConfig
	limiter *rate.Limiter
	logger  *slog.Logger
	now     func() time.Time
}

// NewRelay creates a relay over outbox.
func NewRelay(outbox repository.OutboxRepository, syncer Syncer, cfg RelayConfig, logger *slog.Logger) *Relay {
	def := DefaultRelayConfig()
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = def.PollInterval
	}
	if cfg.BatchSize < 1 {
		cfg.BatchSize = def.BatchSize
	}
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = def.MaxAttempts
	}
	if cfg.BaseBackoff <= 0 {
		cfg.BaseBackoff = def.BaseBackoff
	}
	if cfg.MaxBackoff < cfg.BaseBackoff {
		cfg.MaxBackoff = def.MaxBackoff
	}

	limit := rate.Inf
	if cfg.Rate > 0 {
		limit = rate.Limit(cfg.Rate)
	}
	return &Relay{
		outbox:  outbox,
		syncer:  syncer,
		cfg:     cfg,
		limiter: rate.NewLimiter(limit, 1),
		logger:  logger,
		now:     time.Now,
	}
}

// Run drains the outbox every PollInterval until ctx is cancelled.
func (r *Relay) Run(ctx context.Context) error {
	r.logger.InfoContext(ctx, "outbox relay started",
		slog.Duration("poll_interval", r.cfg.PollInterval),
		slog.Int("max_attempts", r.cfg.MaxAttempts),
	)

	ticker := time.NewTicker(r.cfg.PollInterval)
	defer ticker.Stop()

	for {
		if _, err := r.Drain(ctx); err != nil && !errors.Is(err, context.Canceled) {
			r.logger.ErrorContext(ctx, "outbox relay pass failed", slog.String("error", err.Error()))
		}

		select {
		case <-ctx.Done():
			r.logger.Info("outbox relay stopped")
			return nil
		case <-ticker.C:
		}
	}
}

// Drain replays every task that is due, batch by batch, and returns how many
// tasks completed.
func (r *Relay) Drain(ctx context.Context) (int, error) {
	done := 0
	for {
		tasks, err := r.outbox.Due(ctx, r.now(), r.cfg.BatchSize, r.cfg.MaxAttempts)
		if err != nil {
			return done, err
		}

		progressed := false
		for _, t := range tasks {
			if err := r.limiter.Wait(ctx); err != nil {
				return done, err
			}
			ok, err := r.replay(ctx, t)
			if err != nil {
				return done, err
			}
			if ok {
				done++
				progressed = true
			}
		}

		if len(tasks) < r.cfg.BatchSize || !progressed {
			break
		}
	}

	if stats, err := r.outbox.Stats(ctx, r.cfg.MaxAttempts); err == nil {
		outboxBacklog.WithLabelValues("pending").Set(float64(stats.Pending))
		outboxBacklog.WithLabelValues("dead").Set(float64(stats.DeadLetter))
	}
	return done, nil
}

// Stats reports the outbox backlog.
func (r *Relay) Stats(ctx context.Context) (domain.OutboxStats, error) {
	return r.outbox.Stats(ctx, r.cfg.MaxAttempts)
}

// replay handles one task. It returns true when the task completed; an error
// only when the outbox itself could not be updated.
func (r *Relay) replay(ctx context.Context, t domain.IndexTask) (bool, error) {
	syncErr := r.syncer.Resync(ctx, t.PID)
	if syncErr == nil {
		relayTasks.WithLabelValues("done").Inc()
		r.logger.DebugContext(ctx, "outbox task replayed",
			slog.String("task_id", t.ID),
			slog.String("pid", t.PID),
		)
		return true, r.outbox.MarkDone(ctx, t.ID)
	}

	attempts := t.Attempts + 1
	next := r.now().Add(r.backoff(attempts))
	if err := r.outbox.MarkFailed(ctx, t.ID, syncErr.Error(), next); err != nil {
		return false, err
	}

	if attempts >= r.cfg.MaxAttempts {
		relayTasks.WithLabelValues("dead").Inc()
		r.logger.ErrorContext(ctx, "outbox task dead-lettered",
			slog.String("task_id", t.ID),
			slog.String("pid", t.PID),
			slog.Int("attempts", attempts),
			slog.String("error", syncErr.Error()),
		)
		return false, nil
	}

	relayTasks.WithLabelValues("retry").Inc()
	r.logger.WarnContext(ctx, "outbox task failed, will retry",
		slog.String("task_id", t.ID),
		slog.String("pid", t.PID),
		slog.Int("attempts", attempts),
		slog.Time("next_attempt_at", next),
		slog.String("error", syncErr.Error()),
	)
	return false, nil
}

func (r *Relay) backoff(attempts int) time.Duration {
	d := r.cfg.BaseBackoff
	for i := 1; i < attempts; i++ {
		d *= 2
		if d >= r.cfg.MaxBackoff {
			return r.cfg.MaxBackoff
		}
	}
	return d
}
