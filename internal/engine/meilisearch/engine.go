package meilisearch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/internal/engine"
	apperrors "github.com/utafrali/storefront/pkg/errors"
	"github.com/utafrali/storefront/pkg/httpclient"
)

const (
	dependency = "meilisearch"
	tracerName = "github.com/utafrali/storefront/internal/engine/meilisearch"
)

// Task statuses reported by GET /tasks/{uid}.
const (
	taskEnqueued   = "enqueued"
	taskProcessing = "processing"
	taskSucceeded  = "succeeded"
	taskFailed     = "failed"
	taskCanceled   = "canceled"
)

// Config holds MeiliSearch connection settings.
type Config struct {
	URL    string
	APIKey string
	Index  string
	// TaskPollInterval is the delay between two task status reads.
	TaskPollInterval time.Duration
	// TaskTimeout bounds how long a write waits for its task.
	TaskTimeout time.Duration
}

// DefaultConfig returns the settings of a local development instance.
func DefaultConfig() Config {
	return Config{
		URL:              "http://localhost:7700",
		Index:            engine.IndexName,
		TaskPollInterval: 100 * time.Millisecond,
		TaskTimeout:      30 * time.Second,
	}
}

// Engine is a MeiliSearch-backed implementation of the SearchEngine
// interface. MeiliSearch applies writes asynchronously; every write waits
// until its task has succeeded.
type Engine struct {
	client httpclient.Doer
	cfg    Config
	base   string
	logger *slog.Logger
}

type taskInfo struct {
	TaskUID int64 `json:"taskUid"`
}

type task struct {
	UID    int64  `json:"uid"`
	Status string `json:"status"`
	Type   string `json:"type"`
	Error  *struct {
		Message string `json:"message"`
		Code    string `json:"code"`
	} `json:"error"`
}

type searchRequest struct {
	Q      string `json:"q"`
	Filter string `json:"filter,omitempty"`
	Limit  int    `json:"limit"`
}

type searchResponse struct {
	Hits []domain.Product `json:"hits"`
}

type settings struct {
	SearchableAttributes []string `json:"searchableAttributes"`
	FilterableAttributes []string `json:"filterableAttributes"`
	RankingRules         []string `json:"rankingRules"`
}

// New creates a MeiliSearch engine that sends requests through client.
func New(client httpclient.Doer, cfg Config, logger *slog.Logger) *Engine {
	if cfg.Index == "" {
		cfg.Index = engine.IndexName
	}
	if cfg.TaskPollInterval <= 0 {
		cfg.TaskPollInterval = 100 * time.Millisecond
	}
	if cfg.TaskTimeout <= 0 {
		cfg.TaskTimeout = 30 * time.Second
	}
	return &Engine{
		client: client,
		cfg:    cfg,
		base:   strings.TrimRight(cfg.URL, "/"),
		logger: logger,
	}
}

// Upsert adds or replaces one document.
func (e *Engine) Upsert(ctx context.Context, p *domain.Product) (err error) {
	ctx, end := e.span(ctx, "upsert", attribute.String("product.pid", p.PID))
	defer func() { end(err) }()

	return e.addDocuments(ctx, []domain.Product{*p})
}

// BulkIndex adds or replaces many documents as a single task.
func (e *Engine) BulkIndex(ctx context.Context, products []domain.Product) (err error) {
	if len(products) == 0 {
		return nil
	}
	ctx, end := e.span(ctx, "bulk_index", attribute.Int("documents", len(products)))
	defer func() { end(err) }()

	if err := e.addDocuments(ctx, products); err != nil {
		return err
	}
	e.logger.InfoContext(ctx, "bulk indexed products", slog.Int("count", len(products)))
	return nil
}

// Delete removes one document. MeiliSearch reports success for unknown ids.
func (e *Engine) Delete(ctx context.Context, pid string) (err error) {
	ctx, end := e.span(ctx, "delete", attribute.String("product.pid", pid))
	defer func() { end(err) }()

	var info taskInfo
	path := e.indexPath("documents", url.PathEscape(pid))
	if err := e.call(ctx, http.MethodDelete, path, nil, &info); err != nil {
		return fmt.Errorf("meilisearch delete %s: %w", pid, err)
	}
	return e.waitTask(ctx, info.TaskUID)
}

// Search runs a query against the name and description attributes. A
// category narrows the hits with an exact-match filter.
func (e *Engine) Search(ctx context.Context, query domain.SearchQuery) (_ []domain.Product, err error) {
	ctx, end := e.span(ctx, "search", attribute.String("search.category", query.Category))
	defer func() { end(err) }()

	req := searchRequest{Q: query.Text, Limit: query.EffectiveLimit()}
	if query.Category != "" {
		req.Filter = CategoryFilter(query.Category)
	}

	var resp searchResponse
	if err := e.call(ctx, http.MethodPost, e.indexPath("search"), req, &resp); err != nil {
		return nil, fmt.Errorf("meilisearch search: %w", err)
	}
	if resp.Hits == nil {
		resp.Hits = []domain.Product{}
	}
	return resp.Hits, nil
}

// ConfigureIndex creates the index keyed on pid and applies the searchable,
// filterable and ranking settings.
func (e *Engine) ConfigureIndex(ctx context.Context) (err error) {
	ctx, end := e.span(ctx, "configure_index")
	defer func() { end(err) }()

	var created taskInfo
	body := map[string]string{"uid": e.cfg.Index, "primaryKey": engine.PrimaryKey}
	if err := e.call(ctx, http.MethodPost, "/indexes", body, &created); err != nil {
		return fmt.Errorf("meilisearch create index: %w", err)
	}
	if err := e.waitTask(ctx, created.TaskUID); err != nil && !errors.Is(err, errIndexExists) {
		return err
	}

	var updated taskInfo
	s := settings{
		SearchableAttributes: engine.SearchableAttributes,
		FilterableAttributes: engine.FilterableAttributes,
		RankingRules:         engine.RankingRules,
	}
	if err := e.call(ctx, http.MethodPatch, e.indexPath("settings"), s, &updated); err != nil {
		return fmt.Errorf("meilisearch update settings: %w", err)
	}
	if err := e.waitTask(ctx, updated.TaskUID); err != nil {
		return err
	}

	e.logger.InfoContext(ctx, "meilisearch index configured", slog.String("index", e.cfg.Index))
	return nil
}

// Ping calls the health endpoint.
func (e *Engine) Ping(ctx context.Context) error {
	var health struct {
		Status string `json:"status"`
	}
	if err := e.call(ctx, http.MethodGet, "/health", nil, &health); err != nil {
		return fmt.Errorf("meilisearch ping: %w", err)
	}
	if health.Status != "available" {
		return fmt.Errorf("meilisearch ping: status %q", health.Status)
	}
	return nil
}

// CategoryFilter renders the exact-match filter expression for category.
func CategoryFilter(category string) string {
	escaped := strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(category)
	return fmt.Sprintf(`category = "%s"`, escaped)
}

var errIndexExists = errors.New("index already exists")

func (e *Engine) addDocuments(ctx context.Context, products []domain.Product) error {
	var info taskInfo
	path := e.indexPath("documents") + "?primaryKey=" + engine.PrimaryKey
	if err := e.call(ctx, http.MethodPost, path, products, &info); err != nil {
		return fmt.Errorf("meilisearch add documents: %w", err)
	}
	return e.waitTask(ctx, info.TaskUID)
}

// waitTask polls the task until it leaves the queue.
func (e *Engine) waitTask(ctx context.Context, uid int64) error {
	ctx, cancel := context.WithTimeout(ctx, e.cfg.TaskTimeout)
	defer cancel()

	ticker := time.NewTicker(e.cfg.TaskPollInterval)
	defer ticker.Stop()

	path := fmt.Sprintf("/tasks/%d", uid)
	for {
		var t task
		if err := e.call(ctx, http.MethodGet, path, nil, &t); err != nil {
			if ctx.Err() != nil {
				return apperrors.Upstream(dependency, fmt.Errorf("waiting for task %d: %w", uid, ctx.Err()))
			}
			return fmt.Errorf("meilisearch task %d: %w", uid, err)
		}

		switch t.Status {
		case taskSucceeded:
			return nil
		case taskFailed, taskCanceled:
			if t.Error != nil && t.Error.Code == "index_already_exists" {
				return errIndexExists
			}
			msg := t.Status
			if t.Error != nil {
				msg = fmt.Sprintf("%s: %s (%s)", t.Status, t.Error.Message, t.Error.Code)
			}
			return apperrors.Upstream(dependency, fmt.Errorf("task %d %s", uid, msg))
		case taskEnqueued, taskProcessing:
		default:
			e.logger.WarnContext(ctx, "unknown meilisearch task status",
				slog.Int64("task_uid", uid), slog.String("status", t.Status))
		}

		select {
		case <-ctx.Done():
			return apperrors.Upstream(dependency, fmt.Errorf("waiting for task %d: %w", uid, ctx.Err()))
		case <-ticker.C:
		}
	}
}

func (e *Engine) call(ctx context.Context, method, path string, body, out any) error {
	req, err := httpclient.NewJSONRequest(ctx, method, e.base+path, body)
	if err != nil {
		return err
	}
	if e.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+e.cfg.APIKey)
	}
	return httpclient.DoJSON(ctx, e.client, req, dependency, out)
}

func (e *Engine) indexPath(parts ...string) string {
	return "/indexes/" + url.PathEscape(e.cfg.Index) + "/" + strings.Join(parts, "/")
}

func (e *Engine) span(ctx context.Context, op string, attrs ...attribute.KeyValue) (context.Context, func(error)) {
	attrs = append(attrs, attribute.String("search.system", dependency), attribute.String("search.index", e.cfg.Index))
	ctx, span := otel.Tracer(tracerName).Start(ctx, "search."+op,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attrs...),
	)
	return ctx, func(err error) {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}
}
