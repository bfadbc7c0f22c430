package http

import (
	"errors"
	"log/slog"
	"math"
	"net/http"
	"strconv"

	"github.com/utafrali/storefront/internal/service"
	apperrors "github.com/utafrali/storefront/pkg/errors"
	"github.com/utafrali/storefront/pkg/httputil"
)

// IndexStatusHeader is set to IndexStatusPending when the primary write
// succeeded but the search index has not caught up yet.
const (
	IndexStatusHeader  = "X-Index-Status"
	IndexStatusPending = "pending"
)

// writeLookupError answers a failed lookup or mutation. A missing product is
// 204 No Content rather than 404.
func writeLookupError(w http.ResponseWriter, r *http.Request, err error, logger *slog.Logger) {
	if errors.Is(err, apperrors.ErrNotFound) {
		httputil.WriteStatus(w, http.StatusNoContent)
		return
	}
	httputil.WriteError(w, r, err, logger)
}

// writeMutation answers a completed mutation with an empty 200.
func writeMutation(w http.ResponseWriter, res *service.Result) {
	if res.IndexPending {
		w.Header().Set(IndexStatusHeader, IndexStatusPending)
	}
	httputil.WriteStatus(w, http.StatusOK)
}

type queryParser struct {
	r   *http.Request
	err error
	bad string
}

var errNotFinite = errors.New("number is not finite")

func (p *queryParser) fail(param string, err error) {
	if p.err == nil {
		p.err, p.bad = err, param
	}
}

func (p *queryParser) has(name string) bool {
	return p.r.URL.Query().Has(name)
}

func (p *queryParser) str(name string) string {
	return p.r.URL.Query().Get(name)
}

func (p *queryParser) optString(name string) *string {
	if !p.has(name) {
		return nil
	}
	v := p.str(name)
	return &v
}

func (p *queryParser) optFloat(name string) *float64 {
	if !p.has(name) {
		return nil
	}
	v, err := strconv.ParseFloat(p.str(name), 64)
	if err != nil {
		p.fail(name, err)
		return nil
	}
	if math.IsInf(v, 0) || math.IsNaN(v) {
		p.fail(name, errNotFinite)
		return nil
	}
	return &v
}

func (p *queryParser) optInt(name string) *int64 {
	if !p.has(name) {
		return nil
	}
	v, err := strconv.ParseInt(p.str(name), 10, 64)
	if err != nil {
		p.fail(name, err)
		return nil
	}
	return &v
}

// writeErr answers 400 for the first unparsable parameter. It reports
// whether a response was written.
func (p *queryParser) writeErr(w http.ResponseWriter) bool {
	if p.err == nil {
		return false
	}
	httputil.WriteInvalidParameter(w, p.bad, p.bad+" is not a valid number")
	return true
}
