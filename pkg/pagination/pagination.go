package pagination

import (
	"fmt"
	"net/http"
	"strconv"

	apperrors "github.com/utafrali/storefront/pkg/errors"
)

// Params describes one fixed-size page window.
type Params struct {
	Page int `json:"page"`
	Size int `json:"size"`
	Skip int `json:"-"`
}

// New builds the window for a 1-based page number. The skip offset is
// (page - 1) * size.
func New(page, size int) (Params, error) {
	if page < 1 {
		return Params{}, apperrors.InvalidInput(fmt.Sprintf("page must be a positive integer, got %d", page))
	}
	if size < 1 {
		return Params{}, apperrors.InvalidInput(fmt.Sprintf("page size must be positive, got %d", size))
	}
	return Params{Page: page, Size: size, Skip: (page - 1) * size}, nil
}

// FromRequest reads the required `page` query parameter. The page size is
// fixed by the caller and cannot be overridden by the client.
func FromRequest(r *http.Request, size int) (Params, error) {
	raw := r.URL.Query().Get("page")
	if raw == "" {
		return Params{}, apperrors.InvalidInput("page is required")
	}
	page, err := strconv.Atoi(raw)
	if err != nil {
		return Params{}, apperrors.InvalidInput(fmt.Sprintf("page must be a positive integer, got %q", raw))
	}
	return New(page, size)
}
