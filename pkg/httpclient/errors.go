package httpclient

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	apperrors "github.com/utafrali/storefront/pkg/errors"
)

const maxErrorBody = 1 << 20

// downstreamError covers the error bodies this service family emits
// ({"error":{"code","message"}}) and MeiliSearch's flat {"code","message"}.
type downstreamError struct {
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ParseResponseError consumes and closes a non-2xx response body and maps it
// onto an AppError for the named dependency.
func ParseResponseError(resp *http.Response, dependency string) error {
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err != nil {
		return apperrors.Upstream(dependency, fmt.Errorf("status %d, unreadable body: %w", resp.StatusCode, err))
	}

	code, message := "", string(body)
	var de downstreamError
	if json.Unmarshal(body, &de) == nil {
		switch {
		case de.Error != nil:
			code, message = de.Error.Code, de.Error.Message
		case de.Code != "" || de.Message != "":
			code, message = de.Code, de.Message
		}
	}
	return mapStatus(resp.StatusCode, code, message, dependency)
}

func mapStatus(status int, code, message, dependency string) error {
	qualified := fmt.Sprintf("%s: %s", dependency, message)

	switch {
	case status == http.StatusNotFound:
		return apperrors.NotFound(dependency, message)
	case status == http.StatusBadRequest:
		return apperrors.InvalidInput(qualified)
	case status == http.StatusConflict:
		return apperrors.Conflict(qualified)
	case status == http.StatusServiceUnavailable:
		return &apperrors.AppError{
			Code:    "SERVICE_UNAVAILABLE",
			Message: dependency + " unavailable",
			Status:  http.StatusServiceUnavailable,
			Err:     errors.Join(apperrors.ErrServiceUnavail, errors.New(qualified)),
		}
	default:
		detail := fmt.Errorf("status %d: %s", status, message)
		if code != "" {
			detail = fmt.Errorf("status %d (%s): %s", status, code, message)
		}
		return apperrors.Upstream(dependency, detail)
	}
}

// IsClientError reports whether status is 4xx.
func IsClientError(status int) bool {
	return status >= 400 && status < 500
}
