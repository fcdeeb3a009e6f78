package api

import (
	"errors"
	"net/http"

	"github.com/yush1006/todo/domain"
)

// Error codes carried in error responses and SSE error events.
const (
	CodeUnauthorized  = "unauthorized"
	CodeForbidden     = "forbidden"
	CodeInvalidBody   = "invalid-body"
	CodeNotFound      = "not-found"
	CodeEmptyText     = "empty-text"
	CodeEmptyPatch    = "empty-patch"
	CodeEmptyBatch    = "empty-batch"
	CodeBatchTooLarge = "batch-too-large"
	CodeInvalidBatch  = "invalid-batch"
	CodeUnavailable   = "unavailable"
)

// ErrorResponse is the body of every non-2xx JSON response.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message,omitempty"`
}

var codeErrors = []struct {
	code   string
	status int
	err    error
}{
	{CodeNotFound, http.StatusNotFound, domain.ErrTaskNotFound},
	{CodeEmptyText, http.StatusBadRequest, domain.ErrEmptyText},
	{CodeEmptyPatch, http.StatusBadRequest, domain.ErrEmptyPatch},
	{CodeEmptyBatch, http.StatusBadRequest, domain.ErrEmptyBatch},
	{CodeBatchTooLarge, http.StatusBadRequest, domain.ErrBatchTooLarge},
	{CodeInvalidBatch, http.StatusBadRequest, domain.ErrInvalidBatch},
	{CodeForbidden, http.StatusForbidden, domain.ErrMissingOwner},
}

// classify maps a store error to its response status and code.
func classify(err error) (int, string) {
	for _, ce := range codeErrors {
		if errors.Is(err, ce.err) {
			return ce.status, ce.code
		}
	}
	return http.StatusInternalServerError, CodeUnavailable
}

// ErrorForCode returns the sentinel error matching an error code, or nil when
// the code has no sentinel.
func ErrorForCode(code string) error {
	for _, ce := range codeErrors {
		if ce.code == code {
			return ce.err
		}
	}
	return nil
}
