package api

import (
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	domainerrors "github.com/rewireapp/rewire-server/internal/errors"
	"github.com/rewireapp/rewire-server/internal/store"
)

// APIError is a custom error type that implements huma.StatusError.
// It maps domain errors to HTTP responses with consistent structure.
type APIError struct { //nolint:revive // API prefix is intentional for clarity
	status  int
	Code    string `json:"code" doc:"Machine-readable error code"`
	Message string `json:"message" doc:"Human-readable error message"`
	Details any    `json:"details,omitempty" doc:"Additional error details"`
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return e.Message
}

// GetStatus implements huma.StatusError.
func (e *APIError) GetStatus() int {
	return e.status
}

// ContentType returns the content type for the error response.
func (e *APIError) ContentType(_ string) string {
	return "application/json"
}

// RegisterErrorHandler configures huma to use domain errors.
// Call this after creating the huma.API but before registering routes.
func RegisterErrorHandler() {
	huma.NewError = func(status int, message string, errs ...error) huma.StatusError {
		for _, err := range errs {
			if apiErr := fromError(err); apiErr != nil {
				return apiErr
			}
		}

		apiErr := &APIError{
			status:  status,
			Code:    statusToCode(status),
			Message: message,
		}
		// Huma's own request validation reports one error per field.
		if status == http.StatusUnprocessableEntity || status == http.StatusBadRequest {
			details := make(map[string]string, len(errs))
			for _, err := range errs {
				var detail *huma.ErrorDetail
				if errors.As(err, &detail) {
					details[detail.Location] = detail.Message
				}
			}
			if len(details) > 0 {
				apiErr.Details = details
			}
		}
		return apiErr
	}
}

// fromError maps domain and store errors. Returns nil for anything else.
func fromError(err error) *APIError {
	var domainErr *domainerrors.Error
	if errors.As(err, &domainErr) {
		return &APIError{
			status:  domainErr.HTTPStatus(),
			Code:    string(domainErr.Code),
			Message: domainErr.Message,
			Details: domainErr.Details,
		}
	}

	switch {
	case errors.Is(err, store.ErrNotFound):
		return &APIError{status: http.StatusNotFound, Code: string(domainerrors.CodeNotFound), Message: err.Error()}
	case store.IsUnavailable(err):
		return &APIError{status: http.StatusServiceUnavailable, Code: string(domainerrors.CodeUnavailable), Message: "remote store unavailable"}
	}
	return nil
}

// toHumaError converts a service error into the status error huma writes.
func toHumaError(err error) error {
	if err == nil {
		return nil
	}
	if apiErr := fromError(err); apiErr != nil {
		return apiErr
	}
	return huma.Error500InternalServerError("internal error", err)
}

// statusToCode maps HTTP status codes to our domain error codes.
func statusToCode(status int) string {
	switch status {
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return string(domainerrors.CodeValidation)
	case http.StatusForbidden:
		return string(domainerrors.CodeForbidden)
	case http.StatusNotFound:
		return string(domainerrors.CodeNotFound)
	case http.StatusConflict:
		return string(domainerrors.CodeConflict)
	case http.StatusTooManyRequests:
		return string(domainerrors.CodeRateLimited)
	case http.StatusServiceUnavailable:
		return string(domainerrors.CodeUnavailable)
	default:
		return string(domainerrors.CodeInternal)
	}
}
