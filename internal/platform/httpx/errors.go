package httpx

import (
	"errors"
	"net/http"

	"github.com/vlady-pos/vlady-pos/internal/platform/db"
	"github.com/vlady-pos/vlady-pos/internal/shared"
)

// Detailer is implemented by errors that carry a structured payload for the
// client, e.g. which product ran out of stock.
type Detailer interface {
	Details() any
}

// StatusFor maps a domain error onto its HTTP status code.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, shared.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, shared.ErrUnauthorized), errors.Is(err, shared.ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, shared.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, shared.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, shared.ErrDuplicate), errors.Is(err, shared.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, db.ErrRetryable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// RespondError maps domain errors to failed envelopes. Storage internals are
// never echoed back; 5xx responses carry a generic message.
func RespondError(w http.ResponseWriter, err error) {
	status := StatusFor(err)
	var details any
	var d Detailer
	if errors.As(err, &d) {
		details = d.Details()
	}
	switch status {
	case http.StatusServiceUnavailable:
		Fail(w, status, "The service is busy, please retry the operation.", nil)
	case http.StatusInternalServerError:
		Fail(w, status, "Internal server error. Please try again later.", nil)
	default:
		Fail(w, status, shared.UserSafeMessage(err), details)
	}
}
