package http

import (
	"errors"
	"net/http"
	"strings"

	"spendigo/internal/core"
	"spendigo/internal/log"
	"spendigo/internal/metrics"
)

// rejectionReasons labels validation failures for the rejections metric.
var rejectionReasons = []struct {
	err    error
	reason string
}{
	{core.ErrInvalidAmount, "invalid_amount"},
	{core.ErrMissingSource, "missing_source"},
	{core.ErrEmptyVendor, "empty_vendor"},
	{core.ErrMissingDate, "missing_date"},
	{core.ErrMissingCategory, "missing_category"},
	{core.ErrUnknownCategory, "unknown_category"},
	{core.ErrSourceInactive, "source_inactive"},
	{core.ErrInvalidSource, "invalid_source"},
	{core.ErrSourceNotFound, "source_not_found"},
	{core.ErrExpenseNotFound, "expense_not_found"},
}

func rejectionReason(err error) string {
	for _, rr := range rejectionReasons {
		if errors.Is(err, rr.err) {
			return rr.reason
		}
	}
	return "other"
}

// statusFor maps an operation error to its HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, errBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, core.ErrNoUser):
		return http.StatusUnauthorized
	case core.IsNotFound(err):
		return http.StatusNotFound
	case core.IsValidation(err):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// writeError answers with the status err maps to. Internal failures are
// logged and their detail withheld from the client.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	logger := log.FromContext(r.Context())

	switch status {
	case http.StatusInternalServerError:
		log.NewStructuredLogger(logger).LogError(r.Context(), "Request failed", err, log.ErrorTypeInternal,
			log.NewFields().WithHTTPRequest(r.Method, r.URL.Path, r.URL.RawQuery, r.UserAgent()))
		InternalServerError("internal error").Write(w)
		return
	case http.StatusUnauthorized:
		UnauthorizedError(err.Error()).Write(w)
		return
	case http.StatusNotFound:
		metrics.LedgerRejections.WithLabelValues(rejectionReason(err)).Inc()
		logger.DebugContext(r.Context(), "Request rejected", log.FieldError, err, log.FieldErrorType, log.ErrorTypeNotFound)
	case http.StatusUnprocessableEntity:
		metrics.LedgerRejections.WithLabelValues(rejectionReason(err)).Inc()
		logger.DebugContext(r.Context(), "Request rejected", log.FieldError, err, log.FieldErrorType, log.ErrorTypeValidation)
	}
	ErrorResponse(status, err.Error()).Write(w)
}

// sanitizeInput removes control characters (except tab and newlines) and
// trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}
