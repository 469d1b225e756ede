package core

import (
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

const (
	ReceiverErrorBadInput         = "RECEIVER_BAD_INPUT"
	ReceiverErrorUnauthorized     = "RECEIVER_UNAUTHORIZED"
	ReceiverErrorForbidden        = "RECEIVER_FORBIDDEN"
	ReceiverErrorPaymentRequired  = "RECEIVER_PAYMENT_REQUIRED"
	ReceiverErrorNotFound         = "RECEIVER_NOT_FOUND"
	ReceiverErrorConflict         = "RECEIVER_STATE_CONFLICT"
	ReceiverErrorEnrollmentFailed = "RECEIVER_ENROLLMENT_FAILED"
	ReceiverErrorInternal         = "RECEIVER_INTERNAL_ERROR"
)

// ReceiverErrorMapper normalizes any error into the go-errors envelope
// used across the receiver, filling category, HTTP code and text code.
func ReceiverErrorMapper(err error) *goerrors.Error {
	if err == nil {
		return nil
	}

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return ensureReceiverErrorEnvelope(richErr)
	}

	msg := strings.ToLower(strings.TrimSpace(err.Error()))
	switch {
	case strings.Contains(msg, "concurrent state change"):
		return newReceiverError(err.Error(), goerrors.CategoryConflict, ReceiverErrorConflict)
	case strings.Contains(msg, "invalid state transition"):
		return newReceiverError(err.Error(), goerrors.CategoryConflict, ReceiverErrorConflict)
	case strings.Contains(msg, "signature"):
		return newReceiverError(err.Error(), goerrors.CategoryAuthz, ReceiverErrorForbidden)
	case strings.Contains(msg, "not found"):
		return newReceiverError(err.Error(), goerrors.CategoryNotFound, ReceiverErrorNotFound)
	case strings.Contains(msg, "required"), strings.Contains(msg, "invalid"), strings.Contains(msg, "parse"):
		return newReceiverError(err.Error(), goerrors.CategoryBadInput, ReceiverErrorBadInput)
	}

	mapped := goerrors.MapToError(err, goerrors.DefaultErrorMappers())
	return ensureReceiverErrorEnvelope(mapped)
}

func newReceiverError(message string, category goerrors.Category, textCode string) *goerrors.Error {
	return ensureReceiverErrorEnvelope(
		goerrors.New(message, category).
			WithTextCode(textCode),
	)
}

func ensureReceiverErrorEnvelope(err *goerrors.Error) *goerrors.Error {
	if err == nil {
		return nil
	}
	if err.Code == 0 {
		err.Code = receiverHTTPStatus(err.Category)
	}
	if strings.TrimSpace(err.TextCode) == "" {
		err.TextCode = defaultReceiverTextCode(err.Category)
	}
	if err.Category == goerrors.CategoryInternal && strings.TrimSpace(err.Message) == "" {
		err.Message = "An unexpected error occurred"
	}
	return err
}

func defaultReceiverTextCode(category goerrors.Category) string {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return ReceiverErrorBadInput
	case goerrors.CategoryAuth:
		return ReceiverErrorUnauthorized
	case goerrors.CategoryAuthz:
		return ReceiverErrorForbidden
	case goerrors.CategoryNotFound:
		return ReceiverErrorNotFound
	case goerrors.CategoryConflict:
		return ReceiverErrorConflict
	case goerrors.CategoryExternal, goerrors.CategoryOperation:
		return ReceiverErrorEnrollmentFailed
	default:
		return ReceiverErrorInternal
	}
}

func receiverHTTPStatus(category goerrors.Category) int {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return http.StatusBadRequest
	case goerrors.CategoryAuth:
		return http.StatusUnauthorized
	case goerrors.CategoryAuthz:
		return http.StatusForbidden
	case goerrors.CategoryNotFound:
		return http.StatusNotFound
	case goerrors.CategoryConflict:
		return http.StatusConflict
	case goerrors.CategoryRateLimit:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}
