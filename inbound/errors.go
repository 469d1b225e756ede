package inbound

import (
	"net/http"

	goerrors "github.com/goliatone/go-errors"
	"github.com/hastexo/webhook-receiver/core"
)

// statusError builds the receiver error envelope from the HTTP status the
// dispatcher will answer with. Vendors only ever see the status code; the
// category and text code exist for logs and callers inside the process.
func statusError(status int, message string, metadata map[string]any) error {
	err := goerrors.New(message, categoryForStatus(status)).
		WithCode(status).
		WithTextCode(textCodeForStatus(status))
	if len(metadata) > 0 {
		err.WithMetadata(metadata)
	}
	return err
}

func wrapStatus(source error, status int, message string, metadata map[string]any) error {
	if source == nil {
		return statusError(status, message, metadata)
	}
	err := goerrors.Wrap(source, categoryForStatus(status), message).
		WithCode(status).
		WithTextCode(textCodeForStatus(status))
	if len(metadata) > 0 {
		err.WithMetadata(metadata)
	}
	return err
}

func categoryForStatus(status int) goerrors.Category {
	switch status {
	case http.StatusBadRequest, http.StatusPaymentRequired:
		return goerrors.CategoryBadInput
	case http.StatusUnauthorized:
		return goerrors.CategoryAuth
	case http.StatusForbidden:
		return goerrors.CategoryAuthz
	case http.StatusNotFound:
		return goerrors.CategoryNotFound
	case http.StatusConflict:
		return goerrors.CategoryConflict
	default:
		return goerrors.CategoryInternal
	}
}

func textCodeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return core.ReceiverErrorBadInput
	case http.StatusPaymentRequired:
		return core.ReceiverErrorPaymentRequired
	case http.StatusUnauthorized:
		return core.ReceiverErrorUnauthorized
	case http.StatusForbidden:
		return core.ReceiverErrorForbidden
	case http.StatusNotFound:
		return core.ReceiverErrorNotFound
	case http.StatusConflict:
		return core.ReceiverErrorConflict
	default:
		return core.ReceiverErrorInternal
	}
}
