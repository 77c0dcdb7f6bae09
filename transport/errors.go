package transport

import (
	"context"
	"errors"
	"net/http"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-verification/core"
)

func transportError(
	message string,
	kind core.ErrorKind,
	code int,
	metadata map[string]any,
) error {
	err := core.NewError(kind, message).WithCode(code)
	if len(metadata) > 0 {
		err.WithMetadata(metadata)
	}
	return err
}

func transportWrapError(
	source error,
	kind core.ErrorKind,
	message string,
	code int,
	metadata map[string]any,
) error {
	if source == nil {
		return transportError(message, kind, code, metadata)
	}
	err := goerrors.Wrap(source, goerrors.CategoryExternal, message).
		WithCode(code).
		WithTextCode(kind.TextCode())
	if len(metadata) > 0 {
		err.WithMetadata(metadata)
	}
	return err
}

// kindForRequestError classifies a failure to get any response at all.
func kindForRequestError(err error) core.ErrorKind {
	if errors.Is(err, context.Canceled) {
		return core.KindUnknown
	}
	// Timeouts, resets and DNS failures are all worth another attempt.
	return core.KindTransient
}

// KindForStatus maps a provider response status onto an error kind.
// Success statuses return KindUnknown.
func KindForStatus(status int) core.ErrorKind {
	switch {
	case status >= 200 && status < 300:
		return core.KindUnknown
	case status == http.StatusTooManyRequests, status >= 500:
		return core.KindTransient
	case status == http.StatusUnauthorized, status == http.StatusForbidden:
		return core.KindConfiguration
	case status == http.StatusNotFound:
		return core.KindNotFound
	case status >= 400:
		return core.KindValidation
	default:
		return core.KindTransient
	}
}
