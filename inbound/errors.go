package inbound

import (
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-verification/core"
)

func configurationError(message string, metadata map[string]any) error {
	return withMetadata(core.NewConfigurationError(message), metadata)
}

func conflictError(message string, metadata map[string]any) error {
	return withMetadata(core.NewError(core.KindConflict, message), metadata)
}

// wrapError tags a store failure with kind and the session it concerned.
// Errors that already carry a kind pass through untouched.
func wrapError(source error, kind core.ErrorKind, message string, metadata map[string]any) error {
	if source == nil || core.KindOf(source) != core.KindUnknown {
		return source
	}
	err := core.WrapError(source, kind, message)
	if rich, ok := err.(*goerrors.Error); ok {
		return withMetadata(rich, metadata)
	}
	return err
}

func withMetadata(err *goerrors.Error, metadata map[string]any) error {
	if len(metadata) > 0 {
		err.WithMetadata(metadata)
	}
	return err
}
