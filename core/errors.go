package core

import (
	"context"
	"errors"
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

// ErrorKind is the structured classification attached where an error originates.
type ErrorKind string

const (
	KindUnknown        ErrorKind = ""
	KindConfiguration  ErrorKind = "configuration"
	KindValidation     ErrorKind = "validation"
	KindTransient      ErrorKind = "transient"
	KindReconciliation ErrorKind = "reconciliation"
	KindPersistence    ErrorKind = "persistence"
	KindNotFound       ErrorKind = "not_found"
	KindConflict       ErrorKind = "conflict"
)

const (
	VerificationErrorConfiguration  = "VERIFICATION_CONFIGURATION"
	VerificationErrorValidation     = "VERIFICATION_VALIDATION"
	VerificationErrorTransient      = "VERIFICATION_TRANSIENT"
	VerificationErrorReconciliation = "VERIFICATION_RECONCILIATION"
	VerificationErrorPersistence    = "VERIFICATION_PERSISTENCE"
	VerificationErrorNotFound       = "VERIFICATION_NOT_FOUND"
	VerificationErrorConflict       = "VERIFICATION_CONFLICT"
	VerificationErrorInternal       = "VERIFICATION_INTERNAL_ERROR"
)

const errorKindMetadataKey = "kind"

var kindTextCodes = map[ErrorKind]string{
	KindConfiguration:  VerificationErrorConfiguration,
	KindValidation:     VerificationErrorValidation,
	KindTransient:      VerificationErrorTransient,
	KindReconciliation: VerificationErrorReconciliation,
	KindPersistence:    VerificationErrorPersistence,
	KindNotFound:       VerificationErrorNotFound,
	KindConflict:       VerificationErrorConflict,
}

var kindCategories = map[ErrorKind]goerrors.Category{
	KindConfiguration:  goerrors.CategoryInternal,
	KindValidation:     goerrors.CategoryValidation,
	KindTransient:      goerrors.CategoryExternal,
	KindReconciliation: goerrors.CategoryExternal,
	KindPersistence:    goerrors.CategoryInternal,
	KindNotFound:       goerrors.CategoryNotFound,
	KindConflict:       goerrors.CategoryConflict,
}

// Retryable reports whether the retry executor may attempt the operation again.
func (k ErrorKind) Retryable() bool {
	switch k {
	case KindTransient, KindPersistence, KindUnknown:
		return true
	default:
		return false
	}
}

// TextCode is the go-errors text code that carries k.
func (k ErrorKind) TextCode() string {
	return textCodeForKind(k)
}

func (k ErrorKind) String() string {
	if k == KindUnknown {
		return "unknown"
	}
	return string(k)
}

// NewError builds a go-errors envelope tagged with kind.
func NewError(kind ErrorKind, message string) *goerrors.Error {
	return ensureVerificationErrorEnvelope(
		goerrors.New(message, categoryForKind(kind)).
			WithTextCode(textCodeForKind(kind)).
			WithMetadata(map[string]any{errorKindMetadataKey: string(kind)}),
	)
}

// WrapError tags cause with kind unless it already carries one.
func WrapError(cause error, kind ErrorKind, message string) error {
	if cause == nil {
		return nil
	}
	if existing := KindOf(cause); existing != KindUnknown {
		return cause
	}
	return ensureVerificationErrorEnvelope(
		goerrors.Wrap(cause, categoryForKind(kind), message).
			WithTextCode(textCodeForKind(kind)).
			WithMetadata(map[string]any{errorKindMetadataKey: string(kind)}),
	)
}

func NewConfigurationError(message string) *goerrors.Error {
	return NewError(KindConfiguration, message)
}

func NewTransientError(message string) *goerrors.Error {
	return NewError(KindTransient, message)
}

func NewNotFoundError(message string) *goerrors.Error {
	return NewError(KindNotFound, message)
}

// NewDependencyError reports a handler invoked without the collaborator it
// wraps. It carries no kind so callers cannot mistake it for input errors.
func NewDependencyError(message string) *goerrors.Error {
	return ensureVerificationErrorEnvelope(
		goerrors.New(message, goerrors.CategoryInternal).
			WithTextCode(VerificationErrorInternal),
	)
}

// NewValidationError reports a payload problem tied to a single field.
func NewValidationError(field string, message string) *goerrors.Error {
	err := goerrors.NewValidation(message, goerrors.FieldError{
		Field:   field,
		Message: message,
	}).WithTextCode(VerificationErrorValidation).
		WithMetadata(map[string]any{errorKindMetadataKey: string(KindValidation)})
	return ensureVerificationErrorEnvelope(err)
}

// KindOf extracts the structured kind; context expiry counts as transient.
func KindOf(err error) ErrorKind {
	if err == nil {
		return KindUnknown
	}
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) && richErr != nil {
		if kind := kindFromTextCode(richErr.TextCode); kind != KindUnknown {
			return kind
		}
	}
	var kinded interface{ Kind() ErrorKind }
	if errors.As(err, &kinded) {
		return kinded.Kind()
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTransient
	}
	return KindUnknown
}

func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	return KindOf(err).Retryable()
}

// MapError converts any error into the go-errors envelope used by callers.
func MapError(err error) *goerrors.Error {
	if err == nil {
		return nil
	}
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return ensureVerificationErrorEnvelope(richErr)
	}
	if kind := KindOf(err); kind != KindUnknown {
		return NewError(kind, err.Error())
	}
	mapped := goerrors.MapToError(err, goerrors.DefaultErrorMappers())
	return ensureVerificationErrorEnvelope(mapped)
}

// HTTPStatusForError picks the entrypoint status for a processing failure.
func HTTPStatusForError(err error) int {
	if err == nil {
		return http.StatusOK
	}
	mapped := MapError(err)
	if mapped == nil {
		return http.StatusInternalServerError
	}
	if KindOf(err) == KindTransient {
		return http.StatusServiceUnavailable
	}
	return mapped.Code
}

func ensureVerificationErrorEnvelope(err *goerrors.Error) *goerrors.Error {
	if err == nil {
		return nil
	}
	if err.Code == 0 {
		err.Code = verificationHTTPStatus(err.Category)
	}
	if strings.TrimSpace(err.TextCode) == "" {
		err.TextCode = VerificationErrorInternal
	}
	if err.Category == goerrors.CategoryInternal && strings.TrimSpace(err.Message) == "" {
		err.Message = "An unexpected error occurred"
	}
	return err
}

func kindFromTextCode(code string) ErrorKind {
	code = strings.TrimSpace(code)
	for kind, textCode := range kindTextCodes {
		if textCode == code {
			return kind
		}
	}
	return KindUnknown
}

func textCodeForKind(kind ErrorKind) string {
	if code, ok := kindTextCodes[kind]; ok {
		return code
	}
	return VerificationErrorInternal
}

func categoryForKind(kind ErrorKind) goerrors.Category {
	if category, ok := kindCategories[kind]; ok {
		return category
	}
	return goerrors.CategoryInternal
}

func verificationHTTPStatus(category goerrors.Category) int {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return http.StatusBadRequest
	case goerrors.CategoryNotFound:
		return http.StatusNotFound
	case goerrors.CategoryAuth:
		return http.StatusUnauthorized
	case goerrors.CategoryAuthz:
		return http.StatusForbidden
	case goerrors.CategoryConflict:
		return http.StatusConflict
	case goerrors.CategoryRateLimit:
		return http.StatusTooManyRequests
	case goerrors.CategoryExternal:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// HTTPStatus maps a processing result onto the status the entrypoint sends
// back to the provider. Retryable failures ask the provider to redeliver.
func (r ProcessResult) HTTPStatus() int {
	switch {
	case r.Success:
		return http.StatusOK
	case r.Error != nil:
		return HTTPStatusForError(r.Error)
	case r.Retryable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusBadRequest
	}
}
