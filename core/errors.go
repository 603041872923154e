package core

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

const (
	ErrorInvalidURL        = "WABRIDGE_INVALID_URL"
	ErrorSessionNotFound   = "WABRIDGE_SESSION_NOT_FOUND"
	ErrorSessionNotReady   = "WABRIDGE_SESSION_NOT_READY"
	ErrorDeliveryFailed    = "WABRIDGE_DELIVERY_FAILED"
	ErrorAdapterInitFailed = "WABRIDGE_ADAPTER_INIT_FAILED"
	ErrorBadInput          = "WABRIDGE_BAD_INPUT"
	ErrorRateLimited       = "WABRIDGE_RATE_LIMITED"
	ErrorInternal          = "WABRIDGE_INTERNAL_ERROR"
	ErrorExternalOperation = "WABRIDGE_EXTERNAL_OPERATION_FAILED"
)

var (
	ErrInvalidURL      = stderrors.New("invalid webhook url")
	ErrSessionNotFound = stderrors.New("session not found")
	ErrSessionNotReady = stderrors.New("session not ready")
	ErrDeliveryFailed  = stderrors.New("webhook delivery failed")
	ErrAdapterInit     = stderrors.New("adapter initialization failed")
)

func NewInvalidURLError(raw string, cause error) *goerrors.Error {
	source := ErrInvalidURL
	if cause != nil {
		source = joinCause(ErrInvalidURL, cause)
	}
	return goerrors.Wrap(source, goerrors.CategoryBadInput, "invalid webhook url").
		WithCode(http.StatusBadRequest).
		WithTextCode(ErrorInvalidURL).
		WithMetadata(map[string]any{"url": raw})
}

func NewSessionNotFoundError(session string) *goerrors.Error {
	return goerrors.Wrap(ErrSessionNotFound, goerrors.CategoryNotFound, `session "`+session+`" not found`).
		WithCode(http.StatusNotFound).
		WithTextCode(ErrorSessionNotFound).
		WithMetadata(map[string]any{"session": session})
}

func NewSessionNotReadyError(session string, state string) *goerrors.Error {
	return goerrors.Wrap(ErrSessionNotReady, goerrors.CategoryConflict,
		`session "`+session+`" is not ready, authenticate first`).
		WithCode(http.StatusConflict).
		WithTextCode(ErrorSessionNotReady).
		WithMetadata(map[string]any{"session": session, "state": state})
}

func NewDeliveryFailedError(url string, cause error) *goerrors.Error {
	source := ErrDeliveryFailed
	if cause != nil {
		source = joinCause(ErrDeliveryFailed, cause)
	}
	return goerrors.Wrap(source, goerrors.CategoryExternal, "webhook delivery failed").
		WithCode(http.StatusBadGateway).
		WithTextCode(ErrorDeliveryFailed).
		WithMetadata(map[string]any{"url": url})
}

func NewAdapterInitError(session string, cause error) *goerrors.Error {
	source := ErrAdapterInit
	if cause != nil {
		source = joinCause(ErrAdapterInit, cause)
	}
	return goerrors.Wrap(source, goerrors.CategoryExternal, `session "`+session+`" failed to initialize`).
		WithCode(http.StatusBadGateway).
		WithTextCode(ErrorAdapterInitFailed).
		WithMetadata(map[string]any{"session": session})
}

func NewBadInputError(field string, message string) *goerrors.Error {
	return goerrors.NewValidation("wabridge: validation failed", goerrors.FieldError{
		Field:   field,
		Message: message,
	}).
		WithCode(http.StatusBadRequest).
		WithTextCode(ErrorBadInput).
		WithSeverity(goerrors.SeverityError)
}

func NewRateLimitedError(session string) *goerrors.Error {
	return goerrors.New(`session "`+session+`" send rate exceeded`, goerrors.CategoryRateLimit).
		WithCode(http.StatusTooManyRequests).
		WithTextCode(ErrorRateLimited).
		WithMetadata(map[string]any{"session": session})
}

// WrapAdapterError envelopes a failure returned by a messaging adapter call.
func WrapAdapterError(err error, session string, operation string) error {
	if err == nil {
		return nil
	}
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return err
	}
	return goerrors.Wrap(err, goerrors.CategoryExternal, operation+" failed").
		WithCode(http.StatusBadGateway).
		WithTextCode(ErrorExternalOperation).
		WithMetadata(map[string]any{"session": session, "operation": operation})
}

// IsErrorCode reports whether err carries the given text code.
func IsErrorCode(err error, code string) bool {
	if err == nil {
		return false
	}
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		return false
	}
	return richErr.TextCode == code
}

// MapError converts any error into an envelope with a status and text code.
func MapError(err error) *goerrors.Error {
	if err == nil {
		return nil
	}

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return ensureErrorEnvelope(richErr)
	}

	switch {
	case stderrors.Is(err, ErrInvalidURL):
		return NewInvalidURLError("", err)
	case stderrors.Is(err, ErrSessionNotFound):
		return ensureErrorEnvelope(goerrors.Wrap(err, goerrors.CategoryNotFound, err.Error()).WithTextCode(ErrorSessionNotFound))
	case stderrors.Is(err, ErrSessionNotReady):
		return ensureErrorEnvelope(goerrors.Wrap(err, goerrors.CategoryConflict, err.Error()).WithTextCode(ErrorSessionNotReady))
	case stderrors.Is(err, ErrDeliveryFailed):
		return NewDeliveryFailedError("", err)
	case stderrors.Is(err, ErrAdapterInit):
		return ensureErrorEnvelope(goerrors.Wrap(err, goerrors.CategoryExternal, err.Error()).WithTextCode(ErrorAdapterInitFailed))
	}

	msg := strings.ToLower(strings.TrimSpace(err.Error()))
	switch {
	case strings.Contains(msg, "rate limit"), strings.Contains(msg, "throttl"):
		return newError(err.Error(), goerrors.CategoryRateLimit, ErrorRateLimited)
	case strings.Contains(msg, "required"), strings.Contains(msg, "invalid"):
		return newError(err.Error(), goerrors.CategoryBadInput, ErrorBadInput)
	}

	mapped := goerrors.MapToError(err, goerrors.DefaultErrorMappers())
	return ensureErrorEnvelope(mapped)
}

func newError(message string, category goerrors.Category, textCode string) *goerrors.Error {
	return ensureErrorEnvelope(
		goerrors.New(message, category).
			WithTextCode(textCode),
	)
}

func ensureErrorEnvelope(err *goerrors.Error) *goerrors.Error {
	if err == nil {
		return nil
	}
	if err.Code == 0 {
		err.Code = HTTPStatus(err.Category)
	}
	if strings.TrimSpace(err.TextCode) == "" {
		err.TextCode = defaultTextCode(err.Category)
	}
	if err.Category == goerrors.CategoryInternal && strings.TrimSpace(err.Message) == "" {
		err.Message = "An unexpected error occurred"
	}
	return err
}

func defaultTextCode(category goerrors.Category) string {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return ErrorBadInput
	case goerrors.CategoryNotFound:
		return ErrorSessionNotFound
	case goerrors.CategoryConflict:
		return ErrorSessionNotReady
	case goerrors.CategoryRateLimit:
		return ErrorRateLimited
	case goerrors.CategoryExternal:
		return ErrorExternalOperation
	default:
		return ErrorInternal
	}
}

// HTTPStatus maps an error category onto a response status.
func HTTPStatus(category goerrors.Category) int {
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

func joinCause(sentinel error, cause error) error {
	return fmt.Errorf("%w: %w", sentinel, cause)
}
