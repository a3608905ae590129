package errx

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
)

const (
	// SystemErrorMessage is a user-facing fallback when internal errors occur.
	SystemErrorMessage = "internal error"
	// RedisErrorMessage describes Redis related failures.
	RedisErrorMessage = "redis operation failed"
	// RedisNotFoundMessage describes a missing Redis key.
	RedisNotFoundMessage = "redis key not found"
	// TransportErrorMessage describes a failure reaching the answer service.
	TransportErrorMessage = "answer service unreachable"
	// StreamClosedMessage is used when the stream ends without a terminal event.
	StreamClosedMessage = "stream closed before completion"
	// UnauthorizedMessage is shown when the answer service rejects the caller.
	UnauthorizedMessage = "로그인이 필요합니다"
)

// CodeUnauthorized is the machine-readable code the answer service uses when
// authentication is required.
const CodeUnauthorized = "401"

// ErrStreamClosed is returned when a stream ends without complete or error.
var ErrStreamClosed = errors.New(StreamClosedMessage)

// AppError wraps an underlying error with an HTTP status, an optional
// machine-readable code and a safe message.
type AppError struct {
	Err     error
	Status  int
	Code    string
	Message string
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Err)
}

// Unwrap exposes the underlying error for errors.Is / errors.As support.
func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError with the provided information.
func New(err error, status int, message string) *AppError {
	return &AppError{
		Err:     err,
		Status:  status,
		Message: message,
	}
}

// WithCode returns a copy of e carrying the given code.
func (e *AppError) WithCode(code string) *AppError {
	cp := *e
	cp.Code = code
	return &cp
}

// FromHTTPStatus maps a non-success response of the answer service.
// A 401 carries CodeUnauthorized so callers can prompt for login.
func FromHTTPStatus(status int, message string) *AppError {
	if message == "" {
		message = http.StatusText(status)
	}
	if message == "" {
		message = SystemErrorMessage
	}
	e := New(nil, status, message)
	if status == http.StatusUnauthorized {
		e.Code = CodeUnauthorized
	} else {
		e.Code = strconv.Itoa(status)
	}
	return e
}

// WrapTransport wraps a network level failure.
func WrapTransport(err error) error {
	if err == nil {
		return nil
	}
	return New(err, http.StatusBadGateway, TransportErrorMessage)
}

// CodeOf returns the machine-readable code carried by err, if any.
func CodeOf(err error) string {
	var app *AppError
	if errors.As(err, &app) {
		return app.Code
	}
	return ""
}

// MessageOf returns the safe message of err. Errors that are not AppErrors
// are reported verbatim.
func MessageOf(err error) string {
	if err == nil {
		return ""
	}
	var app *AppError
	if errors.As(err, &app) && app.Message != "" {
		return app.Message
	}
	return err.Error()
}

// IsUnauthorized reports whether err signals that login is required.
func IsUnauthorized(err error) bool {
	return CodeOf(err) == CodeUnauthorized
}

// Is reports whether the target matches the underlying error or the AppError itself.
func (e *AppError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// As allows casting to AppError or the wrapped error in a chain.
func (e *AppError) As(target any) bool {
	if e.Err != nil && errors.As(e.Err, target) {
		return true
	}
	if t, ok := target.(**AppError); ok {
		*t = e
		return true
	}
	return false
}
