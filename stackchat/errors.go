package stackchat

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrNotConnected is returned by operations issued before login completed.
	ErrNotConnected = errors.New("stackchat: not connected")
	// ErrAlreadyConnecting is returned when Connect is called a second time on a session.
	ErrAlreadyConnecting = errors.New("stackchat: connect already called on this session")

	ErrMissingLoginFkey = errors.New("missing csrf token")
	ErrAccountInactive  = errors.New("account inactive")
	ErrMissingUserID    = errors.New("missing user id")
	ErrMissingFkey      = errors.New("missing fkey")
)

// TransportError reports a network failure or an HTTP error status from the chat service.
type TransportError struct {
	Op     string // HTTP method
	URL    string
	Status int // 0 when no response was received
	Err    error
}

func (e *TransportError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s %s: unexpected status %d", e.Op, e.URL, e.Status)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.URL, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ParseError reports a response body that could not be read as HTML.
type ParseError struct {
	URL string
	Err error
}

func (e *ParseError) Error() string { return fmt.Sprintf("parse %s: %v", e.URL, e.Err) }

func (e *ParseError) Unwrap() error { return e.Err }

// LoginError reports the login stage that failed and why.
type LoginError struct {
	Stage LoginStage
	Err   error
}

func (e *LoginError) Error() string { return fmt.Sprintf("login failed at %s: %v", e.Stage, e.Err) }

func (e *LoginError) Unwrap() error { return e.Err }

// AuthError reports a state-changing request rejected by the service, usually a stale fkey.
// The session does not re-authenticate on its own.
type AuthError struct {
	URL    string
	Status int
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("%s: rejected with status %d (stale fkey?)", e.URL, e.Status)
}

// ErrorClass represents whether a failed operation is worth reconnecting for.
type ErrorClass int

const (
	// ErrorClassRetryable marks transient failures (network errors, 5xx, 429).
	ErrorClassRetryable ErrorClass = iota
	// ErrorClassFatal marks failures that will not go away by retrying (bad credentials, inactive account).
	ErrorClassFatal
	// ErrorClassUnknown is returned for a nil error.
	ErrorClassUnknown
)

// String returns a human-readable name for the error class.
func (ec ErrorClass) String() string {
	switch ec {
	case ErrorClassRetryable:
		return "retryable"
	case ErrorClassFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// ClassifyError sorts chat errors for callers deciding whether to reconnect.
// Nothing in this package retries on its own.
func ClassifyError(err error) ErrorClass {
	if err == nil {
		return ErrorClassUnknown
	}
	if errors.Is(err, ErrMissingLoginFkey) ||
		errors.Is(err, ErrAccountInactive) ||
		errors.Is(err, ErrMissingUserID) ||
		errors.Is(err, ErrMissingFkey) ||
		errors.Is(err, ErrAlreadyConnecting) {
		return ErrorClassFatal
	}
	var authErr *AuthError
	if errors.As(err, &authErr) {
		// a fresh login fixes a stale fkey
		return ErrorClassRetryable
	}
	var parseErr *ParseError
	if errors.As(err, &parseErr) {
		return ErrorClassFatal
	}
	var tErr *TransportError
	if errors.As(err, &tErr) {
		switch {
		case tErr.Status == 0:
			return ErrorClassRetryable
		case tErr.Status == http.StatusTooManyRequests || tErr.Status >= 500:
			return ErrorClassRetryable
		default:
			return ErrorClassFatal
		}
	}
	if errors.Is(err, ErrNotConnected) {
		return ErrorClassRetryable
	}
	// unknown errors are treated as retryable to avoid giving up too early
	return ErrorClassRetryable
}

// IsTerminal reports whether err should stop the caller from reconnecting.
func IsTerminal(err error) bool {
	return ClassifyError(err) == ErrorClassFatal
}
