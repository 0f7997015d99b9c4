package errors

import (
	stderrors "errors"
	"fmt"
	"time"
)

// ErrorType represents the type of error
type ErrorType string

const (
	// ErrorTypeNetwork represents connection-level failures
	ErrorTypeNetwork ErrorType = "network"
	// ErrorTypeTimeout represents a request that exceeded its deadline
	ErrorTypeTimeout ErrorType = "timeout"
	// ErrorTypeRateLimit represents HTTP 429 responses or an active cooldown
	ErrorTypeRateLimit ErrorType = "rate_limit"
	// ErrorTypeServer represents retryable 5xx responses
	ErrorTypeServer ErrorType = "server"
	// ErrorTypeHTTPStatus represents any other non-200 response; never retried
	ErrorTypeHTTPStatus ErrorType = "http_status"
	// ErrorTypeMaxRetries represents a transient failure that outlived the attempt cap
	ErrorTypeMaxRetries ErrorType = "max_retries"
	// ErrorTypeParsing represents a single listing item that could not be decoded
	ErrorTypeParsing ErrorType = "parsing"
	// ErrorTypePrice represents price text that is not a number
	ErrorTypePrice ErrorType = "price"
	// ErrorTypeCache represents cache-related errors
	ErrorTypeCache ErrorType = "cache"
	// ErrorTypePublisher represents publisher-related errors
	ErrorTypePublisher ErrorType = "publisher"
	// ErrorTypeStore represents persistence errors
	ErrorTypeStore ErrorType = "store"
	// ErrorTypeConfiguration represents configuration errors
	ErrorTypeConfiguration ErrorType = "configuration"
)

// Error is the tagged failure returned across component boundaries
type Error struct {
	Type       ErrorType
	Component  string
	Message    string
	StatusCode int
	Err        error
	Time       time.Time
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %s - %v", e.Type, e.Component, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Type, e.Component, e.Message)
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Err
}

// IsRetryable returns true if the error is transient
func (e *Error) IsRetryable() bool {
	switch e.Type {
	case ErrorTypeNetwork, ErrorTypeTimeout, ErrorTypeRateLimit, ErrorTypeServer:
		return true
	default:
		return false
	}
}

// Is reports whether any error in err's chain is an *Error of the given type
func Is(err error, errType ErrorType) bool {
	var e *Error
	for err != nil {
		if !stderrors.As(err, &e) {
			return false
		}
		if e.Type == errType {
			return true
		}
		err = e.Err
	}
	return false
}

// IsRetryable reports whether err is a transient *Error
func IsRetryable(err error) bool {
	var e *Error
	if stderrors.As(err, &e) {
		return e.IsRetryable()
	}
	return false
}

// New creates a new Error
func New(errType ErrorType, component, message string, err error) *Error {
	return &Error{
		Type:      errType,
		Component: component,
		Message:   message,
		Err:       err,
		Time:      time.Now(),
	}
}

// NewNetwork creates a new network error
func NewNetwork(component, message string, err error) *Error {
	return New(ErrorTypeNetwork, component, message, err)
}

// NewTimeout creates a new timeout error
func NewTimeout(component, message string, err error) *Error {
	return New(ErrorTypeTimeout, component, message, err)
}

// NewStatus classifies a non-200 HTTP status into rate_limit, server or http_status
func NewStatus(component, url string, statusCode int) *Error {
	errType := ErrorTypeHTTPStatus
	switch statusCode {
	case 429:
		errType = ErrorTypeRateLimit
	case 500, 502, 503, 504:
		errType = ErrorTypeServer
	}
	e := New(errType, component, fmt.Sprintf("fetch %s unexpected status code: %d", url, statusCode), nil)
	e.StatusCode = statusCode
	return e
}

// NewMaxRetries wraps the last transient failure once the attempt cap is reached
func NewMaxRetries(component string, attempts int, last error) *Error {
	e := New(ErrorTypeMaxRetries, component, fmt.Sprintf("max retries exceeded after %d attempts", attempts), last)
	var inner *Error
	if stderrors.As(last, &inner) {
		e.StatusCode = inner.StatusCode
	}
	return e
}

// NewRateLimit creates a cooldown error for a source that is still blocked
func NewRateLimit(component string, duration time.Duration) *Error {
	message := fmt.Sprintf("rate limited for %v", duration)
	return New(ErrorTypeRateLimit, component, message, nil)
}

// NewParsing creates a new parsing error
func NewParsing(component, message string, err error) *Error {
	return New(ErrorTypeParsing, component, message, err)
}

// NewPrice creates a new price parsing error
func NewPrice(raw string, err error) *Error {
	return New(ErrorTypePrice, "price", fmt.Sprintf("cannot parse price %q", raw), err)
}

// NewCache creates a new cache error
func NewCache(component, message string, err error) *Error {
	return New(ErrorTypeCache, component, message, err)
}

// NewPublisher creates a new publisher error
func NewPublisher(component, message string, err error) *Error {
	return New(ErrorTypePublisher, component, message, err)
}

// NewStore creates a new persistence error
func NewStore(component, message string, err error) *Error {
	return New(ErrorTypeStore, component, message, err)
}

// NewConfiguration creates a new configuration error
func NewConfiguration(message string, err error) *Error {
	return New(ErrorTypeConfiguration, "", message, err)
}
