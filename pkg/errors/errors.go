package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrorCode represents a unique error code
type ErrorCode int

// AppError represents an application error
type AppError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	// Status is the upstream HTTP status for remote errors.
	Status int   `json:"status,omitempty"`
	Err    error `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Common error codes
const (
	ErrNotFound ErrorCode = iota + 1000
	ErrBadRequest
	ErrUnauthorized
	ErrForbidden
	ErrInternal
	ErrValidation
	ErrDevice
	ErrRemote
	ErrNetwork
	ErrRateLimited
	ErrTimeout
)

// Error constructors
func NewNotFound(resource string, err error) *AppError {
	return &AppError{
		Code:    ErrNotFound,
		Message: fmt.Sprintf("%s not found", resource),
		Err:     err,
	}
}

func NewBadRequest(message string, err error) *AppError {
	return &AppError{
		Code:    ErrBadRequest,
		Message: message,
		Err:     err,
	}
}

func NewInternal(err error) *AppError {
	return &AppError{
		Code:    ErrInternal,
		Message: "internal server error",
		Err:     err,
	}
}

// Common errors
func NotFound(resource string, err error) *AppError {
	return NewNotFound(resource, err)
}

func BadRequest(message string, err error) *AppError {
	return NewBadRequest(message, err)
}

func Internal(err error) *AppError {
	return NewInternal(err)
}

func Unauthorized(err error) *AppError {
	return &AppError{
		Code:    ErrUnauthorized,
		Message: "unauthorized",
		Err:     err,
	}
}

// Validation reports bad input. It never reaches the network.
func Validation(message string) *AppError {
	return &AppError{
		Code:    ErrValidation,
		Message: message,
	}
}

// Device reports that the microphone is unavailable or access was denied.
func Device(err error) *AppError {
	return &AppError{
		Code:    ErrDevice,
		Message: "audio device unavailable",
		Err:     err,
	}
}

// Remote reports a non-2xx or malformed response from an upstream service.
// An empty detail is replaced by a generic message keyed by status.
func Remote(status int, detail string) *AppError {
	if detail == "" {
		detail = fmt.Sprintf("Server error: %d", status)
	}
	return &AppError{
		Code:    ErrRemote,
		Message: detail,
		Status:  status,
	}
}

// Network reports a request that never reached the server.
func Network(err error) *AppError {
	return &AppError{
		Code:    ErrNetwork,
		Message: "network error",
		Err:     err,
	}
}

func RateLimited() *AppError {
	return &AppError{
		Code:    ErrRateLimited,
		Message: "rate limit exceeded",
	}
}

func Timeout(err error) *AppError {
	return &AppError{
		Code:    ErrTimeout,
		Message: "request timeout",
		Err:     err,
	}
}

// As returns the first AppError in err's chain.
func As(err error) (*AppError, bool) {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// IsCode reports whether err carries the given code.
func IsCode(err error, code ErrorCode) bool {
	appErr, ok := As(err)
	return ok && appErr.Code == code
}

// HTTPStatus maps an error onto the status a handler should answer with.
func HTTPStatus(err error) int {
	appErr, ok := As(err)
	if !ok {
		return http.StatusInternalServerError
	}

	switch appErr.Code {
	case ErrNotFound:
		return http.StatusNotFound
	case ErrBadRequest, ErrValidation:
		return http.StatusBadRequest
	case ErrUnauthorized:
		return http.StatusUnauthorized
	case ErrForbidden:
		return http.StatusForbidden
	case ErrDevice:
		return http.StatusConflict
	case ErrRemote, ErrNetwork:
		return http.StatusBadGateway
	case ErrRateLimited:
		return http.StatusTooManyRequests
	case ErrTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// UserMessage converts err into a message fit for the clinician UI.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}

	appErr, ok := As(err)
	if !ok {
		return "An unexpected error occurred. Please try again."
	}

	switch appErr.Code {
	case ErrValidation, ErrBadRequest:
		return appErr.Message
	case ErrNotFound:
		return capitalize(appErr.Message) + "."
	case ErrDevice:
		return "Could not access the microphone. Check that a device is connected and permission is granted."
	case ErrNetwork:
		return "Connection problem. Check your network and try again."
	case ErrUnauthorized, ErrForbidden:
		return "You do not have permission to perform this action."
	case ErrRateLimited:
		return "Too many requests. Please wait a moment and try again."
	case ErrTimeout:
		return "The request took too long. Please try again."
	case ErrRemote:
		switch {
		case appErr.Status == http.StatusForbidden || appErr.Status == http.StatusUnauthorized:
			return "You do not have permission to perform this action."
		case appErr.Status >= 500:
			return "Server error. Please try again later."
		default:
			return appErr.Message
		}
	default:
		return "An unexpected error occurred. Please try again."
	}
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
