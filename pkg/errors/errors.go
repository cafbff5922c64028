package errors

import (
	"errors"
	"fmt"
)

// ErrorCode represents a unique error code for stable testing
type ErrorCode string

// Error codes for different error categories
const (
	// General errors
	ErrUnknown      ErrorCode = "UNKNOWN"
	ErrInternal     ErrorCode = "INTERNAL"
	ErrInvalidInput ErrorCode = "INVALID_INPUT"
	ErrNotFound     ErrorCode = "NOT_FOUND"

	// Configuration errors
	ErrConfigLoad  ErrorCode = "CONFIG_LOAD"
	ErrConfigParse ErrorCode = "CONFIG_PARSE"

	// Resolution errors (fatal to the whole plan, nothing downloads)
	ErrCyclicInheritance   ErrorCode = "CYCLIC_INHERITANCE"
	ErrUnresolvedParent    ErrorCode = "UNRESOLVED_PARENT"
	ErrUnresolvableLibrary ErrorCode = "UNRESOLVABLE_LIBRARY"
	ErrDescriptorFetch     ErrorCode = "DESCRIPTOR_FETCH"
	ErrDescriptorParse     ErrorCode = "DESCRIPTOR_PARSE"

	// Task-level errors (isolated to one artifact, siblings continue)
	ErrChecksumMismatch ErrorCode = "CHECKSUM_MISMATCH"
	ErrNetworkFailure   ErrorCode = "NETWORK_FAILURE"
	ErrRangeUnsupported ErrorCode = "RANGE_UNSUPPORTED"
	ErrExtractFailed    ErrorCode = "EXTRACT_FAILED"

	// Cooperative termination (not a failure)
	ErrCancelled ErrorCode = "CANCELLED"

	// FileSystem errors
	ErrFileCreate ErrorCode = "FILE_CREATE"
	ErrFileWrite  ErrorCode = "FILE_WRITE"
	ErrDirCreate  ErrorCode = "DIR_CREATE"
)

// LodestoneError represents a structured error with code and details
type LodestoneError struct {
	Code    ErrorCode
	Message string
	Details map[string]interface{}
	Wrapped error
}

// Error implements the error interface
func (e *LodestoneError) Error() string {
	if e.Wrapped != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Wrapped)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap implements the errors.Unwrap interface
func (e *LodestoneError) Unwrap() error {
	return e.Wrapped
}

// Is implements errors.Is interface
func (e *LodestoneError) Is(target error) bool {
	var targetErr *LodestoneError
	if errors.As(target, &targetErr) {
		return e.Code == targetErr.Code
	}
	return false
}

// New creates a new LodestoneError with the given code and message
func New(code ErrorCode, message string) *LodestoneError {
	return &LodestoneError{
		Code:    code,
		Message: message,
		Details: make(map[string]interface{}),
	}
}

// Newf creates a new LodestoneError with a formatted message
func Newf(code ErrorCode, format string, args ...interface{}) *LodestoneError {
	return &LodestoneError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Details: make(map[string]interface{}),
	}
}

// Wrap wraps an existing error with a LodestoneError
func Wrap(err error, code ErrorCode, message string) *LodestoneError {
	if err == nil {
		return nil
	}
	return &LodestoneError{
		Code:    code,
		Message: message,
		Details: make(map[string]interface{}),
		Wrapped: err,
	}
}

// Wrapf wraps an existing error with a formatted message
func Wrapf(err error, code ErrorCode, format string, args ...interface{}) *LodestoneError {
	if err == nil {
		return nil
	}
	return &LodestoneError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Details: make(map[string]interface{}),
		Wrapped: err,
	}
}

// WithDetail adds a detail to the error
func (e *LodestoneError) WithDetail(key string, value interface{}) *LodestoneError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// IsErrorCode checks if an error has a specific error code
func IsErrorCode(err error, code ErrorCode) bool {
	var lerr *LodestoneError
	if errors.As(err, &lerr) {
		return lerr.Code == code
	}
	return false
}

// GetErrorCode returns the error code from an error, or ErrUnknown if not a LodestoneError
func GetErrorCode(err error) ErrorCode {
	var lerr *LodestoneError
	if errors.As(err, &lerr) {
		return lerr.Code
	}
	return ErrUnknown
}

// GetErrorDetails returns the details from an error, or nil if not a LodestoneError
func GetErrorDetails(err error) map[string]interface{} {
	var lerr *LodestoneError
	if errors.As(err, &lerr) {
		return lerr.Details
	}
	return nil
}
