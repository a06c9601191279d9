package types

import (
	"errors"
	"fmt"
)

// ErrorType represents the category of error
type ErrorType string

const (
	ErrorTypeUnresolvableReference      ErrorType = "unresolvable_reference"
	ErrorTypeValidationFailed           ErrorType = "validation_failed"
	ErrorTypePersistenceFailure         ErrorType = "persistence_failure"
	ErrorTypeMeetingNotFound            ErrorType = "meeting_not_found"
	ErrorTypeCalendarProvisioningFailed ErrorType = "calendar_provisioning_failed"
	ErrorTypeCalendarPatchFailed        ErrorType = "calendar_patch_failed"
	ErrorTypeTemplateNotFound           ErrorType = "template_not_found"
	ErrorTypeReEngagementRequired       ErrorType = "reengagement_required"
	ErrorTypeAlreadyCanceled            ErrorType = "already_canceled"
	ErrorTypeAuthenticationRequired     ErrorType = "authentication_required"
	ErrorTypeNoChannel                  ErrorType = "no_channel"
	ErrorTypeTransportFailed            ErrorType = "transport_failed"
	ErrorTypeDuplicateSuppressed        ErrorType = "duplicate_suppressed"
)

// Sentinels for errors.Is. Any *Error with the same Type matches.
var (
	ErrUnresolvableReference      = &Error{Type: ErrorTypeUnresolvableReference}
	ErrValidationFailed           = &Error{Type: ErrorTypeValidationFailed}
	ErrPersistenceFailure         = &Error{Type: ErrorTypePersistenceFailure}
	ErrMeetingNotFound            = &Error{Type: ErrorTypeMeetingNotFound}
	ErrCalendarProvisioningFailed = &Error{Type: ErrorTypeCalendarProvisioningFailed}
	ErrCalendarPatchFailed        = &Error{Type: ErrorTypeCalendarPatchFailed}
	ErrTemplateNotFound           = &Error{Type: ErrorTypeTemplateNotFound}
	ErrReEngagementRequired       = &Error{Type: ErrorTypeReEngagementRequired}
	ErrAlreadyCanceled            = &Error{Type: ErrorTypeAlreadyCanceled}
	ErrAuthenticationRequired     = &Error{Type: ErrorTypeAuthenticationRequired}
	ErrNoChannel                  = &Error{Type: ErrorTypeNoChannel}
	ErrTransportFailed            = &Error{Type: ErrorTypeTransportFailed}
	ErrDuplicateSuppressed        = &Error{Type: ErrorTypeDuplicateSuppressed}
)

// Error is the orchestrator's classified error
type Error struct {
	Type    ErrorType
	Message string
	Err     error
}

// NewError creates a new classified error
func NewError(errorType ErrorType, message string, underlying error) *Error {
	return &Error{
		Type:    errorType,
		Message: message,
		Err:     underlying,
	}
}

// Errorf creates a classified error with a formatted message
func Errorf(errorType ErrorType, format string, args ...any) *Error {
	return &Error{Type: errorType, Message: fmt.Sprintf(format, args...)}
}

// Error implements the error interface
func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Type)
	}
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, msg, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Type, msg)
}

// Unwrap returns the underlying cause
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same Type
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Type == e.Type
}

// TypeOf extracts the ErrorType from err, or "" if err is not classified
func TypeOf(err error) ErrorType {
	var e *Error
	if errors.As(err, &e) {
		return e.Type
	}
	return ""
}

// IsFatal reports whether the error aborts the primary state transition
func IsFatal(err error) bool {
	switch TypeOf(err) {
	case ErrorTypeUnresolvableReference,
		ErrorTypeValidationFailed,
		ErrorTypePersistenceFailure,
		ErrorTypeMeetingNotFound:
		return true
	}
	return false
}

// Warning is a non-fatal issue reported alongside a successful outcome
type Warning struct {
	Type    ErrorType `json:"type"`
	Message string    `json:"message"`
}

// WarningFrom converts an error into a warning, keeping its classification
func WarningFrom(errorType ErrorType, err error) Warning {
	if t := TypeOf(err); t != "" {
		errorType = t
	}
	return Warning{Type: errorType, Message: err.Error()}
}
