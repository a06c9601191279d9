// Package datetime provides standardized date/time handling utilities
// for meeting scheduling: parsing of wall-clock input, conversion between
// the business time zone and UTC, and formatting for calendars and emails.
package datetime

import "time"

// Standard format constants for consistent date/time handling
const (
	// GraphFormat is the wall-clock layout Microsoft Graph expects alongside a zone name
	GraphFormat = "2006-01-02T15:04:05.0000000"

	// ICSFormat is the format used for calendar files (iCalendar)
	ICSFormat = "20060102T150405Z"

	// DateFormat is the stored meeting date format
	DateFormat = "2006-01-02"

	// ClockFormat is the stored meeting time format
	ClockFormat = "15:04"

	// HumanDateFormat is a human-readable date format
	HumanDateFormat = "Monday, January 2, 2006"

	// HumanTimeFormat is a human-readable time format
	HumanTimeFormat = "15:04"
)

// DateInputFormats are the date layouts accepted from callers
var DateInputFormats = []string{
	"2006-01-02",
	"02/01/2006",
	"2/1/2006",
	"January 2, 2006",
	"Jan 2, 2006",
	"2 January 2006",
	"2 Jan 2006",
}

// ClockInputFormats are the time-of-day layouts accepted from callers
var ClockInputFormats = []string{
	"15:04",
	"15:04:05",
	"3:04 PM",
	"3:04PM",
	"3:04:05 PM",
}

// ZonedInputFormats are full timestamps that carry their own offset
var ZonedInputFormats = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04Z07:00",
	ICSFormat,
}

// DateTimeConfig holds configuration for date/time operations
type DateTimeConfig struct {
	// DefaultTimezone is the business zone wall-clock input is read in
	DefaultTimezone string
}

// DefaultConfig returns a sensible default configuration
func DefaultConfig() *DateTimeConfig {
	return &DateTimeConfig{
		DefaultTimezone: "Asia/Jerusalem",
	}
}

// Error types for standardized error handling
const (
	ErrInvalidFormat   = "INVALID_FORMAT"
	ErrInvalidTimezone = "INVALID_TIMEZONE"
	ErrInvalidRange    = "INVALID_RANGE"
	ErrMissingValue    = "MISSING_VALUE"
)

// DateTimeError represents a standardized date/time error
type DateTimeError struct {
	Type    string
	Message string
	Input   string
	Cause   error
}

// Error implements the error interface
func (e *DateTimeError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

// Unwrap returns the underlying parse error
func (e *DateTimeError) Unwrap() error {
	return e.Cause
}

// NewDateTimeError creates a new DateTimeError
func NewDateTimeError(errorType, message, input string, cause error) *DateTimeError {
	return &DateTimeError{
		Type:    errorType,
		Message: message,
		Input:   input,
		Cause:   cause,
	}
}
