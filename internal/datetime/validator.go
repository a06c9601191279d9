package datetime

import (
	"fmt"
	"time"
)

// Validator handles validation of date/time values according to business rules
type Validator struct {
	config *DateTimeConfig
	parser *Parser
}

// NewValidator creates a new Validator with the given configuration
func NewValidator(config *DateTimeConfig) *Validator {
	if config == nil {
		config = DefaultConfig()
	}
	return &Validator{config: config, parser: NewParser(config)}
}

// ValidateMeetingSlot checks that a meeting date and time are both present
// and parseable
func (v *Validator) ValidateMeetingSlot(date, clock string) error {
	if HasZoneMarker(date) {
		_, err := v.parser.ParseZoned(date)
		return err
	}
	if _, err := v.parser.ParseDate(date); err != nil {
		return err
	}
	if HasZoneMarker("T" + clock) {
		return nil
	}
	if _, _, _, err := v.parser.ParseClock(clock); err != nil {
		return err
	}
	return nil
}

// ValidateDateRange ensures that start is before end and the window fits
// in a single day
func (v *Validator) ValidateDateRange(start, end time.Time) error {
	if start.IsZero() || end.IsZero() {
		return NewDateTimeError(ErrMissingValue, "date/time cannot be zero value", "", nil)
	}

	window := fmt.Sprintf("%s to %s", start.UTC().Format(time.RFC3339), end.UTC().Format(time.RFC3339))
	if !start.Before(end) {
		return NewDateTimeError(ErrInvalidRange, "start time must be before end time", window, nil)
	}
	if end.Sub(start) > 24*time.Hour {
		return NewDateTimeError(ErrInvalidRange,
			fmt.Sprintf("meeting is too long: maximum allowed is 24h, got %s", end.Sub(start)), window, nil)
	}
	return nil
}
