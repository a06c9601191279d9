package datetime

import (
	"fmt"
	"strings"
	"time"
)

// Parser handles parsing of various date/time input formats
type Parser struct {
	config *DateTimeConfig
}

// NewParser creates a new Parser with the given configuration
func NewParser(config *DateTimeConfig) *Parser {
	if config == nil {
		config = DefaultConfig()
	}
	return &Parser{config: config}
}

// ParseDate parses a date-only string and returns midnight UTC of that
// calendar day. Only the Y/M/D fields are meaningful.
func (p *Parser) ParseDate(input string) (time.Time, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return time.Time{}, NewDateTimeError(ErrMissingValue, "empty date input", input, nil)
	}

	parsed, err := p.ParseWithFormats(input, DateInputFormats)
	if err != nil {
		return time.Time{}, NewDateTimeError(
			ErrInvalidFormat,
			fmt.Sprintf("unable to parse date: expected formats like '2006-01-02' or '02/01/2006', got '%s'", input),
			input,
			err,
		)
	}
	return parsed, nil
}

// ParseClock parses a time-of-day string and returns hour, minute, second
func (p *Parser) ParseClock(input string) (int, int, int, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return 0, 0, 0, NewDateTimeError(ErrMissingValue, "empty time input", input, nil)
	}

	parsed, err := p.ParseWithFormats(strings.ToUpper(input), ClockInputFormats)
	if err != nil {
		return 0, 0, 0, NewDateTimeError(
			ErrInvalidFormat,
			fmt.Sprintf("unable to parse time: expected formats like '15:04' or '3:04 PM', got '%s'", input),
			input,
			err,
		)
	}
	return parsed.Hour(), parsed.Minute(), parsed.Second(), nil
}

// ParseZoned parses a full timestamp that carries a Z or numeric offset
func (p *Parser) ParseZoned(input string) (time.Time, error) {
	input = strings.TrimSpace(input)
	parsed, err := p.ParseWithFormats(input, ZonedInputFormats)
	if err != nil {
		return time.Time{}, NewDateTimeError(
			ErrInvalidFormat,
			fmt.Sprintf("unable to parse zoned timestamp: got '%s'", input),
			input,
			err,
		)
	}
	return parsed, nil
}

// ParseWithFormats tries to parse the input with multiple format strings
func (p *Parser) ParseWithFormats(input string, formats []string) (time.Time, error) {
	var lastErr error

	for _, format := range formats {
		parsed, err := time.Parse(format, input)
		if err == nil {
			return parsed, nil
		}
		lastErr = err
	}

	return time.Time{}, lastErr
}

// HasZoneMarker reports whether a timestamp already names its offset.
// A "-" only counts when it follows the "T" separator, so plain dates
// are not mistaken for negative offsets.
func HasZoneMarker(input string) bool {
	input = strings.TrimSpace(input)
	t := strings.LastIndex(input, "T")
	if t < 0 {
		return false
	}
	rest := input[t+1:]
	return strings.HasSuffix(rest, "Z") || strings.Contains(rest, "+") || strings.Contains(rest, "-")
}
