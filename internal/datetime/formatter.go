package datetime

import (
	"fmt"
	"time"
)

// Formatter handles formatting of time.Time values for different output contexts
type Formatter struct {
	config *DateTimeConfig
}

// NewFormatter creates a new Formatter with the given configuration
func NewFormatter(config *DateTimeConfig) *Formatter {
	if config == nil {
		config = DefaultConfig()
	}
	return &Formatter{config: config}
}

// ToICS formats a time.Time for iCalendar (ICS) files
func (f *Formatter) ToICS(t time.Time) string {
	return FormatICS(t)
}

// ToHumanDate renders a stored YYYY-MM-DD date for templates, e.g.
// "Monday, January 15, 2025". Unparseable input is returned unchanged.
func (f *Formatter) ToHumanDate(date string) string {
	parsed, err := time.Parse(DateFormat, date)
	if err != nil {
		return date
	}
	return parsed.Format(HumanDateFormat)
}

// ToEmailTemplate formats an instant in the given zone (or the business
// zone when empty), e.g. "Monday, January 15, 2025 at 10:00 (+02:00)"
func (f *Formatter) ToEmailTemplate(t time.Time, timezone string) string {
	if timezone == "" {
		timezone = f.config.DefaultTimezone
	}
	loc, err := LoadZone(timezone)
	if err != nil {
		loc = time.UTC
	}
	local := t.In(loc)
	_, off := local.Zone()
	return fmt.Sprintf("%s at %s (%s)", local.Format(HumanDateFormat), local.Format(HumanTimeFormat), FormatOffset(off/60))
}
