// Example usage:
//
//	dt := datetime.New(&datetime.DateTimeConfig{DefaultTimezone: "Asia/Jerusalem"})
//
//	start, err := dt.ToUTCInstant("2025-06-10", "14:30")
//	if err != nil {
//		return err
//	}
//	stamp := dt.Format(start).ToICS() // 20250610T113000Z
package datetime

import "time"

// Manager provides a unified interface to all date/time operations,
// bound to one business time zone
type Manager struct {
	parser    *Parser
	formatter *Formatter
	validator *Validator
	config    *DateTimeConfig
}

// New creates a new datetime Manager with the given configuration
// If config is nil, uses DefaultConfig()
func New(config *DateTimeConfig) *Manager {
	if config == nil {
		config = DefaultConfig()
	}

	return &Manager{
		parser:    NewParser(config),
		formatter: NewFormatter(config),
		validator: NewValidator(config),
		config:    config,
	}
}

// Zone returns the business zone name
func (m *Manager) Zone() string {
	return m.config.DefaultTimezone
}

// ToUTCInstant converts a wall-clock date and time in the business zone
func (m *Manager) ToUTCInstant(date, clock string) (time.Time, error) {
	return ToUTCInstant(date, clock, m.config.DefaultTimezone)
}

// WallClock returns the business-zone date and HH:MM of an instant
func (m *Manager) WallClock(t time.Time) (string, string, error) {
	return WallClock(t, m.config.DefaultTimezone)
}

// Today returns the current date in the business zone as YYYY-MM-DD
func (m *Manager) Today(now time.Time) string {
	date, _, err := m.WallClock(now)
	if err != nil {
		return now.UTC().Format(DateFormat)
	}
	return date
}

// NormalizeDate parses any accepted date input into YYYY-MM-DD
func (m *Manager) NormalizeDate(input string) (string, error) {
	parsed, err := m.parser.ParseDate(input)
	if err != nil {
		return "", err
	}
	return parsed.Format(DateFormat), nil
}

// NormalizeClock parses any accepted time input into HH:MM
func (m *Manager) NormalizeClock(input string) (string, error) {
	h, mm, _, err := m.parser.ParseClock(input)
	if err != nil {
		return "", err
	}
	return time.Date(2000, 1, 1, h, mm, 0, 0, time.UTC).Format(ClockFormat), nil
}

// Format returns a formatter interface for the given time
func (m *Manager) Format(t time.Time) *TimeFormatter {
	return &TimeFormatter{
		time:      t,
		formatter: m.formatter,
	}
}

// HumanDate renders a stored date for people
func (m *Manager) HumanDate(date string) string {
	return m.formatter.ToHumanDate(date)
}

// ValidateMeetingSlot validates caller-supplied meeting date and time
func (m *Manager) ValidateMeetingSlot(date, clock string) error {
	return m.validator.ValidateMeetingSlot(date, clock)
}

// ValidateRange checks an event window
func (m *Manager) ValidateRange(start, end time.Time) error {
	return m.validator.ValidateDateRange(start, end)
}

// TimeFormatter provides formatting methods for a specific time
type TimeFormatter struct {
	time      time.Time
	formatter *Formatter
}

// ToICS formats for iCalendar files
func (tf *TimeFormatter) ToICS() string {
	return tf.formatter.ToICS(tf.time)
}

// ToEmailTemplate formats for email templates
func (tf *TimeFormatter) ToEmailTemplate(timezone string) string {
	return tf.formatter.ToEmailTemplate(tf.time, timezone)
}
