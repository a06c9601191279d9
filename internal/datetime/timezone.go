package datetime

import (
	"fmt"
	"strings"
	"time"
)

// sampleSpread is how far either side of a wall clock we look for the
// offsets a zone uses. No zone changes offset twice within it.
const sampleSpread = 14 * time.Hour

var defaultParser = NewParser(nil)

// ToUTCInstant converts a wall-clock date and time in zone to a UTC
// instant. The wall clock is first read as if it were UTC (the provisional
// instant); the offset the zone shows at that instant is then subtracted.
//
// Around DST transitions the result is fixed as follows: in an overlap the
// standard-time reading wins, in a gap the wall clock is read with the
// standard offset, so 02:30 in a spring-forward gap lands on 03:30
// daylight time. Inputs with a Z or numeric offset are parsed as is.
func ToUTCInstant(date, clock, zone string) (time.Time, error) {
	if HasZoneMarker(date) {
		t, err := defaultParser.ParseZoned(date)
		if err != nil {
			return time.Time{}, err
		}
		return t.UTC(), nil
	}
	if HasZoneMarker("T" + clock) {
		t, err := defaultParser.ParseZoned(strings.TrimSpace(date) + "T" + strings.TrimSpace(clock))
		if err != nil {
			return time.Time{}, err
		}
		return t.UTC(), nil
	}

	loc, err := LoadZone(zone)
	if err != nil {
		return time.Time{}, err
	}
	day, err := defaultParser.ParseDate(date)
	if err != nil {
		return time.Time{}, err
	}
	h, m, s, err := defaultParser.ParseClock(clock)
	if err != nil {
		return time.Time{}, err
	}

	provisional := time.Date(day.Year(), day.Month(), day.Day(), h, m, s, 0, time.UTC)
	return resolveWallClock(provisional, loc), nil
}

type zoneSample struct {
	offset int
	dst    bool
}

func resolveWallClock(provisional time.Time, loc *time.Location) time.Time {
	var samples []zoneSample
	for _, at := range []time.Time{provisional.Add(-sampleSpread), provisional, provisional.Add(sampleSpread)} {
		local := at.In(loc)
		_, off := local.Zone()
		s := zoneSample{offset: off, dst: local.IsDST()}
		if !containsSample(samples, s) {
			samples = append(samples, s)
		}
	}

	var valid []zoneSample
	for _, s := range samples {
		candidate := provisional.Add(-time.Duration(s.offset) * time.Second)
		if _, off := candidate.In(loc).Zone(); off == s.offset {
			valid = append(valid, s)
		}
	}

	var chosen zoneSample
	switch {
	case len(valid) == 1:
		chosen = valid[0]
	case len(valid) > 1:
		chosen = preferStandard(valid)
	default:
		chosen = preferStandard(samples)
	}
	return provisional.Add(-time.Duration(chosen.offset) * time.Second).UTC()
}

// preferStandard returns the first non-DST sample, else the first sample
func preferStandard(samples []zoneSample) zoneSample {
	for _, s := range samples {
		if !s.dst {
			return s
		}
	}
	return samples[0]
}

func containsSample(samples []zoneSample, s zoneSample) bool {
	for _, existing := range samples {
		if existing.offset == s.offset {
			return true
		}
	}
	return false
}

// FormatICS formats an instant as an iCalendar UTC timestamp
func FormatICS(t time.Time) string {
	return t.UTC().Format(ICSFormat)
}

// WallClock returns the date and HH:MM an instant shows in zone
func WallClock(t time.Time, zone string) (string, string, error) {
	loc, err := LoadZone(zone)
	if err != nil {
		return "", "", err
	}
	local := t.In(loc)
	return local.Format(DateFormat), local.Format(ClockFormat), nil
}

// OffsetMinutes returns the UTC offset of zone at instant t, in minutes
func OffsetMinutes(t time.Time, zone string) (int, error) {
	loc, err := LoadZone(zone)
	if err != nil {
		return 0, err
	}
	_, off := t.In(loc).Zone()
	return off / 60, nil
}

// FormatOffset renders an offset in minutes as "+02:00" or "-05:00"
func FormatOffset(minutes int) string {
	sign := '+'
	if minutes < 0 {
		sign = '-'
		minutes = -minutes
	}
	return fmt.Sprintf("%c%02d:%02d", sign, minutes/60, minutes%60)
}

// LoadZone loads an IANA zone, wrapping failures as INVALID_TIMEZONE
func LoadZone(zone string) (*time.Location, error) {
	if strings.TrimSpace(zone) == "" {
		return nil, NewDateTimeError(ErrInvalidTimezone, "timezone cannot be empty", zone, nil)
	}
	loc, err := time.LoadLocation(zone)
	if err != nil {
		return nil, NewDateTimeError(
			ErrInvalidTimezone,
			fmt.Sprintf("invalid timezone: %s (must be a valid IANA timezone identifier)", zone),
			zone,
			err,
		)
	}
	return loc, nil
}
