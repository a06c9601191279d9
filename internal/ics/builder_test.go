package ics

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/emersion/go-ical"
)

func decode(t *testing.T, data []byte) *ical.Calendar {
	t.Helper()
	cal, err := ical.NewDecoder(bytes.NewReader(data)).Decode()
	if err != nil {
		t.Fatalf("decode: %v\n%s", err, data)
	}
	return cal
}

func TestBuildRequest(t *testing.T) {
	start := time.Date(2025, 6, 10, 11, 30, 0, 0, time.UTC)
	data, err := Build(Invite{
		MeetingID:      "m-1",
		Method:         MethodRequest,
		Summary:        "[#L1001] Intake, first session",
		Location:       "Office B",
		Start:          start,
		End:            start.Add(time.Hour),
		OrganizerEmail: "office@leadify.example",
		AttendeeName:   "Dana Levi",
		AttendeeEmail:  "dana@example.com",
		Stamp:          start.Add(-24 * time.Hour),
	})
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	text := string(data)
	for _, want := range []string{"METHOD:REQUEST", "DTSTART:20250610T113000Z", "DTEND:20250610T123000Z", "STATUS:CONFIRMED", "UID:m-1@leadify", "SEQUENCE:0"} {
		if !strings.Contains(text, want) {
			t.Errorf("missing %q in\n%s", want, text)
		}
	}

	cal := decode(t, data)
	events := cal.Events()
	if len(events) != 1 {
		t.Fatalf("events = %d", len(events))
	}
	got, err := events[0].DateTimeStart(time.UTC)
	if err != nil || !got.Equal(start) {
		t.Errorf("DTSTART = %v, %v", got, err)
	}
	summary, _ := events[0].Props.Text(ical.PropSummary)
	if summary != "[#L1001] Intake, first session" {
		t.Errorf("summary round trip = %q", summary)
	}
	attendee := events[0].Props.Get(ical.PropAttendee)
	if attendee == nil || attendee.Value != "mailto:dana@example.com" || attendee.Params.Get(ical.ParamCommonName) != "Dana Levi" {
		t.Errorf("attendee = %+v", attendee)
	}
}

func TestBuildCancel(t *testing.T) {
	start := time.Date(2025, 1, 15, 8, 0, 0, 0, time.UTC)
	inv := Invite{MeetingID: "m-2", Method: MethodCancel, Summary: "s", Start: start, End: start.Add(time.Hour), Sequence: 1}
	data, err := Build(inv)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	text := string(data)
	for _, want := range []string{"METHOD:CANCEL", "STATUS:CANCELLED", "SEQUENCE:1"} {
		if !strings.Contains(text, want) {
			t.Errorf("missing %q in\n%s", want, text)
		}
	}
	if strings.Contains(text, "VALUE=TEXT") {
		t.Errorf("integer property encoded as text:\n%s", text)
	}
	seq, err := decode(t, data).Events()[0].Props.Get(ical.PropSequence).Int()
	if err != nil || seq != 1 {
		t.Errorf("SEQUENCE = %d, %v", seq, err)
	}
	if inv.ContentType() != "text/calendar; charset=UTF-8; method=CANCEL" || inv.Filename() != "cancellation.ics" {
		t.Errorf("attachment metadata = %q %q", inv.ContentType(), inv.Filename())
	}
}

func TestBuildRejectsInvalid(t *testing.T) {
	start := time.Now()
	tests := []struct {
		name string
		inv  Invite
	}{
		{"missing id", Invite{Start: start, End: start.Add(time.Hour)}},
		{"end before start", Invite{MeetingID: "m", Start: start, End: start.Add(-time.Minute)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Build(tt.inv); err == nil {
				t.Error("expected error")
			}
		})
	}
}
