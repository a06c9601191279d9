// Package ics renders meeting invitations and cancellations as
// iCalendar attachments.
package ics

import (
	"bytes"
	"fmt"
	"strconv"
	"time"

	"github.com/emersion/go-ical"

	"leadify-meeting-orchestrator/internal/datetime"
)

const productID = "-//Leadify//Meeting Orchestrator//EN"

// Method is the iTIP method of the calendar object
type Method string

const (
	MethodRequest Method = "REQUEST"
	MethodCancel  Method = "CANCEL"
)

// Invite describes one meeting as seen by one attendee
type Invite struct {
	MeetingID      string
	Method         Method
	Summary        string
	Description    string
	Location       string
	JoinURL        string
	Start          time.Time
	End            time.Time
	OrganizerName  string
	OrganizerEmail string
	AttendeeName   string
	AttendeeEmail  string
	// Sequence must increase on every update a client should apply
	Sequence int
	Stamp    time.Time
}

// ContentType returns the MIME type for an attachment with this method
func (i Invite) ContentType() string {
	return fmt.Sprintf("text/calendar; charset=UTF-8; method=%s", i.Method)
}

// Filename returns the attachment filename
func (i Invite) Filename() string {
	if i.Method == MethodCancel {
		return "cancellation.ics"
	}
	return "invite.ics"
}

// UID is stable per meeting so updates and cancellations match the
// original invite in the attendee's calendar
func UID(meetingID string) string {
	return meetingID + "@leadify"
}

// Build encodes the invite. DTSTART and DTEND are UTC instants.
func Build(inv Invite) ([]byte, error) {
	if inv.MeetingID == "" {
		return nil, fmt.Errorf("invite requires a meeting id")
	}
	if !inv.End.After(inv.Start) {
		return nil, fmt.Errorf("invite end %s must be after start %s", inv.End, inv.Start)
	}
	if inv.Method == "" {
		inv.Method = MethodRequest
	}
	if inv.Stamp.IsZero() {
		inv.Stamp = time.Now()
	}

	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Props.SetText(ical.PropProductID, productID)
	cal.Props.SetText(ical.PropMethod, string(inv.Method))

	event := ical.NewEvent()
	event.Props.SetText(ical.PropUID, UID(inv.MeetingID))
	setUTC(event.Props, ical.PropDateTimeStamp, inv.Stamp)
	setUTC(event.Props, ical.PropDateTimeStart, inv.Start)
	setUTC(event.Props, ical.PropDateTimeEnd, inv.End)
	// SEQUENCE is an INTEGER; SetText would tag it VALUE=TEXT
	sequence := ical.NewProp(ical.PropSequence)
	sequence.Value = strconv.Itoa(inv.Sequence)
	event.Props.Set(sequence)
	event.Props.SetText(ical.PropSummary, inv.Summary)

	if inv.Description != "" {
		event.Props.SetText(ical.PropDescription, inv.Description)
	}
	if inv.Location != "" {
		event.Props.SetText(ical.PropLocation, inv.Location)
	}
	if inv.JoinURL != "" {
		url := ical.NewProp(ical.PropURL)
		url.Value = inv.JoinURL
		event.Props.Set(url)
	}

	if inv.Method == MethodCancel {
		event.Props.SetText(ical.PropStatus, "CANCELLED")
	} else {
		event.Props.SetText(ical.PropStatus, "CONFIRMED")
	}

	if inv.OrganizerEmail != "" {
		organizer := ical.NewProp(ical.PropOrganizer)
		organizer.Value = "mailto:" + inv.OrganizerEmail
		if inv.OrganizerName != "" {
			organizer.Params.Set(ical.ParamCommonName, inv.OrganizerName)
		}
		event.Props.Set(organizer)
	}
	if inv.AttendeeEmail != "" {
		attendee := ical.NewProp(ical.PropAttendee)
		attendee.Value = "mailto:" + inv.AttendeeEmail
		if inv.AttendeeName != "" {
			attendee.Params.Set(ical.ParamCommonName, inv.AttendeeName)
		}
		attendee.Params.Set("ROLE", "REQ-PARTICIPANT")
		attendee.Params.Set("RSVP", "TRUE")
		event.Props.Add(attendee)
	}

	cal.Children = append(cal.Children, event.Component)

	var buf bytes.Buffer
	if err := ical.NewEncoder(&buf).Encode(cal); err != nil {
		return nil, fmt.Errorf("failed to encode calendar: %w", err)
	}
	return buf.Bytes(), nil
}

func setUTC(props ical.Props, name string, t time.Time) {
	prop := ical.NewProp(name)
	prop.Value = datetime.FormatICS(t)
	props.Set(prop)
}
