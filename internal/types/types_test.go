package types

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorMatching(t *testing.T) {
	cause := errors.New("connection reset")
	err := fmt.Errorf("schedule: %w", NewError(ErrorTypePersistenceFailure, "failed to insert meeting", cause))

	if !errors.Is(err, ErrPersistenceFailure) {
		t.Error("errors.Is should match on type")
	}
	if errors.Is(err, ErrValidationFailed) {
		t.Error("errors.Is matched a different type")
	}
	if !errors.Is(err, cause) {
		t.Error("cause should stay reachable")
	}
	if got := TypeOf(err); got != ErrorTypePersistenceFailure {
		t.Errorf("TypeOf() = %q", got)
	}
	if got := TypeOf(cause); got != "" {
		t.Errorf("TypeOf(unclassified) = %q, want empty", got)
	}
}

func TestErrorMessage(t *testing.T) {
	tests := []struct {
		name string
		err  *Error
		want string
	}{
		{"message only", Errorf(ErrorTypeMeetingNotFound, "meeting %s not found", "m-1"), "[meeting_not_found] meeting m-1 not found"},
		{"with cause", NewError(ErrorTypeTransportFailed, "send failed", errors.New("503")), "[transport_failed] send failed: 503"},
		{"type only", &Error{Type: ErrorTypeNoChannel}, "[no_channel] no_channel"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestIsFatal(t *testing.T) {
	tests := []struct {
		errType ErrorType
		want    bool
	}{
		{ErrorTypeUnresolvableReference, true},
		{ErrorTypeValidationFailed, true},
		{ErrorTypePersistenceFailure, true},
		{ErrorTypeMeetingNotFound, true},
		{ErrorTypeCalendarProvisioningFailed, false},
		{ErrorTypeCalendarPatchFailed, false},
		{ErrorTypeTemplateNotFound, false},
		{ErrorTypeAlreadyCanceled, false},
	}
	for _, tt := range tests {
		if got := IsFatal(Errorf(tt.errType, "x")); got != tt.want {
			t.Errorf("IsFatal(%s) = %v, want %v", tt.errType, got, tt.want)
		}
	}
}

func TestWarningFrom(t *testing.T) {
	w := WarningFrom(ErrorTypeTransportFailed, Errorf(ErrorTypeReEngagementRequired, "window closed"))
	if w.Type != ErrorTypeReEngagementRequired {
		t.Errorf("classified error kept type %q", w.Type)
	}

	w = WarningFrom(ErrorTypeCalendarPatchFailed, errors.New("timeout"))
	if w.Type != ErrorTypeCalendarPatchFailed || w.Message != "timeout" {
		t.Errorf("WarningFrom(plain) = %+v", w)
	}
}

func TestCanonicalLeadKeys(t *testing.T) {
	tests := []struct {
		name         string
		lead         CanonicalLead
		key, display string
	}{
		{"legacy", CanonicalLead{Kind: SchemaLegacy, LegacyID: 123}, "legacy:123", "123"},
		{"modern with id", CanonicalLead{Kind: SchemaModern, ModernID: "uuid-1", LeadNumber: "L42"}, "modern:uuid-1", "L42"},
		{"modern number only", CanonicalLead{Kind: SchemaModern, LeadNumber: "L42"}, "modern:L42", "L42"},
		{"unknown kind", CanonicalLead{}, "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.lead.Key(); got != tt.key {
				t.Errorf("Key() = %q, want %q", got, tt.key)
			}
			if got := tt.lead.DisplayKey(); got != tt.display {
				t.Errorf("DisplayKey() = %q, want %q", got, tt.display)
			}
		})
	}
}

func TestMeetingState(t *testing.T) {
	today := "2030-01-10"
	tests := []struct {
		name   string
		m      Meeting
		active bool
		past   bool
	}{
		{"future", Meeting{Status: StatusScheduled, Date: "2030-01-11"}, true, false},
		{"today", Meeting{Status: StatusScheduled, Date: today}, true, false},
		{"yesterday", Meeting{Status: StatusScheduled, Date: "2030-01-09"}, false, true},
		{"canceled future", Meeting{Status: StatusCanceled, Date: "2030-01-11"}, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.m.IsActive(today); got != tt.active {
				t.Errorf("IsActive() = %v, want %v", got, tt.active)
			}
			if got := tt.m.IsPast(today); got != tt.past {
				t.Errorf("IsPast() = %v, want %v", got, tt.past)
			}
		})
	}
}

func TestEventKinds(t *testing.T) {
	for _, k := range []EventKind{KindInvitationA, KindInvitationB, KindInvitationBParking, KindInvitationDefault} {
		if !k.IsInvitation() || !k.AnnouncesMeeting() {
			t.Errorf("%s should be an announcing invitation", k)
		}
	}
	if KindCancellation.AnnouncesMeeting() {
		t.Error("cancellation does not announce a meeting")
	}
	if KindReminder.IsInvitation() || !KindReminder.AnnouncesMeeting() {
		t.Error("reminder announces but is not an invitation")
	}
}

func TestRecipientAddress(t *testing.T) {
	r := Recipient{Email: "a@example.com", Phone: "+972500000000"}
	if r.Address() != "a@example.com" {
		t.Errorf("default channel address = %q", r.Address())
	}
	r.Channel = ChannelChat
	if r.Address() != "+972500000000" {
		t.Errorf("chat address = %q", r.Address())
	}
}
