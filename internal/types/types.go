// Package types contains all shared type definitions and structs.
package types

import (
	"strconv"
	"strings"
	"time"
)

// SchemaKind tags which historical schema owns a lead
type SchemaKind string

const (
	SchemaLegacy SchemaKind = "legacy"
	SchemaModern SchemaKind = "modern"
)

// LeadReference is an opaque lead identifier as received from callers.
// Kind may be empty, in which case it is inferred from the ID shape.
type LeadReference struct {
	ID   string     `json:"id"`
	Kind SchemaKind `json:"kind,omitempty"`
}

// EmployeeEncoding describes how a schema stores employee references
type EmployeeEncoding string

const (
	EmployeeByID   EmployeeEncoding = "numeric_id"
	EmployeeByName EmployeeEncoding = "display_name"
)

// CurrencyConvention describes how a schema stores meeting currency
type CurrencyConvention string

const (
	CurrencyByID   CurrencyConvention = "currency_id"
	CurrencyByCode CurrencyConvention = "currency_code"
)

// Schema describes the columns a lead schema uses
type Schema struct {
	LeadsTable        string
	KeyColumn         string
	MeetingLeadColumn string
	EmployeeEncoding  EmployeeEncoding
	Currency          CurrencyConvention
}

// CanonicalLead is the resolved form of a LeadReference. The resolver sets
// LegacyID for legacy leads and ModernID or LeadNumber for modern ones;
// leads read back from storage carry both modern identifiers.
type CanonicalLead struct {
	Kind       SchemaKind `json:"kind"`
	LegacyID   int64      `json:"legacy_id,omitempty"`
	ModernID   string     `json:"modern_id,omitempty"`
	LeadNumber string     `json:"lead_number,omitempty"`
	Schema     Schema     `json:"-"`
}

// Key returns a stable canonical key, e.g. "legacy:123" or "modern:L42"
func (l CanonicalLead) Key() string {
	switch l.Kind {
	case SchemaLegacy:
		return "legacy:" + strconv.FormatInt(l.LegacyID, 10)
	case SchemaModern:
		if l.ModernID != "" {
			return "modern:" + l.ModernID
		}
		return "modern:" + l.LeadNumber
	}
	return ""
}

// DisplayKey returns the identifier shown to people (subjects, templates)
func (l CanonicalLead) DisplayKey() string {
	switch l.Kind {
	case SchemaLegacy:
		return strconv.FormatInt(l.LegacyID, 10)
	case SchemaModern:
		if l.LeadNumber != "" {
			return l.LeadNumber
		}
		return l.ModernID
	}
	return ""
}

// EmployeeRef references an employee. Legacy rows carry a numeric ID,
// modern rows carry a display name; either or both may be known.
type EmployeeRef struct {
	ID   int64  `json:"id,omitempty"`
	Name string `json:"name,omitempty"`
}

// IsZero reports whether the reference carries no information
func (e EmployeeRef) IsZero() bool {
	return e.ID == 0 && strings.TrimSpace(e.Name) == ""
}

// Roles are the responsible employees for a meeting
type Roles struct {
	Manager   EmployeeRef `json:"manager"`
	Scheduler EmployeeRef `json:"scheduler"`
	Helper    EmployeeRef `json:"helper"`
	Expert    EmployeeRef `json:"expert"`
}

// MeetingStatus is the persisted meeting status
type MeetingStatus string

const (
	StatusScheduled MeetingStatus = "scheduled"
	StatusCanceled  MeetingStatus = "canceled"
)

// Meeting is one scheduled occurrence for a lead
type Meeting struct {
	ID              string        `json:"id"`
	Lead            CanonicalLead `json:"lead"`
	Date            string        `json:"date"`
	Time            string        `json:"time"`
	Location        string        `json:"location"`
	Roles           Roles         `json:"roles"`
	Amount          float64       `json:"amount"`
	Currency        string        `json:"currency"`
	Brief           string        `json:"brief"`
	ExternalEventID *string       `json:"external_event_id"`
	JoinURL         *string       `json:"join_url"`
	Status          MeetingStatus `json:"status"`
	LastEditedAt    time.Time     `json:"last_edited_at"`
	LastEditedBy    string        `json:"last_edited_by"`
	CreatedAt       time.Time     `json:"created_at"`
}

// IsActive reports whether the meeting is scheduled and its date is
// today or later; today is the caller's date in the business zone.
func (m Meeting) IsActive(today string) bool {
	return m.Status == StatusScheduled && m.Date >= today
}

// IsPast reports the derived Past state: scheduled but dated before today
func (m Meeting) IsPast(today string) bool {
	return m.Status == StatusScheduled && m.Date < today
}

// Lead is the read model of a lead used for templates and recipients
type Lead struct {
	Ref      CanonicalLead `json:"ref"`
	Number   string        `json:"number"`
	Name     string        `json:"name"`
	Email    string        `json:"email"`
	Phone    string        `json:"phone"`
	Language string        `json:"language"`
	Roles    Roles         `json:"roles"`
	Currency string        `json:"currency"`
}

// Contact is a person attached to a lead
type Contact struct {
	ID       string `json:"id"`
	LeadKey  string `json:"lead_key"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	Language string `json:"language"`
	IsMain   bool   `json:"is_main"`
}

// Channel is a notification channel
type Channel string

const (
	ChannelEmail Channel = "email"
	ChannelChat  Channel = "chat"
)

// Recipient is one notification target
type Recipient struct {
	Name      string  `json:"name"`
	Email     string  `json:"email,omitempty"`
	Phone     string  `json:"phone,omitempty"`
	Channel   Channel `json:"channel,omitempty"`
	Language  string  `json:"language,omitempty"`
	ContactID string  `json:"contact_id,omitempty"`
}

// Address returns the channel-specific address of the recipient
func (r Recipient) Address() string {
	if r.Channel == ChannelChat {
		return r.Phone
	}
	return r.Email
}

// EventKind selects which notification is being sent
type EventKind string

const (
	KindInvitationA        EventKind = "invitation_a"
	KindInvitationB        EventKind = "invitation_b"
	KindInvitationBParking EventKind = "invitation_b_parking"
	KindInvitationDefault  EventKind = "invitation_default"
	KindReminder           EventKind = "reminder"
	KindCancellation       EventKind = "cancellation"
	KindRescheduled        EventKind = "rescheduled"
)

// IsInvitation reports whether the kind is one of the invitation variants
func (k EventKind) IsInvitation() bool {
	switch k {
	case KindInvitationA, KindInvitationB, KindInvitationBParking, KindInvitationDefault:
		return true
	}
	return false
}

// AnnouncesMeeting reports whether the kind tells the recipient about an
// upcoming meeting time (as opposed to a cancellation)
func (k EventKind) AnnouncesMeeting() bool {
	return k.IsInvitation() || k == KindRescheduled || k == KindReminder
}

// Outcome is the per-recipient result of a dispatch attempt
type Outcome string

const (
	OutcomeSent    Outcome = "sent"
	OutcomeFailed  Outcome = "failed"
	OutcomeSkipped Outcome = "skipped"
)

// NotificationEvent is an append-only audit record of one dispatch attempt
type NotificationEvent struct {
	ID         string    `json:"id"`
	MeetingID  string    `json:"meeting_id"`
	Kind       EventKind `json:"kind"`
	Channel    Channel   `json:"channel"`
	TemplateID string    `json:"template_id"`
	Recipient  string    `json:"recipient"`
	Subject    string    `json:"subject"`
	Content    string    `json:"content"`
	Outcome    Outcome   `json:"outcome"`
	Reason     string    `json:"reason,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// HistorySource identifies which audit trail a history entry came from
type HistorySource string

const (
	HistoryScheduling HistorySource = "scheduling"
	HistoryFollowUp   HistorySource = "follow_up"
	HistoryNote       HistorySource = "note"
)

// SchedulingHistoryEntry is the normalized read-only history projection
type SchedulingHistoryEntry struct {
	Timestamp    time.Time     `json:"timestamp"`
	Actor        string        `json:"actor"`
	Note         string        `json:"note"`
	NextFollowUp *time.Time    `json:"next_follow_up,omitempty"`
	Source       HistorySource `json:"source"`
}

// SchedulingNote is an explicit scheduling-history row
type SchedulingNote struct {
	CreatedAt    time.Time
	CreatedBy    string
	Note         string
	NextFollowUp *time.Time
}

// FollowUp is a follow-up record
type FollowUp struct {
	Date         time.Time
	UserName     string
	Notes        string
	NextFollowUp *time.Time
}

// LeadNote is a general free-text note on a lead
type LeadNote struct {
	CreatedAt time.Time
	CreatedBy string
	Content   string
}
