// Package meetings enforces the meeting state machine: schedule,
// reschedule (cancel and recreate), cancel and edit. Successful
// transitions provision the external calendar event and hand off to the
// notification dispatcher; calendar and notification problems come back
// as warnings, never as failures of the transition itself.
package meetings

import (
	"context"
	"errors"
	"fmt"
	"html"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"leadify-meeting-orchestrator/internal/datetime"
	"leadify-meeting-orchestrator/internal/graph"
	"leadify-meeting-orchestrator/internal/leads"
	"leadify-meeting-orchestrator/internal/metrics"
	"leadify-meeting-orchestrator/internal/notify"
	"leadify-meeting-orchestrator/internal/store"
	"leadify-meeting-orchestrator/internal/types"
)

// Calendar provisions and moves external calendar events
type Calendar interface {
	CreateEvent(ctx context.Context, req graph.EventRequest) (graph.Event, error)
	PatchEvent(ctx context.Context, eventID string, start, end time.Time) error
}

// Notifier sends notifications for a transition
type Notifier interface {
	Dispatch(ctx context.Context, req notify.Request) []notify.Result
}

// Dependencies are the collaborators of a Manager. Calendar, Notifier and
// Metrics may be nil.
type Dependencies struct {
	Store    store.Store
	Calendar Calendar
	Notifier Notifier
	DateTime *datetime.Manager
	Metrics  *metrics.Manager
	Logger   *slog.Logger
}

// Config tunes the manager
type Config struct {
	Venues          *VenueTable
	MeetingDuration time.Duration
}

// Details describe a meeting to schedule
type Details struct {
	Date       string            `json:"date"`
	Time       string            `json:"time"`
	Location   string            `json:"location"`
	Roles      types.Roles       `json:"roles"`
	Amount     float64           `json:"amount"`
	Currency   string            `json:"currency"`
	Brief      string            `json:"brief"`
	Actor      string            `json:"actor"`
	Recipients []types.Recipient `json:"recipients,omitempty"`
}

// Patch carries the fields an edit changes. Nil fields are left alone.
type Patch struct {
	Date     *string      `json:"date,omitempty"`
	Time     *string      `json:"time,omitempty"`
	Location *string      `json:"location,omitempty"`
	Roles    *types.Roles `json:"roles,omitempty"`
	Amount   *float64     `json:"amount,omitempty"`
	Currency *string      `json:"currency,omitempty"`
	Brief    *string      `json:"brief,omitempty"`
	Actor    string       `json:"actor"`
}

// Result is the outcome of a successful transition
type Result struct {
	Meeting *types.Meeting `json:"meeting,omitempty"`
	// Canceled is the meeting a reschedule replaced
	Canceled      *types.Meeting  `json:"canceled,omitempty"`
	Notifications []notify.Result `json:"notifications,omitempty"`
	Warnings      []types.Warning `json:"warnings,omitempty"`
}

func (r *Result) warn(w types.Warning) {
	r.Warnings = append(r.Warnings, w)
}

// Manager runs meeting lifecycle transitions
type Manager struct {
	store    store.Store
	calendar Calendar
	notifier Notifier
	dt       *datetime.Manager
	metrics  *metrics.Manager
	logger   *slog.Logger
	cfg      Config
	now      func() time.Time
}

// NewManager creates a lifecycle manager
func NewManager(deps Dependencies, cfg Config) *Manager {
	if cfg.MeetingDuration <= 0 {
		cfg.MeetingDuration = time.Hour
	}
	if cfg.Venues == nil {
		cfg.Venues = NewVenueTable(nil, nil)
	}
	return &Manager{
		store:    deps.Store,
		calendar: deps.Calendar,
		notifier: deps.Notifier,
		dt:       deps.DateTime,
		metrics:  deps.Metrics,
		logger:   deps.Logger,
		cfg:      cfg,
		now:      time.Now,
	}
}

// slot is a validated meeting time: business-zone wall clock plus instant
type slot struct {
	date  string
	clock string
	start time.Time
}

// Schedule creates a meeting for the lead and sends the invitation
// variant the venue table selects
func (m *Manager) Schedule(ctx context.Context, ref types.LeadReference, d Details) (res *Result, err error) {
	defer func() { m.record("schedule", err) }()

	lead, err := m.loadLead(ctx, ref)
	if err != nil {
		return nil, err
	}
	s, err := m.parseSlot(d.Date, d.Time)
	if err != nil {
		return nil, err
	}
	if err := m.requireUpcoming(s); err != nil {
		return nil, err
	}

	res = &Result{}
	meeting := m.newMeeting(lead, s, d)
	m.provision(ctx, res, "schedule", &meeting, s.start)

	err = m.store.WithinTx(ctx, func(q store.Queries) error {
		if err := q.InsertMeeting(ctx, meeting); err != nil {
			return err
		}
		return q.AssignLeadRoles(ctx, lead.Ref, meeting.Roles)
	})
	if err != nil {
		m.logOrphanEvent(meeting)
		return nil, types.NewError(types.ErrorTypePersistenceFailure, "failed to persist meeting", err)
	}
	res.Meeting = &meeting

	m.logger.Info("meeting scheduled",
		"meeting_id", meeting.ID,
		"lead", lead.Ref.Key(),
		"date", meeting.Date,
		"time", meeting.Time,
		"external_event", meeting.ExternalEventID != nil)

	m.notify(ctx, res, notify.Request{
		Meeting:    meeting,
		Kind:       m.cfg.Venues.Variant(meeting.Location),
		Recipients: m.recipients(ctx, res, lead, d.Recipients),
	})
	return res, nil
}

// Reschedule cancels the lead's oldest active meeting and creates the new
// one in a single transaction. Without an active meeting it behaves like
// Schedule.
func (m *Manager) Reschedule(ctx context.Context, ref types.LeadReference, d Details) (res *Result, err error) {
	defer func() { m.record("reschedule", err) }()

	lead, err := m.loadLead(ctx, ref)
	if err != nil {
		return nil, err
	}
	s, err := m.parseSlot(d.Date, d.Time)
	if err != nil {
		return nil, err
	}
	if err := m.requireUpcoming(s); err != nil {
		return nil, err
	}

	res = &Result{}
	meeting := m.newMeeting(lead, s, d)
	m.provision(ctx, res, "reschedule", &meeting, s.start)

	now := m.now().UTC()
	today := m.dt.Today(now)
	var canceled *types.Meeting

	err = m.store.WithinTx(ctx, func(q store.Queries) error {
		canceled = nil
		if err := q.LockLead(ctx, lead.Ref); err != nil {
			return err
		}
		oldest, err := q.OldestActiveMeeting(ctx, lead.Ref, today)
		if err != nil {
			return err
		}
		if oldest != nil {
			ok, err := q.CancelMeeting(ctx, oldest.ID, d.Actor, now)
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("meeting %s changed during reschedule", oldest.ID)
			}
			previous := *oldest
			previous.Status = types.StatusCanceled
			previous.LastEditedAt = now
			previous.LastEditedBy = d.Actor
			canceled = &previous
		}
		if err := q.InsertMeeting(ctx, meeting); err != nil {
			return err
		}
		return q.AssignLeadRoles(ctx, lead.Ref, meeting.Roles)
	})
	if err != nil {
		m.logOrphanEvent(meeting)
		return nil, types.NewError(types.ErrorTypePersistenceFailure, "failed to reschedule meeting", err)
	}
	res.Meeting = &meeting
	res.Canceled = canceled

	req := notify.Request{
		Meeting:    meeting,
		Kind:       m.cfg.Venues.Variant(meeting.Location),
		Recipients: m.recipients(ctx, res, lead, d.Recipients),
	}
	if canceled != nil {
		req.Kind = types.KindRescheduled
		req.Previous = canceled
		m.logger.Info("meeting rescheduled", "meeting_id", meeting.ID, "replaced", canceled.ID, "lead", lead.Ref.Key())
	} else {
		m.logger.Info("no active meeting to replace, scheduled new meeting", "meeting_id", meeting.ID, "lead", lead.Ref.Key())
	}

	m.notify(ctx, res, req)
	return res, nil
}

// Cancel moves a scheduled meeting to canceled and sends the
// cancellation. Canceling twice returns AlreadyCanceled and sends nothing.
func (m *Manager) Cancel(ctx context.Context, meetingID, actor string) (res *Result, err error) {
	defer func() { m.record("cancel", err) }()

	meeting, err := m.getMeeting(ctx, meetingID)
	if err != nil {
		return nil, err
	}
	if meeting.Status == types.StatusCanceled {
		return nil, types.Errorf(types.ErrorTypeAlreadyCanceled, "meeting %s is already canceled", meetingID)
	}

	now := m.now().UTC()
	ok, err := m.store.CancelMeeting(ctx, meetingID, actor, now)
	if err != nil {
		return nil, types.NewError(types.ErrorTypePersistenceFailure, "failed to cancel meeting", err)
	}
	if !ok {
		return nil, types.Errorf(types.ErrorTypeAlreadyCanceled, "meeting %s is already canceled", meetingID)
	}
	meeting.Status = types.StatusCanceled
	meeting.LastEditedAt = now
	meeting.LastEditedBy = actor

	res = &Result{Meeting: &meeting}
	m.logger.Info("meeting canceled", "meeting_id", meetingID, "actor", actor)

	m.notifyLead(ctx, res, meeting, types.KindCancellation, nil)
	return res, nil
}

// Edit changes a scheduled meeting in place. A location that becomes
// virtual gets a calendar event; a time change moves the existing one.
// Edits send no notification.
func (m *Manager) Edit(ctx context.Context, meetingID string, p Patch) (res *Result, err error) {
	defer func() { m.record("edit", err) }()

	current, err := m.getMeeting(ctx, meetingID)
	if err != nil {
		return nil, err
	}
	if current.Status == types.StatusCanceled {
		return nil, types.Errorf(types.ErrorTypeAlreadyCanceled, "meeting %s is canceled and cannot be edited", meetingID)
	}

	updated := current
	date, clock := current.Date, current.Time
	if p.Date != nil {
		date = *p.Date
	}
	if p.Time != nil {
		clock = *p.Time
	}
	s, err := m.parseSlot(date, clock)
	if err != nil {
		return nil, err
	}
	if s.date != current.Date || s.clock != current.Time {
		if err := m.requireUpcoming(s); err != nil {
			return nil, err
		}
	}
	updated.Date, updated.Time = s.date, s.clock

	if p.Location != nil {
		updated.Location = strings.TrimSpace(*p.Location)
	}
	if p.Roles != nil {
		updated.Roles = *p.Roles
	}
	if p.Amount != nil {
		updated.Amount = *p.Amount
	}
	if p.Currency != nil {
		updated.Currency = leads.CurrencyCode(leads.SchemaFor(current.Lead.Kind), *p.Currency)
	}
	if p.Brief != nil {
		updated.Brief = *p.Brief
	}
	updated.LastEditedAt = m.now().UTC()
	updated.LastEditedBy = p.Actor

	res = &Result{}
	moved := updated.Date != current.Date || updated.Time != current.Time
	switch {
	case updated.ExternalEventID == nil:
		m.provision(ctx, res, "edit", &updated, s.start)
	case moved && m.calendar != nil:
		if err := m.calendar.PatchEvent(ctx, *updated.ExternalEventID, s.start, s.start.Add(m.cfg.MeetingDuration)); err != nil {
			m.metrics.RecordCalendarFailure("edit")
			m.logger.Warn("failed to move calendar event, keeping local edit",
				"meeting_id", meetingID, "event_id", *updated.ExternalEventID, "error", err)
			res.warn(types.Warning{Type: types.ErrorTypeCalendarPatchFailed, Message: err.Error()})
		}
	}

	var stale bool
	err = m.store.WithinTx(ctx, func(q store.Queries) error {
		ok, err := q.UpdateMeeting(ctx, updated)
		if err != nil {
			return err
		}
		if !ok {
			stale = true
			return nil
		}
		if p.Roles != nil {
			return q.AssignLeadRoles(ctx, updated.Lead, updated.Roles)
		}
		return nil
	})
	if err != nil {
		return nil, types.NewError(types.ErrorTypePersistenceFailure, "failed to update meeting", err)
	}
	if stale {
		return nil, types.Errorf(types.ErrorTypeAlreadyCanceled, "meeting %s was canceled before the edit was saved", meetingID)
	}

	res.Meeting = &updated
	m.logger.Info("meeting edited", "meeting_id", meetingID, "moved", moved, "actor", p.Actor)
	return res, nil
}

// Remind sends a reminder for an upcoming scheduled meeting. Without
// explicit recipients the lead's contacts are reminded.
func (m *Manager) Remind(ctx context.Context, meetingID string, recipients []types.Recipient) (res *Result, err error) {
	defer func() { m.record("remind", err) }()

	meeting, err := m.getMeeting(ctx, meetingID)
	if err != nil {
		return nil, err
	}
	if meeting.Status == types.StatusCanceled {
		return nil, types.Errorf(types.ErrorTypeAlreadyCanceled, "meeting %s is canceled", meetingID)
	}
	if meeting.IsPast(m.dt.Today(m.now())) {
		return nil, types.Errorf(types.ErrorTypeValidationFailed, "meeting %s is in the past", meetingID)
	}

	res = &Result{Meeting: &meeting}
	m.notifyLead(ctx, res, meeting, types.KindReminder, recipients)
	return res, nil
}

func (m *Manager) loadLead(ctx context.Context, ref types.LeadReference) (types.Lead, error) {
	canonical, err := leads.Resolve(ref)
	if err != nil {
		return types.Lead{}, err
	}
	lead, err := m.store.GetLead(ctx, canonical)
	if errors.Is(err, store.ErrNotFound) {
		return types.Lead{}, types.NewError(types.ErrorTypeUnresolvableReference, fmt.Sprintf("lead %s does not exist", canonical.Key()), err)
	}
	if err != nil {
		return types.Lead{}, types.NewError(types.ErrorTypePersistenceFailure, "failed to load lead", err)
	}
	lead.Ref = leads.Reattach(lead.Ref)
	return lead, nil
}

func (m *Manager) getMeeting(ctx context.Context, id string) (types.Meeting, error) {
	meeting, err := m.store.GetMeeting(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return types.Meeting{}, types.Errorf(types.ErrorTypeMeetingNotFound, "meeting %s does not exist", id)
	}
	if err != nil {
		return types.Meeting{}, types.NewError(types.ErrorTypePersistenceFailure, "failed to load meeting", err)
	}
	return meeting, nil
}

// parseSlot validates caller input and normalizes it to the business-zone
// wall clock the meeting is stored with
func (m *Manager) parseSlot(date, clock string) (slot, error) {
	date, clock = strings.TrimSpace(date), strings.TrimSpace(clock)
	if date == "" || (clock == "" && !datetime.HasZoneMarker(date)) {
		return slot{}, types.Errorf(types.ErrorTypeValidationFailed, "meeting date and time are required")
	}
	if err := m.dt.ValidateMeetingSlot(date, clock); err != nil {
		return slot{}, types.NewError(types.ErrorTypeValidationFailed, "invalid meeting date or time", err)
	}
	start, err := m.dt.ToUTCInstant(date, clock)
	if err != nil {
		return slot{}, types.NewError(types.ErrorTypeValidationFailed, "meeting time cannot be converted", err)
	}
	d, c, err := m.dt.WallClock(start)
	if err != nil {
		return slot{}, types.NewError(types.ErrorTypeValidationFailed, "meeting time cannot be converted", err)
	}
	return slot{date: d, clock: c, start: start}, nil
}

// requireUpcoming rejects slots dated before today in the business zone;
// such a meeting would never count as active
func (m *Manager) requireUpcoming(s slot) error {
	if today := m.dt.Today(m.now()); s.date < today {
		return types.Errorf(types.ErrorTypeValidationFailed, "meeting date %s is before today (%s)", s.date, today)
	}
	return nil
}

func (m *Manager) newMeeting(lead types.Lead, s slot, d Details) types.Meeting {
	now := m.now().UTC()
	currency := d.Currency
	if strings.TrimSpace(currency) == "" {
		currency = lead.Currency
	}
	return types.Meeting{
		ID:           uuid.NewString(),
		Lead:         lead.Ref,
		Date:         s.date,
		Time:         s.clock,
		Location:     strings.TrimSpace(d.Location),
		Roles:        d.Roles,
		Amount:       d.Amount,
		Currency:     leads.CurrencyCode(lead.Ref.Schema, currency),
		Brief:        d.Brief,
		Status:       types.StatusScheduled,
		LastEditedAt: now,
		LastEditedBy: d.Actor,
		CreatedAt:    now,
	}
}

// provision creates the calendar event for a virtual venue. Failure is a
// warning and the meeting stays without an external reference.
func (m *Manager) provision(ctx context.Context, res *Result, op string, meeting *types.Meeting, start time.Time) {
	if m.calendar == nil || !m.cfg.Venues.IsVirtual(meeting.Location) {
		return
	}

	end := start.Add(m.cfg.MeetingDuration)
	err := m.dt.ValidateRange(start, end)
	var event graph.Event
	if err == nil {
		event, err = m.calendar.CreateEvent(ctx, graph.EventRequest{
			Subject:  fmt.Sprintf("[#%s] %s", meeting.Lead.DisplayKey(), meeting.Brief),
			BodyHTML: html.EscapeString(meeting.Brief),
			Start:    start,
			End:      end,
			Location: meeting.Location,
			Online:   true,
		})
	}
	if err != nil {
		m.metrics.RecordCalendarFailure(op)
		m.logger.Warn("calendar provisioning failed, continuing without event",
			"meeting_id", meeting.ID, "operation", op, "error", err)
		res.warn(types.Warning{Type: types.ErrorTypeCalendarProvisioningFailed, Message: err.Error()})
		return
	}

	meeting.ExternalEventID = &event.ID
	if event.JoinURL != "" {
		meeting.JoinURL = &event.JoinURL
	}
}

func (m *Manager) logOrphanEvent(meeting types.Meeting) {
	if meeting.ExternalEventID != nil {
		m.logger.Error("meeting not persisted, calendar event left behind",
			"meeting_id", meeting.ID, "event_id", *meeting.ExternalEventID)
	}
}

// recipients resolves who hears about a transition. Contacts are only
// read when no explicit recipients were given.
func (m *Manager) recipients(ctx context.Context, res *Result, lead types.Lead, explicit []types.Recipient) []types.Recipient {
	if len(explicit) > 0 {
		return explicit
	}
	contacts, err := m.store.ListContacts(ctx, lead.Ref)
	if err != nil {
		m.logger.Error("failed to load contacts, no notifications sent", "lead", lead.Ref.Key(), "error", err)
		res.warn(types.Warning{Type: types.ErrorTypePersistenceFailure, Message: err.Error()})
		return nil
	}
	return recipientsFor(nil, lead, contacts)
}

// notifyLead loads the meeting's lead and notifies its recipients
func (m *Manager) notifyLead(ctx context.Context, res *Result, meeting types.Meeting, kind types.EventKind, explicit []types.Recipient) {
	if m.notifier == nil {
		return
	}
	lead, err := m.store.GetLead(ctx, meeting.Lead)
	if err != nil {
		m.logger.Error("failed to load lead for notifications", "meeting_id", meeting.ID, "error", err)
		res.warn(types.WarningFrom(types.ErrorTypePersistenceFailure, err))
		return
	}
	m.notify(ctx, res, notify.Request{
		Meeting:    meeting,
		Kind:       kind,
		Recipients: m.recipients(ctx, res, lead, explicit),
	})
}

func (m *Manager) notify(ctx context.Context, res *Result, req notify.Request) {
	if m.notifier == nil || len(req.Recipients) == 0 {
		return
	}
	res.Notifications = m.notifier.Dispatch(ctx, req)
	for _, n := range res.Notifications {
		if n.Err == nil {
			continue
		}
		// a suppressed duplicate was already delivered
		if n.Outcome == types.OutcomeFailed || (n.Outcome == types.OutcomeSkipped && n.Reason != types.ErrorTypeDuplicateSuppressed) {
			res.warn(types.WarningFrom(types.ErrorTypeTransportFailed, n.Err))
		}
	}
}

func (m *Manager) record(op string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = string(types.TypeOf(err))
		if outcome == "" {
			outcome = "error"
		}
	}
	m.metrics.RecordTransition(op, outcome)
}
