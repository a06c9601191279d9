package store

import (
	"context"
	"maps"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"leadify-meeting-orchestrator/internal/leads"
	"leadify-meeting-orchestrator/internal/types"
)

// MemoryStore keeps everything in process. Transactions run on a copy of
// the state under the store lock and replace it on success.
type MemoryStore struct {
	mu    sync.Mutex
	state *memState
}

type memState struct {
	legacyLeads map[int64]types.Lead
	modernLeads map[string]types.Lead
	leadNumbers map[string]string
	contacts    map[string][]types.Contact
	meetings    map[string]types.Meeting
	events      []types.NotificationEvent
	schedNotes  map[string][]types.SchedulingNote
	followUps   map[string][]types.FollowUp
	leadNotes   map[string][]types.LeadNote
}

// NewMemoryStore returns an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{state: &memState{
		legacyLeads: map[int64]types.Lead{},
		modernLeads: map[string]types.Lead{},
		leadNumbers: map[string]string{},
		contacts:    map[string][]types.Contact{},
		meetings:    map[string]types.Meeting{},
		schedNotes:  map[string][]types.SchedulingNote{},
		followUps:   map[string][]types.FollowUp{},
		leadNotes:   map[string][]types.LeadNote{},
	}}
}

func (s *memState) clone() *memState {
	return &memState{
		legacyLeads: maps.Clone(s.legacyLeads),
		modernLeads: maps.Clone(s.modernLeads),
		leadNumbers: maps.Clone(s.leadNumbers),
		contacts:    maps.Clone(s.contacts),
		meetings:    maps.Clone(s.meetings),
		events:      append([]types.NotificationEvent(nil), s.events...),
		schedNotes:  maps.Clone(s.schedNotes),
		followUps:   maps.Clone(s.followUps),
		leadNotes:   maps.Clone(s.leadNotes),
	}
}

// PutLead seeds or replaces a lead. Modern leads without a ModernID get one.
func (m *MemoryStore) PutLead(lead types.Lead) types.Lead {
	m.mu.Lock()
	defer m.mu.Unlock()

	lead.Ref = leads.Reattach(lead.Ref)
	switch lead.Ref.Kind {
	case types.SchemaLegacy:
		m.state.legacyLeads[lead.Ref.LegacyID] = lead
	case types.SchemaModern:
		if lead.Ref.ModernID == "" {
			lead.Ref.ModernID = uuid.NewString()
		}
		if lead.Ref.LeadNumber == "" {
			lead.Ref.LeadNumber = lead.Number
		}
		if lead.Number == "" {
			lead.Number = lead.Ref.LeadNumber
		}
		m.state.modernLeads[lead.Ref.ModernID] = lead
		if lead.Ref.LeadNumber != "" {
			m.state.leadNumbers[strings.ToUpper(lead.Ref.LeadNumber)] = lead.Ref.ModernID
		}
	}
	return lead
}

// AddContact seeds a contact on a lead
func (m *MemoryStore) AddContact(lead types.CanonicalLead, c types.Contact) error {
	return m.seed(lead, func(s *memState, key string) {
		if c.ID == "" {
			c.ID = uuid.NewString()
		}
		c.LeadKey = key
		s.contacts[key] = append(s.contacts[key], c)
	})
}

// AddSchedulingNote seeds a scheduling-history row
func (m *MemoryStore) AddSchedulingNote(lead types.CanonicalLead, n types.SchedulingNote) error {
	return m.seed(lead, func(s *memState, key string) {
		s.schedNotes[key] = append(s.schedNotes[key], n)
	})
}

// AddFollowUp seeds a follow-up row
func (m *MemoryStore) AddFollowUp(lead types.CanonicalLead, f types.FollowUp) error {
	return m.seed(lead, func(s *memState, key string) {
		s.followUps[key] = append(s.followUps[key], f)
	})
}

// AddLeadNote seeds a general note
func (m *MemoryStore) AddLeadNote(lead types.CanonicalLead, n types.LeadNote) error {
	return m.seed(lead, func(s *memState, key string) {
		s.leadNotes[key] = append(s.leadNotes[key], n)
	})
}

func (m *MemoryStore) seed(lead types.CanonicalLead, fn func(s *memState, key string)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	canonical, err := m.state.canonical(lead)
	if err != nil {
		return err
	}
	fn(m.state, canonical.Key())
	return nil
}

// WithinTx implements Store
func (m *MemoryStore) WithinTx(ctx context.Context, fn func(q Queries) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	work := m.state.clone()
	if err := fn(&memQueries{state: work}); err != nil {
		return err
	}
	m.state = work
	return nil
}

// Ping implements Store
func (m *MemoryStore) Ping(context.Context) error { return nil }

// Close implements Store
func (m *MemoryStore) Close() error { return nil }

func (m *MemoryStore) locked() (*memQueries, func()) {
	m.mu.Lock()
	return &memQueries{state: m.state}, m.mu.Unlock
}

func (m *MemoryStore) GetLead(ctx context.Context, lead types.CanonicalLead) (types.Lead, error) {
	q, unlock := m.locked()
	defer unlock()
	return q.GetLead(ctx, lead)
}

func (m *MemoryStore) LockLead(ctx context.Context, lead types.CanonicalLead) error {
	q, unlock := m.locked()
	defer unlock()
	return q.LockLead(ctx, lead)
}

func (m *MemoryStore) ListContacts(ctx context.Context, lead types.CanonicalLead) ([]types.Contact, error) {
	q, unlock := m.locked()
	defer unlock()
	return q.ListContacts(ctx, lead)
}

func (m *MemoryStore) AssignLeadRoles(ctx context.Context, lead types.CanonicalLead, roles types.Roles) error {
	q, unlock := m.locked()
	defer unlock()
	return q.AssignLeadRoles(ctx, lead, roles)
}

func (m *MemoryStore) GetMeeting(ctx context.Context, id string) (types.Meeting, error) {
	q, unlock := m.locked()
	defer unlock()
	return q.GetMeeting(ctx, id)
}

func (m *MemoryStore) OldestActiveMeeting(ctx context.Context, lead types.CanonicalLead, today string) (*types.Meeting, error) {
	q, unlock := m.locked()
	defer unlock()
	return q.OldestActiveMeeting(ctx, lead, today)
}

func (m *MemoryStore) ListActiveMeetings(ctx context.Context, lead types.CanonicalLead, today string) ([]types.Meeting, error) {
	q, unlock := m.locked()
	defer unlock()
	return q.ListActiveMeetings(ctx, lead, today)
}

func (m *MemoryStore) InsertMeeting(ctx context.Context, meeting types.Meeting) error {
	q, unlock := m.locked()
	defer unlock()
	return q.InsertMeeting(ctx, meeting)
}

func (m *MemoryStore) CancelMeeting(ctx context.Context, id, actor string, at time.Time) (bool, error) {
	q, unlock := m.locked()
	defer unlock()
	return q.CancelMeeting(ctx, id, actor, at)
}

func (m *MemoryStore) UpdateMeeting(ctx context.Context, meeting types.Meeting) (bool, error) {
	q, unlock := m.locked()
	defer unlock()
	return q.UpdateMeeting(ctx, meeting)
}

func (m *MemoryStore) AppendNotificationEvent(ctx context.Context, e types.NotificationEvent) error {
	q, unlock := m.locked()
	defer unlock()
	return q.AppendNotificationEvent(ctx, e)
}

func (m *MemoryStore) ListNotificationEvents(ctx context.Context, meetingID string) ([]types.NotificationEvent, error) {
	q, unlock := m.locked()
	defer unlock()
	return q.ListNotificationEvents(ctx, meetingID)
}

func (m *MemoryStore) ListSchedulingNotes(ctx context.Context, lead types.CanonicalLead) ([]types.SchedulingNote, error) {
	q, unlock := m.locked()
	defer unlock()
	return q.ListSchedulingNotes(ctx, lead)
}

func (m *MemoryStore) ListFollowUps(ctx context.Context, lead types.CanonicalLead) ([]types.FollowUp, error) {
	q, unlock := m.locked()
	defer unlock()
	return q.ListFollowUps(ctx, lead)
}

func (m *MemoryStore) ListLeadNotes(ctx context.Context, lead types.CanonicalLead) ([]types.LeadNote, error) {
	q, unlock := m.locked()
	defer unlock()
	return q.ListLeadNotes(ctx, lead)
}

// memQueries operates on a state the caller has already locked
type memQueries struct {
	state *memState
}

// canonical maps a resolved reference onto the stored lead identity
func (s *memState) canonical(lead types.CanonicalLead) (types.CanonicalLead, error) {
	switch lead.Kind {
	case types.SchemaLegacy:
		stored, ok := s.legacyLeads[lead.LegacyID]
		if !ok {
			return types.CanonicalLead{}, ErrNotFound
		}
		return stored.Ref, nil
	case types.SchemaModern:
		id := lead.ModernID
		if id == "" {
			id = s.leadNumbers[strings.ToUpper(lead.LeadNumber)]
		}
		stored, ok := s.modernLeads[id]
		if !ok {
			return types.CanonicalLead{}, ErrNotFound
		}
		return stored.Ref, nil
	}
	return types.CanonicalLead{}, ErrNotFound
}

func (s *memState) lead(ref types.CanonicalLead) (types.Lead, error) {
	canonical, err := s.canonical(ref)
	if err != nil {
		return types.Lead{}, err
	}
	if canonical.Kind == types.SchemaLegacy {
		return s.legacyLeads[canonical.LegacyID], nil
	}
	return s.modernLeads[canonical.ModernID], nil
}

func (q *memQueries) GetLead(_ context.Context, ref types.CanonicalLead) (types.Lead, error) {
	return q.state.lead(ref)
}

func (q *memQueries) LockLead(_ context.Context, ref types.CanonicalLead) error {
	_, err := q.state.canonical(ref)
	return err
}

func (q *memQueries) ListContacts(_ context.Context, ref types.CanonicalLead) ([]types.Contact, error) {
	canonical, err := q.state.canonical(ref)
	if err != nil {
		return nil, err
	}
	return append([]types.Contact(nil), q.state.contacts[canonical.Key()]...), nil
}

func (q *memQueries) AssignLeadRoles(_ context.Context, ref types.CanonicalLead, roles types.Roles) error {
	lead, err := q.state.lead(ref)
	if err != nil {
		return err
	}
	schema := lead.Ref.Schema
	assign := func(dst *types.EmployeeRef, src types.EmployeeRef) {
		if _, ok := leads.EncodeEmployee(schema, src); ok {
			*dst = src
		}
	}
	assign(&lead.Roles.Manager, roles.Manager)
	assign(&lead.Roles.Scheduler, roles.Scheduler)
	assign(&lead.Roles.Helper, roles.Helper)
	assign(&lead.Roles.Expert, roles.Expert)

	if lead.Ref.Kind == types.SchemaLegacy {
		q.state.legacyLeads[lead.Ref.LegacyID] = lead
	} else {
		q.state.modernLeads[lead.Ref.ModernID] = lead
	}
	return nil
}

func (q *memQueries) GetMeeting(_ context.Context, id string) (types.Meeting, error) {
	m, ok := q.state.meetings[id]
	if !ok {
		return types.Meeting{}, ErrNotFound
	}
	return m, nil
}

func (q *memQueries) ListActiveMeetings(_ context.Context, ref types.CanonicalLead, today string) ([]types.Meeting, error) {
	canonical, err := q.state.canonical(ref)
	if err != nil {
		return nil, err
	}
	key := canonical.Key()

	var active []types.Meeting
	for _, m := range q.state.meetings {
		if m.Lead.Key() == key && m.IsActive(today) {
			active = append(active, m)
		}
	}
	sort.Slice(active, func(i, j int) bool {
		a, b := active[i], active[j]
		if a.Date != b.Date {
			return a.Date < b.Date
		}
		if a.Time != b.Time {
			return a.Time < b.Time
		}
		return a.CreatedAt.Before(b.CreatedAt)
	})
	return active, nil
}

func (q *memQueries) OldestActiveMeeting(ctx context.Context, ref types.CanonicalLead, today string) (*types.Meeting, error) {
	active, err := q.ListActiveMeetings(ctx, ref, today)
	if err != nil || len(active) == 0 {
		return nil, err
	}
	return &active[0], nil
}

func (q *memQueries) InsertMeeting(_ context.Context, m types.Meeting) error {
	canonical, err := q.state.canonical(m.Lead)
	if err != nil {
		return err
	}
	if _, exists := q.state.meetings[m.ID]; exists {
		return ErrConflict
	}
	m.Lead = canonical
	q.state.meetings[m.ID] = m
	return nil
}

func (q *memQueries) CancelMeeting(_ context.Context, id, actor string, at time.Time) (bool, error) {
	m, ok := q.state.meetings[id]
	if !ok {
		return false, ErrNotFound
	}
	if m.Status != types.StatusScheduled {
		return false, nil
	}
	m.Status = types.StatusCanceled
	m.LastEditedAt = at
	m.LastEditedBy = actor
	q.state.meetings[id] = m
	return true, nil
}

func (q *memQueries) UpdateMeeting(_ context.Context, m types.Meeting) (bool, error) {
	current, ok := q.state.meetings[m.ID]
	if !ok {
		return false, ErrNotFound
	}
	if current.Status != types.StatusScheduled {
		return false, nil
	}
	current.Date = m.Date
	current.Time = m.Time
	current.Location = m.Location
	current.Roles = m.Roles
	current.Amount = m.Amount
	current.Currency = m.Currency
	current.Brief = m.Brief
	current.ExternalEventID = m.ExternalEventID
	current.JoinURL = m.JoinURL
	current.LastEditedAt = m.LastEditedAt
	current.LastEditedBy = m.LastEditedBy
	q.state.meetings[m.ID] = current
	return true, nil
}

func (q *memQueries) AppendNotificationEvent(_ context.Context, e types.NotificationEvent) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	q.state.events = append(q.state.events, e)
	return nil
}

func (q *memQueries) ListNotificationEvents(_ context.Context, meetingID string) ([]types.NotificationEvent, error) {
	var out []types.NotificationEvent
	for _, e := range q.state.events {
		if e.MeetingID == meetingID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (q *memQueries) ListSchedulingNotes(_ context.Context, ref types.CanonicalLead) ([]types.SchedulingNote, error) {
	canonical, err := q.state.canonical(ref)
	if err != nil {
		return nil, err
	}
	return append([]types.SchedulingNote(nil), q.state.schedNotes[canonical.Key()]...), nil
}

func (q *memQueries) ListFollowUps(_ context.Context, ref types.CanonicalLead) ([]types.FollowUp, error) {
	canonical, err := q.state.canonical(ref)
	if err != nil {
		return nil, err
	}
	return append([]types.FollowUp(nil), q.state.followUps[canonical.Key()]...), nil
}

func (q *memQueries) ListLeadNotes(_ context.Context, ref types.CanonicalLead) ([]types.LeadNote, error) {
	canonical, err := q.state.canonical(ref)
	if err != nil {
		return nil, err
	}
	return append([]types.LeadNote(nil), q.state.leadNotes[canonical.Key()]...), nil
}
