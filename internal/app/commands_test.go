package app

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"leadify-meeting-orchestrator/internal/config"
	"leadify-meeting-orchestrator/internal/meetings"
	"leadify-meeting-orchestrator/internal/ses"
	"leadify-meeting-orchestrator/internal/store"
	"leadify-meeting-orchestrator/internal/types"
)

type fakeEmail struct {
	mu   sync.Mutex
	sent []ses.Message
}

func (f *fakeEmail) Send(_ context.Context, msg ses.Message) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, msg)
	return "msg-" + msg.To, nil
}

func (f *fakeEmail) Refresh() {}

func (f *fakeEmail) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

type testApp struct {
	*App
	store    *store.MemoryStore
	email    *fakeEmail
	registry *prometheus.Registry
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()

	s := store.NewMemoryStore()
	lead := s.PutLead(types.Lead{
		Ref:      types.CanonicalLead{Kind: types.SchemaModern, LeadNumber: "L5001"},
		Name:     "Dana Levi",
		Email:    "dana@example.com",
		Language: "en",
		Currency: "ILS",
	})
	if err := s.AddContact(lead.Ref, types.Contact{Name: "Dana Levi", Email: "dana@example.com", IsMain: true}); err != nil {
		t.Fatalf("seed contact: %v", err)
	}

	cfg := config.New()
	cfg.Venues.Rules = config.DefaultVenueRules()
	cfg.Venues.VirtualMarkers = config.DefaultVirtualMarkers()

	email := &fakeEmail{}
	registry := prometheus.NewRegistry()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	a, err := New(context.Background(), cfg, logger,
		WithRegistry(registry),
		WithStore(s),
		WithEmailSender(email),
	)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { _ = a.Close() })

	return &testApp{App: a, store: s, email: email, registry: registry}
}

func scheduleCommand(date string) Command {
	return Command{
		Command: CommandSchedule,
		Lead:    types.LeadReference{ID: "L5001"},
		Actor:   "scheduler",
		Details: &meetings.Details{Date: date, Time: "10:00", Location: "Venue-A", Brief: "Intake"},
	}
}

func TestHandleLifecycle(t *testing.T) {
	ta := newTestApp(t)
	ctx := context.Background()

	resp := ta.Handle(ctx, scheduleCommand("2099-03-10"))
	if resp.Status != "ok" {
		t.Fatalf("schedule failed: %+v", resp.Error)
	}
	meeting := resp.Result.Meeting
	if meeting.LastEditedBy != "scheduler" {
		t.Errorf("LastEditedBy = %q, want scheduler", meeting.LastEditedBy)
	}
	if got := resp.Result.Notifications; len(got) != 1 || got[0].TemplateID != "invitation_a_en_email" {
		t.Fatalf("notifications = %+v", got)
	}
	if ta.email.count() != 1 {
		t.Errorf("emails sent = %d, want 1", ta.email.count())
	}

	clock := "11:30"
	resp = ta.Handle(ctx, Command{
		Command:   CommandEdit,
		MeetingID: meeting.ID,
		Actor:     "editor",
		Patch:     &meetings.Patch{Time: &clock},
	})
	if resp.Status != "ok" {
		t.Fatalf("edit failed: %+v", resp.Error)
	}
	if resp.Result.Meeting.Time != "11:30" || resp.Result.Meeting.LastEditedBy != "editor" {
		t.Errorf("edited meeting = %+v", resp.Result.Meeting)
	}
	if ta.email.count() != 1 {
		t.Errorf("edit sent mail, count = %d", ta.email.count())
	}

	resp = ta.Handle(ctx, Command{Command: CommandRemind, MeetingID: meeting.ID})
	if resp.Status != "ok" {
		t.Fatalf("remind failed: %+v", resp.Error)
	}

	resp = ta.Handle(ctx, Command{Command: CommandCancel, MeetingID: meeting.ID, Actor: "scheduler"})
	if resp.Status != "ok" {
		t.Fatalf("cancel failed: %+v", resp.Error)
	}
	if resp.Result.Meeting.Status != types.StatusCanceled {
		t.Errorf("status = %q, want canceled", resp.Result.Meeting.Status)
	}

	resp = ta.Handle(ctx, Command{Command: CommandCancel, MeetingID: meeting.ID})
	if resp.Error == nil || resp.Error.Type != types.ErrorTypeAlreadyCanceled {
		t.Fatalf("second cancel = %+v, want already_canceled", resp)
	}
	if StatusCode(resp) != http.StatusConflict {
		t.Errorf("StatusCode = %d, want 409", StatusCode(resp))
	}
	// invitation, reminder, cancellation
	if ta.email.count() != 3 {
		t.Errorf("emails sent = %d, want 3", ta.email.count())
	}

	events, err := ta.store.ListNotificationEvents(ctx, meeting.ID)
	if err != nil {
		t.Fatalf("ListNotificationEvents: %v", err)
	}
	if len(events) != 3 {
		t.Errorf("audit events = %d, want 3", len(events))
	}
}

func TestHandleReschedule(t *testing.T) {
	ta := newTestApp(t)
	ctx := context.Background()

	first := ta.Handle(ctx, scheduleCommand("2099-03-10"))
	if first.Status != "ok" {
		t.Fatalf("schedule failed: %+v", first.Error)
	}

	cmd := scheduleCommand("2099-03-17")
	cmd.Command = CommandReschedule
	resp := ta.Handle(ctx, cmd)
	if resp.Status != "ok" {
		t.Fatalf("reschedule failed: %+v", resp.Error)
	}
	if resp.Result.Canceled == nil || resp.Result.Canceled.ID != first.Result.Meeting.ID {
		t.Fatalf("Canceled = %+v, want %s", resp.Result.Canceled, first.Result.Meeting.ID)
	}

	active, err := ta.store.ListActiveMeetings(ctx, types.CanonicalLead{Kind: types.SchemaModern, LeadNumber: "L5001"}, "2000-01-01")
	if err != nil {
		t.Fatalf("ListActiveMeetings: %v", err)
	}
	if len(active) != 1 || active[0].Date != "2099-03-17" {
		t.Errorf("active meetings = %+v", active)
	}
}

func TestHandleHistory(t *testing.T) {
	ta := newTestApp(t)
	lead := types.CanonicalLead{Kind: types.SchemaModern, LeadNumber: "L5001"}
	base := time.Date(2030, 1, 1, 9, 0, 0, 0, time.UTC)
	_ = ta.store.AddSchedulingNote(lead, types.SchedulingNote{CreatedAt: base, CreatedBy: "a", Note: "first"})
	_ = ta.store.AddSchedulingNote(lead, types.SchedulingNote{CreatedAt: base.Add(time.Hour), CreatedBy: "b", Note: "second"})

	resp := ta.Handle(context.Background(), Command{Command: CommandHistory, Lead: types.LeadReference{ID: "L5001"}})
	if resp.Status != "ok" {
		t.Fatalf("history failed: %+v", resp.Error)
	}
	if len(resp.History) != 2 || resp.History[0].Note != "second" {
		t.Errorf("history = %+v", resp.History)
	}
}

func TestHandleErrors(t *testing.T) {
	ta := newTestApp(t)

	tests := []struct {
		name       string
		cmd        Command
		wantType   types.ErrorType
		wantStatus int
	}{
		{
			name:       "unknown command",
			cmd:        Command{Command: "archive"},
			wantType:   types.ErrorTypeValidationFailed,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "schedule without details",
			cmd:        Command{Command: CommandSchedule, Lead: types.LeadReference{ID: "L5001"}},
			wantType:   types.ErrorTypeValidationFailed,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "cancel without meeting id",
			cmd:        Command{Command: CommandCancel},
			wantType:   types.ErrorTypeValidationFailed,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "edit without patch",
			cmd:        Command{Command: CommandEdit, MeetingID: "m-1"},
			wantType:   types.ErrorTypeValidationFailed,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "cancel unknown meeting",
			cmd:        Command{Command: CommandCancel, MeetingID: "missing"},
			wantType:   types.ErrorTypeMeetingNotFound,
			wantStatus: http.StatusNotFound,
		},
		{
			name:       "schedule for unknown lead",
			cmd:        Command{Command: CommandSchedule, Lead: types.LeadReference{ID: "L9999"}, Details: &meetings.Details{Date: "2099-01-01", Time: "10:00"}},
			wantType:   types.ErrorTypeUnresolvableReference,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "calendar access without provider",
			cmd:        Command{Command: CommandCalendarAccess},
			wantType:   types.ErrorTypeCalendarProvisioningFailed,
			wantStatus: http.StatusBadGateway,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := ta.Handle(context.Background(), tt.cmd)
			if resp.Status != "error" || resp.Error == nil {
				t.Fatalf("Handle() = %+v, want error", resp)
			}
			if resp.Error.Type != tt.wantType {
				t.Errorf("error type = %q, want %q", resp.Error.Type, tt.wantType)
			}
			if got := StatusCode(resp); got != tt.wantStatus {
				t.Errorf("StatusCode() = %d, want %d", got, tt.wantStatus)
			}
		})
	}
}

func TestStatusCode(t *testing.T) {
	tests := []struct {
		errType types.ErrorType
		want    int
	}{
		{types.ErrorTypeAlreadyCanceled, http.StatusConflict},
		{types.ErrorTypePersistenceFailure, http.StatusInternalServerError},
		{types.ErrorTypeTransportFailed, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		resp := Response{Status: "error", Error: &ErrorBody{Type: tt.errType}}
		if got := StatusCode(resp); got != tt.want {
			t.Errorf("StatusCode(%s) = %d, want %d", tt.errType, got, tt.want)
		}
	}
	if got := StatusCode(Response{Status: "ok"}); got != http.StatusOK {
		t.Errorf("StatusCode(ok) = %d", got)
	}
}
