package store

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"

	"leadify-meeting-orchestrator/internal/leads"
	"leadify-meeting-orchestrator/internal/types"
)

func getTestDatabaseURL(t *testing.T) string {
	t.Helper()
	url := os.Getenv("LEADIFY_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("LEADIFY_TEST_DATABASE_URL not set")
	}
	return url
}

// TestPostgresRescheduleTransaction exercises the conditional cancel and
// insert against a real database
func TestPostgresRescheduleTransaction(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	s, err := Open(ctx, Options{Driver: "postgres", DatabaseURL: getTestDatabaseURL(t), Migrate: true})
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer s.Close()
	pg := s.(*PostgresStore)

	number := "L" + uuid.NewString()[:8]
	if _, err := pg.DB().ExecContext(ctx, `INSERT INTO leads (lead_number, name, language) VALUES ($1, 'Integration', 'en')`, number); err != nil {
		t.Fatalf("seed lead: %v", err)
	}
	ref, err := leads.Resolve(types.LeadReference{ID: number})
	if err != nil {
		t.Fatal(err)
	}

	first := types.Meeting{
		ID: uuid.NewString(), Lead: ref, Date: "2031-01-10", Time: "10:00",
		Status: types.StatusScheduled, Currency: "ILS", CreatedAt: time.Now(), LastEditedAt: time.Now(),
	}
	if err := s.InsertMeeting(ctx, first); err != nil {
		t.Fatalf("insert meeting: %v", err)
	}

	second := first
	second.ID = uuid.NewString()
	second.Date = "2031-01-20"
	err = s.WithinTx(ctx, func(q Queries) error {
		if err := q.LockLead(ctx, ref); err != nil {
			return err
		}
		oldest, err := q.OldestActiveMeeting(ctx, ref, "2031-01-01")
		if err != nil || oldest == nil {
			t.Fatalf("oldest active = %v, %v", oldest, err)
		}
		if ok, err := q.CancelMeeting(ctx, oldest.ID, "it", time.Now()); err != nil || !ok {
			t.Fatalf("cancel = %v, %v", ok, err)
		}
		return q.InsertMeeting(ctx, second)
	})
	if err != nil {
		t.Fatalf("reschedule tx: %v", err)
	}

	active, err := s.ListActiveMeetings(ctx, ref, "2031-01-01")
	if err != nil {
		t.Fatal(err)
	}
	if len(active) != 1 || active[0].ID != second.ID {
		t.Fatalf("active meetings = %+v, want only %s", active, second.ID)
	}
	if active[0].Lead.LeadNumber != number || active[0].Currency != "ILS" {
		t.Errorf("read back meeting = %+v", active[0])
	}
}
