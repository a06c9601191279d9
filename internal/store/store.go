// Package store persists leads, meetings and the notification audit trail.
// Both the Postgres and the in-memory implementation enforce the same
// conditional-update semantics, so lifecycle tests run against memory.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"leadify-meeting-orchestrator/internal/types"
)

var (
	// ErrNotFound is returned when a lead or meeting does not exist
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned when a row with the same key already exists
	ErrConflict = errors.New("conflict")
)

// Queries is the set of operations available inside and outside a transaction
type Queries interface {
	// GetLead loads a lead. Modern leads come back with both ModernID and
	// LeadNumber set.
	GetLead(ctx context.Context, lead types.CanonicalLead) (types.Lead, error)
	// LockLead serializes lifecycle changes for one lead within a transaction
	LockLead(ctx context.Context, lead types.CanonicalLead) error
	ListContacts(ctx context.Context, lead types.CanonicalLead) ([]types.Contact, error)
	// AssignLeadRoles writes the non-zero roles onto the lead using the
	// lead schema's employee encoding
	AssignLeadRoles(ctx context.Context, lead types.CanonicalLead, roles types.Roles) error

	GetMeeting(ctx context.Context, id string) (types.Meeting, error)
	// OldestActiveMeeting returns the earliest scheduled meeting dated on or
	// after today, or nil when there is none
	OldestActiveMeeting(ctx context.Context, lead types.CanonicalLead, today string) (*types.Meeting, error)
	ListActiveMeetings(ctx context.Context, lead types.CanonicalLead, today string) ([]types.Meeting, error)
	InsertMeeting(ctx context.Context, m types.Meeting) error
	// CancelMeeting moves a scheduled meeting to canceled and stamps the
	// audit fields. It reports false when the meeting was not scheduled.
	CancelMeeting(ctx context.Context, id, actor string, at time.Time) (bool, error)
	// UpdateMeeting rewrites the editable fields of a scheduled meeting.
	// It reports false when the meeting was not scheduled.
	UpdateMeeting(ctx context.Context, m types.Meeting) (bool, error)

	AppendNotificationEvent(ctx context.Context, e types.NotificationEvent) error
	ListNotificationEvents(ctx context.Context, meetingID string) ([]types.NotificationEvent, error)

	ListSchedulingNotes(ctx context.Context, lead types.CanonicalLead) ([]types.SchedulingNote, error)
	ListFollowUps(ctx context.Context, lead types.CanonicalLead) ([]types.FollowUp, error)
	ListLeadNotes(ctx context.Context, lead types.CanonicalLead) ([]types.LeadNote, error)
}

// Store is a Queries with transactions
type Store interface {
	Queries
	// WithinTx runs fn in one transaction; a non-nil error rolls back
	WithinTx(ctx context.Context, fn func(q Queries) error) error
	Ping(ctx context.Context) error
	Close() error
}

// Options configures Open
type Options struct {
	Driver       string
	DatabaseURL  string
	MaxOpenConns int
	MaxIdleConns int
	Migrate      bool
}

// Open builds the configured store
func Open(ctx context.Context, opts Options) (Store, error) {
	switch opts.Driver {
	case "", "memory":
		return NewMemoryStore(), nil
	case "postgres":
		db, err := OpenDB(ctx, opts.DatabaseURL, opts.MaxOpenConns, opts.MaxIdleConns)
		if err != nil {
			return nil, err
		}
		if opts.Migrate {
			if err := ApplyMigrations(ctx, db); err != nil {
				_ = db.Close()
				return nil, err
			}
		}
		return NewPostgresStore(db), nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", opts.Driver)
	}
}
