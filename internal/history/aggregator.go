// Package history builds the read-only scheduling history of a lead from
// its scheduling notes, follow-ups and general notes.
package history

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"leadify-meeting-orchestrator/internal/leads"
	"leadify-meeting-orchestrator/internal/store"
	"leadify-meeting-orchestrator/internal/types"
)

// Reader is the store surface the aggregator reads from
type Reader interface {
	ListSchedulingNotes(ctx context.Context, lead types.CanonicalLead) ([]types.SchedulingNote, error)
	ListFollowUps(ctx context.Context, lead types.CanonicalLead) ([]types.FollowUp, error)
	ListLeadNotes(ctx context.Context, lead types.CanonicalLead) ([]types.LeadNote, error)
}

// Aggregator merges the history sources of a lead
type Aggregator struct {
	reader Reader
	logger *slog.Logger
}

// NewAggregator creates an aggregator
func NewAggregator(reader Reader, logger *slog.Logger) *Aggregator {
	return &Aggregator{reader: reader, logger: logger}
}

// History returns every entry for the lead, newest first. Entries with
// equal timestamps keep source order: scheduling, follow-ups, notes.
func (a *Aggregator) History(ctx context.Context, ref types.LeadReference) ([]types.SchedulingHistoryEntry, error) {
	lead, err := leads.Resolve(ref)
	if err != nil {
		return nil, err
	}

	schedNotes, err := a.reader.ListSchedulingNotes(ctx, lead)
	if err != nil {
		return nil, readError(lead, "scheduling notes", err)
	}
	followUps, err := a.reader.ListFollowUps(ctx, lead)
	if err != nil {
		return nil, readError(lead, "follow-ups", err)
	}
	notes, err := a.reader.ListLeadNotes(ctx, lead)
	if err != nil {
		return nil, readError(lead, "notes", err)
	}

	entries := make([]types.SchedulingHistoryEntry, 0, len(schedNotes)+len(followUps)+len(notes))
	for _, n := range schedNotes {
		entries = append(entries, types.SchedulingHistoryEntry{
			Timestamp:    n.CreatedAt,
			Actor:        n.CreatedBy,
			Note:         n.Note,
			NextFollowUp: n.NextFollowUp,
			Source:       types.HistoryScheduling,
		})
	}
	for _, f := range followUps {
		entries = append(entries, types.SchedulingHistoryEntry{
			Timestamp:    f.Date,
			Actor:        f.UserName,
			Note:         f.Notes,
			NextFollowUp: f.NextFollowUp,
			Source:       types.HistoryFollowUp,
		})
	}
	for _, n := range notes {
		entries = append(entries, types.SchedulingHistoryEntry{
			Timestamp: n.CreatedAt,
			Actor:     n.CreatedBy,
			Note:      n.Content,
			Source:    types.HistoryNote,
		})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Timestamp.After(entries[j].Timestamp)
	})

	a.logger.Debug("built scheduling history", "lead", lead.Key(), "entries", len(entries))
	return entries, nil
}

func readError(lead types.CanonicalLead, what string, err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return types.NewError(types.ErrorTypeUnresolvableReference, fmt.Sprintf("lead %s does not exist", lead.Key()), err)
	}
	return types.NewError(types.ErrorTypePersistenceFailure, "failed to read "+what, err)
}
