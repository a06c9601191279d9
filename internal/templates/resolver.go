package templates

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"golang.org/x/sync/errgroup"

	"leadify-meeting-orchestrator/internal/datetime"
	"leadify-meeting-orchestrator/internal/store"
	"leadify-meeting-orchestrator/internal/types"
)

// LeadReader is the read side the resolver needs
type LeadReader interface {
	GetLead(ctx context.Context, lead types.CanonicalLead) (types.Lead, error)
	ListContacts(ctx context.Context, lead types.CanonicalLead) ([]types.Contact, error)
}

// LeadContext is everything about the lead that templates may reference
type LeadContext struct {
	Lead        types.Lead
	Contacts    []types.Contact
	MainContact *types.Contact
}

// Resolver builds template parameter values
type Resolver struct {
	reader LeadReader
	dt     *datetime.Manager
}

// NewResolver creates a resolver bound to the business time zone of dt
func NewResolver(reader LeadReader, dt *datetime.Manager) *Resolver {
	return &Resolver{reader: reader, dt: dt}
}

// LoadLead fetches the lead and its contacts concurrently
func (r *Resolver) LoadLead(ctx context.Context, ref types.CanonicalLead) (LeadContext, error) {
	var lc LeadContext

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		lead, err := r.reader.GetLead(gctx, ref)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return types.NewError(types.ErrorTypeUnresolvableReference, fmt.Sprintf("lead %s does not exist", ref.Key()), err)
			}
			return types.NewError(types.ErrorTypePersistenceFailure, "failed to load lead", err)
		}
		lc.Lead = lead
		return nil
	})
	g.Go(func() error {
		contacts, err := r.reader.ListContacts(gctx, ref)
		if errors.Is(err, store.ErrNotFound) {
			// GetLead reports the missing lead
			return nil
		}
		if err != nil {
			return types.NewError(types.ErrorTypePersistenceFailure, "failed to load contacts", err)
		}
		lc.Contacts = contacts
		return nil
	})
	if err := g.Wait(); err != nil {
		return LeadContext{}, err
	}

	for i := range lc.Contacts {
		if lc.Contacts[i].IsMain {
			lc.MainContact = &lc.Contacts[i]
			break
		}
	}
	return lc, nil
}

// Values computes every parameter type for one recipient. previous is the
// meeting a reschedule replaced and may be nil.
func (r *Resolver) Values(lc LeadContext, m types.Meeting, previous *types.Meeting, rcpt types.Recipient) Values {
	v := Values{
		"client_name":  rcpt.Name,
		"lead_name":    lc.Lead.Name,
		"lead_number":  m.Lead.DisplayKey(),
		"meeting_date": r.dt.HumanDate(m.Date),
		"meeting_time": m.Time,
		"location":     m.Location,
		"brief":        m.Brief,
		"currency":     m.Currency,
		"manager":      m.Roles.Manager.Name,
		"scheduler":    m.Roles.Scheduler.Name,
		"helper":       m.Roles.Helper.Name,
		"expert":       m.Roles.Expert.Name,
	}
	if v["client_name"] == "" {
		v["client_name"] = lc.Lead.Name
	}
	if lc.Lead.Number != "" {
		v["lead_number"] = lc.Lead.Number
	}
	if lc.MainContact != nil {
		v["main_contact"] = lc.MainContact.Name
	}
	if m.Amount != 0 {
		v["amount"] = strconv.FormatFloat(m.Amount, 'f', 2, 64)
	}
	if m.JoinURL != nil {
		v["join_url"] = *m.JoinURL
	}

	v["meeting_datetime"] = v["meeting_date"] + " " + m.Time
	if start, err := r.dt.ToUTCInstant(m.Date, m.Time); err == nil {
		v["meeting_datetime"] = r.dt.Format(start).ToEmailTemplate(r.dt.Zone())
	}

	if previous != nil {
		v["previous_date"] = r.dt.HumanDate(previous.Date)
		v["previous_time"] = previous.Time
		v["previous_location"] = previous.Location
	}
	return v
}
