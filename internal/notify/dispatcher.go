// Package notify delivers meeting notifications to each recipient over
// email, native calendar invite or chat, and records every outcome.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"leadify-meeting-orchestrator/internal/chat"
	"leadify-meeting-orchestrator/internal/concurrent"
	"leadify-meeting-orchestrator/internal/datetime"
	"leadify-meeting-orchestrator/internal/graph"
	"leadify-meeting-orchestrator/internal/ics"
	"leadify-meeting-orchestrator/internal/metrics"
	"leadify-meeting-orchestrator/internal/ses"
	"leadify-meeting-orchestrator/internal/templates"
	"leadify-meeting-orchestrator/internal/types"
)

// EmailSender delivers email. Refresh drops cached credentials.
type EmailSender interface {
	Send(ctx context.Context, msg ses.Message) (string, error)
	Refresh()
}

// ChatSender delivers chat template messages
type ChatSender interface {
	SendTemplate(ctx context.Context, msg chat.TemplateMessage) (string, error)
}

// Calendar creates native invites for managed-calendar recipients
type Calendar interface {
	CreateEvent(ctx context.Context, req graph.EventRequest) (graph.Event, error)
}

// AuditLog receives one event per recipient outcome
type AuditLog interface {
	AppendNotificationEvent(ctx context.Context, e types.NotificationEvent) error
}

// Config tunes dispatch behavior
type Config struct {
	// ManagedDomains receive native calendar invites instead of email
	ManagedDomains  []string
	MaxConcurrency  int
	MeetingDuration time.Duration
	OrganizerEmail  string
	OrganizerName   string
}

// Dependencies are the collaborators of a Dispatcher. Email, Chat,
// Calendar, Guard and Metrics may be nil.
type Dependencies struct {
	Catalog  *templates.Catalog
	Resolver *templates.Resolver
	DateTime *datetime.Manager
	Email    EmailSender
	Chat     ChatSender
	Calendar Calendar
	Guard    Guard
	Audit    AuditLog
	Metrics  *metrics.Manager
	Logger   *slog.Logger
}

// Request asks for one notification kind to be sent about a meeting
type Request struct {
	Meeting types.Meeting
	// Previous is the meeting a reschedule replaced
	Previous   *types.Meeting
	Kind       types.EventKind
	Recipients []types.Recipient
}

// Result is the outcome for one recipient
type Result struct {
	Recipient  types.Recipient `json:"recipient"`
	Channel    types.Channel   `json:"channel,omitempty"`
	TemplateID string          `json:"template_id,omitempty"`
	Outcome    types.Outcome   `json:"outcome"`
	MessageID  string          `json:"message_id,omitempty"`
	Err        error           `json:"-"`
	// Reason is the error type of a failed or skipped send
	Reason types.ErrorType `json:"reason,omitempty"`
}

// Dispatcher sends notifications
type Dispatcher struct {
	deps Dependencies
	cfg  Config
	now  func() time.Time
}

// NewDispatcher creates a dispatcher
func NewDispatcher(deps Dependencies, cfg Config) *Dispatcher {
	if cfg.MeetingDuration <= 0 {
		cfg.MeetingDuration = time.Hour
	}
	return &Dispatcher{deps: deps, cfg: cfg, now: time.Now}
}

// delivery is what one recipient's send produced, for the audit trail
type delivery struct {
	result  Result
	subject string
	content string
}

// Dispatch sends req.Kind to every recipient concurrently and returns
// exactly one result per recipient, in input order. A failure for one
// recipient never affects another.
func (d *Dispatcher) Dispatch(ctx context.Context, req Request) []Result {
	if len(req.Recipients) == 0 {
		return []Result{}
	}
	logger := d.deps.Logger.With("meeting_id", req.Meeting.ID, "kind", req.Kind)

	lc, leadErr := d.deps.Resolver.LoadLead(ctx, req.Meeting.Lead)
	if leadErr != nil {
		logger.Error("cannot resolve lead for notifications", "error", leadErr)
	}

	outcomes := concurrent.Process(req.Recipients, func(_ int, rcpt types.Recipient) (delivery, error) {
		start := time.Now()
		var dl delivery
		if leadErr != nil {
			dl = failed(rcpt, "", "", leadErr)
		} else {
			dl = d.deliver(ctx, req, lc, rcpt)
		}
		d.deps.Metrics.RecordDispatch(string(dl.result.Channel), string(dl.result.Outcome), string(dl.result.Reason), time.Since(start))
		if dl.result.Outcome == types.OutcomeFailed {
			return dl, dl.result.Err
		}
		return dl, nil
	}, d.cfg.MaxConcurrency)

	results := make([]Result, len(outcomes))
	for i, o := range outcomes {
		dl := o.Value
		// a zero outcome means the worker panicked
		if dl.result.Outcome == "" {
			dl = failed(req.Recipients[i], "", "", types.NewError(types.ErrorTypeTransportFailed, "dispatch aborted", o.Error))
		}
		results[i] = dl.result
		d.audit(ctx, logger, req, dl)
	}

	summary := concurrent.Aggregate(outcomes)
	logger.Info("notifications dispatched",
		"recipients", summary.Total,
		"failed", summary.FailedCount,
		"duration", summary.TotalDuration)
	return results
}

func (d *Dispatcher) deliver(ctx context.Context, req Request, lc templates.LeadContext, rcpt types.Recipient) delivery {
	logger := d.deps.Logger.With("meeting_id", req.Meeting.ID, "kind", req.Kind)

	channel, err := resolveChannel(rcpt)
	if err != nil {
		return skipped(rcpt, "", err)
	}
	rcpt.Channel = channel

	if d.deps.Guard == nil || (req.Kind != types.KindCancellation && req.Kind != types.KindReminder) {
		return d.send(ctx, logger, req, lc, rcpt)
	}

	key := fmt.Sprintf("%s:%s:%s", req.Kind, req.Meeting.ID, strings.ToLower(rcpt.Address()))
	claimed, err := d.deps.Guard.Claim(ctx, key)
	switch {
	case err != nil:
		logger.Warn("dedupe guard unavailable, sending anyway", "error", err)
		return d.send(ctx, logger, req, lc, rcpt)
	case !claimed:
		logger.Info("duplicate notification suppressed", "recipient", rcpt.Address())
		return skipped(rcpt, "", types.Errorf(types.ErrorTypeDuplicateSuppressed, "%s already sent to %s", req.Kind, rcpt.Address()))
	}

	dl := d.send(ctx, logger, req, lc, rcpt)
	if dl.result.Outcome != types.OutcomeSent {
		// an undelivered claim must not block the retry
		if err := d.deps.Guard.Release(context.WithoutCancel(ctx), key); err != nil {
			logger.Warn("failed to release dedupe claim", "key", key, "error", err)
		}
	}
	return dl
}

func (d *Dispatcher) send(ctx context.Context, logger *slog.Logger, req Request, lc templates.LeadContext, rcpt types.Recipient) delivery {
	channel := rcpt.Channel

	language := rcpt.Language
	if req.Kind == types.KindRescheduled {
		language = lc.Lead.Language
	}
	if language == "" {
		language = d.deps.Catalog.DefaultLanguage()
	}

	tpl, err := d.deps.Catalog.Lookup(req.Kind, language, channel)
	if err != nil {
		logger.Warn("no template for recipient", "recipient", rcpt.Address(), "language", language, "channel", channel)
		return skipped(rcpt, "", err)
	}

	values := d.deps.Resolver.Values(lc, req.Meeting, req.Previous, rcpt)

	var dl delivery
	if channel == types.ChannelChat {
		dl = d.sendChat(ctx, tpl, values, rcpt)
	} else {
		dl = d.sendEmail(ctx, req, tpl, values, rcpt)
	}

	if dl.result.Err != nil {
		logger.Warn("notification failed", "recipient", rcpt.Address(), "channel", channel, "reason", dl.result.Reason, "error", dl.result.Err)
	}
	return dl
}

func (d *Dispatcher) sendEmail(ctx context.Context, req Request, tpl templates.Template, values templates.Values, rcpt types.Recipient) delivery {
	rendered := templates.RenderEmail(tpl, values, req.Meeting.ID)

	start, err := d.deps.DateTime.ToUTCInstant(req.Meeting.Date, req.Meeting.Time)
	if err != nil {
		return failed(rcpt, tpl.ID, rendered.Subject, types.NewError(types.ErrorTypeValidationFailed, "meeting time cannot be converted", err))
	}
	end := start.Add(d.cfg.MeetingDuration)

	if req.Kind.AnnouncesMeeting() && d.deps.Calendar != nil && d.isManaged(rcpt.Email) {
		event, err := d.deps.Calendar.CreateEvent(ctx, graph.EventRequest{
			Subject:   rendered.Subject,
			BodyHTML:  rendered.HTMLBody,
			Start:     start,
			End:       end,
			Location:  req.Meeting.Location,
			Attendees: []graph.Attendee{{Name: rcpt.Name, Email: rcpt.Email}},
		})
		if err != nil {
			return withContent(failed(rcpt, tpl.ID, rendered.Subject, types.NewError(types.ErrorTypeTransportFailed, "native calendar invite failed", err)), rendered.HTMLBody)
		}
		return withContent(sent(rcpt, tpl.ID, rendered.Subject, event.ID), rendered.HTMLBody)
	}

	if d.deps.Email == nil {
		return failed(rcpt, tpl.ID, rendered.Subject, types.Errorf(types.ErrorTypeTransportFailed, "email transport is not configured"))
	}

	invite := ics.Invite{
		MeetingID:      req.Meeting.ID,
		Method:         ics.MethodRequest,
		Summary:        rendered.Subject,
		Location:       req.Meeting.Location,
		Start:          start,
		End:            end,
		OrganizerEmail: d.cfg.OrganizerEmail,
		OrganizerName:  d.cfg.OrganizerName,
		AttendeeName:   rcpt.Name,
		AttendeeEmail:  rcpt.Email,
		Stamp:          d.now(),
	}
	if req.Meeting.JoinURL != nil {
		invite.JoinURL = *req.Meeting.JoinURL
	}
	if req.Kind == types.KindCancellation {
		invite.Method = ics.MethodCancel
		invite.Sequence = 1
	}
	attachment, err := ics.Build(invite)
	if err != nil {
		return failed(rcpt, tpl.ID, rendered.Subject, types.NewError(types.ErrorTypeTransportFailed, "calendar attachment failed", err))
	}

	msg := ses.Message{
		To:       rcpt.Email,
		Subject:  rendered.Subject,
		HTMLBody: rendered.HTMLBody,
		Attachment: &ses.Attachment{
			Filename:    invite.Filename(),
			ContentType: invite.ContentType(),
			Data:        attachment,
		},
	}

	messageID, err := d.deps.Email.Send(ctx, msg)
	if errors.Is(err, types.ErrAuthenticationRequired) {
		d.deps.Logger.Info("refreshing email credentials and retrying", "meeting_id", req.Meeting.ID)
		d.deps.Email.Refresh()
		messageID, err = d.deps.Email.Send(ctx, msg)
	}
	if err != nil {
		return withContent(failed(rcpt, tpl.ID, rendered.Subject, err), rendered.HTMLBody)
	}
	return withContent(sent(rcpt, tpl.ID, rendered.Subject, messageID), rendered.HTMLBody)
}

func (d *Dispatcher) sendChat(ctx context.Context, tpl templates.Template, values templates.Values, rcpt types.Recipient) delivery {
	params := templates.ChatParams(tpl, values)
	content := strings.Join(params, " | ")

	if d.deps.Chat == nil {
		return withContent(failed(rcpt, tpl.ID, tpl.Name, types.Errorf(types.ErrorTypeTransportFailed, "chat transport is not configured")), content)
	}

	messageID, err := d.deps.Chat.SendTemplate(ctx, chat.TemplateMessage{
		To:         rcpt.Phone,
		Template:   tpl.Name,
		Language:   tpl.Language,
		Parameters: params,
	})
	if err != nil {
		return withContent(failed(rcpt, tpl.ID, tpl.Name, err), content)
	}
	return withContent(sent(rcpt, tpl.ID, tpl.Name, messageID), content)
}

func (d *Dispatcher) isManaged(email string) bool {
	_, domain, ok := strings.Cut(strings.ToLower(email), "@")
	if !ok {
		return false
	}
	for _, managed := range d.cfg.ManagedDomains {
		if domain == strings.ToLower(managed) {
			return true
		}
	}
	return false
}

func (d *Dispatcher) audit(ctx context.Context, logger *slog.Logger, req Request, dl delivery) {
	if d.deps.Audit == nil {
		return
	}
	r := dl.result
	event := types.NotificationEvent{
		ID:         uuid.NewString(),
		MeetingID:  req.Meeting.ID,
		Kind:       req.Kind,
		Channel:    r.Channel,
		TemplateID: r.TemplateID,
		Recipient:  r.Recipient.Address(),
		Subject:    dl.subject,
		Content:    dl.content,
		Outcome:    r.Outcome,
		Reason:     string(r.Reason),
		CreatedAt:  d.now().UTC(),
	}
	if err := d.deps.Audit.AppendNotificationEvent(ctx, event); err != nil {
		logger.Error("failed to record notification event", "recipient", event.Recipient, "error", err)
	}
}

// resolveChannel picks email when an address exists, chat when only a
// phone does
func resolveChannel(r types.Recipient) (types.Channel, error) {
	switch r.Channel {
	case types.ChannelEmail:
		if r.Email == "" {
			return "", types.Errorf(types.ErrorTypeNoChannel, "recipient %q has no email address", r.Name)
		}
		return types.ChannelEmail, nil
	case types.ChannelChat:
		if r.Phone == "" {
			return "", types.Errorf(types.ErrorTypeNoChannel, "recipient %q has no phone number", r.Name)
		}
		return types.ChannelChat, nil
	case "":
		if r.Email != "" {
			return types.ChannelEmail, nil
		}
		if r.Phone != "" {
			return types.ChannelChat, nil
		}
		return "", types.Errorf(types.ErrorTypeNoChannel, "recipient %q has no email or phone", r.Name)
	}
	return "", types.Errorf(types.ErrorTypeNoChannel, "recipient %q has unknown channel %q", r.Name, r.Channel)
}

func sent(rcpt types.Recipient, templateID, subject, messageID string) delivery {
	return delivery{
		result: Result{
			Recipient: rcpt, Channel: rcpt.Channel, TemplateID: templateID,
			Outcome: types.OutcomeSent, MessageID: messageID,
		},
		subject: subject,
	}
}

func failed(rcpt types.Recipient, templateID, subject string, err error) delivery {
	return delivery{
		result: Result{
			Recipient: rcpt, Channel: rcpt.Channel, TemplateID: templateID,
			Outcome: types.OutcomeFailed, Err: err, Reason: reasonOf(err),
		},
		subject: subject,
	}
}

func skipped(rcpt types.Recipient, templateID string, err error) delivery {
	return delivery{
		result: Result{
			Recipient: rcpt, Channel: rcpt.Channel, TemplateID: templateID,
			Outcome: types.OutcomeSkipped, Err: err, Reason: reasonOf(err),
		},
	}
}

func withContent(dl delivery, content string) delivery {
	dl.content = content
	return dl
}

func reasonOf(err error) types.ErrorType {
	if t := types.TypeOf(err); t != "" {
		return t
	}
	return types.ErrorTypeTransportFailed
}
