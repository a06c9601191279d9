// Package graph is a Microsoft Graph calendar client: it creates and
// patches events on an organizer's calendar using app-only credentials.
package graph

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/oauth2/clientcredentials"

	"leadify-meeting-orchestrator/internal/datetime"
)

const defaultScope = "https://graph.microsoft.com/.default"

// Config holds Graph client configuration
type Config struct {
	BaseURL      string
	TokenURL     string
	TenantID     string
	ClientID     string
	ClientSecret string
	Organizer    string
	Timeout      time.Duration
}

// Client creates and updates events on the organizer's calendar
type Client struct {
	httpClient *http.Client
	config     Config
	logger     *slog.Logger
}

// NewClient creates a Graph client authenticating with the OAuth2 client
// credentials flow; tokens are cached and refreshed by the transport
func NewClient(config Config, logger *slog.Logger) *Client {
	tokenURL := config.TokenURL
	if tokenURL == "" {
		tokenURL = fmt.Sprintf("https://login.microsoftonline.com/%s/oauth2/v2.0/token", config.TenantID)
	}

	oauthConfig := &clientcredentials.Config{
		ClientID:     config.ClientID,
		ClientSecret: config.ClientSecret,
		TokenURL:     tokenURL,
		Scopes:       []string{defaultScope},
	}

	httpClient := oauthConfig.Client(context.Background())
	httpClient.Timeout = config.Timeout
	if httpClient.Timeout == 0 {
		httpClient.Timeout = 30 * time.Second
	}

	return NewClientWithHTTP(config, httpClient, logger)
}

// NewClientWithHTTP creates a client that sends requests through httpClient,
// which is expected to add the Authorization header
func NewClientWithHTTP(config Config, httpClient *http.Client, logger *slog.Logger) *Client {
	return &Client{httpClient: httpClient, config: config, logger: logger}
}

// EventRequest describes an event to create
type EventRequest struct {
	Subject   string
	BodyHTML  string
	Start     time.Time
	End       time.Time
	Location  string
	Attendees []Attendee
	// Online requests a Teams meeting with a join URL
	Online bool
}

// Attendee is an invited participant
type Attendee struct {
	Name  string
	Email string
}

// Event is the provider's view of a created event
type Event struct {
	ID      string
	JoinURL string
}

// ProviderError is a non-2xx response from Graph
type ProviderError struct {
	Status  int
	Code    string
	Message string
}

func (e *ProviderError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("graph request failed with status %d: %s - %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("graph request failed with status %d", e.Status)
}

type dateTimeTimeZone struct {
	DateTime string `json:"dateTime"`
	TimeZone string `json:"timeZone"`
}

type emailAddress struct {
	Address string `json:"address"`
	Name    string `json:"name,omitempty"`
}

type attendeePayload struct {
	EmailAddress emailAddress `json:"emailAddress"`
	Type         string       `json:"type"`
}

type itemBody struct {
	ContentType string `json:"contentType"`
	Content     string `json:"content"`
}

type location struct {
	DisplayName string `json:"displayName"`
}

type eventPayload struct {
	Subject               string            `json:"subject"`
	Body                  *itemBody         `json:"body,omitempty"`
	Start                 dateTimeTimeZone  `json:"start"`
	End                   dateTimeTimeZone  `json:"end"`
	Location              *location         `json:"location,omitempty"`
	Attendees             []attendeePayload `json:"attendees,omitempty"`
	IsOnlineMeeting       bool              `json:"isOnlineMeeting,omitempty"`
	OnlineMeetingProvider string            `json:"onlineMeetingProvider,omitempty"`
}

type patchPayload struct {
	Start dateTimeTimeZone `json:"start"`
	End   dateTimeTimeZone `json:"end"`
}

type eventResponse struct {
	ID            string `json:"id"`
	OnlineMeeting *struct {
		JoinURL string `json:"joinUrl"`
	} `json:"onlineMeeting"`
}

type errorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// graphTime sends instants as UTC wall clock with an explicit UTC zone
func graphTime(t time.Time) dateTimeTimeZone {
	return dateTimeTimeZone{DateTime: t.UTC().Format(datetime.GraphFormat), TimeZone: "UTC"}
}

// CreateEvent creates an event on the organizer's calendar
func (c *Client) CreateEvent(ctx context.Context, req EventRequest) (Event, error) {
	payload := eventPayload{
		Subject: req.Subject,
		Start:   graphTime(req.Start),
		End:     graphTime(req.End),
	}
	if req.BodyHTML != "" {
		payload.Body = &itemBody{ContentType: "HTML", Content: req.BodyHTML}
	}
	if req.Location != "" {
		payload.Location = &location{DisplayName: req.Location}
	}
	for _, a := range req.Attendees {
		payload.Attendees = append(payload.Attendees, attendeePayload{
			EmailAddress: emailAddress{Address: a.Email, Name: a.Name},
			Type:         "required",
		})
	}
	if req.Online {
		payload.IsOnlineMeeting = true
		payload.OnlineMeetingProvider = "teamsForBusiness"
	}

	var created eventResponse
	if err := c.do(ctx, http.MethodPost, c.eventsURL(""), payload, http.StatusCreated, &created); err != nil {
		return Event{}, err
	}

	event := Event{ID: created.ID}
	if created.OnlineMeeting != nil {
		event.JoinURL = created.OnlineMeeting.JoinURL
	}
	c.logger.Info("created calendar event", "event_id", event.ID, "online", req.Online)
	return event, nil
}

// PatchEvent moves an existing event to a new window
func (c *Client) PatchEvent(ctx context.Context, eventID string, start, end time.Time) error {
	payload := patchPayload{Start: graphTime(start), End: graphTime(end)}
	if err := c.do(ctx, http.MethodPatch, c.eventsURL(eventID), payload, http.StatusOK, nil); err != nil {
		return err
	}
	c.logger.Info("patched calendar event", "event_id", eventID)
	return nil
}

// TestAccess verifies that the credentials can read the organizer's calendar
func (c *Client) TestAccess(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, c.eventsURL("")+"?$top=1&$select=id", nil, http.StatusOK, nil)
}

func (c *Client) eventsURL(eventID string) string {
	u := fmt.Sprintf("%s/users/%s/events", c.config.BaseURL, url.PathEscape(c.config.Organizer))
	if eventID != "" {
		u += "/" + url.PathEscape(eventID)
	}
	return u
}

func (c *Client) do(ctx context.Context, method, endpoint string, payload any, wantStatus int, out any) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to marshal graph payload: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return fmt.Errorf("failed to create graph request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("graph request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read graph response: %w", err)
	}

	if resp.StatusCode != wantStatus {
		perr := &ProviderError{Status: resp.StatusCode}
		var graphErr errorResponse
		if json.Unmarshal(respBody, &graphErr) == nil {
			perr.Code = graphErr.Error.Code
			perr.Message = graphErr.Error.Message
		}
		return perr
	}

	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("failed to parse graph response: %w", err)
		}
	}
	return nil
}
