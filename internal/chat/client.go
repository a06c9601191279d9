// Package chat sends pre-approved template messages through a WhatsApp
// Cloud API style endpoint.
package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"leadify-meeting-orchestrator/internal/types"
)

// reEngagementCode is returned when the recipient's last inbound message
// is too old for anything but a template to be accepted
const reEngagementCode = 131047

// Config holds chat client configuration
type Config struct {
	BaseURL       string
	PhoneNumberID string
	Token         string
	Timeout       time.Duration
}

// Client sends template messages
type Client struct {
	httpClient *http.Client
	config     Config
	logger     *slog.Logger
}

// NewClient creates a chat client authenticating with a static bearer token
func NewClient(config Config, logger *slog.Logger) *Client {
	httpClient := oauth2.NewClient(context.Background(), oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: config.Token,
		TokenType:   "Bearer",
	}))
	httpClient.Timeout = config.Timeout
	if httpClient.Timeout == 0 {
		httpClient.Timeout = 30 * time.Second
	}
	return &Client{httpClient: httpClient, config: config, logger: logger}
}

// TemplateMessage is a template send to one phone number
type TemplateMessage struct {
	To         string
	Template   string
	Language   string
	Parameters []string
}

type textParameter struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type component struct {
	Type       string          `json:"type"`
	Parameters []textParameter `json:"parameters"`
}

type languageCode struct {
	Code string `json:"code"`
}

type templatePayload struct {
	Name       string       `json:"name"`
	Language   languageCode `json:"language"`
	Components []component  `json:"components,omitempty"`
}

type messagePayload struct {
	MessagingProduct string          `json:"messaging_product"`
	To               string          `json:"to"`
	Type             string          `json:"type"`
	Template         templatePayload `json:"template"`
}

type messageResponse struct {
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
}

type errorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    int    `json:"code"`
	} `json:"error"`
}

// SendTemplate delivers a template message and returns the provider
// message ID. A closed conversation window surfaces as
// ReEngagementRequired, any other failure as TransportFailed.
func (c *Client) SendTemplate(ctx context.Context, msg TemplateMessage) (string, error) {
	payload := messagePayload{
		MessagingProduct: "whatsapp",
		To:               normalizePhone(msg.To),
		Type:             "template",
	}
	payload.Template.Name = msg.Template
	payload.Template.Language.Code = msg.Language
	if len(msg.Parameters) > 0 {
		params := make([]textParameter, len(msg.Parameters))
		for i, p := range msg.Parameters {
			params[i] = textParameter{Type: "text", Text: p}
		}
		payload.Template.Components = []component{{Type: "body", Parameters: params}}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", types.NewError(types.ErrorTypeTransportFailed, "failed to marshal chat payload", err)
	}

	url := fmt.Sprintf("%s/%s/messages", c.config.BaseURL, c.config.PhoneNumberID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", types.NewError(types.ErrorTypeTransportFailed, "failed to create chat request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", types.NewError(types.ErrorTypeTransportFailed, "chat request failed", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", types.NewError(types.ErrorTypeTransportFailed, "failed to read chat response", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", mapError(resp.StatusCode, respBody)
	}

	var result messageResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", types.NewError(types.ErrorTypeTransportFailed, "failed to parse chat response", err)
	}
	if len(result.Messages) == 0 {
		return "", types.Errorf(types.ErrorTypeTransportFailed, "chat response carried no message id")
	}

	c.logger.Debug("chat template sent", "template", msg.Template, "message_id", result.Messages[0].ID)
	return result.Messages[0].ID, nil
}

func mapError(status int, body []byte) error {
	var providerErr errorResponse
	if json.Unmarshal(body, &providerErr) != nil {
		return types.Errorf(types.ErrorTypeTransportFailed, "chat request failed with status %d", status)
	}

	e := providerErr.Error
	if e.Code == reEngagementCode || strings.EqualFold(e.Type, "re_engagement") {
		return types.Errorf(types.ErrorTypeReEngagementRequired, "recipient must message first: %s", e.Message)
	}
	if status == http.StatusUnauthorized {
		return types.Errorf(types.ErrorTypeAuthenticationRequired, "chat token rejected: %s", e.Message)
	}
	return types.Errorf(types.ErrorTypeTransportFailed, "chat request failed with status %d: code %d: %s", status, e.Code, e.Message)
}

// normalizePhone strips formatting so "+972 (50) 123-4567" becomes
// "972501234567"
func normalizePhone(phone string) string {
	var b strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
