// Package ses sends notification email through Amazon SES v2.
package ses

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"mime"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	sesv2Types "github.com/aws/aws-sdk-go-v2/service/sesv2/types"
	"github.com/google/uuid"

	awsutil "leadify-meeting-orchestrator/internal/aws"
	"leadify-meeting-orchestrator/internal/types"
)

// API is the SES v2 surface used for sending
type API interface {
	SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// Refresher drops cached credentials so the next call fetches new ones.
// *aws.CredentialsCache satisfies it.
type Refresher interface {
	Invalidate()
}

// Attachment is a file attached to a message
type Attachment struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Message is a single outbound email
type Message struct {
	To         string
	Subject    string
	HTMLBody   string
	TextBody   string
	Attachment *Attachment
}

// Sender delivers messages from a fixed sender address
type Sender struct {
	api              API
	from             string
	configurationSet string
	refresher        Refresher
	logger           *slog.Logger
}

// NewSender creates an SES sender. refresher may be nil.
func NewSender(api API, from, configurationSet string, refresher Refresher, logger *slog.Logger) *Sender {
	return &Sender{api: api, from: from, configurationSet: configurationSet, refresher: refresher, logger: logger}
}

// Send delivers msg and returns the provider message ID. Expired or
// rejected credentials surface as AuthenticationRequired; any other
// provider failure as TransportFailed.
func (s *Sender) Send(ctx context.Context, msg Message) (string, error) {
	input := &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(s.from),
		Destination: &sesv2Types.Destination{
			ToAddresses: []string{msg.To},
		},
	}
	if s.configurationSet != "" {
		input.ConfigurationSetName = aws.String(s.configurationSet)
	}

	if msg.Attachment != nil {
		raw, err := generateRawEmail(s.from, msg)
		if err != nil {
			return "", types.NewError(types.ErrorTypeTransportFailed, "failed to build raw email", err)
		}
		input.Content = &sesv2Types.EmailContent{
			Raw: &sesv2Types.RawMessage{Data: raw},
		}
	} else {
		body := &sesv2Types.Body{
			Html: &sesv2Types.Content{Data: aws.String(msg.HTMLBody), Charset: aws.String("UTF-8")},
		}
		if msg.TextBody != "" {
			body.Text = &sesv2Types.Content{Data: aws.String(msg.TextBody), Charset: aws.String("UTF-8")}
		}
		input.Content = &sesv2Types.EmailContent{
			Simple: &sesv2Types.Message{
				Subject: &sesv2Types.Content{Data: aws.String(msg.Subject), Charset: aws.String("UTF-8")},
				Body:    body,
			},
		}
	}

	result, err := s.api.SendEmail(ctx, input)
	if err != nil {
		wrapped := awsutil.WrapAWSError(err, "SendEmail")
		if awsutil.IsExpiredCredentialsError(err) {
			return "", types.NewError(types.ErrorTypeAuthenticationRequired, "email transport rejected credentials", wrapped)
		}
		return "", types.NewError(types.ErrorTypeTransportFailed, "email transport failed", wrapped)
	}

	messageID := aws.ToString(result.MessageId)
	s.logger.Debug("email sent", "to", msg.To, "message_id", messageID)
	return messageID, nil
}

// Refresh invalidates cached credentials
func (s *Sender) Refresh() {
	if s.refresher != nil {
		s.refresher.Invalidate()
		s.logger.Info("email transport credentials invalidated")
	}
}

// generateRawEmail creates a multipart/mixed MIME message with an
// alternative text/html body and a base64 attachment
func generateRawEmail(from string, msg Message) ([]byte, error) {
	if msg.Attachment == nil {
		return nil, fmt.Errorf("raw email requires an attachment")
	}

	boundary := "mixed_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	altBoundary := "alt_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	textBody := msg.TextBody
	if textBody == "" {
		textBody = stripTags(msg.HTMLBody)
	}

	var email strings.Builder

	email.WriteString(fmt.Sprintf("From: %s\r\n", from))
	email.WriteString(fmt.Sprintf("To: %s\r\n", msg.To))
	email.WriteString(fmt.Sprintf("Subject: %s\r\n", mime.QEncoding.Encode("UTF-8", msg.Subject)))
	email.WriteString("MIME-Version: 1.0\r\n")
	email.WriteString(fmt.Sprintf("Content-Type: multipart/mixed; boundary=\"%s\"\r\n", boundary))
	email.WriteString("\r\n")

	email.WriteString(fmt.Sprintf("--%s\r\n", boundary))
	email.WriteString(fmt.Sprintf("Content-Type: multipart/alternative; boundary=\"%s\"\r\n", altBoundary))
	email.WriteString("\r\n")

	email.WriteString(fmt.Sprintf("--%s\r\n", altBoundary))
	email.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	email.WriteString("Content-Transfer-Encoding: base64\r\n")
	email.WriteString("\r\n")
	writeBase64(&email, []byte(textBody))

	email.WriteString(fmt.Sprintf("--%s\r\n", altBoundary))
	email.WriteString("Content-Type: text/html; charset=UTF-8\r\n")
	email.WriteString("Content-Transfer-Encoding: base64\r\n")
	email.WriteString("\r\n")
	writeBase64(&email, []byte(msg.HTMLBody))

	email.WriteString(fmt.Sprintf("--%s--\r\n", altBoundary))

	att := msg.Attachment
	email.WriteString(fmt.Sprintf("--%s\r\n", boundary))
	email.WriteString(fmt.Sprintf("Content-Type: %s\r\n", att.ContentType))
	email.WriteString(fmt.Sprintf("Content-Disposition: attachment; filename=\"%s\"\r\n", att.Filename))
	email.WriteString("Content-Transfer-Encoding: base64\r\n")
	email.WriteString("\r\n")
	writeBase64(&email, att.Data)

	email.WriteString(fmt.Sprintf("--%s--\r\n", boundary))

	return []byte(email.String()), nil
}

// writeBase64 writes data base64-encoded in 76 character lines
func writeBase64(b *strings.Builder, data []byte) {
	encoded := base64.StdEncoding.EncodeToString(data)
	for i := 0; i < len(encoded); i += 76 {
		end := min(i+76, len(encoded))
		b.WriteString(encoded[i:end])
		b.WriteString("\r\n")
	}
}

// stripTags produces a crude plain-text alternative from HTML
func stripTags(html string) string {
	var out strings.Builder
	inTag := false
	for _, r := range html {
		switch {
		case r == '<':
			inTag = true
		case r == '>':
			inTag = false
		case !inTag:
			out.WriteRune(r)
		}
	}
	return strings.TrimSpace(out.String())
}
