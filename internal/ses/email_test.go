package ses

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"io"
	"log/slog"
	"mime"
	"mime/multipart"
	"net/mail"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/smithy-go"

	"leadify-meeting-orchestrator/internal/types"
)

type fakeSES struct {
	inputs []*sesv2.SendEmailInput
	err    error
}

func (f *fakeSES) SendEmail(_ context.Context, in *sesv2.SendEmailInput, _ ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error) {
	f.inputs = append(f.inputs, in)
	if f.err != nil {
		return nil, f.err
	}
	return &sesv2.SendEmailOutput{MessageId: aws.String("msg-1")}, nil
}

type fakeRefresher struct{ calls int }

func (f *fakeRefresher) Invalidate() { f.calls++ }

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSendSimple(t *testing.T) {
	api := &fakeSES{}
	sender := NewSender(api, "office@leadify.example", "notifications", nil, testLogger())

	id, err := sender.Send(context.Background(), Message{
		To:       "client@example.com",
		Subject:  "Your meeting",
		HTMLBody: "<p>Hello</p>",
	})
	if err != nil || id != "msg-1" {
		t.Fatalf("Send() = %q, %v", id, err)
	}

	in := api.inputs[0]
	if in.Content.Simple == nil || in.Content.Raw != nil {
		t.Fatal("expected simple content without attachment")
	}
	if aws.ToString(in.Content.Simple.Subject.Data) != "Your meeting" {
		t.Errorf("subject = %q", aws.ToString(in.Content.Simple.Subject.Data))
	}
	if aws.ToString(in.ConfigurationSetName) != "notifications" {
		t.Errorf("configuration set = %q", aws.ToString(in.ConfigurationSetName))
	}
	if in.Destination.ToAddresses[0] != "client@example.com" {
		t.Errorf("to = %v", in.Destination.ToAddresses)
	}
}

func TestSendWithAttachment(t *testing.T) {
	api := &fakeSES{}
	sender := NewSender(api, "office@leadify.example", "", nil, testLogger())
	ics := "BEGIN:VCALENDAR\r\nMETHOD:REQUEST\r\nEND:VCALENDAR\r\n"

	_, err := sender.Send(context.Background(), Message{
		To:       "client@example.com",
		Subject:  "פגישה",
		HTMLBody: "<p>See you <b>soon</b></p>",
		Attachment: &Attachment{
			Filename:    "meeting.ics",
			ContentType: "text/calendar; charset=UTF-8; method=REQUEST",
			Data:        []byte(ics),
		},
	})
	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	raw := api.inputs[0].Content.Raw
	if raw == nil {
		t.Fatal("expected raw content")
	}

	parsed, err := mail.ReadMessage(bytes.NewReader(raw.Data))
	if err != nil {
		t.Fatalf("raw message does not parse: %v", err)
	}
	subject, err := new(mime.WordDecoder).DecodeHeader(parsed.Header.Get("Subject"))
	if err != nil || subject != "פגישה" {
		t.Errorf("subject = %q, %v", subject, err)
	}

	mediaType, params, err := mime.ParseMediaType(parsed.Header.Get("Content-Type"))
	if err != nil || mediaType != "multipart/mixed" {
		t.Fatalf("content type = %q, %v", mediaType, err)
	}

	reader := multipart.NewReader(parsed.Body, params["boundary"])
	var parts []string
	for {
		part, err := reader.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("next part: %v", err)
		}
		parts = append(parts, part.Header.Get("Content-Type"))
		if strings.HasPrefix(part.Header.Get("Content-Type"), "text/calendar") {
			if part.FileName() != "meeting.ics" {
				t.Errorf("attachment filename = %q", part.FileName())
			}
			body, _ := io.ReadAll(part)
			decoded, err := decodeBase64Lines(body)
			if err != nil || decoded != ics {
				t.Errorf("attachment = %q, %v", decoded, err)
			}
		}
	}
	if len(parts) != 2 || !strings.HasPrefix(parts[0], "multipart/alternative") {
		t.Errorf("parts = %v", parts)
	}
}

func TestSendErrorMapping(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantType types.ErrorType
	}{
		{"expired token", &smithy.GenericAPIError{Code: "ExpiredToken", Message: "expired"}, types.ErrorTypeAuthenticationRequired},
		{"throttled", &smithy.GenericAPIError{Code: "TooManyRequestsException", Message: "slow down"}, types.ErrorTypeTransportFailed},
		{"network", errors.New("connection reset"), types.ErrorTypeTransportFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sender := NewSender(&fakeSES{err: tt.err}, "office@leadify.example", "", nil, testLogger())
			_, err := sender.Send(context.Background(), Message{To: "a@b.example", Subject: "s", HTMLBody: "b"})
			if types.TypeOf(err) != tt.wantType {
				t.Errorf("error type = %q, want %q (%v)", types.TypeOf(err), tt.wantType, err)
			}
		})
	}
}

func TestRefresh(t *testing.T) {
	refresher := &fakeRefresher{}
	sender := NewSender(&fakeSES{}, "office@leadify.example", "", refresher, testLogger())
	sender.Refresh()
	if refresher.calls != 1 {
		t.Errorf("Invalidate calls = %d", refresher.calls)
	}

	// nil refresher is a no-op
	NewSender(&fakeSES{}, "office@leadify.example", "", nil, testLogger()).Refresh()
}

func TestStripTags(t *testing.T) {
	if got := stripTags("<p>Hello <b>Dana</b></p>"); got != "Hello Dana" {
		t.Errorf("stripTags() = %q", got)
	}
}

func decodeBase64Lines(body []byte) (string, error) {
	joined := strings.NewReplacer("\r", "", "\n", "").Replace(string(body))
	decoded, err := base64.StdEncoding.DecodeString(joined)
	return string(decoded), err
}
