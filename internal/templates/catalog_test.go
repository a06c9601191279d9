package templates

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"leadify-meeting-orchestrator/internal/types"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestBuiltinCatalogLoads(t *testing.T) {
	catalog, err := LoadCatalog(context.Background(), BuiltinSource, "", nil, testLogger())
	if err != nil {
		t.Fatalf("LoadCatalog(builtin) error = %v", err)
	}
	if catalog.DefaultLanguage() != "en" {
		t.Errorf("DefaultLanguage() = %q", catalog.DefaultLanguage())
	}

	kinds := []types.EventKind{
		types.KindInvitationA, types.KindInvitationB, types.KindInvitationBParking, types.KindInvitationDefault,
		types.KindReminder, types.KindCancellation, types.KindRescheduled,
	}
	for _, kind := range kinds {
		if _, err := catalog.Lookup(kind, "en", types.ChannelEmail); err != nil {
			t.Errorf("builtin catalog lacks an English email template for %s", kind)
		}
	}
}

func TestLookupHasNoFallback(t *testing.T) {
	catalog, err := ParseCatalog([]byte(`
default_language: en
templates:
  - id: reminder_en_email
    kind: reminder
    language: EN
    channel: email
    subject: s
    body: b
`), "")
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name     string
		kind     types.EventKind
		language string
		channel  types.Channel
		wantErr  bool
	}{
		{"exact match", types.KindReminder, "en", types.ChannelEmail, false},
		{"language is case-insensitive", types.KindReminder, "En", types.ChannelEmail, false},
		{"other language does not fall back", types.KindReminder, "he", types.ChannelEmail, true},
		{"other channel does not fall back", types.KindReminder, "en", types.ChannelChat, true},
		{"other kind", types.KindCancellation, "en", types.ChannelEmail, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := catalog.Lookup(tt.kind, tt.language, tt.channel)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Lookup() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && types.TypeOf(err) != types.ErrorTypeTemplateNotFound {
				t.Errorf("error type = %q", types.TypeOf(err))
			}
		})
	}
}

func TestParseCatalogValidation(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"empty", "", "empty"},
		{"chat without param count", `
templates:
  - {id: c, kind: reminder, language: en, channel: chat, name: reminder_en}
`, "param_count"},
		{"email without body", `
templates:
  - {id: e, kind: reminder, language: en, channel: email, subject: s}
`, "subject and body"},
		{"unknown channel", `
templates:
  - {id: x, kind: reminder, language: en, channel: fax}
`, "unknown channel"},
		{"duplicate key", `
templates:
  - {id: a, kind: reminder, language: en, channel: email, subject: s, body: b}
  - {id: b, kind: reminder, language: en, channel: email, subject: s, body: b}
`, "duplicates"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseCatalog([]byte(tt.yaml), "")
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("ParseCatalog() error = %v, want containing %q", err, tt.want)
			}
		})
	}
}

func TestLoadCatalogFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	data := `
default_language: he
templates:
  - {id: r, kind: reminder, language: he, channel: chat, name: rem_he, param_count: 0}
`
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatal(err)
	}

	catalog, err := LoadCatalog(context.Background(), path, "", nil, testLogger())
	if err != nil {
		t.Fatalf("LoadCatalog(file) error = %v", err)
	}
	if catalog.DefaultLanguage() != "he" {
		t.Errorf("DefaultLanguage() = %q", catalog.DefaultLanguage())
	}

	overridden, err := LoadCatalog(context.Background(), path, "en", nil, testLogger())
	if err != nil || overridden.DefaultLanguage() != "en" {
		t.Errorf("configured default language not applied: %v", err)
	}

	if _, err := LoadCatalog(context.Background(), "s3://bucket/key.yaml", "", nil, testLogger()); err == nil {
		t.Error("s3 source without a client should fail")
	}
}
