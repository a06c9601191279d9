package config

import (
	"log/slog"
	"strings"
	"testing"
)

func TestIsValidEmail(t *testing.T) {
	tests := []struct {
		name  string
		email string
		want  bool
	}{
		{"valid email", "office@firm.example", true},
		{"valid email with subdomain", "user@mail.firm.example", true},
		{"empty email", "", false},
		{"no @ symbol", "officefirm.example", false},
		{"no domain", "office@", false},
		{"no local part", "@firm.example", false},
		{"no dot in domain", "office@firm", false},
		{"multiple @ symbols", "office@@firm.example", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isValidEmail(tt.email); got != tt.want {
				t.Errorf("isValidEmail(%q) = %v, want %v", tt.email, got, tt.want)
			}
		})
	}
}

func TestIsValidURL(t *testing.T) {
	tests := []struct {
		name string
		url  string
		want bool
	}{
		{"valid https URL", "https://graph.microsoft.com/v1.0", true},
		{"valid http URL", "http://localhost:9000", true},
		{"empty URL", "", false},
		{"no protocol", "graph.microsoft.com", false},
		{"invalid protocol", "ftp://graph.microsoft.com", false},
		{"protocol only", "https://", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isValidURL(tt.url); got != tt.want {
				t.Errorf("isValidURL(%q) = %v, want %v", tt.url, got, tt.want)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg := New()
		cfg.Venues.Rules = DefaultVenueRules()
		cfg.Venues.VirtualMarkers = DefaultVirtualMarkers()
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
		errMsg  string
	}{
		{name: "defaults are valid", mutate: func(*Config) {}},
		{
			name:    "bad log level",
			mutate:  func(c *Config) { c.LogLevel = "verbose" },
			wantErr: true,
			errMsg:  "log_level",
		},
		{
			name:    "bad timezone",
			mutate:  func(c *Config) { c.Timezone = "Mars/Base" },
			wantErr: true,
			errMsg:  "timezone",
		},
		{
			name:    "postgres without url",
			mutate:  func(c *Config) { c.Store.Driver = "postgres" },
			wantErr: true,
			errMsg:  "store.database_url",
		},
		{
			name:    "unknown store driver",
			mutate:  func(c *Config) { c.Store.Driver = "sqlite" },
			wantErr: true,
			errMsg:  "store.driver",
		},
		{
			name:    "bad redis url",
			mutate:  func(c *Config) { c.Redis.URL = "localhost:6379" },
			wantErr: true,
			errMsg:  "redis.url",
		},
		{
			name:    "bad role arn",
			mutate:  func(c *Config) { c.AWS.SESRoleARN = "role/ses" },
			wantErr: true,
			errMsg:  "aws.ses_role_arn",
		},
		{
			name:    "half static credentials",
			mutate:  func(c *Config) { c.AWS.AccessKeyID = "AKIA" },
			wantErr: true,
			errMsg:  "aws.access_key_id",
		},
		{
			name: "graph missing secret and organizer",
			mutate: func(c *Config) {
				c.Graph.TenantID = "t"
				c.Graph.ClientID = "c"
			},
			wantErr: true,
			errMsg:  "graph.organizer",
		},
		{
			name: "complete graph",
			mutate: func(c *Config) {
				c.Graph.TenantID = "t"
				c.Graph.ClientID = "c"
				c.Graph.ClientSecretParameter = "/leadify/graph"
				c.Graph.Organizer = "calendar@firm.example"
			},
		},
		{
			name:    "chat without token",
			mutate:  func(c *Config) { c.Chat.PhoneNumberID = "1055" },
			wantErr: true,
			errMsg:  "chat.token_parameter",
		},
		{
			name:    "unknown venue variant",
			mutate:  func(c *Config) { c.Venues.Rules = []VenueRule{{Keywords: []string{"x"}, Variant: "invitation_z"}} },
			wantErr: true,
			errMsg:  "venues.rules[0].variant",
		},
		{
			name:    "zero concurrency",
			mutate:  func(c *Config) { c.Dispatch.MaxConcurrency = 0 },
			wantErr: true,
			errMsg:  "dispatch.max_concurrency",
		},
		{
			name:    "domain with at sign",
			mutate:  func(c *Config) { c.Email.ManagedCalendarDomains = []string{"a@firm.example"} },
			wantErr: true,
			errMsg:  "email.managed_calendar_domains",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := Validate(cfg)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr && !strings.Contains(err.Error(), tt.errMsg) {
				t.Errorf("Validate() error = %v, want it to mention %q", err, tt.errMsg)
			}
		})
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"error":   slog.LevelError,
		"unknown": slog.LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}
