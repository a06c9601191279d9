// Package config provides configuration validation functionality.
package config

import (
	"fmt"
	"net/url"
	"strings"

	"leadify-meeting-orchestrator/internal/datetime"
)

// ValidationError represents a configuration validation error
type ValidationError struct {
	Field   string
	Message string
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for %s: %s", e.Field, e.Message)
}

// ValidationErrors represents multiple validation errors
type ValidationErrors struct {
	Errors []ValidationError
}

// Error implements the error interface
func (e *ValidationErrors) Error() string {
	if len(e.Errors) == 0 {
		return "no validation errors"
	}
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	var messages []string
	for _, err := range e.Errors {
		messages = append(messages, err.Error())
	}
	return fmt.Sprintf("multiple validation errors:\n  - %s", strings.Join(messages, "\n  - "))
}

// Add adds a validation error
func (e *ValidationErrors) Add(field, message string) {
	e.Errors = append(e.Errors, ValidationError{
		Field:   field,
		Message: message,
	})
}

// HasErrors returns true if there are validation errors
func (e *ValidationErrors) HasErrors() bool {
	return len(e.Errors) > 0
}

var (
	logLevels     = []string{"debug", "info", "warn", "error"}
	logFormats    = []string{"text", "json"}
	storeDrivers  = []string{"memory", "postgres"}
	venueVariants = []string{"invitation_a", "invitation_b", "invitation_b_parking", "invitation_default"}
)

// Validate checks the whole configuration and reports every problem at once
func Validate(cfg *Config) error {
	errs := &ValidationErrors{}

	if !oneOf(strings.ToLower(cfg.LogLevel), logLevels) {
		errs.Add("log_level", fmt.Sprintf("must be one of %s", strings.Join(logLevels, ", ")))
	}
	if !oneOf(strings.ToLower(cfg.LogFormat), logFormats) {
		errs.Add("log_format", fmt.Sprintf("must be one of %s", strings.Join(logFormats, ", ")))
	}
	if _, err := datetime.LoadZone(cfg.Timezone); err != nil {
		errs.Add("timezone", err.Error())
	}
	if cfg.MeetingDurationMinutes <= 0 || cfg.MeetingDurationMinutes > 24*60 {
		errs.Add("meeting_duration_minutes", "must be between 1 and 1440")
	}

	if !oneOf(cfg.Store.Driver, storeDrivers) {
		errs.Add("store.driver", fmt.Sprintf("must be one of %s", strings.Join(storeDrivers, ", ")))
	}
	if cfg.Store.Driver == "postgres" && cfg.Store.DatabaseURL == "" {
		errs.Add("store.database_url", "is required for the postgres driver")
	}

	if cfg.Redis.URL != "" {
		if !strings.HasPrefix(cfg.Redis.URL, "redis://") && !strings.HasPrefix(cfg.Redis.URL, "rediss://") {
			errs.Add("redis.url", "must start with redis:// or rediss://")
		}
		if cfg.Redis.DedupeTTLSeconds <= 0 {
			errs.Add("redis.dedupe_ttl_seconds", "must be positive")
		}
	}

	if cfg.AWS.Region == "" {
		errs.Add("aws.region", "is required")
	}
	if cfg.AWS.SESRoleARN != "" && !isValidARN(cfg.AWS.SESRoleARN) {
		errs.Add("aws.ses_role_arn", "invalid ARN format")
	}
	if (cfg.AWS.AccessKeyID == "") != (cfg.AWS.SecretAccessKey == "") {
		errs.Add("aws.access_key_id", "access_key_id and secret_access_key must be set together")
	}

	if cfg.Email.Sender == "" {
		errs.Add("email.sender", "is required")
	} else if !isValidEmail(cfg.Email.Sender) {
		errs.Add("email.sender", "invalid sender format")
	}
	for _, d := range cfg.Email.ManagedCalendarDomains {
		if strings.TrimSpace(d) == "" || strings.Contains(d, "@") {
			errs.Add("email.managed_calendar_domains", fmt.Sprintf("invalid domain %q", d))
		}
	}

	if cfg.Graph.Enabled() {
		if cfg.Graph.TenantID == "" {
			errs.Add("graph.tenant_id", "is required when graph is configured")
		}
		if cfg.Graph.ClientID == "" {
			errs.Add("graph.client_id", "is required when graph is configured")
		}
		if cfg.Graph.ClientSecret == "" && cfg.Graph.ClientSecretParameter == "" {
			errs.Add("graph.client_secret_parameter", "client_secret or client_secret_parameter is required")
		}
		if !isValidEmail(cfg.Graph.Organizer) {
			errs.Add("graph.organizer", "must be the organizer mailbox address")
		}
		if !isValidURL(cfg.Graph.BaseURL) {
			errs.Add("graph.base_url", "invalid URL")
		}
	}

	if cfg.Chat.Enabled() {
		if !isValidURL(cfg.Chat.BaseURL) {
			errs.Add("chat.base_url", "invalid URL")
		}
		if cfg.Chat.Token == "" && cfg.Chat.TokenParameter == "" {
			errs.Add("chat.token_parameter", "token or token_parameter is required")
		}
	}

	if cfg.Templates.Source == "" {
		errs.Add("templates.source", "is required")
	}
	if cfg.Templates.DefaultLanguage == "" {
		errs.Add("templates.default_language", "is required")
	}

	for i, rule := range cfg.Venues.Rules {
		field := fmt.Sprintf("venues.rules[%d]", i)
		if len(rule.Keywords) == 0 {
			errs.Add(field+".keywords", "at least one keyword is required")
		}
		if !oneOf(rule.Variant, venueVariants) {
			errs.Add(field+".variant", fmt.Sprintf("must be one of %s", strings.Join(venueVariants, ", ")))
		}
	}

	if cfg.Dispatch.MaxConcurrency < 1 {
		errs.Add("dispatch.max_concurrency", "must be at least 1")
	}

	if errs.HasErrors() {
		return errs
	}
	return nil
}

func oneOf(v string, allowed []string) bool {
	for _, a := range allowed {
		if v == a {
			return true
		}
	}
	return false
}

// isValidEmail performs a basic shape check on an email address
func isValidEmail(email string) bool {
	at := strings.Index(email, "@")
	if at <= 0 || at != strings.LastIndex(email, "@") {
		return false
	}
	domain := email[at+1:]
	return domain != "" && strings.Contains(domain, ".") && !strings.HasPrefix(domain, ".")
}

// isValidURL accepts absolute http(s) URLs with a host
func isValidURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// isValidARN checks the arn:partition:service:region:account:resource shape
func isValidARN(arn string) bool {
	parts := strings.SplitN(arn, ":", 6)
	return len(parts) == 6 && parts[0] == "arn" && parts[2] != "" && parts[5] != ""
}
