// Package config provides configuration loading and management functionality.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const (
	// EnvPrefix prefixes every environment override
	EnvPrefix = "LEADIFY_"

	// EnvConfigPath names the optional YAML config file
	EnvConfigPath = "LEADIFY_CONFIG"
)

// Config is the orchestrator configuration
type Config struct {
	LogLevel               string          `koanf:"log_level"`
	LogFormat              string          `koanf:"log_format"`
	Timezone               string          `koanf:"timezone"`
	MeetingDurationMinutes int             `koanf:"meeting_duration_minutes"`
	Store                  StoreConfig     `koanf:"store"`
	Redis                  RedisConfig     `koanf:"redis"`
	AWS                    AWSConfig       `koanf:"aws"`
	Email                  EmailConfig     `koanf:"email"`
	Graph                  GraphConfig     `koanf:"graph"`
	Chat                   ChatConfig      `koanf:"chat"`
	Templates              TemplatesConfig `koanf:"templates"`
	Venues                 VenuesConfig    `koanf:"venues"`
	Dispatch               DispatchConfig  `koanf:"dispatch"`
	HTTP                   HTTPConfig      `koanf:"http"`
}

// StoreConfig selects and configures persistence
type StoreConfig struct {
	Driver       string `koanf:"driver"`
	DatabaseURL  string `koanf:"database_url"`
	MaxOpenConns int    `koanf:"max_open_conns"`
	MaxIdleConns int    `koanf:"max_idle_conns"`
	Migrate      bool   `koanf:"migrate"`
}

// RedisConfig configures the duplicate-send guard. Empty URL disables it.
type RedisConfig struct {
	URL              string `koanf:"url"`
	DedupeTTLSeconds int    `koanf:"dedupe_ttl_seconds"`
}

// AWSConfig holds AWS SDK settings shared by SES, SSM and S3
type AWSConfig struct {
	Region          string `koanf:"region"`
	SESRoleARN      string `koanf:"ses_role_arn"`
	AccessKeyID     string `koanf:"access_key_id"`
	SecretAccessKey string `koanf:"secret_access_key"`
}

// EmailConfig configures the email transport
type EmailConfig struct {
	Sender                 string   `koanf:"sender"`
	ConfigurationSet       string   `koanf:"configuration_set"`
	ManagedCalendarDomains []string `koanf:"managed_calendar_domains"`
}

// GraphConfig configures the calendar provider
type GraphConfig struct {
	TenantID              string `koanf:"tenant_id"`
	ClientID              string `koanf:"client_id"`
	ClientSecret          string `koanf:"client_secret"`
	ClientSecretParameter string `koanf:"client_secret_parameter"`
	Organizer             string `koanf:"organizer"`
	BaseURL               string `koanf:"base_url"`
	TokenURL              string `koanf:"token_url"`
}

// Enabled reports whether calendar provisioning is configured
func (g GraphConfig) Enabled() bool {
	return g.TenantID != "" || g.ClientID != ""
}

// ChatConfig configures the chat transport
type ChatConfig struct {
	BaseURL        string `koanf:"base_url"`
	PhoneNumberID  string `koanf:"phone_number_id"`
	Token          string `koanf:"token"`
	TokenParameter string `koanf:"token_parameter"`
}

// Enabled reports whether the chat transport is configured
func (c ChatConfig) Enabled() bool {
	return c.PhoneNumberID != ""
}

// TemplatesConfig locates the template catalog: "builtin", a file path or
// an s3://bucket/key object
type TemplatesConfig struct {
	Source          string `koanf:"source"`
	DefaultLanguage string `koanf:"default_language"`
}

// VenueRule maps a location to an invitation variant. Every keyword must
// occur in the location, case-insensitively.
type VenueRule struct {
	Keywords []string `koanf:"keywords"`
	Variant  string   `koanf:"variant"`
}

// VenuesConfig drives invitation selection and virtual-venue detection
type VenuesConfig struct {
	VirtualMarkers []string    `koanf:"virtual_markers"`
	Rules          []VenueRule `koanf:"rules"`
}

// DispatchConfig bounds notification fan-out
type DispatchConfig struct {
	MaxConcurrency int `koanf:"max_concurrency"`
}

// HTTPConfig configures the local HTTP server
type HTTPConfig struct {
	Addr string `koanf:"addr"`
}

// New returns the defaults. Slice defaults are applied after loading so a
// shorter list from file or env replaces them instead of merging.
func New() *Config {
	return &Config{
		LogLevel:               "info",
		LogFormat:              "text",
		Timezone:               "Asia/Jerusalem",
		MeetingDurationMinutes: 60,
		Store: StoreConfig{
			Driver:       "memory",
			MaxOpenConns: 10,
			MaxIdleConns: 5,
			Migrate:      true,
		},
		Redis: RedisConfig{
			DedupeTTLSeconds: 86400,
		},
		AWS: AWSConfig{
			Region: "eu-west-1",
		},
		Email: EmailConfig{
			Sender: "office@leadify.example",
		},
		Graph: GraphConfig{
			BaseURL: "https://graph.microsoft.com/v1.0",
		},
		Chat: ChatConfig{
			BaseURL: "https://graph.facebook.com/v19.0",
		},
		Templates: TemplatesConfig{
			Source:          "builtin",
			DefaultLanguage: "en",
		},
		Dispatch: DispatchConfig{
			MaxConcurrency: 5,
		},
		HTTP: HTTPConfig{
			Addr: ":8080",
		},
	}
}

// DefaultVenueRules is the built-in venue table, most specific first
func DefaultVenueRules() []VenueRule {
	return []VenueRule{
		{Keywords: []string{"venue-b", "parking"}, Variant: "invitation_b_parking"},
		{Keywords: []string{"venue-b"}, Variant: "invitation_b"},
		{Keywords: []string{"venue-a"}, Variant: "invitation_a"},
	}
}

// DefaultVirtualMarkers are location substrings that denote an online meeting
func DefaultVirtualMarkers() []string {
	return []string{"virtual", "teams", "zoom", "online"}
}

// listKeys are settings given as comma-separated lists in the environment
var listKeys = map[string]struct{}{
	"email.managed_calendar_domains": {},
	"venues.virtual_markers":         {},
}

func splitList(value string) []string {
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// Load builds a Config by layering defaults, optional file, and env vars.
// Order of precedence (low -> high):
//  1. defaults (New())
//  2. file (YAML) if LEADIFY_CONFIG is set
//  3. env (prefix LEADIFY_, "__" separates sections, e.g.
//     LEADIFY_STORE__DATABASE_URL -> store.database_url)
func Load() (*Config, error) {
	return LoadFrom(os.Getenv(EnvConfigPath))
}

// LoadFrom is Load with an explicit config file path; empty skips the file
func LoadFrom(path string) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	envProvider := env.ProviderWithValue(EnvPrefix, ".", func(key, value string) (string, any) {
		key = strings.ToLower(strings.TrimPrefix(key, EnvPrefix))
		key = strings.ReplaceAll(key, "__", ".")
		if _, ok := listKeys[key]; ok {
			return key, splitList(value)
		}
		return key, value
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment config: %w", err)
	}
	// The file path itself is not a setting
	k.Delete("config")

	cfg := *New()
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if len(cfg.Venues.Rules) == 0 {
		cfg.Venues.Rules = DefaultVenueRules()
	}
	if len(cfg.Venues.VirtualMarkers) == 0 {
		cfg.Venues.VirtualMarkers = DefaultVirtualMarkers()
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
