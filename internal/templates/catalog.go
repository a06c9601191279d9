// Package templates holds the notification template catalog and resolves
// the parameters that fill it.
package templates

import (
	"bytes"
	"context"
	_ "embed"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	awsutil "leadify-meeting-orchestrator/internal/aws"
	"leadify-meeting-orchestrator/internal/types"
)

// BuiltinSource names the catalog compiled into the binary
const BuiltinSource = "builtin"

//go:embed catalog.yaml
var builtinCatalog []byte

// Template is one (kind, language, channel) entry of the catalog
type Template struct {
	ID       string          `yaml:"id"`
	Kind     types.EventKind `yaml:"kind"`
	Language string          `yaml:"language"`
	Channel  types.Channel   `yaml:"channel"`

	// Email
	Subject string `yaml:"subject,omitempty"`
	Body    string `yaml:"body,omitempty"`

	// Chat: provider template name, declared parameter count and the
	// parameter type feeding each position
	Name       string   `yaml:"name,omitempty"`
	ParamCount *int     `yaml:"param_count,omitempty"`
	Params     []string `yaml:"params,omitempty"`
}

type catalogFile struct {
	DefaultLanguage string     `yaml:"default_language"`
	Templates       []Template `yaml:"templates"`
}

type lookupKey struct {
	kind     types.EventKind
	language string
	channel  types.Channel
}

// Catalog indexes templates by kind, language and channel
type Catalog struct {
	defaultLanguage string
	byKey           map[lookupKey]Template
}

// ParseCatalog decodes and validates a YAML catalog. defaultLanguage
// overrides the file's default when set.
func ParseCatalog(data []byte, defaultLanguage string) (*Catalog, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, fmt.Errorf("templates: catalog is empty")
	}
	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("templates: decode catalog: %w", err)
	}

	c := &Catalog{defaultLanguage: file.DefaultLanguage, byKey: map[lookupKey]Template{}}
	if defaultLanguage != "" {
		c.defaultLanguage = defaultLanguage
	}

	for i, t := range file.Templates {
		if err := validateTemplate(t); err != nil {
			return nil, fmt.Errorf("templates: entry %d: %w", i, err)
		}
		t.Language = strings.ToLower(t.Language)
		key := lookupKey{kind: t.Kind, language: t.Language, channel: t.Channel}
		if existing, ok := c.byKey[key]; ok {
			return nil, fmt.Errorf("templates: %s duplicates %s", t.ID, existing.ID)
		}
		c.byKey[key] = t
	}
	return c, nil
}

func validateTemplate(t Template) error {
	if t.ID == "" {
		return fmt.Errorf("id is required")
	}
	if t.Kind == "" || t.Language == "" {
		return fmt.Errorf("%s: kind and language are required", t.ID)
	}
	switch t.Channel {
	case types.ChannelEmail:
		if t.Subject == "" || t.Body == "" {
			return fmt.Errorf("%s: email templates need subject and body", t.ID)
		}
	case types.ChannelChat:
		if t.Name == "" {
			return fmt.Errorf("%s: chat templates need a provider name", t.ID)
		}
		if t.ParamCount == nil {
			return fmt.Errorf("%s: chat templates must declare param_count", t.ID)
		}
		if *t.ParamCount < 0 {
			return fmt.Errorf("%s: param_count must not be negative", t.ID)
		}
	default:
		return fmt.Errorf("%s: unknown channel %q", t.ID, t.Channel)
	}
	return nil
}

// LoadCatalog reads the catalog from "builtin", a file path or an
// s3://bucket/key object. s3api may be nil when no S3 source is used.
func LoadCatalog(ctx context.Context, source, defaultLanguage string, s3api awsutil.S3API, logger *slog.Logger) (*Catalog, error) {
	var (
		data []byte
		err  error
	)
	switch {
	case source == "" || source == BuiltinSource:
		data = builtinCatalog
	case strings.HasPrefix(source, "s3://"):
		if s3api == nil {
			return nil, fmt.Errorf("templates: %s requires an S3 client", source)
		}
		data, err = awsutil.ReadObject(ctx, s3api, source, logger)
	default:
		data, err = os.ReadFile(source)
	}
	if err != nil {
		return nil, fmt.Errorf("templates: read %s: %w", source, err)
	}

	catalog, err := ParseCatalog(data, defaultLanguage)
	if err != nil {
		return nil, err
	}
	logger.Info("loaded template catalog", "source", source, "templates", len(catalog.byKey), "default_language", catalog.defaultLanguage)
	return catalog, nil
}

// DefaultLanguage is used for recipients without a language
func (c *Catalog) DefaultLanguage() string {
	return c.defaultLanguage
}

// Lookup finds the template for an exact (kind, language, channel).
// There is no language fallback.
func (c *Catalog) Lookup(kind types.EventKind, language string, channel types.Channel) (Template, error) {
	key := lookupKey{kind: kind, language: strings.ToLower(language), channel: channel}
	t, ok := c.byKey[key]
	if !ok {
		return Template{}, types.Errorf(types.ErrorTypeTemplateNotFound,
			"no %s template for %s in language %q", channel, kind, language)
	}
	return t, nil
}
