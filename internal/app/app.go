// Package app wires the orchestrator from configuration and exposes the
// command surface shared by the Lambda handler and the local HTTP server.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/prometheus/client_golang/prometheus"

	awsutil "leadify-meeting-orchestrator/internal/aws"
	"leadify-meeting-orchestrator/internal/chat"
	"leadify-meeting-orchestrator/internal/config"
	"leadify-meeting-orchestrator/internal/datetime"
	"leadify-meeting-orchestrator/internal/graph"
	"leadify-meeting-orchestrator/internal/history"
	"leadify-meeting-orchestrator/internal/meetings"
	"leadify-meeting-orchestrator/internal/metrics"
	"leadify-meeting-orchestrator/internal/notify"
	"leadify-meeting-orchestrator/internal/ses"
	"leadify-meeting-orchestrator/internal/store"
	"leadify-meeting-orchestrator/internal/templates"
	"leadify-meeting-orchestrator/internal/types"
)

// sesSessionName tags the assumed SES role session in CloudTrail
const sesSessionName = "leadify-meeting-orchestrator"

// Calendar is the calendar provider surface the app uses
type Calendar interface {
	meetings.Calendar
	TestAccess(ctx context.Context) error
}

// Option overrides a collaborator New would otherwise build from config
type Option func(*options)

type options struct {
	registry prometheus.Registerer
	store    store.Store
	email    notify.EmailSender
	chat     notify.ChatSender
	calendar Calendar
}

// WithRegistry registers metrics on r instead of the default registry
func WithRegistry(r prometheus.Registerer) Option {
	return func(o *options) { o.registry = r }
}

// WithStore uses s instead of opening the configured store
func WithStore(s store.Store) Option {
	return func(o *options) { o.store = s }
}

// WithEmailSender replaces the SES transport
func WithEmailSender(e notify.EmailSender) Option {
	return func(o *options) { o.email = e }
}

// WithChatSender replaces the chat transport
func WithChatSender(c notify.ChatSender) Option {
	return func(o *options) { o.chat = c }
}

// WithCalendar replaces the Graph calendar provider
func WithCalendar(c Calendar) Option {
	return func(o *options) { o.calendar = c }
}

// App holds the wired orchestrator
type App struct {
	Config     *config.Config
	Logger     *slog.Logger
	Store      store.Store
	Meetings   *meetings.Manager
	History    *history.Aggregator
	Dispatcher *notify.Dispatcher
	Metrics    *metrics.Manager

	calendar Calendar
	closers  []func() error
}

// New builds every component from cfg. AWS is only contacted for what
// the configuration needs.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts ...Option) (*App, error) {
	o := &options{registry: prometheus.DefaultRegisterer}
	for _, opt := range opts {
		opt(o)
	}

	a := &App{Config: cfg, Logger: logger}
	ok := false
	defer func() {
		if !ok {
			_ = a.Close()
		}
	}()

	a.Metrics = metrics.NewManager(metrics.WithPrometheusRegistry(o.registry))

	a.Store = o.store
	if a.Store == nil {
		s, err := store.Open(ctx, store.Options{
			Driver:       cfg.Store.Driver,
			DatabaseURL:  cfg.Store.DatabaseURL,
			MaxOpenConns: cfg.Store.MaxOpenConns,
			MaxIdleConns: cfg.Store.MaxIdleConns,
			Migrate:      cfg.Store.Migrate,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to open store: %w", err)
		}
		a.Store = s
		a.closers = append(a.closers, s.Close)
	}

	awsConfig := sync.OnceValues(func() (aws.Config, error) {
		return awsutil.LoadConfig(ctx, awsutil.SessionOptions{
			Region:          cfg.AWS.Region,
			AccessKeyID:     cfg.AWS.AccessKeyID,
			SecretAccessKey: cfg.AWS.SecretAccessKey,
		})
	})
	var params *awsutil.ParameterStore
	secret := func(inline, parameter string) (string, error) {
		if inline != "" {
			return inline, nil
		}
		if params == nil {
			awsCfg, err := awsConfig()
			if err != nil {
				return "", err
			}
			params = awsutil.NewParameterStore(ssm.NewFromConfig(awsCfg), logger)
		}
		return params.Secret(ctx, inline, parameter)
	}

	dt := datetime.New(&datetime.DateTimeConfig{DefaultTimezone: cfg.Timezone})

	var s3api awsutil.S3API
	if strings.HasPrefix(cfg.Templates.Source, "s3://") {
		awsCfg, err := awsConfig()
		if err != nil {
			return nil, err
		}
		s3api = s3.NewFromConfig(awsCfg)
	}
	catalog, err := templates.LoadCatalog(ctx, cfg.Templates.Source, cfg.Templates.DefaultLanguage, s3api, logger)
	if err != nil {
		return nil, err
	}

	email := o.email
	if email == nil {
		awsCfg, err := awsConfig()
		if err != nil {
			return nil, err
		}
		var cache *aws.CredentialsCache
		if cfg.AWS.SESRoleARN != "" {
			awsCfg, cache = awsutil.WithAssumedRole(awsCfg, cfg.AWS.SESRoleARN, sesSessionName)
		} else {
			awsCfg, cache = awsutil.CredentialsCache(awsCfg)
		}
		email = ses.NewSender(sesv2.NewFromConfig(awsCfg), cfg.Email.Sender, cfg.Email.ConfigurationSet, cache, logger)
	}

	a.calendar = o.calendar
	if a.calendar == nil && cfg.Graph.Enabled() {
		clientSecret, err := secret(cfg.Graph.ClientSecret, cfg.Graph.ClientSecretParameter)
		if err != nil {
			return nil, fmt.Errorf("failed to load graph client secret: %w", err)
		}
		a.calendar = graph.NewClient(graph.Config{
			BaseURL:      cfg.Graph.BaseURL,
			TokenURL:     cfg.Graph.TokenURL,
			TenantID:     cfg.Graph.TenantID,
			ClientID:     cfg.Graph.ClientID,
			ClientSecret: clientSecret,
			Organizer:    cfg.Graph.Organizer,
		}, logger)
	}

	chatSender := o.chat
	if chatSender == nil && cfg.Chat.Enabled() {
		token, err := secret(cfg.Chat.Token, cfg.Chat.TokenParameter)
		if err != nil {
			return nil, fmt.Errorf("failed to load chat token: %w", err)
		}
		chatSender = chat.NewClient(chat.Config{
			BaseURL:       cfg.Chat.BaseURL,
			PhoneNumberID: cfg.Chat.PhoneNumberID,
			Token:         token,
		}, logger)
	}

	var guard notify.Guard
	if cfg.Redis.URL != "" {
		g, err := notify.NewRedisGuard(ctx, cfg.Redis.URL, time.Duration(cfg.Redis.DedupeTTLSeconds)*time.Second)
		if err != nil {
			logger.Warn("duplicate-send guard disabled", "error", err)
		} else {
			guard = g
			a.closers = append(a.closers, g.Close)
		}
	}

	duration := time.Duration(cfg.MeetingDurationMinutes) * time.Minute

	deps := notify.Dependencies{
		Catalog:  catalog,
		Resolver: templates.NewResolver(a.Store, dt),
		DateTime: dt,
		Email:    email,
		Chat:     chatSender,
		Calendar: a.calendar,
		Guard:    guard,
		Audit:    a.Store,
		Metrics:  a.Metrics,
		Logger:   logger,
	}
	a.Dispatcher = notify.NewDispatcher(deps, notify.Config{
		ManagedDomains:  cfg.Email.ManagedCalendarDomains,
		MaxConcurrency:  cfg.Dispatch.MaxConcurrency,
		MeetingDuration: duration,
		OrganizerEmail:  cfg.Email.Sender,
	})

	a.Meetings = meetings.NewManager(meetings.Dependencies{
		Store:    a.Store,
		Calendar: a.calendar,
		Notifier: a.Dispatcher,
		DateTime: dt,
		Metrics:  a.Metrics,
		Logger:   logger,
	}, meetings.Config{
		Venues:          venueTable(cfg.Venues),
		MeetingDuration: duration,
	})

	a.History = history.NewAggregator(a.Store, logger)

	logger.Info("orchestrator ready",
		"store", cfg.Store.Driver,
		"timezone", cfg.Timezone,
		"calendar", a.calendar != nil,
		"chat", chatSender != nil,
		"dedupe", guard != nil)
	ok = true
	return a, nil
}

func venueTable(cfg config.VenuesConfig) *meetings.VenueTable {
	rules := make([]meetings.Rule, 0, len(cfg.Rules))
	for _, r := range cfg.Rules {
		rules = append(rules, meetings.Rule{Keywords: r.Keywords, Variant: types.EventKind(r.Variant)})
	}
	return meetings.NewVenueTable(rules, cfg.VirtualMarkers)
}

// CheckCalendarAccess verifies the calendar provider credentials
func (a *App) CheckCalendarAccess(ctx context.Context) error {
	if a.calendar == nil {
		return types.Errorf(types.ErrorTypeCalendarProvisioningFailed, "calendar provider is not configured")
	}
	if err := a.calendar.TestAccess(ctx); err != nil {
		return types.NewError(types.ErrorTypeCalendarProvisioningFailed, "calendar access check failed", err)
	}
	return nil
}

// Close releases connections in reverse order of creation
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
