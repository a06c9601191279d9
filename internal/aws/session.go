package aws

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/credentials/stscreds"
	"github.com/aws/aws-sdk-go-v2/service/sts"
)

// SessionOptions selects region and credentials for SDK clients
type SessionOptions struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
}

// LoadConfig builds an SDK config. Static keys win over the default chain.
func LoadConfig(ctx context.Context, opts SessionOptions) (aws.Config, error) {
	var loadOpts []func(*config.LoadOptions) error
	if opts.Region != "" {
		loadOpts = append(loadOpts, config.WithRegion(opts.Region))
	}
	if opts.AccessKeyID != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKeyID, opts.SecretAccessKey, ""),
		))
	}

	cfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("failed to load AWS config: %w", err)
	}
	if cfg.Region == "" {
		cfg.Region = "eu-west-1"
	}
	return cfg, nil
}

// WithAssumedRole returns a copy of cfg whose credentials come from
// assuming roleARN. The returned cache can be invalidated to force a
// fresh AssumeRole call.
func WithAssumedRole(cfg aws.Config, roleARN, sessionName string) (aws.Config, *aws.CredentialsCache) {
	provider := stscreds.NewAssumeRoleProvider(sts.NewFromConfig(cfg), roleARN, func(o *stscreds.AssumeRoleOptions) {
		o.RoleSessionName = sessionName
		o.Duration = time.Hour
	})
	cache := aws.NewCredentialsCache(provider)

	assumed := cfg.Copy()
	assumed.Credentials = cache
	return assumed, cache
}

// CredentialsCache returns cfg's credentials as an invalidatable cache,
// wrapping them when the default chain did not already
func CredentialsCache(cfg aws.Config) (aws.Config, *aws.CredentialsCache) {
	if cache, ok := cfg.Credentials.(*aws.CredentialsCache); ok {
		return cfg, cache
	}
	wrapped := cfg.Copy()
	cache := aws.NewCredentialsCache(cfg.Credentials)
	wrapped.Credentials = cache
	return wrapped, cache
}
