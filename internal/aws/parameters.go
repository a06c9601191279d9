package aws

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
)

// SSMAPI is the Parameter Store surface used here
type SSMAPI interface {
	GetParameter(ctx context.Context, params *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
}

// ParameterStore reads decrypted SecureString parameters and caches them
// for the life of the process
type ParameterStore struct {
	api    SSMAPI
	logger *slog.Logger

	mu    sync.Mutex
	cache map[string]string
}

// NewParameterStore creates a caching parameter reader
func NewParameterStore(api SSMAPI, logger *slog.Logger) *ParameterStore {
	return &ParameterStore{api: api, logger: logger, cache: map[string]string{}}
}

// Get returns the decrypted value of a parameter
func (p *ParameterStore) Get(ctx context.Context, name string) (string, error) {
	p.mu.Lock()
	if v, ok := p.cache[name]; ok {
		p.mu.Unlock()
		return v, nil
	}
	p.mu.Unlock()

	var out *ssm.GetParameterOutput
	err := RetryWithBackoff(ctx, func() error {
		var err error
		out, err = p.api.GetParameter(ctx, &ssm.GetParameterInput{
			Name:           aws.String(name),
			WithDecryption: aws.Bool(true),
		})
		return err
	}, DefaultRetryConfig(), p.logger)
	if err != nil {
		return "", WrapAWSError(err, fmt.Sprintf("GetParameter %s", name))
	}
	if out.Parameter == nil || aws.ToString(out.Parameter.Value) == "" {
		return "", fmt.Errorf("parameter %s is empty", name)
	}

	value := aws.ToString(out.Parameter.Value)
	p.mu.Lock()
	p.cache[name] = value
	p.mu.Unlock()

	p.logger.Debug("loaded parameter", "name", name)
	return value, nil
}

// Forget drops a cached value so the next Get reads it again
func (p *ParameterStore) Forget(name string) {
	p.mu.Lock()
	delete(p.cache, name)
	p.mu.Unlock()
}

// Secret resolves a secret that is either configured inline or stored in
// Parameter Store; the inline value wins
func (p *ParameterStore) Secret(ctx context.Context, inline, parameter string) (string, error) {
	if inline != "" {
		return inline, nil
	}
	if parameter == "" {
		return "", fmt.Errorf("no secret or parameter configured")
	}
	return p.Get(ctx, parameter)
}
