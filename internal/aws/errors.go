// Package aws provides AWS SDK configuration, Parameter Store and S3
// access, and error classification shared by the transports.
package aws

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/aws/smithy-go"
)

// RetryConfig holds configuration for retry behavior with exponential backoff
type RetryConfig struct {
	MaxAttempts    int           // Maximum number of attempts (default: 3)
	InitialDelay   time.Duration // Initial delay before first retry (default: 500ms)
	MaxDelay       time.Duration // Maximum delay between retries (default: 5s)
	BackoffFactor  float64       // Multiplier for exponential backoff (default: 2.0)
	JitterFraction float64       // Fraction of delay to use for jitter (default: 0.1)
}

// DefaultRetryConfig returns the retry configuration used for startup
// lookups (parameters, template catalog)
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:    3,
		InitialDelay:   500 * time.Millisecond,
		MaxDelay:       5 * time.Second,
		BackoffFactor:  2.0,
		JitterFraction: 0.1,
	}
}

// RetryWithBackoff executes an operation with exponential backoff retry logic.
// Only throttling and service-side errors are retried.
func RetryWithBackoff(ctx context.Context, operation func() error, config RetryConfig, logger *slog.Logger) error {
	var lastErr error
	delay := config.InitialDelay

	for attempt := 1; attempt <= config.MaxAttempts; attempt++ {
		err := operation()
		if err == nil {
			if attempt > 1 {
				logger.Info("operation succeeded after retry", "attempt", attempt)
			}
			return nil
		}
		lastErr = err

		if !IsRetryableError(err) {
			return err
		}
		if attempt == config.MaxAttempts {
			break
		}

		jitter := time.Duration(float64(delay) * config.JitterFraction * (rand.Float64()*2 - 1))
		sleepTime := delay + jitter
		if sleepTime > config.MaxDelay {
			sleepTime = config.MaxDelay
		}

		logger.Warn("operation failed, retrying with backoff",
			"attempt", attempt,
			"max_attempts", config.MaxAttempts,
			"delay", sleepTime,
			"error", err)

		select {
		case <-ctx.Done():
			return fmt.Errorf("operation cancelled: %w", ctx.Err())
		case <-time.After(sleepTime):
		}

		delay = time.Duration(float64(delay) * config.BackoffFactor)
	}

	return fmt.Errorf("operation failed after %d attempts: %w", config.MaxAttempts, lastErr)
}

var (
	throttlingCodes = []string{
		"Throttling",
		"ThrottlingException",
		"TooManyRequestsException",
		"RequestLimitExceeded",
		"ProvisionedThroughputExceededException",
	}
	serviceCodes = []string{
		"ServiceUnavailable",
		"ServiceUnavailableException",
		"InternalError",
		"InternalServerError",
		"InternalFailure",
	}
	expiredCredentialCodes = []string{
		"ExpiredToken",
		"ExpiredTokenException",
		"RequestExpired",
		"InvalidClientTokenId",
		"UnrecognizedClientException",
		"InvalidSignatureException",
		"SignatureDoesNotMatch",
	}
)

func hasCode(err error, codes []string) bool {
	code := GetAWSErrorCode(err)
	if code == "" {
		return false
	}
	for _, c := range codes {
		if c == code {
			return true
		}
	}
	return false
}

// IsRetryableError determines if an AWS error should be retried
func IsRetryableError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return IsThrottlingError(err) || IsServiceError(err)
}

// IsThrottlingError checks if an error is a throttling error
func IsThrottlingError(err error) bool {
	return hasCode(err, throttlingCodes)
}

// IsServiceError checks if an error is a service unavailable error
func IsServiceError(err error) bool {
	return hasCode(err, serviceCodes)
}

// IsExpiredCredentialsError reports whether the caller's credentials were
// rejected as expired or invalid, which a credential refresh can fix
func IsExpiredCredentialsError(err error) bool {
	return hasCode(err, expiredCredentialCodes)
}

// GetAWSErrorCode extracts the error code from an AWS error
func GetAWSErrorCode(err error) string {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorCode()
	}
	return ""
}

// GetAWSErrorMessage extracts the error message from an AWS error
func GetAWSErrorMessage(err error) string {
	if err == nil {
		return ""
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorMessage()
	}
	return err.Error()
}

// WrapAWSError wraps an AWS error with additional context, keeping the
// original reachable through errors.As
func WrapAWSError(err error, operation string) error {
	if err == nil {
		return nil
	}
	if code := GetAWSErrorCode(err); code != "" {
		return fmt.Errorf("%s failed: [%s] %s: %w", operation, code, GetAWSErrorMessage(err), err)
	}
	return fmt.Errorf("%s failed: %w", operation, err)
}
