// Package generation wraps a generation provider with per-attempt timeouts
// and bounded exponential backoff.
package generation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/kailas-cloud/docqa/internal/backoff"
	"github.com/kailas-cloud/docqa/internal/domain"
	"github.com/kailas-cloud/docqa/internal/metrics"
)

// Defaults applied when Options leaves a field at zero.
const (
	DefaultMaxAttempts = 3
	DefaultBackoff     = time.Second
	DefaultTimeout     = 120 * time.Second
)

// Options configures the retry policy.
type Options struct {
	Timeout     time.Duration // per attempt
	MaxAttempts int
	Backoff     time.Duration // wait after the first failure, doubled after each further one
	Logger      *zap.Logger
}

// Client calls a domain.Generator until it succeeds, fails terminally or runs out of attempts.
type Client struct {
	provider    domain.Generator
	timeout     time.Duration
	maxAttempts int
	backoff     time.Duration
	logger      *zap.Logger
}

// New creates a Client.
func New(p domain.Generator, opts Options) *Client {
	c := &Client{
		provider:    p,
		timeout:     opts.Timeout,
		maxAttempts: opts.MaxAttempts,
		backoff:     opts.Backoff,
		logger:      opts.Logger,
	}
	if c.timeout <= 0 {
		c.timeout = DefaultTimeout
	}
	if c.maxAttempts <= 0 {
		c.maxAttempts = DefaultMaxAttempts
	}
	if c.backoff < 0 {
		c.backoff = DefaultBackoff
	}
	if c.logger == nil {
		c.logger = zap.NewNop()
	}
	return c
}

// Generate returns the answer text for prompt.
//
// 4xx responses and configuration errors end the call at once. 5xx responses
// and transport failures are retried after backoff*2^(n-1), where n is the
// failed attempt number; when attempts run out the last *domain.UpstreamError
// is returned.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	name := c.provider.Name()
	if !c.provider.Configured() {
		return "", fmt.Errorf("%w: %s api key is not set", domain.ErrConfiguration, name)
	}

	metrics.GenerationPromptChars.Observe(float64(utf8.RuneCountInString(prompt)))

	var lastErr error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		if attempt > 1 {
			wait := backoff.Delay(c.backoff, attempt)
			metrics.GenerationRetriesTotal.WithLabelValues(name).Inc()
			c.logger.Warn("Retrying generation",
				zap.String("provider", name),
				zap.Int("attempt", attempt),
				zap.Duration("wait", wait),
				zap.Error(lastErr),
			)
			if err := backoff.Wait(ctx, wait); err != nil {
				return "", fmt.Errorf("generation retry wait: %w", err)
			}
		}

		answer, err := c.attempt(ctx, prompt)
		if err == nil {
			return answer, nil
		}
		if ctx.Err() != nil {
			return "", fmt.Errorf("generation: %w", ctx.Err())
		}
		lastErr = err

		var ue *domain.UpstreamError
		if !errors.As(err, &ue) || !ue.Retryable() {
			c.logger.Error("Generation failed",
				zap.String("provider", name),
				zap.Int("attempt", attempt),
				zap.Error(err),
			)
			return "", err
		}
	}

	c.logger.Error("Generation retries exhausted",
		zap.String("provider", name),
		zap.Int("attempts", c.maxAttempts),
		zap.Error(lastErr),
	)
	return "", lastErr
}

func (c *Client) attempt(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	name := c.provider.Name()
	start := time.Now()
	answer, err := c.provider.Generate(ctx, prompt)
	metrics.GenerationDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
	metrics.GenerationAttemptsTotal.WithLabelValues(name, outcome(err)).Inc()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(answer), nil
}

func outcome(err error) string {
	if err == nil {
		return "ok"
	}
	var ue *domain.UpstreamError
	if errors.As(err, &ue) {
		return ue.Kind.String()
	}
	return "error"
}
