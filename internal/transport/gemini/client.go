// Package gemini generates answers with Google Gemini models through langchaingo.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/googleai"
	"github.com/tmc/langchaingo/schema"
	"go.uber.org/zap"
	"google.golang.org/api/googleapi"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/kailas-cloud/docqa/internal/domain"
)

// ContentGenerator is the part of a langchaingo model the client uses.
// *googleai.GoogleAI satisfies it.
type ContentGenerator interface {
	GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error)
}

// Config holds Gemini client settings.
type Config struct {
	APIKey string
	Model  string
	Logger *zap.Logger
	// LLM replaces the googleai model, e.g. in tests. APIKey is ignored when set.
	LLM ContentGenerator
}

// Client is a single-shot generation client. Retries belong to the caller.
type Client struct {
	llm    ContentGenerator
	model  string
	logger *zap.Logger
}

// NewClient creates a Gemini client. Without an API key the client is built
// unconfigured and every Generate fails with domain.ErrConfiguration.
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Client{llm: cfg.LLM, model: cfg.Model, logger: logger}
	if c.llm != nil || cfg.APIKey == "" {
		return c, nil
	}

	opts := []googleai.Option{googleai.WithAPIKey(cfg.APIKey)}
	if cfg.Model != "" {
		opts = append(opts, googleai.WithDefaultModel(cfg.Model))
	}
	llm, err := googleai.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: create gemini client: %v", domain.ErrConfiguration, err)
	}
	c.llm = llm
	return c, nil
}

// Name identifies the provider in logs and metrics.
func (c *Client) Name() string { return "gemini" }

// Configured reports whether a model client is available.
func (c *Client) Configured() bool { return c.llm != nil }

// Generate sends the prompt as one user message and returns the first candidate, trimmed.
// A response without candidates yields an empty answer.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	if c.llm == nil {
		return "", fmt.Errorf("%w: gemini api key is not set", domain.ErrConfiguration)
	}

	var opts []llms.CallOption
	if c.model != "" {
		opts = append(opts, llms.WithModel(c.model))
	}
	resp, err := c.llm.GenerateContent(ctx,
		[]llms.MessageContent{llms.TextParts(schema.ChatMessageTypeHuman, prompt)},
		opts...,
	)
	if err != nil {
		return "", classify(ctx, err)
	}

	if resp == nil || len(resp.Choices) == 0 || resp.Choices[0] == nil {
		c.logger.Warn("Gemini response has no candidate text")
		return "", nil
	}
	return strings.TrimSpace(resp.Choices[0].Content), nil
}

// classify maps SDK failures onto domain.UpstreamError.
// REST errors carry an HTTP code, gRPC errors a status code; deadlines and
// network failures are timeouts; anything else counts as a server fault.
func classify(ctx context.Context, err error) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) && apiErr.Code != 0 {
		if ue := domain.ClassifyStatus(apiErr.Code, strings.TrimSpace(apiErr.Message)); ue != nil {
			return ue
		}
	}

	if st, ok := status.FromError(err); ok {
		switch st.Code() {
		case codes.OK, codes.Unknown:
		case codes.DeadlineExceeded, codes.Canceled:
			return &domain.UpstreamError{Kind: domain.KindTimeout, Err: err}
		default:
			if ue := domain.ClassifyStatus(httpStatus(st.Code()), st.Message()); ue != nil {
				return ue
			}
		}
	}

	var netErr net.Error
	if ctx.Err() != nil || errors.Is(err, context.DeadlineExceeded) || errors.As(err, &netErr) {
		return &domain.UpstreamError{Kind: domain.KindTimeout, Err: err}
	}
	return &domain.UpstreamError{Kind: domain.KindServer, Err: err}
}

// httpStatus follows the canonical gRPC to HTTP mapping.
func httpStatus(c codes.Code) int {
	switch c {
	case codes.InvalidArgument, codes.FailedPrecondition, codes.OutOfRange:
		return http.StatusBadRequest
	case codes.Unauthenticated:
		return http.StatusUnauthorized
	case codes.PermissionDenied:
		return http.StatusForbidden
	case codes.NotFound:
		return http.StatusNotFound
	case codes.AlreadyExists, codes.Aborted:
		return http.StatusConflict
	case codes.ResourceExhausted:
		return http.StatusTooManyRequests
	case codes.Unimplemented:
		return http.StatusNotImplemented
	case codes.Unavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
