package openai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/kailas-cloud/docqa/internal/domain"
)

// Generator answers prompts through the chat completions endpoint of an
// OpenAI-compatible API.
type Generator struct {
	client *openai.Client
	apiKey string
	model  string
	logger *zap.Logger
}

// NewGenerator creates a chat-completion generation provider.
func NewGenerator(cfg *Config) *Generator {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Generator{
		client: newClient(cfg),
		apiKey: cfg.APIKey,
		model:  cfg.Model,
		logger: logger,
	}
}

// Name identifies the provider in logs and metrics.
func (g *Generator) Name() string { return "openai" }

// Configured reports whether an API key is set.
func (g *Generator) Configured() bool { return g.apiKey != "" }

// Generate sends a single user message and returns the first choice.
// Every failure is a *domain.UpstreamError.
func (g *Generator) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: g.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		return "", classifyError(err)
	}
	if len(resp.Choices) == 0 {
		return "", nil
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// classifyError maps go-openai errors onto the upstream taxonomy.
func classifyError(err error) error {
	status, body := 0, ""

	var apiErr *openai.APIError
	var reqErr *openai.RequestError
	switch {
	case errors.As(err, &apiErr):
		status, body = apiErr.HTTPStatusCode, apiErr.Message
	case errors.As(err, &reqErr):
		status, body = reqErr.HTTPStatusCode, extractDetail(reqErr.Body)
		if body == "" {
			body = string(reqErr.Body)
		}
	}

	if status == 0 {
		return &domain.UpstreamError{Kind: domain.KindTimeout, Err: fmt.Errorf("chat completion: %w", err)}
	}
	if ue := domain.ClassifyStatus(status, body); ue != nil {
		return ue
	}
	return &domain.UpstreamError{Kind: domain.KindServer, Status: status, Body: body}
}
