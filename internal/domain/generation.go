package domain

import "context"

// Generator produces an answer for a fully assembled prompt.
// Implementations make exactly one call per Generate and report every
// failure as *UpstreamError; retries belong to the caller.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
	// Configured reports whether credentials are present.
	Configured() bool
	// Name identifies the provider in logs and metrics.
	Name() string
}
