package chi

import (
	"context"

	"github.com/kailas-cloud/docqa/internal/domain"
	"github.com/kailas-cloud/docqa/internal/usecase/answer"
	healthuc "github.com/kailas-cloud/docqa/internal/usecase/health"
)

// --- Mocks ---

type mockAnswerer struct {
	answers []string
	err     error
	tokens  int
	calls   int
	last    answer.Request
	panic   bool
}

func (m *mockAnswerer) Run(ctx context.Context, req answer.Request) ([]string, error) {
	m.calls++
	m.last = req
	if m.panic {
		panic("boom")
	}
	if m.tokens > 0 {
		domain.UsageFromContext(ctx).AddTokens(m.tokens)
	}
	return m.answers, m.err
}

type mockHealth struct {
	report healthuc.Report
}

func (m *mockHealth) Check(_ context.Context) healthuc.Report { return m.report }
