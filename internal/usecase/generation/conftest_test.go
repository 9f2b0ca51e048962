package generation

import (
	"context"
	"sync"
)

// --- Mocks ---

type step struct {
	answer string
	err    error
}

type mockProvider struct {
	mu         sync.Mutex
	name       string
	configured bool
	steps      []step // consumed in order, the last one repeats
	calls      int
	deadlines  []bool
	generateFn func(ctx context.Context, prompt string) (string, error)
}

func newMockProvider(name string, steps ...step) *mockProvider {
	return &mockProvider{name: name, configured: true, steps: steps}
}

func (m *mockProvider) Name() string     { return m.name }
func (m *mockProvider) Configured() bool { return m.configured }

func (m *mockProvider) Generate(ctx context.Context, prompt string) (string, error) {
	m.mu.Lock()
	i := m.calls
	m.calls++
	_, ok := ctx.Deadline()
	m.deadlines = append(m.deadlines, ok)
	m.mu.Unlock()

	if m.generateFn != nil {
		return m.generateFn(ctx, prompt)
	}
	if i >= len(m.steps) {
		i = len(m.steps) - 1
	}
	return m.steps[i].answer, m.steps[i].err
}

func (m *mockProvider) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}
