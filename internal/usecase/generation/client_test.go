package generation

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/tmc/langchaingo/llms"
	"google.golang.org/api/googleapi"

	"github.com/kailas-cloud/docqa/internal/domain"
	"github.com/kailas-cloud/docqa/internal/metrics"
	"github.com/kailas-cloud/docqa/internal/transport/gemini"
)

func fastOptions() Options {
	return Options{Timeout: time.Second, MaxAttempts: 3, Backoff: time.Millisecond}
}

func serverErr(status int) error {
	return domain.ClassifyStatus(status, "boom")
}

func TestGenerate_Success(t *testing.T) {
	p := newMockProvider("t-success", step{answer: "  fine \n"})
	c := New(p, fastOptions())

	got, err := c.Generate(context.Background(), "prompt")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "fine" {
		t.Errorf("expected trimmed answer, got %q", got)
	}
	if p.Calls() != 1 {
		t.Errorf("expected 1 call, got %d", p.Calls())
	}
	if v := testutil.ToFloat64(metrics.GenerationAttemptsTotal.WithLabelValues("t-success", "ok")); v != 1 {
		t.Errorf("expected ok attempt counter 1, got %v", v)
	}
}

func TestGenerate_RetriesServerErrors(t *testing.T) {
	p := newMockProvider("t-server", step{err: serverErr(503)})
	c := New(p, fastOptions())

	_, err := c.Generate(context.Background(), "prompt")
	if p.Calls() != 3 {
		t.Fatalf("expected 3 attempts, got %d", p.Calls())
	}
	var ue *domain.UpstreamError
	if !errors.As(err, &ue) {
		t.Fatalf("expected UpstreamError, got %v", err)
	}
	if ue.Kind != domain.KindServer || ue.Status != 503 {
		t.Errorf("expected server 503, got %s %d", ue.Kind, ue.Status)
	}
	if v := testutil.ToFloat64(metrics.GenerationRetriesTotal.WithLabelValues("t-server")); v != 2 {
		t.Errorf("expected 2 retries, got %v", v)
	}
}

func TestGenerate_RecoversAfterTransientFailure(t *testing.T) {
	p := newMockProvider("t-recover",
		step{err: &domain.UpstreamError{Kind: domain.KindTimeout, Err: context.DeadlineExceeded}},
		step{err: serverErr(500)},
		step{answer: "ok"},
	)
	c := New(p, fastOptions())

	got, err := c.Generate(context.Background(), "prompt")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "ok" || p.Calls() != 3 {
		t.Errorf("expected ok after 3 calls, got %q after %d", got, p.Calls())
	}
}

func TestGenerate_ClientErrorIsTerminal(t *testing.T) {
	p := newMockProvider("t-client", step{err: serverErr(404)})
	c := New(p, fastOptions())

	_, err := c.Generate(context.Background(), "prompt")
	if p.Calls() != 1 {
		t.Fatalf("expected 1 attempt, got %d", p.Calls())
	}
	var ue *domain.UpstreamError
	if !errors.As(err, &ue) || ue.Kind != domain.KindClient {
		t.Errorf("expected client error, got %v", err)
	}
}

func TestGenerate_TimeoutExhaustion(t *testing.T) {
	p := newMockProvider("t-timeout")
	p.generateFn = func(ctx context.Context, _ string) (string, error) {
		<-ctx.Done()
		return "", &domain.UpstreamError{Kind: domain.KindTimeout, Err: ctx.Err()}
	}
	opts := fastOptions()
	opts.Timeout = 5 * time.Millisecond
	c := New(p, opts)

	_, err := c.Generate(context.Background(), "prompt")
	var ue *domain.UpstreamError
	if !errors.As(err, &ue) || ue.Kind != domain.KindTimeout {
		t.Fatalf("expected timeout error, got %v", err)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Error("expected deadline cause to be preserved")
	}
	if p.Calls() != 3 {
		t.Errorf("expected 3 attempts, got %d", p.Calls())
	}
}

func TestGenerate_EachAttemptHasDeadline(t *testing.T) {
	p := newMockProvider("t-deadline", step{err: serverErr(502)}, step{answer: "x"})
	c := New(p, fastOptions())

	if _, err := c.Generate(context.Background(), "prompt"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i, ok := range p.deadlines {
		if !ok {
			t.Errorf("attempt %d ran without a deadline", i+1)
		}
	}
}

func TestGenerate_NotConfigured(t *testing.T) {
	p := newMockProvider("t-config", step{answer: "never"})
	p.configured = false
	c := New(p, fastOptions())

	_, err := c.Generate(context.Background(), "prompt")
	if !errors.Is(err, domain.ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration, got %v", err)
	}
	if p.Calls() != 0 {
		t.Errorf("expected no attempts, got %d", p.Calls())
	}
}

func TestGenerate_UnclassifiedErrorIsTerminal(t *testing.T) {
	p := newMockProvider("t-other", step{err: errors.New("marshal request: bad")})
	c := New(p, fastOptions())

	if _, err := c.Generate(context.Background(), "prompt"); err == nil {
		t.Fatal("expected error")
	}
	if p.Calls() != 1 {
		t.Errorf("expected 1 attempt, got %d", p.Calls())
	}
}

func TestGenerate_CancelDuringBackoff(t *testing.T) {
	p := newMockProvider("t-cancel", step{err: serverErr(503)})
	opts := fastOptions()
	opts.Backoff = time.Hour
	c := New(p, opts)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	_, err := c.Generate(ctx, "prompt")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if time.Since(start) > 5*time.Second {
		t.Error("backoff wait was not interrupted")
	}
	if p.Calls() != 1 {
		t.Errorf("expected 1 attempt, got %d", p.Calls())
	}
}

func TestGenerate_BackoffDoubles(t *testing.T) {
	var stamps []time.Time
	p := newMockProvider("t-backoff")
	p.generateFn = func(context.Context, string) (string, error) {
		stamps = append(stamps, time.Now())
		return "", serverErr(503)
	}
	opts := fastOptions()
	opts.Backoff = 20 * time.Millisecond
	c := New(p, opts)

	_, _ = c.Generate(context.Background(), "prompt")
	if len(stamps) != 3 {
		t.Fatalf("expected 3 attempts, got %d", len(stamps))
	}
	if d := stamps[1].Sub(stamps[0]); d < 20*time.Millisecond {
		t.Errorf("first wait too short: %v", d)
	}
	if d := stamps[2].Sub(stamps[1]); d < 40*time.Millisecond {
		t.Errorf("second wait too short: %v", d)
	}
}

type statusModel struct {
	status int
	calls  atomic.Int32
}

func (m *statusModel) GenerateContent(
	context.Context, []llms.MessageContent, ...llms.CallOption,
) (*llms.ContentResponse, error) {
	m.calls.Add(1)
	return nil, &googleapi.Error{Code: m.status, Message: http.StatusText(m.status)}
}

func TestGenerate_GeminiStatusCodes(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		wantCalls int32
		wantKind  domain.UpstreamKind
	}{
		{"service unavailable", http.StatusServiceUnavailable, 3, domain.KindServer},
		{"not found", http.StatusNotFound, 1, domain.KindClient},
		{"bad request", http.StatusBadRequest, 1, domain.KindClient},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			model := &statusModel{status: tt.status}
			p, err := gemini.NewClient(context.Background(), gemini.Config{Model: "m", LLM: model})
			if err != nil {
				t.Fatalf("NewClient: %v", err)
			}
			c := New(p, fastOptions())

			_, err = c.Generate(context.Background(), "prompt")
			var ue *domain.UpstreamError
			if !errors.As(err, &ue) || ue.Kind != tt.wantKind || ue.Status != tt.status {
				t.Fatalf("expected %s %d, got %v", tt.wantKind, tt.status, err)
			}
			if got := model.calls.Load(); got != tt.wantCalls {
				t.Errorf("expected %d calls, got %d", tt.wantCalls, got)
			}
		})
	}
}

func TestNew_Defaults(t *testing.T) {
	c := New(newMockProvider("t-defaults"), Options{Backoff: -1})
	if c.maxAttempts != DefaultMaxAttempts || c.timeout != DefaultTimeout || c.backoff != DefaultBackoff {
		t.Errorf("unexpected defaults: %d %v %v", c.maxAttempts, c.timeout, c.backoff)
	}
}
