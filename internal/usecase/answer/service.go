// Package answer runs the question answering pipeline: ingest the document,
// build one prompt per question, merge new content into the persistent store
// and generate all answers concurrently.
package answer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kailas-cloud/docqa/internal/backoff"
	"github.com/kailas-cloud/docqa/internal/domain"
	"github.com/kailas-cloud/docqa/internal/logger"
	"github.com/kailas-cloud/docqa/internal/metrics"
	"github.com/kailas-cloud/docqa/internal/usecase/ingest"
	"github.com/kailas-cloud/docqa/internal/usecase/retrieval"
)

// Defaults applied when Options leaves a field at zero.
const (
	DefaultMaxAttempts       = 3
	DefaultInitialRetryDelay = time.Second
	DefaultMaxConcurrency    = 8
)

// memoryLockKey is used for stores without a location.
const memoryLockKey = "memory"

// Request is one batch of questions about an optional document.
type Request struct {
	DocumentRef string
	Questions   []string
}

// Deps are the collaborators of the pipeline.
type Deps struct {
	Store     Store
	Ingester  Ingester
	Embedder  domain.Embedder // question embedder
	Fuser     Fuser
	Assembler Assembler
	Generator Generator
	Locker    Locker
}

// Options tune retries, fan-out and write-back.
type Options struct {
	MaxAttempts       int
	InitialRetryDelay time.Duration
	MaxConcurrency    int
	// AllowUpdate merges new document content into the persistent store.
	AllowUpdate bool
}

// Service is the pipeline orchestrator.
type Service struct {
	Deps
	opts Options
}

// New creates a Service.
func New(deps Deps, opts Options) *Service {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = DefaultMaxAttempts
	}
	if opts.InitialRetryDelay < 0 {
		opts.InitialRetryDelay = DefaultInitialRetryDelay
	}
	if opts.MaxConcurrency <= 0 {
		opts.MaxConcurrency = DefaultMaxConcurrency
	}
	return &Service{Deps: deps, opts: opts}
}

// run carries state across the attempts of one Run.
type run struct {
	merged bool
}

// Run answers every question of req, in question order. Any failed question
// fails the batch. Retryable failures rerun the whole pipeline up to
// MaxAttempts times with doubling delays.
func (s *Service) Run(ctx context.Context, req Request) ([]string, error) {
	if len(req.Questions) == 0 {
		return nil, domain.ErrEmptyQuestions
	}
	log := logger.FromContext(ctx)
	st := &run{}

	var lastErr error
	for attempt := 1; attempt <= s.opts.MaxAttempts; attempt++ {
		if attempt > 1 {
			wait := backoff.Delay(s.opts.InitialRetryDelay, attempt)
			log.Warn("Retrying pipeline",
				zap.Int("attempt", attempt),
				zap.Duration("wait", wait),
				zap.Error(lastErr),
			)
			if err := backoff.Wait(ctx, wait); err != nil {
				lastErr = fmt.Errorf("pipeline retry wait: %w", err)
				break
			}
		}

		metrics.PipelineAttemptsTotal.Inc()
		answers, err := s.attempt(ctx, req, st)
		if err == nil {
			metrics.PipelineRunsTotal.WithLabelValues("ok").Inc()
			metrics.PipelineQuestionsTotal.Add(float64(len(answers)))
			return answers, nil
		}
		lastErr = err
		if ctx.Err() != nil || !domain.IsRetryable(err) {
			break
		}
	}

	metrics.PipelineRunsTotal.WithLabelValues("error").Inc()
	log.Error("Pipeline failed", zap.Error(lastErr))
	return nil, lastErr
}

func (s *Service) attempt(ctx context.Context, req Request, st *run) ([]string, error) {
	prompts, err := s.prepare(ctx, req, st)
	if err != nil {
		return nil, err
	}
	return s.generate(ctx, prompts)
}

// prepare ingests the document and builds all prompts while holding the
// store lock, then merges new content into the persistent store.
func (s *Service) prepare(ctx context.Context, req Request, st *run) ([]string, error) {
	key := s.Store.Location()
	if key == "" {
		key = memoryLockKey
	}
	unlock, err := s.Locker.Lock(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("lock store: %w", err)
	}
	defer unlock()

	// Another process may have persisted since this store was last read.
	if err := s.Store.Reload(); err != nil {
		logger.FromContext(ctx).Warn("Failed to reload store, using in-memory state",
			zap.String("location", s.Store.Location()), zap.Error(err))
	}
	metrics.StoreChunks.Set(float64(s.Store.Len()))

	res, err := s.Ingester.Ingest(ctx, req.DocumentRef, s.Store)
	if err != nil {
		return nil, fmt.Errorf("ingest: %w", err)
	}

	var transient retrieval.Searcher
	if res.Transient != nil {
		transient = res.Transient
	}

	queries, err := domain.EmbedAll(ctx, s.Embedder, req.Questions)
	if err != nil {
		return nil, fmt.Errorf("embed questions: %w", err)
	}

	prompts := make([]string, len(req.Questions))
	for i, q := range req.Questions {
		c, err := s.Fuser.Fuse(queries.Embeddings[i], s.Store, transient)
		if err != nil {
			return nil, fmt.Errorf("retrieve context: %w", err)
		}
		if prompts[i], err = s.Assembler.Build(c, q); err != nil {
			return nil, err
		}
	}

	s.merge(ctx, res, st)
	return prompts, nil
}

// merge appends new content to the persistent store and writes it out, once
// per Run. Persistence failures are logged; the answers do not depend on them.
func (s *Service) merge(ctx context.Context, res ingest.Result, st *run) {
	if !s.opts.AllowUpdate || res.Empty() || st.merged {
		return
	}
	log := logger.FromContext(ctx)

	if err := s.Store.Add(res.NewChunks, res.NewVectors); err != nil {
		log.Error("Failed to merge new chunks", zap.Error(err))
		return
	}
	st.merged = true
	metrics.StoreChunks.Set(float64(s.Store.Len()))

	if err := s.Store.Persist(); err != nil {
		log.Error("Failed to persist store", zap.String("location", s.Store.Location()), zap.Error(err))
		return
	}
	log.Info("Persistent store updated",
		zap.Int("added", len(res.NewChunks)),
		zap.Int("total", s.Store.Len()),
	)
}

// generate answers all prompts concurrently and returns them in prompt order.
func (s *Service) generate(ctx context.Context, prompts []string) ([]string, error) {
	answers := make([]string, len(prompts))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.MaxConcurrency)
	for i, p := range prompts {
		i, p := i, p
		g.Go(func() error {
			a, err := s.Generator.Generate(gctx, p)
			if err != nil {
				return fmt.Errorf("question %d: %w", i+1, err)
			}
			answers[i] = CleanAnswer(a)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return answers, nil
}

// CleanAnswer drops leading list numbering ("1. ", "2.") and surrounding whitespace.
func CleanAnswer(a string) string {
	return strings.TrimSpace(strings.TrimLeft(a, "0123456789. "))
}
