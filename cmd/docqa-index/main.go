// Command docqa-index bulk-loads a directory of PDF, DOCX and TXT files into
// the persistent vector store used by the docqa server.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/kailas-cloud/docqa/internal/bootstrap"
	"github.com/kailas-cloud/docqa/internal/chunker"
	"github.com/kailas-cloud/docqa/internal/config"
	"github.com/kailas-cloud/docqa/internal/document"
	"github.com/kailas-cloud/docqa/internal/domain"
	"github.com/kailas-cloud/docqa/internal/lock"
	logpkg "github.com/kailas-cloud/docqa/internal/logger"
	"github.com/kailas-cloud/docqa/internal/usecase/answer"
	"github.com/kailas-cloud/docqa/internal/usecase/ingest"
	"github.com/kailas-cloud/docqa/internal/vectorstore"
)

func main() {
	dir := flag.String("dir", "./documents", "directory with documents to index")
	reset := flag.Bool("reset", false, "clear the persistent store before indexing")
	query := flag.String("query", "", "print the top matches for this question after indexing")
	flag.Parse()

	// Load .env file if it exists
	_ = godotenv.Load()

	env := config.GetEnv()
	cfg, err := config.Load(env)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, *dir, *reset, *query, logger); err != nil {
		logger.Error("Indexing failed", zap.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, dir string, reset bool, query string, logger *zap.Logger) error {
	redisStore, err := bootstrap.Redis(ctx, cfg.Database, logger)
	if err != nil {
		return err
	}
	var locker answer.Locker = lock.NewKeyed()
	if redisStore != nil {
		defer redisStore.Close()
		locker = lock.NewDistributed(redisStore, "lock:", time.Duration(cfg.Database.LockTTLSec)*time.Second, logger)
	}

	embedders := bootstrap.NewEmbedders(cfg.Embedding, redisStore, logger)

	// Hold the store lock for the whole run so a live server does not
	// interleave its own writes.
	unlock, err := locker.Lock(ctx, cfg.Store.Path)
	if err != nil {
		return err
	}
	defer unlock()

	store, err := vectorstore.Open(cfg.Store.Path, embedders.Base.Dimension(), logger)
	if err != nil {
		return err
	}
	if reset {
		store.Clear()
		logger.Info("Cleared persistent store", zap.String("path", cfg.Store.Path))
	}

	loader := document.NewLoader(document.Options{AllowLocal: true, Logger: logger})
	svc := ingest.New(loader, chunker.NewRecursive(cfg.Chunking.Size, cfg.Chunking.Overlap), embedders.Document)

	start := time.Now()
	sum, err := indexDir(ctx, svc, store, dir, os.Stdout, logger)
	if err != nil {
		return err
	}
	if err := store.Persist(); err != nil {
		return fmt.Errorf("persist store: %w", err)
	}

	fmt.Printf("\nIndexed %d files (%s), %d failed, %d skipped: %s new chunks, %s total, in %s\n",
		sum.Files, humanize.Bytes(uint64(sum.Bytes)), sum.Failed, sum.Skipped,
		humanize.Comma(int64(sum.Chunks)), humanize.Comma(int64(store.Len())),
		time.Since(start).Round(time.Millisecond))

	if query == "" {
		return nil
	}
	return printMatches(ctx, embedders.Query, store, query)
}

func printMatches(ctx context.Context, e domain.Embedder, store *vectorstore.Store, query string) error {
	res, err := e.Embed(ctx, query)
	if err != nil {
		return fmt.Errorf("embed query: %w", err)
	}
	matches, err := store.Search(res.Embedding, 3)
	if err != nil {
		return fmt.Errorf("search: %w", err)
	}
	fmt.Printf("\nTop matches for %q:\n", query)
	for i, m := range matches {
		if r := []rune(m); len(r) > 500 {
			m = string(r[:500])
		}
		fmt.Printf("\n--- Match %d ---\n%s\n", i+1, m)
	}
	return nil
}
