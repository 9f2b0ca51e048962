package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/dustin/go-humanize"
	"go.uber.org/zap"

	"github.com/kailas-cloud/docqa/internal/document"
	"github.com/kailas-cloud/docqa/internal/usecase/ingest"
)

type ingester interface {
	Ingest(ctx context.Context, ref string, index ingest.Index) (ingest.Result, error)
}

type indexStore interface {
	ingest.Index
	Add(texts []string, vectors [][]float32) error
	Len() int
}

// summary counts the outcome of one indexing run.
type summary struct {
	Files   int
	Failed  int
	Skipped int
	Chunks  int
	Bytes   int64
}

// indexDir ingests every supported file directly under dir into store.
// A failing file is reported and skipped.
func indexDir(
	ctx context.Context, svc ingester, store indexStore, dir string, out io.Writer, logger *zap.Logger,
) (summary, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return summary{}, fmt.Errorf("read %s: %w", dir, err)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	var s summary
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if _, ok := document.Detect("", e.Name()); !ok {
			s.Skipped++
			continue
		}
		if err := ctx.Err(); err != nil {
			return s, err
		}

		path := filepath.Join(dir, e.Name())
		info, err := e.Info()
		if err == nil {
			s.Bytes += info.Size()
		}
		s.Files++

		res, err := svc.Ingest(ctx, path, store)
		if err == nil && !res.Empty() {
			err = store.Add(res.NewChunks, res.NewVectors)
		}
		if err != nil {
			s.Failed++
			logger.Error("Failed to index document", zap.String("path", path), zap.Error(err))
			_, _ = fmt.Fprintf(out, "FAIL  %s: %v\n", e.Name(), err)
			continue
		}

		s.Chunks += len(res.NewChunks)
		size := "?"
		if info != nil {
			size = humanize.Bytes(uint64(info.Size()))
		}
		_, _ = fmt.Fprintf(out, "ok    %s (%s, %s new chunks)\n",
			e.Name(), size, humanize.Comma(int64(len(res.NewChunks))))
	}
	return s, nil
}
