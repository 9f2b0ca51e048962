package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/kailas-cloud/docqa/internal/usecase/ingest"
	"github.com/kailas-cloud/docqa/internal/vectorstore"
)

type fakeIngester struct {
	refs []string
	fail string
}

func (f *fakeIngester) Ingest(_ context.Context, ref string, index ingest.Index) (ingest.Result, error) {
	f.refs = append(f.refs, ref)
	if strings.HasSuffix(ref, f.fail) && f.fail != "" {
		return ingest.Result{}, errors.New("broken file")
	}
	text := filepath.Base(ref)
	if index.Contains(text) {
		return ingest.Result{}, nil
	}
	return ingest.Result{NewChunks: []string{text}, NewVectors: [][]float32{{1, 2}}}, nil
}

func writeFiles(t *testing.T, dir string, names ...string) {
	t.Helper()
	for _, n := range names {
		if err := os.WriteFile(filepath.Join(dir, n), []byte("content"), 0o600); err != nil {
			t.Fatal(err)
		}
	}
}

func TestIndexDir(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, "b.pdf", "a.txt", "c.docx", "notes.xlsx", "broken.pdf")
	if err := os.Mkdir(filepath.Join(dir, "sub"), 0o755); err != nil {
		t.Fatal(err)
	}

	store, err := vectorstore.NewTransient(2)
	if err != nil {
		t.Fatal(err)
	}
	svc := &fakeIngester{fail: "broken.pdf"}
	var out bytes.Buffer

	sum, err := indexDir(context.Background(), svc, store, dir, &out, zap.NewNop())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if sum.Files != 4 || sum.Failed != 1 || sum.Skipped != 1 || sum.Chunks != 3 {
		t.Errorf("unexpected summary %+v", sum)
	}
	if store.Len() != 3 {
		t.Errorf("expected 3 stored chunks, got %d", store.Len())
	}
	if filepath.Base(svc.refs[0]) != "a.txt" {
		t.Errorf("files must be processed in name order, got %v", svc.refs)
	}
	if !strings.Contains(out.String(), "FAIL  broken.pdf") {
		t.Errorf("expected failure line, got:\n%s", out.String())
	}
}

func TestIndexDir_SecondRunAddsNothing(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, "a.txt")
	store, err := vectorstore.NewTransient(2)
	if err != nil {
		t.Fatal(err)
	}
	svc := &fakeIngester{}

	if _, err := indexDir(context.Background(), svc, store, dir, &bytes.Buffer{}, zap.NewNop()); err != nil {
		t.Fatal(err)
	}
	sum, err := indexDir(context.Background(), svc, store, dir, &bytes.Buffer{}, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	if sum.Chunks != 0 || store.Len() != 1 {
		t.Errorf("expected no new chunks, got %+v with %d stored", sum, store.Len())
	}
}

func TestIndexDir_MissingDir(t *testing.T) {
	store, _ := vectorstore.NewTransient(2)
	missing := filepath.Join(t.TempDir(), "nope")
	_, err := indexDir(context.Background(), &fakeIngester{}, store, missing, &bytes.Buffer{}, zap.NewNop())
	if err == nil {
		t.Fatal("expected error for a missing directory")
	}
}
