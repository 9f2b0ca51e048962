package prompt

import (
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/kailas-cloud/docqa/internal/usecase/retrieval"
)

const (
	newHeader      = "The following context is extracted primarily from the **newly uploaded document**:"
	existingHeader = "The following context is retrieved from the **existing indexed documents**:"
)

func TestBuild_WithNewDocument(t *testing.T) {
	a := NewAssembler(0, nil)
	p, err := a.Build(retrieval.Context{
		New:      []string{"new one", "new two"},
		Existing: []string{"old one"},
	}, "What is covered?")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := newHeader + "\n\nnew one" + ChunkSeparator + "new two\n\n" + existingHeader + "\n\nold one\n----------------"
	if !strings.Contains(p, want) {
		t.Errorf("context block not rendered as expected:\n%s", p)
	}
	if strings.Index(p, newHeader) > strings.Index(p, existingHeader) {
		t.Error("new document section must come first")
	}
	if !strings.Contains(p, "Question: What is covered?\n\nAnswer (based only on the above context):") {
		t.Error("question block missing")
	}
}

func TestBuild_ExistingOnly(t *testing.T) {
	a := NewAssembler(0, nil)
	p, err := a.Build(retrieval.Context{Existing: []string{"a", "b"}}, "Q?")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.Contains(p, newHeader) {
		t.Error("new document framing must be absent without new chunks")
	}
	want := "Document Context:\n----------------\n" + existingHeader + "\n\na" + ChunkSeparator + "b\n----------------"
	if !strings.Contains(p, want) {
		t.Errorf("unexpected context block:\n%s", p)
	}
}

func TestBuild_Instructions(t *testing.T) {
	p, err := NewAssembler(0, nil).Build(retrieval.Context{}, "Q?")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, s := range []string{
		"You are an expert insurance assistant.",
		"Base your answer strictly on the given context.",
		"Example Question and Answer for reference:",
		"Preferred Provider Network (PPN)",
	} {
		if !strings.Contains(p, s) {
			t.Errorf("prompt missing %q", s)
		}
	}
}

func TestBuild_Deterministic(t *testing.T) {
	a := NewAssembler(0, nil)
	c := retrieval.Context{New: []string{"x"}, Existing: []string{"y"}}
	p1, _ := a.Build(c, "Q")
	p2, _ := a.Build(c, "Q")
	if p1 != p2 {
		t.Error("same inputs must render the same prompt")
	}
}

func TestBuild_NoEscaping(t *testing.T) {
	p, err := NewAssembler(0, nil).Build(retrieval.Context{Existing: []string{"<b>1% & more</b>"}}, "a < b?")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(p, "<b>1% & more</b>") || !strings.Contains(p, "Question: a < b?") {
		t.Error("text must be rendered verbatim")
	}
}

func TestBuild_WarnsOnLongPrompt(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	a := NewAssembler(100, zap.New(core))

	long := strings.Repeat("x", 200)
	p, err := a.Build(retrieval.Context{Existing: []string{long}}, "Q")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(p, long) {
		t.Error("long prompts must not be truncated")
	}
	if logs.FilterMessage("Prompt exceeds size threshold").Len() != 1 {
		t.Errorf("expected one warning, got %d entries", logs.Len())
	}
}
