// Package prompt renders the instruction prompt sent to the generation service.
package prompt

import (
	_ "embed"
	"fmt"
	"strings"
	"text/template"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/kailas-cloud/docqa/internal/usecase/retrieval"
)

// ChunkSeparator sits between consecutive context chunks.
const ChunkSeparator = "\n\n--Chunk_Start--\n\n"

//go:embed template.tmpl
var templateText string

var promptTemplate = template.Must(template.New("prompt").Funcs(template.FuncMap{
	"join": func(chunks []string) string { return strings.Join(chunks, ChunkSeparator) },
}).Parse(templateText))

type templateData struct {
	New      []string
	Existing []string
	Question string
}

// Assembler builds prompts from retrieved context.
type Assembler struct {
	maxChars int
	logger   *zap.Logger
}

// NewAssembler creates an Assembler. Prompts longer than maxChars characters
// are logged as a warning and sent unchanged; zero disables the warning.
func NewAssembler(maxChars int, logger *zap.Logger) *Assembler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Assembler{maxChars: maxChars, logger: logger}
}

// Build renders the prompt for question. The output depends only on its inputs.
func (a *Assembler) Build(c retrieval.Context, question string) (string, error) {
	var b strings.Builder
	err := promptTemplate.Execute(&b, templateData{
		New:      c.New,
		Existing: c.Existing,
		Question: question,
	})
	if err != nil {
		return "", fmt.Errorf("render prompt: %w", err)
	}

	prompt := b.String()
	if n := utf8.RuneCountInString(prompt); a.maxChars > 0 && n > a.maxChars {
		a.logger.Warn("Prompt exceeds size threshold",
			zap.Int("chars", n),
			zap.Int("threshold", a.maxChars),
			zap.Int("chunks", c.Len()),
		)
	}
	return prompt, nil
}
