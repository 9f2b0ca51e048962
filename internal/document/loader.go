// Package document downloads documents and extracts their text.
package document

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/text/unicode/norm"

	"github.com/kailas-cloud/docqa/internal/domain"
)

// Format is a supported document type.
type Format string

// Supported formats.
const (
	FormatPDF  Format = "pdf"
	FormatDOCX Format = "docx"
	FormatText Format = "text"
)

const (
	defaultFetchTimeout = 30 * time.Second
	defaultMaxBytes     = 64 << 20

	mimeDOCX = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
)

// Options configures a Loader.
type Options struct {
	HTTPClient *http.Client
	// MaxBytes caps a single document. Zero means 64 MiB.
	MaxBytes int64
	// AllowLocal lets references name files on the local filesystem.
	// Only the indexer CLI enables it.
	AllowLocal bool
	Logger     *zap.Logger
}

// Loader fetches a document by URL (or local path) and returns its text.
type Loader struct {
	http       *http.Client
	maxBytes   int64
	allowLocal bool
	logger     *zap.Logger
}

// NewLoader creates a document loader.
func NewLoader(opts Options) *Loader {
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: defaultFetchTimeout}
	}
	maxBytes := opts.MaxBytes
	if maxBytes <= 0 {
		maxBytes = defaultMaxBytes
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loader{http: client, maxBytes: maxBytes, allowLocal: opts.AllowLocal, logger: logger}
}

// Text fetches ref and extracts its text, NFC-normalized so that identical
// passages from different sources compare equal.
// Errors wrap domain.ErrFetch or domain.ErrUnsupportedFormat.
func (l *Loader) Text(ctx context.Context, ref string) (string, error) {
	data, contentType, err := l.fetch(ctx, ref)
	if err != nil {
		return "", err
	}

	format, ok := Detect(contentType, ref)
	if !ok {
		kind := contentType
		if kind == "" {
			kind = path.Ext(refPath(ref))
		}
		return "", fmt.Errorf("%w: %q", domain.ErrUnsupportedFormat, kind)
	}

	start := time.Now()
	text, err := Extract(format, data, contentType)
	if err != nil {
		return "", err
	}

	l.logger.Debug("Document text extracted",
		zap.String("format", string(format)),
		zap.Int("bytes", len(data)),
		zap.Int("chars", len(text)),
		zap.Duration("duration", time.Since(start)),
	)
	return norm.NFC.String(text), nil
}

// Extract dispatches raw bytes to the parser for format.
func Extract(format Format, data []byte, contentType string) (string, error) {
	switch format {
	case FormatPDF:
		return extractPDF(data)
	case FormatDOCX:
		return extractDOCX(data)
	case FormatText:
		return extractText(data, contentType)
	default:
		return "", fmt.Errorf("%w: %q", domain.ErrUnsupportedFormat, format)
	}
}

// Detect infers the format from the Content-Type header, then the reference extension.
func Detect(contentType, ref string) (Format, bool) {
	mediaType := strings.ToLower(contentType)
	if mt, _, err := mime.ParseMediaType(contentType); err == nil {
		mediaType = mt
	}
	switch {
	case strings.Contains(mediaType, "pdf"):
		return FormatPDF, true
	case mediaType == mimeDOCX:
		return FormatDOCX, true
	case mediaType == "text/plain" || mediaType == "message/rfc822":
		return FormatText, true
	}

	switch strings.ToLower(strings.TrimPrefix(path.Ext(refPath(ref)), ".")) {
	case "pdf":
		return FormatPDF, true
	case "docx":
		return FormatDOCX, true
	case "txt", "eml":
		return FormatText, true
	}
	return "", false
}

func (l *Loader) fetch(ctx context.Context, ref string) ([]byte, string, error) {
	if isRemote(ref) {
		return l.fetchHTTP(ctx, ref)
	}
	if !l.allowLocal {
		return nil, "", fmt.Errorf("%w: only http(s) references are accepted", domain.ErrFetch)
	}
	data, err := l.readFile(ref)
	if err != nil {
		return nil, "", err
	}
	return data, "", nil
}

func (l *Loader) fetchHTTP(ctx context.Context, ref string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ref, http.NoBody)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", domain.ErrFetch, err)
	}

	resp, err := l.http.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", domain.ErrFetch, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, "", fmt.Errorf("%w: status %d", domain.ErrFetch, resp.StatusCode)
	}

	data, err := l.readAll(resp.Body)
	if err != nil {
		return nil, "", err
	}
	return data, resp.Header.Get("Content-Type"), nil
}

func (l *Loader) readFile(name string) ([]byte, error) {
	f, err := os.Open(filepath.Clean(name))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrFetch, err)
	}
	defer func() { _ = f.Close() }()
	return l.readAll(f)
}

func (l *Loader) readAll(r io.Reader) ([]byte, error) {
	var buf bytes.Buffer
	n, err := buf.ReadFrom(io.LimitReader(r, l.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", domain.ErrFetch, err)
	}
	if n > l.maxBytes {
		return nil, fmt.Errorf("%w: document exceeds %d bytes", domain.ErrFetch, l.maxBytes)
	}
	return buf.Bytes(), nil
}

func isRemote(ref string) bool {
	lower := strings.ToLower(ref)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}

// refPath strips the query string and fragment so signed URLs keep their extension.
func refPath(ref string) string {
	if i := strings.IndexAny(ref, "?#"); i >= 0 {
		return ref[:i]
	}
	return ref
}
