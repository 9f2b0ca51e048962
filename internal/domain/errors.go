package domain

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrConfiguration signals missing credentials or required settings. Never retried.
	ErrConfiguration = errors.New("configuration error")
	// ErrEmptyQuestions signals a request without questions.
	ErrEmptyQuestions = errors.New("questions must be a non-empty list")
	// ErrUnsupportedFormat signals a document type the loader cannot extract text from.
	ErrUnsupportedFormat = errors.New("unsupported document format")
	// ErrFetch signals a failure to download or read a document.
	ErrFetch = errors.New("document fetch failed")
	// ErrVectorDimMismatch signals a vector dimension mismatch.
	ErrVectorDimMismatch = errors.New("vector dimension mismatch")
	// ErrLengthMismatch signals texts and vectors of different lengths.
	ErrLengthMismatch = errors.New("texts and vectors length mismatch")
	// ErrEmbeddingProviderError signals an embedding provider failure.
	ErrEmbeddingProviderError = errors.New("embedding provider error")
	// ErrUpstream signals a terminal generation service failure (see UpstreamError).
	ErrUpstream = errors.New("generation upstream error")
)

// UpstreamKind classifies a generation service failure.
type UpstreamKind int

const (
	// KindClient is a 4xx response. Never retried.
	KindClient UpstreamKind = iota + 1
	// KindServer is a 5xx response.
	KindServer
	// KindTimeout is a transport failure or deadline.
	KindTimeout
)

func (k UpstreamKind) String() string {
	switch k {
	case KindClient:
		return "client"
	case KindServer:
		return "server"
	case KindTimeout:
		return "timeout"
	default:
		return "unknown"
	}
}

// UpstreamError is produced by generation providers for every failed attempt.
type UpstreamError struct {
	Kind   UpstreamKind
	Status int    // HTTP status, 0 for transport failures
	Body   string // response body, may be empty
	Err    error  // transport cause, may be nil
}

func (e *UpstreamError) Error() string {
	switch {
	case e.Status != 0:
		return fmt.Sprintf("%s: %s error %d %s", ErrUpstream, e.Kind, e.Status, e.Body)
	case e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", ErrUpstream, e.Kind, e.Err)
	default:
		return fmt.Sprintf("%s: %s", ErrUpstream, e.Kind)
	}
}

// Unwrap exposes both ErrUpstream and the transport cause to errors.Is.
func (e *UpstreamError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrUpstream}
	}
	return []error{ErrUpstream, e.Err}
}

// Retryable reports whether another attempt may succeed.
func (e *UpstreamError) Retryable() bool {
	return e.Kind == KindServer || e.Kind == KindTimeout
}

// ClassifyStatus maps an HTTP status code to an upstream error, nil for 2xx.
func ClassifyStatus(status int, body string) *UpstreamError {
	switch {
	case status >= 200 && status < 300:
		return nil
	case status >= 500 && status < 600:
		return &UpstreamError{Kind: KindServer, Status: status, Body: body}
	default:
		return &UpstreamError{Kind: KindClient, Status: status, Body: body}
	}
}

// IsRetryable reports whether err is worth another pipeline attempt.
// Configuration errors, empty requests, unsupported documents, cancellation
// and 4xx responses are final.
func IsRetryable(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, ErrConfiguration) || errors.Is(err, ErrEmptyQuestions) ||
		errors.Is(err, ErrUnsupportedFormat) {
		return false
	}
	var ue *UpstreamError
	if errors.As(err, &ue) {
		return ue.Retryable()
	}
	return true
}
