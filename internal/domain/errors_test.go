package domain

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestClassifyStatus(t *testing.T) {
	tests := []struct {
		status    int
		wantNil   bool
		wantKind  UpstreamKind
		retryable bool
	}{
		{200, true, 0, false},
		{204, true, 0, false},
		{400, false, KindClient, false},
		{404, false, KindClient, false},
		{429, false, KindClient, false},
		{500, false, KindServer, true},
		{503, false, KindServer, true},
	}
	for _, tc := range tests {
		t.Run(fmt.Sprint(tc.status), func(t *testing.T) {
			ue := ClassifyStatus(tc.status, "body")
			if tc.wantNil {
				if ue != nil {
					t.Fatalf("expected nil, got %v", ue)
				}
				return
			}
			if ue.Kind != tc.wantKind {
				t.Errorf("kind: got %s, want %s", ue.Kind, tc.wantKind)
			}
			if ue.Retryable() != tc.retryable {
				t.Errorf("retryable: got %v, want %v", ue.Retryable(), tc.retryable)
			}
		})
	}
}

func TestUpstreamError_Unwrap(t *testing.T) {
	err := fmt.Errorf("call: %w", &UpstreamError{Kind: KindTimeout, Err: context.DeadlineExceeded})
	if !errors.Is(err, ErrUpstream) {
		t.Error("expected errors.Is(err, ErrUpstream)")
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Error("expected transport cause to be reachable")
	}
	var ue *UpstreamError
	if !errors.As(err, &ue) || ue.Kind != KindTimeout {
		t.Errorf("expected timeout UpstreamError, got %v", err)
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"configuration", fmt.Errorf("gen: %w", ErrConfiguration), false},
		{"empty questions", ErrEmptyQuestions, false},
		{"unsupported format", ErrUnsupportedFormat, false},
		{"client", &UpstreamError{Kind: KindClient, Status: 404}, false},
		{"server", &UpstreamError{Kind: KindServer, Status: 503}, true},
		{"timeout", &UpstreamError{Kind: KindTimeout}, true},
		{"canceled", fmt.Errorf("run: %w", context.Canceled), false},
		{"unexpected", errors.New("boom"), true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := IsRetryable(tc.err); got != tc.want {
				t.Errorf("IsRetryable(%v) = %v, want %v", tc.err, got, tc.want)
			}
		})
	}
}
