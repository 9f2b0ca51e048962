package chi

// ErrorCode is the machine-readable part of an error response.
type ErrorCode string

// Error codes returned by the API.
const (
	ErrorCodeBadRequest             ErrorCode = "bad_request"
	ErrorCodeValidationFailed       ErrorCode = "validation_failed"
	ErrorCodeUnauthorized           ErrorCode = "unauthorized"
	ErrorCodeForbidden              ErrorCode = "forbidden"
	ErrorCodeUnsupportedDocument    ErrorCode = "unsupported_document"
	ErrorCodeDocumentFetchFailed    ErrorCode = "document_fetch_failed"
	ErrorCodeEmbeddingProviderError ErrorCode = "embedding_provider_error"
	ErrorCodeUpstreamError          ErrorCode = "upstream_error"
	ErrorCodeUpstreamTimeout        ErrorCode = "upstream_timeout"
	ErrorCodeConfigurationError     ErrorCode = "configuration_error"
	ErrorCodeInternalError          ErrorCode = "internal_error"
)

// ErrorResponse is the single failure shape of the API.
type ErrorResponse struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

// RunRequest is the body of POST /api/v1/hackrx/run.
type RunRequest struct {
	Documents string   `json:"documents"`
	Questions []string `json:"questions"`
}

// RunResponse holds one answer per question, in question order.
type RunResponse struct {
	Answers []string `json:"answers"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status  string            `json:"status"`
	Message string            `json:"message"`
	Checks  map[string]string `json:"checks,omitempty"`
}

// RootResponse is the body of GET /.
type RootResponse struct {
	Msg string `json:"msg"`
}
