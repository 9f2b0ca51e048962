package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Generation providers.
const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
)

// Config holds the docqa service configuration.
type Config struct {
	HTTP       HTTPConfig       `yaml:"http"`
	Auth       AuthConfig       `yaml:"auth"`
	Logging    LoggingConfig    `yaml:"logging"`
	Database   DatabaseConfig   `yaml:"database"`
	Embedding  EmbeddingConfig  `yaml:"embedding"`
	Generation GenerationConfig `yaml:"generation"`
	Store      StoreConfig      `yaml:"store"`
	Chunking   ChunkingConfig   `yaml:"chunking"`
	Retrieval  RetrievalConfig  `yaml:"retrieval"`
	Pipeline   PipelineConfig   `yaml:"pipeline"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// AuthConfig holds API authentication settings.
type AuthConfig struct {
	APIKeys []string `yaml:"api_keys"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// DatabaseConfig holds Redis settings. Empty Addrs disables Redis:
// no embedding cache and in-process locking only.
type DatabaseConfig struct {
	Addrs            []string `yaml:"addrs"`
	Password         string   `yaml:"password"`
	KeyPrefix        string   `yaml:"key_prefix"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
	LockTTLSec       int      `yaml:"lock_ttl_sec"`
}

// Enabled reports whether a Redis backend is configured.
func (d DatabaseConfig) Enabled() bool { return len(d.Addrs) > 0 }

// EmbeddingConfig holds settings of the OpenAI-compatible embedding endpoint.
type EmbeddingConfig struct {
	APIKey              string `yaml:"api_key"`
	BaseURL             string `yaml:"base_url"`
	Model               string `yaml:"model"`
	Dimensions          int    `yaml:"dimensions"`
	DocumentInstruction string `yaml:"document_instruction"`
	QueryInstruction    string `yaml:"query_instruction"`
	Cache               bool   `yaml:"cache"`           // requires database.addrs
	CacheTTLHours       int    `yaml:"cache_ttl_hours"` // 0 keeps vectors forever
}

// CacheTTL returns the expiry of cached vectors, zero for none.
func (e EmbeddingConfig) CacheTTL() time.Duration {
	return time.Duration(e.CacheTTLHours) * time.Hour
}

// GenerationConfig holds settings of the answer-generation service.
type GenerationConfig struct {
	Provider       string `yaml:"provider"` // gemini (default), openai
	APIKey         string `yaml:"api_key"`
	BaseURL        string `yaml:"base_url"` // openai only; gemini uses the SDK endpoint
	Model          string `yaml:"model"`
	TimeoutSec     int    `yaml:"timeout_sec"`
	MaxAttempts    int    `yaml:"max_attempts"`
	BackoffMs      int    `yaml:"backoff_ms"`
	MaxConcurrency int    `yaml:"max_concurrency"`
	MaxPromptChars int    `yaml:"max_prompt_chars"`
}

// Timeout returns the per-attempt deadline.
func (g GenerationConfig) Timeout() time.Duration {
	return time.Duration(g.TimeoutSec) * time.Second
}

// Backoff returns the base retry delay.
func (g GenerationConfig) Backoff() time.Duration {
	return time.Duration(g.BackoffMs) * time.Millisecond
}

// StoreConfig holds persistent vector store settings.
type StoreConfig struct {
	Path        string `yaml:"path"`
	AllowUpdate *bool  `yaml:"allow_update"` // default true
}

// UpdatesAllowed reports whether new chunks may be merged into the persistent store.
func (s StoreConfig) UpdatesAllowed() bool {
	return s.AllowUpdate == nil || *s.AllowUpdate
}

// ChunkingConfig holds text splitter settings.
type ChunkingConfig struct {
	Size    int `yaml:"size"`
	Overlap int `yaml:"overlap"`
}

// RetrievalConfig holds per-source result budgets.
type RetrievalConfig struct {
	TransientK      int `yaml:"transient_k"`
	PersistentK     int `yaml:"persistent_k"`
	PersistentOnlyK int `yaml:"persistent_only_k"`
}

// PipelineConfig holds the outer retry policy of a question batch.
type PipelineConfig struct {
	MaxAttempts         int `yaml:"max_attempts"`
	InitialRetryDelayMs int `yaml:"initial_retry_delay_ms"`
}

// InitialRetryDelay returns the first outer backoff delay.
func (p PipelineConfig) InitialRetryDelay() time.Duration {
	return time.Duration(p.InitialRetryDelayMs) * time.Millisecond
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	configPath := findConfigPath(env)

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	return Parse(data)
}

// Parse decodes YAML config bytes, expanding ${VAR} references, then applies
// defaults and validates.
func Parse(data []byte) (Config, error) {
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// MustLoad loads configuration or panics.
func MustLoad(env string) Config {
	cfg, err := Load(env)
	if err != nil {
		panic(err)
	}
	return cfg
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 30
	}
	// a batch of questions may take several generation round trips
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 300
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Database.ReadinessTimeout <= 0 {
		c.Database.ReadinessTimeout = 10
	}
	if c.Database.LockTTLSec <= 0 {
		c.Database.LockTTLSec = 60
	}
	if c.Database.KeyPrefix == "" {
		c.Database.KeyPrefix = "docqa:"
	}
	if c.Generation.Provider == "" {
		c.Generation.Provider = ProviderGemini
	}
	if c.Generation.Model == "" && c.Generation.Provider == ProviderGemini {
		c.Generation.Model = "gemini-1.5-flash"
	}
	if c.Generation.TimeoutSec <= 0 {
		c.Generation.TimeoutSec = 120
	}
	if c.Generation.MaxAttempts <= 0 {
		c.Generation.MaxAttempts = 3
	}
	if c.Generation.BackoffMs <= 0 {
		c.Generation.BackoffMs = 1000
	}
	if c.Generation.MaxConcurrency <= 0 {
		c.Generation.MaxConcurrency = 8
	}
	if c.Generation.MaxPromptChars <= 0 {
		c.Generation.MaxPromptChars = 120000
	}
	if c.Chunking.Size <= 0 {
		c.Chunking.Size = 1800
	}
	if c.Chunking.Overlap <= 0 {
		c.Chunking.Overlap = 100
	}
	if c.Retrieval.TransientK <= 0 {
		c.Retrieval.TransientK = 3
	}
	if c.Retrieval.PersistentK <= 0 {
		c.Retrieval.PersistentK = 2
	}
	if c.Retrieval.PersistentOnlyK <= 0 {
		c.Retrieval.PersistentOnlyK = 5
	}
	if c.Pipeline.MaxAttempts <= 0 {
		c.Pipeline.MaxAttempts = 3
	}
	if c.Pipeline.InitialRetryDelayMs <= 0 {
		c.Pipeline.InitialRetryDelayMs = 1000
	}
}

// Validate checks the configuration for correctness.
// Missing generation credentials are not rejected here: the service starts
// and reports a configuration error per request instead.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	switch c.Generation.Provider {
	case ProviderGemini, ProviderOpenAI:
		// ok
	default:
		return fmt.Errorf(
			"generation.provider must be %q or %q, got %q",
			ProviderGemini, ProviderOpenAI, c.Generation.Provider,
		)
	}
	if c.Generation.Provider == ProviderOpenAI && c.Generation.Model == "" {
		return fmt.Errorf("generation.model is required for provider %q", ProviderOpenAI)
	}
	if c.Embedding.Model == "" {
		return fmt.Errorf("embedding.model is required")
	}
	if c.Embedding.Dimensions <= 0 {
		return fmt.Errorf("embedding.dimensions must be positive, got %d", c.Embedding.Dimensions)
	}
	if c.Embedding.Cache && !c.Database.Enabled() {
		return fmt.Errorf("embedding.cache requires database.addrs")
	}
	if c.Store.Path == "" {
		return fmt.Errorf("store.path is required")
	}
	if c.Chunking.Overlap >= c.Chunking.Size {
		return fmt.Errorf(
			"chunking.overlap (%d) must be smaller than chunking.size (%d)",
			c.Chunking.Overlap, c.Chunking.Size,
		)
	}
	return nil
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
