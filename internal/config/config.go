// Package config loads the ragline YAML configuration with environment
// variable expansion.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds the ragline engine configuration.
type Config struct {
	HTTP       HTTPConfig       `yaml:"http"`
	Database   DatabaseConfig   `yaml:"database"`
	Embedding  EmbeddingConfig  `yaml:"embedding"`
	Generation GenerationConfig `yaml:"generation"`
	Search     SearchConfig     `yaml:"search"`
	Fetch      FetchConfig      `yaml:"fetch"`
	Chunking   ChunkingConfig   `yaml:"chunking"`
	Index      IndexConfig      `yaml:"index"`
	Ingest     IngestConfig     `yaml:"ingest"`
	Answer     AnswerConfig     `yaml:"answer"`
	Auth       AuthConfig       `yaml:"auth"`
	Logging    LoggingConfig    `yaml:"logging"`
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

// DatabaseConfig holds Redis connection settings.
type DatabaseConfig struct {
	Addrs            []string `yaml:"addrs"`
	Password         string   `yaml:"password"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
}

// EmbeddingConfig holds the embedding provider settings.
type EmbeddingConfig struct {
	Provider            string `yaml:"provider"`
	APIKey              string `yaml:"api_key"`
	BaseURL             string `yaml:"base_url"`
	Model               string `yaml:"model"`
	Dimensions          int    `yaml:"dimensions"`
	RequestsPerMinute   int    `yaml:"requests_per_minute"`
	DocumentInstruction string `yaml:"document_instruction"`
	QueryInstruction    string `yaml:"query_instruction"`
}

// GenerationConfig holds the answer synthesis provider settings.
type GenerationConfig struct {
	APIKey           string  `yaml:"api_key"`
	BaseURL          string  `yaml:"base_url"`
	Model            string  `yaml:"model"`
	Temperature      float32 `yaml:"temperature"`
	MaxContextTokens int     `yaml:"max_context_tokens"`
	MaxAnswerTokens  int     `yaml:"max_answer_tokens"`
}

// SearchConfig holds the web search provider settings.
type SearchConfig struct {
	APIKey            string `yaml:"api_key"`
	BaseURL           string `yaml:"base_url"`
	CacheTTLSec       int    `yaml:"cache_ttl_sec"`
	RequestsPerMinute int    `yaml:"requests_per_minute"`
}

// FetchConfig holds the web page fetcher settings.
type FetchConfig struct {
	TimeoutSec      int   `yaml:"timeout_sec"`
	MaxBodyBytes    int64 `yaml:"max_body_bytes"`
	Concurrency     int   `yaml:"concurrency"`
	MinSuccessful   int   `yaml:"min_successful"`
	SnippetFallback bool  `yaml:"snippet_fallback"`
}

// ChunkingConfig holds document and web passage chunking settings, in runes.
type ChunkingConfig struct {
	MaxChunkSize   int  `yaml:"max_chunk_size"`
	OverlapSize    int  `yaml:"overlap_size"`
	MinChunkSize   int  `yaml:"min_chunk_size"`
	SplitSentences bool `yaml:"split_sentences"`

	WebMaxChunkSize int `yaml:"web_max_chunk_size"`
	WebOverlapSize  int `yaml:"web_overlap_size"`
}

// IndexConfig holds vector index and pagination settings.
type IndexConfig struct {
	Algorithm       string `yaml:"algorithm"` // hnsw (default) or flat
	HNSWM           int    `yaml:"hnsw_m"`
	HNSWEFConstruct int    `yaml:"hnsw_ef_construction"`
	DefaultPageSize int    `yaml:"default_page_size"`
	MaxPageSize     int    `yaml:"max_page_size"`
}

// IngestConfig holds document ingestion settings.
type IngestConfig struct {
	MaxDocumentBytes int `yaml:"max_document_bytes"`
}

// AnswerConfig holds query pipeline settings.
type AnswerConfig struct {
	DefaultTimeoutSec int `yaml:"default_timeout_sec"`
	DefaultTopK       int `yaml:"default_top_k"`
}

// Load reads configuration from a YAML file by environment name (local, dev,
// prod). RAGLINE_CONFIG_PATH overrides the lookup entirely.
func Load(env string) (Config, error) {
	configPath := findConfigPath(env)

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	// Substitute env variables of the form ${VAR}
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
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		// answer requests may legitimately run up to their 60s timeout cap
		c.HTTP.WriteTimeoutSec = 75
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Database.ReadinessTimeout <= 0 {
		c.Database.ReadinessTimeout = 10
	}
	if c.Embedding.Model == "" {
		c.Embedding.Model = "text-embedding-3-large"
	}
	if c.Embedding.Dimensions <= 0 {
		c.Embedding.Dimensions = 3072
	}
	if c.Embedding.Provider == "" {
		c.Embedding.Provider = "openai"
	}
	if c.Generation.Model == "" {
		c.Generation.Model = "gpt-4o-mini"
	}
	if c.Generation.MaxContextTokens <= 0 {
		c.Generation.MaxContextTokens = 3000
	}
	if c.Generation.MaxAnswerTokens <= 0 {
		c.Generation.MaxAnswerTokens = 500
	}
	if c.Search.CacheTTLSec <= 0 {
		c.Search.CacheTTLSec = 900
	}
	if c.Search.RequestsPerMinute <= 0 {
		c.Search.RequestsPerMinute = 60
	}
	if c.Fetch.TimeoutSec <= 0 {
		c.Fetch.TimeoutSec = 10
	}
	if c.Fetch.Concurrency <= 0 {
		c.Fetch.Concurrency = 4
	}
	if c.Fetch.MinSuccessful <= 0 {
		c.Fetch.MinSuccessful = 2
	}
	if c.Chunking.MaxChunkSize <= 0 {
		c.Chunking.MaxChunkSize = 500
	}
	if c.Chunking.OverlapSize <= 0 {
		c.Chunking.OverlapSize = 50
	}
	if c.Chunking.MinChunkSize <= 0 {
		c.Chunking.MinChunkSize = 20
	}
	if c.Chunking.WebMaxChunkSize <= 0 {
		c.Chunking.WebMaxChunkSize = 1000
	}
	if c.Chunking.WebOverlapSize <= 0 {
		c.Chunking.WebOverlapSize = 200
	}
	if c.Index.Algorithm == "" {
		c.Index.Algorithm = "hnsw"
	}
	if c.Index.HNSWM <= 0 {
		c.Index.HNSWM = 16
	}
	if c.Index.HNSWEFConstruct <= 0 {
		c.Index.HNSWEFConstruct = 200
	}
	if c.Index.DefaultPageSize <= 0 {
		c.Index.DefaultPageSize = 20
	}
	if c.Index.MaxPageSize <= 0 {
		c.Index.MaxPageSize = 100
	}
	if c.Ingest.MaxDocumentBytes <= 0 {
		c.Ingest.MaxDocumentBytes = 25 << 20
	}
	if c.Answer.DefaultTimeoutSec <= 0 {
		c.Answer.DefaultTimeoutSec = 30
	}
	if c.Answer.DefaultTopK <= 0 {
		c.Answer.DefaultTopK = 8
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	if len(c.Database.Addrs) == 0 {
		return fmt.Errorf("database.addrs is required")
	}
	switch c.Index.Algorithm {
	case "hnsw", "flat":
		// ok
	default:
		return fmt.Errorf("index.algorithm must be \"hnsw\" or \"flat\", got %q", c.Index.Algorithm)
	}
	if c.Chunking.OverlapSize >= c.Chunking.MaxChunkSize {
		return fmt.Errorf("chunking.overlap_size (%d) must be smaller than chunking.max_chunk_size (%d)",
			c.Chunking.OverlapSize, c.Chunking.MaxChunkSize)
	}
	if c.Chunking.WebOverlapSize >= c.Chunking.WebMaxChunkSize {
		return fmt.Errorf("chunking.web_overlap_size (%d) must be smaller than chunking.web_max_chunk_size (%d)",
			c.Chunking.WebOverlapSize, c.Chunking.WebMaxChunkSize)
	}
	return nil
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	// 1. Explicit override
	if path := os.Getenv("RAGLINE_CONFIG_PATH"); path != "" {
		return path
	}

	filename := fmt.Sprintf("%s.yaml", env)

	// 2. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 3. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 4. Fallback to ./config/
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
