package ragline

import (
	"go.uber.org/zap"
)

// Option configures the Client.
type Option interface {
	apply(*clientConfig)
}

// optionFunc adapts a function to the Option interface.
type optionFunc func(*clientConfig)

func (f optionFunc) apply(c *clientConfig) { f(c) }

type clientConfig struct {
	addrs    []string
	password string

	embedder  Embedder
	generator Generator
	searcher  Searcher

	openAIKey     string
	openAIBaseURL string

	embeddingModel  string
	generationModel string
	dimensions      int

	hnswM           int
	hnswEFConstruct int

	maxChunkSize int
	overlapSize  int

	maxDocumentBytes int

	defaultTimeoutSec int
	defaultTopK       int
	temperature       float32

	logger *zap.Logger
}

// WithRedis configures the client to connect to a Redis instance.
func WithRedis(addr, password string) Option {
	return optionFunc(func(c *clientConfig) {
		c.addrs = []string{addr}
		c.password = password
	})
}

// WithOpenAI builds the embedding and generation providers from one API key.
// Custom providers set via WithEmbedder or WithGenerator take precedence.
func WithOpenAI(apiKey string) Option {
	return optionFunc(func(c *clientConfig) {
		c.openAIKey = apiKey
	})
}

// WithOpenAIBaseURL points the OpenAI-compatible providers at a different
// endpoint.
func WithOpenAIBaseURL(baseURL string) Option {
	return optionFunc(func(c *clientConfig) {
		c.openAIBaseURL = baseURL
	})
}

// WithEmbedder sets a custom text embedding provider.
func WithEmbedder(e Embedder) Option {
	return optionFunc(func(c *clientConfig) {
		c.embedder = e
	})
}

// WithGenerator sets a custom answer generation provider.
func WithGenerator(g Generator) Option {
	return optionFunc(func(c *clientConfig) {
		c.generator = g
	})
}

// WithSearcher enables the web research path with a custom search provider.
// Without it Ask serves from the index only.
func WithSearcher(s Searcher) Option {
	return optionFunc(func(c *clientConfig) {
		c.searcher = s
	})
}

// WithModels overrides the embedding and generation model names used by the
// OpenAI providers.
func WithModels(embedding, generation string) Option {
	return optionFunc(func(c *clientConfig) {
		c.embeddingModel = embedding
		c.generationModel = generation
	})
}

// WithVectorDimensions sets the embedding dimensionality.
// Defaults to 3072 (text-embedding-3-large).
func WithVectorDimensions(dim int) Option {
	return optionFunc(func(c *clientConfig) {
		c.dimensions = dim
	})
}

// WithHNSW configures HNSW index parameters (M and EF construction).
// Defaults: M=16, EFConstruct=200.
func WithHNSW(m, efConstruct int) Option {
	return optionFunc(func(c *clientConfig) {
		c.hnswM = m
		c.hnswEFConstruct = efConstruct
	})
}

// WithChunking overrides the document chunk window and overlap, in runes.
// Defaults: 500/50.
func WithChunking(maxChunkSize, overlapSize int) Option {
	return optionFunc(func(c *clientConfig) {
		c.maxChunkSize = maxChunkSize
		c.overlapSize = overlapSize
	})
}

// WithMaxDocumentBytes overrides the upload size cap. Default: 25 MiB.
func WithMaxDocumentBytes(n int) Option {
	return optionFunc(func(c *clientConfig) {
		c.maxDocumentBytes = n
	})
}

// WithAnswerDefaults overrides the Ask defaults applied when a request leaves
// TopK or the timeout unset. Defaults: 30s, top 8.
func WithAnswerDefaults(timeoutSec, topK int) Option {
	return optionFunc(func(c *clientConfig) {
		c.defaultTimeoutSec = timeoutSec
		c.defaultTopK = topK
	})
}

// WithTemperature sets the generation sampling temperature.
func WithTemperature(t float32) Option {
	return optionFunc(func(c *clientConfig) {
		c.temperature = t
	})
}

// WithLogger enables structured logging. Pass nil to disable (default).
func WithLogger(l *zap.Logger) Option {
	return optionFunc(func(c *clientConfig) {
		c.logger = l
	})
}
