package domain

// VectorConfig holds internal vectorization settings, not exposed to clients.
type VectorConfig struct {
	Model               string
	Dimensions          int
	DistanceMetric      string
	Algorithm           string
	DocumentInstruction string
	QueryInstruction    string
}

// DefaultVectorConfig returns the default configuration tuned for text-embedding-3-large.
func DefaultVectorConfig() VectorConfig {
	return VectorConfig{
		Model:          "text-embedding-3-large",
		Dimensions:     3072,
		DistanceMetric: "cosine",
		Algorithm:      "hnsw",
	}
}

// ChunkingConfig bounds chunk size and overlap for the sliding window.
type ChunkingConfig struct {
	MaxChunkSize   int
	OverlapSize    int
	SplitSentences bool
	MinChunkSize   int // sentence mode only: a smaller final chunk merges into its predecessor
}

// DefaultChunkingConfig returns the ingestion chunking defaults.
func DefaultChunkingConfig() ChunkingConfig {
	return ChunkingConfig{MaxChunkSize: 500, OverlapSize: 50, MinChunkSize: 20}
}

// DefaultWebChunkingConfig returns the passage config for web-fetched pages,
// which run larger windows than uploaded documents.
func DefaultWebChunkingConfig() ChunkingConfig {
	return ChunkingConfig{MaxChunkSize: 1000, OverlapSize: 200, MinChunkSize: 20}
}
