package domain

import "fmt"

// TextBlock is one structural unit of extracted text (a page, or the whole
// body for formats without pages). Offsets index into the normalized document
// text the blocks concatenate to. Not persisted.
type TextBlock struct {
	Index int // 1-based block number, e.g. page number
	Text  string
	Start int
	End   int
}

// Chunk is the unit of retrieval granularity.
type Chunk struct {
	DocumentID string
	Seq        int // 0-based position within the document
	Text       string
	Start      int // char offset range [Start,End) into the normalized text
	End        int
	FirstBlock int // block span for provenance, 1-based
	LastBlock  int
}

// ChunkID builds the stable record identifier for a chunk of a document version.
func ChunkID(docID string, version, seq int) string {
	return fmt.Sprintf("%s:%d:%d", docID, version, seq)
}

// IndexRecord is the persisted tuple the vector index stores per chunk.
type IndexRecord struct {
	ChunkID    string
	DocumentID string
	Version    int
	Seq        int
	Vector     []float32
	Text       string
	Start      int
	End        int
	FirstBlock int
	LastBlock  int
}

// RecordsFromChunks pairs chunks with their vectors into IndexRecords for one
// document version. Lengths must agree; the embedder guarantees one vector per
// input.
func RecordsFromChunks(docID string, version int, chunks []Chunk, vectors [][]float32) ([]IndexRecord, error) {
	if len(chunks) != len(vectors) {
		return nil, fmt.Errorf("chunk/vector count mismatch: %d vs %d", len(chunks), len(vectors))
	}
	records := make([]IndexRecord, len(chunks))
	for i, c := range chunks {
		records[i] = IndexRecord{
			ChunkID:    ChunkID(docID, version, c.Seq),
			DocumentID: docID,
			Version:    version,
			Seq:        c.Seq,
			Vector:     vectors[i],
			Text:       c.Text,
			Start:      c.Start,
			End:        c.End,
			FirstBlock: c.FirstBlock,
			LastBlock:  c.LastBlock,
		}
	}
	return records, nil
}

// RetrievedChunk is one similarity hit from the vector index: the stored
// chunk plus its similarity score in [0,1].
type RetrievedChunk struct {
	ChunkID    string
	DocumentID string
	Version    int
	Seq        int
	Text       string
	Start      int
	End        int
	FirstBlock int
	LastBlock  int
	Score      float64
}

// QueryFilter restricts a vector query to a subset of documents.
// A zero filter matches everything.
type QueryFilter struct {
	DocumentIDs []string
}

// IsZero reports whether the filter imposes no restriction.
func (f QueryFilter) IsZero() bool { return len(f.DocumentIDs) == 0 }
