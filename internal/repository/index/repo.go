// Package index is the vector index gateway: chunk persistence, schema
// management and similarity queries with version snapshot isolation.
package index

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"

	"go.uber.org/zap"

	"github.com/kailas-cloud/ragline/internal/db"
	"github.com/kailas-cloud/ragline/internal/domain"
)

const (
	// IndexName is the FT index over chunk hashes.
	IndexName = "ragline:chunks"

	chunkPrefix = "ragline:chunk:"
	liveKey     = "ragline:live"

	// oversampleFactor compensates for superseded-version hits that the
	// snapshot filter drops after the KNN pass.
	oversampleFactor = 3
)

// store is the consumer interface for the index gateway (ISP).
type store interface {
	HSet(ctx context.Context, key string, fields map[string]string) error
	HSetMulti(ctx context.Context, items []db.HashSetItem) error
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	HDel(ctx context.Context, key string, fields ...string) error
	DelMulti(ctx context.Context, keys []string) error
	Scan(ctx context.Context, pattern string) ([]string, error)
	SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error)
	CreateIndex(ctx context.Context, def *db.IndexDefinition) error
	IndexExists(ctx context.Context, name string) (bool, error)
}

// HNSWConfig tunes the HNSW graph build.
type HNSWConfig struct {
	M           int
	EFConstruct int
}

// Repo implements the vector store gateway.
type Repo struct {
	store  store
	cfg    domain.VectorConfig
	hnsw   HNSWConfig
	logger *zap.Logger
}

// New creates an index repository.
func New(s store, cfg domain.VectorConfig, logger *zap.Logger) *Repo {
	return &Repo{
		store:  s,
		cfg:    cfg,
		hnsw:   HNSWConfig{M: 16, EFConstruct: 200},
		logger: logger,
	}
}

// WithHNSW overrides the HNSW build parameters.
func (r *Repo) WithHNSW(cfg HNSWConfig) *Repo {
	if cfg.M > 0 {
		r.hnsw.M = cfg.M
	}
	if cfg.EFConstruct > 0 {
		r.hnsw.EFConstruct = cfg.EFConstruct
	}
	return r
}

// EnsureSchema creates the FT index when absent. Safe to call on every start.
func (r *Repo) EnsureSchema(ctx context.Context) error {
	exists, err := r.store.IndexExists(ctx, IndexName)
	if err != nil {
		return fmt.Errorf("probe index: %w: %v", domain.ErrIndexUnavailable, err)
	}
	if exists {
		return nil
	}

	builder := db.NewIndex(IndexName).
		Prefix(chunkPrefix).
		TagWithOpts("document_id", ",", true).
		Numeric("version").
		Numeric("seq")

	if r.cfg.Algorithm == "flat" {
		builder = builder.VectorFlat("vector", r.cfg.Dimensions, db.DistanceCosine, 0)
	} else {
		builder = builder.VectorHNSW("vector", r.cfg.Dimensions, db.DistanceCosine, r.hnsw.M, r.hnsw.EFConstruct)
	}

	def, err := builder.Build()
	if err != nil {
		return fmt.Errorf("build index schema: %w", err)
	}

	if err := r.store.CreateIndex(ctx, def); err != nil {
		if errors.Is(err, db.ErrIndexExists) {
			return nil
		}
		return fmt.Errorf("create index: %w: %v", domain.ErrIndexUnavailable, err)
	}

	if r.logger != nil {
		r.logger.Info("vector index created",
			zap.String("index", IndexName),
			zap.Int("dimensions", r.cfg.Dimensions),
			zap.String("algorithm", r.cfg.Algorithm))
	}
	return nil
}

// Upsert writes all chunk records of one document version, then atomically
// flips the live pointer to it. Old-version chunks are retired afterwards;
// retirement failure is logged, not returned — the superseded records are
// invisible to queries once the pointer moved.
func (r *Repo) Upsert(ctx context.Context, docID string, version int, records []domain.IndexRecord) error {
	if len(records) == 0 {
		return fmt.Errorf("no records for document %s", docID)
	}

	items := make([]db.HashSetItem, len(records))
	for i, rec := range records {
		if len(rec.Vector) != r.cfg.Dimensions {
			return fmt.Errorf("record %s has %d dimensions, index expects %d: %w",
				rec.ChunkID, len(rec.Vector), r.cfg.Dimensions, domain.ErrDimensionMismatch)
		}
		items[i] = db.HashSetItem{Key: chunkKey(rec.ChunkID), Fields: recordToFields(&rec)}
	}

	if err := r.store.HSetMulti(ctx, items); err != nil {
		return fmt.Errorf("write chunks %s v%d: %w: %v", docID, version, domain.ErrIndexUnavailable, err)
	}

	if err := r.store.HSet(ctx, liveKey, map[string]string{docID: strconv.Itoa(version)}); err != nil {
		return fmt.Errorf("flip live pointer %s v%d: %w: %v", docID, version, domain.ErrIndexUnavailable, err)
	}

	r.retire(ctx, docID, version)
	return nil
}

// retire deletes chunk records of superseded versions, best effort.
func (r *Repo) retire(ctx context.Context, docID string, liveVersion int) {
	keys, err := r.store.Scan(ctx, chunkPrefix+docID+":*")
	if err != nil {
		if r.logger != nil {
			r.logger.Warn("retirement scan failed", zap.String("document_id", docID), zap.Error(err))
		}
		return
	}

	prefix := chunkPrefix + docID + ":" + strconv.Itoa(liveVersion) + ":"
	var stale []string
	for _, key := range keys {
		if len(key) < len(prefix) || key[:len(prefix)] != prefix {
			stale = append(stale, key)
		}
	}
	if len(stale) == 0 {
		return
	}

	if err := r.store.DelMulti(ctx, stale); err != nil {
		if r.logger != nil {
			r.logger.Warn("retirement delete failed", zap.String("document_id", docID), zap.Error(err))
		}
		return
	}
	if r.logger != nil {
		r.logger.Debug("retired superseded chunks",
			zap.String("document_id", docID),
			zap.Int("count", len(stale)))
	}
}

// Query runs a KNN search and returns up to k chunks from live document
// versions only, ordered by similarity descending with chunk id as the
// deterministic tie-break. The KNN pass oversamples so superseded-version
// hits dropped by the snapshot filter do not starve the result.
func (r *Repo) Query(ctx context.Context, vector []float32, k int, filter domain.QueryFilter) ([]domain.RetrievedChunk, error) {
	if len(vector) != r.cfg.Dimensions {
		return nil, fmt.Errorf("query vector has %d dimensions, index expects %d: %w",
			len(vector), r.cfg.Dimensions, domain.ErrDimensionMismatch)
	}

	live, err := r.LiveVersions(ctx)
	if err != nil {
		return nil, err
	}
	if len(live) == 0 {
		return nil, nil
	}

	q := &db.KNNQuery{
		IndexName:   IndexName,
		Vector:      vector,
		K:           k * oversampleFactor,
		DocumentIDs: filter.DocumentIDs,
		ReturnFields: []string{
			"document_id", "version", "seq", "text",
			"start", "end", "first_block", "last_block", "__vector_score",
		},
	}

	sr, err := r.store.SearchKNN(ctx, q)
	if err != nil && ctx.Err() == nil {
		// One retry absorbs transient backend hiccups.
		if r.logger != nil {
			r.logger.Warn("knn query failed, retrying", zap.Error(err))
		}
		sr, err = r.store.SearchKNN(ctx, q)
	}
	if err != nil {
		return nil, fmt.Errorf("knn query: %w: %v", domain.ErrIndexUnavailable, err)
	}
	if sr == nil {
		return nil, nil
	}

	chunks := make([]domain.RetrievedChunk, 0, min(k, len(sr.Entries)))
	for _, entry := range sr.Entries {
		chunk, err := entryToChunk(entry)
		if err != nil {
			continue
		}
		if live[chunk.DocumentID] != chunk.Version {
			continue // superseded version, invisible under the snapshot
		}
		chunks = append(chunks, chunk)
	}

	sort.SliceStable(chunks, func(i, j int) bool {
		if chunks[i].Score != chunks[j].Score {
			return chunks[i].Score > chunks[j].Score
		}
		return chunks[i].ChunkID < chunks[j].ChunkID
	})

	if len(chunks) > k {
		chunks = chunks[:k]
	}
	return chunks, nil
}

// Delete removes all chunk records of a document and its live pointer.
// Idempotent: deleting an unknown document is a no-op.
func (r *Repo) Delete(ctx context.Context, docID string) error {
	keys, err := r.store.Scan(ctx, chunkPrefix+docID+":*")
	if err != nil {
		return fmt.Errorf("scan chunks %s: %w: %v", docID, domain.ErrIndexUnavailable, err)
	}
	if len(keys) > 0 {
		if err := r.store.DelMulti(ctx, keys); err != nil {
			return fmt.Errorf("delete chunks %s: %w: %v", docID, domain.ErrIndexUnavailable, err)
		}
	}
	if err := r.store.HDel(ctx, liveKey, docID); err != nil {
		return fmt.Errorf("drop live pointer %s: %w: %v", docID, domain.ErrIndexUnavailable, err)
	}
	return nil
}

// LiveVersions returns the document id to live version snapshot.
func (r *Repo) LiveVersions(ctx context.Context) (map[string]int, error) {
	raw, err := r.store.HGetAll(ctx, liveKey)
	if err != nil {
		return nil, fmt.Errorf("read live pointers: %w: %v", domain.ErrIndexUnavailable, err)
	}

	live := make(map[string]int, len(raw))
	for docID, v := range raw {
		version, err := strconv.Atoi(v)
		if err != nil {
			continue
		}
		live[docID] = version
	}
	return live, nil
}

// LiveVersion returns the live version of one document, 0 when absent.
func (r *Repo) LiveVersion(ctx context.Context, docID string) (int, error) {
	live, err := r.LiveVersions(ctx)
	if err != nil {
		return 0, err
	}
	return live[docID], nil
}

func chunkKey(chunkID string) string { return chunkPrefix + chunkID }
