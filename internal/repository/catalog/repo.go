// Package catalog persists document metadata: one hash per document under
// ragline:doc:<id>. Chunk payloads and vectors live in the index repository.
package catalog

import (
	"context"
	"fmt"
	"sort"
	"strconv"

	"github.com/kailas-cloud/ragline/internal/domain"
)

const docPrefix = "ragline:doc:"

// store is the consumer interface for the catalog (ISP).
type store interface {
	HSet(ctx context.Context, key string, fields map[string]string) error
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	HGetAllMulti(ctx context.Context, keys []string) ([]map[string]string, error)
	Del(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
	Scan(ctx context.Context, pattern string) ([]string, error)
}

// Repo implements the document catalog.
type Repo struct {
	store store
}

// New creates a catalog repository.
func New(s store) *Repo {
	return &Repo{store: s}
}

// Upsert creates or updates a document's metadata. Returns true if created.
func (r *Repo) Upsert(ctx context.Context, doc *domain.Document) (bool, error) {
	key := docKey(doc.ID())

	exists, err := r.store.Exists(ctx, key)
	if err != nil {
		return false, fmt.Errorf("check exists %s: %w", key, err)
	}

	if err := r.store.HSet(ctx, key, buildHashFields(doc)); err != nil {
		return false, fmt.Errorf("hset %s: %w", key, err)
	}
	return !exists, nil
}

// Get returns a document's metadata by ID.
func (r *Repo) Get(ctx context.Context, id string) (domain.Document, error) {
	key := docKey(id)
	fields, err := r.store.HGetAll(ctx, key)
	if err != nil {
		return domain.Document{}, fmt.Errorf("hgetall %s: %w", key, err)
	}
	if len(fields) == 0 {
		return domain.Document{}, domain.ErrDocumentNotFound
	}
	return parseHashFields(id, fields), nil
}

// Exists reports whether a document is in the catalog.
func (r *Repo) Exists(ctx context.Context, id string) (bool, error) {
	ok, err := r.store.Exists(ctx, docKey(id))
	if err != nil {
		return false, fmt.Errorf("check exists %s: %w", docKey(id), err)
	}
	return ok, nil
}

// List returns documents with cursor-based pagination, ordered by ID.
// The cursor is the numeric offset of the next page, "" when exhausted.
func (r *Repo) List(ctx context.Context, cursor string, limit int) ([]domain.Document, string, error) {
	if limit <= 0 {
		limit = 20
	}

	offset := 0
	if cursor != "" {
		parsed, err := strconv.Atoi(cursor)
		if err != nil || parsed < 0 {
			return nil, "", fmt.Errorf("invalid cursor %q", cursor)
		}
		offset = parsed
	}

	keys, err := r.store.Scan(ctx, docPrefix+"*")
	if err != nil {
		return nil, "", fmt.Errorf("scan documents: %w", err)
	}
	sort.Strings(keys)

	if offset >= len(keys) {
		return nil, "", nil
	}
	page := keys[offset:]
	if len(page) > limit {
		page = page[:limit]
	}

	hashes, err := r.store.HGetAllMulti(ctx, page)
	if err != nil {
		return nil, "", fmt.Errorf("fetch documents: %w", err)
	}

	docs := make([]domain.Document, 0, len(page))
	for i, key := range page {
		if i >= len(hashes) || len(hashes[i]) == 0 {
			continue // deleted between scan and fetch
		}
		docs = append(docs, parseHashFields(key[len(docPrefix):], hashes[i]))
	}

	var nextCursor string
	if offset+limit < len(keys) {
		nextCursor = strconv.Itoa(offset + limit)
	}
	return docs, nextCursor, nil
}

// Count returns the number of cataloged documents.
func (r *Repo) Count(ctx context.Context) (int, error) {
	keys, err := r.store.Scan(ctx, docPrefix+"*")
	if err != nil {
		return 0, fmt.Errorf("scan documents: %w", err)
	}
	return len(keys), nil
}

// PutText stores the normalized text alongside the metadata, so the document
// can be re-chunked and re-embedded without the original upload.
func (r *Repo) PutText(ctx context.Context, id, text string) error {
	key := docKey(id)
	if err := r.store.HSet(ctx, key, map[string]string{"text": text}); err != nil {
		return fmt.Errorf("store text %s: %w", key, err)
	}
	return nil
}

// GetText returns the stored normalized text of a document.
func (r *Repo) GetText(ctx context.Context, id string) (string, error) {
	key := docKey(id)
	fields, err := r.store.HGetAll(ctx, key)
	if err != nil {
		return "", fmt.Errorf("hgetall %s: %w", key, err)
	}
	if len(fields) == 0 {
		return "", domain.ErrDocumentNotFound
	}
	return fields["text"], nil
}

// Delete removes a document's metadata.
func (r *Repo) Delete(ctx context.Context, id string) error {
	key := docKey(id)

	exists, err := r.store.Exists(ctx, key)
	if err != nil {
		return fmt.Errorf("check exists %s: %w", key, err)
	}
	if !exists {
		return domain.ErrDocumentNotFound
	}

	if err := r.store.Del(ctx, key); err != nil {
		return fmt.Errorf("del %s: %w", key, err)
	}
	return nil
}

func docKey(id string) string { return docPrefix + id }
