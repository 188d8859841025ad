package catalog

import (
	"context"
	"testing"

	"github.com/kailas-cloud/ragline/internal/domain"
)

// mockStore implements the consumer interface for tests.
type mockStore struct {
	hSetFn         func(ctx context.Context, key string, fields map[string]string) error
	hGetAllFn      func(ctx context.Context, key string) (map[string]string, error)
	hGetAllMultiFn func(ctx context.Context, keys []string) ([]map[string]string, error)
	delFn          func(ctx context.Context, key string) error
	existsFn       func(ctx context.Context, key string) (bool, error)
	scanFn         func(ctx context.Context, pattern string) ([]string, error)
}

func (m *mockStore) HSet(ctx context.Context, key string, fields map[string]string) error {
	if m.hSetFn != nil {
		return m.hSetFn(ctx, key, fields)
	}
	return nil
}

func (m *mockStore) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	if m.hGetAllFn != nil {
		return m.hGetAllFn(ctx, key)
	}
	return map[string]string{}, nil
}

func (m *mockStore) HGetAllMulti(ctx context.Context, keys []string) ([]map[string]string, error) {
	if m.hGetAllMultiFn != nil {
		return m.hGetAllMultiFn(ctx, keys)
	}
	return make([]map[string]string, len(keys)), nil
}

func (m *mockStore) Del(ctx context.Context, key string) error {
	if m.delFn != nil {
		return m.delFn(ctx, key)
	}
	return nil
}

func (m *mockStore) Exists(ctx context.Context, key string) (bool, error) {
	if m.existsFn != nil {
		return m.existsFn(ctx, key)
	}
	return false, nil
}

func (m *mockStore) Scan(ctx context.Context, pattern string) ([]string, error) {
	if m.scanFn != nil {
		return m.scanFn(ctx, pattern)
	}
	return nil, nil
}

func newTestRepo(t *testing.T) (*Repo, *mockStore) {
	t.Helper()
	ms := &mockStore{}
	return New(ms), ms
}

func testDocument(t *testing.T, id string) domain.Document {
	t.Helper()
	doc, err := domain.NewDocument(id, "Test Doc", domain.FormatText, 1024)
	if err != nil {
		t.Fatalf("NewDocument failed: %v", err)
	}
	doc.SetLive(1, 5, 1700000000000)
	return doc
}

func docHash(title string) map[string]string {
	return map[string]string{
		"title":        title,
		"format":       "text",
		"size_bytes":   "1024",
		"live_version": "1",
		"chunk_count":  "5",
		"ingested_at":  "1700000000000",
	}
}
