package hosted

import (
	"context"
	"maps"
	"path"
	"slices"
	"sync"

	"github.com/kailas-cloud/geosuggest/internal/db"
)

// mockStore is an in-memory hash store. SCAN patterns use path.Match, which
// agrees with Redis globbing for the patterns this package builds. Pages hold
// pageSize keys in map order, like a real SCAN.
type mockStore struct {
	mu       sync.Mutex
	hashes   map[string]map[string]string
	pageSize int
	scanErr  error
	getErr   error
}

func newMockStore() *mockStore {
	return &mockStore{hashes: make(map[string]map[string]string), pageSize: 2}
}

func (m *mockStore) PutHashes(_ context.Context, hashes []db.Hash) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, h := range hashes {
		if len(h.Fields) == 0 {
			continue
		}
		cur, ok := m.hashes[h.Key]
		if !ok {
			cur = make(map[string]string)
			m.hashes[h.Key] = cur
		}
		maps.Copy(cur, h.Fields)
	}
	return nil
}

func (m *mockStore) GetHashes(_ context.Context, keys []string) ([]db.Hash, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	out := make([]db.Hash, 0, len(keys))
	for _, k := range keys {
		if h, ok := m.hashes[k]; ok {
			out = append(out, db.Hash{Key: k, Fields: maps.Clone(h)})
		}
	}
	return out, nil
}

func (m *mockStore) Delete(_ context.Context, keys ...string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, k := range keys {
		if _, ok := m.hashes[k]; ok {
			delete(m.hashes, k)
			n++
		}
	}
	return n, nil
}

func (m *mockStore) ScanPages(_ context.Context, pattern string, fn func([]string) error) error {
	m.mu.Lock()
	if m.scanErr != nil {
		m.mu.Unlock()
		return m.scanErr
	}
	var matched []string
	for k := range m.hashes {
		if ok, _ := path.Match(pattern, k); ok {
			matched = append(matched, k)
		}
	}
	m.mu.Unlock()

	// fn may call back into the store.
	for page := range slices.Chunk(matched, m.pageSize) {
		if err := fn(page); err != nil {
			return err
		}
	}
	return nil
}
