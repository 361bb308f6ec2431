package vector

import (
	"context"
	"sync"
)

// MemoryClient keeps collections in process memory with brute-force cosine
// search. Nothing survives a restart.
type MemoryClient struct {
	mu          sync.Mutex
	collections map[string]*memoryCollection
}

func NewMemoryClient() *MemoryClient {
	return &MemoryClient{collections: map[string]*memoryCollection{}}
}

func (c *MemoryClient) CreateCollection(_ context.Context, name string) (Collection, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.collections[name]; ok {
		return nil, ErrCollectionExists
	}
	col := &memoryCollection{name: name}
	c.collections[name] = col
	return col, nil
}

func (c *MemoryClient) GetOrCreateCollection(_ context.Context, name string) (Collection, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if col, ok := c.collections[name]; ok {
		return col, nil
	}
	col := &memoryCollection{name: name}
	c.collections[name] = col
	return col, nil
}

func (c *MemoryClient) DeleteCollection(_ context.Context, name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	col, ok := c.collections[name]
	if !ok {
		return ErrCollectionNotFound
	}
	col.mu.Lock()
	col.dropped = true
	col.mu.Unlock()
	delete(c.collections, name)
	return nil
}

func (c *MemoryClient) Close() error { return nil }

type memoryCollection struct {
	mu      sync.RWMutex
	name    string
	dim     int
	dropped bool
	records []Record
	index   map[string]int
}

func (m *memoryCollection) Name() string { return m.name }

func (m *memoryCollection) Add(_ context.Context, records []Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.dropped {
		return ErrCollectionNotFound
	}
	dim, err := validateRecords(records, m.dim)
	if err != nil {
		return err
	}
	m.dim = dim
	if m.index == nil {
		m.index = map[string]int{}
	}
	for _, r := range records {
		stored := Record{ID: r.ID, Text: r.Text, Embedding: normalized(r.Embedding), Metadata: copyMetadata(r.Metadata)}
		if i, ok := m.index[r.ID]; ok {
			m.records[i] = stored
			continue
		}
		m.index[r.ID] = len(m.records)
		m.records = append(m.records, stored)
	}
	return nil
}

func (m *memoryCollection) Query(_ context.Context, embedding []float32, k int) ([]Match, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.dropped {
		return nil, ErrCollectionNotFound
	}
	if len(m.records) == 0 || k <= 0 {
		return []Match{}, nil
	}
	if len(embedding) != m.dim {
		return nil, ErrDimensionMismatch{Expected: m.dim, Got: len(embedding)}
	}
	q := normalized(embedding)
	out := make([]Match, 0, len(m.records))
	for _, r := range m.records {
		out = append(out, Match{ID: r.ID, Text: r.Text, Metadata: copyMetadata(r.Metadata), Score: dot(q, r.Embedding)})
	}
	sortMatches(out)
	if len(out) > k {
		out = out[:k]
	}
	return out, nil
}

func (m *memoryCollection) Count(context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.dropped {
		return 0, ErrCollectionNotFound
	}
	return len(m.records), nil
}
