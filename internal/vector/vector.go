// Package vector stores chunk embeddings in named collections and answers
// nearest-neighbour queries over them.
package vector

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
)

var (
	ErrCollectionNotFound = errors.New("collection not found")
	ErrCollectionExists   = errors.New("collection already exists")
)

type ErrDimensionMismatch struct {
	Expected int
	Got      int
}

func (e ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("embedding dimension mismatch: collection has %d, got %d", e.Expected, e.Got)
}

// Record is one chunk to store.
type Record struct {
	ID        string            `json:"id"`
	Text      string            `json:"text"`
	Embedding []float32         `json:"embedding"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// Match is a query hit. Score is cosine similarity.
type Match struct {
	ID       string            `json:"id"`
	Text     string            `json:"text"`
	Metadata map[string]string `json:"metadata,omitempty"`
	Score    float64           `json:"score"`
}

type Collection interface {
	Name() string
	Add(ctx context.Context, records []Record) error
	Query(ctx context.Context, embedding []float32, k int) ([]Match, error)
	Count(ctx context.Context) (int, error)
}

// Client manages collections. DeleteCollection returns ErrCollectionNotFound
// for unknown names and CreateCollection returns ErrCollectionExists for
// existing ones.
type Client interface {
	CreateCollection(ctx context.Context, name string) (Collection, error)
	GetOrCreateCollection(ctx context.Context, name string) (Collection, error)
	DeleteCollection(ctx context.Context, name string) error
	Close() error
}

func validateRecords(records []Record, dim int) (int, error) {
	seen := make(map[string]struct{}, len(records))
	for _, r := range records {
		if r.ID == "" {
			return dim, errors.New("record id is required")
		}
		if _, dup := seen[r.ID]; dup {
			return dim, fmt.Errorf("duplicate record id %q", r.ID)
		}
		seen[r.ID] = struct{}{}
		if len(r.Embedding) == 0 {
			return dim, fmt.Errorf("record %q has no embedding", r.ID)
		}
		if dim == 0 {
			dim = len(r.Embedding)
		}
		if len(r.Embedding) != dim {
			return dim, ErrDimensionMismatch{Expected: dim, Got: len(r.Embedding)}
		}
	}
	return dim, nil
}

func normalized(v []float32) []float32 {
	out := make([]float32, len(v))
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		copy(out, v)
		return out
	}
	inv := 1 / math.Sqrt(sum)
	for i, x := range v {
		out[i] = float32(float64(x) * inv)
	}
	return out
}

func dot(a, b []float32) float64 {
	n := min(len(a), len(b))
	var s float64
	for i := 0; i < n; i++ {
		s += float64(a[i]) * float64(b[i])
	}
	return s
}

func sortMatches(m []Match) {
	sort.SliceStable(m, func(i, j int) bool { return m[i].Score > m[j].Score })
}

func copyMetadata(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
