package vector

import (
	"sort"
	"sync"

	"github.com/coder/hnsw"
)

// exactScanLimit is the largest collection searched by a full cosine scan.
// Larger collections draw candidates from the HNSW graph and re-rank them.
const exactScanLimit = 4096

// graphIndex is an in-memory index over one collection's embeddings, keyed by
// row sequence number. generation records which collection state it was built
// from.
type graphIndex struct {
	mu         sync.Mutex
	graph      *hnsw.Graph[uint64]
	keys       []uint64
	vecs       map[uint64][]float32
	exactLimit int
	generation int64
}

type graphHit struct {
	Key   uint64
	Score float64
}

func newGraphIndex(generation int64) *graphIndex {
	g := hnsw.NewGraph[uint64]()
	g.Distance = hnsw.CosineDistance
	g.M = 16
	g.Ml = 0.25
	g.EfSearch = 64
	return &graphIndex{
		graph:      g,
		vecs:       map[uint64][]float32{},
		exactLimit: exactScanLimit,
		generation: generation,
	}
}

// add inserts vectors; keys and vecs are parallel.
func (g *graphIndex) add(keys []uint64, vecs [][]float32) {
	g.mu.Lock()
	defer g.mu.Unlock()
	nodes := make([]hnsw.Node[uint64], 0, len(keys))
	for i, k := range keys {
		v := normalized(vecs[i])
		if _, ok := g.vecs[k]; !ok {
			g.keys = append(g.keys, k)
		}
		g.vecs[k] = v
		nodes = append(nodes, hnsw.MakeNode(k, v))
	}
	g.graph.Add(nodes...)
}

// search returns the k best keys by cosine similarity, best first.
func (g *graphIndex) search(query []float32, k int) []graphHit {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.keys) == 0 || k <= 0 {
		return nil
	}
	q := normalized(query)

	candidates := g.keys
	if len(g.keys) > g.exactLimit {
		// The graph walk stops at the first non-improving hop, so ask for
		// many more nodes than needed and keep the exact best of those.
		n := min(len(g.keys), max(k*10, g.graph.EfSearch))
		nodes := g.graph.Search(q, n)
		candidates = make([]uint64, 0, len(nodes))
		for _, node := range nodes {
			candidates = append(candidates, node.Key)
		}
	}

	hits := make([]graphHit, 0, len(candidates))
	for _, key := range candidates {
		hits = append(hits, graphHit{Key: key, Score: dot(q, g.vecs[key])})
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits
}
