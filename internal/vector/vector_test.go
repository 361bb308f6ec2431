package vector

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func unit(dim, hot int) []float32 {
	v := make([]float32, dim)
	v[hot%dim] = 1
	return v
}

func records(prefix string, n, dim int) []Record {
	out := make([]Record, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, Record{
			ID:        fmt.Sprintf("%s-%d", prefix, i),
			Text:      fmt.Sprintf("%s chunk %d", prefix, i),
			Embedding: unit(dim, i),
			Metadata:  map[string]string{"source": prefix + ".pdf"},
		})
	}
	return out
}

func clients(t *testing.T) map[string]Client {
	t.Helper()
	sq, err := OpenSQLite(context.Background(), t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = sq.Close() })
	return map[string]Client{"memory": NewMemoryClient(), "sqlite": sq}
}

func TestClientLifecycle(t *testing.T) {
	ctx := context.Background()
	for name, c := range clients(t) {
		t.Run(name, func(t *testing.T) {
			require.ErrorIs(t, c.DeleteCollection(ctx, "docs"), ErrCollectionNotFound)

			col, err := c.CreateCollection(ctx, "docs")
			require.NoError(t, err)
			assert.Equal(t, "docs", col.Name())
			_, err = c.CreateCollection(ctx, "docs")
			require.ErrorIs(t, err, ErrCollectionExists)

			require.NoError(t, col.Add(ctx, records("a", 5, 8)))
			n, err := col.Count(ctx)
			require.NoError(t, err)
			assert.Equal(t, 5, n)

			again, err := c.GetOrCreateCollection(ctx, "docs")
			require.NoError(t, err)
			require.NoError(t, again.Add(ctx, records("b", 3, 8)))
			n, err = col.Count(ctx)
			require.NoError(t, err)
			assert.Equal(t, 8, n)

			require.NoError(t, c.DeleteCollection(ctx, "docs"))
			_, err = col.Count(ctx)
			require.ErrorIs(t, err, ErrCollectionNotFound)

			fresh, err := c.CreateCollection(ctx, "docs")
			require.NoError(t, err)
			n, err = fresh.Count(ctx)
			require.NoError(t, err)
			assert.Equal(t, 0, n)
		})
	}
}

func TestQueryNearest(t *testing.T) {
	ctx := context.Background()
	for name, c := range clients(t) {
		t.Run(name, func(t *testing.T) {
			col, err := c.GetOrCreateCollection(ctx, "docs")
			require.NoError(t, err)

			empty, err := col.Query(ctx, unit(8, 0), 3)
			require.NoError(t, err)
			assert.Empty(t, empty)

			require.NoError(t, col.Add(ctx, records("a", 8, 8)))
			q := unit(8, 2)
			q[3] = 0.5
			got, err := col.Query(ctx, q, 3)
			require.NoError(t, err)
			require.Len(t, got, 3)
			assert.Equal(t, "a-2", got[0].ID)
			assert.Equal(t, "a chunk 2", got[0].Text)
			assert.Equal(t, "a.pdf", got[0].Metadata["source"])
			assert.Equal(t, "a-3", got[1].ID)
			assert.GreaterOrEqual(t, got[0].Score, got[1].Score)
			assert.InDelta(t, 0.894, got[0].Score, 0.01)

			_, err = col.Query(ctx, unit(4, 0), 3)
			var dimErr ErrDimensionMismatch
			require.ErrorAs(t, err, &dimErr)
			assert.Equal(t, 8, dimErr.Expected)
		})
	}
}

func gaussian(r *rand.Rand, dim int) []float32 {
	v := make([]float32, dim)
	for i := range v {
		v[i] = float32(r.NormFloat64())
	}
	return v
}

func bruteForceTop(recs []Record, q []float32, k int) []string {
	nq := normalized(q)
	type scored struct {
		id    string
		score float64
	}
	all := make([]scored, 0, len(recs))
	for _, r := range recs {
		all = append(all, scored{r.ID, dot(nq, normalized(r.Embedding))})
	}
	sort.SliceStable(all, func(i, j int) bool { return all[i].score > all[j].score })
	ids := make([]string, 0, k)
	for _, s := range all[:min(k, len(all))] {
		ids = append(ids, s.id)
	}
	return ids
}

func TestQueryMatchesBruteForceOnRandomVectors(t *testing.T) {
	ctx := context.Background()
	const dim = 16
	for _, size := range []int{20, 137, 500} {
		for name, c := range clients(t) {
			t.Run(fmt.Sprintf("%s/%d", name, size), func(t *testing.T) {
				r := rand.New(rand.NewSource(int64(size) * 7))
				recs := make([]Record, 0, size)
				for i := 0; i < size; i++ {
					recs = append(recs, Record{ID: fmt.Sprintf("r-%d", i), Text: "t", Embedding: gaussian(r, dim)})
				}
				col, err := c.CreateCollection(ctx, fmt.Sprintf("rand-%d", size))
				require.NoError(t, err)

				half := size / 2
				require.NoError(t, col.Add(ctx, recs[:half]))
				check := func(stored []Record) {
					for i := 0; i < 40; i++ {
						q := gaussian(r, dim)
						got, err := col.Query(ctx, q, 3)
						require.NoError(t, err)
						ids := make([]string, 0, len(got))
						for j, m := range got {
							ids = append(ids, m.ID)
							if j > 0 {
								assert.GreaterOrEqual(t, got[j-1].Score, m.Score)
							}
						}
						assert.ElementsMatch(t, bruteForceTop(stored, q, 3), ids)
					}
				}
				check(recs[:half])

				// Second batch lands after a query has already built the index.
				require.NoError(t, col.Add(ctx, recs[half:]))
				check(recs)
			})
		}
	}
}

func TestGraphIndexCandidatePathReranksExactly(t *testing.T) {
	r := rand.New(rand.NewSource(39))
	g := newGraphIndex(1)
	g.exactLimit = 0
	keys := make([]uint64, 0, 300)
	vecs := make([][]float32, 0, 300)
	for i := 0; i < 300; i++ {
		keys = append(keys, uint64(i+1))
		vecs = append(vecs, gaussian(r, 12))
	}
	g.add(keys, vecs)

	q := gaussian(r, 12)
	hits := g.search(q, 3)
	require.Len(t, hits, 3)
	nq := normalized(q)
	for i, h := range hits {
		assert.InDelta(t, dot(nq, normalized(vecs[h.Key-1])), h.Score, 1e-9)
		if i > 0 {
			assert.GreaterOrEqual(t, hits[i-1].Score, h.Score)
		}
	}
	assert.Empty(t, g.search(q, 0))
}

func TestAddValidation(t *testing.T) {
	ctx := context.Background()
	for name, c := range clients(t) {
		t.Run(name, func(t *testing.T) {
			col, err := c.GetOrCreateCollection(ctx, "docs")
			require.NoError(t, err)
			require.Error(t, col.Add(ctx, []Record{{ID: "", Embedding: unit(4, 0)}}))
			require.Error(t, col.Add(ctx, []Record{{ID: "x", Embedding: unit(4, 0)}, {ID: "x", Embedding: unit(4, 1)}}))
			require.Error(t, col.Add(ctx, []Record{{ID: "x", Embedding: unit(4, 0)}, {ID: "y", Embedding: unit(3, 1)}}))

			require.NoError(t, col.Add(ctx, []Record{{ID: "x", Text: "old", Embedding: unit(4, 0)}}))
			require.NoError(t, col.Add(ctx, []Record{{ID: "x", Text: "new", Embedding: unit(4, 1)}}))
			n, err := col.Count(ctx)
			require.NoError(t, err)
			assert.Equal(t, 1, n)
			got, err := col.Query(ctx, unit(4, 1), 1)
			require.NoError(t, err)
			require.Len(t, got, 1)
			assert.Equal(t, "new", got[0].Text)
		})
	}
}

func TestSQLitePersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	c, err := OpenSQLite(ctx, dir)
	require.NoError(t, err)
	col, err := c.CreateCollection(ctx, "pdf_docs_collection")
	require.NoError(t, err)
	require.NoError(t, col.Add(ctx, records("a", 4, 6)))
	require.NoError(t, c.Close())

	c, err = OpenSQLite(ctx, dir)
	require.NoError(t, err)
	defer c.Close()
	col, err = c.GetOrCreateCollection(ctx, "pdf_docs_collection")
	require.NoError(t, err)
	n, err := col.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	got, err := col.Query(ctx, unit(6, 1), 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "a-1", got[0].ID)
}

func TestSQLiteGraphTracksOtherWriters(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	reader, err := OpenSQLite(ctx, dir)
	require.NoError(t, err)
	defer reader.Close()
	writer, err := OpenSQLite(ctx, dir)
	require.NoError(t, err)
	defer writer.Close()

	wcol, err := writer.GetOrCreateCollection(ctx, "docs")
	require.NoError(t, err)
	require.NoError(t, wcol.Add(ctx, records("a", 2, 6)))

	rcol, err := reader.GetOrCreateCollection(ctx, "docs")
	require.NoError(t, err)
	got, err := rcol.Query(ctx, unit(6, 4), 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.NotEqual(t, "b-4", got[0].ID)

	require.NoError(t, wcol.Add(ctx, records("b", 6, 6)[4:]))
	got, err = rcol.Query(ctx, unit(6, 4), 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "b-4", got[0].ID)
}

func TestEncodeDecodeVector(t *testing.T) {
	v := []float32{0.25, -1, 3.5}
	got, err := decodeVector(encodeVector(v))
	require.NoError(t, err)
	assert.Equal(t, v, got)
	_, err = decodeVector([]byte{1, 2, 3})
	require.Error(t, err)
}
