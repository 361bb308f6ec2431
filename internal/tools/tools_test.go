package tools

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"pdfagent/internal/pdfdoc/pdftest"
	"pdfagent/internal/providers"
	"pdfagent/internal/vector"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const dim = 64

func seededCollection(t *testing.T, embedder providers.EmbeddingProvider, texts map[string]string) vector.Collection {
	t.Helper()
	ctx := context.Background()
	c, err := vector.NewMemoryClient().CreateCollection(ctx, "docs")
	require.NoError(t, err)
	records := make([]vector.Record, 0, len(texts))
	for id, text := range texts {
		vecs, _, err := embedder.Embed(ctx, providers.EmbedRequest{Inputs: []string{text}, Dimension: dim})
		require.NoError(t, err)
		records = append(records, vector.Record{
			ID:        id,
			Text:      text,
			Embedding: vecs[0],
			Metadata:  map[string]string{"source": "notes.pdf", "page": id},
		})
	}
	require.NoError(t, c.Add(ctx, records))
	return c
}

func TestRetrieverReturnsNearestChunksWithSource(t *testing.T) {
	embedder := providers.NewMockProvider(dim)
	c := seededCollection(t, embedder, map[string]string{
		"1": "vector search ranks chunks by cosine similarity",
		"2": "the weather in lisbon is mild in spring",
		"3": "sourdough bread needs a long fermentation",
	})
	r := NewRetriever(c, embedder, 1, dim)

	out, err := r.Call(context.Background(), "how does vector search rank chunks")
	require.NoError(t, err)
	assert.Equal(t, "[notes.pdf, page 1]\nvector search ranks chunks by cosine similarity", out)
}

func TestRetrieverJoinsTopKWithBlankLines(t *testing.T) {
	embedder := providers.NewMockProvider(dim)
	c := seededCollection(t, embedder, map[string]string{
		"1": "alpha beta",
		"2": "gamma delta",
		"3": "epsilon zeta",
		"4": "eta theta",
	})
	out, err := NewRetriever(c, embedder, 0, dim).Call(context.Background(), "alpha")
	require.NoError(t, err)
	assert.Len(t, splitBlocks(out), 3)
}

func TestRetrieverEmptyCollectionAndQuery(t *testing.T) {
	embedder := providers.NewMockProvider(dim)
	c, err := vector.NewMemoryClient().CreateCollection(context.Background(), "empty")
	require.NoError(t, err)
	r := NewRetriever(c, embedder, 3, dim)

	out, err := r.Call(context.Background(), "anything")
	require.NoError(t, err)
	assert.Equal(t, noPassages, out)

	_, err = r.Call(context.Background(), "  ")
	assert.Error(t, err)
}

func TestInspectionToolsWithoutDocument(t *testing.T) {
	ctx := context.Background()
	out, err := NewPageCount("").Call(ctx, "x")
	require.NoError(t, err)
	assert.Equal(t, "Error: No PDF has been indexed yet. Please upload a PDF first.", out)

	out, err = NewMetadata("").Call(ctx, "x")
	require.NoError(t, err)
	assert.Equal(t, "Error: No PDF has been indexed yet.", out)

	out, err = NewTOC("").Call(ctx, "x")
	require.NoError(t, err)
	assert.Equal(t, "Error: No PDF has been indexed yet.", out)
}

func TestInspectionToolsReadDocument(t *testing.T) {
	path := pdftest.New().
		Page("First page").
		Page("Second page").
		Info("Title", "Field Guide").
		Info("Author", "R. Author").
		Bookmark(1, "Start", 1).
		Bookmark(2, "Detail", 2).
		Write(t, t.TempDir(), "guide.pdf")
	ctx := context.Background()

	out, err := NewPageCount(path).Call(ctx, "ignored")
	require.NoError(t, err)
	assert.Equal(t, "The PDF document has 2 pages.", out)

	out, err = NewMetadata(path).Call(ctx, "ignored")
	require.NoError(t, err)
	assert.Equal(t, "PDF Metadata:\ntitle: Field Guide\nauthor: R. Author", out)

	out, err = NewTOC(path).Call(ctx, "ignored")
	require.NoError(t, err)
	assert.Equal(t, "Level 1: Start (page 1)\nLevel 2: Detail (page 2)", out)
}

func TestInspectionToolsWithoutMetadataOrOutline(t *testing.T) {
	path := pdftest.New().Page("plain").Write(t, t.TempDir(), "plain.pdf")
	ctx := context.Background()

	out, err := NewMetadata(path).Call(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, "No metadata found.", out)

	out, err = NewTOC(path).Call(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, "No table of contents found in this PDF.", out)
}

func TestInspectionToolsFailSoft(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.pdf")
	require.NoError(t, os.WriteFile(path, []byte("not a pdf"), 0o644))
	ctx := context.Background()

	out, err := NewPageCount(path).Call(ctx, "")
	require.NoError(t, err)
	assert.Contains(t, out, "An error occurred while trying to count the pages: ")

	out, err = NewMetadata(path).Call(ctx, "")
	require.NoError(t, err)
	assert.Contains(t, out, "Error retrieving metadata: ")

	out, err = NewTOC(path).Call(ctx, "")
	require.NoError(t, err)
	assert.Contains(t, out, "Error reading table of contents: ")
}

func TestSetOrderAndSpecs(t *testing.T) {
	set := Set(nil, nil, 3, dim, "")
	names := make([]string, 0, len(set))
	for _, tool := range set {
		spec := Spec(tool)
		names = append(names, spec.Name)
		assert.NotEmpty(t, spec.Description)
		assert.Equal(t, "object", spec.Parameters["type"])
	}
	assert.Equal(t, []string{RetrieverName, PageCountName, MetadataName, TOCName}, names)
}

func splitBlocks(s string) []string {
	var out []string
	start := 0
	for i := 0; i+1 < len(s); i++ {
		if s[i] == '\n' && s[i+1] == '\n' {
			out = append(out, s[start:i])
			start = i + 2
		}
	}
	return append(out, s[start:])
}
