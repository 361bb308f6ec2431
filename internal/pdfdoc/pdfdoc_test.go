package pdfdoc

import (
	"os"
	"path/filepath"
	"testing"

	"pdfagent/internal/pdfdoc/pdftest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sample(t *testing.T) string {
	t.Helper()
	return pdftest.New().
		Page("Introduction to vector search", "Chunks are embedded.").
		Page("Results (final)").
		Page().
		Info("Title", "Vector Search Notes").
		Info("Author", "A. Writer").
		Info("CreationDate", "D:20240101120000Z").
		Bookmark(1, "Introduction", 1).
		Bookmark(2, "Background", 1).
		Bookmark(1, "Results", 2).
		Bookmark(1, "Dangling", 0).
		Write(t, t.TempDir(), "sample.pdf")
}

func TestLoad(t *testing.T) {
	path := sample(t)
	doc, err := Load(path)
	require.NoError(t, err)

	require.Len(t, doc.Pages, 3)
	assert.Contains(t, doc.Pages[0].Text, "Introduction to vector search")
	assert.Contains(t, doc.Pages[0].Text, "Chunks are embedded.")
	assert.Contains(t, doc.Pages[1].Text, "Results (final)")
	assert.Equal(t, "", doc.Pages[2].Text)

	assert.Equal(t, []Field{
		{Key: "title", Value: "Vector Search Notes"},
		{Key: "author", Value: "A. Writer"},
		{Key: "creationDate", Value: "D:20240101120000Z"},
	}, doc.Metadata)

	assert.Equal(t, []OutlineEntry{
		{Level: 1, Title: "Introduction", Page: 1},
		{Level: 2, Title: "Background", Page: 1},
		{Level: 1, Title: "Results", Page: 2},
		{Level: 1, Title: "Dangling", Page: -1},
	}, doc.Outline)
}

func TestDocumentText(t *testing.T) {
	doc := Document{Pages: []Page{{Number: 1, Text: "ab"}, {Number: 2}, {Number: 3, Text: "cd"}}}
	text, offsets, numbers := doc.Text()
	assert.Equal(t, "ab\n\ncd", text)
	assert.Equal(t, []int{0, 4}, offsets)
	assert.Equal(t, []int{1, 3}, numbers)
}

func TestHelpers(t *testing.T) {
	path := sample(t)

	n, err := PageCount(path)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	meta, err := Metadata(path)
	require.NoError(t, err)
	assert.Len(t, meta, 3)

	toc, err := TableOfContents(path)
	require.NoError(t, err)
	assert.Len(t, toc, 4)
}

func TestNoOutlineNoInfo(t *testing.T) {
	path := pdftest.New().Page("only text").Write(t, t.TempDir(), "plain.pdf")
	toc, err := TableOfContents(path)
	require.NoError(t, err)
	assert.Empty(t, toc)

	meta, err := Metadata(path)
	require.NoError(t, err)
	assert.Empty(t, meta)
}

func TestNotAPDF(t *testing.T) {
	path := filepath.Join(t.TempDir(), "junk.pdf")
	require.NoError(t, os.WriteFile(path, []byte("definitely not a pdf document, just some bytes padded out to be long enough for the trailer scan ........................................"), 0o644))
	_, err := Load(path)
	require.Error(t, err)

	_, err = PageCount(filepath.Join(t.TempDir(), "missing.pdf"))
	require.Error(t, err)
}
