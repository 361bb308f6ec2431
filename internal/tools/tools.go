// Package tools holds the functions the conversational agent may call: a
// retriever over the active collection and inspection tools over the last
// indexed document.
package tools

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"pdfagent/internal/pdfdoc"
	"pdfagent/internal/providers"
	"pdfagent/internal/vector"
)

const (
	RetrieverName = "pdf_document_retriever"
	PageCountName = "get_pdf_page_count"
	MetadataName  = "get_pdf_metadata"
	TOCName       = "get_pdf_toc"
)

const (
	noDocument          = "Error: No PDF has been indexed yet."
	noDocumentPageCount = "Error: No PDF has been indexed yet. Please upload a PDF first."
	noPassages          = "No relevant passages found in the document."
)

// Tool is one callable function. Call returns the observation handed back to
// the model; a non-nil error is also rendered into an observation by the
// caller.
type Tool interface {
	Name() string
	Description() string
	Parameters() map[string]any
	Call(ctx context.Context, input string) (string, error)
}

// Spec converts a tool into the definition sent to the chat provider.
func Spec(t Tool) providers.ToolSpec {
	return providers.ToolSpec{Name: t.Name(), Description: t.Description(), Parameters: t.Parameters()}
}

func queryParameters(desc string) map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"query": map[string]any{"type": "string", "description": desc},
		},
		"required": []string{"query"},
	}
}

// Retriever embeds the query and returns the nearest chunks of a collection.
type Retriever struct {
	collection vector.Collection
	embedder   providers.EmbeddingProvider
	topK       int
	dim        int
}

func NewRetriever(c vector.Collection, e providers.EmbeddingProvider, topK, dim int) *Retriever {
	if topK <= 0 {
		topK = 3
	}
	return &Retriever{collection: c, embedder: e, topK: topK, dim: dim}
}

func (r *Retriever) Name() string { return RetrieverName }

func (r *Retriever) Description() string {
	return "Searches and returns relevant information from the indexed PDF document."
}

func (r *Retriever) Parameters() map[string]any {
	return queryParameters("query to look up in the document")
}

func (r *Retriever) Call(ctx context.Context, input string) (string, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return "", errors.New("query is required")
	}
	vecs, _, err := r.embedder.Embed(ctx, providers.EmbedRequest{
		Operation: "retrieve",
		Inputs:    []string{input},
		Dimension: r.dim,
	})
	if err != nil {
		return "", fmt.Errorf("embed query: %w", err)
	}
	if len(vecs) == 0 {
		return "", errors.New("embedding provider returned empty vectors")
	}
	matches, err := r.collection.Query(ctx, vecs[0], r.topK)
	if err != nil {
		return "", fmt.Errorf("query collection: %w", err)
	}
	if len(matches) == 0 {
		return noPassages, nil
	}
	parts := make([]string, 0, len(matches))
	for _, m := range matches {
		parts = append(parts, formatMatch(m))
	}
	return strings.Join(parts, "\n\n"), nil
}

func formatMatch(m vector.Match) string {
	source := m.Metadata["source"]
	page := m.Metadata["page"]
	switch {
	case source != "" && page != "":
		return fmt.Sprintf("[%s, page %s]\n%s", source, page, m.Text)
	case source != "":
		return fmt.Sprintf("[%s]\n%s", source, m.Text)
	default:
		return m.Text
	}
}

// PageCount reports the number of pages of the document at path.
type PageCount struct{ path string }

func NewPageCount(path string) *PageCount { return &PageCount{path: path} }

func (t *PageCount) Name() string { return PageCountName }

func (t *PageCount) Description() string {
	return "Use this tool to find out the total number of pages in the provided PDF document."
}

func (t *PageCount) Parameters() map[string]any { return queryParameters("ignored") }

func (t *PageCount) Call(ctx context.Context, _ string) (string, error) {
	_ = ctx
	if t.path == "" {
		return noDocumentPageCount, nil
	}
	n, err := pdfdoc.PageCount(t.path)
	if err != nil {
		return fmt.Sprintf("An error occurred while trying to count the pages: %v", err), nil
	}
	return fmt.Sprintf("The PDF document has %d pages.", n), nil
}

// Metadata reports the non-empty Info dictionary entries of the document.
type Metadata struct{ path string }

func NewMetadata(path string) *Metadata { return &Metadata{path: path} }

func (t *Metadata) Name() string { return MetadataName }

func (t *Metadata) Description() string {
	return "Use this tool to get metadata (author, title, etc.) of the current PDF."
}

func (t *Metadata) Parameters() map[string]any { return queryParameters("ignored") }

func (t *Metadata) Call(ctx context.Context, _ string) (string, error) {
	_ = ctx
	if t.path == "" {
		return noDocument, nil
	}
	fields, err := pdfdoc.Metadata(t.path)
	if err != nil {
		return fmt.Sprintf("Error retrieving metadata: %v", err), nil
	}
	lines := make([]string, 0, len(fields))
	for _, f := range fields {
		if f.Value == "" {
			continue
		}
		lines = append(lines, f.Key+": "+f.Value)
	}
	if len(lines) == 0 {
		return "No metadata found.", nil
	}
	return "PDF Metadata:\n" + strings.Join(lines, "\n"), nil
}

// TOC lists the outline of the document.
type TOC struct{ path string }

func NewTOC(path string) *TOC { return &TOC{path: path} }

func (t *TOC) Name() string { return TOCName }

func (t *TOC) Description() string {
	return "Use this tool to list the PDF's table of contents or bookmarks."
}

func (t *TOC) Parameters() map[string]any { return queryParameters("ignored") }

func (t *TOC) Call(ctx context.Context, _ string) (string, error) {
	_ = ctx
	if t.path == "" {
		return noDocument, nil
	}
	entries, err := pdfdoc.TableOfContents(t.path)
	if err != nil {
		return fmt.Sprintf("Error reading table of contents: %v", err), nil
	}
	if len(entries) == 0 {
		return "No table of contents found in this PDF.", nil
	}
	lines := make([]string, 0, len(entries))
	for _, e := range entries {
		lines = append(lines, fmt.Sprintf("Level %d: %s (page %d)", e.Level, e.Title, e.Page))
	}
	return strings.Join(lines, "\n"), nil
}

// Set returns the four agent tools, the retriever first.
func Set(c vector.Collection, e providers.EmbeddingProvider, topK, dim int, documentPath string) []Tool {
	return []Tool{
		NewRetriever(c, e, topK, dim),
		NewPageCount(documentPath),
		NewMetadata(documentPath),
		NewTOC(documentPath),
	}
}
