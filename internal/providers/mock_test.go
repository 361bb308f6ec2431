package providers

import (
	"context"
	"testing"

	"pdfagent/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func cosine(a, b []float32) float64 {
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return dot
}

func TestMockEmbedDeterministicAndWordAware(t *testing.T) {
	m := NewMockProvider(64)
	vecs, _, err := m.Embed(context.Background(), EmbedRequest{Inputs: []string{
		"vector search with embeddings",
		"vector search with embeddings",
		"Embeddings power vector search",
		"the weather in lisbon",
	}})
	require.NoError(t, err)
	require.Len(t, vecs, 4)
	assert.Len(t, vecs[0], 64)
	assert.Equal(t, vecs[0], vecs[1])
	assert.InDelta(t, 1.0, cosine(vecs[0], vecs[0]), 1e-5)
	assert.Greater(t, cosine(vecs[0], vecs[2]), cosine(vecs[0], vecs[3]))
}

func TestMockChatToolRoundTrip(t *testing.T) {
	m := NewMockProvider(8)
	tools := []ToolSpec{{Name: "pdf_document_retriever"}, {Name: "get_pdf_page_count"}}

	resp, _, err := m.Chat(context.Background(), ChatRequest{
		Messages: []Message{{Role: RoleUser, Content: "How many pages does it have?"}},
		Tools:    tools,
	})
	require.NoError(t, err)
	require.Len(t, resp.Message.ToolCalls, 1)
	assert.Equal(t, "get_pdf_page_count", resp.Message.ToolCalls[0].Name)

	resp, _, err = m.Chat(context.Background(), ChatRequest{
		Messages: []Message{{Role: RoleUser, Content: "What is HNSW?"}},
		Tools:    tools,
	})
	require.NoError(t, err)
	assert.Equal(t, "pdf_document_retriever", resp.Message.ToolCalls[0].Name)

	resp, _, err = m.Chat(context.Background(), ChatRequest{
		Messages: []Message{
			{Role: RoleUser, Content: "What is HNSW?"},
			resp.Message,
			{Role: RoleTool, ToolCallID: resp.Message.ToolCalls[0].ID, Content: "HNSW is a graph index."},
		},
		Tools: tools,
	})
	require.NoError(t, err)
	assert.Empty(t, resp.Message.ToolCalls)
	assert.Equal(t, "Based on the document: HNSW is a graph index.", resp.Message.Content)
}

func TestManagerPrefersRealProviders(t *testing.T) {
	cfg := config.Defaults()
	cfg.LLMProviders = "mock|groq"
	cfg.EmbedProviders = "mock"
	m, err := NewManager(cfg)
	require.NoError(t, err)
	_, ref := m.Chat()
	assert.Equal(t, "groq", ref.Name)
	_, ref = m.Embedder()
	assert.Equal(t, "mock", ref.Name)

	cfg.EmbedProviders = "groq"
	_, err = NewManager(cfg)
	require.ErrorContains(t, err, "does not support embeddings")

	cfg.EmbedProviders = "chroma"
	_, err = NewManager(cfg)
	require.ErrorContains(t, err, "unsupported provider")
}
