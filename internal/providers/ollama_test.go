package providers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveOllamaEmbedModel(t *testing.T) {
	t.Setenv("PDFAGENT_OLLAMA_EMBED_MODEL", "")
	assert.Equal(t, "nomic-embed-text", resolveOllamaEmbedModel(""))
	assert.Equal(t, "bge-small-en-v1.5", resolveOllamaEmbedModel("bge"))
	assert.Equal(t, "mxbai-embed-large", resolveOllamaEmbedModel("mxbai-embed-large"))
	t.Setenv("PDFAGENT_OLLAMA_EMBED_MODEL_TEAM", "custom")
	assert.Equal(t, "custom", resolveOllamaEmbedModel("team"))
}

func TestMatchDimension(t *testing.T) {
	src := []float32{1, 2, 3}
	assert.Equal(t, []float32{1, 2}, matchDimension(src, 2))
	assert.Equal(t, []float32{1, 2, 3, 0, 0}, matchDimension(src, 5))
	assert.Equal(t, src, matchDimension(src, 0))
}

func TestOllamaEmbed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/embed", r.URL.Path)
		var body struct {
			Model string   `json:"model"`
			Input []string `json:"input"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "nomic-embed-text", body.Model)
		out := make([][]float32, len(body.Input))
		for i := range out {
			out[i] = []float32{float32(i), 1, 2}
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"embeddings": out})
	}))
	defer srv.Close()
	t.Setenv("PDFAGENT_OLLAMA_BASE_URL", srv.URL)
	t.Setenv("PDFAGENT_OLLAMA_EMBED_MODEL", "")

	p := NewOllamaEmbeddingProvider("nomic")
	vecs, info, err := p.Embed(context.Background(), EmbedRequest{Inputs: []string{"a", "b"}, Dimension: 2})
	require.NoError(t, err)
	assert.Equal(t, "ollama", info.Name)
	assert.Equal(t, [][]float32{{0, 1}, {1, 1}}, vecs)
}
