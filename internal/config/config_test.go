package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PDFAGENT_CONFIG", "")
	t.Setenv("PDFAGENT_CHUNK_SIZE", "")
	t.Setenv("LLM_MODEL_NAME", "")
	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, 1000, cfg.ChunkSize)
	require.Equal(t, 200, cfg.ChunkOverlap)
	require.Equal(t, 3, cfg.RetrieverTopK)
	require.Equal(t, "gpt-4o-mini", cfg.LLMModel)
	require.Equal(t, "pdf_docs_collection", cfg.CollectionName)
	require.InDelta(t, 0.7, cfg.LLMTemperature, 1e-9)
}

func TestLoadFileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pdfagent.yaml")
	require.NoError(t, os.WriteFile(path, []byte("chunk_size: 500\ncollection_name: from_file\nvector_backend: memory\n"), 0o644))
	t.Setenv("PDFAGENT_CONFIG", path)
	t.Setenv("PDFAGENT_CHUNK_SIZE", "")
	t.Setenv("PDFAGENT_COLLECTION_NAME", "from_env")
	t.Setenv("PDFAGENT_VECTOR_BACKEND", "")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, 500, cfg.ChunkSize)
	require.Equal(t, "from_env", cfg.CollectionName)
	require.Equal(t, "memory", cfg.VectorBackend)
}

func TestLoadBadFile(t *testing.T) {
	t.Setenv("PDFAGENT_CONFIG", filepath.Join(t.TempDir(), "missing.yaml"))
	_, err := Load()
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg := Defaults()
	cfg.OpenAIAPIKey = ""
	require.ErrorContains(t, cfg.Validate(), "OPENAI_API_KEY")

	cfg.LLMProviders = "mock"
	cfg.EmbedProviders = "mock|ollama:nomic"
	require.NoError(t, cfg.Validate())

	cfg.EmbedProviders = "openai:team"
	require.Error(t, cfg.Validate())
	cfg.OpenAIAPIKey = "sk-test"
	require.NoError(t, cfg.Validate())

	cfg.VectorBackend = "memory"
	cfg.IndexRunner = "temporal"
	require.ErrorContains(t, cfg.Validate(), "shared vector backend")
	cfg.IndexRunner = "local"

	cfg.VectorBackend = "chroma"
	require.ErrorContains(t, cfg.Validate(), "vector backend")
}
