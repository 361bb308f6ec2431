package providers

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolveGroqKeyAliasThenFallback(t *testing.T) {
	t.Setenv("GROQ_API_KEY", "gsk-default")
	t.Setenv("PDFAGENT_GROQ_KEY_TEAM", "gsk-team")

	assert.Equal(t, "gsk-team", resolveGroqKey("team"))
	assert.Equal(t, "gsk-default", resolveGroqKey("other"))
	assert.Equal(t, "gsk-default", resolveGroqKey(""))
}

func TestNewGroqProviderDefaultModel(t *testing.T) {
	t.Setenv("PDFAGENT_GROQ_MODEL", "")
	p := NewGroqProvider("")
	assert.Equal(t, "llama-3.1-8b-instant", p.model)

	t.Setenv("PDFAGENT_GROQ_MODEL", "mixtral")
	assert.Equal(t, "mixtral", NewGroqProvider("").model)
}
