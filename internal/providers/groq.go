package providers

import (
	"context"
	"net/http"
	"os"
	"strings"
	"time"
)

// GroqProvider serves chat via Groq's OpenAI-compatible API.
type GroqProvider struct {
	keyName string
	apiKey  string
	model   string
	client  *http.Client
}

func NewGroqProvider(keyName string) *GroqProvider {
	model := os.Getenv("PDFAGENT_GROQ_MODEL")
	if strings.TrimSpace(model) == "" {
		model = "llama-3.1-8b-instant"
	}
	return &GroqProvider{
		keyName: keyName,
		apiKey:  resolveGroqKey(keyName),
		model:   model,
		client:  &http.Client{Timeout: 60 * time.Second},
	}
}

func (g *GroqProvider) Chat(ctx context.Context, req ChatRequest) (ChatResponse, ProviderInfo, error) {
	return chatEndpoint{
		name:   "groq",
		url:    "https://api.groq.com/openai/v1/chat/completions",
		apiKey: g.apiKey,
		model:  g.model,
		client: g.client,
	}.chat(ctx, req, g.keyName)
}

func resolveGroqKey(alias string) string {
	if alias != "" {
		if v := os.Getenv("PDFAGENT_GROQ_KEY_" + strings.ToUpper(alias)); v != "" {
			return v
		}
	}
	return os.Getenv("GROQ_API_KEY")
}
