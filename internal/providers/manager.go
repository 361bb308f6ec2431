package providers

import (
	"fmt"
	"strings"

	"pdfagent/internal/config"
)

type NamedChatProvider struct {
	Ref      ProviderRef
	Provider ChatProvider
}

type NamedEmbedProvider struct {
	Ref      ProviderRef
	Provider EmbeddingProvider
}

// Manager holds the configured providers in preference order.
type Manager struct {
	chatProviders  []NamedChatProvider
	embedProviders []NamedEmbedProvider
}

func NewManager(cfg config.Config) (*Manager, error) {
	m := &Manager{}
	for _, ref := range ParseProviderList(cfg.LLMProviders) {
		p, err := buildProvider(ref, cfg)
		if err != nil {
			return nil, err
		}
		chat, ok := p.(ChatProvider)
		if !ok {
			return nil, fmt.Errorf("provider %s does not support chat", ref.Raw)
		}
		m.chatProviders = append(m.chatProviders, NamedChatProvider{Ref: ref, Provider: chat})
	}
	for _, ref := range ParseProviderList(cfg.EmbedProviders) {
		p, err := buildProvider(ref, cfg)
		if err != nil {
			return nil, err
		}
		embed, ok := p.(EmbeddingProvider)
		if !ok {
			return nil, fmt.Errorf("provider %s does not support embeddings", ref.Raw)
		}
		m.embedProviders = append(m.embedProviders, NamedEmbedProvider{Ref: ref, Provider: embed})
	}
	return m, nil
}

// NewStaticManager wraps already constructed providers.
func NewStaticManager(chat ChatProvider, embed EmbeddingProvider) *Manager {
	return &Manager{
		chatProviders:  []NamedChatProvider{{Ref: ProviderRef{Raw: "static", Name: "static"}, Provider: chat}},
		embedProviders: []NamedEmbedProvider{{Ref: ProviderRef{Raw: "static", Name: "static"}, Provider: embed}},
	}
}

// Chat returns the preferred chat provider: the first configured non-mock one.
func (m *Manager) Chat() (ChatProvider, ProviderRef) {
	order := preferredOrder(len(m.chatProviders), func(i int) string { return strings.ToLower(m.chatProviders[i].Ref.Name) })
	p := m.chatProviders[order[0]]
	return p.Provider, p.Ref
}

// Embedder returns the preferred embedding provider. Indexing and querying
// must use the same one, so this is stable for the life of the Manager.
func (m *Manager) Embedder() (EmbeddingProvider, ProviderRef) {
	order := preferredOrder(len(m.embedProviders), func(i int) string { return strings.ToLower(m.embedProviders[i].Ref.Name) })
	p := m.embedProviders[order[0]]
	return p.Provider, p.Ref
}

func preferredOrder(n int, nameAt func(i int) string) []int {
	out := make([]int, 0, n)
	for i := 0; i < n; i++ {
		if nameAt(i) != "mock" {
			out = append(out, i)
		}
	}
	for i := 0; i < n; i++ {
		if nameAt(i) == "mock" {
			out = append(out, i)
		}
	}
	return out
}

func buildProvider(ref ProviderRef, cfg config.Config) (any, error) {
	switch strings.ToLower(ref.Name) {
	case "mock":
		return NewMockProvider(cfg.EmbedDim), nil
	case "openai":
		return NewOpenAIProvider(ref.KeyAlias, OpenAIOptions{
			APIKey:     cfg.OpenAIAPIKey,
			ChatModel:  cfg.LLMModel,
			EmbedModel: cfg.EmbedModel,
			EmbedRPS:   cfg.EmbedRPS,
		}), nil
	case "ollama":
		return NewOllamaEmbeddingProvider(ref.KeyAlias), nil
	case "groq":
		return NewGroqProvider(ref.KeyAlias), nil
	default:
		return nil, fmt.Errorf("unsupported provider: %s", ref.Name)
	}
}
