package providers

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"unicode"
)

// MockProvider is a deterministic offline stand-in for both chat and
// embeddings.
type MockProvider struct {
	dim int
}

func NewMockProvider(dim int) *MockProvider {
	if dim <= 0 {
		dim = 1536
	}
	return &MockProvider{dim: dim}
}

func (m *MockProvider) Embed(ctx context.Context, req EmbedRequest) ([][]float32, ProviderInfo, error) {
	_ = ctx
	dim := req.Dimension
	if dim <= 0 {
		dim = m.dim
	}
	vectors := make([][]float32, 0, len(req.Inputs))
	for _, input := range req.Inputs {
		vectors = append(vectors, deterministicVector(input, dim))
	}
	return vectors, ProviderInfo{Name: "mock", Model: fmt.Sprintf("mock-embed-%d", dim), Key: "mock"}, nil
}

// mockRoutes picks an inspection tool by keyword; anything else goes to the
// first offered tool.
var mockRoutes = []struct {
	keywords []string
	tool     string
}{
	{[]string{"how many pages", "page count", "number of pages"}, "get_pdf_page_count"},
	{[]string{"metadata", "author", "created"}, "get_pdf_metadata"},
	{[]string{"table of contents", "outline", "chapters"}, "get_pdf_toc"},
}

// Chat calls one tool for a fresh user turn and answers with the tool output
// once results are back.
func (m *MockProvider) Chat(ctx context.Context, req ChatRequest) (ChatResponse, ProviderInfo, error) {
	_ = ctx
	info := ProviderInfo{Name: "mock", Model: "mock-chat-v1", Key: "mock"}
	if len(req.Messages) == 0 {
		return ChatResponse{}, info, fmt.Errorf("no messages")
	}
	last := req.Messages[len(req.Messages)-1]
	switch {
	case last.Role == RoleUser && len(req.Tools) > 0:
		tool := pickMockTool(last.Content, req.Tools)
		args, _ := json.Marshal(map[string]string{"query": last.Content})
		return ChatResponse{Message: Message{
			Role:      RoleAssistant,
			ToolCalls: []ToolCall{{ID: fmt.Sprintf("call_%d", len(req.Messages)), Name: tool, Arguments: args}},
		}}, info, nil
	case last.Role == RoleTool:
		var obs []string
		for i := len(req.Messages) - 1; i >= 0 && req.Messages[i].Role == RoleTool; i-- {
			obs = append([]string{req.Messages[i].Content}, obs...)
		}
		answer := strings.Join(obs, "\n")
		if r := []rune(answer); len(r) > 500 {
			answer = string(r[:500])
		}
		return ChatResponse{Message: Message{Role: RoleAssistant, Content: "Based on the document: " + answer}}, info, nil
	default:
		return ChatResponse{Message: Message{Role: RoleAssistant, Content: "Mock response."}}, info, nil
	}
}

func pickMockTool(question string, tools []ToolSpec) string {
	q := strings.ToLower(question)
	offered := make(map[string]bool, len(tools))
	for _, t := range tools {
		offered[t.Name] = true
	}
	for _, r := range mockRoutes {
		if !offered[r.tool] {
			continue
		}
		for _, kw := range r.keywords {
			if strings.Contains(q, kw) {
				return r.tool
			}
		}
	}
	return tools[0].Name
}

// deterministicVector hashes each word into a signed bucket so texts sharing
// words land close together.
func deterministicVector(input string, dim int) []float32 {
	vec := make([]float32, dim)
	words := strings.FieldsFunc(strings.ToLower(input), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
	if len(words) == 0 {
		words = []string{"empty"}
	}
	for _, w := range words {
		h := sha256.Sum256([]byte(w))
		idx := binary.BigEndian.Uint32(h[:4]) % uint32(dim)
		if h[4]&1 == 0 {
			vec[idx]++
		} else {
			vec[idx]--
		}
	}
	return normalize(vec)
}

func normalize(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		if len(v) > 0 {
			v[0] = 1
		}
		return v
	}
	inv := float32(1 / math.Sqrt(sum))
	for i := range v {
		v[i] *= inv
	}
	return v
}
