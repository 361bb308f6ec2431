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

func TestOpenAIChatWithTools(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":null,"tool_calls":[
			{"id":"call_1","type":"function","function":{"name":"get_pdf_page_count","arguments":"{\"query\":\"x\"}"}}]}}]}`))
	}))
	defer srv.Close()

	p := NewOpenAIProvider("", OpenAIOptions{APIKey: "sk-test", BaseURL: srv.URL})
	resp, info, err := p.Chat(context.Background(), ChatRequest{
		Messages: []Message{
			{Role: RoleSystem, Content: "sys"},
			{Role: RoleAssistant, ToolCalls: []ToolCall{{ID: "call_0", Name: "pdf_document_retriever", Arguments: json.RawMessage(`{"query":"q"}`)}}},
			{Role: RoleTool, ToolCallID: "call_0", Content: "chunk"},
			{Role: RoleUser, Content: "how many pages?"},
		},
		Tools:       []ToolSpec{{Name: "get_pdf_page_count", Description: "count", Parameters: map[string]any{"type": "object"}}},
		Temperature: 0.7,
	})
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o-mini", info.Model)
	require.Len(t, resp.Message.ToolCalls, 1)
	assert.Equal(t, "get_pdf_page_count", resp.Message.ToolCalls[0].Name)
	assert.JSONEq(t, `{"query":"x"}`, string(resp.Message.ToolCalls[0].Arguments))

	assert.Equal(t, "gpt-4o-mini", got["model"])
	assert.InDelta(t, 0.7, got["temperature"], 1e-9)
	msgs := got["messages"].([]any)
	require.Len(t, msgs, 4)
	assistant := msgs[1].(map[string]any)
	assert.Nil(t, assistant["content"])
	call := assistant["tool_calls"].([]any)[0].(map[string]any)
	assert.Equal(t, "function", call["type"])
	assert.Equal(t, `{"query":"q"}`, call["function"].(map[string]any)["arguments"])
	assert.Equal(t, "call_0", msgs[2].(map[string]any)["tool_call_id"])
	tools := got["tools"].([]any)
	assert.Equal(t, "get_pdf_page_count", tools[0].(map[string]any)["function"].(map[string]any)["name"])
}

func TestOpenAIChatErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":"slow down"}`))
	}))
	defer srv.Close()

	p := NewOpenAIProvider("", OpenAIOptions{APIKey: "sk-test", BaseURL: srv.URL})
	_, _, err := p.Chat(context.Background(), ChatRequest{Messages: []Message{{Role: RoleUser, Content: "hi"}}})
	require.Error(t, err)
	assert.Equal(t, ErrorRate, ClassifyError(err))
}

func TestOpenAIEmbedOrdersByIndex(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/embeddings", r.URL.Path)
		_, _ = w.Write([]byte(`{"data":[{"index":1,"embedding":[0,1]},{"index":0,"embedding":[1,0]}]}`))
	}))
	defer srv.Close()

	p := NewOpenAIProvider("", OpenAIOptions{APIKey: "sk-test", BaseURL: srv.URL, EmbedRPS: 100})
	vecs, _, err := p.Embed(context.Background(), EmbedRequest{Inputs: []string{"a", "b"}})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{1, 0}, {0, 1}}, vecs)
}

func TestOpenAIMissingKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	p := NewOpenAIProvider("nokey", OpenAIOptions{})
	_, _, err := p.Embed(context.Background(), EmbedRequest{Inputs: []string{"a"}})
	require.Error(t, err)
	assert.Equal(t, ErrorAuth, ClassifyError(err))
}
