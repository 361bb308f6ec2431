package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// chatEndpoint speaks the OpenAI chat completions wire format, which Groq
// also serves.
type chatEndpoint struct {
	name   string
	url    string
	apiKey string
	model  string
	client *http.Client
}

type wireToolCall struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Function struct {
		Name      string `json:"name"`
		Arguments string `json:"arguments"`
	} `json:"function"`
}

type wireMessage struct {
	Role       string         `json:"role"`
	Content    *string        `json:"content"`
	ToolCalls  []wireToolCall `json:"tool_calls,omitempty"`
	ToolCallID string         `json:"tool_call_id,omitempty"`
}

type wireTool struct {
	Type     string   `json:"type"`
	Function ToolSpec `json:"function"`
}

func (e chatEndpoint) chat(ctx context.Context, req ChatRequest, key string) (ChatResponse, ProviderInfo, error) {
	info := ProviderInfo{Name: e.name, Model: e.model, Key: key}
	if e.apiKey == "" {
		return ChatResponse{}, info, fmt.Errorf("%s key missing for alias %q", e.name, key)
	}
	body := map[string]any{
		"model":       e.model,
		"messages":    toWireMessages(req.Messages),
		"temperature": req.Temperature,
	}
	if len(req.Tools) > 0 {
		tools := make([]wireTool, 0, len(req.Tools))
		for _, t := range req.Tools {
			tools = append(tools, wireTool{Type: "function", Function: t})
		}
		body["tools"] = tools
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return ChatResponse{}, info, fmt.Errorf("encode %s chat request: %w", e.name, err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, e.url, bytes.NewReader(payload))
	if err != nil {
		return ChatResponse{}, info, fmt.Errorf("build %s chat request: %w", e.name, err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+e.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")
	resp, err := e.client.Do(httpReq)
	if err != nil {
		return ChatResponse{}, info, fmt.Errorf("%s chat request failed: %w", e.name, err)
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 400 {
		return ChatResponse{}, info, fmt.Errorf("%s chat error %d: %s", e.name, resp.StatusCode, string(raw))
	}
	var parsed struct {
		Choices []struct {
			Message wireMessage `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return ChatResponse{}, info, fmt.Errorf("decode %s chat response: %w", e.name, err)
	}
	if len(parsed.Choices) == 0 {
		return ChatResponse{}, info, fmt.Errorf("%s returned empty choices", e.name)
	}
	return ChatResponse{Message: fromWireMessage(parsed.Choices[0].Message)}, info, nil
}

func toWireMessages(msgs []Message) []wireMessage {
	out := make([]wireMessage, 0, len(msgs))
	for _, m := range msgs {
		content := m.Content
		w := wireMessage{Role: m.Role, Content: &content, ToolCallID: m.ToolCallID}
		if len(m.ToolCalls) > 0 {
			if content == "" {
				w.Content = nil
			}
			for _, tc := range m.ToolCalls {
				wt := wireToolCall{ID: tc.ID, Type: "function"}
				wt.Function.Name = tc.Name
				wt.Function.Arguments = string(tc.Arguments)
				if wt.Function.Arguments == "" {
					wt.Function.Arguments = "{}"
				}
				w.ToolCalls = append(w.ToolCalls, wt)
			}
		}
		out = append(out, w)
	}
	return out
}

func fromWireMessage(w wireMessage) Message {
	m := Message{Role: w.Role, ToolCallID: w.ToolCallID}
	if w.Content != nil {
		m.Content = *w.Content
	}
	for _, tc := range w.ToolCalls {
		args := json.RawMessage(tc.Function.Arguments)
		if !json.Valid(args) {
			args, _ = json.Marshal(tc.Function.Arguments)
		}
		m.ToolCalls = append(m.ToolCalls, ToolCall{ID: tc.ID, Name: tc.Function.Name, Arguments: args})
	}
	if m.Role == "" {
		m.Role = RoleAssistant
	}
	return m
}
