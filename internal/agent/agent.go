// Package agent runs the function-calling loop that answers questions about
// the indexed document.
package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"pdfagent/internal/providers"
	"pdfagent/internal/session"
	"pdfagent/internal/tools"
	"pdfagent/internal/util"
)

const SystemPrompt = "You are a helpful AI assistant that answers questions based on the provided PDF document. " +
	"You have access to tools for searching the document, counting the number of pages, and retrieving PDF metadata " +
	"(such as title, author, and creation date), as well as the table of contents." +
	"Use these tools as needed to provide accurate and helpful responses."

// NoOutput is returned when the model finishes without any text.
const NoOutput = "No valid output from agent."

const (
	defaultTemperature   = 0.7
	defaultMaxIterations = 15
)

var ErrIterationLimit = errors.New("agent stopped due to iteration limit")

// ExecutionError wraps any failure of a conversational turn. The session
// transcript is left untouched when one is returned.
type ExecutionError struct {
	Iterations int
	Err        error
}

func (e *ExecutionError) Error() string { return e.Err.Error() }
func (e *ExecutionError) Unwrap() error { return e.Err }

type Options struct {
	Temperature   float64
	MaxIterations int
	Logger        *slog.Logger
}

// Agent is immutable once built. A new one is built whenever the index
// changes.
type Agent struct {
	chat     providers.ChatProvider
	tools    []tools.Tool
	byName   map[string]tools.Tool
	specs    []providers.ToolSpec
	sessions *session.Store
	temp     float64
	maxIter  int
	log      *slog.Logger
}

func New(chat providers.ChatProvider, toolset []tools.Tool, sessions *session.Store, opts Options) *Agent {
	if opts.Temperature < 0 {
		opts.Temperature = defaultTemperature
	}
	if opts.MaxIterations <= 0 {
		opts.MaxIterations = defaultMaxIterations
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	a := &Agent{
		chat:     chat,
		tools:    toolset,
		byName:   make(map[string]tools.Tool, len(toolset)),
		specs:    make([]providers.ToolSpec, 0, len(toolset)),
		sessions: sessions,
		temp:     opts.Temperature,
		maxIter:  opts.MaxIterations,
		log:      opts.Logger,
	}
	for _, t := range toolset {
		a.byName[t.Name()] = t
		a.specs = append(a.specs, tools.Spec(t))
	}
	return a
}

// ToolNames lists the tools offered to the model, in order.
func (a *Agent) ToolNames() []string {
	out := make([]string, 0, len(a.tools))
	for _, t := range a.tools {
		out = append(out, t.Name())
	}
	return out
}

// Answer runs one conversational turn for sessionID and records it in the
// session transcript on success.
func (a *Agent) Answer(ctx context.Context, question, sessionID string) (string, error) {
	h := a.sessions.Get(sessionID)
	h.Lock()
	defer h.Unlock()

	answer, err := a.Run(ctx, h.Messages(), question)
	if err != nil {
		return "", err
	}
	h.AppendTurn(question, answer)
	return answer, nil
}

// Run answers question given prior turns without touching any session.
func (a *Agent) Run(ctx context.Context, history []session.Turn, question string) (string, error) {
	msgs := make([]providers.Message, 0, len(history)+2)
	msgs = append(msgs, providers.Message{Role: providers.RoleSystem, Content: SystemPrompt})
	for _, t := range history {
		role := providers.RoleUser
		if t.Role == session.RoleAssistant {
			role = providers.RoleAssistant
		}
		msgs = append(msgs, providers.Message{Role: role, Content: t.Content})
	}
	msgs = append(msgs, providers.Message{Role: providers.RoleUser, Content: question})

	for i := 1; i <= a.maxIter; i++ {
		resp, info, err := a.chat.Chat(ctx, providers.ChatRequest{
			Operation:   "agent",
			Messages:    msgs,
			Tools:       a.specs,
			Temperature: a.temp,
		})
		if err != nil {
			a.log.Error("chat call failed",
				"iteration", i,
				"provider", info.Name,
				"error_class", providers.ClassifyError(err),
				"error", err)
			return "", &ExecutionError{Iterations: i, Err: fmt.Errorf("chat: %w", err)}
		}
		reply := resp.Message
		if len(reply.ToolCalls) == 0 {
			a.log.Debug("agent answered", "iterations", i, "provider", info.Name, "model", info.Model)
			answer := strings.TrimSpace(reply.Content)
			if answer == "" {
				answer = NoOutput
			}
			return answer, nil
		}
		reply.Role = providers.RoleAssistant
		msgs = append(msgs, reply)
		for _, call := range reply.ToolCalls {
			msgs = append(msgs, providers.Message{
				Role:       providers.RoleTool,
				ToolCallID: call.ID,
				Content:    a.invoke(ctx, call),
			})
		}
	}
	return "", &ExecutionError{Iterations: a.maxIter, Err: ErrIterationLimit}
}

// invoke runs one tool call and always produces an observation.
func (a *Agent) invoke(ctx context.Context, call providers.ToolCall) string {
	t, ok := a.byName[call.Name]
	if !ok {
		a.log.Warn("unknown tool requested", "tool", call.Name)
		return fmt.Sprintf("%s is not a valid tool, try one of [%s].", call.Name, strings.Join(a.ToolNames(), ", "))
	}
	input := toolInput(call.Arguments)
	out, err := t.Call(ctx, input)
	if err != nil {
		a.log.Warn("tool call failed", "tool", call.Name, "input", util.Preview(input, 80), "error", err)
		return fmt.Sprintf("Error: %v", err)
	}
	a.log.Info("tool call", "tool", call.Name, "input", util.Preview(input, 80), "output", util.Preview(out, 120))
	return out
}

// toolInput accepts {"query": "..."}, a JSON string, or raw text.
func toolInput(raw json.RawMessage) string {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" {
		return ""
	}
	var obj map[string]any
	if err := json.Unmarshal(raw, &obj); err == nil {
		if q, ok := obj["query"].(string); ok {
			return q
		}
		for _, v := range obj {
			if s, ok := v.(string); ok {
				return s
			}
		}
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return trimmed
}
