// Package llm wraps the chat-completions backend behind a small client
// interface and a gateway with a bounded, single-shot fallback retry.
package llm

import "context"

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

type Message struct {
	Role       string
	Content    string
	ToolCalls  []ToolCall
	ToolCallID string
	Name       string
}

// ToolCall is a structured request to invoke one tool. Arguments is the raw
// JSON object string as produced by the model or the forced-call planner.
type ToolCall struct {
	ID        string
	Name      string
	Arguments string
}

// ToolDef describes one callable tool in the schema handed to the model.
type ToolDef struct {
	Name        string
	Description string
	Parameters  map[string]any
}

// Options carries per-call generation settings. NumCtx bounds how much
// history the caller should send; NumPredict caps the completion length.
type Options struct {
	Temperature float64
	NumCtx      int
	NumPredict  int
}

type Request struct {
	Model    string
	Messages []Message
	Tools    []ToolDef
	Options  Options
}

type Response struct {
	Content   string
	ToolCalls []ToolCall
}

// Client is the raw model transport. Implementations must be safe for
// concurrent use.
type Client interface {
	Chat(ctx context.Context, req Request) (*Response, error)
}
