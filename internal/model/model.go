// Package model defines the model client interface and the chat types the
// orchestrator exchanges with a provider. A single OpenAI-compatible client
// covers every supported provider; the factory in this package applies
// per-provider presets (endpoint, key requirements) on top of it.
package model

import "context"

// Message roles on the chat wire.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Stop reasons reported by CompleteWithTools.
const (
	StopEndTurn = "end_turn"
	StopToolUse = "tool_use"
)

// Client is the capability the orchestrator programs against.
type Client interface {
	// CompleteWithTools sends the conversation with tool definitions and
	// returns the model's text and any tool invocations it requested.
	CompleteWithTools(ctx context.Context, messages []ChatMessage, tools []ToolDefinition) (*ToolResponse, error)
	// Model returns the current model identifier.
	Model() string
	// SetModel changes the model used for completions.
	SetModel(model string)
}

// ChatMessage is one turn of the conversation sent to the model.
// ToolCalls is set on assistant turns that requested tools; ToolCallID and
// Name are set on tool-role turns carrying a tool result back.
type ChatMessage struct {
	Role       string     `json:"role"`
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
	Name       string     `json:"name,omitempty"`
}

// ToolDefinition describes a tool the model can invoke.
type ToolDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"input_schema"`
}

// ToolCall is a tool invocation requested by the model.
type ToolCall struct {
	ID   string         `json:"id"`
	Name string         `json:"name"`
	Args map[string]any `json:"args"`
}

// ToolResponse carries both the text response and the tool calls from one
// completion. Text may be empty when the model only requested tools.
type ToolResponse struct {
	Text       string     `json:"text"`
	ToolCalls  []ToolCall `json:"tool_calls"`
	StopReason string     `json:"stop_reason"`
}
