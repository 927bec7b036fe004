// Package llm defines the Provider interface for Large Language Model
// backends. The chat agent uses a provider to drive its tool-calling loop:
// the model either answers directly or requests tool calls, whose results
// are appended to the conversation for the next turn.
//
// Implementations must be safe for concurrent use and must propagate context
// cancellation promptly.
package llm

import "context"

// Message represents a single message in an LLM conversation history.
type Message struct {
	// Role is one of "system", "user", "assistant", or "tool".
	Role string

	// Content is the text content of the message.
	Content string

	// ToolCalls contains any tool invocations requested by the assistant.
	ToolCalls []ToolCall

	// ToolCallID is set when Role is "tool", identifying which tool call
	// this responds to.
	ToolCallID string
}

// ToolCall represents a tool invocation requested by the LLM.
type ToolCall struct {
	// ID is the provider-assigned identifier for this tool call.
	ID string

	// Name is the tool name.
	Name string

	// Arguments is the JSON-encoded arguments string.
	Arguments string
}

// ToolDefinition describes a tool offered to the model.
type ToolDefinition struct {
	// Name is the tool's unique identifier.
	Name string

	// Description explains what the tool does.
	Description string

	// Parameters is the JSON Schema describing the tool's input object.
	Parameters map[string]any
}

// Usage holds token accounting returned by the backend.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// CompletionRequest carries everything the model needs for one turn.
// Messages must be non-empty.
type CompletionRequest struct {
	// Messages is the ordered conversation history.
	Messages []Message

	// Tools is the set of tool definitions offered to the model.
	Tools []ToolDefinition

	// SystemPrompt is an optional instruction injected before the
	// conversation history.
	SystemPrompt string

	// Temperature controls output randomness; zero uses the provider
	// default.
	Temperature float64

	// MaxTokens caps completion length; zero uses the provider default.
	MaxTokens int
}

// CompletionResponse is the model's reply for one turn.
type CompletionResponse struct {
	// Content is the assistant's text. Empty when the model responds
	// exclusively with tool calls.
	Content string

	// ToolCalls lists the tool invocations the model requests. The caller
	// executes them and appends the results to the conversation.
	ToolCalls []ToolCall

	// Usage contains token accounting for this request/response pair.
	Usage Usage
}

// Provider is the abstraction over any LLM backend.
type Provider interface {
	// Complete sends req to the model and waits for the full response.
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)
}
