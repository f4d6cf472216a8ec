// Package llm provides the provider-neutral interface for LLM
// completions and embeddings, plus the concrete provider clients.
package llm

import "context"

// Message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Client is the completion interface consumed by the extractor and the
// query orchestrator. Implementations must honor ctx deadlines.
type Client interface {
	Generate(ctx context.Context, input *GenerateInput) (*Completion, error)
}

// GenerateInput is one completion request.
type GenerateInput struct {
	SessionID string
	System    string
	Messages  []Message
	Tools     []ToolDefinition // nil = no tools
	MaxTokens int
}

// Message is one conversation turn.
type Message struct {
	Role       string
	Content    string
	ToolCalls  []ToolCall // for assistant messages
	ToolCallID string     // for tool result messages
	ToolName   string     // for tool result messages
	ToolError  bool       // tool result carries an error
}

// ToolDefinition describes a tool available to the model.
type ToolDefinition struct {
	Name        string
	Description string
	// ParametersSchema is the JSON Schema for the tool input.
	ParametersSchema map[string]any
}

// ToolCall is the model's request to invoke a tool.
type ToolCall struct {
	ID        string
	Name      string
	Arguments string // JSON
}

// Completion is the model's response to one Generate call.
type Completion struct {
	Text       string
	ToolCalls  []ToolCall
	StopReason string
}

// EmbeddingClient batches texts into fixed-dimension vectors.
type EmbeddingClient interface {
	// Embed returns one vector per input text, each of length dim.
	Embed(ctx context.Context, texts []string, dim int) ([][]float32, error)
}
