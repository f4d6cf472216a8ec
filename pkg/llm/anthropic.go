package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/chronicle-ai/chronicle/pkg/config"
	"github.com/chronicle-ai/chronicle/pkg/models"
)

// AnthropicClient implements Client over the Anthropic Messages API.
type AnthropicClient struct {
	api       anthropic.Client
	model     anthropic.Model
	maxTokens int64
	timeout   time.Duration
	logger    *slog.Logger
}

// NewAnthropicClient builds a client from configuration. The API key is
// read from the environment variable named in cfg.APIKeyEnv.
func NewAnthropicClient(cfg *config.LLMConfig) (*AnthropicClient, error) {
	key := os.Getenv(cfg.APIKeyEnv)
	if key == "" {
		return nil, fmt.Errorf("LLM API key env %s is not set", cfg.APIKeyEnv)
	}
	return &AnthropicClient{
		api:       anthropic.NewClient(option.WithAPIKey(key)),
		model:     anthropic.Model(cfg.Model),
		maxTokens: int64(cfg.MaxOutputTokens),
		timeout:   cfg.Timeout(),
		logger:    slog.Default().With("component", "llm-client"),
	}, nil
}

// callContext trims the caller's context to the configured per-call
// timeout so a hung provider call cannot block a worker forever.
func (c *AnthropicClient) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, c.timeout)
}

// Ping verifies provider reachability and credentials with a cheap
// models listing. Used by the health endpoint.
func (c *AnthropicClient) Ping(ctx context.Context) error {
	ctx, cancel := c.callContext(ctx)
	defer cancel()
	if _, err := c.api.Models.List(ctx, anthropic.ModelListParams{
		Limit: anthropic.Int(1),
	}); err != nil {
		return classifyProviderError("llm.ping", err)
	}
	return nil
}

// Generate sends one completion request and returns text plus any tool
// calls. Errors are classified as transient or permanent faults.
func (c *AnthropicClient) Generate(ctx context.Context, input *GenerateInput) (*Completion, error) {
	params := anthropic.MessageNewParams{
		Model:     c.model,
		MaxTokens: c.maxTokens,
	}
	if input.MaxTokens > 0 {
		params.MaxTokens = int64(input.MaxTokens)
	}
	if input.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: input.System}}
	}

	msgs, err := toAnthropicMessages(input.Messages)
	if err != nil {
		return nil, models.NewFault(models.FaultInternalInvariant, "llm.generate", err)
	}
	params.Messages = msgs

	for _, tool := range input.Tools {
		schema := anthropic.ToolInputSchemaParam{}
		if props, ok := tool.ParametersSchema["properties"].(map[string]any); ok {
			schema.Properties = props
		}
		if req, ok := tool.ParametersSchema["required"].([]string); ok {
			schema.Required = req
		}
		params.Tools = append(params.Tools, anthropic.ToolUnionParam{
			OfTool: &anthropic.ToolParam{
				Name:        tool.Name,
				Description: anthropic.String(tool.Description),
				InputSchema: schema,
			},
		})
	}

	callCtx, cancel := c.callContext(ctx)
	defer cancel()
	msg, err := c.api.Messages.New(callCtx, params)
	if err != nil {
		return nil, classifyProviderError("llm.generate", err)
	}

	out := &Completion{StopReason: string(msg.StopReason)}
	for _, block := range msg.Content {
		switch variant := block.AsAny().(type) {
		case anthropic.TextBlock:
			out.Text += variant.Text
		case anthropic.ToolUseBlock:
			out.ToolCalls = append(out.ToolCalls, ToolCall{
				ID:        variant.ID,
				Name:      variant.Name,
				Arguments: string(variant.Input),
			})
		}
	}
	return out, nil
}

// toAnthropicMessages converts the neutral conversation into the
// Anthropic block structure. Tool results become user-role tool_result
// blocks, per the Messages API contract.
func toAnthropicMessages(messages []Message) ([]anthropic.MessageParam, error) {
	var out []anthropic.MessageParam
	for _, m := range messages {
		switch m.Role {
		case RoleUser:
			out = append(out, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
		case RoleAssistant:
			blocks := []anthropic.ContentBlockParamUnion{}
			if m.Content != "" {
				blocks = append(blocks, anthropic.NewTextBlock(m.Content))
			}
			for _, tc := range m.ToolCalls {
				var args any
				if err := json.Unmarshal([]byte(tc.Arguments), &args); err != nil {
					args = map[string]any{}
				}
				blocks = append(blocks, anthropic.NewToolUseBlock(tc.ID, args, tc.Name))
			}
			out = append(out, anthropic.NewAssistantMessage(blocks...))
		case RoleTool:
			out = append(out, anthropic.NewUserMessage(
				anthropic.NewToolResultBlock(m.ToolCallID, m.Content, m.ToolError)))
		case RoleSystem:
			return nil, fmt.Errorf("system content must be passed via GenerateInput.System")
		default:
			return nil, fmt.Errorf("unknown message role %q", m.Role)
		}
	}
	return out, nil
}

// classifyProviderError maps provider HTTP failures onto fault kinds:
// 429 and 5xx (and timeouts) are transient; other 4xx are permanent.
func classifyProviderError(op string, err error) error {
	var apierr *anthropic.Error
	if errors.As(err, &apierr) {
		if apierr.StatusCode == http.StatusTooManyRequests || apierr.StatusCode >= 500 {
			return models.NewFault(models.FaultTransientExternal, op, err)
		}
		return models.NewFault(models.FaultPermanentExternal, op, err)
	}
	// Network-level failures and timeouts have no status code; retriable.
	return models.NewFault(models.FaultTransientExternal, op, err)
}
