package llm

import (
	"context"
	"encoding/json"
	"os"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/t0mczak/orbit/errors"
	"github.com/t0mczak/orbit/session"
)

// AnthropicClient talks to the Anthropic Messages API.
type AnthropicClient struct {
	client *anthropic.Client
}

// NewAnthropicClient creates a client from the ANTHROPIC_API_KEY
// environment variable.
func NewAnthropicClient() (*AnthropicClient, error) {
	apiKey := os.Getenv("ANTHROPIC_API_KEY")
	if apiKey == "" {
		return nil, errors.New("ANTHROPIC_API_KEY environment variable not set")
	}

	client := anthropic.NewClient(option.WithAPIKey(apiKey))
	return &AnthropicClient{client: &client}, nil
}

// Chat sends one messages request, in stream or non-stream mode.
func (c *AnthropicClient) Chat(ctx context.Context, req Request) (*CallResult, error) {
	messages, system := convertAnthropicMessages(req.Messages)

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4096
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(req.Model),
		MaxTokens: int64(maxTokens),
		Messages:  messages,
	}
	if len(system) > 0 {
		params.System = system
	}
	for _, t := range req.Tools {
		params.Tools = append(params.Tools, anthropic.ToolUnionParam{OfTool: convertAnthropicTool(t)})
	}
	applyAnthropicThinking(&params, req.Thinking)

	if req.Stream {
		return c.chatStream(ctx, params, req)
	}

	resp, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return nil, errors.Wrapf(err, "anthropic message request failed")
	}
	return convertAnthropicResponse(resp), nil
}

func (c *AnthropicClient) chatStream(ctx context.Context, params anthropic.MessageNewParams, req Request) (*CallResult, error) {
	stream := c.client.Messages.NewStreaming(ctx, params)

	msg := anthropic.Message{}
	chunkCount := 0
	for stream.Next() {
		event := stream.Current()
		chunkCount++
		if err := msg.Accumulate(event); err != nil {
			return nil, errors.Wrapf(err, "failed to accumulate stream event")
		}

		switch eventVariant := event.AsAny().(type) {
		case anthropic.ContentBlockDeltaEvent:
			switch deltaVariant := eventVariant.Delta.AsAny().(type) {
			case anthropic.TextDelta:
				if req.OnContent != nil && deltaVariant.Text != "" {
					req.OnContent(deltaVariant.Text)
				}
			case anthropic.ThinkingDelta:
				if req.OnReasoning != nil && deltaVariant.Thinking != "" {
					req.OnReasoning(deltaVariant.Thinking)
				}
			}
		}
	}
	if err := stream.Err(); err != nil {
		return nil, errors.Wrapf(err, "anthropic stream failed")
	}

	result := convertAnthropicResponse(&msg)
	result.Metadata.Stream = true
	result.Metadata.ChunkCount = chunkCount
	return result, nil
}

// applyAnthropicThinking maps the generic thinking parameters onto the
// Messages API thinking config. reasoning_effort selects the token budget.
func applyAnthropicThinking(params *anthropic.MessageNewParams, thinking map[string]interface{}) {
	if len(thinking) == 0 {
		return
	}

	enabled := false
	if v, ok := thinking["enable_thinking"].(bool); ok {
		enabled = v
	}

	budget := int64(4096)
	if effort, ok := thinking["reasoning_effort"].(string); ok {
		switch effort {
		case "low":
			enabled, budget = true, 1024
		case "medium":
			enabled, budget = true, 4096
		case "high":
			enabled, budget = true, 16384
		case "none":
			if _, hasFlag := thinking["enable_thinking"]; !hasFlag {
				enabled = false
			}
		}
	}

	if enabled {
		if params.MaxTokens <= budget {
			params.MaxTokens = budget + 4096
		}
		params.Thinking = anthropic.ThinkingConfigParamOfEnabled(budget)
	}
}

func convertAnthropicMessages(messages []session.Message) ([]anthropic.MessageParam, []anthropic.TextBlockParam) {
	var out []anthropic.MessageParam
	var system []anthropic.TextBlockParam

	for _, msg := range messages {
		switch msg.Role {
		case "system":
			system = append(system, anthropic.TextBlockParam{Text: msg.Content})
		case "user":
			out = append(out, anthropic.NewUserMessage(anthropic.NewTextBlock(msg.Content)))
		case "assistant":
			var blocks []anthropic.ContentBlockParamUnion
			if msg.Content != "" {
				blocks = append(blocks, anthropic.ContentBlockParamUnion{
					OfText: &anthropic.TextBlockParam{Text: msg.Content},
				})
			}
			for _, tc := range msg.ToolCalls {
				blocks = append(blocks, anthropic.ContentBlockParamUnion{
					OfToolUse: &anthropic.ToolUseBlockParam{
						ID:    tc.ID,
						Name:  tc.Name,
						Input: json.RawMessage(tc.Arguments),
					},
				})
			}
			if len(blocks) == 0 {
				continue
			}
			out = append(out, anthropic.MessageParam{
				Role:    anthropic.MessageParamRoleAssistant,
				Content: blocks,
			})
		case "tool":
			// Tool results travel as user-role tool_result blocks.
			out = append(out, anthropic.MessageParam{
				Role: anthropic.MessageParamRoleUser,
				Content: []anthropic.ContentBlockParamUnion{{
					OfToolResult: &anthropic.ToolResultBlockParam{
						ToolUseID: msg.ToolCallID,
						Content: []anthropic.ToolResultBlockParamContentUnion{{
							OfText: &anthropic.TextBlockParam{Text: msg.Content},
						}},
					},
				}},
			})
		}
	}
	return out, system
}

func convertAnthropicTool(t ToolSchema) *anthropic.ToolParam {
	tool := &anthropic.ToolParam{
		Name:        t.Name,
		Description: anthropic.String(t.Description),
		InputSchema: anthropic.ToolInputSchemaParam{
			Properties: map[string]interface{}{},
		},
	}
	if props, ok := t.Parameters["properties"].(map[string]interface{}); ok {
		tool.InputSchema.Properties = props
	}
	switch required := t.Parameters["required"].(type) {
	case []string:
		tool.InputSchema.Required = required
	case []interface{}:
		// schemas that went through a JSON round-trip
		for _, entry := range required {
			if name, ok := entry.(string); ok {
				tool.InputSchema.Required = append(tool.InputSchema.Required, name)
			}
		}
	}
	return tool
}

func convertAnthropicResponse(resp *anthropic.Message) *CallResult {
	result := &CallResult{
		Metadata: Metadata{
			ResponseID:       resp.ID,
			Model:            string(resp.Model),
			PromptTokens:     resp.Usage.InputTokens,
			CompletionTokens: resp.Usage.OutputTokens,
		},
	}

	for _, block := range resp.Content {
		switch b := block.AsAny().(type) {
		case anthropic.TextBlock:
			result.Content += b.Text
		case anthropic.ThinkingBlock:
			result.Reasoning += b.Thinking
		case anthropic.ToolUseBlock:
			arguments := string(b.Input)
			if arguments == "" {
				arguments = "{}"
			}
			result.ToolCalls = append(result.ToolCalls, session.ToolCall{
				ID:        b.ID,
				Name:      b.Name,
				Arguments: arguments,
			})
		}
	}
	return result
}
