package llm

import (
	"context"
	"encoding/json"
	"os"
	"sort"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
	"github.com/openai/openai-go/v2/packages/respjson"
	"github.com/t0mczak/orbit/errors"
	"github.com/t0mczak/orbit/session"
)

// reasoningFieldNames are the extra response fields that OpenAI-compatible
// backends use for deliberation text.
var reasoningFieldNames = []string{"reasoning", "reasoning_content", "thinking"}

// OpenAIClient talks to any OpenAI-compatible chat-completions backend.
type OpenAIClient struct {
	client openai.Client
}

// NewOpenAIClient creates a client from the OPENAI_API_KEY environment
// variable, honoring OPENAI_BASE_URL for self-hosted and proxy backends.
func NewOpenAIClient() (*OpenAIClient, error) {
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		return nil, errors.New("OPENAI_API_KEY environment variable not set")
	}

	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL := os.Getenv("OPENAI_BASE_URL"); baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}

	return &OpenAIClient{client: openai.NewClient(opts...)}, nil
}

// Chat sends one chat completion request, in stream or non-stream mode.
func (c *OpenAIClient) Chat(ctx context.Context, req Request) (*CallResult, error) {
	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(req.Model),
		Messages: convertMessages(req.Messages),
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(req.MaxTokens))
	}
	if tools := convertTools(req.Tools); len(tools) > 0 {
		params.Tools = tools
	}

	// Thinking parameters are provider extensions, not SDK fields; they go
	// into the request body as raw JSON.
	var opts []option.RequestOption
	for _, key := range sortedKeys(req.Thinking) {
		opts = append(opts, option.WithJSONSet(key, req.Thinking[key]))
	}

	if req.Stream {
		return c.chatStream(ctx, params, req, opts)
	}

	resp, err := c.client.Chat.Completions.New(ctx, params, opts...)
	if err != nil {
		return nil, errors.Wrapf(err, "chat completion failed")
	}
	return convertResponse(resp), nil
}

func (c *OpenAIClient) chatStream(ctx context.Context, params openai.ChatCompletionNewParams, req Request, opts []option.RequestOption) (*CallResult, error) {
	stream := c.client.Chat.Completions.NewStreaming(ctx, params, opts...)
	defer stream.Close()

	var content, reasoning string
	buffers := map[int64]*session.ToolCall{}
	meta := Metadata{Stream: true}

	for stream.Next() {
		chunk := stream.Current()
		meta.ChunkCount++
		if chunk.ID != "" {
			meta.ResponseID = chunk.ID
		}
		if chunk.Model != "" {
			meta.Model = chunk.Model
		}
		if len(chunk.Choices) == 0 {
			continue
		}

		delta := chunk.Choices[0].Delta
		if delta.Content != "" {
			content += delta.Content
			if req.OnContent != nil {
				req.OnContent(delta.Content)
			}
		}

		if piece := extraStringField(delta.JSON.ExtraFields, reasoningFieldNames...); piece != "" {
			reasoning += piece
			if req.OnReasoning != nil {
				req.OnReasoning(piece)
			}
		}

		mergeToolCallDeltas(buffers, delta.ToolCalls)
	}
	if err := stream.Err(); err != nil {
		return nil, errors.Wrapf(err, "chat completion stream failed")
	}

	return &CallResult{
		Content:   content,
		Reasoning: reasoning,
		ToolCalls: orderedToolCalls(buffers),
		Metadata:  meta,
	}, nil
}

// mergeToolCallDeltas reassembles fragmented tool-call chunks by index:
// argument fragments concatenate, the id and name settle on first arrival.
func mergeToolCallDeltas(buffers map[int64]*session.ToolCall, deltas []openai.ChatCompletionChunkChoiceDeltaToolCall) {
	for _, d := range deltas {
		buf, ok := buffers[d.Index]
		if !ok {
			buf = &session.ToolCall{}
			buffers[d.Index] = buf
		}
		if d.ID != "" {
			buf.ID = d.ID
		}
		if d.Function.Name != "" && buf.Name == "" {
			buf.Name = d.Function.Name
		}
		buf.Arguments += d.Function.Arguments
	}
}

func orderedToolCalls(buffers map[int64]*session.ToolCall) []session.ToolCall {
	if len(buffers) == 0 {
		return nil
	}
	indexes := make([]int64, 0, len(buffers))
	for index := range buffers {
		indexes = append(indexes, index)
	}
	sort.Slice(indexes, func(i, j int) bool { return indexes[i] < indexes[j] })

	calls := make([]session.ToolCall, 0, len(indexes))
	for _, index := range indexes {
		call := *buffers[index]
		if call.Arguments == "" {
			call.Arguments = "{}"
		}
		calls = append(calls, call)
	}
	return calls
}

func convertResponse(resp *openai.ChatCompletion) *CallResult {
	result := &CallResult{
		Metadata: Metadata{
			ResponseID:       resp.ID,
			Model:            resp.Model,
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
		},
	}
	if len(resp.Choices) == 0 {
		return result
	}

	message := resp.Choices[0].Message
	result.Content = message.Content
	result.Reasoning = extraStringField(message.JSON.ExtraFields, reasoningFieldNames...)

	for _, tc := range message.ToolCalls {
		arguments := tc.Function.Arguments
		if arguments == "" {
			arguments = "{}"
		}
		result.ToolCalls = append(result.ToolCalls, session.ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: arguments,
		})
	}
	return result
}

// convertMessages maps the conversation onto the chat-completions wire
// shape. Tool messages carry their correlation id; assistant messages carry
// their tool-call requests.
func convertMessages(messages []session.Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, msg := range messages {
		switch msg.Role {
		case "system":
			out = append(out, openai.SystemMessage(msg.Content))
		case "assistant":
			assistant := openai.ChatCompletionMessage{
				Role:    "assistant",
				Content: msg.Content,
			}
			for _, tc := range msg.ToolCalls {
				assistant.ToolCalls = append(assistant.ToolCalls, openai.ChatCompletionMessageToolCallUnion{
					ID:   tc.ID,
					Type: "function",
					Function: openai.ChatCompletionMessageFunctionToolCallFunction{
						Name:      tc.Name,
						Arguments: tc.Arguments,
					},
				})
			}
			out = append(out, assistant.ToParam())
		case "tool":
			out = append(out, openai.ToolMessage(msg.Content, msg.ToolCallID))
		default:
			out = append(out, openai.UserMessage(msg.Content))
		}
	}
	return out
}

func convertTools(tools []ToolSchema) []openai.ChatCompletionToolUnionParam {
	if len(tools) == 0 {
		return nil
	}
	out := make([]openai.ChatCompletionToolUnionParam, 0, len(tools))
	for _, t := range tools {
		out = append(out, openai.ChatCompletionFunctionTool(openai.FunctionDefinitionParam{
			Name:        t.Name,
			Description: openai.String(t.Description),
			Parameters:  openai.FunctionParameters(t.Parameters),
		}))
	}
	return out
}

// extraStringField reads the first non-empty string field among keys from a
// response's extra (non-SDK) JSON fields.
func extraStringField(fields map[string]respjson.Field, keys ...string) string {
	for _, key := range keys {
		field, ok := fields[key]
		if !ok || !field.Valid() {
			continue
		}
		var value string
		if err := json.Unmarshal([]byte(field.Raw()), &value); err == nil && value != "" {
			return value
		}
	}
	return ""
}

func sortedKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
