package llm

import (
	"context"

	"github.com/t0mczak/orbit/session"
)

// ToolSchema describes one tool to the model: name, human description and a
// JSON-shaped parameter schema (type/properties/required). The dispatch
// table and these schemas stay in lock-step; see tools.Tool.Schema.
type ToolSchema struct {
	Name        string
	Description string
	Parameters  map[string]interface{}
}

// Request is one chat completion request.
type Request struct {
	Model     string
	Messages  []session.Message
	Tools     []ToolSchema
	MaxTokens int
	Stream    bool

	// Thinking holds provider-level reasoning parameters as raw JSON body
	// fields (for example enable_thinking or reasoning_effort), built by
	// BuildThinkingParams.
	Thinking map[string]interface{}

	// Stream callbacks; only invoked when Stream is set.
	OnContent   func(chunk string)
	OnReasoning func(chunk string)
}

// Metadata carries per-call bookkeeping returned alongside the content.
type Metadata struct {
	ResponseID       string
	Model            string
	PromptTokens     int64
	CompletionTokens int64
	Stream           bool
	ChunkCount       int

	// Set by Call when the request was retried without thinking parameters.
	ThinkingStripped   bool
	ThinkingRetryError string
}

// CallResult is the normalized response from any backend: assistant text,
// optional reasoning text, and tool calls ordered as issued by the model
// (reassembled by chunk index in stream mode).
type CallResult struct {
	Content   string
	Reasoning string
	ToolCalls []session.ToolCall
	Metadata  Metadata
}

// Client is the interface to a chat-completion backend.
type Client interface {
	Chat(ctx context.Context, req Request) (*CallResult, error)
}

// AsMap renders metadata for session records.
func (m Metadata) AsMap() map[string]interface{} {
	out := map[string]interface{}{
		"response_id":       m.ResponseID,
		"model":             m.Model,
		"prompt_tokens":     m.PromptTokens,
		"completion_tokens": m.CompletionTokens,
		"stream":            m.Stream,
	}
	if m.Stream {
		out["chunk_count"] = m.ChunkCount
	}
	if m.ThinkingStripped {
		out["thinking_params_stripped_retry"] = true
		out["thinking_retry_error"] = m.ThinkingRetryError
	}
	return out
}
