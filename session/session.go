package session

import (
	"encoding/json"
)

// Message is one entry in a conversation. Messages are append-only except
// for the two compaction rewrites: micro-compaction may blank the Content
// of an old tool message, and auto-compaction may replace the whole list.
type Message struct {
	Role       string     `json:"role"` // "system", "user", "assistant", "tool"
	Content    string     `json:"content"`
	Reasoning  string     `json:"reasoning,omitempty"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
	Name       string     `json:"name,omitempty"` // tool name on tool-result messages
}

// ToolCall is a single tool invocation requested by the model. Arguments is
// the raw JSON payload as sent by the backend; it is parsed at dispatch time.
type ToolCall struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// User builds a user message.
func User(content string) Message {
	return Message{Role: "user", Content: content}
}

// Assistant builds a plain assistant message.
func Assistant(content string) Message {
	return Message{Role: "assistant", Content: content}
}

// System builds a system message.
func System(content string) Message {
	return Message{Role: "system", Content: content}
}

// ToolResult builds a tool-result message tagged with its correlation id.
func ToolResult(callID, toolName, content string) Message {
	return Message{Role: "tool", ToolCallID: callID, Name: toolName, Content: content}
}

// ParseArguments decodes the raw argument payload into a map. Invalid JSON
// is retried once with control characters stripped; a payload that still
// fails to parse yields an empty map rather than an error, so a malformed
// model response degrades to a tool-side validation failure.
func (tc ToolCall) ParseArguments() map[string]interface{} {
	raw := tc.Arguments
	if raw == "" {
		return map[string]interface{}{}
	}

	var args map[string]interface{}
	if err := json.Unmarshal([]byte(raw), &args); err == nil {
		return args
	}

	cleaned := make([]rune, 0, len(raw))
	for _, r := range raw {
		if r >= ' ' || r == '\t' || r == '\n' || r == '\r' {
			cleaned = append(cleaned, r)
		}
	}
	if err := json.Unmarshal([]byte(string(cleaned)), &args); err == nil {
		return args
	}
	return map[string]interface{}{}
}

// ToolNameByCallID maps tool-call ids to tool names across the whole
// history, so a tool message missing its Name field can still be classified.
func ToolNameByCallID(messages []Message) map[string]string {
	names := make(map[string]string)
	for _, msg := range messages {
		if msg.Role != "assistant" {
			continue
		}
		for _, tc := range msg.ToolCalls {
			if tc.ID != "" && tc.Name != "" {
				names[tc.ID] = tc.Name
			}
		}
	}
	return names
}
