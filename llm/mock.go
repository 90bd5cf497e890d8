package llm

import (
	"context"
	"fmt"

	"github.com/t0mczak/orbit/session"
)

// MockClient is a stand-in backend that parrots the last user message. It
// never requests tool calls and accepts no thinking parameters.
type MockClient struct{}

func (m *MockClient) Chat(ctx context.Context, req Request) (*CallResult, error) {
	if len(req.Thinking) > 0 {
		return nil, fmt.Errorf("mock backend: unknown parameter in request")
	}

	last := ""
	for _, msg := range req.Messages {
		if msg.Role == "user" {
			last = msg.Content
		}
	}
	return &CallResult{
		Content:  fmt.Sprintf("I am a mock backend. You said: %q.", last),
		Metadata: Metadata{ResponseID: "mock", Model: req.Model},
	}, nil
}

// ScriptedClient replays canned results in order and records every request
// it receives. Used by tests that drive the agent loop without a backend.
type ScriptedClient struct {
	Results  []*CallResult
	Errors   []error
	Requests []Request
}

// Script builds a scripted client from alternating results; pass nil error
// slots implicitly. Helper for the common all-success case.
func Script(results ...*CallResult) *ScriptedClient {
	return &ScriptedClient{Results: results}
}

func (s *ScriptedClient) Chat(ctx context.Context, req Request) (*CallResult, error) {
	turn := len(s.Requests)
	s.Requests = append(s.Requests, req)

	if turn < len(s.Errors) && s.Errors[turn] != nil {
		return nil, s.Errors[turn]
	}
	if turn < len(s.Results) && s.Results[turn] != nil {
		result := *s.Results[turn]
		return &result, nil
	}
	return &CallResult{Content: "(scripted client exhausted)"}, nil
}

var _ Client = (*MockClient)(nil)
var _ Client = (*ScriptedClient)(nil)

// TextResult builds a plain assistant result for scripted conversations.
func TextResult(content string) *CallResult {
	return &CallResult{Content: content}
}

// ToolCallResult builds a result that requests the given tool calls.
func ToolCallResult(calls ...session.ToolCall) *CallResult {
	return &CallResult{ToolCalls: calls}
}
