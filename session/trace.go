package session

import (
	"encoding/json"
	"strings"

	"github.com/rs/zerolog"
)

// TraceLogger emits per-turn previews of assistant replies, tool-call
// summaries and reasoning. Disabled by default; enabled via --trace.
type TraceLogger struct {
	enabled      bool
	previewChars int
	logger       zerolog.Logger
}

// NewTraceLogger creates a trace logger. previewChars bounds the reasoning
// preview; content and tool-call previews use fixed internal caps.
func NewTraceLogger(enabled bool, previewChars int, logger zerolog.Logger) *TraceLogger {
	if previewChars <= 0 {
		previewChars = 200
	}
	return &TraceLogger{enabled: enabled, previewChars: previewChars, logger: logger}
}

// LogTurn logs one assistant turn for the given actor.
func (t *TraceLogger) LogTurn(actor, content string, toolCalls []ToolCall, reasoning string) {
	if !t.enabled {
		return
	}

	preview := shorten(content, 400)
	if preview == "" {
		preview = "(empty)"
	}
	t.logger.Info().Str("actor", actor).Msg("assistant: " + preview)

	if len(toolCalls) > 0 {
		summaries := make([]string, len(toolCalls))
		for i, tc := range toolCalls {
			summaries[i] = summarizeToolCall(tc)
		}
		t.logger.Info().Str("actor", actor).Msg("tool_calls: " + strings.Join(summaries, "; "))
	}

	if rp := shorten(reasoning, t.previewChars); rp != "" {
		t.logger.Info().Str("actor", actor).Msg("reasoning: " + rp)
	}
}

func summarizeToolCall(tc ToolCall) string {
	name := tc.Name
	if name == "" {
		name = "unknown"
	}

	args := tc.Arguments
	var parsed interface{}
	if err := json.Unmarshal([]byte(args), &parsed); err == nil {
		if compact, err := json.Marshal(parsed); err == nil {
			args = string(compact)
		}
	}
	return name + "(" + shorten(args, 160) + ")"
}

func shorten(text string, maxChars int) string {
	normalized := strings.TrimSpace(strings.ReplaceAll(text, "\n", `\n`))
	if len(normalized) <= maxChars {
		return normalized
	}
	return normalized[:maxChars] + "..."
}
