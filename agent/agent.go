// Package agent implements the tool-calling conversation loop, the
// subagent dispatcher and the context compression tiers.
package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/t0mczak/orbit/config"
	"github.com/t0mczak/orbit/llm"
	"github.com/t0mczak/orbit/session"
	"github.com/t0mczak/orbit/tools"
)

const (
	maxMainRounds     = 40
	maxSubagentRounds = 30

	// Tool results are capped before the large-output check so a pathological
	// payload never reaches the model verbatim.
	maxToolResultChars = 50000

	requestMaxTokens = 8192

	initialReminder = "<reminder>Use todo_write for multi-step tasks.</reminder>"
	nagReminder     = "<reminder>10+ turns without todo update. Please update todos via todo_write.</reminder>"
	nagTurnCount    = 10
)

// Agent holds the conversation state and runtime components for one loop.
// Subagents reuse the same Agent through RunSubagent with isolated history.
type Agent struct {
	Client  llm.Client
	Model   string
	Options config.RuntimeOptions

	Workspace    string
	SystemPrompt string

	Tools   *tools.Registry
	Todos   *tools.TodoManager
	Context *ContextManager
	Policy  llm.ThinkingPolicy
	Tracer  *session.TraceLogger
	Store   *session.Store
	Log     zerolog.Logger

	History []session.Message

	skillsUsed []string
}

// Run executes the main loop for one user prompt: compaction, request
// assembly with todo reminders, model call, tool dispatch. It mutates
// a.History in place so callers can continue the conversation. Round
// exhaustion produces a labeled sentinel response, not an error.
func (a *Agent) Run(ctx context.Context, prompt string) (string, error) {
	if prompt != "" {
		a.History = append(a.History, session.User(prompt))
	}

	for round := 0; round < maxMainRounds; round++ {
		if a.Context.ShouldCompact(a.History) {
			compacted, err := a.Context.AutoCompact(ctx, a.History)
			if err != nil {
				return "", err
			}
			a.History = compacted
		}
		a.History = a.Context.MicroCompact(a.History)

		messages := []session.Message{session.System(a.SystemPrompt)}
		if len(a.History) <= 1 {
			messages = append(messages, session.System(initialReminder))
		} else if assistantTurnsSinceTodo(a.History) >= nagTurnCount {
			messages = append(messages, session.System(nagReminder))
		}
		messages = append(messages, a.History...)

		result, err := a.callModel(ctx, messages, a.Tools)
		if err != nil {
			return "", err
		}

		a.History = append(a.History, assistantMessage(result))
		a.logTurn("main", result)

		if len(result.ToolCalls) == 0 {
			return result.Content + "\n\n" + a.skillUsageNote(), nil
		}

		for _, call := range result.ToolCalls {
			output := a.dispatch(ctx, a.Tools, call)
			a.Store.RecordTool("main", call.Name, call.ParseArguments(), output)
			a.History = append(a.History, a.formatToolResult(call, output))
		}
	}

	sentinel := fmt.Sprintf(
		"Stopped after reaching max rounds (%d). The conversation may be stuck in repeated tool calls.",
		maxMainRounds,
	)
	return sentinel + "\n\n" + a.skillUsageNote(), nil
}

// callModel issues one chat completion through the strip-and-retry wrapper
// with the registry's schemas and the resolved thinking parameters.
func (a *Agent) callModel(ctx context.Context, messages []session.Message, registry *tools.Registry) (*llm.CallResult, error) {
	var schemas []llm.ToolSchema
	for _, t := range registry.Tools() {
		schemas = append(schemas, llm.ToolSchema{
			Name:        t.Name(),
			Description: t.Description(),
			Parameters:  t.Schema(),
		})
	}

	req := llm.Request{
		Model:     a.Model,
		Messages:  messages,
		Tools:     schemas,
		MaxTokens: requestMaxTokens,
		Stream:    a.Options.Stream,
		Thinking:  llm.BuildThinkingParams(a.Policy, a.Options.ThinkingMode, a.Options.ReasoningEffort),
	}
	if a.Options.Stream {
		req.OnContent = func(chunk string) {
			fmt.Print(chunk)
		}
		if a.showReasoning() {
			req.OnReasoning = func(chunk string) {
				fmt.Fprint(os.Stderr, chunk)
			}
		}
	}

	result, err := llm.Call(ctx, a.Client, req)
	if err != nil {
		return nil, err
	}
	if a.Options.Stream && result.Content != "" {
		fmt.Println()
	}
	return result, nil
}

// dispatch runs one tool call. Every failure mode, including an unknown
// tool name, becomes a structured error result so the loop never dies on a
// bad call.
func (a *Agent) dispatch(ctx context.Context, registry *tools.Registry, call session.ToolCall) map[string]interface{} {
	tool, ok := registry.Get(call.Name)
	if !ok {
		return map[string]interface{}{"error": fmt.Sprintf("Unknown tool: %s", call.Name)}
	}

	args := call.ParseArguments()
	if call.Name == "bash" {
		if cmd, ok := args["command"].(string); ok {
			fmt.Printf("\033[33m$ %s\033[0m\n", cmd)
		}
	}

	output, err := tool.Execute(ctx, args)
	if err != nil {
		return map[string]interface{}{"error": fmt.Sprintf("Tool '%s' error: %v", call.Name, err)}
	}
	if output == nil {
		output = map[string]interface{}{}
	}

	switch call.Name {
	case "todo_write":
		if rendered, ok := output["content"].(string); ok && rendered != "" {
			fmt.Printf("\033[95mTodo List Updated:\033[0m\n%s\n", rendered)
		}
	case "skill":
		if name, ok := output["skill_name"].(string); ok && name != "" {
			a.markSkillUsed(name)
		}
	}
	return output
}

// formatToolResult renders a structured tool output as a tool message.
// Skill content is injected verbatim; everything else is serialized, capped
// and run through the large-output offload.
func (a *Agent) formatToolResult(call session.ToolCall, output map[string]interface{}) session.Message {
	if call.Name == "skill" {
		if content, ok := output["content"].(string); ok && content != "" {
			return session.ToolResult(call.ID, call.Name, content)
		}
	}

	data, err := json.Marshal(output)
	if err != nil {
		data = []byte(fmt.Sprintf(`{"error": "unserializable tool output: %v"}`, err))
	}
	content := string(data)
	if len(content) > maxToolResultChars {
		content = content[:maxToolResultChars]
	}
	return session.ToolResult(call.ID, call.Name, a.Context.HandleLargeOutput(content))
}

func (a *Agent) logTurn(actor string, result *llm.CallResult) {
	reasoning := ""
	if a.showReasoning() {
		reasoning = result.Reasoning
	}
	a.Tracer.LogTurn(actor, result.Content, result.ToolCalls, reasoning)
	a.Store.RecordAssistant(actor, result.Content, reasoning, result.ToolCalls, result.Metadata.AsMap())
}

func (a *Agent) showReasoning() bool {
	return a.Options.ThinkingMode != "off"
}

func (a *Agent) markSkillUsed(name string) {
	for _, used := range a.skillsUsed {
		if used == name {
			return
		}
	}
	a.skillsUsed = append(a.skillsUsed, name)
}

func (a *Agent) skillUsageNote() string {
	used := "none"
	if len(a.skillsUsed) > 0 {
		used = strings.Join(a.skillsUsed, ", ")
	}
	return fmt.Sprintf("<skill-usage>\nused_skills: %s\n</skill-usage>", used)
}

// assistantMessage converts a model response into a history entry.
func assistantMessage(result *llm.CallResult) session.Message {
	return session.Message{
		Role:      "assistant",
		Content:   result.Content,
		Reasoning: result.Reasoning,
		ToolCalls: result.ToolCalls,
	}
}

// assistantTurnsSinceTodo counts assistant turns since the last todo_write
// call, scanning backwards.
func assistantTurnsSinceTodo(history []session.Message) int {
	turns := 0
	for i := len(history) - 1; i >= 0; i-- {
		msg := history[i]
		if msg.Role != "assistant" {
			continue
		}
		for _, tc := range msg.ToolCalls {
			if tc.Name == "todo_write" {
				return turns
			}
		}
		turns++
	}
	return turns
}
