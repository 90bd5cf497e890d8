package agent

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/t0mczak/orbit/errors"
	"github.com/t0mczak/orbit/session"
	"github.com/t0mczak/orbit/tools"
)

// AgentType describes one subagent flavor: what it is for, which tools it
// may use ("*" means all), and its system-prompt fragment.
type AgentType struct {
	Description  string
	Tools        []string
	SystemPrompt string
}

// agentTypeOrder fixes the listing order for descriptions.
var agentTypeOrder = []string{"explore", "code", "plan"}

var agentTypes = map[string]AgentType{
	"explore": {
		Description:  "Read-only subagent for searching files and understanding code.",
		Tools:        []string{"bash", "read_file"},
		SystemPrompt: "You are an exploration subagent. Search and analyze, but never modify files. Return a concise summary.",
	},
	"code": {
		Description:  "Implementation subagent with full tool access.",
		Tools:        []string{"*"},
		SystemPrompt: "You are a coding subagent. You have full access to implement changes efficiently in the codebase.",
	},
	"plan": {
		Description:  "Read-only planning subagent for strategy and sequencing.",
		Tools:        []string{"bash", "read_file"},
		SystemPrompt: "You are a planning subagent. Analyze the codebase and output a numbered implementation plan. Do NOT make changes.",
	},
}

// AgentTypeDescriptions renders the bullet list used in the task tool
// description and the system prompt.
func AgentTypeDescriptions() string {
	lines := make([]string, 0, len(agentTypeOrder))
	for _, name := range agentTypeOrder {
		lines = append(lines, fmt.Sprintf("- %s: %s", name, agentTypes[name].Description))
	}
	return strings.Join(lines, "\n")
}

// RunSubagent spawns a subagent of the given type in an isolated context:
// fresh history seeded with the prompt, its own todo list, the type's tool
// allow-list with the task tool always excluded, and the same compression
// tiers. Only the final text is returned to the caller.
func (a *Agent) RunSubagent(ctx context.Context, description, prompt, agentType string) (string, error) {
	cfg, ok := agentTypes[agentType]
	if !ok {
		return "", errors.New("unknown agent type '%s'", agentType)
	}

	subTools := a.Tools.Filter(cfg.Tools, "task")
	// Subagents keep their own todo list, separate from the parent's.
	subTodos := tools.NewTodoManager()
	if _, hasTodo := subTools.Get("todo_write"); hasTodo {
		subTools.Register(&tools.TodoTool{Manager: subTodos})
	}

	systemPrompt := fmt.Sprintf(
		"You are a %s subagent at %s.\n\n%s\n\nComplete the task and return a clear, concise summary.",
		agentType, a.Workspace, cfg.SystemPrompt,
	)
	actor := "subagent:" + agentType
	history := []session.Message{session.User(prompt)}
	start := time.Now()
	toolCount := 0

	fmt.Printf("  [%s] %s\n", agentType, description)

	for round := 0; round < maxSubagentRounds; round++ {
		if a.Context.ShouldCompact(history) {
			compacted, err := a.Context.AutoCompact(ctx, history)
			if err != nil {
				return "", err
			}
			history = compacted
		}
		history = a.Context.MicroCompact(history)

		messages := append([]session.Message{session.System(systemPrompt)}, history...)
		result, err := a.callModel(ctx, messages, subTools)
		if err != nil {
			return "", err
		}

		history = append(history, assistantMessage(result))
		a.logTurn(actor, result)

		if len(result.ToolCalls) == 0 {
			elapsed := time.Since(start).Seconds()
			fmt.Printf("  [%s] %s - done (%d tools, %.1fs)\n", agentType, description, toolCount, elapsed)
			if result.Content == "" {
				return "(subagent returned no text)", nil
			}
			return result.Content, nil
		}

		for _, call := range result.ToolCalls {
			output := a.dispatch(ctx, subTools, call)

			toolCount++
			fmt.Fprintf(os.Stdout, "\r  [%s] %s ... %d tools, %.1fs",
				agentType, description, toolCount, time.Since(start).Seconds())

			a.Store.RecordTool(actor, call.Name, call.ParseArguments(), output)
			history = append(history, a.formatToolResult(call, output))
		}
	}

	return fmt.Sprintf("Subagent stopped after reaching max rounds (%d). Last task: %s",
		maxSubagentRounds, description), nil
}

// TaskTool spawns subagents from the main loop. It is registered on the
// main agent only and excluded from every subagent's tool set.
type TaskTool struct {
	Agent *Agent
}

func (t *TaskTool) Name() string { return "task" }

func (t *TaskTool) Description() string {
	return fmt.Sprintf(`Spawn a subagent for focused work in isolated context.

Agent types:
%s`, AgentTypeDescriptions())
}

func (t *TaskTool) Schema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"agent_type":       map[string]interface{}{"type": "string"},
			"task_description": map[string]interface{}{"type": "string"},
			"prompt":           map[string]interface{}{"type": "string"},
		},
		"required": []string{"agent_type", "task_description", "prompt"},
	}
}

func (t *TaskTool) Execute(ctx context.Context, args map[string]interface{}) (map[string]interface{}, error) {
	description := strings.TrimSpace(stringArg(args, "task_description"))
	prompt := strings.TrimSpace(stringArg(args, "prompt"))
	agentType := strings.TrimSpace(stringArg(args, "agent_type"))

	if description == "" {
		return nil, errors.New("task requires non-empty task_description")
	}
	if agentType == "" {
		return nil, errors.New("task requires non-empty agent_type")
	}
	if prompt == "" {
		prompt = description
	}

	summary, err := t.Agent.RunSubagent(ctx, description, prompt, agentType)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{"content": summary}, nil
}

func stringArg(args map[string]interface{}, key string) string {
	v, _ := args[key].(string)
	return v
}
