package agent

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/t0mczak/orbit/llm"
	"github.com/t0mczak/orbit/session"
	"github.com/t0mczak/orbit/tools"
)

func fullRegistry(a *Agent) *tools.Registry {
	registry := tools.NewRegistry()
	for _, name := range []string{"bash", "read_file", "write_file", "edit_file"} {
		registry.Register(&recordingTool{name: name})
	}
	registry.Register(&tools.TodoTool{Manager: a.Todos})
	registry.Register(&recordingTool{name: "skill"})
	registry.Register(&TaskTool{Agent: a})
	return registry
}

func TestSubagentExcludesTaskToolForEveryType(t *testing.T) {
	for _, agentType := range []string{"explore", "code", "plan"} {
		client := llm.Script(llm.TextResult("summary"))
		a := newTestAgent(t, client, nil)
		a.Tools = fullRegistry(a)

		_, err := a.RunSubagent(context.Background(), "look around", "inspect the repo", agentType)
		require.NoError(t, err, agentType)

		require.Len(t, client.Requests, 1, agentType)
		for _, schema := range client.Requests[0].Tools {
			assert.NotEqual(t, "task", schema.Name,
				"%s subagent must not see the task tool", agentType)
		}
	}
}

func TestSubagentToolAllowLists(t *testing.T) {
	client := llm.Script(llm.TextResult("summary"))
	a := newTestAgent(t, client, nil)
	a.Tools = fullRegistry(a)

	_, err := a.RunSubagent(context.Background(), "d", "p", "explore")
	require.NoError(t, err)

	var names []string
	for _, schema := range client.Requests[0].Tools {
		names = append(names, schema.Name)
	}
	assert.Equal(t, []string{"bash", "read_file"}, names)
}

func TestSubagentCodeTypeGetsEverythingButTask(t *testing.T) {
	client := llm.Script(llm.TextResult("summary"))
	a := newTestAgent(t, client, nil)
	a.Tools = fullRegistry(a)

	_, err := a.RunSubagent(context.Background(), "d", "p", "code")
	require.NoError(t, err)

	var names []string
	for _, schema := range client.Requests[0].Tools {
		names = append(names, schema.Name)
	}
	assert.Equal(t, []string{"bash", "read_file", "write_file", "edit_file", "todo_write", "skill"}, names)
}

func TestSubagentUnknownTypeIsError(t *testing.T) {
	a := newTestAgent(t, llm.Script(), nil)
	_, err := a.RunSubagent(context.Background(), "d", "p", "wizard")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown agent type 'wizard'")
}

func TestSubagentFreshHistoryAndSystemPrompt(t *testing.T) {
	client := llm.Script(llm.TextResult("summary"))
	a := newTestAgent(t, client, nil)
	a.Tools = fullRegistry(a)
	a.History = []session.Message{session.User("main context that must not leak")}

	_, err := a.RunSubagent(context.Background(), "d", "find the config", "explore")
	require.NoError(t, err)

	msgs := client.Requests[0].Messages
	require.Len(t, msgs, 2)
	assert.Equal(t, "system", msgs[0].Role)
	assert.Contains(t, msgs[0].Content, "You are a explore subagent at "+a.Workspace)
	assert.Contains(t, msgs[0].Content, "never modify files")
	assert.Equal(t, "find the config", msgs[1].Content)
}

func TestSubagentReturnsOnlyFinalText(t *testing.T) {
	client := llm.Script(
		llm.ToolCallResult(session.ToolCall{ID: "c1", Name: "bash", Arguments: `{"command": "ls"}`}),
		llm.TextResult("two files found"),
	)
	a := newTestAgent(t, client, nil)
	a.Tools = fullRegistry(a)

	out, err := a.RunSubagent(context.Background(), "list files", "run ls", "explore")
	require.NoError(t, err)
	assert.Equal(t, "two files found", out)

	// the parent history is untouched
	assert.Empty(t, a.History)
}

func TestSubagentEmptyFinalText(t *testing.T) {
	client := llm.Script(llm.TextResult(""))
	a := newTestAgent(t, client, nil)
	a.Tools = fullRegistry(a)

	out, err := a.RunSubagent(context.Background(), "d", "p", "plan")
	require.NoError(t, err)
	assert.Equal(t, "(subagent returned no text)", out)
}

func TestSubagentMaxRoundsSentinel(t *testing.T) {
	client := &alwaysToolClient{}
	a := newTestAgent(t, client, nil)
	registry := tools.NewRegistry()
	registry.Register(&recordingTool{name: "echo"})
	a.Tools = registry

	out, err := a.RunSubagent(context.Background(), "spin", "keep going", "code")
	require.NoError(t, err)
	assert.Equal(t, fmt.Sprintf("Subagent stopped after reaching max rounds (30). Last task: %s", "spin"), out)
	assert.Equal(t, 30, client.calls)
}

func TestSubagentHasOwnTodoList(t *testing.T) {
	client := llm.Script(
		llm.ToolCallResult(session.ToolCall{
			ID:   "c1",
			Name: "todo_write",
			Arguments: `{"items": [{"content": "sub task", "status": "pending", "activeForm": "Working"}]}`,
		}),
		llm.TextResult("done"),
	)
	a := newTestAgent(t, client, nil)
	a.Tools = fullRegistry(a)

	_, err := a.RunSubagent(context.Background(), "d", "p", "code")
	require.NoError(t, err)

	assert.Empty(t, a.Todos.Items(), "subagent todo updates stay out of the parent list")
}

func TestTaskToolValidation(t *testing.T) {
	a := newTestAgent(t, llm.Script(llm.TextResult("ok")), nil)
	a.Tools = fullRegistry(a)
	taskTool := &TaskTool{Agent: a}

	_, err := taskTool.Execute(context.Background(), map[string]interface{}{
		"agent_type": "explore",
	})
	assert.ErrorContains(t, err, "task_description")

	_, err = taskTool.Execute(context.Background(), map[string]interface{}{
		"task_description": "desc",
	})
	assert.ErrorContains(t, err, "agent_type")
}

func TestTaskToolPromptDefaultsToDescription(t *testing.T) {
	client := llm.Script(llm.TextResult("did it"))
	a := newTestAgent(t, client, nil)
	a.Tools = fullRegistry(a)
	taskTool := &TaskTool{Agent: a}

	out, err := taskTool.Execute(context.Background(), map[string]interface{}{
		"agent_type":       "explore",
		"task_description": "inventory the repo",
	})
	require.NoError(t, err)
	assert.Equal(t, "did it", out["content"])

	assert.Equal(t, "inventory the repo", client.Requests[0].Messages[1].Content)
}
