package agent

import (
	"fmt"

	"github.com/t0mczak/orbit/tools"
)

const systemPromptTemplate = `You are a coding agent working at %s.

You complete tasks by calling tools: shell commands, file reads and edits,
todo tracking, skills and subagents. Work step by step and keep the todo
list current on multi-step tasks.

Available skills:
%s

Subagent types (spawn via the task tool for focused work in a fresh context):
%s

Tool naming note:
- The todo tool function name is todo_write.
- Prefer the task tool only from the main agent.`

// BuildSystemPrompt hydrates the main-loop system prompt with the workspace
// path, the loaded skill descriptions and the subagent type listing.
func BuildSystemPrompt(workspace string, skills *tools.SkillLoader) string {
	return fmt.Sprintf(systemPromptTemplate, workspace, skills.Descriptions(), AgentTypeDescriptions())
}
