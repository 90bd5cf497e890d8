package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/t0mczak/orbit/errors"
)

// Todo statuses.
const (
	TodoPending    = "pending"
	TodoInProgress = "in_progress"
	TodoCompleted  = "completed"
)

// MaxTodoItems caps the list size.
const MaxTodoItems = 20

// TodoItem is one entry in the task list.
type TodoItem struct {
	Content    string `json:"content"`
	Status     string `json:"status"`
	ActiveForm string `json:"activeForm"`
}

// TodoManager holds the task list for one agent loop. Updates are
// all-or-nothing: a rejected update leaves the previous list untouched.
type TodoManager struct {
	items []TodoItem
}

// NewTodoManager creates an empty manager.
func NewTodoManager() *TodoManager {
	return &TodoManager{}
}

// Update validates the full replacement list and, on success, stores it and
// returns the rendering. The first violation found is returned and the
// prior state is retained.
func (m *TodoManager) Update(items []TodoItem) (string, error) {
	inProgress := 0
	validated := make([]TodoItem, 0, len(items))

	for i, item := range items {
		content := strings.TrimSpace(item.Content)
		status := strings.ToLower(strings.TrimSpace(item.Status))
		if status == "" {
			status = TodoPending
		}
		activeForm := strings.TrimSpace(item.ActiveForm)

		if content == "" {
			return "", errors.New("item %d is missing content", i)
		}
		if status != TodoPending && status != TodoInProgress && status != TodoCompleted {
			return "", errors.New("item %d has invalid status '%s': must be pending|in_progress|completed", i, status)
		}
		if activeForm == "" {
			return "", errors.New("item %d is missing activeForm", i)
		}
		if status == TodoInProgress {
			inProgress++
		}
		validated = append(validated, TodoItem{Content: content, Status: status, ActiveForm: activeForm})
	}

	if len(validated) > MaxTodoItems {
		return "", errors.New("too many todo items: maximum allowed is %d", MaxTodoItems)
	}
	if inProgress > 1 {
		return "", errors.New("only one todo item can be in_progress at a time")
	}

	m.items = validated
	return m.Render(), nil
}

// Render produces the compact status view: one marked line per item, the
// activeForm suffix on the in-progress item, and a completed-count line.
func (m *TodoManager) Render() string {
	if len(m.items) == 0 {
		return "No TODO items."
	}

	var lines []string
	completed := 0
	for _, item := range m.items {
		switch item.Status {
		case TodoCompleted:
			completed++
			lines = append(lines, "[✅] "+item.Content)
		case TodoInProgress:
			lines = append(lines, fmt.Sprintf("[>] %s (%s)", item.Content, item.ActiveForm))
		default:
			lines = append(lines, "[ ] "+item.Content)
		}
	}
	lines = append(lines, fmt.Sprintf("Progress: %d/%d completed.", completed, len(m.items)))
	return strings.Join(lines, "\n")
}

// Items returns a copy of the current list.
func (m *TodoManager) Items() []TodoItem {
	return append([]TodoItem(nil), m.items...)
}

// TodoTool exposes the manager as the todo_write tool.
type TodoTool struct {
	Manager *TodoManager
}

func (t *TodoTool) Name() string { return "todo_write" }

func (t *TodoTool) Description() string {
	return "Update the complete todo list. Each item requires content, status and activeForm."
}

func (t *TodoTool) Schema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"items": map[string]interface{}{
				"type": "array",
				"items": map[string]interface{}{
					"type": "object",
					"properties": map[string]interface{}{
						"content":    map[string]interface{}{"type": "string"},
						"status":     map[string]interface{}{"type": "string"},
						"activeForm": map[string]interface{}{"type": "string"},
					},
					"required": []string{"content", "status", "activeForm"},
				},
			},
		},
		"required": []string{"items"},
	}
}

func (t *TodoTool) Execute(ctx context.Context, args map[string]interface{}) (map[string]interface{}, error) {
	rawItems, ok := args["items"]
	if !ok {
		return nil, errors.New("missing 'items' argument")
	}

	// JSON round-trip converts the untyped argument payload.
	data, err := json.Marshal(rawItems)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid 'items' payload")
	}
	var items []TodoItem
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, errors.Wrapf(err, "invalid 'items' payload")
	}

	rendered, err := t.Manager.Update(items)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{"content": rendered}, nil
}
