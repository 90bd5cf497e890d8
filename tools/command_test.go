package tools

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBashCapturesOutput(t *testing.T) {
	tool := &BashTool{Workspace: t.TempDir()}

	out, err := tool.Execute(context.Background(), map[string]interface{}{
		"command": "echo hello; echo oops 1>&2",
	})
	require.NoError(t, err)
	assert.Equal(t, "hello\n", out["stdout"])
	assert.Equal(t, "oops\n", out["stderr"])
	assert.Equal(t, 0, out["returncode"])
}

func TestBashNonZeroExit(t *testing.T) {
	tool := &BashTool{Workspace: t.TempDir()}

	out, err := tool.Execute(context.Background(), map[string]interface{}{
		"command": "exit 3",
	})
	require.NoError(t, err)
	assert.Equal(t, 3, out["returncode"])
}

func TestBashTimeout(t *testing.T) {
	tool := &BashTool{Workspace: t.TempDir(), Timeout: 100 * time.Millisecond}

	out, err := tool.Execute(context.Background(), map[string]interface{}{
		"command": "sleep 5",
	})
	require.NoError(t, err)
	assert.Equal(t, 124, out["returncode"])
	assert.Contains(t, out["stderr"], "timeout after")
}

func TestBashAllowList(t *testing.T) {
	tool := &BashTool{
		Workspace:       t.TempDir(),
		AllowedCommands: []string{`^echo .*`, `^ls$`},
	}

	_, err := tool.Execute(context.Background(), map[string]interface{}{
		"command": "echo fine",
	})
	assert.NoError(t, err)

	_, err = tool.Execute(context.Background(), map[string]interface{}{
		"command": "rm -rf /",
	})
	assert.ErrorContains(t, err, "not in the list of allowed commands")
}

func TestBashEmptyAllowListAllowsEverything(t *testing.T) {
	tool := &BashTool{Workspace: t.TempDir()}

	_, err := tool.Execute(context.Background(), map[string]interface{}{
		"command": "true",
	})
	assert.NoError(t, err)
}

func TestBashInvalidPatternFallsBackToExactMatch(t *testing.T) {
	tool := &BashTool{
		Workspace:       t.TempDir(),
		AllowedCommands: []string{"echo ["},
	}

	_, err := tool.Execute(context.Background(), map[string]interface{}{
		"command": "echo [",
	})
	assert.NoError(t, err)

	_, err = tool.Execute(context.Background(), map[string]interface{}{
		"command": "echo x",
	})
	assert.Error(t, err)
}

func TestBashRunsInWorkspace(t *testing.T) {
	workspace := t.TempDir()
	tool := &BashTool{Workspace: workspace}

	out, err := tool.Execute(context.Background(), map[string]interface{}{
		"command": "pwd",
	})
	require.NoError(t, err)
	assert.Contains(t, out["stdout"], workspace)
}
