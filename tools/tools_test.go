package tools

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubTool struct {
	name string
}

func (s *stubTool) Name() string                    { return s.name }
func (s *stubTool) Description() string             { return "stub" }
func (s *stubTool) Schema() map[string]interface{}  { return map[string]interface{}{"type": "object"} }
func (s *stubTool) Execute(ctx context.Context, args map[string]interface{}) (map[string]interface{}, error) {
	return map[string]interface{}{"ok": true}, nil
}

func TestRegistryOrderAndReplace(t *testing.T) {
	r := NewRegistry()
	r.Register(&stubTool{name: "bash"})
	r.Register(&stubTool{name: "read_file"})
	r.Register(&stubTool{name: "bash"}) // replace keeps position

	assert.Equal(t, []string{"bash", "read_file"}, r.Names())
}

func TestRegistryFilterAllowList(t *testing.T) {
	r := NewRegistry()
	for _, name := range []string{"bash", "read_file", "write_file", "task"} {
		r.Register(&stubTool{name: name})
	}

	filtered := r.Filter([]string{"bash", "read_file"})
	assert.Equal(t, []string{"bash", "read_file"}, filtered.Names())
}

func TestRegistryFilterWildcardExcludesTask(t *testing.T) {
	r := NewRegistry()
	for _, name := range []string{"bash", "read_file", "task"} {
		r.Register(&stubTool{name: name})
	}

	filtered := r.Filter([]string{"*"}, "task")
	assert.Equal(t, []string{"bash", "read_file"}, filtered.Names())
	_, ok := filtered.Get("task")
	assert.False(t, ok)
}

func TestResolveWorkspacePath(t *testing.T) {
	workspace := t.TempDir()

	resolved, err := ResolveWorkspacePath(workspace, "sub/file.txt")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(workspace, "sub", "file.txt"), resolved)

	abs := filepath.Join(workspace, "abs.txt")
	resolved, err = ResolveWorkspacePath(workspace, abs)
	require.NoError(t, err)
	assert.Equal(t, abs, resolved)
}

func TestResolveWorkspacePathRejectsEscape(t *testing.T) {
	workspace := t.TempDir()

	_, err := ResolveWorkspacePath(workspace, "../outside.txt")
	assert.Error(t, err)

	_, err = ResolveWorkspacePath(workspace, "/etc/passwd")
	assert.Error(t, err)

	_, err = ResolveWorkspacePath(workspace, "sub/../../escape")
	assert.Error(t, err)

	_, err = ResolveWorkspacePath(workspace, "  ")
	assert.Error(t, err)
}

func TestIsPathRestricted(t *testing.T) {
	workspace := t.TempDir()
	secret := filepath.Join(workspace, ".env")
	nested := filepath.Join(workspace, "vendor", "pkg", "mod.go")

	restricted, err := isPathRestricted(workspace, secret, []string{".env"})
	require.NoError(t, err)
	assert.True(t, restricted)

	restricted, err = isPathRestricted(workspace, nested, []string{"vendor/**"})
	require.NoError(t, err)
	assert.True(t, restricted)

	restricted, err = isPathRestricted(workspace, nested, []string{"*.yaml"})
	require.NoError(t, err)
	assert.False(t, restricted)
}
