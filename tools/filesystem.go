package tools

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/t0mczak/orbit/config"
	"github.com/t0mczak/orbit/errors"
)

const defaultReadMaxLines = 1000

// ReadFileTool reads a text file with an optional line limit.
type ReadFileTool struct {
	Workspace string
	FSAccess  *config.FilesystemAccess
}

func (t *ReadFileTool) Name() string { return "read_file" }

func (t *ReadFileTool) Description() string {
	return "Read file content with an optional max_lines limit (default 1000)."
}

func (t *ReadFileTool) Schema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"file_path": map[string]interface{}{"type": "string"},
			"max_lines": map[string]interface{}{"type": "integer"},
		},
		"required": []string{"file_path"},
	}
}

func (t *ReadFileTool) Execute(ctx context.Context, args map[string]interface{}) (map[string]interface{}, error) {
	path, err := t.checkPath(args, t.FSAccess.Hidden, "hidden")
	if err != nil {
		return nil, err
	}

	maxLines := defaultReadMaxLines
	if raw, ok := args["max_lines"].(float64); ok && raw > 0 {
		maxLines = int(raw)
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read file '%s'", path)
	}
	defer file.Close()

	var builder strings.Builder
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for lines := 0; lines < maxLines && scanner.Scan(); lines++ {
		builder.WriteString(scanner.Text())
		builder.WriteByte('\n')
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrapf(err, "failed to read file '%s'", path)
	}

	return map[string]interface{}{"content": builder.String()}, nil
}

func (t *ReadFileTool) checkPath(args map[string]interface{}, patterns []string, label string) (string, error) {
	raw, ok := args["file_path"].(string)
	if !ok {
		return "", errors.New("missing or invalid 'file_path' argument")
	}
	path, err := ResolveWorkspacePath(t.Workspace, raw)
	if err != nil {
		return "", err
	}
	restricted, err := isPathRestricted(t.Workspace, path, patterns)
	if err != nil {
		return "", err
	}
	if restricted {
		return "", errors.New("access denied: path '%s' is %s", raw, label)
	}
	return path, nil
}

// WriteFileTool writes full file content, creating parent directories.
type WriteFileTool struct {
	Workspace string
	FSAccess  *config.FilesystemAccess
}

func (t *WriteFileTool) Name() string { return "write_file" }

func (t *WriteFileTool) Description() string {
	return "Write full content to a file, creating parent directories as needed."
}

func (t *WriteFileTool) Schema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"file_path": map[string]interface{}{"type": "string"},
			"content":   map[string]interface{}{"type": "string"},
		},
		"required": []string{"file_path", "content"},
	}
}

func (t *WriteFileTool) Execute(ctx context.Context, args map[string]interface{}) (map[string]interface{}, error) {
	content, ok := args["content"].(string)
	if !ok {
		return nil, errors.New("missing or invalid 'content' argument")
	}
	path, err := t.checkWritablePath(args)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, errors.Wrapf(err, "failed to create parent directories for '%s'", path)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return nil, errors.Wrapf(err, "failed to write file '%s'", path)
	}

	return map[string]interface{}{
		"status": "ok",
		"detail": fmt.Sprintf("wrote %d bytes to %s", len(content), path),
	}, nil
}

func (t *WriteFileTool) checkWritablePath(args map[string]interface{}) (string, error) {
	raw, ok := args["file_path"].(string)
	if !ok {
		return "", errors.New("missing or invalid 'file_path' argument")
	}
	path, err := ResolveWorkspacePath(t.Workspace, raw)
	if err != nil {
		return "", err
	}
	for _, check := range []struct {
		patterns []string
		label    string
	}{
		{t.FSAccess.Hidden, "hidden"},
		{t.FSAccess.ReadOnly, "read-only"},
	} {
		restricted, err := isPathRestricted(t.Workspace, path, check.patterns)
		if err != nil {
			return "", err
		}
		if restricted {
			return "", errors.New("access denied: path '%s' is %s", raw, check.label)
		}
	}
	return path, nil
}

// EditFileTool replaces the first exact occurrence of old_content in a
// file, writing a .bak copy before mutating.
type EditFileTool struct {
	Workspace string
	FSAccess  *config.FilesystemAccess
}

func (t *EditFileTool) Name() string { return "edit_file" }

func (t *EditFileTool) Description() string {
	return "Replace the first exact occurrence of old_content with new_content in a file."
}

func (t *EditFileTool) Schema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"file_path":   map[string]interface{}{"type": "string"},
			"old_content": map[string]interface{}{"type": "string"},
			"new_content": map[string]interface{}{"type": "string"},
		},
		"required": []string{"file_path", "old_content", "new_content"},
	}
}

func (t *EditFileTool) Execute(ctx context.Context, args map[string]interface{}) (map[string]interface{}, error) {
	oldContent, ok := args["old_content"].(string)
	if !ok || oldContent == "" {
		return nil, errors.New("missing or invalid 'old_content' argument")
	}
	newContent, ok := args["new_content"].(string)
	if !ok {
		return nil, errors.New("missing or invalid 'new_content' argument")
	}

	writer := &WriteFileTool{Workspace: t.Workspace, FSAccess: t.FSAccess}
	path, err := writer.checkWritablePath(args)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read file '%s'", path)
	}
	text := string(data)

	if !strings.Contains(text, oldContent) {
		return nil, errors.New("old_content not found in '%s'", path)
	}

	backupPath := path + ".bak"
	if err := os.WriteFile(backupPath, data, 0o644); err != nil {
		return nil, errors.Wrapf(err, "failed to write backup '%s'", backupPath)
	}

	updated := strings.Replace(text, oldContent, newContent, 1)
	if err := os.WriteFile(path, []byte(updated), 0o644); err != nil {
		return nil, errors.Wrapf(err, "failed to write file '%s'", path)
	}

	return map[string]interface{}{
		"status":      "ok",
		"backup_path": backupPath,
	}, nil
}
