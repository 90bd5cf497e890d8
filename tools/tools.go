package tools

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/t0mczak/orbit/errors"
)

// Tool defines one action the agent can take. Schema returns the JSON
// parameter schema advertised to the model; Execute must accept exactly the
// arguments that schema describes, so the two stay in lock-step.
type Tool interface {
	Name() string
	Description() string
	Schema() map[string]interface{}
	Execute(ctx context.Context, args map[string]interface{}) (map[string]interface{}, error)
}

// Registry holds the available tools in registration order.
type Registry struct {
	order []string
	tools map[string]Tool
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

// Register adds a tool, replacing any previous tool of the same name.
func (r *Registry) Register(t Tool) {
	if _, exists := r.tools[t.Name()]; !exists {
		r.order = append(r.order, t.Name())
	}
	r.tools[t.Name()] = t
}

// Get returns a tool by name.
func (r *Registry) Get(name string) (Tool, bool) {
	t, ok := r.tools[name]
	return t, ok
}

// Tools returns all tools in registration order.
func (r *Registry) Tools() []Tool {
	out := make([]Tool, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.tools[name])
	}
	return out
}

// Names returns the registered tool names in order.
func (r *Registry) Names() []string {
	return append([]string(nil), r.order...)
}

// Filter returns a new registry restricted to the allowed names ("*" allows
// everything) minus the excluded names. Registration order is preserved.
func (r *Registry) Filter(allowed []string, excluded ...string) *Registry {
	allowAll := false
	allowSet := make(map[string]bool, len(allowed))
	for _, name := range allowed {
		if name == "*" {
			allowAll = true
		}
		allowSet[name] = true
	}
	excludeSet := make(map[string]bool, len(excluded))
	for _, name := range excluded {
		excludeSet[name] = true
	}

	filtered := NewRegistry()
	for _, name := range r.order {
		if excludeSet[name] {
			continue
		}
		if allowAll || allowSet[name] {
			filtered.Register(r.tools[name])
		}
	}
	return filtered
}

// ResolveWorkspacePath resolves a possibly-relative path against the
// workspace root and rejects any path that escapes it.
func ResolveWorkspacePath(workspace, path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", errors.New("empty path")
	}

	resolved := path
	if !filepath.IsAbs(resolved) {
		resolved = filepath.Join(workspace, resolved)
	}
	resolved = filepath.Clean(resolved)

	rel, err := filepath.Rel(workspace, resolved)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", errors.New("access denied: path '%s' escapes the workspace", path)
	}
	return resolved, nil
}

// isPathRestricted checks whether a workspace path matches any of the
// configured glob patterns.
func isPathRestricted(workspace, path string, patterns []string) (bool, error) {
	rel, err := filepath.Rel(workspace, path)
	if err != nil {
		rel = path
	}
	for _, pattern := range patterns {
		match, err := doublestar.PathMatch(pattern, rel)
		if err != nil {
			return false, errors.Wrapf(err, "invalid glob pattern '%s'", pattern)
		}
		if match {
			return true, nil
		}
	}
	return false, nil
}
