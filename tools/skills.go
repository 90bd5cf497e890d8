package tools

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/t0mczak/orbit/errors"
	"gopkg.in/yaml.v3"
)

// Skill is one loadable knowledge module: a folder holding a SKILL.md file
// with YAML frontmatter (name, description) and a markdown body, plus
// optional scripts/, references/ and assets/ resource folders.
type Skill struct {
	Name        string
	Description string
	Body        string
	Dir         string
}

type skillFrontmatter struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
}

// SkillLoader scans a skills directory at startup. Only the frontmatter is
// surfaced up-front; the body is injected on demand through the skill tool.
type SkillLoader struct {
	skills map[string]Skill
	order  []string
}

// NewSkillLoader loads every valid SKILL.md under dir. A missing directory
// yields an empty loader, not an error.
func NewSkillLoader(dir string) *SkillLoader {
	loader := &SkillLoader{skills: make(map[string]Skill)}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return loader
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		skillDir := filepath.Join(dir, entry.Name())
		skill, ok := parseSkillFile(filepath.Join(skillDir, "SKILL.md"))
		if !ok {
			continue
		}
		skill.Dir = skillDir
		if _, exists := loader.skills[skill.Name]; !exists {
			loader.order = append(loader.order, skill.Name)
		}
		loader.skills[skill.Name] = skill
	}
	return loader
}

func parseSkillFile(path string) (Skill, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Skill{}, false
	}

	text := string(data)
	if !strings.HasPrefix(text, "---") {
		return Skill{}, false
	}
	rest := text[3:]
	end := strings.Index(rest, "\n---")
	if end < 0 {
		return Skill{}, false
	}

	var meta skillFrontmatter
	if err := yaml.Unmarshal([]byte(rest[:end]), &meta); err != nil {
		return Skill{}, false
	}
	if meta.Name == "" || meta.Description == "" {
		return Skill{}, false
	}

	body := rest[end+4:]
	if i := strings.Index(body, "\n"); i >= 0 && strings.TrimSpace(body[:i]) == "" {
		body = body[i+1:]
	}

	return Skill{
		Name:        meta.Name,
		Description: meta.Description,
		Body:        strings.TrimSpace(body),
	}, true
}

// Descriptions renders the one-line-per-skill list for the system prompt.
func (l *SkillLoader) Descriptions() string {
	if len(l.order) == 0 {
		return "(no skills available)"
	}
	lines := make([]string, 0, len(l.order))
	for _, name := range l.order {
		lines = append(lines, fmt.Sprintf("- %s: %s", name, l.skills[name].Description))
	}
	return strings.Join(lines, "\n")
}

// List returns the available skill names.
func (l *SkillLoader) List() []string {
	return append([]string(nil), l.order...)
}

// Content returns the full skill body plus resource-folder hints, or an
// error for an unknown name.
func (l *SkillLoader) Content(name string) (string, error) {
	skill, ok := l.skills[name]
	if !ok {
		available := strings.Join(l.order, ", ")
		if available == "" {
			available = "none"
		}
		return "", errors.New("unknown skill '%s': available: %s", name, available)
	}

	content := fmt.Sprintf("# Skill: %s\n\n%s", skill.Name, skill.Body)

	var resources []string
	for _, folder := range []struct{ dir, label string }{
		{"scripts", "Scripts"},
		{"references", "References"},
		{"assets", "Assets"},
	} {
		names := listFiles(filepath.Join(skill.Dir, folder.dir))
		if len(names) > 0 {
			resources = append(resources, fmt.Sprintf("- %s: %s", folder.label, strings.Join(names, ", ")))
		}
	}
	if len(resources) > 0 {
		content += fmt.Sprintf("\n\n**Available resources in %s:**\n%s", skill.Dir, strings.Join(resources, "\n"))
	}
	return content, nil
}

func listFiles(dir string) []string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		names = append(names, entry.Name())
	}
	sort.Strings(names)
	return names
}

// SkillTool injects a skill's content into the conversation as a tagged
// tool result.
type SkillTool struct {
	Loader *SkillLoader
}

func (t *SkillTool) Name() string { return "skill" }

func (t *SkillTool) Description() string {
	return fmt.Sprintf(`Load a skill to gain specialized knowledge for a task.

Available skills:
%s

Use a skill as soon as the task matches its description; the skill content
is injected into the conversation with detailed instructions and resources.`, t.Loader.Descriptions())
}

func (t *SkillTool) Schema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"skill_name": map[string]interface{}{"type": "string"},
			"args":       map[string]interface{}{"type": "string"},
		},
		"required": []string{"skill_name"},
	}
}

func (t *SkillTool) Execute(ctx context.Context, args map[string]interface{}) (map[string]interface{}, error) {
	name, ok := args["skill_name"].(string)
	name = strings.TrimSpace(name)
	if !ok || name == "" {
		return nil, errors.New("skill requires non-empty skill_name")
	}

	content, err := t.Loader.Content(name)
	if err != nil {
		return nil, err
	}

	argsAttr := ""
	if extra, ok := args["args"].(string); ok && strings.TrimSpace(extra) != "" {
		argsAttr = fmt.Sprintf(" args=%q", strings.ReplaceAll(strings.TrimSpace(extra), `"`, "'"))
	}

	wrapped := fmt.Sprintf(`<skill-loaded name=%q%s>
%s
</skill-loaded>

Follow the instructions in the skill above to complete the user's task.`, name, argsAttr, content)

	return map[string]interface{}{"content": wrapped, "skill_name": name}, nil
}
