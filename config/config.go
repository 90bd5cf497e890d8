package config

import (
	"os"
	"path/filepath"

	"github.com/t0mczak/orbit/errors"
	"gopkg.in/yaml.v3"
)

// FilesystemAccess restricts what the filesystem tools may touch. Patterns
// are doublestar globs matched against workspace-relative paths.
type FilesystemAccess struct {
	Hidden   []string `yaml:"hidden"`
	ReadOnly []string `yaml:"read_only"`
}

// MCPServer describes an external MCP tool server subprocess.
type MCPServer struct {
	Name    string   `yaml:"name"`
	Command string   `yaml:"command"`
	Args    []string `yaml:"args"`
}

// Config is the merged workspace configuration.
type Config struct {
	Provider         string           `yaml:"provider"` // openai | anthropic | mock
	Model            string           `yaml:"model"`
	ContextWindow    int              `yaml:"context_window"`
	MaxOutputTokens  int              `yaml:"max_output_tokens"`
	AllowedCommands  []string         `yaml:"allowed_commands"`
	FilesystemAccess FilesystemAccess `yaml:"filesystem_access"`
	SkillsDir        string           `yaml:"skills_dir"`
	TranscriptsDir   string           `yaml:"transcripts_dir"`
	MCPServers       []MCPServer      `yaml:"mcp_servers"`
}

// Load reads configuration from the user's home directory and the current
// working directory, with the latter taking precedence.
func Load() (*Config, error) {
	cfg := &Config{
		Provider:        "openai",
		ContextWindow:   200000,
		MaxOutputTokens: 16384,
		SkillsDir:       "skills",
		TranscriptsDir:  "transcripts",
	}

	// The runtime's own state directory is always hidden from the tools.
	cfg.FilesystemAccess.Hidden = append(cfg.FilesystemAccess.Hidden, ".orbit", ".orbit/**")

	if home, err := os.UserHomeDir(); err == nil {
		userPath := filepath.Join(home, ".orbit", "config.yaml")
		if _, err := os.Stat(userPath); err == nil {
			if err := loadFromFile(userPath, cfg); err != nil {
				return nil, errors.Wrapf(err, "error loading user config")
			}
		}
	}

	wd, err := os.Getwd()
	if err != nil {
		return nil, errors.Wrapf(err, "could not get working directory")
	}
	projectPath := filepath.Join(wd, ".orbit", "config.yaml")
	if _, err := os.Stat(projectPath); err == nil {
		if err := loadFromFile(projectPath, cfg); err != nil {
			return nil, errors.Wrapf(err, "error loading project config")
		}
	}

	return cfg, nil
}

func loadFromFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	// Unmarshal overwrites fields present in the YAML, which gives a simple
	// merge where project-level config replaces user-level.
	return yaml.Unmarshal(data, cfg)
}
