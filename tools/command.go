package tools

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"time"

	"github.com/t0mczak/orbit/errors"
)

// DefaultCommandTimeout bounds a single shell invocation's wall-clock time.
const DefaultCommandTimeout = 300 * time.Second

// BashTool runs shell commands under the workspace root with a bounded
// timeout, returning stdout, stderr and the exit code separately.
type BashTool struct {
	Workspace       string
	AllowedCommands []string // regex allow-list; empty allows everything
	Timeout         time.Duration
}

func (t *BashTool) Name() string { return "bash" }

func (t *BashTool) Description() string {
	return "Execute a shell command in the workspace. Returns stdout, stderr and the exit code."
}

func (t *BashTool) Schema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"command": map[string]interface{}{"type": "string"},
		},
		"required": []string{"command"},
	}
}

func (t *BashTool) Execute(ctx context.Context, args map[string]interface{}) (map[string]interface{}, error) {
	command, ok := args["command"].(string)
	if !ok || command == "" {
		return nil, errors.New("missing or invalid 'command' argument")
	}

	allowed, err := t.commandAllowed(command)
	if err != nil {
		return nil, err
	}
	if !allowed {
		return nil, errors.New("command '%s' is not in the list of allowed commands", command)
	}

	timeout := t.Timeout
	if timeout <= 0 {
		timeout = DefaultCommandTimeout
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, "/bin/sh", "-c", command)
	cmd.Dir = t.Workspace

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()
	if runCtx.Err() == context.DeadlineExceeded {
		return map[string]interface{}{
			"stdout":     stdout.String(),
			"stderr":     fmt.Sprintf("(timeout after %s)", timeout),
			"returncode": 124,
		}, nil
	}

	returncode := 0
	if runErr != nil {
		exitErr, ok := runErr.(*exec.ExitError)
		if !ok {
			return nil, errors.Wrapf(runErr, "command failed to start")
		}
		returncode = exitErr.ExitCode()
	}

	return map[string]interface{}{
		"stdout":     stdout.String(),
		"stderr":     stderr.String(),
		"returncode": returncode,
	}, nil
}

// commandAllowed checks the command against the allow-list, with each
// entry treated as a regular expression. Invalid patterns fall back to an
// exact string comparison.
func (t *BashTool) commandAllowed(command string) (bool, error) {
	if len(t.AllowedCommands) == 0 {
		return true, nil
	}
	for _, pattern := range t.AllowedCommands {
		re, err := regexp.Compile(pattern)
		if err != nil {
			if command == pattern {
				return true, nil
			}
			continue
		}
		if re.MatchString(command) {
			return true, nil
		}
	}
	return false, nil
}
