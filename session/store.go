package session

import (
	"encoding/json"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/t0mczak/orbit/errors"
)

var modelNamePattern = regexp.MustCompile(`[^A-Za-z0-9_.-]+`)

// Store is an append-only JSONL session log. One file per session, named
// after the model and start time. A disabled store ignores every record
// call, so callers never need to branch on persistence being on.
type Store struct {
	enabled bool
	path    string
}

// NewStore creates a session store. When enabled, the session directory is
// created and a meta record is written immediately.
func NewStore(enabled bool, model, sessionDir string, runtimeOptions map[string]interface{}) (*Store, error) {
	if !enabled {
		return &Store{}, nil
	}

	if err := os.MkdirAll(sessionDir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "could not create session directory %s", sessionDir)
	}

	name := sanitizeModelName(model)
	stamp := time.Now().Format("20060102_150405")
	// uuid suffix keeps two sessions started in the same second apart
	suffix := uuid.NewString()[:8]
	s := &Store{
		enabled: true,
		path:    filepath.Join(sessionDir, name+"_"+stamp+"_"+suffix+".jsonl"),
	}

	err := s.append(map[string]interface{}{
		"event":           "meta",
		"timestamp":       nowISO(),
		"model":           model,
		"runtime_options": runtimeOptions,
	})
	if err != nil {
		return nil, err
	}
	return s, nil
}

// RecordAssistant appends one assistant event.
func (s *Store) RecordAssistant(actor, content, reasoning string, toolCalls []ToolCall, metadata map[string]interface{}) {
	if toolCalls == nil {
		toolCalls = []ToolCall{}
	}
	_ = s.append(map[string]interface{}{
		"event":      "assistant",
		"timestamp":  nowISO(),
		"actor":      actor,
		"content":    content,
		"reasoning":  reasoning,
		"tool_calls": toolCalls,
		"metadata":   metadata,
	})
}

// RecordTool appends one tool execution event.
func (s *Store) RecordTool(actor, toolName string, arguments map[string]interface{}, output interface{}) {
	_ = s.append(map[string]interface{}{
		"event":     "tool",
		"timestamp": nowISO(),
		"actor":     actor,
		"tool_name": toolName,
		"arguments": arguments,
		"output":    output,
	})
}

// Path returns the output file path, or "" when persistence is disabled.
func (s *Store) Path() string {
	return s.path
}

func (s *Store) append(payload map[string]interface{}) error {
	if !s.enabled || s.path == "" {
		return nil
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return errors.Wrapf(err, "failed to serialize session event")
	}

	file, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return errors.Wrapf(err, "failed to open session file %s", s.path)
	}
	defer file.Close()

	_, err = file.Write(append(data, '\n'))
	return errors.Wrapf(err, "failed to append session event")
}

func sanitizeModelName(model string) string {
	sanitized := modelNamePattern.ReplaceAllString(strings.TrimSpace(model), "_")
	sanitized = strings.Trim(sanitized, "_")
	if sanitized == "" {
		return "unknown-model"
	}
	return sanitized
}

func nowISO() string {
	return time.Now().Format("2006-01-02T15:04:05")
}
