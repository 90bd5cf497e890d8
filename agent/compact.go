package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/t0mczak/orbit/errors"
	"github.com/t0mczak/orbit/llm"
	"github.com/t0mczak/orbit/session"
	"github.com/t0mczak/orbit/tools"
)

// Compression tuning. The threshold formula reserves room for one model
// response (capped) plus a fixed safety margin below the context window.
const (
	keepRecentResults   = 3
	minCompactSavings   = 20000
	compactResultFloor  = 1000
	maxInlineOutput     = 40000
	largeOutputPreview  = 2000
	maxRestoreFiles     = 5
	maxRestoreTokens    = 5000
	maxRestoreTotal     = 50000
	summaryInputCap     = 100000
	summaryMaxTokens    = 2000
	outputReserveCap    = 20000
	compactSafetyMargin = 13000
)

// compactableTools are the tools whose old results can be blanked without
// losing conversational meaning; the model can always re-run them.
var compactableTools = map[string]bool{
	"bash":          true,
	"read_file":     true,
	"write_file":    true,
	"edit_file":     true,
	"glob":          true,
	"grep":          true,
	"list_dir":      true,
	"notebook_edit": true,
}

const clearedResultPlaceholder = "[Old tool result content cleared]"

// AutoCompactThreshold computes the token count at which the whole history
// is summarized: contextWindow - min(maxOutput, 20000) - 13000.
func AutoCompactThreshold(contextWindow, maxOutput int) int {
	reserve := maxOutput
	if reserve > outputReserveCap {
		reserve = outputReserveCap
	}
	return contextWindow - reserve - compactSafetyMargin
}

// ContextManager implements the three compression tiers: blanking old tool
// results, whole-history summarization with file restoration, and offloading
// oversized tool output to disk.
type ContextManager struct {
	Workspace      string
	TranscriptsDir string
	Threshold      int

	// Summarizer produces the auto-compact summary.
	Summarizer llm.Client
	Model      string

	Log zerolog.Logger
}

// NewContextManager creates a manager and ensures the transcript directory
// exists.
func NewContextManager(workspace, transcriptsDir string, contextWindow, maxOutput int, summarizer llm.Client, model string, log zerolog.Logger) *ContextManager {
	_ = os.MkdirAll(transcriptsDir, 0o755)
	return &ContextManager{
		Workspace:      workspace,
		TranscriptsDir: transcriptsDir,
		Threshold:      AutoCompactThreshold(contextWindow, maxOutput),
		Summarizer:     summarizer,
		Model:          model,
		Log:            log,
	}
}

// EstimateTokens is the uniform chars/4 estimator used by every tier.
func EstimateTokens(text string) int {
	return len(text) / 4
}

// MicroCompact blanks old compactable tool results in place, keeping the
// most recent keepRecentResults intact. Only results above the per-result
// floor count toward savings, and nothing is cleared unless the total
// estimated savings reaches the floor. Call linkage (id and name) survives.
func (cm *ContextManager) MicroCompact(messages []session.Message) []session.Message {
	names := session.ToolNameByCallID(messages)

	var candidates []int
	for i, msg := range messages {
		if msg.Role != "tool" {
			continue
		}
		name := msg.Name
		if name == "" {
			name = names[msg.ToolCallID]
		}
		if compactableTools[name] {
			candidates = append(candidates, i)
		}
	}

	if len(candidates) <= keepRecentResults {
		return messages
	}
	toCompact := candidates[:len(candidates)-keepRecentResults]

	savings := 0
	var clearable []int
	for _, i := range toCompact {
		if t := EstimateTokens(messages[i].Content); t > compactResultFloor {
			savings += t
			clearable = append(clearable, i)
		}
	}
	if savings < minCompactSavings {
		return messages
	}

	for _, i := range clearable {
		messages[i].Content = clearedResultPlaceholder
	}
	return messages
}

// ShouldCompact reports whether the serialized history exceeds the
// auto-compact threshold.
func (cm *ContextManager) ShouldCompact(messages []session.Message) bool {
	total := 0
	for _, msg := range messages {
		data, err := json.Marshal(msg)
		if err != nil {
			continue
		}
		total += EstimateTokens(string(data))
	}
	return total > cm.Threshold
}

// AutoCompact replaces the entire history with a model-generated summary
// plus restored-file pairs. The full history is archived to disk first; an
// archival failure is logged and swallowed, a summarizer failure is
// returned to the caller with the history untouched.
func (cm *ContextManager) AutoCompact(ctx context.Context, messages []session.Message) ([]session.Message, error) {
	if err := cm.saveTranscript(messages); err != nil {
		cm.Log.Warn().Err(err).Msg("transcript archive failed")
	}

	restored := cm.restoreRecentFiles(messages)

	conversation := messagesToText(messages)
	if len(conversation) > summaryInputCap {
		conversation = conversation[:summaryInputCap]
	}

	result, err := llm.Call(ctx, cm.Summarizer, llm.Request{
		Model: cm.Model,
		Messages: []session.Message{
			session.System("You are a conversation summarizer. Be concise but thorough."),
			session.User("Summarize this conversation chronologically. Include: goals, actions taken, decisions made, current state, and pending work.\n\n" + conversation),
		},
		MaxTokens: summaryMaxTokens,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "auto-compact summarization failed")
	}
	summary := strings.TrimSpace(result.Content)

	replaced := []session.Message{
		session.User("[Conversation compressed]\n\n" + summary),
		session.Assistant("Understood. I have the context from the compressed conversation. Continuing work."),
	}
	// Restored files interleave as user/assistant pairs to keep turn order valid.
	for _, rf := range restored {
		replaced = append(replaced, rf, session.Assistant("Noted, file content restored."))
	}
	return replaced, nil
}

// HandleLargeOutput offloads oversized tool output to a time-stamped file
// under the transcript directory, returning a bounded preview plus the path.
// Output at or below the limit passes through byte-exact.
func (cm *ContextManager) HandleLargeOutput(output string) string {
	tokens := EstimateTokens(output)
	if tokens <= maxInlineOutput {
		return output
	}

	filename := fmt.Sprintf("output_%d.txt", time.Now().Unix())
	path := filepath.Join(cm.TranscriptsDir, filename)
	if err := os.WriteFile(path, []byte(output), 0o644); err != nil {
		cm.Log.Warn().Err(err).Msg("large output offload failed")
		return output
	}

	preview := output
	if len(preview) > largeOutputPreview {
		preview = preview[:largeOutputPreview]
	}
	return fmt.Sprintf("Output too large (%d tokens). Saved to: %s\n\nPreview:\n%s...", tokens, path, preview)
}

// saveTranscript appends every message to the permanent JSONL archive.
func (cm *ContextManager) saveTranscript(messages []session.Message) error {
	if err := os.MkdirAll(cm.TranscriptsDir, 0o755); err != nil {
		return errors.Wrapf(err, "failed to create transcript directory")
	}
	path := filepath.Join(cm.TranscriptsDir, "transcript.jsonl")
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return errors.Wrapf(err, "failed to open transcript %s", path)
	}
	defer file.Close()

	for _, msg := range messages {
		data, err := json.Marshal(msg)
		if err != nil {
			continue
		}
		if _, err := file.Write(append(data, '\n')); err != nil {
			return errors.Wrapf(err, "failed to append transcript")
		}
	}
	return nil
}

// restoreRecentFiles scans the history for read_file calls and re-reads the
// most recently accessed files, bounded per file and in total, so the model
// keeps its working set across a compaction.
func (cm *ContextManager) restoreRecentFiles(messages []session.Message) []session.Message {
	accessOrder := make(map[string]int)
	for _, msg := range messages {
		if msg.Role != "assistant" {
			continue
		}
		for _, tc := range msg.ToolCalls {
			if tc.Name != "read_file" {
				continue
			}
			args := tc.ParseArguments()
			if path, ok := args["file_path"].(string); ok && path != "" {
				accessOrder[path] = len(accessOrder)
			}
		}
	}

	// Most recently accessed first.
	paths := make([]string, 0, len(accessOrder))
	for path := range accessOrder {
		paths = append(paths, path)
	}
	for i := 0; i < len(paths); i++ {
		for j := i + 1; j < len(paths); j++ {
			if accessOrder[paths[j]] > accessOrder[paths[i]] {
				paths[i], paths[j] = paths[j], paths[i]
			}
		}
	}
	if len(paths) > maxRestoreFiles {
		paths = paths[:maxRestoreFiles]
	}

	var restored []session.Message
	total := 0
	for _, path := range paths {
		resolved, err := tools.ResolveWorkspacePath(cm.Workspace, path)
		if err != nil {
			continue
		}
		data, err := os.ReadFile(resolved)
		if err != nil {
			continue
		}
		content := string(data)
		t := EstimateTokens(content)
		if t > maxRestoreTokens {
			continue
		}
		if total+t > maxRestoreTotal {
			break
		}
		restored = append(restored, session.User(fmt.Sprintf("[Restored after compact] %s:\n%s", path, content)))
		total += t
	}
	return restored
}

// messagesToText flattens the history for the summarizer with bounded
// per-message previews.
func messagesToText(messages []session.Message) string {
	var lines []string
	for _, msg := range messages {
		switch msg.Role {
		case "tool":
			label := msg.Name
			if label == "" {
				label = msg.ToolCallID
			}
			lines = append(lines, fmt.Sprintf("[tool:%s] %s", label, truncate(msg.Content, 500)))
		default:
			lines = append(lines, fmt.Sprintf("[%s] %s", msg.Role, truncate(msg.Content, 500)))
		}
	}
	return strings.Join(lines, "\n")
}

func truncate(text string, max int) string {
	if len(text) > max {
		return text[:max]
	}
	return text
}
