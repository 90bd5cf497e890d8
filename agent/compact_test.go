package agent

import (
	"bufio"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/t0mczak/orbit/llm"
	"github.com/t0mczak/orbit/session"
)

func newTestContextManager(t *testing.T, summarizer llm.Client) *ContextManager {
	t.Helper()
	workspace := t.TempDir()
	return NewContextManager(
		workspace, filepath.Join(workspace, "transcripts"),
		200000, 16384,
		summarizer, "test-model", zerolog.Nop(),
	)
}

func bashResult(id, content string) session.Message {
	return session.ToolResult(id, "bash", content)
}

func TestAutoCompactThresholdFormula(t *testing.T) {
	assert.Equal(t, 170616, AutoCompactThreshold(200000, 16384))
	// output reserve is capped at 20000
	assert.Equal(t, 167000, AutoCompactThreshold(200000, 30000))
}

func TestMicroCompactKeepsRecentResults(t *testing.T) {
	cm := newTestContextManager(t, nil)

	big := strings.Repeat("x", 20000) // ~5000 tokens per result
	var messages []session.Message
	for i := 0; i < 10; i++ {
		messages = append(messages, bashResult("c", big))
	}

	out := cm.MicroCompact(messages)

	for i := 0; i < 7; i++ {
		assert.Equal(t, "[Old tool result content cleared]", out[i].Content, "old result %d", i)
		assert.Equal(t, "bash", out[i].Name, "call linkage survives")
	}
	for i := 7; i < 10; i++ {
		assert.Equal(t, big, out[i].Content, "recent result %d stays intact", i)
	}
}

func TestMicroCompactSavingsFloorIsNoOp(t *testing.T) {
	cm := newTestContextManager(t, nil)

	// each old result clears ~1500 tokens; two old results stay below the
	// 20000-token savings floor
	content := strings.Repeat("x", 6000)
	messages := []session.Message{
		bashResult("a", content),
		bashResult("b", content),
		bashResult("c", content),
		bashResult("d", content),
		bashResult("e", content),
	}

	out := cm.MicroCompact(messages)
	for i := range out {
		assert.Equal(t, content, out[i].Content)
	}
}

func TestMicroCompactIgnoresSmallAndForeignResults(t *testing.T) {
	cm := newTestContextManager(t, nil)

	big := strings.Repeat("x", 90000)
	small := "tiny"
	messages := []session.Message{
		session.ToolResult("t1", "task", big), // not a compactable tool
		bashResult("t2", small),               // below the per-result floor
		bashResult("t3", big),
		bashResult("t4", big),
		bashResult("t5", big),
		bashResult("t6", big),
		bashResult("t7", big),
	}

	out := cm.MicroCompact(messages)
	assert.Equal(t, big, out[0].Content)
	assert.Equal(t, small, out[1].Content)
	assert.Equal(t, "[Old tool result content cleared]", out[2].Content)
	// most recent three compactable results survive
	assert.Equal(t, big, out[4].Content)
	assert.Equal(t, big, out[5].Content)
	assert.Equal(t, big, out[6].Content)
}

func TestMicroCompactResolvesNameFromCallID(t *testing.T) {
	cm := newTestContextManager(t, nil)

	big := strings.Repeat("x", 90000)
	messages := []session.Message{
		{Role: "assistant", ToolCalls: []session.ToolCall{
			{ID: "c0", Name: "read_file"},
		}},
	}
	// tool message without its Name field set
	messages = append(messages, session.Message{Role: "tool", ToolCallID: "c0", Content: big})
	for i := 0; i < 3; i++ {
		messages = append(messages, bashResult("c", big))
	}

	out := cm.MicroCompact(messages)
	assert.Equal(t, "[Old tool result content cleared]", out[1].Content)
}

func TestShouldCompact(t *testing.T) {
	cm := newTestContextManager(t, nil)

	small := []session.Message{session.User("hello")}
	assert.False(t, cm.ShouldCompact(small))

	// four messages around 90000 estimated tokens each
	big := strings.Repeat("x", 360000)
	large := []session.Message{
		session.User(big),
		session.Assistant(big),
		session.User(big),
		session.Assistant(big),
	}
	assert.True(t, cm.ShouldCompact(large))
}

func TestAutoCompactReplacesHistory(t *testing.T) {
	summarizer := llm.Script(llm.TextResult("Did things. State is good."))
	cm := newTestContextManager(t, summarizer)

	readPath := filepath.Join(cm.Workspace, "notes.txt")
	require.NoError(t, os.WriteFile(readPath, []byte("remember this"), 0o644))

	history := []session.Message{
		session.User("start"),
		{Role: "assistant", ToolCalls: []session.ToolCall{
			{ID: "c1", Name: "read_file", Arguments: `{"file_path": "notes.txt"}`},
		}},
		session.ToolResult("c1", "read_file", "remember this"),
		session.Assistant("done reading"),
	}

	out, err := cm.AutoCompact(context.Background(), history)
	require.NoError(t, err)

	require.Len(t, out, 4)
	assert.Equal(t, "user", out[0].Role)
	assert.True(t, strings.HasPrefix(out[0].Content, "[Conversation compressed]\n\n"))
	assert.Contains(t, out[0].Content, "Did things.")
	assert.Equal(t, "Understood. I have the context from the compressed conversation. Continuing work.", out[1].Content)
	assert.Contains(t, out[2].Content, "[Restored after compact] notes.txt:")
	assert.Contains(t, out[2].Content, "remember this")
	assert.Equal(t, "Noted, file content restored.", out[3].Content)

	// summarizer saw the flattened conversation
	require.Len(t, summarizer.Requests, 1)
	assert.Contains(t, summarizer.Requests[0].Messages[1].Content, "Summarize this conversation chronologically")
}

func TestAutoCompactArchivesBeforeReplacing(t *testing.T) {
	cm := newTestContextManager(t, llm.Script(llm.TextResult("summary")))

	history := []session.Message{
		session.User("one"),
		session.Assistant("two"),
	}
	_, err := cm.AutoCompact(context.Background(), history)
	require.NoError(t, err)

	path := filepath.Join(cm.TranscriptsDir, "transcript.jsonl")
	file, err := os.Open(path)
	require.NoError(t, err)
	defer file.Close()

	lines := 0
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		lines++
	}
	assert.Equal(t, len(history), lines)
}

func TestAutoCompactSummarizerFailure(t *testing.T) {
	cm := newTestContextManager(t, &llm.ScriptedClient{Errors: []error{errors.New("backend down")}})

	_, err := cm.AutoCompact(context.Background(), []session.Message{session.User("hi")})
	require.Error(t, err)

	// the archive still happened before the failure
	_, statErr := os.Stat(filepath.Join(cm.TranscriptsDir, "transcript.jsonl"))
	assert.NoError(t, statErr)
}

func TestRestoreRecentFilesSkipsOversized(t *testing.T) {
	cm := newTestContextManager(t, llm.Script(llm.TextResult("summary")))

	huge := strings.Repeat("x", 24000) // ~6000 tokens, above the per-file cap
	require.NoError(t, os.WriteFile(filepath.Join(cm.Workspace, "huge.txt"), []byte(huge), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(cm.Workspace, "ok.txt"), []byte("fine"), 0o644))

	history := []session.Message{
		{Role: "assistant", ToolCalls: []session.ToolCall{
			{ID: "c1", Name: "read_file", Arguments: `{"file_path": "huge.txt"}`},
			{ID: "c2", Name: "read_file", Arguments: `{"file_path": "ok.txt"}`},
		}},
	}

	out, err := cm.AutoCompact(context.Background(), history)
	require.NoError(t, err)

	joined := ""
	for _, msg := range out {
		joined += msg.Content + "\n"
	}
	assert.Contains(t, joined, "ok.txt")
	assert.NotContains(t, joined, "huge.txt")
}

func TestHandleLargeOutputPassThrough(t *testing.T) {
	cm := newTestContextManager(t, nil)

	output := strings.Repeat("a", 1000)
	assert.Equal(t, output, cm.HandleLargeOutput(output))
}

func TestHandleLargeOutputOffloads(t *testing.T) {
	cm := newTestContextManager(t, nil)

	output := strings.Repeat("ab", 100000) // ~50000 tokens
	result := cm.HandleLargeOutput(output)

	assert.Contains(t, result, "Output too large")
	assert.Contains(t, result, "Saved to: ")
	assert.Contains(t, result, "Preview:\n"+output[:2000]+"...")

	// the saved file holds the output byte-exact
	start := strings.Index(result, "Saved to: ") + len("Saved to: ")
	end := strings.Index(result[start:], "\n")
	path := result[start : start+end]
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, output, string(data))
}
