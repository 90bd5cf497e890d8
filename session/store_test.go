package session

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readEvents(t *testing.T, path string) []map[string]interface{} {
	t.Helper()
	file, err := os.Open(path)
	require.NoError(t, err)
	defer file.Close()

	var events []map[string]interface{}
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		var event map[string]interface{}
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &event))
		events = append(events, event)
	}
	require.NoError(t, scanner.Err())
	return events
}

func TestStoreWritesMetaAndEvents(t *testing.T) {
	dir := t.TempDir()

	store, err := NewStore(true, "gpt-test", dir, map[string]interface{}{"stream": false})
	require.NoError(t, err)
	require.NotEmpty(t, store.Path())
	assert.True(t, strings.HasPrefix(filepath.Base(store.Path()), "gpt-test_"))
	assert.True(t, strings.HasSuffix(store.Path(), ".jsonl"))

	store.RecordAssistant("main", "hello", "", []ToolCall{{ID: "c1", Name: "bash", Arguments: "{}"}}, map[string]interface{}{"stream": false})
	store.RecordTool("main", "bash", map[string]interface{}{"command": "ls"}, map[string]interface{}{"returncode": 0})

	events := readEvents(t, store.Path())
	require.Len(t, events, 3)
	assert.Equal(t, "meta", events[0]["event"])
	assert.Equal(t, "gpt-test", events[0]["model"])
	assert.Equal(t, "assistant", events[1]["event"])
	assert.Equal(t, "hello", events[1]["content"])
	assert.Equal(t, "tool", events[2]["event"])
	assert.Equal(t, "bash", events[2]["tool_name"])
}

func TestStoreSanitizesModelName(t *testing.T) {
	dir := t.TempDir()

	store, err := NewStore(true, "openai/gpt-4o:latest", dir, nil)
	require.NoError(t, err)
	base := filepath.Base(store.Path())
	assert.True(t, strings.HasPrefix(base, "openai_gpt-4o_latest_"))
}

func TestStoreDisabledIsNoOp(t *testing.T) {
	store, err := NewStore(false, "model", "/nonexistent/dir", nil)
	require.NoError(t, err)
	assert.Empty(t, store.Path())

	// records on a disabled store must not panic or create files
	store.RecordAssistant("main", "hi", "", nil, nil)
	store.RecordTool("main", "bash", nil, nil)
}

func TestStoreUniquePathsSameSecond(t *testing.T) {
	dir := t.TempDir()

	first, err := NewStore(true, "m", dir, nil)
	require.NoError(t, err)
	second, err := NewStore(true, "m", dir, nil)
	require.NoError(t, err)
	assert.NotEqual(t, first.Path(), second.Path())
}
