package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"meeting-router-go/internal/tasks"
	"meeting-router-go/internal/types"
)

func run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	cmd := newRootCommand()
	cmd.SetArgs(args)
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func setupEnv(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("MEETING_ROUTER_CONFIG", "")
	t.Setenv("MEETING_ROUTER_MARKDOWN_FILE", filepath.Join(dir, "tasks.md"))
	t.Setenv("MEETING_ROUTER_SUMMARY_DIR", filepath.Join(dir, "summaries"))
	t.Setenv("MEETING_ROUTER_TASK_BACKEND", "markdown")
	t.Setenv("MEETING_ROUTER_NOTIFICATION_ENDPOINT", "")
	t.Setenv("SLACK_BOT_TOKEN", "")
	t.Setenv("TEAMS_WEBHOOK_URL", "")
	return dir
}

func TestProcessAndLedger(t *testing.T) {
	dir := setupEnv(t)
	path := filepath.Join(dir, "meeting_transcript_1.txt")
	require.NoError(t, os.WriteFile(path, []byte("Alice: I will finish the report.\nBob: I'll call the vendor."), 0o644))

	stdout, stderr, err := run(t, "process", path)
	require.NoError(t, err)
	assert.Contains(t, stdout, "# Meeting Summary - ")
	assert.Contains(t, stderr, "Done")

	stdout, _, err = run(t, "ledger", "-o", "json")
	require.NoError(t, err)
	var entries []tasks.LedgerEntry
	require.NoError(t, json.Unmarshal([]byte(stdout), &entries))
	require.Len(t, entries, 2)
	assert.Equal(t, "Alice", entries[0].Owner)

	stdout, _, err = run(t, "ledger", "--owner", "Bob", filepath.Join(dir, "tasks.md"))
	require.NoError(t, err)
	assert.Contains(t, stdout, "call the vendor.")
	assert.NotContains(t, stdout, "finish the report.")
}

func TestProcess_MissingFile(t *testing.T) {
	dir := setupEnv(t)
	_, _, err := run(t, "process", filepath.Join(dir, "nope.txt"))
	require.Error(t, err)
}

func TestProcess_RequiresArg(t *testing.T) {
	setupEnv(t)
	_, _, err := run(t, "process")
	require.Error(t, err)
}

func TestLedger_UnknownOutput(t *testing.T) {
	dir := setupEnv(t)
	ledger, err := tasks.NewMarkdownLedger(filepath.Join(dir, "tasks.md"))
	require.NoError(t, err)
	_, err = ledger.CreateTask(context.Background(), types.ActionItem{Owner: "Alice", Description: "ship it."})
	require.NoError(t, err)

	_, _, err = run(t, "ledger", "-o", "xml")
	require.Error(t, err)
}
