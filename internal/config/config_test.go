package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"MEETING_ROUTER_CONFIG", "MEETING_ROUTER_SENTIMENT_THRESHOLD", "MEETING_ROUTER_TASK_BACKEND",
		"MEETING_ROUTER_WATCH_DIR", "MEETING_ROUTER_SENTIMENT_BACKEND", "MEETING_ROUTER_SENTIMENT_URL",
		"MEETING_ROUTER_CALL_TIMEOUT", "MEETING_ROUTER_LISTEN_ADDR", "MEETING_ROUTER_LOG_LEVEL", "PORT",
		"JIRA_URL", "JIRA_API_TOKEN", "SLACK_BOT_TOKEN",
	} {
		t.Setenv(k, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load("", nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultThreshold, cfg.Threshold)
	assert.Equal(t, BackendMarkdown, cfg.TaskBackend)
	assert.Equal(t, 30*time.Second, cfg.CallTimeout)
	assert.Equal(t, 3, cfg.RetryAttempts)
	assert.Equal(t, SentimentLexicon, cfg.Sentiment.Backend)
	assert.False(t, cfg.SkipHypothetical)
}

func TestLoad_FileThenEnv(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "router.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
watch_directory: /srv/transcripts
sentiment_threshold: 0.4
task_backend: Jira
call_timeout: 10s
jira:
  url: https://example.atlassian.net
  api_token: secret
  project_key: OPS
`), 0o644))
	t.Setenv("MEETING_ROUTER_SENTIMENT_THRESHOLD", "0.25")

	cfg, err := Load(path, nil)
	require.NoError(t, err)
	assert.Equal(t, "/srv/transcripts", cfg.WatchDir)
	assert.Equal(t, 0.25, cfg.Threshold)
	assert.Equal(t, BackendJira, cfg.TaskBackend)
	assert.Equal(t, 10*time.Second, cfg.CallTimeout)
	assert.Equal(t, "OPS", cfg.Jira.ProjectKey)
	assert.True(t, cfg.JiraReady())
}

func TestLoad_Fallbacks(t *testing.T) {
	clearEnv(t)
	t.Setenv("MEETING_ROUTER_SENTIMENT_THRESHOLD", "1.7")
	t.Setenv("MEETING_ROUTER_TASK_BACKEND", "asana")

	cfg, err := Load("", nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultThreshold, cfg.Threshold)
	assert.Equal(t, BackendMarkdown, cfg.TaskBackend)
}

func TestLoad_InvalidEnvValueIsIgnored(t *testing.T) {
	clearEnv(t)
	t.Setenv("MEETING_ROUTER_SENTIMENT_THRESHOLD", "low")
	t.Setenv("MEETING_ROUTER_CALL_TIMEOUT", "soon")

	cfg, err := Load("", nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultThreshold, cfg.Threshold)
	assert.Equal(t, 30*time.Second, cfg.CallTimeout)
}

func TestLoad_PortEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "9090")

	cfg, err := Load("", nil)
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.ListenAddr)
}

func TestValidate_Errors(t *testing.T) {
	cfg := Default()
	cfg.Sentiment.Backend = SentimentHTTP
	err := cfg.Validate(nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Sentiment.URL")

	cfg = Default()
	cfg.RetryAttempts = 0
	require.Error(t, cfg.Validate(nil))

	cfg = Default()
	cfg.Sentiment = Sentiment{Backend: "HTTP", URL: "http://localhost:9000"}
	require.NoError(t, cfg.Validate(nil))
	assert.Equal(t, SentimentHTTP, cfg.Sentiment.Backend)
}

func TestLoad_MissingFile(t *testing.T) {
	clearEnv(t)
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"), nil)
	require.Error(t, err)
}
