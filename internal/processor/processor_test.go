package processor

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"meeting-router-go/internal/config"
	"meeting-router-go/internal/logger"
	"meeting-router-go/internal/notify"
	"meeting-router-go/internal/pipeline"
	"meeting-router-go/internal/report"
	"meeting-router-go/internal/sentiment"
	"meeting-router-go/internal/tasks"
	"meeting-router-go/internal/webapi"
)

const transcript = "Alice: I will finish the report by Friday.\n" +
	"Bob: We decided to use Postgres. I'll call the vendor."

func testConfig(t *testing.T) *config.Config {
	dir := t.TempDir()
	cfg := config.Default()
	cfg.MarkdownFile = filepath.Join(dir, "tasks.md")
	cfg.SummaryDir = filepath.Join(dir, "summaries")
	cfg.WatchDir = dir
	return cfg
}

func TestProcessText_MarkdownAndReport(t *testing.T) {
	cfg := testConfig(t)
	cfg.ReportDir = filepath.Join(t.TempDir(), "reports")

	p, err := New(cfg, logger.Discard(), nil)
	require.NoError(t, err)

	res := p.ProcessText(context.Background(), "meeting_transcript_3.txt", transcript)
	require.Equal(t, pipeline.Done, res.State)
	assert.Len(t, res.Result.DispatchOutcomes, 2)
	assert.Equal(t, 2, res.Insight.TotalCreated)
	assert.NotEmpty(t, res.FollowUp.Action)

	entries, err := tasks.ReadLedger(cfg.MarkdownFile)
	require.NoError(t, err)
	assert.Len(t, entries, 2)

	require.NotEmpty(t, res.ReportPath)
	rows, err := report.ReadActionItems(res.ReportPath)
	require.NoError(t, err)
	assert.Len(t, rows, 2)

	// no notification channel configured: the summary lands in the summary dir
	files, err := os.ReadDir(cfg.SummaryDir)
	require.NoError(t, err)
	assert.Len(t, files, 1)
	assert.True(t, res.Delivered)
}

func TestProcessFile_Missing(t *testing.T) {
	p, err := New(testConfig(t), logger.Discard(), nil)
	require.NoError(t, err)

	res := p.ProcessFile(context.Background(), filepath.Join(t.TempDir(), "missing.txt"))
	assert.Equal(t, pipeline.Failed, res.State)
	assert.Empty(t, res.ReportPath)
	assert.Empty(t, res.Summary)
}

func TestProcessURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(transcript))
	}))
	defer srv.Close()

	p, err := New(testConfig(t), logger.Discard(), nil)
	require.NoError(t, err)

	res, err := p.ProcessURL(context.Background(), srv.URL+"/meeting_transcript_4.txt")
	require.NoError(t, err)
	assert.Equal(t, pipeline.Done, res.State)
	assert.Len(t, res.Result.ActionItems, 2)
}

func TestBuildTaskSink(t *testing.T) {
	client := webapi.New(time.Second, 0, 0)
	log := logger.Discard()

	cfg := testConfig(t)
	cfg.TaskBackend = config.BackendJira
	sink, err := BuildTaskSink(cfg, client, log)
	require.NoError(t, err)
	assert.Equal(t, "markdown", sink.Name(), "missing jira credentials fall back to markdown")

	cfg.Jira.URL = "https://example.atlassian.net"
	cfg.Jira.APIToken = "t"
	sink, err = BuildTaskSink(cfg, client, log)
	require.NoError(t, err)
	assert.Equal(t, "jira", sink.Name())

	cfg.TaskBackend = config.BackendTrello
	sink, err = BuildTaskSink(cfg, client, log)
	require.NoError(t, err)
	assert.Equal(t, "markdown", sink.Name())

	cfg.Trello = config.Trello{APIKey: "k", APIToken: "t", ListID: "l"}
	sink, err = BuildTaskSink(cfg, client, log)
	require.NoError(t, err)
	assert.Equal(t, "trello", sink.Name())
}

func TestBuildNotifier(t *testing.T) {
	client := webapi.New(time.Second, 0, 0)
	log := logger.Discard()
	store := notify.NewFileStore(t.TempDir())

	tests := []struct {
		name string
		edit func(c *config.Config)
		want string
	}{
		{"default file", func(c *config.Config) {}, "file"},
		{"slack endpoint without token", func(c *config.Config) { c.NotificationEndpoint = "slack://C123" }, "file"},
		{"slack endpoint", func(c *config.Config) {
			c.NotificationEndpoint = "slack://C123"
			c.Slack.BotToken = "xoxb"
		}, "slack"},
		{"slack token only", func(c *config.Config) { c.Slack = config.Slack{BotToken: "xoxb", ChannelID: "C1"} }, "slack"},
		{"teams endpoint", func(c *config.Config) { c.NotificationEndpoint = "https://acme.webhook.office.com/x" }, "teams"},
		{"teams webhook", func(c *config.Config) { c.Teams.WebhookURL = "https://hooks.example/x" }, "teams"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			tt.edit(cfg)
			assert.Equal(t, tt.want, BuildNotifier(cfg, client, store, log).Name())
		})
	}
}

func TestBuildScorer(t *testing.T) {
	cfg := config.Default()
	_, ok := BuildScorer(cfg).(*sentiment.Lexicon)
	assert.True(t, ok)

	cfg.Sentiment = config.Sentiment{Backend: config.SentimentHTTP, URL: "http://localhost:9000"}
	hs, ok := BuildScorer(cfg).(*sentiment.HTTPScorer)
	require.True(t, ok)
	assert.Equal(t, "http://localhost:9000", hs.BaseURL)
}

func TestRetryPolicy(t *testing.T) {
	cfg := config.Default()
	p := RetryPolicy(cfg)
	assert.Equal(t, time.Second, p.InitialInterval)
	assert.Equal(t, 4*time.Second, p.MaxInterval)
	assert.Equal(t, 3, p.MaxAttempts)

	cfg.RetryInitial = 2 * time.Second
	assert.Equal(t, 4*time.Second, RetryPolicy(cfg).MaxInterval)

	cfg.RetryInitial = 5 * time.Second
	assert.Equal(t, 20*time.Second, RetryPolicy(cfg).MaxInterval)
}
