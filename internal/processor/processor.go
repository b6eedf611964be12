package processor

import (
	"context"
	"path/filepath"
	"strings"
	"time"

	"meeting-router-go/internal/actionable"
	"meeting-router-go/internal/aggregator"
	"meeting-router-go/internal/config"
	"meeting-router-go/internal/extractor"
	"meeting-router-go/internal/logger"
	"meeting-router-go/internal/metrics"
	"meeting-router-go/internal/notify"
	"meeting-router-go/internal/pipeline"
	"meeting-router-go/internal/report"
	"meeting-router-go/internal/retry"
	"meeting-router-go/internal/sentiment"
	"meeting-router-go/internal/tasks"
	"meeting-router-go/internal/transcription"
	"meeting-router-go/internal/webapi"
)

// Outbound calls to task and chat services share one limiter per process.
const (
	requestsPerSecond = 5
	requestBurst      = 5
)

// Result is returned by the process command and the /process endpoint.
type Result struct {
	*pipeline.Report `yaml:",inline"`

	Insight    aggregator.Insight  `json:"insight"`
	FollowUp   actionable.FollowUp `json:"follow_up"`
	ReportPath string              `json:"report_path,omitempty"`
	DurationMs int64               `json:"duration_ms"`
}

type Processor struct {
	log      *logger.Logger
	pipeline *pipeline.Pipeline
	reports  *report.Writer
	retry    retry.Policy
}

// New wires sinks, scorer and pipeline from cfg. Jira and Trello fall back
// to the markdown ledger when their credentials are missing.
func New(cfg *config.Config, log *logger.Logger, m *metrics.Collector) (*Processor, error) {
	if log == nil {
		log = logger.New()
	}
	client := webapi.New(cfg.CallTimeout, requestsPerSecond, requestBurst)

	sink, err := BuildTaskSink(cfg, client, log)
	if err != nil {
		return nil, err
	}
	store := notify.NewFileStore(cfg.SummaryDir)

	pcfg := pipeline.DefaultConfig()
	pcfg.Threshold = cfg.Threshold
	pcfg.ScoreTimeout = cfg.CallTimeout
	pcfg.Extract = extractor.Options{SkipHypothetical: cfg.SkipHypothetical}
	pcfg.Retry = RetryPolicy(cfg)

	pl := pipeline.New(pcfg, pipeline.Deps{
		Scorer:   BuildScorer(cfg),
		Tasks:    sink,
		Notifier: BuildNotifier(cfg, client, store, log),
		Fallback: store,
		Metrics:  m,
		Logger:   log,
	})

	p := &Processor{log: log, pipeline: pl, retry: pcfg.Retry}
	if cfg.ReportDir != "" {
		p.reports = report.NewWriter(cfg.ReportDir)
	}
	return p, nil
}

func RetryPolicy(cfg *config.Config) retry.Policy {
	p := retry.DefaultPolicy()
	p.InitialInterval = cfg.RetryInitial
	p.MaxAttempts = cfg.RetryAttempts
	p.CallTimeout = cfg.CallTimeout
	if p.MaxInterval < p.InitialInterval {
		p.MaxInterval = 4 * p.InitialInterval
	}
	return p
}

func BuildTaskSink(cfg *config.Config, client *webapi.Client, log *logger.Logger) (pipeline.TaskSink, error) {
	l := log.WithField("component", "processor").WithField("task_backend", cfg.TaskBackend)
	switch cfg.TaskBackend {
	case config.BackendJira:
		if cfg.JiraReady() {
			return tasks.NewJira(tasks.JiraConfig{
				BaseURL:    cfg.Jira.URL,
				Email:      cfg.Jira.Email,
				APIToken:   cfg.Jira.APIToken,
				ProjectKey: cfg.Jira.ProjectKey,
				IssueType:  cfg.Jira.IssueType,
			}, client), nil
		}
		l.Error("jira backend selected but credentials missing, falling back to markdown")
	case config.BackendTrello:
		if cfg.TrelloReady() {
			return tasks.NewTrello(tasks.TrelloConfig{
				BaseURL: cfg.Trello.BaseURL,
				APIKey:  cfg.Trello.APIKey,
				Token:   cfg.Trello.APIToken,
				ListID:  cfg.Trello.ListID,
			}, client), nil
		}
		l.Error("trello backend selected but credentials missing, falling back to markdown")
	}
	return tasks.NewMarkdownLedger(cfg.MarkdownFile)
}

// BuildNotifier picks the summary channel. A slack://<channel> endpoint or a
// bot token selects Slack; a Teams webhook selects Teams; otherwise the file
// store receives summaries directly.
func BuildNotifier(cfg *config.Config, client *webapi.Client, store *notify.FileStore, log *logger.Logger) pipeline.NotificationSink {
	l := log.WithField("component", "processor")
	endpoint := cfg.NotificationEndpoint

	if strings.HasPrefix(endpoint, "slack://") || cfg.Slack.BotToken != "" {
		if cfg.Slack.BotToken == "" {
			l.Error("slack endpoint specified but token missing, falling back to file")
			return store
		}
		channel := cfg.Slack.ChannelID
		if strings.HasPrefix(endpoint, "slack://") {
			channel = strings.TrimPrefix(endpoint, "slack://")
		}
		return notify.NewSlack(notify.SlackConfig{BaseURL: cfg.Slack.BaseURL, BotToken: cfg.Slack.BotToken, Channel: channel}, client)
	}
	if strings.HasPrefix(endpoint, "https://") && strings.Contains(endpoint, "webhook.office.com") {
		return notify.NewTeams(endpoint, client)
	}
	if cfg.Teams.WebhookURL != "" {
		return notify.NewTeams(cfg.Teams.WebhookURL, client)
	}
	return store
}

func BuildScorer(cfg *config.Config) sentiment.Scorer {
	if cfg.Sentiment.Backend == config.SentimentHTTP {
		return sentiment.NewHTTPScorer(cfg.Sentiment.URL, cfg.CallTimeout)
	}
	return sentiment.NewLexicon()
}

func (p *Processor) Pipeline() *pipeline.Pipeline { return p.pipeline }

func (p *Processor) ProcessFile(ctx context.Context, path string) *Result {
	start := time.Now()
	return p.finish(p.pipeline.RunFile(ctx, path), start)
}

func (p *Processor) ProcessText(ctx context.Context, source, text string) *Result {
	start := time.Now()
	return p.finish(p.pipeline.Run(ctx, source, text), start)
}

// ProcessURL downloads a transcript and processes it. Only download
// failures are returned as errors.
func (p *Processor) ProcessURL(ctx context.Context, url string) (*Result, error) {
	start := time.Now()
	text, err := transcription.Fetch(ctx, url, p.retry)
	if err != nil {
		return nil, err
	}
	return p.finish(p.pipeline.Run(ctx, url, text), start), nil
}

func (p *Processor) finish(rep *pipeline.Report, start time.Time) *Result {
	res := &Result{Report: rep}
	res.Insight = aggregator.Aggregate(rep.Result)
	res.FollowUp = actionable.Generate(res.Insight)

	if p.reports != nil && rep.State == pipeline.Done {
		name := strings.TrimSuffix(filepath.Base(rep.Source), filepath.Ext(rep.Source))
		if name == "" || strings.ContainsAny(name, ":?&=") {
			name = rep.RunID[:8]
		}
		path, err := p.reports.Write(name, rep.Result, res.Insight)
		if err != nil {
			p.log.WithRun(rep.RunID, rep.Source).WithError(err).Warn("xlsx report not written")
		} else {
			res.ReportPath = path
		}
	}
	res.DurationMs = time.Since(start).Milliseconds()
	return res
}
