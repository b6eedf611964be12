// Package config loads router settings from an optional YAML file, a .env
// file and the environment, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"meeting-router-go/internal/logger"
)

const (
	DefaultThreshold = 0.3
	DefaultBackend   = BackendMarkdown

	BackendMarkdown = "markdown"
	BackendJira     = "jira"
	BackendTrello   = "trello"

	SentimentLexicon = "lexicon"
	SentimentHTTP    = "http"
)

var backends = []string{BackendMarkdown, BackendJira, BackendTrello}

type Jira struct {
	URL        string `yaml:"url" validate:"omitempty,url"`
	Email      string `yaml:"email"`
	APIToken   string `yaml:"api_token"`
	ProjectKey string `yaml:"project_key"`
	IssueType  string `yaml:"issue_type"`
}

type Trello struct {
	BaseURL  string `yaml:"base_url" validate:"omitempty,url"`
	APIKey   string `yaml:"api_key"`
	APIToken string `yaml:"api_token"`
	BoardID  string `yaml:"board_id"`
	ListID   string `yaml:"list_id"`
}

type Slack struct {
	BaseURL   string `yaml:"base_url" validate:"omitempty,url"`
	BotToken  string `yaml:"bot_token"`
	ChannelID string `yaml:"channel_id"`
}

type Teams struct {
	WebhookURL string `yaml:"webhook_url" validate:"omitempty,url"`
}

type Sentiment struct {
	Backend string `yaml:"backend" validate:"oneof=lexicon http"`
	URL     string `yaml:"url" validate:"required_if=Backend http,omitempty,url"`
}

type Config struct {
	WatchDir             string        `yaml:"watch_directory" validate:"required"`
	WatchConcurrency     int           `yaml:"watch_concurrency" validate:"gte=1,lte=64"`
	Threshold            float64       `yaml:"sentiment_threshold"`
	TaskBackend          string        `yaml:"task_backend"`
	NotificationEndpoint string        `yaml:"notification_endpoint"`
	MarkdownFile         string        `yaml:"markdown_output_file" validate:"required"`
	SummaryDir           string        `yaml:"summary_output_dir" validate:"required"`
	ReportDir            string        `yaml:"report_dir"`
	LogLevel             string        `yaml:"log_level" validate:"omitempty,oneof=debug info warn warning error"`
	ListenAddr           string        `yaml:"listen_addr" validate:"required"`
	CallTimeout          time.Duration `yaml:"call_timeout" validate:"gt=0"`
	RetryInitial         time.Duration `yaml:"retry_initial_interval" validate:"gt=0"`
	RetryAttempts        int           `yaml:"retry_max_attempts" validate:"gte=1,lte=10"`
	SkipHypothetical     bool          `yaml:"skip_hypothetical"`

	Sentiment Sentiment `yaml:"sentiment"`
	Jira      Jira      `yaml:"jira"`
	Trello    Trello    `yaml:"trello"`
	Slack     Slack     `yaml:"slack"`
	Teams     Teams     `yaml:"teams"`
}

func Default() *Config {
	return &Config{
		WatchDir:         "./transcripts",
		WatchConcurrency: 4,
		Threshold:        DefaultThreshold,
		TaskBackend:      DefaultBackend,
		MarkdownFile:     "./tasks.md",
		SummaryDir:       "./summaries",
		LogLevel:         "info",
		ListenAddr:       ":8080",
		CallTimeout:      30 * time.Second,
		RetryInitial:     time.Second,
		RetryAttempts:    3,
		Sentiment:        Sentiment{Backend: SentimentLexicon},
		Jira:             Jira{ProjectKey: "TEAM", IssueType: "Task"},
	}
}

// Load builds the configuration. path may be empty, in which case
// MEETING_ROUTER_CONFIG is consulted. A missing .env file is not an error.
func Load(path string, log *logrus.Entry) (*Config, error) {
	if log == nil {
		log = logger.Discard().Entry
	}
	log = log.WithField("component", "config")

	if err := godotenv.Load(); err != nil {
		log.Debug("no .env file loaded")
	}

	cfg := Default()
	if path == "" {
		path = os.Getenv("MEETING_ROUTER_CONFIG")
	}
	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
		log.WithField("path", path).Info("configuration file loaded")
	}

	cfg.loadEnv(log)
	if err := cfg.Validate(log); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open config: %w", err)
	}
	defer f.Close()
	if err := yaml.NewDecoder(f).Decode(c); err != nil {
		return fmt.Errorf("decode config %s: %w", path, err)
	}
	return nil
}

func (c *Config) loadEnv(log *logrus.Entry) {
	str := func(key string, dst *string) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			*dst = v
		}
	}
	parsed := func(key string, parse func(string) error) {
		v, ok := os.LookupEnv(key)
		if !ok || v == "" {
			return
		}
		if err := parse(v); err != nil {
			log.WithField("env", key).WithField("value", v).Warn("ignoring invalid environment value")
		}
	}

	str("MEETING_ROUTER_WATCH_DIR", &c.WatchDir)
	str("MEETING_ROUTER_TASK_BACKEND", &c.TaskBackend)
	str("MEETING_ROUTER_NOTIFICATION_ENDPOINT", &c.NotificationEndpoint)
	str("MEETING_ROUTER_MARKDOWN_FILE", &c.MarkdownFile)
	str("MEETING_ROUTER_SUMMARY_DIR", &c.SummaryDir)
	str("MEETING_ROUTER_REPORT_DIR", &c.ReportDir)
	str("MEETING_ROUTER_LOG_LEVEL", &c.LogLevel)
	str("MEETING_ROUTER_LISTEN_ADDR", &c.ListenAddr)
	str("MEETING_ROUTER_SENTIMENT_BACKEND", &c.Sentiment.Backend)
	str("MEETING_ROUTER_SENTIMENT_URL", &c.Sentiment.URL)
	if port := os.Getenv("PORT"); port != "" && os.Getenv("MEETING_ROUTER_LISTEN_ADDR") == "" {
		c.ListenAddr = ":" + port
	}

	parsed("MEETING_ROUTER_SENTIMENT_THRESHOLD", func(v string) (err error) {
		c.Threshold, err = parseFloat(v, c.Threshold)
		return err
	})
	parsed("MEETING_ROUTER_WATCH_CONCURRENCY", func(v string) (err error) {
		c.WatchConcurrency, err = parseInt(v, c.WatchConcurrency)
		return err
	})
	parsed("MEETING_ROUTER_RETRY_ATTEMPTS", func(v string) (err error) {
		c.RetryAttempts, err = parseInt(v, c.RetryAttempts)
		return err
	})
	parsed("MEETING_ROUTER_CALL_TIMEOUT", func(v string) (err error) {
		c.CallTimeout, err = parseDuration(v, c.CallTimeout)
		return err
	})
	parsed("MEETING_ROUTER_RETRY_INITIAL", func(v string) (err error) {
		c.RetryInitial, err = parseDuration(v, c.RetryInitial)
		return err
	})
	parsed("MEETING_ROUTER_SKIP_HYPOTHETICAL", func(v string) (err error) {
		b, err := strconv.ParseBool(v)
		if err == nil {
			c.SkipHypothetical = b
		}
		return err
	})

	str("JIRA_URL", &c.Jira.URL)
	str("JIRA_EMAIL", &c.Jira.Email)
	str("JIRA_API_TOKEN", &c.Jira.APIToken)
	str("JIRA_PROJECT_KEY", &c.Jira.ProjectKey)
	str("TRELLO_API_KEY", &c.Trello.APIKey)
	str("TRELLO_API_TOKEN", &c.Trello.APIToken)
	str("TRELLO_BOARD_ID", &c.Trello.BoardID)
	str("TRELLO_LIST_ID", &c.Trello.ListID)
	str("SLACK_BOT_TOKEN", &c.Slack.BotToken)
	str("SLACK_CHANNEL_ID", &c.Slack.ChannelID)
	str("TEAMS_WEBHOOK_URL", &c.Teams.WebhookURL)
}

// Validate repairs the threshold and task backend, falling back to their
// defaults with a warning, then checks every other field.
func (c *Config) Validate(log *logrus.Entry) error {
	if log == nil {
		log = logger.Discard().Entry
	}
	if c.Threshold < 0 || c.Threshold > 1 {
		log.WithField("threshold", c.Threshold).Warnf("sentiment threshold out of range [0, 1], using %.1f", DefaultThreshold)
		c.Threshold = DefaultThreshold
	}

	c.TaskBackend = strings.ToLower(strings.TrimSpace(c.TaskBackend))
	if !slices.Contains(backends, c.TaskBackend) {
		log.WithField("task_backend", c.TaskBackend).Warnf("unknown task backend, using %s", DefaultBackend)
		c.TaskBackend = DefaultBackend
	}
	switch {
	case c.TaskBackend == BackendJira && !c.JiraReady():
		log.Warn("jira backend selected but credentials not configured")
	case c.TaskBackend == BackendTrello && !c.TrelloReady():
		log.Warn("trello backend selected but credentials not configured")
	}

	c.LogLevel = strings.ToLower(c.LogLevel)
	c.Sentiment.Backend = strings.ToLower(c.Sentiment.Backend)

	if err := validator.New().Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("invalid configuration: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

func (c *Config) JiraReady() bool {
	return c.Jira.URL != "" && c.Jira.APIToken != ""
}

func (c *Config) TrelloReady() bool {
	return c.Trello.APIKey != "" && c.Trello.APIToken != "" && c.Trello.ListID != ""
}

func parseFloat(v string, def float64) (float64, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		return def, err
	}
	return f, nil
}

func parseInt(v string, def int) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return def, err
	}
	return n, nil
}

func parseDuration(v string, def time.Duration) (time.Duration, error) {
	d, err := time.ParseDuration(strings.TrimSpace(v))
	if err != nil {
		return def, err
	}
	return d, nil
}
