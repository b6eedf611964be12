// Package notify delivers meeting summaries to chat channels and keeps the
// local fallback copy when delivery fails.
package notify

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"

	mrerrors "meeting-router-go/internal/errors"
	"meeting-router-go/internal/webapi"
)

const DefaultSlackURL = "https://slack.com"

type SlackConfig struct {
	BaseURL  string
	BotToken string
	Channel  string
}

// Slack posts summaries with chat.postMessage.
type Slack struct {
	cfg    SlackConfig
	client *webapi.Client
}

func NewSlack(cfg SlackConfig, client *webapi.Client) *Slack {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultSlackURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Slack{cfg: cfg, client: client}
}

func (s *Slack) Name() string { return "slack" }

type slackMessage struct {
	Channel string `json:"channel"`
	Text    string `json:"text"`
	Mrkdwn  bool   `json:"mrkdwn"`
}

type slackResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

func (s *Slack) Post(ctx context.Context, markdown string) error {
	h := http.Header{}
	h.Set("Authorization", "Bearer "+s.cfg.BotToken)
	h.Set("Content-Type", "application/json; charset=utf-8")

	var out slackResponse
	msg := slackMessage{Channel: s.cfg.Channel, Text: ToMrkdwn(markdown), Mrkdwn: true}
	if err := s.client.DoJSON(ctx, http.MethodPost, s.cfg.BaseURL+"/api/chat.postMessage", h, msg, &out); err != nil {
		return notificationError(s.Name(), err)
	}
	if !out.OK {
		return &mrerrors.NotificationError{
			Kind:    slackErrorKind(out.Error),
			Channel: s.Name(),
			Cause:   fmt.Errorf("slack api error: %s", out.Error),
		}
	}
	return nil
}

func slackErrorKind(code string) mrerrors.Kind {
	switch code {
	case "ratelimited", "rate_limited":
		return mrerrors.KindRateLimit
	case "invalid_auth", "not_authed", "token_revoked", "token_expired", "account_inactive", "missing_scope":
		return mrerrors.KindAuth
	case "service_unavailable", "request_timeout", "fatal_error", "internal_error":
		return mrerrors.KindNetwork
	default:
		return mrerrors.KindUnknown
	}
}

var (
	mdHeading = regexp.MustCompile(`(?m)^#{1,6}\s+(.+?)\s*$`)
	mdBold    = regexp.MustCompile(`\*\*(.+?)\*\*`)
	mdLink    = regexp.MustCompile(`\[([^\]]+)\]\(([^)\s]+)\)`)
)

// ToMrkdwn converts the markdown used in summaries to Slack mrkdwn.
func ToMrkdwn(md string) string {
	out := mdBold.ReplaceAllString(md, "*$1*")
	out = mdHeading.ReplaceAllString(out, "*$1*")
	return mdLink.ReplaceAllString(out, "<$2|$1>")
}

// notificationError classifies a channel failure into a NotificationError.
func notificationError(channel string, err error) error {
	var se *webapi.StatusError
	if errors.As(err, &se) {
		return &mrerrors.NotificationError{Kind: mrerrors.KindFromStatus(se.Status), Channel: channel, Cause: err}
	}
	return &mrerrors.NotificationError{Kind: mrerrors.KindOf(err), Channel: channel, Cause: err}
}
