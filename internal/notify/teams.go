package notify

import (
	"context"
	"net/http"

	"meeting-router-go/internal/webapi"
)

// Teams posts summaries to an incoming webhook as an adaptive card.
type Teams struct {
	webhookURL string
	client     *webapi.Client
}

func NewTeams(webhookURL string, client *webapi.Client) *Teams {
	return &Teams{webhookURL: webhookURL, client: client}
}

func (t *Teams) Name() string { return "teams" }

type teamsMessage struct {
	Type        string            `json:"type"`
	Attachments []teamsAttachment `json:"attachments"`
}

type teamsAttachment struct {
	ContentType string    `json:"contentType"`
	Content     teamsCard `json:"content"`
}

type teamsCard struct {
	Schema  string           `json:"$schema"`
	Type    string           `json:"type"`
	Version string           `json:"version"`
	Body    []teamsTextBlock `json:"body"`
}

type teamsTextBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
	Wrap bool   `json:"wrap"`
}

func (t *Teams) Post(ctx context.Context, markdown string) error {
	msg := teamsMessage{
		Type: "message",
		Attachments: []teamsAttachment{{
			ContentType: "application/vnd.microsoft.card.adaptive",
			Content: teamsCard{
				Schema:  "http://adaptivecards.io/schemas/adaptive-card.json",
				Type:    "AdaptiveCard",
				Version: "1.2",
				Body:    []teamsTextBlock{{Type: "TextBlock", Text: markdown, Wrap: true}},
			},
		}},
	}
	if err := t.client.DoJSON(ctx, http.MethodPost, t.webhookURL, nil, msg, nil); err != nil {
		return notificationError(t.Name(), err)
	}
	return nil
}
