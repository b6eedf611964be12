package tasks

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	mrerrors "meeting-router-go/internal/errors"
	"meeting-router-go/internal/types"
	"meeting-router-go/internal/webapi"
)

const DefaultTrelloURL = "https://api.trello.com"

type TrelloConfig struct {
	BaseURL string
	APIKey  string
	Token   string
	ListID  string
}

// Trello creates one card per action item on a fixed list.
type Trello struct {
	cfg    TrelloConfig
	client *webapi.Client
}

func NewTrello(cfg TrelloConfig, client *webapi.Client) *Trello {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultTrelloURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Trello{cfg: cfg, client: client}
}

func (t *Trello) Name() string { return "trello" }

type trelloCard struct {
	ID       string `json:"id"`
	URL      string `json:"url"`
	ShortURL string `json:"shortUrl"`
}

func (t *Trello) CreateTask(ctx context.Context, item types.ActionItem) (types.TaskRef, error) {
	q := url.Values{}
	q.Set("key", t.cfg.APIKey)
	q.Set("token", t.cfg.Token)
	q.Set("idList", t.cfg.ListID)
	q.Set("name", oneLine(item.Description))
	q.Set("desc", fmt.Sprintf("Context: %s\n\nOwner: %s", item.ContextQuote, item.Owner))

	var card trelloCard
	if err := t.client.DoJSON(ctx, http.MethodPost, t.cfg.BaseURL+"/1/cards?"+q.Encode(), nil, nil, &card); err != nil {
		return types.TaskRef{}, dispatchError(t.Name(), err)
	}
	if card.ID == "" {
		return types.TaskRef{}, &mrerrors.DispatchError{Kind: mrerrors.KindUnknown, Backend: t.Name(), Cause: errors.New("response has no card id")}
	}

	link := card.ShortURL
	if link == "" {
		link = card.URL
	}
	return types.TaskRef{ID: card.ID, URL: link, Title: item.Description}, nil
}
