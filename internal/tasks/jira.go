package tasks

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"

	mrerrors "meeting-router-go/internal/errors"
	"meeting-router-go/internal/types"
	"meeting-router-go/internal/webapi"
)

const jiraSummaryLimit = 255

type JiraConfig struct {
	BaseURL    string
	Email      string // optional; with Email set the token is sent as basic auth
	APIToken   string
	ProjectKey string
	IssueType  string
}

// Jira creates one issue per action item via the REST v2 API.
type Jira struct {
	cfg    JiraConfig
	client *webapi.Client
}

func NewJira(cfg JiraConfig, client *webapi.Client) *Jira {
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.IssueType == "" {
		cfg.IssueType = "Task"
	}
	return &Jira{cfg: cfg, client: client}
}

func (j *Jira) Name() string { return "jira" }

type jiraIssue struct {
	Fields jiraFields `json:"fields"`
}

type jiraFields struct {
	Project     jiraKey  `json:"project"`
	Summary     string   `json:"summary"`
	Description string   `json:"description"`
	IssueType   jiraName `json:"issuetype"`
}

type jiraKey struct {
	Key string `json:"key"`
}

type jiraName struct {
	Name string `json:"name"`
}

type jiraCreated struct {
	ID  string `json:"id"`
	Key string `json:"key"`
}

func (j *Jira) CreateTask(ctx context.Context, item types.ActionItem) (types.TaskRef, error) {
	body := jiraIssue{Fields: jiraFields{
		Project:     jiraKey{Key: j.cfg.ProjectKey},
		Summary:     capRunes(oneLine(item.Description), jiraSummaryLimit),
		Description: fmt.Sprintf("Context: %s\n\nOwner: %s", item.ContextQuote, item.Owner),
		IssueType:   jiraName{Name: j.cfg.IssueType},
	}}

	h := http.Header{}
	if j.cfg.Email != "" {
		h.Set("Authorization", "Basic "+base64.StdEncoding.EncodeToString([]byte(j.cfg.Email+":"+j.cfg.APIToken)))
	} else {
		h.Set("Authorization", "Bearer "+j.cfg.APIToken)
	}

	var out jiraCreated
	if err := j.client.DoJSON(ctx, http.MethodPost, j.cfg.BaseURL+"/rest/api/2/issue", h, body, &out); err != nil {
		return types.TaskRef{}, dispatchError(j.Name(), err)
	}
	if out.Key == "" {
		return types.TaskRef{}, &mrerrors.DispatchError{Kind: mrerrors.KindUnknown, Backend: j.Name(), Cause: errors.New("response has no issue key")}
	}

	return types.TaskRef{
		ID:    out.Key,
		URL:   j.cfg.BaseURL + "/browse/" + out.Key,
		Title: item.Description,
	}, nil
}

// dispatchError classifies a backend failure into a DispatchError.
func dispatchError(backend string, err error) error {
	var se *webapi.StatusError
	if errors.As(err, &se) {
		return &mrerrors.DispatchError{Kind: mrerrors.KindFromStatus(se.Status), Backend: backend, Status: se.Status, Cause: err}
	}
	return &mrerrors.DispatchError{Kind: mrerrors.KindOf(err), Backend: backend, Cause: err}
}

func capRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
