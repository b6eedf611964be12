package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	mrerrors "meeting-router-go/internal/errors"
	"meeting-router-go/internal/types"
	"meeting-router-go/internal/webapi"
)

var sampleItem = types.ActionItem{
	Owner:        "Alice",
	Description:  "finish the report by Friday.",
	ContextQuote: "I will finish the report by Friday.",
}

func TestMarkdownLedger_CreateAndRead(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "tasks.md")
	m, err := NewMarkdownLedger(path)
	require.NoError(t, err)
	m.now = func() time.Time { return time.Date(2025, 3, 4, 10, 11, 12, 0, time.Local) }

	ref, err := m.CreateTask(context.Background(), sampleItem)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(ref.ID, "task-"))
	assert.Equal(t, "file://"+filepath.ToSlash(m.Path())+"#"+ref.ID, ref.URL)
	assert.Equal(t, sampleItem.Description, ref.Title)

	_, err = m.CreateTask(context.Background(), types.ActionItem{Owner: "Bob", Description: "multi\nline", ContextQuote: "I will multi\nline"})
	require.NoError(t, err)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(raw), LedgerHeader+"\n\n"))
	assert.Equal(t, 1, strings.Count(string(raw), LedgerHeader))

	entries, err := ReadLedger(path)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, LedgerEntry{
		ID:      ref.ID,
		Owner:   "Alice",
		Task:    sampleItem.Description,
		Context: sampleItem.ContextQuote,
		Created: time.Date(2025, 3, 4, 10, 11, 12, 0, time.Local),
	}, entries[0])
	assert.Equal(t, "multi line", entries[1].Task)
}

func TestMarkdownLedger_ConcurrentAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tasks.md")

	const runs, perRun = 8, 10
	var wg sync.WaitGroup
	for r := 0; r < runs; r++ {
		wg.Add(1)
		go func(r int) {
			defer wg.Done()
			m, err := NewMarkdownLedger(path)
			if !assert.NoError(t, err) {
				return
			}
			for i := 0; i < perRun; i++ {
				_, err := m.CreateTask(context.Background(), types.ActionItem{
					Owner:        fmt.Sprintf("Owner %d", r),
					Description:  fmt.Sprintf("task %d-%d", r, i),
					ContextQuote: "ctx",
				})
				assert.NoError(t, err)
			}
		}(r)
	}
	wg.Wait()

	entries, err := ReadLedger(path)
	require.NoError(t, err)
	require.Len(t, entries, runs*perRun)
	for _, e := range entries {
		assert.NotEmpty(t, e.Owner)
		assert.True(t, strings.HasPrefix(e.Task, "task "))
		assert.Equal(t, "ctx", e.Context)
	}
}

func TestOpenLedger_SingleCreator(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tasks.md")

	const openers = 16
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		creates int
	)
	for i := 0; i < openers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			f, created, err := openLedger(path)
			if !assert.NoError(t, err) {
				return
			}
			f.Close()
			if created {
				mu.Lock()
				creates++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, creates)
}

func TestMarkdownLedger_ExistingFileGetsNoHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tasks.md")
	require.NoError(t, os.WriteFile(path, []byte(LedgerHeader+"\n\n"), 0o644))

	m, err := NewMarkdownLedger(path)
	require.NoError(t, err)
	_, err = m.CreateTask(context.Background(), sampleItem)
	require.NoError(t, err)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(string(raw), LedgerHeader))

	entries, err := ReadLedger(path)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestMarkdownLedger_CancelledContext(t *testing.T) {
	m, err := NewMarkdownLedger(filepath.Join(t.TempDir(), "tasks.md"))
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = m.CreateTask(ctx, sampleItem)
	var de *mrerrors.DispatchError
	require.True(t, errors.As(err, &de))
	_, statErr := os.Stat(m.Path())
	assert.True(t, os.IsNotExist(statErr))
}

func TestReadLedger_Missing(t *testing.T) {
	_, err := ReadLedger(filepath.Join(t.TempDir(), "nope.md"))
	assert.Error(t, err)
}

func TestJira_CreateTask(t *testing.T) {
	long := strings.Repeat("a", 300)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/rest/api/2/issue", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		var body jiraIssue
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "OPS", body.Fields.Project.Key)
		assert.Equal(t, "Task", body.Fields.IssueType.Name)
		assert.Len(t, body.Fields.Summary, jiraSummaryLimit)
		assert.Contains(t, body.Fields.Description, "Owner: Alice")
		_ = json.NewEncoder(w).Encode(jiraCreated{ID: "1", Key: "OPS-7"})
	}))
	defer srv.Close()

	j := NewJira(JiraConfig{BaseURL: srv.URL + "/", APIToken: "tok", ProjectKey: "OPS"}, webapi.New(time.Second, 0, 0))
	ref, err := j.CreateTask(context.Background(), types.ActionItem{Owner: "Alice", Description: long, ContextQuote: "q"})

	require.NoError(t, err)
	assert.Equal(t, "OPS-7", ref.ID)
	assert.Equal(t, srv.URL+"/browse/OPS-7", ref.URL)
}

func TestJira_ErrorKinds(t *testing.T) {
	tests := []struct {
		status int
		kind   mrerrors.Kind
	}{
		{http.StatusUnauthorized, mrerrors.KindAuth},
		{http.StatusTooManyRequests, mrerrors.KindRateLimit},
		{http.StatusServiceUnavailable, mrerrors.KindNetwork},
		{http.StatusBadRequest, mrerrors.KindUnknown},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			j := NewJira(JiraConfig{BaseURL: srv.URL, APIToken: "tok", ProjectKey: "OPS"}, webapi.New(time.Second, 0, 0))
			_, err := j.CreateTask(context.Background(), sampleItem)

			var de *mrerrors.DispatchError
			require.True(t, errors.As(err, &de))
			assert.Equal(t, tt.kind, de.Kind)
			assert.Equal(t, tt.status, de.Status)
			assert.Equal(t, "jira", de.Backend)
		})
	}
}

func TestJira_NetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	j := NewJira(JiraConfig{BaseURL: srv.URL, APIToken: "tok", ProjectKey: "OPS"}, webapi.New(time.Second, 0, 0))
	_, err := j.CreateTask(context.Background(), sampleItem)

	assert.Equal(t, mrerrors.KindNetwork, mrerrors.KindOf(err))
}

func TestTrello_CreateTask(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/1/cards", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "k", q.Get("key"))
		assert.Equal(t, "list1", q.Get("idList"))
		assert.Equal(t, sampleItem.Description, q.Get("name"))
		_ = json.NewEncoder(w).Encode(trelloCard{ID: "c1", ShortURL: "https://trello.com/c/abc"})
	}))
	defer srv.Close()

	tr := NewTrello(TrelloConfig{BaseURL: srv.URL, APIKey: "k", Token: "t", ListID: "list1"}, webapi.New(time.Second, 0, 0))
	ref, err := tr.CreateTask(context.Background(), sampleItem)

	require.NoError(t, err)
	assert.Equal(t, types.TaskRef{ID: "c1", URL: "https://trello.com/c/abc", Title: sampleItem.Description}, ref)
}
