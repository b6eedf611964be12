package logger

import (
	"bytes"
	"context"
	"net/http/httptest"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWithLevel(t *testing.T) {
	assert.Equal(t, logrus.DebugLevel, NewWithLevel("debug").Logger.GetLevel())
	assert.Equal(t, logrus.WarnLevel, NewWithLevel("WARNING").Logger.GetLevel())
	assert.Equal(t, logrus.InfoLevel, NewWithLevel("nonsense").Logger.GetLevel())
}

func TestFromContext_RoundTrip(t *testing.T) {
	var buf bytes.Buffer
	l := Discard()
	l.Logger.SetOutput(&buf)
	l.Logger.SetFormatter(&logrus.JSONFormatter{})

	entry := l.WithRun("run-1", "meeting_transcript_a.txt")
	ctx := IntoContext(context.Background(), entry)

	FromContext(ctx).Info("hello")
	assert.Contains(t, buf.String(), `"run_id":"run-1"`)
	assert.Contains(t, buf.String(), `"transcript":"meeting_transcript_a.txt"`)
}

func TestFromContext_Bare(t *testing.T) {
	e := FromContext(context.Background())
	require.NotNil(t, e)
	e.Info("dropped")
}

func TestWithRequest_GeneratesID(t *testing.T) {
	r := httptest.NewRequest("POST", "/process", nil)
	e := Discard().WithRequest(r)
	assert.NotEmpty(t, e.Data["req_id"])
	assert.Equal(t, "/process", e.Data["path"])

	r.Header.Set("X-Request-ID", "abc")
	e = Discard().WithRequest(r)
	assert.Equal(t, "abc", e.Data["req_id"])
}
