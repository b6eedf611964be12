// Package transcription loads meeting transcripts from disk or over HTTP.
package transcription

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"

	mrerrors "meeting-router-go/internal/errors"
	"meeting-router-go/internal/logger"
	"meeting-router-go/internal/retry"
)

// MaxTranscriptBytes bounds what is read from a file or response body.
const MaxTranscriptBytes = 16 << 20

var httpClient = &http.Client{Timeout: 30 * time.Second}

// ReadFile reads a transcript. Invalid UTF-8 is decoded as Latin-1 with a
// warning. Any read failure is a *mrerrors.FatalIOError.
func ReadFile(ctx context.Context, path string) (string, error) {
	log := logger.FromContext(ctx).WithField("component", "transcription").WithField("path", path)

	f, err := os.Open(path)
	if err != nil {
		return "", &mrerrors.FatalIOError{Op: "open", Path: path, Cause: err}
	}
	defer f.Close()

	b, err := io.ReadAll(io.LimitReader(f, MaxTranscriptBytes+1))
	if err != nil {
		return "", &mrerrors.FatalIOError{Op: "read", Path: path, Cause: err}
	}
	if len(b) > MaxTranscriptBytes {
		return "", &mrerrors.FatalIOError{Op: "read", Path: path, Cause: fmt.Errorf("transcript exceeds %d bytes", MaxTranscriptBytes)}
	}

	text, latin1 := Decode(b)
	if latin1 {
		log.Warn("transcript is not valid UTF-8, decoded as Latin-1")
	}
	log.WithField("bytes", len(b)).Debug("transcript loaded")
	return text, nil
}

// Decode returns b as a string, decoding it as Latin-1 when it is not valid
// UTF-8. A leading UTF-8 byte order mark is dropped.
func Decode(b []byte) (string, bool) {
	if utf8.Valid(b) {
		return strings.TrimPrefix(string(b), "\ufeff"), false
	}
	out, err := charmap.ISO8859_1.NewDecoder().Bytes(b)
	if err != nil {
		return string(b), false
	}
	return string(out), true
}

// Fetch downloads a transcript with the given retry policy. 4xx responses
// are not retried.
func Fetch(ctx context.Context, url string, policy retry.Policy) (string, error) {
	log := logger.FromContext(ctx).WithField("component", "transcription").WithField("url", url)

	var body []byte
	res, err := retry.Do(ctx, policy, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return &mrerrors.FatalIOError{Op: "fetch", Path: url, Cause: err}
		}
		resp, err := httpClient.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		b, err := io.ReadAll(io.LimitReader(resp.Body, MaxTranscriptBytes+1))
		if err != nil {
			return err
		}
		if resp.StatusCode >= 300 {
			kind := mrerrors.KindFromStatus(resp.StatusCode)
			return &mrerrors.DispatchError{Kind: kind, Backend: "transcript", Status: resp.StatusCode, Cause: fmt.Errorf("download failed: %s", string(b))}
		}
		if len(b) > MaxTranscriptBytes {
			return &mrerrors.FatalIOError{Op: "fetch", Path: url, Cause: fmt.Errorf("transcript exceeds %d bytes", MaxTranscriptBytes)}
		}
		body = b
		return nil
	}, func(err error, wait time.Duration) {
		log.WithError(err).WithField("wait", wait.String()).Warn("transcript download failed, retrying")
	})
	if err != nil {
		log.WithError(err).WithField("attempts", res.Attempts).Error("transcript download failed")
		return "", &mrerrors.FatalIOError{Op: "fetch", Path: url, Cause: err}
	}

	text, latin1 := Decode(body)
	if latin1 {
		log.Warn("transcript is not valid UTF-8, decoded as Latin-1")
	}
	return text, nil
}
