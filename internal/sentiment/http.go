package sentiment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	mrerrors "meeting-router-go/internal/errors"
)

// MaxInputRunes caps the text sent to the model service.
const MaxInputRunes = 512

type scoreReq struct {
	Text string `json:"text"`
}

type scoreResp struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

// HTTPScorer calls a model-backed classifier at <BaseURL>/score.
type HTTPScorer struct {
	BaseURL string
	c       *http.Client
}

func NewHTTPScorer(baseURL string, timeout time.Duration) *HTTPScorer {
	return &HTTPScorer{
		BaseURL: strings.TrimRight(baseURL, "/"),
		c:       &http.Client{Timeout: timeout},
	}
}

func (h *HTTPScorer) Score(ctx context.Context, text string) (float64, error) {
	if r := []rune(text); len(r) > MaxInputRunes {
		text = string(r[:MaxInputRunes])
	}

	b, _ := json.Marshal(scoreReq{Text: text})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.BaseURL+"/score", bytes.NewReader(b))
	if err != nil {
		return 0, &mrerrors.ScoringError{Window: text, Cause: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.c.Do(req)
	if err != nil {
		return 0, &mrerrors.ScoringError{Window: text, Cause: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return 0, &mrerrors.ScoringError{Window: text, Cause: fmt.Errorf("sentiment %s: %s", resp.Status, string(body))}
	}

	var out scoreResp
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return 0, &mrerrors.ScoringError{Window: text, Cause: fmt.Errorf("sentiment decode: %w", err)}
	}
	if err := ValidScore(out.Score); err != nil {
		return 0, &mrerrors.ScoringError{Window: text, Cause: err}
	}

	switch strings.ToUpper(out.Label) {
	case "POSITIVE":
		return out.Score, nil
	case "NEGATIVE":
		return 1 - out.Score, nil
	case "NEUTRAL":
		return 0.5, nil
	default:
		return 0, &mrerrors.ScoringError{Window: text, Cause: fmt.Errorf("unknown sentiment label %q", out.Label)}
	}
}
