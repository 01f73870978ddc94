package sentiment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// DefaultModelURL is the hosted star-rating model the classifier talks to by default.
const DefaultModelURL = "https://api-inference.huggingface.co/models/nlptown/bert-base-multilingual-uncased-sentiment"

// maxResponseBytes caps how much of a classifier answer is read.
const maxResponseBytes = 1 << 20

var starPattern = regexp.MustCompile(`^([1-5])\s*star`)

// HTTPClassifier calls a text-classification inference endpoint that answers
// with star labels ("1 star" .. "5 stars").
type HTTPClassifier struct {
	URL     string
	Token   string
	Timeout time.Duration
	Client  *http.Client
}

type prediction struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

func (c HTTPClassifier) client() *http.Client {
	if c.Client != nil {
		return c.Client
	}
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &http.Client{Timeout: timeout}
}

func (c HTTPClassifier) Classify(ctx context.Context, text string) (int, error) {
	if strings.TrimSpace(c.URL) == "" {
		return 0, errors.New("classifier url not configured")
	}
	body, err := json.Marshal(map[string]string{"inputs": text})
	if err != nil {
		return 0, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL, bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
	res, err := c.client().Do(req)
	if err != nil {
		return 0, fmt.Errorf("classify request: %w", err)
	}
	defer res.Body.Close()
	data, err := io.ReadAll(io.LimitReader(res.Body, maxResponseBytes+1))
	if err != nil {
		return 0, fmt.Errorf("read classify response: %w", err)
	}
	if len(data) > maxResponseBytes {
		return 0, fmt.Errorf("classifier response exceeds %d bytes", maxResponseBytes)
	}
	if res.StatusCode >= 300 {
		return 0, fmt.Errorf("classifier status %d: %s", res.StatusCode, strings.TrimSpace(string(data)))
	}
	preds, err := decodePredictions(data)
	if err != nil {
		return 0, err
	}
	best, ok := bestPrediction(preds)
	if !ok {
		return 0, errors.New("classifier returned no labels")
	}
	stars, ok := labelToStars(best.Label)
	if !ok {
		return 0, fmt.Errorf("unrecognized classifier label %q", best.Label)
	}
	return stars, nil
}

// decodePredictions accepts both the nested [[...]] and the flat [...] shapes.
func decodePredictions(data []byte) ([]prediction, error) {
	var nested [][]prediction
	if err := json.Unmarshal(data, &nested); err == nil {
		var flat []prediction
		for _, n := range nested {
			flat = append(flat, n...)
		}
		return flat, nil
	}
	var flat []prediction
	if err := json.Unmarshal(data, &flat); err != nil {
		return nil, fmt.Errorf("decode classifier response: %w", err)
	}
	return flat, nil
}

func bestPrediction(preds []prediction) (prediction, bool) {
	if len(preds) == 0 {
		return prediction{}, false
	}
	best := preds[0]
	for _, p := range preds[1:] {
		if p.Score > best.Score {
			best = p
		}
	}
	return best, true
}

func labelToStars(label string) (int, bool) {
	l := strings.ToLower(strings.TrimSpace(label))
	if m := starPattern.FindStringSubmatch(l); m != nil {
		n, _ := strconv.Atoi(m[1])
		return n, true
	}
	switch {
	case strings.Contains(l, "positive"):
		return 4, true
	case strings.Contains(l, "negative"):
		return 2, true
	case strings.Contains(l, "neutral"):
		return 3, true
	}
	return 0, false
}
