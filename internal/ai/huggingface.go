package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

type nliLabel struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

// HuggingFaceClient scores sentence pairs with a hosted NLI cross-encoder.
type HuggingFaceClient struct {
	httpClient *http.Client
	url        string
	apiKey     string
}

func NewHuggingFaceClient(httpClient *http.Client, url, apiKey string) *HuggingFaceClient {
	return &HuggingFaceClient{httpClient: httpClient, url: url, apiKey: apiKey}
}

func (h *HuggingFaceClient) Contradiction(ctx context.Context, premise, hypothesis string) (float64, error) {
	payload, err := json.Marshal(map[string]any{
		"inputs": map[string]string{"text": premise, "text_pair": hypothesis},
	})
	if err != nil {
		return 0, fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.url, bytes.NewReader(payload))
	if err != nil {
		return 0, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+h.apiKey)

	resp, err := h.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	labels, err := parseNLI(body)
	if err != nil {
		return 0, err
	}
	for _, l := range labels {
		if strings.EqualFold(l.Label, "contradiction") {
			return l.Score, nil
		}
	}
	return 0, fmt.Errorf("no contradiction label in response")
}

// parseNLI accepts both the flat and the batched ([[...]]) response shapes.
func parseNLI(body []byte) ([]nliLabel, error) {
	var flat []nliLabel
	if err := json.Unmarshal(body, &flat); err == nil {
		return flat, nil
	}
	var nested [][]nliLabel
	if err := json.Unmarshal(body, &nested); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if len(nested) == 0 {
		return nil, fmt.Errorf("empty response")
	}
	return nested[0], nil
}
