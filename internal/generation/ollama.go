// Package generation produces conversational reply text with a local
// language model served by Ollama.
package generation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	agenterrors "bikeshop-agent/internal/common/errors"
)

// Generator is the surface the response planner needs; tests substitute a
// fake.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

type Client struct {
	baseURL     string
	model       string
	temperature float64
	maxTokens   int
	httpClient  *http.Client
}

func NewClient(baseURL, model string, timeout time.Duration, temperature float64, maxTokens int) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:     strings.TrimRight(baseURL, "/"),
		model:       model,
		temperature: temperature,
		maxTokens:   maxTokens,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

type generateRequest struct {
	Model   string                 `json:"model"`
	Prompt  string                 `json:"prompt"`
	Stream  bool                   `json:"stream"`
	Options map[string]interface{} `json:"options,omitempty"`
}

type generateResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

// Generate runs one completion. Every failure mode comes back as
// GENERATION_UNAVAILABLE so the caller falls back to a templated reply.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	reqBody := generateRequest{
		Model:  c.model,
		Prompt: prompt,
		Stream: false,
		Options: map[string]interface{}{
			"temperature": c.temperature,
			"num_predict": c.maxTokens,
		},
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return "", agenterrors.NewGenerationUnavailableError(fmt.Errorf("failed to marshal request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/generate", bytes.NewBuffer(payload))
	if err != nil {
		return "", agenterrors.NewGenerationUnavailableError(fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", agenterrors.NewGenerationUnavailableError(fmt.Errorf("failed to execute request: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", agenterrors.NewGenerationUnavailableError(
			fmt.Errorf("generation failed with status %d", resp.StatusCode))
	}

	var genResp generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&genResp); err != nil {
		return "", agenterrors.NewGenerationUnavailableError(fmt.Errorf("failed to decode response: %w", err))
	}

	text := strings.TrimSpace(genResp.Response)
	if text == "" {
		return "", agenterrors.NewGenerationUnavailableError(fmt.Errorf("empty completion"))
	}
	return text, nil
}
