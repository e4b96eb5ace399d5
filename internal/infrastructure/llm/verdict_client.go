package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gurnameh-99/fact-den/internal/config"
	"github.com/gurnameh-99/fact-den/internal/domain"
	"github.com/gurnameh-99/fact-den/internal/ports"
)

const systemPrompt = "You are a rigorous fact checker. Assess the claim you are given " +
	"and answer in exactly the requested format, nothing else."

const promptTemplate = `Fact-check the following claim.

Claim title: %s
Claim text: %s

Answer in exactly this format:
Truth rating: one of True, False, Misleading, Partly True, Unknown
Confidence: High, Medium or Low
Evidence:
- up to three short bullet points
Sources:
- up to two URLs`

// VerdictClient implements ports.VerdictSource against OpenAI-compatible
// chat completion APIs. Candidate models are tried in a fixed fallback
// order; the first non-error reply wins.
type VerdictClient struct {
	endpoint string
	apiKey   string
	models   []string
	logger   *slog.Logger
	http     *http.Client
}

var _ ports.VerdictSource = (*VerdictClient)(nil)

// NewVerdictClient builds a client from configuration.
func NewVerdictClient(cfg config.AIConfig, logger *slog.Logger) *VerdictClient {
	return &VerdictClient{
		endpoint: cfg.Endpoint,
		apiKey:   cfg.APIKey,
		models:   cfg.Models,
		logger:   logger,
		http:     &http.Client{Timeout: 30 * time.Second},
	}
}

// CheckClaim asks the model for a structured verdict. Model errors fall
// through to the next candidate and only surface once all candidates are
// exhausted; parse shortfalls degrade to placeholder field values.
func (c *VerdictClient) CheckClaim(ctx context.Context, title, content string) (domain.Verdict, error) {
	if c.apiKey == "" || c.endpoint == "" || len(c.models) == 0 {
		return domain.Verdict{}, fmt.Errorf("verdict client misconfigured")
	}

	prompt := fmt.Sprintf(promptTemplate, title, content)

	var lastErr error
	for _, model := range c.models {
		reply, err := c.complete(ctx, model, prompt)
		if err != nil {
			c.log().Warn("model failed, trying next", "model", model, "error", err)
			lastErr = err
			continue
		}
		return ParseVerdict(reply), nil
	}

	return domain.Verdict{}, fmt.Errorf("all candidate models failed: %w", lastErr)
}

func (c *VerdictClient) complete(ctx context.Context, model, prompt string) (string, error) {
	body, err := json.Marshal(map[string]any{
		"model": model,
		"messages": []map[string]string{
			{"role": "system", "content": systemPrompt},
			{"role": "user", "content": prompt},
		},
	})
	if err != nil {
		return "", fmt.Errorf("marshal completion payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("complete: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", fmt.Errorf("model %s: %s: %s", model, resp.Status, strings.TrimSpace(string(payload)))
	}

	var parsed struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("decode completion: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("model %s returned no choices", model)
	}
	return parsed.Choices[0].Message.Content, nil
}

func (c *VerdictClient) log() *slog.Logger {
	if c.logger == nil {
		return slog.Default()
	}
	return c.logger
}
