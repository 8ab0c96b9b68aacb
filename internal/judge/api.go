// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package judge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/pdiddy/research-briefing/internal/httputil"
)

// anthropicAPIURL is the Messages API endpoint. Package-level var for
// test substitution.
var anthropicAPIURL = "https://api.anthropic.com/v1/messages"

// DefaultAPIModel is used when no model is configured.
const DefaultAPIModel = "claude-sonnet-4-5"

// APIOracle sends prompts to the Anthropic Messages API.
type APIOracle struct {
	APIKey    string
	Model     string
	MaxTokens int
	Client    *http.Client
}

// Name returns "api/<model>".
func (o *APIOracle) Name() string { return "api/" + o.model() }

func (o *APIOracle) model() string {
	if o.Model == "" {
		return DefaultAPIModel
	}
	return o.Model
}

type messagesRequest struct {
	Model     string    `json:"model"`
	MaxTokens int       `json:"max_tokens"`
	Messages  []message `json:"messages"`
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type messagesResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

// Complete sends one user message and returns the concatenated text
// blocks of the reply.
func (o *APIOracle) Complete(ctx context.Context, prompt string) (string, error) {
	maxTokens := o.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 1024
	}

	body, err := json.Marshal(messagesRequest{
		Model:     o.model(),
		MaxTokens: maxTokens,
		Messages:  []message{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, anthropicAPIURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", o.APIKey)
	req.Header.Set("anthropic-version", "2023-06-01")

	resp, err := httputil.DoWithRetry(ctx, o.Client, req, 0)
	if err != nil {
		return "", fmt.Errorf("calling messages API: %w", err)
	}
	defer resp.Body.Close()

	if err := httputil.CheckStatus("messages API", resp); err != nil {
		return "", err
	}

	var mr messagesResponse
	if err := json.NewDecoder(resp.Body).Decode(&mr); err != nil {
		return "", fmt.Errorf("decoding messages response: %w", err)
	}

	var sb strings.Builder
	for _, block := range mr.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	if sb.Len() == 0 {
		return "", fmt.Errorf("messages API returned no text content")
	}
	return sb.String(), nil
}
