// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/pdiddy/research-briefing/internal/httputil"
)

const (
	// DefaultOllamaURL is the local Ollama API.
	DefaultOllamaURL = "http://localhost:11434"

	// DefaultOllamaModel is a small general-purpose embedding model.
	DefaultOllamaModel = "nomic-embed-text"
)

// OllamaProvider generates embeddings with a local Ollama server.
type OllamaProvider struct {
	options
}

// NewOllamaProvider creates an Ollama provider.
func NewOllamaProvider(opts ...Option) *OllamaProvider {
	return &OllamaProvider{options: buildOptions(DefaultOllamaURL, DefaultOllamaModel, opts)}
}

// Name returns "ollama/<model>".
func (p *OllamaProvider) Name() string { return ProviderOllama + "/" + p.model }

type ollamaEmbedRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type ollamaEmbedResponse struct {
	Embedding []float32 `json:"embedding"`
}

// Embed requests one embedding from /api/embeddings.
func (p *OllamaProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	body, err := json.Marshal(ollamaEmbedRequest{Model: p.model, Prompt: text})
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/api/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := httputil.DoWithRetry(ctx, p.client, req, 0)
	if err != nil {
		return nil, fmt.Errorf("ollama embeddings request: %w", err)
	}
	defer resp.Body.Close()

	if err := httputil.CheckStatus(ProviderOllama, resp); err != nil {
		return nil, err
	}

	var result ollamaEmbedResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decoding ollama response: %w", err)
	}
	if len(result.Embedding) == 0 {
		return nil, fmt.Errorf("ollama returned no embedding for model %s", p.model)
	}
	return result.Embedding, nil
}
