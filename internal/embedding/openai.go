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

// Endpoints and default models for the OpenAI-compatible providers.
const (
	DefaultOpenAIURL   = "https://api.openai.com/v1"
	DefaultOpenAIModel = "text-embedding-3-small"
	DefaultZhipuURL    = "https://open.bigmodel.cn/api/paas/v4"
	DefaultZhipuModel  = "embedding-3"
)

// OpenAIProvider calls an OpenAI-compatible /embeddings endpoint. Zhipu
// serves the same request and response shape.
type OpenAIProvider struct {
	name string
	options
}

// NewOpenAIProvider creates a provider for the OpenAI embeddings API.
func NewOpenAIProvider(opts ...Option) *OpenAIProvider {
	return &OpenAIProvider{name: ProviderOpenAI, options: buildOptions(DefaultOpenAIURL, DefaultOpenAIModel, opts)}
}

// NewZhipuProvider creates a provider for the Zhipu embeddings API.
func NewZhipuProvider(opts ...Option) *OpenAIProvider {
	return &OpenAIProvider{name: ProviderZhipu, options: buildOptions(DefaultZhipuURL, DefaultZhipuModel, opts)}
}

// Name returns "<provider>/<model>".
func (p *OpenAIProvider) Name() string { return p.name + "/" + p.model }

type embeddingsRequest struct {
	Model string `json:"model"`
	Input string `json:"input"`
}

type embeddingsResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

// Embed requests one embedding.
func (p *OpenAIProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	body, err := json.Marshal(embeddingsRequest{Model: p.model, Input: text})
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := httputil.DoWithRetry(ctx, p.client, req, 0)
	if err != nil {
		return nil, fmt.Errorf("%s embeddings request: %w", p.name, err)
	}
	defer resp.Body.Close()

	if err := httputil.CheckStatus(p.name, resp); err != nil {
		return nil, err
	}

	var result embeddingsResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decoding %s response: %w", p.name, err)
	}
	if len(result.Data) == 0 || len(result.Data[0].Embedding) == 0 {
		return nil, fmt.Errorf("%s returned no embedding", p.name)
	}
	return result.Data[0].Embedding, nil
}
