// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package embedding

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/research-briefing/internal/httputil"
	"github.com/pdiddy/research-briefing/pkg/types"
)

func TestOpenAIProviderEmbed(t *testing.T) {
	var gotAuth string
	var gotReq embeddingsRequest
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/embeddings", r.URL.Path)
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data":[{"embedding":[0.1,0.2,0.3]}]}`))
	}))
	defer ts.Close()

	p := NewOpenAIProvider(WithBaseURL(ts.URL+"/"), WithAPIKey("sk-test"))
	vec, err := p.Embed(context.Background(), "agents for science")
	require.NoError(t, err)

	assert.Equal(t, []float32{0.1, 0.2, 0.3}, vec)
	assert.Equal(t, "Bearer sk-test", gotAuth)
	assert.Equal(t, DefaultOpenAIModel, gotReq.Model)
	assert.Equal(t, "agents for science", gotReq.Input)
	assert.Equal(t, "openai/text-embedding-3-small", p.Name())
}

func TestZhipuProviderDefaults(t *testing.T) {
	p := NewZhipuProvider(WithAPIKey("k"))
	assert.Equal(t, DefaultZhipuURL, p.baseURL)
	assert.Equal(t, "zhipu/embedding-3", p.Name())
}

func TestOpenAIProviderHTTPError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":"bad key"}`))
	}))
	defer ts.Close()

	p := NewOpenAIProvider(WithBaseURL(ts.URL), WithAPIKey("bad"))
	_, err := p.Embed(context.Background(), "x")

	var se *httputil.StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusUnauthorized, se.StatusCode)
	assert.False(t, se.IsTransient())
}

func TestOpenAIProviderEmptyData(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"data":[]}`))
	}))
	defer ts.Close()

	_, err := NewOpenAIProvider(WithBaseURL(ts.URL)).Embed(context.Background(), "x")
	assert.ErrorContains(t, err, "no embedding")
}

func TestOllamaProviderEmbed(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/embeddings", r.URL.Path)
		var req ollamaEmbedRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "all-minilm", req.Model)
		assert.Equal(t, "hello", req.Prompt)
		w.Write([]byte(`{"embedding":[1,0]}`))
	}))
	defer ts.Close()

	p := NewOllamaProvider(WithBaseURL(ts.URL), WithModel("all-minilm"))
	vec, err := p.Embed(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 0}, vec)
	assert.Equal(t, "ollama/all-minilm", p.Name())
}

func TestNewProvider(t *testing.T) {
	tests := []struct {
		name     string
		cfg      types.EmbeddingConfig
		wantName string
		wantErr  bool
	}{
		{"openai", types.EmbeddingConfig{Provider: "openai", APIKey: "k"}, "openai/text-embedding-3-small", false},
		{"zhipu custom model", types.EmbeddingConfig{Provider: "Zhipu", APIKey: "k", Model: "embedding-2"}, "zhipu/embedding-2", false},
		{"ollama needs no key", types.EmbeddingConfig{Provider: "ollama"}, "ollama/nomic-embed-text", false},
		{"openai without key", types.EmbeddingConfig{Provider: "openai"}, "", true},
		{"unknown", types.EmbeddingConfig{Provider: "word2vec"}, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := NewProvider(tt.cfg)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, types.ErrConfig)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantName, p.Name())
		})
	}
}
