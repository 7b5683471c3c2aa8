package embedder

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProvider struct {
	calls int
}

func (f *fakeProvider) Embed(_ context.Context, _ string, texts []string) ([][]float32, error) {
	f.calls++
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{float32(len(texts[i])), 1}
	}
	return out, nil
}

func (f *fakeProvider) EmbedSingle(ctx context.Context, model string, text string) ([]float32, error) {
	out, err := f.Embed(ctx, model, []string{text})
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

func (f *fakeProvider) Name() string { return "fake" }

func TestRegistry(t *testing.T) {
	Register("fake", func(_ map[string]any) (Provider, error) {
		return &fakeProvider{}, nil
	})

	p, err := New("fake", nil)
	require.NoError(t, err)
	assert.Equal(t, "fake", p.Name())

	_, err = New("does-not-exist", nil)
	assert.Error(t, err)

	assert.Contains(t, List(), OllamaProviderName)
	assert.Contains(t, List(), OpenAIProviderName)
}

func TestOllamaProviderEmbed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/embed", r.URL.Path)

		var req ollamaEmbedRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "nomic-embed-text", req.Model)

		resp := ollamaEmbedResponse{Model: req.Model}
		for range req.Input {
			resp.Embeddings = append(resp.Embeddings, []float32{0.1, 0.2, 0.3})
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	cfg := DefaultOllamaConfig()
	cfg.BaseURL = srv.URL
	p := NewOllamaProviderWithConfig(cfg)

	embeddings, err := p.Embed(context.Background(), "nomic-embed-text", []string{"alpha", "beta"})
	require.NoError(t, err)
	require.Len(t, embeddings, 2)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, embeddings[0])

	single, err := p.EmbedSingle(context.Background(), "nomic-embed-text", "gamma")
	require.NoError(t, err)
	assert.Len(t, single, 3)
}

func TestOllamaProviderEmbedEmpty(t *testing.T) {
	p := NewOllamaProviderWithConfig(DefaultOllamaConfig())

	embeddings, err := p.Embed(context.Background(), "nomic-embed-text", nil)
	require.NoError(t, err)
	assert.Nil(t, embeddings)
}

func TestOllamaProviderServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer srv.Close()

	cfg := DefaultOllamaConfig()
	cfg.BaseURL = srv.URL
	p := NewOllamaProviderWithConfig(cfg)

	_, err := p.Embed(context.Background(), "missing-model", []string{"alpha"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
}

func TestOpenAIProviderEmbedRestoresOrder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/embeddings", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req openaiEmbeddingRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		// Return results in reverse order; the client must restore by index.
		var resp openaiEmbeddingResponse
		for i := len(req.Input) - 1; i >= 0; i-- {
			resp.Data = append(resp.Data, struct {
				Embedding []float32 `json:"embedding"`
				Index     int       `json:"index"`
			}{Embedding: []float32{float32(i)}, Index: i})
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	cfg := DefaultOpenAIConfig()
	cfg.BaseURL = srv.URL
	cfg.APIKey = "test-key"
	p := NewOpenAIProviderWithConfig(cfg)

	embeddings, err := p.Embed(context.Background(), "text-embedding-3-small", []string{"a", "b", "c"})
	require.NoError(t, err)
	require.Len(t, embeddings, 3)
	assert.Equal(t, []float32{0}, embeddings[0])
	assert.Equal(t, []float32{2}, embeddings[2])
}

func TestOpenAIProviderRequiresAPIKey(t *testing.T) {
	_, err := NewOpenAIProvider(map[string]any{})
	assert.Error(t, err)
}

func TestCachedProviderPassthroughWithoutRedis(t *testing.T) {
	fake := &fakeProvider{}
	cached := NewCachedProvider(fake, nil, nil)

	embeddings, err := cached.Embed(context.Background(), "m", []string{"one", "two"})
	require.NoError(t, err)
	require.Len(t, embeddings, 2)
	assert.Equal(t, 1, fake.calls)
	assert.Equal(t, "fake-cached", cached.Name())
}

func TestCacheKeyIncludesModel(t *testing.T) {
	cached := NewCachedProvider(&fakeProvider{}, nil, nil)
	assert.NotEqual(t, cached.cacheKey("model-a", "text"), cached.cacheKey("model-b", "text"))
	assert.Equal(t, cached.cacheKey("model-a", "text"), cached.cacheKey("model-a", "text"))
}
