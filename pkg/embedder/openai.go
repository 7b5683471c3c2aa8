package embedder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// OpenAIProviderName identifies the OpenAI-compatible backend. It also works
// against services that expose the same API surface (Azure OpenAI, LocalAI).
const OpenAIProviderName = "openai"

func init() {
	Register(OpenAIProviderName, NewOpenAIProvider)
}

// OpenAIConfig configures the OpenAI-compatible provider.
type OpenAIConfig struct {
	BaseURL      string        `json:"base_url" mapstructure:"base_url"`
	APIKey       string        `json:"api_key" mapstructure:"api_key"`
	Organization string        `json:"organization" mapstructure:"organization"`
	Timeout      time.Duration `json:"timeout" mapstructure:"timeout"`
	MaxRetries   int           `json:"max_retries" mapstructure:"max_retries"`
}

// DefaultOpenAIConfig returns the default OpenAI configuration.
func DefaultOpenAIConfig() *OpenAIConfig {
	return &OpenAIConfig{
		BaseURL:    "https://api.openai.com/v1",
		Timeout:    120 * time.Second,
		MaxRetries: 3,
	}
}

// OpenAIProvider talks to the OpenAI embeddings API.
type OpenAIProvider struct {
	config     *OpenAIConfig
	httpClient *http.Client
}

// NewOpenAIProvider creates an OpenAI provider from a config map.
func NewOpenAIProvider(configMap map[string]any) (Provider, error) {
	cfg := DefaultOpenAIConfig()

	if v, ok := configMap["base_url"].(string); ok && v != "" {
		cfg.BaseURL = v
	}
	if v, ok := configMap["api_key"].(string); ok && v != "" {
		cfg.APIKey = v
	}
	if v, ok := configMap["organization"].(string); ok && v != "" {
		cfg.Organization = v
	}
	if v, ok := configMap["timeout"].(time.Duration); ok && v > 0 {
		cfg.Timeout = v
	}
	if v, ok := configMap["max_retries"].(int); ok && v > 0 {
		cfg.MaxRetries = v
	}

	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai api_key is required")
	}

	return NewOpenAIProviderWithConfig(cfg), nil
}

// NewOpenAIProviderWithConfig creates an OpenAI provider from structured config.
func NewOpenAIProviderWithConfig(cfg *OpenAIConfig) *OpenAIProvider {
	return &OpenAIProvider{
		config: cfg,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

// Name returns the provider name.
func (p *OpenAIProvider) Name() string {
	return OpenAIProviderName
}

type openaiEmbeddingRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type openaiEmbeddingResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
	Model string `json:"model"`
}

// Embed generates embeddings for the given texts.
func (p *OpenAIProvider) Embed(ctx context.Context, model string, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	body, err := json.Marshal(openaiEmbeddingRequest{Model: model, Input: texts})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal embedding request: %w", err)
	}

	resp, err := p.doRequestWithRetry(ctx, p.config.BaseURL+"/embeddings", body)
	if err != nil {
		return nil, fmt.Errorf("embedding request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("embedding request failed with status %d: %s", resp.StatusCode, string(bodyBytes))
	}

	var embedResp openaiEmbeddingResponse
	if err := json.NewDecoder(resp.Body).Decode(&embedResp); err != nil {
		return nil, fmt.Errorf("failed to decode embedding response: %w", err)
	}

	// The API may return out of order; restore input order by index.
	embeddings := make([][]float32, len(texts))
	for _, data := range embedResp.Data {
		if data.Index >= 0 && data.Index < len(embeddings) {
			embeddings[data.Index] = data.Embedding
		}
	}
	for i, emb := range embeddings {
		if emb == nil {
			return nil, fmt.Errorf("embedding missing for input %d", i)
		}
	}

	return embeddings, nil
}

// EmbedSingle generates an embedding for a single text.
func (p *OpenAIProvider) EmbedSingle(ctx context.Context, model string, text string) ([]float32, error) {
	embeddings, err := p.Embed(ctx, model, []string{text})
	if err != nil {
		return nil, err
	}
	if len(embeddings) == 0 {
		return nil, fmt.Errorf("no embedding returned")
	}
	return embeddings[0], nil
}

func (p *OpenAIProvider) doRequestWithRetry(ctx context.Context, url string, body []byte) (*http.Response, error) {
	var lastErr error
	for i := 0; i <= p.config.MaxRetries; i++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+p.config.APIKey)
		if p.config.Organization != "" {
			req.Header.Set("OpenAI-Organization", p.config.Organization)
		}

		resp, err := p.httpClient.Do(req)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		if i < p.config.MaxRetries {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Duration(i+1) * 500 * time.Millisecond):
			}
		}
	}
	return nil, lastErr
}
