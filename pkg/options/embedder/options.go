// Package embedder provides embedding backend provider options.
package embedder

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"

	"github.com/kart-io/cortex-x/pkg/options"
)

var _ options.IOptions = (*Options)(nil)

// Options defines the embedding backend provider configuration. One backend
// serves every configured model; the model name is passed per call.
type Options struct {
	// Provider is the backend name (ollama, openai).
	Provider string `json:"provider" mapstructure:"provider"`

	// BaseURL is the API base address.
	BaseURL string `json:"base-url" mapstructure:"base-url"`

	// APIKey authenticates OpenAI-compatible backends.
	APIKey string `json:"-" mapstructure:"api-key"`

	// Timeout bounds one embedding call.
	Timeout time.Duration `json:"timeout" mapstructure:"timeout"`

	// MaxRetries is the retry budget per call.
	MaxRetries int `json:"max-retries" mapstructure:"max-retries"`

	// CacheEnabled toggles the redis-backed embedding cache.
	CacheEnabled bool `json:"cache-enabled" mapstructure:"cache-enabled"`

	// CacheTTL is the embedding cache entry lifetime.
	CacheTTL time.Duration `json:"cache-ttl" mapstructure:"cache-ttl"`
}

// NewOptions creates default embedder options.
func NewOptions() *Options {
	return &Options{
		Provider:     "ollama",
		BaseURL:      "http://localhost:11434",
		Timeout:      120 * time.Second,
		MaxRetries:   3,
		CacheEnabled: true,
		CacheTTL:     24 * time.Hour,
	}
}

// ToConfigMap converts to the provider factory configuration map.
func (o *Options) ToConfigMap() map[string]any {
	return map[string]any{
		"base_url":    o.BaseURL,
		"api_key":     o.APIKey,
		"timeout":     o.Timeout,
		"max_retries": o.MaxRetries,
	}
}

// AddFlags adds flags for embedder options to the specified FlagSet.
func (o *Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	fs.StringVar(&o.Provider, options.Join(prefixes...)+"embedder.provider", o.Provider, "Embedding backend provider (ollama, openai).")
	fs.StringVar(&o.BaseURL, options.Join(prefixes...)+"embedder.base-url", o.BaseURL, "Embedding backend base URL.")
	fs.StringVar(&o.APIKey, options.Join(prefixes...)+"embedder.api-key", o.APIKey, "Embedding backend API key.")
	fs.DurationVar(&o.Timeout, options.Join(prefixes...)+"embedder.timeout", o.Timeout, "Embedding request timeout.")
	fs.IntVar(&o.MaxRetries, options.Join(prefixes...)+"embedder.max-retries", o.MaxRetries, "Embedding request retry budget.")
	fs.BoolVar(&o.CacheEnabled, options.Join(prefixes...)+"embedder.cache-enabled", o.CacheEnabled, "Enable the redis embedding cache.")
	fs.DurationVar(&o.CacheTTL, options.Join(prefixes...)+"embedder.cache-ttl", o.CacheTTL, "Embedding cache TTL.")
}

// Validate validates the options.
func (o *Options) Validate() []error {
	if o == nil {
		return nil
	}

	var errs []error
	switch o.Provider {
	case "ollama", "openai":
	default:
		errs = append(errs, fmt.Errorf("embedder provider %q must be ollama or openai", o.Provider))
	}
	if o.BaseURL == "" {
		errs = append(errs, fmt.Errorf("embedder base-url is required"))
	}
	if o.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("embedder timeout must be positive"))
	}
	return errs
}
