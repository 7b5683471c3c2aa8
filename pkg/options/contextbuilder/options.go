// Package contextbuilder provides context-assembly options.
package contextbuilder

import (
	"fmt"

	"github.com/spf13/pflag"

	"github.com/kart-io/cortex-x/pkg/options"
)

var _ options.IOptions = (*Options)(nil)

// Rerank strategy names accepted by the context builder.
const (
	RerankScoreBased     = "score_based"
	RerankRRF            = "reciprocal_rank_fusion"
	RerankDiversityAware = "diversity_aware"
	RerankRecencyBiased  = "recency_biased"
)

// Options defines context-assembly configuration.
type Options struct {
	// MaxTokens is the context window token budget.
	MaxTokens int `json:"max-tokens" mapstructure:"max-tokens"`

	// MaxBlocks caps the number of context blocks.
	MaxBlocks int `json:"max-blocks" mapstructure:"max-blocks"`

	// DefaultRerank is the rerank strategy used when the request omits one.
	DefaultRerank string `json:"default-rerank" mapstructure:"default-rerank"`
}

// NewOptions creates default context-builder options.
func NewOptions() *Options {
	return &Options{
		MaxTokens:     8000,
		MaxBlocks:     20,
		DefaultRerank: RerankRRF,
	}
}

// AddFlags adds flags for context-builder options to the specified FlagSet.
func (o *Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	fs.IntVar(&o.MaxTokens, options.Join(prefixes...)+"context.max-tokens", o.MaxTokens, "Token budget for assembled context.")
	fs.IntVar(&o.MaxBlocks, options.Join(prefixes...)+"context.max-blocks", o.MaxBlocks, "Maximum number of context blocks.")
	fs.StringVar(&o.DefaultRerank, options.Join(prefixes...)+"context.default-rerank", o.DefaultRerank, "Default rerank strategy (score_based, reciprocal_rank_fusion, diversity_aware, recency_biased).")
}

// Validate validates the options.
func (o *Options) Validate() []error {
	if o == nil {
		return nil
	}

	var errs []error
	if o.MaxTokens <= 0 {
		errs = append(errs, fmt.Errorf("context max-tokens must be positive"))
	}
	if o.MaxBlocks <= 0 {
		errs = append(errs, fmt.Errorf("context max-blocks must be positive"))
	}
	switch o.DefaultRerank {
	case RerankScoreBased, RerankRRF, RerankDiversityAware, RerankRecencyBiased:
	default:
		errs = append(errs, fmt.Errorf("unknown rerank strategy %q", o.DefaultRerank))
	}
	return errs
}
