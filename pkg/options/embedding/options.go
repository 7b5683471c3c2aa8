// Package embedding provides embedding routing and fusion options.
package embedding

import (
	"fmt"

	"github.com/spf13/pflag"

	"github.com/kart-io/cortex-x/pkg/options"
)

var _ options.IOptions = (*Options)(nil)

// Model roles.
const (
	RolePrimary   = "primary"
	RoleSecondary = "secondary"
)

// Fusion strategies.
const (
	FusionConcat    = "concat"
	FusionSum       = "sum"
	FusionMean      = "mean"
	FusionWeighted  = "weighted_sum"
	FusionMax       = "max"
	FusionAttention = "attention"
)

// ModelOptions describes one embedding model the router may select.
// The model list is file-only configuration (too structured for flags).
type ModelOptions struct {
	// Name is the backend model identifier.
	Name string `json:"name" mapstructure:"name"`

	// Dimension is the output vector dimension.
	Dimension int `json:"dimension" mapstructure:"dimension"`

	// MaxInputTokens caps input length; longer texts are truncated.
	MaxInputTokens int `json:"max-input-tokens" mapstructure:"max-input-tokens"`

	// Role is primary or secondary. The primary model with no profiles is
	// the wildcard fallback.
	Role string `json:"role" mapstructure:"role"`

	// Profiles is the set of routing profiles this model serves.
	Profiles []string `json:"profiles" mapstructure:"profiles"`
}

// Options defines embedding service configuration.
type Options struct {
	// Models enumerates the available embedding models.
	Models []ModelOptions `json:"models" mapstructure:"models"`

	// NormalizeEmbeddings L2-normalizes every output vector.
	NormalizeEmbeddings bool `json:"normalize-embeddings" mapstructure:"normalize-embeddings"`

	// FusionStrategy selects the default fusion strategy.
	FusionStrategy string `json:"fusion-strategy" mapstructure:"fusion-strategy"`

	// FusionWeights are the weights for weighted_sum, aligned with Models.
	FusionWeights []float64 `json:"fusion-weights" mapstructure:"fusion-weights"`

	// BatchSize caps chunks per model call.
	BatchSize int `json:"batch-size" mapstructure:"batch-size"`
}

// NewOptions creates default embedding options with a single prose model.
func NewOptions() *Options {
	return &Options{
		Models: []ModelOptions{
			{
				Name:           "nomic-embed-text",
				Dimension:      768,
				MaxInputTokens: 8192,
				Role:           RolePrimary,
			},
		},
		NormalizeEmbeddings: true,
		FusionStrategy:      FusionMean,
		BatchSize:           16,
	}
}

// AddFlags adds flags for embedding options to the specified FlagSet.
// The model list is configured via file only.
func (o *Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	fs.BoolVar(&o.NormalizeEmbeddings, options.Join(prefixes...)+"embedding.normalize-embeddings", o.NormalizeEmbeddings, "L2-normalize output vectors.")
	fs.StringVar(&o.FusionStrategy, options.Join(prefixes...)+"embedding.fusion-strategy", o.FusionStrategy, "Fusion strategy (concat, sum, mean, weighted_sum, max, attention).")
	fs.IntVar(&o.BatchSize, options.Join(prefixes...)+"embedding.batch-size", o.BatchSize, "Chunks per model call.")
}

// Validate validates the options.
func (o *Options) Validate() []error {
	if o == nil {
		return nil
	}

	var errs []error
	if len(o.Models) == 0 {
		errs = append(errs, fmt.Errorf("embedding requires at least one model"))
	}
	primaries := 0
	for i, m := range o.Models {
		if m.Name == "" {
			errs = append(errs, fmt.Errorf("embedding model %d has no name", i))
		}
		if m.Dimension <= 0 {
			errs = append(errs, fmt.Errorf("embedding model %q dimension must be positive", m.Name))
		}
		switch m.Role {
		case RolePrimary:
			primaries++
		case RoleSecondary:
		default:
			errs = append(errs, fmt.Errorf("embedding model %q role %q must be primary or secondary", m.Name, m.Role))
		}
	}
	if primaries == 0 && len(o.Models) > 0 {
		errs = append(errs, fmt.Errorf("embedding requires one primary model"))
	}

	switch o.FusionStrategy {
	case FusionConcat, FusionSum, FusionMean, FusionWeighted, FusionMax, FusionAttention:
	default:
		errs = append(errs, fmt.Errorf("unknown fusion strategy %q", o.FusionStrategy))
	}
	if o.FusionStrategy == FusionWeighted && len(o.FusionWeights) != len(o.Models) {
		errs = append(errs, fmt.Errorf("fusion-weights length %d must match model count %d", len(o.FusionWeights), len(o.Models)))
	}
	if o.BatchSize <= 0 {
		errs = append(errs, fmt.Errorf("embedding batch-size must be positive"))
	}
	return errs
}
