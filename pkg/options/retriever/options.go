// Package retriever provides retrieval-orchestration options.
package retriever

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"

	"github.com/kart-io/cortex-x/pkg/options"
)

var _ options.IOptions = (*Options)(nil)

// Options defines retrieval-orchestration configuration.
type Options struct {
	// PerStepTimeout bounds any single retrieval step.
	PerStepTimeout time.Duration `json:"per-step-timeout" mapstructure:"per-step-timeout"`

	// QueryDeadline bounds the whole query pipeline.
	QueryDeadline time.Duration `json:"query-deadline" mapstructure:"query-deadline"`

	// TopKMultiplier widens candidate recall before reranking.
	TopKMultiplier int `json:"top-k-multiplier" mapstructure:"top-k-multiplier"`

	// MaxAgenticSteps caps plan length for agentic retrieval.
	MaxAgenticSteps int `json:"max-agentic-steps" mapstructure:"max-agentic-steps"`
}

// NewOptions creates default retriever options.
func NewOptions() *Options {
	return &Options{
		PerStepTimeout:  5 * time.Second,
		QueryDeadline:   10 * time.Second,
		TopKMultiplier:  5,
		MaxAgenticSteps: 5,
	}
}

// AddFlags adds flags for retriever options to the specified FlagSet.
func (o *Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	fs.DurationVar(&o.PerStepTimeout, options.Join(prefixes...)+"retriever.per-step-timeout", o.PerStepTimeout, "Deadline for a single retrieval step.")
	fs.DurationVar(&o.QueryDeadline, options.Join(prefixes...)+"retriever.query-deadline", o.QueryDeadline, "Deadline for the whole query pipeline.")
	fs.IntVar(&o.TopKMultiplier, options.Join(prefixes...)+"retriever.top-k-multiplier", o.TopKMultiplier, "Candidate recall multiplier applied before reranking.")
	fs.IntVar(&o.MaxAgenticSteps, options.Join(prefixes...)+"retriever.max-agentic-steps", o.MaxAgenticSteps, "Maximum steps in an agentic plan.")
}

// Validate validates the options.
func (o *Options) Validate() []error {
	if o == nil {
		return nil
	}

	var errs []error
	if o.PerStepTimeout <= 0 {
		errs = append(errs, fmt.Errorf("retriever per-step-timeout must be positive"))
	}
	if o.QueryDeadline <= 0 {
		errs = append(errs, fmt.Errorf("retriever query-deadline must be positive"))
	}
	if o.QueryDeadline < o.PerStepTimeout {
		errs = append(errs, fmt.Errorf("retriever query-deadline %v must not be shorter than per-step-timeout %v", o.QueryDeadline, o.PerStepTimeout))
	}
	if o.TopKMultiplier <= 0 {
		errs = append(errs, fmt.Errorf("retriever top-k-multiplier must be positive"))
	}
	if o.MaxAgenticSteps <= 0 {
		errs = append(errs, fmt.Errorf("retriever max-agentic-steps must be positive"))
	}
	return errs
}
