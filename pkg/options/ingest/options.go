// Package ingest provides ingest-pipeline options.
package ingest

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"

	"github.com/kart-io/cortex-x/pkg/options"
)

var _ options.IOptions = (*Options)(nil)

// Options defines ingest-pipeline configuration.
type Options struct {
	// Workers is the pipeline worker pool capacity.
	Workers int `json:"workers" mapstructure:"workers"`

	// MaxRetries is the retry budget per pipeline stage.
	MaxRetries int `json:"max-retries" mapstructure:"max-retries"`

	// RetryBaseDelay is the first retry backoff; doubled per attempt.
	RetryBaseDelay time.Duration `json:"retry-base-delay" mapstructure:"retry-base-delay"`

	// RetryMaxDelay caps the retry backoff.
	RetryMaxDelay time.Duration `json:"retry-max-delay" mapstructure:"retry-max-delay"`
}

// NewOptions creates default ingest options.
func NewOptions() *Options {
	return &Options{
		Workers:        8,
		MaxRetries:     3,
		RetryBaseDelay: time.Second,
		RetryMaxDelay:  30 * time.Second,
	}
}

// AddFlags adds flags for ingest options to the specified FlagSet.
func (o *Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	fs.IntVar(&o.Workers, options.Join(prefixes...)+"ingest.workers", o.Workers, "Ingest pipeline worker pool capacity.")
	fs.IntVar(&o.MaxRetries, options.Join(prefixes...)+"ingest.max-retries", o.MaxRetries, "Retry budget per pipeline stage.")
	fs.DurationVar(&o.RetryBaseDelay, options.Join(prefixes...)+"ingest.retry-base-delay", o.RetryBaseDelay, "Initial stage retry backoff, doubled per attempt.")
	fs.DurationVar(&o.RetryMaxDelay, options.Join(prefixes...)+"ingest.retry-max-delay", o.RetryMaxDelay, "Upper bound on stage retry backoff.")
}

// Validate validates the options.
func (o *Options) Validate() []error {
	if o == nil {
		return nil
	}

	var errs []error
	if o.Workers <= 0 {
		errs = append(errs, fmt.Errorf("ingest workers must be positive"))
	}
	if o.MaxRetries < 0 {
		errs = append(errs, fmt.Errorf("ingest max-retries must not be negative"))
	}
	if o.RetryBaseDelay <= 0 {
		errs = append(errs, fmt.Errorf("ingest retry-base-delay must be positive"))
	}
	if o.RetryMaxDelay < o.RetryBaseDelay {
		errs = append(errs, fmt.Errorf("ingest retry-max-delay %v must not be shorter than retry-base-delay %v", o.RetryMaxDelay, o.RetryBaseDelay))
	}
	return errs
}
