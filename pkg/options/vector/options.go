// Package vector provides vector collection options.
package vector

import (
	"fmt"

	"github.com/spf13/pflag"

	"github.com/kart-io/cortex-x/pkg/options"
)

var _ options.IOptions = (*Options)(nil)

// Options names the vector collection and pins its dimension. The
// dimension must equal the fused embedding dimension; changing either
// requires a re-index.
type Options struct {
	// Collection is the vector collection name.
	Collection string `json:"collection" mapstructure:"collection"`

	// Dimension is the collection vector dimension.
	Dimension int `json:"dimension" mapstructure:"dimension"`
}

// NewOptions creates default vector collection options.
func NewOptions() *Options {
	return &Options{
		Collection: "chunks_v1",
		Dimension:  768,
	}
}

// AddFlags adds flags for vector options to the specified FlagSet.
func (o *Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	fs.StringVar(&o.Collection, options.Join(prefixes...)+"vector.collection", o.Collection, "Vector collection name.")
	fs.IntVar(&o.Dimension, options.Join(prefixes...)+"vector.dimension", o.Dimension, "Vector collection dimension.")
}

// Validate validates the options.
func (o *Options) Validate() []error {
	if o == nil {
		return nil
	}

	var errs []error
	if o.Collection == "" {
		errs = append(errs, fmt.Errorf("vector collection is required"))
	}
	if o.Dimension <= 0 {
		errs = append(errs, fmt.Errorf("vector dimension must be positive"))
	}
	return errs
}
