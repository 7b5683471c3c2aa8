// Package chunker provides chunking configuration options.
package chunker

import (
	"fmt"

	"github.com/spf13/pflag"

	"github.com/kart-io/cortex-x/pkg/options"
)

var _ options.IOptions = (*Options)(nil)

// Options defines the chunk size and overlap budgets. The defaults match
// the retrieval profile the platform was tuned for; changing them changes
// every chunk id produced afterwards, so treat them as deploy-time constants.
type Options struct {
	// MaxChunk is the prose window size in characters.
	MaxChunk int `json:"max-chunk" mapstructure:"max-chunk"`

	// Overlap is the prose window overlap in characters.
	Overlap int `json:"overlap" mapstructure:"overlap"`

	// CodeMaxTokens is the per-construct token budget for code chunks.
	CodeMaxTokens int `json:"code-max-tokens" mapstructure:"code-max-tokens"`

	// CodeOverlapTokens is the token overlap between code sub-chunks.
	CodeOverlapTokens int `json:"code-overlap-tokens" mapstructure:"code-overlap-tokens"`

	// CodeFallbackMaxChunk is the window size for code without a grammar.
	CodeFallbackMaxChunk int `json:"code-fallback-max-chunk" mapstructure:"code-fallback-max-chunk"`

	// MinChunkChars merges chunks shorter than this many non-whitespace
	// characters into their successor.
	MinChunkChars int `json:"min-chunk-chars" mapstructure:"min-chunk-chars"`
}

// NewOptions creates default chunker options.
func NewOptions() *Options {
	return &Options{
		MaxChunk:             1500,
		Overlap:              200,
		CodeMaxTokens:        512,
		CodeOverlapTokens:    64,
		CodeFallbackMaxChunk: 1800,
		MinChunkChars:        64,
	}
}

// AddFlags adds flags for chunker options to the specified FlagSet.
func (o *Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	fs.IntVar(&o.MaxChunk, options.Join(prefixes...)+"chunker.max-chunk", o.MaxChunk, "Prose chunk window size in characters.")
	fs.IntVar(&o.Overlap, options.Join(prefixes...)+"chunker.overlap", o.Overlap, "Prose chunk overlap in characters.")
	fs.IntVar(&o.CodeMaxTokens, options.Join(prefixes...)+"chunker.code-max-tokens", o.CodeMaxTokens, "Token budget per code construct.")
	fs.IntVar(&o.CodeOverlapTokens, options.Join(prefixes...)+"chunker.code-overlap-tokens", o.CodeOverlapTokens, "Token overlap between code sub-chunks.")
	fs.IntVar(&o.CodeFallbackMaxChunk, options.Join(prefixes...)+"chunker.code-fallback-max-chunk", o.CodeFallbackMaxChunk, "Window size for code without a grammar.")
	fs.IntVar(&o.MinChunkChars, options.Join(prefixes...)+"chunker.min-chunk-chars", o.MinChunkChars, "Minimum non-whitespace characters per chunk.")
}

// Validate validates the options.
func (o *Options) Validate() []error {
	if o == nil {
		return nil
	}

	var errs []error
	if o.MaxChunk <= 0 {
		errs = append(errs, fmt.Errorf("chunker max-chunk must be positive"))
	}
	if o.Overlap < 0 || o.Overlap >= o.MaxChunk {
		errs = append(errs, fmt.Errorf("chunker overlap %d must be in [0, max-chunk)", o.Overlap))
	}
	if o.CodeMaxTokens <= 0 {
		errs = append(errs, fmt.Errorf("chunker code-max-tokens must be positive"))
	}
	if o.CodeOverlapTokens < 0 || o.CodeOverlapTokens >= o.CodeMaxTokens {
		errs = append(errs, fmt.Errorf("chunker code-overlap-tokens %d must be in [0, code-max-tokens)", o.CodeOverlapTokens))
	}
	return errs
}
