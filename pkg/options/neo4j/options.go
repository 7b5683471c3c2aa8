// Package neo4jopts provides options for the optional Neo4j graph mirror.
package neo4jopts

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"

	"github.com/kart-io/cortex-x/pkg/options"
)

var _ options.IOptions = (*Options)(nil)

// Options contains Neo4j client configuration. The mirror is disabled by
// default; when disabled the graph store serves neighbors and paths from
// PostgreSQL adjacency alone.
type Options struct {
	// Enabled toggles the Neo4j mirror.
	Enabled bool `json:"enabled" mapstructure:"enabled"`

	// URI is the bolt or neo4j+s connection URI.
	URI string `json:"uri" mapstructure:"uri"`

	// Username for authentication.
	Username string `json:"username" mapstructure:"username"`

	// Password for authentication.
	Password string `json:"-" mapstructure:"password"`

	// Database is the target database name.
	Database string `json:"database" mapstructure:"database"`

	// Timeout for connection and operations.
	Timeout time.Duration `json:"timeout" mapstructure:"timeout"`
}

// NewOptions creates new Options with defaults.
func NewOptions() *Options {
	return &Options{
		Enabled:  false,
		URI:      "bolt://localhost:7687",
		Username: "neo4j",
		Database: "neo4j",
		Timeout:  15 * time.Second,
	}
}

// AddFlags adds flags to the flagset.
func (o *Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	fs.BoolVar(&o.Enabled, options.Join(prefixes...)+"neo4j.enabled", o.Enabled, "Enable the Neo4j graph mirror.")
	fs.StringVar(&o.URI, options.Join(prefixes...)+"neo4j.uri", o.URI, "Neo4j connection URI (bolt:// or neo4j+s://).")
	fs.StringVar(&o.Username, options.Join(prefixes...)+"neo4j.username", o.Username, "Neo4j username.")
	fs.StringVar(&o.Password, options.Join(prefixes...)+"neo4j.password", o.Password, "Neo4j password.")
	fs.StringVar(&o.Database, options.Join(prefixes...)+"neo4j.database", o.Database, "Neo4j database name.")
	fs.DurationVar(&o.Timeout, options.Join(prefixes...)+"neo4j.timeout", o.Timeout, "Connection and operation timeout.")
}

// Validate validates the options.
func (o *Options) Validate() []error {
	if o == nil || !o.Enabled {
		return nil
	}

	var errs []error
	if o.URI == "" {
		errs = append(errs, fmt.Errorf("neo4j uri is required when the mirror is enabled"))
	}
	if o.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("neo4j timeout must be positive"))
	}
	return errs
}
