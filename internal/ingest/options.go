package app

import (
	"errors"

	"github.com/kart-io/cortex-x/pkg/app"
	"github.com/kart-io/cortex-x/pkg/options"
	chunkeropts "github.com/kart-io/cortex-x/pkg/options/chunker"
	embedderopts "github.com/kart-io/cortex-x/pkg/options/embedder"
	embeddingopts "github.com/kart-io/cortex-x/pkg/options/embedding"
	ingestopts "github.com/kart-io/cortex-x/pkg/options/ingest"
	logopts "github.com/kart-io/cortex-x/pkg/options/logger"
	milvusopts "github.com/kart-io/cortex-x/pkg/options/milvus"
	neo4jopts "github.com/kart-io/cortex-x/pkg/options/neo4j"
	pgopts "github.com/kart-io/cortex-x/pkg/options/postgres"
	redisopts "github.com/kart-io/cortex-x/pkg/options/redis"
	serveropts "github.com/kart-io/cortex-x/pkg/options/server"
	vectoropts "github.com/kart-io/cortex-x/pkg/options/vector"
)

var _ app.CliOptions = (*Options)(nil)

// Options contains all ingest service options.
type Options struct {
	// Server contains HTTP server configuration.
	Server *serveropts.Options `json:"server" mapstructure:"server"`

	// Log contains logger configuration.
	Log *logopts.Options `json:"log" mapstructure:"log"`

	// Postgres contains the chunk and graph store configuration.
	Postgres *pgopts.Options `json:"postgres" mapstructure:"postgres"`

	// Redis contains the embedding cache configuration.
	Redis *redisopts.Options `json:"redis" mapstructure:"redis"`

	// Milvus contains the vector store configuration.
	Milvus *milvusopts.Options `json:"milvus" mapstructure:"milvus"`

	// Neo4j contains the optional graph mirror configuration.
	Neo4j *neo4jopts.Options `json:"neo4j" mapstructure:"neo4j"`

	// Vector names the collection written by this service.
	Vector *vectoropts.Options `json:"vector" mapstructure:"vector"`

	// Chunker contains chunking budgets and thresholds.
	Chunker *chunkeropts.Options `json:"chunker" mapstructure:"chunker"`

	// Embedder contains the embedding backend configuration.
	Embedder *embedderopts.Options `json:"embedder" mapstructure:"embedder"`

	// Embedding contains model routing and fusion configuration.
	Embedding *embeddingopts.Options `json:"embedding" mapstructure:"embedding"`

	// Ingest contains pipeline worker and retry configuration.
	Ingest *ingestopts.Options `json:"ingest" mapstructure:"ingest"`
}

// NewOptions creates default ingest service options.
func NewOptions() *Options {
	return &Options{
		Server:    serveropts.NewOptions(),
		Log:       logopts.NewOptions(),
		Postgres:  pgopts.NewOptions(),
		Redis:     redisopts.NewOptions(),
		Milvus:    milvusopts.NewOptions(),
		Neo4j:     neo4jopts.NewOptions(),
		Vector:    vectoropts.NewOptions(),
		Chunker:   chunkeropts.NewOptions(),
		Embedder:  embedderopts.NewOptions(),
		Embedding: embeddingopts.NewOptions(),
		Ingest:    ingestopts.NewOptions(),
	}
}

// Flags returns the flags grouped by section.
func (o *Options) Flags() app.NamedFlagSets {
	fss := app.NamedFlagSets{}
	o.Server.AddFlags(fss.FlagSet("server"))
	o.Log.AddFlags(fss.FlagSet("log"))
	o.Postgres.AddFlags(fss.FlagSet("postgres"))
	o.Redis.AddFlags(fss.FlagSet("redis"))
	o.Milvus.AddFlags(fss.FlagSet("milvus"))
	o.Neo4j.AddFlags(fss.FlagSet("neo4j"))
	o.Vector.AddFlags(fss.FlagSet("vector"))
	o.Chunker.AddFlags(fss.FlagSet("chunker"))
	o.Embedder.AddFlags(fss.FlagSet("embedder"))
	o.Embedding.AddFlags(fss.FlagSet("embedding"))
	o.Ingest.AddFlags(fss.FlagSet("ingest"))
	return fss
}

// Complete fills in derived defaults after config loading.
func (o *Options) Complete() error {
	return nil
}

// Validate validates all sub-options.
func (o *Options) Validate() error {
	var errs []error
	for _, opt := range []options.IOptions{
		o.Server,
		o.Log,
		o.Postgres,
		o.Redis,
		o.Milvus,
		o.Neo4j,
		o.Vector,
		o.Chunker,
		o.Embedder,
		o.Embedding,
		o.Ingest,
	} {
		errs = append(errs, opt.Validate()...)
	}
	return errors.Join(errs...)
}
