package app

import (
	"errors"

	"github.com/kart-io/cortex-x/pkg/app"
	"github.com/kart-io/cortex-x/pkg/options"
	contextopts "github.com/kart-io/cortex-x/pkg/options/contextbuilder"
	embedderopts "github.com/kart-io/cortex-x/pkg/options/embedder"
	embeddingopts "github.com/kart-io/cortex-x/pkg/options/embedding"
	logopts "github.com/kart-io/cortex-x/pkg/options/logger"
	milvusopts "github.com/kart-io/cortex-x/pkg/options/milvus"
	pgopts "github.com/kart-io/cortex-x/pkg/options/postgres"
	redisopts "github.com/kart-io/cortex-x/pkg/options/redis"
	retrieveropts "github.com/kart-io/cortex-x/pkg/options/retriever"
	serveropts "github.com/kart-io/cortex-x/pkg/options/server"
	vectoropts "github.com/kart-io/cortex-x/pkg/options/vector"
)

var _ app.CliOptions = (*Options)(nil)

// Options contains all query service options.
type Options struct {
	// Server contains HTTP server configuration.
	Server *serveropts.Options `json:"server" mapstructure:"server"`

	// Log contains logger configuration.
	Log *logopts.Options `json:"log" mapstructure:"log"`

	// Postgres contains the graph and chunk store configuration.
	Postgres *pgopts.Options `json:"postgres" mapstructure:"postgres"`

	// Redis contains the query cache configuration.
	Redis *redisopts.Options `json:"redis" mapstructure:"redis"`

	// Milvus contains the vector store configuration.
	Milvus *milvusopts.Options `json:"milvus" mapstructure:"milvus"`

	// Vector names the collection searched by this service.
	Vector *vectoropts.Options `json:"vector" mapstructure:"vector"`

	// Embedder contains the embedding backend configuration.
	Embedder *embedderopts.Options `json:"embedder" mapstructure:"embedder"`

	// Embedding contains model routing and fusion configuration.
	Embedding *embeddingopts.Options `json:"embedding" mapstructure:"embedding"`

	// Retriever contains step and deadline budgets.
	Retriever *retrieveropts.Options `json:"retriever" mapstructure:"retriever"`

	// Context contains context assembly budgets.
	Context *contextopts.Options `json:"context" mapstructure:"context"`
}

// NewOptions creates default query service options.
func NewOptions() *Options {
	return &Options{
		Server:    serveropts.NewOptions(),
		Log:       logopts.NewOptions(),
		Postgres:  pgopts.NewOptions(),
		Redis:     redisopts.NewOptions(),
		Milvus:    milvusopts.NewOptions(),
		Vector:    vectoropts.NewOptions(),
		Embedder:  embedderopts.NewOptions(),
		Embedding: embeddingopts.NewOptions(),
		Retriever: retrieveropts.NewOptions(),
		Context:   contextopts.NewOptions(),
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
	o.Vector.AddFlags(fss.FlagSet("vector"))
	o.Embedder.AddFlags(fss.FlagSet("embedder"))
	o.Embedding.AddFlags(fss.FlagSet("embedding"))
	o.Retriever.AddFlags(fss.FlagSet("retriever"))
	o.Context.AddFlags(fss.FlagSet("context"))
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
		o.Vector,
		o.Embedder,
		o.Embedding,
		o.Retriever,
		o.Context,
	} {
		errs = append(errs, opt.Validate()...)
	}
	return errors.Join(errs...)
}
