// Package app provides the ingest service application.
package app

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/kart-io/logger"

	"github.com/kart-io/cortex-x/internal/chunker"
	"github.com/kart-io/cortex-x/internal/embedding"
	"github.com/kart-io/cortex-x/internal/extractor"
	"github.com/kart-io/cortex-x/internal/ingest/biz"
	"github.com/kart-io/cortex-x/internal/ingest/handler"
	"github.com/kart-io/cortex-x/internal/ingest/router"
	"github.com/kart-io/cortex-x/pkg/app"
	"github.com/kart-io/cortex-x/pkg/component/milvus"
	"github.com/kart-io/cortex-x/pkg/component/neo4j"
	"github.com/kart-io/cortex-x/pkg/component/postgres"
	"github.com/kart-io/cortex-x/pkg/component/redis"
	"github.com/kart-io/cortex-x/pkg/component/storage"
	"github.com/kart-io/cortex-x/pkg/embedder"
	"github.com/kart-io/cortex-x/pkg/server"
	"github.com/kart-io/cortex-x/pkg/store/chunkstore"
	"github.com/kart-io/cortex-x/pkg/store/graphstore"
	"github.com/kart-io/cortex-x/pkg/store/vectorstore"
)

const (
	appName        = "cortex-ingest"
	appDescription = `Cortex-X Ingest Service

Turns source documents into chunks, embeddings and graph observations.

This server provides:
  - Source item submission with an async staged pipeline
  - Deterministic content-type aware chunking
  - Multi-model embedding fusion and vector indexing
  - Entity and relationship extraction with chunk-level evidence`
)

// NewApp creates a new ingest service application.
func NewApp() *app.App {
	opts := NewOptions()

	return app.NewApp(
		app.WithName(appName),
		app.WithDescription(appDescription),
		app.WithOptions(opts),
		app.WithRunFunc(func() error {
			return Run(opts)
		}),
	)
}

// Run runs the ingest service with the given options.
func Run(opts *Options) error {
	opts.Log.AddInitialField("service.name", appName)
	opts.Log.AddInitialField("service.version", app.GetVersion())
	if err := opts.Log.Init(); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	logger.Infow("starting ingest service")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	manager := storage.NewManager()
	defer func() {
		if err := manager.CloseAll(); err != nil {
			logger.Warnw("failed to close storage clients", "error", err)
		}
	}()

	pgClient, err := postgres.NewWithContext(ctx, opts.Postgres)
	if err != nil {
		return fmt.Errorf("failed to initialize postgres: %w", err)
	}
	manager.MustRegister(pgClient.Name(), pgClient)
	if err := chunkstore.AutoMigrate(pgClient.DB()); err != nil {
		return fmt.Errorf("failed to migrate chunk tables: %w", err)
	}
	if err := graphstore.AutoMigrate(pgClient.DB()); err != nil {
		return fmt.Errorf("failed to migrate graph tables: %w", err)
	}

	redisClient, err := redis.NewWithContext(ctx, opts.Redis)
	if err != nil {
		return fmt.Errorf("failed to initialize redis: %w", err)
	}
	manager.MustRegister(redisClient.Name(), redisClient)

	milvusClient, err := milvus.NewWithContext(ctx, opts.Milvus)
	if err != nil {
		return fmt.Errorf("failed to initialize milvus: %w", err)
	}
	manager.MustRegister(milvusClient.Name(), milvusClient)

	var mirror graphstore.Mirror
	if opts.Neo4j.Enabled {
		neo4jClient, err := neo4j.NewWithContext(ctx, opts.Neo4j)
		if err != nil {
			return fmt.Errorf("failed to initialize neo4j: %w", err)
		}
		manager.MustRegister(neo4jClient.Name(), neo4jClient)
		mirror = graphstore.NewNeo4jMirror(neo4jClient)
	}

	provider, err := embedder.New(opts.Embedder.Provider, opts.Embedder.ToConfigMap())
	if err != nil {
		return fmt.Errorf("failed to initialize embedding provider: %w", err)
	}
	if opts.Embedder.CacheEnabled {
		provider = embedder.NewCachedProvider(provider, redisClient.Client(), &embedder.CacheConfig{
			Enabled:   true,
			TTL:       opts.Embedder.CacheTTL,
			KeyPrefix: "emb:",
		})
	}
	embeddingService := embedding.NewService(opts.Embedding, provider)

	chunks := chunkstore.New(pgClient.DB())
	graph := graphstore.New(pgClient.DB(), mirror)
	vectors := vectorstore.New(milvusClient.RawClient())
	if err := vectors.EnsureCollection(ctx, opts.Vector.Collection, opts.Vector.Dimension); err != nil {
		return fmt.Errorf("failed to ensure vector collection: %w", err)
	}

	ck := chunker.New(opts.Chunker)
	ex := extractor.New(chunks, graph)
	pipeline, err := biz.NewPipeline(ck, embeddingService, ex, chunks, vectors, graph,
		opts.Ingest, opts.Vector.Collection, opts.Vector.Dimension)
	if err != nil {
		return fmt.Errorf("failed to initialize pipeline: %w", err)
	}
	defer pipeline.Close()

	ingestHandler := handler.NewIngestHandler(pipeline)
	graphHandler := handler.NewGraphHandler(ex)

	srv := server.New(appName, opts.Server)
	srv.SetReadyCheck(func(ctx context.Context) error {
		if !manager.AllHealthy(ctx) {
			return fmt.Errorf("storage backends unhealthy")
		}
		return nil
	})
	router.Register(srv, ingestHandler, graphHandler)

	logger.Infow("ingest service is ready")
	return srv.Run(ctx)
}
