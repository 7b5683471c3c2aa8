// Package app provides the query service application.
package app

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/kart-io/logger"

	"github.com/kart-io/cortex-x/internal/embedding"
	"github.com/kart-io/cortex-x/internal/query/biz"
	"github.com/kart-io/cortex-x/internal/query/handler"
	"github.com/kart-io/cortex-x/internal/query/router"
	"github.com/kart-io/cortex-x/pkg/app"
	"github.com/kart-io/cortex-x/pkg/component/milvus"
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
	appName        = "cortex-query"
	appDescription = `Cortex-X Query Service

Plans and executes retrieval over the knowledge base.

This server provides:
  - Query planning (vector, graph, hybrid, agentic modes)
  - Hybrid retrieval across vector, chunk and graph stores
  - Token-budgeted context assembly with reranking`
)

// NewApp creates a new query service application.
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

// Run runs the query service with the given options.
func Run(opts *Options) error {
	opts.Log.AddInitialField("service.name", appName)
	opts.Log.AddInitialField("service.version", app.GetVersion())
	if err := opts.Log.Init(); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	logger.Infow("starting query service")

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
	// The query path reads the relational graph only; no neo4j mirror here.
	graph := graphstore.New(pgClient.DB(), nil)
	vectors := vectorstore.New(milvusClient.RawClient())
	if err := vectors.EnsureCollection(ctx, opts.Vector.Collection, opts.Vector.Dimension); err != nil {
		return fmt.Errorf("failed to ensure vector collection: %w", err)
	}

	planner := biz.NewPlanner(opts.Context)
	retriever := biz.NewRetriever(embeddingService, vectors, chunks, graph, opts.Retriever, opts.Vector.Collection)
	builder := biz.NewContextBuilder(opts.Context)
	cache := biz.NewQueryCache(redisClient.Client())
	queryService := biz.NewService(planner, retriever, builder, cache, opts.Retriever)

	queryHandler := handler.NewQueryHandler(queryService)

	srv := server.New(appName, opts.Server)
	srv.SetReadyCheck(func(ctx context.Context) error {
		if !manager.AllHealthy(ctx) {
			return fmt.Errorf("storage backends unhealthy")
		}
		return nil
	})
	router.Register(srv, queryHandler)

	logger.Infow("query service is ready")
	return srv.Run(ctx)
}
