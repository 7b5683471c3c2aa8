// Package router wires the ingest service routes.
package router

import (
	"github.com/kart-io/logger"

	"github.com/kart-io/cortex-x/internal/ingest/handler"
	"github.com/kart-io/cortex-x/pkg/server"
)

// Register registers the ingest service routes.
func Register(srv *server.Server, ingestHandler *handler.IngestHandler, graphHandler *handler.GraphHandler) {
	v1 := srv.Engine().Group("/v1")
	{
		v1.POST("/ingest/items", ingestHandler.Submit)
		v1.GET("/ingest/items/:id/status", ingestHandler.Status)
		v1.DELETE("/ingest/items/:id", ingestHandler.Delete)

		v1.POST("/graph/observe", graphHandler.Observe)
	}
	logger.Infow("ingest routes registered")
}
