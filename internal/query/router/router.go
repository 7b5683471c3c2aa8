// Package router wires the query service routes.
package router

import (
	"github.com/kart-io/logger"

	"github.com/kart-io/cortex-x/internal/query/handler"
	"github.com/kart-io/cortex-x/pkg/server"
)

// Register registers the query service routes.
func Register(srv *server.Server, queryHandler *handler.QueryHandler) {
	v1 := srv.Engine().Group("/v1")
	{
		v1.POST("/query", queryHandler.Query)
		v1.DELETE("/query/cache", queryHandler.ClearCache)
	}
	logger.Infow("query routes registered")
}
