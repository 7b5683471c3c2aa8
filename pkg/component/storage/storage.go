// Package storage defines the common contract shared by all backing-store
// clients (PostgreSQL, Redis, Milvus, Neo4j) and a registry for managing
// their lifecycle together.
package storage

import (
	"context"
	"time"
)

// Client is the minimal interface every backing-store client implements.
type Client interface {
	// Name returns the storage type identifier, e.g. "postgres".
	Name() string

	// Ping verifies connectivity to the backing store.
	Ping(ctx context.Context) error

	// Close releases the client's resources. Safe to call more than once.
	Close() error
}

// HealthChecker reports the current health of a single client.
type HealthChecker func() error

// HealthStatus is the result of one health probe.
type HealthStatus struct {
	Name    string        `json:"name"`
	Healthy bool          `json:"healthy"`
	Latency time.Duration `json:"latency"`
	Error   error         `json:"error,omitempty"`
}
