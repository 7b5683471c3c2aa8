// Package neo4j provides the optional Neo4j driver wrapper used by the
// graph store mirror.
package neo4j

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/kart-io/cortex-x/pkg/component/storage"
	neo4jopts "github.com/kart-io/cortex-x/pkg/options/neo4j"
)

// Client wraps the Neo4j driver.
type Client struct {
	driver neo4j.DriverWithContext
	opts   *neo4jopts.Options
}

var _ storage.Client = (*Client)(nil)

// New creates a new Neo4j client and verifies connectivity.
func New(opts *neo4jopts.Options) (*Client, error) {
	return NewWithContext(context.Background(), opts)
}

// NewWithContext creates a new Neo4j client with the given context.
func NewWithContext(ctx context.Context, opts *neo4jopts.Options) (*Client, error) {
	if opts == nil {
		return nil, fmt.Errorf("neo4j options cannot be nil")
	}
	if errs := opts.Validate(); len(errs) > 0 {
		return nil, fmt.Errorf("invalid neo4j options: %v", errs)
	}

	driver, err := neo4j.NewDriverWithContext(opts.URI, neo4j.BasicAuth(opts.Username, opts.Password, ""))
	if err != nil {
		return nil, fmt.Errorf("failed to create neo4j driver: %w", err)
	}

	verifyCtx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	if err := driver.VerifyConnectivity(verifyCtx); err != nil {
		_ = driver.Close(ctx)
		return nil, fmt.Errorf("failed to verify neo4j connectivity: %w", err)
	}

	return &Client{driver: driver, opts: opts}, nil
}

// Name returns the storage type identifier.
func (c *Client) Name() string {
	return "neo4j"
}

// Ping verifies connectivity to the Neo4j server.
func (c *Client) Ping(ctx context.Context) error {
	pingCtx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
	defer cancel()
	return c.driver.VerifyConnectivity(pingCtx)
}

// Close closes the driver and all pooled connections.
func (c *Client) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), c.opts.Timeout)
	defer cancel()
	return c.driver.Close(ctx)
}

// Driver returns the underlying Neo4j driver.
func (c *Client) Driver() neo4j.DriverWithContext {
	return c.driver
}

// Database returns the configured database name.
func (c *Client) Database() string {
	return c.opts.Database
}

// ExecuteWrite runs a unit of work in a write session against the configured
// database.
func (c *Client) ExecuteWrite(ctx context.Context, work neo4j.ManagedTransactionWork) (any, error) {
	session := c.driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   neo4j.AccessModeWrite,
		DatabaseName: c.opts.Database,
	})
	defer func() { _ = session.Close(ctx) }()

	return session.ExecuteWrite(ctx, work)
}

// ExecuteRead runs a unit of work in a read session against the configured
// database.
func (c *Client) ExecuteRead(ctx context.Context, work neo4j.ManagedTransactionWork) (any, error) {
	session := c.driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   neo4j.AccessModeRead,
		DatabaseName: c.opts.Database,
	})
	defer func() { _ = session.Close(ctx) }()

	return session.ExecuteRead(ctx, work)
}
