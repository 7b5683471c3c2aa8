// Package milvus provides the Milvus connection wrapper. Collection schema
// management and search live in the vector store built on top of it.
package milvus

import (
	"context"
	"fmt"

	"github.com/milvus-io/milvus/client/v2/milvusclient"

	"github.com/kart-io/cortex-x/pkg/component/storage"
	milvusopts "github.com/kart-io/cortex-x/pkg/options/milvus"
)

// Client wraps the Milvus SDK client.
type Client struct {
	client *milvusclient.Client
	opts   *milvusopts.Options
}

var _ storage.Client = (*Client)(nil)

// New creates a new Milvus client and verifies the connection.
func New(opts *milvusopts.Options) (*Client, error) {
	return NewWithContext(context.Background(), opts)
}

// NewWithContext creates a new Milvus client with the given context.
func NewWithContext(ctx context.Context, opts *milvusopts.Options) (*Client, error) {
	if opts == nil {
		return nil, fmt.Errorf("milvus options cannot be nil")
	}
	if errs := opts.Validate(); len(errs) > 0 {
		return nil, fmt.Errorf("invalid milvus options: %v", errs)
	}

	connectCtx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	c, err := milvusclient.New(connectCtx, &milvusclient.ClientConfig{
		Address:  opts.Address,
		Username: opts.Username,
		Password: opts.Password,
		DBName:   opts.Database,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to milvus: %w", err)
	}

	return &Client{client: c, opts: opts}, nil
}

// Name returns the storage type identifier.
func (c *Client) Name() string {
	return "milvus"
}

// Ping verifies connectivity by listing collections.
func (c *Client) Ping(ctx context.Context) error {
	pingCtx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
	defer cancel()

	if _, err := c.client.ListCollections(pingCtx, milvusclient.NewListCollectionOption()); err != nil {
		return fmt.Errorf("milvus ping failed: %w", err)
	}
	return nil
}

// Close closes the Milvus client connection.
func (c *Client) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), c.opts.Timeout)
	defer cancel()
	return c.client.Close(ctx)
}

// RawClient returns the underlying Milvus SDK client.
func (c *Client) RawClient() *milvusclient.Client {
	return c.client
}
