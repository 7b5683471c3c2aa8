package storage

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClient struct {
	name    string
	pingErr error
	closed  bool
}

func (f *fakeClient) Name() string                 { return f.name }
func (f *fakeClient) Ping(_ context.Context) error { return f.pingErr }
func (f *fakeClient) Close() error                 { f.closed = true; return nil }

func TestManagerRegisterAndGet(t *testing.T) {
	mgr := NewManager()

	require.NoError(t, mgr.Register("primary", &fakeClient{name: "postgres"}))
	assert.Error(t, mgr.Register("primary", &fakeClient{name: "postgres"}))
	assert.Error(t, mgr.Register("", &fakeClient{name: "redis"}))
	assert.Error(t, mgr.Register("cache", nil))

	client, err := mgr.Get("primary")
	require.NoError(t, err)
	assert.Equal(t, "postgres", client.Name())

	_, err = mgr.Get("missing")
	assert.Error(t, err)

	assert.True(t, mgr.Has("primary"))
	assert.ElementsMatch(t, []string{"primary"}, mgr.List())
}

func TestManagerHealthCheckAll(t *testing.T) {
	mgr := NewManager()
	mgr.MustRegister("good", &fakeClient{name: "redis"})
	mgr.MustRegister("bad", &fakeClient{name: "milvus", pingErr: errors.New("connection refused")})

	statuses := mgr.HealthCheckAll(context.Background())
	require.Len(t, statuses, 2)
	assert.True(t, statuses["good"].Healthy)
	assert.False(t, statuses["bad"].Healthy)
	assert.False(t, mgr.AllHealthy(context.Background()))
}

func TestManagerCloseAll(t *testing.T) {
	mgr := NewManager()
	a := &fakeClient{name: "postgres"}
	b := &fakeClient{name: "redis"}
	mgr.MustRegister("a", a)
	mgr.MustRegister("b", b)

	require.NoError(t, mgr.CloseAll())
	assert.True(t, a.closed)
	assert.True(t, b.closed)
	assert.Empty(t, mgr.List())
}
