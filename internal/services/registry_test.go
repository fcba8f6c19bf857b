package services

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubProvider struct {
	BaseProvider
	err    error
	delay  time.Duration
	closed bool
}

func (p *stubProvider) HealthCheck(ctx context.Context) error {
	select {
	case <-time.After(p.delay):
		return p.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *stubProvider) Close() error {
	p.closed = true
	return nil
}

func TestRegistryHealthCheckAll(t *testing.T) {
	r := NewRegistry()
	r.checkTimeout = 50 * time.Millisecond

	down := errors.New("connection refused")
	r.Register("db", &stubProvider{BaseProvider: BaseProvider{serviceType: "postgres"}})
	r.Register("cache", &stubProvider{BaseProvider: BaseProvider{serviceType: "redis"}, err: down})
	r.Register("slow", &stubProvider{BaseProvider: BaseProvider{serviceType: "redis"}, delay: time.Second})

	results := r.HealthCheckAll(context.Background())
	require.Len(t, results, 3)
	assert.NoError(t, results["db"])
	assert.ErrorIs(t, results["cache"], down)
	assert.ErrorIs(t, results["slow"], context.DeadlineExceeded)
}

func TestRegistryLifecycle(t *testing.T) {
	r := NewRegistry()
	db := &stubProvider{BaseProvider: BaseProvider{serviceType: "postgres"}}
	cache := &stubProvider{BaseProvider: BaseProvider{serviceType: "redis"}}
	r.Register("redis", cache)
	r.Register("postgres", db)

	assert.Equal(t, []string{"postgres", "redis"}, r.List())
	assert.Equal(t, "redis", r.Get("redis").Type())

	r.Unregister("redis")
	assert.Nil(t, r.Get("redis"))

	require.NoError(t, r.CloseAll())
	assert.True(t, db.closed)
	assert.False(t, cache.closed)
	assert.Empty(t, r.List())
}

func TestRedisProvider(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDRESS")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDRESS not set")
	}

	p, err := NewRedisProvider(context.Background(), addr, "", 0)
	require.NoError(t, err)
	defer p.Close()

	assert.Equal(t, "redis", p.Type())
	assert.NoError(t, p.HealthCheck(context.Background()))
}

func TestPostgresProvider(t *testing.T) {
	dsn := os.Getenv("TEST_DATABASE_DSN")
	if dsn == "" {
		t.Skip("TEST_DATABASE_DSN not set")
	}

	p, err := NewPostgresProvider(context.Background(), dsn)
	require.NoError(t, err)
	defer p.Close()

	assert.Equal(t, "postgres", p.Type())
	assert.NoError(t, p.HealthCheck(context.Background()))
}
