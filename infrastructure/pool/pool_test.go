package pool_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codemem/engine/errs"
	"github.com/codemem/engine/infrastructure/pool"
)

type fakeConn struct {
	healthy bool
	closed  bool
}

func (c *fakeConn) Ping(ctx context.Context) error {
	if !c.healthy {
		return assertErr
	}
	return nil
}

func (c *fakeConn) Close(ctx context.Context) error {
	c.closed = true
	return nil
}

var assertErr = &poolTestError{"unhealthy"}

type poolTestError struct{ msg string }

func (e *poolTestError) Error() string { return e.msg }

func TestPool_AcquireRelease_RoundTrips(t *testing.T) {
	ctx := context.Background()
	p, err := pool.New(ctx, pool.Config{
		MinSize: 1, MaxSize: 3,
		AcquireTimeout: time.Second, MaxAge: time.Hour,
		HealthCheckBudget: 50 * time.Millisecond, HealthCheckInterval: time.Minute,
	}, func(ctx context.Context) (pool.Connection, error) {
		return &fakeConn{healthy: true}, nil
	})
	require.NoError(t, err)
	defer p.Close(ctx)

	lease, err := p.Acquire(ctx)
	require.NoError(t, err)
	require.NotNil(t, lease.Conn())
	lease.Release(ctx)

	metrics := p.Metrics()
	assert.GreaterOrEqual(t, metrics.TotalAcquires, int64(1))
}

func TestPool_GrowsUpToMaxSize(t *testing.T) {
	ctx := context.Background()
	p, err := pool.New(ctx, pool.Config{
		MinSize: 0, MaxSize: 2,
		AcquireTimeout: time.Second, MaxAge: time.Hour,
		HealthCheckBudget: 50 * time.Millisecond, HealthCheckInterval: time.Minute,
	}, func(ctx context.Context) (pool.Connection, error) {
		return &fakeConn{healthy: true}, nil
	})
	require.NoError(t, err)
	defer p.Close(ctx)

	l1, err := p.Acquire(ctx)
	require.NoError(t, err)
	l2, err := p.Acquire(ctx)
	require.NoError(t, err)

	l1.Release(ctx)
	l2.Release(ctx)
}

func TestPool_ExhaustionAfterAcquireTimeout(t *testing.T) {
	ctx := context.Background()
	p, err := pool.New(ctx, pool.Config{
		MinSize: 0, MaxSize: 1,
		AcquireTimeout: 50 * time.Millisecond, MaxAge: time.Hour,
		HealthCheckBudget: 50 * time.Millisecond, HealthCheckInterval: time.Minute,
	}, func(ctx context.Context) (pool.Connection, error) {
		return &fakeConn{healthy: true}, nil
	})
	require.NoError(t, err)
	defer p.Close(ctx)

	lease, err := p.Acquire(ctx)
	require.NoError(t, err)
	defer lease.Release(ctx)

	_, err = p.Acquire(ctx)
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.KindPoolExhausted))
}
