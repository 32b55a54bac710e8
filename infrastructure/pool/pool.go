// Package pool implements the client pool: a bounded set of vector-
// database connection handles with health checking, retry, and recycling,
// built on github.com/jolestar/go-commons-pool/v2.
package pool

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	commonspool "github.com/jolestar/go-commons-pool/v2"

	"github.com/codemem/engine/errs"
)

// Connection is the opaque vector-database handle the pool owns
// exclusively; callers borrow it under a scoped lease.
type Connection interface {
	// Ping is the fast health check that must complete under a low
	// millisecond budget.
	Ping(ctx context.Context) error
	// Close releases any underlying resource (socket, file handle).
	Close(ctx context.Context) error
}

// Factory constructs new Connections on demand.
type Factory func(ctx context.Context) (Connection, error)

// Metrics is the pool's observable counter set.
type Metrics struct {
	PoolSize            int
	Active              int
	Idle                int
	TotalAcquires       int64
	TotalReleases       int64
	TotalTimeouts       int64
	AverageAcquireNanos int64
	HealthFailures      int64
	Created             int64
	Recycled            int64
	Failed              int64
}

type commonsFactory struct {
	pool    *Pool
	newConn Factory
}

func (f *commonsFactory) MakeObject(ctx context.Context) (*commonspool.PooledObject, error) {
	conn, err := f.newConn(ctx)
	if err != nil {
		atomic.AddInt64(&f.pool.failed, 1)
		return nil, err
	}
	atomic.AddInt64(&f.pool.created, 1)
	return commonspool.NewPooledObject(&leasedConn{conn: conn, createdAt: time.Now()}), nil
}

func (f *commonsFactory) DestroyObject(ctx context.Context, object *commonspool.PooledObject) error {
	lc := object.Object.(*leasedConn)
	return lc.conn.Close(ctx)
}

func (f *commonsFactory) ValidateObject(ctx context.Context, object *commonspool.PooledObject) bool {
	lc := object.Object.(*leasedConn)
	if time.Since(lc.createdAt) > f.pool.maxAge {
		atomic.AddInt64(&f.pool.recycled, 1)
		return false
	}
	healthCtx, cancel := context.WithTimeout(ctx, f.pool.healthCheckBudget)
	defer cancel()
	if err := lc.conn.Ping(healthCtx); err != nil {
		atomic.AddInt64(&f.pool.healthFailures, 1)
		return false
	}
	return true
}

func (f *commonsFactory) ActivateObject(ctx context.Context, object *commonspool.PooledObject) error {
	return nil
}

func (f *commonsFactory) PassivateObject(ctx context.Context, object *commonspool.PooledObject) error {
	return nil
}

type leasedConn struct {
	conn      Connection
	createdAt time.Time
}

// Pool is the Client Pool: min/max sizing, acquire-with-health-check-and-
// retry-once, background idle validation, metrics.
type Pool struct {
	underlying        *commonspool.ObjectPool
	maxSize           int
	maxAge            time.Duration
	healthCheckBudget time.Duration
	acquireTimeout    time.Duration

	mu             sync.Mutex
	acquireLatency time.Duration
	acquireCount   int64

	created        int64
	recycled       int64
	failed         int64
	healthFailures int64
	timeouts       int64
	releases       int64
}

// Config configures a new Pool.
type Config struct {
	MinSize             int
	MaxSize             int
	AcquireTimeout      time.Duration
	MaxAge              time.Duration
	HealthCheckBudget   time.Duration
	HealthCheckInterval time.Duration
}

// New builds a Pool around newConn, pre-warming MinSize connections.
func New(ctx context.Context, cfg Config, newConn Factory) (*Pool, error) {
	p := &Pool{
		maxSize:           cfg.MaxSize,
		maxAge:            cfg.MaxAge,
		healthCheckBudget: cfg.HealthCheckBudget,
		acquireTimeout:    cfg.AcquireTimeout,
	}
	factory := &commonsFactory{pool: p, newConn: newConn}

	poolCfg := commonspool.NewDefaultPoolConfig()
	poolCfg.MaxTotal = cfg.MaxSize
	poolCfg.MaxIdle = cfg.MaxSize
	poolCfg.MinIdle = cfg.MinSize
	poolCfg.TestOnBorrow = true
	poolCfg.TestWhileIdle = true
	poolCfg.BlockWhenExhausted = true
	// Acquire's own context deadline bounds the wait; the background
	// evictor validates idle connections on this interval.
	poolCfg.TimeBetweenEvictionRuns = cfg.HealthCheckInterval

	p.underlying = commonspool.NewObjectPool(ctx, factory, poolCfg)

	for i := 0; i < cfg.MinSize; i++ {
		if err := p.underlying.AddObject(ctx); err != nil {
			return nil, errs.StorageError("pool.prewarm", err)
		}
	}
	return p, nil
}

// Lease is a scoped handle: the caller must call Release on every exit
// path, including failure.
type Lease struct {
	pool *Pool
	obj  any
	conn Connection
}

// Conn returns the leased Connection.
func (l *Lease) Conn() Connection { return l.conn }

// Release returns the connection to the pool, or discards it when it is
// older than the pool's max age.
func (l *Lease) Release(ctx context.Context) {
	atomic.AddInt64(&l.pool.releases, 1)
	if lc, ok := l.obj.(*leasedConn); ok && l.pool.maxAge > 0 && time.Since(lc.createdAt) > l.pool.maxAge {
		atomic.AddInt64(&l.pool.recycled, 1)
		_ = l.pool.underlying.InvalidateObject(ctx, l.obj)
		return
	}
	_ = l.pool.underlying.ReturnObject(ctx, l.obj)
}

// Invalidate tells the pool this connection is bad and must not be
// re-queued.
func (l *Lease) Invalidate(ctx context.Context) {
	atomic.AddInt64(&l.pool.releases, 1)
	_ = l.pool.underlying.InvalidateObject(ctx, l.obj)
}

// Acquire borrows a connection. On health-check failure the pool retries
// the acquire once before failing with errs.KindPoolExhausted.
func (p *Pool) Acquire(ctx context.Context) (*Lease, error) {
	start := time.Now()
	acquireCtx := ctx
	if p.acquireTimeout > 0 {
		var cancel context.CancelFunc
		acquireCtx, cancel = context.WithTimeout(ctx, p.acquireTimeout)
		defer cancel()
	}

	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		obj, err := p.underlying.BorrowObject(acquireCtx)
		if err != nil {
			lastErr = err
			// The caller's own deadline expiring is a timeout; the pool's
			// acquire_timeout expiring means exhaustion.
			if ctx.Err() != nil {
				atomic.AddInt64(&p.timeouts, 1)
				return nil, errs.Timeout("pool.acquire")
			}
			if acquireCtx.Err() != nil {
				atomic.AddInt64(&p.timeouts, 1)
				return nil, errs.PoolExhausted(p.maxSize)
			}
			continue
		}
		lc, ok := obj.(*leasedConn)
		if !ok {
			lastErr = errs.Internal("pool returned unexpected object type")
			continue
		}
		p.recordAcquire(time.Since(start))
		return &Lease{pool: p, obj: lc, conn: lc.conn}, nil
	}
	if lastErr != nil {
		return nil, errs.PoolExhausted(p.maxSize)
	}
	return nil, errs.PoolExhausted(p.maxSize)
}

func (p *Pool) recordAcquire(d time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.acquireCount++
	p.acquireLatency += d
}

// Close shuts the pool down, closing every pooled connection.
func (p *Pool) Close(ctx context.Context) error {
	p.underlying.Close(ctx)
	return nil
}

// Metrics returns a snapshot of the observable counters.
func (p *Pool) Metrics() Metrics {
	p.mu.Lock()
	defer p.mu.Unlock()
	var avg int64
	if p.acquireCount > 0 {
		avg = p.acquireLatency.Nanoseconds() / p.acquireCount
	}
	return Metrics{
		PoolSize:            int(p.underlying.GetNumActive() + p.underlying.GetNumIdle()),
		Active:              int(p.underlying.GetNumActive()),
		Idle:                int(p.underlying.GetNumIdle()),
		TotalAcquires:       p.acquireCount,
		TotalReleases:       atomic.LoadInt64(&p.releases),
		TotalTimeouts:       atomic.LoadInt64(&p.timeouts),
		AverageAcquireNanos: avg,
		HealthFailures:      atomic.LoadInt64(&p.healthFailures),
		Created:             atomic.LoadInt64(&p.created),
		Recycled:            atomic.LoadInt64(&p.recycled),
		Failed:              atomic.LoadInt64(&p.failed),
	}
}
