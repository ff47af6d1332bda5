package kredirect

import (
	"context"
	"sync"
	"time"

	slogcontext "github.com/veqryn/slog-context"
	"k8s.io/utils/clock"
)

const (
	DefaultTTL = 60 * time.Second
	// DefaultInitialStaleness backdates a new entry so the first Get always
	// refreshes instead of serving the empty zero value.
	DefaultInitialStaleness = 2 * DefaultTTL
)

// RefreshFunc produces a new snapshot. On failure it still returns the value
// to store under ReplaceOnFailure, normally the empty snapshot.
type RefreshFunc[T any] func(ctx context.Context) (T, error)

// FailurePolicy decides what a failed refresh does to the cached value.
type FailurePolicy int

const (
	// ReplaceOnFailure stores whatever the failed refresh returned.
	ReplaceOnFailure FailurePolicy = iota
	// KeepLastGood keeps the previous value. The refresh timestamp still
	// advances, so a failing origin is retried once per TTL at most.
	KeepLastGood
)

func (p FailurePolicy) String() string {
	if p == KeepLastGood {
		return "keep-last-good"
	}
	return "replace-on-failure"
}

type cacheOptions struct {
	clock     clock.PassiveClock
	ttl       time.Duration
	staleness time.Duration
	policy    FailurePolicy
}

// CacheOption configures a ReleaseCache.
type CacheOption func(*cacheOptions)

func WithClock(c clock.PassiveClock) CacheOption {
	return func(o *cacheOptions) { o.clock = c }
}

// WithTTL sets the time to live. The initial staleness follows at twice the
// TTL unless set explicitly.
func WithTTL(ttl time.Duration) CacheOption {
	return func(o *cacheOptions) {
		o.ttl = ttl
		o.staleness = 2 * ttl
	}
}

func WithInitialStaleness(d time.Duration) CacheOption {
	return func(o *cacheOptions) { o.staleness = d }
}

func WithFailurePolicy(p FailurePolicy) CacheOption {
	return func(o *cacheOptions) { o.policy = p }
}

// ReleaseCache is a read-through cache holding a single snapshot.
//
// Every Get takes the same mutex, readers included. The first caller after
// expiry refreshes while holding it; callers queued behind it then find a
// fresh entry and return without refreshing, so each expiry window sees at
// most one refresh.
type ReleaseCache[T any] struct {
	name    string
	refresh RefreshFunc[T]
	clock   clock.PassiveClock
	ttl     time.Duration
	policy  FailurePolicy

	mu            sync.Mutex
	value         T
	lastRefreshed time.Time
}

func NewReleaseCache[T any](name string, refresh RefreshFunc[T], opts ...CacheOption) *ReleaseCache[T] {
	o := cacheOptions{
		clock:     clock.RealClock{},
		ttl:       DefaultTTL,
		staleness: DefaultInitialStaleness,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return &ReleaseCache[T]{
		name:          name,
		refresh:       refresh,
		clock:         o.clock,
		ttl:           o.ttl,
		policy:        o.policy,
		lastRefreshed: o.clock.Now().Add(-o.staleness),
	}
}

func (c *ReleaseCache[T]) Name() string { return c.name }

// Get returns the cached snapshot, refreshing it first if it has expired.
func (c *ReleaseCache[T]) Get(ctx context.Context) T {
	v, _ := c.Load(ctx)
	return v
}

// Load is Get that also returns when the value it hands out was refreshed.
// Both are read under the same lock acquisition.
func (c *ReleaseCache[T]) Load(ctx context.Context) (T, time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.clock.Since(c.lastRefreshed) <= c.ttl {
		cacheRequests.WithLabelValues(c.name, resultHit).Inc()
		return c.value, c.lastRefreshed
	}
	cacheRequests.WithLabelValues(c.name, resultRefresh).Inc()
	c.refreshLocked(ctx)
	return c.value, c.lastRefreshed
}

func (c *ReleaseCache[T]) refreshLocked(ctx context.Context) {
	logger := slogcontext.FromCtx(ctx).With("realm", "cache", "cache", c.name)

	// Waiters queued on the mutex depend on this refresh, so it must not be
	// cut short by the requester that happened to trigger it.
	start := c.clock.Now()
	v, err := c.refresh(context.WithoutCancel(ctx))
	elapsed := c.clock.Since(start)
	cacheRefreshDuration.WithLabelValues(c.name).Observe(elapsed.Seconds())

	if err != nil {
		cacheRefreshes.WithLabelValues(c.name, resultFailure).Inc()
		logger.Warn("refresh failed", "error", err, "policy", c.policy.String(), "duration", elapsed)
		if c.policy != KeepLastGood {
			c.value = v
		}
	} else {
		cacheRefreshes.WithLabelValues(c.name, resultSuccess).Inc()
		logger.Debug("refreshed", "duration", elapsed)
		c.value = v
	}
	c.lastRefreshed = c.clock.Now()
}
