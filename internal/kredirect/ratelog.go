package kredirect

import (
	"context"
	"log/slog"
	"sync"
	"time"

	slogcontext "github.com/veqryn/slog-context"
)

// rateLimitedLogger drops warnings for a key that repeat within interval.
// Used for origin failures, which otherwise log once per cache expiry.
type rateLimitedLogger struct {
	interval time.Duration

	mu     sync.Mutex
	lastAt map[string]time.Time
}

func newRateLimitedLogger(interval time.Duration) *rateLimitedLogger {
	return &rateLimitedLogger{interval: interval, lastAt: map[string]time.Time{}}
}

func (l *rateLimitedLogger) Warn(ctx context.Context, key, msg string, args ...any) {
	if !l.allow(key) {
		return
	}
	slogcontext.FromCtx(ctx).Warn(msg, append(args, slog.String("throttle", l.interval.String()))...)
}

func (l *rateLimitedLogger) allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := time.Now()
	if last, ok := l.lastAt[key]; ok && now.Sub(last) < l.interval {
		return false
	}
	l.lastAt[key] = now
	return true
}
