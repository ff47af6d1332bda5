package kredirect

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	slogcontext "github.com/veqryn/slog-context"
)

// lockedBuffer is a bytes.Buffer safe for a logger and a test to share.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func bufferLogger(ctx context.Context) (context.Context, *lockedBuffer) {
	buf := &lockedBuffer{}
	logger := slog.New(slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	return slogcontext.NewCtx(ctx, logger), buf
}

func TestRateLimitedLoggerAllow(t *testing.T) {
	l := newRateLimitedLogger(50 * time.Millisecond)

	assert.True(t, l.allow("a"))
	assert.False(t, l.allow("a"), "repeat within the interval is dropped")
	assert.True(t, l.allow("b"), "keys are throttled independently")

	time.Sleep(60 * time.Millisecond)
	assert.True(t, l.allow("a"))
}

func TestRateLimitedLoggerWarn(t *testing.T) {
	ctx, buf := bufferLogger(context.Background())
	l := newRateLimitedLogger(time.Hour)

	for i := 0; i < 3; i++ {
		l.Warn(ctx, "https://kernel.org/releases.json", "origin fetch failed", "attempt", i)
	}
	l.Warn(ctx, "https://kernel.org/pub/linux/kernel/v6.x/", "origin fetch failed")

	out := buf.String()
	assert.Equal(t, 2, strings.Count(out, "origin fetch failed"))
	assert.Contains(t, out, "attempt=0")
	assert.NotContains(t, out, "attempt=1")
	assert.Contains(t, out, "throttle=1h0m0s")
}
