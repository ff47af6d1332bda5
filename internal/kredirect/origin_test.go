package kredirect

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestOrigin(t *testing.T, cfg Config) *Origin {
	t.Helper()
	o, err := NewOrigin(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = o.Close() })
	return o
}

func TestOriginConditionalRevalidation(t *testing.T) {
	var full, notModified atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "kredirect", r.Header.Get("User-Agent"))
		if r.Header.Get("If-None-Match") == `"v1"` {
			notModified.Add(1)
			w.WriteHeader(http.StatusNotModified)
			return
		}
		full.Add(1)
		w.Header().Set("ETag", `"v1"`)
		_, _ = w.Write([]byte("payload"))
	}))
	defer srv.Close()

	o := newTestOrigin(t, DefaultConfig())
	ctx := context.Background()

	body, err := o.Get(ctx, srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(body))

	body, err = o.Get(ctx, srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(body))

	assert.Equal(t, int64(1), full.Load())
	assert.Equal(t, int64(1), notModified.Load())

	ss := o.stats.Snapshot()
	assert.Equal(t, uint64(1), ss.Fetches)
	assert.Equal(t, uint64(1), ss.Revalidations)
	count, size := o.store.Usage()
	assert.Equal(t, 1, count)
	assert.Equal(t, uint64(len("payload")), size)
}

func TestOriginLastModifiedRevalidation(t *testing.T) {
	const stamp = "Wed, 13 Sep 2023 08:00:00 GMT"
	var full, notModified atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("If-None-Match"))
		if r.Header.Get("If-Modified-Since") == stamp {
			notModified.Add(1)
			w.WriteHeader(http.StatusNotModified)
			return
		}
		full.Add(1)
		w.Header().Set("Last-Modified", stamp)
		_, _ = w.Write([]byte("Linux-Maximum: 6.5\n"))
	}))
	defer srv.Close()

	o := newTestOrigin(t, DefaultConfig())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		body, err := o.Get(ctx, srv.URL)
		require.NoError(t, err)
		assert.Equal(t, "Linux-Maximum: 6.5\n", string(body))
	}

	assert.Equal(t, int64(1), full.Load())
	assert.Equal(t, int64(2), notModified.Load())
	assert.Equal(t, uint64(2), o.stats.Snapshot().Revalidations)

	p, ok := o.store.Peek(srv.URL)
	require.True(t, ok)
	assert.Equal(t, stamp, p.LastModified)
	assert.Empty(t, p.ETag)
}

func TestOriginWithoutValidatorsIsNotStored(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("If-None-Match"))
		assert.Empty(t, r.Header.Get("If-Modified-Since"))
		_, _ = w.Write([]byte("plain"))
	}))
	defer srv.Close()

	o := newTestOrigin(t, DefaultConfig())
	for i := 0; i < 2; i++ {
		body, err := o.Get(context.Background(), srv.URL)
		require.NoError(t, err)
		assert.Equal(t, "plain", string(body))
	}
	count, _ := o.store.Usage()
	assert.Zero(t, count)
}

func TestOriginStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone fishing", http.StatusBadGateway)
	}))
	defer srv.Close()

	o := newTestOrigin(t, DefaultConfig())
	_, err := o.Get(context.Background(), srv.URL)

	var ferr *FetchError
	require.True(t, errors.As(err, &ferr))
	assert.Equal(t, http.StatusBadGateway, ferr.StatusCode)
	assert.Equal(t, srv.URL, ferr.URL)
	assert.Contains(t, ferr.Err.Error(), "gone fishing")
	assert.Equal(t, uint64(1), o.stats.Snapshot().Failures)
}

func TestOriginBodyLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(make([]byte, 2048))
	}))
	defer srv.Close()

	cfg := DefaultConfig()
	cfg.Origin.maxBytes = 1024
	o := newTestOrigin(t, cfg)

	_, err := o.Get(context.Background(), srv.URL)
	var ferr *FetchError
	require.True(t, errors.As(err, &ferr))
	assert.Contains(t, err.Error(), "body exceeds 1kb")
}

func TestOriginTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	cfg := DefaultConfig()
	cfg.Origin.timeoutDur = 50 * time.Millisecond
	o := newTestOrigin(t, cfg)

	_, err := o.Get(context.Background(), srv.URL)
	var ferr *FetchError
	require.True(t, errors.As(err, &ferr))
	assert.Zero(t, ferr.StatusCode)
}
