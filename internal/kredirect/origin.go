package kredirect

import (
	"context"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	slogcontext "github.com/veqryn/slog-context"
)

// Origin fetches feed documents. Bodies that come with validators are kept in
// an in-memory payload store so the next fetch can be a conditional request.
type Origin struct {
	httpClient *http.Client
	userAgent  string
	maxBytes   int64

	store   *payloadStore
	stats   *fetchStats
	failLog *rateLimitedLogger
}

// NewOrigin builds an Origin from the origin section of cfg. Every request is
// bounded by the configured timeout, so a hung upstream cannot hold a cache
// lock forever.
func NewOrigin(cfg Config) (*Origin, error) {
	store, err := newPayloadStore()
	if err != nil {
		return nil, err
	}
	return &Origin{
		httpClient: &http.Client{Timeout: cfg.Origin.timeoutDur},
		userAgent:  cfg.Origin.UserAgent,
		maxBytes:   cfg.Origin.maxBytes,
		store:      store,
		stats:      newFetchStats(),
		failLog:    newRateLimitedLogger(1 * time.Minute),
	}, nil
}

func (o *Origin) Close() error {
	return o.store.Close()
}

// Get returns the body served at rawURL. A 304 answer to a conditional
// request yields the stored body. Any other non-2xx status or transport
// failure is reported as a *FetchError.
func (o *Origin) Get(ctx context.Context, rawURL string) ([]byte, error) {
	host := hostOf(rawURL)
	start := time.Now()
	defer func() {
		originFetchDuration.WithLabelValues(host).Observe(time.Since(start).Seconds())
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, &FetchError{URL: rawURL, Err: err}
	}
	req.Header.Set("User-Agent", o.userAgent)

	prev, havePrev := o.store.Peek(rawURL)
	if havePrev {
		if prev.ETag != "" {
			req.Header.Set("If-None-Match", prev.ETag)
		}
		if prev.LastModified != "" {
			req.Header.Set("If-Modified-Since", prev.LastModified)
		}
	}

	resp, err := o.httpClient.Do(req)
	if err != nil {
		return nil, o.fail(ctx, host, &FetchError{URL: rawURL, Err: err})
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotModified && havePrev {
		_, _ = io.Copy(io.Discard, resp.Body)
		originFetches.WithLabelValues(host, resultNotMod).Inc()
		o.stats.ObserveRevalidation()
		slogcontext.FromCtx(ctx).Debug("origin not modified", "url", rawURL)
		return prev.Body, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, o.fail(ctx, host, &FetchError{
			URL:        rawURL,
			StatusCode: resp.StatusCode,
			Err:        errors.New(strings.TrimSpace(string(b))),
		})
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, o.maxBytes+1))
	if err != nil {
		return nil, o.fail(ctx, host, &FetchError{URL: rawURL, Err: err})
	}
	if int64(len(body)) > o.maxBytes {
		return nil, o.fail(ctx, host, &FetchError{
			URL: rawURL,
			Err: fmt.Errorf("body exceeds %s", formatBytes(uint64(o.maxBytes))),
		})
	}

	originFetches.WithLabelValues(host, resultSuccess).Inc()
	o.stats.ObserveBody(len(body))

	p := StoredPayload{
		Body:         body,
		ETag:         resp.Header.Get("ETag"),
		LastModified: resp.Header.Get("Last-Modified"),
		FetchedAt:    time.Now().Unix(),
		Hash32:       crc32.ChecksumIEEE(body),
	}
	if havePrev && prev.Hash32 == p.Hash32 {
		slogcontext.FromCtx(ctx).Debug("origin payload unchanged", "url", rawURL)
	}
	if p.ETag == "" && p.LastModified == "" {
		// nothing to revalidate with next time
		if havePrev {
			_ = o.store.Delete(rawURL)
		}
		return body, nil
	}
	if err := o.store.Put(rawURL, p); err != nil {
		slogcontext.FromCtx(ctx).Warn("store payload", "url", rawURL, "error", err)
	}
	return body, nil
}

func (o *Origin) fail(ctx context.Context, host string, err *FetchError) error {
	originFetches.WithLabelValues(host, resultFailure).Inc()
	o.stats.ObserveFailure()
	o.failLog.Warn(ctx, err.URL, "origin fetch failed", "url", err.URL, "status", err.StatusCode, "error", err)
	return err
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return "unknown"
	}
	return u.Host
}
