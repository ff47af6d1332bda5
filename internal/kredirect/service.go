package kredirect

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	slogcontext "github.com/veqryn/slog-context"
)

// Service owns the origin, both release caches and the HTTP routes on top of
// them.
type Service struct {
	cfg    Config
	logger *slog.Logger

	origin *Origin
	kernel *ReleaseCache[KernelSnapshot]
	zfs    *ReleaseCache[CompatSnapshot]

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// NewService wires the aggregators into their caches. The logger stored in
// ctx becomes the service logger. Extra cache options are applied after the
// ones derived from cfg.
func NewService(ctx context.Context, cfg Config, cacheOpts ...CacheOption) (*Service, error) {
	origin, err := NewOrigin(cfg)
	if err != nil {
		return nil, err
	}

	policy := ReplaceOnFailure
	if cfg.Cache.KeepLastGood {
		policy = KeepLastGood
	}
	opts := append([]CacheOption{
		WithTTL(cfg.Cache.ttlDur),
		WithFailurePolicy(policy),
	}, cacheOpts...)

	feed := NewKernelFeed(origin, cfg)
	listing := NewKernelListing(origin, cfg)
	zfs := NewZFSMeta(origin, listing, cfg)

	s := &Service{
		cfg:    cfg,
		logger: slogcontext.FromCtx(ctx),
		origin: origin,
		kernel: NewReleaseCache("kernel", feed.Fetch, opts...),
		zfs:    NewReleaseCache("zfs", zfs.Fetch, opts...),
		stopCh: make(chan struct{}),
	}

	if every := cfg.Logging.logStatsEveryDur; every > 0 {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.statsLoop(every)
		}()
	}

	s.logger.Info("service ready",
		"releases", cfg.Kernel.ReleasesURL,
		"listing", cfg.Kernel.ListingBaseURL,
		"zfsMeta", cfg.ZFS.MetaURL,
		"ttl", cfg.Cache.ttlDur,
		"failurePolicy", policy.String(),
	)
	return s, nil
}

func (s *Service) Close() {
	close(s.stopCh)
	s.wg.Wait()
	if err := s.origin.Close(); err != nil {
		s.logger.Warn("close origin", "error", err)
	}
}

// Kernel returns the current kernel snapshot, refreshing it if expired.
func (s *Service) Kernel(ctx context.Context) KernelSnapshot {
	return s.kernel.Get(ctx)
}

// ZFS returns the current filesystem compatibility snapshot.
func (s *Service) ZFS(ctx context.Context) CompatSnapshot {
	return s.zfs.Get(ctx)
}

func (s *Service) Mainline(ctx context.Context) (*ReleaseRecord, bool) {
	return available(s.Kernel(ctx).Mainline)
}

// MainlineRedirect resolves the mainline route and reports which slot served
// it. Before the first mainline of a cycle is tagged the feed carries none,
// and stable is the newest release.
func (s *Service) MainlineRedirect(ctx context.Context) (string, *ReleaseRecord, bool) {
	snap := s.Kernel(ctx)
	if rec, ok := available(snap.Mainline); ok {
		return "mainline", rec, true
	}
	if rec, ok := available(snap.Stable); ok {
		return "stable", rec, true
	}
	return "mainline", nil, false
}

func (s *Service) Stable(ctx context.Context) (*ReleaseRecord, bool) {
	return available(s.Kernel(ctx).Stable)
}

func (s *Service) Next(ctx context.Context) (*ReleaseRecord, bool) {
	return available(s.Kernel(ctx).Next)
}

func (s *Service) ZFSStable(ctx context.Context) (*ReleaseRecord, bool) {
	return available(s.ZFS(ctx).Stable)
}

// available treats a record without a locator as absent; there is nowhere to
// send the client.
func available(rec *ReleaseRecord) (*ReleaseRecord, bool) {
	if rec == nil || rec.Locator == "" {
		return nil, false
	}
	return rec, true
}

func (s *Service) Handler() http.Handler {
	r := mux.NewRouter()
	r.Use(s.withLogger)

	r.HandleFunc("/kernel/mainline", s.handleMainline).Methods(http.MethodGet, http.MethodHead)
	r.HandleFunc("/kernel/stable", s.handleStable).Methods(http.MethodGet, http.MethodHead)
	r.HandleFunc("/kernel/next", s.handleNext).Methods(http.MethodGet, http.MethodHead)
	r.HandleFunc("/kernel/stable/zfs", s.handleZFSStable).Methods(http.MethodGet, http.MethodHead)
	r.HandleFunc("/releases", s.handleReleases).Methods(http.MethodGet)

	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok"))
	}).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	return r
}

func (s *Service) withLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logger := s.logger.With("method", r.Method, "path", r.URL.Path)
		next.ServeHTTP(w, r.WithContext(slogcontext.NewCtx(r.Context(), logger)))
	})
}

func (s *Service) handleMainline(w http.ResponseWriter, r *http.Request) {
	if slot, rec, ok := s.MainlineRedirect(r.Context()); ok {
		redirect(w, r, slot, rec)
		return
	}
	unavailable(w, r, "mainline", "Mainline kernel data not available")
}

func (s *Service) handleStable(w http.ResponseWriter, r *http.Request) {
	if rec, ok := s.Stable(r.Context()); ok {
		redirect(w, r, "stable", rec)
		return
	}
	unavailable(w, r, "stable", "Stable kernel data not available")
}

func (s *Service) handleNext(w http.ResponseWriter, r *http.Request) {
	if rec, ok := s.Next(r.Context()); ok {
		redirect(w, r, "next", rec)
		return
	}
	unavailable(w, r, "next", "Next kernel data not available")
}

func (s *Service) handleZFSStable(w http.ResponseWriter, r *http.Request) {
	if rec, ok := s.ZFSStable(r.Context()); ok {
		redirect(w, r, "zfs-stable", rec)
		return
	}
	unavailable(w, r, "zfs-stable", "Stable ZFS data not available")
}

type releasesResponse struct {
	Kernel releasesEntry[KernelSnapshot] `json:"kernel"`
	ZFS    releasesEntry[CompatSnapshot] `json:"zfs"`
}

type releasesEntry[T any] struct {
	Snapshot    T         `json:"snapshot"`
	RefreshedAt time.Time `json:"refreshedAt"`
}

func (s *Service) handleReleases(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	kernel, kernelAt := s.kernel.Load(ctx)
	zfs, zfsAt := s.zfs.Load(ctx)
	resp := releasesResponse{
		Kernel: releasesEntry[KernelSnapshot]{Snapshot: kernel, RefreshedAt: kernelAt.UTC()},
		ZFS:    releasesEntry[CompatSnapshot]{Snapshot: zfs, RefreshedAt: zfsAt.UTC()},
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slogcontext.FromCtx(ctx).Warn("encode releases", "error", err)
	}
}

func redirect(w http.ResponseWriter, r *http.Request, slot string, rec *ReleaseRecord) {
	w.Header().Set("X-Kredirect", slot)
	if rec.Version != nil {
		w.Header().Set("X-Kredirect-Version", rec.Version.String())
	}
	http.Redirect(w, r, rec.Locator, http.StatusTemporaryRedirect)
}

func unavailable(w http.ResponseWriter, r *http.Request, slot, msg string) {
	slogcontext.FromCtx(r.Context()).Info("release unavailable", "slot", slot)
	w.Header().Set("X-Kredirect", slot)
	http.Error(w, msg, http.StatusServiceUnavailable)
}

func (s *Service) statsLoop(every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-s.stopCh:
			return
		case <-t.C:
			ss := s.origin.stats.Snapshot()
			stored, storedBytes := s.origin.store.Usage()
			s.logger.Info("origin stats",
				"fetches", ss.Fetches,
				"revalidations", ss.Revalidations,
				"failures", ss.Failures,
				"body", formatBytes(ss.MinBytes)+"/"+formatBytes(ss.AvgBytes)+"/"+formatBytes(ss.MaxBytes),
				"stored", stored,
				"storedSize", formatBytes(storedBytes),
			)
		}
	}
}
