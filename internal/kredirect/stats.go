package kredirect

import (
	"math"
	"sync/atomic"
)

// fetchStats tracks the size of payloads received from origins. A 304 counts
// as a revalidation and contributes no bytes.
type fetchStats struct {
	fetches       atomic.Uint64
	revalidations atomic.Uint64
	failures      atomic.Uint64
	totalBytes    atomic.Uint64
	minBytes      atomic.Uint64
	maxBytes      atomic.Uint64
}

func newFetchStats() *fetchStats {
	s := &fetchStats{}
	s.minBytes.Store(math.MaxUint64)
	return s
}

func (s *fetchStats) ObserveBody(n int) {
	if n < 0 {
		n = 0
	}
	b := uint64(n)
	s.fetches.Add(1)
	s.totalBytes.Add(b)

	for {
		cur := s.minBytes.Load()
		if b >= cur || s.minBytes.CompareAndSwap(cur, b) {
			break
		}
	}
	for {
		cur := s.maxBytes.Load()
		if b <= cur || s.maxBytes.CompareAndSwap(cur, b) {
			break
		}
	}
}

func (s *fetchStats) ObserveRevalidation() { s.revalidations.Add(1) }

func (s *fetchStats) ObserveFailure() { s.failures.Add(1) }

type fetchStatsSnapshot struct {
	Fetches       uint64
	Revalidations uint64
	Failures      uint64
	MinBytes      uint64
	AvgBytes      uint64
	MaxBytes      uint64
}

func (s *fetchStats) Snapshot() fetchStatsSnapshot {
	out := fetchStatsSnapshot{
		Fetches:       s.fetches.Load(),
		Revalidations: s.revalidations.Load(),
		Failures:      s.failures.Load(),
	}
	if out.Fetches == 0 {
		return out
	}
	out.MinBytes = s.minBytes.Load()
	out.MaxBytes = s.maxBytes.Load()
	out.AvgBytes = s.totalBytes.Load() / out.Fetches
	return out
}
