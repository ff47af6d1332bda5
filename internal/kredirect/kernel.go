package kredirect

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	slogcontext "github.com/veqryn/slog-context"
)

// Fetcher retrieves a document by URL.
type Fetcher interface {
	Get(ctx context.Context, url string) ([]byte, error)
}

const (
	monikerMainline = "mainline"
	monikerStable   = "stable"
	monikerNext     = "linux-next"
)

type kernelReleases struct {
	Releases *[]kernelRelease `json:"releases"`
}

type kernelRelease struct {
	Moniker *string `json:"moniker"`
	Version *string `json:"version"`
	Source  *string `json:"source"`
}

// KernelFeed turns the kernel.org releases feed into a KernelSnapshot.
type KernelFeed struct {
	fetcher         Fetcher
	releasesURL     string
	nextSnapshotURL string
}

func NewKernelFeed(fetcher Fetcher, cfg Config) *KernelFeed {
	return &KernelFeed{
		fetcher:         fetcher,
		releasesURL:     cfg.Kernel.ReleasesURL,
		nextSnapshotURL: cfg.Kernel.NextSnapshotURL,
	}
}

// Fetch downloads and decodes the feed. On any failure it returns the empty
// snapshot along with the error.
func (k *KernelFeed) Fetch(ctx context.Context) (KernelSnapshot, error) {
	body, err := k.fetcher.Get(ctx, k.releasesURL)
	if err != nil {
		return KernelSnapshot{}, err
	}
	releases, err := decodeKernelReleases(body)
	if err != nil {
		return KernelSnapshot{}, &FormatError{Source: k.releasesURL, Err: err}
	}

	snap := k.snapshot(releases)
	slogcontext.FromCtx(ctx).Debug("kernel feed decoded",
		"releases", len(releases),
		"mainline", snap.Mainline != nil,
		"stable", snap.Stable != nil,
		"next", snap.Next != nil,
	)
	return snap, nil
}

func decodeKernelReleases(body []byte) ([]kernelRelease, error) {
	var doc kernelReleases
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, err
	}
	if doc.Releases == nil {
		return nil, fmt.Errorf("missing releases")
	}
	for i, r := range *doc.Releases {
		if r.Moniker == nil || r.Version == nil {
			return nil, fmt.Errorf("releases[%d]: moniker and version are required", i)
		}
	}
	return *doc.Releases, nil
}

// snapshot fills each slot from the first matching entry in feed order.
func (k *KernelFeed) snapshot(releases []kernelRelease) KernelSnapshot {
	var snap KernelSnapshot
	for _, r := range releases {
		switch *r.Moniker {
		case monikerMainline:
			if snap.Mainline == nil {
				snap.Mainline = versionedRecord(r)
			}
		case monikerStable:
			if snap.Stable == nil {
				snap.Stable = versionedRecord(r)
			}
		case monikerNext:
			if snap.Next == nil {
				// linux-next tags are dates, not orderable versions
				snap.Next = &ReleaseRecord{
					Locator: strings.ReplaceAll(k.nextSnapshotURL, "{version}", *r.Version),
				}
			}
		}
	}
	return snap
}

func versionedRecord(r kernelRelease) *ReleaseRecord {
	rec := &ReleaseRecord{}
	if r.Source != nil {
		rec.Locator = *r.Source
	}
	if v, err := ParseVersion(*r.Version); err == nil {
		rec.Version = &v
	}
	return rec
}
