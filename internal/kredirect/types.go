package kredirect

// ReleaseRecord points at a downloadable release. Records are never mutated
// after construction, so they are shared freely between cache readers.
type ReleaseRecord struct {
	// Version is nil when the feed does not expose a parseable version,
	// e.g. for rolling linux-next snapshots.
	Version *Version `json:"version,omitempty"`
	// Locator is an absolute URL, or whatever the feed supplied verbatim.
	Locator string `json:"locator"`
}

// KernelSnapshot is the result of one kernel feed refresh.
type KernelSnapshot struct {
	Mainline *ReleaseRecord `json:"mainline,omitempty"`
	Stable   *ReleaseRecord `json:"stable,omitempty"`
	Next     *ReleaseRecord `json:"next,omitempty"`
}

// CompatSnapshot is the result of one filesystem compatibility refresh.
type CompatSnapshot struct {
	Stable *ReleaseRecord `json:"stable,omitempty"`
}

// StoredPayload is an origin response body kept for conditional
// revalidation.
type StoredPayload struct {
	Body         []byte
	ETag         string
	LastModified string
	FetchedAt    int64 // unix seconds
	Hash32       uint32
}
