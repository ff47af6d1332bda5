package kredirect

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	slogcontext "github.com/veqryn/slog-context"
)

// ZFSMeta resolves the newest kernel release supported by OpenZFS, using the
// maximum kernel line declared in its META manifest.
type ZFSMeta struct {
	fetcher Fetcher
	metaURL string
	key     string
	listing *KernelListing
}

func NewZFSMeta(fetcher Fetcher, listing *KernelListing, cfg Config) *ZFSMeta {
	return &ZFSMeta{
		fetcher: fetcher,
		metaURL: cfg.ZFS.MetaURL,
		key:     cfg.ZFS.Key,
		listing: listing,
	}
}

// Fetch reads the manifest and asks the listing for the best release at or
// below the declared ceiling. On any failure it returns the empty snapshot
// along with the error.
func (z *ZFSMeta) Fetch(ctx context.Context) (CompatSnapshot, error) {
	body, err := z.fetcher.Get(ctx, z.metaURL)
	if err != nil {
		return CompatSnapshot{}, err
	}
	ceiling, err := parseMaximumKernel(string(body), z.key)
	if err != nil {
		return CompatSnapshot{}, &FormatError{Source: z.metaURL, Err: err}
	}
	slogcontext.FromCtx(ctx).Debug("zfs kernel ceiling", "ceiling", ceiling.String())

	rec, err := z.listing.LastCompatible(ctx, ceiling)
	if err != nil {
		return CompatSnapshot{}, err
	}
	return CompatSnapshot{Stable: rec}, nil
}

// parseMaximumKernel finds the first "key:" line and reads a major.minor pair
// from it. Exactly two components are required; a component that is not a
// number reads as 0.
func parseMaximumKernel(manifest, key string) (Version, error) {
	prefix := key + ":"
	for _, line := range strings.Split(manifest, "\n") {
		line = strings.TrimSuffix(line, "\r")
		if !strings.HasPrefix(line, prefix) {
			continue
		}
		value, _, _ := strings.Cut(line[len(prefix):], ":")
		value = strings.TrimSpace(value)

		parts := strings.Split(value, ".")
		if len(parts) != 2 {
			return Version{}, fmt.Errorf("%s: want major.minor, got %q", key, value)
		}
		major, _ := strconv.ParseUint(parts[0], 10, 64)
		minor, _ := strconv.ParseUint(parts[1], 10, 64)
		return Version{Major: major, Minor: minor}, nil
	}
	return Version{}, fmt.Errorf("no %s line", key)
}
