package kredirect

import (
	"bytes"
	"context"
	"fmt"

	"github.com/gobwas/glob"
	slogcontext "github.com/veqryn/slog-context"
	"golang.org/x/net/html"
)

// KernelListing reads the kernel.org per-major directory index.
type KernelListing struct {
	fetcher  Fetcher
	baseURL  string
	patterns []glob.Glob
}

func NewKernelListing(fetcher Fetcher, cfg Config) *KernelListing {
	return &KernelListing{
		fetcher:  fetcher,
		baseURL:  cfg.Kernel.ListingBaseURL,
		patterns: cfg.Kernel.archiveGlobs,
	}
}

func (l *KernelListing) dirURL(major uint64) string {
	return fmt.Sprintf("%s/v%d.x/", l.baseURL, major)
}

// Archives returns the hrefs in the v{major}.x directory that look like
// release tarballs, in document order.
func (l *KernelListing) Archives(ctx context.Context, major uint64) ([]string, error) {
	u := l.dirURL(major)
	body, err := l.fetcher.Get(ctx, u)
	if err != nil {
		return nil, err
	}
	doc, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, &FormatError{Source: u, Err: err}
	}

	var out []string
	for _, href := range anchorHrefs(doc) {
		if l.isArchive(href) {
			out = append(out, href)
		}
	}
	return out, nil
}

func (l *KernelListing) isArchive(name string) bool {
	for _, g := range l.patterns {
		if g.Match(name) {
			return true
		}
	}
	return false
}

// LastCompatible returns the newest release in the ceiling's major line whose
// major.minor does not exceed the ceiling. It returns nil when nothing
// qualifies, and nil with the error when the listing cannot be read.
func (l *KernelListing) LastCompatible(ctx context.Context, ceiling Version) (*ReleaseRecord, error) {
	logger := slogcontext.FromCtx(ctx).With("realm", "listing", "ceiling", ceiling.String())

	names, err := l.Archives(ctx, ceiling.Major)
	if err != nil {
		return nil, fmt.Errorf("list kernel v%d.x: %w", ceiling.Major, err)
	}

	candidates := make([]ReleaseRecord, 0, len(names))
	for _, name := range names {
		v, err := ParseVersion(name)
		if err != nil {
			logger.Debug("skipping archive", "name", name, "error", err)
			continue
		}
		candidates = append(candidates, ReleaseRecord{Version: &v, Locator: name})
	}

	best, ok := SelectBest(candidates, ceiling)
	if !ok {
		logger.Info("no compatible kernel release", "archives", len(names))
		return nil, nil
	}
	return &ReleaseRecord{
		Version: best.Version,
		Locator: l.dirURL(best.Version.Major) + best.Locator,
	}, nil
}

func anchorHrefs(n *html.Node) []string {
	var out []string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "a" {
			for _, a := range n.Attr {
				if a.Key == "href" {
					out = append(out, a.Val)
					break
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return out
}
