package kredirect

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const v6Index = `<html>
<head><title>Index of /pub/linux/kernel/v6.x/</title></head>
<body>
<h1>Index of /pub/linux/kernel/v6.x/</h1><hr><pre><a href="../">../</a>
<a href="incr/">incr/</a>
<a href="ChangeLog-6.5.3">ChangeLog-6.5.3</a>
<a href="linux-6.1.9.tar.gz">linux-6.1.9.tar.gz</a>
<a href="linux-6.5.tar.xz">linux-6.5.tar.xz</a>
<a href="linux-6.5.3.tar.sign">linux-6.5.3.tar.sign</a>
<a href="linux-6.5.3.tar.xz">linux-6.5.3.tar.xz</a>
<a href="linux-6.5.10.tar.xz">linux-6.5.10.tar.xz</a>
<a href="linux-6.6.0.tar.xz">linux-6.6.0.tar.xz</a>
<a href="patch-6.5.3.xz">patch-6.5.3.xz</a>
<a href="linux-stable.tar.xz">linux-stable.tar.xz</a>
</pre><hr></body>
</html>`

func TestKernelListingArchives(t *testing.T) {
	_, cfg := newUpstream(t, map[string]string{"/pub/linux/kernel/v6.x/": v6Index})
	l := NewKernelListing(newTestOrigin(t, cfg), cfg)

	names, err := l.Archives(context.Background(), 6)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"linux-6.1.9.tar.gz",
		"linux-6.5.tar.xz",
		"linux-6.5.3.tar.xz",
		"linux-6.5.10.tar.xz",
		"linux-6.6.0.tar.xz",
		"linux-stable.tar.xz",
	}, names)
}

func TestKernelListingLastCompatible(t *testing.T) {
	srv, cfg := newUpstream(t, map[string]string{"/pub/linux/kernel/v6.x/": v6Index})
	l := NewKernelListing(newTestOrigin(t, cfg), cfg)
	ctx := context.Background()

	rec, err := l.LastCompatible(ctx, Version{6, 5, 0})
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, Version{6, 5, 10}, *rec.Version)
	assert.Equal(t, srv.URL+"/pub/linux/kernel/v6.x/linux-6.5.10.tar.xz", rec.Locator)

	rec, err = l.LastCompatible(ctx, Version{6, 4, 0})
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, Version{6, 1, 9}, *rec.Version)

	rec, err = l.LastCompatible(ctx, Version{6, 0, 0})
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestKernelListingCustomPatterns(t *testing.T) {
	_, cfg := newUpstream(t, map[string]string{"/pub/linux/kernel/v6.x/": v6Index})
	cfg.Kernel.ArchivePatterns = []string{"linux-*.tar.gz"}
	require.NoError(t, cfg.compile())
	l := NewKernelListing(newTestOrigin(t, cfg), cfg)

	rec, err := l.LastCompatible(context.Background(), Version{6, 9, 0})
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, Version{6, 1, 9}, *rec.Version)
}

func TestKernelListingFetchFailure(t *testing.T) {
	_, cfg := newUpstream(t, map[string]string{})
	l := NewKernelListing(newTestOrigin(t, cfg), cfg)

	rec, err := l.LastCompatible(context.Background(), Version{6, 5, 0})
	assert.Nil(t, rec)
	var ferr *FetchError
	require.True(t, errors.As(err, &ferr))
	assert.Equal(t, 404, ferr.StatusCode)
}
