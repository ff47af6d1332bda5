package kredirect

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseBytes(t *testing.T) {
	for in, want := range map[string]int64{
		"512":   512,
		"512b":  512,
		"64kb":  64 * kib,
		"64K":   64 * kib,
		"8mb":   8 * mib,
		"1.5g":  gib + gib/2,
		" 2 MB": 2 * mib,
	} {
		got, err := parseBytes(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	for _, in := range []string{"", "b", "kb", "-1mb", "0", "lots", "nan", "inf", "9000000000g", "1e19"} {
		_, err := parseBytes(in)
		assert.Error(t, err, in)
	}
}

func TestFormatBytes(t *testing.T) {
	assert.Equal(t, "100b", formatBytes(100))
	assert.Equal(t, "1kb", formatBytes(kib))
	assert.Equal(t, "1.5kb", formatBytes(kib+kib/2))
	assert.Equal(t, "8mb", formatBytes(8*mib))
	assert.Equal(t, "2gb", formatBytes(2*gib))
}
