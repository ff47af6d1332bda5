package kredirect

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

const (
	kib = 1024
	mib = 1024 * kib
	gib = 1024 * mib
)

// parseBytes parses sizes like "512", "64kb", "8mb" or "1.5g".
func parseBytes(s string) (int64, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	s = strings.TrimSpace(strings.TrimSuffix(s, "b"))
	if s == "" {
		return 0, fmt.Errorf("invalid size")
	}

	mult := int64(1)
	switch s[len(s)-1] {
	case 'k':
		mult = kib
	case 'm':
		mult = mib
	case 'g':
		mult = gib
	}
	if mult != 1 {
		s = strings.TrimSpace(s[:len(s)-1])
	}

	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid size %q: %w", s, err)
	}
	if math.IsNaN(v) || v <= 0 {
		return 0, fmt.Errorf("size must be positive")
	}
	n := v * float64(mult)
	if n >= math.MaxInt64 {
		return 0, fmt.Errorf("size %q out of range", s)
	}
	return int64(n), nil
}

func formatBytes(b uint64) string {
	switch {
	case b < kib:
		return fmt.Sprintf("%db", b)
	case b < mib:
		return trimFloat(float64(b)/kib) + "kb"
	case b < gib:
		return trimFloat(float64(b)/mib) + "mb"
	default:
		return trimFloat(float64(b)/gib) + "gb"
	}
}

func trimFloat(f float64) string {
	return strings.TrimSuffix(strconv.FormatFloat(f, 'f', 1, 64), ".0")
}
