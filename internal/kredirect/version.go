package kredirect

import (
	"strconv"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// Version is a dotted major.minor.patch release identifier.
type Version struct {
	Major uint64 `json:"major"`
	Minor uint64 `json:"minor"`
	Patch uint64 `json:"patch"`
}

// ParseVersion extracts a Version from text such as "v6.5.3",
// "linux-6.5.3.tar.xz" or "6.5-rc1". Everything before the first digit is
// ignored, and the version ends at the first character that is neither a
// digit nor a dot. Major and minor are required; a missing or unparsable
// patch is 0.
func ParseVersion(text string) (Version, error) {
	rest := text
	if i := strings.IndexFunc(text, isDigit); i >= 0 {
		rest = text[i:]
		if j := strings.IndexFunc(rest, func(r rune) bool { return !isDigit(r) && r != '.' }); j >= 0 {
			rest = rest[:j]
		}
	} else {
		rest = ""
	}

	parts := strings.Split(rest, ".")
	major, err := strconv.ParseUint(parts[0], 10, 64)
	if err != nil {
		return Version{}, &ParseError{Text: text, Component: "major", Kind: InvalidInteger, Err: err}
	}
	if len(parts) < 2 {
		return Version{}, &ParseError{Text: text, Component: "minor", Kind: MissingComponent}
	}
	minor, err := strconv.ParseUint(parts[1], 10, 64)
	if err != nil {
		return Version{}, &ParseError{Text: text, Component: "minor", Kind: InvalidInteger, Err: err}
	}

	var patch uint64
	if len(parts) > 2 {
		if p, err := strconv.ParseUint(parts[2], 10, 64); err == nil {
			patch = p
		}
	}

	return Version{Major: major, Minor: minor, Patch: patch}, nil
}

func isDigit(r rune) bool { return r >= '0' && r <= '9' }

// Compare returns -1, 0 or +1 comparing major, then minor, then patch.
func (v Version) Compare(o Version) int {
	return v.semver().Compare(o.semver())
}

// Less reports whether v orders before o.
func (v Version) Less(o Version) bool { return v.Compare(o) < 0 }

func (v Version) String() string {
	return v.semver().String()
}

// semver never carries a prerelease or metadata part, so its ordering is the
// plain lexicographic order on the three components.
func (v Version) semver() *semver.Version {
	return semver.New(v.Major, v.Minor, v.Patch, "", "")
}
