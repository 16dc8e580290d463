package discovery

import (
	"fmt"
	"strconv"
	"strings"
)

// Version is a dot-separated sequence of non-negative integers, for
// example 0.0.7. Components are compared lexicographically with no
// padding: a shorter version that is a prefix of a longer one is lower.
type Version []int

// MinimumToolVersion is the lowest discovery-tool version the importer
// accepts. Older tools emit listings the importer cannot rely on.
var MinimumToolVersion = Version{0, 0, 7}

// ParseVersion parses a dot-separated integer sequence such as "0.1.4".
func ParseVersion(s string) (Version, error) {
	parts := strings.Split(strings.TrimSpace(s), ".")
	v := make(Version, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("invalid version component %q in %q", p, s)
		}
		v = append(v, n)
	}
	if len(v) == 0 {
		return nil, fmt.Errorf("empty version string")
	}
	return v, nil
}

// Compare returns -1, 0 or 1 comparing v against o lexicographically.
func (v Version) Compare(o Version) int {
	for i := 0; i < len(v) && i < len(o); i++ {
		switch {
		case v[i] < o[i]:
			return -1
		case v[i] > o[i]:
			return 1
		}
	}
	switch {
	case len(v) < len(o):
		return -1
	case len(v) > len(o):
		return 1
	}
	return 0
}

// String renders the version in its dot-separated form.
func (v Version) String() string {
	parts := make([]string, len(v))
	for i, n := range v {
		parts[i] = strconv.Itoa(n)
	}
	return strings.Join(parts, ".")
}
