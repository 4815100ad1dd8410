package swiftpath

import (
	"path"
	"strings"
)

const recursiveWildcard = "**"

// Match reports whether the path matches a glob pattern. Segments are
// compared right to left with *, ? and [...] wildcards. A pattern starting
// with the separator has to match the whole path.
func (p PurePath) Match(pattern string) bool {
	if pattern == "" {
		return false
	}
	pat := splitPattern(pattern)
	if strings.HasPrefix(pattern, Separator) {
		if len(pat) != len(p.segs) {
			return false
		}
	} else if len(pat) == 0 || len(pat) > len(p.segs) {
		return false
	}

	offset := len(p.segs) - len(pat)
	for i := len(pat) - 1; i >= 0; i-- {
		if !matchSegment(pat[i], p.segs[offset+i]) {
			return false
		}
	}
	return true
}

func splitPattern(pattern string) []string {
	var out []string
	for _, s := range strings.Split(pattern, Separator) {
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

func matchSegment(pattern, name string) bool {
	ok, err := path.Match(pattern, name)
	return err == nil && ok
}

func hasMeta(segment string) bool {
	return strings.ContainsAny(segment, `*?[\`)
}

// matchParts matches parts left to right. "**" spans zero or more segments.
func matchParts(pattern, parts []string) bool {
	if len(pattern) == 0 {
		return len(parts) == 0
	}
	if pattern[0] == recursiveWildcard {
		for i := 0; i <= len(parts); i++ {
			if matchParts(pattern[1:], parts[i:]) {
				return true
			}
		}
		return false
	}
	if len(parts) == 0 {
		return false
	}
	return matchSegment(pattern[0], parts[0]) && matchParts(pattern[1:], parts[1:])
}
