package swiftpath

import (
	"fmt"
	"iter"
	"slices"
	"strings"
	"unicode/utf8"
)

// Separator is the only path separator. Every path is rooted at it.
const Separator = "/"

const (
	maxContainerLen = 256
	maxKeyLen       = 1024
)

// PurePath is an immutable, normalized path of the form /container/key.
// The zero value is the root.
//
// The container and key are computed from the segment list on every call, so
// the two can never disagree.
type PurePath struct {
	segs []string
}

// NewPurePath joins fragments with the separator and normalizes the result.
// A fragment starting with "/" restarts from the root. A relative first
// fragment is anchored at the root. Empty and "." segments are dropped and
// ".." removes the previous segment; climbing above the root is an error.
func NewPurePath(fragments ...string) (PurePath, error) {
	var segs []string
	var err error
	for _, f := range fragments {
		if strings.HasPrefix(f, Separator) {
			segs = nil
		}
		segs, err = appendSegments(segs, f)
		if err != nil {
			return PurePath{}, err
		}
	}
	return newFromSegments(segs)
}

// Parse parses the string path syntax. The leading separator is mandatory.
func Parse(s string) (PurePath, error) {
	if !strings.HasPrefix(s, Separator) {
		return PurePath{}, fmt.Errorf("%w: %q must start with %q", ErrInvalidPath, s, Separator)
	}
	return NewPurePath(s)
}

// MustPurePath is like NewPurePath but panics on error.
func MustPurePath(fragments ...string) PurePath {
	p, err := NewPurePath(fragments...)
	if err != nil {
		panic(err)
	}
	return p
}

func appendSegments(segs []string, fragment string) ([]string, error) {
	for _, s := range strings.Split(fragment, Separator) {
		switch s {
		case "", ".":
		case "..":
			if len(segs) == 0 {
				return nil, fmt.Errorf("%w: %q climbs above the root", ErrInvalidPath, fragment)
			}
			segs = segs[:len(segs)-1]
		default:
			segs = append(segs, s)
		}
	}
	return segs, nil
}

func newFromSegments(segs []string) (PurePath, error) {
	for _, s := range segs {
		if err := validateSegment(s); err != nil {
			return PurePath{}, err
		}
	}
	if len(segs) > 0 && len(segs[0]) > maxContainerLen {
		return PurePath{}, fmt.Errorf("%w: container name longer than %d bytes", ErrInvalidPath, maxContainerLen)
	}
	if len(segs) > 1 {
		keyLen := len(segs) - 2
		for _, s := range segs[1:] {
			keyLen += len(s)
		}
		if keyLen > maxKeyLen {
			return PurePath{}, fmt.Errorf("%w: key longer than %d bytes", ErrInvalidPath, maxKeyLen)
		}
	}
	return PurePath{segs: slices.Clip(slices.Clone(segs))}, nil
}

func validateSegment(s string) error {
	if !utf8.ValidString(s) {
		return fmt.Errorf("%w: %q is not valid UTF-8", ErrInvalidPath, s)
	}
	if strings.IndexByte(s, 0) >= 0 {
		return fmt.Errorf("%w: %q contains a NUL byte", ErrInvalidPath, s)
	}
	return nil
}

func (p PurePath) String() string {
	return Separator + strings.Join(p.segs, Separator)
}

// Root is always the separator.
func (p PurePath) Root() string { return Separator }

// Drive is always empty.
func (p PurePath) Drive() string { return "" }

// Anchor is drive plus root.
func (p PurePath) Anchor() string { return p.Drive() + p.Root() }

// Parts returns the root followed by every segment.
func (p PurePath) Parts() []string {
	return append([]string{Separator}, p.segs...)
}

// Segments returns the segments without the root.
func (p PurePath) Segments() []string {
	return slices.Clone(p.segs)
}

// Container returns the first segment, or "" for the root.
func (p PurePath) Container() string {
	if len(p.segs) == 0 {
		return ""
	}
	return p.segs[0]
}

// Key returns the object name inside the container, or "" when the path
// names only the root or a container.
func (p PurePath) Key() string {
	if len(p.segs) < 2 {
		return ""
	}
	return strings.Join(p.segs[1:], Separator)
}

func (p PurePath) IsRoot() bool { return len(p.segs) == 0 }

// IsContainer reports whether the path names a container and nothing below it.
func (p PurePath) IsContainer() bool { return len(p.segs) == 1 }

// HasKey reports whether the path names something inside a container.
func (p PurePath) HasKey() bool { return len(p.segs) > 1 }

// Name returns the final segment.
func (p PurePath) Name() string {
	if len(p.segs) == 0 {
		return ""
	}
	return p.segs[len(p.segs)-1]
}

// Suffix returns the final extension of Name, including the dot.
func (p PurePath) Suffix() string {
	name := p.Name()
	i := strings.LastIndex(name, ".")
	if i > 0 && i < len(name)-1 {
		return name[i:]
	}
	return ""
}

// Suffixes returns every extension of Name in order.
func (p PurePath) Suffixes() []string {
	name := p.Name()
	if strings.HasSuffix(name, ".") {
		return nil
	}
	name = strings.TrimLeft(name, ".")
	parts := strings.Split(name, ".")
	if len(parts) < 2 {
		return nil
	}
	out := make([]string, 0, len(parts)-1)
	for _, s := range parts[1:] {
		out = append(out, "."+s)
	}
	return out
}

// Stem returns Name without its final suffix.
func (p PurePath) Stem() string {
	name := p.Name()
	return name[:len(name)-len(p.Suffix())]
}

// Parent returns the path without its last segment. The root is its own parent.
func (p PurePath) Parent() PurePath {
	if len(p.segs) == 0 {
		return p
	}
	return PurePath{segs: slices.Clip(p.segs[:len(p.segs)-1])}
}

// Parents yields every ancestor from the immediate parent up to the root.
func (p PurePath) Parents() iter.Seq[PurePath] {
	return func(yield func(PurePath) bool) {
		cur := p
		for !cur.IsRoot() {
			cur = cur.Parent()
			if !yield(cur) {
				return
			}
		}
	}
}

// JoinPath appends others to the path and normalizes the result.
func (p PurePath) JoinPath(others ...string) (PurePath, error) {
	return NewPurePath(append([]string{p.String()}, others...)...)
}

// RelativeTo returns the segments of p below base.
func (p PurePath) RelativeTo(base PurePath) (RelPath, error) {
	if !p.IsRelativeTo(base) {
		return RelPath{}, fmt.Errorf("%q relative to %q: %w", p.String(), base.String(), ErrNotRelative)
	}
	return RelPath{segs: slices.Clone(p.segs[len(base.segs):])}, nil
}

// IsRelativeTo reports whether base is an ancestor of p or equal to it.
func (p PurePath) IsRelativeTo(base PurePath) bool {
	return len(base.segs) <= len(p.segs) && slices.Equal(base.segs, p.segs[:len(base.segs)])
}

// WithName returns the path with its final segment replaced.
func (p PurePath) WithName(name string) (PurePath, error) {
	if p.IsRoot() {
		return PurePath{}, fmt.Errorf("with name: %w: %q has an empty name", ErrInvalidPath, p.String())
	}
	if name == "" || name == "." || name == ".." || strings.Contains(name, Separator) {
		return PurePath{}, fmt.Errorf("with name: %w: invalid name %q", ErrInvalidPath, name)
	}
	segs := slices.Clone(p.segs)
	segs[len(segs)-1] = name
	return newFromSegments(segs)
}

// WithSuffix returns the path with the final suffix of its name replaced.
// An empty suffix removes it.
func (p PurePath) WithSuffix(suffix string) (PurePath, error) {
	if p.IsRoot() {
		return PurePath{}, fmt.Errorf("with suffix: %w: %q has an empty name", ErrInvalidPath, p.String())
	}
	if suffix != "" && (!strings.HasPrefix(suffix, ".") || suffix == "." || strings.Contains(suffix, Separator)) {
		return PurePath{}, fmt.Errorf("with suffix: %w: invalid suffix %q", ErrInvalidPath, suffix)
	}
	return p.WithName(p.Stem() + suffix)
}

func (p PurePath) Equal(other PurePath) bool {
	return slices.Equal(p.segs, other.segs)
}

// Compare orders paths lexicographically over their parts.
func (p PurePath) Compare(other PurePath) int {
	return slices.Compare(p.segs, other.segs)
}

// RelPath is the relative result of RelativeTo.
type RelPath struct {
	segs []string
}

func (r RelPath) Parts() []string { return slices.Clone(r.segs) }

func (r RelPath) String() string {
	if len(r.segs) == 0 {
		return "."
	}
	return strings.Join(r.segs, Separator)
}
