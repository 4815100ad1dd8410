package swiftpath

import (
	"context"
	"errors"
	"iter"
	"path"
	"strings"
)

// Glob yields the paths below p matching a relative pattern. Segments use
// *, ? and [...] wildcards and a "**" segment spans zero or more directories.
// A pattern ending in "**" yields directories only. Pseudo-directories are
// matched like objects and marker objects are never yielded.
//
// Leading literal segments narrow the listing, so "logs/2024/*.gz" only
// lists below logs/2024. A missing or non-directory base yields nothing.
func (p Path) Glob(ctx context.Context, pattern string) iter.Seq2[Path, error] {
	return func(yield func(Path, error) bool) {
		pat, err := compilePattern(pattern)
		if err != nil {
			yield(Path{}, pathErr("glob", p.PurePath, err))
			return
		}
		p.glob(ctx, pat, yield)
	}
}

// RGlob is Glob with "**/" prepended to the pattern.
func (p Path) RGlob(ctx context.Context, pattern string) iter.Seq2[Path, error] {
	if strings.HasPrefix(pattern, Separator) {
		return p.Glob(ctx, pattern)
	}
	if pattern == "" {
		return p.Glob(ctx, "")
	}
	return p.Glob(ctx, recursiveWildcard+Separator+pattern)
}

func compilePattern(pattern string) ([]string, error) {
	if pattern == "" {
		return nil, ErrInvalidPath
	}
	if strings.HasPrefix(pattern, Separator) {
		return nil, ErrUnsupported
	}
	var out []string
	for _, seg := range splitPattern(pattern) {
		switch seg {
		case ".":
			continue
		case "..":
			return nil, ErrInvalidPath
		}
		if strings.Contains(seg, recursiveWildcard) && seg != recursiveWildcard {
			return nil, ErrInvalidPath
		}
		if _, err := path.Match(seg, ""); err != nil {
			return nil, ErrInvalidPath
		}
		// Consecutive "**" segments match the same set as one.
		if seg == recursiveWildcard && len(out) > 0 && out[len(out)-1] == recursiveWildcard {
			continue
		}
		out = append(out, seg)
	}
	if len(out) == 0 {
		return nil, ErrInvalidPath
	}
	return out, nil
}

func (p Path) glob(ctx context.Context, pat []string, yield func(Path, error) bool) {
	base := p
	i := 0
	for i < len(pat) && !hasMeta(pat[i]) {
		i++
	}

	if i == len(pat) {
		candidate, ok := p.child(pat...)
		if !ok {
			return
		}
		exists, err := candidate.Exists(ctx)
		if err != nil {
			yield(Path{}, err)
			return
		}
		if exists {
			yield(candidate, nil)
		}
		return
	}

	if i > 0 {
		var ok bool
		if base, ok = p.child(pat[:i]...); !ok {
			return
		}
	}
	rest := pat[i:]

	if len(rest) == 1 && rest[0] != recursiveWildcard {
		for e, err := range base.ScanDir(ctx) {
			if err != nil {
				if !isMissingDir(err) {
					yield(Path{}, err)
				}
				return
			}
			if matchSegment(rest[0], e.Name) && !yield(e.Path, nil) {
				return
			}
		}
		return
	}

	dirsOnly := rest[len(rest)-1] == recursiveWildcard
	for c, err := range base.candidates(ctx) {
		if err != nil {
			if !isMissingDir(err) {
				yield(Path{}, err)
			}
			return
		}
		if dirsOnly && !c.dir {
			continue
		}
		if !matchParts(rest, c.rel) {
			continue
		}
		found, ok := base.child(c.rel...)
		if !ok {
			continue
		}
		if !yield(found, nil) {
			return
		}
	}
}

func isMissingDir(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, ErrNotADirectory)
}

type candidate struct {
	rel []string
	dir bool
}

// candidates yields the path itself, every object below it and every
// pseudo-directory implied by their keys, each once. The path itself is only
// yielded when something is below it, unless it is the root or a container.
func (p Path) candidates(ctx context.Context) iter.Seq2[candidate, error] {
	return func(yield func(candidate, error) bool) {
		if p.IsRoot() {
			if !yield(candidate{dir: true}, nil) {
				return
			}
			for page, err := range containerPages(ctx, p.backend) {
				if err != nil {
					yield(candidate{}, pathErr("glob", p.PurePath, err))
					return
				}
				for _, c := range page.Containers {
					cp, ok := p.child(c.Name)
					if !ok {
						continue
					}
					for sub, err := range cp.candidates(ctx) {
						if errors.Is(err, ErrNotFound) {
							break
						}
						if err == nil {
							sub.rel = append([]string{c.Name}, sub.rel...)
						}
						if !yield(sub, err) || err != nil {
							return
						}
					}
				}
			}
			return
		}

		prefix := p.dirPrefix()
		seen := make(map[string]struct{})
		announced := false
		if p.IsContainer() {
			exists, err := p.Exists(ctx)
			if err != nil {
				yield(candidate{}, err)
				return
			}
			if !exists {
				yield(candidate{}, pathErr("glob", p.PurePath, ErrNotFound))
				return
			}
			announced = true
			if !yield(candidate{dir: true}, nil) {
				return
			}
		}

		for page, err := range pages(ctx, p.backend, p.Container(), ListQuery{Prefix: prefix}) {
			if err != nil {
				yield(candidate{}, pathErr("glob", p.PurePath, err))
				return
			}
			for _, o := range page.Objects {
				rel := strings.TrimPrefix(o.Key, prefix)
				parts := strings.Split(rel, Separator)
				if !announced {
					announced = true
					if !yield(candidate{dir: true}, nil) {
						return
					}
				}
				for j := 1; j < len(parts); j++ {
					key := strings.Join(parts[:j], Separator)
					if _, dup := seen[key]; dup {
						continue
					}
					seen[key] = struct{}{}
					if !yield(candidate{rel: parts[:j:j], dir: true}, nil) {
						return
					}
				}
				if parts[len(parts)-1] == MarkerName {
					continue
				}
				if _, dup := seen[rel]; dup {
					continue
				}
				seen[rel] = struct{}{}
				if !yield(candidate{rel: parts}, nil) {
					return
				}
			}
		}
	}
}
