package swiftpath

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"iter"
	"strings"
)

// ScanDir yields the immediate children of a directory. The root lists
// containers. Marker objects are hidden and a name seen on several pages, or
// both as an object and as a prefix, is yielded once. Every call issues a
// fresh listing.
//
// A key path is classified like IsDir does before it is listed, so an object
// stored at the key itself yields ErrNotADirectory even when other keys
// extend it.
func (p Path) ScanDir(ctx context.Context) iter.Seq2[DirEntry, error] {
	return func(yield func(DirEntry, error) bool) {
		if p.IsRoot() {
			p.scanContainers(ctx, yield)
			return
		}
		if !p.IsContainer() {
			k, _, err := p.probe(ctx)
			if err := notDirErr(k, err); err != nil {
				yield(DirEntry{}, pathErr("scandir", p.PurePath, err))
				return
			}
		}

		prefix := p.dirPrefix()
		seen := make(map[string]struct{})
		listed := false

		for page, err := range pages(ctx, p.backend, p.Container(), ListQuery{Prefix: prefix, Delimiter: Separator}) {
			if err != nil {
				yield(DirEntry{}, pathErr("scandir", p.PurePath, err))
				return
			}
			for _, o := range page.Objects {
				listed = true
				name := strings.TrimPrefix(o.Key, prefix)
				if name == "" || name == MarkerName || strings.Contains(name, Separator) {
					continue
				}
				if _, dup := seen[name]; dup {
					continue
				}
				seen[name] = struct{}{}
				child, ok := p.child(name)
				if !ok {
					continue
				}
				if !yield(entryFromInfo(child, name, o), nil) {
					return
				}
			}
			for _, pre := range page.Prefixes {
				listed = true
				name := strings.TrimSuffix(strings.TrimPrefix(pre, prefix), Separator)
				if name == "" || strings.Contains(name, Separator) {
					continue
				}
				if _, dup := seen[name]; dup {
					continue
				}
				seen[name] = struct{}{}
				child, ok := p.child(name)
				if !ok {
					continue
				}
				if !yield(DirEntry{Path: child, Name: name, IsDir: true}, nil) {
					return
				}
			}
		}

		if listed || !p.IsContainer() {
			return
		}

		// An empty listing is either an empty container or a missing one.
		k, _, err := p.probe(ctx)
		if err := notDirErr(k, err); err != nil {
			yield(DirEntry{}, pathErr("scandir", p.PurePath, err))
		}
	}
}

func notDirErr(k kind, err error) error {
	switch {
	case err != nil:
		return err
	case k == kindMissing:
		return ErrNotFound
	case k == kindObject:
		return ErrNotADirectory
	}
	return nil
}

func (p Path) scanContainers(ctx context.Context, yield func(DirEntry, error) bool) {
	for page, err := range containerPages(ctx, p.backend) {
		if err != nil {
			yield(DirEntry{}, pathErr("scandir", p.PurePath, err))
			return
		}
		for _, c := range page.Containers {
			child, ok := p.child(c.Name)
			if !ok {
				continue
			}
			if !yield(DirEntry{Path: child, Name: c.Name, IsDir: true, Size: c.Bytes}, nil) {
				return
			}
		}
	}
}

// IterDir yields the paths of the immediate children, see ScanDir.
func (p Path) IterDir(ctx context.Context) iter.Seq2[Path, error] {
	return func(yield func(Path, error) bool) {
		for e, err := range p.ScanDir(ctx) {
			if !yield(e.Path, err) {
				return
			}
		}
	}
}

// Walk yields every object below the path in listing order. Entry names
// are relative to p. Marker objects are hidden.
func (p Path) Walk(ctx context.Context) iter.Seq2[DirEntry, error] {
	return p.walk(ctx, false)
}

func (p Path) walk(ctx context.Context, withMarkers bool) iter.Seq2[DirEntry, error] {
	return func(yield func(DirEntry, error) bool) {
		if p.IsRoot() {
			for c, err := range p.IterDir(ctx) {
				if err != nil {
					yield(DirEntry{}, err)
					return
				}
				for e, err := range c.walk(ctx, withMarkers) {
					if err == nil {
						e.Name = c.Name() + Separator + e.Name
					}
					if !yield(e, err) || err != nil {
						return
					}
				}
			}
			return
		}

		prefix := p.dirPrefix()
		for page, err := range pages(ctx, p.backend, p.Container(), ListQuery{Prefix: prefix}) {
			if err != nil {
				yield(DirEntry{}, pathErr("walk", p.PurePath, err))
				return
			}
			for _, o := range page.Objects {
				if !withMarkers && isMarkerKey(o.Key) {
					continue
				}
				rel := strings.TrimPrefix(o.Key, prefix)
				child, ok := p.child(strings.Split(rel, Separator)...)
				if !ok {
					continue
				}
				if !yield(entryFromInfo(child, rel, o), nil) {
					return
				}
			}
		}
	}
}

// MkdirOptions configures Mkdir.
type MkdirOptions struct {
	// Parents creates the container when it is missing and skips the
	// parent directory check.
	Parents bool
	// ExistOK ignores an existing directory. An existing object at the path
	// is still an error.
	ExistOK bool
}

// Mkdir creates a container for a container-only path, otherwise a marker
// object that makes the pseudo-directory visible while it is empty.
func (p Path) Mkdir(ctx context.Context, opts MkdirOptions) error {
	const op = "mkdir"

	if p.IsRoot() {
		if opts.ExistOK {
			return nil
		}
		return pathErr(op, p.PurePath, ErrExists)
	}

	if p.IsContainer() {
		err := p.backend.CreateContainer(ctx, p.Container())
		if err == nil || (opts.ExistOK && errors.Is(err, ErrExists)) {
			return nil
		}
		return pathErr(op, p.PurePath, err)
	}

	k, _, err := p.probe(ctx)
	if err != nil {
		return pathErr(op, p.PurePath, err)
	}
	switch k {
	case kindObject:
		return pathErr(op, p.PurePath, ErrExists)
	case kindDir:
		if opts.ExistOK {
			return nil
		}
		return pathErr(op, p.PurePath, ErrExists)
	}

	parent := p.Parent()
	pk, _, err := parent.probe(ctx)
	if err != nil {
		return pathErr(op, p.PurePath, err)
	}
	switch pk {
	case kindObject:
		return pathErr(op, p.PurePath, ErrNotADirectory)
	case kindMissing:
		if !opts.Parents {
			return pathErr(op, p.PurePath, ErrNotFound)
		}
		err := p.backend.CreateContainer(ctx, p.Container())
		if err != nil && !errors.Is(err, ErrExists) {
			return pathErr(op, p.PurePath, err)
		}
	}

	marker := ObjectRef{Container: p.Container(), Key: p.dirPrefix() + MarkerName}
	if _, err := p.backend.Put(ctx, marker, bytes.NewReader(nil), PutOptions{ContentType: DirectoryContentType}); err != nil {
		return pathErr(op, p.PurePath, err)
	}
	return nil
}

// Rmdir removes an empty directory. A directory holding anything besides its
// marker is refused with ErrDirectoryNotEmpty and left untouched.
func (p Path) Rmdir(ctx context.Context) error {
	const op = "rmdir"

	if p.IsRoot() {
		return pathErr(op, p.PurePath, ErrUnsupported)
	}
	if p.IsContainer() {
		if err := p.backend.DeleteContainer(ctx, p.Container()); err != nil {
			return pathErr(op, p.PurePath, err)
		}
		return nil
	}

	prefix := p.dirPrefix()
	markerKey := prefix + MarkerName
	res, err := p.backend.List(ctx, p.Container(), ListQuery{Prefix: prefix, Delimiter: Separator, Limit: 2})
	if err != nil {
		return pathErr(op, p.PurePath, err)
	}

	hasMarker := false
	for _, o := range res.Objects {
		if o.Key != markerKey {
			return pathErr(op, p.PurePath, ErrDirectoryNotEmpty)
		}
		hasMarker = true
	}
	if len(res.Prefixes) > 0 {
		return pathErr(op, p.PurePath, ErrDirectoryNotEmpty)
	}

	if !hasMarker {
		if isFile, _ := p.IsFile(ctx); isFile {
			return pathErr(op, p.PurePath, ErrNotADirectory)
		}
		return pathErr(op, p.PurePath, ErrNotFound)
	}

	err = p.backend.Delete(ctx, ObjectRef{Container: p.Container(), Key: markerKey})
	if err != nil && !errors.Is(err, ErrNotFound) {
		return pathErr(op, p.PurePath, err)
	}
	return nil
}

// RemoveAll deletes the path and everything below it. A container path
// removes the container too. A missing path is not an error.
func (p Path) RemoveAll(ctx context.Context) error {
	const op = "remove all"

	if p.IsRoot() {
		return pathErr(op, p.PurePath, ErrUnsupported)
	}

	refs, err := p.collectRefs(ctx)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		return pathErr(op, p.PurePath, err)
	}
	if p.HasKey() {
		refs = append(refs, p.ref())
	}

	if remaining, err := deleteAll(ctx, p.backend, refs); err != nil {
		return pathErr(op, p.PurePath, fmt.Errorf("%d objects left behind: %w", len(remaining), err))
	}

	if p.IsContainer() {
		err := p.backend.DeleteContainer(ctx, p.Container())
		if err != nil && !errors.Is(err, ErrNotFound) {
			return pathErr(op, p.PurePath, err)
		}
	}
	return nil
}
