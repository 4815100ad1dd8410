package swiftpath

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"
)

// copyConcurrency bounds the server-side copies in flight during a tree move.
const copyConcurrency = 8

// Rename moves the path to target and returns the new path. An existing
// target is refused with ErrExists. The move is a copy followed by a delete
// and is not atomic, see PartialRenameError.
func (p Path) Rename(ctx context.Context, target PurePath) (Path, error) {
	return p.move(ctx, "rename", target, true, false)
}

// Replace is Rename that overwrites an existing target. Moving a directory
// onto an existing directory merges the two trees. Re-running Replace after
// a PartialRenameError finishes the move.
func (p Path) Replace(ctx context.Context, target PurePath) (Path, error) {
	return p.move(ctx, "replace", target, true, true)
}

// CopyTo copies the object, or every object below a directory, to target
// with server-side copies. Existing objects at the target are overwritten.
func (p Path) CopyTo(ctx context.Context, target PurePath) (Path, error) {
	return p.move(ctx, "copy", target, false, true)
}

func (p Path) move(ctx context.Context, op string, target PurePath, deleteSource, overwrite bool) (Path, error) {
	dst := Bind(p.backend, target)

	if p.IsRoot() {
		return Path{}, pathErr(op, p.PurePath, ErrUnsupported)
	}
	if target.IsRoot() {
		return Path{}, pathErr(op, target, ErrInvalidPath)
	}
	if p.Equal(target) {
		return dst, nil
	}
	if target.IsRelativeTo(p.PurePath) {
		return Path{}, pathErr(op, target, ErrInvalidPath)
	}

	sk, _, err := p.probe(ctx)
	if err != nil {
		return Path{}, pathErr(op, p.PurePath, err)
	}
	if sk == kindMissing {
		return Path{}, pathErr(op, p.PurePath, ErrNotFound)
	}

	tk, _, err := dst.probe(ctx)
	if err != nil {
		return Path{}, pathErr(op, target, err)
	}
	if tk != kindMissing && !overwrite {
		return Path{}, pathErr(op, target, ErrExists)
	}

	slog.Debug("moving path", "op", op, "source", p.describe(), "target", target.String())

	if sk == kindObject {
		if !target.HasKey() || tk.isDir() {
			return Path{}, pathErr(op, target, ErrIsADirectory)
		}
		if err := p.backend.Copy(ctx, p.ref(), dst.ref()); err != nil {
			return Path{}, pathErr(op, p.PurePath, err)
		}
		if !deleteSource {
			return dst, nil
		}
		err := p.backend.Delete(ctx, p.ref())
		if err != nil && !errors.Is(err, ErrNotFound) {
			return Path{}, &PartialRenameError{
				Source:    p.String(),
				Target:    target.String(),
				Remaining: []string{p.ref().String()},
				Err:       err,
			}
		}
		return dst, nil
	}

	if tk == kindObject {
		return Path{}, pathErr(op, target, ErrNotADirectory)
	}
	if err := p.moveTree(ctx, op, dst, tk, deleteSource); err != nil {
		return Path{}, err
	}
	return dst, nil
}

func (p Path) moveTree(ctx context.Context, op string, dst Path, tk kind, deleteSource bool) error {
	if dst.IsContainer() && tk == kindMissing {
		err := p.backend.CreateContainer(ctx, dst.Container())
		if err != nil && !errors.Is(err, ErrExists) {
			return pathErr(op, dst.PurePath, err)
		}
	}

	refs, err := p.collectRefs(ctx)
	if err != nil {
		return pathErr(op, p.PurePath, err)
	}

	srcPrefix, dstPrefix := p.dirPrefix(), dst.dirPrefix()
	pairs := make([][2]ObjectRef, 0, len(refs))
	for _, r := range refs {
		pairs = append(pairs, [2]ObjectRef{r, {
			Container: dst.Container(),
			Key:       dstPrefix + strings.TrimPrefix(r.Key, srcPrefix),
		}})
	}
	if err := copyAll(ctx, p.backend, pairs); err != nil {
		return pathErr(op, p.PurePath, err)
	}
	if !deleteSource {
		return nil
	}

	remaining, err := deleteAll(ctx, p.backend, refs)
	if err == nil && p.IsContainer() {
		err = p.backend.DeleteContainer(ctx, p.Container())
		if errors.Is(err, ErrNotFound) {
			err = nil
		}
		if err != nil {
			remaining = append(remaining, p.String())
		}
	}
	if err != nil {
		return &PartialRenameError{
			Source:    p.String(),
			Target:    dst.String(),
			Remaining: remaining,
			Err:       err,
		}
	}
	return nil
}

// collectRefs lists every object below a container or directory, markers
// included. Keys are taken verbatim so objects that cannot be addressed as
// paths are still moved and deleted.
func (p Path) collectRefs(ctx context.Context) ([]ObjectRef, error) {
	var refs []ObjectRef
	for page, err := range pages(ctx, p.backend, p.Container(), ListQuery{Prefix: p.dirPrefix()}) {
		if err != nil {
			return nil, err
		}
		for _, o := range page.Objects {
			refs = append(refs, ObjectRef{Container: p.Container(), Key: o.Key})
		}
	}
	return refs, nil
}

func copyAll(ctx context.Context, b Backend, pairs [][2]ObjectRef) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(copyConcurrency)
	for _, pair := range pairs {
		g.Go(func() error {
			return b.Copy(gctx, pair[0], pair[1])
		})
	}
	return g.Wait()
}

// deleteAll attempts every delete even after a failure and returns the
// objects it could not remove. Already missing objects count as deleted.
func deleteAll(ctx context.Context, b Backend, refs []ObjectRef) ([]string, error) {
	var (
		mu        sync.Mutex
		remaining []string
		errs      []error
	)

	var g errgroup.Group
	g.SetLimit(copyConcurrency)
	for _, r := range refs {
		g.Go(func() error {
			err := b.Delete(ctx, r)
			if err == nil || errors.Is(err, ErrNotFound) {
				return nil
			}
			mu.Lock()
			remaining = append(remaining, r.String())
			errs = append(errs, err)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	slices.Sort(remaining)
	return remaining, errors.Join(errs...)
}

// SymlinkTo turns the path into a native symlink pointing at target. The
// backend has to implement Symlinker. Unless opts names another account the
// target must exist.
func (p Path) SymlinkTo(ctx context.Context, target PurePath, opts SymlinkOptions) error {
	const op = "symlink"

	s, ok := p.backend.(Symlinker)
	if !ok {
		return pathErr(op, p.PurePath, ErrUnsupported)
	}
	if !p.HasKey() {
		return pathErr(op, p.PurePath, ErrIsADirectory)
	}
	if !target.HasKey() {
		return pathErr(op, target, ErrInvalidPath)
	}

	if opts.TargetAccount == "" {
		ok, err := Bind(p.backend, target).IsFile(ctx)
		if err != nil {
			return err
		}
		if !ok {
			return pathErr(op, target, ErrNotFound)
		}
	}

	exists, err := p.Exists(ctx)
	if err != nil {
		return err
	}
	if exists {
		return pathErr(op, p.PurePath, ErrExists)
	}

	tref := ObjectRef{Container: target.Container(), Key: target.Key()}
	if err := s.Symlink(ctx, p.ref(), tref, opts); err != nil {
		return pathErr(op, p.PurePath, err)
	}
	return nil
}
