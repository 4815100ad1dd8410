package swiftpath

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"strings"
)

// Path is a PurePath bound to a Backend. The backend is not part of the
// path's identity. Existence and kind are never stored on the value; every
// call asks the backend again.
type Path struct {
	PurePath
	backend Backend
}

// New builds a Path from fragments, see NewPurePath.
func New(b Backend, fragments ...string) (Path, error) {
	if b == nil {
		return Path{}, errors.New("new path: backend is required")
	}
	pp, err := NewPurePath(fragments...)
	if err != nil {
		return Path{}, err
	}
	return Path{PurePath: pp, backend: b}, nil
}

// Bind attaches a backend to an existing PurePath. b must not be nil.
func Bind(b Backend, p PurePath) Path {
	return Path{PurePath: p, backend: b}
}

// FromURI parses a swift:// URI into a Path bound to b.
func FromURI(b Backend, uri string) (Path, error) {
	pp, err := ParseURI(uri)
	if err != nil {
		return Path{}, err
	}
	return Bind(b, pp), nil
}

func (p Path) Backend() Backend { return p.backend }

// Pure drops the backend.
func (p Path) Pure() PurePath { return p.PurePath }

func (p Path) Parent() Path {
	return Bind(p.backend, p.PurePath.Parent())
}

func (p Path) Parents() iter.Seq[Path] {
	return func(yield func(Path) bool) {
		for pp := range p.PurePath.Parents() {
			if !yield(Bind(p.backend, pp)) {
				return
			}
		}
	}
}

func (p Path) JoinPath(others ...string) (Path, error) {
	pp, err := p.PurePath.JoinPath(others...)
	if err != nil {
		return Path{}, err
	}
	return Bind(p.backend, pp), nil
}

func (p Path) WithName(name string) (Path, error) {
	pp, err := p.PurePath.WithName(name)
	if err != nil {
		return Path{}, err
	}
	return Bind(p.backend, pp), nil
}

func (p Path) WithSuffix(suffix string) (Path, error) {
	pp, err := p.PurePath.WithSuffix(suffix)
	if err != nil {
		return Path{}, err
	}
	return Bind(p.backend, pp), nil
}

func (p Path) ref() ObjectRef {
	return ObjectRef{Container: p.Container(), Key: p.Key()}
}

// dirPrefix is the listing prefix of the path's children.
func (p Path) dirPrefix() string {
	if !p.HasKey() {
		return ""
	}
	return p.Key() + Separator
}

// child resolves segments below p. Keys that do not survive normalization
// unchanged (for example "a//b" or "a/../b") cannot be addressed as paths.
func (p Path) child(rel ...string) (Path, bool) {
	segs := make([]string, 0, len(p.segs)+len(rel))
	segs = append(segs, p.segs...)
	for _, s := range rel {
		if s == "" || s == "." || s == ".." {
			return Path{}, false
		}
		segs = append(segs, s)
	}
	pp, err := newFromSegments(segs)
	if err != nil {
		slog.Debug("skipping unaddressable key", "base", p.String(), "rel", rel, "err", err)
		return Path{}, false
	}
	return Bind(p.backend, pp), true
}

type kind int

const (
	kindMissing kind = iota
	kindRoot
	kindContainer
	kindObject
	kindDir
)

func (k kind) isDir() bool {
	return k == kindRoot || k == kindContainer || k == kindDir
}

// probe classifies the path. An object stored at the exact key wins over a
// pseudo-directory of the same name.
func (p Path) probe(ctx context.Context) (kind, ObjectInfo, error) {
	if err := ctx.Err(); err != nil {
		return kindMissing, ObjectInfo{}, err
	}

	switch {
	case p.IsRoot():
		return kindRoot, ObjectInfo{}, nil
	case p.IsContainer():
		_, err := p.backend.StatContainer(ctx, p.Container())
		if errors.Is(err, ErrNotFound) {
			return kindMissing, ObjectInfo{}, nil
		}
		if err != nil {
			return kindMissing, ObjectInfo{}, err
		}
		return kindContainer, ObjectInfo{}, nil
	}

	info, err := p.backend.Stat(ctx, p.ref())
	if err == nil {
		return kindObject, info, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return kindMissing, ObjectInfo{}, err
	}

	ok, err := p.hasChildren(ctx)
	if err != nil {
		return kindMissing, ObjectInfo{}, err
	}
	if ok {
		return kindDir, ObjectInfo{}, nil
	}
	return kindMissing, ObjectInfo{}, nil
}

func (p Path) hasChildren(ctx context.Context) (bool, error) {
	res, err := p.backend.List(ctx, p.Container(), ListQuery{Prefix: p.dirPrefix(), Limit: 1})
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return len(res.Objects) > 0 || len(res.Prefixes) > 0, nil
}

// Exists reports whether the path is the root, a container, an object or a
// pseudo-directory.
func (p Path) Exists(ctx context.Context) (bool, error) {
	k, _, err := p.probe(ctx)
	if err != nil {
		return false, pathErr("exists", p.PurePath, err)
	}
	return k != kindMissing, nil
}

// IsDir reports whether the path is the root, a container or a
// pseudo-directory.
func (p Path) IsDir(ctx context.Context) (bool, error) {
	k, _, err := p.probe(ctx)
	if err != nil {
		return false, pathErr("is dir", p.PurePath, err)
	}
	return k.isDir(), nil
}

// IsFile reports whether an object exists at the path.
func (p Path) IsFile(ctx context.Context) (bool, error) {
	if !p.HasKey() {
		return false, nil
	}
	k, _, err := p.probe(ctx)
	if err != nil {
		return false, pathErr("is file", p.PurePath, err)
	}
	return k == kindObject, nil
}

// IsSymlink reports whether the path is a native symlink object. A missing
// path is not a symlink.
func (p Path) IsSymlink(ctx context.Context) (bool, error) {
	if !p.HasKey() {
		return false, nil
	}
	info, err := p.backend.Stat(ctx, p.ref())
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, pathErr("is symlink", p.PurePath, err)
	}
	return info.IsSymlink(), nil
}

// Stat returns the object's metadata. Directories get zero values.
func (p Path) Stat(ctx context.Context) (StatResult, error) {
	k, info, err := p.probe(ctx)
	if err != nil {
		return StatResult{}, pathErr("stat", p.PurePath, err)
	}
	switch k {
	case kindMissing:
		return StatResult{}, pathErr("stat", p.PurePath, ErrNotFound)
	case kindObject:
		return statFromInfo(info), nil
	default:
		return StatResult{IsDir: true}, nil
	}
}

// objectOpErr turns a not-found from an object operation into
// ErrIsADirectory when the path turns out to be a directory.
func (p Path) objectOpErr(ctx context.Context, op string, err error) error {
	if errors.Is(err, ErrNotFound) {
		if ok, dirErr := p.hasChildren(ctx); dirErr == nil && ok {
			return pathErr(op, p.PurePath, ErrIsADirectory)
		}
	}
	return pathErr(op, p.PurePath, err)
}

// Open opens the object for reading. The caller must close the reader.
func (p Path) Open(ctx context.Context) (io.ReadCloser, error) {
	if !p.HasKey() {
		return nil, pathErr("open", p.PurePath, ErrIsADirectory)
	}
	_, rc, err := p.backend.Get(ctx, p.ref())
	if err != nil {
		return nil, p.objectOpErr(ctx, "open", err)
	}
	return rc, nil
}

func (p Path) ReadBytes(ctx context.Context) ([]byte, error) {
	rc, err := p.Open(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rc.Close() }()

	data, err := io.ReadAll(&ctxReader{ctx: ctx, r: rc})
	if err != nil {
		return nil, pathErr("read", p.PurePath, err)
	}
	return data, nil
}

func (p Path) ReadText(ctx context.Context) (string, error) {
	data, err := p.ReadBytes(ctx)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// WriteBytes creates or replaces the object. The container must exist.
func (p Path) WriteBytes(ctx context.Context, data []byte) error {
	if !p.HasKey() {
		return pathErr("write", p.PurePath, ErrIsADirectory)
	}
	opts := PutOptions{ContentType: DetectContentType(p.Name(), data)}
	if _, err := p.backend.Put(ctx, p.ref(), bytes.NewReader(data), opts); err != nil {
		return pathErr("write", p.PurePath, err)
	}
	return nil
}

func (p Path) WriteText(ctx context.Context, text string) error {
	return p.WriteBytes(ctx, []byte(text))
}

// Create returns a writer that streams into the object. The object is
// committed when Close returns nil.
func (p Path) Create(ctx context.Context) (io.WriteCloser, error) {
	if !p.HasKey() {
		return nil, pathErr("create", p.PurePath, ErrIsADirectory)
	}
	pr, pw := io.Pipe()
	w := &objectWriter{path: p.PurePath, pw: pw, done: make(chan error, 1)}
	opts := PutOptions{ContentType: DetectContentType(p.Name(), nil)}
	go func() {
		_, err := p.backend.Put(ctx, p.ref(), pr, opts)
		if err != nil {
			_ = pr.CloseWithError(err)
		} else {
			_ = pr.Close()
		}
		w.done <- err
	}()
	return w, nil
}

type objectWriter struct {
	path   PurePath
	pw     *io.PipeWriter
	done   chan error
	closed bool
	err    error
}

func (w *objectWriter) Write(b []byte) (int, error) {
	if w.closed {
		return 0, pathErr("write", w.path, io.ErrClosedPipe)
	}
	return w.pw.Write(b)
}

func (w *objectWriter) Close() error {
	if w.closed {
		return w.err
	}
	w.closed = true
	_ = w.pw.Close()
	if err := <-w.done; err != nil {
		w.err = pathErr("write", w.path, err)
	}
	return w.err
}

// Touch creates an empty object or refreshes the modification time of an
// existing one.
func (p Path) Touch(ctx context.Context) error {
	if !p.HasKey() {
		return pathErr("touch", p.PurePath, ErrIsADirectory)
	}
	err := p.backend.Touch(ctx, p.ref())
	if errors.Is(err, ErrNotFound) {
		return p.WriteBytes(ctx, nil)
	}
	if err != nil {
		return pathErr("touch", p.PurePath, err)
	}
	return nil
}

// Unlink deletes the object. Directories are refused with ErrIsADirectory.
func (p Path) Unlink(ctx context.Context, missingOK bool) error {
	if !p.HasKey() {
		return pathErr("unlink", p.PurePath, ErrIsADirectory)
	}
	err := p.backend.Delete(ctx, p.ref())
	if err == nil {
		return nil
	}
	err = p.objectOpErr(ctx, "unlink", err)
	if missingOK && errors.Is(err, ErrNotFound) {
		return nil
	}
	return err
}

type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (r *ctxReader) Read(p []byte) (int, error) {
	if err := r.ctx.Err(); err != nil {
		return 0, err
	}
	return r.r.Read(p)
}

// pages walks a container listing page by page.
func pages(ctx context.Context, b Backend, container string, q ListQuery) iter.Seq2[ListResult, error] {
	return func(yield func(ListResult, error) bool) {
		if q.Limit <= 0 {
			q.Limit = DefaultListLimit
		}
		for {
			if err := ctx.Err(); err != nil {
				yield(ListResult{}, err)
				return
			}
			res, err := b.List(ctx, container, q)
			if err != nil {
				yield(ListResult{}, err)
				return
			}
			if !yield(res, nil) {
				return
			}
			if res.NextMarker == "" {
				return
			}
			q.Marker = res.NextMarker
		}
	}
}

func containerPages(ctx context.Context, b Backend) iter.Seq2[ContainerListResult, error] {
	return func(yield func(ContainerListResult, error) bool) {
		marker := ""
		for {
			if err := ctx.Err(); err != nil {
				yield(ContainerListResult{}, err)
				return
			}
			res, err := b.ListContainers(ctx, marker, DefaultListLimit)
			if err != nil {
				yield(ContainerListResult{}, err)
				return
			}
			if !yield(res, nil) {
				return
			}
			if res.NextMarker == "" {
				return
			}
			marker = res.NextMarker
		}
	}
}

func (p Path) describe() string {
	return fmt.Sprintf("%s on %s", p.String(), p.backend.Name())
}

func isMarkerKey(key string) bool {
	return key == MarkerName || strings.HasSuffix(key, Separator+MarkerName)
}
