// Package local is a Backend for a single machine. Object records live in a
// SQL database through metadata.Repo and object content lives in files
// managed by filesystem.Store, one file per write.
package local

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/sagarc03/swiftpath"
	"github.com/sagarc03/swiftpath/database"
	"github.com/sagarc03/swiftpath/filesystem"
	"github.com/sagarc03/swiftpath/metadata"
)

const maxSymlinkDepth = 8

var emptyEtag = func() string {
	sum := md5.Sum(nil)
	return hex.EncodeToString(sum[:])
}()

// Config describes where a local backend keeps its data.
type Config struct {
	// Root is the directory holding object content.
	Root     string          `mapstructure:"root" validate:"required"`
	Database database.Config `mapstructure:"database"`
}

type Backend struct {
	repo   metadata.Repo
	blobs  *filesystem.Store
	closer func()
}

var (
	_ swiftpath.Backend   = (*Backend)(nil)
	_ swiftpath.Symlinker = (*Backend)(nil)
)

// New assembles a backend from an open repo and blob store. Close does not
// release either.
func New(repo metadata.Repo, blobs *filesystem.Store) *Backend {
	return &Backend{repo: repo, blobs: blobs}
}

// Open creates the root directory if needed, connects the metadata database
// and returns a backend that owns both.
func Open(ctx context.Context, cfg Config) (*Backend, error) {
	if err := os.MkdirAll(cfg.Root, 0o755); err != nil {
		return nil, fmt.Errorf("open local backend: %w", err)
	}

	root, err := os.OpenRoot(cfg.Root)
	if err != nil {
		return nil, fmt.Errorf("open local backend: %w", err)
	}

	repo, cleanup, err := database.Connect(ctx, cfg.Database)
	if err != nil {
		_ = root.Close()
		return nil, fmt.Errorf("open local backend: %w", err)
	}

	b := New(repo, filesystem.NewFileStorage(root))
	b.closer = func() {
		cleanup()
		_ = root.Close()
	}
	return b, nil
}

func (*Backend) Name() string {
	return "local"
}

func cursorAfter(marker string) string {
	if marker == "" {
		return ""
	}
	return metadata.EncodeCursor(marker)
}

func (b *Backend) ListContainers(ctx context.Context, marker string, limit int) (swiftpath.ContainerListResult, error) {
	page, err := b.repo.ListContainers(ctx, metadata.ContainerQuery{Limit: limit, Cursor: cursorAfter(marker)})
	if err != nil {
		return swiftpath.ContainerListResult{}, err
	}

	var res swiftpath.ContainerListResult
	for _, c := range page.Items {
		res.Containers = append(res.Containers, containerInfo(c))
	}
	if page.NextCursor != "" && len(res.Containers) > 0 {
		res.NextMarker = res.Containers[len(res.Containers)-1].Name
	}
	return res, nil
}

func containerInfo(c metadata.Container) swiftpath.ContainerInfo {
	return swiftpath.ContainerInfo{Name: c.Name, Count: c.Count, Bytes: c.Bytes}
}

func (b *Backend) CreateContainer(ctx context.Context, name string) error {
	_, err := b.repo.CreateContainer(ctx, name)
	return err
}

func (b *Backend) DeleteContainer(ctx context.Context, name string) error {
	return b.repo.DeleteContainer(ctx, name)
}

func (b *Backend) StatContainer(ctx context.Context, name string) (swiftpath.ContainerInfo, error) {
	c, err := b.repo.GetContainer(ctx, name)
	if err != nil {
		return swiftpath.ContainerInfo{}, err
	}
	return containerInfo(c), nil
}

// List pages through the repo in key order and collapses keys below the
// delimiter in Go. After emitting a prefix it resumes past every key under
// that prefix.
func (b *Backend) List(ctx context.Context, container string, q swiftpath.ListQuery) (swiftpath.ListResult, error) {
	if _, err := b.repo.GetContainer(ctx, container); err != nil {
		return swiftpath.ListResult{}, fmt.Errorf("list %s: %w", container, err)
	}

	limit := q.Limit
	if limit <= 0 {
		limit = swiftpath.DefaultListLimit
	}

	after := q.Marker
	if q.Delimiter != "" && strings.HasSuffix(q.Marker, q.Delimiter) {
		after = q.Marker + metadata.LastKey
	}

	var (
		res   swiftpath.ListResult
		count int
		last  string
	)
	for {
		page, err := b.repo.List(ctx, container, metadata.ListQuery{
			Prefix: q.Prefix,
			Limit:  limit + 1,
			Cursor: cursorAfter(after),
		})
		if err != nil {
			return swiftpath.ListResult{}, fmt.Errorf("list %s: %w", container, err)
		}

		jumped := false
		for _, obj := range page.Items {
			if count == limit {
				res.NextMarker = last
				return res, nil
			}

			if q.Delimiter != "" {
				rest := obj.Key[len(q.Prefix):]
				if i := strings.Index(rest, q.Delimiter); i >= 0 {
					dir := q.Prefix + rest[:i+len(q.Delimiter)]
					res.Prefixes = append(res.Prefixes, dir)
					count++
					last = dir
					after = dir + metadata.LastKey
					jumped = true
					break
				}
			}

			info, err := b.info(ctx, obj)
			if err != nil {
				return swiftpath.ListResult{}, fmt.Errorf("list %s: %w", container, err)
			}
			res.Objects = append(res.Objects, info)
			count++
			last = obj.Key
			after = obj.Key
		}

		if !jumped && page.NextCursor == "" {
			return res, nil
		}
	}
}

// info reports a record. Symlinks take size and hash from their target when
// it resolves.
func (b *Backend) info(ctx context.Context, obj metadata.Object) (swiftpath.ObjectInfo, error) {
	info := swiftpath.ObjectInfo{
		Key:            obj.Key,
		Size:           obj.SizeBytes,
		LastModified:   obj.UpdatedAt,
		Hash:           obj.Etag,
		ContentType:    obj.ContentType,
		SymlinkTarget:  obj.SymlinkTarget,
		SymlinkAccount: obj.SymlinkAccount,
	}
	if obj.SymlinkTarget == "" {
		return info, nil
	}

	target, err := b.resolve(ctx, obj, 1)
	switch {
	case err == nil:
		info.Size = target.SizeBytes
		info.Hash = target.Etag
	case !errors.Is(err, swiftpath.ErrNotFound):
		return swiftpath.ObjectInfo{}, err
	}
	return info, nil
}

func (b *Backend) lookup(ctx context.Context, ref swiftpath.ObjectRef) (metadata.Object, error) {
	obj, err := b.repo.Get(ctx, ref.Container, ref.Key)
	if err != nil {
		return metadata.Object{}, fmt.Errorf("%s: %w", ref, err)
	}
	return obj, nil
}

// resolve follows obj until it reaches a regular object.
func (b *Backend) resolve(ctx context.Context, obj metadata.Object, depth int) (metadata.Object, error) {
	for obj.SymlinkTarget != "" {
		if obj.SymlinkAccount != "" || depth > maxSymlinkDepth {
			return metadata.Object{}, fmt.Errorf("%s/%s: unresolvable symlink: %w", obj.Container, obj.Key, swiftpath.ErrNotFound)
		}
		container, key, _ := strings.Cut(obj.SymlinkTarget, "/")

		var err error
		obj, err = b.lookup(ctx, swiftpath.ObjectRef{Container: container, Key: key})
		if err != nil {
			return metadata.Object{}, err
		}
		depth++
	}
	return obj, nil
}

func (b *Backend) Get(ctx context.Context, ref swiftpath.ObjectRef) (swiftpath.ObjectInfo, io.ReadCloser, error) {
	obj, err := b.lookup(ctx, ref)
	if err != nil {
		return swiftpath.ObjectInfo{}, nil, fmt.Errorf("get %w", err)
	}

	target, err := b.resolve(ctx, obj, 0)
	if err != nil {
		return swiftpath.ObjectInfo{}, nil, fmt.Errorf("get %w", err)
	}

	f, err := b.blobs.Open(ctx, filesystem.BlobName(target.ID))
	if err != nil {
		return swiftpath.ObjectInfo{}, nil, fmt.Errorf("get %s: %w", ref, err)
	}

	info := swiftpath.ObjectInfo{
		Key:            ref.Key,
		Size:           target.SizeBytes,
		LastModified:   target.UpdatedAt,
		Hash:           target.Etag,
		ContentType:    target.ContentType,
		SymlinkTarget:  obj.SymlinkTarget,
		SymlinkAccount: obj.SymlinkAccount,
	}
	return info, f, nil
}

// store records obj and removes the content it replaced. When the record
// cannot be written, the new content is removed instead.
func (b *Backend) store(ctx context.Context, obj metadata.Object, hasBlob bool) error {
	previous, replaced, err := b.repo.Upsert(ctx, obj)
	if err != nil {
		if hasBlob {
			b.dropBlob(ctx, obj.ID)
		}
		return err
	}

	if replaced && previous.SymlinkTarget == "" {
		b.dropBlob(ctx, previous.ID)
	}
	return nil
}

func (b *Backend) dropBlob(ctx context.Context, id uuid.UUID) {
	if err := b.blobs.Delete(ctx, filesystem.BlobName(id)); err != nil && !errors.Is(err, swiftpath.ErrNotFound) {
		slog.Warn("failed to remove blob", "id", id, "err", err)
	}
}

func (b *Backend) Put(ctx context.Context, ref swiftpath.ObjectRef, content io.Reader, opts swiftpath.PutOptions) (swiftpath.ObjectInfo, error) {
	id := uuid.New()
	written, err := b.blobs.Write(ctx, filesystem.BlobName(id), content)
	if err != nil {
		return swiftpath.ObjectInfo{}, fmt.Errorf("put %s: %w", ref, err)
	}

	contentType := opts.ContentType
	if contentType == "" {
		contentType = swiftpath.DetectContentType(ref.Key, written.Head)
	}

	obj := metadata.Object{
		ID:          id,
		Container:   ref.Container,
		Key:         ref.Key,
		ContentType: contentType,
		Etag:        written.Etag,
		SizeBytes:   written.BytesWritten,
	}
	if err := b.store(ctx, obj, true); err != nil {
		return swiftpath.ObjectInfo{}, fmt.Errorf("put %s: %w", ref, err)
	}

	return b.Stat(ctx, ref)
}

func (b *Backend) Delete(ctx context.Context, ref swiftpath.ObjectRef) error {
	obj, err := b.repo.Delete(ctx, ref.Container, ref.Key)
	if err != nil {
		return fmt.Errorf("delete %s: %w", ref, err)
	}
	if obj.SymlinkTarget == "" {
		b.dropBlob(ctx, obj.ID)
	}
	return nil
}

// Copy duplicates the record and its content. A symlink is copied as a link.
func (b *Backend) Copy(ctx context.Context, src, dst swiftpath.ObjectRef) error {
	obj, err := b.lookup(ctx, src)
	if err != nil {
		return fmt.Errorf("copy %w", err)
	}

	dup := obj
	dup.ID = uuid.New()
	dup.Container = dst.Container
	dup.Key = dst.Key

	hasBlob := obj.SymlinkTarget == ""
	if hasBlob {
		if _, err := b.blobs.Copy(ctx, filesystem.BlobName(obj.ID), filesystem.BlobName(dup.ID)); err != nil {
			return fmt.Errorf("copy %s: %w", src, err)
		}
	}

	if err := b.store(ctx, dup, hasBlob); err != nil {
		return fmt.Errorf("copy %s: %w", dst, err)
	}
	return nil
}

func (b *Backend) Stat(ctx context.Context, ref swiftpath.ObjectRef) (swiftpath.ObjectInfo, error) {
	obj, err := b.lookup(ctx, ref)
	if err != nil {
		return swiftpath.ObjectInfo{}, fmt.Errorf("stat %w", err)
	}
	return b.info(ctx, obj)
}

func (b *Backend) Touch(ctx context.Context, ref swiftpath.ObjectRef) error {
	if _, err := b.repo.Touch(ctx, ref.Container, ref.Key); err != nil {
		return fmt.Errorf("touch %s: %w", ref, err)
	}
	return nil
}

func (b *Backend) Symlink(ctx context.Context, link, target swiftpath.ObjectRef, opts swiftpath.SymlinkOptions) error {
	obj := metadata.Object{
		ID:             uuid.New(),
		Container:      link.Container,
		Key:            link.Key,
		ContentType:    swiftpath.SymlinkContentType,
		Etag:           emptyEtag,
		SymlinkTarget:  target.Container + "/" + target.Key,
		SymlinkAccount: opts.TargetAccount,
	}
	if err := b.store(ctx, obj, false); err != nil {
		return fmt.Errorf("symlink %s: %w", link, err)
	}
	return nil
}

// Close releases the database and root directory when the backend was
// created by Open.
func (b *Backend) Close() error {
	if b.closer != nil {
		b.closer()
		b.closer = nil
	}
	return nil
}
