// Package memory is an in-process Backend holding objects in ordered maps.
// It supports native symlinks and paginated listings and is the backend the
// path tests run against.
package memory

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"maps"
	"strings"
	"sync"
	"time"

	"github.com/sagarc03/swiftpath"
	"github.com/tidwall/btree"
)

// maxSymlinkDepth stops Get on symlink loops.
const maxSymlinkDepth = 8

type object struct {
	data        []byte
	contentType string
	modified    time.Time
	hash        string
	metadata    map[string]string

	linkTarget  *swiftpath.ObjectRef
	linkAccount string
}

type container struct {
	objects *btree.Map[string, *object]
}

// Backend stores containers and objects in memory. The zero value is not
// usable, call New.
type Backend struct {
	mu         sync.RWMutex
	containers *btree.Map[string, *container]
	now        func() time.Time
}

var (
	_ swiftpath.Backend   = (*Backend)(nil)
	_ swiftpath.Symlinker = (*Backend)(nil)
)

func New() *Backend {
	return &Backend{
		containers: btree.NewMap[string, *container](0),
		now:        time.Now,
	}
}

// SetClock replaces the time source used for modification times.
func (b *Backend) SetClock(now func() time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.now = now
}

func (*Backend) Name() string {
	return "memory"
}

func (b *Backend) ListContainers(ctx context.Context, marker string, limit int) (swiftpath.ContainerListResult, error) {
	if err := ctx.Err(); err != nil {
		return swiftpath.ContainerListResult{}, err
	}
	if limit <= 0 {
		limit = swiftpath.DefaultListLimit
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	var res swiftpath.ContainerListResult
	b.containers.Ascend(marker, func(name string, c *container) bool {
		if name == marker {
			return true
		}
		if len(res.Containers) == limit {
			res.NextMarker = res.Containers[limit-1].Name
			return false
		}
		res.Containers = append(res.Containers, c.info(name))
		return true
	})
	return res, nil
}

func (c *container) info(name string) swiftpath.ContainerInfo {
	info := swiftpath.ContainerInfo{Name: name, Count: int64(c.objects.Len())}
	c.objects.Scan(func(_ string, o *object) bool {
		info.Bytes += int64(len(o.data))
		return true
	})
	return info
}

func (b *Backend) CreateContainer(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.containers.Get(name); ok {
		return fmt.Errorf("create container %s: %w", name, swiftpath.ErrExists)
	}
	b.containers.Set(name, &container{objects: btree.NewMap[string, *object](0)})
	return nil
}

func (b *Backend) DeleteContainer(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	c, ok := b.containers.Get(name)
	if !ok {
		return fmt.Errorf("delete container %s: %w", name, swiftpath.ErrNotFound)
	}
	if c.objects.Len() > 0 {
		return fmt.Errorf("delete container %s: %w", name, swiftpath.ErrDirectoryNotEmpty)
	}
	b.containers.Delete(name)
	return nil
}

func (b *Backend) StatContainer(ctx context.Context, name string) (swiftpath.ContainerInfo, error) {
	if err := ctx.Err(); err != nil {
		return swiftpath.ContainerInfo{}, err
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	c, ok := b.containers.Get(name)
	if !ok {
		return swiftpath.ContainerInfo{}, fmt.Errorf("stat container %s: %w", name, swiftpath.ErrNotFound)
	}
	return c.info(name), nil
}

// List walks keys in order starting after the marker. With a delimiter, keys
// sharing a prefix up to the delimiter are reported once in Prefixes and the
// marker may be such a prefix.
func (b *Backend) List(ctx context.Context, name string, q swiftpath.ListQuery) (swiftpath.ListResult, error) {
	if err := ctx.Err(); err != nil {
		return swiftpath.ListResult{}, err
	}
	limit := q.Limit
	if limit <= 0 {
		limit = swiftpath.DefaultListLimit
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	c, ok := b.containers.Get(name)
	if !ok {
		return swiftpath.ListResult{}, fmt.Errorf("list %s: %w", name, swiftpath.ErrNotFound)
	}

	pivot := max(q.Prefix, q.Marker)
	skipUnder := q.Delimiter != "" && strings.HasSuffix(q.Marker, q.Delimiter)

	var (
		res     swiftpath.ListResult
		count   int
		last    string
		lastDir string
	)
	c.objects.Ascend(pivot, func(key string, o *object) bool {
		if !strings.HasPrefix(key, q.Prefix) {
			return false
		}
		if key <= q.Marker || (skipUnder && strings.HasPrefix(key, q.Marker)) {
			return true
		}

		if q.Delimiter != "" {
			rest := key[len(q.Prefix):]
			if i := strings.Index(rest, q.Delimiter); i >= 0 {
				dir := q.Prefix + rest[:i+len(q.Delimiter)]
				if dir == lastDir {
					return true
				}
				if count == limit {
					res.NextMarker = last
					return false
				}
				lastDir, last = dir, dir
				res.Prefixes = append(res.Prefixes, dir)
				count++
				return true
			}
		}

		if count == limit {
			res.NextMarker = last
			return false
		}
		res.Objects = append(res.Objects, b.infoLocked(key, o))
		last = key
		count++
		return true
	})
	return res, nil
}

func (b *Backend) infoLocked(key string, o *object) swiftpath.ObjectInfo {
	info := swiftpath.ObjectInfo{
		Key:          key,
		Size:         int64(len(o.data)),
		LastModified: o.modified,
		Hash:         o.hash,
		ContentType:  o.contentType,
	}
	if o.linkTarget != nil {
		info.SymlinkTarget = o.linkTarget.Container + "/" + o.linkTarget.Key
		info.SymlinkAccount = o.linkAccount
		if t, err := b.resolveLocked(*o.linkTarget, 1); err == nil {
			info.Size = int64(len(t.data))
			info.Hash = t.hash
		}
	}
	return info
}

func (b *Backend) lookupLocked(ref swiftpath.ObjectRef) (*object, error) {
	c, ok := b.containers.Get(ref.Container)
	if !ok {
		return nil, fmt.Errorf("%s: container: %w", ref, swiftpath.ErrNotFound)
	}
	o, ok := c.objects.Get(ref.Key)
	if !ok {
		return nil, fmt.Errorf("%s: %w", ref, swiftpath.ErrNotFound)
	}
	return o, nil
}

// resolveLocked follows symlinks until it reaches a regular object.
func (b *Backend) resolveLocked(ref swiftpath.ObjectRef, depth int) (*object, error) {
	o, err := b.lookupLocked(ref)
	if err != nil {
		return nil, err
	}
	if o.linkTarget == nil {
		return o, nil
	}
	if o.linkAccount != "" || depth >= maxSymlinkDepth {
		return nil, fmt.Errorf("%s: unresolvable symlink: %w", ref, swiftpath.ErrNotFound)
	}
	return b.resolveLocked(*o.linkTarget, depth+1)
}

func (b *Backend) Get(ctx context.Context, ref swiftpath.ObjectRef) (swiftpath.ObjectInfo, io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return swiftpath.ObjectInfo{}, nil, err
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	o, err := b.resolveLocked(ref, 0)
	if err != nil {
		return swiftpath.ObjectInfo{}, nil, fmt.Errorf("get %w", err)
	}
	return b.infoLocked(ref.Key, o), io.NopCloser(bytes.NewReader(o.data)), nil
}

func (b *Backend) Put(ctx context.Context, ref swiftpath.ObjectRef, content io.Reader, opts swiftpath.PutOptions) (swiftpath.ObjectInfo, error) {
	data, err := io.ReadAll(content)
	if err != nil {
		return swiftpath.ObjectInfo{}, fmt.Errorf("put %s: read content: %w", ref, err)
	}
	if err := ctx.Err(); err != nil {
		return swiftpath.ObjectInfo{}, err
	}

	sum := md5.Sum(data)
	o := &object{
		data:        data,
		contentType: opts.ContentType,
		hash:        hex.EncodeToString(sum[:]),
		metadata:    maps.Clone(opts.Metadata),
	}
	if o.contentType == "" {
		o.contentType = "application/octet-stream"
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	c, ok := b.containers.Get(ref.Container)
	if !ok {
		return swiftpath.ObjectInfo{}, fmt.Errorf("put %s: container: %w", ref, swiftpath.ErrNotFound)
	}
	o.modified = b.now()
	c.objects.Set(ref.Key, o)
	return b.infoLocked(ref.Key, o), nil
}

func (b *Backend) Delete(ctx context.Context, ref swiftpath.ObjectRef) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	c, ok := b.containers.Get(ref.Container)
	if !ok {
		return fmt.Errorf("delete %s: container: %w", ref, swiftpath.ErrNotFound)
	}
	if _, ok := c.objects.Delete(ref.Key); !ok {
		return fmt.Errorf("delete %s: %w", ref, swiftpath.ErrNotFound)
	}
	return nil
}

// Copy duplicates the stored object. A symlink is copied as a link.
func (b *Backend) Copy(ctx context.Context, src, dst swiftpath.ObjectRef) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	o, err := b.lookupLocked(src)
	if err != nil {
		return fmt.Errorf("copy %w", err)
	}
	c, ok := b.containers.Get(dst.Container)
	if !ok {
		return fmt.Errorf("copy %s: container: %w", dst, swiftpath.ErrNotFound)
	}

	dup := *o
	dup.metadata = maps.Clone(o.metadata)
	dup.modified = b.now()
	c.objects.Set(dst.Key, &dup)
	return nil
}

func (b *Backend) Stat(ctx context.Context, ref swiftpath.ObjectRef) (swiftpath.ObjectInfo, error) {
	if err := ctx.Err(); err != nil {
		return swiftpath.ObjectInfo{}, err
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	o, err := b.lookupLocked(ref)
	if err != nil {
		return swiftpath.ObjectInfo{}, fmt.Errorf("stat %w", err)
	}
	return b.infoLocked(ref.Key, o), nil
}

func (b *Backend) Touch(ctx context.Context, ref swiftpath.ObjectRef) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	o, err := b.lookupLocked(ref)
	if err != nil {
		return fmt.Errorf("touch %w", err)
	}
	o.modified = b.now()
	return nil
}

func (b *Backend) Symlink(ctx context.Context, link, target swiftpath.ObjectRef, opts swiftpath.SymlinkOptions) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	c, ok := b.containers.Get(link.Container)
	if !ok {
		return fmt.Errorf("symlink %s: container: %w", link, swiftpath.ErrNotFound)
	}
	t := target
	c.objects.Set(link.Key, &object{
		contentType: swiftpath.SymlinkContentType,
		modified:    b.now(),
		hash:        hex.EncodeToString(md5.New().Sum(nil)),
		linkTarget:  &t,
		linkAccount: opts.TargetAccount,
	})
	return nil
}

// Close drops every container.
func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.containers.Clear()
	return nil
}
