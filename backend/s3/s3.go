// Package s3 is a Backend over any S3 compatible store, driven by minio-go.
// Each container maps to a bucket named BucketPrefix+container. The backend
// does not implement swiftpath.Symlinker, so SymlinkTo reports ErrUnsupported.
package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"maps"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/sagarc03/swiftpath"
)

const (
	lastRune = "\U0010FFFF"

	// Objects up to this size go up in a single PUT so their ETag stays the
	// MD5 of the content.
	singlePutLimit = 16 << 20
)

type Config struct {
	Endpoint     string `mapstructure:"endpoint" validate:"required"`
	AccessKey    string `mapstructure:"access_key"`
	SecretKey    string `mapstructure:"secret_key"`
	Region       string `mapstructure:"region"`
	UseSSL       bool   `mapstructure:"use_ssl"`
	BucketPrefix string `mapstructure:"bucket_prefix"`
}

type Backend struct {
	client *minio.Client
	prefix string
}

var _ swiftpath.Backend = (*Backend)(nil)

func New(cfg Config) (*Backend, error) {
	if cfg.Endpoint == "" {
		return nil, errors.New("s3: endpoint is required")
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("s3 client: %w", err)
	}

	return NewFromClient(client, cfg.BucketPrefix), nil
}

// NewFromClient wraps a configured client. bucketPrefix is prepended to
// every container name.
func NewFromClient(client *minio.Client, bucketPrefix string) *Backend {
	return &Backend{client: client, prefix: bucketPrefix}
}

func (*Backend) Name() string {
	return "s3"
}

func (b *Backend) bucket(container string) string {
	return b.prefix + container
}

func translate(err error) error {
	if err == nil {
		return nil
	}

	resp := minio.ToErrorResponse(err)
	switch resp.Code {
	case "NoSuchKey", "NoSuchBucket":
		return fmt.Errorf("%w: %w", swiftpath.ErrNotFound, err)
	case "BucketNotEmpty":
		return fmt.Errorf("%w: %w", swiftpath.ErrDirectoryNotEmpty, err)
	case "BucketAlreadyOwnedByYou", "BucketAlreadyExists":
		return fmt.Errorf("%w: %w", swiftpath.ErrExists, err)
	}
	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%w: %w", swiftpath.ErrNotFound, err)
	}
	return err
}

func (b *Backend) ListContainers(ctx context.Context, marker string, limit int) (swiftpath.ContainerListResult, error) {
	if limit <= 0 {
		limit = swiftpath.DefaultListLimit
	}

	buckets, err := b.client.ListBuckets(ctx)
	if err != nil {
		return swiftpath.ContainerListResult{}, fmt.Errorf("list containers: %w", translate(err))
	}

	var names []string
	for _, bkt := range buckets {
		name, ok := strings.CutPrefix(bkt.Name, b.prefix)
		if ok && name != "" && name > marker {
			names = append(names, name)
		}
	}
	slices.Sort(names)

	var res swiftpath.ContainerListResult
	if len(names) > limit {
		names = names[:limit]
		res.NextMarker = names[limit-1]
	}
	for _, name := range names {
		res.Containers = append(res.Containers, swiftpath.ContainerInfo{Name: name})
	}
	return res, nil
}

func (b *Backend) CreateContainer(ctx context.Context, name string) error {
	if err := b.client.MakeBucket(ctx, b.bucket(name), minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("create container %s: %w", name, translate(err))
	}
	return nil
}

func (b *Backend) DeleteContainer(ctx context.Context, name string) error {
	if err := b.client.RemoveBucket(ctx, b.bucket(name)); err != nil {
		return fmt.Errorf("delete container %s: %w", name, translate(err))
	}
	return nil
}

// StatContainer walks the bucket to total its objects; S3 keeps no counters.
func (b *Backend) StatContainer(ctx context.Context, name string) (swiftpath.ContainerInfo, error) {
	ok, err := b.client.BucketExists(ctx, b.bucket(name))
	if err != nil {
		return swiftpath.ContainerInfo{}, fmt.Errorf("stat container %s: %w", name, translate(err))
	}
	if !ok {
		return swiftpath.ContainerInfo{}, fmt.Errorf("stat container %s: %w", name, swiftpath.ErrNotFound)
	}

	info := swiftpath.ContainerInfo{Name: name}
	for obj := range b.client.ListObjects(ctx, b.bucket(name), minio.ListObjectsOptions{Recursive: true}) {
		if obj.Err != nil {
			return swiftpath.ContainerInfo{}, fmt.Errorf("stat container %s: %w", name, translate(obj.Err))
		}
		info.Count++
		info.Bytes += obj.Size
	}
	return info, nil
}

// List supports "/" as the only delimiter since that is all S3 groups on.
func (b *Backend) List(ctx context.Context, container string, q swiftpath.ListQuery) (swiftpath.ListResult, error) {
	if q.Delimiter != "" && q.Delimiter != "/" {
		return swiftpath.ListResult{}, fmt.Errorf("list %s: delimiter %q: %w", container, q.Delimiter, swiftpath.ErrUnsupported)
	}

	limit := q.Limit
	if limit <= 0 {
		limit = swiftpath.DefaultListLimit
	}

	startAfter := q.Marker
	if q.Delimiter != "" && strings.HasSuffix(q.Marker, q.Delimiter) {
		startAfter += lastRune
	}

	// The listing goroutine stops once ctx is cancelled.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	objects := b.client.ListObjects(ctx, b.bucket(container), minio.ListObjectsOptions{
		Prefix:     q.Prefix,
		Recursive:  q.Delimiter == "",
		StartAfter: startAfter,
	})

	var (
		res   swiftpath.ListResult
		count int
		last  string
	)
	for obj := range objects {
		if obj.Err != nil {
			return swiftpath.ListResult{}, fmt.Errorf("list %s: %w", container, translate(obj.Err))
		}
		if count == limit {
			res.NextMarker = last
			break
		}
		count++
		last = obj.Key

		if q.Delimiter != "" && strings.HasSuffix(obj.Key, q.Delimiter) && len(obj.Key) > len(q.Prefix) {
			res.Prefixes = append(res.Prefixes, obj.Key)
			continue
		}
		res.Objects = append(res.Objects, objectInfo(obj))
	}
	return res, nil
}

func objectInfo(obj minio.ObjectInfo) swiftpath.ObjectInfo {
	return swiftpath.ObjectInfo{
		Key:          obj.Key,
		Size:         obj.Size,
		LastModified: obj.LastModified,
		Hash:         strings.Trim(obj.ETag, `"`),
		ContentType:  obj.ContentType,
	}
}

func (b *Backend) Get(ctx context.Context, ref swiftpath.ObjectRef) (swiftpath.ObjectInfo, io.ReadCloser, error) {
	obj, err := b.client.GetObject(ctx, b.bucket(ref.Container), ref.Key, minio.GetObjectOptions{})
	if err != nil {
		return swiftpath.ObjectInfo{}, nil, fmt.Errorf("get %s: %w", ref, translate(err))
	}

	// GetObject is lazy; Stat surfaces a missing key.
	st, err := obj.Stat()
	if err != nil {
		_ = obj.Close()
		return swiftpath.ObjectInfo{}, nil, fmt.Errorf("get %s: %w", ref, translate(err))
	}
	return objectInfo(st), obj, nil
}

func (b *Backend) Put(ctx context.Context, ref swiftpath.ObjectRef, content io.Reader, opts swiftpath.PutOptions) (swiftpath.ObjectInfo, error) {
	putOpts := minio.PutObjectOptions{
		ContentType:  opts.ContentType,
		UserMetadata: opts.Metadata,
		PartSize:     singlePutLimit,
	}

	var head bytes.Buffer
	n, err := io.CopyN(&head, content, singlePutLimit+1)
	if err != nil && !errors.Is(err, io.EOF) {
		return swiftpath.ObjectInfo{}, fmt.Errorf("put %s: read content: %w", ref, err)
	}

	body, size := io.Reader(&head), n
	if n > singlePutLimit {
		body, size = io.MultiReader(&head, content), -1
	}

	up, err := b.client.PutObject(ctx, b.bucket(ref.Container), ref.Key, body, size, putOpts)
	if err != nil {
		return swiftpath.ObjectInfo{}, fmt.Errorf("put %s: %w", ref, translate(err))
	}

	return swiftpath.ObjectInfo{
		Key:          ref.Key,
		Size:         up.Size,
		LastModified: up.LastModified,
		Hash:         strings.Trim(up.ETag, `"`),
		ContentType:  opts.ContentType,
	}, nil
}

// Delete checks for the key first; S3 reports success for missing keys.
func (b *Backend) Delete(ctx context.Context, ref swiftpath.ObjectRef) error {
	if _, err := b.client.StatObject(ctx, b.bucket(ref.Container), ref.Key, minio.StatObjectOptions{}); err != nil {
		return fmt.Errorf("delete %s: %w", ref, translate(err))
	}
	if err := b.client.RemoveObject(ctx, b.bucket(ref.Container), ref.Key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("delete %s: %w", ref, translate(err))
	}
	return nil
}

func (b *Backend) Copy(ctx context.Context, src, dst swiftpath.ObjectRef) error {
	_, err := b.client.CopyObject(ctx,
		minio.CopyDestOptions{Bucket: b.bucket(dst.Container), Object: dst.Key},
		minio.CopySrcOptions{Bucket: b.bucket(src.Container), Object: src.Key},
	)
	if err != nil {
		return fmt.Errorf("copy %s: %w", src, translate(err))
	}
	return nil
}

func (b *Backend) Stat(ctx context.Context, ref swiftpath.ObjectRef) (swiftpath.ObjectInfo, error) {
	st, err := b.client.StatObject(ctx, b.bucket(ref.Container), ref.Key, minio.StatObjectOptions{})
	if err != nil {
		return swiftpath.ObjectInfo{}, fmt.Errorf("stat %s: %w", ref, translate(err))
	}
	return objectInfo(st), nil
}

// Touch copies the object onto itself with refreshed metadata, which is
// how S3 moves LastModified without rewriting content.
func (b *Backend) Touch(ctx context.Context, ref swiftpath.ObjectRef) error {
	st, err := b.client.StatObject(ctx, b.bucket(ref.Container), ref.Key, minio.StatObjectOptions{})
	if err != nil {
		return fmt.Errorf("touch %s: %w", ref, translate(err))
	}

	meta := maps.Clone(st.UserMetadata)
	if meta == nil {
		meta = map[string]string{}
	}
	meta["Touched"] = strconv.FormatInt(time.Now().UnixNano(), 10)
	if st.ContentType != "" {
		meta["Content-Type"] = st.ContentType
	}

	_, err = b.client.CopyObject(ctx,
		minio.CopyDestOptions{
			Bucket:          b.bucket(ref.Container),
			Object:          ref.Key,
			UserMetadata:    meta,
			ReplaceMetadata: true,
		},
		minio.CopySrcOptions{Bucket: b.bucket(ref.Container), Object: ref.Key},
	)
	if err != nil {
		return fmt.Errorf("touch %s: %w", ref, translate(err))
	}
	return nil
}

func (*Backend) Close() error {
	return nil
}
