// Package swift is the Backend for OpenStack Swift. It talks to the object
// store through github.com/ncw/swift/v2 and supports native symlinks.
package swift

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/ncw/swift/v2"
	"github.com/sagarc03/swiftpath"
)

// lastRune sorts after every key, so marker+lastRune skips a whole prefix.
const lastRune = "\U0010FFFF"

// Config holds the Keystone or TempAuth credentials for a Swift account.
// With StorageURL and AuthToken set no authentication request is made.
type Config struct {
	UserName      string        `mapstructure:"username"`
	UserID        string        `mapstructure:"user_id"`
	APIKey        string        `mapstructure:"password"`
	AuthURL       string        `mapstructure:"auth_url" validate:"required_without=StorageURL"`
	AuthVersion   int           `mapstructure:"auth_version"`
	UserDomain    string        `mapstructure:"user_domain_name"`
	Tenant        string        `mapstructure:"project_name"`
	TenantID      string        `mapstructure:"project_id"`
	TenantDomain  string        `mapstructure:"project_domain_name"`
	Region        string        `mapstructure:"region_name"`
	StorageURL    string        `mapstructure:"storage_url"`
	AuthToken     string        `mapstructure:"auth_token"`
	Timeout       time.Duration `mapstructure:"timeout"`
	RetryAttempts int           `mapstructure:"retries"`
}

type Backend struct {
	conn *swift.Connection
}

var (
	_ swiftpath.Backend   = (*Backend)(nil)
	_ swiftpath.Symlinker = (*Backend)(nil)
)

// New builds a connection from cfg and authenticates it.
func New(ctx context.Context, cfg Config) (*Backend, error) {
	conn := &swift.Connection{
		UserName:     cfg.UserName,
		UserId:       cfg.UserID,
		ApiKey:       cfg.APIKey,
		AuthUrl:      cfg.AuthURL,
		AuthVersion:  cfg.AuthVersion,
		Domain:       cfg.UserDomain,
		Tenant:       cfg.Tenant,
		TenantId:     cfg.TenantID,
		TenantDomain: cfg.TenantDomain,
		Region:       cfg.Region,
		StorageUrl:   cfg.StorageURL,
		AuthToken:    cfg.AuthToken,
		Timeout:      cfg.Timeout,
		Retries:      cfg.RetryAttempts,
	}

	if conn.StorageUrl == "" || conn.AuthToken == "" {
		if err := conn.Authenticate(ctx); err != nil {
			return nil, fmt.Errorf("swift authenticate: %w", err)
		}
	}

	return NewFromConnection(conn), nil
}

// NewFromConnection wraps an existing connection.
func NewFromConnection(conn *swift.Connection) *Backend {
	return &Backend{conn: conn}
}

func (*Backend) Name() string {
	return "swift"
}

// translate maps Swift status errors to the package sentinels and keeps the
// original error in the chain.
func translate(err error) error {
	if err == nil {
		return nil
	}

	var se *swift.Error
	if !errors.As(err, &se) {
		return err
	}

	switch se.StatusCode {
	case http.StatusNotFound:
		return fmt.Errorf("%w: %w", swiftpath.ErrNotFound, err)
	case http.StatusConflict:
		return fmt.Errorf("%w: %w", swiftpath.ErrDirectoryNotEmpty, err)
	default:
		return err
	}
}

func (b *Backend) ListContainers(ctx context.Context, marker string, limit int) (swiftpath.ContainerListResult, error) {
	if limit <= 0 {
		limit = swiftpath.DefaultListLimit
	}

	// One extra entry tells whether another page exists.
	containers, err := b.conn.Containers(ctx, &swift.ContainersOpts{Limit: limit + 1, Marker: marker})
	if err != nil {
		return swiftpath.ContainerListResult{}, fmt.Errorf("list containers: %w", translate(err))
	}

	var res swiftpath.ContainerListResult
	if len(containers) > limit {
		containers = containers[:limit]
		res.NextMarker = containers[limit-1].Name
	}
	for _, c := range containers {
		res.Containers = append(res.Containers, swiftpath.ContainerInfo{Name: c.Name, Count: c.Count, Bytes: c.Bytes})
	}
	return res, nil
}

// CreateContainer checks for the container first because a Swift PUT on an
// existing container succeeds.
func (b *Backend) CreateContainer(ctx context.Context, name string) error {
	_, _, err := b.conn.Container(ctx, name)
	switch {
	case err == nil:
		return fmt.Errorf("create container %s: %w", name, swiftpath.ErrExists)
	case !errors.Is(translate(err), swiftpath.ErrNotFound):
		return fmt.Errorf("create container %s: %w", name, err)
	}

	if err := b.conn.ContainerCreate(ctx, name, nil); err != nil {
		return fmt.Errorf("create container %s: %w", name, translate(err))
	}
	return nil
}

func (b *Backend) DeleteContainer(ctx context.Context, name string) error {
	if err := b.conn.ContainerDelete(ctx, name); err != nil {
		return fmt.Errorf("delete container %s: %w", name, translate(err))
	}
	return nil
}

func (b *Backend) StatContainer(ctx context.Context, name string) (swiftpath.ContainerInfo, error) {
	c, _, err := b.conn.Container(ctx, name)
	if err != nil {
		return swiftpath.ContainerInfo{}, fmt.Errorf("stat container %s: %w", name, translate(err))
	}
	return swiftpath.ContainerInfo{Name: c.Name, Count: c.Count, Bytes: c.Bytes}, nil
}

func (b *Backend) List(ctx context.Context, container string, q swiftpath.ListQuery) (swiftpath.ListResult, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = swiftpath.DefaultListLimit
	}

	opts := &swift.ObjectsOpts{Prefix: q.Prefix, Marker: q.Marker, Limit: limit + 1}
	if q.Delimiter != "" {
		r, size := utf8.DecodeRuneInString(q.Delimiter)
		if size != len(q.Delimiter) {
			return swiftpath.ListResult{}, fmt.Errorf("list %s: delimiter %q: %w", container, q.Delimiter, swiftpath.ErrUnsupported)
		}
		opts.Delimiter = r
		if strings.HasSuffix(q.Marker, q.Delimiter) {
			opts.Marker = q.Marker + lastRune
		}
	}

	objects, err := b.conn.Objects(ctx, container, opts)
	if err != nil {
		return swiftpath.ListResult{}, fmt.Errorf("list %s: %w", container, translate(err))
	}

	var res swiftpath.ListResult
	if len(objects) > limit {
		objects = objects[:limit]
		res.NextMarker = objects[limit-1].Name
	}
	for _, o := range objects {
		if o.PseudoDirectory {
			res.Prefixes = append(res.Prefixes, o.Name)
			continue
		}
		res.Objects = append(res.Objects, swiftpath.ObjectInfo{
			Key:          o.Name,
			Size:         o.Bytes,
			LastModified: o.LastModified,
			Hash:         o.Hash,
			ContentType:  o.ContentType,
		})
	}
	return res, nil
}

// infoFromHeaders reads an object HEAD or GET response.
func infoFromHeaders(key string, h swift.Headers) swiftpath.ObjectInfo {
	info := swiftpath.ObjectInfo{
		Key:         key,
		Hash:        strings.Trim(h["Etag"], `"`),
		ContentType: h["Content-Type"],
	}
	if n, err := strconv.ParseInt(h["Content-Length"], 10, 64); err == nil {
		info.Size = n
	}
	if t, err := http.ParseTime(h["Last-Modified"]); err == nil {
		info.LastModified = t
	}
	if target := h["X-Symlink-Target"]; target != "" {
		if unescaped, err := url.PathUnescape(target); err == nil {
			target = unescaped
		}
		info.SymlinkTarget = target
		info.SymlinkAccount = h["X-Symlink-Target-Account"]
	}
	return info
}

// head fetches an object's own headers. With symlink=get a link is reported
// instead of followed. Call needs the storage URL spelled out, so the
// connection is authenticated first when it has none.
func (b *Backend) head(ctx context.Context, ref swiftpath.ObjectRef) (swiftpath.ObjectInfo, error) {
	if !b.conn.Authenticated() {
		if err := b.conn.Authenticate(ctx); err != nil {
			return swiftpath.ObjectInfo{}, fmt.Errorf("swift authenticate: %w", err)
		}
	}

	_, headers, err := b.conn.Call(ctx, b.conn.StorageUrl, swift.RequestOpts{
		Container:  ref.Container,
		ObjectName: ref.Key,
		Operation:  http.MethodHead,
		Parameters: url.Values{"symlink": {"get"}},
		NoResponse: true,
		OnReAuth:   func() (string, error) { return b.conn.StorageUrl, nil },
	})
	if err != nil {
		return swiftpath.ObjectInfo{}, translate(err)
	}
	return infoFromHeaders(ref.Key, headers), nil
}

func (b *Backend) Get(ctx context.Context, ref swiftpath.ObjectRef) (swiftpath.ObjectInfo, io.ReadCloser, error) {
	f, headers, err := b.conn.ObjectOpen(ctx, ref.Container, ref.Key, false, nil)
	if err != nil {
		return swiftpath.ObjectInfo{}, nil, fmt.Errorf("get %s: %w", ref, translate(err))
	}
	return infoFromHeaders(ref.Key, headers), f, nil
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}

func (b *Backend) Put(ctx context.Context, ref swiftpath.ObjectRef, content io.Reader, opts swiftpath.PutOptions) (swiftpath.ObjectInfo, error) {
	var headers swift.Headers
	if len(opts.Metadata) > 0 {
		headers = swift.Metadata(opts.Metadata).ObjectHeaders()
	}

	body := &countingReader{r: content}
	h, err := b.conn.ObjectPut(ctx, ref.Container, ref.Key, body, false, "", opts.ContentType, headers)
	if err != nil {
		return swiftpath.ObjectInfo{}, fmt.Errorf("put %s: %w", ref, translate(err))
	}

	info := infoFromHeaders(ref.Key, h)
	info.Size = body.n
	info.ContentType = opts.ContentType
	return info, nil
}

func (b *Backend) Delete(ctx context.Context, ref swiftpath.ObjectRef) error {
	if err := b.conn.ObjectDelete(ctx, ref.Container, ref.Key); err != nil {
		return fmt.Errorf("delete %s: %w", ref, translate(err))
	}
	return nil
}

// Copy uses a server-side copy. Symlinks are recreated at dst because a
// Swift copy would duplicate the target instead.
func (b *Backend) Copy(ctx context.Context, src, dst swiftpath.ObjectRef) error {
	info, err := b.head(ctx, src)
	if err != nil {
		return fmt.Errorf("copy %s: %w", src, err)
	}

	if info.SymlinkTarget != "" {
		container, key, _ := strings.Cut(info.SymlinkTarget, "/")
		target := swiftpath.ObjectRef{Container: container, Key: key}
		opts := swiftpath.SymlinkOptions{TargetAccount: info.SymlinkAccount}
		if err := b.Symlink(ctx, dst, target, opts); err != nil {
			return fmt.Errorf("copy %s: %w", src, err)
		}
		return nil
	}

	if _, err := b.conn.ObjectCopy(ctx, src.Container, src.Key, dst.Container, dst.Key, nil); err != nil {
		return fmt.Errorf("copy %s: %w", src, translate(err))
	}
	return nil
}

// Stat reports the object itself. For a symlink the size and hash come from
// the target when it exists.
func (b *Backend) Stat(ctx context.Context, ref swiftpath.ObjectRef) (swiftpath.ObjectInfo, error) {
	info, err := b.head(ctx, ref)
	if err != nil {
		return swiftpath.ObjectInfo{}, fmt.Errorf("stat %s: %w", ref, err)
	}
	if info.SymlinkTarget == "" {
		return info, nil
	}

	target, _, err := b.conn.Object(ctx, ref.Container, ref.Key)
	switch {
	case err == nil:
		info.Size = target.Bytes
		info.Hash = target.Hash
	case !errors.Is(translate(err), swiftpath.ErrNotFound):
		return swiftpath.ObjectInfo{}, fmt.Errorf("stat %s: %w", ref, err)
	}
	return info, nil
}

// Touch rewrites the object's metadata, which moves Last-Modified forward.
// Swift replaces all user metadata on POST, so the current set is sent back.
func (b *Backend) Touch(ctx context.Context, ref swiftpath.ObjectRef) error {
	_, headers, err := b.conn.Object(ctx, ref.Container, ref.Key)
	if err != nil {
		return fmt.Errorf("touch %s: %w", ref, translate(err))
	}

	meta := headers.ObjectMetadata()
	meta["touched"] = strconv.FormatInt(time.Now().Unix(), 10)
	if err := b.conn.ObjectUpdate(ctx, ref.Container, ref.Key, meta.ObjectHeaders()); err != nil {
		return fmt.Errorf("touch %s: %w", ref, translate(err))
	}
	return nil
}

func (b *Backend) Symlink(ctx context.Context, link, target swiftpath.ObjectRef, opts swiftpath.SymlinkOptions) error {
	_, err := b.conn.ObjectSymlinkCreate(ctx, link.Container, link.Key, opts.TargetAccount, target.Container, target.Key, "")
	if err != nil {
		return fmt.Errorf("symlink %s: %w", link, translate(err))
	}
	return nil
}

// Close drops the cached token.
func (b *Backend) Close() error {
	b.conn.UnAuthenticate()
	return nil
}
