// Package remote is a Backend that talks to a swiftpath gateway (see package
// http) over presigned URLs, so a tree served by `swiftpath serve` can be
// browsed from another machine with the same Path API.
package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	stowry "github.com/sagarc03/stowry-go"
	"github.com/sagarc03/swiftpath"
	gateway "github.com/sagarc03/swiftpath/http"
)

const (
	// DefaultTimeout is the default HTTP client timeout.
	DefaultTimeout = 30 * time.Second

	// DefaultExpires is the default presigned URL expiry in seconds (15 minutes).
	DefaultExpires = 900

	// DefaultMaxRetries bounds retries of idempotent reads.
	DefaultMaxRetries = 3
)

// ErrEndpointRequired is returned by New for an empty endpoint.
var ErrEndpointRequired = errors.New("endpoint is required")

// Config points the backend at a gateway. Requests are unsigned when
// AccessKey is empty, which only works against a public gateway.
type Config struct {
	Endpoint  string `mapstructure:"endpoint" validate:"required,url"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
}

type Backend struct {
	endpoint   string
	accessKey  string
	secretKey  string
	httpClient *http.Client
	maxRetries uint64
	now        func() time.Time
}

var (
	_ swiftpath.Backend   = (*Backend)(nil)
	_ swiftpath.Symlinker = (*Backend)(nil)
)

// Option configures a Backend.
type Option func(*Backend)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(b *Backend) {
		b.httpClient = client
	}
}

// WithTimeout sets the HTTP client timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(b *Backend) {
		b.httpClient.Timeout = timeout
	}
}

// WithMaxRetries sets how often a failed read is retried. Zero disables
// retries.
func WithMaxRetries(n uint64) Option {
	return func(b *Backend) {
		b.maxRetries = n
	}
}

func New(cfg Config, opts ...Option) (*Backend, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("remote: %w", ErrEndpointRequired)
	}

	b := &Backend{
		endpoint:   strings.TrimSuffix(cfg.Endpoint, "/"),
		accessKey:  cfg.AccessKey,
		secretKey:  cfg.SecretKey,
		httpClient: &http.Client{Timeout: DefaultTimeout},
		maxRetries: DefaultMaxRetries,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b, nil
}

func (b *Backend) Name() string { return "remote" }

func (b *Backend) Close() error {
	b.httpClient.CloseIdleConnections()
	return nil
}

// presign returns the URL for method on the unescaped path p. The signature
// covers the decoded path, which is what the gateway sees in r.URL.Path.
func (b *Backend) presign(method, p string, query url.Values) string {
	if query == nil {
		query = url.Values{}
	}
	if b.accessKey != "" {
		ts := b.now().Unix()
		query.Set(stowry.StowryCredentialParam, b.accessKey)
		query.Set(stowry.StowryDateParam, strconv.FormatInt(ts, 10))
		query.Set(stowry.StowryExpiresParam, strconv.Itoa(DefaultExpires))
		query.Set(stowry.StowrySignatureParam, stowry.Sign(b.secretKey, method, p, ts, DefaultExpires))
	}

	u := b.endpoint + (&url.URL{Path: p}).EscapedPath()
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return u
}

func objectPath(ref swiftpath.ObjectRef) string {
	return "/" + ref.Container + "/" + ref.Key
}

// do sends a request built by newReq. GET and HEAD are retried on transport
// errors and 5xx responses; any other response is returned to the caller.
func (b *Backend) do(ctx context.Context, method string, newReq func() (*http.Request, error)) (*http.Response, error) {
	op := func() (*http.Response, error) {
		req, err := newReq()
		if err != nil {
			return nil, backoff.Permanent(fmt.Errorf("create request: %w", err))
		}
		resp, err := b.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, backoff.Permanent(ctx.Err())
			}
			return nil, fmt.Errorf("do request: %w", err)
		}
		if resp.StatusCode >= http.StatusInternalServerError {
			err := responseError(resp)
			slog.Debug("remote request failed", "method", method, "url", req.URL.Path, "status", resp.StatusCode)
			return nil, err
		}
		return resp, nil
	}

	if method != http.MethodGet && method != http.MethodHead {
		resp, err := op()
		var perm *backoff.PermanentError
		if errors.As(err, &perm) {
			return nil, perm.Err
		}
		return resp, err
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), b.maxRetries), ctx)
	return backoff.RetryWithData(op, policy)
}

func (b *Backend) send(ctx context.Context, method, p string, query url.Values, body io.Reader, hdr http.Header) (*http.Response, error) {
	return b.do(ctx, method, func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, method, b.presign(method, p, query), body)
		if err != nil {
			return nil, err
		}
		for k, v := range hdr {
			req.Header[k] = v
		}
		return req, nil
	})
}

// expect closes resp and returns the mapped error unless its status is one
// of ok.
func expect(resp *http.Response, ok ...int) error {
	for _, code := range ok {
		if resp.StatusCode == code {
			return nil
		}
	}
	return responseError(resp)
}

// responseError consumes and closes resp. The sentinel comes from the
// ErrorResponse code, or from the status when there is no body (HEAD).
func responseError(resp *http.Response) error {
	defer func() { _ = resp.Body.Close() }()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var er gateway.ErrorResponse
	if err := json.Unmarshal(body, &er); err == nil && er.Error != "" {
		if sentinel := gateway.CodeError(er.Error); sentinel != nil {
			return fmt.Errorf("%s: %w", er.Message, sentinel)
		}
		return fmt.Errorf("server error (%d): %s", resp.StatusCode, er.Message)
	}

	switch resp.StatusCode {
	case http.StatusNotFound:
		return swiftpath.ErrNotFound
	case http.StatusUnauthorized, http.StatusForbidden:
		return gateway.ErrUnauthorized
	case http.StatusBadRequest:
		return swiftpath.ErrInvalidPath
	case http.StatusNotImplemented:
		return swiftpath.ErrUnsupported
	default:
		return fmt.Errorf("server error (%d): %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
}

func decode(resp *http.Response, v any) error {
	defer func() { _ = resp.Body.Close() }()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("parse response: %w", err)
	}
	return nil
}

func limitQuery(q url.Values, marker string, limit int) url.Values {
	if marker != "" {
		q.Set("marker", marker)
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	return q
}

func (b *Backend) ListContainers(ctx context.Context, marker string, limit int) (swiftpath.ContainerListResult, error) {
	resp, err := b.send(ctx, http.MethodGet, "/", limitQuery(url.Values{}, marker, limit), http.NoBody, nil)
	if err != nil {
		return swiftpath.ContainerListResult{}, fmt.Errorf("list containers: %w", err)
	}
	if err := expect(resp, http.StatusOK); err != nil {
		return swiftpath.ContainerListResult{}, fmt.Errorf("list containers: %w", err)
	}

	var out gateway.ContainerListResponse
	if err := decode(resp, &out); err != nil {
		return swiftpath.ContainerListResult{}, fmt.Errorf("list containers: %w", err)
	}

	res := swiftpath.ContainerListResult{NextMarker: out.NextMarker}
	for _, c := range out.Containers {
		res.Containers = append(res.Containers, swiftpath.ContainerInfo{Name: c.Name, Count: c.Count, Bytes: c.Bytes})
	}
	return res, nil
}

func (b *Backend) CreateContainer(ctx context.Context, container string) error {
	resp, err := b.send(ctx, http.MethodPut, "/"+container, nil, http.NoBody, nil)
	if err != nil {
		return fmt.Errorf("create container %s: %w", container, err)
	}
	if err := expect(resp, http.StatusCreated); err != nil {
		return fmt.Errorf("create container %s: %w", container, err)
	}
	_ = resp.Body.Close()
	return nil
}

func (b *Backend) DeleteContainer(ctx context.Context, container string) error {
	resp, err := b.send(ctx, http.MethodDelete, "/"+container, nil, http.NoBody, nil)
	if err != nil {
		return fmt.Errorf("delete container %s: %w", container, err)
	}
	if err := expect(resp, http.StatusNoContent); err != nil {
		return fmt.Errorf("delete container %s: %w", container, err)
	}
	_ = resp.Body.Close()
	return nil
}

func (b *Backend) StatContainer(ctx context.Context, container string) (swiftpath.ContainerInfo, error) {
	resp, err := b.send(ctx, http.MethodHead, "/"+container, nil, http.NoBody, nil)
	if err != nil {
		return swiftpath.ContainerInfo{}, fmt.Errorf("stat container %s: %w", container, err)
	}
	if err := expect(resp, http.StatusNoContent, http.StatusOK); err != nil {
		return swiftpath.ContainerInfo{}, fmt.Errorf("stat container %s: %w", container, err)
	}
	_ = resp.Body.Close()

	count, _ := strconv.ParseInt(resp.Header.Get(gateway.HeaderObjectCount), 10, 64)
	bytes, _ := strconv.ParseInt(resp.Header.Get(gateway.HeaderBytesUsed), 10, 64)
	return swiftpath.ContainerInfo{Name: container, Count: count, Bytes: bytes}, nil
}

func (b *Backend) List(ctx context.Context, container string, q swiftpath.ListQuery) (swiftpath.ListResult, error) {
	query := limitQuery(url.Values{}, q.Marker, q.Limit)
	if q.Prefix != "" {
		query.Set("prefix", q.Prefix)
	}
	if q.Delimiter != "" {
		query.Set("delimiter", q.Delimiter)
	}

	resp, err := b.send(ctx, http.MethodGet, "/"+container, query, http.NoBody, nil)
	if err != nil {
		return swiftpath.ListResult{}, fmt.Errorf("list %s: %w", container, err)
	}
	if err := expect(resp, http.StatusOK); err != nil {
		return swiftpath.ListResult{}, fmt.Errorf("list %s: %w", container, err)
	}

	var out gateway.ListResponse
	if err := decode(resp, &out); err != nil {
		return swiftpath.ListResult{}, fmt.Errorf("list %s: %w", container, err)
	}

	res := swiftpath.ListResult{NextMarker: out.NextMarker}
	for _, o := range out.Objects {
		res.Objects = append(res.Objects, o.Info())
	}
	if len(out.Prefixes) > 0 {
		res.Prefixes = out.Prefixes
	}
	return res, nil
}

// infoFromHeaders reads the object headers the gateway writes for GET and
// HEAD.
func infoFromHeaders(key string, h http.Header) swiftpath.ObjectInfo {
	info := swiftpath.ObjectInfo{
		Key:            key,
		Hash:           strings.Trim(h.Get("ETag"), `"`),
		ContentType:    h.Get("Content-Type"),
		SymlinkTarget:  h.Get(gateway.HeaderSymlinkTarget),
		SymlinkAccount: h.Get(gateway.HeaderSymlinkAcct),
	}
	info.Size, _ = strconv.ParseInt(h.Get("Content-Length"), 10, 64)
	if t, err := http.ParseTime(h.Get("Last-Modified")); err == nil {
		info.LastModified = t
	}
	return info
}

func (b *Backend) Get(ctx context.Context, ref swiftpath.ObjectRef) (swiftpath.ObjectInfo, io.ReadCloser, error) {
	resp, err := b.send(ctx, http.MethodGet, objectPath(ref), nil, http.NoBody, nil)
	if err != nil {
		return swiftpath.ObjectInfo{}, nil, fmt.Errorf("get %s: %w", ref, err)
	}
	if err := expect(resp, http.StatusOK); err != nil {
		return swiftpath.ObjectInfo{}, nil, fmt.Errorf("get %s: %w", ref, err)
	}
	return infoFromHeaders(ref.Key, resp.Header), resp.Body, nil
}

func (b *Backend) putObject(ctx context.Context, ref swiftpath.ObjectRef, body io.Reader, hdr http.Header) (swiftpath.ObjectInfo, error) {
	resp, err := b.send(ctx, http.MethodPut, objectPath(ref), nil, body, hdr)
	if err != nil {
		return swiftpath.ObjectInfo{}, err
	}
	if err := expect(resp, http.StatusCreated); err != nil {
		return swiftpath.ObjectInfo{}, err
	}

	var out gateway.Object
	if err := decode(resp, &out); err != nil {
		return swiftpath.ObjectInfo{}, err
	}
	return out.Info(), nil
}

func (b *Backend) Put(ctx context.Context, ref swiftpath.ObjectRef, content io.Reader, opts swiftpath.PutOptions) (swiftpath.ObjectInfo, error) {
	hdr := http.Header{}
	if opts.ContentType != "" {
		hdr.Set("Content-Type", opts.ContentType)
	}
	for k, v := range opts.Metadata {
		hdr.Set(gateway.HeaderMetaPrefix+k, v)
	}

	info, err := b.putObject(ctx, ref, content, hdr)
	if err != nil {
		return swiftpath.ObjectInfo{}, fmt.Errorf("put %s: %w", ref, err)
	}
	return info, nil
}

func (b *Backend) Delete(ctx context.Context, ref swiftpath.ObjectRef) error {
	resp, err := b.send(ctx, http.MethodDelete, objectPath(ref), nil, http.NoBody, nil)
	if err != nil {
		return fmt.Errorf("delete %s: %w", ref, err)
	}
	if err := expect(resp, http.StatusNoContent); err != nil {
		return fmt.Errorf("delete %s: %w", ref, err)
	}
	_ = resp.Body.Close()
	return nil
}

func (b *Backend) Copy(ctx context.Context, src, dst swiftpath.ObjectRef) error {
	hdr := http.Header{}
	hdr.Set(gateway.HeaderCopyFrom, src.Container+"/"+src.Key)

	if _, err := b.putObject(ctx, dst, http.NoBody, hdr); err != nil {
		return fmt.Errorf("copy %s to %s: %w", src, dst, err)
	}
	return nil
}

func (b *Backend) Symlink(ctx context.Context, link, target swiftpath.ObjectRef, opts swiftpath.SymlinkOptions) error {
	hdr := http.Header{}
	hdr.Set(gateway.HeaderSymlinkTarget, target.Container+"/"+target.Key)
	if opts.TargetAccount != "" {
		hdr.Set(gateway.HeaderSymlinkAcct, opts.TargetAccount)
	}

	if _, err := b.putObject(ctx, link, http.NoBody, hdr); err != nil {
		return fmt.Errorf("symlink %s to %s: %w", link, target, err)
	}
	return nil
}

func (b *Backend) Stat(ctx context.Context, ref swiftpath.ObjectRef) (swiftpath.ObjectInfo, error) {
	resp, err := b.send(ctx, http.MethodHead, objectPath(ref), nil, http.NoBody, nil)
	if err != nil {
		return swiftpath.ObjectInfo{}, fmt.Errorf("stat %s: %w", ref, err)
	}
	if err := expect(resp, http.StatusOK); err != nil {
		return swiftpath.ObjectInfo{}, fmt.Errorf("stat %s: %w", ref, err)
	}
	_ = resp.Body.Close()
	return infoFromHeaders(ref.Key, resp.Header), nil
}

func (b *Backend) Touch(ctx context.Context, ref swiftpath.ObjectRef) error {
	resp, err := b.send(ctx, http.MethodPost, objectPath(ref), nil, http.NoBody, nil)
	if err != nil {
		return fmt.Errorf("touch %s: %w", ref, err)
	}
	if err := expect(resp, http.StatusNoContent); err != nil {
		return fmt.Errorf("touch %s: %w", ref, err)
	}
	_ = resp.Body.Close()
	return nil
}
