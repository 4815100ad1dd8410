package swiftpath

import (
	"context"
	"io"
	"time"
)

// MarkerName is the zero-byte object written by Mkdir to represent an
// explicitly created, otherwise empty directory. It is hidden from listings.
const MarkerName = ".swiftkeep"

// SymlinkContentType is the content type of native symlink objects.
const SymlinkContentType = "application/symlink"

// DirectoryContentType is the content type used for marker objects.
const DirectoryContentType = "application/x-directory"

// DefaultListLimit is the page size used when a ListQuery has no limit.
const DefaultListLimit = 1000

// ObjectRef addresses a single object.
type ObjectRef struct {
	Container string
	Key       string
}

func (r ObjectRef) String() string {
	return Separator + r.Container + Separator + r.Key
}

// ObjectInfo describes an object as reported by a backend.
type ObjectInfo struct {
	Key          string
	Size         int64
	LastModified time.Time
	Hash         string
	ContentType  string
	// SymlinkTarget is set when the object is a native symlink.
	SymlinkTarget string
	// SymlinkAccount names the target's account for cross-account links.
	SymlinkAccount string
}

func (o ObjectInfo) IsSymlink() bool {
	return o.SymlinkTarget != "" || o.ContentType == SymlinkContentType
}

// ContainerInfo describes a container.
type ContainerInfo struct {
	Name  string
	Count int64
	Bytes int64
}

// ListQuery selects one page of a container listing.
type ListQuery struct {
	Prefix string
	// Delimiter collapses keys sharing a prefix up to the delimiter into a
	// single entry of ListResult.Prefixes. Empty means a flat listing.
	Delimiter string
	// Marker is the opaque continuation token from the previous page.
	Marker string
	Limit  int
}

// ListResult is one page of a listing. Prefixes end with the delimiter.
// A page may repeat a prefix already returned by an earlier page.
type ListResult struct {
	Objects    []ObjectInfo
	Prefixes   []string
	NextMarker string
}

// ContainerListResult is one page of container names.
type ContainerListResult struct {
	Containers []ContainerInfo
	NextMarker string
}

// PutOptions configures an object write.
type PutOptions struct {
	ContentType string
	Metadata    map[string]string
}

// Backend is the object storage capability the path layer is built on.
//
// Implementations translate their native errors into ErrNotFound, ErrExists
// and ErrDirectoryNotEmpty where those apply and return every other error
// unchanged. Implementations must be safe for concurrent use.
type Backend interface {
	// Name identifies the backend kind, e.g. "swift" or "memory".
	Name() string

	ListContainers(ctx context.Context, marker string, limit int) (ContainerListResult, error)
	// CreateContainer returns ErrExists if the container already exists.
	CreateContainer(ctx context.Context, container string) error
	// DeleteContainer returns ErrNotFound or ErrDirectoryNotEmpty.
	DeleteContainer(ctx context.Context, container string) error
	StatContainer(ctx context.Context, container string) (ContainerInfo, error)

	// List returns ErrNotFound when the container does not exist.
	List(ctx context.Context, container string, q ListQuery) (ListResult, error)
	// Get opens an object for reading. Symlinks are followed.
	Get(ctx context.Context, ref ObjectRef) (ObjectInfo, io.ReadCloser, error)
	// Put creates or replaces an object. It returns ErrNotFound when the
	// container does not exist.
	Put(ctx context.Context, ref ObjectRef, content io.Reader, opts PutOptions) (ObjectInfo, error)
	Delete(ctx context.Context, ref ObjectRef) error
	// Copy is a server-side copy. The destination is replaced if present.
	Copy(ctx context.Context, src, dst ObjectRef) error
	// Stat follows symlinks for size and hash but reports the link itself
	// through SymlinkTarget. A dangling symlink is reported, not hidden.
	Stat(ctx context.Context, ref ObjectRef) (ObjectInfo, error)
	// Touch refreshes the modification time of an existing object.
	Touch(ctx context.Context, ref ObjectRef) error

	// Close releases connections held by the backend.
	Close() error
}

// SymlinkOptions configures a native symlink.
type SymlinkOptions struct {
	// TargetAccount points the link into another account when the backend
	// supports it.
	TargetAccount string
}

// Symlinker is implemented by backends with native symlink objects.
type Symlinker interface {
	Symlink(ctx context.Context, link, target ObjectRef, opts SymlinkOptions) error
}
