// Package metadata defines the records the local backend keeps in a SQL
// database: one row per container and one per object, keyed by container
// and object key. The blobs themselves live on disk, named by Object.ID.
//
// Implementations live in database/sqlite and database/postgres. Both
// report missing rows with swiftpath.ErrNotFound, duplicates with
// swiftpath.ErrExists and non-empty containers with
// swiftpath.ErrDirectoryNotEmpty.
package metadata

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"
)

// Tables holds configurable table names for metadata storage.
// This allows several stores to share one database.
type Tables struct {
	Containers string `mapstructure:"containers"`
	Objects    string `mapstructure:"objects"`
}

// DefaultTables are the table names used when none are configured.
var DefaultTables = Tables{Containers: "swiftpath_containers", Objects: "swiftpath_objects"}

var validTableNameRegex = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// IsValidTableName checks if a table name is valid (lowercase, alphanumeric with underscores, max 63 chars).
func IsValidTableName(name string) bool {
	return validTableNameRegex.MatchString(name) && len(name) <= 63
}

// Validate checks that all required table names are set, valid and distinct.
func (t Tables) Validate() error {
	if t.Containers == "" || t.Objects == "" {
		return errors.New("validate tables: table names cannot be empty")
	}

	for _, name := range []string{t.Containers, t.Objects} {
		if !IsValidTableName(name) {
			return fmt.Errorf("validate tables: invalid table name: %s (must match ^[a-z_][a-z0-9_]*$ and be <= 63 chars)", name)
		}
	}

	if t.Containers == t.Objects {
		return fmt.Errorf("validate tables: containers and objects share the table %s", t.Objects)
	}

	return nil
}

type Container struct {
	Name      string    `json:"name"`
	Count     int64     `json:"count"`
	Bytes     int64     `json:"bytes"`
	CreatedAt time.Time `json:"created_at"`
}

// Object is one stored object. ID names the blob holding its content and
// changes on every write.
type Object struct {
	ID             uuid.UUID `json:"id"`
	Container      string    `json:"container"`
	Key            string    `json:"key"`
	ContentType    string    `json:"content_type"`
	Etag           string    `json:"etag"`
	SizeBytes      int64     `json:"size_bytes"`
	SymlinkTarget  string    `json:"symlink_target,omitempty"`
	SymlinkAccount string    `json:"symlink_account,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// ListQuery selects objects of one container in key order.
type ListQuery struct {
	Prefix string
	Limit  int
	Cursor string
}

type ListResult struct {
	Items      []Object `json:"items"`
	NextCursor string   `json:"next_cursor,omitempty"`
}

// ContainerQuery selects containers in name order.
type ContainerQuery struct {
	Limit  int
	Cursor string
}

type ContainerListResult struct {
	Items      []Container `json:"items"`
	NextCursor string      `json:"next_cursor,omitempty"`
}

// Repo persists container and object records.
type Repo interface {
	CreateContainer(ctx context.Context, name string) (Container, error)
	GetContainer(ctx context.Context, name string) (Container, error)
	ListContainers(ctx context.Context, q ContainerQuery) (ContainerListResult, error)
	// DeleteContainer refuses containers that still hold objects.
	DeleteContainer(ctx context.Context, name string) error

	Get(ctx context.Context, container, key string) (Object, error)
	// Upsert stores the record and returns the one it replaced, if any, so
	// the caller can remove the previous blob.
	Upsert(ctx context.Context, obj Object) (previous Object, replaced bool, err error)
	// Delete removes the record and returns it.
	Delete(ctx context.Context, container, key string) (Object, error)
	List(ctx context.Context, container string, q ListQuery) (ListResult, error)
	// Touch sets UpdatedAt to now.
	Touch(ctx context.Context, container, key string) (Object, error)

	Ping(ctx context.Context) error
}
