package swiftpath

import (
	"errors"
	"strings"
)

var (
	// ErrInvalidPath is returned when a path is malformed or escapes the root
	ErrInvalidPath = errors.New("invalid path")
	// ErrNotFound is returned when a container, object or directory does not exist
	ErrNotFound = errors.New("not found")
	// ErrExists is returned when a create operation collides with an existing entry
	ErrExists = errors.New("already exists")
	// ErrDirectoryNotEmpty is returned when removing a directory that still has children
	ErrDirectoryNotEmpty = errors.New("directory not empty")
	// ErrNotADirectory is returned when a directory operation targets an object
	ErrNotADirectory = errors.New("not a directory")
	// ErrIsADirectory is returned when an object operation targets a directory
	ErrIsADirectory = errors.New("is a directory")
	// ErrUnsupported is returned for operations with no object storage analog
	ErrUnsupported = errors.New("operation not supported")
	// ErrNotRelative is returned by RelativeTo when the paths share no prefix
	ErrNotRelative = errors.New("path is not relative to base")
	// ErrPartialRename is returned when a rename copied its data but could not
	// delete every source object
	ErrPartialRename = errors.New("partial rename")
)

// PathError records a failed operation together with the path it targeted.
type PathError struct {
	Op   string
	Path string
	Err  error
}

func (e *PathError) Error() string {
	return e.Op + " " + e.Path + ": " + e.Err.Error()
}

func (e *PathError) Unwrap() error { return e.Err }

func pathErr(op string, p PurePath, err error) error {
	return &PathError{Op: op, Path: p.String(), Err: err}
}

// PartialRenameError is returned when every object was copied to the target
// but some source objects could not be deleted. Both copies exist until the
// rename is re-attempted or the leftovers are removed by hand.
type PartialRenameError struct {
	Source    string
	Target    string
	Remaining []string
	Err       error
}

func (e *PartialRenameError) Error() string {
	var b strings.Builder
	b.WriteString("rename ")
	b.WriteString(e.Source)
	b.WriteString(" -> ")
	b.WriteString(e.Target)
	b.WriteString(": copied but could not delete ")
	b.WriteString(strings.Join(e.Remaining, ", "))
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Unwrap exposes both ErrPartialRename and the underlying delete failure.
func (e *PartialRenameError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrPartialRename}
	}
	return []error{ErrPartialRename, e.Err}
}
