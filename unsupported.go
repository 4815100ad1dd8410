package swiftpath

import (
	"context"
	"io/fs"
)

// The operations below have no analog in an object store. They exist so
// code written against a filesystem path API fails loudly instead of
// silently misbehaving.

func unsupported(op string, p PurePath) error {
	return pathErr(op, p, ErrUnsupported)
}

// Cwd always fails: an object store has no working directory.
func Cwd() (Path, error) {
	return Path{}, unsupported("cwd", PurePath{})
}

// Home always fails: an object store has no home directory.
func Home() (Path, error) {
	return Path{}, unsupported("home", PurePath{})
}

func (p Path) Chmod(mode fs.FileMode) error {
	return unsupported("chmod", p.PurePath)
}

func (p Path) Lchmod(mode fs.FileMode) error {
	return unsupported("lchmod", p.PurePath)
}

func (p Path) ExpandUser() (Path, error) {
	return Path{}, unsupported("expanduser", p.PurePath)
}

func (p Path) Owner() (string, error) {
	return "", unsupported("owner", p.PurePath)
}

func (p Path) Group() (string, error) {
	return "", unsupported("group", p.PurePath)
}

func (p Path) IsBlockDevice() (bool, error) {
	return false, unsupported("is block device", p.PurePath)
}

func (p Path) IsCharDevice() (bool, error) {
	return false, unsupported("is char device", p.PurePath)
}

func (p Path) IsFIFO() (bool, error) {
	return false, unsupported("is fifo", p.PurePath)
}

func (p Path) IsSocket() (bool, error) {
	return false, unsupported("is socket", p.PurePath)
}

func (p Path) IsMount() (bool, error) {
	return false, unsupported("is mount", p.PurePath)
}

// Lstat fails because the store cannot stat a symlink without following it.
// Use Stat, which reports the link target.
func (p Path) Lstat(ctx context.Context) (StatResult, error) {
	return StatResult{}, unsupported("lstat", p.PurePath)
}

// Resolve fails because symlinks are resolved by the store, not the client.
func (p Path) Resolve() (Path, error) {
	return Path{}, unsupported("resolve", p.PurePath)
}
