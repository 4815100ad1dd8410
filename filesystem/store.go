// Package filesystem stores object content as files under a sandboxed root.
// Writes are atomic through a temp file and rename, and every write reports
// the MD5 etag Swift would compute for the same bytes.
package filesystem

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/sagarc03/swiftpath"
)

// sniffLen matches the amount mimetype reads.
const sniffLen = 3072

// WriteResult describes a completed write.
type WriteResult struct {
	BytesWritten int64
	Etag         string
	// Head holds the first bytes written, for content type sniffing.
	Head []byte
}

// Store provides file system storage operations.
type Store struct {
	root *os.Root
}

// NewFileStorage creates a new Store with the given root directory.
// The root provides sandboxed file operations preventing path traversal.
func NewFileStorage(root *os.Root) *Store {
	return &Store{root: root}
}

// Open opens a file for reading. Returns swiftpath.ErrNotFound if the file does not exist.
func (s *Store) Open(ctx context.Context, path string) (io.ReadSeekCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f, err := s.root.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, swiftpath.ErrNotFound
		}
		return nil, fmt.Errorf("failed to open file: %w", err)
	}

	return f, nil
}

type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (r *ctxReader) Read(p []byte) (n int, err error) {
	if err := r.ctx.Err(); err != nil {
		return 0, err
	}
	return r.r.Read(p)
}

type headWriter struct {
	head []byte
}

func (w *headWriter) Write(p []byte) (int, error) {
	if room := sniffLen - len(w.head); room > 0 {
		w.head = append(w.head, p[:min(room, len(p))]...)
	}
	return len(p), nil
}

// Write atomically writes content to the given path using a temp file and rename.
// It creates intermediate directories as needed. The operation respects context cancellation.
func (s *Store) Write(ctx context.Context, path string, content io.Reader) (WriteResult, error) {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return WriteResult{}, ctxErr
	}

	tmpFile := tmpFileName()
	t, createErr := s.root.Create(tmpFile)
	if createErr != nil {
		return WriteResult{}, fmt.Errorf("could not open temp file: %w", createErr)
	}

	success := false
	defer func() {
		if closeErr := t.Close(); closeErr != nil {
			slog.Warn("failed to close tmp file", "err", closeErr)
		}
		if !success {
			if rmErr := s.root.Remove(tmpFile); rmErr != nil {
				slog.Warn("failed to remove tmp file", "err", rmErr)
			}
		}
	}()

	h := md5.New()
	head := &headWriter{}
	w := io.MultiWriter(h, head, t)

	fileSizeBytes, err := io.Copy(w, &ctxReader{ctx: ctx, r: content})
	if err != nil {
		return WriteResult{}, fmt.Errorf("could not copy file contents: %w", err)
	}

	err = t.Sync()
	if err != nil {
		return WriteResult{}, fmt.Errorf("could not sync written file: %w", err)
	}

	destDir := filepath.Dir(path)
	if destDir != "." {
		if err := s.root.MkdirAll(destDir, 0o755); err != nil {
			return WriteResult{}, fmt.Errorf("could not create intermediate directories: %w", err)
		}
	}

	if renameErr := s.root.Rename(tmpFile, path); renameErr != nil {
		return WriteResult{}, fmt.Errorf("failed to rename file: %w", renameErr)
	}

	success = true

	return WriteResult{
		BytesWritten: fileSizeBytes,
		Etag:         hex.EncodeToString(h.Sum(nil)),
		Head:         head.head,
	}, nil
}

// Copy writes a duplicate of src to dst.
func (s *Store) Copy(ctx context.Context, src, dst string) (WriteResult, error) {
	f, err := s.Open(ctx, src)
	if err != nil {
		return WriteResult{}, err
	}
	defer func() { _ = f.Close() }()

	return s.Write(ctx, dst, f)
}

// Delete removes a file. Returns swiftpath.ErrNotFound if the file does not exist.
func (s *Store) Delete(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	err := s.root.Remove(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return swiftpath.ErrNotFound
		}
		return fmt.Errorf("could not delete file: %w", err)
	}
	return nil
}

// BlobName spreads blobs over 256 directories by the first byte of the id.
func BlobName(id uuid.UUID) string {
	s := id.String()
	return filepath.Join(s[:2], s)
}

func tmpFileName() string {
	return fmt.Sprintf(".t%s", uuid.New().String())
}
