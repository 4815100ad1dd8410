package swiftpath

import (
	"mime"
	"path"
	"time"

	"github.com/gabriel-vasile/mimetype"
)

// StatResult is the subset of file metadata an object store can report.
type StatResult struct {
	Size           int64
	ModTime        time.Time
	Hash           string
	ContentType    string
	IsDir          bool
	IsSymlink      bool
	SymlinkTarget  string
	SymlinkAccount string
}

func statFromInfo(info ObjectInfo) StatResult {
	return StatResult{
		Size:           info.Size,
		ModTime:        info.LastModified,
		Hash:           info.Hash,
		ContentType:    info.ContentType,
		IsSymlink:      info.IsSymlink(),
		SymlinkTarget:  info.SymlinkTarget,
		SymlinkAccount: info.SymlinkAccount,
	}
}

// DirEntry is one child returned by ScanDir or Walk. The fields come from
// the listing itself, so no extra request is needed to read them.
type DirEntry struct {
	Path      Path
	Name      string
	IsDir     bool
	Size      int64
	ModTime   time.Time
	Hash      string
	IsSymlink bool
}

func entryFromInfo(p Path, name string, info ObjectInfo) DirEntry {
	return DirEntry{
		Path:      p,
		Name:      name,
		Size:      info.Size,
		ModTime:   info.LastModified,
		Hash:      info.Hash,
		IsSymlink: info.IsSymlink(),
	}
}

const defaultContentType = "application/octet-stream"

// DetectContentType uses the extension first and falls back to sniffing the
// content when it is available.
func DetectContentType(name string, data []byte) string {
	if ct := mime.TypeByExtension(path.Ext(name)); ct != "" {
		return ct
	}
	if len(data) > 0 {
		return mimetype.Detect(data).String()
	}
	return defaultContentType
}
