package http

import (
	"time"

	"github.com/sagarc03/swiftpath"
)

// Request and response headers understood by the gateway.
const (
	HeaderCopyFrom      = "X-Copy-From"
	HeaderSymlinkTarget = "X-Symlink-Target"
	HeaderSymlinkAcct   = "X-Symlink-Target-Account"
	HeaderObjectCount   = "X-Container-Object-Count"
	HeaderBytesUsed     = "X-Container-Bytes-Used"
	HeaderMetaPrefix    = "X-Object-Meta-"
)

type Object struct {
	Key            string    `json:"key"`
	Size           int64     `json:"size"`
	LastModified   time.Time `json:"last_modified"`
	Hash           string    `json:"hash"`
	ContentType    string    `json:"content_type"`
	SymlinkTarget  string    `json:"symlink_target,omitempty"`
	SymlinkAccount string    `json:"symlink_account,omitempty"`
}

func NewObject(info swiftpath.ObjectInfo) Object {
	return Object{
		Key:            info.Key,
		Size:           info.Size,
		LastModified:   info.LastModified,
		Hash:           info.Hash,
		ContentType:    info.ContentType,
		SymlinkTarget:  info.SymlinkTarget,
		SymlinkAccount: info.SymlinkAccount,
	}
}

func (o Object) Info() swiftpath.ObjectInfo {
	return swiftpath.ObjectInfo{
		Key:            o.Key,
		Size:           o.Size,
		LastModified:   o.LastModified,
		Hash:           o.Hash,
		ContentType:    o.ContentType,
		SymlinkTarget:  o.SymlinkTarget,
		SymlinkAccount: o.SymlinkAccount,
	}
}

type Container struct {
	Name  string `json:"name"`
	Count int64  `json:"count"`
	Bytes int64  `json:"bytes"`
}

// ListResponse is the body of GET /{container}.
type ListResponse struct {
	Objects    []Object `json:"objects"`
	Prefixes   []string `json:"prefixes"`
	NextMarker string   `json:"next_marker,omitempty"`
}

// ContainerListResponse is the body of GET /.
type ContainerListResponse struct {
	Containers []Container `json:"containers"`
	NextMarker string      `json:"next_marker,omitempty"`
}
