// Package storage provides the storage providers that back photarium
// galleries: local filesystem, an OAuth drive, and S3-compatible object
// stores. All providers expose the same capability set and normalize
// backend-native failures into the shared error taxonomy before returning.
package storage

import (
	"context"
	"io"
	"time"

	"github.com/photarium/photarium/src/common/logs"
)

var log = logs.NewDefault()

// SetLogger sets the logger for the storage package
func SetLogger(l *logs.Logger) {
	if l != nil {
		log = l
	}
}

// ID identifies a configured storage provider instance.
type ID string

const (
	// Local stores files under a sandboxed base directory on the local disk
	Local ID = "local"
	// Drive stores files in an OAuth2-authorized remote drive
	Drive ID = "drive"
	// S3Main is the primary S3-compatible object store (virtual-host addressing)
	S3Main ID = "s3main"
	// S3Cold is the secondary S3-compatible object store (path-style addressing,
	// typically a self-hosted MinIO-like endpoint)
	S3Cold ID = "s3cold"
)

// Known returns true if id names a supported provider variant.
func Known(id ID) bool {
	switch id {
	case Local, Drive, S3Main, S3Cold:
		return true
	}
	return false
}

// MaxTreeDepth caps Tree recursion regardless of what the caller asks for,
// to bound response size on very deep remote structures.
const MaxTreeDepth = 10

// Provider defines the uniform capability set every storage backend implements.
type Provider interface {
	// Put writes content at path, creating intermediate directories/folders
	// as needed, and returns a reference to the stored object.
	Put(ctx context.Context, path string, reader io.Reader, size int64, contentType string) (*StoredRef, error)

	// Get returns a readable stream for the object at path, or a not-found
	// error. Absence is a definitive outcome, never a panic or a nil stream.
	Get(ctx context.Context, path string) (io.ReadCloser, *ObjectInfo, error)

	// Delete removes the object at path. Deleting an absent object is not
	// an error.
	Delete(ctx context.Context, path string) error

	// Tree enumerates the folder/file structure under root, descending at
	// most maxDepth levels (capped at MaxTreeDepth).
	Tree(ctx context.Context, root string, maxDepth int) (*TreeNode, error)

	// PublicURL returns a URL a client can use to fetch the asset directly:
	// a presigned URL for object stores, a share link for the drive, or the
	// internal streaming endpoint for local storage.
	PublicURL(ctx context.Context, path string) (string, error)

	// ValidateConnection performs a cheap round-trip to prove the stored
	// credentials are usable. Used by the admin "test connection" action,
	// never on the serving path.
	ValidateConnection(ctx context.Context) error

	// Type returns the provider variant id
	Type() ID

	// Location returns a human-readable location description
	Location() string
}

// StoredRef references an object written through a provider.
type StoredRef struct {
	Provider ID     `json:"provider"`
	Path     string `json:"path"`
	URL      string `json:"url,omitempty"`
	Size     int64  `json:"size"`
}

// ObjectInfo holds metadata about a stored object.
type ObjectInfo struct {
	Key          string    `json:"key"`
	Size         int64     `json:"size"`
	ContentType  string    `json:"content_type,omitempty"`
	ETag         string    `json:"etag,omitempty"`
	LastModified time.Time `json:"last_modified"`
}

// TreeNode is one node of a provider's folder/file structure.
type TreeNode struct {
	Name     string      `json:"name"`
	Path     string      `json:"path"`
	IsFile   bool        `json:"isFile"`
	Children []*TreeNode `json:"children,omitempty"`
}

// New constructs a provider instance from a decoded configuration record.
func New(rec *Record) (Provider, error) {
	cfg, err := rec.Decode()
	if err != nil {
		return nil, err
	}

	switch rec.ProviderID {
	case Local:
		return NewLocal(*cfg.Local)
	case Drive:
		return NewDrive(*cfg.Drive)
	case S3Main, S3Cold:
		return NewObjectStore(rec.ProviderID, *cfg.Object)
	default:
		return nil, errInvalidConfig(rec.ProviderID, "unknown provider id")
	}
}

// clampDepth applies the global tree-depth cap.
func clampDepth(maxDepth int) int {
	if maxDepth <= 0 || maxDepth > MaxTreeDepth {
		return MaxTreeDepth
	}
	return maxDepth
}
