package storage

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"mime"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"

	apperrors "github.com/photarium/photarium/src/common/errors"
	"github.com/photarium/photarium/src/common/paths"
)

// LocalProvider stores gallery assets under a sandboxed base directory on
// the local filesystem.
type LocalProvider struct {
	basePath string
}

// NewLocal creates a local filesystem provider rooted at cfg.BasePath.
func NewLocal(cfg LocalConfig) (*LocalProvider, error) {
	basePath := paths.Expand(cfg.BasePath)

	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, apperrors.ErrStorageConfiguration.
			WithMessagef("cannot create storage directory %s", basePath).
			WithCause(err)
	}

	// Resolve the base once so containment checks compare canonical paths.
	abs, err := filepath.Abs(basePath)
	if err != nil {
		return nil, apperrors.ErrStorageConfiguration.
			WithMessagef("cannot resolve storage directory %s", basePath).
			WithCause(err)
	}

	return &LocalProvider{basePath: abs}, nil
}

// resolve maps a logical path to an absolute filesystem path, refusing any
// path whose canonical form escapes the base directory. Rejections use a
// generic access-denied error so callers cannot probe the filesystem layout
// outside the sandbox.
func (p *LocalProvider) resolve(path string) (string, error) {
	rel := strings.TrimPrefix(filepath.ToSlash(path), "/")
	cleaned := filepath.Clean(filepath.FromSlash(rel))
	if cleaned == ".." || strings.HasPrefix(cleaned, ".."+string(filepath.Separator)) {
		return "", apperrors.ErrStorageAccessDenied
	}

	full := filepath.Join(p.basePath, cleaned)
	abs, err := filepath.Abs(full)
	if err != nil {
		return "", apperrors.ErrStorageAccessDenied
	}
	if abs != p.basePath && !strings.HasPrefix(abs, p.basePath+string(filepath.Separator)) {
		return "", apperrors.ErrStorageAccessDenied
	}
	return abs, nil
}

// ResolvePath returns the absolute filesystem path for a logical path, used
// by the file-serving endpoint. Escaping paths yield an access-denied error.
func (p *LocalProvider) ResolvePath(path string) (string, error) {
	return p.resolve(path)
}

// Put writes content to the local filesystem.
func (p *LocalProvider) Put(ctx context.Context, path string, reader io.Reader, size int64, contentType string) (*StoredRef, error) {
	full, err := p.resolve(path)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
		return nil, apperrors.ErrStorageUnavailable.
			WithMessagef("cannot create directory for %s", path).
			WithCause(err)
	}

	file, err := os.Create(full)
	if err != nil {
		return nil, apperrors.ErrStorageUnavailable.
			WithMessagef("cannot create file %s", path).
			WithCause(err)
	}
	defer file.Close()

	written, err := io.Copy(file, reader)
	if err != nil {
		os.Remove(full) // Clean up on error
		return nil, apperrors.ErrStorageUnavailable.
			WithMessagef("cannot write file %s", path).
			WithCause(err)
	}

	if size > 0 && written != size {
		os.Remove(full) // Clean up on error
		return nil, apperrors.ErrStorageUnavailable.
			WithMessagef("size mismatch for %s: expected %d bytes, wrote %d", path, size, written)
	}

	pub, _ := p.PublicURL(ctx, path)
	return &StoredRef{
		Provider: Local,
		Path:     normalizeKey(path),
		URL:      pub,
		Size:     written,
	}, nil
}

// Get opens a stored file for reading.
func (p *LocalProvider) Get(ctx context.Context, path string) (io.ReadCloser, *ObjectInfo, error) {
	full, err := p.resolve(path)
	if err != nil {
		return nil, nil, err
	}

	file, err := os.Open(full)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, apperrors.ErrStorageNotFound.WithMessagef("object not found: %s", path)
		}
		return nil, nil, apperrors.ErrStorageUnavailable.
			WithMessagef("cannot open file %s", path).
			WithCause(err)
	}

	stat, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, nil, apperrors.ErrStorageUnavailable.
			WithMessagef("cannot stat file %s", path).
			WithCause(err)
	}

	return file, p.objectInfo(path, stat), nil
}

// Delete removes a stored file. Deleting an absent file is not an error.
func (p *LocalProvider) Delete(ctx context.Context, path string) error {
	full, err := p.resolve(path)
	if err != nil {
		return err
	}

	if err := os.Remove(full); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return apperrors.ErrStorageUnavailable.
			WithMessagef("cannot delete file %s", path).
			WithCause(err)
	}

	p.cleanEmptyDirs(filepath.Dir(full))
	return nil
}

// cleanEmptyDirs removes empty parent directories up to the base path
func (p *LocalProvider) cleanEmptyDirs(dir string) {
	for dir != p.basePath && strings.HasPrefix(dir, p.basePath) {
		entries, err := os.ReadDir(dir)
		if err != nil || len(entries) > 0 {
			break
		}
		os.Remove(dir)
		dir = filepath.Dir(dir)
	}
}

// Tree enumerates the directory structure under root.
func (p *LocalProvider) Tree(ctx context.Context, root string, maxDepth int) (*TreeNode, error) {
	full, err := p.resolve(root)
	if err != nil {
		return nil, err
	}

	stat, err := os.Stat(full)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, apperrors.ErrStorageNotFound.WithMessagef("path not found: %s", root)
		}
		return nil, apperrors.ErrStorageUnavailable.
			WithMessagef("cannot stat path %s", root).
			WithCause(err)
	}

	rootKey := normalizeKey(root)
	node := &TreeNode{
		Name:   nodeName(rootKey, stat.Name()),
		Path:   rootKey,
		IsFile: !stat.IsDir(),
	}
	if stat.IsDir() {
		if err := p.walkTree(ctx, node, full, clampDepth(maxDepth)); err != nil {
			return nil, err
		}
	}
	return node, nil
}

func (p *LocalProvider) walkTree(ctx context.Context, parent *TreeNode, dir string, depth int) error {
	if depth <= 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return apperrors.ErrStorageTransient.WithCause(err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return apperrors.ErrStorageUnavailable.
			WithMessagef("cannot list directory %s", parent.Path).
			WithCause(err)
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	for _, entry := range entries {
		childPath := joinKey(parent.Path, entry.Name())
		child := &TreeNode{
			Name:   entry.Name(),
			Path:   childPath,
			IsFile: !entry.IsDir(),
		}
		if entry.IsDir() {
			if err := p.walkTree(ctx, child, filepath.Join(dir, entry.Name()), depth-1); err != nil {
				return err
			}
		}
		parent.Children = append(parent.Children, child)
	}
	return nil
}

// PublicURL returns the internal streaming endpoint for a local asset.
// Local storage has no externally reachable gateway, so clients fetch
// through the daemon's file-serving route.
func (p *LocalProvider) PublicURL(ctx context.Context, path string) (string, error) {
	if _, err := p.resolve(path); err != nil {
		return "", err
	}
	escaped := url.PathEscape(normalizeKey(path))
	// PathEscape encodes separators too; restore them for a routable path
	escaped = strings.ReplaceAll(escaped, "%2F", "/")
	return "/v1/files/local/" + escaped, nil
}

// ValidateConnection checks that the base directory is readable.
func (p *LocalProvider) ValidateConnection(ctx context.Context) error {
	if _, err := os.Stat(p.basePath); err != nil {
		return apperrors.ErrStorageConfiguration.
			WithMessagef("storage directory not accessible: %s", p.basePath).
			WithCause(err)
	}
	return nil
}

// Type returns the provider variant id
func (p *LocalProvider) Type() ID {
	return Local
}

// Location returns the base path
func (p *LocalProvider) Location() string {
	return p.basePath
}

func (p *LocalProvider) objectInfo(path string, stat os.FileInfo) *ObjectInfo {
	contentType := mime.TypeByExtension(filepath.Ext(path))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return &ObjectInfo{
		Key:          normalizeKey(path),
		Size:         stat.Size(),
		ContentType:  contentType,
		ETag:         generateETag(stat),
		LastModified: stat.ModTime(),
	}
}

// generateETag derives an ETag from file stats
func generateETag(stat os.FileInfo) string {
	data := fmt.Sprintf("%s-%d-%d", stat.Name(), stat.Size(), stat.ModTime().UnixNano())
	hash := md5.Sum([]byte(data))
	return fmt.Sprintf("\"%s\"", hex.EncodeToString(hash[:]))
}

// normalizeKey strips leading separators and collapses dot segments so the
// same logical path always maps to the same key.
func normalizeKey(path string) string {
	cleaned := strings.TrimPrefix(filepath.ToSlash(filepath.Clean("/"+path)), "/")
	if cleaned == "." {
		return ""
	}
	return cleaned
}

func joinKey(base, name string) string {
	if base == "" {
		return name
	}
	return base + "/" + name
}

func nodeName(key, fallback string) string {
	if key == "" {
		if fallback != "" {
			return fallback
		}
		return "/"
	}
	if idx := strings.LastIndex(key, "/"); idx >= 0 {
		return key[idx+1:]
	}
	return key
}
