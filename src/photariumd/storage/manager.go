package storage

import (
	"bytes"
	"context"
	"io"
	"sync"
	"time"

	apperrors "github.com/photarium/photarium/src/common/errors"
)

// ConfigSource supplies provider configuration records, typically backed by
// the provider_configs table with secrets already decrypted.
type ConfigSource interface {
	// GetProviderConfig returns the record for a provider id, or a
	// provider not-found error.
	GetProviderConfig(id ID) (*Record, error)

	// ListProviderConfigs returns every stored record.
	ListProviderConfigs() ([]*Record, error)
}

type cachedProvider struct {
	provider  Provider
	updatedAt time.Time
}

// Manager is the single entry point for all storage operations. It resolves
// provider ids to built provider instances, caching each instance until its
// configuration changes, and routes every operation outcome through the
// credential lifecycle.
type Manager struct {
	source    ConfigSource
	lifecycle *Lifecycle

	mu    sync.RWMutex
	cache map[ID]cachedProvider
}

// NewManager creates a storage manager over a configuration source.
func NewManager(source ConfigSource, lifecycle *Lifecycle) *Manager {
	if lifecycle == nil {
		lifecycle = NewLifecycle(nil)
	}
	return &Manager{
		source:    source,
		lifecycle: lifecycle,
		cache:     make(map[ID]cachedProvider),
	}
}

// Lifecycle exposes the credential lifecycle tracker.
func (m *Manager) Lifecycle() *Lifecycle {
	return m.lifecycle
}

// Provider returns a ready provider instance for id, building and caching
// it on first use. Disabled providers are refused before any build happens.
func (m *Manager) Provider(id ID) (Provider, error) {
	rec, err := m.source.GetProviderConfig(id)
	if err != nil {
		return nil, err
	}
	if !rec.Enabled {
		return nil, apperrors.ErrProviderDisabled.
			WithMessagef("storage provider %s is disabled", id)
	}

	m.mu.RLock()
	cached, ok := m.cache[id]
	m.mu.RUnlock()
	if ok && !rec.UpdatedAt.After(cached.updatedAt) {
		return cached.provider, nil
	}

	provider, err := New(rec)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.cache[id] = cachedProvider{provider: provider, updatedAt: rec.UpdatedAt}
	m.mu.Unlock()

	log.Debug("Built storage provider", "provider", string(id))
	return provider, nil
}

// Invalidate drops the cached instance and credential state for a provider,
// forcing a rebuild from current configuration on next use. Called after a
// configuration write.
func (m *Manager) Invalidate(id ID) {
	m.mu.Lock()
	delete(m.cache, id)
	m.mu.Unlock()
	m.lifecycle.Reset(id)
}

// Upload stores content on a provider and returns the stored reference.
func (m *Manager) Upload(ctx context.Context, id ID, path string, reader io.Reader, size int64, contentType string) (*StoredRef, error) {
	provider, err := m.Provider(id)
	if err != nil {
		return nil, err
	}
	ref, err := provider.Put(ctx, path, reader, size, contentType)
	return ref, m.lifecycle.Observe(id, err)
}

// UploadBuffer stores an in-memory payload on a provider.
func (m *Manager) UploadBuffer(ctx context.Context, id ID, path string, data []byte, contentType string) (*StoredRef, error) {
	return m.Upload(ctx, id, path, bytes.NewReader(data), int64(len(data)), contentType)
}

// GetFile opens a stored object for reading.
func (m *Manager) GetFile(ctx context.Context, id ID, path string) (io.ReadCloser, *ObjectInfo, error) {
	provider, err := m.Provider(id)
	if err != nil {
		return nil, nil, err
	}
	rc, info, err := provider.Get(ctx, path)
	return rc, info, m.lifecycle.Observe(id, err)
}

// GetFileBuffer reads a stored object fully into memory.
func (m *Manager) GetFileBuffer(ctx context.Context, id ID, path string) ([]byte, *ObjectInfo, error) {
	rc, info, err := m.GetFile(ctx, id, path)
	if err != nil {
		return nil, nil, err
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, nil, apperrors.ErrStorageUnavailable.
			WithMessagef("provider %s: cannot read object %s", id, path).
			WithCause(err)
	}
	return data, info, nil
}

// DeleteFile removes a stored object.
func (m *Manager) DeleteFile(ctx context.Context, id ID, path string) error {
	provider, err := m.Provider(id)
	if err != nil {
		return err
	}
	return m.lifecycle.Observe(id, provider.Delete(ctx, path))
}

// PhotoURL returns a client-fetchable URL for a stored photo.
func (m *Manager) PhotoURL(ctx context.Context, id ID, path string) (string, error) {
	provider, err := m.Provider(id)
	if err != nil {
		return "", err
	}
	u, err := provider.PublicURL(ctx, path)
	return u, m.lifecycle.Observe(id, err)
}

// ProviderTree enumerates a provider's folder structure under root.
func (m *Manager) ProviderTree(ctx context.Context, id ID, root string, maxDepth int) (*TreeNode, error) {
	provider, err := m.Provider(id)
	if err != nil {
		return nil, err
	}
	tree, err := provider.Tree(ctx, root, maxDepth)
	return tree, m.lifecycle.Observe(id, err)
}

// ValidateProvider runs the provider's connection check. The result feeds
// the credential lifecycle like any other operation.
func (m *Manager) ValidateProvider(ctx context.Context, id ID) error {
	provider, err := m.Provider(id)
	if err != nil {
		return err
	}
	return m.lifecycle.Observe(id, provider.ValidateConnection(ctx))
}

// Status describes one configured provider for the admin surface.
type Status struct {
	Provider    ID              `json:"provider"`
	Enabled     bool            `json:"enabled"`
	Credentials CredentialState `json:"credentials"`
	Location    string          `json:"location,omitempty"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

// Statuses reports every configured provider with its credential state.
// Build failures do not abort the listing; a provider that cannot build
// simply reports no location.
func (m *Manager) Statuses() ([]Status, error) {
	records, err := m.source.ListProviderConfigs()
	if err != nil {
		return nil, err
	}

	statuses := make([]Status, 0, len(records))
	for _, rec := range records {
		s := Status{
			Provider:    rec.ProviderID,
			Enabled:     rec.Enabled,
			Credentials: m.lifecycle.State(rec.ProviderID),
			UpdatedAt:   rec.UpdatedAt,
		}
		if rec.Enabled {
			if provider, err := m.Provider(rec.ProviderID); err == nil {
				s.Location = provider.Location()
			}
		}
		statuses = append(statuses, s)
	}
	return statuses, nil
}
