package models

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/voiceloom/meetscribe/internal/errs"
	"github.com/voiceloom/meetscribe/internal/wire"
)

// Manager resolves (role, tier) pairs to verified local artifact paths,
// downloading and caching them on demand. Grounded on the teacher's
// models.Manager (registry + cache-dir + HTTP client shape), extended with
// the cache_metadata.json-backed verification status the teacher never
// tracked.
type Manager struct {
	dir      string
	registry Registry
	client   *http.Client

	mu           sync.Mutex
	metaPath     string
	meta         *wire.ModelCacheMetadata
	activeFetch  map[string]struct{}
}

// NewManager opens (or creates) the cache directory and its metadata
// document. dir holds both the downloaded artifacts and cache_metadata.json.
func NewManager(dir string, registry Registry) (*Manager, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errs.Wrap(errs.ModelLoadFailed, err, "models: create cache dir %s", dir)
	}
	metaPath := filepath.Join(dir, "cache_metadata.json")
	meta, err := wire.LoadModelCacheMetadata(metaPath)
	if err != nil {
		return nil, errs.Wrap(errs.ModelLoadFailed, err, "models: load cache metadata")
	}
	return &Manager{
		dir:         dir,
		registry:    registry,
		client:      &http.Client{Timeout: 0},
		metaPath:    metaPath,
		meta:        meta,
		activeFetch: map[string]struct{}{},
	}, nil
}

func (m *Manager) artifactPath(role Role, tier Tier) string {
	return filepath.Join(m.dir, string(role)+"_"+string(tier)+".bin")
}

// Resolve returns the local path for (role, tier), fetching it first if
// necessary. Per §4.K: a cache entry marked Valid, or NotValidated (unknown
// checksum but still usable), whose file still exists is returned as-is;
// Corrupted triggers a re-fetch; an absent entry triggers a first fetch.
func (m *Manager) Resolve(ctx context.Context, role Role, tier Tier, onProgress ProgressCallback) (string, error) {
	entry, err := m.registry.Lookup(role, tier)
	if err != nil {
		return "", err
	}
	key := registryKey(role, tier)
	path := m.artifactPath(role, tier)

	m.mu.Lock()
	cached, ok := m.meta.Entries[key]
	m.mu.Unlock()

	if ok && (cached.Status == wire.StatusValid || cached.Status == wire.StatusNotValidated) {
		if _, statErr := os.Stat(path); statErr == nil {
			return path, nil
		}
		// Metadata says usable but the file is gone; treat like absent.
	}

	if err := m.fetch(ctx, role, tier, key, path, entry, onProgress); err != nil {
		return "", err
	}
	return path, nil
}

// fetch downloads entry's artifact to path, verifies it, and persists cache
// metadata on success. Concurrent Resolve calls for the same key serialize
// on the manager's lock around activeFetch bookkeeping but the download
// itself runs unlocked, matching the teacher's Manager (which tracks
// in-flight downloads in a map without holding a lock across the transfer).
func (m *Manager) fetch(ctx context.Context, role Role, tier Tier, key, path string, entry RegistryEntry, onProgress ProgressCallback) error {
	m.mu.Lock()
	if _, inFlight := m.activeFetch[key]; inFlight {
		m.mu.Unlock()
		return errs.New(errs.ModelLoadFailed, "models: %s is already being fetched", key)
	}
	m.activeFetch[key] = struct{}{}
	m.mu.Unlock()
	defer func() {
		m.mu.Lock()
		delete(m.activeFetch, key)
		m.mu.Unlock()
	}()

	got, err := downloadToTemp(ctx, m.client, entry.URL, path, entry.ExpectedSize, onProgress)
	if err != nil {
		return err
	}

	status, verr := verify(entry, got)
	if verr != nil {
		os.Remove(got.tmpPath)
		return verr
	}

	if err := os.Rename(got.tmpPath, path); err != nil {
		os.Remove(got.tmpPath)
		return errs.Wrap(errs.ModelLoadFailed, err, "models: rename %s into place", key)
	}

	m.mu.Lock()
	m.meta.Entries[key] = wire.ModelCacheEntry{
		DownloadTime:   time.Now(),
		Size:           got.size,
		SHA256:         got.sha256,
		SHA256Verified: entry.ExpectedSHA256 != "",
		Status:         status,
	}
	saveErr := m.meta.Save(m.metaPath)
	m.mu.Unlock()
	if saveErr != nil {
		return errs.Wrap(errs.ModelLoadFailed, saveErr, "models: persist cache metadata for %s", key)
	}
	return nil
}

// Status returns the recorded cache status for (role, tier), and whether any
// entry exists at all.
func (m *Manager) Status(role Role, tier Tier) (wire.ModelCacheEntry, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.meta.Entries[registryKey(role, tier)]
	return e, ok
}

// Evict removes a cached artifact and its metadata entry, forcing the next
// Resolve to re-fetch it.
func (m *Manager) Evict(role Role, tier Tier) error {
	key := registryKey(role, tier)
	path := m.artifactPath(role, tier)

	m.mu.Lock()
	delete(m.meta.Entries, key)
	saveErr := m.meta.Save(m.metaPath)
	m.mu.Unlock()
	if saveErr != nil {
		return errs.Wrap(errs.ModelLoadFailed, saveErr, "models: persist cache metadata after evicting %s", key)
	}

	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return errs.Wrap(errs.ModelLoadFailed, err, "models: remove cached artifact %s", key)
	}
	return nil
}
