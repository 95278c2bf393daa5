package wire

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// ModelCacheStatus mirrors the model-manager's verification outcome for one
// registry entry, as persisted in models/cache_metadata.json.
type ModelCacheStatus string

const (
	StatusValid         ModelCacheStatus = "Valid"
	StatusCorrupted     ModelCacheStatus = "Corrupted"
	StatusNotValidated  ModelCacheStatus = "NotValidated"
)

// ModelCacheEntry is one role/tier's cache record.
type ModelCacheEntry struct {
	DownloadTime   time.Time        `json:"download_time"`
	Size           int64            `json:"size"`
	SHA256         string           `json:"sha256"`
	SHA256Verified bool             `json:"sha256_verified"`
	Status         ModelCacheStatus `json:"status"`
}

// ModelCacheMetadata is the whole models/cache_metadata.json document, keyed
// by "role/tier" (e.g. "asr/Turbo").
type ModelCacheMetadata struct {
	Entries map[string]ModelCacheEntry `json:"entries"`
}

// LoadModelCacheMetadata reads path, returning an empty metadata document if
// the file does not yet exist.
func LoadModelCacheMetadata(path string) (*ModelCacheMetadata, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return &ModelCacheMetadata{Entries: map[string]ModelCacheEntry{}}, nil
	}
	if err != nil {
		return nil, err
	}
	var m ModelCacheMetadata
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("wire: parse cache_metadata.json: %w", err)
	}
	if m.Entries == nil {
		m.Entries = map[string]ModelCacheEntry{}
	}
	return &m, nil
}

// Save atomically writes m to path via a .tmp sibling and rename.
func (m *ModelCacheMetadata) Save(path string) error {
	return writeJSONAtomic(path, m)
}

// DeviceProfile caches the resampling choice found to work best for one
// capture device, per §6's device_profiles.json.
type DeviceProfile struct {
	DeviceID         string    `json:"device_id"`
	SampleRateHz     int       `json:"sample_rate_hz"`
	ResampleQuality  string    `json:"resample_quality"`
	CachedAt         time.Time `json:"cached_at"`
}

// Valid reports whether the cached profile is still within its validity
// window. The 30-day window is a heuristic inherited from the source system
// (see DESIGN.md Open Questions); it is not tied to an OS audio-graph
// version because Go has no portable way to read one.
func (p DeviceProfile) Valid(now time.Time) bool {
	return now.Sub(p.CachedAt) <= 30*24*time.Hour
}

// DeviceProfileStore is the on-disk device_profiles.json document.
type DeviceProfileStore struct {
	Profiles map[string]DeviceProfile `json:"profiles"`
}

func LoadDeviceProfiles(path string) (*DeviceProfileStore, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return &DeviceProfileStore{Profiles: map[string]DeviceProfile{}}, nil
	}
	if err != nil {
		return nil, err
	}
	var s DeviceProfileStore
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("wire: parse device_profiles.json: %w", err)
	}
	if s.Profiles == nil {
		s.Profiles = map[string]DeviceProfile{}
	}
	return &s, nil
}

func (s *DeviceProfileStore) Save(path string) error {
	return writeJSONAtomic(path, s)
}

// writeJSONAtomic marshals v and writes it to path via a temp file plus
// rename, matching the teacher's voiceprint.Store.saveUnsafe idiom.
func writeJSONAtomic(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}
