package config

import (
	"fmt"
	"io"
	"os"

	"github.com/voiceloom/meetscribe/internal/obs"
	"gopkg.in/yaml.v3"
)

var configLog = obs.New("config")

// Load reads the YAML config file at path, merges it onto Default, and
// validates the result. A missing file is not an error: Default() alone is
// returned so the daemon can run against built-in tunables.
func Load(path string) (*ScribeConfig, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return Default(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r on top of Default and
// validates the result. Useful in tests where configs are constructed from
// string literals.
func LoadFromReader(r io.Reader) (*ScribeConfig, error) {
	cfg := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && err != io.EOF {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}

	resolveDeprecatedAliases(cfg)

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// resolveDeprecatedAliases copies deprecated YAML fields onto their
// authoritative replacement, per DESIGN.md's Open Questions entry for
// clustering_threshold vs. similarity_threshold.
func resolveDeprecatedAliases(cfg *ScribeConfig) {
	if cfg.Speakers.ClusteringThreshold != 0 {
		configLog.Warnf("config: speakers.clustering_threshold is deprecated, use speakers.similarity_threshold")
		cfg.Speakers.SimilarityThreshold = cfg.Speakers.ClusteringThreshold
		cfg.Speakers.ClusteringThreshold = 0
	}
}
