package smol

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// KeyRLEVersion selects which Key-RLE payload variant the builder prefers.
type KeyRLEVersion string

const (
	RLEVersionAuto KeyRLEVersion = "auto"
	RLEVersionV1   KeyRLEVersion = "v1"
	RLEVersionV2   KeyRLEVersion = "v2"
)

// Tunables holds the configuration options spec.md §6 recognizes. Defaults
// match the spec exactly.
type Tunables struct {
	RLEUniquenessThreshold float64       `yaml:"rle_uniqueness_threshold"`
	KeyRLEVersion          KeyRLEVersion `yaml:"key_rle_version"`
	ParallelClaimBatch     int           `yaml:"parallel_claim_batch"`
	PrefetchDepth          int           `yaml:"prefetch_depth"`
	BuildZoneMaps          bool          `yaml:"build_zone_maps"`
	DebugLog               bool          `yaml:"debug_log"`
	Profile                bool          `yaml:"profile"`
}

// DefaultTunables returns the spec-mandated defaults.
func DefaultTunables() Tunables {
	return Tunables{
		RLEUniquenessThreshold: 0.5,
		KeyRLEVersion:          RLEVersionAuto,
		ParallelClaimBatch:     1,
		PrefetchDepth:          4,
		BuildZoneMaps:          true,
		DebugLog:               false,
		Profile:                false,
	}
}

// Validate rejects out-of-range tunables as a configuration error at
// Build time (and when LoadTunablesYAML loads them) rather than letting
// them surface as a panic mid-build.
func (t Tunables) Validate() error {
	if t.RLEUniquenessThreshold < 0 || t.RLEUniquenessThreshold > 1 {
		return fmt.Errorf("%w: rle_uniqueness_threshold %v out of range [0,1]", ErrInputInvalid, t.RLEUniquenessThreshold)
	}
	switch t.KeyRLEVersion {
	case RLEVersionAuto, RLEVersionV1, RLEVersionV2, "":
	default:
		return fmt.Errorf("%w: unknown key_rle_version %q", ErrInputInvalid, t.KeyRLEVersion)
	}
	if t.ParallelClaimBatch < 1 {
		return fmt.Errorf("%w: parallel_claim_batch must be ≥1, got %d", ErrInputInvalid, t.ParallelClaimBatch)
	}
	if t.PrefetchDepth < 0 {
		return fmt.Errorf("%w: prefetch_depth must be ≥0, got %d", ErrInputInvalid, t.PrefetchDepth)
	}
	return nil
}

// LoadTunablesYAML reads tunables from a YAML document, starting from
// DefaultTunables so an incomplete file still yields valid settings.
func LoadTunablesYAML(r io.Reader) (Tunables, error) {
	t := DefaultTunables()
	dec := yaml.NewDecoder(r)
	if err := dec.Decode(&t); err != nil && err != io.EOF {
		return Tunables{}, fmt.Errorf("smol: decode tunables yaml: %w", err)
	}
	if err := t.Validate(); err != nil {
		return Tunables{}, err
	}
	return t, nil
}
