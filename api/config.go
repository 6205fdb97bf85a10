package api

import "time"

// Defaults shared by the pipeline presets.
const (
	DefaultTimeoutMs        = 30_000
	DefaultMaxFileSizeBytes = 10 * 1024 * 1024
)

// SerializerConfig controls bundle encoding and validation.
type SerializerConfig struct {
	// Pretty indents the emitted JSON document.
	Pretty bool
	// ValidateOnSerialize re-checks node invariants before encoding.
	ValidateOnSerialize bool
	// ValidateOnDeserialize re-checks node invariants after decoding.
	ValidateOnDeserialize bool
	// IncludeValidateRoundTrip makes the pipeline decode its own output and
	// compare it field-by-field against the in-memory nodes.
	IncludeValidateRoundTrip bool
}

// PipelineConfig enumerates every per-file pipeline option. The zero value
// is not useful; start from one of the presets.
type PipelineConfig struct {
	GenerateIDs           bool
	ClassifyNodes         bool
	CalculateSignificance bool
	ExtractMetadata       bool
	EnableSerialization   bool
	// OutputPath is the serialization target; required when
	// EnableSerialization is set on a single-file run. Batch runs derive
	// per-file paths from OutputDir.
	OutputPath string
	OutputDir  string

	TimeoutMs        int
	MaxFileSizeBytes int64

	IncludeSourceText   bool
	GenerateSignatures  bool
	CalculateComplexity bool
	ValidateNodes       bool
	// PreserveErrorNodes keeps tree-sitter error regions in the output as
	// ERROR nodes in addition to reporting them as syntax errors.
	PreserveErrorNodes bool

	Serializer SerializerConfig
}

// Timeout returns the configured per-stage deadline.
func (c *PipelineConfig) Timeout() time.Duration {
	ms := c.TimeoutMs
	if ms <= 0 {
		ms = DefaultTimeoutMs
	}
	return time.Duration(ms) * time.Millisecond
}

// MaxFileSize returns the admission size limit.
func (c *PipelineConfig) MaxFileSize() int64 {
	if c.MaxFileSizeBytes <= 0 {
		return DefaultMaxFileSizeBytes
	}
	return c.MaxFileSizeBytes
}

// MinimalConfig parses, classifies and ranks significance only: no
// metadata, no ids, no serialization. The cheapest useful profile.
func MinimalConfig() PipelineConfig {
	return PipelineConfig{
		ClassifyNodes:         true,
		CalculateSignificance: true,
		TimeoutMs:             DefaultTimeoutMs,
		MaxFileSizeBytes:      DefaultMaxFileSizeBytes,
	}
}

// FullConfig enables every enrichment and validation stage.
func FullConfig() PipelineConfig {
	return PipelineConfig{
		GenerateIDs:           true,
		ClassifyNodes:         true,
		CalculateSignificance: true,
		ExtractMetadata:       true,
		IncludeSourceText:     true,
		GenerateSignatures:    true,
		CalculateComplexity:   true,
		ValidateNodes:         true,
		TimeoutMs:             DefaultTimeoutMs,
		MaxFileSizeBytes:      DefaultMaxFileSizeBytes,
	}
}

// PerformanceConfig keeps ids and classification for indexing but drops
// source text capture and validation to maximize throughput.
func PerformanceConfig() PipelineConfig {
	return PipelineConfig{
		GenerateIDs:           true,
		ClassifyNodes:         true,
		CalculateSignificance: true,
		ExtractMetadata:       true,
		GenerateSignatures:    true,
		TimeoutMs:             DefaultTimeoutMs,
		MaxFileSizeBytes:      DefaultMaxFileSizeBytes,
	}
}
