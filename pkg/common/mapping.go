package common

// FieldMapping represents a single source-path to destination-column mapping.
// Enabled is a pointer so that a mapping with no "enabled" key in the config
// counts as enabled; only an explicit false disables it.
type FieldMapping struct {
	DestinationColumn string `json:"destinationColumn"`
	SourcePath        string `json:"sourcePath"`
	Enabled           *bool  `json:"enabled,omitempty"`

	// Transform, when set, receives the raw extracted value and its result
	// is written to the row verbatim, bypassing default serialization.
	// It is set programmatically and never comes from the config file.
	Transform func(any) any `json:"-"`
}

// IsEnabled reports whether the mapping should be applied.
func (m *FieldMapping) IsEnabled() bool {
	return m.Enabled == nil || *m.Enabled
}

// MappedRow is the flat, fully-serialized form of a source record. Every
// value is nil, bool, number or string; nested structures are serialized
// before they land here.
type MappedRow map[string]any
