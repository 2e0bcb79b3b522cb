package config

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// FileEntry is one element of the ordered `files` list. It is either a path
// or glob relative to the source directory, or a part grouping more entries:
//
//	files:
//	  - preface.md
//	  - part: Getting Started
//	    files:
//	      - chapters/0*.md
type FileEntry struct {
	Path  string
	Part  string
	Files []FileEntry
}

// IsPart reports whether the entry groups other entries under a part label.
func (e FileEntry) IsPart() bool { return e.Part != "" }

// UnmarshalYAML accepts a scalar path or a mapping with part/files (or path).
func (e *FileEntry) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		e.Path = value.Value
		return nil
	case yaml.MappingNode:
		var raw struct {
			Path  string      `yaml:"path"`
			Part  string      `yaml:"part"`
			Files []FileEntry `yaml:"files"`
		}
		if err := value.Decode(&raw); err != nil {
			return err
		}
		if raw.Path != "" && raw.Part != "" {
			return fmt.Errorf("line %d: file entry cannot have both path and part", value.Line)
		}
		e.Path, e.Part, e.Files = raw.Path, raw.Part, raw.Files
		return nil
	default:
		return fmt.Errorf("line %d: file entry must be a string or a mapping", value.Line)
	}
}

// MarshalYAML writes plain paths as scalars.
func (e FileEntry) MarshalYAML() (any, error) {
	if !e.IsPart() {
		return e.Path, nil
	}
	return struct {
		Part  string      `yaml:"part"`
		Files []FileEntry `yaml:"files"`
	}{e.Part, e.Files}, nil
}
