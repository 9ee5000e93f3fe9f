package signature

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/morezero/inference-client/pkg/ref"
)

const logPrefix = "signature:loader"

// Source fetches the method signatures a resource publishes.
type Source interface {
	Describe(ctx context.Context, r ref.Ref) (*Set, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context, r ref.Ref) (*Set, error)

// Describe calls f.
func (f SourceFunc) Describe(ctx context.Context, r ref.Ref) (*Set, error) {
	return f(ctx, r)
}

// File is the root of a signature fixture file. Keys of Resources are
// "<user>/<app>/<kind>/<id>", optionally suffixed with "@<version>".
type File struct {
	Name      string          `json:"name,omitempty" yaml:"name,omitempty"`
	Resources map[string]*Set `json:"resources" yaml:"resources"`
}

// LoadFile loads the first readable and parseable fixture among paths.
// YAML is a superset of JSON, so both formats are accepted.
func LoadFile(paths ...string) (*File, error) {
	for _, p := range paths {
		if p == "" {
			continue
		}

		data, err := os.ReadFile(p)
		if err != nil {
			continue
		}

		f, err := ParseFile(data)
		if err != nil {
			slog.Warn(fmt.Sprintf("%s - Failed to parse signature file %s: %v", logPrefix, p, err))
			continue
		}

		slog.Info(fmt.Sprintf("%s - Loaded %d resource signatures from %s", logPrefix, len(f.Resources), p))
		return f, nil
	}
	return nil, fmt.Errorf("%s - no readable signature file among %v", logPrefix, paths)
}

// ParseFile decodes and validates fixture content.
func ParseFile(data []byte) (*File, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("%s - failed to decode: %w", logPrefix, err)
	}
	for key, set := range f.Resources {
		if set == nil {
			return nil, fmt.Errorf("%s - resource %s has no signatures", logPrefix, key)
		}
		if set.Resource == "" {
			set.Resource = key
		}
		if err := set.Validate(); err != nil {
			return nil, err
		}
	}
	return &f, nil
}

// FileSource serves signatures from a loaded fixture file.
type FileSource struct {
	file *File
}

// NewFileSource creates a FileSource.
func NewFileSource(f *File) *FileSource {
	return &FileSource{file: f}
}

// Describe returns the signatures for r, preferring a version-specific entry.
// A resource absent from the file yields an empty set, which callers treat as
// incompatible.
func (s *FileSource) Describe(_ context.Context, r ref.Ref) (*Set, error) {
	if set, ok := s.file.Resources[r.String()]; ok {
		return set, nil
	}
	base := r
	base.VersionID = ""
	if set, ok := s.file.Resources[base.String()]; ok {
		return set, nil
	}
	slog.Debug(fmt.Sprintf("%s - no signatures for %s", logPrefix, r.String()))
	return &Set{Resource: r.String()}, nil
}
