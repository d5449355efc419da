package classgen

import (
	"os"
	"path/filepath"
)

// Artifact is one generated file, addressed relative to the output root.
type Artifact struct {
	Path  string
	Class string // dotted class name; empty for the module index
	Data  []byte
}

// Output is the result of one synthesis run.
type Output struct {
	Module    string
	Artifacts []Artifact
}

// Paths lists artifact paths in emission order.
func (o *Output) Paths() []string {
	paths := make([]string, len(o.Artifacts))
	for i, a := range o.Artifacts {
		paths[i] = a.Path
	}
	return paths
}

// Artifact finds an artifact by path.
func (o *Output) Artifact(path string) (Artifact, bool) {
	for _, a := range o.Artifacts {
		if a.Path == path {
			return a, true
		}
	}
	return Artifact{}, false
}

// WriteArtifacts writes every artifact below dir. The first failure stops
// the write and is returned as an IoError.
func (o *Output) WriteArtifacts(dir string) error {
	for _, a := range o.Artifacts {
		target := filepath.Join(dir, filepath.FromSlash(a.Path))
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return &IoError{Artifact: a.Path, Cause: err}
		}
		if err := os.WriteFile(target, a.Data, 0o644); err != nil {
			return &IoError{Artifact: a.Path, Cause: err}
		}
	}
	return nil
}
