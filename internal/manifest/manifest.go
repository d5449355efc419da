// Package manifest records what a generate run wrote so that the next run
// can remove stale artifacts.
package manifest

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/vmihailenco/msgpack/v5"
)

// FileName is the manifest's name inside the output directory.
const FileName = ".kgql-manifest"

// Current schema version - increment when the Manifest format changes
const schemaVersion uint16 = 1

// ErrNoManifest is returned by Load when the directory has no manifest.
var ErrNoManifest = errors.New("manifest: not found")

// Manifest lists the files one target produced.
type Manifest struct {
	Schema  uint16
	Target  string
	Backend string
	// Source is the digest of the schema text the files were built from
	Source string
	Files  []Entry
}

// Entry is one produced file
type Entry struct {
	Path string // slash-separated, relative to the output directory
	Sum  string // hex sha256 of the content
}

// Digest returns the hex sha256 of data.
func Digest(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// New describes files keyed by relative path. Entries are sorted by path.
func New(target, backend string, source []byte, files map[string][]byte) *Manifest {
	m := &Manifest{
		Schema:  schemaVersion,
		Target:  target,
		Backend: backend,
		Source:  Digest(source),
		Files:   make([]Entry, 0, len(files)),
	}
	for path, data := range files {
		m.Files = append(m.Files, Entry{Path: path, Sum: Digest(data)})
	}
	sort.Slice(m.Files, func(i, j int) bool { return m.Files[i].Path < m.Files[j].Path })
	return m
}

// Load reads the manifest of dir.
func Load(dir string) (*Manifest, error) {
	f, err := os.Open(filepath.Join(dir, FileName))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNoManifest
		}
		return nil, err
	}
	defer f.Close()

	var m Manifest
	if err := msgpack.NewDecoder(f).Decode(&m); err != nil {
		return nil, fmt.Errorf("manifest: decode: %w", err)
	}
	if m.Schema != schemaVersion {
		return nil, fmt.Errorf("manifest: unsupported schema version %d", m.Schema)
	}
	return &m, nil
}

// Save writes the manifest into dir, replacing any previous one atomically.
func (m *Manifest) Save(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	f, err := os.CreateTemp(dir, FileName+".tmp-*")
	if err != nil {
		return err
	}
	tmp := f.Name()
	defer os.Remove(tmp)

	if err := msgpack.NewEncoder(f).Encode(m); err != nil {
		f.Close()
		return fmt.Errorf("manifest: encode: %w", err)
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, filepath.Join(dir, FileName))
}

// Unchanged reports whether other describes the same source and files.
func (m *Manifest) Unchanged(other *Manifest) bool {
	if other == nil || m.Source != other.Source || m.Backend != other.Backend || len(m.Files) != len(other.Files) {
		return false
	}
	for i := range m.Files {
		if m.Files[i] != other.Files[i] {
			return false
		}
	}
	return true
}

// Clean removes the listed files from dir, then any directories left empty.
// Files edited since they were written are kept and returned as modified.
func (m *Manifest) Clean(dir string) (removed, modified []string, err error) {
	dirs := make(map[string]bool)
	for _, e := range m.Files {
		path := filepath.Join(dir, filepath.FromSlash(e.Path))
		data, err := os.ReadFile(path)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return removed, modified, err
		}
		if Digest(data) != e.Sum {
			modified = append(modified, e.Path)
			continue
		}
		if err := os.Remove(path); err != nil {
			return removed, modified, err
		}
		removed = append(removed, e.Path)
		for d := filepath.Dir(path); d != dir && len(d) > len(dir); d = filepath.Dir(d) {
			dirs[d] = true
		}
	}

	// Deepest first, so parents see their children gone.
	ordered := make([]string, 0, len(dirs))
	for d := range dirs {
		ordered = append(ordered, d)
	}
	sort.Slice(ordered, func(i, j int) bool { return len(ordered[i]) > len(ordered[j]) })
	for _, d := range ordered {
		entries, err := os.ReadDir(d)
		if err != nil || len(entries) > 0 {
			continue
		}
		if err := os.Remove(d); err != nil {
			return removed, modified, err
		}
	}
	return removed, modified, nil
}
