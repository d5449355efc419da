package manifest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleFiles() map[string][]byte {
	return map[string][]byte{
		"com/example/User.class":   []byte("user"),
		"com/example/Role.class":   []byte("role"),
		"META-INF/api.kgql_module": []byte("index"),
	}
}

func writeAll(t *testing.T, dir string, files map[string][]byte) {
	t.Helper()
	for path, data := range files {
		full := filepath.Join(dir, filepath.FromSlash(path))
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
		require.NoError(t, os.WriteFile(full, data, 0o644))
	}
}

func TestNew_SortedEntries(t *testing.T) {
	m := New("api", "binary", []byte("type Query { a: Int }"), sampleFiles())

	require.Len(t, m.Files, 3)
	assert.Equal(t, "META-INF/api.kgql_module", m.Files[0].Path)
	assert.Equal(t, "com/example/Role.class", m.Files[1].Path)
	assert.Equal(t, Digest([]byte("role")), m.Files[1].Sum)
	assert.Equal(t, Digest([]byte("type Query { a: Int }")), m.Source)
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	// Test: a saved manifest loads back equal
	dir := t.TempDir()
	m := New("api", "binary", []byte("schema"), sampleFiles())
	require.NoError(t, m.Save(dir))

	got, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, m, got)

	// No temp files left behind
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, FileName, entries[0].Name())
}

func TestLoad_Missing(t *testing.T) {
	_, err := Load(t.TempDir())
	assert.ErrorIs(t, err, ErrNoManifest)
}

func TestLoad_Corrupt(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte{0xc1}, 0o644))
	_, err := Load(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode")
}

func TestUnchanged(t *testing.T) {
	a := New("api", "binary", []byte("s"), sampleFiles())
	b := New("api", "binary", []byte("s"), sampleFiles())
	assert.True(t, a.Unchanged(b))
	assert.False(t, a.Unchanged(nil))

	c := New("api", "binary", []byte("changed"), sampleFiles())
	assert.False(t, a.Unchanged(c))

	files := sampleFiles()
	files["com/example/User.class"] = []byte("other")
	assert.False(t, a.Unchanged(New("api", "binary", []byte("s"), files)))
	assert.False(t, a.Unchanged(New("api", "source", []byte("s"), sampleFiles())))
}

func TestClean(t *testing.T) {
	// Test: listed files go away, edited files and foreign files stay
	dir := t.TempDir()
	files := sampleFiles()
	writeAll(t, dir, files)
	m := New("api", "binary", nil, files)

	edited := filepath.Join(dir, "com", "example", "Role.class")
	require.NoError(t, os.WriteFile(edited, []byte("hand edited"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "keep.txt"), []byte("mine"), 0o644))

	removed, modified, err := m.Clean(dir)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"com/example/User.class", "META-INF/api.kgql_module"}, removed)
	assert.Equal(t, []string{"com/example/Role.class"}, modified)

	assert.FileExists(t, edited)
	assert.FileExists(t, filepath.Join(dir, "keep.txt"))
	assert.NoDirExists(t, filepath.Join(dir, "META-INF"))
	assert.DirExists(t, filepath.Join(dir, "com", "example"))
}

func TestClean_PrunesEmptyDirectories(t *testing.T) {
	dir := t.TempDir()
	files := sampleFiles()
	writeAll(t, dir, files)

	_, _, err := New("api", "binary", nil, files).Clean(dir)
	require.NoError(t, err)
	assert.NoDirExists(t, filepath.Join(dir, "com"))
	assert.DirExists(t, dir)
}

func TestClean_MissingFilesIgnored(t *testing.T) {
	removed, modified, err := New("api", "binary", nil, sampleFiles()).Clean(t.TempDir())
	require.NoError(t, err)
	assert.Empty(t, removed)
	assert.Empty(t, modified)
}
