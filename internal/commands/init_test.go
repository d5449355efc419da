package commands

import (
	"bytes"
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"testing/fstest"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Test plan:
// 1. Test refusing to overwrite an existing config
// 2. Test config and starter schema creation
// 3. Test keeping an existing schema
// 4. Test namespace validation
// 5. Test write failures
// 6. Test form input with tea.WithInput

type mockFileSystem struct {
	statCalls    []string
	mkdirAllErr  error
	writeFileErr error
	files        map[string]bool
	written      map[string][]byte
}

func (m *mockFileSystem) Stat(name string) (os.FileInfo, error) {
	m.statCalls = append(m.statCalls, name)
	if m.files != nil && m.files[name] {
		return nil, nil
	}
	return nil, os.ErrNotExist
}

func (m *mockFileSystem) MkdirAll(path string, perm os.FileMode) error {
	return m.mkdirAllErr
}

func (m *mockFileSystem) WriteFile(name string, data []byte, perm os.FileMode) error {
	if m.writeFileErr != nil {
		return m.writeFileErr
	}
	if m.written == nil {
		m.written = map[string][]byte{}
	}
	m.written[name] = data
	return nil
}

var testTemplates = fstest.MapFS{
	"templates/schema.graphql": {Data: []byte("type Query { hello: String }\n")},
}

func TestInitCommand_Run_ConfigExists(t *testing.T) {
	// Test: an existing config is never overwritten
	mockFS := &mockFileSystem{files: map[string]bool{"/proj/kgql.toml": true}}
	cmd := &InitCommand{
		filesystem:  mockFS,
		templatesFS: testTemplates,
		out:         &bytes.Buffer{},
		dir:         "/proj",
		testOptions: &InitOptions{Namespace: "com.example"},
	}

	err := cmd.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "/proj/kgql.toml already exists")
	assert.Empty(t, mockFS.written)
}

func TestInitCommand_Run_FullFlow(t *testing.T) {
	// Test: complete successful flow with test options
	mockFS := &mockFileSystem{}
	var out bytes.Buffer
	cmd := &InitCommand{
		filesystem:  mockFS,
		templatesFS: testTemplates,
		out:         &out,
		dir:         "/proj",
		testOptions: &InitOptions{
			Namespace: "com.example.api",
			Schema:    "./graphql/schema.graphql",
			Output:    "./gen",
			Backend:   "source",
			Format:    "yaml",
		},
	}

	require.NoError(t, cmd.Run(context.Background()))

	cfg := string(mockFS.written["/proj/kgql.yaml"])
	assert.Contains(t, cfg, "namespace: com.example.api")
	assert.Contains(t, cfg, "backend: source")
	assert.Equal(t, "type Query { hello: String }\n", string(mockFS.written["/proj/graphql/schema.graphql"]))
	assert.Contains(t, out.String(), "Created /proj/kgql.yaml")
}

func TestInitCommand_Run_KeepsSchema(t *testing.T) {
	mockFS := &mockFileSystem{files: map[string]bool{"/proj/schema.graphql": true}}
	cmd := &InitCommand{
		filesystem:  mockFS,
		templatesFS: testTemplates,
		out:         &bytes.Buffer{},
		dir:         "/proj",
		testOptions: &InitOptions{Namespace: "com.example", Schema: "schema.graphql"},
	}

	require.NoError(t, cmd.Run(context.Background()))
	assert.Contains(t, mockFS.written, "/proj/kgql.json")
	assert.NotContains(t, mockFS.written, "/proj/schema.graphql")
}

func TestInitCommand_Run_Errors(t *testing.T) {
	tests := []struct {
		name    string
		fs      *mockFileSystem
		opts    *InitOptions
		wantErr string
	}{
		{"empty namespace", &mockFileSystem{}, &InitOptions{}, "package cannot be empty"},
		{"invalid namespace", &mockFileSystem{}, &InitOptions{Namespace: "Com.Example"}, "not a valid package name"},
		{"bad format", &mockFileSystem{}, &InitOptions{Namespace: "a", Format: "ini"}, "unsupported config format"},
		{"write failure", &mockFileSystem{writeFileErr: errors.New("disk full")}, &InitOptions{Namespace: "a"}, "failed to write config"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := &InitCommand{
				filesystem:  tt.fs,
				templatesFS: testTemplates,
				out:         &bytes.Buffer{},
				dir:         "/proj",
				testOptions: tt.opts,
			}
			err := cmd.Run(context.Background())
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidateNamespace(t *testing.T) {
	tests := []struct {
		input string
		valid bool
	}{
		{"com.example.api", true},
		{"generated", true},
		{"_internal.v2", true},
		{"", false},
		{"com..example", false},
		{"com.example.", false},
		{"2fa", false},
		{"com.Example", false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			err := validateNamespace(tt.input)
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

// Integration test for the form - skip in CI but useful for local development
func TestInitCommand_promptInitOptions_Interactive(t *testing.T) {
	// Always skip this test in automated runs to prevent deadlocks
	if os.Getenv("INTERACTIVE_TEST") != "true" {
		t.Skip("Skipping interactive test. Set INTERACTIVE_TEST=true to run")
	}

	// Test: form accepts input via tea.WithInput
	cmd := &InitCommand{
		filesystem:  &mockFileSystem{},
		templatesFS: testTemplates,
		out:         &bytes.Buffer{},
	}

	// Simulate user input: package, keep defaults, pick Kotlin source
	input := strings.NewReader("com.example\n\n\n\x1b[B\n\n")

	options, err := cmd.promptInitOptions(
		tea.WithInput(input),
		tea.WithoutRenderer(),
	)
	require.NoError(t, err)
	assert.Equal(t, "com.example", options.Namespace)
	assert.Equal(t, "source", options.Backend)
}
