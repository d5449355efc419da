package commands

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/okra-platform/kgql/internal/classgen"
	"github.com/okra-platform/kgql/internal/codegen"
	"github.com/okra-platform/kgql/internal/config"
	"github.com/okra-platform/kgql/internal/decl"
	"github.com/okra-platform/kgql/internal/manifest"
)

const twoTargets = `{
  "namespace": "com.example.api",
  "output": "out",
  "targets": [
    {"name": "classes", "backend": "binary"},
    {"name": "kotlin", "backend": "source"}
  ]
}`

func TestGenerateCommand_Run_Targets(t *testing.T) {
	// Test: every target is written with its manifest
	dir, loader := newProject(t, twoTargets)
	var out bytes.Buffer
	cmd := NewGenerateCommand(loader, zerolog.Nop(), &out)

	cfg, root, err := loader.LoadConfig()
	require.NoError(t, err)
	results, err := cmd.Run(context.Background(), cfg, root, GenerateOptions{})
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, "binary", results[0].Backend)
	assert.FileExists(t, filepath.Join(dir, "out/classes/com/example/api/User.class"))
	assert.FileExists(t, filepath.Join(dir, "out/classes/META-INF/classes.kgql_module"))
	assert.FileExists(t, filepath.Join(dir, "out/kotlin/com/example/api/User.kt"))

	m, err := manifest.Load(filepath.Join(dir, "out/classes"))
	require.NoError(t, err)
	assert.Equal(t, "classes", m.Target)
	assert.Len(t, m.Files, results[0].Files)

	report, err := classgen.VerifyDir(filepath.Join(dir, "out/classes"))
	require.NoError(t, err)
	assert.NoError(t, report.Err())
	assert.Contains(t, out.String(), "classes: wrote")
}

func TestGenerateCommand_Run_SkipsUnchanged(t *testing.T) {
	// Test: a second run with the same schema leaves the output alone
	_, loader := newProject(t, twoTargets)
	cmd := NewGenerateCommand(loader, zerolog.Nop(), &bytes.Buffer{})
	cfg, root, err := loader.LoadConfig()
	require.NoError(t, err)

	_, err = cmd.Run(context.Background(), cfg, root, GenerateOptions{})
	require.NoError(t, err)
	results, err := cmd.Run(context.Background(), cfg, root, GenerateOptions{})
	require.NoError(t, err)
	for _, r := range results {
		assert.True(t, r.Skipped, r.Target)
	}

	// Test: a deleted file forces a rewrite
	require.NoError(t, os.Remove(filepath.Join(root, "out/kotlin/com/example/api/User.kt")))
	results, err = cmd.Run(context.Background(), cfg, root, GenerateOptions{Targets: []string{"kotlin"}})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.False(t, results[0].Skipped)
	assert.FileExists(t, filepath.Join(root, "out/kotlin/com/example/api/User.kt"))
}

func TestGenerateCommand_Run_Clean(t *testing.T) {
	// Test: files of removed types are stale until --clean removes them
	dir, loader := newProject(t, `{"namespace": "com.example.api", "output": "out", "backend": "source", "module": "api"}`)
	cmd := NewGenerateCommand(loader, zerolog.Nop(), &bytes.Buffer{})
	cfg, root, err := loader.LoadConfig()
	require.NoError(t, err)
	_, err = cmd.Run(context.Background(), cfg, root, GenerateOptions{})
	require.NoError(t, err)
	role := filepath.Join(dir, "out/com/example/api/Role.kt")
	require.FileExists(t, role)

	trimmed := `type Query { hello: String }`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "schema.graphql"), []byte(trimmed), 0o644))

	results, err := cmd.Run(context.Background(), cfg, root, GenerateOptions{})
	require.NoError(t, err)
	assert.Positive(t, results[0].Stale)
	assert.FileExists(t, role)

	// Test: with --clean the files of the previous run are removed first
	require.NoError(t, os.WriteFile(filepath.Join(dir, "schema.graphql"), []byte(testSchema), 0o644))
	_, err = cmd.Run(context.Background(), cfg, root, GenerateOptions{})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "schema.graphql"), []byte(trimmed), 0o644))
	results, err = cmd.Run(context.Background(), cfg, root, GenerateOptions{Clean: true})
	require.NoError(t, err)
	assert.Positive(t, results[0].Removed)
	assert.NoFileExists(t, role)
}

func TestGenerateCommand_Run_Errors(t *testing.T) {
	tests := []struct {
		name    string
		config  string
		schema  string
		opts    GenerateOptions
		wantErr string
	}{
		{
			name:    "unknown target",
			config:  twoTargets,
			opts:    GenerateOptions{Targets: []string{"missing"}},
			wantErr: `unknown target "missing"`,
		},
		{
			name:    "shared output",
			config:  `{"namespace": "a", "targets": [{"name": "x", "output": "out"}, {"name": "y", "output": "out"}]}`,
			wantErr: "share output directory",
		},
		{
			name:    "unknown backend",
			config:  `{"namespace": "a", "backend": "wasm"}`,
			wantErr: "unsupported backend: wasm",
		},
		{
			name:    "invalid schema",
			config:  `{"namespace": "a"}`,
			schema:  `type Query { user: Missing }`,
			wantErr: "schema.graphql",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir, loader := newProject(t, tt.config)
			if tt.schema != "" {
				require.NoError(t, os.WriteFile(filepath.Join(dir, "schema.graphql"), []byte(tt.schema), 0o644))
			}
			cfg, root, err := loader.LoadConfig()
			require.NoError(t, err)

			_, err = NewGenerateCommand(loader, zerolog.Nop(), &bytes.Buffer{}).Run(context.Background(), cfg, root, tt.opts)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

type failingGenerator struct{}

func (failingGenerator) Name() string { return "failing" }

func (failingGenerator) Generate(*decl.Tree) (map[string][]byte, error) {
	return nil, errors.New("boom")
}

func TestGenerateCommand_Execute_WithDependencies(t *testing.T) {
	// Test: backend failures name the target
	dir, _ := newProject(t, `{"namespace": "com.example.api", "backend": "failing"}`)
	cfg, err := config.LoadConfigFromPath(filepath.Join(dir, "kgql.json"))
	require.NoError(t, err)

	registry := codegen.NewRegistry()
	registry.Register("failing", func(codegen.Options) codegen.Generator { return failingGenerator{} })

	cmd := NewGenerateCommand(nil, zerolog.Nop(), &bytes.Buffer{}).WithDependencies(GenerateDependencies{
		ConfigLoader: &mockConfigLoader{cfg: cfg, root: dir},
		Registry:     registry,
		Logger:       zerolog.Nop(),
		Output:       &bytes.Buffer{},
	})
	err = cmd.Execute(context.Background(), GenerateOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "target main: boom")
}

func TestGenerateCommand_Execute_ConfigError(t *testing.T) {
	cmd := NewGenerateCommand(&mockConfigLoader{err: errors.New("no config")}, zerolog.Nop(), &bytes.Buffer{})
	err := cmd.Execute(context.Background(), GenerateOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load project config")
}

func TestGenerateCommand_Execute_WatchStopsOnCancel(t *testing.T) {
	// Test: watch mode returns cleanly once the context is cancelled
	_, loader := newProject(t, `{"namespace": "com.example.api", "output": "out"}`)
	var out bytes.Buffer
	cmd := NewGenerateCommand(loader, zerolog.Nop(), &out)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := cmd.Execute(ctx, GenerateOptions{Watch: true})
	require.NoError(t, err)
	assert.Contains(t, out.String(), "Stopped watching")
}

func TestSelectTargets(t *testing.T) {
	all := []config.Target{{Name: "a", Output: "out/a"}, {Name: "b", Output: "out/b"}}

	got, err := selectTargets(all, nil, "/p")
	require.NoError(t, err)
	assert.Equal(t, all, got)

	got, err = selectTargets(all, []string{"b"}, "/p")
	require.NoError(t, err)
	assert.Equal(t, []config.Target{all[1]}, got)
}
