package commands

import (
	"context"
	"embed"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"

	"github.com/okra-platform/kgql/internal/codegen"
	"github.com/okra-platform/kgql/internal/config"
)

//go:embed templates/*
var templatesFS embed.FS

var namespacePattern = regexp.MustCompile(`^[a-z_][a-z0-9_]*(\.[a-z_][a-z0-9_]*)*$`)

// InitOptions are the answers of the init form
type InitOptions struct {
	Namespace string
	Schema    string
	Output    string
	Backend   string
	Format    string
}

type FileSystem interface {
	Stat(name string) (os.FileInfo, error)
	MkdirAll(path string, perm os.FileMode) error
	WriteFile(name string, data []byte, perm os.FileMode) error
}

type osFileSystem struct{}

func (fs *osFileSystem) Stat(name string) (os.FileInfo, error) {
	return os.Stat(name)
}

func (fs *osFileSystem) MkdirAll(path string, perm os.FileMode) error {
	return os.MkdirAll(path, perm)
}

func (fs *osFileSystem) WriteFile(name string, data []byte, perm os.FileMode) error {
	return os.WriteFile(name, data, perm)
}

type InitCommand struct {
	filesystem  FileSystem
	templatesFS fs.FS
	out         io.Writer
	dir         string
	// For testing: if set, skip prompting
	testOptions *InitOptions
}

func NewInitCommand(dir string, out io.Writer) *InitCommand {
	return &InitCommand{
		filesystem:  &osFileSystem{},
		templatesFS: templatesFS,
		out:         out,
		dir:         dir,
	}
}

func (ic *InitCommand) Run(ctx context.Context) error {
	return ic.RunWithOptions(ctx)
}

func (ic *InitCommand) RunWithOptions(ctx context.Context, opts ...tea.ProgramOption) error {
	for _, name := range config.FileNames {
		path := filepath.Join(ic.dir, name)
		if _, err := ic.filesystem.Stat(path); err == nil {
			return fmt.Errorf("%s already exists", path)
		}
	}

	var options *InitOptions
	var err error

	// For testing: use provided options instead of prompting
	if ic.testOptions != nil {
		options = ic.testOptions
	} else {
		options, err = ic.promptInitOptions(opts...)
		if err != nil {
			return fmt.Errorf("failed to get init options: %w", err)
		}
	}
	if err := validateNamespace(options.Namespace); err != nil {
		return err
	}

	cfg := &config.Config{
		Schema:    options.Schema,
		Output:    options.Output,
		Backend:   options.Backend,
		Namespace: options.Namespace,
	}
	if options.Format == "" {
		options.Format = "json"
	}
	data, err := cfg.Marshal("." + options.Format)
	if err != nil {
		return err
	}
	configPath := filepath.Join(ic.dir, "kgql."+options.Format)
	if err := ic.filesystem.WriteFile(configPath, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	fmt.Fprintf(ic.out, "✅ Created %s\n", configPath)

	schemaPath := resolvePath(ic.dir, cfg.Schema)
	if cfg.Schema == "" {
		schemaPath = resolvePath(ic.dir, config.DefaultSchema)
	}
	if _, err := ic.filesystem.Stat(schemaPath); err == nil {
		return nil
	}
	starter, err := fs.ReadFile(ic.templatesFS, "templates/schema.graphql")
	if err != nil {
		return fmt.Errorf("failed to read starter schema: %w", err)
	}
	if err := ic.filesystem.MkdirAll(filepath.Dir(schemaPath), 0o755); err != nil {
		return fmt.Errorf("failed to create schema directory: %w", err)
	}
	if err := ic.filesystem.WriteFile(schemaPath, starter, 0o644); err != nil {
		return fmt.Errorf("failed to write starter schema: %w", err)
	}
	fmt.Fprintf(ic.out, "✅ Created %s\n", schemaPath)
	return nil
}

func (ic *InitCommand) promptInitOptions(opts ...tea.ProgramOption) (*InitOptions, error) {
	options := &InitOptions{
		Schema:  config.DefaultSchema,
		Output:  config.DefaultOutput,
		Backend: codegen.BackendBinary,
		Format:  "json",
	}

	form := ic.createInitForm(options)

	if len(opts) > 0 {
		// For testing: run with provided options
		program := tea.NewProgram(form, opts...)
		if _, err := program.Run(); err != nil {
			return nil, err
		}
	} else {
		if err := form.Run(); err != nil {
			return nil, err
		}
	}

	return options, nil
}

func (ic *InitCommand) createInitForm(options *InitOptions) *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Package").
				Description("Package of the generated declarations, e.g. com.example.api").
				Value(&options.Namespace).
				Validate(validateNamespace),

			huh.NewInput().
				Title("Schema").
				Description("Path of the GraphQL schema").
				Value(&options.Schema),

			huh.NewInput().
				Title("Output").
				Description("Directory receiving the generated files").
				Value(&options.Output),

			huh.NewSelect[string]().
				Title("Backend").
				Description("What to generate").
				Options(
					huh.NewOption("Class files", codegen.BackendBinary),
					huh.NewOption("Kotlin source", codegen.BackendSource),
				).
				Value(&options.Backend),

			huh.NewSelect[string]().
				Title("Config format").
				Options(
					huh.NewOption("JSON", "json"),
					huh.NewOption("TOML", "toml"),
					huh.NewOption("YAML", "yaml"),
				).
				Value(&options.Format),
		),
	)
}

func validateNamespace(s string) error {
	if s == "" {
		return fmt.Errorf("package cannot be empty")
	}
	if !namespacePattern.MatchString(s) {
		return fmt.Errorf("%q is not a valid package name", s)
	}
	return nil
}
