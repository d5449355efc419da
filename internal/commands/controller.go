// Package commands contains the CLI commands for the application
package commands

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/okra-platform/kgql/internal/config"
)

// Flags are the global command-line flags
type Flags struct {
	LogLevel string
	Config   string
}

// Controller dispatches CLI actions to commands
type Controller struct {
	Flags  *Flags
	Logger zerolog.Logger
	Out    io.Writer
}

func (c *Controller) out() io.Writer {
	if c.Out == nil {
		return os.Stdout
	}
	return c.Out
}

func (c *Controller) configLoader() ConfigLoader {
	loader := &defaultConfigLoader{}
	if c.Flags != nil {
		loader.path = c.Flags.Config
	}
	return loader
}

// Init writes a new configuration in the current directory
func (c *Controller) Init(ctx context.Context) error {
	dir, err := os.Getwd()
	if err != nil {
		return err
	}
	return NewInitCommand(dir, c.out()).Run(ctx)
}

// Generate runs the configured targets
func (c *Controller) Generate(ctx context.Context, opts GenerateOptions) error {
	return NewGenerateCommand(c.configLoader(), c.Logger, c.out()).Execute(ctx, opts)
}

// Inspect prints one artifact
func (c *Controller) Inspect(ctx context.Context, opts InspectOptions) error {
	return NewInspectCommand(c.configLoader(), c.out()).Execute(ctx, opts)
}

// Verify checks a directory of class files
func (c *Controller) Verify(ctx context.Context, dir string) error {
	return NewVerifyCommand(c.configLoader(), c.out()).Execute(ctx, dir)
}

// ConfigLoader finds the project configuration and its root directory
type ConfigLoader interface {
	LoadConfig() (*config.Config, string, error)
}

// defaultConfigLoader loads an explicit file, or searches from the working
// directory upwards.
type defaultConfigLoader struct {
	path string
}

func (l *defaultConfigLoader) LoadConfig() (*config.Config, string, error) {
	if l.path == "" {
		return config.LoadConfig()
	}
	abs, err := filepath.Abs(l.path)
	if err != nil {
		return nil, "", err
	}
	cfg, err := config.LoadConfigFromPath(abs)
	if err != nil {
		return nil, "", err
	}
	return cfg, filepath.Dir(abs), nil
}

// resolvePath interprets p relative to the project root
func resolvePath(root, p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(root, p)
}
