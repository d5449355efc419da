// Package config loads the kgql project file. JSON, TOML and YAML spellings
// carry the same fields.
package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/goccy/go-json"
	"gopkg.in/yaml.v3"

	"github.com/okra-platform/kgql/internal/decl"
	"github.com/okra-platform/kgql/internal/dsl"
	"github.com/okra-platform/kgql/internal/schema"
	"github.com/okra-platform/kgql/internal/typemap"
)

// FileNames are the config files searched for, in order of preference.
var FileNames = []string{"kgql.json", "kgql.toml", "kgql.yaml", "kgql.yml"}

// Defaults applied by LoadConfigFromPath
const (
	DefaultSchema    = "./schema.graphql"
	DefaultOutput    = "./build/generated"
	DefaultBackend   = "binary"
	DefaultModule    = "main"
	DefaultNamespace = "generated"
)

// Config represents the kgql configuration file
type Config struct {
	Schema              string            `json:"schema" toml:"schema" yaml:"schema"`
	Output              string            `json:"output" toml:"output" yaml:"output"`
	Backend             string            `json:"backend" toml:"backend" yaml:"backend"`
	Module              string            `json:"module" toml:"module" yaml:"module"`
	Namespace           string            `json:"namespace" toml:"namespace" yaml:"namespace"`
	Facade              string            `json:"facade,omitempty" toml:"facade,omitempty" yaml:"facade,omitempty"`
	ClassVersion        uint16            `json:"classVersion,omitempty" toml:"classVersion,omitempty" yaml:"classVersion,omitempty"`
	InputObjectVariance string            `json:"inputObjectVariance,omitempty" toml:"inputObjectVariance,omitempty" yaml:"inputObjectVariance,omitempty"`
	IdentityType        string            `json:"identityType,omitempty" toml:"identityType,omitempty" yaml:"identityType,omitempty"`
	IdentityScalar      string            `json:"identityScalar,omitempty" toml:"identityScalar,omitempty" yaml:"identityScalar,omitempty"`
	Scalars             map[string]string `json:"scalars,omitempty" toml:"scalars,omitempty" yaml:"scalars,omitempty"`
	Roots               RootsConfig       `json:"roots" toml:"roots" yaml:"roots"`
	Watch               WatchConfig       `json:"watch" toml:"watch" yaml:"watch"`
	Targets             []Target          `json:"targets,omitempty" toml:"targets,omitempty" yaml:"targets,omitempty"`
}

// RootsConfig names root operation types explicitly
type RootsConfig struct {
	Query        string `json:"query,omitempty" toml:"query,omitempty" yaml:"query,omitempty"`
	Mutation     string `json:"mutation,omitempty" toml:"mutation,omitempty" yaml:"mutation,omitempty"`
	Subscription string `json:"subscription,omitempty" toml:"subscription,omitempty" yaml:"subscription,omitempty"`
	// NoConventional disables the Query/Mutation/Subscription fallback
	NoConventional bool `json:"noConventional,omitempty" toml:"noConventional,omitempty" yaml:"noConventional,omitempty"`
}

// WatchConfig contains generate --watch configuration
type WatchConfig struct {
	Debounce string   `json:"debounce,omitempty" toml:"debounce,omitempty" yaml:"debounce,omitempty"`
	Exclude  []string `json:"exclude,omitempty" toml:"exclude,omitempty" yaml:"exclude,omitempty"`
}

// Target is one generation run. Empty fields inherit the top-level values.
type Target struct {
	Name      string `json:"name" toml:"name" yaml:"name"`
	Namespace string `json:"namespace,omitempty" toml:"namespace,omitempty" yaml:"namespace,omitempty"`
	Output    string `json:"output,omitempty" toml:"output,omitempty" yaml:"output,omitempty"`
	Backend   string `json:"backend,omitempty" toml:"backend,omitempty" yaml:"backend,omitempty"`
	Module    string `json:"module,omitempty" toml:"module,omitempty" yaml:"module,omitempty"`
	Facade    string `json:"facade,omitempty" toml:"facade,omitempty" yaml:"facade,omitempty"`
}

// LoadConfig loads the configuration from the current directory or a parent directory
func LoadConfig() (*Config, string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return nil, "", fmt.Errorf("failed to get current directory: %w", err)
	}

	return loadConfigFromDir(dir)
}

// LoadConfigFromPath loads the configuration from a specific path. The
// format follows the file extension.
func LoadConfigFromPath(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".json":
		err = json.Unmarshal(data, &config)
	case ".toml":
		_, err = toml.Decode(string(data), &config)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &config)
	default:
		return nil, fmt.Errorf("unsupported config format %q", ext)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	config.applyDefaults()
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

func (c *Config) applyDefaults() {
	if c.Schema == "" {
		c.Schema = DefaultSchema
	}
	if c.Output == "" {
		c.Output = DefaultOutput
	}
	if c.Backend == "" {
		c.Backend = DefaultBackend
	}
	if c.Module == "" {
		c.Module = DefaultModule
	}
	if c.Namespace == "" {
		c.Namespace = DefaultNamespace
	}
	if len(c.Watch.Exclude) == 0 {
		c.Watch.Exclude = []string{".git/", "build/"}
	}
}

// Validate checks the fields that cannot be checked by decoding alone
func (c *Config) Validate() error {
	if _, err := ParseVariance(c.InputObjectVariance); err != nil {
		return err
	}
	seen := make(map[string]bool)
	for i, t := range c.Targets {
		if t.Name == "" {
			return fmt.Errorf("target %d: name is required", i)
		}
		if seen[t.Name] {
			return fmt.Errorf("target %s: declared twice", t.Name)
		}
		seen[t.Name] = true
	}
	return nil
}

// ParseVariance reads the inputObjectVariance setting
func ParseVariance(s string) (decl.Variance, error) {
	switch strings.ToLower(s) {
	case "", "invariant":
		return decl.Invariant, nil
	case "out", "covariant":
		return decl.Covariant, nil
	case "in", "contravariant":
		return decl.Contravariant, nil
	}
	return decl.Invariant, fmt.Errorf("invalid inputObjectVariance %q", s)
}

// ResolvedTargets returns the runs the config describes. Without explicit
// targets the top-level settings form a single target named after the module.
func (c *Config) ResolvedTargets() []Target {
	base := Target{
		Name:      c.Module,
		Namespace: c.Namespace,
		Output:    c.Output,
		Backend:   c.Backend,
		Module:    c.Module,
		Facade:    c.Facade,
	}
	if len(c.Targets) == 0 {
		return []Target{base}
	}

	out := make([]Target, len(c.Targets))
	for i, t := range c.Targets {
		if t.Namespace == "" {
			t.Namespace = base.Namespace
		}
		if t.Output == "" {
			t.Output = filepath.Join(base.Output, t.Name)
		}
		if t.Backend == "" {
			t.Backend = base.Backend
		}
		if t.Module == "" {
			t.Module = t.Name
		}
		if t.Facade == "" {
			t.Facade = base.Facade
		}
		out[i] = t
	}
	return out
}

// SchemaOptions returns the parse options for the schema file
func (c *Config) SchemaOptions() schema.Options {
	opts := schema.Options{SuppressConventionalRoots: c.Roots.NoConventional}
	for op, name := range map[schema.OperationType]string{
		schema.OperationQuery:        c.Roots.Query,
		schema.OperationMutation:     c.Roots.Mutation,
		schema.OperationSubscription: c.Roots.Subscription,
	} {
		if name == "" {
			continue
		}
		if opts.RootOverrides == nil {
			opts.RootOverrides = make(map[schema.OperationType]string)
		}
		opts.RootOverrides[op] = name
	}
	return opts
}

// MapperConfig returns the type mapper settings for a target. Configured
// scalars replace the built-in host type in every position.
func (c *Config) MapperConfig(t Target) (typemap.Config, error) {
	variance, err := ParseVariance(c.InputObjectVariance)
	if err != nil {
		return typemap.Config{}, err
	}
	cfg := typemap.Config{
		Namespace:           t.Namespace,
		InputObjectVariance: variance,
		IdentityType:        c.IdentityType,
		IdentityScalar:      c.IdentityScalar,
	}
	if len(c.Scalars) > 0 {
		scalars := c.Scalars
		cfg.Overrides = typemap.BaseTypeMapperFunc(func(def *schema.TypeDefinition, _ typemap.Position) (decl.TypeRef, bool) {
			if def.Kind != schema.KindScalar {
				return decl.TypeRef{}, false
			}
			host, ok := scalars[def.Name]
			if !ok {
				return decl.TypeRef{}, false
			}
			return decl.ClassType(host), true
		})
	}
	return cfg, nil
}

// DSLOptions returns the declaration builder settings for a target
func (c *Config) DSLOptions(t Target) dsl.Options {
	return dsl.Options{Module: t.Module, Facade: t.Facade}
}

// Marshal encodes the configuration in the format named by ext (".json",
// ".toml", ".yaml" or ".yml")
func (c *Config) Marshal(ext string) ([]byte, error) {
	var (
		data []byte
		err  error
	)
	switch strings.ToLower(ext) {
	case ".json":
		data, err = json.MarshalIndent(c, "", "  ")
	case ".toml":
		var buf bytes.Buffer
		err = toml.NewEncoder(&buf).Encode(c)
		data = buf.Bytes()
	case ".yaml", ".yml":
		data, err = yaml.Marshal(c)
	default:
		return nil, fmt.Errorf("unsupported config format %q", ext)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to encode config: %w", err)
	}
	return data, nil
}

// Save writes the configuration in the format chosen by the file extension
func (c *Config) Save(path string) error {
	data, err := c.Marshal(filepath.Ext(path))
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// FindConfigFile returns the config file in dir, if any
func FindConfigFile(dir string) (string, bool) {
	for _, name := range FileNames {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			return path, true
		}
	}
	return "", false
}

// loadConfigFromDir searches for a config file in the given directory and its parents
func loadConfigFromDir(startDir string) (*Config, string, error) {
	dir := startDir
	for {
		if configPath, ok := FindConfigFile(dir); ok {
			config, err := LoadConfigFromPath(configPath)
			if err != nil {
				return nil, "", err
			}
			return config, dir, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached root directory
			break
		}
		dir = parent
	}

	return nil, "", fmt.Errorf("no kgql config found in %s or any parent directory", startDir)
}
