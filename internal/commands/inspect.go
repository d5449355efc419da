package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-json"
	"gopkg.in/yaml.v3"

	"github.com/okra-platform/kgql/internal/classgen/classfile"
	"github.com/okra-platform/kgql/internal/classgen/metadata"
)

// Output formats of the inspect command
const (
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// InspectOptions are the arguments of the inspect command
type InspectOptions struct {
	// Target is a class file path, a module index path or a dotted class
	// name looked up below Dir
	Target string
	Dir    string
	Format string
}

// ClassView is the printable form of a class file
type ClassView struct {
	Class        string          `json:"class" yaml:"class"`
	Super        string          `json:"super,omitempty" yaml:"super,omitempty"`
	Interfaces   []string        `json:"interfaces,omitempty" yaml:"interfaces,omitempty"`
	Version      string          `json:"version" yaml:"version"`
	Access       []string        `json:"access" yaml:"access"`
	Signature    string          `json:"signature,omitempty" yaml:"signature,omitempty"`
	SourceFile   string          `json:"sourceFile,omitempty" yaml:"sourceFile,omitempty"`
	Fields       []MemberView    `json:"fields,omitempty" yaml:"fields,omitempty"`
	Methods      []MemberView    `json:"methods,omitempty" yaml:"methods,omitempty"`
	InnerClasses []string        `json:"innerClasses,omitempty" yaml:"innerClasses,omitempty"`
	Metadata     *metadata.Class `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

// MemberView is one field or method
type MemberView struct {
	Name       string   `json:"name" yaml:"name"`
	Descriptor string   `json:"descriptor" yaml:"descriptor"`
	Signature  string   `json:"signature,omitempty" yaml:"signature,omitempty"`
	Access     []string `json:"access,omitempty" yaml:"access,omitempty"`
}

var accessNames = []struct {
	flag uint16
	name string
}{
	{classfile.AccPublic, "public"},
	{classfile.AccPrivate, "private"},
	{classfile.AccProtected, "protected"},
	{classfile.AccStatic, "static"},
	{classfile.AccFinal, "final"},
	{classfile.AccInterface, "interface"},
	{classfile.AccAbstract, "abstract"},
	{classfile.AccSynthetic, "synthetic"},
	{classfile.AccEnum, "enum"},
}

func access(flags uint16) []string {
	var out []string
	for _, a := range accessNames {
		if flags&a.flag != 0 {
			out = append(out, a.name)
		}
	}
	return out
}

// InspectCommand prints a generated class or module index
type InspectCommand struct {
	loader ConfigLoader
	out    io.Writer
}

// NewInspectCommand creates an inspect command
func NewInspectCommand(loader ConfigLoader, out io.Writer) *InspectCommand {
	return &InspectCommand{loader: loader, out: out}
}

// Execute resolves the target and prints it
func (ic *InspectCommand) Execute(ctx context.Context, opts InspectOptions) error {
	if opts.Target == "" {
		return fmt.Errorf("a class file or class name is required")
	}
	path := ic.resolve(opts)
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}

	var view any
	if strings.HasSuffix(path, metadata.ModuleExtension) {
		view, err = metadata.UnmarshalModule(data)
	} else {
		view, err = NewClassView(data)
	}
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return ic.print(view, opts.Format)
}

// resolve maps a dotted class name onto a path below the output directory.
// Paths are used as given.
func (ic *InspectCommand) resolve(opts InspectOptions) string {
	t := opts.Target
	if strings.HasSuffix(t, ".class") || strings.HasSuffix(t, metadata.ModuleExtension) {
		return t
	}
	dir := opts.Dir
	if dir == "" {
		dir = "."
		if ic.loader != nil {
			if cfg, root, err := ic.loader.LoadConfig(); err == nil {
				if targets := cfg.ResolvedTargets(); len(targets) > 0 {
					dir = resolvePath(root, targets[0].Output)
				}
			}
		}
	}
	return filepath.Join(dir, filepath.FromSlash(strings.ReplaceAll(t, ".", "/"))+".class")
}

func (ic *InspectCommand) print(view any, format string) error {
	switch format {
	case "", FormatJSON:
		data, err := json.MarshalIndent(view, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(ic.out, string(data))
		return err
	case FormatYAML:
		enc := yaml.NewEncoder(ic.out)
		enc.SetIndent(2)
		if err := enc.Encode(view); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unsupported format %q", format)
	}
}

// NewClassView parses a class file and decodes its metadata
func NewClassView(data []byte) (*ClassView, error) {
	cf, err := classfile.Parse(data)
	if err != nil {
		return nil, err
	}
	view := &ClassView{
		Class:      cf.This,
		Super:      cf.Super,
		Interfaces: cf.Interfaces,
		Version:    fmt.Sprintf("%d.%d", cf.Major, cf.Minor),
		Access:     access(cf.Access),
		Signature:  cf.Signature,
		SourceFile: cf.SourceFile,
	}
	for _, f := range cf.Fields {
		view.Fields = append(view.Fields, memberView(f))
	}
	for _, m := range cf.Methods {
		view.Methods = append(view.Methods, memberView(m))
	}
	for _, ic := range cf.InnerClasses {
		view.InnerClasses = append(view.InnerClasses, ic.Inner)
	}
	if len(cf.Metadata) > 0 {
		meta, err := metadata.Unmarshal(cf.Metadata)
		if err != nil {
			return nil, fmt.Errorf("invalid metadata: %w", err)
		}
		view.Metadata = meta
	}
	return view, nil
}

func memberView(m *classfile.Member) MemberView {
	return MemberView{
		Name:       m.Name,
		Descriptor: m.Descriptor,
		Signature:  m.Signature,
		Access:     access(m.Access),
	}
}
