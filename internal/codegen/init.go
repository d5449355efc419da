package codegen

import (
	"github.com/okra-platform/kgql/internal/classgen"
	"github.com/okra-platform/kgql/internal/codegen/binary"
	"github.com/okra-platform/kgql/internal/codegen/source"
)

// Backend names understood by DefaultRegistry
const (
	BackendBinary = "binary"
	BackendSource = "source"
)

// DefaultRegistry is the global registry instance with pre-registered generators
var DefaultRegistry = NewRegistry()

func init() {
	newBinary := func(opts Options) Generator {
		return binary.NewGenerator(opts.Logger, classgen.WithClassVersion(opts.ClassVersion))
	}
	newSource := func(opts Options) Generator {
		return source.NewGenerator(opts.Logger, opts.Indent)
	}

	DefaultRegistry.Register(BackendBinary, newBinary)
	DefaultRegistry.Register(BackendSource, newSource)

	// Register aliases
	DefaultRegistry.Register("classes", newBinary)
	DefaultRegistry.Register("kotlin", newSource)
}
