package codegen

import (
	"github.com/rs/zerolog"

	"github.com/okra-platform/kgql/internal/decl"
)

// Generator is the interface that every synthesis backend must implement
type Generator interface {
	// Generate renders the tree and returns the produced files keyed by
	// slash-separated path relative to the output directory
	Generate(tree *decl.Tree) (map[string][]byte, error)

	// Name returns the backend name (e.g., "binary", "source")
	Name() string
}

// Options contains common options for code generation
type Options struct {
	// Logger receives backend diagnostics
	Logger zerolog.Logger

	// ClassVersion overrides the class-file major version; zero keeps the default
	ClassVersion uint16

	// Indent is the indentation unit of rendered source; empty means four spaces
	Indent string
}
