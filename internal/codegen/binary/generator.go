// Package binary is the backend that writes class files directly.
package binary

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/okra-platform/kgql/internal/classgen"
	"github.com/okra-platform/kgql/internal/decl"
)

// Generator synthesizes class files and the module index for a tree
type Generator struct {
	logger zerolog.Logger
	engine *classgen.Engine
}

// NewGenerator creates a binary generator
func NewGenerator(logger zerolog.Logger, opts ...classgen.Option) *Generator {
	return &Generator{
		logger: logger,
		engine: classgen.New(logger, opts...),
	}
}

// Name returns the backend name
func (g *Generator) Name() string {
	return "binary"
}

// Generate synthesizes the tree and checks the result before returning it.
// A tree that synthesizes into inconsistent artifacts is an error.
func (g *Generator) Generate(tree *decl.Tree) (map[string][]byte, error) {
	out, err := g.engine.Synthesize(tree)
	if err != nil {
		return nil, err
	}

	report := classgen.Verify(out.Artifacts)
	if err := report.Err(); err != nil {
		return nil, fmt.Errorf("verify synthesized classes: %w", err)
	}
	g.logger.Debug().
		Int("classes", report.Classes).
		Int("methods", report.Methods).
		Str("module", report.Module).
		Msg("synthesized class files")

	files := make(map[string][]byte, len(out.Artifacts))
	for _, a := range out.Artifacts {
		files[a.Path] = a.Data
	}
	return files, nil
}
