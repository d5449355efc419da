package commands

import (
	"context"
	"fmt"
	"io"

	"github.com/okra-platform/kgql/internal/classgen"
	"github.com/okra-platform/kgql/internal/codegen"
)

// VerifyCommand re-reads generated class files and reports problems
type VerifyCommand struct {
	loader ConfigLoader
	out    io.Writer
}

// NewVerifyCommand creates a verify command
func NewVerifyCommand(loader ConfigLoader, out io.Writer) *VerifyCommand {
	return &VerifyCommand{loader: loader, out: out}
}

// Execute verifies dir, or every configured binary target when dir is empty
func (vc *VerifyCommand) Execute(ctx context.Context, dir string) error {
	dirs := []string{dir}
	if dir == "" {
		cfg, root, err := vc.loader.LoadConfig()
		if err != nil {
			return fmt.Errorf("failed to load project config: %w", err)
		}
		dirs = nil
		for _, t := range cfg.ResolvedTargets() {
			if t.Backend == codegen.BackendSource || t.Backend == "kotlin" {
				continue
			}
			dirs = append(dirs, resolvePath(root, t.Output))
		}
		if len(dirs) == 0 {
			return fmt.Errorf("no binary targets to verify")
		}
	}

	failed := 0
	for _, d := range dirs {
		if err := ctx.Err(); err != nil {
			return err
		}
		report, err := classgen.VerifyDir(d)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", d, err)
		}
		if report.Classes == 0 {
			fmt.Fprintf(vc.out, "⚠️  %s: no class files\n", d)
			continue
		}
		if len(report.Problems) == 0 {
			fmt.Fprintf(vc.out, "✅ %s: %d classes, %d methods, %d facades\n", d, report.Classes, report.Methods, report.Facades)
			continue
		}
		failed += len(report.Problems)
		fmt.Fprintf(vc.out, "❌ %s: %d problems\n", d, len(report.Problems))
		for _, p := range report.Problems {
			fmt.Fprintf(vc.out, "   %s\n", p)
		}
	}
	if failed > 0 {
		return fmt.Errorf("verification failed with %d problems", failed)
	}
	return nil
}
