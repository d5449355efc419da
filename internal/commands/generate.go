package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/okra-platform/kgql/internal/classgen"
	"github.com/okra-platform/kgql/internal/codegen"
	"github.com/okra-platform/kgql/internal/config"
	"github.com/okra-platform/kgql/internal/dsl"
	"github.com/okra-platform/kgql/internal/manifest"
	"github.com/okra-platform/kgql/internal/schema"
	"github.com/okra-platform/kgql/internal/typemap"
	"github.com/okra-platform/kgql/internal/watch"
)

// GenerateOptions are the flags of the generate command
type GenerateOptions struct {
	Watch bool
	Clean bool
	// Targets restricts the run to the named targets; empty means all
	Targets []string
}

// Result is the outcome of one target
type Result struct {
	Target  string
	Backend string
	Output  string
	Files   int
	Removed int
	Stale   int
	Skipped bool
}

// GenerateDependencies for the generate command
type GenerateDependencies struct {
	ConfigLoader ConfigLoader
	Registry     *codegen.Registry
	Logger       zerolog.Logger
	Output       io.Writer
}

// GenerateCommand encapsulates the generate logic with injected dependencies
type GenerateCommand struct {
	deps GenerateDependencies
}

// NewGenerateCommand creates a generate command using the default backends
func NewGenerateCommand(loader ConfigLoader, logger zerolog.Logger, out io.Writer) *GenerateCommand {
	return &GenerateCommand{
		deps: GenerateDependencies{
			ConfigLoader: loader,
			Registry:     codegen.DefaultRegistry,
			Logger:       logger,
			Output:       out,
		},
	}
}

// WithDependencies allows injecting custom dependencies for testing
func (gc *GenerateCommand) WithDependencies(deps GenerateDependencies) *GenerateCommand {
	gc.deps = deps
	return gc
}

// Execute runs the generate command. In watch mode a failed run is logged
// and the command keeps waiting for the next change.
func (gc *GenerateCommand) Execute(ctx context.Context, opts GenerateOptions) error {
	cfg, root, err := gc.deps.ConfigLoader.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load project config: %w", err)
	}

	if _, err := gc.Run(ctx, cfg, root, opts); err != nil {
		if !opts.Watch {
			return err
		}
		gc.deps.Logger.Error().Err(err).Msg("generation failed")
	}
	if !opts.Watch {
		return nil
	}
	return gc.watch(ctx, cfg, root, opts)
}

func (gc *GenerateCommand) watch(ctx context.Context, cfg *config.Config, root string, opts GenerateOptions) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	var debounce time.Duration
	if cfg.Watch.Debounce != "" {
		d, err := time.ParseDuration(cfg.Watch.Debounce)
		if err != nil {
			return fmt.Errorf("invalid watch debounce: %w", err)
		}
		debounce = d
	}

	files := []string{resolvePath(root, cfg.Schema)}
	if path, ok := config.FindConfigFile(root); ok {
		files = append(files, path)
	}
	w, err := watch.New(files,
		watch.WithDebounce(debounce),
		watch.WithExclude(cfg.Watch.Exclude),
		watch.WithLogger(gc.deps.Logger),
	)
	if err != nil {
		return err
	}
	defer w.Close()

	fmt.Fprintf(gc.deps.Output, "👀 Watching %s\n", strings.Join(files, ", "))
	err = w.Run(ctx, func(changed []string) {
		gc.deps.Logger.Info().Strs("files", changed).Msg("change detected")
		next, nextRoot, err := gc.deps.ConfigLoader.LoadConfig()
		if err != nil {
			gc.deps.Logger.Error().Err(err).Msg("failed to reload project config")
			return
		}
		cfg, root = next, nextRoot
		if _, err := gc.Run(ctx, cfg, root, opts); err != nil {
			gc.deps.Logger.Error().Err(err).Msg("generation failed")
		}
	})
	if errors.Is(err, context.Canceled) {
		fmt.Fprintln(gc.deps.Output, "👋 Stopped watching")
		return nil
	}
	return err
}

// Run parses the schema once and generates the selected targets
// concurrently. Each target has its own mapper, builder and backend.
func (gc *GenerateCommand) Run(ctx context.Context, cfg *config.Config, root string, opts GenerateOptions) ([]Result, error) {
	targets, err := selectTargets(cfg.ResolvedTargets(), opts.Targets, root)
	if err != nil {
		return nil, err
	}

	schemaPath := resolvePath(root, cfg.Schema)
	source, err := os.ReadFile(schemaPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read schema: %w", err)
	}
	graph, err := schema.ParseSchema(string(source), cfg.SchemaOptions())
	if err != nil {
		return nil, fmt.Errorf("%s: %w", schemaPath, err)
	}

	results := make([]Result, len(targets))
	g, gctx := errgroup.WithContext(ctx)
	for i, t := range targets {
		g.Go(func() error {
			r, err := gc.target(gctx, cfg, root, graph, source, t, opts.Clean)
			if err != nil {
				return fmt.Errorf("target %s: %w", t.Name, err)
			}
			results[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for _, r := range results {
		switch {
		case r.Skipped:
			fmt.Fprintf(gc.deps.Output, "✅ %s: up to date (%d files in %s)\n", r.Target, r.Files, r.Output)
		default:
			fmt.Fprintf(gc.deps.Output, "✅ %s: wrote %d files to %s (%s)\n", r.Target, r.Files, r.Output, r.Backend)
		}
		if r.Stale > 0 {
			fmt.Fprintf(gc.deps.Output, "   %d stale files kept, run with --clean to remove them\n", r.Stale)
		}
	}
	return results, nil
}

func (gc *GenerateCommand) target(ctx context.Context, cfg *config.Config, root string, graph *schema.Graph, source []byte, t config.Target, clean bool) (Result, error) {
	logger := gc.deps.Logger.With().Str("target", t.Name).Logger()
	result := Result{Target: t.Name, Output: resolvePath(root, t.Output)}

	mapperCfg, err := cfg.MapperConfig(t)
	if err != nil {
		return result, err
	}
	tree, err := dsl.New(graph, typemap.New(graph, mapperCfg), logger, cfg.DSLOptions(t)).Build()
	if err != nil {
		return result, err
	}
	gen, err := gc.deps.Registry.Get(t.Backend, codegen.Options{Logger: logger, ClassVersion: cfg.ClassVersion})
	if err != nil {
		return result, err
	}
	files, err := gen.Generate(tree)
	if err != nil {
		return result, err
	}
	result.Backend = gen.Name()
	result.Files = len(files)

	next := manifest.New(t.Name, gen.Name(), source, files)
	prev, err := manifest.Load(result.Output)
	if err != nil && !errors.Is(err, manifest.ErrNoManifest) {
		logger.Warn().Err(err).Msg("ignoring unreadable manifest")
	}
	if prev != nil && prev.Unchanged(next) && present(result.Output, files) {
		result.Skipped = true
		return result, nil
	}
	if err := ctx.Err(); err != nil {
		return result, err
	}

	if prev != nil {
		if clean {
			removed, modified, err := prev.Clean(result.Output)
			if err != nil {
				return result, fmt.Errorf("failed to clean previous output: %w", err)
			}
			result.Removed = len(removed)
			for _, path := range modified {
				logger.Warn().Str("file", path).Msg("keeping edited file")
			}
		} else {
			for _, e := range prev.Files {
				if _, ok := files[e.Path]; !ok {
					result.Stale++
				}
			}
		}
	}

	paths := make([]string, 0, len(files))
	for path := range files {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	out := &classgen.Output{Module: tree.Module}
	for _, path := range paths {
		out.Artifacts = append(out.Artifacts, classgen.Artifact{Path: path, Data: files[path]})
	}
	if err := out.WriteArtifacts(result.Output); err != nil {
		return result, err
	}
	if err := next.Save(result.Output); err != nil {
		return result, fmt.Errorf("failed to save manifest: %w", err)
	}
	logger.Debug().Int("files", result.Files).Int("removed", result.Removed).Msg("target written")
	return result, nil
}

// selectTargets filters targets by name. Two targets may not share an
// output directory since their manifests would overwrite each other.
func selectTargets(all []config.Target, names []string, root string) ([]config.Target, error) {
	selected := all
	if len(names) > 0 {
		byName := make(map[string]config.Target, len(all))
		for _, t := range all {
			byName[t.Name] = t
		}
		selected = nil
		for _, name := range names {
			t, ok := byName[name]
			if !ok {
				return nil, fmt.Errorf("unknown target %q", name)
			}
			selected = append(selected, t)
		}
	}

	outputs := make(map[string]string)
	for _, t := range selected {
		dir := resolvePath(root, t.Output)
		if other, ok := outputs[dir]; ok {
			return nil, fmt.Errorf("targets %s and %s share output directory %s", other, t.Name, dir)
		}
		outputs[dir] = t.Name
	}
	return selected, nil
}

// present reports whether every file exists under dir
func present(dir string, files map[string][]byte) bool {
	for path := range files {
		if _, err := os.Stat(filepath.Join(dir, filepath.FromSlash(path))); err != nil {
			return false
		}
	}
	return true
}
