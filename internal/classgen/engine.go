// Package classgen synthesizes JVM class files, each carrying a metadata
// blob that describes its declarations to the host compiler, directly from a
// declaration tree.
package classgen

import (
	"sort"

	"github.com/rs/zerolog"

	"github.com/okra-platform/kgql/internal/classgen/classfile"
	"github.com/okra-platform/kgql/internal/classgen/metadata"
	"github.com/okra-platform/kgql/internal/decl"
)

// DefaultModule names the module index when the tree does not.
const DefaultModule = "main"

// Option configures an Engine
type Option func(*Engine)

// WithClassVersion overrides the class-file major version
func WithClassVersion(major uint16) Option {
	return func(e *Engine) {
		if major != 0 {
			e.major = major
		}
	}
}

// Engine turns declaration trees into class files. It keeps no state
// between runs; every Synthesize call uses a fresh class pool.
type Engine struct {
	logger zerolog.Logger
	major  uint16
}

// New creates an engine.
func New(logger zerolog.Logger, opts ...Option) *Engine {
	e := &Engine{logger: logger, major: classfile.DefaultMajorVersion}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// session is the state of one run. It is used by a single goroutine.
type session struct {
	logger  zerolog.Logger
	major   uint16
	tree    *decl.Tree
	pool    *classPool
	tier    int
	emitted []*entry // realization order
}

// Synthesize runs priming and tier-by-tier materialization and returns the
// artifacts in memory. Nothing is written on failure.
func (e *Engine) Synthesize(tree *decl.Tree) (*Output, error) {
	s := &session{logger: e.logger, major: e.major, tree: tree, pool: newClassPool()}

	if err := s.prime(); err != nil {
		return nil, err
	}
	for _, tier := range s.tiers() {
		if err := s.materialize(tier); err != nil {
			return nil, err
		}
	}
	return s.output()
}

// prime registers every class a run can mention: builtins, externals, then
// generated declarations outer before inner, then facades.
func (s *session) prime() error {
	s.logger.Debug().Int("classes", len(s.tree.Classes)).Int("facades", len(s.tree.Facades)).Msg("priming class pool")
	for _, x := range builtinClasses {
		if err := s.primeExternal(x); err != nil {
			return err
		}
	}
	externals := append([]decl.External(nil), s.tree.Externals...)
	// containers sort before their nested classes
	sort.SliceStable(externals, func(i, j int) bool {
		return nesting(externals[i]) < nesting(externals[j])
	})
	for _, x := range externals {
		if err := s.primeExternal(x); err != nil {
			return err
		}
	}
	for _, c := range s.tree.Classes {
		if err := s.primeClass(c, nil, c.Tier); err != nil {
			return err
		}
	}
	for _, f := range s.tree.Facades {
		if err := s.primeFacade(f); err != nil {
			return err
		}
	}
	return nil
}

func nesting(x decl.External) int {
	n := 0
	for _, r := range x.Internal {
		if r == '$' {
			n++
		}
	}
	return n
}

func (s *session) tiers() []int {
	seen := map[int]bool{}
	var out []int
	for _, c := range s.tree.Classes {
		if !seen[c.Tier] {
			seen[c.Tier] = true
			out = append(out, c.Tier)
		}
	}
	for _, f := range s.tree.Facades {
		if !seen[f.Tier] {
			seen[f.Tier] = true
			out = append(out, f.Tier)
		}
	}
	sort.Ints(out)
	return out
}

// materialize compiles every class of a tier, then finalizes their
// InnerClasses tables and metadata. Finalization waits for all bodies since
// compiling interface members can add DefaultImpls companions.
func (s *session) materialize(tier int) error {
	s.tier = tier
	s.logger.Debug().Int("tier", tier).Msg("materializing tier")
	start := len(s.emitted)

	for _, c := range s.tree.Classes {
		if c.Tier != tier {
			continue
		}
		en, _ := s.pool.lookup(c.Name)
		if err := s.realize(en); err != nil {
			return err
		}
	}
	for _, f := range s.tree.Facades {
		if f.Tier != tier {
			continue
		}
		en, _ := s.pool.lookup(f.Name)
		if err := s.emitFacade(en); err != nil {
			return err
		}
	}

	for _, en := range s.emitted[start:] {
		if err := s.finalize(en); err != nil {
			return err
		}
	}
	return nil
}

// realize emits a class and then its nested declarations.
func (s *session) realize(en *entry) error {
	if err := s.emitClass(en); err != nil {
		return err
	}
	for _, n := range en.nested {
		if n.synthetic {
			continue
		}
		if err := s.realize(n); err != nil {
			return err
		}
	}
	return nil
}

func (s *session) record(en *entry, cf *classfile.ClassFile, meta *metadata.Class) {
	en.cf = cf
	en.meta = meta
	s.emitted = append(s.emitted, en)
}

// finalize writes the InnerClasses table and the metadata blob of a class.
func (s *session) finalize(en *entry) error {
	var inner []*entry
	seen := map[*entry]bool{}
	var add func(n *entry)
	add = func(n *entry) {
		if n == nil || !n.isNested() || seen[n] {
			return
		}
		add(n.outer)
		seen[n] = true
		inner = append(inner, n)
	}
	add(en)
	for _, n := range en.nested {
		add(n)
	}
	for _, name := range en.cf.Pool.Classes() {
		add(s.pool.byInternal[name])
	}
	// outer classes of listed entries are interned while writing the table
	for i := 0; i < len(inner); i++ {
		add(inner[i].outer)
	}

	en.cf.InnerClasses = nil
	for _, n := range inner {
		en.cf.InnerClasses = append(en.cf.InnerClasses, classfile.InnerClass{
			Inner:  n.internal,
			Outer:  n.outer.internal,
			Name:   n.simple,
			Access: innerAccess(n),
		})
	}

	if en.meta != nil {
		en.meta.NestedClasses = nil
		for _, n := range en.nested {
			if !n.synthetic {
				en.meta.NestedClasses = append(en.meta.NestedClasses, n.simple)
			}
		}
		en.cf.Metadata = en.meta.Marshal()
	}
	return nil
}

// innerAccess is the InnerClasses flag set of a nested class. Nested
// declarations are always static.
func innerAccess(en *entry) uint16 {
	if en.synthetic {
		return classfile.AccPublic | classfile.AccStatic | classfile.AccFinal
	}
	if en.external {
		access := classfile.AccPublic | classfile.AccStatic
		if en.iface {
			access |= classfile.AccInterface | classfile.AccAbstract
		}
		return access
	}
	access := classAccess(en.decl) &^ classfile.AccSuper
	access &^= classfile.AccPublic
	access |= memberAccess(en.decl.Visibility) | classfile.AccStatic
	return access
}

func (s *session) output() (*Output, error) {
	module := s.tree.Module
	if module == "" {
		module = DefaultModule
	}
	out := &Output{Module: module}
	index := &metadata.Module{Version: metadata.Version, Name: module}

	for _, en := range s.emitted {
		data, err := en.cf.Bytes()
		if err != nil {
			return nil, configError(ErrorCodeInvalidDeclaration, en.name, "%v", err)
		}
		out.Artifacts = append(out.Artifacts, Artifact{Path: en.internal + ".class", Class: en.name, Data: data})
		if en.facade != nil {
			entry := metadata.FacadeEntry{Class: en.internal}
			for _, fn := range en.facade.Functions {
				if fn.Visibility > decl.Private {
					entry.Functions = append(entry.Functions, fn.Name)
				}
			}
			index.AddFacade(en.facade.Package(), entry)
		}
	}
	out.Artifacts = append(out.Artifacts, Artifact{Path: metadata.ModulePath(module), Data: index.Marshal()})
	s.logger.Debug().Int("artifacts", len(out.Artifacts)).Str("module", module).Msg("synthesis complete")
	return out, nil
}
