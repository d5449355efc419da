package classgen

import (
	"strings"

	"github.com/okra-platform/kgql/internal/classgen/classfile"
	"github.com/okra-platform/kgql/internal/classgen/metadata"
	"github.com/okra-platform/kgql/internal/decl"
)

// entry is one class known to a run: generated, synthetic or external.
type entry struct {
	name      string // dotted
	internal  string // slash form, nested classes joined by '$'
	simple    string // simple name inside outer
	outer     *entry
	iface     bool
	external  bool
	synthetic bool
	tier      int

	decl   *decl.ClassDeclaration
	facade *decl.Facade

	nested       []*entry // generated and synthetic nested classes, in order
	defaultImpls *entry
	cf           *classfile.ClassFile
	meta         *metadata.Class
}

func (en *entry) isNested() bool {
	return en.outer != nil
}

// classPool maps dotted names to entries. It is owned by one run.
type classPool struct {
	byName     map[string]*entry
	byInternal map[string]*entry
}

func newClassPool() *classPool {
	return &classPool{byName: make(map[string]*entry), byInternal: make(map[string]*entry)}
}

func (p *classPool) add(en *entry) error {
	if _, dup := p.byName[en.name]; dup {
		return configError(ErrorCodeDuplicateClass, en.name, "class registered twice")
	}
	if _, dup := p.byInternal[en.internal]; dup {
		return configError(ErrorCodeDuplicateClass, en.name, "binary name %s registered twice", en.internal)
	}
	p.byName[en.name] = en
	p.byInternal[en.internal] = en
	return nil
}

func (p *classPool) lookup(name string) (*entry, bool) {
	en, ok := p.byName[name]
	return en, ok
}

// builtinClasses are host classes every run can reference.
var builtinClasses = []decl.External{
	{Name: "java.lang.Object", Internal: "java/lang/Object"},
	{Name: "java.lang.String", Internal: "java/lang/String"},
	{Name: "java.lang.StringBuilder", Internal: "java/lang/StringBuilder"},
	{Name: "java.lang.Enum", Internal: "java/lang/Enum"},
	{Name: "java.lang.Class", Internal: "java/lang/Class"},
	{Name: "java.lang.Integer", Internal: "java/lang/Integer"},
	{Name: "java.lang.Long", Internal: "java/lang/Long"},
	{Name: "java.lang.Double", Internal: "java/lang/Double"},
	{Name: "java.lang.Boolean", Internal: "java/lang/Boolean"},
	{Name: "java.util.List", Internal: "java/util/List", Interface: true},
	{Name: "java.time.LocalDate", Internal: "java/time/LocalDate"},
	{Name: "java.time.OffsetDateTime", Internal: "java/time/OffsetDateTime"},
	{Name: "java.time.Instant", Internal: "java/time/Instant"},
	{Name: "java.util.UUID", Internal: "java/util/UUID"},
}

// hostClasses maps host-language classifiers to the runtime classes they
// compile to.
var hostClasses = map[string]string{
	decl.Any:      "java.lang.Object",
	decl.String:   "java.lang.String",
	decl.List:     "java.util.List",
	decl.Int:      "java.lang.Integer",
	decl.Long:     "java.lang.Long",
	decl.Double:   "java.lang.Double",
	decl.Boolean:  "java.lang.Boolean",
	"kotlin.Enum": "java.lang.Enum",
}

// primitives are classifiers with an unboxed form when non-null.
var primitives = map[string]string{
	decl.Int:     "I",
	decl.Long:    "J",
	decl.Double:  "D",
	decl.Boolean: "Z",
}

// primeExternal registers a class that is referenced but not generated.
// Binary names containing '$' need their container registered first.
func (s *session) primeExternal(x decl.External) error {
	internal := x.Internal
	if internal == "" {
		internal = strings.ReplaceAll(x.Name, ".", "/")
	}
	if existing, ok := s.pool.lookup(x.Name); ok && existing.external && existing.internal == internal {
		return nil
	}
	en := &entry{name: x.Name, internal: internal, simple: decl.SimpleName(x.Name), iface: x.Interface, external: true}
	if i := strings.LastIndexByte(internal, '$'); i >= 0 {
		outer, ok := s.pool.byInternal[internal[:i]]
		if !ok {
			return configError(ErrorCodeUnregisteredContainer, x.Name, "container %s is not registered", internal[:i])
		}
		en.outer = outer
		en.simple = internal[i+1:]
	}
	return s.pool.add(en)
}

// primeClass registers a generated declaration and its nested declarations,
// outer before inner. Nested declarations inherit the top-level tier.
func (s *session) primeClass(d *decl.ClassDeclaration, outer *entry, tier int) error {
	en := &entry{name: d.Name, decl: d, iface: d.Kind == decl.KindInterface, tier: tier, outer: outer}
	if outer == nil {
		en.internal = strings.ReplaceAll(d.Name, ".", "/")
		en.simple = decl.SimpleName(d.Name)
	} else {
		if d.Kind == decl.KindInterface {
			return configError(ErrorCodeUnsupportedNestedKind, d.Name, "interfaces cannot be nested in %s", outer.name)
		}
		prefix := outer.name + "."
		if !strings.HasPrefix(d.Name, prefix) || strings.Contains(d.Name[len(prefix):], ".") {
			return configError(ErrorCodeUnregisteredContainer, d.Name, "container %s is not registered", decl.PackageOf(d.Name))
		}
		en.simple = d.Name[len(prefix):]
		en.internal = outer.internal + "$" + en.simple
		outer.nested = append(outer.nested, en)
	}
	if err := s.pool.add(en); err != nil {
		return err
	}
	for _, n := range d.Nested {
		if err := s.primeClass(n, en, tier); err != nil {
			return err
		}
	}
	return nil
}

func (s *session) primeFacade(f *decl.Facade) error {
	en := &entry{
		name:     f.Name,
		internal: strings.ReplaceAll(f.Name, ".", "/"),
		simple:   decl.SimpleName(f.Name),
		tier:     f.Tier,
		facade:   f,
	}
	return s.pool.add(en)
}

// syntheticNested registers a compiler-generated class nested in outer,
// such as the DefaultImpls companion of an interface.
func (s *session) syntheticNested(outer *entry, simple string) (*entry, error) {
	en := &entry{
		name:      outer.name + "." + simple,
		internal:  outer.internal + "$" + simple,
		simple:    simple,
		outer:     outer,
		synthetic: true,
		tier:      outer.tier,
	}
	if err := s.pool.add(en); err != nil {
		return nil, err
	}
	outer.nested = append(outer.nested, en)
	return en, nil
}
