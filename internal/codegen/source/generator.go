// Package source is the backend that renders declaration trees as Kotlin
// source files for the host compiler to build.
package source

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/okra-platform/kgql/internal/codegen/writer"
	"github.com/okra-platform/kgql/internal/decl"
)

// DefaultIndent is used when no indentation unit is configured.
const DefaultIndent = "    "

const header = "// Code generated by kgql. DO NOT EDIT."

// Generator renders one Kotlin file per top-level class and per facade
type Generator struct {
	logger zerolog.Logger
	indent string
}

// NewGenerator creates a new source generator
func NewGenerator(logger zerolog.Logger, indent string) *Generator {
	if indent == "" {
		indent = DefaultIndent
	}
	return &Generator{logger: logger, indent: indent}
}

// Name returns the backend name
func (g *Generator) Name() string {
	return "source"
}

// renderer holds what one Generate call knows about the tree.
type renderer struct {
	logger  zerolog.Logger
	w       *writer.Writer
	index   map[string]*decl.ClassDeclaration
	facades map[string]string // facade name -> package
}

// Generate renders the tree. Setter types wider than the read type have no
// source form; such properties are rendered with the read type and logged.
func (g *Generator) Generate(tree *decl.Tree) (map[string][]byte, error) {
	r := &renderer{
		logger:  g.logger,
		index:   make(map[string]*decl.ClassDeclaration),
		facades: make(map[string]string),
	}
	for _, c := range tree.Classes {
		decl.Walk(c, func(c, _ *decl.ClassDeclaration) {
			r.index[c.Name] = c
		})
	}
	for _, f := range tree.Facades {
		r.facades[f.Name] = f.Package()
	}

	files := make(map[string][]byte)
	add := func(path string, data []byte) error {
		if _, dup := files[path]; dup {
			return fmt.Errorf("source: two declarations render to %s", path)
		}
		files[path] = data
		return nil
	}

	for _, c := range tree.Classes {
		r.w = writer.NewWriter(g.indent)
		pkg := decl.PackageOf(c.Name)
		r.fileHeader(pkg, "")
		if err := r.class(c); err != nil {
			return nil, fmt.Errorf("source: class %s: %w", c.Name, err)
		}
		if err := add(sourcePath(pkg, decl.SimpleName(c.Name)), r.w.Bytes()); err != nil {
			return nil, err
		}
	}

	for _, f := range tree.Facades {
		r.w = writer.NewWriter(g.indent)
		simple := decl.SimpleName(f.Name)
		file, jvmName := strings.TrimSuffix(simple, "Kt"), ""
		if file == simple || file == "" {
			file, jvmName = simple, simple
		}
		r.fileHeader(f.Package(), jvmName)
		for i, fn := range f.Functions {
			if i > 0 {
				r.w.BlankLine()
			}
			if err := r.function(nil, fn); err != nil {
				return nil, fmt.Errorf("source: facade %s: function %s: %w", f.Name, fn.Name, err)
			}
		}
		if err := add(sourcePath(f.Package(), file), r.w.Bytes()); err != nil {
			return nil, err
		}
	}

	g.logger.Debug().Int("files", len(files)).Msg("rendered sources")
	return files, nil
}

func (r *renderer) fileHeader(pkg, jvmName string) {
	r.w.WriteLine(header)
	r.w.BlankLine()
	if jvmName != "" {
		r.w.WriteLinef("@file:JvmName(%s)", quote(jvmName))
		r.w.BlankLine()
	}
	if pkg != "" {
		r.w.WriteLinef("package %s", qualified(pkg))
		r.w.BlankLine()
	}
}

// primary returns the constructor rendered in the class header, or nil.
// Without declared constructors the header takes the constructor-declared
// properties.
func primary(c *decl.ClassDeclaration) (*decl.ConstructorDeclaration, error) {
	if c.Kind != decl.KindOrdinary {
		return nil, nil
	}
	if len(c.Constructors) == 0 {
		ctor := &decl.ConstructorDeclaration{Visibility: decl.Public, Primary: true}
		for _, p := range c.Properties {
			if p.ConstructorDeclared {
				ctor.Params = append(ctor.Params, decl.Param{Name: p.Name, Type: p.Type})
			}
		}
		return ctor, nil
	}
	var found *decl.ConstructorDeclaration
	for _, ctor := range c.Constructors {
		if ctor.Primary {
			found = ctor
		}
	}
	if found != nil && len(c.Constructors) > 1 {
		return nil, fmt.Errorf("secondary constructors next to a primary one have no source form")
	}
	return found, nil
}

func (r *renderer) classHeader(c *decl.ClassDeclaration, ctor *decl.ConstructorDeclaration) string {
	var sb strings.Builder
	sb.WriteString(modifier(c.Visibility))
	if c.Kind == decl.KindOrdinary && c.Modality != decl.Final {
		sb.WriteString(c.Modality.String() + " ")
	}
	sb.WriteString(c.Kind.String() + " " + ident(decl.SimpleName(c.Name)))
	sb.WriteString(typeParameters(c.TypeParameters))

	if ctor != nil && (len(ctor.Params) > 0 || ctor.Visibility != decl.Public) {
		if ctor.Visibility != decl.Public {
			sb.WriteString(" " + modifier(ctor.Visibility) + "constructor")
		}
		props := make(map[string]*decl.PropertyDeclaration)
		for _, p := range c.Properties {
			if p.ConstructorDeclared {
				props[p.Name] = p
			}
		}
		list := make([]string, len(ctor.Params))
		for i, param := range ctor.Params {
			list[i] = ident(param.Name) + ": " + typeName(param.Type)
			if p, ok := props[param.Name]; ok {
				kw := "val "
				if p.Mutable {
					kw = "var "
				}
				list[i] = r.memberModifiers(c, p.Visibility, p.Modality, r.overrides(c, p.Name, -1)) + kw + list[i]
			}
		}
		sb.WriteString("(" + strings.Join(list, ", ") + ")")
	}

	var supers []string
	if c.Superclass != nil && c.Kind == decl.KindOrdinary {
		supers = append(supers, typeName(*c.Superclass)+"()")
	}
	for _, i := range c.Interfaces {
		supers = append(supers, typeName(i))
	}
	if len(supers) > 0 {
		sb.WriteString(" : " + strings.Join(supers, ", "))
	}
	return sb.String()
}

func (r *renderer) class(c *decl.ClassDeclaration) error {
	ctor, err := primary(c)
	if err != nil {
		return err
	}
	r.w.WriteDocComment(c.Doc)
	head := r.classHeader(c, ctor)

	var sections []func() error
	if len(c.EnumEntries) > 0 {
		sections = append(sections, func() error {
			entries := make([]string, len(c.EnumEntries))
			for i, e := range c.EnumEntries {
				entries[i] = ident(e)
			}
			line := strings.Join(entries, ", ")
			if len(c.Functions) > 0 || len(c.Nested) > 0 {
				line += ";"
			}
			r.w.WriteLine(line)
			return nil
		})
	}
	for _, p := range c.Properties {
		if p.ConstructorDeclared && ctor != nil {
			continue
		}
		sections = append(sections, func() error { return r.property(c, p) })
	}
	if ctor != nil && len(ctor.Body) > 0 {
		sections = append(sections, func() error {
			return r.block("init", c.Name, ctor.Params, ctor.Body, true)
		})
	}
	if ctor == nil {
		for _, k := range c.Constructors {
			sections = append(sections, func() error {
				return r.block(modifier(k.Visibility)+"constructor("+params(k.Params)+")", c.Name, k.Params, k.Body, true)
			})
		}
	}
	for _, fn := range c.Functions {
		sections = append(sections, func() error {
			if err := r.function(c, fn); err != nil {
				return fmt.Errorf("function %s: %w", fn.Name, err)
			}
			return nil
		})
	}
	for _, n := range c.Nested {
		sections = append(sections, func() error {
			if err := r.class(n); err != nil {
				return fmt.Errorf("nested %s: %w", n.Name, err)
			}
			return nil
		})
	}

	if len(sections) == 0 {
		r.w.WriteLine(head)
		return nil
	}
	r.w.WriteLine(head + " {")
	r.w.Indent()
	for i, section := range sections {
		if i > 0 {
			r.w.BlankLine()
		}
		if err := section(); err != nil {
			return err
		}
	}
	r.w.Dedent()
	r.w.WriteLine("}")
	return nil
}

// block renders a body in braces after opener.
func (r *renderer) block(opener, owner string, ps []decl.Param, code []decl.Instr, unit bool) error {
	names := make([]string, len(ps))
	for i, p := range ps {
		names[i] = p.Name
	}
	stmts, err := r.statements(code, frame{params: names, owner: owner, unit: unit})
	if err != nil {
		return err
	}
	r.w.WriteBlock(opener+" {", "}", func() {
		for _, s := range stmts {
			r.w.WriteLine(s)
		}
	})
	return nil
}

func (r *renderer) function(c *decl.ClassDeclaration, fn *decl.FunctionDeclaration) error {
	r.w.WriteDocComment(fn.Doc)
	var sb strings.Builder
	owner := ""
	if c != nil {
		owner = c.Name
		sb.WriteString(r.memberModifiers(c, fn.Visibility, fn.Modality, r.overrides(c, fn.Name, len(fn.Params))))
	} else {
		sb.WriteString(modifier(fn.Visibility))
	}
	sb.WriteString("fun " + ident(fn.Name) + "(" + params(fn.Params) + ")")
	if !fn.Return.IsUnit() {
		sb.WriteString(": " + typeName(fn.Return))
	}
	if fn.Body == nil {
		if c == nil || (c.Kind != decl.KindInterface && fn.Modality != decl.Abstract) {
			return fmt.Errorf("missing body")
		}
		r.w.WriteLine(sb.String())
		return nil
	}
	return r.block(sb.String(), owner, fn.Params, fn.Body, fn.Return.IsUnit())
}

func (r *renderer) property(c *decl.ClassDeclaration, p *decl.PropertyDeclaration) error {
	r.w.WriteDocComment(p.Doc)
	kw := "val "
	if p.Mutable {
		kw = "var "
	}
	line := r.memberModifiers(c, p.Visibility, p.Modality, r.overrides(c, p.Name, -1)) + kw + ident(p.Name) + ": " + typeName(p.Type)
	if p.HasBackingField() && c.Kind != decl.KindInterface {
		switch init := initializer(p.Type); {
		case init != "":
			line += " = " + init
		case p.Mutable && !p.Getter.HasCustomBody() && !p.Setter.HasCustomBody():
			line = strings.Replace(line, kw, "lateinit "+kw, 1)
		default:
			return fmt.Errorf("property %s: no initial value for %s", p.Name, typeName(p.Type))
		}
	}
	r.w.WriteLine(line)
	if p.Mutable && !p.SetterType.Equal(p.Type) {
		r.logger.Warn().
			Str("class", c.Name).
			Str("property", p.Name).
			Str("setter", typeName(p.SetterType)).
			Msg("setter type has no source form, using the read type")
	}

	r.w.Indent()
	defer r.w.Dedent()
	if p.Getter.HasCustomBody() {
		stmts, err := r.statements(p.Getter.Body, frame{owner: c.Name, field: p.Name})
		if err != nil {
			return fmt.Errorf("property %s getter: %w", p.Name, err)
		}
		r.w.WriteBlock("get() {", "}", func() {
			for _, s := range stmts {
				r.w.WriteLine(s)
			}
		})
	}
	if p.Setter == nil {
		return nil
	}
	vis := ""
	if p.Setter.Visibility != p.Visibility {
		vis = modifier(p.Setter.Visibility)
	}
	if !p.Setter.HasCustomBody() {
		if vis != "" {
			r.w.WriteLine(vis + "set")
		}
		return nil
	}
	stmts, err := r.statements(p.Setter.Body, frame{params: []string{"value"}, owner: c.Name, field: p.Name, unit: true})
	if err != nil {
		return fmt.Errorf("property %s setter: %w", p.Name, err)
	}
	r.w.WriteBlock(vis+"set(value) {", "}", func() {
		for _, s := range stmts {
			r.w.WriteLine(s)
		}
	})
	return nil
}

func (r *renderer) memberModifiers(c *decl.ClassDeclaration, v decl.Visibility, m decl.Modality, override bool) string {
	var sb strings.Builder
	sb.WriteString(modifier(v))
	if c.Kind == decl.KindOrdinary {
		switch {
		case m == decl.Abstract:
			sb.WriteString("abstract ")
		case m == decl.Open && c.Modality != decl.Final && !override:
			sb.WriteString("open ")
		case m == decl.Final && c.Modality != decl.Final && override:
			sb.WriteString("final ")
		}
	}
	if override {
		sb.WriteString("override ")
	}
	return sb.String()
}

// anyMembers are the open members every class inherits, by arity.
var anyMembers = map[string]int{"toString": 0, "hashCode": 0, "equals": 1}

// overrides reports whether a supertype of c declares a member with the
// same name. arity is -1 for properties.
func (r *renderer) overrides(c *decl.ClassDeclaration, name string, arity int) bool {
	if n, ok := anyMembers[name]; ok && n == arity && c.Kind != decl.KindInterface {
		return true
	}
	seen := make(map[string]bool)
	var visit func(t decl.TypeRef) bool
	visit = func(t decl.TypeRef) bool {
		if t.IsParam() || seen[t.Class] {
			return false
		}
		seen[t.Class] = true
		super, ok := r.index[t.Class]
		if !ok {
			return false
		}
		if arity < 0 {
			for _, p := range super.Properties {
				if p.Name == name {
					return true
				}
			}
		} else {
			for _, fn := range super.Functions {
				if fn.Name == name && len(fn.Params) == arity {
					return true
				}
			}
		}
		return supertypesAny(super, visit)
	}
	return supertypesAny(c, visit)
}

func supertypesAny(c *decl.ClassDeclaration, fn func(decl.TypeRef) bool) bool {
	if c.Superclass != nil && fn(*c.Superclass) {
		return true
	}
	for _, i := range c.Interfaces {
		if fn(i) {
			return true
		}
	}
	return false
}
