package schema

import (
	"fmt"
	"slices"
)

// builtinScalars are always present, whether or not the document declares them.
var builtinScalars = []string{"Int", "Float", "String", "Boolean", "ID"}

// Options controls how a Graph is built from a parse tree.
type Options struct {
	// Converter turns default values and directive arguments into host
	// values. Defaults to LiteralConverter.
	Converter ValueConverter

	// RootOverrides names root operation types explicitly, taking precedence
	// over the schema definition.
	RootOverrides map[OperationType]string

	// SuppressConventionalRoots disables the Query/Mutation/Subscription
	// fallback when neither an override nor the schema names a root.
	SuppressConventionalRoots bool
}

// Graph is the closed, immutable set of type definitions of a schema. It is
// never mutated after Build returns, so it is safe for concurrent readers.
type Graph struct {
	types      map[string]*TypeDefinition
	order      []string
	directives map[string]*DirectiveDefinition
	roots      map[OperationType]string
	converter  ValueConverter
}

// Resolve looks up a type definition by name.
func (g *Graph) Resolve(name string) (*TypeDefinition, error) {
	def, ok := g.types[name]
	if !ok {
		return nil, unknownType(name, "")
	}
	return def, nil
}

// Lookup is Resolve without an error.
func (g *Graph) Lookup(name string) (*TypeDefinition, bool) {
	def, ok := g.types[name]
	return def, ok
}

// ResolveBase resolves the base type of an expression.
func (g *Graph) ResolveBase(expr TypeExpression) (*TypeDefinition, error) {
	return g.Resolve(expr.Name)
}

// Types returns all non built-in definitions in declaration order.
func (g *Graph) Types() []*TypeDefinition {
	out := make([]*TypeDefinition, 0, len(g.order))
	for _, name := range g.order {
		if def := g.types[name]; !def.BuiltIn {
			out = append(out, def)
		}
	}
	return out
}

// TypesOfKind returns declared definitions of a kind in declaration order.
func (g *Graph) TypesOfKind(kind Kind) []*TypeDefinition {
	var out []*TypeDefinition
	for _, def := range g.Types() {
		if def.Kind == kind {
			out = append(out, def)
		}
	}
	return out
}

// Directive returns a directive declaration by name.
func (g *Graph) Directive(name string) (*DirectiveDefinition, bool) {
	def, ok := g.directives[name]
	return def, ok
}

// Root returns the root type of an operation, if one resolved.
func (g *Graph) Root(op OperationType) (*TypeDefinition, bool) {
	name, ok := g.roots[op]
	if !ok {
		return nil, false
	}
	return g.types[name], true
}

// Implements reports whether typeName implements ifaceName, directly or
// through other interfaces.
func (g *Graph) Implements(typeName, ifaceName string) bool {
	def, ok := g.types[typeName]
	if !ok {
		return false
	}
	seen := map[string]bool{}
	stack := slices.Clone(def.Interfaces)
	for len(stack) > 0 {
		name := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if name == ifaceName {
			return true
		}
		if seen[name] {
			continue
		}
		seen[name] = true
		if iface, ok := g.types[name]; ok {
			stack = append(stack, iface.Interfaces...)
		}
	}
	return false
}

// insert adds a definition, rejecting duplicate names.
func (g *Graph) insert(def *TypeDefinition) error {
	if existing, ok := g.types[def.Name]; ok {
		if existing.BuiltIn && def.Kind == KindScalar {
			def.BuiltIn = true
			g.types[def.Name] = def
			return nil
		}
		return &SchemaError{Code: ErrorCodeDuplicateType, Type: def.Name}
	}
	g.types[def.Name] = def
	return nil
}

// link computes the derived relations once every definition exists:
// inheritance cycles, possible types, and reference closure.
func (g *Graph) link() error {
	for _, name := range g.order {
		if def := g.types[name]; def.Kind == KindInterface {
			if err := g.checkAcyclic(def); err != nil {
				return err
			}
		}
	}

	for _, name := range g.order {
		def := g.types[name]
		switch def.Kind {
		case KindInterface:
			for _, objName := range g.order {
				if obj := g.types[objName]; obj.Kind == KindObject && g.Implements(objName, def.Name) {
					def.PossibleTypes = append(def.PossibleTypes, objName)
				}
			}
		case KindUnion:
			for _, member := range def.Members {
				m, ok := g.types[member]
				if !ok {
					return unknownType(member, "union "+def.Name)
				}
				if m.Kind == KindObject {
					def.PossibleTypes = append(def.PossibleTypes, member)
				}
			}
		case KindScalar, KindEnum, KindInput, KindObject:
		}
	}

	return g.checkReferences()
}

func (g *Graph) checkAcyclic(root *TypeDefinition) error {
	const (
		visiting = 1
		done     = 2
	)
	state := map[string]int{}
	var visit func(name string) error
	visit = func(name string) error {
		switch state[name] {
		case visiting:
			return &SchemaError{Code: ErrorCodeCyclicInheritance, Type: name, Context: "interface " + root.Name}
		case done:
			return nil
		}
		state[name] = visiting
		def, ok := g.types[name]
		if !ok {
			return unknownType(name, "implements of "+root.Name)
		}
		for _, next := range def.Interfaces {
			if err := visit(next); err != nil {
				return err
			}
		}
		state[name] = done
		return nil
	}
	return visit(root.Name)
}

func (g *Graph) checkReferences() error {
	check := func(expr TypeExpression, context string) error {
		if _, ok := g.types[expr.Name]; !ok {
			return unknownType(expr.Name, context)
		}
		return nil
	}

	for _, name := range g.order {
		def := g.types[name]
		for _, iface := range def.Interfaces {
			target, ok := g.types[iface]
			if !ok {
				return unknownType(iface, "implements of "+def.Name)
			}
			if target.Kind != KindInterface {
				return &SchemaError{Code: ErrorCodeUnknownType, Type: iface, Context: def.Name + " implements a non-interface"}
			}
		}
		for _, f := range def.Fields {
			if err := check(f.Type, def.Name+"."+f.Name); err != nil {
				return err
			}
			for _, a := range f.Args {
				if err := check(a.Type, fmt.Sprintf("%s.%s(%s)", def.Name, f.Name, a.Name)); err != nil {
					return err
				}
			}
		}
		for _, f := range def.InputFields {
			if err := check(f.Type, def.Name+"."+f.Name); err != nil {
				return err
			}
		}
	}

	for _, d := range g.directives {
		for _, a := range d.Args {
			if err := check(a.Type, "@"+d.Name+"("+a.Name+")"); err != nil {
				return err
			}
		}
	}
	return nil
}

// convertDefaults runs every declared default and directive argument through
// the value converter. It runs last so every referenced type is present.
func (g *Graph) convertDefaults() error {
	convert := func(v *InputValue, path string) error {
		if v.Default.State == DefaultNull && !v.Type.Nullable() {
			return invalidDefault(v.Type, path, fmt.Errorf("null for non-null type"))
		}
		if v.Default.State != DefaultSet {
			return nil
		}
		host, err := g.coerce(v.Default.Literal, v.Type, path)
		if err != nil {
			return err
		}
		v.Default.Host = host
		return nil
	}

	for _, name := range g.order {
		def := g.types[name]
		for i := range def.InputFields {
			if err := convert(&def.InputFields[i], def.Name+"."+def.InputFields[i].Name); err != nil {
				return err
			}
		}
		for i := range def.Fields {
			f := &def.Fields[i]
			for j := range f.Args {
				if err := convert(&f.Args[j], fmt.Sprintf("%s.%s(%s)", def.Name, f.Name, f.Args[j].Name)); err != nil {
					return err
				}
			}
			if err := g.convertDirectives(f.Directives, def.Name+"."+f.Name); err != nil {
				return err
			}
		}
		if err := g.convertDirectives(def.Directives, def.Name); err != nil {
			return err
		}
	}
	return nil
}

// convertDirectives converts applied directive arguments. Arguments of
// directives without a declaration keep their untyped Go form.
func (g *Graph) convertDirectives(list []Directive, path string) error {
	for i := range list {
		d := &list[i]
		decl, declared := g.directives[d.Name]
		for j := range d.Args {
			arg := &d.Args[j]
			argPath := fmt.Sprintf("%s@%s(%s)", path, d.Name, arg.Name)
			if !declared {
				arg.Host = arg.Value.native()
				continue
			}
			var argDecl *InputValue
			for k := range decl.Args {
				if decl.Args[k].Name == arg.Name {
					argDecl = &decl.Args[k]
				}
			}
			if argDecl == nil {
				return invalidDefault(Named(d.Name, true), argPath, fmt.Errorf("unknown argument %s", arg.Name))
			}
			host, err := g.coerce(arg.Value, argDecl.Type, argPath)
			if err != nil {
				return err
			}
			arg.Host = host
		}
	}
	return nil
}

// resolveRoots applies override > schema definition > convention.
func (g *Graph) resolveRoots(declared map[OperationType]string, opts Options) error {
	for _, op := range []OperationType{OperationQuery, OperationMutation, OperationSubscription} {
		name, explicit := opts.RootOverrides[op]
		if !explicit {
			name, explicit = declared[op]
		}
		if !explicit {
			if opts.SuppressConventionalRoots {
				continue
			}
			name = op.conventionalRoot()
		}

		def, ok := g.types[name]
		if !ok {
			if explicit {
				return unknownType(name, op.String()+" root")
			}
			continue
		}
		if def.Kind != KindObject {
			return &SchemaError{Code: ErrorCodeWrongRootKind, Type: name, Context: fmt.Sprintf("%s root is a %s", op, def.Kind)}
		}
		g.roots[op] = name
	}
	return nil
}
