// Package dsl derives the declaration tree of the generated builder API from
// a schema graph. Every object becomes a selection builder that appends to a
// shared request string, with a nested value descriptor for results; inputs
// become mutable classes rendering GraphQL literals; root operations become
// top-level functions on a facade.
package dsl

import (
	"fmt"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"github.com/okra-platform/kgql/internal/decl"
	"github.com/okra-platform/kgql/internal/schema"
	"github.com/okra-platform/kgql/internal/typemap"
)

const (
	// DefaultFacade is the simple name of the class hosting root operations.
	DefaultFacade = "OperationsKt"
	// SchemaInfoName is the simple name of the schema summary singleton.
	SchemaInfoName = "SchemaInfo"

	selectionProperty = "selection"
	typenameFunction  = "typename"
)

// reserved member names of builder classes; fields with these names get a
// "Field" suffix.
var reserved = map[string]bool{
	"build":          true,
	"close":          true,
	typenameFunction: true,
	"getSelection":   true,
	"toString":       true,
}

// Options configures the generated tree.
type Options struct {
	// Module names the module index.
	Module string
	// Facade overrides DefaultFacade.
	Facade string
}

// Builder turns a schema graph into a declaration tree. A builder is used
// for one Build call.
type Builder struct {
	graph     *schema.Graph
	mapper    *typemap.Mapper
	opts      Options
	logger    zerolog.Logger
	generated map[string]bool
}

// New creates a builder over a graph and its type mapper.
func New(g *schema.Graph, m *typemap.Mapper, logger zerolog.Logger, opts Options) *Builder {
	if opts.Facade == "" {
		opts.Facade = DefaultFacade
	}
	return &Builder{graph: g, mapper: m, opts: opts, logger: logger, generated: map[string]bool{}}
}

// Build produces the tree. Schema declarations land in tier 0; the facade and
// the schema summary reference them and form tier 1.
func (b *Builder) Build() (*decl.Tree, error) {
	tree := &decl.Tree{Module: b.opts.Module}

	steps := []struct {
		kind  schema.Kind
		build func(*schema.TypeDefinition) (*decl.ClassDeclaration, error)
	}{
		{schema.KindInterface, b.abstractType},
		{schema.KindUnion, b.abstractType},
		{schema.KindEnum, b.enum},
		{schema.KindInput, b.input},
		{schema.KindObject, b.object},
	}
	for _, step := range steps {
		for _, def := range b.graph.TypesOfKind(step.kind) {
			c, err := step.build(def)
			if err != nil {
				return nil, fmt.Errorf("dsl: %s %s: %w", def.Kind, def.Name, err)
			}
			tree.Classes = append(tree.Classes, c)
		}
	}

	if facade := b.operations(); len(facade.Functions) > 0 {
		tree.Facades = append(tree.Facades, facade)
	}
	info, err := b.schemaInfo(len(tree.Classes))
	if err != nil {
		return nil, fmt.Errorf("dsl: %s: %w", SchemaInfoName, err)
	}
	tree.Classes = append(tree.Classes, info)

	for _, c := range tree.Classes {
		decl.Walk(c, func(c, _ *decl.ClassDeclaration) {
			b.generated[c.Name] = true
		})
	}
	tree.Externals = b.externals(tree)

	b.logger.Debug().
		Int("classes", len(tree.Classes)).
		Int("facades", len(tree.Facades)).
		Int("externals", len(tree.Externals)).
		Msg("built declaration tree")
	return tree, nil
}

func (b *Builder) className(def *schema.TypeDefinition) string {
	return b.mapper.ClassName(def.Name)
}

// abstractType declares an interface for a schema interface or union. Its
// typename function has a default body naming the abstract type.
func (b *Builder) abstractType(def *schema.TypeDefinition) (*decl.ClassDeclaration, error) {
	c := &decl.ClassDeclaration{
		Name:       b.className(def),
		Kind:       decl.KindInterface,
		Visibility: decl.Public,
		Modality:   decl.Abstract,
		Doc:        def.Doc,
	}
	for _, parent := range def.Interfaces {
		c.Interfaces = append(c.Interfaces, decl.ClassType(b.mapper.ClassName(parent)))
	}
	c.Functions = append(c.Functions, &decl.FunctionDeclaration{
		Name:       typenameFunction,
		Return:     stringType,
		Visibility: decl.Public,
		Modality:   decl.Open,
		Body:       []decl.Instr{decl.ConstString(def.Name), decl.Return()},
	})
	return c, nil
}

func (b *Builder) enum(def *schema.TypeDefinition) (*decl.ClassDeclaration, error) {
	c := &decl.ClassDeclaration{
		Name:       b.className(def),
		Kind:       decl.KindEnum,
		Visibility: decl.Public,
		Doc:        def.Doc,
	}
	for _, v := range def.EnumValues {
		c.EnumEntries = append(c.EnumEntries, v.Name)
	}
	return c, nil
}

// input declares a mutable class per input object. Non-null fields are
// constructor parameters. toString renders a GraphQL object
// literal so instances can be appended to requests directly.
func (b *Builder) input(def *schema.TypeDefinition) (*decl.ClassDeclaration, error) {
	name := b.className(def)
	c := &decl.ClassDeclaration{Name: name, Visibility: decl.Public, Doc: def.Doc}

	render := &chain{}
	render.emit(newStringBuilder("{")...)
	for i, iv := range def.InputFields {
		types, err := b.mapper.MapProperty(def, &iv)
		if err != nil {
			return nil, err
		}
		spec := decl.PropertySpec{
			Name:                iv.Name,
			Type:                types.Read.Type,
			Mutable:             true,
			Visibility:          decl.Public,
			ConstructorDeclared: !iv.Type.Nullable(),
			Doc:                 iv.Doc,
		}
		if !types.Setter.Type.Equal(types.Read.Type) {
			spec.SetterType = &types.Setter.Type
		}
		p, err := decl.NewProperty(spec)
		if err != nil {
			return nil, err
		}
		c.Properties = append(c.Properties, p)

		if i > 0 {
			render.text(", ")
		}
		render.text(iv.Name + ": ")
		render.value(p.Type, decl.LoadThis(), decl.GetField(name, p.Name, p.Type))
	}
	render.text("}")
	render.emit(toStringCall(), decl.Return())

	c.Functions = append(c.Functions, &decl.FunctionDeclaration{
		Name:       "toString",
		Return:     stringType,
		Visibility: decl.Public,
		Modality:   decl.Open,
		Body:       render.instrs(),
	})
	return c, nil
}

// object declares the selection builder of an object type and its nested
// value descriptor.
func (b *Builder) object(def *schema.TypeDefinition) (*decl.ClassDeclaration, error) {
	name := b.className(def)
	c := &decl.ClassDeclaration{Name: name, Visibility: decl.Public, Doc: def.Doc}
	for _, iface := range def.Interfaces {
		c.Interfaces = append(c.Interfaces, decl.ClassType(b.mapper.ClassName(iface)))
	}
	for _, union := range def.Unions {
		c.Interfaces = append(c.Interfaces, decl.ClassType(b.mapper.ClassName(union)))
	}

	selection, err := decl.NewProperty(decl.PropertySpec{
		Name:                selectionProperty,
		Type:                stringBuilderType,
		Visibility:          decl.Public,
		ConstructorDeclared: true,
	})
	if err != nil {
		return nil, err
	}
	c.Properties = append(c.Properties, selection)

	for i := range def.Fields {
		fn, err := b.selectField(def, &def.Fields[i])
		if err != nil {
			return nil, err
		}
		c.Functions = append(c.Functions, fn)
	}
	c.Functions = append(c.Functions, b.builderFunctions(def, name)...)

	if b.mapper.WantsDescriptor(def) {
		d, err := b.descriptor(def, name)
		if err != nil {
			return nil, err
		}
		c.Nested = append(c.Nested, d)
	}
	return c, nil
}

func memberName(field string) string {
	if reserved[field] {
		return field + "Field"
	}
	return field
}

// selectField declares the function selecting one field. Arguments are
// rendered inline. Object-valued fields open a sub-selection and return the
// builder of the field type sharing the same request.
func (b *Builder) selectField(owner *schema.TypeDefinition, f *schema.Field) (*decl.FunctionDeclaration, error) {
	ownerClass := b.className(owner)
	fn := &decl.FunctionDeclaration{
		Name:       memberName(f.Name),
		Visibility: decl.Public,
		Doc:        f.Doc,
	}

	body := &chain{}
	body.emit(loadSelection(ownerClass)...)
	body.text(" " + f.Name)
	for i := range f.Args {
		arg := &f.Args[i]
		proj, err := b.mapper.MapArgument(owner, f, arg)
		if err != nil {
			return nil, err
		}
		fn.Params = append(fn.Params, decl.Param{Name: arg.Name, Type: proj.Type})
		if i == 0 {
			body.text("(")
		} else {
			body.text(", ")
		}
		body.text(arg.Name + ": ")
		body.value(proj.Type, decl.LoadParam(i))
	}
	if len(f.Args) > 0 {
		body.text(")")
	}

	target, err := b.graph.ResolveBase(f.Type)
	if err != nil {
		return nil, err
	}
	switch target.Kind {
	case schema.KindObject:
		class := b.className(target)
		body.text(" {")
		body.emit(decl.Pop())
		body.emit(newBuilder(class, loadSelection(ownerClass)...)...)
		body.emit(decl.Return())
		fn.Return = decl.ClassType(class)
	case schema.KindInterface, schema.KindUnion:
		body.text(" { __typename }")
		body.emit(decl.Pop(), decl.LoadThis(), decl.Return())
		fn.Return = decl.ClassType(ownerClass)
	default:
		body.emit(decl.Pop(), decl.LoadThis(), decl.Return())
		fn.Return = decl.ClassType(ownerClass)
	}
	fn.Body = body.instrs()
	return fn, nil
}

// builderFunctions are the members every selection builder shares.
func (b *Builder) builderFunctions(def *schema.TypeDefinition, class string) []*decl.FunctionDeclaration {
	closeBody := &chain{}
	closeBody.emit(loadSelection(class)...)
	closeBody.text(" }")
	closeBody.emit(decl.Pop(), decl.LoadThis(), decl.Return())

	buildBody := &chain{}
	buildBody.emit(loadSelection(class)...)
	buildBody.text(" }")
	buildBody.emit(toStringCall(), decl.Return())

	return []*decl.FunctionDeclaration{
		{
			Name:       "close",
			Return:     decl.ClassType(class),
			Visibility: decl.Public,
			Body:       closeBody.instrs(),
			Doc:        "Ends the innermost open selection.",
		},
		{
			Name:       "build",
			Return:     stringType,
			Visibility: decl.Public,
			Body:       buildBody.instrs(),
			Doc:        "Ends the request and returns its text.",
		},
		{
			Name:       typenameFunction,
			Return:     stringType,
			Visibility: decl.Public,
			Modality:   decl.Open,
			Body:       []decl.Instr{decl.ConstString(def.Name), decl.Return()},
		},
	}
}

// descriptor declares the nested value class describing a result of the
// object type, with one read-only constructor property per field.
func (b *Builder) descriptor(def *schema.TypeDefinition, outer string) (*decl.ClassDeclaration, error) {
	d := &decl.ClassDeclaration{
		Name:       outer + "." + b.mapper.DescriptorName(def),
		Visibility: decl.Public,
	}
	for i := range def.Fields {
		f := &def.Fields[i]
		proj, err := b.mapper.MapField(def, f)
		if err != nil {
			return nil, err
		}
		p, err := decl.NewProperty(decl.PropertySpec{
			Name:                f.Name,
			Type:                proj.Type,
			Visibility:          decl.Public,
			ConstructorDeclared: true,
			Doc:                 f.Doc,
		})
		if err != nil {
			return nil, err
		}
		d.Properties = append(d.Properties, p)
	}
	return d, nil
}

var rootOperations = []schema.OperationType{schema.OperationQuery, schema.OperationMutation, schema.OperationSubscription}

// operations declares one top-level function per resolved root operation,
// each starting a new request on the root builder.
func (b *Builder) operations() *decl.Facade {
	facade := &decl.Facade{Name: b.mapper.ClassName(b.opts.Facade), Tier: 1}
	for _, op := range rootOperations {
		root, ok := b.graph.Root(op)
		if !ok {
			continue
		}
		class := b.className(root)
		body := newBuilder(class, newStringBuilder(op.String()+" {")...)
		facade.Functions = append(facade.Functions, &decl.FunctionDeclaration{
			Name:       op.String(),
			Return:     decl.ClassType(class),
			Visibility: decl.Public,
			Body:       append(body, decl.Return()),
			Doc:        fmt.Sprintf("Starts a %s request.", op),
		})
	}
	return facade
}

// schemaInfo declares a singleton exposing the root type names as computed
// properties.
func (b *Builder) schemaInfo(types int) (*decl.ClassDeclaration, error) {
	c := &decl.ClassDeclaration{
		Name:       b.mapper.ClassName(SchemaInfoName),
		Kind:       decl.KindSingleton,
		Visibility: decl.Public,
		Tier:       1,
	}
	for _, op := range rootOperations {
		value := decl.ConstNull()
		if root, ok := b.graph.Root(op); ok {
			value = decl.ConstString(root.Name)
		}
		// computed, read-only: no backing field
		p, err := decl.NewProperty(decl.PropertySpec{
			Name:       op.String() + "Type",
			Type:       stringType.AsNullable(true),
			Visibility: decl.Public,
			Getter:     &decl.Accessor{Visibility: decl.Public, Body: []decl.Instr{value, decl.Return()}},
		})
		if err != nil {
			return nil, err
		}
		c.Properties = append(c.Properties, p)
	}
	c.Functions = append(c.Functions, &decl.FunctionDeclaration{
		Name:       "typeCount",
		Return:     intType,
		Visibility: decl.Public,
		Body:       []decl.Instr{decl.ConstInt(int32(types)), decl.Return()},
	})
	return c, nil
}

// externals registers every class referenced by the tree that it does not
// declare. Host classifiers are known to the engine already.
func (b *Builder) externals(tree *decl.Tree) []decl.External {
	seen := map[string]bool{}
	var visit func(t decl.TypeRef)
	visit = func(t decl.TypeRef) {
		if !t.IsParam() && t.Class != "" && !b.generated[t.Class] && !strings.HasPrefix(t.Class, "kotlin.") {
			seen[t.Class] = true
		}
		for _, a := range t.Args {
			if a.Type != nil {
				visit(*a.Type)
			}
		}
	}
	visitBody := func(body []decl.Instr) {
		for _, in := range body {
			if in.Owner != "" && !b.generated[in.Owner] {
				seen[in.Owner] = true
			}
		}
	}
	visitFunctions := func(fns []*decl.FunctionDeclaration) {
		for _, fn := range fns {
			visit(fn.Return)
			for _, p := range fn.Params {
				visit(p.Type)
			}
			visitBody(fn.Body)
		}
	}

	for _, c := range tree.Classes {
		decl.Walk(c, func(c, _ *decl.ClassDeclaration) {
			for _, i := range c.Interfaces {
				visit(i)
			}
			for _, p := range c.Properties {
				visit(p.Type)
				visit(p.SetterType)
				visitBody(p.Getter.Body)
			}
			visitFunctions(c.Functions)
		})
	}
	for _, f := range tree.Facades {
		visitFunctions(f.Functions)
	}

	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	out := make([]decl.External, len(names))
	for i, name := range names {
		out[i] = decl.External{Name: name}
	}
	return out
}
