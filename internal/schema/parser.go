package schema

import (
	"fmt"
	"slices"
	"strconv"

	"github.com/wundergraph/graphql-go-tools/v2/pkg/ast"
	"github.com/wundergraph/graphql-go-tools/v2/pkg/astparser"
)

// ParseSchema parses GraphQL SDL and builds its Graph.
func ParseSchema(input string, opts Options) (*Graph, error) {
	doc, report := astparser.ParseGraphqlDocumentString(input)
	if report.HasErrors() {
		return nil, &SchemaError{Code: ErrorCodeParse, Err: fmt.Errorf("%v", report)}
	}
	return Build(&doc, opts)
}

// fragment is one definition or extension block of a named type.
type fragment struct {
	ref int
	ext bool
}

// fragmentIndex groups the root nodes of a document by type name, keeping
// declaration order.
type fragmentIndex struct {
	names []string
	byKey map[string][]fragment
	kinds map[string]Kind
}

func newFragmentIndex() *fragmentIndex {
	return &fragmentIndex{byKey: map[string][]fragment{}, kinds: map[string]Kind{}}
}

func (fi *fragmentIndex) add(name string, kind Kind, f fragment) error {
	if existing, ok := fi.kinds[name]; ok && existing != kind {
		return &SchemaError{Code: ErrorCodeDuplicateType, Type: name, Context: fmt.Sprintf("declared as %s and %s", existing, kind)}
	}
	if _, ok := fi.kinds[name]; !ok {
		fi.names = append(fi.names, name)
		fi.kinds[name] = kind
	}
	if !f.ext {
		for _, prev := range fi.byKey[name] {
			if !prev.ext {
				return &SchemaError{Code: ErrorCodeDuplicateType, Type: name}
			}
		}
	}
	fi.byKey[name] = append(fi.byKey[name], f)
	return nil
}

// ordered returns the fragments with the base definition first.
func (fi *fragmentIndex) ordered(name string) ([]fragment, error) {
	frags := fi.byKey[name]
	out := make([]fragment, 0, len(frags))
	for _, f := range frags {
		if !f.ext {
			out = append(out, f)
		}
	}
	if len(out) == 0 {
		return nil, unknownType(name, "extension of undeclared type")
	}
	for _, f := range frags {
		if f.ext {
			out = append(out, f)
		}
	}
	return out, nil
}

func (fi *fragmentIndex) namesOf(kind Kind) []string {
	var out []string
	for _, name := range fi.names {
		if fi.kinds[name] == kind {
			out = append(out, name)
		}
	}
	return out
}

// builder holds the parse tree while a Graph is constructed from it.
type builder struct {
	doc   *ast.Document
	g     *Graph
	index *fragmentIndex

	unionsOf     map[string][]string
	implementors map[string][]string
}

// Build constructs a Graph from a parsed document. The document is only read.
func Build(doc *ast.Document, opts Options) (*Graph, error) {
	conv := opts.Converter
	if conv == nil {
		conv = LiteralConverter{}
	}

	b := &builder{
		doc: doc,
		g: &Graph{
			types:      map[string]*TypeDefinition{},
			directives: map[string]*DirectiveDefinition{},
			roots:      map[OperationType]string{},
			converter:  conv,
		},
		index:        newFragmentIndex(),
		unionsOf:     map[string][]string{},
		implementors: map[string][]string{},
	}

	for _, name := range builtinScalars {
		b.g.types[name] = &TypeDefinition{Kind: KindScalar, Name: name, BuiltIn: true, Fragments: 1}
	}

	declaredRoots, err := b.indexDocument()
	if err != nil {
		return nil, err
	}

	steps := []struct {
		kind  Kind
		build func(name string, frags []fragment) *TypeDefinition
	}{
		{KindEnum, b.buildEnum},
		{KindInput, b.buildInput},
		{KindInterface, b.buildInterface},
		{KindObject, b.buildObject},
		{KindScalar, b.buildScalar},
		{KindUnion, b.buildUnion},
	}
	for _, step := range steps {
		for _, name := range b.index.namesOf(step.kind) {
			frags, err := b.index.ordered(name)
			if err != nil {
				return nil, err
			}
			def := step.build(name, frags)
			def.Fragments = len(frags)
			if err := b.g.insert(def); err != nil {
				return nil, err
			}
		}
	}

	// declaration order, built-ins first
	order := slices.Clone(builtinScalars)
	for _, name := range b.index.names {
		if !slices.Contains(builtinScalars, name) {
			order = append(order, name)
		}
	}
	b.g.order = order

	if err := b.g.link(); err != nil {
		return nil, err
	}
	if err := b.g.convertDefaults(); err != nil {
		return nil, err
	}
	if err := b.g.resolveRoots(declaredRoots, opts); err != nil {
		return nil, err
	}
	return b.g, nil
}

// indexDocument is the pre-pass: it groups fragments by name, records
// directive declarations and schema roots, and builds the reverse indexes
// (member type -> unions, interface -> implementors) that the parse tree only
// states in the forward direction.
func (b *builder) indexDocument() (map[OperationType]string, error) {
	doc := b.doc
	roots := map[OperationType]string{}

	for i := range doc.RootNodes {
		node := doc.RootNodes[i]
		var (
			name string
			kind Kind
			ext  bool
		)
		switch node.Kind {
		case ast.NodeKindEnumTypeDefinition:
			name, kind = doc.Input.ByteSliceString(doc.EnumTypeDefinitions[node.Ref].Name), KindEnum
		case ast.NodeKindEnumTypeExtension:
			name, kind, ext = doc.Input.ByteSliceString(doc.EnumTypeExtensions[node.Ref].Name), KindEnum, true
		case ast.NodeKindInputObjectTypeDefinition:
			name, kind = doc.Input.ByteSliceString(doc.InputObjectTypeDefinitions[node.Ref].Name), KindInput
		case ast.NodeKindInputObjectTypeExtension:
			name, kind, ext = doc.Input.ByteSliceString(doc.InputObjectTypeExtensions[node.Ref].Name), KindInput, true
		case ast.NodeKindInterfaceTypeDefinition:
			def := doc.InterfaceTypeDefinitions[node.Ref]
			name, kind = doc.Input.ByteSliceString(def.Name), KindInterface
			b.recordImplements(name, def.ImplementsInterfaces.Refs)
		case ast.NodeKindInterfaceTypeExtension:
			def := doc.InterfaceTypeExtensions[node.Ref].InterfaceTypeDefinition
			name, kind, ext = doc.Input.ByteSliceString(def.Name), KindInterface, true
			b.recordImplements(name, def.ImplementsInterfaces.Refs)
		case ast.NodeKindObjectTypeDefinition:
			def := doc.ObjectTypeDefinitions[node.Ref]
			name, kind = doc.Input.ByteSliceString(def.Name), KindObject
			b.recordImplements(name, def.ImplementsInterfaces.Refs)
		case ast.NodeKindObjectTypeExtension:
			def := doc.ObjectTypeExtensions[node.Ref].ObjectTypeDefinition
			name, kind, ext = doc.Input.ByteSliceString(def.Name), KindObject, true
			b.recordImplements(name, def.ImplementsInterfaces.Refs)
		case ast.NodeKindScalarTypeDefinition:
			name, kind = doc.Input.ByteSliceString(doc.ScalarTypeDefinitions[node.Ref].Name), KindScalar
		case ast.NodeKindScalarTypeExtension:
			name, kind, ext = doc.Input.ByteSliceString(doc.ScalarTypeExtensions[node.Ref].Name), KindScalar, true
		case ast.NodeKindUnionTypeDefinition:
			def := doc.UnionTypeDefinitions[node.Ref]
			name, kind = doc.Input.ByteSliceString(def.Name), KindUnion
			b.recordMembers(name, def.UnionMemberTypes.Refs)
		case ast.NodeKindUnionTypeExtension:
			def := doc.UnionTypeExtensions[node.Ref].UnionTypeDefinition
			name, kind, ext = doc.Input.ByteSliceString(def.Name), KindUnion, true
			b.recordMembers(name, def.UnionMemberTypes.Refs)
		case ast.NodeKindDirectiveDefinition:
			b.recordDirective(node.Ref)
			continue
		case ast.NodeKindSchemaDefinition:
			b.recordRoots(doc.SchemaDefinitions[node.Ref].RootOperationTypeDefinitions.Refs, roots)
			continue
		case ast.NodeKindSchemaExtension:
			b.recordRoots(doc.SchemaExtensions[node.Ref].RootOperationTypeDefinitions.Refs, roots)
			continue
		default:
			continue
		}

		if err := b.index.add(name, kind, fragment{ref: node.Ref, ext: ext}); err != nil {
			return nil, err
		}
	}
	return roots, nil
}

func (b *builder) recordImplements(name string, typeRefs []int) {
	for _, ref := range typeRefs {
		iface := b.doc.Input.ByteSliceString(b.doc.Types[ref].Name)
		b.implementors[iface] = appendUnique(b.implementors[iface], name)
	}
}

func (b *builder) recordMembers(union string, typeRefs []int) {
	for _, ref := range typeRefs {
		member := b.doc.Input.ByteSliceString(b.doc.Types[ref].Name)
		b.unionsOf[member] = appendUnique(b.unionsOf[member], union)
	}
}

func (b *builder) recordDirective(ref int) {
	def := b.doc.DirectiveDefinitions[ref]
	name := b.doc.Input.ByteSliceString(def.Name)
	b.g.directives[name] = &DirectiveDefinition{
		Name: name,
		Args: b.inputValues(def.ArgumentsDefinition.Refs, "@"+name, 0),
	}
}

func (b *builder) recordRoots(refs []int, roots map[OperationType]string) {
	for _, ref := range refs {
		def := b.doc.RootOperationTypeDefinitions[ref]
		name := b.doc.Input.ByteSliceString(def.NamedType.Name)
		switch def.OperationType {
		case ast.OperationTypeQuery:
			roots[OperationQuery] = name
		case ast.OperationTypeMutation:
			roots[OperationMutation] = name
		case ast.OperationTypeSubscription:
			roots[OperationSubscription] = name
		}
	}
}

func (b *builder) buildEnum(name string, frags []fragment) *TypeDefinition {
	def := &TypeDefinition{Kind: KindEnum, Name: name}
	for n, f := range frags {
		var src ast.EnumTypeDefinition
		if f.ext {
			src = b.doc.EnumTypeExtensions[f.ref].EnumTypeDefinition
		} else {
			src = b.doc.EnumTypeDefinitions[f.ref]
			def.Doc = b.description(src.Description)
		}
		def.Directives = append(def.Directives, b.directives(src.Directives.Refs)...)
		for _, ref := range src.EnumValuesDefinition.Refs {
			v := b.doc.EnumValueDefinitions[ref]
			def.EnumValues = append(def.EnumValues, EnumValue{
				Name:       b.doc.Input.ByteSliceString(v.EnumValue),
				Doc:        b.description(v.Description),
				Directives: b.directives(v.Directives.Refs),
				Fragment:   n,
			})
		}
	}
	return def
}

func (b *builder) buildInput(name string, frags []fragment) *TypeDefinition {
	def := &TypeDefinition{Kind: KindInput, Name: name}
	for n, f := range frags {
		var src ast.InputObjectTypeDefinition
		if f.ext {
			src = b.doc.InputObjectTypeExtensions[f.ref].InputObjectTypeDefinition
		} else {
			src = b.doc.InputObjectTypeDefinitions[f.ref]
			def.Doc = b.description(src.Description)
		}
		def.Directives = append(def.Directives, b.directives(src.Directives.Refs)...)
		def.InputFields = append(def.InputFields, b.inputValues(src.InputFieldsDefinition.Refs, name, n)...)
	}
	return def
}

func (b *builder) buildInterface(name string, frags []fragment) *TypeDefinition {
	def := &TypeDefinition{Kind: KindInterface, Name: name, Implementors: b.implementors[name]}
	for n, f := range frags {
		var src ast.InterfaceTypeDefinition
		if f.ext {
			src = b.doc.InterfaceTypeExtensions[f.ref].InterfaceTypeDefinition
		} else {
			src = b.doc.InterfaceTypeDefinitions[f.ref]
			def.Doc = b.description(src.Description)
		}
		def.Directives = append(def.Directives, b.directives(src.Directives.Refs)...)
		def.Interfaces = append(def.Interfaces, b.typeNames(src.ImplementsInterfaces.Refs)...)
		def.Fields = append(def.Fields, b.fields(src.FieldsDefinition.Refs, name, n)...)
	}
	return def
}

func (b *builder) buildObject(name string, frags []fragment) *TypeDefinition {
	def := &TypeDefinition{Kind: KindObject, Name: name, Unions: b.unionsOf[name]}
	for n, f := range frags {
		var src ast.ObjectTypeDefinition
		if f.ext {
			src = b.doc.ObjectTypeExtensions[f.ref].ObjectTypeDefinition
		} else {
			src = b.doc.ObjectTypeDefinitions[f.ref]
			def.Doc = b.description(src.Description)
		}
		def.Directives = append(def.Directives, b.directives(src.Directives.Refs)...)
		def.Interfaces = append(def.Interfaces, b.typeNames(src.ImplementsInterfaces.Refs)...)
		def.Fields = append(def.Fields, b.fields(src.FieldsDefinition.Refs, name, n)...)
	}
	return def
}

func (b *builder) buildScalar(name string, frags []fragment) *TypeDefinition {
	def := &TypeDefinition{Kind: KindScalar, Name: name}
	for _, f := range frags {
		var src ast.ScalarTypeDefinition
		if f.ext {
			src = b.doc.ScalarTypeExtensions[f.ref].ScalarTypeDefinition
		} else {
			src = b.doc.ScalarTypeDefinitions[f.ref]
			def.Doc = b.description(src.Description)
		}
		def.Directives = append(def.Directives, b.directives(src.Directives.Refs)...)
	}
	return def
}

func (b *builder) buildUnion(name string, frags []fragment) *TypeDefinition {
	def := &TypeDefinition{Kind: KindUnion, Name: name}
	for _, f := range frags {
		var src ast.UnionTypeDefinition
		if f.ext {
			src = b.doc.UnionTypeExtensions[f.ref].UnionTypeDefinition
		} else {
			src = b.doc.UnionTypeDefinitions[f.ref]
			def.Doc = b.description(src.Description)
		}
		def.Directives = append(def.Directives, b.directives(src.Directives.Refs)...)
		for _, member := range b.typeNames(src.UnionMemberTypes.Refs) {
			def.Members = appendUnique(def.Members, member)
		}
	}
	return def
}

func (b *builder) fields(refs []int, owner string, fragment int) []Field {
	out := make([]Field, 0, len(refs))
	for _, ref := range refs {
		fd := b.doc.FieldDefinitions[ref]
		name := b.doc.Input.ByteSliceString(fd.Name)
		out = append(out, Field{
			Name:       name,
			Doc:        b.description(fd.Description),
			Type:       b.typeExpression(fd.Type),
			Args:       b.inputValues(fd.ArgumentsDefinition.Refs, owner+"."+name, fragment),
			Directives: b.directives(fd.Directives.Refs),
			Owner:      owner,
			Fragment:   fragment,
		})
	}
	return out
}

func (b *builder) inputValues(refs []int, owner string, fragment int) []InputValue {
	out := make([]InputValue, 0, len(refs))
	for _, ref := range refs {
		iv := b.doc.InputValueDefinitions[ref]
		v := InputValue{
			Name:       b.doc.Input.ByteSliceString(iv.Name),
			Doc:        b.description(iv.Description),
			Type:       b.typeExpression(iv.Type),
			Directives: b.directives(iv.Directives.Refs),
			Owner:      owner,
			Fragment:   fragment,
		}
		if iv.DefaultValue.IsDefined {
			lit := b.literal(iv.DefaultValue.Value)
			v.Default = DefaultValue{State: DefaultSet, Literal: lit}
			if lit.Kind == ValueNull {
				v.Default.State = DefaultNull
			}
		}
		out = append(out, v)
	}
	return out
}

// typeExpression walks NonNull/List wrappers outward-in. Each list layer
// contributes one bit; the final named type carries the base flag.
func (b *builder) typeExpression(ref int) TypeExpression {
	var layers []bool
	nullable := true
	for {
		t := b.doc.Types[ref]
		switch t.TypeKind {
		case ast.TypeKindNonNull:
			nullable = false
			ref = t.OfType
			continue
		case ast.TypeKindList:
			layers = append(layers, nullable)
			nullable = true
			ref = t.OfType
			continue
		}
		return TypeExpression{
			Name:         b.doc.Input.ByteSliceString(t.Name),
			BaseNullable: nullable,
			Wrappers:     WrapperVectorOf(layers...),
		}
	}
}

func (b *builder) typeNames(refs []int) []string {
	out := make([]string, 0, len(refs))
	for _, ref := range refs {
		out = append(out, b.doc.Input.ByteSliceString(b.doc.Types[ref].Name))
	}
	return out
}

func (b *builder) directives(refs []int) []Directive {
	var out []Directive
	for _, ref := range refs {
		d := b.doc.Directives[ref]
		directive := Directive{Name: b.doc.Input.ByteSliceString(d.Name)}
		for _, argRef := range d.Arguments.Refs {
			arg := b.doc.Arguments[argRef]
			directive.Args = append(directive.Args, DirectiveArg{
				Name:  b.doc.Input.ByteSliceString(arg.Name),
				Value: b.literal(arg.Value),
			})
		}
		out = append(out, directive)
	}
	return out
}

// literal copies a parse-tree value into a Value.
func (b *builder) literal(value ast.Value) Value {
	doc := b.doc
	switch value.Kind {
	case ast.ValueKindString:
		return Value{Kind: ValueString, Str: doc.StringValueContentString(value.Ref)}
	case ast.ValueKindBoolean:
		return Value{Kind: ValueBoolean, Bool: bool(doc.BooleanValues[value.Ref])}
	case ast.ValueKindInteger:
		return Value{Kind: ValueInt, Int: doc.IntValueAsInt(value.Ref)}
	case ast.ValueKindFloat:
		// the raw token carries no sign
		f, err := strconv.ParseFloat(string(doc.FloatValueRaw(value.Ref)), 64)
		if err != nil {
			f = float64(doc.FloatValueAsFloat32(value.Ref))
		} else if doc.FloatValueIsNegative(value.Ref) {
			f = -f
		}
		return Value{Kind: ValueFloat, Float: f}
	case ast.ValueKindEnum:
		return Value{Kind: ValueEnum, Str: doc.Input.ByteSliceString(doc.EnumValues[value.Ref].Name)}
	case ast.ValueKindList:
		list := doc.ListValues[value.Ref]
		out := Value{Kind: ValueList, List: make([]Value, 0, len(list.Refs))}
		for _, ref := range list.Refs {
			out.List = append(out.List, b.literal(doc.Values[ref]))
		}
		return out
	case ast.ValueKindObject:
		obj := doc.ObjectValues[value.Ref]
		out := Value{Kind: ValueObject}
		for _, ref := range obj.Refs {
			field := doc.ObjectFields[ref]
			out.Fields = append(out.Fields, ObjectField{
				Name:  doc.Input.ByteSliceString(field.Name),
				Value: b.literal(field.Value),
			})
		}
		return out
	}
	return Value{Kind: ValueNull}
}

func (b *builder) description(desc ast.Description) string {
	if !desc.IsDefined {
		return ""
	}
	return b.doc.Input.ByteSliceString(desc.Content)
}

func appendUnique(list []string, name string) []string {
	for _, existing := range list {
		if existing == name {
			return list
		}
	}
	return append(list, name)
}
