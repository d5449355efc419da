// Package typemap decides the generated host type of every schema type
// expression: list nesting, per-layer nullability and variance.
package typemap

import (
	"errors"
	"strings"

	"github.com/okra-platform/kgql/internal/decl"
	"github.com/okra-platform/kgql/internal/schema"
)

// Position is where a mapped type appears in the generated API.
type Position int

const (
	// PositionReturn covers function results and read-only properties
	PositionReturn Position = iota
	// PositionInput covers function arguments
	PositionInput
	// PositionSetter covers property setter parameters
	PositionSetter
)

func (p Position) isInput() bool {
	return p != PositionReturn
}

// Nested descriptor class names substituted for plain object references.
const (
	EntityDescriptor = "Entity"
	DataDescriptor   = "Data"
)

// Default names used by Config.
const (
	DefaultIdentityType   = "kgql.runtime.GlobalId"
	DefaultIdentityScalar = "ID"
	NodeInterface         = "Node"
	identityDirective     = "identity"
)

var opaqueScalars = map[string]string{
	"JSON":       decl.Any,
	"JSONObject": decl.Any,
	"Any":        decl.Any,
}

var scalarTable = map[string]string{
	"Int":      decl.Int,
	"Float":    decl.Double,
	"String":   decl.String,
	"Boolean":  decl.Boolean,
	"Long":     decl.Long,
	"Date":     "java.time.LocalDate",
	"DateTime": "java.time.OffsetDateTime",
	"Instant":  "java.time.Instant",
	"UUID":     "java.util.UUID",
}

// markerTypes are pagination shapes that keep their plain class reference.
var markerTypes = map[string]bool{
	NodeInterface: true,
	"PageInfo":    true,
}

// BaseTypeMapper lets callers replace the host type of a schema type before
// the built-in tables apply.
type BaseTypeMapper interface {
	MapBase(def *schema.TypeDefinition, pos Position) (decl.TypeRef, bool)
}

// BaseTypeMapperFunc adapts a function to BaseTypeMapper
type BaseTypeMapperFunc func(def *schema.TypeDefinition, pos Position) (decl.TypeRef, bool)

func (f BaseTypeMapperFunc) MapBase(def *schema.TypeDefinition, pos Position) (decl.TypeRef, bool) {
	return f(def, pos)
}

// Config is the configuration surface of the mapper.
type Config struct {
	// Namespace is the package generated declarations live in.
	Namespace string
	// InputObjectVariance is the input-position variance of Object kinds.
	InputObjectVariance decl.Variance
	// IdentityType is the qualified name of the global identifier class.
	IdentityType string
	// IdentityScalar is the schema scalar treated as an identifier.
	IdentityScalar string
	// Overrides is consulted before the built-in tables.
	Overrides BaseTypeMapper
}

// Context describes the member a type expression belongs to.
type Context struct {
	Position   Position
	Owner      string // owning schema type
	Member     string // field or argument name
	Directives []schema.Directive
}

// Mapper maps schema type expressions to host types. It is a pure function
// of its graph and configuration and may be shared.
type Mapper struct {
	graph *schema.Graph
	cfg   Config
}

// New returns a mapper over a built graph.
func New(g *schema.Graph, cfg Config) *Mapper {
	if cfg.IdentityType == "" {
		cfg.IdentityType = DefaultIdentityType
	}
	if cfg.IdentityScalar == "" {
		cfg.IdentityScalar = DefaultIdentityScalar
	}
	return &Mapper{graph: g, cfg: cfg}
}

// Config returns the effective configuration.
func (m *Mapper) Config() Config {
	return m.cfg
}

// ClassName is the generated declaration name of a schema type.
func (m *Mapper) ClassName(typeName string) string {
	if m.cfg.Namespace == "" {
		return typeName
	}
	return m.cfg.Namespace + "." + typeName
}

// Map computes the host type of expr. List layers are wrapped innermost
// first; in input positions every layer outside the innermost is covariant
// regardless of the element kind.
func (m *Mapper) Map(expr schema.TypeExpression, ctx Context) (decl.TypeProjection, error) {
	def, err := m.graph.ResolveBase(expr)
	if err != nil {
		return decl.TypeProjection{}, err
	}

	base, variance, err := m.base(def, expr, ctx)
	if err != nil {
		return decl.TypeProjection{}, err
	}
	proj := decl.TypeProjection{Variance: variance, Type: base.AsNullable(expr.BaseNullable)}

	for i := expr.Depth() - 1; i >= 0; i-- {
		list := decl.ListOf(proj, expr.Wrappers.Nullable(i))
		next := decl.Invariant
		if ctx.Position.isInput() {
			next = decl.Covariant
		}
		proj = decl.TypeProjection{Variance: next, Type: list}
	}
	return proj, nil
}

// MapField maps the result type of an output field.
func (m *Mapper) MapField(owner *schema.TypeDefinition, f *schema.Field) (decl.TypeProjection, error) {
	return m.Map(f.Type, Context{Position: PositionReturn, Owner: owner.Name, Member: f.Name, Directives: f.Directives})
}

// MapArgument maps a field argument.
func (m *Mapper) MapArgument(owner *schema.TypeDefinition, f *schema.Field, arg *schema.InputValue) (decl.TypeProjection, error) {
	return m.Map(arg.Type, Context{Position: PositionInput, Owner: owner.Name, Member: f.Name + "." + arg.Name, Directives: arg.Directives})
}

// PropertyTypes are the read and write sides of a mapped property.
type PropertyTypes struct {
	Read   decl.TypeProjection
	Setter decl.TypeProjection
}

// MapProperty maps an input field to property types. The setter type must be
// assignable to the read type; a base override breaking that fails with
// ErrInputNotAssignable.
func (m *Mapper) MapProperty(owner *schema.TypeDefinition, iv *schema.InputValue) (PropertyTypes, error) {
	ctx := Context{Position: PositionInput, Owner: owner.Name, Member: iv.Name, Directives: iv.Directives}
	read, err := m.Map(iv.Type, ctx)
	if err != nil {
		return PropertyTypes{}, err
	}
	ctx.Position = PositionSetter
	setter, err := m.Map(iv.Type, ctx)
	if err != nil {
		return PropertyTypes{}, err
	}

	if path, ok := decl.Assignable(setter.Type, read.Type); !ok {
		return PropertyTypes{}, &TypeMappingError{
			Code:    ErrorCodeInputNotAssignable,
			Type:    iv.Type.String(),
			Context: owner.Name + "." + iv.Name,
			Path:    path,
			Err:     errors.New(setter.Type.String() + " is not assignable to " + read.Type.String()),
		}
	}
	return PropertyTypes{Read: read, Setter: setter}, nil
}

// base resolves the innermost type and its variance.
func (m *Mapper) base(def *schema.TypeDefinition, expr schema.TypeExpression, ctx Context) (decl.TypeRef, decl.Variance, error) {
	if def.Kind == schema.KindScalar && def.Name == m.cfg.IdentityScalar {
		id, variance, ok, err := m.identity(ctx)
		if err != nil {
			return decl.TypeRef{}, decl.Invariant, err
		}
		if ok {
			return id, variance, nil
		}
	}

	ref, isAny, overridden := m.resolveBase(def, ctx.Position)
	if !overridden && expr.Depth() == 0 && def.Kind == schema.KindObject && m.WantsDescriptor(def) {
		ref = decl.ClassType(ref.Class + "." + m.DescriptorName(def))
	}

	if !ctx.Position.isInput() {
		return ref, decl.Invariant, nil
	}
	switch def.Kind {
	case schema.KindObject:
		return ref, m.cfg.InputObjectVariance, nil
	case schema.KindEnum, schema.KindInterface, schema.KindUnion:
		return ref, decl.Covariant, nil
	case schema.KindScalar:
		if isAny {
			return ref, decl.Covariant, nil
		}
		return ref, decl.Invariant, nil
	case schema.KindInput:
		return ref, decl.Invariant, nil
	}
	return ref, decl.Invariant, nil
}

// resolveBase applies caller overrides, the fixed override table, the scalar
// table, and finally the generated declaration of the type.
func (m *Mapper) resolveBase(def *schema.TypeDefinition, pos Position) (ref decl.TypeRef, isAny, overridden bool) {
	if m.cfg.Overrides != nil {
		if t, ok := m.cfg.Overrides.MapBase(def, pos); ok {
			t.Nullable = false
			return t, t.Class == decl.Any, true
		}
	}
	if name, ok := opaqueScalars[def.Name]; ok {
		return decl.ClassType(name), name == decl.Any, false
	}
	if def.Name == m.cfg.IdentityScalar {
		return decl.ClassType(decl.String), false, false
	}
	if name, ok := scalarTable[def.Name]; ok {
		return decl.ClassType(name), false, false
	}
	if def.Kind == schema.KindScalar {
		return decl.ClassType(decl.Any), true, false
	}
	return decl.ClassType(m.ClassName(def.Name)), false, false
}

// identity maps the identity scalar to IdentityType<T> when the member names
// its target with @identity(type:) or is the id field of a node-like type.
func (m *Mapper) identity(ctx Context) (decl.TypeRef, decl.Variance, bool, error) {
	target := ""
	for i := range ctx.Directives {
		d := &ctx.Directives[i]
		if d.Name != identityDirective {
			continue
		}
		if v, ok := d.Arg("type"); ok && v.Kind == schema.ValueString {
			target = v.Str
		}
	}
	if target == "" && ctx.Member == "id" && m.isNodeLike(ctx.Owner) {
		target = ctx.Owner
	}
	if target == "" {
		return decl.TypeRef{}, decl.Invariant, false, nil
	}

	def, err := m.graph.Resolve(target)
	if err != nil {
		return decl.TypeRef{}, decl.Invariant, false, err
	}
	argVariance := decl.Invariant
	if ctx.Position.isInput() && def.Kind != schema.KindObject {
		argVariance = decl.Covariant
	}
	id := decl.ClassType(m.cfg.IdentityType, decl.Arg(argVariance, decl.ClassType(m.ClassName(def.Name))))
	return id, decl.Invariant, true, nil
}

func (m *Mapper) isNodeLike(typeName string) bool {
	if typeName == NodeInterface {
		return true
	}
	return m.graph.Implements(typeName, NodeInterface)
}

// WantsDescriptor reports whether a depth-0 object reference is replaced by
// its nested value descriptor.
func (m *Mapper) WantsDescriptor(def *schema.TypeDefinition) bool {
	if _, ok := scalarTable[def.Name]; ok {
		return false
	}
	if _, ok := opaqueScalars[def.Name]; ok {
		return false
	}
	return !markerTypes[def.Name] && !IsConnection(def)
}

// DescriptorName selects the nested value descriptor of an object type:
// Entity for identity-bearing objects, Data otherwise.
func (m *Mapper) DescriptorName(def *schema.TypeDefinition) string {
	if m.IsIdentityBearing(def) {
		return EntityDescriptor
	}
	return DataDescriptor
}

// IsIdentityBearing reports whether objects of the type have an identity:
// they implement Node or declare a non-null id of the identity scalar.
func (m *Mapper) IsIdentityBearing(def *schema.TypeDefinition) bool {
	if m.isNodeLike(def.Name) {
		return true
	}
	f, ok := def.Field("id")
	return ok && f.Type.Name == m.cfg.IdentityScalar && f.Type.Depth() == 0 && !f.Type.BaseNullable
}

// IsConnection reports whether an object follows the cursor connection shape.
func IsConnection(def *schema.TypeDefinition) bool {
	if strings.HasSuffix(def.Name, "Connection") {
		return true
	}
	_, edges := def.Field("edges")
	_, pageInfo := def.Field("pageInfo")
	return edges && pageInfo
}
