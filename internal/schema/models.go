package schema

// Kind tags the variant of a TypeDefinition
type Kind int

const (
	KindScalar Kind = iota + 1
	KindEnum
	KindInput
	KindObject
	KindInterface
	KindUnion
)

func (k Kind) String() string {
	switch k {
	case KindScalar:
		return "scalar"
	case KindEnum:
		return "enum"
	case KindInput:
		return "input"
	case KindObject:
		return "type"
	case KindInterface:
		return "interface"
	case KindUnion:
		return "union"
	}
	return "unknown"
}

// OperationType names a root operation
type OperationType int

const (
	OperationQuery OperationType = iota + 1
	OperationMutation
	OperationSubscription
)

func (o OperationType) String() string {
	switch o {
	case OperationQuery:
		return "query"
	case OperationMutation:
		return "mutation"
	case OperationSubscription:
		return "subscription"
	}
	return "unknown"
}

// conventionalRoot is the type name used when nothing else names a root.
func (o OperationType) conventionalRoot() string {
	switch o {
	case OperationQuery:
		return "Query"
	case OperationMutation:
		return "Mutation"
	case OperationSubscription:
		return "Subscription"
	}
	return ""
}

// TypeDefinition is one named schema type. Which member slices are populated
// depends on Kind; cross references are type names resolved via Graph.
type TypeDefinition struct {
	Kind       Kind
	Name       string
	Doc        string
	Directives []Directive
	BuiltIn    bool

	// Fields of an Object or Interface
	Fields []Field
	// InputFields of an Input
	InputFields []InputValue
	// EnumValues of an Enum
	EnumValues []EnumValue
	// Members of a Union
	Members []string

	// Interfaces declared by an Object or Interface
	Interfaces []string
	// Unions an Object belongs to
	Unions []string
	// Implementors lists the objects and interfaces directly implementing an Interface
	Implementors []string
	// PossibleTypes lists the concrete objects of an Interface or Union
	PossibleTypes []string

	// Fragments counts the base definition plus its extensions
	Fragments int
}

// Field looks up an object or interface field by name.
func (d *TypeDefinition) Field(name string) (*Field, bool) {
	for i := range d.Fields {
		if d.Fields[i].Name == name {
			return &d.Fields[i], true
		}
	}
	return nil, false
}

// InputField looks up an input field by name.
func (d *TypeDefinition) InputField(name string) (*InputValue, bool) {
	for i := range d.InputFields {
		if d.InputFields[i].Name == name {
			return &d.InputFields[i], true
		}
	}
	return nil, false
}

// HasEnumValue reports whether the enum declares the value.
func (d *TypeDefinition) HasEnumValue(name string) bool {
	for _, v := range d.EnumValues {
		if v.Name == name {
			return true
		}
	}
	return false
}

// Directive returns the first applied directive with the given name.
func (d *TypeDefinition) Directive(name string) (*Directive, bool) {
	return findDirective(d.Directives, name)
}

// Field is an output field of an Object or Interface
type Field struct {
	Name       string
	Doc        string
	Type       TypeExpression
	Args       []InputValue
	Directives []Directive
	Owner      string
	Fragment   int // 0 for the base definition, n for the n-th extension
}

// Directive returns the first applied directive with the given name.
func (f *Field) Directive(name string) (*Directive, bool) {
	return findDirective(f.Directives, name)
}

// InputValue is a field argument or an input object field
type InputValue struct {
	Name       string
	Doc        string
	Type       TypeExpression
	Default    DefaultValue
	Directives []Directive
	Owner      string
	Fragment   int
}

// EnumValue is a single value of an Enum
type EnumValue struct {
	Name       string
	Doc        string
	Directives []Directive
	Fragment   int
}

// Directive is an applied directive such as @identity(type: "User")
type Directive struct {
	Name string
	Args []DirectiveArg
}

// DirectiveArg is one argument of an applied directive
type DirectiveArg struct {
	Name  string
	Value Value
	Host  any
}

// Arg returns the literal value of a named argument.
func (d *Directive) Arg(name string) (Value, bool) {
	for _, a := range d.Args {
		if a.Name == name {
			return a.Value, true
		}
	}
	return Value{}, false
}

// DirectiveDefinition is a `directive @name(...)` declaration
type DirectiveDefinition struct {
	Name string
	Args []InputValue
}

// DefaultState distinguishes an absent default from an explicit null.
type DefaultState int

const (
	DefaultUnset DefaultState = iota
	DefaultNull
	DefaultSet
)

// DefaultValue is the tri-state default of an InputValue
type DefaultValue struct {
	State   DefaultState
	Literal Value
	Host    any // converted through the graph's ValueConverter
}

// IsSet reports whether any default, including null, was declared.
func (d DefaultValue) IsSet() bool {
	return d.State != DefaultUnset
}

func findDirective(list []Directive, name string) (*Directive, bool) {
	for i := range list {
		if list[i].Name == name {
			return &list[i], true
		}
	}
	return nil, false
}
