// Package metadata is the structural description attached to every
// synthesized class file and the module index listing facade classes. Both
// are encoded in protobuf wire format.
package metadata

import "fmt"

// Version is written into every blob; decoders reject other major versions.
const Version = 1

// Kind of the described class
type Kind uint32

const (
	KindClass Kind = iota + 1
	KindInterface
	KindObject
	KindEnum
	KindFacade
	KindSynthetic
)

var kindNames = map[Kind]string{
	KindClass:     "class",
	KindInterface: "interface",
	KindObject:    "object",
	KindEnum:      "enum",
	KindFacade:    "facade",
	KindSynthetic: "synthetic",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("kind(%d)", uint32(k))
}

func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Visibility mirrors the declaration visibility levels.
type Visibility uint32

const (
	Private Visibility = iota
	Protected
	Internal
	Public
)

func (v Visibility) String() string {
	switch v {
	case Private:
		return "private"
	case Protected:
		return "protected"
	case Internal:
		return "internal"
	case Public:
		return "public"
	}
	return fmt.Sprintf("visibility(%d)", uint32(v))
}

func (v Visibility) MarshalText() ([]byte, error) {
	return []byte(v.String()), nil
}

// Modality of a class or member
type Modality uint32

const (
	Final Modality = iota
	Open
	Abstract
)

func (m Modality) String() string {
	switch m {
	case Final:
		return "final"
	case Open:
		return "open"
	case Abstract:
		return "abstract"
	}
	return fmt.Sprintf("modality(%d)", uint32(m))
}

func (m Modality) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// Variance of a type argument or parameter
type Variance uint32

const (
	Invariant Variance = iota
	Out
	In
)

func (v Variance) String() string {
	switch v {
	case Out:
		return "out"
	case In:
		return "in"
	}
	return "inv"
}

func (v Variance) MarshalText() ([]byte, error) {
	return []byte(v.String()), nil
}

// Type is a host type. Exactly one of Class and Var is set.
type Type struct {
	Class    string    `json:"class,omitempty" yaml:"class,omitempty"`
	Var      string    `json:"var,omitempty" yaml:"var,omitempty"`
	Nullable bool      `json:"nullable,omitempty" yaml:"nullable,omitempty"`
	Args     []TypeArg `json:"args,omitempty" yaml:"args,omitempty"`
}

// TypeArg is one type argument; Star projections carry no Type.
type TypeArg struct {
	Variance Variance `json:"variance" yaml:"variance"`
	Star     bool     `json:"star,omitempty" yaml:"star,omitempty"`
	Type     *Type    `json:"type,omitempty" yaml:"type,omitempty"`
}

// TypeParameter is a positional type parameter.
type TypeParameter struct {
	Name       string   `json:"name" yaml:"name"`
	Variance   Variance `json:"variance" yaml:"variance"`
	UpperBound *Type    `json:"upperBound,omitempty" yaml:"upperBound,omitempty"`
}

// ValueParameter is a function or constructor parameter.
type ValueParameter struct {
	Name string `json:"name" yaml:"name"`
	Type Type   `json:"type" yaml:"type"`
}

// JvmMethod locates the binary member backing a declaration.
type JvmMethod struct {
	Name       string `json:"name" yaml:"name"`
	Descriptor string `json:"desc" yaml:"desc"`
}

// Function describes a member or top-level function.
type Function struct {
	Name        string           `json:"name" yaml:"name"`
	Params      []ValueParameter `json:"params,omitempty" yaml:"params,omitempty"`
	Return      Type             `json:"return" yaml:"return"`
	Visibility  Visibility       `json:"visibility" yaml:"visibility"`
	Modality    Modality         `json:"modality" yaml:"modality"`
	JVM         JvmMethod        `json:"jvm" yaml:"jvm"`
	DefaultImpl bool             `json:"defaultImpl,omitempty" yaml:"defaultImpl,omitempty"`
}

// Accessor is the signature of a non-private getter or setter.
type Accessor struct {
	Visibility Visibility `json:"visibility" yaml:"visibility"`
	JVM        JvmMethod  `json:"jvm" yaml:"jvm"`
}

// Property describes a property. Settable may be true with a nil Setter:
// private default setters have no accessor signature.
type Property struct {
	Name                string     `json:"name" yaml:"name"`
	Type                Type       `json:"type" yaml:"type"`
	SetterType          *Type      `json:"setterType,omitempty" yaml:"setterType,omitempty"`
	Visibility          Visibility `json:"visibility" yaml:"visibility"`
	Modality            Modality   `json:"modality" yaml:"modality"`
	Settable            bool       `json:"settable,omitempty" yaml:"settable,omitempty"`
	ConstructorDeclared bool       `json:"constructorDeclared,omitempty" yaml:"constructorDeclared,omitempty"`
	Getter              *Accessor  `json:"getter,omitempty" yaml:"getter,omitempty"`
	Setter              *Accessor  `json:"setter,omitempty" yaml:"setter,omitempty"`
	Field               *JvmMethod `json:"field,omitempty" yaml:"field,omitempty"`
}

// Constructor describes a constructor.
type Constructor struct {
	Params     []ValueParameter `json:"params,omitempty" yaml:"params,omitempty"`
	Visibility Visibility       `json:"visibility" yaml:"visibility"`
	Primary    bool             `json:"primary,omitempty" yaml:"primary,omitempty"`
	JVM        JvmMethod        `json:"jvm" yaml:"jvm"`
}

// Class is the metadata blob of one class file.
type Class struct {
	Version        uint32          `json:"version" yaml:"version"`
	Kind           Kind            `json:"kind" yaml:"kind"`
	Name           string          `json:"name" yaml:"name"`
	Visibility     Visibility      `json:"visibility" yaml:"visibility"`
	Modality       Modality        `json:"modality" yaml:"modality"`
	TypeParameters []TypeParameter `json:"typeParameters,omitempty" yaml:"typeParameters,omitempty"`
	Supertypes     []Type          `json:"supertypes,omitempty" yaml:"supertypes,omitempty"`
	Constructors   []Constructor   `json:"constructors,omitempty" yaml:"constructors,omitempty"`
	Properties     []Property      `json:"properties,omitempty" yaml:"properties,omitempty"`
	Functions      []Function      `json:"functions,omitempty" yaml:"functions,omitempty"`
	NestedClasses  []string        `json:"nestedClasses,omitempty" yaml:"nestedClasses,omitempty"`
	EnumEntries    []string        `json:"enumEntries,omitempty" yaml:"enumEntries,omitempty"`
}

// Property looks up a property by name.
func (c *Class) Property(name string) (*Property, bool) {
	for i := range c.Properties {
		if c.Properties[i].Name == name {
			return &c.Properties[i], true
		}
	}
	return nil, false
}

// Function looks up the first function with the given name.
func (c *Class) Function(name string) (*Function, bool) {
	for i := range c.Functions {
		if c.Functions[i].Name == name {
			return &c.Functions[i], true
		}
	}
	return nil, false
}
