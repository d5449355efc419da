package decl

import (
	"fmt"
)

// Visibility levels, most restricted first.
type Visibility int

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
	}
	return "public"
}

// Modality of a class or member
type Modality int

const (
	Final Modality = iota
	Open
	Abstract
)

func (m Modality) String() string {
	switch m {
	case Open:
		return "open"
	case Abstract:
		return "abstract"
	}
	return "final"
}

// ClassKind selects how a ClassDeclaration is synthesized.
type ClassKind int

const (
	KindOrdinary ClassKind = iota
	KindInterface
	KindSingleton
	KindEnum
)

func (k ClassKind) String() string {
	switch k {
	case KindInterface:
		return "interface"
	case KindSingleton:
		return "object"
	case KindEnum:
		return "enum class"
	}
	return "class"
}

// Tree is everything one synthesis run produces.
type Tree struct {
	// Module names the module index file.
	Module string
	// Classes are top-level declarations; nested ones hang off Nested.
	Classes []*ClassDeclaration
	// Facades host top-level functions.
	Facades []*Facade
	// Externals are classes referenced by bodies and signatures but not
	// generated in this run. Dotted name -> binary internal name.
	Externals []External
}

// External registers a class that exists outside the run so that call sites
// referencing it resolve.
type External struct {
	Name      string // dotted, e.g. "java.lang.StringBuilder"
	Internal  string // slash form, e.g. "java/lang/StringBuilder"
	Interface bool
}

// ClassDeclaration is a class to synthesize. Nested declarations inherit the
// tier of their top-level ancestor.
type ClassDeclaration struct {
	Name           string // dotted qualified name; nested classes extend the outer name
	Kind           ClassKind
	Visibility     Visibility
	Modality       Modality
	Tier           int
	Superclass     *TypeRef // nil means kotlin.Any (or java.lang.Enum for enums)
	Interfaces     []TypeRef
	TypeParameters []TypeParameter
	Nested         []*ClassDeclaration
	Properties     []*PropertyDeclaration
	Functions      []*FunctionDeclaration
	Constructors   []*ConstructorDeclaration
	EnumEntries    []string
	Doc            string
}

// TypeParameter is declared positionally; its name is always T<index>.
type TypeParameter struct {
	Variance   Variance
	UpperBound *TypeRef // nil means kotlin.Any?
}

// Param is one value parameter
type Param struct {
	Name string
	Type TypeRef
}

// FunctionDeclaration is a member or top-level function. A nil Body on an
// interface member makes it abstract; on a class member Body is required
// unless Modality is Abstract.
type FunctionDeclaration struct {
	Name       string
	Params     []Param
	Return     TypeRef
	Visibility Visibility
	Modality   Modality
	Body       []Instr
	Doc        string
}

// ConstructorDeclaration describes a constructor. The engine always emits the
// superclass constructor call and the assignments of constructor-declared
// properties before Body.
type ConstructorDeclaration struct {
	Params     []Param
	Visibility Visibility
	Primary    bool
	Body       []Instr
}

// Accessor is a property getter or setter. A nil Body selects the default
// accessor that reads or writes the backing field.
type Accessor struct {
	Visibility Visibility
	Body       []Instr
}

// HasCustomBody reports whether the accessor has an explicit body.
func (a *Accessor) HasCustomBody() bool {
	return a != nil && a.Body != nil
}

// PropertyDeclaration is a property with its accessors. Use NewProperty so
// that the setter type is checked.
type PropertyDeclaration struct {
	Name                string
	Type                TypeRef
	Mutable             bool
	Visibility          Visibility
	Modality            Modality
	Getter              Accessor
	Setter              *Accessor // nil for read-only properties
	SetterType          TypeRef   // parameter type of the setter
	ConstructorDeclared bool
	Doc                 string
}

// PropertySpec is the input to NewProperty.
type PropertySpec struct {
	Name                string
	Type                TypeRef
	Mutable             bool
	Visibility          Visibility
	Modality            Modality
	Getter              *Accessor
	Setter              *Accessor
	SetterType          *TypeRef // defaults to Type
	ConstructorDeclared bool
	Doc                 string
}

// NewProperty validates a property description. The setter parameter type
// must be assignable to the read type.
func NewProperty(spec PropertySpec) (*PropertyDeclaration, error) {
	p := &PropertyDeclaration{
		Name:                spec.Name,
		Type:                spec.Type,
		Mutable:             spec.Mutable,
		Visibility:          spec.Visibility,
		Modality:            spec.Modality,
		Getter:              Accessor{Visibility: spec.Visibility},
		SetterType:          spec.Type,
		ConstructorDeclared: spec.ConstructorDeclared,
		Doc:                 spec.Doc,
	}
	if spec.Getter != nil {
		p.Getter = *spec.Getter
	}
	if !spec.Mutable {
		if spec.Setter != nil {
			return nil, fmt.Errorf("property %s: read-only property cannot declare a setter", spec.Name)
		}
		return p, nil
	}

	p.Setter = &Accessor{Visibility: spec.Visibility}
	if spec.Setter != nil {
		s := *spec.Setter
		p.Setter = &s
	}
	if spec.SetterType != nil {
		if path, ok := Assignable(*spec.SetterType, spec.Type); !ok {
			return nil, &NotAssignableError{Property: spec.Name, From: *spec.SetterType, To: spec.Type, Path: path}
		}
		p.SetterType = *spec.SetterType
	}
	return p, nil
}

// IsAbstract reports whether the property has no implementation.
func (p *PropertyDeclaration) IsAbstract() bool {
	return p.Modality == Abstract
}

// HasBackingField reports whether the property needs a storage slot: true iff
// some accessor lacks a custom body and the property is not abstract.
func (p *PropertyDeclaration) HasBackingField() bool {
	if p.IsAbstract() {
		return false
	}
	if !p.Getter.HasCustomBody() {
		return true
	}
	return p.Setter != nil && !p.Setter.HasCustomBody()
}

// IsDefaultSetter reports whether the setter is the most restricted default
// accessor matching the property's visibility. Such setters are not emitted
// as class-file members although the property stays settable in metadata.
func (p *PropertyDeclaration) IsDefaultSetter() bool {
	return p.Setter != nil &&
		p.Setter.Visibility == Private &&
		!p.Setter.HasCustomBody() &&
		p.Setter.Visibility == p.Visibility
}

// Facade hosts top-level functions of a package in a synthetic class.
type Facade struct {
	Name      string // dotted facade class name, e.g. "com.example.api.QueriesKt"
	Tier      int
	Functions []*FunctionDeclaration
}

// Package returns the package the facade's functions belong to.
func (f *Facade) Package() string {
	return PackageOf(f.Name)
}

// Walk visits a declaration and its nested declarations, outer first.
func Walk(c *ClassDeclaration, fn func(c *ClassDeclaration, outer *ClassDeclaration)) {
	var visit func(c, outer *ClassDeclaration)
	visit = func(c, outer *ClassDeclaration) {
		fn(c, outer)
		for _, n := range c.Nested {
			visit(n, c)
		}
	}
	visit(c, nil)
}
