// Package decl describes the declarations the synthesis backends emit: class
// trees, their members, instruction bodies and the host types they mention.
// Both the binary and the source backend consume the same description.
package decl

import (
	"strconv"
	"strings"
)

// Variance of a type argument or type parameter
type Variance int

const (
	Invariant Variance = iota
	Covariant          // out T
	Contravariant      // in T
)

func (v Variance) String() string {
	switch v {
	case Covariant:
		return "out"
	case Contravariant:
		return "in"
	}
	return ""
}

// Well-known host classifiers.
const (
	Any     = "kotlin.Any"
	Unit    = "kotlin.Unit"
	String  = "kotlin.String"
	Int     = "kotlin.Int"
	Long    = "kotlin.Long"
	Double  = "kotlin.Double"
	Boolean = "kotlin.Boolean"
	List    = "kotlin.collections.List"
)

// TypeRef is a host type: either a classifier with arguments, or a reference
// to a type parameter of the enclosing declaration (Param >= 0).
type TypeRef struct {
	Class    string // dotted qualified name, empty for type parameters
	Args     []TypeArg
	Nullable bool
	Param    int // type parameter index; -1 when Class is set
}

// TypeArg is one argument of a parameterized type. Star projections have a
// nil Type.
type TypeArg struct {
	Variance Variance
	Type     *TypeRef
}

// TypeProjection is a type together with the variance it should be used
// with when placed in a type-argument position.
type TypeProjection struct {
	Variance Variance
	Type     TypeRef
}

// ClassType returns a non-null classifier reference.
func ClassType(name string, args ...TypeArg) TypeRef {
	return TypeRef{Class: name, Args: args, Param: -1}
}

// ParamType references the i-th type parameter of the enclosing declaration.
func ParamType(i int) TypeRef {
	return TypeRef{Param: i}
}

// Arg wraps a type as a type argument.
func Arg(v Variance, t TypeRef) TypeArg {
	return TypeArg{Variance: v, Type: &t}
}

// Star is the `*` projection.
func Star() TypeArg {
	return TypeArg{Variance: Covariant}
}

// ListOf builds kotlin.collections.List<elem>.
func ListOf(elem TypeProjection, nullable bool) TypeRef {
	t := ClassType(List, Arg(elem.Variance, elem.Type))
	t.Nullable = nullable
	return t
}

// IsParam reports whether the reference is to a type parameter.
func (t TypeRef) IsParam() bool {
	return t.Class == "" && t.Param >= 0
}

// AsNullable returns a copy with the nullable flag set.
func (t TypeRef) AsNullable(nullable bool) TypeRef {
	t.Nullable = nullable
	return t
}

// IsUnit reports whether the type is kotlin.Unit.
func (t TypeRef) IsUnit() bool {
	return t.Class == Unit && !t.Nullable
}

// Equal compares two references structurally.
func (t TypeRef) Equal(o TypeRef) bool {
	if t.Class != o.Class || t.Nullable != o.Nullable || len(t.Args) != len(o.Args) {
		return false
	}
	if t.IsParam() && t.Param != o.Param {
		return false
	}
	for i := range t.Args {
		a, b := t.Args[i], o.Args[i]
		if a.Variance != b.Variance || (a.Type == nil) != (b.Type == nil) {
			return false
		}
		if a.Type != nil && !a.Type.Equal(*b.Type) {
			return false
		}
	}
	return true
}

// String renders the type in host source syntax.
func (t TypeRef) String() string {
	var sb strings.Builder
	t.write(&sb)
	return sb.String()
}

func (t TypeRef) write(sb *strings.Builder) {
	if t.IsParam() {
		sb.WriteString(ParamName(t.Param))
	} else {
		sb.WriteString(t.Class)
	}
	if len(t.Args) > 0 {
		sb.WriteByte('<')
		for i, a := range t.Args {
			if i > 0 {
				sb.WriteString(", ")
			}
			if a.Type == nil {
				sb.WriteByte('*')
				continue
			}
			if a.Variance != Invariant {
				sb.WriteString(a.Variance.String())
				sb.WriteByte(' ')
			}
			a.Type.write(sb)
		}
		sb.WriteByte('>')
	}
	if t.Nullable {
		sb.WriteByte('?')
	}
}

// ParamName is the positional name of the i-th type parameter.
func ParamName(i int) string {
	return "T" + strconv.Itoa(i)
}

// SimpleName returns the last segment of a dotted name.
func SimpleName(qualified string) string {
	if i := strings.LastIndexByte(qualified, '.'); i >= 0 {
		return qualified[i+1:]
	}
	return qualified
}

// PackageOf returns the package part of a top-level qualified name.
func PackageOf(qualified string) string {
	if i := strings.LastIndexByte(qualified, '.'); i >= 0 {
		return qualified[:i]
	}
	return ""
}
