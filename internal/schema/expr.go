package schema

import (
	"fmt"
	"strings"
	"unicode"
)

// TypeExpression is a reference to a named schema type wrapped in zero or
// more list layers. The base name is resolved through Graph.Resolve when read,
// never stored as a pointer, so forward and cyclic references are safe.
type TypeExpression struct {
	Name         string
	BaseNullable bool
	Wrappers     WrapperVector
}

// Named returns a depth-0 expression.
func Named(name string, nullable bool) TypeExpression {
	return TypeExpression{Name: name, BaseNullable: nullable, Wrappers: NewWrapperVector(0)}
}

// Depth returns the list nesting depth.
func (t TypeExpression) Depth() int {
	return t.Wrappers.Len()
}

// IsList reports whether the outermost layer is a list.
func (t TypeExpression) IsList() bool {
	return t.Depth() > 0
}

// Nullable reports the nullability of the outermost layer.
func (t TypeExpression) Nullable() bool {
	if t.Depth() == 0 {
		return t.BaseNullable
	}
	return t.Wrappers.Nullable(0)
}

// Inner strips the outermost list layer.
func (t TypeExpression) Inner() TypeExpression {
	return TypeExpression{Name: t.Name, BaseNullable: t.BaseNullable, Wrappers: t.Wrappers.DropOutermost()}
}

// Unparse renders the nullability chain outer to base, e.g. "!?!" for [[T!]]!.
func (t TypeExpression) Unparse() string {
	return t.Wrappers.Unparse(t.BaseNullable)
}

// String renders the expression in GraphQL syntax.
func (t TypeExpression) String() string {
	var sb strings.Builder
	for i := 0; i < t.Depth(); i++ {
		sb.WriteByte('[')
	}
	sb.WriteString(t.Name)
	if !t.BaseNullable {
		sb.WriteByte('!')
	}
	for i := t.Depth() - 1; i >= 0; i-- {
		sb.WriteByte(']')
		if !t.Wrappers.Nullable(i) {
			sb.WriteByte('!')
		}
	}
	return sb.String()
}

// Equal compares two expressions structurally.
func (t TypeExpression) Equal(o TypeExpression) bool {
	return t.Name == o.Name && t.BaseNullable == o.BaseNullable && t.Wrappers.Equal(o.Wrappers)
}

// ParseTypeExpression parses GraphQL type syntax such as "[[String!]]!".
func ParseTypeExpression(s string) (TypeExpression, error) {
	s = strings.TrimSpace(s)
	var layers []bool
	for strings.HasPrefix(s, "[") {
		nullable := true
		if strings.HasSuffix(s, "!") {
			nullable = false
			s = strings.TrimSpace(s[:len(s)-1])
		}
		if !strings.HasSuffix(s, "]") {
			return TypeExpression{}, fmt.Errorf("unbalanced list in type %q", s)
		}
		layers = append(layers, nullable)
		s = strings.TrimSpace(s[1 : len(s)-1])
	}

	baseNullable := true
	if strings.HasSuffix(s, "!") {
		baseNullable = false
		s = strings.TrimSpace(s[:len(s)-1])
	}
	if !isName(s) {
		return TypeExpression{}, fmt.Errorf("invalid type name %q", s)
	}
	return TypeExpression{Name: s, BaseNullable: baseNullable, Wrappers: WrapperVectorOf(layers...)}, nil
}

func isName(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		if r == '_' || unicode.IsLetter(r) || (i > 0 && unicode.IsDigit(r)) {
			continue
		}
		return false
	}
	return true
}
