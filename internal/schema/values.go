package schema

import (
	"fmt"
	"strconv"
	"strings"
)

// ValueKind tags a literal Value
type ValueKind int

const (
	ValueNull ValueKind = iota
	ValueInt
	ValueFloat
	ValueString
	ValueBoolean
	ValueEnum
	ValueList
	ValueObject
)

// Value is a GraphQL literal copied out of the parse tree.
type Value struct {
	Kind   ValueKind
	Int    int64
	Float  float64
	Str    string // string content or enum value name
	Bool   bool
	List   []Value
	Fields []ObjectField
}

// ObjectField is one entry of an object literal
type ObjectField struct {
	Name  string
	Value Value
}

// String renders the literal in GraphQL syntax.
func (v Value) String() string {
	switch v.Kind {
	case ValueNull:
		return "null"
	case ValueInt:
		return strconv.FormatInt(v.Int, 10)
	case ValueFloat:
		return strconv.FormatFloat(v.Float, 'g', -1, 64)
	case ValueString:
		return strconv.Quote(v.Str)
	case ValueBoolean:
		return strconv.FormatBool(v.Bool)
	case ValueEnum:
		return v.Str
	case ValueList:
		parts := make([]string, len(v.List))
		for i, e := range v.List {
			parts[i] = e.String()
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case ValueObject:
		parts := make([]string, len(v.Fields))
		for i, f := range v.Fields {
			parts[i] = f.Name + ": " + f.Value.String()
		}
		return "{" + strings.Join(parts, ", ") + "}"
	}
	return ""
}

// ValueConverter maps validated leaf literals into host values. def is the
// Scalar or Enum definition the literal was checked against.
type ValueConverter interface {
	Convert(def *TypeDefinition, v Value) (any, error)
}

// ValueConverterFunc adapts a function to ValueConverter
type ValueConverterFunc func(def *TypeDefinition, v Value) (any, error)

func (f ValueConverterFunc) Convert(def *TypeDefinition, v Value) (any, error) {
	return f(def, v)
}

// LiteralConverter is the default converter: built-in scalars become int64,
// float64, string or bool, enums become their value name and custom scalars
// keep the Go form of the literal.
type LiteralConverter struct{}

func (LiteralConverter) Convert(def *TypeDefinition, v Value) (any, error) {
	if def.Kind == KindEnum {
		if v.Kind != ValueEnum {
			return nil, fmt.Errorf("expected enum value of %s, got %s", def.Name, v)
		}
		return v.Str, nil
	}

	switch def.Name {
	case "Int":
		if v.Kind != ValueInt {
			return nil, fmt.Errorf("expected Int, got %s", v)
		}
		if v.Int > 1<<31-1 || v.Int < -1<<31 {
			return nil, fmt.Errorf("value %d out of 32-bit Int range", v.Int)
		}
		return v.Int, nil
	case "Float":
		switch v.Kind {
		case ValueInt:
			return float64(v.Int), nil
		case ValueFloat:
			return v.Float, nil
		}
		return nil, fmt.Errorf("expected Float, got %s", v)
	case "String":
		if v.Kind != ValueString {
			return nil, fmt.Errorf("expected String, got %s", v)
		}
		return v.Str, nil
	case "Boolean":
		if v.Kind != ValueBoolean {
			return nil, fmt.Errorf("expected Boolean, got %s", v)
		}
		return v.Bool, nil
	case "ID":
		switch v.Kind {
		case ValueString:
			return v.Str, nil
		case ValueInt:
			return strconv.FormatInt(v.Int, 10), nil
		}
		return nil, fmt.Errorf("expected ID, got %s", v)
	}
	return v.native(), nil
}

// native converts a literal to plain Go values without type information.
func (v Value) native() any {
	switch v.Kind {
	case ValueInt:
		return v.Int
	case ValueFloat:
		return v.Float
	case ValueString, ValueEnum:
		return v.Str
	case ValueBoolean:
		return v.Bool
	case ValueList:
		out := make([]any, len(v.List))
		for i, e := range v.List {
			out[i] = e.native()
		}
		return out
	case ValueObject:
		out := make(map[string]any, len(v.Fields))
		for _, f := range v.Fields {
			out[f.Name] = f.Value.native()
		}
		return out
	}
	return nil
}

// coerce validates a literal against a declared type and converts it. Input
// objects become map[string]any, lists []any; a non-list literal for a list
// type is wrapped in a one-element list.
func (g *Graph) coerce(v Value, expr TypeExpression, path string) (any, error) {
	if v.Kind == ValueNull {
		if !expr.Nullable() {
			return nil, invalidDefault(expr, path, fmt.Errorf("null for non-null type"))
		}
		return nil, nil
	}

	if expr.IsList() {
		inner := expr.Inner()
		if v.Kind != ValueList {
			item, err := g.coerce(v, inner, path)
			if err != nil {
				return nil, err
			}
			return []any{item}, nil
		}
		out := make([]any, len(v.List))
		for i, e := range v.List {
			item, err := g.coerce(e, inner, fmt.Sprintf("%s[%d]", path, i))
			if err != nil {
				return nil, err
			}
			out[i] = item
		}
		return out, nil
	}

	def, err := g.Resolve(expr.Name)
	if err != nil {
		return nil, err
	}

	switch def.Kind {
	case KindScalar:
		host, err := g.converter.Convert(def, v)
		if err != nil {
			return nil, invalidDefault(expr, path, err)
		}
		return host, nil
	case KindEnum:
		if v.Kind != ValueEnum || !def.HasEnumValue(v.Str) {
			return nil, invalidDefault(expr, path, fmt.Errorf("%s is not a value of %s", v, def.Name))
		}
		host, err := g.converter.Convert(def, v)
		if err != nil {
			return nil, invalidDefault(expr, path, err)
		}
		return host, nil
	case KindInput:
		if v.Kind != ValueObject {
			return nil, invalidDefault(expr, path, fmt.Errorf("expected object literal, got %s", v))
		}
		out := make(map[string]any, len(def.InputFields))
		seen := make(map[string]bool, len(v.Fields))
		for _, f := range v.Fields {
			field, ok := def.InputField(f.Name)
			if !ok {
				return nil, invalidDefault(expr, path, fmt.Errorf("%s has no field %s", def.Name, f.Name))
			}
			item, err := g.coerce(f.Value, field.Type, path+"."+f.Name)
			if err != nil {
				return nil, err
			}
			out[f.Name] = item
			seen[f.Name] = true
		}
		for _, field := range def.InputFields {
			if seen[field.Name] || field.Type.Nullable() || field.Default.IsSet() {
				continue
			}
			return nil, invalidDefault(expr, path, fmt.Errorf("missing required field %s", field.Name))
		}
		return out, nil
	case KindObject, KindInterface, KindUnion:
		return nil, invalidDefault(expr, path, fmt.Errorf("%s %s cannot hold a literal", def.Kind, def.Name))
	}
	return nil, invalidDefault(expr, path, fmt.Errorf("unhandled kind %s", def.Kind))
}

func invalidDefault(expr TypeExpression, path string, err error) error {
	return &SchemaError{Code: ErrorCodeInvalidDefault, Type: expr.String(), Context: path, Err: err}
}
