package dsl

import (
	"strings"

	"github.com/okra-platform/kgql/internal/decl"
)

const (
	stringBuilderClass = "java.lang.StringBuilder"
	// LiteralsClass is the runtime helper rendering argument values as
	// GraphQL literals: null, quoted and escaped strings, lists and the
	// toString form of anything else.
	LiteralsClass = "kgql.runtime.Literals"
)

var (
	stringBuilderType = decl.ClassType(stringBuilderClass)
	stringType        = decl.ClassType(decl.String)
	unitType          = decl.ClassType(decl.Unit)
	intType           = decl.ClassType(decl.Int)
	anyType           = decl.ClassType(decl.Any).AsNullable(true)
)

// scalars are the non-null types whose StringBuilder.append form is already
// a valid GraphQL literal.
var scalars = map[string]bool{
	decl.Int:     true,
	decl.Long:    true,
	decl.Double:  true,
	decl.Boolean: true,
}

func isScalar(t decl.TypeRef) bool {
	return !t.IsParam() && !t.Nullable && len(t.Args) == 0 && scalars[t.Class]
}

func renderCall() decl.Instr {
	return decl.Invoke(decl.OpInvokeStatic, LiteralsClass, "render", stringType, anyType)
}

func appendCall(arg decl.TypeRef) decl.Instr {
	return decl.Invoke(decl.OpInvokeVirtual, stringBuilderClass, "append", stringBuilderType, arg)
}

// chain accumulates a body that appends to a StringBuilder on the stack.
// Adjacent literal text is merged into one constant.
type chain struct {
	code    []decl.Instr
	pending strings.Builder
}

func (c *chain) text(s string) {
	c.pending.WriteString(s)
}

// value appends the value pushed by load as a GraphQL literal.
func (c *chain) value(t decl.TypeRef, load ...decl.Instr) {
	c.flush()
	c.code = append(c.code, load...)
	if isScalar(t) {
		c.code = append(c.code, appendCall(t))
		return
	}
	c.code = append(c.code, renderCall(), appendCall(stringType))
}

func (c *chain) flush() {
	if c.pending.Len() == 0 {
		return
	}
	c.code = append(c.code, decl.ConstString(c.pending.String()), appendCall(stringType))
	c.pending.Reset()
}

func (c *chain) emit(in ...decl.Instr) {
	c.flush()
	c.code = append(c.code, in...)
}

func (c *chain) instrs() []decl.Instr {
	c.flush()
	return c.code
}

// loadSelection pushes this.selection of a builder class.
func loadSelection(owner string) []decl.Instr {
	return []decl.Instr{decl.LoadThis(), decl.GetField(owner, selectionProperty, stringBuilderType)}
}

// newBuilder constructs a builder class around the StringBuilder produced by
// the instructions in arg.
func newBuilder(class string, arg ...decl.Instr) []decl.Instr {
	out := []decl.Instr{decl.New(class), decl.Dup()}
	out = append(out, arg...)
	return append(out, decl.Invoke(decl.OpInvokeSpecial, class, "<init>", unitType, stringBuilderType))
}

// newStringBuilder pushes a StringBuilder initialized with s.
func newStringBuilder(s string) []decl.Instr {
	return []decl.Instr{
		decl.New(stringBuilderClass),
		decl.Dup(),
		decl.ConstString(s),
		decl.Invoke(decl.OpInvokeSpecial, stringBuilderClass, "<init>", unitType, stringType),
	}
}

func toStringCall() decl.Instr {
	return decl.Invoke(decl.OpInvokeVirtual, stringBuilderClass, "toString", stringType)
}
