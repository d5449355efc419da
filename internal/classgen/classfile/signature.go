package classfile

import "strings"

// SigType is a generic type in the Signature attribute grammar.
type SigType struct {
	Base     string // primitive descriptor such as "I"; empty for references
	Internal string // class internal name
	Var      string // type variable name
	Args     []SigArg
}

// SigArg is a type argument. Wildcard is one of 0, '+', '-' or '*'.
type SigArg struct {
	Wildcard byte
	Type     *SigType
}

// SigParam is a formal type parameter with its bound. Interface bounds go
// in the interface-bound slot.
type SigParam struct {
	Name      string
	Bound     SigType
	Interface bool
}

// IsGeneric reports whether the type needs a Signature attribute to be
// described exactly.
func (t SigType) IsGeneric() bool {
	return t.Var != "" || len(t.Args) > 0
}

func (t SigType) write(sb *strings.Builder) {
	switch {
	case t.Base != "":
		sb.WriteString(t.Base)
	case t.Var != "":
		sb.WriteString("T" + t.Var + ";")
	default:
		sb.WriteString("L" + t.Internal)
		if len(t.Args) > 0 {
			sb.WriteByte('<')
			for _, a := range t.Args {
				if a.Wildcard == '*' {
					sb.WriteByte('*')
					continue
				}
				if a.Wildcard != 0 {
					sb.WriteByte(a.Wildcard)
				}
				a.Type.write(sb)
			}
			sb.WriteByte('>')
		}
		sb.WriteByte(';')
	}
}

func (t SigType) String() string {
	var sb strings.Builder
	t.write(&sb)
	return sb.String()
}

func writeParams(sb *strings.Builder, params []SigParam) {
	if len(params) == 0 {
		return
	}
	sb.WriteByte('<')
	for _, p := range params {
		sb.WriteString(p.Name)
		sb.WriteByte(':')
		if p.Interface {
			sb.WriteByte(':')
		}
		p.Bound.write(sb)
	}
	sb.WriteByte('>')
}

// ClassSignature renders a class signature.
func ClassSignature(params []SigParam, super SigType, ifaces []SigType) string {
	var sb strings.Builder
	writeParams(&sb, params)
	super.write(&sb)
	for _, i := range ifaces {
		i.write(&sb)
	}
	return sb.String()
}

// MethodSignature renders a method signature. A nil ret means void.
func MethodSignature(params []SigType, ret *SigType) string {
	var sb strings.Builder
	sb.WriteByte('(')
	for _, p := range params {
		p.write(&sb)
	}
	sb.WriteByte(')')
	if ret == nil {
		sb.WriteByte('V')
	} else {
		ret.write(&sb)
	}
	return sb.String()
}
