package decl

import "fmt"

// Op is an instruction opcode of a declaration body. Bodies are straight-line:
// there are no branches, so the operand stack shape is known statically.
type Op int

const (
	OpLoadThis Op = iota + 1
	OpLoadParam
	OpConstString
	OpConstInt
	OpConstNull
	OpGetField
	OpPutField
	OpGetStatic
	OpPutStatic
	OpInvokeVirtual
	OpInvokeSpecial
	OpInvokeStatic
	OpInvokeInterface
	OpNew
	OpDup
	OpPop
	OpCheckCast
	OpReturn
)

var opNames = map[Op]string{
	OpLoadThis:        "load_this",
	OpLoadParam:       "load_param",
	OpConstString:     "const_string",
	OpConstInt:        "const_int",
	OpConstNull:       "const_null",
	OpGetField:        "get_field",
	OpPutField:        "put_field",
	OpGetStatic:       "get_static",
	OpPutStatic:       "put_static",
	OpInvokeVirtual:   "invoke_virtual",
	OpInvokeSpecial:   "invoke_special",
	OpInvokeStatic:    "invoke_static",
	OpInvokeInterface: "invoke_interface",
	OpNew:             "new",
	OpDup:             "dup",
	OpPop:             "pop",
	OpCheckCast:       "checkcast",
	OpReturn:          "return",
}

func (o Op) String() string {
	if name, ok := opNames[o]; ok {
		return name
	}
	return fmt.Sprintf("op(%d)", int(o))
}

// Instr is one instruction. Which fields are meaningful depends on Op.
type Instr struct {
	Op     Op
	Owner  string    // dotted class name for field, invoke, new and checkcast
	Name   string    // field or method name
	Type   TypeRef   // field type
	Params []TypeRef // invoke parameter types
	Return TypeRef   // invoke return type
	Index  int       // parameter index for OpLoadParam
	Str    string
	Int    int32
}

// IsInvoke reports whether the instruction calls a method.
func (i Instr) IsInvoke() bool {
	switch i.Op {
	case OpInvokeVirtual, OpInvokeSpecial, OpInvokeStatic, OpInvokeInterface:
		return true
	}
	return false
}

func (i Instr) String() string {
	switch i.Op {
	case OpLoadParam:
		return fmt.Sprintf("%s %d", i.Op, i.Index)
	case OpConstString:
		return fmt.Sprintf("%s %q", i.Op, i.Str)
	case OpConstInt:
		return fmt.Sprintf("%s %d", i.Op, i.Int)
	case OpGetField, OpPutField, OpGetStatic, OpPutStatic:
		return fmt.Sprintf("%s %s.%s: %s", i.Op, i.Owner, i.Name, i.Type)
	case OpInvokeVirtual, OpInvokeSpecial, OpInvokeStatic, OpInvokeInterface:
		return fmt.Sprintf("%s %s.%s/%d", i.Op, i.Owner, i.Name, len(i.Params))
	case OpNew, OpCheckCast:
		return fmt.Sprintf("%s %s", i.Op, i.Owner)
	}
	return i.Op.String()
}

func LoadThis() Instr { return Instr{Op: OpLoadThis} }

func LoadParam(index int) Instr { return Instr{Op: OpLoadParam, Index: index} }

func ConstString(s string) Instr { return Instr{Op: OpConstString, Str: s} }

func ConstInt(v int32) Instr { return Instr{Op: OpConstInt, Int: v} }

func ConstNull() Instr { return Instr{Op: OpConstNull} }

func GetField(owner, name string, t TypeRef) Instr {
	return Instr{Op: OpGetField, Owner: owner, Name: name, Type: t}
}

func PutField(owner, name string, t TypeRef) Instr {
	return Instr{Op: OpPutField, Owner: owner, Name: name, Type: t}
}

func GetStatic(owner, name string, t TypeRef) Instr {
	return Instr{Op: OpGetStatic, Owner: owner, Name: name, Type: t}
}

func PutStatic(owner, name string, t TypeRef) Instr {
	return Instr{Op: OpPutStatic, Owner: owner, Name: name, Type: t}
}

// Invoke builds a call instruction.
func Invoke(op Op, owner, name string, ret TypeRef, params ...TypeRef) Instr {
	return Instr{Op: op, Owner: owner, Name: name, Return: ret, Params: params}
}

func New(owner string) Instr { return Instr{Op: OpNew, Owner: owner} }

func Dup() Instr { return Instr{Op: OpDup} }

func Pop() Instr { return Instr{Op: OpPop} }

func CheckCast(owner string) Instr { return Instr{Op: OpCheckCast, Owner: owner} }

func Return() Instr { return Instr{Op: OpReturn} }
