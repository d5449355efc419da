package classgen

import (
	"github.com/okra-platform/kgql/internal/classgen/classfile"
	"github.com/okra-platform/kgql/internal/decl"
)

// frame describes the locals of a body being compiled.
type frame struct {
	this   bool     // slot 0 holds the receiver
	params []string // parameter descriptors, after the receiver
	ret    string
}

func (f frame) slot(i int) int {
	n := 0
	if f.this {
		n = 1
	}
	for _, p := range f.params[:i] {
		n += classfile.Slots(p)
	}
	return n
}

func (f frame) locals() int {
	return f.slot(len(f.params))
}

// compile assembles a straight-line body. The assembler must share the
// target class file's pool.
func (sc *scope) compile(asm *classfile.Assembler, body []decl.Instr, f frame) error {
	var st operands
	for i, in := range body {
		if err := sc.instr(asm, in, f, &st); err != nil {
			return err
		}
		if in.Op == decl.OpReturn && i != len(body)-1 {
			return sc.invalid("instructions after return")
		}
	}
	return nil
}

// operands tracks the slot width of each value on the operand stack so
// that pop and dup pick the right form for long and double values.
type operands []int

func (o *operands) push(slots int) {
	if slots > 0 {
		*o = append(*o, slots)
	}
}

// pop drops n values and returns the width of the last one dropped.
func (o *operands) pop(n int) int {
	top := 1
	for ; n > 0 && len(*o) > 0; n-- {
		top = (*o)[len(*o)-1]
		*o = (*o)[:len(*o)-1]
	}
	return top
}

func (o operands) top() int {
	if len(o) == 0 {
		return 1
	}
	return o[len(o)-1]
}

func (sc *scope) instr(asm *classfile.Assembler, in decl.Instr, f frame, st *operands) error {
	switch in.Op {
	case decl.OpLoadThis:
		if !f.this {
			return sc.invalid("load_this in a body without receiver")
		}
		asm.Load("Ljava/lang/Object;", 0)
		st.push(1)
	case decl.OpLoadParam:
		if in.Index < 0 || in.Index >= len(f.params) {
			return sc.invalid("load_param %d out of range", in.Index)
		}
		asm.Load(f.params[in.Index], f.slot(in.Index))
		st.push(classfile.Slots(f.params[in.Index]))
	case decl.OpConstString:
		asm.ConstString(in.Str)
		st.push(1)
	case decl.OpConstInt:
		asm.ConstInt(in.Int)
		st.push(1)
	case decl.OpConstNull:
		asm.ConstNull()
		st.push(1)
	case decl.OpGetField, decl.OpPutField, decl.OpGetStatic, decl.OpPutStatic:
		owner, err := sc.s.resolve(in.Owner, sc.owner)
		if err != nil {
			return err
		}
		desc, err := sc.descriptor(in.Type)
		if err != nil {
			return err
		}
		asm.Field(fieldOps[in.Op], owner.internal, in.Name, desc)
		switch in.Op {
		case decl.OpGetField:
			st.pop(1)
			st.push(classfile.Slots(desc))
		case decl.OpGetStatic:
			st.push(classfile.Slots(desc))
		case decl.OpPutField:
			st.pop(2)
		case decl.OpPutStatic:
			st.pop(1)
		}
	case decl.OpInvokeVirtual, decl.OpInvokeSpecial, decl.OpInvokeStatic, decl.OpInvokeInterface:
		owner, err := sc.s.resolve(in.Owner, sc.owner)
		if err != nil {
			return err
		}
		if (in.Op == decl.OpInvokeInterface) != owner.iface && in.Op != decl.OpInvokeStatic && in.Op != decl.OpInvokeSpecial {
			return sc.invalid("%s on %s", in.Op, in.Owner)
		}
		params := make([]decl.Param, len(in.Params))
		for i, p := range in.Params {
			params[i] = decl.Param{Type: p}
		}
		mt, err := sc.method(params, in.Return)
		if err != nil {
			return err
		}
		asm.Invoke(invokeOps[in.Op], owner.internal, in.Name, mt.desc, owner.iface)
		args := len(mt.params)
		if in.Op != decl.OpInvokeStatic {
			args++
		}
		st.pop(args)
		if mt.ret != "V" {
			st.push(classfile.Slots(mt.ret))
		}
	case decl.OpNew, decl.OpCheckCast:
		owner, err := sc.s.resolve(in.Owner, sc.owner)
		if err != nil {
			return err
		}
		if in.Op == decl.OpNew {
			asm.New(owner.internal)
			st.push(1)
		} else {
			asm.CheckCast(owner.internal)
		}
	case decl.OpDup:
		if st.top() != 1 {
			return sc.invalid("dup of a two-slot value")
		}
		asm.Dup()
		st.push(1)
	case decl.OpPop:
		asm.Pop(st.pop(1))
	case decl.OpReturn:
		if asm.Depth() < classfile.Slots(f.ret) {
			return sc.invalid("return without a value")
		}
		asm.Return(f.ret)
		st.pop(1)
	default:
		return sc.invalid("unsupported instruction %s", in.Op)
	}
	return nil
}

var fieldOps = map[decl.Op]byte{
	decl.OpGetField:  classfile.OpGetField,
	decl.OpPutField:  classfile.OpPutField,
	decl.OpGetStatic: classfile.OpGetStatic,
	decl.OpPutStatic: classfile.OpPutStatic,
}

var invokeOps = map[decl.Op]byte{
	decl.OpInvokeVirtual:   classfile.OpInvokeVirtual,
	decl.OpInvokeSpecial:   classfile.OpInvokeSpecial,
	decl.OpInvokeStatic:    classfile.OpInvokeStatic,
	decl.OpInvokeInterface: classfile.OpInvokeInterface,
}

// endsWithReturn reports whether a body already ends in a return.
func endsWithReturn(body []decl.Instr) bool {
	return len(body) > 0 && body[len(body)-1].Op == decl.OpReturn
}
