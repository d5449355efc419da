package classfile

import (
	"encoding/binary"
	"errors"
	"fmt"

	"fortio.org/safecast"
)

// Opcodes used by straight-line bodies
const (
	OpAConstNull      byte = 0x01
	OpIConstM1        byte = 0x02
	OpIConst0         byte = 0x03
	OpIConst5         byte = 0x08
	OpBIPush          byte = 0x10
	OpSIPush          byte = 0x11
	OpLdc             byte = 0x12
	OpLdcW            byte = 0x13
	OpILoad           byte = 0x15
	OpLLoad           byte = 0x16
	OpFLoad           byte = 0x17
	OpDLoad           byte = 0x18
	OpALoad           byte = 0x19
	OpAAStore         byte = 0x53
	OpPop             byte = 0x57
	OpPop2            byte = 0x58
	OpDup             byte = 0x59
	OpIReturn         byte = 0xac
	OpLReturn         byte = 0xad
	OpFReturn         byte = 0xae
	OpDReturn         byte = 0xaf
	OpAReturn         byte = 0xb0
	OpReturn          byte = 0xb1
	OpGetStatic       byte = 0xb2
	OpPutStatic       byte = 0xb3
	OpGetField        byte = 0xb4
	OpPutField        byte = 0xb5
	OpInvokeVirtual   byte = 0xb6
	OpInvokeSpecial   byte = 0xb7
	OpInvokeStatic    byte = 0xb8
	OpInvokeInterface byte = 0xb9
	OpNew             byte = 0xbb
	OpANewArray       byte = 0xbd
	OpCheckCast       byte = 0xc0
)

var ErrStackUnderflow = errors.New("classfile: operand stack underflow")

// Assembler emits straight-line bytecode and tracks the operand stack depth
// so that max_stack is exact.
type Assembler struct {
	pool      *Pool
	buf       []byte
	depth     int
	maxDepth  int
	maxLocals int
	err       error
}

// NewAssembler starts a body whose parameters (including the receiver)
// occupy locals slots.
func NewAssembler(pool *Pool, locals int) *Assembler {
	return &Assembler{pool: pool, maxLocals: locals}
}

func (a *Assembler) fail(err error) {
	if a.err == nil {
		a.err = err
	}
}

func (a *Assembler) adjust(delta int) {
	a.depth += delta
	if a.depth < 0 {
		a.fail(ErrStackUnderflow)
		a.depth = 0
	}
	if a.depth > a.maxDepth {
		a.maxDepth = a.depth
	}
}

func (a *Assembler) emitRef(op byte, i uint16, err error) {
	if err != nil {
		a.fail(err)
		return
	}
	a.buf = append(a.buf, op)
	a.buf = binary.BigEndian.AppendUint16(a.buf, i)
}

// Load pushes local slot of type desc.
func (a *Assembler) Load(desc string, slot int) {
	op := loadOp(desc)
	if slot <= 3 {
		a.buf = append(a.buf, shortLoadBase(op)+byte(slot))
	} else {
		s, err := safecast.Conv[uint8](slot)
		if err != nil {
			a.fail(fmt.Errorf("classfile: local slot %d out of range", slot))
			return
		}
		a.buf = append(a.buf, op, s)
	}
	if slot+Slots(desc) > a.maxLocals {
		a.maxLocals = slot + Slots(desc)
	}
	a.adjust(Slots(desc))
}

func shortLoadBase(op byte) byte {
	// iload_0 = 0x1a, lload_0 = 0x1e, fload_0 = 0x22, dload_0 = 0x26, aload_0 = 0x2a
	return 0x1a + (op-OpILoad)*4
}

// ConstNull pushes null.
func (a *Assembler) ConstNull() {
	a.buf = append(a.buf, OpAConstNull)
	a.adjust(1)
}

// ConstInt pushes an int using the shortest encoding.
func (a *Assembler) ConstInt(v int32) {
	switch {
	case v >= -1 && v <= 5:
		a.buf = append(a.buf, byte(int32(OpIConst0)+v))
	case v >= -128 && v <= 127:
		a.buf = append(a.buf, OpBIPush, byte(int8(v)))
	case v >= -32768 && v <= 32767:
		a.buf = append(a.buf, OpSIPush)
		a.buf = binary.BigEndian.AppendUint16(a.buf, uint16(int16(v)))
	default:
		i, err := a.pool.Integer(v)
		a.ldc(i, err)
	}
	a.adjust(1)
}

// ConstString pushes a string literal.
func (a *Assembler) ConstString(s string) {
	i, err := a.pool.String(s)
	a.ldc(i, err)
	a.adjust(1)
}

// ConstClass pushes a class literal.
func (a *Assembler) ConstClass(internal string) {
	i, err := a.pool.Class(internal)
	a.ldc(i, err)
	a.adjust(1)
}

func (a *Assembler) ldc(i uint16, err error) {
	if err != nil {
		a.fail(err)
		return
	}
	if i <= 0xFF {
		a.buf = append(a.buf, OpLdc, byte(i))
		return
	}
	a.emitRef(OpLdcW, i, nil)
}

// Field emits getfield, putfield, getstatic or putstatic.
func (a *Assembler) Field(op byte, owner, name, desc string) {
	i, err := a.pool.Member(TagFieldref, owner, name, desc)
	a.emitRef(op, i, err)
	size := Slots(desc)
	switch op {
	case OpGetStatic:
		a.adjust(size)
	case OpPutStatic:
		a.adjust(-size)
	case OpGetField:
		a.adjust(size - 1)
	case OpPutField:
		a.adjust(-size - 1)
	default:
		a.fail(fmt.Errorf("classfile: opcode 0x%02x is not a field access", op))
	}
}

// Invoke emits a method call. Interface owners need OpInvokeInterface or a
// static/special call on an interface method reference.
func (a *Assembler) Invoke(op byte, owner, name, desc string, iface bool) {
	tag := TagMethodref
	if iface {
		tag = TagInterfaceMethodref
	}
	i, err := a.pool.Member(tag, owner, name, desc)
	a.emitRef(op, i, err)

	args, aerr := ArgSlots(desc)
	if aerr != nil {
		a.fail(aerr)
		return
	}
	_, ret, _ := ParseMethodDescriptor(desc)
	if op == OpInvokeInterface {
		n, err := safecast.Conv[uint8](args + 1)
		if err != nil {
			a.fail(err)
			return
		}
		a.buf = append(a.buf, n, 0)
	}
	if op != OpInvokeStatic {
		args++
	}
	a.adjust(-args)
	a.adjust(Slots(ret))
}

// New allocates an uninitialized instance.
func (a *Assembler) New(internal string) {
	i, err := a.pool.Class(internal)
	a.emitRef(OpNew, i, err)
	a.adjust(1)
}

// ANewArray pops a length and pushes a reference array.
func (a *Assembler) ANewArray(internal string) {
	i, err := a.pool.Class(internal)
	a.emitRef(OpANewArray, i, err)
	a.adjust(-1)
	a.adjust(1)
}

// CheckCast narrows the reference on top of the stack.
func (a *Assembler) CheckCast(internal string) {
	i, err := a.pool.Class(internal)
	a.emitRef(OpCheckCast, i, err)
	a.adjust(-1)
	a.adjust(1)
}

// Dup duplicates a one-slot value.
func (a *Assembler) Dup() {
	a.buf = append(a.buf, OpDup)
	a.adjust(-1)
	a.adjust(2)
}

// Pop discards a value of the given slot size.
func (a *Assembler) Pop(size int) {
	if size == 2 {
		a.buf = append(a.buf, OpPop2)
	} else {
		a.buf = append(a.buf, OpPop)
	}
	a.adjust(-size)
}

// ArrayStore emits aastore.
func (a *Assembler) ArrayStore() {
	a.buf = append(a.buf, OpAAStore)
	a.adjust(-3)
}

// Return emits the return instruction for a method returning desc.
func (a *Assembler) Return(desc string) {
	a.buf = append(a.buf, returnOp(desc))
	a.adjust(-Slots(desc))
}

// Depth is the current operand stack depth.
func (a *Assembler) Depth() int {
	return a.depth
}

// Code finishes the body.
func (a *Assembler) Code() (*Code, error) {
	if a.err != nil {
		return nil, a.err
	}
	stack, err := safecast.Conv[uint16](a.maxDepth)
	if err != nil {
		return nil, fmt.Errorf("classfile: max stack %d exceeds u2", a.maxDepth)
	}
	locals, err := safecast.Conv[uint16](a.maxLocals)
	if err != nil {
		return nil, fmt.Errorf("classfile: max locals %d exceeds u2", a.maxLocals)
	}
	return &Code{MaxStack: stack, MaxLocals: locals, Bytes: a.buf}, nil
}

// CheckCode simulates the operand stack of a straight-line method body and
// checks it against the declared limits and the method descriptor.
func CheckCode(m *Member, pool *Pool) error {
	if m.Code == nil {
		if m.Access&AccAbstract == 0 {
			return fmt.Errorf("%s%s: concrete method without code", m.Name, m.Descriptor)
		}
		return nil
	}
	params, err := ArgSlots(m.Descriptor)
	if err != nil {
		return err
	}
	if !m.IsStatic() {
		params++
	}
	c := m.Code
	if int(c.MaxLocals) < params {
		return fmt.Errorf("%s%s: max_locals %d below parameter slots %d", m.Name, m.Descriptor, c.MaxLocals, params)
	}
	_, ret, err := ParseMethodDescriptor(m.Descriptor)
	if err != nil {
		return err
	}

	depth := 0
	fail := func(pc int, format string, args ...any) error {
		return fmt.Errorf("%s%s at pc %d: %s", m.Name, m.Descriptor, pc, fmt.Sprintf(format, args...))
	}
	r := &reader{data: c.Bytes}
	for r.pos < len(c.Bytes) {
		pc := r.pos
		op := r.u1()
		delta, local, err := stackEffect(op, r, pool)
		if err != nil {
			return fail(pc, "%v", err)
		}
		if local >= 0 && local >= int(c.MaxLocals) {
			return fail(pc, "local %d beyond max_locals %d", local, c.MaxLocals)
		}
		if isReturn(op) {
			if op != returnOp(ret) {
				return fail(pc, "return opcode 0x%02x does not match %s", op, ret)
			}
			if depth < Slots(ret) {
				return fail(pc, "return with %d stack slots", depth)
			}
			if r.pos != len(c.Bytes) {
				return fail(pc, "code after return")
			}
			return nil
		}
		if depth < delta.pop {
			return fail(pc, "stack underflow")
		}
		depth += delta.push - delta.pop
		if depth > int(c.MaxStack) {
			return fail(pc, "stack depth %d exceeds max_stack %d", depth, c.MaxStack)
		}
	}
	return fmt.Errorf("%s%s: body does not end with a return", m.Name, m.Descriptor)
}

type effect struct{ pop, push int }

func isReturn(op byte) bool {
	return op >= OpIReturn && op <= OpReturn
}

// stackEffect decodes the operands of op and returns its stack effect and,
// for loads, the local slot read.
func stackEffect(op byte, r *reader, pool *Pool) (effect, int, error) {
	switch {
	case op == OpAConstNull || (op >= OpIConstM1 && op <= OpIConst5):
		return effect{push: 1}, -1, nil
	case op == OpBIPush:
		r.u1()
		return effect{push: 1}, -1, r.err
	case op == OpSIPush:
		r.u2()
		return effect{push: 1}, -1, r.err
	case op == OpLdc:
		_, err := pool.Get(uint16(r.u1()))
		return effect{push: 1}, -1, err
	case op == OpLdcW:
		_, err := pool.Get(r.u2())
		return effect{push: 1}, -1, err
	case op >= OpILoad && op <= OpALoad:
		slot := int(r.u1())
		n := 1
		if op == OpLLoad || op == OpDLoad {
			n = 2
		}
		return effect{push: n}, slot + n - 1, r.err
	case op >= 0x1a && op <= 0x2d:
		kind := (op - 0x1a) / 4
		slot := int((op - 0x1a) % 4)
		n := 1
		if kind == 1 || kind == 3 {
			n = 2
		}
		return effect{push: n}, slot + n - 1, nil
	case op == OpAAStore:
		return effect{pop: 3}, -1, nil
	case op == OpPop:
		return effect{pop: 1}, -1, nil
	case op == OpPop2:
		return effect{pop: 2}, -1, nil
	case op == OpDup:
		return effect{pop: 1, push: 2}, -1, nil
	case isReturn(op):
		return effect{}, -1, nil
	case op >= OpGetStatic && op <= OpPutField:
		ref, err := pool.MemberAt(r.u2())
		if err != nil {
			return effect{}, -1, err
		}
		size := Slots(ref.Descriptor)
		switch op {
		case OpGetStatic:
			return effect{push: size}, -1, nil
		case OpPutStatic:
			return effect{pop: size}, -1, nil
		case OpGetField:
			return effect{pop: 1, push: size}, -1, nil
		}
		return effect{pop: 1 + size}, -1, nil
	case op >= OpInvokeVirtual && op <= OpInvokeInterface:
		ref, err := pool.MemberAt(r.u2())
		if err != nil {
			return effect{}, -1, err
		}
		if op == OpInvokeInterface {
			r.u1()
			r.u1()
		}
		args, err := ArgSlots(ref.Descriptor)
		if err != nil {
			return effect{}, -1, err
		}
		_, ret, _ := ParseMethodDescriptor(ref.Descriptor)
		if op != OpInvokeStatic {
			args++
		}
		return effect{pop: args, push: Slots(ret)}, -1, r.err
	case op == OpNew:
		_, err := pool.ClassAt(r.u2())
		return effect{push: 1}, -1, err
	case op == OpANewArray || op == OpCheckCast:
		_, err := pool.ClassAt(r.u2())
		return effect{pop: 1, push: 1}, -1, err
	}
	return effect{}, -1, fmt.Errorf("unsupported opcode 0x%02x", op)
}
