package source

import (
	"fmt"
	"strings"

	"github.com/okra-platform/kgql/internal/decl"
)

// frame is what a body can refer to by name.
type frame struct {
	params []string
	owner  string // class whose members `this` reaches
	field  string // property whose backing field is spelled `field` here
	unit   bool   // a bare trailing return is implied
}

// operand is one stack slot. A slot holding an object whose constructor has
// not run yet remembers its class in pending.
type operand struct {
	expr    string
	pending string
}

// statements replays a straight-line body on a stack of expressions and
// returns the statements it performs.
func (r *renderer) statements(code []decl.Instr, f frame) ([]string, error) {
	var (
		stack []operand
		out   []string
	)
	pop := func(n int) ([]operand, error) {
		if len(stack) < n {
			return nil, fmt.Errorf("stack underflow")
		}
		vals := append([]operand(nil), stack[len(stack)-n:]...)
		stack = stack[:len(stack)-n]
		return vals, nil
	}
	push := func(expr string) {
		stack = append(stack, operand{expr: expr})
	}

	for i, in := range code {
		switch in.Op {
		case decl.OpLoadThis:
			push("this")
		case decl.OpLoadParam:
			if in.Index < 0 || in.Index >= len(f.params) {
				return nil, fmt.Errorf("instruction %d: no parameter %d", i, in.Index)
			}
			push(ident(f.params[in.Index]))
		case decl.OpConstString:
			push(quote(in.Str))
		case decl.OpConstInt:
			push(fmt.Sprint(in.Int))
		case decl.OpConstNull:
			push("null")
		case decl.OpGetField:
			v, err := pop(1)
			if err != nil {
				return nil, fmt.Errorf("instruction %d: %w", i, err)
			}
			push(f.member(v[0].expr, in))
		case decl.OpPutField:
			v, err := pop(2)
			if err != nil {
				return nil, fmt.Errorf("instruction %d: %w", i, err)
			}
			out = append(out, f.member(v[0].expr, in)+" = "+v[1].expr)
		case decl.OpGetStatic:
			push(r.static(in))
		case decl.OpPutStatic:
			v, err := pop(1)
			if err != nil {
				return nil, fmt.Errorf("instruction %d: %w", i, err)
			}
			out = append(out, r.static(in)+" = "+v[0].expr)
		case decl.OpInvokeVirtual, decl.OpInvokeInterface, decl.OpInvokeStatic, decl.OpInvokeSpecial:
			args, err := pop(len(in.Params))
			if err != nil {
				return nil, fmt.Errorf("instruction %d: %w", i, err)
			}
			expr, err := r.invoke(in, args, &stack)
			if err != nil {
				return nil, fmt.Errorf("instruction %d: %w", i, err)
			}
			if expr == "" {
				continue
			}
			if in.Return.IsUnit() {
				out = append(out, expr)
			} else {
				push(expr)
			}
		case decl.OpNew:
			stack = append(stack, operand{pending: in.Owner})
		case decl.OpDup:
			if len(stack) == 0 {
				return nil, fmt.Errorf("instruction %d: stack underflow", i)
			}
			stack = append(stack, stack[len(stack)-1])
		case decl.OpPop:
			v, err := pop(1)
			if err != nil {
				return nil, fmt.Errorf("instruction %d: %w", i, err)
			}
			out = append(out, v[0].expr)
		case decl.OpCheckCast:
			v, err := pop(1)
			if err != nil {
				return nil, fmt.Errorf("instruction %d: %w", i, err)
			}
			push("(" + v[0].expr + " as " + className(in.Owner) + ")")
		case decl.OpReturn:
			if len(stack) == 0 {
				if !f.unit || i != len(code)-1 {
					out = append(out, "return")
				}
				continue
			}
			v, _ := pop(1)
			out = append(out, "return "+v[0].expr)
		default:
			return nil, fmt.Errorf("instruction %d: unsupported %s", i, in.Op)
		}
	}
	if len(stack) > 0 {
		return nil, fmt.Errorf("%d values left on the stack", len(stack))
	}
	return out, nil
}

// member spells a field access on recv.
func (f frame) member(recv string, in decl.Instr) string {
	if recv == "this" && in.Owner == f.owner && in.Name == f.field {
		return "field"
	}
	return recv + "." + ident(in.Name)
}

func (r *renderer) static(in decl.Instr) string {
	if c, ok := r.index[in.Owner]; ok && c.Kind == decl.KindSingleton && in.Name == "INSTANCE" {
		return className(in.Owner)
	}
	return className(in.Owner) + "." + ident(in.Name)
}

// invoke renders a call. Constructor calls complete the pending object on
// the stack instead of producing a value and return "".
func (r *renderer) invoke(in decl.Instr, args []operand, stack *[]operand) (string, error) {
	list := make([]string, len(args))
	for i, a := range args {
		if a.pending != "" {
			return "", fmt.Errorf("uninitialized %s used as argument", a.pending)
		}
		list[i] = a.expr
	}
	call := ident(in.Name) + "(" + strings.Join(list, ", ") + ")"

	if in.Op == decl.OpInvokeStatic {
		if pkg, ok := r.facades[in.Owner]; ok {
			if pkg == "" {
				return call, nil
			}
			return qualified(pkg) + "." + call, nil
		}
		return className(in.Owner) + "." + call, nil
	}

	s := *stack
	if len(s) == 0 {
		return "", fmt.Errorf("stack underflow")
	}
	recv := s[len(s)-1]
	s = s[:len(s)-1]
	*stack = s

	if in.Op == decl.OpInvokeSpecial && in.Name == "<init>" {
		if recv.pending == "" {
			return "", fmt.Errorf("explicit constructor delegation has no source form")
		}
		expr := className(recv.pending) + "(" + strings.Join(list, ", ") + ")"
		// The duplicated reference, if any, becomes the constructed value.
		if n := len(s); n > 0 && s[n-1].pending == recv.pending {
			s[n-1] = operand{expr: expr}
			return "", nil
		}
		return expr, nil
	}
	if recv.pending != "" {
		return "", fmt.Errorf("call on uninitialized %s", recv.pending)
	}
	if in.Op == decl.OpInvokeSpecial && recv.expr == "this" {
		return "super." + call, nil
	}
	return recv.expr + "." + call, nil
}
