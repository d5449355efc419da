package classfile

import (
	"fmt"
	"strings"
)

// MethodDescriptor joins parameter and return descriptors.
func MethodDescriptor(params []string, ret string) string {
	var sb strings.Builder
	sb.WriteByte('(')
	for _, p := range params {
		sb.WriteString(p)
	}
	sb.WriteByte(')')
	sb.WriteString(ret)
	return sb.String()
}

// ObjectDescriptor is the field descriptor of a class type.
func ObjectDescriptor(internal string) string {
	return "L" + internal + ";"
}

// ParseMethodDescriptor splits a method descriptor into its parameter and
// return descriptors.
func ParseMethodDescriptor(desc string) ([]string, string, error) {
	if !strings.HasPrefix(desc, "(") {
		return nil, "", fmt.Errorf("classfile: bad method descriptor %q", desc)
	}
	var params []string
	rest := desc[1:]
	for !strings.HasPrefix(rest, ")") {
		n, err := fieldLength(rest)
		if err != nil {
			return nil, "", fmt.Errorf("classfile: bad method descriptor %q: %w", desc, err)
		}
		params = append(params, rest[:n])
		rest = rest[n:]
	}
	ret := rest[1:]
	if ret != "V" {
		n, err := fieldLength(ret)
		if err != nil || n != len(ret) {
			return nil, "", fmt.Errorf("classfile: bad return descriptor in %q", desc)
		}
	}
	return params, ret, nil
}

func fieldLength(s string) (int, error) {
	if s == "" {
		return 0, fmt.Errorf("unexpected end")
	}
	switch s[0] {
	case 'B', 'C', 'D', 'F', 'I', 'J', 'S', 'Z':
		return 1, nil
	case 'L':
		i := strings.IndexByte(s, ';')
		if i < 0 {
			return 0, fmt.Errorf("unterminated class type")
		}
		return i + 1, nil
	case '[':
		n, err := fieldLength(s[1:])
		return n + 1, err
	}
	return 0, fmt.Errorf("unexpected %q", s[0])
}

// Slots is the number of local or stack slots a value of desc occupies.
func Slots(desc string) int {
	switch desc {
	case "V":
		return 0
	case "J", "D":
		return 2
	}
	return 1
}

// ArgSlots is the total slot count of the parameters of a method descriptor.
func ArgSlots(desc string) (int, error) {
	params, _, err := ParseMethodDescriptor(desc)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, p := range params {
		n += Slots(p)
	}
	return n, nil
}

func loadOp(desc string) byte {
	switch desc {
	case "I", "Z", "B", "C", "S":
		return OpILoad
	case "J":
		return OpLLoad
	case "F":
		return OpFLoad
	case "D":
		return OpDLoad
	}
	return OpALoad
}

func returnOp(desc string) byte {
	switch desc {
	case "V":
		return OpReturn
	case "I", "Z", "B", "C", "S":
		return OpIReturn
	case "J":
		return OpLReturn
	case "F":
		return OpFReturn
	case "D":
		return OpDReturn
	}
	return OpAReturn
}
