package decl

import (
	"fmt"
	"strings"
)

// NotAssignableError reports a setter type that does not conform to the read
// type of its property. Path lists the type-argument indices leading from the
// outermost type to the first mismatch.
type NotAssignableError struct {
	Property string
	From     TypeRef
	To       TypeRef
	Path     []int
}

// Error implements the error interface
func (e *NotAssignableError) Error() string {
	return fmt.Sprintf("property %s: %s is not assignable to %s at %s", e.Property, e.From, e.To, FormatPath(e.Path))
}

// FormatPath renders an argument path such as [0][1]; the empty path is "$".
func FormatPath(path []int) string {
	if len(path) == 0 {
		return "$"
	}
	var sb strings.Builder
	sb.WriteByte('$')
	for _, i := range path {
		fmt.Fprintf(&sb, "[%d]", i)
	}
	return sb.String()
}

// Assignable checks structurally whether a value of type from can be stored
// where to is expected: same classifier and argument count, nullability only
// widening, and arguments respecting the declared variance. kotlin.Any
// accepts every classifier. On failure it returns the path to the mismatch.
func Assignable(from, to TypeRef) ([]int, bool) {
	return assignable(from, to, nil)
}

func assignable(from, to TypeRef, path []int) ([]int, bool) {
	if from.Nullable && !to.Nullable {
		return path, false
	}
	if to.Class == Any && len(to.Args) == 0 {
		return nil, true
	}
	if from.IsParam() || to.IsParam() {
		if from.IsParam() && to.IsParam() && from.Param == to.Param {
			return nil, true
		}
		return path, false
	}
	if from.Class != to.Class || len(from.Args) != len(to.Args) {
		return path, false
	}

	for i := range to.Args {
		fa, ta := from.Args[i], to.Args[i]
		argPath := append(append([]int(nil), path...), i)
		if ta.Type == nil {
			continue
		}
		if fa.Type == nil {
			return argPath, false
		}
		switch ta.Variance {
		case Invariant:
			if fa.Variance != Invariant {
				return argPath, false
			}
			if p, ok := sameType(*fa.Type, *ta.Type, argPath); !ok {
				return p, false
			}
		case Covariant:
			if fa.Variance == Contravariant {
				return argPath, false
			}
			if p, ok := assignable(*fa.Type, *ta.Type, argPath); !ok {
				return p, false
			}
		case Contravariant:
			if fa.Variance == Covariant {
				return argPath, false
			}
			if p, ok := assignable(*ta.Type, *fa.Type, argPath); !ok {
				return p, false
			}
		}
	}
	return nil, true
}

// sameType locates the first difference between two types that must match
// exactly.
func sameType(a, b TypeRef, path []int) ([]int, bool) {
	if a.Class != b.Class || a.Nullable != b.Nullable || len(a.Args) != len(b.Args) || a.IsParam() != b.IsParam() {
		return path, false
	}
	if a.IsParam() && a.Param != b.Param {
		return path, false
	}
	for i := range a.Args {
		argPath := append(append([]int(nil), path...), i)
		x, y := a.Args[i], b.Args[i]
		if x.Variance != y.Variance || (x.Type == nil) != (y.Type == nil) {
			return argPath, false
		}
		if x.Type != nil {
			if p, ok := sameType(*x.Type, *y.Type, argPath); !ok {
				return p, false
			}
		}
	}
	return nil, true
}
