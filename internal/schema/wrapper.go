package schema

import (
	"strings"

	"github.com/bits-and-blooms/bitset"
)

// WrapperVector records the nullability of each list layer of a type
// expression, outermost layer at index 0. A set bit means the layer is nullable.
type WrapperVector struct {
	bits *bitset.BitSet
	n    int
}

// NewWrapperVector returns a vector of n non-nullable layers.
func NewWrapperVector(n int) WrapperVector {
	if n < 0 {
		n = 0
	}
	return WrapperVector{bits: bitset.New(uint(n)), n: n}
}

// WrapperVectorOf builds a vector from explicit per-layer nullability flags.
func WrapperVectorOf(nullable ...bool) WrapperVector {
	v := NewWrapperVector(len(nullable))
	for i, b := range nullable {
		v.set(i, b)
	}
	return v
}

// Len returns the number of list layers.
func (v WrapperVector) Len() int {
	return v.n
}

// Nullable reports whether the list layer at index i is nullable.
func (v WrapperVector) Nullable(i int) bool {
	if i < 0 || i >= v.n {
		panic("schema: wrapper index out of range")
	}
	return v.bits.Test(uint(i))
}

// set updates a single layer. Vectors are only mutated while the type
// expression that owns them is being built.
func (v *WrapperVector) set(i int, nullable bool) {
	if i < 0 || i >= v.n {
		panic("schema: wrapper index out of range")
	}
	v.bits.SetTo(uint(i), nullable)
}

// DropOutermost returns a new vector without layer 0.
func (v WrapperVector) DropOutermost() WrapperVector {
	if v.n == 0 {
		return v
	}
	out := NewWrapperVector(v.n - 1)
	for i := 1; i < v.n; i++ {
		if v.bits.Test(uint(i)) {
			out.bits.Set(uint(i - 1))
		}
	}
	return out
}

// Equal reports whether both vectors have the same length and bits.
func (v WrapperVector) Equal(o WrapperVector) bool {
	if v.n != o.n {
		return false
	}
	for i := 0; i < v.n; i++ {
		if v.bits.Test(uint(i)) != o.bits.Test(uint(i)) {
			return false
		}
	}
	return true
}

// Unparse renders the layers outer to inner followed by the base flag,
// using '?' for nullable and '!' for non-null.
func (v WrapperVector) Unparse(baseNullable bool) string {
	var sb strings.Builder
	sb.Grow(v.n + 1)
	for i := 0; i < v.n; i++ {
		sb.WriteByte(nullMark(v.bits.Test(uint(i))))
	}
	sb.WriteByte(nullMark(baseNullable))
	return sb.String()
}

func nullMark(nullable bool) byte {
	if nullable {
		return '?'
	}
	return '!'
}
