package schema

import (
	"fmt"
	"math/rand"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrapperVector_PropertyRoundTrip(t *testing.T) {
	// Test: For random lengths and bit patterns, reading every index
	// reproduces the pattern, and dropping the outermost layer N times
	// yields an empty vector.
	rng := rand.New(rand.NewSource(42))

	for i := range 200 {
		n := rng.Intn(70)
		pattern := make([]bool, n)
		for j := range pattern {
			pattern[j] = rng.Intn(2) == 1
		}

		t.Run(fmt.Sprintf("pattern_%d_len_%d", i, n), func(t *testing.T) {
			v := WrapperVectorOf(pattern...)
			require.Equal(t, n, v.Len())
			for j, b := range pattern {
				assert.Equal(t, b, v.Nullable(j), "index %d", j)
			}

			cur := v
			for step := 0; step < n; step++ {
				cur = cur.DropOutermost()
				require.Equal(t, n-step-1, cur.Len())
				for j := 0; j < cur.Len(); j++ {
					assert.Equal(t, pattern[j+step+1], cur.Nullable(j))
				}
			}
			assert.Equal(t, 0, cur.Len())
		})
	}
}

func TestWrapperVector_DropDoesNotMutate(t *testing.T) {
	// Test: DropOutermost returns an independent vector
	v := WrapperVectorOf(true, false, true)
	inner := v.DropOutermost()
	inner.set(0, true)

	assert.False(t, v.Nullable(1))
	assert.True(t, inner.Nullable(0))
	assert.Equal(t, 3, v.Len())
}

func TestWrapperVector_Unparse(t *testing.T) {
	tests := []struct {
		name         string
		layers       []bool
		baseNullable bool
		want         string
	}{
		{name: "outer non-null, inner nullable, base non-null", layers: []bool{false, true}, baseNullable: false, want: "!?!"},
		{name: "bare nullable", layers: nil, baseNullable: true, want: "?"},
		{name: "bare non-null", layers: nil, baseNullable: false, want: "!"},
		{name: "three layers", layers: []bool{true, true, false}, baseNullable: true, want: "??!?"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := WrapperVectorOf(tt.layers...)
			assert.Equal(t, tt.want, v.Unparse(tt.baseNullable))
		})
	}
}

func TestWrapperVector_IndexOutOfRange(t *testing.T) {
	// Test: Reads beyond the depth panic instead of returning garbage
	v := NewWrapperVector(2)
	assert.Panics(t, func() { v.Nullable(2) })
	assert.Panics(t, func() { v.set(-1, true) })
}

func TestWrapperVector_Equal(t *testing.T) {
	assert.True(t, WrapperVectorOf(true, false).Equal(WrapperVectorOf(true, false)))
	assert.False(t, WrapperVectorOf(true, false).Equal(WrapperVectorOf(true, true)))
	assert.False(t, WrapperVectorOf(true).Equal(WrapperVectorOf(true, true)))
	assert.True(t, NewWrapperVector(0).Equal(WrapperVectorOf()))
}

func TestWrapperVector_ReadOnlyAPI(t *testing.T) {
	// Test: copies share their bits, so no exported method may write them
	assert.Equal(t, reflect.TypeOf(WrapperVector{}).NumMethod(), reflect.TypeOf(&WrapperVector{}).NumMethod())

	a := WrapperVectorOf(false, true)
	b := a
	c := b.DropOutermost()
	assert.Equal(t, "!?!", a.Unparse(false))
	assert.Equal(t, "?!", c.Unparse(false))
}
