package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTypeExpression(t *testing.T) {
	tests := []struct {
		input    string
		name     string
		depth    int
		unparse  string
		nullable bool
	}{
		{input: "String", name: "String", depth: 0, unparse: "?", nullable: true},
		{input: "String!", name: "String", depth: 0, unparse: "!", nullable: false},
		{input: "[String!]", name: "String", depth: 1, unparse: "?!", nullable: true},
		{input: "[[String!]]", name: "String", depth: 2, unparse: "??!", nullable: true},
		{input: "[[User!]]!", name: "User", depth: 2, unparse: "!?!", nullable: false},
		{input: "[ [Int] ! ]", name: "Int", depth: 2, unparse: "?!?", nullable: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			expr, err := ParseTypeExpression(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.name, expr.Name)
			assert.Equal(t, tt.depth, expr.Depth())
			assert.Equal(t, tt.unparse, expr.Unparse())
			assert.Equal(t, tt.nullable, expr.Nullable())
		})
	}
}

func TestParseTypeExpression_Invalid(t *testing.T) {
	for _, input := range []string{"", "[String", "String]", "[]", "1Foo", "[Foo!"} {
		_, err := ParseTypeExpression(input)
		assert.Error(t, err, "input %q", input)
	}
}

func TestTypeExpression_StringRoundTrip(t *testing.T) {
	// Test: String re-renders the GraphQL syntax it was parsed from
	for _, input := range []string{"ID", "ID!", "[ID]", "[ID!]!", "[[ID]!]", "[[[Foo!]]!]!"} {
		expr, err := ParseTypeExpression(input)
		require.NoError(t, err)
		assert.Equal(t, input, expr.String())
	}
}

func TestTypeExpression_Inner(t *testing.T) {
	expr, err := ParseTypeExpression("[[String!]]!")
	require.NoError(t, err)

	inner := expr.Inner()
	assert.Equal(t, "[String!]", inner.String())
	assert.Equal(t, "String!", inner.Inner().String())
	assert.Equal(t, 2, expr.Depth(), "Inner must not modify the receiver")
}
