package binary

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/okra-platform/kgql/internal/classgen"
	"github.com/okra-platform/kgql/internal/classgen/classfile"
	"github.com/okra-platform/kgql/internal/decl"
)

func roleTree() *decl.Tree {
	return &decl.Tree{
		Module: "api",
		Classes: []*decl.ClassDeclaration{
			{
				Name:        "com.example.api.Role",
				Kind:        decl.KindEnum,
				Visibility:  decl.Public,
				EnumEntries: []string{"ADMIN", "USER"},
			},
		},
	}
}

func TestGenerator_Generate(t *testing.T) {
	// Test: artifacts come back keyed by path with the configured version
	g := NewGenerator(zerolog.Nop(), classgen.WithClassVersion(61))
	assert.Equal(t, "binary", g.Name())

	files, err := g.Generate(roleTree())
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Contains(t, files, "META-INF/api.kgql_module")

	data, ok := files["com/example/api/Role.class"]
	require.True(t, ok)
	cf, err := classfile.Parse(data)
	require.NoError(t, err)
	assert.Equal(t, uint16(61), cf.Major)
	assert.Equal(t, "com/example/api/Role", cf.This)
}

func TestGenerator_SynthesisError(t *testing.T) {
	tree := roleTree()
	tree.Classes = append(tree.Classes, tree.Classes[0])

	_, err := NewGenerator(zerolog.Nop()).Generate(tree)
	require.Error(t, err)
	assert.ErrorIs(t, err, classgen.ErrDuplicateClass)
}
