package typemap

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/okra-platform/kgql/internal/decl"
	"github.com/okra-platform/kgql/internal/schema"
)

const testSchema = `
interface Node {
  id: ID!
}

type User implements Node {
  id: ID!
  name: String!
  tags: [[String!]]
  best: Post
  posts(first: Int, filter: [PostFilter], owner: MyObject, owners: [MyObject]): PostConnection
}

type Post {
  id: ID!
  title: String
  author: User
}

type Comment {
  text: String
}

type MyObject {
  value: Int
}

type PostConnection {
  edges: [Post]
  pageInfo: PageInfo!
}

type PageInfo {
  hasNextPage: Boolean!
}

enum Role { ADMIN USER }

input PostFilter {
  title: String
  authorId: ID @identity(type: "User")
  role: Role
  blob: JSON
  ids: [[ID!]!]
}

scalar JSON
scalar Money
`

func newMapper(t *testing.T, cfg Config) (*Mapper, *schema.Graph) {
	t.Helper()
	g, err := schema.ParseSchema(testSchema, schema.Options{})
	require.NoError(t, err)
	if cfg.Namespace == "" {
		cfg.Namespace = "com.example.api"
	}
	return New(g, cfg), g
}

func mustExpr(t *testing.T, s string) schema.TypeExpression {
	t.Helper()
	expr, err := schema.ParseTypeExpression(s)
	require.NoError(t, err)
	return expr
}

func TestMap_NestedListAtReturn(t *testing.T) {
	// Test: [[String!]] keeps per-layer nullability and is invariant at both levels
	m, _ := newMapper(t, Config{})

	proj, err := m.Map(mustExpr(t, "[[String!]]"), Context{Position: PositionReturn})
	require.NoError(t, err)

	assert.Equal(t, decl.Invariant, proj.Variance)
	outer := proj.Type
	assert.Equal(t, decl.List, outer.Class)
	assert.True(t, outer.Nullable)
	require.Len(t, outer.Args, 1)
	assert.Equal(t, decl.Invariant, outer.Args[0].Variance)

	inner := *outer.Args[0].Type
	assert.Equal(t, decl.List, inner.Class)
	assert.True(t, inner.Nullable)
	require.Len(t, inner.Args, 1)
	assert.Equal(t, decl.Invariant, inner.Args[0].Variance)

	elem := *inner.Args[0].Type
	assert.Equal(t, decl.String, elem.Class)
	assert.False(t, elem.Nullable)

	assert.Equal(t, "kotlin.collections.List<kotlin.collections.List<kotlin.String>?>?", outer.String())
}

func TestMap_VarianceAsymmetry(t *testing.T) {
	m, g := newMapper(t, Config{InputObjectVariance: decl.Invariant})
	user, err := g.Resolve("User")
	require.NoError(t, err)
	posts, ok := user.Field("posts")
	require.True(t, ok)

	owner := posts.Args[2]
	owners := posts.Args[3]
	require.Equal(t, "owner", owner.Name)
	require.Equal(t, "owners", owners.Name)

	// Test: A single object input maps invariant
	single, err := m.MapArgument(user, posts, &owner)
	require.NoError(t, err)
	assert.Equal(t, decl.Invariant, single.Variance)
	assert.Equal(t, "com.example.api.MyObject.Data", single.Type.Class)

	// Test: A list of objects is covariant-wrapped with an invariant element
	list, err := m.MapArgument(user, posts, &owners)
	require.NoError(t, err)
	assert.Equal(t, decl.Covariant, list.Variance)
	require.Len(t, list.Type.Args, 1)
	assert.Equal(t, decl.Invariant, list.Type.Args[0].Variance)
	assert.Equal(t, "com.example.api.MyObject", list.Type.Args[0].Type.Class)
	assert.True(t, list.Type.Args[0].Type.Nullable)
}

func TestMap_OuterLayersCovariantInInput(t *testing.T) {
	// Test: Every layer beyond the innermost is covariant in input position
	m, _ := newMapper(t, Config{})

	proj, err := m.Map(mustExpr(t, "[[[Int!]]!]"), Context{Position: PositionInput})
	require.NoError(t, err)
	assert.Equal(t, "kotlin.collections.List<out kotlin.collections.List<out kotlin.collections.List<kotlin.Int>?>>?", proj.Type.String())
	assert.Equal(t, decl.Covariant, proj.Variance)

	// Test: Covariant element kinds stay covariant at the innermost layer
	proj, err = m.Map(mustExpr(t, "[Role]"), Context{Position: PositionInput})
	require.NoError(t, err)
	assert.Equal(t, "kotlin.collections.List<out com.example.api.Role?>?", proj.Type.String())
}

func TestMap_Bases(t *testing.T) {
	m, _ := newMapper(t, Config{})

	tests := []struct {
		name     string
		expr     string
		pos      Position
		want     string
		variance decl.Variance
	}{
		{name: "float", expr: "Float!", pos: PositionReturn, want: "kotlin.Double"},
		{name: "plain id", expr: "ID", pos: PositionReturn, want: "kotlin.String?"},
		{name: "opaque return", expr: "JSON", pos: PositionReturn, want: "kotlin.Any?"},
		{name: "opaque input", expr: "JSON", pos: PositionInput, want: "kotlin.Any?", variance: decl.Covariant},
		{name: "custom scalar", expr: "Money!", pos: PositionInput, want: "kotlin.Any", variance: decl.Covariant},
		{name: "string input", expr: "String!", pos: PositionInput, want: "kotlin.String"},
		{name: "enum input", expr: "Role", pos: PositionInput, want: "com.example.api.Role?", variance: decl.Covariant},
		{name: "interface input", expr: "Node", pos: PositionInput, want: "com.example.api.Node?", variance: decl.Covariant},
		{name: "input object", expr: "PostFilter", pos: PositionInput, want: "com.example.api.PostFilter?"},
		{name: "entity descriptor", expr: "User", pos: PositionReturn, want: "com.example.api.User.Entity?"},
		{name: "data descriptor", expr: "Comment!", pos: PositionReturn, want: "com.example.api.Comment.Data"},
		{name: "identity by id field", expr: "Post", pos: PositionReturn, want: "com.example.api.Post.Entity?"},
		{name: "connection keeps class", expr: "PostConnection", pos: PositionReturn, want: "com.example.api.PostConnection?"},
		{name: "marker keeps class", expr: "PageInfo!", pos: PositionReturn, want: "com.example.api.PageInfo"},
		{name: "listed object keeps class", expr: "[Comment]", pos: PositionReturn, want: "kotlin.collections.List<com.example.api.Comment?>?"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			proj, err := m.Map(mustExpr(t, tt.expr), Context{Position: tt.pos})
			require.NoError(t, err)
			assert.Equal(t, tt.want, proj.Type.String())
			assert.Equal(t, tt.variance, proj.Variance)
		})
	}
}

func TestMap_UnknownType(t *testing.T) {
	m, _ := newMapper(t, Config{})
	_, err := m.Map(mustExpr(t, "[Missing]"), Context{})
	assert.True(t, errors.Is(err, schema.ErrUnknownType))
}

func TestMap_Identity(t *testing.T) {
	m, g := newMapper(t, Config{IdentityType: "com.example.rt.GlobalId"})

	user, err := g.Resolve("User")
	require.NoError(t, err)
	id, _ := user.Field("id")

	// Test: The id field of a node-like type becomes GlobalId<Owner>
	proj, err := m.MapField(user, id)
	require.NoError(t, err)
	assert.Equal(t, "com.example.rt.GlobalId<com.example.api.User>", proj.Type.String())

	// Test: The id of the Node interface itself references the interface
	node, err := g.Resolve("Node")
	require.NoError(t, err)
	nodeID, _ := node.Field("id")
	proj, err = m.MapField(node, nodeID)
	require.NoError(t, err)
	assert.Equal(t, "com.example.rt.GlobalId<com.example.api.Node>", proj.Type.String())

	// Test: A non node-like id stays plain text
	post, err := g.Resolve("Post")
	require.NoError(t, err)
	postID, _ := post.Field("id")
	proj, err = m.MapField(post, postID)
	require.NoError(t, err)
	assert.Equal(t, "kotlin.String", proj.Type.String())

	// Test: @identity names the target explicitly
	filter, err := g.Resolve("PostFilter")
	require.NoError(t, err)
	authorID, _ := filter.InputField("authorId")
	types, err := m.MapProperty(filter, authorID)
	require.NoError(t, err)
	assert.Equal(t, "com.example.rt.GlobalId<com.example.api.User>?", types.Read.Type.String())

	// Test: In input position a non-object target is covariant
	proj, err = m.Map(mustExpr(t, "ID"), Context{
		Position:   PositionInput,
		Directives: []schema.Directive{{Name: "identity", Args: []schema.DirectiveArg{{Name: "type", Value: schema.Value{Kind: schema.ValueString, Str: "Node"}}}}},
	})
	require.NoError(t, err)
	assert.Equal(t, "com.example.rt.GlobalId<out com.example.api.Node>?", proj.Type.String())

	// Test: An unknown identity target fails
	_, err = m.Map(mustExpr(t, "ID"), Context{
		Directives: []schema.Directive{{Name: "identity", Args: []schema.DirectiveArg{{Name: "type", Value: schema.Value{Kind: schema.ValueString, Str: "Nope"}}}}},
	})
	assert.True(t, errors.Is(err, schema.ErrUnknownType))
}

func TestMapProperty(t *testing.T) {
	m, g := newMapper(t, Config{})
	filter, err := g.Resolve("PostFilter")
	require.NoError(t, err)

	// Test: Without overrides read and setter types coincide
	ids, _ := filter.InputField("ids")
	types, err := m.MapProperty(filter, ids)
	require.NoError(t, err)
	assert.True(t, types.Read.Type.Equal(types.Setter.Type))
	assert.Equal(t, "kotlin.collections.List<out kotlin.collections.List<kotlin.String>>?", types.Read.Type.String())
}

func TestMapProperty_OverrideNotAssignable(t *testing.T) {
	// Test: A setter-only override that changes the classifier fails with the nested path
	overrides := BaseTypeMapperFunc(func(def *schema.TypeDefinition, pos Position) (decl.TypeRef, bool) {
		if def.Name == "ID" && pos == PositionSetter {
			return decl.ClassType(decl.Long), true
		}
		return decl.TypeRef{}, false
	})
	m, g := newMapper(t, Config{Overrides: overrides})
	filter, err := g.Resolve("PostFilter")
	require.NoError(t, err)
	ids, _ := filter.InputField("ids")

	_, err = m.MapProperty(filter, ids)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInputNotAssignable))

	var tme *TypeMappingError
	require.True(t, errors.As(err, &tme))
	assert.Equal(t, []int{0, 0}, tme.Path)
	assert.Equal(t, "PostFilter.ids", tme.Context)
	assert.Contains(t, err.Error(), "$[0][0]")
}

func TestMap_OverrideApplies(t *testing.T) {
	// Test: A consistent override replaces the base on both sides
	overrides := BaseTypeMapperFunc(func(def *schema.TypeDefinition, _ Position) (decl.TypeRef, bool) {
		if def.Name == "Money" {
			return decl.ClassType("java.math.BigDecimal"), true
		}
		return decl.TypeRef{}, false
	})
	m, _ := newMapper(t, Config{Overrides: overrides})

	proj, err := m.Map(mustExpr(t, "[Money!]"), Context{Position: PositionInput})
	require.NoError(t, err)
	assert.Equal(t, "kotlin.collections.List<java.math.BigDecimal>?", proj.Type.String())
	assert.Equal(t, decl.Covariant, proj.Variance)
}

func TestDescriptorSelection(t *testing.T) {
	m, g := newMapper(t, Config{})

	tests := []struct {
		typeName string
		want     string
	}{
		{"User", EntityDescriptor},
		{"Post", EntityDescriptor},
		{"Comment", DataDescriptor},
	}
	for _, tt := range tests {
		def, err := g.Resolve(tt.typeName)
		require.NoError(t, err)
		assert.Equal(t, tt.want, m.DescriptorName(def), tt.typeName)
	}

	conn, err := g.Resolve("PostConnection")
	require.NoError(t, err)
	assert.True(t, IsConnection(conn))
}
