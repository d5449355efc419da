package dsl

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/okra-platform/kgql/internal/classgen"
	"github.com/okra-platform/kgql/internal/classgen/metadata"
	"github.com/okra-platform/kgql/internal/decl"
	"github.com/okra-platform/kgql/internal/schema"
	"github.com/okra-platform/kgql/internal/typemap"
)

const ns = "com.example.api"

const testSchema = `
"Anything with a global id"
interface Node {
  id: ID!
}

union SearchResult = User | Post

type User implements Node {
  id: ID!
  name: String!
  age: Int
  role: Role
  posts(first: Int!, filter: PostFilter, after: String): PostConnection!
  best: Post
}

type Post implements Node {
  id: ID!
  title: String
  author: User!
  publishedAt: DateTime
}

type Comment {
  text: String
  close: Boolean
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
  authorId: ID! @identity(type: "User")
  limit: Int = 10
  meta: JSON
}

type Query {
  node(id: ID!): Node
  search(text: String!): [SearchResult!]!
  user(id: ID!): User
  comments(ids: [[ID!]]): [Comment]
}

type Mutation {
  rename(id: ID!, name: String!): User
}

scalar JSON
scalar DateTime
`

func buildTree(t *testing.T, cfg typemap.Config) *decl.Tree {
	t.Helper()
	g, err := schema.ParseSchema(testSchema, schema.Options{})
	require.NoError(t, err)
	if cfg.Namespace == "" {
		cfg.Namespace = ns
	}
	tree, err := New(g, typemap.New(g, cfg), zerolog.Nop(), Options{Module: "api"}).Build()
	require.NoError(t, err)
	return tree
}

func findClass(t *testing.T, tree *decl.Tree, name string) *decl.ClassDeclaration {
	t.Helper()
	var found *decl.ClassDeclaration
	for _, c := range tree.Classes {
		decl.Walk(c, func(c, _ *decl.ClassDeclaration) {
			if c.Name == name {
				found = c
			}
		})
	}
	require.NotNil(t, found, "class %s not in tree", name)
	return found
}

func findFunction(t *testing.T, fns []*decl.FunctionDeclaration, name string) *decl.FunctionDeclaration {
	t.Helper()
	for _, fn := range fns {
		if fn.Name == name {
			return fn
		}
	}
	require.Failf(t, "function not found", "%s", name)
	return nil
}

func TestBuild_Declarations(t *testing.T) {
	tree := buildTree(t, typemap.Config{})

	assert.Equal(t, "api", tree.Module)

	node := findClass(t, tree, ns+".Node")
	assert.Equal(t, decl.KindInterface, node.Kind)
	assert.Equal(t, "Anything with a global id", node.Doc)
	assert.Equal(t, decl.KindInterface, findClass(t, tree, ns+".SearchResult").Kind)

	role := findClass(t, tree, ns+".Role")
	assert.Equal(t, decl.KindEnum, role.Kind)
	assert.Equal(t, []string{"ADMIN", "USER"}, role.EnumEntries)

	user := findClass(t, tree, ns+".User")
	assert.Equal(t, []decl.TypeRef{decl.ClassType(ns + ".Node"), decl.ClassType(ns + ".SearchResult")}, user.Interfaces)
	require.Len(t, user.Nested, 1)
	assert.Equal(t, ns+".User.Entity", user.Nested[0].Name)

	// Test: descriptors follow identity, connections and markers get none
	comment := findClass(t, tree, ns+".Comment")
	require.Len(t, comment.Nested, 1)
	assert.Equal(t, ns+".Comment.Data", comment.Nested[0].Name)
	assert.Empty(t, findClass(t, tree, ns+".PostConnection").Nested)
	assert.Empty(t, findClass(t, tree, ns+".PageInfo").Nested)

	info := findClass(t, tree, ns+"."+SchemaInfoName)
	assert.Equal(t, decl.KindSingleton, info.Kind)
	assert.Equal(t, 1, info.Tier)

	require.Len(t, tree.Facades, 1)
	facade := tree.Facades[0]
	assert.Equal(t, ns+"."+DefaultFacade, facade.Name)
	assert.Equal(t, 1, facade.Tier)
	var ops []string
	for _, fn := range facade.Functions {
		ops = append(ops, fn.Name)
	}
	assert.Equal(t, []string{"query", "mutation"}, ops)

	assert.Contains(t, tree.Externals, decl.External{Name: typemap.DefaultIdentityType})
	assert.Contains(t, tree.Externals, decl.External{Name: stringBuilderClass})
	assert.Contains(t, tree.Externals, decl.External{Name: "java.time.OffsetDateTime"})
}

func TestBuild_SelectionFunctions(t *testing.T) {
	tree := buildTree(t, typemap.Config{})
	user := findClass(t, tree, ns+".User")

	posts := findFunction(t, user.Functions, "posts")
	assert.Equal(t, decl.ClassType(ns+".PostConnection"), posts.Return, "object fields open a sub-builder")
	require.Len(t, posts.Params, 3)
	assert.Equal(t, decl.ClassType(decl.Int), posts.Params[0].Type)
	assert.Equal(t, decl.ClassType(ns+".PostFilter").AsNullable(true), posts.Params[1].Type)

	name := findFunction(t, user.Functions, "name")
	assert.Equal(t, decl.ClassType(ns+".User"), name.Return)
	assert.Empty(t, name.Params)

	// Test: fields named like builder members are renamed
	comment := findClass(t, tree, ns+".Comment")
	findFunction(t, comment.Functions, "closeField")
	findFunction(t, comment.Functions, "close")

	query := findClass(t, tree, ns+".Query")
	search := findFunction(t, query.Functions, "search")
	assert.Equal(t, decl.ClassType(ns+".Query"), search.Return, "abstract results select __typename")
}

func TestBuild_Descriptor(t *testing.T) {
	tree := buildTree(t, typemap.Config{})
	entity := findClass(t, tree, ns+".Post.Entity")

	byName := map[string]*decl.PropertyDeclaration{}
	for _, p := range entity.Properties {
		byName[p.Name] = p
		assert.True(t, p.ConstructorDeclared)
		assert.False(t, p.Mutable)
	}
	id := byName["id"]
	require.NotNil(t, id)
	assert.Equal(t, typemap.DefaultIdentityType, id.Type.Class)
	require.Len(t, id.Type.Args, 1)
	assert.Equal(t, ns+".Post", id.Type.Args[0].Type.Class)

	assert.Equal(t, decl.ClassType(ns+".User.Entity"), byName["author"].Type)
	assert.Equal(t, decl.ClassType("java.time.OffsetDateTime").AsNullable(true), byName["publishedAt"].Type)
}

func TestBuild_Input(t *testing.T) {
	tree := buildTree(t, typemap.Config{})
	filter := findClass(t, tree, ns+".PostFilter")

	declared := map[string]bool{}
	for _, p := range filter.Properties {
		assert.True(t, p.Mutable)
		declared[p.Name] = p.ConstructorDeclared
	}
	assert.Equal(t, map[string]bool{"title": false, "authorId": true, "limit": false, "meta": false}, declared)
	findFunction(t, filter.Functions, "toString")
}

func TestBuild_SetterOverride(t *testing.T) {
	// Test: a setter-only override that stays assignable becomes the setter type
	cfg := typemap.Config{Overrides: typemap.BaseTypeMapperFunc(func(def *schema.TypeDefinition, pos typemap.Position) (decl.TypeRef, bool) {
		if def.Name == "JSON" && pos == typemap.PositionSetter {
			return decl.ClassType(decl.String), true
		}
		return decl.TypeRef{}, false
	})}
	tree := buildTree(t, cfg)
	filter := findClass(t, tree, ns+".PostFilter")
	for _, p := range filter.Properties {
		if p.Name == "meta" {
			assert.Equal(t, decl.ClassType(decl.Any).AsNullable(true), p.Type)
			assert.Equal(t, decl.ClassType(decl.String).AsNullable(true), p.SetterType)
		}
	}
}

func TestBuild_SetterOverrideNotAssignable(t *testing.T) {
	g, err := schema.ParseSchema(testSchema, schema.Options{})
	require.NoError(t, err)
	cfg := typemap.Config{Namespace: ns, Overrides: typemap.BaseTypeMapperFunc(func(def *schema.TypeDefinition, pos typemap.Position) (decl.TypeRef, bool) {
		if def.Name == "String" && pos == typemap.PositionSetter {
			return decl.ClassType(decl.Long), true
		}
		return decl.TypeRef{}, false
	})}

	_, err = New(g, typemap.New(g, cfg), zerolog.Nop(), Options{}).Build()
	require.Error(t, err)
	assert.ErrorIs(t, err, typemap.ErrInputNotAssignable)
}

func TestBuild_Synthesizes(t *testing.T) {
	// Test: the whole tree synthesizes and passes verification
	tree := buildTree(t, typemap.Config{})
	out, err := classgen.New(zerolog.Nop()).Synthesize(tree)
	require.NoError(t, err)

	report := classgen.Verify(out.Artifacts)
	require.NoError(t, report.Err())
	assert.Equal(t, "api", report.Module)
	assert.Equal(t, 1, report.Facades)

	paths := out.Paths()
	assert.Contains(t, paths, "com/example/api/User$Entity.class")
	assert.Contains(t, paths, "com/example/api/Node$DefaultImpls.class")
	assert.Contains(t, paths, "com/example/api/OperationsKt.class")
	assert.Contains(t, paths, metadata.ModulePath("api"))
}

func TestBuild_SchemaInfo(t *testing.T) {
	tree := buildTree(t, typemap.Config{})
	info := findClass(t, tree, ns+"."+SchemaInfoName)

	// Test: every root operation gets a computed type-name property
	var names []string
	for _, p := range info.Properties {
		require.NotNil(t, p)
		require.NotEmpty(t, p.Getter.Body)
		assert.False(t, p.HasBackingField())
		names = append(names, p.Name)
	}
	assert.Equal(t, []string{"queryType", "mutationType", "subscriptionType"}, names)
	assert.Equal(t, decl.ConstString("Query"), info.Properties[0].Getter.Body[0])
	assert.Equal(t, decl.ConstNull(), info.Properties[2].Getter.Body[0])
}

func TestBuild_Deterministic(t *testing.T) {
	first := buildTree(t, typemap.Config{})
	second := buildTree(t, typemap.Config{})
	assert.Equal(t, first, second)
}
