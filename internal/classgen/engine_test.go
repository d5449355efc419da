package classgen

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/okra-platform/kgql/internal/classgen/classfile"
	"github.com/okra-platform/kgql/internal/classgen/metadata"
	"github.com/okra-platform/kgql/internal/decl"
)

func property(t *testing.T, spec decl.PropertySpec) *decl.PropertyDeclaration {
	t.Helper()
	p, err := decl.NewProperty(spec)
	require.NoError(t, err)
	return p
}

func sampleTree(t *testing.T) *decl.Tree {
	t.Helper()
	str := decl.ClassType(decl.String)

	user := &decl.ClassDeclaration{
		Name:       "com.example.User",
		Visibility: decl.Public,
		Properties: []*decl.PropertyDeclaration{
			property(t, decl.PropertySpec{Name: "name", Type: str, Visibility: decl.Public, ConstructorDeclared: true}),
			property(t, decl.PropertySpec{Name: "count", Type: decl.ClassType(decl.Int), Mutable: true, Visibility: decl.Public}),
			property(t, decl.PropertySpec{Name: "secret", Type: str, Mutable: true, Visibility: decl.Private}),
			property(t, decl.PropertySpec{Name: "hidden", Type: str, Mutable: true, Visibility: decl.Public, Setter: &decl.Accessor{Visibility: decl.Private}}),
		},
		Nested: []*decl.ClassDeclaration{
			{Name: "com.example.User.Data", Visibility: decl.Public},
		},
	}
	greeter := &decl.ClassDeclaration{
		Name:       "com.example.Greeter",
		Kind:       decl.KindInterface,
		Visibility: decl.Public,
		Modality:   decl.Abstract,
		Functions: []*decl.FunctionDeclaration{
			{Name: "name", Return: str, Visibility: decl.Public, Modality: decl.Abstract},
			{Name: "greet", Return: str, Visibility: decl.Public, Modality: decl.Open, Body: []decl.Instr{
				decl.ConstString("hi"),
				decl.Return(),
			}},
		},
	}
	registry := &decl.ClassDeclaration{
		Name:       "com.example.Registry",
		Kind:       decl.KindSingleton,
		Visibility: decl.Public,
		Functions: []*decl.FunctionDeclaration{
			{Name: "size", Return: decl.ClassType(decl.Int), Visibility: decl.Public, Body: []decl.Instr{decl.ConstInt(0), decl.Return()}},
		},
	}
	role := &decl.ClassDeclaration{
		Name:        "com.example.Role",
		Kind:        decl.KindEnum,
		Visibility:  decl.Public,
		EnumEntries: []string{"ADMIN", "USER"},
	}
	box := &decl.ClassDeclaration{
		Name:           "com.example.Box",
		Visibility:     decl.Public,
		TypeParameters: []decl.TypeParameter{{Variance: decl.Covariant}},
		Properties: []*decl.PropertyDeclaration{
			property(t, decl.PropertySpec{Name: "value", Type: decl.ParamType(0), Visibility: decl.Public, ConstructorDeclared: true}),
		},
	}
	queries := &decl.Facade{
		Name: "com.example.QueriesKt",
		Functions: []*decl.FunctionDeclaration{
			{Name: "hello", Params: []decl.Param{{Name: "name", Type: str}}, Return: str, Visibility: decl.Public, Body: []decl.Instr{
				decl.LoadParam(0),
				decl.Return(),
			}},
			{Name: "helper", Return: decl.ClassType(decl.Unit), Visibility: decl.Private, Body: []decl.Instr{}},
		},
	}
	return &decl.Tree{
		Classes: []*decl.ClassDeclaration{user, greeter, registry, role, box},
		Facades: []*decl.Facade{queries},
	}
}

func synthesize(t *testing.T, tree *decl.Tree) *Output {
	t.Helper()
	out, err := New(zerolog.Nop()).Synthesize(tree)
	require.NoError(t, err)
	return out
}

func parsed(t *testing.T, out *Output, path string) (*classfile.ClassFile, *metadata.Class) {
	t.Helper()
	a, ok := out.Artifact(path)
	require.True(t, ok, "missing %s in %v", path, out.Paths())
	cf, err := classfile.Parse(a.Data)
	require.NoError(t, err)
	meta, err := metadata.Unmarshal(cf.Metadata)
	require.NoError(t, err)
	return cf, meta
}

func TestSynthesize_Artifacts(t *testing.T) {
	out := synthesize(t, sampleTree(t))

	assert.Equal(t, DefaultModule, out.Module)
	assert.ElementsMatch(t, []string{
		"com/example/User.class",
		"com/example/User$Data.class",
		"com/example/Greeter.class",
		"com/example/Greeter$DefaultImpls.class",
		"com/example/Registry.class",
		"com/example/Role.class",
		"com/example/Box.class",
		"com/example/QueriesKt.class",
		"META-INF/main.kgql_module",
	}, out.Paths())

	report := Verify(out.Artifacts)
	require.NoError(t, report.Err())
	assert.Equal(t, 8, report.Classes)
	assert.Equal(t, 1, report.Facades)
	assert.Equal(t, "main", report.Module)
}

func TestSynthesize_Idempotent(t *testing.T) {
	// Test: two runs over equal trees produce byte-identical artifacts
	first := synthesize(t, sampleTree(t))
	second := synthesize(t, sampleTree(t))
	require.Equal(t, first.Paths(), second.Paths())
	for i := range first.Artifacts {
		assert.Equal(t, first.Artifacts[i].Data, second.Artifacts[i].Data, first.Artifacts[i].Path)
	}
}

func TestSynthesize_Properties(t *testing.T) {
	out := synthesize(t, sampleTree(t))
	cf, meta := parsed(t, out, "com/example/User.class")

	ctor, ok := cf.Method("<init>", "(Ljava/lang/String;)V")
	require.True(t, ok, "primary constructor takes the constructor-declared property")
	assert.Equal(t, uint16(2), ctor.Code.MaxLocals)

	field, ok := cf.Field("count")
	require.True(t, ok)
	assert.Equal(t, "I", field.Descriptor)
	assert.Equal(t, classfile.AccPrivate, field.Access)
	_, ok = cf.Method("setCount", "(I)V")
	assert.True(t, ok)

	// Test: default private setter is elided but the property stays settable
	_, ok = cf.Method("setSecret", "(Ljava/lang/String;)V")
	assert.False(t, ok)
	secret, ok := meta.Property("secret")
	require.True(t, ok)
	assert.True(t, secret.Settable)
	assert.Nil(t, secret.Setter)
	assert.Nil(t, secret.Getter, "private getter is not described")

	// Test: explicit private setter exists in the class file only
	setter, ok := cf.Method("setHidden", "(Ljava/lang/String;)V")
	require.True(t, ok)
	assert.Equal(t, classfile.AccPrivate, setter.Access&classfile.AccPrivate)
	hidden, ok := meta.Property("hidden")
	require.True(t, ok)
	assert.Nil(t, hidden.Setter)
	require.NotNil(t, hidden.Getter)
	assert.Equal(t, "getHidden", hidden.Getter.JVM.Name)

	name, ok := meta.Property("name")
	require.True(t, ok)
	assert.True(t, name.ConstructorDeclared)
	assert.False(t, name.Settable)
	assert.Equal(t, []string{"Data"}, meta.NestedClasses)
}

func TestSynthesize_Interface(t *testing.T) {
	out := synthesize(t, sampleTree(t))
	cf, meta := parsed(t, out, "com/example/Greeter.class")

	assert.NotZero(t, cf.Access&classfile.AccInterface)
	greet, ok := cf.Method("greet", "()Ljava/lang/String;")
	require.True(t, ok)
	assert.Nil(t, greet.Code, "interface members stay abstract")

	fn, ok := meta.Function("greet")
	require.True(t, ok)
	assert.True(t, fn.DefaultImpl)
	name, ok := meta.Function("name")
	require.True(t, ok)
	assert.False(t, name.DefaultImpl)

	// Test: the companion is listed as an inner class but not as a nested declaration
	assert.Empty(t, meta.NestedClasses)
	require.Len(t, cf.InnerClasses, 1)
	assert.Equal(t, "com/example/Greeter$DefaultImpls", cf.InnerClasses[0].Inner)
	assert.Equal(t, "DefaultImpls", cf.InnerClasses[0].Name)

	impls, implsMeta := parsed(t, out, "com/example/Greeter$DefaultImpls.class")
	m, ok := impls.Method("greet", "(Lcom/example/Greeter;)Ljava/lang/String;")
	require.True(t, ok)
	assert.True(t, m.IsStatic())
	assert.Equal(t, metadata.KindSynthetic, implsMeta.Kind)
}

func TestSynthesize_Singleton(t *testing.T) {
	out := synthesize(t, sampleTree(t))
	cf, meta := parsed(t, out, "com/example/Registry.class")

	ctors := 0
	for _, m := range cf.Methods {
		if m.Name == "<init>" {
			ctors++
			assert.Equal(t, classfile.AccPrivate, m.Access)
		}
	}
	assert.Equal(t, 1, ctors)
	instance, ok := cf.Field("INSTANCE")
	require.True(t, ok)
	assert.Equal(t, "Lcom/example/Registry;", instance.Descriptor)
	_, ok = cf.Method("<clinit>", "()V")
	assert.True(t, ok)

	assert.Equal(t, metadata.KindObject, meta.Kind)
	require.Len(t, meta.Constructors, 1)
	assert.Equal(t, metadata.Private, meta.Constructors[0].Visibility)
}

func TestSynthesize_Enum(t *testing.T) {
	out := synthesize(t, sampleTree(t))
	cf, meta := parsed(t, out, "com/example/Role.class")

	assert.Equal(t, "java/lang/Enum", cf.Super)
	assert.Equal(t, "Ljava/lang/Enum<Lcom/example/Role;>;", cf.Signature)
	for _, name := range []string{"ADMIN", "USER", "$VALUES"} {
		_, ok := cf.Field(name)
		assert.True(t, ok, name)
	}
	_, ok := cf.Method("values", "()[Lcom/example/Role;")
	assert.True(t, ok)
	_, ok = cf.Method("valueOf", "(Ljava/lang/String;)Lcom/example/Role;")
	assert.True(t, ok)
	assert.Equal(t, []string{"ADMIN", "USER"}, meta.EnumEntries)
}

func TestSynthesize_TypeParameters(t *testing.T) {
	out := synthesize(t, sampleTree(t))
	cf, meta := parsed(t, out, "com/example/Box.class")

	assert.True(t, strings.HasPrefix(cf.Signature, "<T0:"), cf.Signature)
	field, ok := cf.Field("value")
	require.True(t, ok)
	assert.Equal(t, "Ljava/lang/Object;", field.Descriptor, "type parameters erase to their bound")
	assert.Equal(t, "TT0;", field.Signature)

	require.Len(t, meta.TypeParameters, 1)
	assert.Equal(t, "T0", meta.TypeParameters[0].Name)
	assert.Equal(t, metadata.Out, meta.TypeParameters[0].Variance)
}

func TestSynthesize_Facade(t *testing.T) {
	out := synthesize(t, sampleTree(t))
	cf, meta := parsed(t, out, "com/example/QueriesKt.class")

	hello, ok := cf.Method("hello", "(Ljava/lang/String;)Ljava/lang/String;")
	require.True(t, ok)
	assert.True(t, hello.IsStatic())
	assert.Equal(t, metadata.KindFacade, meta.Kind)

	a, ok := out.Artifact(metadata.ModulePath(DefaultModule))
	require.True(t, ok)
	index, err := metadata.UnmarshalModule(a.Data)
	require.NoError(t, err)
	require.Len(t, index.Packages, 1)
	assert.Equal(t, "com.example", index.Packages[0].Package)
	// Test: private functions are left out of the index
	assert.Equal(t, []metadata.FacadeEntry{{Class: "com/example/QueriesKt", Functions: []string{"hello"}}}, index.Packages[0].Facades)
}

func TestSynthesize_PopTwoSlotResult(t *testing.T) {
	long := decl.ClassType(decl.Long)
	counter := &decl.ClassDeclaration{
		Name:       "com.example.Counter",
		Visibility: decl.Public,
		Functions: []*decl.FunctionDeclaration{
			{Name: "total", Params: []decl.Param{{Name: "n", Type: long}}, Return: long, Visibility: decl.Public, Body: []decl.Instr{
				decl.LoadParam(0),
				decl.Return(),
			}},
			{Name: "drop", Params: []decl.Param{{Name: "n", Type: long}}, Return: decl.ClassType(decl.Unit), Visibility: decl.Public, Body: []decl.Instr{
				decl.LoadThis(),
				decl.LoadParam(0),
				decl.Invoke(decl.OpInvokeVirtual, "com.example.Counter", "total", long, long),
				decl.Pop(),
			}},
		},
	}
	out := synthesize(t, &decl.Tree{Classes: []*decl.ClassDeclaration{counter}})
	assert.NoError(t, Verify(out.Artifacts).Err())

	cf, _ := parsed(t, out, "com/example/Counter.class")
	drop, ok := cf.Method("drop", "(J)V")
	require.True(t, ok)
	require.NotNil(t, drop.Code)
	code := drop.Code.Bytes
	require.GreaterOrEqual(t, len(code), 2)
	// Test: a discarded long result is dropped with pop2 before the return
	assert.Equal(t, classfile.OpPop2, code[len(code)-2])
}

func TestSynthesize_Errors(t *testing.T) {
	tests := []struct {
		name string
		tree func() *decl.Tree
		want error
	}{
		{
			name: "nested interface",
			tree: func() *decl.Tree {
				return &decl.Tree{Classes: []*decl.ClassDeclaration{{
					Name:   "com.example.Outer",
					Nested: []*decl.ClassDeclaration{{Name: "com.example.Outer.Api", Kind: decl.KindInterface}},
				}}}
			},
			want: ErrUnsupportedNestedKind,
		},
		{
			name: "nested name outside its container",
			tree: func() *decl.Tree {
				return &decl.Tree{Classes: []*decl.ClassDeclaration{{
					Name:   "com.example.Outer",
					Nested: []*decl.ClassDeclaration{{Name: "com.other.Inner"}},
				}}}
			},
			want: ErrUnregisteredContainer,
		},
		{
			name: "external without container",
			tree: func() *decl.Tree {
				return &decl.Tree{Externals: []decl.External{{Name: "a.B.C", Internal: "a/B$C"}}}
			},
			want: ErrUnregisteredContainer,
		},
		{
			name: "unknown reference",
			tree: func() *decl.Tree {
				return &decl.Tree{Classes: []*decl.ClassDeclaration{{
					Name:       "com.example.A",
					Properties: []*decl.PropertyDeclaration{property(t, decl.PropertySpec{Name: "b", Type: decl.ClassType("com.example.Missing")})},
				}}}
			},
			want: ErrUnregisteredReference,
		},
		{
			name: "reference into a later tier",
			tree: func() *decl.Tree {
				return &decl.Tree{Classes: []*decl.ClassDeclaration{
					{
						Name:       "com.example.A",
						Properties: []*decl.PropertyDeclaration{property(t, decl.PropertySpec{Name: "b", Type: decl.ClassType("com.example.B")})},
					},
					{Name: "com.example.B", Tier: 1},
				}}
			},
			want: ErrForwardTierReference,
		},
		{
			name: "singleton with constructor",
			tree: func() *decl.Tree {
				return &decl.Tree{Classes: []*decl.ClassDeclaration{{
					Name:         "com.example.Single",
					Kind:         decl.KindSingleton,
					Constructors: []*decl.ConstructorDeclaration{{Visibility: decl.Public}},
				}}}
			},
			want: ErrSingletonConstructor,
		},
		{
			name: "duplicate class",
			tree: func() *decl.Tree {
				return &decl.Tree{Classes: []*decl.ClassDeclaration{{Name: "com.example.A"}, {Name: "com.example.A"}}}
			},
			want: ErrDuplicateClass,
		},
		{
			name: "function without return",
			tree: func() *decl.Tree {
				return &decl.Tree{Classes: []*decl.ClassDeclaration{{
					Name: "com.example.A",
					Functions: []*decl.FunctionDeclaration{{
						Name:   "f",
						Return: decl.ClassType(decl.String),
						Body:   []decl.Instr{decl.ConstString("x")},
					}},
				}}}
			},
			want: ErrInvalidDeclaration,
		},
		{
			name: "cyclic type parameter bounds",
			tree: func() *decl.Tree {
				t0, t1 := decl.ParamType(0), decl.ParamType(1)
				return &decl.Tree{Classes: []*decl.ClassDeclaration{{
					Name:           "com.example.A",
					TypeParameters: []decl.TypeParameter{{UpperBound: &t1}, {UpperBound: &t0}},
					Properties:     []*decl.PropertyDeclaration{property(t, decl.PropertySpec{Name: "v", Type: t0})},
				}}}
			},
			want: ErrInvalidDeclaration,
		},
		{
			name: "dup of a long",
			tree: func() *decl.Tree {
				long := decl.ClassType(decl.Long)
				return &decl.Tree{Classes: []*decl.ClassDeclaration{{
					Name: "com.example.A",
					Functions: []*decl.FunctionDeclaration{{
						Name:   "f",
						Params: []decl.Param{{Name: "n", Type: long}},
						Return: decl.ClassType(decl.Unit),
						Body:   []decl.Instr{decl.LoadParam(0), decl.Dup(), decl.Pop(), decl.Pop()},
					}},
				}}}
			},
			want: ErrInvalidDeclaration,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := New(zerolog.Nop()).Synthesize(tt.tree())
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)
			assert.Nil(t, out, "failed runs produce no output")
		})
	}
}

func TestSynthesize_ForwardTierAllowedBackward(t *testing.T) {
	tree := &decl.Tree{Classes: []*decl.ClassDeclaration{
		{Name: "com.example.B"},
		{
			Name:       "com.example.A",
			Tier:       1,
			Properties: []*decl.PropertyDeclaration{property(t, decl.PropertySpec{Name: "b", Type: decl.ClassType("com.example.B")})},
		},
	}}
	out := synthesize(t, tree)
	assert.NoError(t, Verify(out.Artifacts).Err())
}

func TestWriteArtifacts(t *testing.T) {
	out := synthesize(t, sampleTree(t))
	dir := t.TempDir()

	require.NoError(t, out.WriteArtifacts(dir))
	_, err := os.Stat(filepath.Join(dir, "com", "example", "User$Data.class"))
	assert.NoError(t, err)

	report, err := VerifyDir(dir)
	require.NoError(t, err)
	assert.NoError(t, report.Err())
	assert.Equal(t, 8, report.Classes)
}

func TestWriteArtifacts_IoError(t *testing.T) {
	out := synthesize(t, sampleTree(t))
	file := filepath.Join(t.TempDir(), "blocked")
	require.NoError(t, os.WriteFile(file, nil, 0o644))

	err := out.WriteArtifacts(file)
	require.Error(t, err)
	var ioErr *IoError
	require.ErrorAs(t, err, &ioErr)
	assert.Equal(t, out.Artifacts[0].Path, ioErr.Artifact)
}

func TestVerify_DetectsMismatch(t *testing.T) {
	out := synthesize(t, sampleTree(t))
	a, ok := out.Artifact("com/example/Registry.class")
	require.True(t, ok)
	cf, err := classfile.Parse(a.Data)
	require.NoError(t, err)

	// drop the method the metadata points at
	var kept []*classfile.Member
	for _, m := range cf.Methods {
		if m.Name != "size" {
			kept = append(kept, m)
		}
	}
	cf.Methods = kept
	data, err := cf.Bytes()
	require.NoError(t, err)

	report := Verify([]Artifact{{Path: a.Path, Data: data}})
	require.Error(t, report.Err())
	assert.Contains(t, report.Err().Error(), "function size")
}

func TestVerify_MetadataTypes(t *testing.T) {
	tests := []struct {
		name   string
		path   string
		tamper func(meta *metadata.Class)
		want   string
	}{
		{
			name: "function return type",
			path: "com/example/Registry.class",
			tamper: func(meta *metadata.Class) {
				meta.Functions[0].Return = metadata.Type{Class: decl.String}
			},
			want: "function size is recorded as ()I, its types erase to ()Ljava/lang/String;",
		},
		{
			name: "constructor parameter type",
			path: "com/example/User.class",
			tamper: func(meta *metadata.Class) {
				meta.Constructors[0].Params[0].Type = metadata.Type{Class: decl.Int}
			},
			want: "constructor is recorded as",
		},
		{
			name: "property type",
			path: "com/example/User.class",
			tamper: func(meta *metadata.Class) {
				p, _ := meta.Property("count")
				p.Type = metadata.Type{Class: decl.Long}
			},
			want: "getter of count is recorded as ()I, its types erase to ()J",
		},
		{
			name: "missing setter accessor",
			path: "com/example/User.class",
			tamper: func(meta *metadata.Class) {
				p, _ := meta.Property("count")
				p.Setter = nil
			},
			want: "settable property count has an unrecorded setter setCount(I)V",
		},
		{
			name: "setter on a read-only property",
			path: "com/example/User.class",
			tamper: func(meta *metadata.Class) {
				p, _ := meta.Property("count")
				p.Settable = false
			},
			want: "read-only property count records a setter",
		},
		{
			name: "unrecorded backing field",
			path: "com/example/User.class",
			tamper: func(meta *metadata.Class) {
				p, _ := meta.Property("name")
				p.Field = nil
			},
			want: "property name has no backing field in metadata",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := synthesize(t, sampleTree(t))
			cf, meta := parsed(t, out, tt.path)
			tt.tamper(meta)
			cf.Metadata = meta.Marshal()
			data, err := cf.Bytes()
			require.NoError(t, err)

			report := Verify([]Artifact{{Path: tt.path, Data: data}})
			require.Error(t, report.Err())
			assert.Contains(t, report.Err().Error(), tt.want)
		})
	}
}
