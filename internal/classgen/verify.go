package classgen

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/okra-platform/kgql/internal/classgen/classfile"
	"github.com/okra-platform/kgql/internal/classgen/metadata"
	"github.com/okra-platform/kgql/internal/decl"
)

// Report summarizes a verification pass.
type Report struct {
	Classes  int
	Methods  int
	Facades  int
	Module   string
	Problems []string
}

// Err combines the problems into one error, nil when there are none.
func (r *Report) Err() error {
	errs := make([]error, len(r.Problems))
	for i, p := range r.Problems {
		errs[i] = errors.New(p)
	}
	return errors.Join(errs...)
}

func (r *Report) problem(path, format string, args ...any) {
	r.Problems = append(r.Problems, path+": "+fmt.Sprintf(format, args...))
}

// Verify re-reads artifacts and checks that every class file parses, every
// method body is well formed and the metadata agrees with the members
// actually present.
func Verify(artifacts []Artifact) *Report {
	r := &Report{}
	classes := map[string]*classfile.ClassFile{}
	var index []Artifact

	for _, a := range artifacts {
		if strings.HasSuffix(a.Path, metadata.ModuleExtension) {
			index = append(index, a)
			continue
		}
		if !strings.HasSuffix(a.Path, ".class") {
			continue
		}
		cf, err := classfile.Parse(a.Data)
		if err != nil {
			r.problem(a.Path, "%v", err)
			continue
		}
		if want := strings.TrimSuffix(a.Path, ".class"); cf.This != want {
			r.problem(a.Path, "declares class %s", cf.This)
		}
		classes[cf.This] = cf
		r.Classes++
		verifyClass(r, a.Path, cf)
	}

	for _, a := range index {
		m, err := metadata.UnmarshalModule(a.Data)
		if err != nil {
			r.problem(a.Path, "%v", err)
			continue
		}
		r.Module = m.Name
		for _, f := range m.Facades() {
			r.Facades++
			if _, ok := classes[f]; !ok {
				r.problem(a.Path, "facade %s has no class file", f)
			}
		}
	}
	return r
}

// VerifyDir runs Verify over every artifact found below dir.
func VerifyDir(dir string) (*Report, error) {
	var artifacts []Artifact
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		artifacts = append(artifacts, Artifact{Path: filepath.ToSlash(rel), Data: data})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return Verify(artifacts), nil
}

func verifyClass(r *Report, path string, cf *classfile.ClassFile) {
	for _, m := range cf.Methods {
		r.Methods++
		if err := classfile.CheckCode(m, cf.Pool); err != nil {
			r.problem(path, "%v", err)
		}
	}
	if cf.Metadata == nil {
		r.problem(path, "missing %s attribute", classfile.AttrMetadata)
		return
	}
	meta, err := metadata.Unmarshal(cf.Metadata)
	if err != nil {
		r.problem(path, "%v", err)
		return
	}

	er := eraser{params: map[string]*metadata.Type{}}
	for _, tp := range meta.TypeParameters {
		er.params[tp.Name] = tp.UpperBound
	}
	method := func(jvm metadata.JvmMethod, what string) *classfile.Member {
		m, ok := cf.Method(jvm.Name, jvm.Descriptor)
		if !ok {
			r.problem(path, "%s has no method %s%s", what, jvm.Name, jvm.Descriptor)
		}
		return m
	}
	// signature checks that a recorded descriptor is the erasure of the
	// declared types.
	signature := func(jvm metadata.JvmMethod, what string, params []string, ret string) {
		want := classfile.MethodDescriptor(params, ret)
		if binaryName(jvm.Descriptor) != binaryName(want) {
			r.problem(path, "%s is recorded as %s, its types erase to %s", what, jvm.Descriptor, want)
		}
	}
	valueParams := func(params []metadata.ValueParameter) []string {
		out := make([]string, len(params))
		for i, p := range params {
			out[i] = er.descriptor(p.Type)
		}
		return out
	}

	for _, fn := range meta.Functions {
		m := method(fn.JVM, "function "+fn.Name)
		if m != nil && meta.Kind == metadata.KindFacade && !m.IsStatic() {
			r.problem(path, "facade function %s is not static", fn.Name)
		}
		signature(fn.JVM, "function "+fn.Name, valueParams(fn.Params), er.returnDescriptor(fn.Return))
	}
	for _, c := range meta.Constructors {
		method(c.JVM, "constructor")
		params := valueParams(c.Params)
		if meta.Kind == metadata.KindEnum {
			params = append([]string{"Ljava/lang/String;", "I"}, params...)
		}
		signature(c.JVM, "constructor", params, "V")
	}
	for _, p := range meta.Properties {
		desc := er.descriptor(p.Type)
		if p.Getter != nil {
			method(p.Getter.JVM, "getter of "+p.Name)
			signature(p.Getter.JVM, "getter of "+p.Name, nil, desc)
		}
		if p.Setter != nil {
			if !p.Settable {
				r.problem(path, "read-only property %s records a setter", p.Name)
			}
			method(p.Setter.JVM, "setter of "+p.Name)
			param := desc
			if p.SetterType != nil && binaryName(p.Setter.JVM.Descriptor) != binaryName(classfile.MethodDescriptor([]string{desc}, "V")) {
				param = er.descriptor(*p.SetterType)
			}
			signature(p.Setter.JVM, "setter of "+p.Name, []string{param}, "V")
		} else if p.Settable {
			// only private setters may go unrecorded
			for _, m := range cf.Methods {
				if m.Name == accessorName("set", p.Name) && m.Access&classfile.AccPrivate == 0 {
					r.problem(path, "settable property %s has an unrecorded setter %s%s", p.Name, m.Name, m.Descriptor)
				}
			}
		}
		if p.Field != nil {
			if f, ok := cf.Field(p.Field.Name); !ok || f.Descriptor != p.Field.Descriptor {
				r.problem(path, "property %s has no field %s %s", p.Name, p.Field.Name, p.Field.Descriptor)
			}
			if binaryName(p.Field.Descriptor) != binaryName(desc) {
				r.problem(path, "field of property %s is %s, its type erases to %s", p.Name, p.Field.Descriptor, desc)
			}
		} else if f, ok := cf.Field(p.Name); ok && !f.IsStatic() {
			r.problem(path, "property %s has no backing field in metadata but the class declares %s %s", p.Name, f.Name, f.Descriptor)
		}
	}
	for _, e := range meta.EnumEntries {
		if _, ok := cf.Field(e); !ok {
			r.problem(path, "enum entry %s has no field", e)
		}
	}
	for _, n := range meta.NestedClasses {
		found := false
		for _, ic := range cf.InnerClasses {
			if ic.Outer == cf.This && ic.Name == n {
				found = true
			}
		}
		if !found {
			r.problem(path, "nested class %s missing from %s", n, classfile.AttrInnerClasses)
		}
	}
}

// eraser maps metadata types to descriptors. Class names keep their dotted
// segments, so descriptors are compared through binaryName.
type eraser struct {
	params map[string]*metadata.Type // type parameter bounds by name
}

func (e eraser) descriptor(t metadata.Type) string {
	seen := map[string]bool{}
	for t.Var != "" {
		b := e.params[t.Var]
		if b == nil || seen[t.Var] {
			return classfile.ObjectDescriptor(objectClass)
		}
		seen[t.Var] = true
		t = *b
		t.Nullable = true
	}
	if prim, ok := primitives[t.Class]; ok && !t.Nullable {
		return prim
	}
	name := t.Class
	if host, ok := hostClasses[name]; ok {
		name = host
	}
	return classfile.ObjectDescriptor(strings.ReplaceAll(name, ".", "/"))
}

func (e eraser) returnDescriptor(t metadata.Type) string {
	if t.Var == "" && t.Class == decl.Unit {
		return "V"
	}
	return e.descriptor(t)
}

// binaryName folds nested class separators so dotted and binary names
// compare equal.
func binaryName(desc string) string {
	return strings.ReplaceAll(desc, "$", "/")
}
