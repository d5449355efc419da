package classgen

import (
	"strings"

	"github.com/okra-platform/kgql/internal/classgen/classfile"
	"github.com/okra-platform/kgql/internal/classgen/metadata"
	"github.com/okra-platform/kgql/internal/decl"
)

const (
	objectClass   = "java/lang/Object"
	enumClass     = "java/lang/Enum"
	instanceField = "INSTANCE"
	valuesField   = "$VALUES"
	defaultImpls  = "DefaultImpls"
)

// classWriter holds the class file and metadata of the declaration being
// emitted. Both are filled by the same member walk so they cannot drift.
type classWriter struct {
	s    *session
	sc   *scope
	en   *entry
	cf   *classfile.ClassFile
	meta *metadata.Class
}

func classAccess(d *decl.ClassDeclaration) uint16 {
	var access uint16
	if d.Visibility != decl.Private && d.Visibility != decl.Protected {
		access |= classfile.AccPublic
	}
	switch d.Kind {
	case decl.KindInterface:
		access |= classfile.AccInterface | classfile.AccAbstract
	case decl.KindEnum:
		access |= classfile.AccSuper | classfile.AccFinal | classfile.AccEnum
	case decl.KindSingleton:
		access |= classfile.AccSuper | classfile.AccFinal
	default:
		access |= classfile.AccSuper
		switch d.Modality {
		case decl.Final:
			access |= classfile.AccFinal
		case decl.Abstract:
			access |= classfile.AccAbstract
		}
	}
	return access
}

func memberAccess(v decl.Visibility) uint16 {
	switch v {
	case decl.Private:
		return classfile.AccPrivate
	case decl.Protected:
		return classfile.AccProtected
	}
	return classfile.AccPublic
}

func metaKind(k decl.ClassKind) metadata.Kind {
	switch k {
	case decl.KindInterface:
		return metadata.KindInterface
	case decl.KindSingleton:
		return metadata.KindObject
	case decl.KindEnum:
		return metadata.KindEnum
	}
	return metadata.KindClass
}

func sourceFile(en *entry) string {
	for en.outer != nil {
		en = en.outer
	}
	return en.simple + ".kt"
}

func accessorName(prefix, property string) string {
	if property == "" {
		return prefix
	}
	return prefix + strings.ToUpper(property[:1]) + property[1:]
}

// emitClass builds the class file and metadata of one declaration.
func (s *session) emitClass(en *entry) error {
	d := en.decl
	sc := s.scopeOf(en)

	switch d.Kind {
	case decl.KindSingleton:
		if len(d.Constructors) > 0 {
			return configError(ErrorCodeSingletonConstructor, d.Name, "singletons get exactly one implicit private constructor")
		}
	case decl.KindEnum:
		if len(d.Constructors) > 0 || len(d.Properties) > 0 {
			return sc.invalid("enum classes support entries and functions only")
		}
	case decl.KindInterface:
		if len(d.Constructors) > 0 || d.Superclass != nil {
			return sc.invalid("interfaces cannot declare constructors or a superclass")
		}
	}

	superInternal := objectClass
	super := d.Superclass
	switch {
	case d.Kind == decl.KindEnum:
		superInternal = enumClass
		ref := decl.ClassType("kotlin.Enum", decl.Arg(decl.Invariant, decl.ClassType(d.Name)))
		super = &ref
	case super != nil:
		sup, err := s.resolve(super.Class, en)
		if err != nil {
			return err
		}
		if sup.iface {
			return sc.invalid("superclass %s is an interface", super.Class)
		}
		superInternal = sup.internal
	}

	cf := classfile.New(s.major, classAccess(d), en.internal, superInternal)
	cf.SourceFile = sourceFile(en)
	meta := &metadata.Class{
		Version:    metadata.Version,
		Kind:       metaKind(d.Kind),
		Name:       d.Name,
		Visibility: metadata.Visibility(d.Visibility),
		Modality:   metadata.Modality(d.Modality),
	}
	s.record(en, cf, meta)

	for i, tp := range d.TypeParameters {
		meta.TypeParameters = append(meta.TypeParameters, metadata.TypeParameter{
			Name:       decl.ParamName(i),
			Variance:   metaVariance(tp.Variance),
			UpperBound: metaTypePtr(tp.UpperBound),
		})
	}
	if super != nil {
		meta.Supertypes = append(meta.Supertypes, metaType(*super))
	} else if d.Kind != decl.KindInterface || len(d.Interfaces) == 0 {
		meta.Supertypes = append(meta.Supertypes, metadata.Type{Class: decl.Any})
	}
	for _, i := range d.Interfaces {
		ref, err := s.resolve(i.Class, en)
		if err != nil {
			return err
		}
		if !ref.iface {
			return sc.invalid("%s is not an interface", i.Class)
		}
		cf.Interfaces = append(cf.Interfaces, ref.internal)
		meta.Supertypes = append(meta.Supertypes, metaType(i))
	}
	sig, err := sc.classSignature(super, d.Interfaces, superInternal)
	if err != nil {
		return err
	}
	cf.Signature = sig

	c := &classWriter{s: s, sc: sc, en: en, cf: cf, meta: meta}
	switch d.Kind {
	case decl.KindSingleton:
		if err := c.singleton(); err != nil {
			return err
		}
	case decl.KindEnum:
		if err := c.enum(); err != nil {
			return err
		}
	case decl.KindOrdinary:
		if err := c.constructors(); err != nil {
			return err
		}
	}
	for _, p := range d.Properties {
		if err := c.property(p); err != nil {
			return err
		}
	}
	for _, fn := range d.Functions {
		if err := c.function(fn, false); err != nil {
			return err
		}
	}
	return nil
}

// emitFacade builds the class hosting top-level functions.
func (s *session) emitFacade(en *entry) error {
	cf := classfile.New(s.major, classfile.AccPublic|classfile.AccFinal|classfile.AccSuper, en.internal, objectClass)
	cf.SourceFile = en.simple + ".kt"
	meta := &metadata.Class{Version: metadata.Version, Kind: metadata.KindFacade, Name: en.name, Visibility: metadata.Public}
	s.record(en, cf, meta)

	c := &classWriter{s: s, sc: s.scopeOf(en), en: en, cf: cf, meta: meta}
	for _, fn := range en.facade.Functions {
		if err := c.function(fn, true); err != nil {
			return err
		}
	}
	return nil
}

// body compiles a member body. Interface members become abstract and their
// body moves to a static method of the DefaultImpls companion.
func (c *classWriter) body(m *classfile.Member, body []decl.Instr, f frame) error {
	if f.ret != "V" && !endsWithReturn(body) {
		return c.sc.invalid("%s: body must end with return", m.Name)
	}
	if c.en.iface {
		m.Access = (m.Access &^ classfile.AccFinal) | classfile.AccAbstract
		return c.defaultImpl(m.Name, body, f)
	}
	code, err := c.assemble(c.cf.Pool, body, f)
	if err != nil {
		return err
	}
	m.Code = code
	return nil
}

func (c *classWriter) assemble(pool *classfile.Pool, body []decl.Instr, f frame) (*classfile.Code, error) {
	asm := classfile.NewAssembler(pool, f.locals())
	if err := c.sc.compile(asm, body, f); err != nil {
		return nil, err
	}
	if !endsWithReturn(body) {
		asm.Return("V")
	}
	code, err := asm.Code()
	if err != nil {
		return nil, c.sc.invalid("%v", err)
	}
	return code, nil
}

// defaultImpl emits a static method on the DefaultImpls companion, creating
// the companion on first use. The receiver becomes the first parameter.
func (c *classWriter) defaultImpl(name string, body []decl.Instr, f frame) error {
	impls := c.en.defaultImpls
	if impls == nil {
		var err error
		impls, err = c.s.syntheticNested(c.en, defaultImpls)
		if err != nil {
			return err
		}
		cf := classfile.New(c.s.major, classfile.AccPublic|classfile.AccFinal|classfile.AccSuper, impls.internal, objectClass)
		cf.SourceFile = sourceFile(impls)
		meta := &metadata.Class{Version: metadata.Version, Kind: metadata.KindSynthetic, Name: impls.name, Visibility: metadata.Public}
		c.s.record(impls, cf, meta)
		c.en.defaultImpls = impls
	}

	params := append([]string{classfile.ObjectDescriptor(c.en.internal)}, f.params...)
	code, err := c.assemble(impls.cf.Pool, body, f)
	if err != nil {
		return err
	}
	impls.cf.Methods = append(impls.cf.Methods, &classfile.Member{
		Access:     classfile.AccPublic | classfile.AccStatic,
		Name:       name,
		Descriptor: classfile.MethodDescriptor(params, f.ret),
		Code:       code,
	})
	return nil
}

func (c *classWriter) memberAccess(v decl.Visibility, m decl.Modality) uint16 {
	if c.en.iface {
		return classfile.AccPublic
	}
	access := memberAccess(v)
	if m == decl.Final && v != decl.Private {
		access |= classfile.AccFinal
	}
	return access
}

// property emits the backing field and accessors of a property and records
// its metadata. Private accessors exist in the class file but not in the
// metadata; default private setters exist in neither, yet the property
// stays settable.
func (c *classWriter) property(p *decl.PropertyDeclaration) error {
	fieldDesc, err := c.sc.descriptor(p.Type)
	if err != nil {
		return err
	}
	fieldSig, err := c.sc.fieldSignature(p.Type)
	if err != nil {
		return err
	}
	mp := metadata.Property{
		Name:                p.Name,
		Type:                metaType(p.Type),
		Visibility:          metadata.Visibility(p.Visibility),
		Modality:            metadata.Modality(p.Modality),
		Settable:            p.Mutable,
		ConstructorDeclared: p.ConstructorDeclared,
	}
	if p.Setter != nil && !p.SetterType.Equal(p.Type) {
		st := metaType(p.SetterType)
		mp.SetterType = &st
	}
	if p.IsAbstract() && c.en.decl.Kind != decl.KindInterface && c.en.decl.Modality != decl.Abstract {
		return c.sc.invalid("abstract property %s in a non-abstract class", p.Name)
	}

	if p.HasBackingField() {
		if c.en.iface {
			return c.sc.invalid("interface property %s cannot have a backing field", p.Name)
		}
		access := classfile.AccPrivate
		if !p.Mutable {
			access |= classfile.AccFinal
		}
		c.cf.Fields = append(c.cf.Fields, &classfile.Member{Access: access, Name: p.Name, Descriptor: fieldDesc, Signature: fieldSig})
		mp.Field = &metadata.JvmMethod{Name: p.Name, Descriptor: fieldDesc}
	}

	getter := &classfile.Member{
		Access:     c.memberAccess(p.Getter.Visibility, p.Modality),
		Name:       accessorName("get", p.Name),
		Descriptor: classfile.MethodDescriptor(nil, fieldDesc),
	}
	if fieldSig != "" {
		getter.Signature = "()" + fieldSig
	}
	switch {
	case p.IsAbstract():
		getter.Access |= classfile.AccAbstract
	case p.Getter.HasCustomBody():
		if err := c.body(getter, p.Getter.Body, frame{this: true, ret: fieldDesc}); err != nil {
			return err
		}
	default:
		asm := classfile.NewAssembler(c.cf.Pool, 1)
		asm.Load(classfile.ObjectDescriptor(c.en.internal), 0)
		asm.Field(classfile.OpGetField, c.en.internal, p.Name, fieldDesc)
		asm.Return(fieldDesc)
		if getter.Code, err = asm.Code(); err != nil {
			return c.sc.invalid("%v", err)
		}
	}
	c.cf.Methods = append(c.cf.Methods, getter)
	if p.Getter.Visibility > decl.Private {
		mp.Getter = &metadata.Accessor{
			Visibility: metadata.Visibility(p.Getter.Visibility),
			JVM:        metadata.JvmMethod{Name: getter.Name, Descriptor: getter.Descriptor},
		}
	}

	if p.Setter != nil && !p.IsDefaultSetter() {
		paramDesc := fieldDesc
		paramSig := fieldSig
		if p.Setter.HasCustomBody() {
			if paramDesc, err = c.sc.descriptor(p.SetterType); err != nil {
				return err
			}
			if paramSig, err = c.sc.fieldSignature(p.SetterType); err != nil {
				return err
			}
		}
		setter := &classfile.Member{
			Access:     c.memberAccess(p.Setter.Visibility, p.Modality),
			Name:       accessorName("set", p.Name),
			Descriptor: classfile.MethodDescriptor([]string{paramDesc}, "V"),
		}
		if paramSig != "" {
			setter.Signature = "(" + paramSig + ")V"
		}
		f := frame{this: true, params: []string{paramDesc}, ret: "V"}
		switch {
		case p.IsAbstract():
			setter.Access |= classfile.AccAbstract
		case p.Setter.HasCustomBody():
			if err := c.body(setter, p.Setter.Body, f); err != nil {
				return err
			}
		default:
			asm := classfile.NewAssembler(c.cf.Pool, f.locals())
			asm.Load(classfile.ObjectDescriptor(c.en.internal), 0)
			asm.Load(paramDesc, f.slot(0))
			asm.Field(classfile.OpPutField, c.en.internal, p.Name, fieldDesc)
			asm.Return("V")
			if setter.Code, err = asm.Code(); err != nil {
				return c.sc.invalid("%v", err)
			}
		}
		c.cf.Methods = append(c.cf.Methods, setter)
		if p.Setter.Visibility > decl.Private {
			mp.Setter = &metadata.Accessor{
				Visibility: metadata.Visibility(p.Setter.Visibility),
				JVM:        metadata.JvmMethod{Name: setter.Name, Descriptor: setter.Descriptor},
			}
		}
	}

	c.meta.Properties = append(c.meta.Properties, mp)
	return nil
}

// function emits a member or, for facades, a static top-level function.
func (c *classWriter) function(fn *decl.FunctionDeclaration, static bool) error {
	mt, err := c.sc.method(fn.Params, fn.Return)
	if err != nil {
		return err
	}
	if c.en.iface && fn.Visibility == decl.Private {
		return c.sc.invalid("interface function %s cannot be private", fn.Name)
	}
	m := &classfile.Member{
		Access:     c.memberAccess(fn.Visibility, fn.Modality),
		Name:       fn.Name,
		Descriptor: mt.desc,
		Signature:  mt.signature,
	}
	mf := metadata.Function{
		Name:       fn.Name,
		Params:     metaParams(fn.Params),
		Return:     metaType(fn.Return),
		Visibility: metadata.Visibility(fn.Visibility),
		Modality:   metadata.Modality(fn.Modality),
		JVM:        metadata.JvmMethod{Name: m.Name, Descriptor: m.Descriptor},
	}
	if static {
		m.Access |= classfile.AccStatic
	}

	switch {
	case fn.Modality == decl.Abstract || (c.en.iface && fn.Body == nil):
		if static {
			return c.sc.invalid("top-level function %s cannot be abstract", fn.Name)
		}
		if !c.en.iface && c.en.decl.Modality != decl.Abstract {
			return c.sc.invalid("abstract function %s in a non-abstract class", fn.Name)
		}
		m.Access = (m.Access &^ classfile.AccFinal) | classfile.AccAbstract
		mf.Modality = metadata.Abstract
	case fn.Body == nil:
		return c.sc.invalid("function %s has no body", fn.Name)
	default:
		f := frame{this: !static, params: mt.params, ret: mt.ret}
		if err := c.body(m, fn.Body, f); err != nil {
			return err
		}
		if c.en.iface {
			mf.DefaultImpl = true
			mf.Modality = metadata.Open
		}
	}

	c.cf.Methods = append(c.cf.Methods, m)
	c.meta.Functions = append(c.meta.Functions, mf)
	return nil
}

// constructors emits declared constructors, or an implicit public primary
// constructor taking the constructor-declared properties.
func (c *classWriter) constructors() error {
	d := c.en.decl
	ctors := d.Constructors
	if len(ctors) == 0 {
		implicit := &decl.ConstructorDeclaration{Visibility: decl.Public, Primary: true}
		for _, p := range d.Properties {
			if p.ConstructorDeclared {
				implicit.Params = append(implicit.Params, decl.Param{Name: p.Name, Type: p.Type})
			}
		}
		ctors = []*decl.ConstructorDeclaration{implicit}
	}
	for _, ctor := range ctors {
		if err := c.constructor(ctor); err != nil {
			return err
		}
	}
	return nil
}

func (c *classWriter) constructor(ctor *decl.ConstructorDeclaration) error {
	mt, err := c.sc.method(ctor.Params, decl.ClassType(decl.Unit))
	if err != nil {
		return err
	}
	f := frame{this: true, params: mt.params, ret: "V"}
	self := classfile.ObjectDescriptor(c.en.internal)

	asm := classfile.NewAssembler(c.cf.Pool, f.locals())
	asm.Load(self, 0)
	asm.Invoke(classfile.OpInvokeSpecial, c.cf.Super, "<init>", "()V", false)
	if ctor.Primary {
		for _, p := range c.en.decl.Properties {
			if !p.ConstructorDeclared {
				continue
			}
			idx := -1
			for i, param := range ctor.Params {
				if param.Name == p.Name {
					idx = i
				}
			}
			if idx < 0 || !p.HasBackingField() {
				return c.sc.invalid("constructor-declared property %s has no matching parameter or field", p.Name)
			}
			fd, err := c.sc.descriptor(p.Type)
			if err != nil {
				return err
			}
			if fd != mt.params[idx] {
				return c.sc.invalid("constructor parameter %s is %s, property is %s", p.Name, mt.params[idx], fd)
			}
			asm.Load(self, 0)
			asm.Load(fd, f.slot(idx))
			asm.Field(classfile.OpPutField, c.en.internal, p.Name, fd)
		}
	}
	if err := c.sc.compile(asm, ctor.Body, f); err != nil {
		return err
	}
	if !endsWithReturn(ctor.Body) {
		asm.Return("V")
	}
	code, err := asm.Code()
	if err != nil {
		return c.sc.invalid("%v", err)
	}

	c.cf.Methods = append(c.cf.Methods, &classfile.Member{
		Access:     memberAccess(ctor.Visibility),
		Name:       "<init>",
		Descriptor: mt.desc,
		Signature:  mt.signature,
		Code:       code,
	})
	c.meta.Constructors = append(c.meta.Constructors, metadata.Constructor{
		Params:     metaParams(ctor.Params),
		Visibility: metadata.Visibility(ctor.Visibility),
		Primary:    ctor.Primary,
		JVM:        metadata.JvmMethod{Name: "<init>", Descriptor: mt.desc},
	})
	return nil
}

// singleton adds the private no-argument constructor, the INSTANCE field and
// the static initializer creating it.
func (c *classWriter) singleton() error {
	self := classfile.ObjectDescriptor(c.en.internal)

	ctor := classfile.NewAssembler(c.cf.Pool, 1)
	ctor.Load(self, 0)
	ctor.Invoke(classfile.OpInvokeSpecial, c.cf.Super, "<init>", "()V", false)
	ctor.Return("V")
	ctorCode, err := ctor.Code()
	if err != nil {
		return c.sc.invalid("%v", err)
	}

	clinit := classfile.NewAssembler(c.cf.Pool, 0)
	clinit.New(c.en.internal)
	clinit.Dup()
	clinit.Invoke(classfile.OpInvokeSpecial, c.en.internal, "<init>", "()V", false)
	clinit.Field(classfile.OpPutStatic, c.en.internal, instanceField, self)
	clinit.Return("V")
	clinitCode, err := clinit.Code()
	if err != nil {
		return c.sc.invalid("%v", err)
	}

	c.cf.Fields = append(c.cf.Fields, &classfile.Member{
		Access:     classfile.AccPublic | classfile.AccStatic | classfile.AccFinal,
		Name:       instanceField,
		Descriptor: self,
	})
	c.cf.Methods = append(c.cf.Methods,
		&classfile.Member{Access: classfile.AccPrivate, Name: "<init>", Descriptor: "()V", Code: ctorCode},
		&classfile.Member{Access: classfile.AccStatic, Name: "<clinit>", Descriptor: "()V", Code: clinitCode},
	)
	c.meta.Constructors = append(c.meta.Constructors, metadata.Constructor{
		Visibility: metadata.Private,
		JVM:        metadata.JvmMethod{Name: "<init>", Descriptor: "()V"},
	})
	return nil
}

// enum adds entry fields, $VALUES, the private (name, ordinal) constructor,
// values(), valueOf() and the static initializer.
func (c *classWriter) enum() error {
	self := classfile.ObjectDescriptor(c.en.internal)
	array := "[" + self
	ctorDesc := "(Ljava/lang/String;I)V"

	ctor := classfile.NewAssembler(c.cf.Pool, 3)
	ctor.Load(self, 0)
	ctor.Load("Ljava/lang/String;", 1)
	ctor.Load("I", 2)
	ctor.Invoke(classfile.OpInvokeSpecial, enumClass, "<init>", ctorDesc, false)
	ctor.Return("V")

	clinit := classfile.NewAssembler(c.cf.Pool, 0)
	for i, name := range c.en.decl.EnumEntries {
		c.cf.Fields = append(c.cf.Fields, &classfile.Member{
			Access:     classfile.AccPublic | classfile.AccStatic | classfile.AccFinal | classfile.AccEnum,
			Name:       name,
			Descriptor: self,
		})
		clinit.New(c.en.internal)
		clinit.Dup()
		clinit.ConstString(name)
		clinit.ConstInt(int32(i))
		clinit.Invoke(classfile.OpInvokeSpecial, c.en.internal, "<init>", ctorDesc, false)
		clinit.Field(classfile.OpPutStatic, c.en.internal, name, self)
	}
	clinit.ConstInt(int32(len(c.en.decl.EnumEntries)))
	clinit.ANewArray(c.en.internal)
	for i, name := range c.en.decl.EnumEntries {
		clinit.Dup()
		clinit.ConstInt(int32(i))
		clinit.Field(classfile.OpGetStatic, c.en.internal, name, self)
		clinit.ArrayStore()
	}
	clinit.Field(classfile.OpPutStatic, c.en.internal, valuesField, array)
	clinit.Return("V")

	values := classfile.NewAssembler(c.cf.Pool, 0)
	values.Field(classfile.OpGetStatic, c.en.internal, valuesField, array)
	values.Invoke(classfile.OpInvokeVirtual, array, "clone", "()Ljava/lang/Object;", false)
	values.CheckCast(array)
	values.Return(array)

	valueOf := classfile.NewAssembler(c.cf.Pool, 1)
	valueOf.ConstClass(c.en.internal)
	valueOf.Load("Ljava/lang/String;", 0)
	valueOf.Invoke(classfile.OpInvokeStatic, enumClass, "valueOf", "(Ljava/lang/Class;Ljava/lang/String;)Ljava/lang/Enum;", false)
	valueOf.CheckCast(c.en.internal)
	valueOf.Return(self)

	codes := make([]*classfile.Code, 4)
	for i, asm := range []*classfile.Assembler{ctor, clinit, values, valueOf} {
		code, err := asm.Code()
		if err != nil {
			return c.sc.invalid("%v", err)
		}
		codes[i] = code
	}

	c.cf.Fields = append(c.cf.Fields, &classfile.Member{
		Access:     classfile.AccPrivate | classfile.AccStatic | classfile.AccFinal | classfile.AccSynthetic,
		Name:       valuesField,
		Descriptor: array,
	})
	c.cf.Methods = append(c.cf.Methods,
		&classfile.Member{Access: classfile.AccPrivate, Name: "<init>", Descriptor: ctorDesc, Signature: "()V", Code: codes[0]},
		&classfile.Member{Access: classfile.AccStatic, Name: "<clinit>", Descriptor: "()V", Code: codes[1]},
		&classfile.Member{Access: classfile.AccPublic | classfile.AccStatic, Name: "values", Descriptor: "()" + array, Code: codes[2]},
		&classfile.Member{Access: classfile.AccPublic | classfile.AccStatic, Name: "valueOf", Descriptor: "(Ljava/lang/String;)" + self, Code: codes[3]},
	)
	c.meta.EnumEntries = append(c.meta.EnumEntries, c.en.decl.EnumEntries...)
	c.meta.Constructors = append(c.meta.Constructors, metadata.Constructor{
		Visibility: metadata.Private,
		JVM:        metadata.JvmMethod{Name: "<init>", Descriptor: ctorDesc},
	})
	return nil
}
