package classgen

import (
	"github.com/okra-platform/kgql/internal/classgen/classfile"
	"github.com/okra-platform/kgql/internal/classgen/metadata"
	"github.com/okra-platform/kgql/internal/decl"
)

// scope resolves host types for members of one class.
type scope struct {
	s      *session
	owner  *entry
	params []decl.TypeParameter
}

func (s *session) scopeOf(en *entry) *scope {
	sc := &scope{s: s, owner: en}
	if en.decl != nil {
		sc.params = en.decl.TypeParameters
	}
	return sc
}

// resolve finds a class by dotted name, mapping host classifiers to their
// runtime classes. Generated classes of a later tier are not yet realized
// and cannot be referenced.
func (s *session) resolve(name string, from *entry) (*entry, error) {
	if host, ok := hostClasses[name]; ok {
		name = host
	}
	en, ok := s.pool.lookup(name)
	if !ok {
		return nil, configError(ErrorCodeUnregisteredReference, from.name, "%s is not registered", name)
	}
	if !en.external && en.tier > s.tier {
		return nil, configError(ErrorCodeForwardTierReference, from.name, "%s belongs to tier %d, materializing tier %d", name, en.tier, s.tier)
	}
	return en, nil
}

func (sc *scope) invalid(format string, args ...any) error {
	return configError(ErrorCodeInvalidDeclaration, sc.owner.name, format, args...)
}

func (sc *scope) bound(i int) (decl.TypeRef, error) {
	if i < 0 || i >= len(sc.params) {
		return decl.TypeRef{}, sc.invalid("type parameter %s is not declared", decl.ParamName(i))
	}
	b := sc.params[i].UpperBound
	if b == nil || (b.IsParam() && b.Param == i) {
		return decl.ClassType(decl.Any), nil
	}
	return *b, nil
}

// erasure follows the bound chain of type parameter i to its first class
// bound.
func (sc *scope) erasure(i int) (decl.TypeRef, error) {
	seen := map[int]bool{}
	for {
		b, err := sc.bound(i)
		if err != nil {
			return decl.TypeRef{}, err
		}
		if !b.IsParam() {
			return b, nil
		}
		seen[i] = true
		if seen[b.Param] {
			return decl.TypeRef{}, sc.invalid("type parameter %s has a cyclic upper bound", decl.ParamName(i))
		}
		i = b.Param
	}
}

// descriptor erases t to a field descriptor.
func (sc *scope) descriptor(t decl.TypeRef) (string, error) {
	if t.IsParam() {
		b, err := sc.erasure(t.Param)
		if err != nil {
			return "", err
		}
		t = b.AsNullable(true)
	}
	if prim, ok := primitives[t.Class]; ok && !t.Nullable {
		return prim, nil
	}
	if t.Class == decl.Unit {
		return "", sc.invalid("%s is only valid as a return type", decl.Unit)
	}
	en, err := sc.s.resolve(t.Class, sc.owner)
	if err != nil {
		return "", err
	}
	return classfile.ObjectDescriptor(en.internal), nil
}

func (sc *scope) returnDescriptor(t decl.TypeRef) (string, error) {
	if t.IsUnit() {
		return "V", nil
	}
	return sc.descriptor(t)
}

// sig renders t in the generic signature grammar. Type arguments are always
// boxed.
func (sc *scope) sig(t decl.TypeRef, arg bool) (classfile.SigType, error) {
	if t.IsParam() {
		if _, err := sc.bound(t.Param); err != nil {
			return classfile.SigType{}, err
		}
		return classfile.SigType{Var: decl.ParamName(t.Param)}, nil
	}
	if prim, ok := primitives[t.Class]; ok && !t.Nullable && !arg {
		return classfile.SigType{Base: prim}, nil
	}
	if t.Class == decl.Unit && !arg {
		return classfile.SigType{}, sc.invalid("%s is only valid as a return type", decl.Unit)
	}
	en, err := sc.s.resolve(t.Class, sc.owner)
	if err != nil {
		return classfile.SigType{}, err
	}
	st := classfile.SigType{Internal: en.internal}
	for _, a := range t.Args {
		if a.Type == nil {
			st.Args = append(st.Args, classfile.SigArg{Wildcard: '*'})
			continue
		}
		inner, err := sc.sig(*a.Type, true)
		if err != nil {
			return classfile.SigType{}, err
		}
		var w byte
		switch a.Variance {
		case decl.Covariant:
			w = '+'
		case decl.Contravariant:
			w = '-'
		}
		st.Args = append(st.Args, classfile.SigArg{Wildcard: w, Type: &inner})
	}
	return st, nil
}

// methodType is the erased and generic form of a method.
type methodType struct {
	params    []string // parameter descriptors
	ret       string
	desc      string
	signature string // empty unless generics are involved
}

func (sc *scope) method(params []decl.Param, ret decl.TypeRef) (methodType, error) {
	var mt methodType
	generic := false
	sigParams := make([]classfile.SigType, 0, len(params))
	for _, p := range params {
		d, err := sc.descriptor(p.Type)
		if err != nil {
			return mt, err
		}
		st, err := sc.sig(p.Type, false)
		if err != nil {
			return mt, err
		}
		generic = generic || st.IsGeneric()
		mt.params = append(mt.params, d)
		sigParams = append(sigParams, st)
	}
	r, err := sc.returnDescriptor(ret)
	if err != nil {
		return mt, err
	}
	mt.ret = r
	var sigRet *classfile.SigType
	if r != "V" {
		st, err := sc.sig(ret, false)
		if err != nil {
			return mt, err
		}
		generic = generic || st.IsGeneric()
		sigRet = &st
	}
	mt.desc = classfile.MethodDescriptor(mt.params, mt.ret)
	if generic {
		mt.signature = classfile.MethodSignature(sigParams, sigRet)
	}
	return mt, nil
}

// fieldSignature returns the generic signature of a field type, or "".
func (sc *scope) fieldSignature(t decl.TypeRef) (string, error) {
	st, err := sc.sig(t, false)
	if err != nil || !st.IsGeneric() {
		return "", err
	}
	return st.String(), nil
}

// classSignature renders type parameters and supertypes; "" when nothing is
// generic.
func (sc *scope) classSignature(super *decl.TypeRef, ifaces []decl.TypeRef, superInternal string) (string, error) {
	generic := len(sc.params) > 0
	superSig := classfile.SigType{Internal: superInternal}
	if super != nil {
		st, err := sc.sig(*super, true)
		if err != nil {
			return "", err
		}
		superSig = st
		generic = generic || st.IsGeneric()
	}
	ifaceSigs := make([]classfile.SigType, 0, len(ifaces))
	for _, i := range ifaces {
		st, err := sc.sig(i, true)
		if err != nil {
			return "", err
		}
		generic = generic || st.IsGeneric()
		ifaceSigs = append(ifaceSigs, st)
	}
	if !generic {
		return "", nil
	}
	params := make([]classfile.SigParam, len(sc.params))
	for i := range sc.params {
		b, err := sc.bound(i)
		if err != nil {
			return "", err
		}
		st, err := sc.sig(b, true)
		if err != nil {
			return "", err
		}
		iface := false
		if !b.IsParam() {
			if en, err := sc.s.resolve(b.Class, sc.owner); err == nil {
				iface = en.iface
			}
		}
		params[i] = classfile.SigParam{Name: decl.ParamName(i), Bound: st, Interface: iface}
	}
	return classfile.ClassSignature(params, superSig, ifaceSigs), nil
}

// metaType converts a declaration type for the metadata blob.
func metaType(t decl.TypeRef) metadata.Type {
	mt := metadata.Type{Nullable: t.Nullable}
	if t.IsParam() {
		mt.Var = decl.ParamName(t.Param)
	} else {
		mt.Class = t.Class
	}
	for _, a := range t.Args {
		arg := metadata.TypeArg{Variance: metaVariance(a.Variance)}
		if a.Type == nil {
			arg.Star = true
		} else {
			inner := metaType(*a.Type)
			arg.Type = &inner
		}
		mt.Args = append(mt.Args, arg)
	}
	return mt
}

func metaTypePtr(t *decl.TypeRef) *metadata.Type {
	if t == nil {
		return nil
	}
	mt := metaType(*t)
	return &mt
}

func metaVariance(v decl.Variance) metadata.Variance {
	switch v {
	case decl.Covariant:
		return metadata.Out
	case decl.Contravariant:
		return metadata.In
	}
	return metadata.Invariant
}

func metaParams(params []decl.Param) []metadata.ValueParameter {
	var out []metadata.ValueParameter
	for _, p := range params {
		out = append(out, metadata.ValueParameter{Name: p.Name, Type: metaType(p.Type)})
	}
	return out
}
