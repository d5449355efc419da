package metadata

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

// encoder appends protobuf wire fields. Zero scalars are omitted; messages
// are always written so that required sub-messages round-trip.
type encoder struct {
	b []byte
}

func (e *encoder) str(num protowire.Number, s string) {
	if s == "" {
		return
	}
	e.b = protowire.AppendTag(e.b, num, protowire.BytesType)
	e.b = protowire.AppendString(e.b, s)
}

func (e *encoder) strings(num protowire.Number, list []string) {
	for _, s := range list {
		e.b = protowire.AppendTag(e.b, num, protowire.BytesType)
		e.b = protowire.AppendString(e.b, s)
	}
}

func (e *encoder) uint(num protowire.Number, v uint64) {
	if v == 0 {
		return
	}
	e.b = protowire.AppendTag(e.b, num, protowire.VarintType)
	e.b = protowire.AppendVarint(e.b, v)
}

func (e *encoder) flag(num protowire.Number, v bool) {
	e.uint(num, protowire.EncodeBool(v))
}

func (e *encoder) msg(num protowire.Number, fn func(*encoder)) {
	sub := &encoder{}
	fn(sub)
	e.b = protowire.AppendTag(e.b, num, protowire.BytesType)
	e.b = protowire.AppendBytes(e.b, sub.b)
}

// field is one decoded varint or length-delimited value
type field struct {
	num    protowire.Number
	varint uint64
	bytes  []byte
}

func (f field) str() string {
	return string(f.bytes)
}

func (f field) flag() bool {
	return protowire.DecodeBool(f.varint)
}

// walk calls fn for every varint and length-delimited field; other wire
// types are skipped.
func walk(b []byte, fn func(f field) error) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return protowire.ParseError(n)
		}
		b = b[n:]
		f := field{num: num}
		switch typ {
		case protowire.VarintType:
			f.varint, n = protowire.ConsumeVarint(b)
		case protowire.BytesType:
			f.bytes, n = protowire.ConsumeBytes(b)
		default:
			n = protowire.ConsumeFieldValue(num, typ, b)
		}
		if n < 0 {
			return protowire.ParseError(n)
		}
		b = b[n:]
		if typ != protowire.VarintType && typ != protowire.BytesType {
			continue
		}
		if err := fn(f); err != nil {
			return err
		}
	}
	return nil
}

// Marshal encodes the class description.
func (c *Class) Marshal() []byte {
	e := &encoder{}
	e.uint(1, uint64(c.Version))
	e.uint(2, uint64(c.Kind))
	e.str(3, c.Name)
	e.uint(4, uint64(c.Visibility))
	e.uint(5, uint64(c.Modality))
	for _, tp := range c.TypeParameters {
		e.msg(6, tp.encode)
	}
	for _, t := range c.Supertypes {
		e.msg(7, t.encode)
	}
	for _, ctor := range c.Constructors {
		e.msg(8, ctor.encode)
	}
	for _, p := range c.Properties {
		e.msg(9, p.encode)
	}
	for _, f := range c.Functions {
		e.msg(10, f.encode)
	}
	e.strings(11, c.NestedClasses)
	e.strings(12, c.EnumEntries)
	return e.b
}

// Unmarshal decodes a class description.
func Unmarshal(b []byte) (*Class, error) {
	c := &Class{}
	err := walk(b, func(f field) error {
		switch f.num {
		case 1:
			c.Version = uint32(f.varint)
		case 2:
			c.Kind = Kind(f.varint)
		case 3:
			c.Name = f.str()
		case 4:
			c.Visibility = Visibility(f.varint)
		case 5:
			c.Modality = Modality(f.varint)
		case 6:
			var tp TypeParameter
			if err := tp.decode(f.bytes); err != nil {
				return err
			}
			c.TypeParameters = append(c.TypeParameters, tp)
		case 7:
			var t Type
			if err := t.decode(f.bytes); err != nil {
				return err
			}
			c.Supertypes = append(c.Supertypes, t)
		case 8:
			var ctor Constructor
			if err := ctor.decode(f.bytes); err != nil {
				return err
			}
			c.Constructors = append(c.Constructors, ctor)
		case 9:
			var p Property
			if err := p.decode(f.bytes); err != nil {
				return err
			}
			c.Properties = append(c.Properties, p)
		case 10:
			var fn Function
			if err := fn.decode(f.bytes); err != nil {
				return err
			}
			c.Functions = append(c.Functions, fn)
		case 11:
			c.NestedClasses = append(c.NestedClasses, f.str())
		case 12:
			c.EnumEntries = append(c.EnumEntries, f.str())
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("metadata: %w", err)
	}
	if c.Version != Version {
		return nil, fmt.Errorf("metadata: unsupported version %d", c.Version)
	}
	return c, nil
}

func (t Type) encode(e *encoder) {
	e.str(1, t.Class)
	e.str(2, t.Var)
	e.flag(3, t.Nullable)
	for _, a := range t.Args {
		e.msg(4, a.encode)
	}
}

func (t *Type) decode(b []byte) error {
	return walk(b, func(f field) error {
		switch f.num {
		case 1:
			t.Class = f.str()
		case 2:
			t.Var = f.str()
		case 3:
			t.Nullable = f.flag()
		case 4:
			var a TypeArg
			if err := a.decode(f.bytes); err != nil {
				return err
			}
			t.Args = append(t.Args, a)
		}
		return nil
	})
}

func (a TypeArg) encode(e *encoder) {
	e.uint(1, uint64(a.Variance))
	e.flag(2, a.Star)
	if a.Type != nil {
		e.msg(3, a.Type.encode)
	}
}

func (a *TypeArg) decode(b []byte) error {
	return walk(b, func(f field) error {
		switch f.num {
		case 1:
			a.Variance = Variance(f.varint)
		case 2:
			a.Star = f.flag()
		case 3:
			a.Type = &Type{}
			return a.Type.decode(f.bytes)
		}
		return nil
	})
}

func (tp TypeParameter) encode(e *encoder) {
	e.str(1, tp.Name)
	e.uint(2, uint64(tp.Variance))
	if tp.UpperBound != nil {
		e.msg(3, tp.UpperBound.encode)
	}
}

func (tp *TypeParameter) decode(b []byte) error {
	return walk(b, func(f field) error {
		switch f.num {
		case 1:
			tp.Name = f.str()
		case 2:
			tp.Variance = Variance(f.varint)
		case 3:
			tp.UpperBound = &Type{}
			return tp.UpperBound.decode(f.bytes)
		}
		return nil
	})
}

func (p ValueParameter) encode(e *encoder) {
	e.str(1, p.Name)
	e.msg(2, p.Type.encode)
}

func (p *ValueParameter) decode(b []byte) error {
	return walk(b, func(f field) error {
		switch f.num {
		case 1:
			p.Name = f.str()
		case 2:
			return p.Type.decode(f.bytes)
		}
		return nil
	})
}

func (m JvmMethod) encode(e *encoder) {
	e.str(1, m.Name)
	e.str(2, m.Descriptor)
}

func (m *JvmMethod) decode(b []byte) error {
	return walk(b, func(f field) error {
		switch f.num {
		case 1:
			m.Name = f.str()
		case 2:
			m.Descriptor = f.str()
		}
		return nil
	})
}

func encodeParams(e *encoder, num protowire.Number, params []ValueParameter) {
	for _, p := range params {
		e.msg(num, p.encode)
	}
}

func decodeParam(list *[]ValueParameter, b []byte) error {
	var p ValueParameter
	if err := p.decode(b); err != nil {
		return err
	}
	*list = append(*list, p)
	return nil
}

func (fn Function) encode(e *encoder) {
	e.str(1, fn.Name)
	encodeParams(e, 2, fn.Params)
	e.msg(3, fn.Return.encode)
	e.uint(4, uint64(fn.Visibility))
	e.uint(5, uint64(fn.Modality))
	e.msg(6, fn.JVM.encode)
	e.flag(7, fn.DefaultImpl)
}

func (fn *Function) decode(b []byte) error {
	return walk(b, func(f field) error {
		switch f.num {
		case 1:
			fn.Name = f.str()
		case 2:
			return decodeParam(&fn.Params, f.bytes)
		case 3:
			return fn.Return.decode(f.bytes)
		case 4:
			fn.Visibility = Visibility(f.varint)
		case 5:
			fn.Modality = Modality(f.varint)
		case 6:
			return fn.JVM.decode(f.bytes)
		case 7:
			fn.DefaultImpl = f.flag()
		}
		return nil
	})
}

func (a Accessor) encode(e *encoder) {
	e.uint(1, uint64(a.Visibility))
	e.msg(2, a.JVM.encode)
}

func (a *Accessor) decode(b []byte) error {
	return walk(b, func(f field) error {
		switch f.num {
		case 1:
			a.Visibility = Visibility(f.varint)
		case 2:
			return a.JVM.decode(f.bytes)
		}
		return nil
	})
}

func (p Property) encode(e *encoder) {
	e.str(1, p.Name)
	e.msg(2, p.Type.encode)
	if p.SetterType != nil {
		e.msg(3, p.SetterType.encode)
	}
	e.uint(4, uint64(p.Visibility))
	e.uint(5, uint64(p.Modality))
	e.flag(6, p.Settable)
	e.flag(7, p.ConstructorDeclared)
	if p.Getter != nil {
		e.msg(8, p.Getter.encode)
	}
	if p.Setter != nil {
		e.msg(9, p.Setter.encode)
	}
	if p.Field != nil {
		e.msg(10, p.Field.encode)
	}
}

func (p *Property) decode(b []byte) error {
	return walk(b, func(f field) error {
		switch f.num {
		case 1:
			p.Name = f.str()
		case 2:
			return p.Type.decode(f.bytes)
		case 3:
			p.SetterType = &Type{}
			return p.SetterType.decode(f.bytes)
		case 4:
			p.Visibility = Visibility(f.varint)
		case 5:
			p.Modality = Modality(f.varint)
		case 6:
			p.Settable = f.flag()
		case 7:
			p.ConstructorDeclared = f.flag()
		case 8:
			p.Getter = &Accessor{}
			return p.Getter.decode(f.bytes)
		case 9:
			p.Setter = &Accessor{}
			return p.Setter.decode(f.bytes)
		case 10:
			p.Field = &JvmMethod{}
			return p.Field.decode(f.bytes)
		}
		return nil
	})
}

func (c Constructor) encode(e *encoder) {
	encodeParams(e, 1, c.Params)
	e.uint(2, uint64(c.Visibility))
	e.flag(3, c.Primary)
	e.msg(4, c.JVM.encode)
}

func (c *Constructor) decode(b []byte) error {
	return walk(b, func(f field) error {
		switch f.num {
		case 1:
			return decodeParam(&c.Params, f.bytes)
		case 2:
			c.Visibility = Visibility(f.varint)
		case 3:
			c.Primary = f.flag()
		case 4:
			return c.JVM.decode(f.bytes)
		}
		return nil
	})
}
