package classfile

import (
	"encoding/binary"
	"errors"
	"fmt"

	"fortio.org/safecast"
)

// Magic is the class-file signature.
const Magic uint32 = 0xCAFEBABE

// DefaultMajorVersion is the class-file version emitted unless overridden.
const DefaultMajorVersion uint16 = 52

// Access flags
const (
	AccPublic    uint16 = 0x0001
	AccPrivate   uint16 = 0x0002
	AccProtected uint16 = 0x0004
	AccStatic    uint16 = 0x0008
	AccFinal     uint16 = 0x0010
	AccSuper     uint16 = 0x0020
	AccInterface uint16 = 0x0200
	AccAbstract  uint16 = 0x0400
	AccSynthetic uint16 = 0x1000
	AccEnum      uint16 = 0x4000
)

// Attribute names
const (
	AttrCode         = "Code"
	AttrSignature    = "Signature"
	AttrInnerClasses = "InnerClasses"
	AttrSourceFile   = "SourceFile"
	// AttrMetadata carries the structural description read by the host
	// compiler.
	AttrMetadata = "Metadata"
)

var ErrBadMagic = errors.New("classfile: bad magic")

// Code is the body of a method.
type Code struct {
	MaxStack  uint16
	MaxLocals uint16
	Bytes     []byte
}

// InnerClass is one row of the InnerClasses attribute. Outer and Name are
// empty for local and anonymous classes.
type InnerClass struct {
	Inner  string
	Outer  string
	Name   string
	Access uint16
}

// Member is a field or a method.
type Member struct {
	Access     uint16
	Name       string
	Descriptor string
	Signature  string // generic signature, empty when not needed
	Code       *Code  // methods only; nil for abstract methods
}

// IsStatic reports whether the member is static.
func (m *Member) IsStatic() bool {
	return m.Access&AccStatic != 0
}

// ClassFile is an in-memory class file. Code bytes reference Pool indices,
// so the same pool must be used for assembly and serialization.
type ClassFile struct {
	Minor        uint16
	Major        uint16
	Pool         *Pool
	Access       uint16
	This         string
	Super        string
	Interfaces   []string
	Signature    string
	SourceFile   string
	Fields       []*Member
	Methods      []*Member
	InnerClasses []InnerClass
	Metadata     []byte
}

// New returns an empty class file with its own pool.
func New(major uint16, access uint16, this, super string) *ClassFile {
	return &ClassFile{Major: major, Pool: NewPool(), Access: access, This: this, Super: super}
}

// Field looks up a field by name.
func (cf *ClassFile) Field(name string) (*Member, bool) {
	for _, f := range cf.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return nil, false
}

// Method looks up a method by name and descriptor.
func (cf *ClassFile) Method(name, desc string) (*Member, bool) {
	for _, m := range cf.Methods {
		if m.Name == name && m.Descriptor == desc {
			return m, true
		}
	}
	return nil, false
}

// Bytes serializes the class file. Names not yet in the pool are interned
// first, so the pool is complete before it is written.
func (cf *ClassFile) Bytes() ([]byte, error) {
	w := &writer{pool: cf.Pool}

	this := w.class(cf.This)
	var super uint16
	if cf.Super != "" {
		super = w.class(cf.Super)
	}
	ifaces := make([]uint16, len(cf.Interfaces))
	for i, name := range cf.Interfaces {
		ifaces[i] = w.class(name)
	}
	fields := w.members(cf.Fields)
	methods := w.members(cf.Methods)
	attrs := w.classAttributes(cf)
	if w.err != nil {
		return nil, w.err
	}

	out := binary.BigEndian.AppendUint32(nil, Magic)
	out = binary.BigEndian.AppendUint16(out, cf.Minor)
	out = binary.BigEndian.AppendUint16(out, cf.Major)
	out, err := cf.Pool.appendTo(out)
	if err != nil {
		return nil, err
	}
	out = binary.BigEndian.AppendUint16(out, cf.Access)
	out = binary.BigEndian.AppendUint16(out, this)
	out = binary.BigEndian.AppendUint16(out, super)
	if out, err = appendCount(out, len(ifaces)); err != nil {
		return nil, err
	}
	for _, i := range ifaces {
		out = binary.BigEndian.AppendUint16(out, i)
	}
	for _, section := range [][]byte{fields, methods, attrs} {
		out = append(out, section...)
	}
	return out, nil
}

// writer interns names and encodes the member and attribute sections. The
// first error sticks.
type writer struct {
	pool *Pool
	err  error
}

func (w *writer) utf8(s string) uint16 {
	if w.err != nil {
		return 0
	}
	i, err := w.pool.Utf8(s)
	w.err = err
	return i
}

func (w *writer) class(name string) uint16 {
	if w.err != nil {
		return 0
	}
	i, err := w.pool.Class(name)
	w.err = err
	return i
}

func (w *writer) count(b []byte, n int) []byte {
	if w.err != nil {
		return b
	}
	b, w.err = appendCount(b, n)
	return b
}

func (w *writer) attribute(b []byte, name string, body []byte) []byte {
	b = binary.BigEndian.AppendUint16(b, w.utf8(name))
	n, err := safecast.Conv[uint32](len(body))
	if err != nil && w.err == nil {
		w.err = fmt.Errorf("classfile: attribute %s too large", name)
	}
	b = binary.BigEndian.AppendUint32(b, n)
	return append(b, body...)
}

func (w *writer) members(list []*Member) []byte {
	b := w.count(nil, len(list))
	for _, m := range list {
		b = binary.BigEndian.AppendUint16(b, m.Access)
		b = binary.BigEndian.AppendUint16(b, w.utf8(m.Name))
		b = binary.BigEndian.AppendUint16(b, w.utf8(m.Descriptor))

		n := 0
		if m.Code != nil {
			n++
		}
		if m.Signature != "" {
			n++
		}
		b = w.count(b, n)
		if m.Code != nil {
			b = w.attribute(b, AttrCode, w.code(m.Code))
		}
		if m.Signature != "" {
			b = w.attribute(b, AttrSignature, binary.BigEndian.AppendUint16(nil, w.utf8(m.Signature)))
		}
	}
	return b
}

func (w *writer) code(c *Code) []byte {
	b := binary.BigEndian.AppendUint16(nil, c.MaxStack)
	b = binary.BigEndian.AppendUint16(b, c.MaxLocals)
	n, err := safecast.Conv[uint32](len(c.Bytes))
	if err != nil && w.err == nil {
		w.err = errors.New("classfile: code too large")
	}
	b = binary.BigEndian.AppendUint32(b, n)
	b = append(b, c.Bytes...)
	b = binary.BigEndian.AppendUint16(b, 0) // exception table
	return binary.BigEndian.AppendUint16(b, 0)
}

func (w *writer) classAttributes(cf *ClassFile) []byte {
	n := 0
	for _, present := range []bool{cf.SourceFile != "", cf.Signature != "", len(cf.InnerClasses) > 0, cf.Metadata != nil} {
		if present {
			n++
		}
	}
	b := w.count(nil, n)
	if cf.SourceFile != "" {
		b = w.attribute(b, AttrSourceFile, binary.BigEndian.AppendUint16(nil, w.utf8(cf.SourceFile)))
	}
	if cf.Signature != "" {
		b = w.attribute(b, AttrSignature, binary.BigEndian.AppendUint16(nil, w.utf8(cf.Signature)))
	}
	if len(cf.InnerClasses) > 0 {
		body := w.count(nil, len(cf.InnerClasses))
		for _, ic := range cf.InnerClasses {
			body = binary.BigEndian.AppendUint16(body, w.class(ic.Inner))
			var outer, name uint16
			if ic.Outer != "" {
				outer = w.class(ic.Outer)
			}
			if ic.Name != "" {
				name = w.utf8(ic.Name)
			}
			body = binary.BigEndian.AppendUint16(body, outer)
			body = binary.BigEndian.AppendUint16(body, name)
			body = binary.BigEndian.AppendUint16(body, ic.Access)
		}
		b = w.attribute(b, AttrInnerClasses, body)
	}
	if cf.Metadata != nil {
		b = w.attribute(b, AttrMetadata, cf.Metadata)
	}
	return b
}

func appendCount(b []byte, n int) ([]byte, error) {
	v, err := safecast.Conv[uint16](n)
	if err != nil {
		return nil, fmt.Errorf("classfile: count %d exceeds u2", n)
	}
	return binary.BigEndian.AppendUint16(b, v), nil
}

// Parse decodes a class file produced by Bytes. Unknown attributes are
// skipped.
func Parse(data []byte) (*ClassFile, error) {
	r := &reader{data: data}
	if r.u4() != Magic {
		return nil, ErrBadMagic
	}
	cf := &ClassFile{Minor: r.u2(), Major: r.u2()}
	pool, err := readPool(r)
	if err != nil {
		return nil, err
	}
	cf.Pool = pool
	cf.Access = r.u2()
	if cf.This, err = pool.ClassAt(r.u2()); err != nil {
		return nil, err
	}
	if super := r.u2(); super != 0 {
		if cf.Super, err = pool.ClassAt(super); err != nil {
			return nil, err
		}
	}
	for n := r.u2(); n > 0; n-- {
		name, err := pool.ClassAt(r.u2())
		if err != nil {
			return nil, err
		}
		cf.Interfaces = append(cf.Interfaces, name)
	}
	if cf.Fields, err = parseMembers(r, pool); err != nil {
		return nil, err
	}
	if cf.Methods, err = parseMembers(r, pool); err != nil {
		return nil, err
	}
	for n := r.u2(); n > 0; n-- {
		name, body, err := parseAttribute(r, pool)
		if err != nil {
			return nil, err
		}
		sub := &reader{data: body}
		switch name {
		case AttrSourceFile:
			cf.SourceFile, err = pool.Utf8At(sub.u2())
		case AttrSignature:
			cf.Signature, err = pool.Utf8At(sub.u2())
		case AttrMetadata:
			cf.Metadata = body
		case AttrInnerClasses:
			cf.InnerClasses, err = parseInnerClasses(sub, pool)
		}
		if err != nil {
			return nil, err
		}
	}
	if r.err != nil {
		return nil, r.err
	}
	if r.pos != len(data) {
		return nil, fmt.Errorf("classfile: %d trailing bytes", len(data)-r.pos)
	}
	return cf, nil
}

func parseMembers(r *reader, pool *Pool) ([]*Member, error) {
	var out []*Member
	for n := r.u2(); n > 0; n-- {
		m := &Member{Access: r.u2()}
		var err error
		if m.Name, err = pool.Utf8At(r.u2()); err != nil {
			return nil, err
		}
		if m.Descriptor, err = pool.Utf8At(r.u2()); err != nil {
			return nil, err
		}
		for a := r.u2(); a > 0; a-- {
			name, body, err := parseAttribute(r, pool)
			if err != nil {
				return nil, err
			}
			sub := &reader{data: body}
			switch name {
			case AttrSignature:
				if m.Signature, err = pool.Utf8At(sub.u2()); err != nil {
					return nil, err
				}
			case AttrCode:
				c := &Code{MaxStack: sub.u2(), MaxLocals: sub.u2()}
				c.Bytes = sub.bytes(int(sub.u4()))
				if sub.err != nil {
					return nil, sub.err
				}
				m.Code = c
			}
		}
		out = append(out, m)
	}
	return out, r.err
}

func parseAttribute(r *reader, pool *Pool) (string, []byte, error) {
	name, err := pool.Utf8At(r.u2())
	if err != nil {
		return "", nil, err
	}
	body := r.bytes(int(r.u4()))
	return name, body, r.err
}

func parseInnerClasses(r *reader, pool *Pool) ([]InnerClass, error) {
	var out []InnerClass
	for n := r.u2(); n > 0; n-- {
		var ic InnerClass
		var err error
		if ic.Inner, err = pool.ClassAt(r.u2()); err != nil {
			return nil, err
		}
		if outer := r.u2(); outer != 0 {
			if ic.Outer, err = pool.ClassAt(outer); err != nil {
				return nil, err
			}
		}
		if name := r.u2(); name != 0 {
			if ic.Name, err = pool.Utf8At(name); err != nil {
				return nil, err
			}
		}
		ic.Access = r.u2()
		out = append(out, ic)
	}
	return out, r.err
}

// reader is a big-endian cursor; the first short read sticks in err.
type reader struct {
	data []byte
	pos  int
	err  error
}

func (r *reader) bytes(n int) []byte {
	if r.err != nil {
		return nil
	}
	if n < 0 || r.pos+n > len(r.data) {
		r.err = fmt.Errorf("classfile: truncated at byte %d", r.pos)
		return nil
	}
	b := r.data[r.pos : r.pos+n]
	r.pos += n
	return b
}

func (r *reader) u1() byte {
	b := r.bytes(1)
	if b == nil {
		return 0
	}
	return b[0]
}

func (r *reader) u2() uint16 {
	b := r.bytes(2)
	if b == nil {
		return 0
	}
	return binary.BigEndian.Uint16(b)
}

func (r *reader) u4() uint32 {
	b := r.bytes(4)
	if b == nil {
		return 0
	}
	return binary.BigEndian.Uint32(b)
}
