// Package classfile reads and writes JVM class files: the constant pool,
// members, the attributes the synthesizer emits, and straight-line bytecode.
package classfile

import (
	"encoding/binary"
	"errors"
	"fmt"

	"fortio.org/safecast"
)

// Constant pool tags
const (
	TagUtf8               byte = 1
	TagInteger            byte = 3
	TagClass              byte = 7
	TagString             byte = 8
	TagFieldref           byte = 9
	TagMethodref          byte = 10
	TagInterfaceMethodref byte = 11
	TagNameAndType        byte = 12
)

var ErrPoolOverflow = errors.New("classfile: constant pool exceeds 65535 entries")

// Constant is one pool entry. Which fields are used depends on Tag: Utf8
// uses Str, Integer uses Int, the rest reference other entries.
type Constant struct {
	Tag  byte
	Str  string
	Int  int32
	Ref1 uint16 // class, name_and_type.name, string utf8
	Ref2 uint16 // name_and_type of member refs, name_and_type.descriptor
}

func (c Constant) key() string {
	switch c.Tag {
	case TagUtf8:
		return "u:" + c.Str
	case TagInteger:
		return fmt.Sprintf("i:%d", c.Int)
	}
	return fmt.Sprintf("%d:%d:%d", c.Tag, c.Ref1, c.Ref2)
}

// Pool is a deduplicating constant pool. Entries keep insertion order, so
// the same sequence of requests always produces the same pool.
type Pool struct {
	entries []Constant // index 0 unused
	index   map[string]uint16
}

// NewPool returns an empty pool.
func NewPool() *Pool {
	return &Pool{entries: make([]Constant, 1), index: make(map[string]uint16)}
}

// Len is the constant_pool_count of the pool.
func (p *Pool) Len() int {
	return len(p.entries)
}

// Get returns the entry at index i.
func (p *Pool) Get(i uint16) (Constant, error) {
	if i == 0 || int(i) >= len(p.entries) {
		return Constant{}, fmt.Errorf("classfile: constant pool index %d out of range", i)
	}
	return p.entries[i], nil
}

func (p *Pool) add(c Constant) (uint16, error) {
	k := c.key()
	if i, ok := p.index[k]; ok {
		return i, nil
	}
	i, err := safecast.Conv[uint16](len(p.entries))
	if err != nil || i == 0xFFFF {
		return 0, ErrPoolOverflow
	}
	p.entries = append(p.entries, c)
	p.index[k] = i
	return i, nil
}

// Utf8 interns a modified-UTF8 string.
func (p *Pool) Utf8(s string) (uint16, error) {
	return p.add(Constant{Tag: TagUtf8, Str: s})
}

// Integer interns an int constant.
func (p *Pool) Integer(v int32) (uint16, error) {
	return p.add(Constant{Tag: TagInteger, Int: v})
}

// Class interns a class reference by internal name (or array descriptor).
func (p *Pool) Class(internal string) (uint16, error) {
	n, err := p.Utf8(internal)
	if err != nil {
		return 0, err
	}
	return p.add(Constant{Tag: TagClass, Ref1: n})
}

// String interns a string literal.
func (p *Pool) String(s string) (uint16, error) {
	n, err := p.Utf8(s)
	if err != nil {
		return 0, err
	}
	return p.add(Constant{Tag: TagString, Ref1: n})
}

// NameAndType interns a name and descriptor pair.
func (p *Pool) NameAndType(name, desc string) (uint16, error) {
	n, err := p.Utf8(name)
	if err != nil {
		return 0, err
	}
	d, err := p.Utf8(desc)
	if err != nil {
		return 0, err
	}
	return p.add(Constant{Tag: TagNameAndType, Ref1: n, Ref2: d})
}

// Member interns a field, method or interface method reference.
func (p *Pool) Member(tag byte, owner, name, desc string) (uint16, error) {
	c, err := p.Class(owner)
	if err != nil {
		return 0, err
	}
	nt, err := p.NameAndType(name, desc)
	if err != nil {
		return 0, err
	}
	return p.add(Constant{Tag: tag, Ref1: c, Ref2: nt})
}

// Utf8At resolves a Utf8 entry.
func (p *Pool) Utf8At(i uint16) (string, error) {
	c, err := p.Get(i)
	if err != nil {
		return "", err
	}
	if c.Tag != TagUtf8 {
		return "", fmt.Errorf("classfile: entry %d is tag %d, want Utf8", i, c.Tag)
	}
	return c.Str, nil
}

// ClassAt resolves a Class entry to its internal name.
func (p *Pool) ClassAt(i uint16) (string, error) {
	c, err := p.Get(i)
	if err != nil {
		return "", err
	}
	if c.Tag != TagClass {
		return "", fmt.Errorf("classfile: entry %d is tag %d, want Class", i, c.Tag)
	}
	return p.Utf8At(c.Ref1)
}

// MemberRef is a resolved field or method reference.
type MemberRef struct {
	Tag        byte
	Owner      string
	Name       string
	Descriptor string
}

// MemberAt resolves a Fieldref, Methodref or InterfaceMethodref entry.
func (p *Pool) MemberAt(i uint16) (MemberRef, error) {
	c, err := p.Get(i)
	if err != nil {
		return MemberRef{}, err
	}
	switch c.Tag {
	case TagFieldref, TagMethodref, TagInterfaceMethodref:
	default:
		return MemberRef{}, fmt.Errorf("classfile: entry %d is tag %d, want member reference", i, c.Tag)
	}
	owner, err := p.ClassAt(c.Ref1)
	if err != nil {
		return MemberRef{}, err
	}
	nt, err := p.Get(c.Ref2)
	if err != nil {
		return MemberRef{}, err
	}
	name, err := p.Utf8At(nt.Ref1)
	if err != nil {
		return MemberRef{}, err
	}
	desc, err := p.Utf8At(nt.Ref2)
	if err != nil {
		return MemberRef{}, err
	}
	return MemberRef{Tag: c.Tag, Owner: owner, Name: name, Descriptor: desc}, nil
}

// Classes lists the internal names of all Class entries in pool order.
func (p *Pool) Classes() []string {
	var out []string
	for _, c := range p.entries[1:] {
		if c.Tag == TagClass {
			out = append(out, p.entries[c.Ref1].Str)
		}
	}
	return out
}

func (p *Pool) appendTo(b []byte) ([]byte, error) {
	count, err := safecast.Conv[uint16](len(p.entries))
	if err != nil {
		return nil, ErrPoolOverflow
	}
	b = binary.BigEndian.AppendUint16(b, count)
	for _, c := range p.entries[1:] {
		b = append(b, c.Tag)
		switch c.Tag {
		case TagUtf8:
			enc := encodeModifiedUTF8(c.Str)
			n, err := safecast.Conv[uint16](len(enc))
			if err != nil {
				return nil, fmt.Errorf("classfile: utf8 constant too long (%d bytes)", len(enc))
			}
			b = binary.BigEndian.AppendUint16(b, n)
			b = append(b, enc...)
		case TagInteger:
			b = binary.BigEndian.AppendUint32(b, uint32(c.Int))
		case TagClass, TagString:
			b = binary.BigEndian.AppendUint16(b, c.Ref1)
		default:
			b = binary.BigEndian.AppendUint16(b, c.Ref1)
			b = binary.BigEndian.AppendUint16(b, c.Ref2)
		}
	}
	return b, nil
}

func readPool(r *reader) (*Pool, error) {
	count := r.u2()
	p := NewPool()
	for i := 1; i < int(count); i++ {
		tag := r.u1()
		var c Constant
		c.Tag = tag
		switch tag {
		case TagUtf8:
			n := r.u2()
			s, err := decodeModifiedUTF8(r.bytes(int(n)))
			if err != nil {
				return nil, err
			}
			c.Str = s
		case TagInteger:
			c.Int = int32(r.u4())
		case TagClass, TagString:
			c.Ref1 = r.u2()
		case TagFieldref, TagMethodref, TagInterfaceMethodref, TagNameAndType:
			c.Ref1 = r.u2()
			c.Ref2 = r.u2()
		default:
			return nil, fmt.Errorf("classfile: unsupported constant tag %d at index %d", tag, i)
		}
		if r.err != nil {
			return nil, r.err
		}
		p.entries = append(p.entries, c)
		if _, dup := p.index[c.key()]; !dup {
			p.index[c.key()] = uint16(i)
		}
	}
	return p, nil
}

// encodeModifiedUTF8 encodes s the way the class-file format expects: NUL
// as two bytes, supplementary characters as surrogate pairs.
func encodeModifiedUTF8(s string) []byte {
	out := make([]byte, 0, len(s))
	for _, r := range s {
		switch {
		case r != 0 && r < 0x80:
			out = append(out, byte(r))
		case r < 0x800:
			out = append(out, 0xC0|byte(r>>6), 0x80|byte(r&0x3F))
		case r < 0x10000:
			out = append(out, 0xE0|byte(r>>12), 0x80|byte((r>>6)&0x3F), 0x80|byte(r&0x3F))
		default:
			r -= 0x10000
			hi := 0xD800 + (r >> 10)
			lo := 0xDC00 + (r & 0x3FF)
			for _, u := range []rune{hi, lo} {
				out = append(out, 0xE0|byte(u>>12), 0x80|byte((u>>6)&0x3F), 0x80|byte(u&0x3F))
			}
		}
	}
	return out
}

func decodeModifiedUTF8(b []byte) (string, error) {
	var units []rune
	for i := 0; i < len(b); {
		c := b[i]
		switch {
		case c < 0x80:
			units = append(units, rune(c))
			i++
		case c&0xE0 == 0xC0 && i+1 < len(b):
			units = append(units, rune(c&0x1F)<<6|rune(b[i+1]&0x3F))
			i += 2
		case c&0xF0 == 0xE0 && i+2 < len(b):
			units = append(units, rune(c&0x0F)<<12|rune(b[i+1]&0x3F)<<6|rune(b[i+2]&0x3F))
			i += 3
		default:
			return "", fmt.Errorf("classfile: malformed utf8 constant at byte %d", i)
		}
	}
	out := make([]rune, 0, len(units))
	for i := 0; i < len(units); i++ {
		u := units[i]
		if u >= 0xD800 && u < 0xDC00 && i+1 < len(units) && units[i+1] >= 0xDC00 && units[i+1] < 0xE000 {
			u = 0x10000 + (u-0xD800)<<10 + (units[i+1] - 0xDC00)
			i++
		}
		out = append(out, u)
	}
	return string(out), nil
}
