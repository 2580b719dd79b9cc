package classfile

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// ConstantKind is the tag of a constant pool entry.
type ConstantKind uint8

// Constant pool tags from JVMS §4.4.
const (
	ConstantUtf8               ConstantKind = 1
	ConstantInteger            ConstantKind = 3
	ConstantFloat              ConstantKind = 4
	ConstantLong               ConstantKind = 5
	ConstantDouble             ConstantKind = 6
	ConstantClass              ConstantKind = 7
	ConstantString             ConstantKind = 8
	ConstantFieldref           ConstantKind = 9
	ConstantMethodref          ConstantKind = 10
	ConstantInterfaceMethodref ConstantKind = 11
	ConstantNameAndType        ConstantKind = 12
	ConstantMethodHandle       ConstantKind = 15
	ConstantMethodType         ConstantKind = 16
	ConstantDynamic            ConstantKind = 17
	ConstantInvokeDynamic      ConstantKind = 18
	ConstantModule             ConstantKind = 19
	ConstantPackage            ConstantKind = 20

	// constantUnusable marks index 0 and the slot following a long or double.
	constantUnusable ConstantKind = 0
)

// constant is one decoded pool entry. Only the fields needed to resolve
// names and references are kept; numeric values are skipped.
type constant struct {
	kind ConstantKind
	str  string
	ref1 uint16 // class/string/methodtype/module/package: name; member refs: class; nat: name; dynamic: bootstrap
	ref2 uint16 // member refs and dynamic: name-and-type; nat: descriptor
}

type constantPool []constant

func readConstantPool(r *byteReader) (constantPool, error) {
	count, err := r.u2()
	if err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, malformed("constant pool count is zero")
	}
	pool := make(constantPool, 1, count)
	for len(pool) < int(count) {
		tag, err := r.u1()
		if err != nil {
			return nil, err
		}
		c := constant{kind: ConstantKind(tag)}
		switch c.kind {
		case ConstantUtf8:
			n, err := r.u2()
			if err != nil {
				return nil, err
			}
			raw, err := r.bytes(int(n))
			if err != nil {
				return nil, err
			}
			s, err := decodeModifiedUTF8(raw)
			if err != nil {
				return nil, fmt.Errorf("constant %d: %w", len(pool), err)
			}
			c.str = s
		case ConstantInteger, ConstantFloat:
			if err := r.skip(4); err != nil {
				return nil, err
			}
		case ConstantLong, ConstantDouble:
			if err := r.skip(8); err != nil {
				return nil, err
			}
		case ConstantClass, ConstantString, ConstantMethodType, ConstantModule, ConstantPackage:
			if c.ref1, err = r.u2(); err != nil {
				return nil, err
			}
		case ConstantFieldref, ConstantMethodref, ConstantInterfaceMethodref,
			ConstantNameAndType, ConstantDynamic, ConstantInvokeDynamic:
			if c.ref1, err = r.u2(); err != nil {
				return nil, err
			}
			if c.ref2, err = r.u2(); err != nil {
				return nil, err
			}
		case ConstantMethodHandle:
			kind, err := r.u1()
			if err != nil {
				return nil, err
			}
			c.ref1 = uint16(kind)
			if c.ref2, err = r.u2(); err != nil {
				return nil, err
			}
		default:
			return nil, malformed("invalid constant pool tag %d at index %d", tag, len(pool))
		}
		pool = append(pool, c)
		// 8-byte constants take two entries (JVMS §4.4.5).
		if c.kind == ConstantLong || c.kind == ConstantDouble {
			pool = append(pool, constant{})
		}
	}
	if len(pool) != int(count) {
		return nil, malformed("constant pool overflows its count %d", count)
	}
	return pool, nil
}

func (p constantPool) entry(idx uint16, want ...ConstantKind) (constant, error) {
	if idx == 0 || int(idx) >= len(p) {
		return constant{}, malformed("constant pool index %d out of range", idx)
	}
	c := p[idx]
	for _, k := range want {
		if c.kind == k {
			return c, nil
		}
	}
	return constant{}, malformed("constant pool index %d has tag %d, want %v", idx, c.kind, want)
}

func (p constantPool) utf8(idx uint16) (string, error) {
	c, err := p.entry(idx, ConstantUtf8)
	if err != nil {
		return "", err
	}
	return c.str, nil
}

// className resolves a CONSTANT_Class entry to its internal name. Array
// classes resolve to their descriptor, e.g. "[Ljava/lang/String;".
func (p constantPool) className(idx uint16) (string, error) {
	c, err := p.entry(idx, ConstantClass)
	if err != nil {
		return "", err
	}
	return p.utf8(c.ref1)
}

// optionalClassName is className for fields where zero means "none".
func (p constantPool) optionalClassName(idx uint16) (string, error) {
	if idx == 0 {
		return "", nil
	}
	return p.className(idx)
}

func (p constantPool) nameAndType(idx uint16) (name, desc string, err error) {
	c, err := p.entry(idx, ConstantNameAndType)
	if err != nil {
		return "", "", err
	}
	if name, err = p.utf8(c.ref1); err != nil {
		return "", "", err
	}
	desc, err = p.utf8(c.ref2)
	return name, desc, err
}

// memberRef resolves a field, method or interface method reference.
func (p constantPool) memberRef(idx uint16, kinds ...ConstantKind) (owner, name, desc string, err error) {
	c, err := p.entry(idx, kinds...)
	if err != nil {
		return "", "", "", err
	}
	if owner, err = p.className(c.ref1); err != nil {
		return "", "", "", err
	}
	name, desc, err = p.nameAndType(c.ref2)
	return owner, name, desc, err
}

// decodeModifiedUTF8 decodes the JVM's modified UTF-8 (JVMS §4.4.7): NUL is
// encoded in two bytes and supplementary characters as surrogate pairs.
func decodeModifiedUTF8(b []byte) (string, error) {
	plain := true
	for _, c := range b {
		if c == 0 || c >= 0x80 {
			plain = false
			break
		}
	}
	if plain {
		return string(b), nil
	}

	var sb strings.Builder
	var units []uint16
	for i := 0; i < len(b); {
		c := b[i]
		switch {
		case c == 0:
			return "", malformed("NUL byte in modified UTF-8 string")
		case c < 0x80:
			units = append(units, uint16(c))
			i++
		case c&0xE0 == 0xC0:
			if i+1 >= len(b) || b[i+1]&0xC0 != 0x80 {
				return "", malformed("truncated modified UTF-8 sequence")
			}
			units = append(units, uint16(c&0x1F)<<6|uint16(b[i+1]&0x3F))
			i += 2
		case c&0xF0 == 0xE0:
			if i+2 >= len(b) || b[i+1]&0xC0 != 0x80 || b[i+2]&0xC0 != 0x80 {
				return "", malformed("truncated modified UTF-8 sequence")
			}
			units = append(units, uint16(c&0x0F)<<12|uint16(b[i+1]&0x3F)<<6|uint16(b[i+2]&0x3F))
			i += 3
		default:
			return "", malformed("invalid modified UTF-8 lead byte 0x%02x", c)
		}
	}
	for i := 0; i < len(units); i++ {
		u := rune(units[i])
		if u >= 0xD800 && u < 0xDC00 && i+1 < len(units) {
			if lo := rune(units[i+1]); lo >= 0xDC00 && lo < 0xE000 {
				sb.WriteRune((u-0xD800)<<10 | (lo - 0xDC00) + 0x10000)
				i++
				continue
			}
		}
		if u >= 0xD800 && u < 0xE000 {
			u = utf8.RuneError
		}
		sb.WriteRune(u)
	}
	return sb.String(), nil
}
