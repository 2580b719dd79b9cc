// Package classfile parses compiled JVM class files into their structural
// records without executing them, and exposes those records as an ordered
// sequence of events for extractors to consume.
//
// Only the parts needed for dependency and call-site analysis are kept:
// names, descriptors, generic signatures, annotations, decoded instructions
// that reference the constant pool, line-number and local-variable tables.
package classfile

import (
	"bytes"
	"fmt"
	"io"
)

const magic = 0xCAFEBABE

// ClassFile is the parsed form of one class file.
type ClassFile struct {
	MinorVersion uint16
	MajorVersion uint16
	Access       uint16
	Name         string
	SuperName    string
	Interfaces   []string
	Signature    string
	SourceFile   string
	Annotations  []Annotation
	Fields       []Field
	Methods      []Method
}

// Field is a field_info structure.
type Field struct {
	Access      uint16
	Name        string
	Descriptor  string
	Signature   string
	Annotations []Annotation
}

// Method is a method_info structure. Code is nil for abstract and native
// methods.
type Method struct {
	Access      uint16
	Name        string
	Descriptor  string
	Signature   string
	Exceptions  []string
	Annotations []Annotation
	Code        *Code
}

// Code is the decoded Code attribute of a method.
type Code struct {
	Instructions   []Instruction
	Lines          []LineEntry
	TryCatch       []TryCatchBlock
	LocalVariables []LocalVariable
}

// LineEntry is one LineNumberTable row.
type LineEntry struct {
	PC   int
	Line int
}

// TryCatchBlock is an exception table entry. Type is empty for handlers
// that catch everything (finally blocks).
type TryCatchBlock struct {
	StartPC, EndPC, HandlerPC int
	Type                      string
}

// LocalVariable merges a LocalVariableTable row with the matching
// LocalVariableTypeTable row, if any.
type LocalVariable struct {
	Name       string
	Descriptor string
	Signature  string
	Index      int
	StartPC    int
}

// Parse decodes a class file. Every structural problem is reported as an
// error wrapping ErrMalformedClassFile.
func Parse(data []byte) (*ClassFile, error) {
	r := newByteReader(data)
	m, err := r.u4()
	if err != nil {
		return nil, err
	}
	if m != magic {
		return nil, malformed("bad magic 0x%08x", m)
	}

	cf := &ClassFile{}
	if cf.MinorVersion, err = r.u2(); err != nil {
		return nil, err
	}
	if cf.MajorVersion, err = r.u2(); err != nil {
		return nil, err
	}
	pool, err := readConstantPool(r)
	if err != nil {
		return nil, err
	}
	if cf.Access, err = r.u2(); err != nil {
		return nil, err
	}

	this, err := r.u2()
	if err != nil {
		return nil, err
	}
	if cf.Name, err = pool.className(this); err != nil {
		return nil, fmt.Errorf("this_class: %w", err)
	}
	super, err := r.u2()
	if err != nil {
		return nil, err
	}
	if cf.SuperName, err = pool.optionalClassName(super); err != nil {
		return nil, fmt.Errorf("super_class: %w", err)
	}

	n, err := r.u2()
	if err != nil {
		return nil, err
	}
	for range n {
		idx, err := r.u2()
		if err != nil {
			return nil, err
		}
		name, err := pool.className(idx)
		if err != nil {
			return nil, fmt.Errorf("interfaces: %w", err)
		}
		cf.Interfaces = append(cf.Interfaces, name)
	}

	if cf.Fields, err = readFields(r, pool); err != nil {
		return nil, err
	}
	if cf.Methods, err = readMethods(r, pool); err != nil {
		return nil, err
	}
	if err := readClassAttributes(r, pool, cf); err != nil {
		return nil, err
	}
	if r.remaining() != 0 {
		return nil, malformed("%d trailing bytes after class attributes", r.remaining())
	}
	return cf, nil
}

// ParseReader reads all of rd and parses it.
func ParseReader(rd io.Reader) (*ClassFile, error) {
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(rd); err != nil {
		return nil, err
	}
	return Parse(buf.Bytes())
}

// ---------------------------------------------------------------------------
// Members
// ---------------------------------------------------------------------------

type memberHeader struct {
	access     uint16
	name, desc string
}

func readMemberHeader(r *byteReader, pool constantPool) (memberHeader, error) {
	var h memberHeader
	var err error
	if h.access, err = r.u2(); err != nil {
		return h, err
	}
	nameIdx, err := r.u2()
	if err != nil {
		return h, err
	}
	descIdx, err := r.u2()
	if err != nil {
		return h, err
	}
	if h.name, err = pool.utf8(nameIdx); err != nil {
		return h, err
	}
	h.desc, err = pool.utf8(descIdx)
	return h, err
}

func readFields(r *byteReader, pool constantPool) ([]Field, error) {
	n, err := r.u2()
	if err != nil {
		return nil, err
	}
	fields := make([]Field, 0, n)
	for range n {
		h, err := readMemberHeader(r, pool)
		if err != nil {
			return nil, fmt.Errorf("field: %w", err)
		}
		f := Field{Access: h.access, Name: h.name, Descriptor: h.desc}
		err = readAttributes(r, pool, func(name string, ar *byteReader) error {
			switch name {
			case "Signature":
				f.Signature, err = readSignatureAttr(ar, pool)
				return err
			case "RuntimeVisibleAnnotations", "RuntimeInvisibleAnnotations":
				as, err := readAnnotations(ar, pool, TargetField, name == "RuntimeVisibleAnnotations")
				f.Annotations = append(f.Annotations, as...)
				return err
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", h.name, err)
		}
		fields = append(fields, f)
	}
	return fields, nil
}

func readMethods(r *byteReader, pool constantPool) ([]Method, error) {
	n, err := r.u2()
	if err != nil {
		return nil, err
	}
	methods := make([]Method, 0, n)
	for range n {
		h, err := readMemberHeader(r, pool)
		if err != nil {
			return nil, fmt.Errorf("method: %w", err)
		}
		m := Method{Access: h.access, Name: h.name, Descriptor: h.desc}
		var def, params []Annotation
		err = readAttributes(r, pool, func(name string, ar *byteReader) error {
			var err error
			switch name {
			case "Code":
				m.Code, err = readCode(ar, pool)
			case "Signature":
				m.Signature, err = readSignatureAttr(ar, pool)
			case "Exceptions":
				m.Exceptions, err = readExceptions(ar, pool)
			case "AnnotationDefault":
				var a Annotation
				a, err = readAnnotationDefault(ar, pool)
				def = append(def, a)
			case "RuntimeVisibleAnnotations", "RuntimeInvisibleAnnotations":
				var as []Annotation
				as, err = readAnnotations(ar, pool, TargetMethod, name == "RuntimeVisibleAnnotations")
				m.Annotations = append(m.Annotations, as...)
			case "RuntimeVisibleParameterAnnotations", "RuntimeInvisibleParameterAnnotations":
				var as []Annotation
				as, err = readParameterAnnotations(ar, pool, name == "RuntimeVisibleParameterAnnotations")
				params = append(params, as...)
			}
			return err
		})
		if err != nil {
			return nil, fmt.Errorf("method %s%s: %w", h.name, h.desc, err)
		}
		// Default value first, then method, then parameter annotations.
		m.Annotations = append(append(def, m.Annotations...), params...)
		methods = append(methods, m)
	}
	return methods, nil
}

func readClassAttributes(r *byteReader, pool constantPool, cf *ClassFile) error {
	return readAttributes(r, pool, func(name string, ar *byteReader) error {
		var err error
		switch name {
		case "SourceFile":
			var idx uint16
			if idx, err = ar.u2(); err != nil {
				return err
			}
			cf.SourceFile, err = pool.utf8(idx)
		case "Signature":
			cf.Signature, err = readSignatureAttr(ar, pool)
		case "RuntimeVisibleAnnotations", "RuntimeInvisibleAnnotations":
			var as []Annotation
			as, err = readAnnotations(ar, pool, TargetClass, name == "RuntimeVisibleAnnotations")
			cf.Annotations = append(cf.Annotations, as...)
		}
		return err
	})
}

// ---------------------------------------------------------------------------
// Attributes
// ---------------------------------------------------------------------------

// readAttributes reads an attributes table and hands each attribute body to
// fn as a reader bounded by the attribute length. Unknown attributes are
// skipped; fn need not consume the whole body.
func readAttributes(r *byteReader, pool constantPool, fn func(name string, body *byteReader) error) error {
	n, err := r.u2()
	if err != nil {
		return err
	}
	for range n {
		nameIdx, err := r.u2()
		if err != nil {
			return err
		}
		length, err := r.u4()
		if err != nil {
			return err
		}
		body, err := r.bytes(int(length))
		if err != nil {
			return err
		}
		name, err := pool.utf8(nameIdx)
		if err != nil {
			return fmt.Errorf("attribute name: %w", err)
		}
		if err := fn(name, newByteReader(body)); err != nil {
			return fmt.Errorf("%s attribute: %w", name, err)
		}
	}
	return nil
}

func readSignatureAttr(r *byteReader, pool constantPool) (string, error) {
	idx, err := r.u2()
	if err != nil {
		return "", err
	}
	return pool.utf8(idx)
}

func readExceptions(r *byteReader, pool constantPool) ([]string, error) {
	n, err := r.u2()
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, n)
	for range n {
		idx, err := r.u2()
		if err != nil {
			return nil, err
		}
		name, err := pool.className(idx)
		if err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, nil
}
