// Package classfiletest assembles class files for tests, so analyzers can be
// exercised without a Java compiler. It writes only what the classfile
// package reads; max_stack, max_locals and stack map frames are not
// computed.
package classfiletest

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"classguard/internal/classfile"
)

// Opcodes used by tests that the classfile package does not name.
const (
	Iconst0  = 0x03
	Iconst2  = 0x05
	Aload0   = 0x2a
	Aload1   = 0x2b
	Astore1  = 0x4c
	Pop      = 0x57
	Dup      = 0x59
	Goto     = 0xa7
	Areturn  = 0xb0
	Return   = 0xb1
	Athrow   = 0xbf
	Ireturn  = 0xac
	Newarray = 0xbc
)

// Class describes a class file to assemble.
type Class struct {
	Access      uint16
	Name        string // internal name
	Super       string // defaults to java/lang/Object; "-" for none
	Interfaces  []string
	Signature   string
	SourceFile  string
	Annotations []Annotation
	Fields      []Field
	Methods     []Method
}

// Field describes a field.
type Field struct {
	Access      uint16
	Name        string
	Desc        string
	Signature   string
	Annotations []Annotation
}

// Method describes a method. A nil Code omits the Code attribute.
type Method struct {
	Access           uint16
	Name             string
	Desc             string
	Signature        string
	Exceptions       []string
	Annotations      []Annotation
	ParamAnnotations [][]Annotation
	Default          Value
	Code             *Code
}

// Annotation describes an annotation; Invisible selects the
// RuntimeInvisible attribute.
type Annotation struct {
	Desc      string
	Invisible bool
	Elements  []Element
}

// Element is one name/value pair of an annotation.
type Element struct {
	Name  string
	Value Value
}

// Value is an annotation element value.
type Value interface {
	writeValue(b *bytes.Buffer, p *pool)
}

// Int is an int element value.
type Int int32

// Str is a String element value.
type Str string

// Enum is an enum constant element value.
type Enum struct {
	Desc string
	Name string
}

// ClassLit is a class literal element value holding a return descriptor.
type ClassLit string

// Nested is an annotation element value.
type Nested Annotation

// Array is an array element value.
type Array []Value

func (v Int) writeValue(b *bytes.Buffer, p *pool) {
	b.WriteByte('I')
	u2(b, p.integer(int32(v)))
}

func (v Str) writeValue(b *bytes.Buffer, p *pool) {
	b.WriteByte('s')
	u2(b, p.utf8(string(v)))
}

func (v Enum) writeValue(b *bytes.Buffer, p *pool) {
	b.WriteByte('e')
	u2(b, p.utf8(v.Desc))
	u2(b, p.utf8(v.Name))
}

func (v ClassLit) writeValue(b *bytes.Buffer, p *pool) {
	b.WriteByte('c')
	u2(b, p.utf8(string(v)))
}

func (v Nested) writeValue(b *bytes.Buffer, p *pool) {
	b.WriteByte('@')
	writeAnnotation(b, p, Annotation(v))
}

func (v Array) writeValue(b *bytes.Buffer, p *pool) {
	b.WriteByte('[')
	u2(b, len(v))
	for _, e := range v {
		e.writeValue(b, p)
	}
}

// Bytes assembles the class file.
func (c *Class) Bytes() []byte {
	p := newPool()
	var body bytes.Buffer

	u2(&body, int(c.Access))
	u2(&body, p.class(c.Name))
	switch c.Super {
	case "":
		u2(&body, p.class("java/lang/Object"))
	case "-":
		u2(&body, 0)
	default:
		u2(&body, p.class(c.Super))
	}
	u2(&body, len(c.Interfaces))
	for _, i := range c.Interfaces {
		u2(&body, p.class(i))
	}

	u2(&body, len(c.Fields))
	for _, f := range c.Fields {
		u2(&body, int(f.Access))
		u2(&body, p.utf8(f.Name))
		u2(&body, p.utf8(f.Desc))
		var attrs []attribute
		if f.Signature != "" {
			attrs = append(attrs, signatureAttr(p, f.Signature))
		}
		attrs = append(attrs, annotationAttrs(p, f.Annotations)...)
		writeAttributes(&body, p, attrs)
	}

	u2(&body, len(c.Methods))
	for _, m := range c.Methods {
		u2(&body, int(m.Access))
		u2(&body, p.utf8(m.Name))
		u2(&body, p.utf8(m.Desc))
		writeAttributes(&body, p, methodAttrs(p, m))
	}

	var attrs []attribute
	if c.SourceFile != "" {
		var b bytes.Buffer
		u2(&b, p.utf8(c.SourceFile))
		attrs = append(attrs, attribute{"SourceFile", b.Bytes()})
	}
	if c.Signature != "" {
		attrs = append(attrs, signatureAttr(p, c.Signature))
	}
	attrs = append(attrs, annotationAttrs(p, c.Annotations)...)
	writeAttributes(&body, p, attrs)

	var out bytes.Buffer
	binary.Write(&out, binary.BigEndian, uint32(0xCAFEBABE))
	u2(&out, 0)
	u2(&out, 52) // Java 8
	u2(&out, p.next)
	for _, e := range p.entries {
		out.Write(e)
	}
	out.Write(body.Bytes())
	return out.Bytes()
}

// Write assembles the class into dir/<Name>.class and returns the path.
func (c *Class) Write(dir string) (string, error) {
	path := filepath.Join(dir, filepath.FromSlash(c.Name)+".class")
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", err
	}
	if err := os.WriteFile(path, c.Bytes(), 0o644); err != nil {
		return "", err
	}
	return path, nil
}

// ---------------------------------------------------------------------------
// Attributes
// ---------------------------------------------------------------------------

type attribute struct {
	name string
	body []byte
}

func writeAttributes(b *bytes.Buffer, p *pool, attrs []attribute) {
	u2(b, len(attrs))
	for _, a := range attrs {
		u2(b, p.utf8(a.name))
		binary.Write(b, binary.BigEndian, uint32(len(a.body)))
		b.Write(a.body)
	}
}

func signatureAttr(p *pool, sig string) attribute {
	var b bytes.Buffer
	u2(&b, p.utf8(sig))
	return attribute{"Signature", b.Bytes()}
}

func annotationAttrs(p *pool, as []Annotation) []attribute {
	var visible, invisible []Annotation
	for _, a := range as {
		if a.Invisible {
			invisible = append(invisible, a)
		} else {
			visible = append(visible, a)
		}
	}
	var attrs []attribute
	for _, group := range []struct {
		name string
		as   []Annotation
	}{
		{"RuntimeVisibleAnnotations", visible},
		{"RuntimeInvisibleAnnotations", invisible},
	} {
		if len(group.as) == 0 {
			continue
		}
		var b bytes.Buffer
		u2(&b, len(group.as))
		for _, a := range group.as {
			writeAnnotation(&b, p, a)
		}
		attrs = append(attrs, attribute{group.name, b.Bytes()})
	}
	return attrs
}

func writeAnnotation(b *bytes.Buffer, p *pool, a Annotation) {
	u2(b, p.utf8(a.Desc))
	u2(b, len(a.Elements))
	for _, e := range a.Elements {
		name := e.Name
		if name == "" {
			name = "value"
		}
		u2(b, p.utf8(name))
		e.Value.writeValue(b, p)
	}
}

func methodAttrs(p *pool, m Method) []attribute {
	var attrs []attribute
	if m.Code != nil {
		attrs = append(attrs, attribute{"Code", m.Code.bytes(p)})
	}
	if m.Signature != "" {
		attrs = append(attrs, signatureAttr(p, m.Signature))
	}
	if len(m.Exceptions) > 0 {
		var b bytes.Buffer
		u2(&b, len(m.Exceptions))
		for _, e := range m.Exceptions {
			u2(&b, p.class(e))
		}
		attrs = append(attrs, attribute{"Exceptions", b.Bytes()})
	}
	if m.Default != nil {
		var b bytes.Buffer
		m.Default.writeValue(&b, p)
		attrs = append(attrs, attribute{"AnnotationDefault", b.Bytes()})
	}
	attrs = append(attrs, annotationAttrs(p, m.Annotations)...)
	if len(m.ParamAnnotations) > 0 {
		var b bytes.Buffer
		b.WriteByte(byte(len(m.ParamAnnotations)))
		for _, as := range m.ParamAnnotations {
			u2(&b, len(as))
			for _, a := range as {
				writeAnnotation(&b, p, a)
			}
		}
		attrs = append(attrs, attribute{"RuntimeVisibleParameterAnnotations", b.Bytes()})
	}
	return attrs
}

// ---------------------------------------------------------------------------
// Constant pool
// ---------------------------------------------------------------------------

type pool struct {
	entries [][]byte
	index   map[string]int
	next    int
}

func newPool() *pool {
	return &pool{index: make(map[string]int), next: 1}
}

func (p *pool) add(key string, entry []byte, slots int) int {
	if idx, ok := p.index[key]; ok {
		return idx
	}
	idx := p.next
	p.index[key] = idx
	p.entries = append(p.entries, entry)
	p.next += slots
	return idx
}

func (p *pool) utf8(s string) int {
	var b bytes.Buffer
	b.WriteByte(1)
	u2(&b, len(s))
	b.WriteString(s)
	return p.add("utf8:"+s, b.Bytes(), 1)
}

func (p *pool) integer(v int32) int {
	var b bytes.Buffer
	b.WriteByte(3)
	binary.Write(&b, binary.BigEndian, v)
	return p.add(fmt.Sprint("int:", v), b.Bytes(), 1)
}

func (p *pool) long(v int64) int {
	var b bytes.Buffer
	b.WriteByte(5)
	binary.Write(&b, binary.BigEndian, v)
	return p.add(fmt.Sprint("long:", v), b.Bytes(), 2)
}

func (p *pool) ref(tag byte, kind string, idx int) int {
	var b bytes.Buffer
	b.WriteByte(tag)
	u2(&b, idx)
	return p.add(fmt.Sprint(kind, ":", idx), b.Bytes(), 1)
}

func (p *pool) class(name string) int { return p.ref(7, "class", p.utf8(name)) }

func (p *pool) str(s string) int { return p.ref(8, "string", p.utf8(s)) }

func (p *pool) methodType(desc string) int { return p.ref(16, "methodtype", p.utf8(desc)) }

func (p *pool) pair(tag byte, kind string, a, c int) int {
	var b bytes.Buffer
	b.WriteByte(tag)
	u2(&b, a)
	u2(&b, c)
	return p.add(fmt.Sprint(kind, ":", a, ":", c), b.Bytes(), 1)
}

func (p *pool) nameAndType(name, desc string) int {
	return p.pair(12, "nat", p.utf8(name), p.utf8(desc))
}

func (p *pool) member(tag byte, owner, name, desc string) int {
	return p.pair(tag, fmt.Sprint("member", tag), p.class(owner), p.nameAndType(name, desc))
}

func (p *pool) invokeDynamic(name, desc string) int {
	return p.pair(18, "indy", 0, p.nameAndType(name, desc))
}

// ---------------------------------------------------------------------------
// Code
// ---------------------------------------------------------------------------

// Code accumulates a method body. Every builder method appends one
// instruction and returns c.
type Code struct {
	insns   []insn
	pc      int
	lines   [][2]int
	catches []catch
	locals  []local
}

type insn struct {
	write func(b *bytes.Buffer, p *pool)
	size  int
}

type catch struct {
	start, end, handler int
	typ                 string
}

type local struct {
	name, desc, sig string
	index, start    int
}

// NewCode starts an empty method body.
func NewCode() *Code { return &Code{} }

// PC returns the offset the next instruction will have.
func (c *Code) PC() int { return c.pc }

func (c *Code) emit(size int, write func(b *bytes.Buffer, p *pool)) *Code {
	c.insns = append(c.insns, insn{write: write, size: size})
	c.pc += size
	return c
}

// Op appends an instruction with raw operand bytes.
func (c *Code) Op(op classfile.Opcode, operands ...byte) *Code {
	return c.emit(1+len(operands), func(b *bytes.Buffer, _ *pool) {
		b.WriteByte(byte(op))
		b.Write(operands)
	})
}

// Type appends new, anewarray, checkcast or instanceof.
func (c *Code) Type(op classfile.Opcode, internalName string) *Code {
	return c.emit(3, func(b *bytes.Buffer, p *pool) {
		b.WriteByte(byte(op))
		u2(b, p.class(internalName))
	})
}

// Field appends a get/put field or static instruction.
func (c *Code) Field(op classfile.Opcode, owner, name, desc string) *Code {
	return c.emit(3, func(b *bytes.Buffer, p *pool) {
		b.WriteByte(byte(op))
		u2(b, p.member(9, owner, name, desc))
	})
}

// Invoke appends invokevirtual, invokespecial, invokestatic or
// invokeinterface; the latter references an interface method.
func (c *Code) Invoke(op classfile.Opcode, owner, name, desc string) *Code {
	if op == classfile.OpInvokeinterface {
		return c.emit(5, func(b *bytes.Buffer, p *pool) {
			b.WriteByte(byte(op))
			u2(b, p.member(11, owner, name, desc))
			b.WriteByte(1)
			b.WriteByte(0)
		})
	}
	return c.emit(3, func(b *bytes.Buffer, p *pool) {
		b.WriteByte(byte(op))
		u2(b, p.member(10, owner, name, desc))
	})
}

// InvokeDynamic appends invokedynamic. No BootstrapMethods attribute is
// written.
func (c *Code) InvokeDynamic(name, desc string) *Code {
	return c.emit(5, func(b *bytes.Buffer, p *pool) {
		b.WriteByte(0xba)
		u2(b, p.invokeDynamic(name, desc))
		u2(b, 0)
	})
}

// LdcClass appends ldc_w of a class constant.
func (c *Code) LdcClass(internalName string) *Code {
	return c.emit(3, func(b *bytes.Buffer, p *pool) {
		b.WriteByte(0x13)
		u2(b, p.class(internalName))
	})
}

// LdcString appends ldc of a string constant.
func (c *Code) LdcString(s string) *Code {
	return c.emit(2, func(b *bytes.Buffer, p *pool) {
		b.WriteByte(0x12)
		b.WriteByte(byte(p.str(s)))
	})
}

// Ldc2Long appends ldc2_w of a long constant.
func (c *Code) Ldc2Long(v int64) *Code {
	return c.emit(3, func(b *bytes.Buffer, p *pool) {
		b.WriteByte(0x14)
		u2(b, p.long(v))
	})
}

// LdcMethodType appends ldc_w of a method type constant.
func (c *Code) LdcMethodType(desc string) *Code {
	return c.emit(3, func(b *bytes.Buffer, p *pool) {
		b.WriteByte(0x13)
		u2(b, p.methodType(desc))
	})
}

// MultiANewArray appends multianewarray.
func (c *Code) MultiANewArray(desc string, dims byte) *Code {
	return c.emit(4, func(b *bytes.Buffer, p *pool) {
		b.WriteByte(0xc5)
		u2(b, p.class(desc))
		b.WriteByte(dims)
	})
}

// TableSwitch appends a tableswitch whose targets all jump to the
// instruction following it.
func (c *Code) TableSwitch(low, high int32) *Code {
	pad := (4 - (c.pc+1)%4) % 4
	n := int(high - low + 1)
	size := 1 + pad + 12 + 4*n
	return c.emit(size, func(b *bytes.Buffer, _ *pool) {
		b.WriteByte(0xaa)
		b.Write(make([]byte, pad))
		binary.Write(b, binary.BigEndian, int32(size))
		binary.Write(b, binary.BigEndian, low)
		binary.Write(b, binary.BigEndian, high)
		for range n {
			binary.Write(b, binary.BigEndian, int32(size))
		}
	})
}

// LookupSwitch appends a lookupswitch over keys, every target jumping to the
// following instruction.
func (c *Code) LookupSwitch(keys ...int32) *Code {
	pad := (4 - (c.pc+1)%4) % 4
	size := 1 + pad + 8 + 8*len(keys)
	return c.emit(size, func(b *bytes.Buffer, _ *pool) {
		b.WriteByte(0xab)
		b.Write(make([]byte, pad))
		binary.Write(b, binary.BigEndian, int32(size))
		binary.Write(b, binary.BigEndian, int32(len(keys)))
		for _, k := range keys {
			binary.Write(b, binary.BigEndian, k)
			binary.Write(b, binary.BigEndian, int32(size))
		}
	})
}

// Line maps the next instruction to a source line.
func (c *Code) Line(line int) *Code {
	c.lines = append(c.lines, [2]int{c.pc, line})
	return c
}

// Catch adds an exception table entry; an empty typ catches everything.
func (c *Code) Catch(start, end, handler int, typ string) *Code {
	c.catches = append(c.catches, catch{start, end, handler, typ})
	return c
}

// Local adds a local variable table entry spanning the whole body. A
// non-empty sig also adds a LocalVariableTypeTable entry.
func (c *Code) Local(name, desc, sig string, index int) *Code {
	c.locals = append(c.locals, local{name: name, desc: desc, sig: sig, index: index})
	return c
}

func (c *Code) bytes(p *pool) []byte {
	var code bytes.Buffer
	for _, i := range c.insns {
		i.write(&code, p)
	}

	var b bytes.Buffer
	u2(&b, 8) // max_stack
	u2(&b, 8) // max_locals
	binary.Write(&b, binary.BigEndian, uint32(code.Len()))
	b.Write(code.Bytes())

	u2(&b, len(c.catches))
	for _, e := range c.catches {
		u2(&b, e.start)
		u2(&b, e.end)
		u2(&b, e.handler)
		if e.typ == "" {
			u2(&b, 0)
		} else {
			u2(&b, p.class(e.typ))
		}
	}

	var attrs []attribute
	if len(c.lines) > 0 {
		var t bytes.Buffer
		u2(&t, len(c.lines))
		for _, l := range c.lines {
			u2(&t, l[0])
			u2(&t, l[1])
		}
		attrs = append(attrs, attribute{"LineNumberTable", t.Bytes()})
	}
	if len(c.locals) > 0 {
		var lvt, lvtt bytes.Buffer
		typed := 0
		u2(&lvt, len(c.locals))
		for _, l := range c.locals {
			writeLocal(&lvt, p, l, l.desc, code.Len())
			if l.sig != "" {
				typed++
			}
		}
		attrs = append(attrs, attribute{"LocalVariableTable", lvt.Bytes()})
		if typed > 0 {
			u2(&lvtt, typed)
			for _, l := range c.locals {
				if l.sig != "" {
					writeLocal(&lvtt, p, l, l.sig, code.Len())
				}
			}
			attrs = append(attrs, attribute{"LocalVariableTypeTable", lvtt.Bytes()})
		}
	}
	writeAttributes(&b, p, attrs)
	return b.Bytes()
}

func writeLocal(b *bytes.Buffer, p *pool, l local, desc string, length int) {
	u2(b, l.start)
	u2(b, length)
	u2(b, p.utf8(l.name))
	u2(b, p.utf8(desc))
	u2(b, l.index)
}

func u2(b *bytes.Buffer, v int) {
	b.WriteByte(byte(v >> 8))
	b.WriteByte(byte(v))
}

// MethodDesc builds a method descriptor from parameter and return
// descriptors, e.g. MethodDesc("V", "I", "Ljava/lang/String;").
func MethodDesc(ret string, params ...string) string {
	return "(" + strings.Join(params, "") + ")" + ret
}
