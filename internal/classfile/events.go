package classfile

import (
	"cmp"
	"iter"
	"slices"
)

// Event is one structural record of a parsed class file. The concrete types
// are ClassDeclared, SourceFileDeclared, FieldDeclared, MethodDeclared,
// Annotation, TryCatchBlock, Instruction, LineNumber, LocalVariable,
// MethodEnd and ClassEnd.
type Event interface {
	event()
}

// ClassDeclared opens the event sequence of a class.
type ClassDeclared struct {
	Version    uint16 // major version
	Access     uint16
	Name       string // internal name
	Signature  string
	SuperName  string // empty for java/lang/Object and module-info
	Interfaces []string
}

// SourceFileDeclared carries the SourceFile attribute.
type SourceFileDeclared struct {
	FileName string
}

// FieldDeclared announces a field; its annotations follow.
type FieldDeclared struct {
	Access     uint16
	Name       string
	Descriptor string
	Signature  string
}

// MethodDeclared announces a method. Annotations, the code events and a
// closing MethodEnd follow.
type MethodDeclared struct {
	Access     uint16
	Name       string
	Descriptor string
	Signature  string
	Exceptions []string
}

// LineNumber marks the source line of the instructions that follow it.
type LineNumber struct {
	Line int
}

// MethodEnd closes a method, whether or not it had code.
type MethodEnd struct{}

// ClassEnd closes the event sequence.
type ClassEnd struct{}

func (ClassDeclared) event()      {}
func (SourceFileDeclared) event() {}
func (FieldDeclared) event()      {}
func (MethodDeclared) event()     {}
func (Annotation) event()         {}
func (TryCatchBlock) event()      {}
func (Instruction) event()        {}
func (LineNumber) event()         {}
func (LocalVariable) event()      {}
func (MethodEnd) event()          {}
func (ClassEnd) event()           {}

// Events returns the structural events of cf in file order. The sequence can
// be ranged over any number of times.
func (cf *ClassFile) Events() iter.Seq[Event] {
	return func(yield func(Event) bool) {
		ok := yield(ClassDeclared{
			Version:    cf.MajorVersion,
			Access:     cf.Access,
			Name:       cf.Name,
			Signature:  cf.Signature,
			SuperName:  cf.SuperName,
			Interfaces: cf.Interfaces,
		})
		if ok && cf.SourceFile != "" {
			ok = yield(SourceFileDeclared{FileName: cf.SourceFile})
		}
		ok = ok && yieldAll(yield, cf.Annotations)

		for i := range cf.Fields {
			if !ok {
				return
			}
			f := &cf.Fields[i]
			ok = yield(FieldDeclared{Access: f.Access, Name: f.Name, Descriptor: f.Descriptor, Signature: f.Signature}) &&
				yieldAll(yield, f.Annotations)
		}

		for i := range cf.Methods {
			if !ok {
				return
			}
			ok = cf.Methods[i].events(yield)
		}

		if ok {
			yield(ClassEnd{})
		}
	}
}

func (m *Method) events(yield func(Event) bool) bool {
	if !yield(MethodDeclared{
		Access:     m.Access,
		Name:       m.Name,
		Descriptor: m.Descriptor,
		Signature:  m.Signature,
		Exceptions: m.Exceptions,
	}) {
		return false
	}
	if !yieldAll(yield, m.Annotations) {
		return false
	}
	if c := m.Code; c != nil {
		if !yieldAll(yield, c.TryCatch) {
			return false
		}

		lines := slices.SortedStableFunc(slices.Values(c.Lines), func(a, b LineEntry) int {
			return cmp.Compare(a.PC, b.PC)
		})
		next := 0
		for _, insn := range c.Instructions {
			for ; next < len(lines) && lines[next].PC <= insn.Offset; next++ {
				if !yield(LineNumber{Line: lines[next].Line}) {
					return false
				}
			}
			if !yield(insn) {
				return false
			}
		}
		for ; next < len(lines); next++ {
			if !yield(LineNumber{Line: lines[next].Line}) {
				return false
			}
		}

		if !yieldAll(yield, c.LocalVariables) {
			return false
		}
	}
	return yield(MethodEnd{})
}

func yieldAll[E Event](yield func(Event) bool, events []E) bool {
	for _, e := range events {
		if !yield(e) {
			return false
		}
	}
	return true
}
