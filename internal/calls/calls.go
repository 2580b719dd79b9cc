// Package calls finds invocations of a configured set of target methods in
// compiled classes.
//
// At most one CallSite is recorded per calling method: when a method invokes
// targets several times, the last matching invocation and the last line
// marker seen before the end of the method win.
package calls

import (
	"cmp"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"classguard/internal/classfile"
)

// ErrNoTargetMethods is returned when an extractor is built without targets.
var ErrNoTargetMethods = errors.New("calls: no target methods")

// TargetMethod identifies a method by its declaring class and signature. Both
// are in Java source form: "java.math.BigDecimal" and
// "java.math.BigDecimal setScale(int)".
type TargetMethod struct {
	ClassName string
	Signature string
}

// NewTargetMethod builds a TargetMethod from a signature written by hand.
// Whitespace is normalized so "void  foo( int, long )" equals "void foo(int,long)".
func NewTargetMethod(className, signature string) TargetMethod {
	return TargetMethod{
		ClassName: strings.TrimSpace(className),
		Signature: normalizeSignature(signature),
	}
}

// TargetMethodOf builds a TargetMethod from the internal class name, method
// name and descriptor found in a class file.
func TargetMethodOf(internalName, name, descriptor string) (TargetMethod, error) {
	sig, err := classfile.MethodSignature(name, descriptor)
	if err != nil {
		return TargetMethod{}, err
	}
	return TargetMethod{ClassName: classfile.BinaryName(internalName), Signature: sig}, nil
}

// String renders the method as "Class='<class>, Method='<signature>'".
func (m TargetMethod) String() string {
	return "Class='" + m.ClassName + ", Method='" + m.Signature + "'"
}

// Compare orders methods by class name, then signature.
func (m TargetMethod) Compare(other TargetMethod) int {
	return cmp.Or(
		strings.Compare(m.ClassName, other.ClassName),
		strings.Compare(m.Signature, other.Signature),
	)
}

func normalizeSignature(sig string) string {
	s := strings.Join(strings.Fields(sig), " ")
	for _, r := range []struct{ old, new string }{
		{" (", "("}, {"( ", "("}, {" )", ")"}, {" ,", ","}, {", ", ","}, {" [", "["}, {"[ ", "["}, {" ]", "]"},
	} {
		s = strings.ReplaceAll(s, r.old, r.new)
	}
	return s
}

// CallSite is one method that calls a target method.
type CallSite struct {
	Callee     TargetMethod
	Caller     TargetMethod
	SourceFile string // empty without debug information
	Line       int    // 0 when the method has no line numbers
}

func (c CallSite) String() string {
	return "Source='" + c.SourceFile + "', Line=" + strconv.Itoa(c.Line) + ", " +
		c.Caller.String() + " ==CALLS==> " + c.Callee.String()
}

// Extractor finds call sites of its targets in one class at a time. It holds
// no state between classes and may be reused.
type Extractor struct {
	targets map[TargetMethod]struct{}
}

// NewExtractor returns an extractor for targets.
func NewExtractor(targets ...TargetMethod) (*Extractor, error) {
	if len(targets) == 0 {
		return nil, ErrNoTargetMethods
	}
	x := &Extractor{targets: make(map[TargetMethod]struct{}, len(targets))}
	for _, t := range targets {
		x.targets[t] = struct{}{}
	}
	return x, nil
}

// methodState tracks the method currently being visited.
type methodState struct {
	name, desc string
	found      *TargetMethod
	line       int
}

// Extract returns the call sites of cf in method order.
func (x *Extractor) Extract(cf *classfile.ClassFile) ([]CallSite, error) {
	var (
		class, source string
		m             methodState
		sites         []CallSite
	)
	for ev := range cf.Events() {
		switch ev := ev.(type) {
		case classfile.ClassDeclared:
			class = ev.Name
		case classfile.SourceFileDeclared:
			source = ev.FileName
		case classfile.MethodDeclared:
			m = methodState{name: ev.Name, desc: ev.Descriptor}
		case classfile.LineNumber:
			m.line = ev.Line
		case classfile.Instruction:
			if !ev.Opcode.IsInvoke() {
				continue
			}
			callee, err := TargetMethodOf(ev.Owner, ev.Name, ev.Descriptor)
			if err != nil {
				return nil, fmt.Errorf("calls: %s.%s: %w", class, m.name, err)
			}
			if _, ok := x.targets[callee]; ok {
				m.found = &callee
			}
		case classfile.MethodEnd:
			if m.found == nil {
				continue
			}
			caller, err := TargetMethodOf(class, m.name, m.desc)
			if err != nil {
				return nil, fmt.Errorf("calls: %s.%s: %w", class, m.name, err)
			}
			sites = append(sites, CallSite{Callee: *m.found, Caller: caller, SourceFile: source, Line: m.line})
		}
	}
	return sites, nil
}
