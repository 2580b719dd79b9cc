// Package imports computes the set of packages each compiled class refers to.
package imports

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"classguard/internal/classfile"
)

// Set is a set of dotted package names.
type Set map[string]struct{}

// NewSet returns a set holding pkgs.
func NewSet(pkgs ...string) Set {
	s := make(Set, len(pkgs))
	for _, p := range pkgs {
		s[p] = struct{}{}
	}
	return s
}

// Has reports whether pkg is in s.
func (s Set) Has(pkg string) bool {
	_, ok := s[pkg]
	return ok
}

// Sorted returns the members of s in lexical order.
func (s Set) Sorted() []string {
	return slices.Sorted(maps.Keys(s))
}

// ClassImports is the import set of one class. Package and Imports use
// dotted names; Imports includes the class's own package when it refers to
// a sibling class.
type ClassImports struct {
	ClassName string
	Package   string
	Imports   Set
}

// extractor accumulates the packages of referenced internal names.
type extractor struct {
	imports Set
}

func (x *extractor) addName(internalName string) {
	if strings.HasPrefix(internalName, "[") {
		x.addDesc(internalName)
		return
	}
	if pkg := classfile.PackageOf(internalName); pkg != "" {
		x.imports[classfile.BinaryName(pkg)] = struct{}{}
	}
}

func (x *extractor) addNames(names []string) {
	for _, n := range names {
		x.addName(n)
	}
}

// addDesc handles field and method descriptors alike.
func (x *extractor) addDesc(desc string) {
	x.addNames(classfile.DescriptorTypes(desc))
}

func (x *extractor) addSignature(sig string, parse func(string) ([]classfile.TypeRef, error)) error {
	refs, err := parse(sig)
	if err != nil {
		return err
	}
	x.addNames(classfile.SignatureTypes(refs))
	return nil
}

// Extract computes the import set of cf from every type it references:
// supertypes, member types and generic signatures, annotation types and the
// types their values mention, instruction operands, catch types and local
// variable signatures.
func Extract(cf *classfile.ClassFile) (ClassImports, error) {
	x := &extractor{imports: make(Set)}
	for ev := range cf.Events() {
		var err error
		switch ev := ev.(type) {
		case classfile.ClassDeclared:
			if ev.Signature != "" {
				err = x.addSignature(ev.Signature, classfile.ParseClassSignature)
			} else {
				x.addName(ev.SuperName)
				x.addNames(ev.Interfaces)
			}
		case classfile.FieldDeclared:
			if ev.Signature != "" {
				err = x.addSignature(ev.Signature, classfile.ParseTypeSignature)
			} else {
				x.addDesc(ev.Descriptor)
			}
		case classfile.MethodDeclared:
			if ev.Signature != "" {
				err = x.addSignature(ev.Signature, classfile.ParseMethodSignature)
			} else {
				x.addDesc(ev.Descriptor)
			}
			x.addNames(ev.Exceptions)
		case classfile.Annotation:
			x.addDesc(ev.Descriptor)
			for _, r := range ev.Refs {
				x.addDesc(r)
			}
		case classfile.Instruction:
			if ev.Type != "" {
				x.addName(ev.Type)
			}
			if ev.Owner != "" {
				x.addName(ev.Owner)
			}
			x.addDesc(ev.Descriptor)
		case classfile.TryCatchBlock:
			if ev.Type != "" {
				x.addName(ev.Type)
			}
		case classfile.LocalVariable:
			if ev.Signature != "" {
				err = x.addSignature(ev.Signature, classfile.ParseTypeSignature)
			}
		}
		if err != nil {
			return ClassImports{}, fmt.Errorf("imports: %s: %w", cf.Name, err)
		}
	}
	return ClassImports{
		ClassName: classfile.BinaryName(cf.Name),
		Package:   classfile.BinaryName(classfile.PackageOf(cf.Name)),
		Imports:   x.imports,
	}, nil
}

// Collector accumulates per-class import sets over a traversal. Visit
// matches walk.Handler.
type Collector struct {
	classes []ClassImports
}

// Visit extracts the imports of cf and appends them.
func (c *Collector) Visit(_ string, cf *classfile.ClassFile) error {
	ci, err := Extract(cf)
	if err != nil {
		return err
	}
	c.classes = append(c.classes, ci)
	return nil
}

// Imports returns the import sets collected so far in discovery order.
func (c *Collector) Imports() []ClassImports {
	return append([]ClassImports(nil), c.classes...)
}

// Clear forgets all collected import sets.
func (c *Collector) Clear() {
	c.classes = nil
}
