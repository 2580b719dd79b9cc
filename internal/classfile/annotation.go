package classfile

import "fmt"

// AnnotationTarget identifies what an annotation is attached to.
type AnnotationTarget uint8

//go:generate go tool stringer -type AnnotationTarget -trimprefix Target
const (
	TargetClass AnnotationTarget = iota
	TargetField
	TargetMethod
	TargetParameter
	// TargetDefault is the AnnotationDefault value of an annotation
	// interface method. It has no Descriptor of its own.
	TargetDefault
)

// Annotation is one annotation, or an annotation default value.
//
// Refs holds the descriptors referenced from the element values: enum
// types, class literals and nested annotation types, collected through
// arrays and nested annotations.
type Annotation struct {
	Target     AnnotationTarget
	Parameter  int // parameter index for TargetParameter
	Descriptor string
	Visible    bool
	Refs       []string
}

func readAnnotations(r *byteReader, pool constantPool, target AnnotationTarget, visible bool) ([]Annotation, error) {
	n, err := r.u2()
	if err != nil {
		return nil, err
	}
	as := make([]Annotation, 0, n)
	for range n {
		a := Annotation{Target: target, Visible: visible}
		if a.Descriptor, err = readAnnotationBody(r, pool, &a.Refs); err != nil {
			return nil, err
		}
		as = append(as, a)
	}
	return as, nil
}

func readParameterAnnotations(r *byteReader, pool constantPool, visible bool) ([]Annotation, error) {
	params, err := r.u1()
	if err != nil {
		return nil, err
	}
	var all []Annotation
	for p := range int(params) {
		as, err := readAnnotations(r, pool, TargetParameter, visible)
		if err != nil {
			return nil, fmt.Errorf("parameter %d: %w", p, err)
		}
		for i := range as {
			as[i].Parameter = p
		}
		all = append(all, as...)
	}
	return all, nil
}

func readAnnotationDefault(r *byteReader, pool constantPool) (Annotation, error) {
	a := Annotation{Target: TargetDefault, Visible: true}
	err := readElementValue(r, pool, &a.Refs)
	return a, err
}

// readAnnotationBody reads an annotation structure, returns its type
// descriptor and appends referenced descriptors to refs.
func readAnnotationBody(r *byteReader, pool constantPool, refs *[]string) (string, error) {
	typeIdx, err := r.u2()
	if err != nil {
		return "", err
	}
	desc, err := pool.utf8(typeIdx)
	if err != nil {
		return "", err
	}
	pairs, err := r.u2()
	if err != nil {
		return "", err
	}
	for range pairs {
		if err := r.skip(2); err != nil { // element_name_index
			return "", err
		}
		if err := readElementValue(r, pool, refs); err != nil {
			return "", err
		}
	}
	return desc, nil
}

func readElementValue(r *byteReader, pool constantPool, refs *[]string) error {
	tag, err := r.u1()
	if err != nil {
		return err
	}
	switch tag {
	case 'B', 'C', 'D', 'F', 'I', 'J', 'S', 'Z', 's':
		return r.skip(2)
	case 'e':
		typeIdx, err := r.u2()
		if err != nil {
			return err
		}
		desc, err := pool.utf8(typeIdx)
		if err != nil {
			return err
		}
		*refs = append(*refs, desc)
		return r.skip(2) // const_name_index
	case 'c':
		idx, err := r.u2()
		if err != nil {
			return err
		}
		desc, err := pool.utf8(idx)
		if err != nil {
			return err
		}
		*refs = append(*refs, desc)
		return nil
	case '@':
		desc, err := readAnnotationBody(r, pool, refs)
		if err != nil {
			return err
		}
		*refs = append(*refs, desc)
		return nil
	case '[':
		n, err := r.u2()
		if err != nil {
			return err
		}
		for range n {
			if err := readElementValue(r, pool, refs); err != nil {
				return err
			}
		}
		return nil
	}
	return malformed("invalid element value tag %q", tag)
}
