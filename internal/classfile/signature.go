package classfile

import "strings"

// SignaturePosition tells where in a generic signature a type occurs.
type SignaturePosition uint8

const (
	PosBound SignaturePosition = iota // formal type parameter bound
	PosSuperclass
	PosInterface
	PosParameter
	PosReturn
	PosThrows
	PosTypeArgument
	PosField // field or local variable type
)

// TypeRef is a class type referenced from a generic signature.
type TypeRef struct {
	Position SignaturePosition
	Name     string // internal name; inner classes as Outer$Inner
}

// ParseClassSignature walks a class Signature attribute.
func ParseClassSignature(sig string) ([]TypeRef, error) {
	p := sigParser{s: sig}
	if err := p.typeParameters(); err != nil {
		return nil, err
	}
	if err := p.classType(PosSuperclass); err != nil {
		return nil, err
	}
	for !p.done() {
		if err := p.classType(PosInterface); err != nil {
			return nil, err
		}
	}
	return p.refs, nil
}

// ParseMethodSignature walks a method Signature attribute.
func ParseMethodSignature(sig string) ([]TypeRef, error) {
	p := sigParser{s: sig}
	if err := p.typeParameters(); err != nil {
		return nil, err
	}
	if err := p.expect('('); err != nil {
		return nil, err
	}
	for p.peek() != ')' {
		if p.done() {
			return nil, p.fail("unterminated parameter list")
		}
		if err := p.javaType(PosParameter); err != nil {
			return nil, err
		}
	}
	p.i++
	if p.peek() == 'V' {
		p.i++
	} else if err := p.javaType(PosReturn); err != nil {
		return nil, err
	}
	for p.peek() == '^' {
		p.i++
		var err error
		if p.peek() == 'T' {
			err = p.typeVariable()
		} else {
			err = p.classType(PosThrows)
		}
		if err != nil {
			return nil, err
		}
	}
	if !p.done() {
		return nil, p.fail("trailing characters")
	}
	return p.refs, nil
}

// ParseTypeSignature walks a field or local variable Signature.
func ParseTypeSignature(sig string) ([]TypeRef, error) {
	p := sigParser{s: sig}
	if err := p.javaType(PosField); err != nil {
		return nil, err
	}
	if !p.done() {
		return nil, p.fail("trailing characters")
	}
	return p.refs, nil
}

// SignatureTypes returns the internal names referenced by refs.
func SignatureTypes(refs []TypeRef) []string {
	names := make([]string, len(refs))
	for i, r := range refs {
		names[i] = r.Name
	}
	return names
}

type sigParser struct {
	s    string
	i    int
	refs []TypeRef
}

func (p *sigParser) done() bool { return p.i >= len(p.s) }

func (p *sigParser) peek() byte {
	if p.done() {
		return 0
	}
	return p.s[p.i]
}

func (p *sigParser) fail(msg string) error {
	return malformed("signature %q at %d: %s", p.s, p.i, msg)
}

func (p *sigParser) expect(c byte) error {
	if p.peek() != c {
		return p.fail("expected '" + string(c) + "'")
	}
	p.i++
	return nil
}

// identifier reads up to, not including, the first byte in stops.
func (p *sigParser) identifier(stops string) (string, error) {
	start := p.i
	for !p.done() && strings.IndexByte(stops, p.s[p.i]) < 0 {
		p.i++
	}
	if p.i == start || p.done() {
		return "", p.fail("bad identifier")
	}
	return p.s[start:p.i], nil
}

func (p *sigParser) typeParameters() error {
	if p.peek() != '<' {
		return nil
	}
	p.i++
	for p.peek() != '>' {
		if _, err := p.identifier(":"); err != nil {
			return err
		}
		// Class bound; may be empty when only interface bounds follow.
		p.i++
		if c := p.peek(); c == 'L' || c == 'T' || c == '[' {
			if err := p.referenceType(PosBound); err != nil {
				return err
			}
		}
		for p.peek() == ':' {
			p.i++
			if err := p.referenceType(PosBound); err != nil {
				return err
			}
		}
		if p.done() {
			return p.fail("unterminated type parameters")
		}
	}
	p.i++
	return nil
}

func (p *sigParser) javaType(pos SignaturePosition) error {
	switch p.peek() {
	case 'B', 'C', 'D', 'F', 'I', 'J', 'S', 'Z':
		p.i++
		return nil
	}
	return p.referenceType(pos)
}

func (p *sigParser) referenceType(pos SignaturePosition) error {
	switch p.peek() {
	case 'L':
		return p.classType(pos)
	case 'T':
		return p.typeVariable()
	case '[':
		p.i++
		return p.javaType(pos)
	}
	return p.fail("expected reference type")
}

func (p *sigParser) typeVariable() error {
	if err := p.expect('T'); err != nil {
		return err
	}
	if _, err := p.identifier(";"); err != nil {
		return err
	}
	p.i++
	return nil
}

func (p *sigParser) classType(pos SignaturePosition) error {
	if err := p.expect('L'); err != nil {
		return err
	}
	name, err := p.identifier("<.;")
	if err != nil {
		return err
	}
	p.refs = append(p.refs, TypeRef{Position: pos, Name: name})
	if err := p.typeArguments(); err != nil {
		return err
	}
	for p.peek() == '.' {
		p.i++
		inner, err := p.identifier("<.;")
		if err != nil {
			return err
		}
		name += "$" + inner
		p.refs = append(p.refs, TypeRef{Position: pos, Name: name})
		if err := p.typeArguments(); err != nil {
			return err
		}
	}
	return p.expect(';')
}

func (p *sigParser) typeArguments() error {
	if p.peek() != '<' {
		return nil
	}
	p.i++
	for p.peek() != '>' {
		switch p.peek() {
		case 0:
			return p.fail("unterminated type arguments")
		case '*':
			p.i++
			continue
		case '+', '-':
			p.i++
		}
		if err := p.referenceType(PosTypeArgument); err != nil {
			return err
		}
	}
	p.i++
	return nil
}
