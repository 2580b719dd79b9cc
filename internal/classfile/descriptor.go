package classfile

import "strings"

var baseTypeNames = map[byte]string{
	'B': "byte",
	'C': "char",
	'D': "double",
	'F': "float",
	'I': "int",
	'J': "long",
	'S': "short",
	'Z': "boolean",
	'V': "void",
}

// BinaryName converts an internal name ("java/util/Map$Entry") to its
// binary name ("java.util.Map$Entry").
func BinaryName(internalName string) string {
	return strings.ReplaceAll(internalName, "/", ".")
}

// TypeName converts a field descriptor to a Java source style type name:
// "I" becomes "int", "[Ljava/lang/String;" becomes "java.lang.String[]".
func TypeName(desc string) (string, error) {
	name, next, err := parseFieldType(desc, 0, false)
	if err != nil {
		return "", err
	}
	if next != len(desc) {
		return "", malformed("trailing characters in descriptor %q", desc)
	}
	return name, nil
}

// ParseMethodDescriptor decodes a method descriptor into the Java source
// style names of its parameter types and return type.
func ParseMethodDescriptor(desc string) (params []string, ret string, err error) {
	if !strings.HasPrefix(desc, "(") {
		return nil, "", malformed("method descriptor %q does not start with '('", desc)
	}
	i := 1
	for i < len(desc) && desc[i] != ')' {
		var name string
		if name, i, err = parseFieldType(desc, i, false); err != nil {
			return nil, "", err
		}
		params = append(params, name)
	}
	if i >= len(desc) {
		return nil, "", malformed("method descriptor %q has no ')'", desc)
	}
	ret, i, err = parseFieldType(desc, i+1, true)
	if err != nil {
		return nil, "", err
	}
	if i != len(desc) {
		return nil, "", malformed("trailing characters in descriptor %q", desc)
	}
	return params, ret, nil
}

// MethodSignature renders a method as "returnType name(paramType,...)",
// e.g. "java.math.BigDecimal setScale(int)".
func MethodSignature(name, desc string) (string, error) {
	params, ret, err := ParseMethodDescriptor(desc)
	if err != nil {
		return "", err
	}
	return ret + " " + name + "(" + strings.Join(params, ",") + ")", nil
}

func parseFieldType(desc string, i int, allowVoid bool) (string, int, error) {
	dims := 0
	for i < len(desc) && desc[i] == '[' {
		dims++
		i++
	}
	if i >= len(desc) {
		return "", i, malformed("truncated descriptor %q", desc)
	}

	var name string
	switch c := desc[i]; c {
	case 'L':
		end := strings.IndexByte(desc[i:], ';')
		if end < 2 {
			return "", i, malformed("bad class type in descriptor %q", desc)
		}
		name = BinaryName(desc[i+1 : i+end])
		i += end + 1
	default:
		base, ok := baseTypeNames[c]
		if !ok || (c == 'V' && (!allowVoid || dims > 0)) {
			return "", i, malformed("bad type %q in descriptor %q", c, desc)
		}
		name = base
		i++
	}
	return name + strings.Repeat("[]", dims), i, nil
}

// DescriptorTypes returns the internal names of all class types mentioned in
// a field or method descriptor, with array element types unwrapped.
func DescriptorTypes(desc string) []string {
	var names []string
	for i := 0; i < len(desc); i++ {
		if desc[i] != 'L' {
			continue
		}
		end := strings.IndexByte(desc[i:], ';')
		if end < 0 {
			break
		}
		names = append(names, desc[i+1:i+end])
		i += end
	}
	return names
}
