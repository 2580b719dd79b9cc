package classfile

import "fmt"

// Instruction is one decoded bytecode instruction. Only the operand fields
// relevant to its opcode are set:
//
//   - new, anewarray, checkcast, instanceof, ldc of a class: Type
//   - field instructions and invocations: Owner, Name, Descriptor
//   - invokedynamic and ldc of a method type: Descriptor (and Name)
//   - multianewarray: Type (an array descriptor) and Dims
type Instruction struct {
	Offset     int
	Opcode     Opcode
	Type       string
	Owner      string
	Name       string
	Descriptor string
	Dims       int
}

func readCode(r *byteReader, pool constantPool) (*Code, error) {
	if err := r.skip(4); err != nil { // max_stack, max_locals
		return nil, err
	}
	length, err := r.u4()
	if err != nil {
		return nil, err
	}
	bytecode, err := r.bytes(int(length))
	if err != nil {
		return nil, err
	}

	c := &Code{}
	if c.Instructions, err = decodeInstructions(bytecode, pool); err != nil {
		return nil, err
	}

	n, err := r.u2()
	if err != nil {
		return nil, err
	}
	for range n {
		var pcs [3]uint16
		for i := range pcs {
			if pcs[i], err = r.u2(); err != nil {
				return nil, err
			}
		}
		catchIdx, err := r.u2()
		if err != nil {
			return nil, err
		}
		typ, err := pool.optionalClassName(catchIdx)
		if err != nil {
			return nil, fmt.Errorf("exception table: %w", err)
		}
		c.TryCatch = append(c.TryCatch, TryCatchBlock{
			StartPC: int(pcs[0]), EndPC: int(pcs[1]), HandlerPC: int(pcs[2]), Type: typ,
		})
	}

	var typed []LocalVariable
	err = readAttributes(r, pool, func(name string, ar *byteReader) error {
		switch name {
		case "LineNumberTable":
			return readLineNumbers(ar, c)
		case "LocalVariableTable":
			vars, err := readLocalVariables(ar, pool)
			c.LocalVariables = append(c.LocalVariables, vars...)
			return err
		case "LocalVariableTypeTable":
			vars, err := readLocalVariables(ar, pool)
			typed = append(typed, vars...)
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	mergeLocalVariableTypes(c, typed)
	return c, nil
}

func readLineNumbers(r *byteReader, c *Code) error {
	n, err := r.u2()
	if err != nil {
		return err
	}
	for range n {
		pc, err := r.u2()
		if err != nil {
			return err
		}
		line, err := r.u2()
		if err != nil {
			return err
		}
		c.Lines = append(c.Lines, LineEntry{PC: int(pc), Line: int(line)})
	}
	return nil
}

// readLocalVariables reads a LocalVariableTable or LocalVariableTypeTable.
// For the type table the third index is a signature; it is returned in
// Descriptor and moved to Signature by mergeLocalVariableTypes.
func readLocalVariables(r *byteReader, pool constantPool) ([]LocalVariable, error) {
	n, err := r.u2()
	if err != nil {
		return nil, err
	}
	vars := make([]LocalVariable, 0, n)
	for range n {
		var f [5]uint16 // start_pc, length, name, descriptor|signature, index
		for i := range f {
			if f[i], err = r.u2(); err != nil {
				return nil, err
			}
		}
		name, err := pool.utf8(f[2])
		if err != nil {
			return nil, err
		}
		desc, err := pool.utf8(f[3])
		if err != nil {
			return nil, err
		}
		vars = append(vars, LocalVariable{Name: name, Descriptor: desc, Index: int(f[4]), StartPC: int(f[0])})
	}
	return vars, nil
}

func mergeLocalVariableTypes(c *Code, typed []LocalVariable) {
	for _, t := range typed {
		matched := false
		for i := range c.LocalVariables {
			v := &c.LocalVariables[i]
			if v.Index == t.Index && v.StartPC == t.StartPC {
				v.Signature = t.Descriptor
				matched = true
				break
			}
		}
		if !matched {
			c.LocalVariables = append(c.LocalVariables, LocalVariable{
				Name: t.Name, Signature: t.Descriptor, Index: t.Index, StartPC: t.StartPC,
			})
		}
	}
}

// ---------------------------------------------------------------------------
// Bytecode
// ---------------------------------------------------------------------------

func decodeInstructions(code []byte, pool constantPool) ([]Instruction, error) {
	r := newByteReader(code)
	var insns []Instruction
	for r.remaining() > 0 {
		pc := r.off
		b, _ := r.u1()
		op := Opcode(b)
		if op > opLast {
			return nil, malformed("unknown opcode 0x%02x at pc %d", b, pc)
		}
		insn := Instruction{Offset: pc, Opcode: op}
		if err := decodeOperands(r, pool, &insn); err != nil {
			return nil, fmt.Errorf("%s at pc %d: %w", op, pc, err)
		}
		insns = append(insns, insn)
	}
	return insns, nil
}

func decodeOperands(r *byteReader, pool constantPool, insn *Instruction) error {
	var err error
	switch op := insn.Opcode; op {
	case OpNew, OpAnewarray, OpCheckcast, OpInstanceof:
		idx, err := r.u2()
		if err != nil {
			return err
		}
		insn.Type, err = pool.className(idx)
		return err

	case OpGetstatic, OpPutstatic, OpGetfield, OpPutfield:
		idx, err := r.u2()
		if err != nil {
			return err
		}
		insn.Owner, insn.Name, insn.Descriptor, err = pool.memberRef(idx, ConstantFieldref)
		return err

	case OpInvokevirtual, OpInvokespecial, OpInvokestatic, OpInvokeinterface:
		idx, err := r.u2()
		if err != nil {
			return err
		}
		insn.Owner, insn.Name, insn.Descriptor, err = pool.memberRef(idx, ConstantMethodref, ConstantInterfaceMethodref)
		if err != nil {
			return err
		}
		if op == OpInvokeinterface {
			return r.skip(2) // count, 0
		}
		return nil

	case OpInvokedynamic:
		idx, err := r.u2()
		if err != nil {
			return err
		}
		c, err := pool.entry(idx, ConstantInvokeDynamic)
		if err != nil {
			return err
		}
		if insn.Name, insn.Descriptor, err = pool.nameAndType(c.ref2); err != nil {
			return err
		}
		return r.skip(2)

	case OpLdc, OpLdcW, OpLdc2W:
		var idx uint16
		if op == OpLdc {
			var b uint8
			b, err = r.u1()
			idx = uint16(b)
		} else {
			idx, err = r.u2()
		}
		if err != nil {
			return err
		}
		c, err := pool.entry(idx, ConstantInteger, ConstantFloat, ConstantLong, ConstantDouble,
			ConstantString, ConstantClass, ConstantMethodType, ConstantMethodHandle, ConstantDynamic)
		if err != nil {
			return err
		}
		switch c.kind {
		case ConstantClass:
			insn.Type, err = pool.utf8(c.ref1)
		case ConstantMethodType:
			insn.Descriptor, err = pool.utf8(c.ref1)
		}
		return err

	case OpMultianewarray:
		idx, err := r.u2()
		if err != nil {
			return err
		}
		if insn.Type, err = pool.className(idx); err != nil {
			return err
		}
		dims, err := r.u1()
		insn.Dims = int(dims)
		return err

	case OpTableswitch:
		if err := r.skip(padding(insn.Offset)); err != nil {
			return err
		}
		if err := r.skip(4); err != nil { // default
			return err
		}
		low, err := r.s4()
		if err != nil {
			return err
		}
		high, err := r.s4()
		if err != nil {
			return err
		}
		if high < low {
			return malformed("tableswitch high %d < low %d", high, low)
		}
		return r.skip(int(int64(high)-int64(low)+1) * 4)

	case OpLookupswitch:
		if err := r.skip(padding(insn.Offset)); err != nil {
			return err
		}
		if err := r.skip(4); err != nil { // default
			return err
		}
		n, err := r.s4()
		if err != nil {
			return err
		}
		if n < 0 {
			return malformed("lookupswitch with %d pairs", n)
		}
		return r.skip(int(n) * 8)

	case OpWide:
		b, err := r.u1()
		if err != nil {
			return err
		}
		if Opcode(b) == OpIinc {
			return r.skip(4)
		}
		return r.skip(2)

	default:
		n := operandSize(op)
		if n < 0 {
			return malformed("no operand layout for %s", op)
		}
		return r.skip(n)
	}
}

// padding returns the 0-3 bytes that align switch operands to a multiple of
// four from the start of the code array.
func padding(pc int) int {
	return (4 - (pc+1)%4) % 4
}
