package classfile

import "strconv"

// Opcode is a JVM instruction opcode.
type Opcode uint8

// Opcodes that carry a constant pool operand or need special decoding.
const (
	OpBipush          Opcode = 0x10
	OpSipush          Opcode = 0x11
	OpLdc             Opcode = 0x12
	OpLdcW            Opcode = 0x13
	OpLdc2W           Opcode = 0x14
	OpIinc            Opcode = 0x84
	OpTableswitch     Opcode = 0xaa
	OpLookupswitch    Opcode = 0xab
	OpGetstatic       Opcode = 0xb2
	OpPutstatic       Opcode = 0xb3
	OpGetfield        Opcode = 0xb4
	OpPutfield        Opcode = 0xb5
	OpInvokevirtual   Opcode = 0xb6
	OpInvokespecial   Opcode = 0xb7
	OpInvokestatic    Opcode = 0xb8
	OpInvokeinterface Opcode = 0xb9
	OpInvokedynamic   Opcode = 0xba
	OpNew             Opcode = 0xbb
	OpNewarray        Opcode = 0xbc
	OpAnewarray       Opcode = 0xbd
	OpCheckcast       Opcode = 0xc0
	OpInstanceof      Opcode = 0xc1
	OpWide            Opcode = 0xc4
	OpMultianewarray  Opcode = 0xc5

	opLast Opcode = 0xc9 // jsr_w
)

var opcodeNames = [...]string{
	"nop", "aconst_null", "iconst_m1", "iconst_0", "iconst_1", "iconst_2", "iconst_3", "iconst_4",
	"iconst_5", "lconst_0", "lconst_1", "fconst_0", "fconst_1", "fconst_2", "dconst_0", "dconst_1",
	"bipush", "sipush", "ldc", "ldc_w", "ldc2_w", "iload", "lload", "fload",
	"dload", "aload", "iload_0", "iload_1", "iload_2", "iload_3", "lload_0", "lload_1",
	"lload_2", "lload_3", "fload_0", "fload_1", "fload_2", "fload_3", "dload_0", "dload_1",
	"dload_2", "dload_3", "aload_0", "aload_1", "aload_2", "aload_3", "iaload", "laload",
	"faload", "daload", "aaload", "baload", "caload", "saload", "istore", "lstore",
	"fstore", "dstore", "astore", "istore_0", "istore_1", "istore_2", "istore_3", "lstore_0",
	"lstore_1", "lstore_2", "lstore_3", "fstore_0", "fstore_1", "fstore_2", "fstore_3", "dstore_0",
	"dstore_1", "dstore_2", "dstore_3", "astore_0", "astore_1", "astore_2", "astore_3", "iastore",
	"lastore", "fastore", "dastore", "aastore", "bastore", "castore", "sastore", "pop",
	"pop2", "dup", "dup_x1", "dup_x2", "dup2", "dup2_x1", "dup2_x2", "swap",
	"iadd", "ladd", "fadd", "dadd", "isub", "lsub", "fsub", "dsub",
	"imul", "lmul", "fmul", "dmul", "idiv", "ldiv", "fdiv", "ddiv",
	"irem", "lrem", "frem", "drem", "ineg", "lneg", "fneg", "dneg",
	"ishl", "lshl", "ishr", "lshr", "iushr", "lushr", "iand", "land",
	"ior", "lor", "ixor", "lxor", "iinc", "i2l", "i2f", "i2d",
	"l2i", "l2f", "l2d", "f2i", "f2l", "f2d", "d2i", "d2l",
	"d2f", "i2b", "i2c", "i2s", "lcmp", "fcmpl", "fcmpg", "dcmpl",
	"dcmpg", "ifeq", "ifne", "iflt", "ifge", "ifgt", "ifle", "if_icmpeq",
	"if_icmpne", "if_icmplt", "if_icmpge", "if_icmpgt", "if_icmple", "if_acmpeq", "if_acmpne", "goto",
	"jsr", "ret", "tableswitch", "lookupswitch", "ireturn", "lreturn", "freturn", "dreturn",
	"areturn", "return", "getstatic", "putstatic", "getfield", "putfield", "invokevirtual", "invokespecial",
	"invokestatic", "invokeinterface", "invokedynamic", "new", "newarray", "anewarray", "arraylength", "athrow",
	"checkcast", "instanceof", "monitorenter", "monitorexit", "wide", "multianewarray", "ifnull", "ifnonnull",
	"goto_w", "jsr_w",
}

// String returns the instruction mnemonic.
func (op Opcode) String() string {
	if int(op) < len(opcodeNames) {
		return opcodeNames[op]
	}
	return "opcode(" + strconv.Itoa(int(op)) + ")"
}

// IsInvoke reports whether op is one of the four direct method invocations.
func (op Opcode) IsInvoke() bool {
	return op >= OpInvokevirtual && op <= OpInvokeinterface
}

// operandSize is the fixed operand length of op, or -1 for the variable
// length tableswitch, lookupswitch and wide forms.
func operandSize(op Opcode) int {
	switch {
	case op <= 0x0f:
		return 0
	case op == OpBipush, op == OpLdc:
		return 1
	case op == OpSipush, op == OpLdcW, op == OpLdc2W:
		return 2
	case op >= 0x15 && op <= 0x19: // iload..aload
		return 1
	case op >= 0x1a && op <= 0x35:
		return 0
	case op >= 0x36 && op <= 0x3a: // istore..astore
		return 1
	case op >= 0x3b && op <= 0x83:
		return 0
	case op == OpIinc:
		return 2
	case op >= 0x85 && op <= 0x98:
		return 0
	case op >= 0x99 && op <= 0xa8: // conditional branches, goto, jsr
		return 2
	case op == 0xa9: // ret
		return 1
	case op == OpTableswitch, op == OpLookupswitch, op == OpWide:
		return -1
	case op >= 0xac && op <= 0xb1: // returns
		return 0
	case op >= OpGetstatic && op <= OpInvokestatic:
		return 2
	case op == OpInvokeinterface, op == OpInvokedynamic:
		return 4
	case op == OpNew, op == OpAnewarray, op == OpCheckcast, op == OpInstanceof:
		return 2
	case op == OpNewarray:
		return 1
	case op == 0xbe, op == 0xbf, op == 0xc2, op == 0xc3: // arraylength, athrow, monitorenter, monitorexit
		return 0
	case op == OpMultianewarray:
		return 3
	case op == 0xc6, op == 0xc7: // ifnull, ifnonnull
		return 2
	case op == 0xc8, op == 0xc9: // goto_w, jsr_w
		return 4
	}
	return -2
}
