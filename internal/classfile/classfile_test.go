package classfile_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"

	"classguard/internal/classfile"
	"classguard/internal/classfile/classfiletest"
)

// scaleClass mirrors
//
//	public class A {
//	    private BigDecimal bd;
//	    public void a() {
//	        this.bd.setScale(2);   // line 21
//	    }                          // line 22
//	}
func scaleClass() *classfiletest.Class {
	return &classfiletest.Class{
		Access:     classfile.AccPublic | classfile.AccSuper,
		Name:       "dummy/A",
		Interfaces: []string{"java/io/Serializable"},
		SourceFile: "A.java",
		Annotations: []classfiletest.Annotation{{
			Desc:     "Ldummy/Marker;",
			Elements: []classfiletest.Element{{Value: classfiletest.Enum{Desc: "Ldummy/Color;", Name: "RED"}}},
		}},
		Fields: []classfiletest.Field{{Access: classfile.AccPrivate, Name: "bd", Desc: "Ljava/math/BigDecimal;"}},
		Methods: []classfiletest.Method{{
			Access: classfile.AccPublic,
			Name:   "a",
			Desc:   "()V",
			Code: classfiletest.NewCode().
				Line(21).
				Op(classfiletest.Aload0).
				Field(classfile.OpGetfield, "dummy/A", "bd", "Ljava/math/BigDecimal;").
				Op(classfiletest.Iconst2).
				Invoke(classfile.OpInvokevirtual, "java/math/BigDecimal", "setScale", "(I)Ljava/math/BigDecimal;").
				Op(classfiletest.Pop).
				Line(22).
				Op(classfiletest.Return),
		}},
	}
}

func TestParse(t *testing.T) {
	cf, err := classfile.Parse(scaleClass().Bytes())
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	want := &classfile.ClassFile{
		MajorVersion: 52,
		Access:       classfile.AccPublic | classfile.AccSuper,
		Name:         "dummy/A",
		SuperName:    "java/lang/Object",
		Interfaces:   []string{"java/io/Serializable"},
		SourceFile:   "A.java",
		Annotations: []classfile.Annotation{{
			Target:     classfile.TargetClass,
			Descriptor: "Ldummy/Marker;",
			Visible:    true,
			Refs:       []string{"Ldummy/Color;"},
		}},
		Fields: []classfile.Field{{Access: classfile.AccPrivate, Name: "bd", Descriptor: "Ljava/math/BigDecimal;"}},
		Methods: []classfile.Method{{
			Access:     classfile.AccPublic,
			Name:       "a",
			Descriptor: "()V",
			Code: &classfile.Code{
				Instructions: []classfile.Instruction{
					{Offset: 0, Opcode: classfiletest.Aload0},
					{Offset: 1, Opcode: classfile.OpGetfield, Owner: "dummy/A", Name: "bd", Descriptor: "Ljava/math/BigDecimal;"},
					{Offset: 4, Opcode: classfiletest.Iconst2},
					{Offset: 5, Opcode: classfile.OpInvokevirtual, Owner: "java/math/BigDecimal", Name: "setScale", Descriptor: "(I)Ljava/math/BigDecimal;"},
					{Offset: 8, Opcode: classfiletest.Pop},
					{Offset: 9, Opcode: classfiletest.Return},
				},
				Lines: []classfile.LineEntry{{PC: 0, Line: 21}, {PC: 9, Line: 22}},
			},
		}},
	}
	if diff := cmp.Diff(want, cf); diff != "" {
		t.Errorf("Parse mismatch (-want +got):\n%s", diff)
	}
}

func TestParseMethodAttributes(t *testing.T) {
	cls := &classfiletest.Class{
		Name: "dummy/Repo",
		Methods: []classfiletest.Method{
			{
				Name:       "load",
				Desc:       "(Ljava/util/List;)V",
				Signature:  "<T:Ljava/lang/Object;>(Ljava/util/List<TT;>;)V",
				Exceptions: []string{"java/io/IOException"},
				Annotations: []classfiletest.Annotation{
					{Desc: "Ldummy/Audited;", Invisible: true},
				},
				ParamAnnotations: [][]classfiletest.Annotation{{{Desc: "Ldummy/NotNull;"}}},
				Code: classfiletest.NewCode().
					Op(classfiletest.Return).
					Catch(0, 1, 0, "java/lang/Exception").
					Catch(0, 1, 0, "").
					Local("this", "Ldummy/Repo;", "", 0).
					Local("xs", "Ljava/util/List;", "Ljava/util/List<TT;>;", 1),
			},
			{
				Access:  classfile.AccPublic | classfile.AccAbstract,
				Name:    "type",
				Desc:    "()Ljava/lang/Class;",
				Default: classfiletest.Array{classfiletest.ClassLit("Ldummy/F;"), classfiletest.Nested{Desc: "Ldummy/G;"}},
			},
		},
	}
	cf, err := classfile.Parse(cls.Bytes())
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(cf.Methods) != 2 {
		t.Fatalf("expected 2 methods, got %d", len(cf.Methods))
	}

	load := cf.Methods[0]
	if load.Signature != "<T:Ljava/lang/Object;>(Ljava/util/List<TT;>;)V" {
		t.Errorf("unexpected signature %q", load.Signature)
	}
	if diff := cmp.Diff([]string{"java/io/IOException"}, load.Exceptions); diff != "" {
		t.Errorf("exceptions (-want +got):\n%s", diff)
	}
	wantAnnotations := []classfile.Annotation{
		{Target: classfile.TargetMethod, Descriptor: "Ldummy/Audited;"},
		{Target: classfile.TargetParameter, Parameter: 0, Descriptor: "Ldummy/NotNull;", Visible: true},
	}
	if diff := cmp.Diff(wantAnnotations, load.Annotations); diff != "" {
		t.Errorf("annotations (-want +got):\n%s", diff)
	}
	wantCatch := []classfile.TryCatchBlock{
		{StartPC: 0, EndPC: 1, HandlerPC: 0, Type: "java/lang/Exception"},
		{StartPC: 0, EndPC: 1, HandlerPC: 0},
	}
	if diff := cmp.Diff(wantCatch, load.Code.TryCatch); diff != "" {
		t.Errorf("try/catch (-want +got):\n%s", diff)
	}
	wantLocals := []classfile.LocalVariable{
		{Name: "this", Descriptor: "Ldummy/Repo;", Index: 0},
		{Name: "xs", Descriptor: "Ljava/util/List;", Signature: "Ljava/util/List<TT;>;", Index: 1},
	}
	if diff := cmp.Diff(wantLocals, load.Code.LocalVariables); diff != "" {
		t.Errorf("locals (-want +got):\n%s", diff)
	}

	typ := cf.Methods[1]
	if typ.Code != nil {
		t.Error("expected abstract method without code")
	}
	wantDefault := []classfile.Annotation{
		{Target: classfile.TargetDefault, Visible: true, Refs: []string{"Ldummy/F;", "Ldummy/G;"}},
	}
	if diff := cmp.Diff(wantDefault, typ.Annotations); diff != "" {
		t.Errorf("default (-want +got):\n%s", diff)
	}
}

func TestParseOperands(t *testing.T) {
	cls := &classfiletest.Class{
		Name: "dummy/Ops",
		Methods: []classfiletest.Method{{
			Name: "run",
			Desc: "()V",
			Code: classfiletest.NewCode().
				LdcClass("dummy/C").
				MultiANewArray("[[Ldummy/D;", 2).
				InvokeDynamic("apply", "()Ljava/util/function/Function;").
				Invoke(classfile.OpInvokeinterface, "java/util/List", "size", "()I").
				Ldc2Long(5).
				LdcMethodType("(Ldummy/E;)V").
				LdcString("x").
				Type(classfile.OpCheckcast, "dummy/H").
				Op(classfiletest.Return),
		}},
	}
	cf, err := classfile.Parse(cls.Bytes())
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	want := []classfile.Instruction{
		{Offset: 0, Opcode: classfile.OpLdcW, Type: "dummy/C"},
		{Offset: 3, Opcode: classfile.OpMultianewarray, Type: "[[Ldummy/D;", Dims: 2},
		{Offset: 7, Opcode: classfile.OpInvokedynamic, Name: "apply", Descriptor: "()Ljava/util/function/Function;"},
		{Offset: 12, Opcode: classfile.OpInvokeinterface, Owner: "java/util/List", Name: "size", Descriptor: "()I"},
		{Offset: 17, Opcode: classfile.OpLdc2W},
		{Offset: 20, Opcode: classfile.OpLdcW, Descriptor: "(Ldummy/E;)V"},
		{Offset: 23, Opcode: classfile.OpLdc},
		{Offset: 25, Opcode: classfile.OpCheckcast, Type: "dummy/H"},
		{Offset: 28, Opcode: classfiletest.Return},
	}
	if diff := cmp.Diff(want, cf.Methods[0].Code.Instructions); diff != "" {
		t.Errorf("instructions (-want +got):\n%s", diff)
	}
}

func TestParseSwitchPadding(t *testing.T) {
	cls := &classfiletest.Class{
		Name: "dummy/Switch",
		Methods: []classfiletest.Method{{
			Name: "pick",
			Desc: "()V",
			Code: classfiletest.NewCode().
				Op(classfiletest.Iconst0).
				TableSwitch(0, 2).
				Op(classfiletest.Iconst0).
				LookupSwitch(1, 5).
				Op(classfiletest.Return),
		}},
	}
	cf, err := classfile.Parse(cls.Bytes())
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	var got []string
	for _, insn := range cf.Methods[0].Code.Instructions {
		got = append(got, fmt.Sprintf("%d:%s", insn.Offset, insn.Opcode))
	}
	want := []string{"0:iconst_0", "1:tableswitch", "28:iconst_0", "29:lookupswitch", "56:return"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("offsets (-want +got):\n%s", diff)
	}
}

func TestParseMalformed(t *testing.T) {
	good := scaleClass().Bytes()
	badMagic := append([]byte{0xCA, 0xFE, 0xBA, 0xBF}, good[4:]...)

	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"bad magic", badMagic},
		{"truncated", good[:len(good)-1]},
		{"trailing", append(append([]byte{}, good...), 0)},
		{"header only", good[:10]},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := classfile.Parse(tt.data)
			if !errors.Is(err, classfile.ErrMalformedClassFile) {
				t.Errorf("expected ErrMalformedClassFile, got %v", err)
			}
		})
	}
}

func TestOpcodeString(t *testing.T) {
	if got := classfile.OpInvokevirtual.String(); got != "invokevirtual" {
		t.Errorf("expected invokevirtual, got %q", got)
	}
	if got := classfile.Opcode(0xfe).String(); got != "opcode(254)" {
		t.Errorf("expected opcode(254), got %q", got)
	}
	if !classfile.OpInvokeinterface.IsInvoke() || classfile.OpInvokedynamic.IsInvoke() {
		t.Error("IsInvoke should cover invokevirtual through invokeinterface only")
	}
}
