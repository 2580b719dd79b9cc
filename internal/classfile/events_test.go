package classfile_test

import (
	"fmt"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"classguard/internal/classfile"
)

func eventKinds(cf *classfile.ClassFile) []string {
	var kinds []string
	for ev := range cf.Events() {
		kind := strings.TrimPrefix(fmt.Sprintf("%T", ev), "classfile.")
		if ln, ok := ev.(classfile.LineNumber); ok {
			kind = fmt.Sprintf("LineNumber(%d)", ln.Line)
		}
		kinds = append(kinds, kind)
	}
	return kinds
}

func TestEventsOrder(t *testing.T) {
	cf, err := classfile.Parse(scaleClass().Bytes())
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	want := []string{
		"ClassDeclared",
		"SourceFileDeclared",
		"Annotation",
		"FieldDeclared",
		"MethodDeclared",
		"LineNumber(21)",
		"Instruction", "Instruction", "Instruction", "Instruction", "Instruction",
		"LineNumber(22)",
		"Instruction",
		"MethodEnd",
		"ClassEnd",
	}
	if diff := cmp.Diff(want, eventKinds(cf)); diff != "" {
		t.Errorf("events (-want +got):\n%s", diff)
	}
}

func TestEventsUnsortedLineTable(t *testing.T) {
	cf := &classfile.ClassFile{
		Name: "dummy/B",
		Methods: []classfile.Method{{
			Name:       "b",
			Descriptor: "()V",
			Code: &classfile.Code{
				Instructions: []classfile.Instruction{
					{Offset: 0, Opcode: classfile.OpNew, Type: "dummy/C"},
					{Offset: 3, Opcode: classfile.OpCheckcast, Type: "dummy/C"},
				},
				// Stray entry past the last instruction, and out of PC order.
				Lines: []classfile.LineEntry{{PC: 9, Line: 40}, {PC: 3, Line: 31}, {PC: 0, Line: 30}},
			},
		}},
	}
	want := []string{
		"ClassDeclared",
		"MethodDeclared",
		"LineNumber(30)",
		"Instruction",
		"LineNumber(31)",
		"Instruction",
		"LineNumber(40)",
		"MethodEnd",
		"ClassEnd",
	}
	if diff := cmp.Diff(want, eventKinds(cf)); diff != "" {
		t.Errorf("events (-want +got):\n%s", diff)
	}
}

func TestEventsStopEarly(t *testing.T) {
	cf, err := classfile.Parse(scaleClass().Bytes())
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	n := 0
	for range cf.Events() {
		n++
		if n == 6 {
			break
		}
	}
	if n != 6 {
		t.Errorf("expected to stop after 6 events, got %d", n)
	}

	// The sequence restarts from the beginning on every range.
	first := true
	for ev := range cf.Events() {
		if _, ok := ev.(classfile.ClassDeclared); !ok && first {
			t.Errorf("expected ClassDeclared first, got %T", ev)
		}
		first = false
	}
}
