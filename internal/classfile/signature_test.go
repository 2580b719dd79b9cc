package classfile_test

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"classguard/internal/classfile"
)

func TestParseClassSignature(t *testing.T) {
	sig := "<T::Ljava/lang/Comparable<TT;>;>Ldummy/Base<TT;>;Ldummy/Outer<Ljava/lang/String;>.Inner<+Ldummy/X;>;"
	got, err := classfile.ParseClassSignature(sig)
	if err != nil {
		t.Fatalf("ParseClassSignature: %v", err)
	}
	want := []classfile.TypeRef{
		{Position: classfile.PosBound, Name: "java/lang/Comparable"},
		{Position: classfile.PosSuperclass, Name: "dummy/Base"},
		{Position: classfile.PosInterface, Name: "dummy/Outer"},
		{Position: classfile.PosTypeArgument, Name: "java/lang/String"},
		{Position: classfile.PosInterface, Name: "dummy/Outer$Inner"},
		{Position: classfile.PosTypeArgument, Name: "dummy/X"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("refs (-want +got):\n%s", diff)
	}
}

func TestParseMethodSignature(t *testing.T) {
	sig := "<T:Ljava/lang/Number;>(Ljava/util/List<TT;>;[I)Ljava/util/Map<Ljava/lang/String;TT;>;^Ljava/io/IOException;^TT;"
	got, err := classfile.ParseMethodSignature(sig)
	if err != nil {
		t.Fatalf("ParseMethodSignature: %v", err)
	}
	want := []string{"java/lang/Number", "java/util/List", "java/util/Map", "java/lang/String", "java/io/IOException"}
	if diff := cmp.Diff(want, classfile.SignatureTypes(got)); diff != "" {
		t.Errorf("types (-want +got):\n%s", diff)
	}
	if got[4].Position != classfile.PosThrows {
		t.Errorf("expected throws position, got %v", got[4].Position)
	}
}

func TestParseTypeSignature(t *testing.T) {
	got, err := classfile.ParseTypeSignature("Ljava/util/List<[Ldummy/A;>;")
	if err != nil {
		t.Fatalf("ParseTypeSignature: %v", err)
	}
	want := []classfile.TypeRef{
		{Position: classfile.PosField, Name: "java/util/List"},
		{Position: classfile.PosTypeArgument, Name: "dummy/A"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("refs (-want +got):\n%s", diff)
	}

	if refs, err := classfile.ParseTypeSignature("TT;"); err != nil || len(refs) != 0 {
		t.Errorf("type variable: refs=%v err=%v", refs, err)
	}
}

func TestParseSignatureErrors(t *testing.T) {
	tests := []struct {
		name  string
		parse func(string) ([]classfile.TypeRef, error)
		sig   string
	}{
		{"unterminated class", classfile.ParseTypeSignature, "Ljava/util/List"},
		{"unterminated arguments", classfile.ParseTypeSignature, "Ljava/util/List<Ldummy/A;"},
		{"trailing", classfile.ParseTypeSignature, "Ldummy/A;X"},
		{"no parameters", classfile.ParseMethodSignature, "V"},
		{"unterminated parameters", classfile.ParseMethodSignature, "(Ldummy/A;"},
		{"missing superclass", classfile.ParseClassSignature, "<T:Ljava/lang/Object;>"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := tt.parse(tt.sig); !errors.Is(err, classfile.ErrMalformedClassFile) {
				t.Errorf("expected ErrMalformedClassFile, got %v", err)
			}
		})
	}
}
