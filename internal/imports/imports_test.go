package imports_test

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"classguard/internal/classfile"
	"classguard/internal/classfile/classfiletest"
	"classguard/internal/imports"
)

func extract(t *testing.T, c *classfiletest.Class) imports.ClassImports {
	t.Helper()
	cf, err := classfile.Parse(c.Bytes())
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	ci, err := imports.Extract(cf)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	return ci
}

func TestExtractHeaderAndMembers(t *testing.T) {
	ci := extract(t, &classfiletest.Class{
		Name:       "dummy/app/Service",
		Super:      "dummy/base/Base",
		Interfaces: []string{"dummy/api/Api"},
		Annotations: []classfiletest.Annotation{{
			Desc: "Ldummy/meta/Component;",
			Elements: []classfiletest.Element{
				{Name: "scope", Value: classfiletest.Enum{Desc: "Ldummy/meta/enums/Scope;", Name: "SINGLETON"}},
				{Name: "types", Value: classfiletest.Array{
					classfiletest.ClassLit("Ldummy/lit/Lit;"),
					classfiletest.Nested{Desc: "Ldummy/nested/Inner;"},
					classfiletest.Int(3),
				}},
			},
		}},
		Fields: []classfiletest.Field{
			{Name: "repo", Desc: "[[Ldummy/data/Repo;"},
			{Name: "count", Desc: "I"},
			{Name: "sibling", Desc: "Ldummy/app/Other;"},
		},
		Methods: []classfiletest.Method{{
			Name:       "run",
			Desc:       "(Ldummy/in/In;J)Ldummy/out/Out;",
			Exceptions: []string{"dummy/err/Failure"},
			ParamAnnotations: [][]classfiletest.Annotation{
				{},
				{{Desc: "Ldummy/valid/NotNull;"}},
			},
		}},
	})

	if ci.ClassName != "dummy.app.Service" || ci.Package != "dummy.app" {
		t.Errorf("unexpected class %q package %q", ci.ClassName, ci.Package)
	}
	want := []string{
		"dummy.api", "dummy.app", "dummy.base", "dummy.data", "dummy.err", "dummy.in",
		"dummy.lit", "dummy.meta", "dummy.meta.enums", "dummy.nested", "dummy.out", "dummy.valid",
	}
	if diff := cmp.Diff(want, ci.Imports.Sorted()); diff != "" {
		t.Errorf("imports (-want +got):\n%s", diff)
	}
}

func TestExtractSignatures(t *testing.T) {
	ci := extract(t, &classfiletest.Class{
		Name:       "dummy/gen/Box",
		Super:      "dummy/ignored/Raw",
		Signature:  "<T:Ldummy/bound/Bound;>Ldummy/base/Base<Ldummy/arg/Arg;>;Ldummy/api/Api<TT;>.Inner;",
		Interfaces: []string{"dummy/ignored/RawApi"},
		Fields: []classfiletest.Field{{
			Name: "items", Desc: "Ljava/util/List;", Signature: "Ljava/util/List<Ldummy/item/Item;>;",
		}},
		Methods: []classfiletest.Method{{
			Name:      "map",
			Desc:      "(Ljava/util/function/Function;)V",
			Signature: "<R:Ljava/lang/Object;>(Ljava/util/function/Function<-TT;+TR;>;)V",
			Code: classfiletest.NewCode().
				Op(classfiletest.Return).
				Local("xs", "Ljava/util/Map;", "Ljava/util/Map<Ljava/lang/String;Ldummy/local/Value;>;", 1),
		}},
	})
	want := []string{
		"dummy.api", "dummy.arg", "dummy.base", "dummy.bound", "dummy.item", "dummy.local",
		"java.lang", "java.util", "java.util.function",
	}
	if diff := cmp.Diff(want, ci.Imports.Sorted()); diff != "" {
		t.Errorf("imports (-want +got):\n%s", diff)
	}
}

func TestExtractInstructions(t *testing.T) {
	ci := extract(t, &classfiletest.Class{
		Name:  "Main",
		Super: "-",
		Methods: []classfiletest.Method{{
			Name: "main",
			Desc: "()V",
			Code: classfiletest.NewCode().
				Type(classfile.OpNew, "dummy/a/New").
				Type(classfile.OpAnewarray, "[Ldummy/b/Elem;").
				Type(classfile.OpCheckcast, "dummy/c/Cast").
				Type(classfile.OpInstanceof, "dummy/d/Is").
				MultiANewArray("[[Ldummy/e/Grid;", 2).
				Field(classfile.OpGetstatic, "dummy/f/Holder", "value", "Ldummy/g/Value;").
				Invoke(classfile.OpInvokeinterface, "dummy/h/Api", "call", "(Ldummy/i/Arg;)Ldummy/j/Ret;").
				Invoke(classfile.OpInvokevirtual, "[Ldummy/k/Arr;", "clone", "()Ljava/lang/Object;").
				LdcClass("dummy/l/Lit").
				InvokeDynamic("get", "()Ldummy/m/Supplier;").
				Op(classfiletest.Newarray, 10).
				Op(classfiletest.Return).
				Catch(0, 1, 1, "dummy/n/Oops").
				Catch(0, 1, 1, ""),
		}},
	})
	if ci.Package != "" {
		t.Errorf("expected default package, got %q", ci.Package)
	}
	want := []string{
		"dummy.a", "dummy.b", "dummy.c", "dummy.d", "dummy.e", "dummy.f", "dummy.g",
		"dummy.h", "dummy.i", "dummy.j", "dummy.k", "dummy.l", "dummy.m", "dummy.n", "java.lang",
	}
	if diff := cmp.Diff(want, ci.Imports.Sorted()); diff != "" {
		t.Errorf("imports (-want +got):\n%s", diff)
	}
}

func TestExtractBadSignature(t *testing.T) {
	cf, err := classfile.Parse((&classfiletest.Class{
		Name:   "dummy/Bad",
		Fields: []classfiletest.Field{{Name: "f", Desc: "Ljava/util/List;", Signature: "Ljava/util/List<"}},
	}).Bytes())
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if _, err := imports.Extract(cf); !errors.Is(err, classfile.ErrMalformedClassFile) {
		t.Errorf("expected ErrMalformedClassFile, got %v", err)
	}
}

func TestCollector(t *testing.T) {
	cf, err := classfile.Parse((&classfiletest.Class{Name: "dummy/x/X"}).Bytes())
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	var c imports.Collector
	for range 2 {
		if err := c.Visit("X.class", cf); err != nil {
			t.Fatalf("Visit: %v", err)
		}
	}
	got := c.Imports()
	if len(got) != 2 {
		t.Fatalf("expected 2 results, got %d", len(got))
	}
	if !got[0].Imports.Has("java.lang") {
		t.Errorf("expected java.lang from the superclass, got %v", got[0].Imports.Sorted())
	}
	c.Clear()
	if len(c.Imports()) != 0 {
		t.Error("expected no results after Clear")
	}
}

func TestSet(t *testing.T) {
	s := imports.NewSet("b", "a", "b")
	if diff := cmp.Diff([]string{"a", "b"}, s.Sorted()); diff != "" {
		t.Errorf("Sorted (-want +got):\n%s", diff)
	}
	if s.Has("c") {
		t.Error("unexpected member c")
	}
}
