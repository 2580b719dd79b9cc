package hierarchy_test

import (
	"archive/zip"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"classguard/internal/calls"
	"classguard/internal/classfile"
	"classguard/internal/classfile/classfiletest"
	"classguard/internal/hierarchy"
)

func run(access uint16) classfiletest.Method {
	return classfiletest.Method{Access: access, Name: "run", Desc: "()V"}
}

const iface = classfile.AccPublic | classfile.AccInterface | classfile.AccAbstract

// classPath lays out
//
//	interface Api extends Api2 { void run(); }
//	interface Api2 extends Api            (a cycle the search must survive)
//	class Base implements Api { public void run() }
//	class Impl extends Base implements Api, Other { public void run() }
//	interface Other { private void run() }
//
// with Api and Base in a JAR and the rest in a class directory.
func classPath(t *testing.T) *hierarchy.ClassPath {
	t.Helper()
	tmp := t.TempDir()

	dir := filepath.Join(tmp, "classes")
	for _, c := range []*classfiletest.Class{
		{Name: "dummy/Impl", Super: "dummy/Base", Interfaces: []string{"dummy/Api", "dummy/Other"}, Methods: []classfiletest.Method{run(classfile.AccPublic)}},
		{Name: "dummy/Other", Access: iface, Methods: []classfiletest.Method{run(classfile.AccPrivate)}},
		{Name: "dummy/Api2", Access: iface, Interfaces: []string{"dummy/Api"}},
	} {
		if _, err := c.Write(dir); err != nil {
			t.Fatal(err)
		}
	}

	jar := filepath.Join(tmp, "api.jar")
	f, err := os.Create(jar)
	if err != nil {
		t.Fatal(err)
	}
	zw := zip.NewWriter(f)
	for _, c := range []*classfiletest.Class{
		{Name: "dummy/Api", Access: iface, Interfaces: []string{"dummy/Api2"}, Methods: []classfiletest.Method{run(classfile.AccPublic | classfile.AccAbstract)}},
		{Name: "dummy/Base", Interfaces: []string{"dummy/Api"}, Methods: []classfiletest.Method{run(classfile.AccPublic)}},
	} {
		w, err := zw.Create(c.Name + ".class")
		if err != nil {
			t.Fatal(err)
		}
		if _, err := w.Write(c.Bytes()); err != nil {
			t.Fatal(err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}

	cp, err := hierarchy.NewClassPath(hierarchy.DefaultCacheSize, dir, jar)
	if err != nil {
		t.Fatalf("NewClassPath: %v", err)
	}
	t.Cleanup(func() { cp.Close() })
	return cp
}

func TestFindOverrides(t *testing.T) {
	cp := classPath(t)
	got, err := hierarchy.FindOverrides(cp, "dummy.Impl", "run", "()V")
	if err != nil {
		t.Fatalf("FindOverrides: %v", err)
	}
	want := []calls.TargetMethod{
		{ClassName: "dummy.Base", Signature: "void run()"},
		{ClassName: "dummy.Api", Signature: "void run()"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("overrides (-want +got):\n%s", diff)
	}

	none, err := hierarchy.FindOverrides(cp, "dummy/Impl", "run", "(I)V")
	if err != nil {
		t.Fatalf("FindOverrides: %v", err)
	}
	if len(none) != 0 {
		t.Errorf("expected no overrides for another descriptor, got %v", none)
	}
}

func TestLoadCaches(t *testing.T) {
	cp := classPath(t)
	first, err := cp.Load("dummy/Base")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	second, err := cp.Load("dummy/Base")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if first != second {
		t.Error("expected the second load to come from the cache")
	}
	if _, err := cp.Load("dummy/Nope"); !errors.Is(err, hierarchy.ErrClassNotFound) {
		t.Errorf("expected ErrClassNotFound, got %v", err)
	}
}

func TestFindOverridesMissingSupertype(t *testing.T) {
	dir := t.TempDir()
	c := &classfiletest.Class{Name: "dummy/Orphan", Super: "dummy/Gone"}
	if _, err := c.Write(dir); err != nil {
		t.Fatal(err)
	}
	cp, err := hierarchy.NewClassPath(8, dir)
	if err != nil {
		t.Fatalf("NewClassPath: %v", err)
	}
	defer cp.Close()

	if _, err := hierarchy.FindOverrides(cp, "dummy.Orphan", "run", "()V"); !errors.Is(err, hierarchy.ErrClassNotFound) {
		t.Errorf("expected ErrClassNotFound, got %v", err)
	}
}

func TestNewClassPathErrors(t *testing.T) {
	if _, err := hierarchy.NewClassPath(0, t.TempDir()); err == nil {
		t.Error("expected an error for a zero cache size")
	}
	if _, err := hierarchy.NewClassPath(8, filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Error("expected an error for a missing root")
	}
}
