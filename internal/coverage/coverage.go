// Package coverage checks that every top-level concrete class has a test
// class next to it in the test output tree.
package coverage

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"classguard/internal/classfile"
	"classguard/internal/walk"
)

// DefaultSuffix is appended to a class's simple name to form its test class.
const DefaultSuffix = "Test"

// Options tune Check.
type Options struct {
	Suffix  string   // defaults to DefaultSuffix
	Exclude []string // dotted class-name prefixes that need no test
}

// MissingTest is a class without its test class.
type MissingTest struct {
	ClassName         string
	ExpectedTestClass string
}

func (m MissingTest) String() string {
	return m.ClassName + " has no test class " + m.ExpectedTestClass
}

// skipAccess marks classes that cannot be instantiated on their own.
const skipAccess = classfile.AccInterface | classfile.AccAbstract | classfile.AccAnnotation | classfile.AccSynthetic

// Check walks classesRoot, a class directory or a JAR, and reports every
// class that needs a test class but has no <Simple><Suffix>.class in the same
// package of testClassesDir.
// Nested classes, interfaces, abstract, annotation and synthetic classes,
// package-info and module-info are not required to have tests.
func Check(classesRoot, testClassesDir string, opts Options) ([]MissingTest, error) {
	suffix := opts.Suffix
	if suffix == "" {
		suffix = DefaultSuffix
	}
	var missing []MissingTest
	err := walk.Paths(func(_ string, cf *classfile.ClassFile) error {
		if !needsTest(cf, opts.Exclude) {
			return nil
		}
		testName := cf.Name + suffix
		_, err := os.Stat(filepath.Join(testClassesDir, filepath.FromSlash(testName)+".class"))
		switch {
		case err == nil:
			return nil
		case errors.Is(err, fs.ErrNotExist):
			missing = append(missing, MissingTest{
				ClassName:         classfile.BinaryName(cf.Name),
				ExpectedTestClass: classfile.BinaryName(testName),
			})
			return nil
		default:
			return err
		}
	}, classesRoot)
	if err != nil {
		return nil, err
	}
	return missing, nil
}

func needsTest(cf *classfile.ClassFile, exclude []string) bool {
	simple := classfile.SimpleName(cf.Name)
	if strings.Contains(simple, "$") || simple == "package-info" || simple == "module-info" {
		return false
	}
	if cf.Access&skipAccess != 0 || cf.Access&classfile.AccModule != 0 {
		return false
	}
	name := classfile.BinaryName(cf.Name)
	for _, prefix := range exclude {
		if strings.HasPrefix(name, prefix) {
			return false
		}
	}
	return true
}
