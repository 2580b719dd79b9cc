// Package hierarchy resolves classes by name from a class path and searches
// their supertypes for the methods a given method overrides.
package hierarchy

import (
	"archive/zip"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"classguard/internal/calls"
	"classguard/internal/classfile"
	"classguard/internal/walk"
)

// ErrClassNotFound is returned when no class path root holds a class.
var ErrClassNotFound = errors.New("hierarchy: class not found")

// DefaultCacheSize is the number of parsed classes a ClassPath keeps.
const DefaultCacheSize = 1024

// ClassPath loads classes by internal name from class directories and JARs,
// searched in order. Parsed classes are kept in an LRU cache.
type ClassPath struct {
	roots []root
	cache *lru.Cache[string, *classfile.ClassFile]
}

type root struct {
	path string
	jar  *zip.ReadCloser // nil for directories
}

// NewClassPath opens roots. Close releases the JARs among them.
func NewClassPath(cacheSize int, roots ...string) (*ClassPath, error) {
	cache, err := lru.New[string, *classfile.ClassFile](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("hierarchy: %w", err)
	}
	cp := &ClassPath{cache: cache}
	for _, path := range roots {
		info, err := os.Stat(path)
		if err != nil {
			cp.Close()
			return nil, fmt.Errorf("hierarchy: %w", err)
		}
		r := root{path: path}
		if !info.IsDir() {
			if r.jar, err = zip.OpenReader(path); err != nil {
				cp.Close()
				return nil, &walk.ClassReadError{Path: path, Err: err}
			}
		}
		cp.roots = append(cp.roots, r)
	}
	return cp, nil
}

// Close closes every opened JAR.
func (cp *ClassPath) Close() error {
	var errs []error
	for _, r := range cp.roots {
		if r.jar != nil {
			errs = append(errs, r.jar.Close())
		}
	}
	return errors.Join(errs...)
}

// Load returns the class with the given internal name.
func (cp *ClassPath) Load(internalName string) (*classfile.ClassFile, error) {
	if cf, ok := cp.cache.Get(internalName); ok {
		return cf, nil
	}
	for _, r := range cp.roots {
		var (
			data []byte
			err  error
			path string
		)
		if r.jar != nil {
			path = r.path + "!/" + internalName + ".class"
			data, err = fs.ReadFile(r.jar, internalName+".class")
		} else {
			path = filepath.Join(r.path, filepath.FromSlash(internalName)+".class")
			data, err = os.ReadFile(path)
		}
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, &walk.ClassReadError{Path: path, Err: err}
		}
		cf, err := classfile.Parse(data)
		if err != nil {
			return nil, &walk.ClassReadError{Path: path, Err: err}
		}
		cp.cache.Add(internalName, cf)
		return cf, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrClassNotFound, internalName)
}

// FindOverrides returns the methods that method name+descriptor of
// className overrides or implements, nearest supertype first. className may
// be dotted or an internal name. JDK supertypes missing from the class path
// are skipped; any other missing supertype is an error.
func FindOverrides(cp *ClassPath, className, name, descriptor string) ([]calls.TargetMethod, error) {
	start, err := cp.Load(strings.ReplaceAll(className, ".", "/"))
	if err != nil {
		return nil, err
	}

	var found []calls.TargetMethod
	visited := map[string]bool{start.Name: true}
	queue := supertypes(start)
	for len(queue) > 0 {
		next := queue[0]
		queue = queue[1:]
		if visited[next] {
			continue
		}
		visited[next] = true

		cf, err := cp.Load(next)
		if errors.Is(err, ErrClassNotFound) && classfile.IsStdLib(next) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("hierarchy: supertype of %s: %w", start.Name, err)
		}
		for _, m := range cf.Methods {
			if m.Name != name || m.Descriptor != descriptor || m.Access&(classfile.AccPrivate|classfile.AccStatic) != 0 {
				continue
			}
			tm, err := calls.TargetMethodOf(cf.Name, m.Name, m.Descriptor)
			if err != nil {
				return nil, err
			}
			found = append(found, tm)
		}
		queue = append(queue, supertypes(cf)...)
	}
	return found, nil
}

func supertypes(cf *classfile.ClassFile) []string {
	var names []string
	if cf.SuperName != "" {
		names = append(names, cf.SuperName)
	}
	return append(names, cf.Interfaces...)
}
