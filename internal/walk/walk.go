// Package walk feeds the class files below a directory, or inside a JAR, to a
// handler. Traversal is fail-fast: the first read, parse or handler error
// ends it.
package walk

import (
	"archive/zip"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"classguard/internal/classfile"
)

// Handler receives one parsed class file. name is the file path, or the
// entry name inside an archive.
type Handler func(name string, cf *classfile.ClassFile) error

// Filter selects which regular files Dir visits.
type Filter func(path string, d fs.DirEntry) bool

// ClassFiles accepts files named *.class.
func ClassFiles(_ string, d fs.DirEntry) bool {
	return strings.HasSuffix(d.Name(), ".class")
}

// ClassReadError reports a class file that could not be read or parsed.
type ClassReadError struct {
	Path string
	Err  error
}

func (e *ClassReadError) Error() string {
	return "walk: read " + e.Path + ": " + e.Err.Error()
}

func (e *ClassReadError) Unwrap() error { return e.Err }

// Dir visits the class files below root in lexical order. A nil filter means
// ClassFiles. Hidden directories are skipped.
func Dir(root string, filter Filter, h Handler) error {
	if filter == nil {
		filter = ClassFiles
	}
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return &ClassReadError{Path: path, Err: err}
		}
		if d.IsDir() {
			if path != root && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() || !filter(path, d) {
			return nil
		}
		return File(path, h)
	})
}

// File parses a single class file and hands it to h.
func File(path string, h Handler) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return &ClassReadError{Path: path, Err: err}
	}
	return visit(path, path, data, h)
}

// Jar visits the *.class entries of the archive at path in archive order.
func Jar(path string, h Handler) error {
	r, err := zip.OpenReader(path)
	if err != nil {
		return &ClassReadError{Path: path, Err: err}
	}
	defer r.Close()

	for _, f := range r.File {
		if f.FileInfo().IsDir() || !strings.HasSuffix(f.Name, ".class") {
			continue
		}
		data, err := readEntry(f)
		if err != nil {
			return &ClassReadError{Path: path + "!/" + f.Name, Err: err}
		}
		if err := visit(path+"!/"+f.Name, f.Name, data, h); err != nil {
			return err
		}
	}
	return nil
}

func readEntry(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

// visit parses data and calls h with name; errors are reported against path.
func visit(path, name string, data []byte, h Handler) error {
	cf, err := classfile.Parse(data)
	if err != nil {
		return &ClassReadError{Path: path, Err: err}
	}
	if err := h(name, cf); err != nil {
		return fmt.Errorf("walk: %s: %w", path, err)
	}
	return nil
}

// Paths visits each root in order: directories with Dir, .jar and .zip
// archives with Jar, anything else as a single class file.
func Paths(h Handler, roots ...string) error {
	for _, root := range roots {
		info, err := os.Stat(root)
		if err != nil {
			return &ClassReadError{Path: root, Err: err}
		}
		switch ext := strings.ToLower(filepath.Ext(root)); {
		case info.IsDir():
			err = Dir(root, nil, h)
		case ext == ".jar" || ext == ".zip":
			err = Jar(root, h)
		default:
			err = File(root, h)
		}
		if err != nil {
			return err
		}
	}
	return nil
}
