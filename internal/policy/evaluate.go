package policy

import (
	"classguard/internal/imports"
)

// DependencyError is one import that violates the policy.
type DependencyError struct {
	ClassName         string
	ReferencedPackage string
	Comment           string
}

// String renders "<class> => <package>" with " [<comment>]" appended when
// there is a comment.
func (e DependencyError) String() string {
	s := e.ClassName + " => " + e.ReferencedPackage
	if e.Comment != "" {
		s += " [" + e.Comment + "]"
	}
	return s
}

// Evaluate checks every class against d and returns the violations in class
// order, each class's imports in lexical order. Imports of the class's own
// package, of java.lang and of AlwaysAllowed packages never violate the
// policy, whatever grouping the class falls in.
//
// d must be valid: callers building a policy in code call Validate first, as
// Load, LoadYAML and LoadXML do. For a package listed in both Allowed and
// Forbidden the Allowed grouping would win.
func Evaluate(d *Dependencies, classes []imports.ClassImports) []DependencyError {
	var errs []DependencyError
	for _, c := range classes {
		errs = append(errs, d.check(c)...)
	}
	return errs
}

func (d *Dependencies) check(c imports.ClassImports) []DependencyError {
	var errs []DependencyError
	report := func(pkg, comment string) {
		errs = append(errs, DependencyError{ClassName: c.ClassName, ReferencedPackage: pkg, Comment: comment})
	}

	allowed, isAllowed := findPackage(d.Allowed, c.Package)
	forbidden, isForbidden := findPackage(d.Forbidden, c.Package)

	for _, pkg := range c.Imports.Sorted() {
		if pkg == c.Package || d.alwaysAllowed(pkg) {
			continue
		}
		switch {
		case isAllowed:
			if _, ok := bestMatch(allowed.Dependencies, pkg); !ok {
				report(pkg, allowed.Comment)
			}
		case isForbidden:
			if r, ok := bestMatch(d.AlwaysForbidden, pkg); ok {
				report(pkg, r.Comment)
			} else if r, ok := bestMatch(forbidden.Dependencies, pkg); ok {
				comment := r.Comment
				if comment == "" {
					comment = forbidden.Comment
				}
				report(pkg, comment)
			}
		default:
			if r, ok := bestMatch(d.AlwaysForbidden, pkg); ok {
				report(pkg, r.Comment)
			}
		}
	}
	return errs
}

func (d *Dependencies) alwaysAllowed(pkg string) bool {
	if javaLang.Matches(pkg) {
		return true
	}
	_, ok := bestMatch(d.AlwaysAllowed, pkg)
	return ok
}
