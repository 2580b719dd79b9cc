// Package policy evaluates package import sets against an allow/deny
// dependency policy.
package policy

import (
	"fmt"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

// Rule names a package a dependency entry applies to. With
// IncludeSubPackages it also covers every package below it, split at dots:
// "org.fuin" covers "org.fuin.x" but not "org.fuinx".
type Rule struct {
	Package            string `yaml:"package"`
	IncludeSubPackages bool   `yaml:"includeSubPackages"`
	Comment            string `yaml:"comment,omitempty"`
}

// Matches reports whether pkg is covered by r.
func (r Rule) Matches(pkg string) bool {
	if pkg == r.Package {
		return true
	}
	return r.IncludeSubPackages && strings.HasPrefix(pkg, r.Package+".")
}

// ruleKeys are the keys a rule mapping may hold.
var ruleKeys = []string{"package", "includeSubPackages", "comment"}

// UnmarshalYAML defaults IncludeSubPackages to true when the key is absent
// and rejects keys other than ruleKeys.
func (r *Rule) UnmarshalYAML(n *yaml.Node) error {
	if n.Kind == yaml.MappingNode {
		for i := 0; i+1 < len(n.Content); i += 2 {
			if k := n.Content[i]; !slices.Contains(ruleKeys, k.Value) {
				return fmt.Errorf("policy: line %d: unknown rule key %q", k.Line, k.Value)
			}
		}
	}
	type raw Rule
	v := raw{IncludeSubPackages: true}
	if err := n.Decode(&v); err != nil {
		return err
	}
	*r = Rule(v)
	return nil
}

// MarshalYAML writes the rule's own fields, so DependsOn and NotDependsOn
// encode as plain rule mappings.
func (r Rule) MarshalYAML() (any, error) {
	type raw Rule
	return raw(r), nil
}

// DependsOn is a permitted dependency.
type DependsOn struct {
	Rule `yaml:",inline"`
}

// NotDependsOn is a forbidden dependency.
type NotDependsOn struct {
	Rule `yaml:",inline"`
}

// Allow returns a DependsOn for pkg and its sub-packages.
func Allow(pkg string) DependsOn {
	return DependsOn{Rule{Package: pkg, IncludeSubPackages: true}}
}

// Deny returns a NotDependsOn for pkg and its sub-packages.
func Deny(pkg, comment string) NotDependsOn {
	return NotDependsOn{Rule{Package: pkg, IncludeSubPackages: true, Comment: comment}}
}

// Entry is implemented by DependsOn and NotDependsOn.
type Entry interface {
	DependsOn | NotDependsOn
	rule() Rule
}

func (d DependsOn) rule() Rule    { return d.Rule }
func (d NotDependsOn) rule() Rule { return d.Rule }

// Package groups the dependency entries that apply to classes of one package.
// Packages are identified by Name only.
type Package[T Entry] struct {
	Name         string `yaml:"name"`
	Comment      string `yaml:"comment,omitempty"`
	Dependencies []T    `yaml:"dependencies"`
}

// Dependencies is a complete policy.
//
// Classes of a package listed in Allowed may only depend on the listed
// packages plus AlwaysAllowed. Classes of a package listed in Forbidden may
// depend on anything except AlwaysForbidden and the listed packages. Classes
// of any other package may depend on anything except AlwaysForbidden.
// java.lang is always allowed.
type Dependencies struct {
	AlwaysAllowed   []DependsOn             `yaml:"alwaysAllowed,omitempty"`
	AlwaysForbidden []NotDependsOn          `yaml:"alwaysForbidden,omitempty"`
	Allowed         []Package[DependsOn]    `yaml:"allowed,omitempty"`
	Forbidden       []Package[NotDependsOn] `yaml:"forbidden,omitempty"`
}

// javaLang is implicitly always allowed.
var javaLang = Rule{Package: "java.lang", IncludeSubPackages: true}

// InvalidDependenciesError reports package groupings that are both allowed
// and forbidden.
type InvalidDependenciesError struct {
	Duplicates []string
}

func (e *InvalidDependenciesError) Error() string {
	return "policy: packages both allowed and forbidden: " + strings.Join(e.Duplicates, ", ")
}

// Validate returns an *InvalidDependenciesError when a package name appears
// in both Allowed and Forbidden.
func (d *Dependencies) Validate() error {
	allowed := make(map[string]bool, len(d.Allowed))
	for _, p := range d.Allowed {
		allowed[p.Name] = true
	}
	var dups []string
	for _, p := range d.Forbidden {
		if allowed[p.Name] && !slices.Contains(dups, p.Name) {
			dups = append(dups, p.Name)
		}
	}
	if len(dups) == 0 {
		return nil
	}
	slices.Sort(dups)
	return &InvalidDependenciesError{Duplicates: dups}
}

func findPackage[T Entry](groups []Package[T], name string) (Package[T], bool) {
	for _, p := range groups {
		if p.Name == name {
			return p, true
		}
	}
	return Package[T]{}, false
}

// bestMatch returns the entry with the longest package covering pkg.
func bestMatch[T Entry](entries []T, pkg string) (Rule, bool) {
	var best Rule
	found := false
	for _, e := range entries {
		r := e.rule()
		if r.Matches(pkg) && (!found || len(r.Package) > len(best.Package)) {
			best, found = r, true
		}
	}
	return best, found
}
