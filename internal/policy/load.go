package policy

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Load reads a policy file, choosing the format by extension: .yaml and .yml
// for YAML, .xml for XML. The policy is validated.
func Load(path string) (*Dependencies, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("policy: %w", err)
	}
	defer f.Close()

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		return LoadYAML(f)
	case ".xml":
		return LoadXML(f)
	default:
		return nil, fmt.Errorf("policy: unsupported file extension %q", ext)
	}
}

// LoadYAML decodes and validates a YAML policy. Unknown keys are rejected.
func LoadYAML(r io.Reader) (*Dependencies, error) {
	var d Dependencies
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&d); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("policy: decode yaml: %w", err)
	}
	if err := d.Validate(); err != nil {
		return nil, err
	}
	return &d, nil
}

// Marshal encodes d as YAML.
func Marshal(d *Dependencies) ([]byte, error) {
	data, err := yaml.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("policy: marshal: %w", err)
	}
	return data, nil
}

// ---------------------------------------------------------------------------
// XML
// ---------------------------------------------------------------------------

type xmlRule struct {
	Package            string `xml:"package,attr"`
	IncludeSubPackages string `xml:"includeSubPackages,attr"`
	Comment            string `xml:"comment,attr"`
}

type xmlPackage struct {
	Name         string    `xml:"name,attr"`
	Comment      string    `xml:"comment,attr"`
	DependsOn    []xmlRule `xml:"dependsOn"`
	NotDependsOn []xmlRule `xml:"notDependsOn"`
}

type xmlDependencies struct {
	XMLName         xml.Name     `xml:"dependencies"`
	AlwaysAllowed   []xmlRule    `xml:"alwaysAllowed>dependsOn"`
	AlwaysForbidden []xmlRule    `xml:"alwaysForbidden>notDependsOn"`
	Allowed         []xmlPackage `xml:"allowed>package"`
	Forbidden       []xmlPackage `xml:"forbidden>package"`
}

func (x xmlRule) rule() (Rule, error) {
	r := Rule{Package: x.Package, IncludeSubPackages: true, Comment: x.Comment}
	if x.IncludeSubPackages != "" {
		b, err := strconv.ParseBool(x.IncludeSubPackages)
		if err != nil {
			return r, fmt.Errorf("package %s: includeSubPackages: %w", x.Package, err)
		}
		r.IncludeSubPackages = b
	}
	return r, nil
}

func convertRules[T Entry](rules []xmlRule, wrap func(Rule) T) ([]T, error) {
	var out []T
	for _, x := range rules {
		r, err := x.rule()
		if err != nil {
			return nil, err
		}
		out = append(out, wrap(r))
	}
	return out, nil
}

func convertPackages[T Entry](pkgs []xmlPackage, rules func(xmlPackage) []xmlRule, wrap func(Rule) T) ([]Package[T], error) {
	var out []Package[T]
	for _, p := range pkgs {
		deps, err := convertRules(rules(p), wrap)
		if err != nil {
			return nil, err
		}
		out = append(out, Package[T]{Name: p.Name, Comment: p.Comment, Dependencies: deps})
	}
	return out, nil
}

func wrapAllow(r Rule) DependsOn   { return DependsOn{r} }
func wrapDeny(r Rule) NotDependsOn { return NotDependsOn{r} }

// LoadXML decodes and validates an XML policy of the form
//
//	<dependencies>
//	  <alwaysAllowed><dependsOn package="..." includeSubPackages="..." comment="..."/></alwaysAllowed>
//	  <alwaysForbidden><notDependsOn package="..."/></alwaysForbidden>
//	  <allowed><package name="..." comment="..."><dependsOn package="..."/></package></allowed>
//	  <forbidden><package name="..."><notDependsOn package="..."/></package></forbidden>
//	</dependencies>
func LoadXML(r io.Reader) (*Dependencies, error) {
	var x xmlDependencies
	if err := xml.NewDecoder(r).Decode(&x); err != nil {
		return nil, fmt.Errorf("policy: decode xml: %w", err)
	}

	var (
		d   Dependencies
		err error
	)
	if d.AlwaysAllowed, err = convertRules(x.AlwaysAllowed, wrapAllow); err != nil {
		return nil, fmt.Errorf("policy: alwaysAllowed: %w", err)
	}
	if d.AlwaysForbidden, err = convertRules(x.AlwaysForbidden, wrapDeny); err != nil {
		return nil, fmt.Errorf("policy: alwaysForbidden: %w", err)
	}
	d.Allowed, err = convertPackages(x.Allowed, func(p xmlPackage) []xmlRule { return p.DependsOn }, wrapAllow)
	if err != nil {
		return nil, fmt.Errorf("policy: allowed: %w", err)
	}
	d.Forbidden, err = convertPackages(x.Forbidden, func(p xmlPackage) []xmlRule { return p.NotDependsOn }, wrapDeny)
	if err != nil {
		return nil, fmt.Errorf("policy: forbidden: %w", err)
	}
	if err := d.Validate(); err != nil {
		return nil, err
	}
	return &d, nil
}
