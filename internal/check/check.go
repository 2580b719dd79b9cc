// Package check runs the classguard checks configured for a project.
package check

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"classguard/internal/calls"
	"classguard/internal/config"
	"classguard/internal/coverage"
	"classguard/internal/imports"
	"classguard/internal/policy"
	"classguard/internal/report"
	"classguard/internal/walk"
)

// ConfigQuestion describes a single configuration prompt for a check.
type ConfigQuestion struct {
	Key    string // a config.Key* setting
	Prompt string
	Type   string // "text"
}

// Check is implemented by every classguard check.
type Check interface {
	// Name returns the check's short identifier (e.g. "calls").
	Name() string

	// Configure returns the questions the check needs answered before it can run.
	Configure() []ConfigQuestion

	// Configured reports whether cfg holds the settings the check needs.
	Configured(cfg *config.Config) bool

	// Run analyzes the project. Findings are returned as a *report.Failure.
	Run(cfg *config.Config) error
}

// All returns every check in the order "check" runs them.
func All() []Check {
	return []Check{Calls{}, Deps{}, Coverage{}}
}

// Lookup returns the check with the given name.
func Lookup(name string) (Check, bool) {
	i := slices.IndexFunc(All(), func(c Check) bool { return c.Name() == name })
	if i < 0 {
		return nil, false
	}
	return All()[i], true
}

// Questions returns the questions of checks without duplicate keys,
// preceded by the class roots every check reads.
func Questions(checks ...Check) []ConfigQuestion {
	qs := []ConfigQuestion{{Key: config.KeyClasses, Prompt: "Class directories or JARs (comma-separated)", Type: "text"}}
	for _, c := range checks {
		for _, q := range c.Configure() {
			if !slices.ContainsFunc(qs, func(have ConfigQuestion) bool { return have.Key == q.Key }) {
				qs = append(qs, q)
			}
		}
	}
	return qs
}

// Findings splits the result of Run into its finding lines and any other
// error.
func Findings(err error) ([]string, error) {
	var f *report.Failure
	if errors.As(err, &f) {
		return f.Lines, nil
	}
	return nil, err
}

// ---------------------------------------------------------------------------
// calls
// ---------------------------------------------------------------------------

// Calls reports invocations of the configured forbidden methods.
type Calls struct{}

func (Calls) Name() string { return "calls" }

func (Calls) Configure() []ConfigQuestion {
	return []ConfigQuestion{{
		Key:    config.KeyForbiddenCalls,
		Prompt: "Forbidden calls (Class#signature, separated by ;)",
		Type:   "text",
	}}
}

func (Calls) Configured(cfg *config.Config) bool { return len(cfg.ForbiddenCalls) > 0 }

func (Calls) Run(cfg *config.Config) error {
	c, err := calls.NewCollector(cfg.Targets()...)
	if err != nil {
		return fmt.Errorf("check calls: %w", err)
	}
	if err := walk.Paths(cfg.Handler(c.Visit), cfg.Classes...); err != nil {
		return fmt.Errorf("check calls: %w", err)
	}
	return report.Fail("Illegal method calls found:", c.MethodCalls())
}

// ---------------------------------------------------------------------------
// deps
// ---------------------------------------------------------------------------

// Deps evaluates the packages every class references against the policy.
type Deps struct{}

func (Deps) Name() string { return "deps" }

func (Deps) Configure() []ConfigQuestion {
	return []ConfigQuestion{{
		Key:    config.KeyPolicy,
		Prompt: "Dependency policy file (.yaml or .xml)",
		Type:   "text",
	}}
}

func (Deps) Configured(cfg *config.Config) bool { return cfg.Policy != "" }

func (Deps) Run(cfg *config.Config) error {
	if cfg.Policy == "" {
		return errors.New("check deps: no policy configured")
	}
	deps, err := policy.Load(cfg.Policy)
	if err != nil {
		return fmt.Errorf("check deps: %w", err)
	}
	var c imports.Collector
	if err := walk.Paths(cfg.Handler(c.Visit), cfg.Classes...); err != nil {
		return fmt.Errorf("check deps: %w", err)
	}
	return report.Fail("Illegal dependencies found:", policy.Evaluate(deps, c.Imports()))
}

// ---------------------------------------------------------------------------
// coverage
// ---------------------------------------------------------------------------

// Coverage reports classes without a test class.
type Coverage struct{}

func (Coverage) Name() string { return "coverage" }

func (Coverage) Configure() []ConfigQuestion {
	return []ConfigQuestion{
		{Key: config.KeyTestClasses, Prompt: "Test class directory", Type: "text"},
		{Key: config.KeyCoverageSuffix, Prompt: "Test class suffix (default " + coverage.DefaultSuffix + ")", Type: "text"},
	}
}

func (Coverage) Configured(cfg *config.Config) bool { return cfg.TestClasses != "" }

func (Coverage) Run(cfg *config.Config) error {
	if cfg.TestClasses == "" {
		return errors.New("check coverage: no test class directory configured")
	}
	opts := coverage.Options{Suffix: cfg.Coverage.Suffix, Exclude: cfg.Coverage.Exclude}
	var missing []coverage.MissingTest
	for _, dir := range cfg.Classes {
		m, err := coverage.Check(dir, cfg.TestClasses, opts)
		if err != nil {
			return fmt.Errorf("check coverage: %w", err)
		}
		missing = append(missing, m...)
	}
	missing = slices.DeleteFunc(missing, func(m coverage.MissingTest) bool {
		return cfg.Excluded(strings.ReplaceAll(m.ClassName, ".", "/"))
	})
	return report.Fail("Classes without tests found:", missing)
}

