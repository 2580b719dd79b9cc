// Package config loads the classguard.yaml project file.
//
// A project file names the compiled class roots to analyze and configures
// each check:
//
//	classes: [target/classes]
//	testClasses: target/test-classes
//	policy: dependencies.yaml
//	forbiddenCalls:
//	  - class: java.math.BigDecimal
//	    signature: java.math.BigDecimal setScale(int)
//	coverage:
//	  suffix: Test
//	  exclude: [com.acme.generated.]
//	exclude:
//	  - "com/acme/generated/**"
//
// Relative paths are resolved against the directory holding the file. A .env
// file next to it and CLASSGUARD_* environment variables override the path
// settings.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"classguard/internal/calls"
	"classguard/internal/classfile"
	"classguard/internal/walk"
)

// DefaultFile is the project file name looked up when none is given.
const DefaultFile = "classguard.yaml"

// Environment variables overriding the project file.
const (
	EnvClasses     = "CLASSGUARD_CLASSES" // comma-separated
	EnvTestClasses = "CLASSGUARD_TEST_CLASSES"
	EnvPolicy      = "CLASSGUARD_POLICY"
)

// Config is a classguard project.
type Config struct {
	Classes        []string     `yaml:"classes"`
	TestClasses    string       `yaml:"testClasses,omitempty"`
	Policy         string       `yaml:"policy,omitempty"`
	ForbiddenCalls []CallTarget `yaml:"forbiddenCalls,omitempty"`
	Coverage       Coverage     `yaml:"coverage,omitempty"`
	// Exclude lists globs over class file paths relative to a class root,
	// such as "com/acme/generated/**". Matching classes are not analyzed.
	Exclude []string `yaml:"exclude,omitempty"`
}

// CallTarget is a method that must not be called.
type CallTarget struct {
	Class     string `yaml:"class"`
	Signature string `yaml:"signature"`
}

// Coverage configures the test coverage check.
type Coverage struct {
	Suffix  string   `yaml:"suffix,omitempty"`
	Exclude []string `yaml:"exclude,omitempty"`
}

// Load reads the project file at path and applies overrides.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal %s: %w", path, err)
	}

	dir := filepath.Dir(path)
	env, err := godotenv.Read(filepath.Join(dir, ".env"))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("config: read .env: %w", err)
	}
	getenv := func(key string) string {
		return firstNonEmpty(strings.TrimSpace(os.Getenv(key)), strings.TrimSpace(env[key]))
	}
	if v := getenv(EnvClasses); v != "" {
		cfg.Classes = splitList(v)
	}
	cfg.TestClasses = firstNonEmpty(getenv(EnvTestClasses), cfg.TestClasses)
	cfg.Policy = firstNonEmpty(getenv(EnvPolicy), cfg.Policy)

	for i, c := range cfg.Classes {
		cfg.Classes[i] = resolve(dir, c)
	}
	cfg.TestClasses = resolve(dir, cfg.TestClasses)
	cfg.Policy = resolve(dir, cfg.Policy)
	return &cfg, nil
}

// Save writes cfg to path. It refuses to overwrite an existing file.
func Save(path string, cfg *Config) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config: %s already exists", path)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("config: marshal: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("config: write %s: %w", path, err)
	}
	return nil
}

// Keys accepted by Set.
const (
	KeyClasses        = "classes"
	KeyTestClasses    = "testClasses"
	KeyPolicy         = "policy"
	KeyForbiddenCalls = "forbiddenCalls"
	KeyCoverageSuffix = "coverage.suffix"
)

// Set assigns a setting from its text form, as answered at an init prompt.
// Lists are comma-separated; forbidden calls are "Class#signature" entries
// separated by semicolons. An empty value leaves the setting unchanged.
func (c *Config) Set(key, value string) error {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	switch key {
	case KeyClasses:
		c.Classes = splitList(value)
	case KeyTestClasses:
		c.TestClasses = value
	case KeyPolicy:
		c.Policy = value
	case KeyCoverageSuffix:
		c.Coverage.Suffix = value
	case KeyForbiddenCalls:
		for _, entry := range strings.Split(value, ";") {
			entry = strings.TrimSpace(entry)
			if entry == "" {
				continue
			}
			class, sig, ok := strings.Cut(entry, "#")
			if !ok || strings.TrimSpace(class) == "" || strings.TrimSpace(sig) == "" {
				return fmt.Errorf("config: forbidden call %q: want Class#signature", entry)
			}
			c.ForbiddenCalls = append(c.ForbiddenCalls, CallTarget{
				Class:     strings.TrimSpace(class),
				Signature: strings.TrimSpace(sig),
			})
		}
	default:
		return fmt.Errorf("config: unknown setting %q", key)
	}
	return nil
}

// Targets converts ForbiddenCalls to target methods.
func (c *Config) Targets() []calls.TargetMethod {
	targets := make([]calls.TargetMethod, 0, len(c.ForbiddenCalls))
	for _, t := range c.ForbiddenCalls {
		targets = append(targets, calls.NewTargetMethod(t.Class, t.Signature))
	}
	return targets
}

// Excluded reports whether the class with the given internal name matches an
// Exclude glob. Safe to call on a nil *Config.
func (c *Config) Excluded(internalName string) bool {
	if c == nil {
		return false
	}
	rel := internalName + ".class"
	for _, pattern := range c.Exclude {
		if matchPattern(strings.TrimPrefix(pattern, "./"), rel) {
			return true
		}
	}
	return false
}

// Handler wraps h so excluded classes are skipped.
func (c *Config) Handler(h walk.Handler) walk.Handler {
	return func(name string, cf *classfile.ClassFile) error {
		if c.Excluded(cf.Name) {
			return nil
		}
		return h(name, cf)
	}
}

// matchPattern reports whether path matches a glob pattern.
//
// "prefix/**" matches every path beneath prefix. All other patterns use
// filepath.Match semantics (single * does not cross /).
func matchPattern(pattern, path string) bool {
	if prefix, ok := strings.CutSuffix(pattern, "/**"); ok {
		return strings.HasPrefix(path, prefix+"/")
	}
	matched, _ := filepath.Match(pattern, path)
	return matched
}

func resolve(dir, path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(dir, path)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
