package calls

import (
	"classguard/internal/classfile"
	"classguard/internal/report"
	"classguard/internal/walk"
)

// Collector accumulates call sites over a traversal. Visit matches
// walk.Handler. Results accumulate across visits until ClearMethodCalls.
type Collector struct {
	x     *Extractor
	calls []CallSite
}

// NewCollector returns a collector for targets.
func NewCollector(targets ...TargetMethod) (*Collector, error) {
	x, err := NewExtractor(targets...)
	if err != nil {
		return nil, err
	}
	return &Collector{x: x}, nil
}

// Visit extracts the call sites of cf and appends them.
func (c *Collector) Visit(_ string, cf *classfile.ClassFile) error {
	sites, err := c.x.Extract(cf)
	if err != nil {
		return err
	}
	c.calls = append(c.calls, sites...)
	return nil
}

// MethodCalls returns the call sites found so far in discovery order.
func (c *Collector) MethodCalls() []CallSite {
	return append([]CallSite(nil), c.calls...)
}

// ClearMethodCalls forgets all call sites found so far.
func (c *Collector) ClearMethodCalls() {
	c.calls = nil
}

// FindCalls returns the call sites of targets under each root, a class
// directory or a JAR.
func FindCalls(targets []TargetMethod, roots ...string) ([]CallSite, error) {
	c, err := NewCollector(targets...)
	if err != nil {
		return nil, err
	}
	if err := walk.Paths(c.Visit, roots...); err != nil {
		return nil, err
	}
	return c.MethodCalls(), nil
}

// AssertNoCalls returns a *report.Failure listing every call site of targets
// under roots, or nil when there are none.
func AssertNoCalls(targets []TargetMethod, roots ...string) error {
	sites, err := FindCalls(targets, roots...)
	if err != nil {
		return err
	}
	return report.Fail("Illegal method calls found:", sites)
}
