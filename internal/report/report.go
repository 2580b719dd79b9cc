// Package report turns findings into one aggregate error and into markdown
// report files that open with a YAML summary between --- delimiters.
package report

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Failure is the aggregate error for a non-empty set of findings.
type Failure struct {
	Title string
	Lines []string
}

func (f *Failure) Error() string {
	return f.Title + "\n" + strings.Join(f.Lines, "\n")
}

// Fail returns nil when items is empty, otherwise a *Failure whose lines are
// the string forms of items in order.
func Fail[T fmt.Stringer](title string, items []T) error {
	if len(items) == 0 {
		return nil
	}
	lines := make([]string, len(items))
	for i, it := range items {
		lines[i] = it.String()
	}
	return &Failure{Title: title, Lines: lines}
}

// Summary is the frontmatter of a report file.
type Summary struct {
	Check       string    `yaml:"check"`
	Findings    int       `yaml:"findings"`
	GeneratedAt time.Time `yaml:"generated_at"`
}

// WriteMarkdown writes a report listing lines as bullets under a heading
// named after the check. The summary goes in a YAML block between --- lines.
func WriteMarkdown(path string, s Summary, lines []string) error {
	var doc strings.Builder
	doc.WriteString(delim)
	enc := yaml.NewEncoder(&doc)
	enc.SetIndent(2)
	if err := enc.Encode(s); err != nil {
		return fmt.Errorf("report: encode summary: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("report: encode summary: %w", err)
	}
	doc.WriteString(delim)

	fmt.Fprintf(&doc, "# %s\n\n", s.Check)
	if len(lines) == 0 {
		doc.WriteString("No findings.\n")
	}
	for _, l := range lines {
		fmt.Fprintf(&doc, "- %s\n", l)
	}
	if err := os.WriteFile(path, []byte(doc.String()), 0o644); err != nil {
		return fmt.Errorf("report: write %s: %w", path, err)
	}
	return nil
}

const delim = "---\n"

// ParseMarkdown reads back a document written by WriteMarkdown.
func ParseMarkdown(data []byte) (Summary, []string, error) {
	var s Summary
	rest, ok := strings.CutPrefix(string(data), delim)
	if !ok {
		return s, nil, errors.New("report: missing opening --- delimiter")
	}
	// The closing delimiter starts a line; the block may be empty.
	fm, body, ok := strings.Cut("\n"+rest, "\n"+delim)
	if !ok {
		return s, nil, errors.New("report: missing closing --- delimiter")
	}
	if err := yaml.Unmarshal([]byte(fm), &s); err != nil {
		return s, nil, fmt.Errorf("report: unmarshal summary: %w", err)
	}
	var lines []string
	for l := range strings.Lines(body) {
		if item, ok := strings.CutPrefix(strings.TrimSuffix(l, "\n"), "- "); ok {
			lines = append(lines, item)
		}
	}
	return s, lines, nil
}
