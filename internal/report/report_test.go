package report_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"classguard/internal/report"
)

type finding string

func (f finding) String() string { return string(f) }

func TestFailEmpty(t *testing.T) {
	if err := report.Fail[finding]("nothing", nil); err != nil {
		t.Fatalf("expected nil for no findings, got %v", err)
	}
}

func TestFailLines(t *testing.T) {
	err := report.Fail("Found 2 problems:", []finding{"b => x", "a => y"})
	var f *report.Failure
	if !errors.As(err, &f) {
		t.Fatalf("expected *report.Failure, got %T", err)
	}
	want := "Found 2 problems:\nb => x\na => y"
	if err.Error() != want {
		t.Errorf("message mismatch:\ngot  %q\nwant %q", err.Error(), want)
	}
	if len(f.Lines) != 2 {
		t.Errorf("expected 2 lines, got %d", len(f.Lines))
	}
}

func TestMarkdownRoundtrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.md")
	s := report.Summary{Check: "deps", Findings: 2, GeneratedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)}
	lines := []string{"dummy.test.bad.BadOne => dummy.bad.a", "dummy.A => dummy.c [no c]"}

	if err := report.WriteMarkdown(path, s, lines); err != nil {
		t.Fatalf("WriteMarkdown: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	got, gotLines, err := report.ParseMarkdown(data)
	if err != nil {
		t.Fatalf("ParseMarkdown: %v", err)
	}
	if got.Check != s.Check || got.Findings != s.Findings || !got.GeneratedAt.Equal(s.GeneratedAt) {
		t.Errorf("summary mismatch: got %+v want %+v", got, s)
	}
	if diff := cmp.Diff(lines, gotLines); diff != "" {
		t.Errorf("lines (-want +got):\n%s", diff)
	}
}

func TestMarkdownNoFindings(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.md")
	if err := report.WriteMarkdown(path, report.Summary{Check: "calls"}, nil); err != nil {
		t.Fatalf("WriteMarkdown: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	_, lines, err := report.ParseMarkdown(data)
	if err != nil {
		t.Fatalf("ParseMarkdown: %v", err)
	}
	if len(lines) != 0 {
		t.Errorf("expected no lines, got %v", lines)
	}
}

func TestParseMarkdownMissingDelimiters(t *testing.T) {
	if _, _, err := report.ParseMarkdown([]byte("no delimiter")); err == nil {
		t.Fatal("expected error for missing opening delimiter")
	}
	if _, _, err := report.ParseMarkdown([]byte("---\ncheck: deps\n")); err == nil {
		t.Fatal("expected error for missing closing delimiter")
	}
}
