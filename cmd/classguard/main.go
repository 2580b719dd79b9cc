package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"classguard/internal/check"
	"classguard/internal/classfile"
	"classguard/internal/config"
	"classguard/internal/hierarchy"
	"classguard/internal/policy"
	"classguard/internal/report"
)

// command describes a CLI subcommand.
type command struct {
	name  string
	short string
	usage string
	long  string
	run   func(args []string) error
}

var commands = []command{
	{
		name:  "init",
		short: "Create a classguard.yaml project file",
		usage: "classguard init [dir]",
		long: `Prompt for the settings of every check and write dir/classguard.yaml
(dir defaults to the current directory).

When the answer names a dependency policy file that does not exist yet, a
starter policy is written there too.

Errors if classguard.yaml already exists.
`,
		run: runInit,
	},
	{
		name:  "calls",
		short: "Report calls to forbidden methods",
		usage: "classguard calls [--report file] [config]",
		long: `Scan the configured class roots for invocations of forbidden methods.

Each caller method is reported once, with the source file and line of its
last call to a forbidden method. Exits non-zero when calls are found.
`,
		run: checkCommand("calls"),
	},
	{
		name:  "deps",
		short: "Evaluate package dependencies against the policy",
		usage: "classguard deps [--report file] [config]",
		long: `Collect the packages every class references and evaluate them against
the dependency policy (.yaml or .xml). Exits non-zero on violations.
`,
		run: checkCommand("deps"),
	},
	{
		name:  "coverage",
		short: "Report classes without a test class",
		usage: "classguard coverage [--report file] [config]",
		long: `Require <Class><Suffix>.class in the test class directory for every
top-level concrete class. Exits non-zero when tests are missing.
`,
		run: checkCommand("coverage"),
	},
	{
		name:  "check",
		short: "Run every configured check",
		usage: "classguard check [--report file] [config]",
		long: `Run calls, deps and coverage, skipping checks the project file does not
configure. With --report, all findings go to one markdown report.
`,
		run: checkCommand("check"),
	},
	{
		name:  "overrides",
		short: "List the methods a method overrides",
		usage: "classguard overrides <config> <class> <method> <descriptor>",
		long: `Search the supertypes of <class> on the configured class roots for the
methods that <method><descriptor> overrides or implements, nearest first.

Example:
  classguard overrides classguard.yaml com.acme.Impl run "()V"
`,
		run: runOverrides,
	},
}

// stdout receives command output.
var stdout io.Writer = os.Stdout

// ask prompts for answers; replaced in tests.
var ask = promptQuestions

func printUsage(w io.Writer) {
	fmt.Fprintf(w, "classguard - static checks over compiled JVM classes\n\n")
	fmt.Fprintf(w, "Usage:\n  classguard <command> [arguments]\n\n")
	fmt.Fprintf(w, "Commands:\n")
	for _, cmd := range commands {
		fmt.Fprintf(w, "  %-10s %s\n", cmd.name, cmd.short)
	}
	fmt.Fprintf(w, "\nRun 'classguard help <command>' for details on a specific command.\n")
}

func printCommandHelp(w io.Writer, name string) {
	for _, cmd := range commands {
		if cmd.name == name {
			fmt.Fprintf(w, "Usage: %s\n\n%s", cmd.usage, cmd.long)
			return
		}
	}
	fmt.Fprintf(w, "classguard: unknown command %q\n\nRun 'classguard help' for usage.\n", name)
}

func dispatch(args []string) error {
	if len(args) == 0 || args[0] == "--help" || args[0] == "-h" {
		printUsage(stdout)
		return nil
	}
	if args[0] == "help" {
		if len(args) >= 2 {
			printCommandHelp(stdout, args[1])
		} else {
			printUsage(stdout)
		}
		return nil
	}
	for _, cmd := range commands {
		if cmd.name == args[0] {
			return cmd.run(args[1:])
		}
	}
	return fmt.Errorf("unknown command %q\n\nRun 'classguard help' for usage.", args[0])
}

// ---------------------------------------------------------------------------
// init
// ---------------------------------------------------------------------------

// starterPolicy is written when init names a policy file that does not exist.
var starterPolicy = &policy.Dependencies{
	AlwaysForbidden: []policy.NotDependsOn{
		policy.Deny("sun", "JDK internal API"),
		policy.Deny("com.sun", "JDK internal API"),
	},
}

func runInit(args []string) error {
	if len(args) > 1 {
		return fmt.Errorf("usage: classguard init [dir]")
	}
	dir := "."
	if len(args) == 1 {
		dir = args[0]
	}
	path := filepath.Join(dir, config.DefaultFile)
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%s already exists", path)
	}

	answers, err := ask(check.Questions(check.All()...))
	if err != nil {
		return fmt.Errorf("prompt: %w", err)
	}
	var cfg config.Config
	for _, q := range check.Questions(check.All()...) {
		if err := cfg.Set(q.Key, answers[q.Key]); err != nil {
			return err
		}
	}
	if err := config.Save(path, &cfg); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "created %s\n", path)

	if cfg.Policy == "" {
		return nil
	}
	policyPath := cfg.Policy
	if !filepath.IsAbs(policyPath) {
		policyPath = filepath.Join(dir, policyPath)
	}
	if _, err := os.Stat(policyPath); !errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if ext := strings.ToLower(filepath.Ext(policyPath)); ext != ".yaml" && ext != ".yml" {
		log.Printf("not writing a starter policy to %s: only YAML is generated", policyPath)
		return nil
	}
	data, err := policy.Marshal(starterPolicy)
	if err != nil {
		return err
	}
	if err := os.WriteFile(policyPath, data, 0o644); err != nil {
		return fmt.Errorf("write policy: %w", err)
	}
	fmt.Fprintf(stdout, "created %s\n", policyPath)
	return nil
}

// ---------------------------------------------------------------------------
// calls, deps, coverage, check
// ---------------------------------------------------------------------------

// findingsError is returned when a check command found violations.
type findingsError struct {
	command string
	count   int
}

func (e *findingsError) Error() string {
	return fmt.Sprintf("%s: %d finding(s)", e.command, e.count)
}

// parseCheckArgs accepts --report before or after the optional config path.
func parseCheckArgs(name string, args []string) (path, reportPath string, err error) {
	fset := flag.NewFlagSet(name, flag.ContinueOnError)
	fset.SetOutput(io.Discard)
	fset.StringVar(&reportPath, "report", "", "write a markdown report to `file`")

	var positional []string
	for {
		if err := fset.Parse(args); err != nil {
			return "", "", fmt.Errorf("usage: classguard %s [--report file] [config]", name)
		}
		args = fset.Args()
		if len(args) == 0 {
			break
		}
		positional = append(positional, args[0])
		args = args[1:]
	}
	switch len(positional) {
	case 0:
		return config.DefaultFile, reportPath, nil
	case 1:
		return positional[0], reportPath, nil
	default:
		return "", "", fmt.Errorf("usage: classguard %s [--report file] [config]", name)
	}
}

// checkCommand returns the run func of the named check, or of every
// configured check for "check".
func checkCommand(name string) func(args []string) error {
	return func(args []string) error {
		path, reportPath, err := parseCheckArgs(name, args)
		if err != nil {
			return err
		}
		cfg, err := config.Load(path)
		if err != nil {
			return err
		}

		var checks []check.Check
		if name == "check" {
			for _, c := range check.All() {
				if c.Configured(cfg) {
					checks = append(checks, c)
				}
			}
			if len(checks) == 0 {
				return fmt.Errorf("no checks configured in %s", path)
			}
		} else {
			c, _ := check.Lookup(name)
			checks = []check.Check{c}
		}

		var lines []string
		for _, c := range checks {
			log.Printf("running %s...", c.Name())
			found, err := check.Findings(c.Run(cfg))
			if err != nil {
				return err
			}
			for _, l := range found {
				fmt.Fprintf(stdout, "[%s] %s\n", c.Name(), l)
				lines = append(lines, "["+c.Name()+"] "+l)
			}
		}

		if reportPath != "" {
			s := report.Summary{Check: name, Findings: len(lines), GeneratedAt: time.Now().UTC()}
			if err := report.WriteMarkdown(reportPath, s, lines); err != nil {
				return err
			}
			log.Printf("wrote %s", reportPath)
		}
		if len(lines) > 0 {
			return &findingsError{command: name, count: len(lines)}
		}
		fmt.Fprintf(stdout, "%s: no findings\n", name)
		return nil
	}
}

// ---------------------------------------------------------------------------
// overrides
// ---------------------------------------------------------------------------

func runOverrides(args []string) error {
	if len(args) != 4 {
		return fmt.Errorf("usage: classguard overrides <config> <class> <method> <descriptor>")
	}
	cfg, err := config.Load(args[0])
	if err != nil {
		return err
	}
	className, method, desc := args[1], args[2], args[3]
	if _, err := classfile.MethodSignature(method, desc); err != nil {
		return err
	}

	cp, err := hierarchy.NewClassPath(hierarchy.DefaultCacheSize, cfg.Classes...)
	if err != nil {
		return err
	}
	defer cp.Close()

	found, err := hierarchy.FindOverrides(cp, className, method, desc)
	if err != nil {
		return err
	}
	if len(found) == 0 {
		fmt.Fprintf(stdout, "%s.%s%s overrides nothing\n", className, method, desc)
		return nil
	}
	for _, m := range found {
		fmt.Fprintln(stdout, m)
	}
	return nil
}

// ---------------------------------------------------------------------------
// TUI prompt helpers
// ---------------------------------------------------------------------------

// promptModel is a bubbletea form listing every question at once. Tab and
// the arrow keys move between answers; enter on the last one submits. An
// empty answer keeps the setting unset.
type promptModel struct {
	questions []check.ConfigQuestion
	inputs    []textinput.Model
	focus     int
	submitted bool
}

func newPromptModel(questions []check.ConfigQuestion) promptModel {
	m := promptModel{questions: questions}
	for _, q := range questions {
		in := textinput.New()
		in.Prompt = "  "
		in.Placeholder = q.Key
		in.CharLimit = 1024
		m.inputs = append(m.inputs, in)
	}
	m.moveFocus(0)
	return m
}

// moveFocus focuses input i, clamped to the form.
func (m *promptModel) moveFocus(i int) tea.Cmd {
	if len(m.inputs) == 0 {
		return nil
	}
	i = max(0, min(i, len(m.inputs)-1))
	m.inputs[m.focus].Blur()
	m.focus = i
	return m.inputs[i].Focus()
}

// answers returns the form values keyed by ConfigQuestion.Key.
func (m promptModel) answers() map[string]string {
	out := make(map[string]string, len(m.questions))
	for i, q := range m.questions {
		out[q.Key] = strings.TrimSpace(m.inputs[i].Value())
	}
	return out
}

func (m promptModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m promptModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok || len(m.inputs) == 0 {
		return m, nil
	}
	switch key.Type {
	case tea.KeyCtrlC, tea.KeyEsc:
		return m, tea.Quit
	case tea.KeyTab, tea.KeyDown:
		return m, m.moveFocus(m.focus + 1)
	case tea.KeyShiftTab, tea.KeyUp:
		return m, m.moveFocus(m.focus - 1)
	case tea.KeyEnter:
		if m.focus == len(m.inputs)-1 {
			m.submitted = true
			return m, tea.Quit
		}
		return m, m.moveFocus(m.focus + 1)
	}
	var cmd tea.Cmd
	m.inputs[m.focus], cmd = m.inputs[m.focus].Update(msg)
	return m, cmd
}

func (m promptModel) View() string {
	if m.submitted {
		return ""
	}
	var b strings.Builder
	b.WriteString("classguard init (tab: next, enter on the last answer: save, esc: cancel)\n\n")
	for i, q := range m.questions {
		marker := " "
		if i == m.focus {
			marker = ">"
		}
		fmt.Fprintf(&b, "%s %s\n%s\n", marker, q.Prompt, m.inputs[i].View())
	}
	return b.String()
}

// promptQuestions runs the form and returns its answers.
func promptQuestions(questions []check.ConfigQuestion) (map[string]string, error) {
	if len(questions) == 0 {
		return map[string]string{}, nil
	}
	result, err := tea.NewProgram(newPromptModel(questions)).Run()
	if err != nil {
		return nil, err
	}
	if final, ok := result.(promptModel); ok && final.submitted {
		return final.answers(), nil
	}
	return nil, errors.New("prompt cancelled")
}

func main() {
	log.SetFlags(0)
	log.SetPrefix("classguard: ")
	if err := dispatch(os.Args[1:]); err != nil {
		log.Fatal(err)
	}
}
