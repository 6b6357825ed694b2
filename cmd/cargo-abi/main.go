package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"cargoabi/internal/abi"
	"cargoabi/internal/cargo"
	"cargoabi/internal/goabi"
	"cargoabi/internal/logging"
	"cargoabi/internal/manifest"
	"cargoabi/internal/metadata"
	"cargoabi/internal/settings"
)

// command describes a CLI subcommand.
type command struct {
	name  string
	short string
	usage string
	long  string
	run   func(ctx context.Context, args []string) error
}

const (
	metadataUsage = "cargo-abi metadata [--manifest-path PATH]"
	goUsage       = "cargo-abi go --type NAME [--dir DIR] [--output FILE] [--name N] [--version V] [--author A]..."
	initUsage     = "cargo-abi init [--manifest-path PATH] [--defaults]"
)

var commands = []command{
	{
		name:  "metadata",
		short: "Generate the ABI of a contract crate",
		usage: metadataUsage,
		long: `Generate <target-dir>/abi.json for the contract crate.

The crate's workspace is copied to a scratch directory, the copy of the
contract manifest gains an rlib crate type and lto = false, and a driver
package is added that calls the contract's __abi_generate export and prints
the result. The driver is run with cargo and its output is merged with the
package name, version and authors.

Settings are read from .cargo-abi/settings.yaml next to the manifest.

Flags:
  --manifest-path PATH   path to Cargo.toml (default: ./Cargo.toml)
`,
		run: runMetadata,
	},
	{
		name:  "go",
		short: "Generate the ABI of a Go contract type",
		usage: goUsage,
		long: `Describe the exported methods of a Go type as an ABI.

The package in --dir is type-checked and every exported method of --type is
recorded in source order. Methods with a value receiver are views. Doc
directives adjust the rest:

  //abi:init                 constructor
  //abi:view                 read-only, even with a pointer receiver
  //abi:borsh [param...]     borsh serialization
  //abi:callback param...    promise result params
  //abi:callback-vec param   joined promise results param

Flags:
  --type NAME      contract type (required)
  --dir DIR        package directory (default: .)
  --output FILE    artifact path (default: <dir>/abi.json)
  --name N         metainfo name (default: the type name)
  --version V      metainfo version (default: 0.0.0)
  --author A       metainfo author, repeatable
`,
		run: runGo,
	},
	{
		name:  "init",
		short: "Create .cargo-abi/settings.yaml for a crate",
		usage: initUsage,
		long: `Prompt for cargo-abi settings and write .cargo-abi/settings.yaml next to
the manifest.

Errors if the settings file already exists.

Flags:
  --manifest-path PATH   path to Cargo.toml (default: ./Cargo.toml)
  --defaults             write the defaults without prompting
`,
		run: runInit,
	},
}

var (
	stdout io.Writer = os.Stdout
	logger           = zap.NewNop()
)

func printUsage(w io.Writer) {
	fmt.Fprintf(w, "cargo-abi: contract ABI extraction\n\n")
	fmt.Fprintf(w, "Usage:\n  cargo-abi <command> [arguments]\n  cargo abi <command> [arguments]\n\n")
	fmt.Fprintf(w, "Commands:\n")
	for _, cmd := range commands {
		fmt.Fprintf(w, "  %-10s %s\n", cmd.name, cmd.short)
	}
	fmt.Fprintf(w, "\nRun 'cargo-abi help <command>' for details on a specific command.\n")
}

func printCommandHelp(w io.Writer, name string) {
	for _, cmd := range commands {
		if cmd.name == name {
			fmt.Fprintf(w, "Usage: %s\n\n%s", cmd.usage, cmd.long)
			return
		}
	}
	fmt.Fprintf(w, "cargo-abi: unknown command %q\n\nRun 'cargo-abi help' for usage.\n", name)
}

func dispatch(ctx context.Context, args []string) error {
	// cargo runs external subcommands as `cargo-abi abi <args>`.
	if len(args) > 0 && args[0] == "abi" {
		args = args[1:]
	}
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
			err := cmd.run(ctx, args[1:])
			if errors.Is(err, pflag.ErrHelp) {
				printCommandHelp(stdout, cmd.name)
				return nil
			}
			return err
		}
	}
	return fmt.Errorf("unknown command %q\n\nRun 'cargo-abi help' for usage.", args[0])
}

func newFlagSet(name string) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}

func parseFlags(fs *pflag.FlagSet, usage string, args []string) error {
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w\nusage: %s", err, usage)
	}
	if fs.NArg() > 0 {
		return fmt.Errorf("unexpected argument %q\nusage: %s", fs.Arg(0), usage)
	}
	return nil
}

// ---------------------------------------------------------------------------
// metadata
// ---------------------------------------------------------------------------

func runMetadata(ctx context.Context, args []string) error {
	fs := newFlagSet("metadata")
	manifestPath := fs.String("manifest-path", "", "path to Cargo.toml")
	if err := parseFlags(fs, metadataUsage, args); err != nil {
		return err
	}

	path, err := manifest.PathFromFlag(*manifestPath)
	if err != nil {
		return err
	}
	dir, err := path.AbsoluteDirectory()
	if err != nil {
		return err
	}
	cfg, err := settings.Load(dir)
	if err != nil {
		return err
	}

	crate, err := cargo.Collect(ctx, path, logger)
	if err != nil {
		return err
	}
	res, err := metadata.Execute(ctx, crate, metadata.Options{
		SDKCrate:     cfg.SDK(),
		Output:       cfg.OutputName(),
		TargetSubdir: cfg.Subdir(),
		ExcludeDeps:  cfg.Excluded(),
		Logger:       logger,
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "ABI written to %s\n", res.Path)
	return nil
}

// ---------------------------------------------------------------------------
// go
// ---------------------------------------------------------------------------

func runGo(_ context.Context, args []string) error {
	fs := newFlagSet("go")
	typeName := fs.String("type", "", "contract type")
	dir := fs.String("dir", ".", "package directory")
	output := fs.String("output", "", "artifact path")
	name := fs.String("name", "", "metainfo name")
	version := fs.String("version", "0.0.0", "metainfo version")
	authors := fs.StringArray("author", nil, "metainfo author")
	if err := parseFlags(fs, goUsage, args); err != nil {
		return err
	}
	if *typeName == "" {
		return fmt.Errorf("--type is required\nusage: %s", goUsage)
	}
	if *name == "" {
		*name = *typeName
	}
	if *output == "" {
		*output = filepath.Join(*dir, abi.FileName)
	}

	root, err := goabi.Generate(*dir, *typeName)
	if err != nil {
		return err
	}
	md := abi.NewContractMetadata(root, abi.MetaInfo{Name: *name, Version: *version, Authors: *authors})
	if err := abi.WriteFile(*output, md); err != nil {
		return err
	}
	logger.Info("wrote Go contract ABI", zap.String("type", *typeName), zap.Int("functions", len(md.Abi.Functions)))
	fmt.Fprintf(stdout, "ABI written to %s\n", *output)
	return nil
}

// ---------------------------------------------------------------------------
// init
// ---------------------------------------------------------------------------

func runInit(_ context.Context, args []string) error {
	fs := newFlagSet("init")
	manifestPath := fs.String("manifest-path", "", "path to Cargo.toml")
	defaults := fs.Bool("defaults", false, "write defaults without prompting")
	if err := parseFlags(fs, initUsage, args); err != nil {
		return err
	}

	path, err := manifest.PathFromFlag(*manifestPath)
	if err != nil {
		return err
	}
	dir, err := path.AbsoluteDirectory()
	if err != nil {
		return err
	}
	if _, err := os.Stat(settings.Path(dir)); err == nil {
		return fmt.Errorf("settings already exist at %s", settings.Path(dir))
	}

	questions := settings.Questions()
	answers := make(map[string]string, len(questions))
	if *defaults {
		for _, q := range questions {
			answers[q.Key] = q.Default
		}
	} else {
		answers, err = promptQuestions(questions)
		if err != nil {
			return fmt.Errorf("prompt: %w", err)
		}
	}

	if err := settings.Write(dir, settings.FromAnswers(answers)); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "created %s\n", settings.Path(dir))
	return nil
}

// ---------------------------------------------------------------------------
// TUI prompt helpers
// ---------------------------------------------------------------------------

// promptModel is a bubbletea model that asks one question at a time.
type promptModel struct {
	questions []settings.Question
	idx       int
	inputs    []textinput.Model
	done      bool
}

func newPromptModel(questions []settings.Question) promptModel {
	inputs := make([]textinput.Model, len(questions))
	for i, q := range questions {
		ti := textinput.New()
		ti.Placeholder = q.Default
		ti.CharLimit = 512
		inputs[i] = ti
	}
	m := promptModel{
		questions: questions,
		inputs:    inputs,
	}
	if len(inputs) > 0 {
		m.inputs[0].Focus()
	}
	return m
}

func (m promptModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m promptModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit
		case tea.KeyEnter:
			if m.idx < len(m.inputs)-1 {
				m.inputs[m.idx].Blur()
				m.idx++
				m.inputs[m.idx].Focus()
				return m, textinput.Blink
			}
			m.done = true
			return m, tea.Quit
		}
	}
	var cmd tea.Cmd
	m.inputs[m.idx], cmd = m.inputs[m.idx].Update(msg)
	return m, cmd
}

func (m promptModel) View() string {
	if m.done || len(m.questions) == 0 {
		return ""
	}
	q := m.questions[m.idx]
	return fmt.Sprintf("%s: %s\n", q.Prompt, m.inputs[m.idx].View())
}

// answers returns the entered values keyed by Question.Key. An empty input
// takes the question's default.
func (m promptModel) answers() map[string]string {
	out := make(map[string]string, len(m.questions))
	for i, q := range m.questions {
		v := m.inputs[i].Value()
		if v == "" {
			v = q.Default
		}
		out[q.Key] = v
	}
	return out
}

// promptQuestions runs the TUI and returns answers keyed by Question.Key.
func promptQuestions(questions []settings.Question) (map[string]string, error) {
	if len(questions) == 0 {
		return map[string]string{}, nil
	}
	p := tea.NewProgram(newPromptModel(questions))
	result, err := p.Run()
	if err != nil {
		return nil, err
	}
	final, ok := result.(promptModel)
	if !ok || !final.done {
		return nil, fmt.Errorf("prompt cancelled")
	}
	return final.answers(), nil
}

var errorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)

func main() {
	logger = logging.FromEnv()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := dispatch(ctx, os.Args[1:])
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s %s\n", errorStyle.Render("ERROR:"), err)
		_ = logger.Sync()
		os.Exit(1)
	}
	_ = logger.Sync()
}
