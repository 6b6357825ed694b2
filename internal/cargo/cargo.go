// Package cargo runs the cargo executable and reads its workspace metadata.
package cargo

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sort"
	"strings"

	"go.uber.org/zap"
)

// EnvVar names the variable that overrides the cargo executable.
const EnvVar = "CARGO"

// Options adjust a single cargo invocation.
type Options struct {
	// Dir is the working directory. Empty means the current directory.
	Dir string
	// Env sets variables on top of the inherited environment.
	Env map[string]string
	// Unset removes inherited variables.
	Unset []string
	// Stderr receives cargo's diagnostics. Defaults to os.Stderr.
	Stderr io.Writer
	Logger *zap.Logger
}

// ExitError reports a cargo run that exited non-zero.
type ExitError struct {
	Command string
	Code    int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("`%s` failed with exit code %d", e.Command, e.Code)
}

// Program returns the cargo executable to run.
func Program() string {
	if p := os.Getenv(EnvVar); p != "" {
		return p
	}
	return "cargo"
}

// Invoke runs `cargo <command> <args...>` and returns its stdout.
func Invoke(ctx context.Context, command string, args []string, opts Options) ([]byte, error) {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}

	argv := append([]string{command}, args...)
	cmd := exec.CommandContext(ctx, Program(), argv...)
	cmd.Env = environ(os.Environ(), opts.Env, opts.Unset)
	if opts.Dir != "" {
		log.Debug("setting cargo working dir", zap.String("dir", opts.Dir))
		cmd.Dir = opts.Dir
	}

	var stdout bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = opts.Stderr
	if cmd.Stderr == nil {
		cmd.Stderr = os.Stderr
	}

	line := commandLine(cmd.Path, argv)
	log.Info("invoking cargo", zap.String("command", line))

	if err := cmd.Run(); err != nil {
		if ee, ok := err.(*exec.ExitError); ok {
			return nil, &ExitError{Command: line, Code: ee.ExitCode()}
		}
		return nil, fmt.Errorf("execute `%s`: %w", line, err)
	}
	return stdout.Bytes(), nil
}

// environ applies set and unset to base. Later entries of base win over
// earlier ones the same way exec does, so overridden keys are dropped first.
func environ(base []string, set map[string]string, unset []string) []string {
	drop := make(map[string]bool, len(set)+len(unset))
	for k := range set {
		drop[k] = true
	}
	for _, k := range unset {
		drop[k] = true
	}

	env := make([]string, 0, len(base)+len(set))
	for _, kv := range base {
		k, _, _ := strings.Cut(kv, "=")
		if !drop[k] {
			env = append(env, kv)
		}
	}
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		env = append(env, k+"="+set[k])
	}
	return env
}

func commandLine(program string, argv []string) string {
	return strings.Join(append([]string{program}, argv...), " ")
}
