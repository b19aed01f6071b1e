package harness

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"sort"
	"strings"
)

// CommandRunner abstracts process execution for Command programs.
type CommandRunner interface {
	Run(ctx context.Context, argv []string, env map[string]string, stdin io.Reader, stdout io.Writer) error
}

// OSRunner executes commands on the host.
type OSRunner struct{}

// Run executes argv with env merged over the current environment. stdin and
// stdout are attached directly; stderr is captured and reported on failure.
func (OSRunner) Run(ctx context.Context, argv []string, env map[string]string, stdin io.Reader, stdout io.Writer) error {
	if len(argv) == 0 {
		return fmt.Errorf("empty argv")
	}
	// #nosec G204 -- argv comes from an explicit suite or caller.
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	if len(env) != 0 {
		keys := make([]string, 0, len(env))
		for k := range env {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		merged := cmd.Environ()
		for _, k := range keys {
			merged = append(merged, fmt.Sprintf("%s=%s", k, env[k]))
		}
		cmd.Env = merged
	}
	var stderr bytes.Buffer
	cmd.Stdin = stdin
	cmd.Stdout = stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return fmt.Errorf("run %q failed: %w: %s", argv, err, msg)
		}
		return fmt.Errorf("run %q failed: %w", argv, err)
	}
	return nil
}

// Command returns a Program that runs argv on the host.
func Command(argv []string, env map[string]string) Program {
	return CommandWith(OSRunner{}, argv, env)
}

// CommandWith returns a Program that runs argv through r.
func CommandWith(r CommandRunner, argv []string, env map[string]string) Program {
	argv = append([]string(nil), argv...)
	return func(ctx context.Context, stdin io.Reader, stdout io.Writer) error {
		return r.Run(ctx, argv, env, stdin, stdout)
	}
}
