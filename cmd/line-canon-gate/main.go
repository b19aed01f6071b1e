// Command line-canon-gate runs the repository's required verification gates
// in order, optionally finishing with a line-canon suite that must pass.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/pflag"

	"github.com/lattice-substrate/line-canon/harness"
	"github.com/lattice-substrate/line-canon/lcverify"
	"github.com/lattice-substrate/line-canon/suite"
)

type gateStep struct {
	label string
	argv  []string
	race  bool
}

var requiredGateSteps = []gateStep{
	{label: "go vet", argv: []string{"go", "vet", "./..."}},
	{label: "unit tests", argv: []string{"go", "test", "./...", "-count=1", "-timeout=20m"}},
	{label: "race tests", argv: []string{"go", "test", "./...", "-race", "-count=1", "-timeout=25m"}, race: true},
	{label: "conformance", argv: []string{"go", "test", "./conformance", "-run", "TestConformanceRequirements", "-count=1", "-v"}},
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr, harness.OSRunner{}))
}

func run(args []string, stdout, stderr io.Writer, runner harness.CommandRunner) int {
	fs := pflag.NewFlagSet("line-canon-gate", pflag.ContinueOnError)
	fs.SetOutput(stderr)
	noRace := fs.Bool("no-race", false, "skip the race detector gate")
	suitePath := fs.String("suite", "", "finish by running this suite; every case must pass")
	evidencePath := fs.String("evidence", "", "write the suite evidence to FILE")
	fs.Usage = func() { _ = writeUsage(stdout) }
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return 0
		}
		if err := writeUsage(stderr); err != nil {
			return 1
		}
		return 2
	}
	if fs.NArg() > 0 {
		if err := writef(stderr, "error: unknown argument %q\n", fs.Arg(0)); err != nil {
			return 1
		}
		return 2
	}

	steps := make([]gateStep, 0, len(requiredGateSteps))
	for _, step := range requiredGateSteps {
		if step.race && *noRace {
			continue
		}
		steps = append(steps, step)
	}
	total := len(steps)
	if *suitePath != "" {
		total++
	}

	ctx := context.Background()
	for i, step := range steps {
		if err := writef(stdout, "[%d/%d] %s\n", i+1, total, step.label); err != nil {
			return 1
		}
		if err := runner.Run(ctx, step.argv, nil, nil, stdout); err != nil {
			if writeErr := writef(stderr, "gate failed: %s: %v\n", step.label, err); writeErr != nil {
				return 1
			}
			return 1
		}
	}

	if *suitePath != "" {
		if err := writef(stdout, "[%d/%d] suite %s\n", total, total, *suitePath); err != nil {
			return 1
		}
		if err := suiteGate(ctx, *suitePath, *evidencePath, runner); err != nil {
			if writeErr := writef(stderr, "gate failed: suite: %v\n", err); writeErr != nil {
				return 1
			}
			return 1
		}
	}

	if err := writeLine(stdout, "all gates passed"); err != nil {
		return 1
	}
	return 0
}

func suiteGate(ctx context.Context, path, evidencePath string, runner harness.CommandRunner) error {
	s, err := suite.Load(path)
	if err != nil {
		return err
	}
	e, err := suite.Run(ctx, s, suite.RunOptions{Runner: runner, Orchestrator: "line-canon-gate"})
	if err != nil {
		return err
	}
	if evidencePath != "" {
		if err := suite.WriteEvidence(evidencePath, e); err != nil {
			return err
		}
	}
	if !e.Passed {
		for _, c := range e.Cases {
			if c.State != lcverify.Success.String() {
				return fmt.Errorf("case %s: %s: %s", c.Name, c.State, c.Message)
			}
		}
		return fmt.Errorf("suite %s did not pass", s.Name)
	}
	return nil
}

func writeUsage(w io.Writer) error {
	if err := writeLine(w, "usage: go run ./cmd/line-canon-gate [--no-race] [--suite FILE [--evidence FILE]]"); err != nil {
		return err
	}
	return writeLine(w, "runs: vet, tests, race, conformance, then the suite when given")
}

func writeLine(w io.Writer, msg string) error {
	return writef(w, "%s\n", msg)
}

func writef(w io.Writer, format string, args ...any) error {
	if _, err := fmt.Fprintf(w, format, args...); err != nil {
		return fmt.Errorf("write stream: %w", err)
	}
	return nil
}
