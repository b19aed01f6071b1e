package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// fakeRunner records go invocations and echoes stdin for suite commands.
type fakeRunner struct {
	calls  []string
	failAt int
}

func (f *fakeRunner) Run(_ context.Context, argv []string, _ map[string]string, stdin io.Reader, stdout io.Writer) error {
	f.calls = append(f.calls, strings.Join(argv, " "))
	if f.failAt > 0 && len(f.calls) == f.failAt {
		return errors.New("boom")
	}
	if stdin != nil {
		_, err := io.Copy(stdout, stdin)
		return err
	}
	return nil
}

func TestRunHelp(t *testing.T) {
	fr := &fakeRunner{}
	var out, errOut bytes.Buffer
	code := run([]string{"--help"}, &out, &errOut, fr)
	if code != 0 {
		t.Fatalf("expected exit 0, got %d", code)
	}
	if len(fr.calls) != 0 {
		t.Fatalf("expected no command invocations, got %d", len(fr.calls))
	}
	if !strings.Contains(out.String(), "usage:") {
		t.Fatalf("expected usage on stdout, got %q", out.String())
	}
}

func TestRunExecutesAllRequiredGates(t *testing.T) {
	fr := &fakeRunner{}
	var out, errOut bytes.Buffer
	code := run(nil, &out, &errOut, fr)
	if code != 0 {
		t.Fatalf("expected exit 0, got %d stderr=%q", code, errOut.String())
	}
	if len(fr.calls) != len(requiredGateSteps) {
		t.Fatalf("expected %d calls, got %d", len(requiredGateSteps), len(fr.calls))
	}
	if !strings.Contains(out.String(), "all gates passed") {
		t.Fatalf("missing final line in %q", out.String())
	}
}

func TestRunSkipsRace(t *testing.T) {
	fr := &fakeRunner{}
	var out, errOut bytes.Buffer
	if code := run([]string{"--no-race"}, &out, &errOut, fr); code != 0 {
		t.Fatalf("expected exit 0, got %d", code)
	}
	for _, c := range fr.calls {
		if strings.Contains(c, "-race") {
			t.Fatalf("race gate ran: %q", c)
		}
	}
	if len(fr.calls) != len(requiredGateSteps)-1 {
		t.Fatalf("expected %d calls, got %d", len(requiredGateSteps)-1, len(fr.calls))
	}
}

func TestRunStopsOnFirstFailure(t *testing.T) {
	fr := &fakeRunner{failAt: 3}
	var out, errOut bytes.Buffer
	code := run(nil, &out, &errOut, fr)
	if code != 1 {
		t.Fatalf("expected exit 1, got %d", code)
	}
	if len(fr.calls) != 3 {
		t.Fatalf("expected to stop at failing gate, got %d calls", len(fr.calls))
	}
}

func TestRunUnknownArgument(t *testing.T) {
	for _, args := range [][]string{{"--nope"}, {"extra"}} {
		fr := &fakeRunner{}
		var out, errOut bytes.Buffer
		code := run(args, &out, &errOut, fr)
		if code != 2 {
			t.Fatalf("%v: expected exit 2, got %d", args, code)
		}
		if len(fr.calls) != 0 {
			t.Fatalf("%v: expected no command invocations, got %d", args, len(fr.calls))
		}
	}
}

func writeSuite(t *testing.T, expected string) string {
	t.Helper()
	doc := "version: suite.v1\nname: gate\ncommand: [echo]\ncases:\n  - name: one\n    input: [a]\n    expected: [" + expected + "]\n"
	path := filepath.Join(t.TempDir(), "suite.yaml")
	if err := os.WriteFile(path, []byte(doc), 0o600); err != nil {
		t.Fatalf("write suite: %v", err)
	}
	return path
}

func TestRunSuiteGate(t *testing.T) {
	fr := &fakeRunner{}
	evidence := filepath.Join(t.TempDir(), "evidence.json")
	var out, errOut bytes.Buffer
	code := run([]string{"--no-race", "--suite", writeSuite(t, "a"), "--evidence", evidence}, &out, &errOut, fr)
	if code != 0 {
		t.Fatalf("expected exit 0, got %d stderr=%q", code, errOut.String())
	}
	if _, err := os.Stat(evidence); err != nil {
		t.Fatalf("evidence not written: %v", err)
	}
	if !strings.Contains(out.String(), "[4/4] suite") {
		t.Fatalf("missing suite step in %q", out.String())
	}
}

func TestRunSuiteGateFails(t *testing.T) {
	fr := &fakeRunner{}
	var out, errOut bytes.Buffer
	code := run([]string{"--no-race", "--suite", writeSuite(t, "b")}, &out, &errOut, fr)
	if code != 1 {
		t.Fatalf("expected exit 1, got %d", code)
	}
	if !strings.Contains(errOut.String(), "case one: failure") {
		t.Fatalf("unexpected stderr %q", errOut.String())
	}
}
