// Command line-canon decodes, transcodes, synthesizes and compares
// line-oriented text across charsets, and runs line-canon test suites.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/lmittmann/tint"
	"github.com/spf13/pflag"

	"github.com/lattice-substrate/line-canon/lccharset"
	"github.com/lattice-substrate/line-canon/lcerr"
	"github.com/lattice-substrate/line-canon/lcline"
	"github.com/lattice-substrate/line-canon/lcsource"
	"github.com/lattice-substrate/line-canon/lctranscode"
	"github.com/lattice-substrate/line-canon/lcverify"
	"github.com/lattice-substrate/line-canon/suite"
)

const (
	exitSuccess  = 0
	exitMismatch = 1
	exitInvalid  = 2
	exitInternal = 10
)

const usage = "usage: line-canon <decode|transcode|synthesize|compare|run|verify-evidence|charsets> [options]"

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func run(args []string, stdin io.Reader, stdout io.Writer, stderr io.Writer) int {
	if len(args) == 0 {
		if err := writeLine(stderr, usage); err != nil {
			return exitInternal
		}
		return exitInvalid
	}

	switch args[0] {
	case "decode":
		return cmdDecode(args[1:], stdin, stdout, stderr)
	case "transcode":
		return cmdTranscode(args[1:], stdin, stdout, stderr)
	case "synthesize":
		return cmdSynthesize(args[1:], stdin, stdout, stderr)
	case "compare":
		return cmdCompare(args[1:], stderr)
	case "run":
		return cmdRun(args[1:], stdout, stderr)
	case "verify-evidence":
		return cmdVerifyEvidence(args[1:], stderr)
	case "charsets":
		return cmdCharsets(args[1:], stdout, stderr)
	case "--help", "-h", "help":
		if err := writeLine(stderr, usage); err != nil {
			return exitInternal
		}
		return exitSuccess
	default:
		if err := writef(stderr, "unknown command: %s\n", args[0]); err != nil {
			return exitInternal
		}
		if err := writeLine(stderr, usage); err != nil {
			return exitInternal
		}
		return exitInvalid
	}
}

// newFlagSet returns a flag set that reports to stderr and never exits.
func newFlagSet(name, synopsis string, stderr io.Writer) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.SortFlags = false
	fs.Usage = func() {
		_ = writef(stderr, "usage: line-canon %s %s\n", name, synopsis)
		fs.PrintDefaults()
	}
	return fs
}

// parse runs fs over args. It returns an exit code and true when the
// command should stop: help was requested or the flags were invalid.
func parse(fs *pflag.FlagSet, args []string, stderr io.Writer) (int, bool) {
	err := fs.Parse(args)
	if err == nil {
		return 0, false
	}
	if errors.Is(err, pflag.ErrHelp) {
		return exitSuccess, true
	}
	return writeErrorAndReturn(stderr, exitInvalid, "error: %v\n", err), true
}

func cmdDecode(args []string, stdin io.Reader, stdout io.Writer, stderr io.Writer) int {
	fs := newFlagSet("decode", "[--charset C] [--json] [file|-]", stderr)
	charset := fs.StringP("charset", "c", "UTF-8", "charset of the input")
	asJSON := fs.Bool("json", false, "print the lines as a canonical JSON array")
	if code, stop := parse(fs, args, stderr); stop {
		return code
	}
	if code, ok := ensureSingleInput(fs.Args(), stderr); ok {
		return code
	}

	cs, err := lccharset.Lookup(*charset)
	if err != nil {
		return writeClassifiedError(stderr, err)
	}
	lines, err := lcline.DecodeLines(inputSource(fs.Args(), stdin), cs)
	if err != nil {
		return writeClassifiedError(stderr, err)
	}

	if *asJSON {
		doc, err := suite.Canonical(lines)
		if err != nil {
			return writeErrorAndReturn(stderr, exitInternal, "error: encoding json: %v\n", err)
		}
		if err := writef(stdout, "%s\n", doc); err != nil {
			return exitInternal
		}
		return exitSuccess
	}
	for _, line := range lines {
		if err := writeLine(stdout, line); err != nil {
			return exitInternal
		}
	}
	return exitSuccess
}

func cmdTranscode(args []string, stdin io.Reader, stdout io.Writer, stderr io.Writer) int {
	fs := newFlagSet("transcode", "--from A --to B [file|-]", stderr)
	from := fs.StringP("from", "f", "", "charset of the input (required)")
	to := fs.StringP("to", "t", "", "charset of the output (required)")
	if code, stop := parse(fs, args, stderr); stop {
		return code
	}
	if code, ok := ensureSingleInput(fs.Args(), stderr); ok {
		return code
	}

	fromCS, err := lccharset.Lookup(*from)
	if err != nil {
		return writeClassifiedError(stderr, err)
	}
	toCS, err := lccharset.Lookup(*to)
	if err != nil {
		return writeClassifiedError(stderr, err)
	}
	src, err := lctranscode.Transcode(inputSource(fs.Args(), stdin), fromCS, toCS)
	if err != nil {
		return writeClassifiedError(stderr, err)
	}
	if err := copySource(stdout, src); err != nil {
		return writeClassifiedError(stderr, err)
	}
	return exitSuccess
}

func cmdSynthesize(args []string, stdin io.Reader, stdout io.Writer, stderr io.Writer) int {
	fs := newFlagSet("synthesize", "[--charset C] [row...|-]", stderr)
	charset := fs.StringP("charset", "c", "UTF-8", "charset of the output")
	if code, stop := parse(fs, args, stderr); stop {
		return code
	}

	cs, err := lccharset.Lookup(*charset)
	if err != nil {
		return writeClassifiedError(stderr, err)
	}
	rows := fs.Args()
	if len(rows) == 1 && rows[0] == "-" {
		rows, err = lcline.DecodeLines(inputSource(nil, stdin), lccharset.UTF8)
		if err != nil {
			return writeClassifiedError(stderr, err)
		}
	}
	src, err := lcsource.Synthesize(rows, cs)
	if err != nil {
		return writeClassifiedError(stderr, err)
	}
	if err := copySource(stdout, src); err != nil {
		return writeClassifiedError(stderr, err)
	}
	return exitSuccess
}

func cmdCompare(args []string, stderr io.Writer) int {
	fs := newFlagSet("compare", "--expected FILE --actual FILE [options]", stderr)
	expectedPath := fs.StringP("expected", "e", "", "file holding the expected lines (required)")
	actualPath := fs.StringP("actual", "a", "", "file holding the actual lines (required)")
	charset := fs.StringP("charset", "c", "UTF-8", "charset of both files")
	expectedCharset := fs.String("expected-charset", "", "charset of the expected file (overrides --charset)")
	actualCharset := fs.String("actual-charset", "", "charset of the actual file (overrides --charset)")
	mode := fs.String("compare", "exact", "line comparison: "+strings.Join(lcverify.ComparatorNames(), ", "))
	quiet := fs.BoolP("quiet", "q", false, "suppress the report on success")
	if code, stop := parse(fs, args, stderr); stop {
		return code
	}
	if *expectedPath == "" || *actualPath == "" {
		return writeClassifiedError(stderr, lcerr.New(lcerr.CLIUsage, -1, "--expected and --actual are required"))
	}
	cmp, ok := lcverify.ComparatorByName(*mode)
	if !ok {
		return writeClassifiedError(stderr, lcerr.New(lcerr.CLIUsage, -1, fmt.Sprintf("unknown compare mode %q", *mode)))
	}

	expected, err := decodeFile(*expectedPath, firstNonEmpty(*expectedCharset, *charset))
	if err != nil {
		return writeClassifiedError(stderr, err)
	}
	actual, err := decodeFile(*actualPath, firstNonEmpty(*actualCharset, *charset))
	if err != nil {
		return writeClassifiedError(stderr, err)
	}

	r := lcverify.Compare(expected, actual, cmp)
	if r.OK() {
		if !*quiet {
			if err := writeLine(stderr, "ok"); err != nil {
				return exitInternal
			}
		}
		return exitSuccess
	}
	if err := writef(stderr, "%s", r.Report()); err != nil {
		return exitInternal
	}
	return exitMismatch
}

func cmdRun(args []string, stdout io.Writer, stderr io.Writer) int {
	fs := newFlagSet("run", "[--evidence FILE] [--verbose] SUITE", stderr)
	evidencePath := fs.String("evidence", "", "write canonical evidence JSON to FILE")
	verbose := fs.BoolP("verbose", "v", false, "log every case")
	noColor := fs.Bool("no-color", false, "disable colored log output")
	if code, stop := parse(fs, args, stderr); stop {
		return code
	}
	if len(fs.Args()) != 1 {
		return writeClassifiedError(stderr, lcerr.New(lcerr.CLIUsage, -1, "exactly one suite file is required"))
	}

	s, err := suite.Load(fs.Args()[0])
	if err != nil {
		return writeClassifiedError(stderr, err)
	}
	e, err := suite.Run(context.Background(), s, suite.RunOptions{
		Logger: newLogger(stderr, *verbose, *noColor),
	})
	if err != nil {
		return writeClassifiedError(stderr, err)
	}
	if *evidencePath != "" {
		if err := suite.WriteEvidence(*evidencePath, e); err != nil {
			return writeClassifiedError(stderr, lcerr.Wrap(lcerr.InternalIO, -1, "write evidence", err))
		}
	}

	failed := 0
	for _, c := range e.Cases {
		if c.State != lcverify.Success.String() {
			failed++
			if err := writef(stdout, "%s\t%s\t%d\t%s\n", c.State, c.Name, c.OffendingIndex, c.Message); err != nil {
				return exitInternal
			}
		}
	}
	if err := writef(stdout, "suite %s: %d cases, %d not passed, aggregate %s\n", e.SuiteName, e.CaseCount, failed, e.AggregateSHA256); err != nil {
		return exitInternal
	}
	if !e.Passed {
		return exitMismatch
	}
	return exitSuccess
}

func cmdVerifyEvidence(args []string, stderr io.Writer) int {
	fs := newFlagSet("verify-evidence", "--suite SUITE EVIDENCE", stderr)
	suitePath := fs.String("suite", "", "suite file the evidence was produced from (required)")
	quiet := fs.BoolP("quiet", "q", false, "suppress success messages")
	if code, stop := parse(fs, args, stderr); stop {
		return code
	}
	if *suitePath == "" || len(fs.Args()) != 1 {
		return writeClassifiedError(stderr, lcerr.New(lcerr.CLIUsage, -1, "--suite and one evidence file are required"))
	}

	s, err := suite.Load(*suitePath)
	if err != nil {
		return writeClassifiedError(stderr, err)
	}
	e, err := suite.LoadEvidence(fs.Args()[0])
	if err != nil {
		return writeClassifiedError(stderr, lcerr.Wrap(lcerr.InvalidEvidence, -1, "load evidence", err))
	}
	if err := suite.ValidateEvidence(e, s); err != nil {
		return writeClassifiedError(stderr, lcerr.Wrap(lcerr.InvalidEvidence, -1, "validate evidence", err))
	}
	if !*quiet {
		if err := writeLine(stderr, "ok"); err != nil {
			return exitInternal
		}
	}
	return exitSuccess
}

func cmdCharsets(args []string, stdout io.Writer, stderr io.Writer) int {
	fs := newFlagSet("charsets", "[--details]", stderr)
	details := fs.Bool("details", false, "print width, unit size, byte order and mark")
	if code, stop := parse(fs, args, stderr); stop {
		return code
	}
	for _, name := range lccharset.Names() {
		line := name
		if *details {
			cs, err := lccharset.Lookup(name)
			if err != nil {
				continue
			}
			line = fmt.Sprintf("%s\t%s\t%d\t%s\t% x", cs.Name(), cs.Width(), cs.UnitSize(), cs.Order(), cs.BOM())
		}
		if err := writeLine(stdout, line); err != nil {
			return exitInternal
		}
	}
	return exitSuccess
}

func newLogger(w io.Writer, verbose, noColor bool) *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(tint.NewHandler(w, &tint.Options{
		Level:      level,
		NoColor:    noColor,
		TimeFormat: time.TimeOnly,
	}))
}

// inputSource maps the positional file argument to a source. No argument or
// "-" means stdin, which is never closed by the engine.
func inputSource(positional []string, stdin io.Reader) lcsource.Source {
	if len(positional) == 0 || positional[0] == "-" {
		return lcsource.Reader(struct{ io.Reader }{stdin})
	}
	return lcsource.File(positional[0])
}

func decodeFile(path, charset string) ([]string, error) {
	cs, err := lccharset.Lookup(charset)
	if err != nil {
		return nil, err
	}
	return lcline.DecodeLines(lcsource.File(path), cs)
}

func copySource(w io.Writer, src lcsource.Source) (err error) {
	rc, err := lcsource.Open(src)
	if err != nil {
		return err
	}
	defer lcerr.CloseInto(&err, rc.Close)
	if _, err := io.Copy(w, rc); err != nil {
		if _, ok := lcerr.ClassOf(err); ok {
			return err
		}
		return lcerr.Wrap(lcerr.InternalIO, -1, "write output", err)
	}
	return nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func ensureSingleInput(positional []string, stderr io.Writer) (int, bool) {
	if len(positional) <= 1 {
		return 0, false
	}
	if err := writeLine(stderr, "error: multiple input files specified"); err != nil {
		return exitInternal, true
	}
	return exitInvalid, true
}

// writeClassifiedError reports err and returns the exit code of its
// failure class. Unclassified errors are internal.
func writeClassifiedError(stderr io.Writer, err error) int {
	class, ok := lcerr.ClassOf(err)
	if !ok {
		class = lcerr.InternalError
	}
	return writeErrorAndReturn(stderr, class.ExitCode(), "error: %v\n", err)
}

func writeErrorAndReturn(stderr io.Writer, code int, format string, args ...any) int {
	if err := writef(stderr, format, args...); err != nil {
		return exitInternal
	}
	return code
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
