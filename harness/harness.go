// Package harness runs a program over synthesized input rows and checks the
// lines it writes against an expectation.
package harness

import (
	"bytes"
	"context"
	"io"
	"time"

	"github.com/lattice-substrate/line-canon/lccharset"
	"github.com/lattice-substrate/line-canon/lcerr"
	"github.com/lattice-substrate/line-canon/lcline"
	"github.com/lattice-substrate/line-canon/lcsource"
	"github.com/lattice-substrate/line-canon/lcverify"
)

// Program is the unit under test. It reads its input from stdin and writes
// its output to stdout. A non-nil error is an execution failure.
type Program func(ctx context.Context, stdin io.Reader, stdout io.Writer) error

// Case describes one run. Nil charsets mean UTF-8; a nil Comparator means
// exact line equality.
type Case struct {
	Name          string
	Input         []string
	Expected      []string
	InputCharset  *lccharset.Charset
	OutputCharset *lccharset.Charset
	Comparator    lcverify.Comparator
}

func (c *Case) charsets() (in, out *lccharset.Charset) {
	in, out = c.InputCharset, c.OutputCharset
	if in == nil {
		in = lccharset.UTF8
	}
	if out == nil {
		out = lccharset.UTF8
	}
	return in, out
}

// Run feeds the synthesized input rows to p, decodes what p wrote and
// compares it with c.Expected. Configuration problems, program failures and
// undecodable output all become Error outcomes; Run itself never fails.
// The input stream is closed before Run returns on every path.
func Run(ctx context.Context, c Case, p Program) *lcverify.Result {
	if p == nil {
		return errored(c, lcerr.New(lcerr.InternalError, -1, "program is nil"), 0)
	}
	in, out := c.charsets()
	src, err := lcsource.Synthesize(c.Input, in)
	if err != nil {
		return errored(c, err, 0)
	}

	var stdout bytes.Buffer
	start := time.Now()
	err = execute(ctx, src, &stdout, p)
	elapsed := time.Since(start)
	if err != nil {
		return errored(c, err, elapsed)
	}

	lines, err := lcline.DecodeBytes(stdout.Bytes(), out)
	if err != nil {
		return errored(c, err, elapsed)
	}
	return lcverify.NewResult(c.Expected, lines, nil, c.Comparator, elapsed)
}

func execute(ctx context.Context, src lcsource.Source, stdout io.Writer, p Program) (err error) {
	stdin, err := lcsource.Open(src)
	if err != nil {
		return err
	}
	defer lcerr.CloseInto(&err, stdin.Close)
	return p(ctx, stdin, stdout)
}

func errored(c Case, err error, d time.Duration) *lcverify.Result {
	return lcverify.NewResult(c.Expected, nil, err, c.Comparator, d)
}

// Func adapts a line-to-lines function into a Program that decodes stdin
// as UTF-8 and writes its result joined by CRLF in UTF-8. It is meant for
// in-process units under test.
func Func(f func(lines []string) ([]string, error)) Program {
	return func(_ context.Context, stdin io.Reader, stdout io.Writer) error {
		in, err := lcline.DecodeLines(lcsource.Reader(stdin), lccharset.UTF8)
		if err != nil {
			return err
		}
		out, err := f(in)
		if err != nil {
			return err
		}
		src, err := lcsource.Synthesize(out, lccharset.UTF8)
		if err != nil {
			return err
		}
		rc, err := lcsource.Open(src)
		if err != nil {
			return err
		}
		defer rc.Close()
		_, err = io.Copy(stdout, rc)
		return err
	}
}
