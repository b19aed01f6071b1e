package lcverify

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/go-cmp/cmp"
)

// Result is an immutable snapshot of one comparison: the lines on both
// sides, the outcome and the time spent producing the actual lines.
type Result struct {
	outcome  Outcome
	expected []string
	actual   []string
	duration time.Duration
}

func newResult(o Outcome, expected, actual []string, d time.Duration) *Result {
	return &Result{
		outcome:  o,
		expected: slices.Clone(expected),
		actual:   slices.Clone(actual),
		duration: d,
	}
}

func (r *Result) Outcome() Outcome        { return r.outcome }
func (r *Result) State() State            { return r.outcome.State() }
func (r *Result) Index() int              { return r.outcome.Index() }
func (r *Result) Message() string         { return r.outcome.Message() }
func (r *Result) Err() error              { return r.outcome.Err() }
func (r *Result) OK() bool                { return r.outcome.OK() }
func (r *Result) Duration() time.Duration { return r.duration }

// Expected returns a copy of the expected lines.
func (r *Result) Expected() []string { return slices.Clone(r.expected) }

// Actual returns a copy of the actual lines. It is nil when the program
// under test failed before producing output.
func (r *Result) Actual() []string { return slices.Clone(r.actual) }

func (r *Result) String() string {
	return fmt.Sprintf("%s (%s)", r.outcome, r.duration.Round(time.Microsecond))
}

// Report renders a human-readable explanation of the outcome. For a failure
// it ends with a line diff (-expected +actual).
func (r *Result) Report() string {
	var b strings.Builder
	b.WriteString(r.outcome.String())
	b.WriteByte('\n')
	switch r.outcome.State() {
	case Failure:
		if i := r.outcome.Index(); i != NoIndex {
			fmt.Fprintf(&b, "  expected[%d]: %q\n  actual[%d]:   %q\n", i, r.expected[i], i, r.actual[i])
		}
		b.WriteString(cmp.Diff(r.expected, r.actual))
	case Error:
		fmt.Fprintf(&b, "  expected %d lines; no output compared\n", len(r.expected))
	}
	return b.String()
}
