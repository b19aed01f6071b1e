package lcverify

import (
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"
)

// Comparator is a three-way per-line comparison. Lines are equal when it
// returns 0, whatever sign convention it uses for ordering.
type Comparator func(expected, actual string) int

// Exact compares lines byte for byte.
func Exact(expected, actual string) int {
	return strings.Compare(expected, actual)
}

// TrimTrailingSpace ignores trailing spaces and tabs.
func TrimTrailingSpace(expected, actual string) int {
	return strings.Compare(strings.TrimRight(expected, " \t"), strings.TrimRight(actual, " \t"))
}

// NormalizationInsensitive treats canonically equivalent lines as equal by
// comparing their NFC forms.
func NormalizationInsensitive(expected, actual string) int {
	return strings.Compare(norm.NFC.String(expected), norm.NFC.String(actual))
}

// ComparatorByName maps the names used in suite files and on the command
// line to comparators. The empty name is Exact.
func ComparatorByName(name string) (Comparator, bool) {
	switch name {
	case "", "exact":
		return Exact, true
	case "trim":
		return TrimTrailingSpace, true
	case "nfc":
		return NormalizationInsensitive, true
	default:
		return nil, false
	}
}

// ComparatorNames lists the names accepted by ComparatorByName.
func ComparatorNames() []string {
	return []string{"exact", "trim", "nfc"}
}

// check inspects one aspect of a comparison and reports an outcome when
// that aspect decides it.
type check func(expected, actual []string, err error, cmp Comparator) (Outcome, bool)

// checks run in order; the first decisive one wins.
var checks = []check{
	executionFailed,
	lengthMismatch,
	contentMismatch,
}

func executionFailed(_, _ []string, err error, _ Comparator) (Outcome, bool) {
	if err == nil {
		return Outcome{}, false
	}
	return Errored(err), true
}

func lengthMismatch(expected, actual []string, _ error, _ Comparator) (Outcome, bool) {
	if len(expected) == len(actual) {
		return Outcome{}, false
	}
	return Failed(NoIndex, fmt.Sprintf("expected %d lines, got %d", len(expected), len(actual))), true
}

func contentMismatch(expected, actual []string, _ error, cmp Comparator) (Outcome, bool) {
	for i := range expected {
		if cmp(expected[i], actual[i]) != 0 {
			return Failed(i, fmt.Sprintf("expected %q, got %q", expected[i], actual[i])), true
		}
	}
	return Outcome{}, false
}

// Evaluate decides the outcome of comparing actual against expected. A
// non-nil err means the program under test failed; the outcome is then
// Error whatever the lines hold. A nil cmp means Exact.
func Evaluate(expected, actual []string, err error, cmp Comparator) Outcome {
	if cmp == nil {
		cmp = Exact
	}
	for _, c := range checks {
		if o, ok := c(expected, actual, err, cmp); ok {
			return o
		}
	}
	return Succeeded()
}

// Compare evaluates actual against expected and snapshots the result.
func Compare(expected, actual []string, cmp Comparator) *Result {
	return NewResult(expected, actual, nil, cmp, 0)
}

// NewResult evaluates and snapshots one comparison, recording how long the
// program under test took.
func NewResult(expected, actual []string, err error, cmp Comparator, d time.Duration) *Result {
	return newResult(Evaluate(expected, actual, err, cmp), expected, actual, d)
}
